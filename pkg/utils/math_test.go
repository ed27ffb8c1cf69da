package utils

import (
	"math"
	"testing"
)

func TestRoundToLotSize(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		lotSize float64
		want    float64
	}{
		{"rounds down", 40.126, 0.01, 40.12},
		{"exact multiple unchanged", 40.12, 0.01, 40.12},
		{"never rounds up", 1.999, 0.01, 1.99},
		{"whole lot", 100.5, 1.0, 100.0},
		{"zero lot size returns value", 40.126, 0, 40.126},
		{"negative lot size returns value", 40.126, -1, 40.126},
		{"zero value", 0, 0.01, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundToLotSize(tt.value, tt.lotSize)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("RoundToLotSize(%v, %v) = %v, want %v", tt.value, tt.lotSize, got, tt.want)
			}
		})
	}
}

func TestChangePct(t *testing.T) {
	tests := []struct {
		name  string
		first float64
		last  float64
		want  float64
	}{
		{"up 2 percent", 100, 102, 2},
		{"down 1.5 percent", 100, 98.5, -1.5},
		{"flat", 50, 50, 0},
		{"zero first", 0, 100, 0},
		{"negative first", -1, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ChangePct(tt.first, tt.last)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ChangePct(%v, %v) = %v, want %v", tt.first, tt.last, got, tt.want)
			}
		})
	}
}

func TestPositionPNL(t *testing.T) {
	tests := []struct {
		name    string
		entry   float64
		current float64
		size    float64
		want    float64
	}{
		{"profit", 0.50, 0.60, 40, 4},
		{"loss", 0.50, 0.45, 40, -2},
		{"flat", 0.50, 0.50, 40, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PositionPNL(tt.entry, tt.current, tt.size)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("PositionPNL(%v, %v, %v) = %v, want %v", tt.entry, tt.current, tt.size, got, tt.want)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		value, min, max, want float64
	}{
		{0.5, 0.25, 1, 0.5},
		{0.1, 0.25, 1, 0.25},
		{1.7, 0.25, 1, 1},
		{0.25, 0.25, 1, 0.25},
		{1, 0.25, 1, 1},
	}

	for _, tt := range tests {
		if got := Clamp(tt.value, tt.min, tt.max); got != tt.want {
			t.Errorf("Clamp(%v, %v, %v) = %v, want %v", tt.value, tt.min, tt.max, got, tt.want)
		}
	}
}

func TestAbs(t *testing.T) {
	if Abs(-2.5) != 2.5 || Abs(2.5) != 2.5 || Abs(0) != 0 {
		t.Error("Abs returned wrong value")
	}
}
