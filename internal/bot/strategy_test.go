package bot

import (
	"context"
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"

	"polytrader/internal/models"
)

func testCatalog() *mockMarketCatalog {
	return &mockMarketCatalog{markets: map[string]*models.Market{
		"BTC": {ID: 1, Asset: "BTC", YesTokenID: "btc-yes", NoTokenID: "btc-no"},
		"ETH": {ID: 2, Asset: "ETH", YesTokenID: "eth-yes", NoTokenID: "eth-no"},
		"SOL": {ID: 3, Asset: "SOL", YesTokenID: "sol-yes", NoTokenID: "sol-no"},
	}}
}

// ============ Тесты классификации движения ============

func TestClassify(t *testing.T) {
	tests := []struct {
		name           string
		changePct      float64
		wantDirection  string
		wantConfidence float64
	}{
		{"flat", 0.0, models.DirectionNeutral, 0},
		{"below threshold up", 0.9, models.DirectionNeutral, 0},
		{"below threshold down", -0.9, models.DirectionNeutral, 0},
		{"at threshold", 1.0, models.DirectionUp, 0.25},
		{"moderate up", 2.0, models.DirectionUp, 0.5},
		{"at saturation", 3.0, models.DirectionUp, 1.0},
		{"beyond saturation", 5.0, models.DirectionUp, 1.0},
		{"moderate down", -2.0, models.DirectionDown, 0.5},
		{"beyond saturation down", -4.0, models.DirectionDown, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			direction, confidence := classify(tt.changePct)
			if direction != tt.wantDirection {
				t.Errorf("classify(%.1f) direction = %s, want %s", tt.changePct, direction, tt.wantDirection)
			}
			if math.Abs(confidence-tt.wantConfidence) > 1e-9 {
				t.Errorf("classify(%.1f) confidence = %.4f, want %.4f", tt.changePct, confidence, tt.wantConfidence)
			}
		})
	}
}

// ============ Тесты генерации сигналов ============

func TestSignalsDirectionSelectsToken(t *testing.T) {
	prices := &mockPriceChange{changes: map[string]float64{
		"BTC": 2.5,  // вверх - YES токен
		"ETH": -2.5, // вниз - NO токен
		"SOL": 0.2,  // шум - без сигнала
	}}
	strategy := NewMomentumStrategy(prices, testCatalog(), zap.NewNop())

	signals, err := strategy.Signals(context.Background())
	if err != nil {
		t.Fatalf("Signals failed: %v", err)
	}

	if len(signals) != 2 {
		t.Fatalf("Expected 2 signals, got %d", len(signals))
	}

	bySymbol := make(map[string]models.TradeSignal)
	for _, s := range signals {
		bySymbol[s.Asset] = s
	}

	btc := bySymbol["BTC"]
	if btc.Direction != models.DirectionUp || btc.TokenID != "btc-yes" {
		t.Errorf("BTC signal = %s/%s, want UP/btc-yes", btc.Direction, btc.TokenID)
	}
	if btc.MarketID != 1 || btc.Source != "momentum" {
		t.Errorf("Unexpected BTC signal metadata: %+v", btc)
	}

	eth := bySymbol["ETH"]
	if eth.Direction != models.DirectionDown || eth.TokenID != "eth-no" {
		t.Errorf("ETH signal = %s/%s, want DOWN/eth-no", eth.Direction, eth.TokenID)
	}
}

func TestSignalsSkipsAssetWithoutMarket(t *testing.T) {
	prices := &mockPriceChange{changes: map[string]float64{
		"BTC": 2.5,
		"ETH": 2.5,
	}}
	catalog := testCatalog()
	delete(catalog.markets, "ETH")
	strategy := NewMomentumStrategy(prices, catalog, zap.NewNop())

	signals, err := strategy.Signals(context.Background())
	if err != nil {
		t.Fatalf("Signals failed: %v", err)
	}

	if len(signals) != 1 || signals[0].Asset != "BTC" {
		t.Errorf("Expected single BTC signal, got %+v", signals)
	}
}

func TestSignalsSkipsAssetWithoutPriceHistory(t *testing.T) {
	// Истории нет только по BTC - остальные активы не затронуты
	prices := &mockPriceChange{changes: map[string]float64{
		"ETH": 2.0,
	}}
	strategy := NewMomentumStrategy(prices, testCatalog(), zap.NewNop())

	signals, err := strategy.Signals(context.Background())
	if err != nil {
		t.Fatalf("Signals failed: %v", err)
	}

	if len(signals) != 1 || signals[0].Asset != "ETH" {
		t.Errorf("Expected single ETH signal, got %+v", signals)
	}
}

func TestSignalsCancelledContext(t *testing.T) {
	prices := &mockPriceChange{err: errors.New("unused")}
	strategy := NewMomentumStrategy(prices, testCatalog(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := strategy.Signals(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
