package utils

import (
	"math"
)

// math.go - математические утилиты для торговых операций
//
// Все функции чистые, без побочных эффектов.

// RoundToLotSize округляет значение ВНИЗ до ближайшего кратного lotSize.
//
// Используется для округления размера ордера до минимального шага
// площадки. Округление вниз гарантирует, что заявка не превысит
// запрошенную сумму.
//
// Примеры:
//   - RoundToLotSize(40.123456, 0.01) = 40.12
//   - RoundToLotSize(1.999, 0.01) = 1.99
//
// Если lotSize <= 0, возвращает исходное значение.
func RoundToLotSize(value, lotSize float64) float64 {
	if lotSize <= 0 {
		return value
	}
	steps := math.Floor(value / lotSize)
	rounded := steps * lotSize
	// Отсекаем хвост плавающей точки вида 40.120000000000005
	precision := math.Round(1 / lotSize)
	return math.Round(rounded*precision) / precision
}

// ChangePct возвращает изменение от first к last в процентах.
// Отрицательное значение - падение. Если first <= 0, возвращает 0.
func ChangePct(first, last float64) float64 {
	if first <= 0 {
		return 0
	}
	return (last - first) / first * 100
}

// PositionPNL считает PnL длинной позиции в долларах.
// Позиции всегда длинные: токен исхода покупается и продается.
func PositionPNL(entryPrice, currentPrice, size float64) float64 {
	return (currentPrice - entryPrice) * size
}

// Clamp ограничивает значение диапазоном [min, max]
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Abs возвращает абсолютное значение
func Abs(x float64) float64 {
	return math.Abs(x)
}
