package models

import "time"

// RiskMetricsSnapshot - периодический снимок риск-метрик для
// наблюдаемости. Пишется торговым воркером раз в цикл.
type RiskMetricsSnapshot struct {
	ID              int       `json:"id" db:"id"`
	Timestamp       time.Time `json:"timestamp" db:"timestamp"`
	TotalExposure   float64   `json:"total_exposure" db:"total_exposure"`
	BTCExposure     float64   `json:"btc_exposure" db:"btc_exposure"`
	ETHExposure     float64   `json:"eth_exposure" db:"eth_exposure"`
	SOLExposure     float64   `json:"sol_exposure" db:"sol_exposure"`
	CorrelationRisk float64   `json:"correlation_risk" db:"correlation_risk"`
	DailyLoss       float64   `json:"daily_loss" db:"daily_loss"`
	PortfolioValue  float64   `json:"portfolio_value" db:"portfolio_value"`
}

// DailyPnL - агрегат реализованного PnL за торговый день (UTC).
// Источник истины для daily_loss_limit.
type DailyPnL struct {
	ID            int       `json:"id" db:"id"`
	Date          time.Time `json:"date" db:"date"`
	RealizedPnL   float64   `json:"realized_pnl" db:"realized_pnl"`
	UnrealizedPnL float64   `json:"unrealized_pnl" db:"unrealized_pnl"`
	FeesPaid      float64   `json:"fees_paid" db:"fees_paid"`
	TradeCount    int       `json:"trade_count" db:"trade_count"`
	WinCount      int       `json:"win_count" db:"win_count"`
	LossCount     int       `json:"loss_count" db:"loss_count"`
}

// Статусы health-проверок
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusDown     = "down"
)

// HealthCheck - результат одной проверки здоровья зависимости
type HealthCheck struct {
	ID        int       `json:"id" db:"id"`
	Component string    `json:"component" db:"component"`
	Status    string    `json:"status" db:"status"`
	Message   string    `json:"message" db:"message"`
	LatencyMS int       `json:"latency_ms" db:"latency_ms"`
	CheckedAt time.Time `json:"checked_at" db:"checked_at"`
}
