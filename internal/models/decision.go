package models

import "time"

// Направления торгового сигнала
const (
	DirectionUp      = "UP"
	DirectionDown    = "DOWN"
	DirectionNeutral = "NEUTRAL"
)

// Коды риск-проверок в порядке выполнения. Порядок фиксирован и
// одновременно является tie-break политикой: причиной отказа считается
// первая непройденная проверка в этом порядке.
const (
	CheckBotRunning      = "bot_running"
	CheckCircuitBreakers = "circuit_breakers"
	CheckMinLiquidity    = "min_liquidity"
	CheckTradeSize       = "trade_size"
	CheckCorrelationCap  = "correlation_cap"
	CheckMaxPositions    = "max_positions"
	CheckMarketClose     = "market_close"
	CheckStaleData       = "stale_data"
)

// RiskCheckResult - результат одной риск-проверки.
// В risk_checks решения записываются ВСЕ проверки, не только
// непройденная - аудит должен видеть полную картину и на Allow.
type RiskCheckResult struct {
	Code   string `json:"code"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Decision - решение стратегии, прошедшее через RiskGate.
//
// Запись иммутабельна после создания, кроме флага Executed
// (и ExecutionID), который проставляется после отправки ордера.
type Decision struct {
	ID           int               `json:"id" db:"id"`
	Timestamp    time.Time         `json:"timestamp" db:"timestamp"`
	Asset        string            `json:"asset" db:"asset"`
	MarketID     int               `json:"market_id" db:"market_id"`
	Direction    string            `json:"direction" db:"direction"`
	Confidence   float64           `json:"confidence" db:"confidence"`
	SizeUSD      float64           `json:"size_usd" db:"size_usd"`
	RiskChecks   []RiskCheckResult `json:"risk_checks" db:"risk_checks"`
	SignalSource string            `json:"signal_source" db:"signal_source"`
	Executed     bool              `json:"executed" db:"executed"`
	ExecutionID  string            `json:"execution_id" db:"execution_id"`
}
