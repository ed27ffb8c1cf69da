package models

import "time"

// Типы значений конфигурации. Тип объявляется при создании ключа и
// валидируется при каждой записи - "стрингли-типизированное" значение
// не должно дойти до арифметики риск-проверок.
const (
	ConfigTypeNumber = "number"
	ConfigTypeBool   = "bool"
	ConfigTypeString = "string"
)

// ConfigEntry представляет один ключ конфигурации.
//
// Value хранится как JSON-encoded строка (JSONB в БД), ValueType
// фиксирует объявленный тип ключа.
type ConfigEntry struct {
	ID          int       `json:"id" db:"id"`
	Key         string    `json:"key" db:"key"`
	Value       string    `json:"value" db:"value"`
	ValueType   string    `json:"value_type" db:"value_type"`
	Description string    `json:"description" db:"description"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
	UpdatedBy   string    `json:"updated_by" db:"updated_by"`
}

// Ключи конфигурации риск-лимитов
const (
	ConfigPortfolioTradePct        = "portfolio_trade_pct"
	ConfigMaxMarketUSD             = "max_market_usd"
	ConfigMaxMarketPortfolioPct    = "max_market_portfolio_pct"
	ConfigCorrelationMaxBasketPct  = "correlation_max_basket_pct"
	ConfigDailyLossLimitUSD        = "daily_loss_limit_usd"
	ConfigTakeProfitPct            = "take_profit_pct"
	ConfigStopLossPct              = "stop_loss_pct"
	ConfigMinLiquidityUSD          = "min_liquidity_usd"
	ConfigMarketCloseBufferMinutes = "market_close_buffer_minutes"
	ConfigStaleDataThresholdSec    = "stale_data_threshold_seconds"
	ConfigMaxOpenPositions         = "max_open_positions"
	ConfigPortfolioSizeUSD         = "portfolio_size_usd"
	ConfigReconWindowMinutes       = "reconciliation_window_minutes"
	ConfigReconMismatchThreshold   = "reconciliation_mismatch_threshold"
	ConfigSizeTolerancePct         = "size_tolerance_pct"
)

// DefaultConfig возвращает консервативные дефолты для портфеля $500.
// Записи создаются при первом старте (ON CONFLICT DO NOTHING) и далее
// обновляются только через config-update операцию, никогда не удаляются.
func DefaultConfig() []ConfigEntry {
	return []ConfigEntry{
		{Key: ConfigPortfolioTradePct, Value: "5", ValueType: ConfigTypeNumber, Description: "Percentage of portfolio per trade"},
		{Key: ConfigMaxMarketUSD, Value: "100", ValueType: ConfigTypeNumber, Description: "Maximum USD per market"},
		{Key: ConfigMaxMarketPortfolioPct, Value: "20", ValueType: ConfigTypeNumber, Description: "Maximum portfolio percentage per market"},
		{Key: ConfigCorrelationMaxBasketPct, Value: "35", ValueType: ConfigTypeNumber, Description: "Maximum correlated basket exposure"},
		{Key: ConfigDailyLossLimitUSD, Value: "25", ValueType: ConfigTypeNumber, Description: "Daily loss limit in USD"},
		{Key: ConfigTakeProfitPct, Value: "8", ValueType: ConfigTypeNumber, Description: "Take profit percentage"},
		{Key: ConfigStopLossPct, Value: "5", ValueType: ConfigTypeNumber, Description: "Stop loss percentage"},
		{Key: ConfigMinLiquidityUSD, Value: "500", ValueType: ConfigTypeNumber, Description: "Minimum market liquidity"},
		{Key: ConfigMarketCloseBufferMinutes, Value: "2", ValueType: ConfigTypeNumber, Description: "Buffer before market close"},
		{Key: ConfigStaleDataThresholdSec, Value: "60", ValueType: ConfigTypeNumber, Description: "Stale data threshold"},
		{Key: ConfigMaxOpenPositions, Value: "5", ValueType: ConfigTypeNumber, Description: "Maximum open positions"},
		{Key: ConfigPortfolioSizeUSD, Value: "500", ValueType: ConfigTypeNumber, Description: "Total portfolio size in USD"},
		{Key: ConfigReconWindowMinutes, Value: "10", ValueType: ConfigTypeNumber, Description: "Reconciliation rolling window"},
		{Key: ConfigReconMismatchThreshold, Value: "3", ValueType: ConfigTypeNumber, Description: "Mismatches in window before breaker trip"},
		{Key: ConfigSizeTolerancePct, Value: "1", ValueType: ConfigTypeNumber, Description: "Order size tolerance for reconciliation"},
	}
}
