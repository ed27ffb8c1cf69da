package models

import "time"

// Фиксированный набор circuit breakers. Записи создаются один раз при
// первом старте и никогда не создаются/удаляются в runtime - только
// мутируются через Trip/Reset.
const (
	BreakerStaleData              = "stale_data"
	BreakerWebsocketDisconnect    = "websocket_disconnect"
	BreakerHighErrorRate          = "high_error_rate"
	BreakerReconciliationMismatch = "reconciliation_mismatch"
	BreakerDailyLossLimit         = "daily_loss_limit"
	BreakerAPIRateLimit           = "api_rate_limit"
)

// BreakerNames возвращает полный список имен брейкеров (seed-набор)
func BreakerNames() []string {
	return []string{
		BreakerStaleData,
		BreakerWebsocketDisconnect,
		BreakerHighErrorRate,
		BreakerReconciliationMismatch,
		BreakerDailyLossLimit,
		BreakerAPIRateLimit,
	}
}

// KnownBreaker проверяет что имя входит в seed-набор
func KnownBreaker(name string) bool {
	for _, n := range BreakerNames() {
		if n == name {
			return true
		}
	}
	return false
}

// CircuitBreaker представляет состояние одного брейкера.
//
// Инвариант: IsTripped == true ⇒ TripReason != "" и LastTrip != nil.
type CircuitBreaker struct {
	ID         int        `json:"id" db:"id"`
	Name       string     `json:"name" db:"breaker_name"`
	IsTripped  bool       `json:"is_tripped" db:"is_tripped"`
	TripReason string     `json:"trip_reason" db:"trip_reason"`
	TripCount  int        `json:"trip_count" db:"trip_count"`
	LastTrip   *time.Time `json:"last_trip" db:"last_trip"`
	LastReset  *time.Time `json:"last_reset" db:"last_reset"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// HaltTarget возвращает состояние, в которое переводит срабатывание
// этого брейкера из RUNNING/PAUSED
func HaltTarget(breakerName string) string {
	if breakerName == BreakerDailyLossLimit {
		return StateHaltedDailyLoss
	}
	return StateHaltedCircuitBreaker
}
