package models

import "time"

// Типы событий аудита
const (
	AuditBotStateChange  = "bot_state_change"
	AuditBreakerTripped  = "circuit_breaker_tripped"
	AuditBreakerReset    = "circuit_breaker_reset"
	AuditConfigUpdate    = "config_update"
	AuditDecisionDenied  = "decision_denied"
	AuditDecisionAllowed = "decision_allowed"
	AuditOrderPlaced     = "order_placed"
	AuditCancelAll       = "cancel_all_orders"
	AuditReconMismatch   = "reconciliation_mismatch"
	AuditEmergencyStop   = "emergency_stop"
)

// AuditEntry - запись аудита. Append-only: записи никогда не
// изменяются и не удаляются.
type AuditEntry struct {
	ID        int                    `json:"id" db:"id"`
	Timestamp time.Time              `json:"timestamp" db:"timestamp"`
	EventType string                 `json:"event_type" db:"event_type"`
	Details   map[string]interface{} `json:"details" db:"details"`
	Actor     string                 `json:"actor" db:"actor"`
}
