package models

import "time"

// Состояния бота. Ровно одно состояние актуально в любой момент времени.
const (
	StateStopped             = "STOPPED"
	StateRunning             = "RUNNING"
	StatePaused              = "PAUSED"
	StateHaltedDailyLoss     = "HALTED_DAILY_LOSS"
	StateHaltedCircuitBreaker = "HALTED_CIRCUIT_BREAKER"
)

// BotState представляет одну запись цепочки состояний бота.
//
// Таблица bot_state - append-only цепочка версий: каждый переход
// вставляет новую строку с version = current+1. Уникальный индекс на
// version превращает вставку в compare-and-swap: два конкурирующих
// перехода не могут оба "выиграть".
type BotState struct {
	ID        int       `json:"id" db:"id"`
	Version   int       `json:"version" db:"version"`
	State     string    `json:"state" db:"state"`
	Reason    string    `json:"reason" db:"reason"`
	UpdatedBy string    `json:"updated_by" db:"updated_by"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ValidTransitions определяет допустимые переходы между состояниями.
//
// RUNNING из HALTED_* достижим только через Start с повторной проверкой
// всех precondition'ов (брейкеры, дневной лимит убытка).
// STOPPED достижим из любого состояния (Stop / EmergencyStop).
var ValidTransitions = map[string][]string{
	StateStopped:              {StateRunning},
	StateRunning:              {StatePaused, StateStopped, StateHaltedDailyLoss, StateHaltedCircuitBreaker},
	StatePaused:               {StateRunning, StateStopped, StateHaltedDailyLoss, StateHaltedCircuitBreaker},
	StateHaltedDailyLoss:      {StateRunning, StateStopped},
	StateHaltedCircuitBreaker: {StateRunning, StateStopped},
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsValidState проверяет что состояние известно системе
func IsValidState(s string) bool {
	_, ok := ValidTransitions[s]
	return ok
}

// IsHalted возвращает true для аварийных состояний
func IsHalted(s string) bool {
	return s == StateHaltedDailyLoss || s == StateHaltedCircuitBreaker
}

// StateInfo возвращает описание состояния для UI
func StateInfo(s string) string {
	switch s {
	case StateStopped:
		return "Bot is stopped - no trading"
	case StateRunning:
		return "Bot is actively trading"
	case StatePaused:
		return "Bot is paused - no new trades"
	case StateHaltedDailyLoss:
		return "Halted due to daily loss limit"
	case StateHaltedCircuitBreaker:
		return "Halted due to circuit breaker"
	default:
		return "Unknown state"
	}
}
