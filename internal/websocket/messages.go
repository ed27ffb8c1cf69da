package websocket

import "time"

// Типы событий, уходящих подписчикам дашборда
const (
	// EventStateChange - переход состояния бота
	EventStateChange = "state_change"

	// EventBreakerTrip - взведение circuit breaker
	EventBreakerTrip = "breaker_trip"

	// EventBreakerReset - сброс circuit breaker
	EventBreakerReset = "breaker_reset"

	// EventConfigUpdate - изменение параметра конфигурации
	EventConfigUpdate = "config_update"

	// EventDecision - решение риск-шлюза (allow и deny)
	EventDecision = "decision"
)

// Event - событие для подписчиков. Payload сериализуется как есть.
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}
