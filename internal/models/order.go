package models

import "time"

// Статусы ордера
const (
	OrderStatusPending   = "pending"
	OrderStatusOpen      = "open"
	OrderStatusFilled    = "filled"
	OrderStatusCancelled = "cancelled"
	OrderStatusRejected  = "rejected"
	OrderStatusError     = "error"
	OrderStatusSimulated = "simulated"
)

// IsTerminalOrderStatus возвращает true если ордер больше не активен
// на площадке. Не-терминальный локальный ордер, отсутствующий в отчете
// площадки, считается reconciliation mismatch.
func IsTerminalOrderStatus(s string) bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusError, OrderStatusSimulated:
		return true
	}
	return false
}

// Стороны ордера
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Order - ордер, отправленный (или подготовленный к отправке) на площадку
type Order struct {
	ID           int        `json:"id" db:"id"`
	OrderID      string     `json:"order_id" db:"order_id"`
	MarketID     int        `json:"market_id" db:"market_id"`
	DecisionID   *int       `json:"decision_id" db:"decision_id"`
	Side         string     `json:"side" db:"side"`
	TokenID      string     `json:"token_id" db:"token_id"`
	Price        float64    `json:"price" db:"price"`
	Size         float64    `json:"size" db:"size"`
	FilledSize   float64    `json:"filled_size" db:"filled_size"`
	Status       string     `json:"status" db:"status"`
	OrderType    string     `json:"order_type" db:"order_type"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	FilledAt     *time.Time `json:"filled_at" db:"filled_at"`
	CancelledAt  *time.Time `json:"cancelled_at" db:"cancelled_at"`
	ErrorMessage string     `json:"error_message" db:"error_message"`
}

// Trade - исполненная сделка (fill)
type Trade struct {
	ID        int       `json:"id" db:"id"`
	TradeID   string    `json:"trade_id" db:"trade_id"`
	OrderID   int       `json:"order_id" db:"order_id"`
	MarketID  int       `json:"market_id" db:"market_id"`
	Side      string    `json:"side" db:"side"`
	Price     float64   `json:"price" db:"price"`
	Size      float64   `json:"size" db:"size"`
	Fee       float64   `json:"fee" db:"fee"`
	Asset     string    `json:"asset" db:"asset"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}
