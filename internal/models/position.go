package models

import "time"

// Статусы позиции
const (
	PositionStatusOpen   = "open"
	PositionStatusClosed = "closed"
)

// Стороны позиции на prediction-рынке
const (
	PositionSideYes = "YES"
	PositionSideNo  = "NO"
)

// Position - открытая или закрытая позиция
type Position struct {
	ID            int        `json:"id" db:"id"`
	MarketID      int        `json:"market_id" db:"market_id"`
	TokenID       string     `json:"token_id" db:"token_id"`
	Side          string     `json:"side" db:"side"`
	Size          float64    `json:"size" db:"size"`
	AvgEntryPrice float64    `json:"avg_entry_price" db:"avg_entry_price"`
	CurrentPrice  float64    `json:"current_price" db:"current_price"`
	UnrealizedPnL float64    `json:"unrealized_pnl" db:"unrealized_pnl"`
	RealizedPnL   float64    `json:"realized_pnl" db:"realized_pnl"`
	OpenedAt      time.Time  `json:"opened_at" db:"opened_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
	ClosedAt      *time.Time `json:"closed_at" db:"closed_at"`
	Status        string     `json:"status" db:"status"`
}

// ExposureUSD возвращает текущую экспозицию позиции в долларах
func (p *Position) ExposureUSD() float64 {
	return p.Size * p.AvgEntryPrice
}
