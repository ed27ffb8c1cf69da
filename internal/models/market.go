package models

import "time"

// Коррелированная корзина крипто-активов. Суммарная экспозиция по
// корзине ограничена correlation_max_basket_pct от портфеля.
var CorrelatedAssets = []string{"BTC", "ETH", "SOL"}

// Market - рынок на prediction-площадке
type Market struct {
	ID          int        `json:"id" db:"id"`
	ConditionID string     `json:"condition_id" db:"condition_id"`
	Slug        string     `json:"slug" db:"slug"`
	Title       string     `json:"title" db:"title"`
	Asset       string     `json:"asset" db:"asset"`
	EndDate     *time.Time `json:"end_date" db:"end_date"`
	Active      bool       `json:"active" db:"active"`
	YesTokenID  string     `json:"yes_token_id" db:"yes_token_id"`
	NoTokenID   string     `json:"no_token_id" db:"no_token_id"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// MarketSnapshot - снимок стакана рынка (ликвидность для риск-проверок)
type MarketSnapshot struct {
	ID        int       `json:"id" db:"id"`
	MarketID  int       `json:"market_id" db:"market_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	BestBid   float64   `json:"best_bid" db:"best_bid"`
	BestAsk   float64   `json:"best_ask" db:"best_ask"`
	BidDepth  float64   `json:"bid_depth" db:"bid_depth"`
	AskDepth  float64   `json:"ask_depth" db:"ask_depth"`
}

// LiquidityUSD возвращает суммарную глубину стакана в долларах
func (s *MarketSnapshot) LiquidityUSD() float64 {
	return s.BidDepth + s.AskDepth
}

// Price - одна точка ценовых данных от внешнего фида
type Price struct {
	ID        int       `json:"id" db:"id"`
	Symbol    string    `json:"symbol" db:"symbol"`
	Price     float64   `json:"price" db:"price"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Source    string    `json:"source" db:"source"`
}
