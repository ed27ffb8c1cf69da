package models

// TradeSignal - сигнал стратегии до прохождения риск-проверок
type TradeSignal struct {
	Asset      string  `json:"asset"`
	MarketID   int     `json:"market_id"`
	TokenID    string  `json:"token_id"`
	Direction  string  `json:"direction"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}
