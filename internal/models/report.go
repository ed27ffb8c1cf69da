package models

// BrokerOrderReport - ордер в отчете площадки (authoritative view)
type BrokerOrderReport struct {
	OrderID string  `json:"order_id"`
	TokenID string  `json:"token_id"`
	Side    string  `json:"side"`
	Price   float64 `json:"price"`
	Size    float64 `json:"size"`
}

// BrokerPositionReport - позиция в отчете площадки
type BrokerPositionReport struct {
	TokenID string  `json:"token_id"`
	Size    float64 `json:"size"`
}
