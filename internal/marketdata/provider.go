package marketdata

import (
	"time"

	"polytrader/internal/service"
)

// Provider собирает ценовой фид и каталог рынков в один источник
// рыночных данных для риск-проверок
type Provider struct {
	feed    *PriceFeed
	markets *MarketService
}

var _ service.MarketDataProvider = (*Provider)(nil)

// NewProvider создает новый экземпляр Provider
func NewProvider(feed *PriceFeed, markets *MarketService) *Provider {
	return &Provider{feed: feed, markets: markets}
}

// Liquidity возвращает ликвидность стакана рынка
func (p *Provider) Liquidity(marketID int) (float64, error) {
	return p.markets.Liquidity(marketID)
}

// PriceAge возвращает возраст последней цены символа
func (p *Provider) PriceAge(symbol string) (time.Duration, error) {
	return p.feed.PriceAge(symbol)
}

// CloseTime возвращает время закрытия рынка
func (p *Provider) CloseTime(marketID int) (*time.Time, error) {
	return p.markets.CloseTime(marketID)
}
