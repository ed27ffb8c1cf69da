package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"polytrader/internal/models"
	"polytrader/internal/repository"
	"polytrader/pkg/retry"
)

// MarketStore - персистентность рынков
type MarketStore interface {
	Upsert(m *models.Market) (int, error)
	GetByID(id int) (*models.Market, error)
	GetActive() ([]*models.Market, error)
}

var _ MarketStore = (*repository.MarketRepository)(nil)

// BookSource отдает снимок стакана токена. Реализуется
// execution-клиентом.
type BookSource interface {
	Book(ctx context.Context, tokenID string) (*models.MarketSnapshot, error)
}

// MarketService находит торгуемые up/down рынки на discovery API и
// держит их каталог в БД
type MarketService struct {
	gammaURL   string
	httpClient *http.Client
	store      MarketStore
	book       BookSource
	interval   time.Duration
	logger     *zap.Logger
}

// NewMarketService создает новый экземпляр MarketService
func NewMarketService(gammaURL string, store MarketStore, book BookSource, interval time.Duration, logger *zap.Logger) *MarketService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &MarketService{
		gammaURL:   gammaURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		store:      store,
		book:       book,
		interval:   interval,
		logger:     logger,
	}
}

// Run периодически обновляет каталог рынков до отмены контекста
func (s *MarketService) Run(ctx context.Context) {
	s.logger.Info("market discovery started", zap.Duration("interval", s.interval))

	if err := s.Discover(ctx); err != nil {
		s.logger.Error("market discovery failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("market discovery stopped")
			return
		case <-ticker.C:
			if err := s.Discover(ctx); err != nil {
				s.logger.Error("market discovery failed", zap.Error(err))
			}
		}
	}
}

// gammaMarket - рынок в ответе discovery API
type gammaMarket struct {
	ConditionID  string   `json:"conditionId"`
	Slug         string   `json:"slug"`
	Question     string   `json:"question"`
	EndDate      string   `json:"endDate"`
	Active       bool     `json:"active"`
	Closed       bool     `json:"closed"`
	ClobTokenIDs []string `json:"clobTokenIds"`
}

// Discover забирает активные рынки и сохраняет те, что относятся к
// активам корзины
func (s *MarketService) Discover(ctx context.Context) error {
	url := s.gammaURL + "/markets?active=true&closed=false&limit=200"

	cfg := retry.DefaultConfig()
	cfg.RetryIf = retry.RetryIfNotContext

	raw, err := retry.DoWithResult(ctx, func() ([]gammaMarket, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("market discovery: status %d", resp.StatusCode)
		}

		var markets []gammaMarket
		if err := json.NewDecoder(resp.Body).Decode(&markets); err != nil {
			return nil, fmt.Errorf("decode markets: %w", err)
		}
		return markets, nil
	}, cfg)
	if err != nil {
		return err
	}

	saved := 0
	for _, gm := range raw {
		asset := assetFromSlug(gm.Slug)
		if asset == "" || len(gm.ClobTokenIDs) < 2 {
			continue
		}

		market := &models.Market{
			ConditionID: gm.ConditionID,
			Slug:        gm.Slug,
			Title:       gm.Question,
			Asset:       asset,
			Active:      gm.Active && !gm.Closed,
			YesTokenID:  gm.ClobTokenIDs[0],
			NoTokenID:   gm.ClobTokenIDs[1],
		}
		if endDate, err := time.Parse(time.RFC3339, gm.EndDate); err == nil {
			market.EndDate = &endDate
		}

		if _, err := s.store.Upsert(market); err != nil {
			s.logger.Error("market upsert failed",
				zap.String("slug", gm.Slug),
				zap.Error(err))
			continue
		}
		saved++
	}

	s.logger.Info("markets discovered", zap.Int("saved", saved), zap.Int("scanned", len(raw)))
	return nil
}

// assetFromSlug определяет актив корзины по slug рынка
func assetFromSlug(slug string) string {
	lower := strings.ToLower(slug)
	for _, asset := range models.CorrelatedAssets {
		if strings.Contains(lower, strings.ToLower(asset)) ||
			strings.Contains(lower, assetFullName(asset)) {
			return asset
		}
	}
	return ""
}

func assetFullName(asset string) string {
	switch asset {
	case "BTC":
		return "bitcoin"
	case "ETH":
		return "ethereum"
	case "SOL":
		return "solana"
	}
	return ""
}

// TradableMarket возвращает активный рынок актива с ближайшей датой
// закрытия в будущем
func (s *MarketService) TradableMarket(asset string) (*models.Market, error) {
	markets, err := s.store.GetActive()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var best *models.Market
	for _, m := range markets {
		if m.Asset != asset {
			continue
		}
		if m.EndDate != nil && m.EndDate.Before(now) {
			continue
		}
		if best == nil {
			best = m
			continue
		}
		if m.EndDate != nil && (best.EndDate == nil || m.EndDate.Before(*best.EndDate)) {
			best = m
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w: no tradable market for %s", repository.ErrMarketNotFound, asset)
	}
	return best, nil
}

// Liquidity возвращает суммарную глубину стакана YES-токена рынка
func (s *MarketService) Liquidity(marketID int) (float64, error) {
	market, err := s.store.GetByID(marketID)
	if err != nil {
		return 0, err
	}

	snap, err := s.book.Book(context.Background(), market.YesTokenID)
	if err != nil {
		return 0, fmt.Errorf("book for market %d: %w", marketID, err)
	}
	return snap.LiquidityUSD(), nil
}

// CloseTime возвращает время закрытия рынка (nil если не задано)
func (s *MarketService) CloseTime(marketID int) (*time.Time, error) {
	market, err := s.store.GetByID(marketID)
	if err != nil {
		return nil, err
	}
	return market.EndDate, nil
}
