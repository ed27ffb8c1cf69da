package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"polytrader/internal/models"
	"polytrader/internal/repository"
	"polytrader/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoPrice - для символа еще нет ни одной цены
var ErrNoPrice = errors.New("no price observed for symbol")

// PriceStore - персистентность ценовых точек
type PriceStore interface {
	Insert(p *models.Price) error
	History(symbol string, minutes int) ([]*models.Price, error)
}

var _ PriceStore = (*repository.PriceRepository)(nil)

// PriceFeed опрашивает спотовый ценовой API и держит последнюю цену
// каждого актива в памяти. История пишется в БД - по ней стратегия
// считает momentum, а возраст последней цены питает проверку
// свежести данных.
type PriceFeed struct {
	baseURL    string
	httpClient *http.Client
	store      PriceStore
	interval   time.Duration
	logger     *zap.Logger

	mu     sync.RWMutex
	latest map[string]models.Price
}

// NewPriceFeed создает новый экземпляр PriceFeed
func NewPriceFeed(baseURL string, store PriceStore, interval time.Duration, logger *zap.Logger) *PriceFeed {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &PriceFeed{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		store:      store,
		interval:   interval,
		logger:     logger,
		latest:     make(map[string]models.Price),
	}
}

// Run опрашивает фид до отмены контекста
func (f *PriceFeed) Run(ctx context.Context) {
	f.logger.Info("price feed started", zap.Duration("interval", f.interval))

	// Первый опрос сразу, не дожидаясь тика
	f.Poll(ctx)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("price feed stopped")
			return
		case <-ticker.C:
			f.Poll(ctx)
		}
	}
}

// Poll забирает спотовые цены всех активов корзины
func (f *PriceFeed) Poll(ctx context.Context) {
	for _, asset := range models.CorrelatedAssets {
		price, err := f.fetchSpot(ctx, asset)
		if err != nil {
			f.logger.Warn("spot price fetch failed",
				zap.String("asset", asset),
				zap.Error(err))
			continue
		}

		point := models.Price{
			Symbol:    asset,
			Price:     price,
			Timestamp: time.Now().UTC(),
			Source:    "coinbase",
		}

		f.mu.Lock()
		f.latest[asset] = point
		f.mu.Unlock()

		if err := f.store.Insert(&point); err != nil {
			f.logger.Error("price insert failed",
				zap.String("asset", asset),
				zap.Error(err))
		}
	}
}

// fetchSpot запрашивает спотовую цену актива в USD
func (f *PriceFeed) fetchSpot(ctx context.Context, asset string) (float64, error) {
	url := fmt.Sprintf("%s/v2/prices/%s-USD/spot", f.baseURL, asset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("spot price: status %d", resp.StatusCode)
	}

	var payload struct {
		Data struct {
			Amount string `json:"amount"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode spot price: %w", err)
	}

	return strconv.ParseFloat(payload.Data.Amount, 64)
}

// Latest возвращает последнюю наблюдавшуюся цену символа
func (f *PriceFeed) Latest(symbol string) (models.Price, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	p, ok := f.latest[symbol]
	if !ok {
		return models.Price{}, fmt.Errorf("%w: %s", ErrNoPrice, symbol)
	}
	return p, nil
}

// PriceAge возвращает возраст последней цены символа
func (f *PriceFeed) PriceAge(symbol string) (time.Duration, error) {
	p, err := f.Latest(symbol)
	if err != nil {
		return 0, err
	}
	return time.Since(p.Timestamp), nil
}

// PriceChange возвращает изменение цены за окно в процентах,
// посчитанное по сохраненной истории
func (f *PriceFeed) PriceChange(symbol string, window time.Duration) (float64, error) {
	minutes := int(window.Minutes())
	if minutes < 1 {
		minutes = 1
	}

	history, err := f.store.History(symbol, minutes)
	if err != nil {
		return 0, err
	}
	if len(history) < 2 {
		return 0, fmt.Errorf("%w: %s (need at least 2 points)", ErrNoPrice, symbol)
	}

	first := history[0].Price
	last := history[len(history)-1].Price
	if first <= 0 {
		return 0, fmt.Errorf("invalid first price %.4f for %s", first, symbol)
	}

	return utils.ChangePct(first, last), nil
}
