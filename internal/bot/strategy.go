package bot

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"polytrader/internal/models"
	"polytrader/pkg/utils"
)

// Параметры momentum-стратегии
const (
	momentumWindow        = 15 * time.Minute
	momentumThresholdPct  = 1.0 // минимальное движение цены для сигнала
	momentumSaturationPct = 3.0 // движение, дающее максимальную уверенность
)

// SignalSource генерирует кандидатов на сделку. Сигнал - только
// кандидат: хочет он стать ордером или нет, решает риск-шлюз.
type SignalSource interface {
	Signals(ctx context.Context) ([]models.TradeSignal, error)
}

// PriceChangeSource отдает изменение цены актива за окно в процентах
type PriceChangeSource interface {
	PriceChange(symbol string, window time.Duration) (float64, error)
}

// MarketCatalog отдает торгуемый рынок для актива
type MarketCatalog interface {
	TradableMarket(asset string) (*models.Market, error)
}

// MomentumStrategy - простая momentum-стратегия: движение спотовой
// цены актива за окно больше порога дает сигнал в направлении
// движения. Уверенность растет линейно от порога до насыщения.
type MomentumStrategy struct {
	prices  PriceChangeSource
	markets MarketCatalog
	logger  *zap.Logger
}

// NewMomentumStrategy создает новый экземпляр MomentumStrategy
func NewMomentumStrategy(prices PriceChangeSource, markets MarketCatalog, logger *zap.Logger) *MomentumStrategy {
	return &MomentumStrategy{
		prices:  prices,
		markets: markets,
		logger:  logger,
	}
}

// Signals возвращает сигналы по активам коррелированной корзины.
// Актив без торгуемого рынка или свежих цен молча пропускается -
// отсутствие сигнала не ошибка.
func (s *MomentumStrategy) Signals(ctx context.Context) ([]models.TradeSignal, error) {
	var signals []models.TradeSignal

	for _, asset := range models.CorrelatedAssets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		changePct, err := s.prices.PriceChange(asset, momentumWindow)
		if err != nil {
			s.logger.Debug("no price history for asset",
				zap.String("asset", asset),
				zap.Error(err))
			continue
		}

		direction, confidence := classify(changePct)
		if direction == models.DirectionNeutral {
			continue
		}

		market, err := s.markets.TradableMarket(asset)
		if err != nil {
			s.logger.Debug("no tradable market for asset",
				zap.String("asset", asset),
				zap.Error(err))
			continue
		}

		tokenID := market.YesTokenID
		if direction == models.DirectionDown {
			tokenID = market.NoTokenID
		}

		signals = append(signals, models.TradeSignal{
			Asset:      asset,
			MarketID:   market.ID,
			TokenID:    tokenID,
			Direction:  direction,
			Confidence: confidence,
			Source:     "momentum",
		})
	}

	return signals, nil
}

// classify превращает процентное движение цены в направление и
// уверенность [0..1]
func classify(changePct float64) (string, float64) {
	magnitude := math.Abs(changePct)
	if magnitude < momentumThresholdPct {
		return models.DirectionNeutral, 0
	}

	// Порог пройден - уверенность не ниже базовой
	confidence := utils.Clamp(
		(magnitude-momentumThresholdPct)/(momentumSaturationPct-momentumThresholdPct),
		0.25, 1)

	if changePct > 0 {
		return models.DirectionUp, confidence
	}
	return models.DirectionDown, confidence
}
