package bot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"polytrader/internal/models"
	"polytrader/internal/service"
	"polytrader/pkg/utils"
)

// Компоненты, за которыми следит HealthMonitor
const (
	ComponentPriceFeed = "price_feed"
	ComponentBroker    = "broker"
	ComponentDatabase  = "database"
)

// Сколько подряд неудачных heartbeat'ов площадки считается обрывом
const brokerFailureThreshold = 3

// Heartbeat проверяет живость внешней зависимости
type Heartbeat interface {
	Ping(ctx context.Context) error
}

// HealthMonitor следит за свежестью цен и связью с площадкой.
//
// Именно он - источник истины для условий брейкеров stale_data и
// websocket_disconnect: сами брейкеры лишь фиксируют факт, который
// монитор обнаружил. Каждая проверка пишется в health_checks.
type HealthMonitor struct {
	marketData  service.MarketDataProvider
	broker      Heartbeat
	db          Heartbeat
	metricsRepo service.MetricsRepositoryInterface
	breakerSvc  service.BreakerServiceInterface
	configSvc   service.ConfigServiceInterface
	interval    time.Duration
	logger      *zap.Logger

	brokerFailures int
}

// NewHealthMonitor создает новый экземпляр HealthMonitor
func NewHealthMonitor(
	marketData service.MarketDataProvider,
	broker Heartbeat,
	db Heartbeat,
	metricsRepo service.MetricsRepositoryInterface,
	breakerSvc service.BreakerServiceInterface,
	configSvc service.ConfigServiceInterface,
	interval time.Duration,
	logger *zap.Logger,
) *HealthMonitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &HealthMonitor{
		marketData:  marketData,
		broker:      broker,
		db:          db,
		metricsRepo: metricsRepo,
		breakerSvc:  breakerSvc,
		configSvc:   configSvc,
		interval:    interval,
		logger:      logger,
	}
}

// Run запускает цикл health-проверок до отмены контекста
func (m *HealthMonitor) Run(ctx context.Context) {
	m.logger.Info("health monitor started", zap.Duration("interval", m.interval))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("health monitor stopped")
			return
		case <-ticker.C:
			m.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один раунд проверок
func (m *HealthMonitor) RunOnce(ctx context.Context) {
	m.checkPriceFeed(ctx)
	m.checkBroker(ctx)
	m.checkDatabase(ctx)
}

// checkPriceFeed проверяет свежесть ценового фида. Возраст цены выше
// порога взводит stale_data.
func (m *HealthMonitor) checkPriceFeed(ctx context.Context) {
	thresholdSec, err := m.configSvc.GetInt(models.ConfigStaleDataThresholdSec)
	if err != nil {
		m.logger.Error("stale threshold read failed", zap.Error(err))
		return
	}
	threshold := time.Duration(thresholdSec) * time.Second

	var oldest time.Duration
	var feedErr error
	for _, asset := range models.CorrelatedAssets {
		age, err := m.marketData.PriceAge(asset)
		if err != nil {
			feedErr = err
			break
		}
		if age > oldest {
			oldest = age
		}
	}

	switch {
	case feedErr != nil:
		m.record(ComponentPriceFeed, models.HealthStatusDown, feedErr.Error(), 0)
		m.trip(ctx, models.BreakerStaleData, fmt.Sprintf("price feed unavailable: %v", feedErr))
	case oldest > threshold:
		msg := fmt.Sprintf("oldest price age %s > threshold %s",
			utils.FormatDuration(oldest), utils.FormatDuration(threshold))
		m.record(ComponentPriceFeed, models.HealthStatusDegraded, msg, int(oldest.Milliseconds()))
		m.trip(ctx, models.BreakerStaleData, msg)
	default:
		m.record(ComponentPriceFeed, models.HealthStatusOK, "", int(oldest.Milliseconds()))
	}
}

// checkBroker проверяет heartbeat площадки. Одиночный сбой - еще не
// обрыв; брейкер взводится после серии подряд.
func (m *HealthMonitor) checkBroker(ctx context.Context) {
	started := time.Now()
	err := m.broker.Ping(ctx)
	latency := int(time.Since(started).Milliseconds())

	if err != nil {
		m.brokerFailures++
		m.record(ComponentBroker, models.HealthStatusDown, err.Error(), latency)

		if m.brokerFailures >= brokerFailureThreshold {
			m.trip(ctx, models.BreakerWebsocketDisconnect,
				fmt.Sprintf("%d consecutive heartbeat failures: %v", m.brokerFailures, err))
		}
		return
	}

	m.brokerFailures = 0
	m.record(ComponentBroker, models.HealthStatusOK, "", latency)
}

// checkDatabase проверяет доступность БД. Брейкера для БД нет:
// без БД ни halt, ни аудит все равно не запишутся.
func (m *HealthMonitor) checkDatabase(ctx context.Context) {
	if m.db == nil {
		return
	}

	started := time.Now()
	err := m.db.Ping(ctx)
	latency := int(time.Since(started).Milliseconds())

	if err != nil {
		m.record(ComponentDatabase, models.HealthStatusDown, err.Error(), latency)
		return
	}
	m.record(ComponentDatabase, models.HealthStatusOK, "", latency)
}

// record пишет результат проверки в БД и метрики
func (m *HealthMonitor) record(component, status, message string, latencyMS int) {
	up := 0.0
	if status == models.HealthStatusOK {
		up = 1.0
	}
	HealthCheckStatus.WithLabelValues(component).Set(up)

	check := &models.HealthCheck{
		Component: component,
		Status:    status,
		Message:   message,
		LatencyMS: latencyMS,
		CheckedAt: time.Now().UTC(),
	}
	if err := m.metricsRepo.InsertHealthCheck(check); err != nil {
		m.logger.Error("health check write failed",
			zap.String("component", component),
			zap.Error(err))
	}
}

// trip взводит брейкер (идемпотентно)
func (m *HealthMonitor) trip(ctx context.Context, breaker, reason string) {
	if err := m.breakerSvc.Trip(ctx, breaker, reason, "system"); err != nil {
		m.logger.Error("breaker trip failed",
			zap.String("breaker", breaker),
			zap.Error(err))
	}
}
