package bot

import (
	"context"
	"time"

	"go.uber.org/zap"

	"polytrader/internal/models"
	"polytrader/internal/service"
)

// Executor отправляет разрешенный риск-шлюзом ордер на площадку
type Executor interface {
	PlaceOrder(ctx context.Context, sig models.TradeSignal, sizeUSD float64, decisionID int64) (*models.Order, error)
	ClosePosition(ctx context.Context, p *models.Position, reason string) error
}

// PositionMarker обновляет текущие цены открытых позиций
type PositionMarker interface {
	MarkPositions(ctx context.Context) error
}

// TradingWorker - основной торговый цикл.
//
// Один цикл: дневной лимит убытка -> переоценка позиций -> выходы по
// TP/SL -> сигналы стратегии через риск-шлюз -> снимок риск-метрик.
// Воркер крутится всегда, но торгует только когда бот в RUNNING.
type TradingWorker struct {
	stateSvc service.StateServiceInterface
	riskSvc  *service.RiskService
	strategy SignalSource
	executor Executor
	marker   PositionMarker
	posRepo  service.PositionRepositoryInterface
	interval time.Duration
	logger   *zap.Logger
}

// NewTradingWorker создает новый экземпляр TradingWorker
func NewTradingWorker(
	stateSvc service.StateServiceInterface,
	riskSvc *service.RiskService,
	strategy SignalSource,
	executor Executor,
	marker PositionMarker,
	posRepo service.PositionRepositoryInterface,
	interval time.Duration,
	logger *zap.Logger,
) *TradingWorker {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &TradingWorker{
		stateSvc: stateSvc,
		riskSvc:  riskSvc,
		strategy: strategy,
		executor: executor,
		marker:   marker,
		posRepo:  posRepo,
		interval: interval,
		logger:   logger,
	}
}

// Run крутит торговый цикл до отмены контекста
func (w *TradingWorker) Run(ctx context.Context) {
	w.logger.Info("trading worker started", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("trading worker stopped")
			return
		case <-ticker.C:
			w.Cycle(ctx)
		}
	}
}

// Cycle выполняет один торговый цикл
func (w *TradingWorker) Cycle(ctx context.Context) {
	started := time.Now()
	WorkerCycles.Inc()
	defer func() {
		WorkerCycleDuration.Observe(time.Since(started).Seconds())
	}()

	// Лимит дневного убытка проверяется каждый цикл независимо от
	// состояния: halt должен случиться и пока бот в PAUSED
	if err := w.riskSvc.CheckDailyLoss(ctx); err != nil {
		w.logger.Error("daily loss check failed", zap.Error(err))
	}

	st, err := w.stateSvc.Current()
	if err != nil {
		w.logger.Error("state read failed", zap.Error(err))
		return
	}
	SetBotStateMetric(st.State, stateNames())

	if st.State != models.StateRunning {
		return
	}

	if w.marker != nil {
		if err := w.marker.MarkPositions(ctx); err != nil {
			w.logger.Warn("position mark failed", zap.Error(err))
		}
	}

	w.checkExits(ctx)
	w.processSignals(ctx)
	w.recordMetrics(ctx)
}

// checkExits закрывает позиции, дошедшие до take-profit / stop-loss
func (w *TradingWorker) checkExits(ctx context.Context) {
	positions, err := w.posRepo.GetOpen()
	if err != nil {
		w.logger.Error("open positions read failed", zap.Error(err))
		return
	}

	for _, p := range positions {
		exit, reason, err := w.riskSvc.ShouldExit(p)
		if err != nil {
			w.logger.Error("exit check failed", zap.Int("position_id", p.ID), zap.Error(err))
			continue
		}
		if !exit {
			continue
		}

		w.logger.Info("closing position",
			zap.Int("position_id", p.ID),
			zap.String("reason", reason))

		if err := w.executor.ClosePosition(ctx, p, reason); err != nil {
			w.logger.Error("position close failed",
				zap.Int("position_id", p.ID),
				zap.Error(err))
		}
	}
}

// processSignals прогоняет сигналы стратегии через риск-шлюз и
// исполняет разрешенные
func (w *TradingWorker) processSignals(ctx context.Context) {
	signals, err := w.strategy.Signals(ctx)
	if err != nil {
		w.logger.Error("strategy signals failed", zap.Error(err))
		return
	}

	for _, sig := range signals {
		verdict, err := w.riskSvc.Evaluate(ctx, sig)
		if err != nil {
			w.logger.Error("risk evaluation failed",
				zap.String("asset", sig.Asset),
				zap.Error(err))
			continue
		}

		if !verdict.Allowed {
			RiskDecisions.WithLabelValues("deny", verdict.DenyReason).Inc()
			RiskCheckFailures.WithLabelValues(verdict.DenyReason).Inc()
			continue
		}
		RiskDecisions.WithLabelValues("allow", "").Inc()

		order, err := w.executor.PlaceOrder(ctx, sig, verdict.SizeUSD, verdict.DecisionID)
		if err != nil {
			OrdersPlaced.WithLabelValues("error").Inc()
			w.logger.Error("order placement failed",
				zap.String("asset", sig.Asset),
				zap.Error(err))
			continue
		}
		OrdersPlaced.WithLabelValues(order.Status).Inc()

		if err := w.riskSvc.MarkExecuted(verdict.DecisionID, order.OrderID); err != nil {
			w.logger.Error("decision mark-executed failed",
				zap.Int64("decision_id", verdict.DecisionID),
				zap.Error(err))
		}
	}
}

// recordMetrics снимает риск-метрики и обновляет gauges
func (w *TradingWorker) recordMetrics(ctx context.Context) {
	snapshot, err := w.riskSvc.RecordRiskMetrics(ctx)
	if err != nil {
		w.logger.Error("risk metrics snapshot failed", zap.Error(err))
		return
	}

	DailyLossGauge.Set(snapshot.DailyLoss)
	ExposureGauge.WithLabelValues("BTC").Set(snapshot.BTCExposure)
	ExposureGauge.WithLabelValues("ETH").Set(snapshot.ETHExposure)
	ExposureGauge.WithLabelValues("SOL").Set(snapshot.SOLExposure)
}

// stateNames возвращает все состояния для one-hot gauge
func stateNames() []string {
	return []string{
		models.StateStopped,
		models.StateRunning,
		models.StatePaused,
		models.StateHaltedDailyLoss,
		models.StateHaltedCircuitBreaker,
	}
}
