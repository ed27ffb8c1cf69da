package bot

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"polytrader/internal/models"
	"polytrader/internal/service"
)

// BrokerReporter отдает authoritative-вид площадки на ордера и позиции
type BrokerReporter interface {
	OpenOrdersReport(ctx context.Context) ([]models.BrokerOrderReport, error)
	PositionsReport(ctx context.Context) ([]models.BrokerPositionReport, error)
}

// LocalOrderSource отдает локальные записи для сверки
type LocalOrderSource interface {
	GetActive() ([]*models.Order, error)
}

// ReconciliationMonitor сверяет локальные записи ордеров и позиций с
// отчетом площадки.
//
// Расхождение: локальный ордер в нетерминальном статусе, которого нет
// в отчете площадки, либо размер, отличающийся больше допуска. Каждое
// расхождение логируется отдельно; когда число расхождений в
// скользящем окне достигает порога, взводится reconciliation_mismatch.
type ReconciliationMonitor struct {
	orders     LocalOrderSource
	positions  service.PositionRepositoryInterface
	reporter   BrokerReporter
	breakerSvc service.BreakerServiceInterface
	auditSvc   service.AuditServiceInterface
	configSvc  service.ConfigServiceInterface
	interval   time.Duration
	logger     *zap.Logger

	mu         sync.Mutex
	mismatches []time.Time
}

// NewReconciliationMonitor создает новый экземпляр ReconciliationMonitor
func NewReconciliationMonitor(
	orders LocalOrderSource,
	positions service.PositionRepositoryInterface,
	reporter BrokerReporter,
	breakerSvc service.BreakerServiceInterface,
	auditSvc service.AuditServiceInterface,
	configSvc service.ConfigServiceInterface,
	interval time.Duration,
	logger *zap.Logger,
) *ReconciliationMonitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReconciliationMonitor{
		orders:     orders,
		positions:  positions,
		reporter:   reporter,
		breakerSvc: breakerSvc,
		auditSvc:   auditSvc,
		configSvc:  configSvc,
		interval:   interval,
		logger:     logger,
	}
}

// Run запускает цикл сверки до отмены контекста
func (m *ReconciliationMonitor) Run(ctx context.Context) {
	m.logger.Info("reconciliation monitor started", zap.Duration("interval", m.interval))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("reconciliation monitor stopped")
			return
		case <-ticker.C:
			if err := m.RunOnce(ctx); err != nil {
				m.logger.Error("reconciliation run failed", zap.Error(err))
			}
		}
	}
}

// RunOnce выполняет одну сверку
func (m *ReconciliationMonitor) RunOnce(ctx context.Context) error {
	tolerancePct, err := m.configSvc.GetFloat(models.ConfigSizeTolerancePct)
	if err != nil {
		return err
	}

	found := m.diffOrders(ctx, tolerancePct)

	posMismatches, err := m.diffPositions(ctx, tolerancePct)
	if err != nil {
		return err
	}
	found = append(found, posMismatches...)

	for _, mismatch := range found {
		m.recordMismatch(mismatch)
	}

	return m.maybeTrip(ctx)
}

// mismatch - одно обнаруженное расхождение
type mismatch struct {
	kind   string
	detail string
}

// diffOrders сверяет локальные активные ордера с отчетом площадки.
// Недоступность отчета сама по себе не расхождение - это проблема
// связи, за которую отвечают health-брейкеры.
func (m *ReconciliationMonitor) diffOrders(ctx context.Context, tolerancePct float64) []mismatch {
	local, err := m.orders.GetActive()
	if err != nil {
		m.logger.Error("local orders read failed", zap.Error(err))
		return nil
	}
	if len(local) == 0 {
		return nil
	}

	report, err := m.reporter.OpenOrdersReport(ctx)
	if err != nil {
		m.logger.Warn("broker order report unavailable", zap.Error(err))
		return nil
	}

	remote := make(map[string]models.BrokerOrderReport, len(report))
	for _, r := range report {
		remote[r.OrderID] = r
	}

	var found []mismatch
	for _, o := range local {
		if models.IsTerminalOrderStatus(o.Status) || o.OrderID == "" {
			continue
		}

		r, exists := remote[o.OrderID]
		if !exists {
			found = append(found, mismatch{
				kind:   "missing_order",
				detail: fmt.Sprintf("local order %s (%s) not in broker report", o.OrderID, o.Status),
			})
			continue
		}

		if sizeDrift(o.Size, r.Size, tolerancePct) {
			found = append(found, mismatch{
				kind:   "order_size_drift",
				detail: fmt.Sprintf("order %s local size %.4f vs broker %.4f", o.OrderID, o.Size, r.Size),
			})
		}
	}

	return found
}

// diffPositions сверяет открытые позиции с отчетом площадки
func (m *ReconciliationMonitor) diffPositions(ctx context.Context, tolerancePct float64) ([]mismatch, error) {
	local, err := m.positions.GetOpen()
	if err != nil {
		return nil, err
	}
	if len(local) == 0 {
		return nil, nil
	}

	report, err := m.reporter.PositionsReport(ctx)
	if err != nil {
		m.logger.Warn("broker position report unavailable", zap.Error(err))
		return nil, nil
	}

	remote := make(map[string]float64, len(report))
	for _, r := range report {
		remote[r.TokenID] = r.Size
	}

	var found []mismatch
	for _, p := range local {
		size, exists := remote[p.TokenID]
		if !exists {
			found = append(found, mismatch{
				kind:   "missing_position",
				detail: fmt.Sprintf("local position %s (size %.4f) not in broker report", p.TokenID, p.Size),
			})
			continue
		}
		if sizeDrift(p.Size, size, tolerancePct) {
			found = append(found, mismatch{
				kind:   "position_size_drift",
				detail: fmt.Sprintf("position %s local size %.4f vs broker %.4f", p.TokenID, p.Size, size),
			})
		}
	}

	return found, nil
}

// recordMismatch логирует расхождение и кладет его в скользящее окно
func (m *ReconciliationMonitor) recordMismatch(mm mismatch) {
	m.logger.Warn("reconciliation mismatch",
		zap.String("kind", mm.kind),
		zap.String("detail", mm.detail))

	ReconMismatches.WithLabelValues(mm.kind).Inc()

	m.auditSvc.Record(models.AuditReconMismatch, map[string]interface{}{
		"kind":   mm.kind,
		"detail": mm.detail,
	}, "system")

	m.mu.Lock()
	m.mismatches = append(m.mismatches, time.Now())
	m.mu.Unlock()
}

// maybeTrip взводит reconciliation_mismatch если расхождений в окне
// не меньше порога. Trip идемпотентен - повторное превышение порога
// при уже взведенном брейкере ничего не меняет.
func (m *ReconciliationMonitor) maybeTrip(ctx context.Context) error {
	windowMinutes, err := m.configSvc.GetInt(models.ConfigReconWindowMinutes)
	if err != nil {
		return err
	}
	threshold, err := m.configSvc.GetInt(models.ConfigReconMismatchThreshold)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-time.Duration(windowMinutes) * time.Minute)

	m.mu.Lock()
	kept := m.mismatches[:0]
	for _, ts := range m.mismatches {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	m.mismatches = kept
	count := len(kept)
	m.mu.Unlock()

	if count < threshold {
		return nil
	}

	reason := fmt.Sprintf("%d mismatches within %dm window (threshold %d)", count, windowMinutes, threshold)
	return m.breakerSvc.Trip(ctx, models.BreakerReconciliationMismatch, reason, "system")
}

// sizeDrift проверяет что размеры расходятся больше допуска
func sizeDrift(local, remote, tolerancePct float64) bool {
	if local == 0 && remote == 0 {
		return false
	}
	base := math.Max(math.Abs(local), math.Abs(remote))
	return math.Abs(local-remote)/base*100 > tolerancePct
}
