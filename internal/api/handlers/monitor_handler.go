package handlers

import (
	"errors"
	"net/http"
	"time"

	"polytrader/internal/models"
	"polytrader/internal/repository"
	"polytrader/internal/service"
)

// DecisionSource отдает журнал решений риск-шлюза
type DecisionSource interface {
	List(limit int) ([]*models.Decision, error)
}

var _ DecisionSource = (*repository.DecisionRepository)(nil)

// OrderLister отдает журнал ордеров
type OrderLister interface {
	List(limit int) ([]*models.Order, error)
	GetActive() ([]*models.Order, error)
}

var _ OrderLister = (*repository.OrderRepository)(nil)

// MonitorHandler обрабатывает read-only запросы наблюдаемости:
// решения, позиции, ордера, audit log, риск-метрики и health
type MonitorHandler struct {
	decisions DecisionSource
	orders    OrderLister
	positions service.PositionRepositoryInterface
	metrics   service.MetricsRepositoryInterface
	auditSvc  service.AuditServiceInterface
	pnl       service.PnLRepositoryInterface
}

// NewMonitorHandler создает новый экземпляр MonitorHandler
func NewMonitorHandler(
	decisions DecisionSource,
	orders OrderLister,
	positions service.PositionRepositoryInterface,
	metrics service.MetricsRepositoryInterface,
	auditSvc service.AuditServiceInterface,
	pnl service.PnLRepositoryInterface,
) *MonitorHandler {
	return &MonitorHandler{
		decisions: decisions,
		orders:    orders,
		positions: positions,
		metrics:   metrics,
		auditSvc:  auditSvc,
		pnl:       pnl,
	}
}

// GetDecisions обрабатывает GET /api/v1/decisions
func (h *MonitorHandler) GetDecisions(w http.ResponseWriter, r *http.Request) {
	decisions, err := h.decisions.List(queryLimit(r, 50, 500))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, decisions)
}

// GetPositions обрабатывает GET /api/v1/positions
func (h *MonitorHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.positions.GetOpen()
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, positions)
}

// GetOrders обрабатывает GET /api/v1/orders (?active=true - только
// активные)
func (h *MonitorHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	var (
		orders []*models.Order
		err    error
	)
	if r.URL.Query().Get("active") == "true" {
		orders, err = h.orders.GetActive()
	} else {
		orders, err = h.orders.List(queryLimit(r, 50, 500))
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}

// GetAuditLog обрабатывает GET /api/v1/audit-log
func (h *MonitorHandler) GetAuditLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.auditSvc.List(r.URL.Query().Get("event_type"), queryLimit(r, 100, 500))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entries)
}

// GetDailyPnL обрабатывает GET /api/v1/pnl/daily - агрегат текущего
// торгового дня (UTC). Для дня без сделок возвращается нулевой агрегат.
func (h *MonitorHandler) GetDailyPnL(w http.ResponseWriter, r *http.Request) {
	day, err := h.pnl.GetDay(time.Now())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, day)
}

// GetRiskMetrics обрабатывает GET /api/v1/risk/metrics
func (h *MonitorHandler) GetRiskMetrics(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.metrics.LatestRiskMetrics()
	if err != nil {
		if errors.Is(err, repository.ErrNoRiskMetrics) {
			respondWithJSON(w, http.StatusOK, &models.RiskMetricsSnapshot{})
			return
		}
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, snapshot)
}

// GetHealth обрабатывает GET /api/v1/health - последние проверки
// компонентов и сводный статус
func (h *MonitorHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	checks, err := h.metrics.LatestHealthChecks()
	if err != nil {
		handleServiceError(w, err)
		return
	}

	overall := models.HealthStatusOK
	for _, c := range checks {
		switch c.Status {
		case models.HealthStatusDown:
			overall = models.HealthStatusDown
		case models.HealthStatusDegraded:
			if overall == models.HealthStatusOK {
				overall = models.HealthStatusDegraded
			}
		}
	}

	code := http.StatusOK
	if overall == models.HealthStatusDown {
		code = http.StatusServiceUnavailable
	}

	respondWithJSON(w, code, map[string]interface{}{
		"status":     overall,
		"components": checks,
	})
}
