package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики контрольной плоскости
// ============================================================
//
// Использование:
// - Grafana дашборды для визуализации
// - Alertmanager для уведомлений о halt'ах и срабатываниях брейкеров

// ============ Состояние бота ============

// BotStateGauge - текущее состояние бота (one-hot: ровно одна единица)
var BotStateGauge = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "polytrader",
		Subsystem: "control",
		Name:      "bot_state",
		Help:      "Current bot state as one-hot gauge",
	},
	[]string{"state"},
)

// StateTransitions - количество переходов состояния
var StateTransitions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "polytrader",
		Subsystem: "control",
		Name:      "state_transitions_total",
		Help:      "Total number of bot state transitions",
	},
	[]string{"from", "to"},
)

// ============ Брейкеры ============

// BreakerTrippedGauge - взведен ли брейкер (1/0)
var BreakerTrippedGauge = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "polytrader",
		Subsystem: "control",
		Name:      "circuit_breaker_tripped",
		Help:      "Whether a circuit breaker is currently tripped",
	},
	[]string{"breaker"},
)

// BreakerTrips - количество срабатываний брейкеров
var BreakerTrips = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "polytrader",
		Subsystem: "control",
		Name:      "circuit_breaker_trips_total",
		Help:      "Total number of circuit breaker trips",
	},
	[]string{"breaker"},
)

// ============ Риск-шлюз ============

// RiskDecisions - решения риск-шлюза по исходу
var RiskDecisions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "polytrader",
		Subsystem: "risk",
		Name:      "decisions_total",
		Help:      "Total number of risk gate decisions",
	},
	[]string{"outcome", "deny_reason"},
)

// RiskCheckFailures - непройденные риск-проверки по кодам
var RiskCheckFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "polytrader",
		Subsystem: "risk",
		Name:      "check_failures_total",
		Help:      "Total number of failed risk checks by code",
	},
	[]string{"check"},
)

// DailyLossGauge - текущий дневной убыток в долларах
var DailyLossGauge = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "polytrader",
		Subsystem: "risk",
		Name:      "daily_loss_usd",
		Help:      "Current daily realized loss in USD",
	},
)

// ExposureGauge - экспозиция по активам в долларах
var ExposureGauge = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "polytrader",
		Subsystem: "risk",
		Name:      "exposure_usd",
		Help:      "Open position exposure in USD by asset",
	},
	[]string{"asset"},
)

// ============ Торговый воркер ============

// WorkerCycles - количество циклов торгового воркера
var WorkerCycles = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "polytrader",
		Subsystem: "worker",
		Name:      "cycles_total",
		Help:      "Total number of trading worker cycles",
	},
)

// WorkerCycleDuration - длительность цикла воркера
var WorkerCycleDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "polytrader",
		Subsystem: "worker",
		Name:      "cycle_duration_seconds",
		Help:      "Trading worker cycle duration in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	},
)

// OrdersPlaced - отправленные ордера по исходу
var OrdersPlaced = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "polytrader",
		Subsystem: "worker",
		Name:      "orders_placed_total",
		Help:      "Total number of orders placed by outcome",
	},
	[]string{"outcome"},
)

// ============ Reconciliation и health ============

// ReconMismatches - расхождения reconciliation по типам
var ReconMismatches = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "polytrader",
		Subsystem: "reconciliation",
		Name:      "mismatches_total",
		Help:      "Total number of reconciliation mismatches by kind",
	},
	[]string{"kind"},
)

// HealthCheckStatus - статус health-проверки компонента (1 = ok)
var HealthCheckStatus = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "polytrader",
		Subsystem: "health",
		Name:      "component_up",
		Help:      "Component health status (1 = ok, 0 = degraded or down)",
	},
	[]string{"component"},
)

// SetBotStateMetric выставляет one-hot gauge состояния
func SetBotStateMetric(current string, allStates []string) {
	for _, s := range allStates {
		v := 0.0
		if s == current {
			v = 1.0
		}
		BotStateGauge.WithLabelValues(s).Set(v)
	}
}
