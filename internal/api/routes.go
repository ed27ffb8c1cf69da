package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"polytrader/internal/api/handlers"
	"polytrader/internal/api/middleware"
	"polytrader/internal/service"
	"polytrader/internal/websocket"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	StateService   service.StateServiceInterface
	BreakerService service.BreakerServiceInterface
	ConfigService  service.ConfigServiceInterface
	AuditService   service.AuditServiceInterface
	Decisions      handlers.DecisionSource
	Orders         handlers.OrderLister
	Positions      service.PositionRepositoryInterface
	Metrics        service.MetricsRepositoryInterface
	PnL            service.PnLRepositoryInterface
	Hub            *websocket.Hub
	AdminTokenHash string
	Logger         *zap.Logger
}

// SetupRoutes настраивает HTTP маршруты.
//
// Структура:
//
// /api/v1/
//
//	├── /bot/
//	│   ├── GET  /state - текущее состояние
//	│   ├── GET  /state/history - история переходов
//	│   ├── GET  /states - справочник состояний
//	│   ├── POST /start | /pause | /stop - управление
//	│   └── POST /emergency-stop - аварийная остановка
//	├── /circuit-breakers/
//	│   ├── GET  / - список брейкеров
//	│   └── POST /{name}/reset | /{name}/trip
//	├── /config/
//	│   ├── GET   / - все параметры
//	│   └── PATCH /{key} - обновить параметр
//	├── /decisions, /positions, /orders, /audit-log, /pnl/daily
//	├── /risk/metrics
//	└── /health
//
// /ws/stream - события в реальном времени
// /metrics   - Prometheus
//
// Управляющие POST/PATCH защищены bearer-токеном (AdminAuth);
// read-only endpoints открыты для дашборда.
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.Logging(deps.Logger))
	router.Use(middleware.CORS)
	router.Use(middleware.Actor)

	botHandler := handlers.NewBotHandler(deps.StateService)
	breakerHandler := handlers.NewBreakerHandler(deps.BreakerService)
	configHandler := handlers.NewConfigHandler(deps.ConfigService)
	monitorHandler := handlers.NewMonitorHandler(
		deps.Decisions, deps.Orders, deps.Positions,
		deps.Metrics, deps.AuditService, deps.PnL)

	api := router.PathPrefix("/api/v1").Subrouter()

	// Read-only endpoints
	api.HandleFunc("/bot/state", botHandler.GetState).Methods("GET")
	api.HandleFunc("/bot/state/history", botHandler.GetHistory).Methods("GET")
	api.HandleFunc("/bot/states", botHandler.StateInfo).Methods("GET")
	api.HandleFunc("/circuit-breakers", breakerHandler.GetBreakers).Methods("GET")
	api.HandleFunc("/config", configHandler.GetConfig).Methods("GET")
	api.HandleFunc("/decisions", monitorHandler.GetDecisions).Methods("GET")
	api.HandleFunc("/positions", monitorHandler.GetPositions).Methods("GET")
	api.HandleFunc("/orders", monitorHandler.GetOrders).Methods("GET")
	api.HandleFunc("/audit-log", monitorHandler.GetAuditLog).Methods("GET")
	api.HandleFunc("/pnl/daily", monitorHandler.GetDailyPnL).Methods("GET")
	api.HandleFunc("/risk/metrics", monitorHandler.GetRiskMetrics).Methods("GET")
	api.HandleFunc("/health", monitorHandler.GetHealth).Methods("GET")

	// Управляющие endpoints
	admin := api.NewRoute().Subrouter()
	admin.Use(middleware.AdminAuth(deps.AdminTokenHash))
	admin.HandleFunc("/bot/start", botHandler.Start).Methods("POST")
	admin.HandleFunc("/bot/pause", botHandler.Pause).Methods("POST")
	admin.HandleFunc("/bot/stop", botHandler.Stop).Methods("POST")
	admin.HandleFunc("/bot/emergency-stop", botHandler.EmergencyStop).Methods("POST")
	admin.HandleFunc("/circuit-breakers/{name}/reset", breakerHandler.ResetBreaker).Methods("POST")
	admin.HandleFunc("/circuit-breakers/{name}/trip", breakerHandler.TripBreaker).Methods("POST")
	admin.HandleFunc("/config/{key}", configHandler.UpdateConfig).Methods("PATCH")

	// WebSocket события
	if deps.Hub != nil {
		router.HandleFunc("/ws/stream", deps.Hub.ServeWS)
	}

	// Prometheus
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Liveness probe
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
