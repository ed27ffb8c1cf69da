package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"polytrader/internal/api"
	"polytrader/internal/bot"
	"polytrader/internal/config"
	"polytrader/internal/execution"
	"polytrader/internal/marketdata"
	"polytrader/internal/models"
	"polytrader/internal/repository"
	"polytrader/internal/service"
	"polytrader/internal/websocket"
	"polytrader/pkg/utils"
)

func main() {
	// .env необязателен: в контейнере конфиг приходит окружением
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("config load failed: " + err.Error())
	}

	logger := utils.InitLogger(utils.LogConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer logger.Sync()

	logger.Info("starting polytrader",
		zap.String("db", cfg.Database.DSNWithoutPassword()),
		zap.Int("port", cfg.Server.Port))

	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := repository.EnsureSchema(ctx, db); err != nil {
		logger.Fatal("schema migration failed", zap.Error(err))
	}

	// ============ Репозитории ============

	stateRepo := repository.NewStateRepository(db)
	breakerRepo := repository.NewBreakerRepository(db)
	configRepo := repository.NewConfigRepository(db)
	decisionRepo := repository.NewDecisionRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	positionRepo := repository.NewPositionRepository(db)
	marketRepo := repository.NewMarketRepository(db)
	priceRepo := repository.NewPriceRepository(db)
	pnlRepo := repository.NewPnLRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	metricsRepo := repository.NewMetricsRepository(db)

	if err := breakerRepo.Seed(); err != nil {
		logger.Fatal("breaker seed failed", zap.Error(err))
	}
	if err := configRepo.Seed(models.DefaultConfig()); err != nil {
		logger.Fatal("config seed failed", zap.Error(err))
	}

	// ============ WebSocket hub ============

	hub := websocket.NewHub(logger.Named("ws"))
	go hub.Run()
	defer hub.Stop()

	// ============ Сервисы ============

	auditSvc := service.NewAuditService(auditRepo, logger.Named("audit"))
	configSvc := service.NewConfigService(configRepo, auditSvc, hub, logger.Named("config"))
	breakerSvc := service.NewBreakerService(breakerRepo, auditSvc, hub, logger.Named("breaker"))

	execClient := execution.NewClient(
		cfg.Exchange.CLOBBaseURL,
		execution.Credentials{
			Address:    cfg.Exchange.Address,
			APIKey:     cfg.Exchange.APIKey,
			Secret:     cfg.Exchange.Secret,
			Passphrase: cfg.Exchange.Passphrase,
		},
		orderRepo,
		positionRepo,
		pnlRepo,
		breakerSvc,
		auditSvc,
		logger.Named("execution"),
	)

	stateSvc := service.NewStateService(
		stateRepo, breakerRepo, pnlRepo, configSvc, auditSvc,
		execClient, hub, logger.Named("state"))
	breakerSvc.SetStateService(stateSvc)

	// ============ Рыночные данные ============

	priceFeed := marketdata.NewPriceFeed(
		cfg.Exchange.SpotPriceURL, priceRepo,
		cfg.Bot.PriceFeedInterval, logger.Named("pricefeed"))
	marketSvc := marketdata.NewMarketService(
		cfg.Exchange.GammaBaseURL, marketRepo, execClient,
		cfg.Bot.DiscoveryInterval, logger.Named("markets"))
	marketData := marketdata.NewProvider(priceFeed, marketSvc)

	riskSvc := service.NewRiskService(
		stateRepo, breakerRepo, positionRepo, pnlRepo, decisionRepo,
		metricsRepo, configSvc, breakerSvc, auditSvc, marketData,
		hub, logger.Named("risk"))

	// ============ Фоновые циклы ============

	strategy := bot.NewMomentumStrategy(priceFeed, marketSvc, logger.Named("strategy"))
	worker := bot.NewTradingWorker(
		stateSvc, riskSvc, strategy, execClient, execClient,
		positionRepo, cfg.Bot.WorkerInterval, logger.Named("worker"))
	recon := bot.NewReconciliationMonitor(
		orderRepo, positionRepo, execClient, breakerSvc, auditSvc,
		configSvc, cfg.Bot.ReconInterval, logger.Named("recon"))
	health := bot.NewHealthMonitor(
		marketData, execClient, dbPinger{db}, metricsRepo, breakerSvc,
		configSvc, cfg.Bot.HealthInterval, logger.Named("health"))

	var wg sync.WaitGroup
	for _, run := range []func(context.Context){
		priceFeed.Run,
		marketSvc.Run,
		worker.Run,
		recon.Run,
		health.Run,
	} {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(ctx)
		}(run)
	}

	// ============ HTTP сервер ============

	router := api.SetupRoutes(&api.Dependencies{
		StateService:   stateSvc,
		BreakerService: breakerSvc,
		ConfigService:  configSvc,
		AuditService:   auditSvc,
		Decisions:      decisionRepo,
		Orders:         orderRepo,
		Positions:      positionRepo,
		Metrics:        metricsRepo,
		PnL:            pnlRepo,
		Hub:            hub,
		AdminTokenHash: cfg.Security.AdminTokenHash,
		Logger:         logger.Named("http"),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}

	wg.Wait()
	logger.Info("polytrader stopped")
}

// dbPinger адаптирует *sql.DB к bot.Heartbeat
type dbPinger struct {
	db *sql.DB
}

func (p dbPinger) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, err
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
