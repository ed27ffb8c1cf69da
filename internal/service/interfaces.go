package service

import (
	"context"
	"time"

	"polytrader/internal/models"
	"polytrader/internal/repository"
)

// StateRepositoryInterface определяет интерфейс репозитория состояния бота
type StateRepositoryInterface interface {
	Current() (*models.BotState, error)
	AppendTransition(expectedVersion int, state, reason, actor string) (*models.BotState, error)
	History(limit int) ([]*models.BotState, error)
}

// BreakerRepositoryInterface определяет интерфейс репозитория брейкеров
type BreakerRepositoryInterface interface {
	Seed() error
	Trip(name, reason string) (bool, error)
	Reset(name string) error
	GetByName(name string) (*models.CircuitBreaker, error)
	GetAll() ([]*models.CircuitBreaker, error)
	TrippedNames() ([]string, error)
}

// ConfigRepositoryInterface определяет интерфейс репозитория конфигурации
type ConfigRepositoryInterface interface {
	Seed(entries []models.ConfigEntry) error
	Get(key string) (*models.ConfigEntry, error)
	GetAll() ([]*models.ConfigEntry, error)
	Update(key, rawValue, actor string) error
}

// DecisionRepositoryInterface определяет интерфейс репозитория решений
type DecisionRepositoryInterface interface {
	Create(d *models.Decision) (int64, error)
	MarkExecuted(id int64, executionID string) error
	List(limit int) ([]*models.Decision, error)
}

// PositionRepositoryInterface определяет интерфейс репозитория позиций
type PositionRepositoryInterface interface {
	GetOpen() ([]*models.Position, error)
	OpenCount() (int, error)
	AssetExposure() (map[string]float64, error)
	Upsert(p *models.Position) error
	UpdateMark(id int, currentPrice, unrealizedPnL float64) error
	Close(id int, realizedPnL float64) error
	GetByID(id int) (*models.Position, error)
}

// PnLRepositoryInterface определяет интерфейс репозитория дневного PnL
type PnLRepositoryInterface interface {
	AddRealizedPnL(pnl, fees float64) error
	UpdateUnrealized(unrealized float64) error
	GetDailyLoss() (float64, error)
	GetDay(date time.Time) (*models.DailyPnL, error)
}

// AuditRepositoryInterface определяет интерфейс репозитория аудита
type AuditRepositoryInterface interface {
	Append(e *models.AuditEntry) (int64, error)
	List(eventType string, limit int) ([]*models.AuditEntry, error)
}

// MetricsRepositoryInterface определяет интерфейс репозитория риск-метрик
type MetricsRepositoryInterface interface {
	InsertRiskMetrics(m *models.RiskMetricsSnapshot) error
	LatestRiskMetrics() (*models.RiskMetricsSnapshot, error)
	InsertHealthCheck(h *models.HealthCheck) error
	LatestHealthChecks() ([]*models.HealthCheck, error)
}

// MarketRepositoryInterface определяет интерфейс репозитория рынков
type MarketRepositoryInterface interface {
	Upsert(m *models.Market) (int, error)
	GetByID(id int) (*models.Market, error)
	GetActive() ([]*models.Market, error)
}

// Проверяем, что реальные репозитории реализуют интерфейсы
var _ StateRepositoryInterface = (*repository.StateRepository)(nil)
var _ BreakerRepositoryInterface = (*repository.BreakerRepository)(nil)
var _ ConfigRepositoryInterface = (*repository.ConfigRepository)(nil)
var _ DecisionRepositoryInterface = (*repository.DecisionRepository)(nil)
var _ PositionRepositoryInterface = (*repository.PositionRepository)(nil)
var _ PnLRepositoryInterface = (*repository.PnLRepository)(nil)
var _ AuditRepositoryInterface = (*repository.AuditRepository)(nil)
var _ MetricsRepositoryInterface = (*repository.MetricsRepository)(nil)
var _ MarketRepositoryInterface = (*repository.MarketRepository)(nil)

// ============ Интерфейсы внешних коллабораторов ============

// OrderCanceller отменяет ордера на площадке. Реализуется
// execution-клиентом; StateService использует при Stop/EmergencyStop.
type OrderCanceller interface {
	CancelAll(ctx context.Context) (int, error)
}

// MarketDataProvider отдает рыночные данные для риск-проверок
type MarketDataProvider interface {
	Liquidity(marketID int) (float64, error)
	PriceAge(symbol string) (time.Duration, error)
	CloseTime(marketID int) (*time.Time, error)
}

// EventPublisher рассылает события подписчикам (websocket hub).
// Публикация не должна блокировать вызывающего.
type EventPublisher interface {
	Publish(eventType string, payload interface{})
}

// ============ Интерфейсы сервисов для Dependency Injection ============

// StateServiceInterface определяет интерфейс сервиса состояния бота
type StateServiceInterface interface {
	Current() (*models.BotState, error)
	History(limit int) ([]*models.BotState, error)
	Start(ctx context.Context, actor string) (*models.BotState, error)
	Pause(ctx context.Context, actor string) (*models.BotState, error)
	Stop(ctx context.Context, reason, actor string) (*models.BotState, error)
	EmergencyStop(ctx context.Context, actor string) (*models.BotState, error)
	AutoHalt(ctx context.Context, target, reason string) (*models.BotState, error)
}

// BreakerServiceInterface определяет интерфейс сервиса брейкеров
type BreakerServiceInterface interface {
	GetAll() ([]*models.CircuitBreaker, error)
	Trip(ctx context.Context, name, reason, actor string) error
	Reset(ctx context.Context, name, actor string) error
	AnyTripped() (bool, []string, error)
}

// ConfigServiceInterface определяет интерфейс сервиса конфигурации
type ConfigServiceInterface interface {
	GetAll() ([]*models.ConfigEntry, error)
	GetFloat(key string) (float64, error)
	GetInt(key string) (int, error)
	GetBool(key string) (bool, error)
	GetString(key string) (string, error)
	Update(ctx context.Context, key, rawValue, actor string) (*models.ConfigEntry, error)
}

// AuditServiceInterface определяет интерфейс сервиса аудита
type AuditServiceInterface interface {
	Record(eventType string, details map[string]interface{}, actor string)
	List(eventType string, limit int) ([]*models.AuditEntry, error)
}

// Проверяем, что реальные сервисы реализуют интерфейсы
var _ StateServiceInterface = (*StateService)(nil)
var _ BreakerServiceInterface = (*BreakerService)(nil)
var _ ConfigServiceInterface = (*ConfigService)(nil)
var _ AuditServiceInterface = (*AuditService)(nil)
