package handlers

import (
	"context"
	"time"

	"polytrader/internal/models"
)

// ============ Mock StateService ============

// MockStateService фиксирует последнего actor и причину остановки,
// чтобы тесты могли проверить атрибуцию действий.
type MockStateService struct {
	state      *models.BotState
	history    []*models.BotState
	err        error
	lastActor  string
	lastReason string
	calls      []string
}

func NewMockStateService(state string) *MockStateService {
	return &MockStateService{
		state: &models.BotState{
			ID:        1,
			Version:   3,
			State:     state,
			Reason:    "test state",
			UpdatedBy: "system",
			UpdatedAt: time.Now(),
		},
	}
}

func (m *MockStateService) Current() (*models.BotState, error) {
	m.calls = append(m.calls, "Current")
	if m.err != nil {
		return nil, m.err
	}
	return m.state, nil
}

func (m *MockStateService) History(limit int) ([]*models.BotState, error) {
	m.calls = append(m.calls, "History")
	if m.err != nil {
		return nil, m.err
	}
	if limit < len(m.history) {
		return m.history[:limit], nil
	}
	return m.history, nil
}

func (m *MockStateService) Start(_ context.Context, actor string) (*models.BotState, error) {
	m.calls = append(m.calls, "Start")
	m.lastActor = actor
	if m.err != nil {
		return nil, m.err
	}
	m.state.State = models.StateRunning
	return m.state, nil
}

func (m *MockStateService) Pause(_ context.Context, actor string) (*models.BotState, error) {
	m.calls = append(m.calls, "Pause")
	m.lastActor = actor
	if m.err != nil {
		return nil, m.err
	}
	m.state.State = models.StatePaused
	return m.state, nil
}

func (m *MockStateService) Stop(_ context.Context, reason, actor string) (*models.BotState, error) {
	m.calls = append(m.calls, "Stop")
	m.lastActor = actor
	m.lastReason = reason
	if m.err != nil {
		return nil, m.err
	}
	m.state.State = models.StateStopped
	m.state.Reason = reason
	return m.state, nil
}

func (m *MockStateService) EmergencyStop(_ context.Context, actor string) (*models.BotState, error) {
	m.calls = append(m.calls, "EmergencyStop")
	m.lastActor = actor
	if m.err != nil {
		return nil, m.err
	}
	m.state.State = models.StateStopped
	return m.state, nil
}

func (m *MockStateService) AutoHalt(_ context.Context, target, reason string) (*models.BotState, error) {
	m.calls = append(m.calls, "AutoHalt")
	if m.err != nil {
		return nil, m.err
	}
	m.state.State = target
	m.state.Reason = reason
	return m.state, nil
}

// ============ Mock BreakerService ============

type MockBreakerService struct {
	breakers   []*models.CircuitBreaker
	tripErr    error
	resetErr   error
	getAllErr  error
	lastActor  string
	lastReason string
	lastName   string
}

func NewMockBreakerService(names ...string) *MockBreakerService {
	m := &MockBreakerService{}
	for i, name := range names {
		m.breakers = append(m.breakers, &models.CircuitBreaker{
			ID:   i + 1,
			Name: name,
		})
	}
	return m
}

func (m *MockBreakerService) GetAll() ([]*models.CircuitBreaker, error) {
	if m.getAllErr != nil {
		return nil, m.getAllErr
	}
	return m.breakers, nil
}

func (m *MockBreakerService) Trip(_ context.Context, name, reason, actor string) error {
	m.lastName = name
	m.lastReason = reason
	m.lastActor = actor
	if m.tripErr != nil {
		return m.tripErr
	}
	for _, b := range m.breakers {
		if b.Name == name {
			b.IsTripped = true
			b.TripReason = reason
		}
	}
	return nil
}

func (m *MockBreakerService) Reset(_ context.Context, name, actor string) error {
	m.lastName = name
	m.lastActor = actor
	if m.resetErr != nil {
		return m.resetErr
	}
	for _, b := range m.breakers {
		if b.Name == name {
			b.IsTripped = false
			b.TripReason = ""
		}
	}
	return nil
}

func (m *MockBreakerService) AnyTripped() (bool, []string, error) {
	var names []string
	for _, b := range m.breakers {
		if b.IsTripped {
			names = append(names, b.Name)
		}
	}
	return len(names) > 0, names, nil
}

// ============ Mock ConfigService ============

type MockConfigService struct {
	entries   map[string]*models.ConfigEntry
	updateErr error
	lastActor string
	lastValue string
}

func NewMockConfigService() *MockConfigService {
	return &MockConfigService{entries: map[string]*models.ConfigEntry{
		models.ConfigPortfolioTradePct: {
			ID:        1,
			Key:       models.ConfigPortfolioTradePct,
			Value:     "5",
			ValueType: models.ConfigTypeNumber,
		},
	}}
}

func (m *MockConfigService) GetAll() ([]*models.ConfigEntry, error) {
	result := make([]*models.ConfigEntry, 0, len(m.entries))
	for _, e := range m.entries {
		result = append(result, e)
	}
	return result, nil
}

func (m *MockConfigService) GetFloat(key string) (float64, error) { return 0, nil }
func (m *MockConfigService) GetInt(key string) (int, error)       { return 0, nil }
func (m *MockConfigService) GetBool(key string) (bool, error)     { return false, nil }
func (m *MockConfigService) GetString(key string) (string, error) { return "", nil }

func (m *MockConfigService) Update(_ context.Context, key, rawValue, actor string) (*models.ConfigEntry, error) {
	m.lastActor = actor
	m.lastValue = rawValue
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	entry, ok := m.entries[key]
	if !ok {
		entry = &models.ConfigEntry{Key: key}
		m.entries[key] = entry
	}
	entry.Value = rawValue
	entry.UpdatedBy = actor
	return entry, nil
}

// ============ Mock AuditService ============

type MockAuditService struct {
	entries []*models.AuditEntry
	listErr error
	// фиксируем фильтр и лимит последнего вызова List
	lastEventType string
	lastLimit     int
}

func (m *MockAuditService) Record(eventType string, details map[string]interface{}, actor string) {
	m.entries = append(m.entries, &models.AuditEntry{
		EventType: eventType,
		Details:   details,
		Actor:     actor,
	})
}

func (m *MockAuditService) List(eventType string, limit int) ([]*models.AuditEntry, error) {
	m.lastEventType = eventType
	m.lastLimit = limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.entries, nil
}

// ============ Mock источники данных мониторинга ============

type MockDecisionSource struct {
	decisions []*models.Decision
	err       error
	lastLimit int
}

func (m *MockDecisionSource) List(limit int) ([]*models.Decision, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	return m.decisions, nil
}

type MockOrderLister struct {
	orders       []*models.Order
	active       []*models.Order
	err          error
	activeCalled bool
}

func (m *MockOrderLister) List(limit int) ([]*models.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.orders, nil
}

func (m *MockOrderLister) GetActive() ([]*models.Order, error) {
	m.activeCalled = true
	if m.err != nil {
		return nil, m.err
	}
	return m.active, nil
}

type MockPositionSource struct {
	positions []*models.Position
	err       error
}

func (m *MockPositionSource) GetOpen() ([]*models.Position, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.positions, nil
}

func (m *MockPositionSource) OpenCount() (int, error) { return len(m.positions), nil }
func (m *MockPositionSource) AssetExposure() (map[string]float64, error) { return nil, nil }
func (m *MockPositionSource) Upsert(p *models.Position) error { return nil }
func (m *MockPositionSource) UpdateMark(id int, currentPrice, unrealizedPnL float64) error {
	return nil
}
func (m *MockPositionSource) Close(id int, realizedPnL float64) error { return nil }
func (m *MockPositionSource) GetByID(id int) (*models.Position, error) {
	return nil, nil
}

type MockMetricsSource struct {
	snapshot    *models.RiskMetricsSnapshot
	snapshotErr error
	checks      []*models.HealthCheck
	checksErr   error
}

func (m *MockMetricsSource) InsertRiskMetrics(s *models.RiskMetricsSnapshot) error { return nil }

func (m *MockMetricsSource) LatestRiskMetrics() (*models.RiskMetricsSnapshot, error) {
	if m.snapshotErr != nil {
		return nil, m.snapshotErr
	}
	return m.snapshot, nil
}

func (m *MockMetricsSource) InsertHealthCheck(h *models.HealthCheck) error { return nil }

func (m *MockMetricsSource) LatestHealthChecks() ([]*models.HealthCheck, error) {
	if m.checksErr != nil {
		return nil, m.checksErr
	}
	return m.checks, nil
}

type MockPnLSource struct {
	dailyLoss float64
}

func (m *MockPnLSource) AddRealizedPnL(pnl, fees float64) error { return nil }
func (m *MockPnLSource) UpdateUnrealized(unrealized float64) error { return nil }
func (m *MockPnLSource) GetDailyLoss() (float64, error) { return m.dailyLoss, nil }
func (m *MockPnLSource) GetDay(date time.Time) (*models.DailyPnL, error) {
	return &models.DailyPnL{}, nil
}
