package bot

import (
	"context"
	"strconv"
	"time"

	"polytrader/internal/models"
	"polytrader/internal/repository"
)

// ============ Mock сервисных зависимостей ============

type mockBreakerService struct {
	tripped   map[string]bool
	tripCalls map[string]int
	tripErr   error
}

func newMockBreakerService() *mockBreakerService {
	return &mockBreakerService{
		tripped:   make(map[string]bool),
		tripCalls: make(map[string]int),
	}
}

func (m *mockBreakerService) GetAll() ([]*models.CircuitBreaker, error) { return nil, nil }

func (m *mockBreakerService) Trip(ctx context.Context, name, reason, actor string) error {
	if m.tripErr != nil {
		return m.tripErr
	}
	m.tripCalls[name]++
	m.tripped[name] = true
	return nil
}

func (m *mockBreakerService) Reset(ctx context.Context, name, actor string) error {
	m.tripped[name] = false
	return nil
}

func (m *mockBreakerService) AnyTripped() (bool, []string, error) {
	var names []string
	for name, tripped := range m.tripped {
		if tripped {
			names = append(names, name)
		}
	}
	return len(names) > 0, names, nil
}

type mockAuditService struct {
	events []string
}

func (m *mockAuditService) Record(eventType string, details map[string]interface{}, actor string) {
	m.events = append(m.events, eventType)
}

func (m *mockAuditService) List(eventType string, limit int) ([]*models.AuditEntry, error) {
	return nil, nil
}

// mockConfigService отдает значения из карты, дефолты как в БД
type mockConfigService struct {
	values map[string]float64
}

func newMockConfigService() *mockConfigService {
	m := &mockConfigService{values: make(map[string]float64)}
	for _, e := range models.DefaultConfig() {
		if v, err := strconv.ParseFloat(e.Value, 64); err == nil {
			m.values[e.Key] = v
		}
	}
	return m
}

func (m *mockConfigService) GetAll() ([]*models.ConfigEntry, error) { return nil, nil }

func (m *mockConfigService) GetFloat(key string) (float64, error) {
	v, ok := m.values[key]
	if !ok {
		return 0, repository.ErrConfigKeyNotFound
	}
	return v, nil
}

func (m *mockConfigService) GetInt(key string) (int, error) {
	v, err := m.GetFloat(key)
	return int(v), err
}

func (m *mockConfigService) GetBool(key string) (bool, error) { return false, nil }

func (m *mockConfigService) GetString(key string) (string, error) { return "", nil }

func (m *mockConfigService) Update(ctx context.Context, key, rawValue, actor string) (*models.ConfigEntry, error) {
	return nil, nil
}

// ============ Mock источников данных ============

type mockOrderSource struct {
	orders []*models.Order
	err    error
}

func (m *mockOrderSource) GetActive() ([]*models.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.orders, nil
}

type mockPositionSource struct {
	positions []*models.Position
	err       error
}

func (m *mockPositionSource) GetOpen() ([]*models.Position, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.positions, nil
}

func (m *mockPositionSource) OpenCount() (int, error) { return len(m.positions), nil }

func (m *mockPositionSource) AssetExposure() (map[string]float64, error) {
	return map[string]float64{}, nil
}

func (m *mockPositionSource) Upsert(p *models.Position) error { return nil }

func (m *mockPositionSource) UpdateMark(id int, currentPrice, unrealizedPnL float64) error {
	return nil
}

func (m *mockPositionSource) Close(id int, realizedPnL float64) error { return nil }

func (m *mockPositionSource) GetByID(id int) (*models.Position, error) {
	return nil, repository.ErrPositionNotFound
}

type mockReporter struct {
	orders    []models.BrokerOrderReport
	positions []models.BrokerPositionReport
	ordersErr error
	posErr    error
}

func (m *mockReporter) OpenOrdersReport(ctx context.Context) ([]models.BrokerOrderReport, error) {
	if m.ordersErr != nil {
		return nil, m.ordersErr
	}
	return m.orders, nil
}

func (m *mockReporter) PositionsReport(ctx context.Context) ([]models.BrokerPositionReport, error) {
	if m.posErr != nil {
		return nil, m.posErr
	}
	return m.positions, nil
}

type mockMetricsRepo struct {
	checks    []*models.HealthCheck
	snapshots []*models.RiskMetricsSnapshot
}

func (m *mockMetricsRepo) InsertRiskMetrics(s *models.RiskMetricsSnapshot) error {
	m.snapshots = append(m.snapshots, s)
	return nil
}

func (m *mockMetricsRepo) LatestRiskMetrics() (*models.RiskMetricsSnapshot, error) {
	return nil, repository.ErrNoRiskMetrics
}

func (m *mockMetricsRepo) InsertHealthCheck(h *models.HealthCheck) error {
	m.checks = append(m.checks, h)
	return nil
}

func (m *mockMetricsRepo) LatestHealthChecks() ([]*models.HealthCheck, error) {
	return m.checks, nil
}

func (m *mockMetricsRepo) lastFor(component string) *models.HealthCheck {
	for i := len(m.checks) - 1; i >= 0; i-- {
		if m.checks[i].Component == component {
			return m.checks[i]
		}
	}
	return nil
}

type mockMarketData struct {
	ages   map[string]time.Duration
	ageErr error
}

func (m *mockMarketData) Liquidity(marketID int) (float64, error) { return 10000, nil }

func (m *mockMarketData) PriceAge(symbol string) (time.Duration, error) {
	if m.ageErr != nil {
		return 0, m.ageErr
	}
	return m.ages[symbol], nil
}

func (m *mockMarketData) CloseTime(marketID int) (*time.Time, error) { return nil, nil }

type mockHeartbeat struct {
	err error
}

func (m *mockHeartbeat) Ping(ctx context.Context) error { return m.err }

type mockPriceChange struct {
	changes map[string]float64
	err     error
}

func (m *mockPriceChange) PriceChange(symbol string, window time.Duration) (float64, error) {
	if m.err != nil {
		return 0, m.err
	}
	change, ok := m.changes[symbol]
	if !ok {
		return 0, repository.ErrPriceNotFound
	}
	return change, nil
}

type mockMarketCatalog struct {
	markets map[string]*models.Market
}

func (m *mockMarketCatalog) TradableMarket(asset string) (*models.Market, error) {
	market, ok := m.markets[asset]
	if !ok {
		return nil, repository.ErrMarketNotFound
	}
	return market, nil
}
