package service

import (
	"context"
	"fmt"
	"time"

	"polytrader/internal/models"
	"polytrader/internal/repository"
)

// ============ Mock StateRepository ============

// MockStateRepository хранит цепочку версий в памяти и честно
// воспроизводит CAS-семантику таблицы bot_state.
type MockStateRepository struct {
	chain      []*models.BotState
	currentErr error
	appendErr  error
	nextID     int
}

func NewMockStateRepository(initialState string) *MockStateRepository {
	m := &MockStateRepository{nextID: 2}
	m.chain = []*models.BotState{{
		ID:        1,
		Version:   1,
		State:     initialState,
		Reason:    "initial state",
		UpdatedBy: "system",
		UpdatedAt: time.Now(),
	}}
	return m
}

func (m *MockStateRepository) Current() (*models.BotState, error) {
	if m.currentErr != nil {
		return nil, m.currentErr
	}
	return m.chain[len(m.chain)-1], nil
}

func (m *MockStateRepository) AppendTransition(expectedVersion int, state, reason, actor string) (*models.BotState, error) {
	if m.appendErr != nil {
		return nil, m.appendErr
	}
	head := m.chain[len(m.chain)-1]
	if expectedVersion != head.Version {
		return nil, repository.ErrVersionConflict
	}
	st := &models.BotState{
		ID:        m.nextID,
		Version:   expectedVersion + 1,
		State:     state,
		Reason:    reason,
		UpdatedBy: actor,
		UpdatedAt: time.Now(),
	}
	m.nextID++
	m.chain = append(m.chain, st)
	return st, nil
}

func (m *MockStateRepository) History(limit int) ([]*models.BotState, error) {
	result := make([]*models.BotState, 0, limit)
	for i := len(m.chain) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, m.chain[i])
	}
	return result, nil
}

// ============ Mock BreakerRepository ============

type MockBreakerRepository struct {
	breakers map[string]*models.CircuitBreaker
	tripErr  error
	resetErr error
	getErr   error
}

func NewMockBreakerRepository() *MockBreakerRepository {
	m := &MockBreakerRepository{breakers: make(map[string]*models.CircuitBreaker)}
	m.Seed()
	return m
}

func (m *MockBreakerRepository) Seed() error {
	for i, name := range models.BreakerNames() {
		if _, exists := m.breakers[name]; !exists {
			m.breakers[name] = &models.CircuitBreaker{
				ID:        i + 1,
				Name:      name,
				CreatedAt: time.Now(),
			}
		}
	}
	return nil
}

func (m *MockBreakerRepository) Trip(name, reason string) (bool, error) {
	if m.tripErr != nil {
		return false, m.tripErr
	}
	b, exists := m.breakers[name]
	if !exists {
		return false, repository.ErrBreakerNotFound
	}
	if b.IsTripped {
		return false, nil
	}
	now := time.Now()
	b.IsTripped = true
	b.TripReason = reason
	b.TripCount++
	b.LastTrip = &now
	return true, nil
}

func (m *MockBreakerRepository) Reset(name string) error {
	if m.resetErr != nil {
		return m.resetErr
	}
	b, exists := m.breakers[name]
	if !exists {
		return repository.ErrBreakerNotFound
	}
	now := time.Now()
	b.IsTripped = false
	b.TripReason = ""
	b.LastReset = &now
	return nil
}

func (m *MockBreakerRepository) GetByName(name string) (*models.CircuitBreaker, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	b, exists := m.breakers[name]
	if !exists {
		return nil, repository.ErrBreakerNotFound
	}
	return b, nil
}

func (m *MockBreakerRepository) GetAll() ([]*models.CircuitBreaker, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	result := make([]*models.CircuitBreaker, 0, len(m.breakers))
	for _, name := range models.BreakerNames() {
		result = append(result, m.breakers[name])
	}
	return result, nil
}

func (m *MockBreakerRepository) TrippedNames() ([]string, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var names []string
	for _, name := range models.BreakerNames() {
		if m.breakers[name].IsTripped {
			names = append(names, name)
		}
	}
	return names, nil
}

// ============ Mock ConfigRepository ============

type MockConfigRepository struct {
	entries   map[string]*models.ConfigEntry
	getErr    error
	updateErr error
}

func NewMockConfigRepository() *MockConfigRepository {
	m := &MockConfigRepository{entries: make(map[string]*models.ConfigEntry)}
	m.Seed(models.DefaultConfig())
	return m
}

func (m *MockConfigRepository) Seed(entries []models.ConfigEntry) error {
	for i := range entries {
		e := entries[i]
		if _, exists := m.entries[e.Key]; !exists {
			e.ID = len(m.entries) + 1
			e.UpdatedAt = time.Now()
			e.UpdatedBy = "system"
			m.entries[e.Key] = &e
		}
	}
	return nil
}

func (m *MockConfigRepository) Get(key string) (*models.ConfigEntry, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	e, exists := m.entries[key]
	if !exists {
		return nil, repository.ErrConfigKeyNotFound
	}
	return e, nil
}

func (m *MockConfigRepository) GetAll() ([]*models.ConfigEntry, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	result := make([]*models.ConfigEntry, 0, len(m.entries))
	for _, e := range m.entries {
		result = append(result, e)
	}
	return result, nil
}

func (m *MockConfigRepository) Update(key, rawValue, actor string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	e, exists := m.entries[key]
	if !exists {
		return repository.ErrConfigKeyNotFound
	}
	e.Value = rawValue
	e.UpdatedAt = time.Now()
	e.UpdatedBy = actor
	return nil
}

// ============ Mock DecisionRepository ============

type MockDecisionRepository struct {
	decisions []*models.Decision
	createErr error
	nextID    int64
}

func NewMockDecisionRepository() *MockDecisionRepository {
	return &MockDecisionRepository{nextID: 1}
}

func (m *MockDecisionRepository) Create(d *models.Decision) (int64, error) {
	if m.createErr != nil {
		return 0, m.createErr
	}
	id := m.nextID
	m.nextID++
	d.ID = int(id)
	m.decisions = append(m.decisions, d)
	return id, nil
}

func (m *MockDecisionRepository) MarkExecuted(id int64, executionID string) error {
	for _, d := range m.decisions {
		if int64(d.ID) == id {
			d.Executed = true
			d.ExecutionID = executionID
			return nil
		}
	}
	return repository.ErrDecisionNotFound
}

func (m *MockDecisionRepository) List(limit int) ([]*models.Decision, error) {
	result := make([]*models.Decision, 0, limit)
	for i := len(m.decisions) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, m.decisions[i])
	}
	return result, nil
}

// ============ Mock PositionRepository ============

type MockPositionRepository struct {
	positions map[int]*models.Position
	assets    map[int]string
	getErr    error
	nextID    int
}

func NewMockPositionRepository() *MockPositionRepository {
	return &MockPositionRepository{
		positions: make(map[int]*models.Position),
		assets:    make(map[int]string),
		nextID:    1,
	}
}

// AddOpen добавляет открытую позицию с привязкой к активу
func (m *MockPositionRepository) AddOpen(asset string, size, entryPrice float64) *models.Position {
	p := &models.Position{
		ID:            m.nextID,
		MarketID:      m.nextID,
		TokenID:       fmt.Sprintf("token-%d", m.nextID),
		Side:          models.PositionSideYes,
		Size:          size,
		AvgEntryPrice: entryPrice,
		CurrentPrice:  entryPrice,
		OpenedAt:      time.Now(),
		Status:        models.PositionStatusOpen,
	}
	m.positions[p.ID] = p
	m.assets[p.ID] = asset
	m.nextID++
	return p
}

func (m *MockPositionRepository) GetOpen() ([]*models.Position, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.Position
	for _, p := range m.positions {
		if p.Status == models.PositionStatusOpen {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *MockPositionRepository) OpenCount() (int, error) {
	if m.getErr != nil {
		return 0, m.getErr
	}
	count := 0
	for _, p := range m.positions {
		if p.Status == models.PositionStatusOpen {
			count++
		}
	}
	return count, nil
}

func (m *MockPositionRepository) AssetExposure() (map[string]float64, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	exposure := make(map[string]float64)
	for id, p := range m.positions {
		if p.Status == models.PositionStatusOpen {
			exposure[m.assets[id]] += p.ExposureUSD()
		}
	}
	return exposure, nil
}

func (m *MockPositionRepository) Upsert(p *models.Position) error {
	p.ID = m.nextID
	m.nextID++
	m.positions[p.ID] = p
	return nil
}

func (m *MockPositionRepository) UpdateMark(id int, currentPrice, unrealizedPnL float64) error {
	p, exists := m.positions[id]
	if !exists {
		return repository.ErrPositionNotFound
	}
	p.CurrentPrice = currentPrice
	p.UnrealizedPnL = unrealizedPnL
	return nil
}

func (m *MockPositionRepository) Close(id int, realizedPnL float64) error {
	p, exists := m.positions[id]
	if !exists || p.Status != models.PositionStatusOpen {
		return repository.ErrPositionNotFound
	}
	now := time.Now()
	p.Status = models.PositionStatusClosed
	p.RealizedPnL = realizedPnL
	p.ClosedAt = &now
	return nil
}

func (m *MockPositionRepository) GetByID(id int) (*models.Position, error) {
	p, exists := m.positions[id]
	if !exists {
		return nil, repository.ErrPositionNotFound
	}
	return p, nil
}

// ============ Mock PnLRepository ============

type MockPnLRepository struct {
	realized   float64
	unrealized float64
	getErr     error
}

func NewMockPnLRepository() *MockPnLRepository {
	return &MockPnLRepository{}
}

func (m *MockPnLRepository) AddRealizedPnL(pnl, fees float64) error {
	m.realized += pnl
	return nil
}

func (m *MockPnLRepository) UpdateUnrealized(unrealized float64) error {
	m.unrealized = unrealized
	return nil
}

func (m *MockPnLRepository) GetDailyLoss() (float64, error) {
	if m.getErr != nil {
		return 0, m.getErr
	}
	if m.realized >= 0 {
		return 0, nil
	}
	return -m.realized, nil
}

func (m *MockPnLRepository) GetDay(date time.Time) (*models.DailyPnL, error) {
	return &models.DailyPnL{Date: date, RealizedPnL: m.realized, UnrealizedPnL: m.unrealized}, nil
}

// ============ Mock AuditRepository ============

type MockAuditRepository struct {
	entries   []*models.AuditEntry
	appendErr error
	nextID    int64
}

func NewMockAuditRepository() *MockAuditRepository {
	return &MockAuditRepository{nextID: 1}
}

func (m *MockAuditRepository) Append(e *models.AuditEntry) (int64, error) {
	if m.appendErr != nil {
		return 0, m.appendErr
	}
	id := m.nextID
	m.nextID++
	e.ID = int(id)
	m.entries = append(m.entries, e)
	return id, nil
}

func (m *MockAuditRepository) List(eventType string, limit int) ([]*models.AuditEntry, error) {
	var result []*models.AuditEntry
	for i := len(m.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if eventType == "" || m.entries[i].EventType == eventType {
			result = append(result, m.entries[i])
		}
	}
	return result, nil
}

// CountByType возвращает число записей данного типа
func (m *MockAuditRepository) CountByType(eventType string) int {
	count := 0
	for _, e := range m.entries {
		if e.EventType == eventType {
			count++
		}
	}
	return count
}

// ============ Mock MetricsRepository ============

type MockMetricsRepository struct {
	snapshots []*models.RiskMetricsSnapshot
	checks    []*models.HealthCheck
	insertErr error
}

func NewMockMetricsRepository() *MockMetricsRepository {
	return &MockMetricsRepository{}
}

func (m *MockMetricsRepository) InsertRiskMetrics(s *models.RiskMetricsSnapshot) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.snapshots = append(m.snapshots, s)
	return nil
}

func (m *MockMetricsRepository) LatestRiskMetrics() (*models.RiskMetricsSnapshot, error) {
	if len(m.snapshots) == 0 {
		return nil, repository.ErrNoRiskMetrics
	}
	return m.snapshots[len(m.snapshots)-1], nil
}

func (m *MockMetricsRepository) InsertHealthCheck(h *models.HealthCheck) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.checks = append(m.checks, h)
	return nil
}

func (m *MockMetricsRepository) LatestHealthChecks() ([]*models.HealthCheck, error) {
	return m.checks, nil
}

// ============ Mock внешних коллабораторов ============

type MockCanceller struct {
	cancelled int
	calls     int
	err       error
}

func (m *MockCanceller) CancelAll(ctx context.Context) (int, error) {
	m.calls++
	if m.err != nil {
		return 0, m.err
	}
	return m.cancelled, nil
}

type MockPublisher struct {
	events []string
}

func (m *MockPublisher) Publish(eventType string, payload interface{}) {
	m.events = append(m.events, eventType)
}

// MockMarketData отдает управляемые рыночные данные для риск-проверок
type MockMarketData struct {
	liquidity    float64
	liquidityErr error
	priceAge     time.Duration
	priceAgeErr  error
	closeTime    *time.Time
	closeErr     error
}

func NewMockMarketData() *MockMarketData {
	future := time.Now().Add(2 * time.Hour)
	return &MockMarketData{
		liquidity: 10000,
		priceAge:  time.Second,
		closeTime: &future,
	}
}

func (m *MockMarketData) Liquidity(marketID int) (float64, error) {
	if m.liquidityErr != nil {
		return 0, m.liquidityErr
	}
	return m.liquidity, nil
}

func (m *MockMarketData) PriceAge(symbol string) (time.Duration, error) {
	if m.priceAgeErr != nil {
		return 0, m.priceAgeErr
	}
	return m.priceAge, nil
}

func (m *MockMarketData) CloseTime(marketID int) (*time.Time, error) {
	if m.closeErr != nil {
		return nil, m.closeErr
	}
	return m.closeTime, nil
}
