package service

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"go.uber.org/zap"

	"polytrader/internal/models"
)

// testEnv собирает сервисный граф на моках
type testEnv struct {
	stateRepo   *MockStateRepository
	breakerRepo *MockBreakerRepository
	configRepo  *MockConfigRepository
	pnlRepo     *MockPnLRepository
	auditRepo   *MockAuditRepository
	canceller   *MockCanceller
	publisher   *MockPublisher

	auditSvc   *AuditService
	configSvc  *ConfigService
	stateSvc   *StateService
	breakerSvc *BreakerService
}

func newTestEnv(initialState string) *testEnv {
	logger := zap.NewNop()

	env := &testEnv{
		stateRepo:   NewMockStateRepository(initialState),
		breakerRepo: NewMockBreakerRepository(),
		configRepo:  NewMockConfigRepository(),
		pnlRepo:     NewMockPnLRepository(),
		auditRepo:   NewMockAuditRepository(),
		canceller:   &MockCanceller{cancelled: 2},
		publisher:   &MockPublisher{},
	}

	env.auditSvc = NewAuditService(env.auditRepo, logger)
	env.configSvc = NewConfigService(env.configRepo, env.auditSvc, env.publisher, logger)
	env.stateSvc = NewStateService(env.stateRepo, env.breakerRepo, env.pnlRepo,
		env.configSvc, env.auditSvc, env.canceller, env.publisher, logger)
	env.breakerSvc = NewBreakerService(env.breakerRepo, env.auditSvc, env.publisher, logger)
	env.breakerSvc.SetStateService(env.stateSvc)

	return env
}

func TestStateServiceStart(t *testing.T) {
	tests := []struct {
		name         string
		initialState string
		setup        func(env *testEnv)
		expectState  string
		expectError  error
	}{
		{
			name:         "from stopped",
			initialState: models.StateStopped,
			expectState:  models.StateRunning,
		},
		{
			name:         "from paused",
			initialState: models.StatePaused,
			expectState:  models.StateRunning,
		},
		{
			name:         "from halted after breaker reset",
			initialState: models.StateHaltedCircuitBreaker,
			expectState:  models.StateRunning,
		},
		{
			name:         "blocked by tripped breaker",
			initialState: models.StateStopped,
			setup: func(env *testEnv) {
				env.breakerRepo.Trip(models.BreakerStaleData, "prices frozen")
			},
			expectError: ErrBreakersTripped,
		},
		{
			name:         "blocked by daily loss",
			initialState: models.StateStopped,
			setup: func(env *testEnv) {
				env.pnlRepo.realized = -30 // лимит по умолчанию 25
			},
			expectError: ErrDailyLossExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(tt.initialState)
			if tt.setup != nil {
				tt.setup(env)
			}

			st, err := env.stateSvc.Start(context.Background(), "operator")

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Fatalf("expected error %v, got %v", tt.expectError, err)
				}
				current, _ := env.stateRepo.Current()
				if current.State != tt.initialState {
					t.Errorf("state changed on failed start: %s", current.State)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if st.State != tt.expectState {
				t.Errorf("expected state %s, got %s", tt.expectState, st.State)
			}
			if env.auditRepo.CountByType(models.AuditBotStateChange) != 1 {
				t.Error("expected one bot_state_change audit entry")
			}
		})
	}
}

func TestStateServicePause(t *testing.T) {
	tests := []struct {
		name         string
		initialState string
		expectState  string
		expectError  error
	}{
		{name: "from running", initialState: models.StateRunning, expectState: models.StatePaused},
		{name: "already paused - noop", initialState: models.StatePaused, expectState: models.StatePaused},
		{name: "from stopped - invalid", initialState: models.StateStopped, expectError: ErrInvalidTransition},
		{name: "from halted - invalid", initialState: models.StateHaltedDailyLoss, expectError: ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(tt.initialState)

			st, err := env.stateSvc.Pause(context.Background(), "operator")

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Fatalf("expected error %v, got %v", tt.expectError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if st.State != tt.expectState {
				t.Errorf("expected state %s, got %s", tt.expectState, st.State)
			}
		})
	}
}

func TestStateServiceStop(t *testing.T) {
	env := newTestEnv(models.StateRunning)

	st, err := env.stateSvc.Stop(context.Background(), "", "operator")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.State != models.StateStopped {
		t.Errorf("expected STOPPED, got %s", st.State)
	}
	if env.canceller.calls != 1 {
		t.Errorf("expected one cancel-all call, got %d", env.canceller.calls)
	}
	if env.auditRepo.CountByType(models.AuditCancelAll) != 1 {
		t.Error("expected cancel_all_orders audit entry")
	}

	// Повторный Stop - no-op, без повторной отмены
	st, err = env.stateSvc.Stop(context.Background(), "", "operator")
	if err != nil {
		t.Fatalf("unexpected error on repeated stop: %v", err)
	}
	if st.State != models.StateStopped {
		t.Errorf("expected STOPPED, got %s", st.State)
	}
	if env.canceller.calls != 1 {
		t.Errorf("repeated stop must not cancel again, got %d calls", env.canceller.calls)
	}
}

func TestStateServiceEmergencyStop(t *testing.T) {
	tests := []struct {
		name         string
		initialState string
	}{
		{name: "from running", initialState: models.StateRunning},
		{name: "from halted", initialState: models.StateHaltedCircuitBreaker},
		{name: "already stopped", initialState: models.StateStopped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(tt.initialState)

			st, err := env.stateSvc.EmergencyStop(context.Background(), "operator")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if st.State != models.StateStopped {
				t.Errorf("expected STOPPED, got %s", st.State)
			}
			// Отмена ордеров выполняется всегда, даже из STOPPED
			if env.canceller.calls != 1 {
				t.Errorf("expected one cancel-all call, got %d", env.canceller.calls)
			}
			if env.auditRepo.CountByType(models.AuditEmergencyStop) != 1 {
				t.Error("expected emergency_stop audit entry")
			}
		})
	}
}

func TestStateServiceAutoHalt(t *testing.T) {
	tests := []struct {
		name         string
		initialState string
		target       string
		expectState  string
	}{
		{
			name:         "halts from running",
			initialState: models.StateRunning,
			target:       models.StateHaltedDailyLoss,
			expectState:  models.StateHaltedDailyLoss,
		},
		{
			name:         "halts from paused",
			initialState: models.StatePaused,
			target:       models.StateHaltedCircuitBreaker,
			expectState:  models.StateHaltedCircuitBreaker,
		},
		{
			name:         "noop from stopped",
			initialState: models.StateStopped,
			target:       models.StateHaltedCircuitBreaker,
			expectState:  models.StateStopped,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(tt.initialState)

			st, err := env.stateSvc.AutoHalt(context.Background(), tt.target, "breaker tripped")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if st.State != tt.expectState {
				t.Errorf("expected state %s, got %s", tt.expectState, st.State)
			}
		})
	}
}

func TestStateServiceAutoHaltRejectsNonHaltTarget(t *testing.T) {
	env := newTestEnv(models.StateRunning)

	_, err := env.stateSvc.AutoHalt(context.Background(), models.StateRunning, "bogus")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestStateServiceTransitionPublishesEvent(t *testing.T) {
	env := newTestEnv(models.StateStopped)

	if _, err := env.stateSvc.Start(context.Background(), "operator"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found := false
	for _, ev := range env.publisher.events {
		if ev == "state_change" {
			found = true
		}
	}
	if !found {
		t.Error("expected state_change event to be published")
	}
}

// lateTripBreakerRepo взводит брейкер сразу после первого чтения
// TrippedNames, то есть в окно между precondition'ами Start и
// фиксацией перехода. Auto-halt со стороны брейкера в этот момент
// no-op: бот еще STOPPED.
type lateTripBreakerRepo struct {
	*MockBreakerRepository
	name   string
	reason string
	armed  bool
}

func (r *lateTripBreakerRepo) TrippedNames() ([]string, error) {
	names, err := r.MockBreakerRepository.TrippedNames()
	if err == nil && r.armed {
		r.armed = false
		if _, terr := r.MockBreakerRepository.Trip(r.name, r.reason); terr != nil {
			return nil, terr
		}
	}
	return names, err
}

func TestStateServiceStartLosesRaceToTrip(t *testing.T) {
	logger := zap.NewNop()
	breakerRepo := &lateTripBreakerRepo{
		MockBreakerRepository: NewMockBreakerRepository(),
		name:                  models.BreakerWebsocketDisconnect,
		reason:                "ws feed lost",
		armed:                 true,
	}
	stateRepo := NewMockStateRepository(models.StateStopped)
	auditSvc := NewAuditService(NewMockAuditRepository(), logger)
	configSvc := NewConfigService(NewMockConfigRepository(), auditSvc, &MockPublisher{}, logger)
	stateSvc := NewStateService(stateRepo, breakerRepo, NewMockPnLRepository(),
		configSvc, auditSvc, &MockCanceller{}, &MockPublisher{}, logger)

	_, err := stateSvc.Start(context.Background(), "operator")
	if !errors.Is(err, ErrBreakersTripped) {
		t.Fatalf("expected ErrBreakersTripped, got %v", err)
	}

	st, err := stateRepo.Current()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.State != models.StateHaltedCircuitBreaker {
		t.Errorf("expected %s after late trip, got %s", models.StateHaltedCircuitBreaker, st.State)
	}
}

// raceTripBreakerRepo изредка взводит случайный брейкер сразу после
// чтения TrippedNames, подсовывая срабатывание в окна между
// проверками и переходами.
type raceTripBreakerRepo struct {
	*MockBreakerRepository
	svc *BreakerService
	rng *rand.Rand
}

func (r *raceTripBreakerRepo) TrippedNames() ([]string, error) {
	names, err := r.MockBreakerRepository.TrippedNames()
	if err == nil && r.svc != nil && r.rng.Intn(4) == 0 {
		all := models.BreakerNames()
		r.svc.Trip(context.Background(), all[r.rng.Intn(len(all))], "interleaved trip", "system")
	}
	return names, err
}

func TestLifecycleInvariantUnderInterleavedTrips(t *testing.T) {
	logger := zap.NewNop()
	rng := rand.New(rand.NewSource(7))
	breakerRepo := &raceTripBreakerRepo{
		MockBreakerRepository: NewMockBreakerRepository(),
		rng:                   rng,
	}
	stateRepo := NewMockStateRepository(models.StateStopped)
	auditSvc := NewAuditService(NewMockAuditRepository(), logger)
	configSvc := NewConfigService(NewMockConfigRepository(), auditSvc, &MockPublisher{}, logger)
	stateSvc := NewStateService(stateRepo, breakerRepo, NewMockPnLRepository(),
		configSvc, auditSvc, &MockCanceller{}, &MockPublisher{}, logger)
	breakerSvc := NewBreakerService(breakerRepo, auditSvc, &MockPublisher{}, logger)
	breakerSvc.SetStateService(stateSvc)
	breakerRepo.svc = breakerSvc

	ctx := context.Background()
	names := models.BreakerNames()

	for step := 0; step < 1000; step++ {
		switch rng.Intn(5) {
		case 0:
			stateSvc.Start(ctx, "operator")
		case 1:
			stateSvc.Pause(ctx, "operator")
		case 2:
			stateSvc.Stop(ctx, "", "operator")
		case 3:
			breakerSvc.Trip(ctx, names[rng.Intn(len(names))], "drill", "operator")
		case 4:
			breakerSvc.Reset(ctx, names[rng.Intn(len(names))], "operator")
		}

		st, err := stateRepo.Current()
		if err != nil {
			t.Fatalf("step %d: unexpected error: %v", step, err)
		}
		if st.State != models.StateRunning && st.State != models.StatePaused {
			continue
		}
		// Обходим хук: проверке инварианта нужны фактические брейкеры
		tripped, err := breakerRepo.MockBreakerRepository.TrippedNames()
		if err != nil {
			t.Fatalf("step %d: unexpected error: %v", step, err)
		}
		if len(tripped) > 0 {
			t.Fatalf("step %d: bot %s with tripped breakers %v", step, st.State, tripped)
		}
	}
}
