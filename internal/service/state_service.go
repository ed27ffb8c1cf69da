package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"polytrader/internal/models"
	"polytrader/internal/repository"
)

// Ошибки сервиса состояния
var (
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrBreakersTripped    = errors.New("cannot start: circuit breakers are tripped")
	ErrDailyLossExceeded  = errors.New("cannot start: daily loss limit reached")
	ErrTransitionConflict = errors.New("state transition lost to a concurrent update")
)

// Максимум повторов CAS-перехода при конкурентных обновлениях
const maxTransitionRetries = 3

// StateService управляет жизненным циклом бота.
//
// Отвечает за:
// - Валидацию переходов между состояниями
// - Precondition'ы запуска (брейкеры, дневной лимит убытка)
// - Отмену ордеров при Stop / EmergencyStop
// - Аудит и рассылку событий о каждом переходе
type StateService struct {
	stateRepo   StateRepositoryInterface
	breakerRepo BreakerRepositoryInterface
	pnlRepo     PnLRepositoryInterface
	configSvc   ConfigServiceInterface
	auditSvc    AuditServiceInterface
	canceller   OrderCanceller
	publisher   EventPublisher
	logger      *zap.Logger
}

// NewStateService создает новый экземпляр StateService
func NewStateService(
	stateRepo StateRepositoryInterface,
	breakerRepo BreakerRepositoryInterface,
	pnlRepo PnLRepositoryInterface,
	configSvc ConfigServiceInterface,
	auditSvc AuditServiceInterface,
	canceller OrderCanceller,
	publisher EventPublisher,
	logger *zap.Logger,
) *StateService {
	return &StateService{
		stateRepo:   stateRepo,
		breakerRepo: breakerRepo,
		pnlRepo:     pnlRepo,
		configSvc:   configSvc,
		auditSvc:    auditSvc,
		canceller:   canceller,
		publisher:   publisher,
		logger:      logger,
	}
}

// Current возвращает актуальное состояние бота
func (s *StateService) Current() (*models.BotState, error) {
	return s.stateRepo.Current()
}

// History возвращает последние переходы состояния
func (s *StateService) History(limit int) ([]*models.BotState, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.stateRepo.History(limit)
}

// Start переводит бота в RUNNING.
//
// Precondition'ы проверяются заново при каждом вызове, включая выход
// из HALTED_*: ни один взведенный брейкер и непревышенный дневной
// лимит убытка. Сброс брейкера сам по себе торговлю не возобновляет.
func (s *StateService) Start(ctx context.Context, actor string) (*models.BotState, error) {
	tripped, err := s.breakerRepo.TrippedNames()
	if err != nil {
		return nil, err
	}
	if len(tripped) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrBreakersTripped, tripped)
	}

	loss, err := s.pnlRepo.GetDailyLoss()
	if err != nil {
		return nil, err
	}
	limit, err := s.configSvc.GetFloat(models.ConfigDailyLossLimitUSD)
	if err != nil {
		return nil, err
	}
	if loss >= limit {
		return nil, fmt.Errorf("%w: loss %.2f >= limit %.2f", ErrDailyLossExceeded, loss, limit)
	}

	st, err := s.transition(ctx, models.StateRunning, "manual start", actor, false)
	if err != nil {
		return nil, err
	}

	// Перепроверка после фиксации перехода: брейкер мог взвестись в окно
	// между чтением precondition'ов и CAS. Пока бот был STOPPED, AutoHalt
	// со стороны брейкера был no-op, поэтому halt выполняем сами.
	tripped, err = s.breakerRepo.TrippedNames()
	if err != nil {
		return nil, err
	}
	if len(tripped) > 0 {
		reason := fmt.Sprintf("circuit breaker tripped during start: %v", tripped)
		if _, haltErr := s.AutoHalt(ctx, models.HaltTarget(tripped[0]), reason); haltErr != nil {
			s.logger.Error("failed to halt after late breaker trip",
				zap.Strings("tripped", tripped),
				zap.Error(haltErr))
		}
		return nil, fmt.Errorf("%w: %v", ErrBreakersTripped, tripped)
	}

	return st, nil
}

// Pause переводит бота из RUNNING в PAUSED.
// Повторный Pause в PAUSED - no-op.
func (s *StateService) Pause(ctx context.Context, actor string) (*models.BotState, error) {
	current, err := s.stateRepo.Current()
	if err != nil {
		return nil, err
	}
	if current.State == models.StatePaused {
		return current, nil
	}
	if current.State != models.StateRunning {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.State, models.StatePaused)
	}

	return s.transition(ctx, models.StatePaused, "manual pause", actor, false)
}

// Stop переводит бота в STOPPED из любого состояния и отменяет все
// активные ордера. Повторный Stop в STOPPED - no-op.
func (s *StateService) Stop(ctx context.Context, reason, actor string) (*models.BotState, error) {
	current, err := s.stateRepo.Current()
	if err != nil {
		return nil, err
	}
	if current.State == models.StateStopped {
		return current, nil
	}

	if reason == "" {
		reason = "manual stop"
	}

	st, err := s.transition(ctx, models.StateStopped, reason, actor, false)
	if err != nil {
		return nil, err
	}

	s.cancelAllOrders(ctx, actor)
	return st, nil
}

// EmergencyStop - аварийная остановка: сначала отмена всех ордеров,
// затем переход в STOPPED. Отмена выполняется безусловно, даже если
// бот уже остановлен - открытый ордер при остановленном боте опаснее
// лишнего вызова отмены.
func (s *StateService) EmergencyStop(ctx context.Context, actor string) (*models.BotState, error) {
	s.cancelAllOrders(ctx, actor)

	s.auditSvc.Record(models.AuditEmergencyStop, map[string]interface{}{
		"reason": "emergency stop requested",
	}, actor)

	current, err := s.stateRepo.Current()
	if err != nil {
		return nil, err
	}
	if current.State == models.StateStopped {
		return current, nil
	}

	return s.transition(ctx, models.StateStopped, "emergency stop", actor, false)
}

// AutoHalt переводит бота в аварийное состояние после срабатывания
// брейкера. Действует только из RUNNING/PAUSED; в остальных состояниях
// просто возвращает текущее состояние.
func (s *StateService) AutoHalt(ctx context.Context, target, reason string) (*models.BotState, error) {
	if !models.IsHalted(target) {
		return nil, fmt.Errorf("%w: auto-halt target %s", ErrInvalidTransition, target)
	}

	current, err := s.stateRepo.Current()
	if err != nil {
		return nil, err
	}
	if current.State != models.StateRunning && current.State != models.StatePaused {
		return current, nil
	}

	return s.transition(ctx, target, reason, "system", true)
}

// transition выполняет CAS-переход с повторами.
//
// При ErrVersionConflict состояние перечитывается и переход
// валидируется заново против свежего состояния: конкурент мог увести
// бота туда, откуда наш переход уже недопустим.
func (s *StateService) transition(ctx context.Context, target, reason, actor string, skipIfLeft bool) (*models.BotState, error) {
	var lastErr error

	for attempt := 0; attempt < maxTransitionRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current, err := s.stateRepo.Current()
		if err != nil {
			return nil, err
		}

		if current.State == target {
			return current, nil
		}

		if !models.CanTransition(current.State, target) {
			// Для AutoHalt проигрыш гонки - не ошибка: бот уже
			// увели из RUNNING/PAUSED, халтить нечего
			if skipIfLeft {
				return current, nil
			}
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.State, target)
		}

		st, err := s.stateRepo.AppendTransition(current.Version, target, reason, actor)
		if err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}

		s.logger.Info("bot state changed",
			zap.String("from", current.State),
			zap.String("to", target),
			zap.String("reason", reason),
			zap.String("actor", actor),
			zap.Int("version", st.Version))

		s.auditSvc.Record(models.AuditBotStateChange, map[string]interface{}{
			"from":   current.State,
			"to":     target,
			"reason": reason,
		}, actor)

		if s.publisher != nil {
			s.publisher.Publish("state_change", st)
		}

		return st, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrTransitionConflict, lastErr)
}

// cancelAllOrders - best-effort отмена всех активных ордеров.
// Ошибка отмены логируется, но не откатывает уже выполненный переход.
func (s *StateService) cancelAllOrders(ctx context.Context, actor string) {
	if s.canceller == nil {
		return
	}

	cancelled, err := s.canceller.CancelAll(ctx)
	if err != nil {
		s.logger.Error("cancel all orders failed", zap.Error(err))
		return
	}

	s.logger.Info("cancelled all active orders", zap.Int("count", cancelled))
	s.auditSvc.Record(models.AuditCancelAll, map[string]interface{}{
		"cancelled_count": cancelled,
	}, actor)
}
