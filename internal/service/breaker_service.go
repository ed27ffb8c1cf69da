package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"polytrader/internal/models"
)

// Ошибки сервиса брейкеров
var (
	ErrUnknownBreaker = errors.New("unknown circuit breaker")
)

// BreakerService управляет реестром circuit breakers.
//
// Отвечает за:
// - Идемпотентное взведение и сброс брейкеров
// - Авто-halt бота при свежем срабатывании (RUNNING/PAUSED -> HALTED_*)
// - Аудит и рассылку событий
//
// Сброс брейкера намеренно НЕ возобновляет торговлю: из HALTED_* бота
// выводит только явный Start с повторной проверкой precondition'ов.
type BreakerService struct {
	breakerRepo BreakerRepositoryInterface
	stateSvc    StateServiceInterface
	auditSvc    AuditServiceInterface
	publisher   EventPublisher
	logger      *zap.Logger
}

// NewBreakerService создает новый экземпляр BreakerService
func NewBreakerService(
	breakerRepo BreakerRepositoryInterface,
	auditSvc AuditServiceInterface,
	publisher EventPublisher,
	logger *zap.Logger,
) *BreakerService {
	return &BreakerService{
		breakerRepo: breakerRepo,
		auditSvc:    auditSvc,
		publisher:   publisher,
		logger:      logger,
	}
}

// SetStateService связывает сервис состояния (после конструирования:
// StateService и BreakerService ссылаются друг на друга через Start
// precondition и auto-halt)
func (s *BreakerService) SetStateService(stateSvc StateServiceInterface) {
	s.stateSvc = stateSvc
}

// GetAll возвращает все брейкеры
func (s *BreakerService) GetAll() ([]*models.CircuitBreaker, error) {
	return s.breakerRepo.GetAll()
}

// AnyTripped возвращает признак и имена взведенных брейкеров
func (s *BreakerService) AnyTripped() (bool, []string, error) {
	names, err := s.breakerRepo.TrippedNames()
	if err != nil {
		return false, nil, err
	}
	return len(names) > 0, names, nil
}

// Trip взводит брейкер и, если бот торгует, переводит его в
// соответствующее HALTED_* состояние.
//
// Повторное взведение уже взведенного брейкера - no-op: trip_count не
// растет, аудит не дублируется, halt не повторяется.
func (s *BreakerService) Trip(ctx context.Context, name, reason, actor string) error {
	if !models.KnownBreaker(name) {
		return fmt.Errorf("%w: %s", ErrUnknownBreaker, name)
	}

	fresh, err := s.breakerRepo.Trip(name, reason)
	if err != nil {
		return err
	}
	if !fresh {
		return nil
	}

	s.logger.Warn("circuit breaker tripped",
		zap.String("breaker", name),
		zap.String("reason", reason))

	s.auditSvc.Record(models.AuditBreakerTripped, map[string]interface{}{
		"breaker": name,
		"reason":  reason,
	}, actor)

	if s.publisher != nil {
		if b, err := s.breakerRepo.GetByName(name); err == nil {
			s.publisher.Publish("breaker_trip", b)
		}
	}

	if s.stateSvc != nil {
		haltReason := fmt.Sprintf("circuit breaker %s: %s", name, reason)
		if _, err := s.stateSvc.AutoHalt(ctx, models.HaltTarget(name), haltReason); err != nil {
			// Брейкер уже взведен и записан; неудавшийся halt не
			// должен скрыть это от вызывающего
			s.logger.Error("auto-halt after breaker trip failed",
				zap.String("breaker", name),
				zap.Error(err))
		}
	}

	return nil
}

// Reset сбрасывает брейкер. Бот остается в текущем состоянии.
func (s *BreakerService) Reset(ctx context.Context, name, actor string) error {
	if !models.KnownBreaker(name) {
		return fmt.Errorf("%w: %s", ErrUnknownBreaker, name)
	}

	if err := s.breakerRepo.Reset(name); err != nil {
		return err
	}

	s.logger.Info("circuit breaker reset",
		zap.String("breaker", name),
		zap.String("actor", actor))

	s.auditSvc.Record(models.AuditBreakerReset, map[string]interface{}{
		"breaker": name,
	}, actor)

	if s.publisher != nil {
		if b, err := s.breakerRepo.GetByName(name); err == nil {
			s.publisher.Publish("breaker_reset", b)
		}
	}

	return nil
}
