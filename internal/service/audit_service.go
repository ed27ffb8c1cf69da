package service

import (
	"time"

	"go.uber.org/zap"

	"polytrader/internal/models"
)

// AuditService пишет журнал аудита.
//
// Запись аудита никогда не валит основную операцию: если БД недоступна,
// событие уходит в структурированный лог и теряется для таблицы.
// Переход состояния важнее следа о нем.
type AuditService struct {
	auditRepo AuditRepositoryInterface
	logger    *zap.Logger
}

// NewAuditService создает новый экземпляр AuditService
func NewAuditService(auditRepo AuditRepositoryInterface, logger *zap.Logger) *AuditService {
	return &AuditService{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// Record добавляет запись в журнал аудита
func (s *AuditService) Record(eventType string, details map[string]interface{}, actor string) {
	entry := &models.AuditEntry{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Details:   details,
		Actor:     actor,
	}

	if _, err := s.auditRepo.Append(entry); err != nil {
		s.logger.Error("audit write failed",
			zap.String("event_type", eventType),
			zap.String("actor", actor),
			zap.Any("details", details),
			zap.Error(err))
	}
}

// List возвращает последние записи журнала.
// Пустой eventType означает все типы событий.
func (s *AuditService) List(eventType string, limit int) ([]*models.AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.auditRepo.List(eventType, limit)
}
