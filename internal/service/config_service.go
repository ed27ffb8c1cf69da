package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"polytrader/internal/models"
	"polytrader/internal/repository"
)

// Ошибки сервиса конфигурации
var (
	ErrConfigTypeMismatch = errors.New("config value does not match declared type")
	ErrConfigOutOfRange   = errors.New("config value out of allowed range")
)

// TTL кэша конфигурации. Риск-проверки читают лимиты на каждый сигнал;
// кэш снимает нагрузку с БД, оставляя обновления видимыми в пределах
// нескольких секунд.
const configCacheTTL = 5 * time.Second

// ConfigService - типизированный доступ к runtime-конфигурации.
//
// Значения хранятся в БД как JSON вместе с объявленным типом; сервис
// валидирует тип и диапазон при записи и парсит при чтении, чтобы
// нечисловое значение не дошло до арифметики риск-проверок.
type ConfigService struct {
	configRepo ConfigRepositoryInterface
	auditSvc   AuditServiceInterface
	publisher  EventPublisher
	logger     *zap.Logger

	mu       sync.RWMutex
	cache    map[string]*models.ConfigEntry
	cachedAt time.Time
}

// NewConfigService создает новый экземпляр ConfigService
func NewConfigService(
	configRepo ConfigRepositoryInterface,
	auditSvc AuditServiceInterface,
	publisher EventPublisher,
	logger *zap.Logger,
) *ConfigService {
	return &ConfigService{
		configRepo: configRepo,
		auditSvc:   auditSvc,
		publisher:  publisher,
		logger:     logger,
		cache:      make(map[string]*models.ConfigEntry),
	}
}

// GetAll возвращает все записи конфигурации (мимо кэша)
func (s *ConfigService) GetAll() ([]*models.ConfigEntry, error) {
	return s.configRepo.GetAll()
}

// GetFloat возвращает числовое значение ключа
func (s *ConfigService) GetFloat(key string) (float64, error) {
	entry, err := s.get(key)
	if err != nil {
		return 0, err
	}
	if entry.ValueType != models.ConfigTypeNumber {
		return 0, fmt.Errorf("%w: %s is %s, want number", ErrConfigTypeMismatch, key, entry.ValueType)
	}

	v, err := strconv.ParseFloat(entry.Value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrConfigTypeMismatch, key, entry.Value)
	}
	return v, nil
}

// GetInt возвращает целочисленное значение ключа.
// Дробное значение - ошибка, а не молчаливое усечение.
func (s *ConfigService) GetInt(key string) (int, error) {
	v, err := s.GetFloat(key)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) {
		return 0, fmt.Errorf("%w: %s=%v, want integer", ErrConfigTypeMismatch, key, v)
	}
	return int(v), nil
}

// GetBool возвращает булево значение ключа
func (s *ConfigService) GetBool(key string) (bool, error) {
	entry, err := s.get(key)
	if err != nil {
		return false, err
	}
	if entry.ValueType != models.ConfigTypeBool {
		return false, fmt.Errorf("%w: %s is %s, want bool", ErrConfigTypeMismatch, key, entry.ValueType)
	}

	v, err := strconv.ParseBool(entry.Value)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q", ErrConfigTypeMismatch, key, entry.Value)
	}
	return v, nil
}

// GetString возвращает строковое значение ключа
func (s *ConfigService) GetString(key string) (string, error) {
	entry, err := s.get(key)
	if err != nil {
		return "", err
	}
	if entry.ValueType != models.ConfigTypeString {
		return "", fmt.Errorf("%w: %s is %s, want string", ErrConfigTypeMismatch, key, entry.ValueType)
	}
	return entry.Value, nil
}

// Update обновляет значение ключа с валидацией типа.
//
// Новое значение применяется к последующим решениям; решения,
// принятые по старому значению, не пересматриваются.
func (s *ConfigService) Update(ctx context.Context, key, rawValue, actor string) (*models.ConfigEntry, error) {
	current, err := s.configRepo.Get(key)
	if err != nil {
		return nil, err
	}

	if err := validateConfigValue(key, current.ValueType, rawValue); err != nil {
		return nil, err
	}

	if err := s.configRepo.Update(key, rawValue, actor); err != nil {
		return nil, err
	}

	s.invalidate()

	s.logger.Info("config updated",
		zap.String("key", key),
		zap.String("old_value", current.Value),
		zap.String("new_value", rawValue),
		zap.String("actor", actor))

	s.auditSvc.Record(models.AuditConfigUpdate, map[string]interface{}{
		"key":       key,
		"old_value": current.Value,
		"new_value": rawValue,
	}, actor)

	updated, err := s.configRepo.Get(key)
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		s.publisher.Publish("config_update", updated)
	}

	return updated, nil
}

// get читает запись через кэш с TTL
func (s *ConfigService) get(key string) (*models.ConfigEntry, error) {
	s.mu.RLock()
	if time.Since(s.cachedAt) < configCacheTTL {
		if entry, ok := s.cache[key]; ok {
			s.mu.RUnlock()
			return entry, nil
		}
	}
	s.mu.RUnlock()

	entries, err := s.configRepo.GetAll()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache = make(map[string]*models.ConfigEntry, len(entries))
	for _, e := range entries {
		s.cache[e.Key] = e
	}
	s.cachedAt = time.Now()
	entry, ok := s.cache[key]
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrConfigKeyNotFound, key)
	}
	return entry, nil
}

// invalidate сбрасывает кэш после записи
func (s *ConfigService) invalidate() {
	s.mu.Lock()
	s.cachedAt = time.Time{}
	s.mu.Unlock()
}

// validateConfigValue проверяет тип и диапазон нового значения.
//
// Числа обязаны парситься и быть неотрицательными; процентные ключи
// дополнительно ограничены диапазоном 0..100.
func validateConfigValue(key, valueType, rawValue string) error {
	switch valueType {
	case models.ConfigTypeNumber:
		v, err := strconv.ParseFloat(rawValue, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q, want number", ErrConfigTypeMismatch, key, rawValue)
		}
		if v < 0 {
			return fmt.Errorf("%w: %s=%v, must be >= 0", ErrConfigOutOfRange, key, v)
		}
		if isPercentKey(key) && v > 100 {
			return fmt.Errorf("%w: %s=%v, must be <= 100", ErrConfigOutOfRange, key, v)
		}
	case models.ConfigTypeBool:
		if _, err := strconv.ParseBool(rawValue); err != nil {
			return fmt.Errorf("%w: %s=%q, want bool", ErrConfigTypeMismatch, key, rawValue)
		}
	case models.ConfigTypeString:
		// Строки не валидируются
	default:
		return fmt.Errorf("%w: %s has unknown type %s", ErrConfigTypeMismatch, key, valueType)
	}
	return nil
}

// isPercentKey проверяет что ключ хранит процент
func isPercentKey(key string) bool {
	switch key {
	case models.ConfigPortfolioTradePct,
		models.ConfigMaxMarketPortfolioPct,
		models.ConfigCorrelationMaxBasketPct,
		models.ConfigTakeProfitPct,
		models.ConfigStopLossPct,
		models.ConfigSizeTolerancePct:
		return true
	}
	return false
}
