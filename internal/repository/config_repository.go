package repository

import (
	"database/sql"
	"errors"
	"time"

	"polytrader/internal/models"
)

// Ошибки репозитория конфигурации
var (
	ErrConfigKeyNotFound = errors.New("config key not found")
)

// ConfigRepository - работа с таблицей config.
//
// Значения хранятся как JSONB вместе с объявленным типом (value_type).
// Ключи создаются при seed'е и никогда не удаляются.
type ConfigRepository struct {
	db *sql.DB
}

// NewConfigRepository создает новый экземпляр репозитория
func NewConfigRepository(db *sql.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// Seed создает дефолтные ключи конфигурации (идемпотентно)
func (r *ConfigRepository) Seed(entries []models.ConfigEntry) error {
	query := `
		INSERT INTO config (key, value, value_type, description, updated_at, updated_by)
		VALUES ($1, $2, $3, $4, $5, 'system')
		ON CONFLICT (key) DO NOTHING`

	now := time.Now().UTC()
	for _, e := range entries {
		if _, err := r.db.Exec(query, e.Key, e.Value, e.ValueType, e.Description, now); err != nil {
			return err
		}
	}
	return nil
}

// Get возвращает одну запись конфигурации
func (r *ConfigRepository) Get(key string) (*models.ConfigEntry, error) {
	query := `
		SELECT id, key, value, value_type, description, updated_at, updated_by
		FROM config
		WHERE key = $1`

	e := &models.ConfigEntry{}
	err := r.db.QueryRow(query, key).Scan(
		&e.ID,
		&e.Key,
		&e.Value,
		&e.ValueType,
		&e.Description,
		&e.UpdatedAt,
		&e.UpdatedBy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConfigKeyNotFound
		}
		return nil, err
	}

	return e, nil
}

// GetAll возвращает все записи конфигурации
func (r *ConfigRepository) GetAll() ([]*models.ConfigEntry, error) {
	query := `
		SELECT id, key, value, value_type, description, updated_at, updated_by
		FROM config
		ORDER BY key`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.ConfigEntry
	for rows.Next() {
		e := &models.ConfigEntry{}
		if err := rows.Scan(&e.ID, &e.Key, &e.Value, &e.ValueType, &e.Description, &e.UpdatedAt, &e.UpdatedBy); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Update перезаписывает значение ключа (last-writer-wins).
// Тип значения не меняется - только значение, updated_at и updated_by.
func (r *ConfigRepository) Update(key, rawValue, actor string) error {
	query := `
		UPDATE config
		SET value = $2, updated_at = $3, updated_by = $4
		WHERE key = $1`

	result, err := r.db.Exec(query, key, rawValue, time.Now().UTC(), actor)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrConfigKeyNotFound
	}

	return nil
}
