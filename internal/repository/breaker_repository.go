package repository

import (
	"database/sql"
	"errors"
	"time"

	"polytrader/internal/models"
)

// Ошибки репозитория брейкеров
var (
	ErrBreakerNotFound = errors.New("circuit breaker not found")
)

// BreakerRepository - работа с таблицей circuit_breakers.
//
// Набор брейкеров фиксирован и создается один раз при старте (Seed).
// В runtime записи только мутируются через Trip/Reset.
type BreakerRepository struct {
	db *sql.DB
}

// NewBreakerRepository создает новый экземпляр репозитория
func NewBreakerRepository(db *sql.DB) *BreakerRepository {
	return &BreakerRepository{db: db}
}

// Seed создает записи для всех известных брейкеров (идемпотентно)
func (r *BreakerRepository) Seed() error {
	query := `
		INSERT INTO circuit_breakers (breaker_name, is_tripped, trip_count, created_at)
		VALUES ($1, FALSE, 0, $2)
		ON CONFLICT (breaker_name) DO NOTHING`

	now := time.Now().UTC()
	for _, name := range models.BreakerNames() {
		if _, err := r.db.Exec(query, name, now); err != nil {
			return err
		}
	}
	return nil
}

// Trip взводит брейкер.
//
// Идемпотентность обеспечена на уровне SQL: уже взведенный брейкер не
// трогаем (WHERE is_tripped = FALSE), trip_count не инкрементируется
// повторно. Возвращает true если брейкер взведен именно этим вызовом.
func (r *BreakerRepository) Trip(name, reason string) (bool, error) {
	query := `
		UPDATE circuit_breakers
		SET is_tripped = TRUE, trip_reason = $2, trip_count = trip_count + 1, last_trip = $3
		WHERE breaker_name = $1 AND is_tripped = FALSE`

	result, err := r.db.Exec(query, name, reason, time.Now().UTC())
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	if rowsAffected == 1 {
		return true, nil
	}

	// 0 строк: либо брейкер уже взведен, либо имени нет в таблице
	exists, err := r.exists(name)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, ErrBreakerNotFound
	}
	return false, nil
}

// Reset сбрасывает брейкер. Сам по себе торговлю не возобновляет -
// для этого нужен явный Start.
func (r *BreakerRepository) Reset(name string) error {
	query := `
		UPDATE circuit_breakers
		SET is_tripped = FALSE, trip_reason = '', last_reset = $2
		WHERE breaker_name = $1`

	result, err := r.db.Exec(query, name, time.Now().UTC())
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrBreakerNotFound
	}

	return nil
}

// GetByName возвращает брейкер по имени
func (r *BreakerRepository) GetByName(name string) (*models.CircuitBreaker, error) {
	query := `
		SELECT id, breaker_name, is_tripped, trip_reason, trip_count, last_trip, last_reset, created_at
		FROM circuit_breakers
		WHERE breaker_name = $1`

	b := &models.CircuitBreaker{}
	err := r.db.QueryRow(query, name).Scan(
		&b.ID,
		&b.Name,
		&b.IsTripped,
		&b.TripReason,
		&b.TripCount,
		&b.LastTrip,
		&b.LastReset,
		&b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBreakerNotFound
		}
		return nil, err
	}

	return b, nil
}

// GetAll возвращает все брейкеры
func (r *BreakerRepository) GetAll() ([]*models.CircuitBreaker, error) {
	query := `
		SELECT id, breaker_name, is_tripped, trip_reason, trip_count, last_trip, last_reset, created_at
		FROM circuit_breakers
		ORDER BY breaker_name`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var breakers []*models.CircuitBreaker
	for rows.Next() {
		b := &models.CircuitBreaker{}
		if err := rows.Scan(&b.ID, &b.Name, &b.IsTripped, &b.TripReason, &b.TripCount, &b.LastTrip, &b.LastReset, &b.CreatedAt); err != nil {
			return nil, err
		}
		breakers = append(breakers, b)
	}

	return breakers, rows.Err()
}

// TrippedNames возвращает имена взведенных брейкеров
func (r *BreakerRepository) TrippedNames() ([]string, error) {
	query := `
		SELECT breaker_name
		FROM circuit_breakers
		WHERE is_tripped = TRUE
		ORDER BY breaker_name`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

// exists проверяет наличие брейкера в таблице
func (r *BreakerRepository) exists(name string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM circuit_breakers WHERE breaker_name = $1)`, name).Scan(&exists)
	return exists, err
}
