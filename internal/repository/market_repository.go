package repository

import (
	"database/sql"
	"errors"
	"time"

	"polytrader/internal/models"
)

// Ошибки репозитория рынков
var (
	ErrMarketNotFound = errors.New("market not found")
)

// MarketRepository - работа с таблицами markets и ценовыми снимками
type MarketRepository struct {
	db *sql.DB
}

// NewMarketRepository создает новый экземпляр репозитория
func NewMarketRepository(db *sql.DB) *MarketRepository {
	return &MarketRepository{db: db}
}

// Upsert создает рынок или обновляет его метаданные по condition_id
func (r *MarketRepository) Upsert(m *models.Market) (int, error) {
	query := `
		INSERT INTO markets (condition_id, slug, title, asset, end_date, active,
			yes_token_id, no_token_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (condition_id)
		DO UPDATE SET
			slug = EXCLUDED.slug,
			title = EXCLUDED.title,
			end_date = EXCLUDED.end_date,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
		RETURNING id`

	var id int
	err := r.db.QueryRow(query,
		m.ConditionID, m.Slug, m.Title, m.Asset, m.EndDate, m.Active,
		m.YesTokenID, m.NoTokenID, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, err
	}

	return id, nil
}

// GetByID возвращает рынок по внутреннему ID
func (r *MarketRepository) GetByID(id int) (*models.Market, error) {
	query := `
		SELECT id, condition_id, slug, title, asset, end_date, active,
			yes_token_id, no_token_id, created_at, updated_at
		FROM markets
		WHERE id = $1`

	m := &models.Market{}
	err := r.db.QueryRow(query, id).Scan(&m.ID, &m.ConditionID, &m.Slug, &m.Title,
		&m.Asset, &m.EndDate, &m.Active, &m.YesTokenID, &m.NoTokenID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMarketNotFound
		}
		return nil, err
	}

	return m, nil
}

// GetActive возвращает активные рынки
func (r *MarketRepository) GetActive() ([]*models.Market, error) {
	query := `
		SELECT id, condition_id, slug, title, asset, end_date, active,
			yes_token_id, no_token_id, created_at, updated_at
		FROM markets
		WHERE active = TRUE
		ORDER BY asset, end_date`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markets []*models.Market
	for rows.Next() {
		m := &models.Market{}
		err := rows.Scan(&m.ID, &m.ConditionID, &m.Slug, &m.Title, &m.Asset,
			&m.EndDate, &m.Active, &m.YesTokenID, &m.NoTokenID, &m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return nil, err
		}
		markets = append(markets, m)
	}

	return markets, rows.Err()
}
