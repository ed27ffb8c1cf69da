package repository

import (
	"database/sql"
	"errors"
	"time"

	"polytrader/internal/models"
)

// Ошибки репозитория позиций
var (
	ErrPositionNotFound = errors.New("position not found")
)

// PositionRepository - работа с таблицей positions
type PositionRepository struct {
	db *sql.DB
}

// NewPositionRepository создает новый экземпляр репозитория
func NewPositionRepository(db *sql.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// GetOpen возвращает все открытые позиции
func (r *PositionRepository) GetOpen() ([]*models.Position, error) {
	query := `
		SELECT id, market_id, token_id, side, size, avg_entry_price, current_price,
			unrealized_pnl, realized_pnl, opened_at, updated_at, closed_at, status
		FROM positions
		WHERE status = 'open'
		ORDER BY opened_at`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		p := &models.Position{}
		err := rows.Scan(&p.ID, &p.MarketID, &p.TokenID, &p.Side, &p.Size,
			&p.AvgEntryPrice, &p.CurrentPrice, &p.UnrealizedPnL, &p.RealizedPnL,
			&p.OpenedAt, &p.UpdatedAt, &p.ClosedAt, &p.Status)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}

	return positions, rows.Err()
}

// OpenCount возвращает количество открытых позиций
func (r *PositionRepository) OpenCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM positions WHERE status = 'open'`).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// AssetExposure возвращает суммарную экспозицию открытых позиций
// по каждому базовому активу (BTC, ETH, SOL)
func (r *PositionRepository) AssetExposure() (map[string]float64, error) {
	query := `
		SELECT m.asset, COALESCE(SUM(p.size * p.avg_entry_price), 0)
		FROM positions p
		JOIN markets m ON m.id = p.market_id
		WHERE p.status = 'open'
		GROUP BY m.asset`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exposure := make(map[string]float64)
	for rows.Next() {
		var asset string
		var usd float64
		if err := rows.Scan(&asset, &usd); err != nil {
			return nil, err
		}
		exposure[asset] = usd
	}

	return exposure, rows.Err()
}

// Upsert открывает новую позицию или усредняет существующую открытую
// позицию по тому же токену
func (r *PositionRepository) Upsert(p *models.Position) error {
	query := `
		INSERT INTO positions (market_id, token_id, side, size, avg_entry_price, current_price,
			unrealized_pnl, realized_pnl, opened_at, updated_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 0, $7, $7, 'open')
		ON CONFLICT (token_id) WHERE status = 'open'
		DO UPDATE SET
			avg_entry_price = (positions.avg_entry_price * positions.size + EXCLUDED.avg_entry_price * EXCLUDED.size)
				/ (positions.size + EXCLUDED.size),
			size = positions.size + EXCLUDED.size,
			current_price = EXCLUDED.current_price,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(query,
		p.MarketID, p.TokenID, p.Side, p.Size, p.AvgEntryPrice, p.CurrentPrice, time.Now().UTC())
	return err
}

// UpdateMark обновляет текущую цену и нереализованный PnL открытой позиции
func (r *PositionRepository) UpdateMark(id int, currentPrice, unrealizedPnL float64) error {
	query := `
		UPDATE positions
		SET current_price = $2, unrealized_pnl = $3, updated_at = $4
		WHERE id = $1 AND status = 'open'`

	result, err := r.db.Exec(query, id, currentPrice, unrealizedPnL, time.Now().UTC())
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrPositionNotFound
	}

	return nil
}

// Close закрывает позицию, фиксируя реализованный PnL
func (r *PositionRepository) Close(id int, realizedPnL float64) error {
	query := `
		UPDATE positions
		SET status = 'closed', realized_pnl = $2, unrealized_pnl = 0,
			closed_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'open'`

	result, err := r.db.Exec(query, id, realizedPnL, time.Now().UTC())
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrPositionNotFound
	}

	return nil
}

// GetByID возвращает позицию по ID
func (r *PositionRepository) GetByID(id int) (*models.Position, error) {
	query := `
		SELECT id, market_id, token_id, side, size, avg_entry_price, current_price,
			unrealized_pnl, realized_pnl, opened_at, updated_at, closed_at, status
		FROM positions
		WHERE id = $1`

	p := &models.Position{}
	err := r.db.QueryRow(query, id).Scan(&p.ID, &p.MarketID, &p.TokenID, &p.Side, &p.Size,
		&p.AvgEntryPrice, &p.CurrentPrice, &p.UnrealizedPnL, &p.RealizedPnL,
		&p.OpenedAt, &p.UpdatedAt, &p.ClosedAt, &p.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPositionNotFound
		}
		return nil, err
	}

	return p, nil
}
