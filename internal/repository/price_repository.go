package repository

import (
	"database/sql"
	"errors"

	"polytrader/internal/models"
)

// Ошибки репозитория цен
var (
	ErrPriceNotFound = errors.New("price not found")
)

// PriceRepository - история цен от внешнего фида.
// Актуальная цена для риск-проверок живет в памяти фида; таблица
// нужна для стратегии (изменение цены за окно) и отладки.
type PriceRepository struct {
	db *sql.DB
}

// NewPriceRepository создает новый экземпляр репозитория
func NewPriceRepository(db *sql.DB) *PriceRepository {
	return &PriceRepository{db: db}
}

// Insert сохраняет одну точку цены
func (r *PriceRepository) Insert(p *models.Price) error {
	query := `
		INSERT INTO prices (symbol, price, timestamp, source)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.Exec(query, p.Symbol, p.Price, p.Timestamp, p.Source)
	return err
}

// Latest возвращает последнюю сохраненную цену символа
func (r *PriceRepository) Latest(symbol string) (*models.Price, error) {
	query := `
		SELECT id, symbol, price, timestamp, source
		FROM prices
		WHERE symbol = $1
		ORDER BY timestamp DESC
		LIMIT 1`

	p := &models.Price{}
	err := r.db.QueryRow(query, symbol).Scan(&p.ID, &p.Symbol, &p.Price, &p.Timestamp, &p.Source)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPriceNotFound
		}
		return nil, err
	}

	return p, nil
}

// History возвращает цены символа за последние minutes минут, старые первыми
func (r *PriceRepository) History(symbol string, minutes int) ([]*models.Price, error) {
	query := `
		SELECT id, symbol, price, timestamp, source
		FROM prices
		WHERE symbol = $1 AND timestamp > NOW() - ($2 * INTERVAL '1 minute')
		ORDER BY timestamp`

	rows, err := r.db.Query(query, symbol, minutes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prices []*models.Price
	for rows.Next() {
		p := &models.Price{}
		if err := rows.Scan(&p.ID, &p.Symbol, &p.Price, &p.Timestamp, &p.Source); err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}

	return prices, rows.Err()
}
