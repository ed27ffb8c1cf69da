package repository

import (
	"database/sql"
	"errors"
	"time"

	"polytrader/internal/models"
)

// Ошибки репозитория ордеров
var (
	ErrOrderNotFound = errors.New("order not found")
)

// OrderRepository - работа с таблицами orders и trades.
//
// Ордер записывается в БД до отправки на площадку, чтобы падение
// процесса между записью и отправкой оставляло след для reconciliation.
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository создает новый экземпляр репозитория
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create сохраняет ордер (обычно в статусе pending) и возвращает его ID
func (r *OrderRepository) Create(o *models.Order) (int, error) {
	query := `
		INSERT INTO orders (order_id, market_id, decision_id, side, token_id, price, size,
			filled_size, status, order_type, created_at, updated_at, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11, $12)
		RETURNING id`

	now := time.Now().UTC()

	var id int
	err := r.db.QueryRow(query,
		nullableString(o.OrderID),
		o.MarketID,
		o.DecisionID,
		o.Side,
		o.TokenID,
		o.Price,
		o.Size,
		o.FilledSize,
		o.Status,
		o.OrderType,
		now,
		o.ErrorMessage,
	).Scan(&id)
	if err != nil {
		return 0, err
	}

	return id, nil
}

// UpdateStatus меняет статус ордера и, при наличии, внешний order_id
func (r *OrderRepository) UpdateStatus(id int, status, orderID, errorMessage string) error {
	query := `
		UPDATE orders
		SET status = $2,
			order_id = COALESCE($3, order_id),
			error_message = $4,
			updated_at = $5,
			filled_at = CASE WHEN $2 = 'filled' THEN $5 ELSE filled_at END,
			cancelled_at = CASE WHEN $2 = 'cancelled' THEN $5 ELSE cancelled_at END
		WHERE id = $1`

	result, err := r.db.Exec(query, id, status, nullableString(orderID), errorMessage, time.Now().UTC())
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// GetByID возвращает ордер по внутреннему ID
func (r *OrderRepository) GetByID(id int) (*models.Order, error) {
	query := `
		SELECT id, order_id, market_id, decision_id, side, token_id, price, size,
			filled_size, status, order_type, created_at, updated_at, filled_at,
			cancelled_at, error_message
		FROM orders
		WHERE id = $1`

	o := &models.Order{}
	var orderID sql.NullString
	err := r.db.QueryRow(query, id).Scan(
		&o.ID, &orderID, &o.MarketID, &o.DecisionID, &o.Side, &o.TokenID,
		&o.Price, &o.Size, &o.FilledSize, &o.Status, &o.OrderType,
		&o.CreatedAt, &o.UpdatedAt, &o.FilledAt, &o.CancelledAt, &o.ErrorMessage,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	o.OrderID = orderID.String

	return o, nil
}

// GetActive возвращает ордера в нетерминальных статусах (pending, open)
func (r *OrderRepository) GetActive() ([]*models.Order, error) {
	query := `
		SELECT id, order_id, market_id, decision_id, side, token_id, price, size,
			filled_size, status, order_type, created_at, updated_at, filled_at,
			cancelled_at, error_message
		FROM orders
		WHERE status IN ('pending', 'open')
		ORDER BY created_at`

	return r.queryOrders(query)
}

// List возвращает последние ордера, новые первыми
func (r *OrderRepository) List(limit int) ([]*models.Order, error) {
	query := `
		SELECT id, order_id, market_id, decision_id, side, token_id, price, size,
			filled_size, status, order_type, created_at, updated_at, filled_at,
			cancelled_at, error_message
		FROM orders
		ORDER BY created_at DESC
		LIMIT $1`

	return r.queryOrders(query, limit)
}

func (r *OrderRepository) queryOrders(query string, args ...interface{}) ([]*models.Order, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o := &models.Order{}
		var orderID sql.NullString
		err := rows.Scan(
			&o.ID, &orderID, &o.MarketID, &o.DecisionID, &o.Side, &o.TokenID,
			&o.Price, &o.Size, &o.FilledSize, &o.Status, &o.OrderType,
			&o.CreatedAt, &o.UpdatedAt, &o.FilledAt, &o.CancelledAt, &o.ErrorMessage,
		)
		if err != nil {
			return nil, err
		}
		o.OrderID = orderID.String
		orders = append(orders, o)
	}

	return orders, rows.Err()
}

// CreateTrade сохраняет исполненную сделку
func (r *OrderRepository) CreateTrade(t *models.Trade) (int, error) {
	query := `
		INSERT INTO trades (trade_id, order_id, market_id, side, price, size, fee, asset, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	var id int
	err := r.db.QueryRow(query,
		t.TradeID, t.OrderID, t.MarketID, t.Side, t.Price, t.Size, t.Fee, t.Asset, t.Timestamp,
	).Scan(&id)
	if err != nil {
		return 0, err
	}

	return id, nil
}
