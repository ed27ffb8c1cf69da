package repository

import (
	"database/sql"
	"errors"

	jsoniter "github.com/json-iterator/go"

	"polytrader/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Ошибки репозитория решений
var (
	ErrDecisionNotFound = errors.New("decision not found")
)

// DecisionRepository - журнал торговых решений.
//
// Каждое обращение к риск-шлюзу оставляет запись: и разрешенные,
// и отклоненные решения, вместе с результатами всех проверок.
type DecisionRepository struct {
	db *sql.DB
}

// NewDecisionRepository создает новый экземпляр репозитория
func NewDecisionRepository(db *sql.DB) *DecisionRepository {
	return &DecisionRepository{db: db}
}

// Create сохраняет решение и возвращает его ID
func (r *DecisionRepository) Create(d *models.Decision) (int64, error) {
	checksJSON, err := json.Marshal(d.RiskChecks)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO decisions (timestamp, asset, market_id, direction, confidence, size_usd,
			risk_checks, signal_source, executed, execution_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	var id int64
	err = r.db.QueryRow(query,
		d.Timestamp,
		d.Asset,
		d.MarketID,
		d.Direction,
		d.Confidence,
		d.SizeUSD,
		checksJSON,
		d.SignalSource,
		d.Executed,
		nullableString(d.ExecutionID),
	).Scan(&id)
	if err != nil {
		return 0, err
	}

	return id, nil
}

// MarkExecuted помечает решение исполненным и привязывает ID ордера
func (r *DecisionRepository) MarkExecuted(id int64, executionID string) error {
	query := `
		UPDATE decisions
		SET executed = TRUE, execution_id = $2
		WHERE id = $1`

	result, err := r.db.Exec(query, id, executionID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrDecisionNotFound
	}

	return nil
}

// List возвращает последние решения, новые первыми
func (r *DecisionRepository) List(limit int) ([]*models.Decision, error) {
	query := `
		SELECT id, timestamp, asset, market_id, direction, confidence, size_usd,
			risk_checks, signal_source, executed, execution_id
		FROM decisions
		ORDER BY timestamp DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []*models.Decision
	for rows.Next() {
		d := &models.Decision{}
		var checksJSON []byte
		var executionID sql.NullString

		err := rows.Scan(&d.ID, &d.Timestamp, &d.Asset, &d.MarketID, &d.Direction,
			&d.Confidence, &d.SizeUSD, &checksJSON, &d.SignalSource, &d.Executed, &executionID)
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal(checksJSON, &d.RiskChecks); err != nil {
			return nil, err
		}
		d.ExecutionID = executionID.String

		decisions = append(decisions, d)
	}

	return decisions, rows.Err()
}

// nullableString превращает пустую строку в NULL
func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
