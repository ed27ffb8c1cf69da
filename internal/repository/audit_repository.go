package repository

import (
	"database/sql"

	"polytrader/internal/models"
)

// AuditRepository - append-only журнал аудита.
// Записи никогда не изменяются и не удаляются.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository создает новый экземпляр репозитория
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append добавляет запись в журнал
func (r *AuditRepository) Append(e *models.AuditEntry) (int64, error) {
	detailsJSON, err := json.Marshal(e.Details)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO audit_log (timestamp, event_type, details, actor)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	var id int64
	err = r.db.QueryRow(query, e.Timestamp, e.EventType, detailsJSON, e.Actor).Scan(&id)
	if err != nil {
		return 0, err
	}

	return id, nil
}

// List возвращает последние записи журнала, новые первыми.
// Пустой eventType означает все типы событий.
func (r *AuditRepository) List(eventType string, limit int) ([]*models.AuditEntry, error) {
	query := `
		SELECT id, timestamp, event_type, details, actor
		FROM audit_log
		WHERE ($1 = '' OR event_type = $1)
		ORDER BY timestamp DESC
		LIMIT $2`

	rows, err := r.db.Query(query, eventType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		e := &models.AuditEntry{}
		var detailsJSON []byte
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.EventType, &detailsJSON, &e.Actor); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(detailsJSON, &e.Details); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
