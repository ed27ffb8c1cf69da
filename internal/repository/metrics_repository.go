package repository

import (
	"database/sql"
	"errors"

	"polytrader/internal/models"
)

// Ошибки репозитория метрик
var (
	ErrNoRiskMetrics = errors.New("no risk metrics recorded")
)

// MetricsRepository - снимки риск-метрик и результаты health-проверок
type MetricsRepository struct {
	db *sql.DB
}

// NewMetricsRepository создает новый экземпляр репозитория
func NewMetricsRepository(db *sql.DB) *MetricsRepository {
	return &MetricsRepository{db: db}
}

// InsertRiskMetrics сохраняет один снимок риск-метрик
func (r *MetricsRepository) InsertRiskMetrics(m *models.RiskMetricsSnapshot) error {
	query := `
		INSERT INTO risk_metrics (timestamp, total_exposure, btc_exposure, eth_exposure,
			sol_exposure, correlation_risk, daily_loss, portfolio_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(query, m.Timestamp, m.TotalExposure, m.BTCExposure,
		m.ETHExposure, m.SOLExposure, m.CorrelationRisk, m.DailyLoss, m.PortfolioValue)
	return err
}

// LatestRiskMetrics возвращает последний снимок риск-метрик
func (r *MetricsRepository) LatestRiskMetrics() (*models.RiskMetricsSnapshot, error) {
	query := `
		SELECT id, timestamp, total_exposure, btc_exposure, eth_exposure,
			sol_exposure, correlation_risk, daily_loss, portfolio_value
		FROM risk_metrics
		ORDER BY timestamp DESC
		LIMIT 1`

	m := &models.RiskMetricsSnapshot{}
	err := r.db.QueryRow(query).Scan(&m.ID, &m.Timestamp, &m.TotalExposure, &m.BTCExposure,
		&m.ETHExposure, &m.SOLExposure, &m.CorrelationRisk, &m.DailyLoss, &m.PortfolioValue)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoRiskMetrics
		}
		return nil, err
	}

	return m, nil
}

// InsertHealthCheck сохраняет результат одной health-проверки
func (r *MetricsRepository) InsertHealthCheck(h *models.HealthCheck) error {
	query := `
		INSERT INTO health_checks (component, status, message, latency_ms, checked_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(query, h.Component, h.Status, h.Message, h.LatencyMS, h.CheckedAt)
	return err
}

// LatestHealthChecks возвращает последний результат по каждому компоненту
func (r *MetricsRepository) LatestHealthChecks() ([]*models.HealthCheck, error) {
	query := `
		SELECT DISTINCT ON (component) id, component, status, message, latency_ms, checked_at
		FROM health_checks
		ORDER BY component, checked_at DESC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var checks []*models.HealthCheck
	for rows.Next() {
		h := &models.HealthCheck{}
		if err := rows.Scan(&h.ID, &h.Component, &h.Status, &h.Message, &h.LatencyMS, &h.CheckedAt); err != nil {
			return nil, err
		}
		checks = append(checks, h)
	}

	return checks, rows.Err()
}
