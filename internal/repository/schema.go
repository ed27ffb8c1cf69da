package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// schema.go - DDL управляющих таблиц.
//
// Таблицы создаются идемпотентно при старте (IF NOT EXISTS), как и
// seed-записи (ON CONFLICT DO NOTHING). Миграции сложнее этого проекту
// пока не нужны.

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS bot_state (
		id SERIAL PRIMARY KEY,
		version INTEGER NOT NULL UNIQUE,
		state VARCHAR(50) NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		updated_by VARCHAR(100) NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS circuit_breakers (
		id SERIAL PRIMARY KEY,
		breaker_name VARCHAR(100) NOT NULL UNIQUE,
		is_tripped BOOLEAN NOT NULL DEFAULT FALSE,
		trip_reason TEXT NOT NULL DEFAULT '',
		trip_count INTEGER NOT NULL DEFAULT 0,
		last_trip TIMESTAMPTZ,
		last_reset TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS config (
		id SERIAL PRIMARY KEY,
		key VARCHAR(100) NOT NULL UNIQUE,
		value JSONB NOT NULL,
		value_type VARCHAR(20) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_by VARCHAR(100) NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS decisions (
		id SERIAL PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
		asset VARCHAR(20) NOT NULL,
		market_id INTEGER NOT NULL DEFAULT 0,
		direction VARCHAR(10) NOT NULL,
		confidence NUMERIC(5,4) NOT NULL DEFAULT 0,
		size_usd NUMERIC(20,8) NOT NULL DEFAULT 0,
		risk_checks JSONB NOT NULL DEFAULT '[]',
		signal_source VARCHAR(50) NOT NULL DEFAULT '',
		executed BOOLEAN NOT NULL DEFAULT FALSE,
		execution_id VARCHAR(100) NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_decisions_timestamp ON decisions (timestamp)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id SERIAL PRIMARY KEY,
		order_id VARCHAR(100),
		market_id INTEGER NOT NULL DEFAULT 0,
		decision_id INTEGER,
		side VARCHAR(10) NOT NULL,
		token_id VARCHAR(100) NOT NULL,
		price NUMERIC(10,4) NOT NULL,
		size NUMERIC(20,8) NOT NULL,
		filled_size NUMERIC(20,8) NOT NULL DEFAULT 0,
		status VARCHAR(50) NOT NULL DEFAULT 'pending',
		order_type VARCHAR(20) NOT NULL DEFAULT 'limit',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		filled_at TIMESTAMPTZ,
		cancelled_at TIMESTAMPTZ,
		error_message TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders (status)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_order_id ON orders (order_id) WHERE order_id IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS trades (
		id SERIAL PRIMARY KEY,
		trade_id VARCHAR(100) NOT NULL UNIQUE,
		order_id INTEGER NOT NULL DEFAULT 0,
		market_id INTEGER NOT NULL DEFAULT 0,
		side VARCHAR(10) NOT NULL,
		price NUMERIC(10,4) NOT NULL,
		size NUMERIC(20,8) NOT NULL,
		fee NUMERIC(20,8) NOT NULL DEFAULT 0,
		asset VARCHAR(20) NOT NULL DEFAULT '',
		timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS positions (
		id SERIAL PRIMARY KEY,
		market_id INTEGER NOT NULL,
		token_id VARCHAR(100) NOT NULL,
		side VARCHAR(10) NOT NULL,
		size NUMERIC(20,8) NOT NULL,
		avg_entry_price NUMERIC(10,4) NOT NULL,
		current_price NUMERIC(10,4) NOT NULL DEFAULT 0,
		unrealized_pnl NUMERIC(20,8) NOT NULL DEFAULT 0,
		realized_pnl NUMERIC(20,8) NOT NULL DEFAULT 0,
		opened_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		closed_at TIMESTAMPTZ,
		status VARCHAR(20) NOT NULL DEFAULT 'open'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_positions_status ON positions (status)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_positions_open_token ON positions (token_id) WHERE status = 'open'`,
	`CREATE TABLE IF NOT EXISTS markets (
		id SERIAL PRIMARY KEY,
		condition_id VARCHAR(100) NOT NULL UNIQUE,
		slug VARCHAR(255) NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		asset VARCHAR(20) NOT NULL,
		end_date TIMESTAMPTZ,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		yes_token_id VARCHAR(100) NOT NULL DEFAULT '',
		no_token_id VARCHAR(100) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_markets_asset ON markets (asset)`,
	`CREATE TABLE IF NOT EXISTS prices (
		id SERIAL PRIMARY KEY,
		symbol VARCHAR(20) NOT NULL,
		price NUMERIC(20,8) NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
		source VARCHAR(50) NOT NULL DEFAULT 'coinbase'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_prices_symbol_ts ON prices (symbol, timestamp)`,
	`CREATE TABLE IF NOT EXISTS daily_pnl (
		id SERIAL PRIMARY KEY,
		date DATE NOT NULL UNIQUE,
		realized_pnl NUMERIC(20,8) NOT NULL DEFAULT 0,
		unrealized_pnl NUMERIC(20,8) NOT NULL DEFAULT 0,
		fees_paid NUMERIC(20,8) NOT NULL DEFAULT 0,
		trade_count INTEGER NOT NULL DEFAULT 0,
		win_count INTEGER NOT NULL DEFAULT 0,
		loss_count INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS risk_metrics (
		id SERIAL PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
		total_exposure NUMERIC(20,8) NOT NULL DEFAULT 0,
		btc_exposure NUMERIC(20,8) NOT NULL DEFAULT 0,
		eth_exposure NUMERIC(20,8) NOT NULL DEFAULT 0,
		sol_exposure NUMERIC(20,8) NOT NULL DEFAULT 0,
		correlation_risk NUMERIC(10,4) NOT NULL DEFAULT 0,
		daily_loss NUMERIC(20,8) NOT NULL DEFAULT 0,
		portfolio_value NUMERIC(20,8) NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id SERIAL PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
		event_type VARCHAR(100) NOT NULL,
		details JSONB NOT NULL DEFAULT '{}',
		actor VARCHAR(100) NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log (timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_event_type ON audit_log (event_type)`,
	`CREATE TABLE IF NOT EXISTS health_checks (
		id SERIAL PRIMARY KEY,
		component VARCHAR(100) NOT NULL,
		status VARCHAR(20) NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		latency_ms INTEGER NOT NULL DEFAULT 0,
		checked_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_health_component_ts ON health_checks (component, checked_at)`,
}

// EnsureSchema создает все таблицы управляющего контура
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
