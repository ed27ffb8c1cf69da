package repository

import (
	"database/sql"
	"errors"
	"time"

	"polytrader/internal/models"
	"polytrader/pkg/utils"
)

// PnLRepository - дневной агрегат PnL (таблица daily_pnl).
// Одна строка на торговый день UTC; источник истины для daily_loss_limit.
type PnLRepository struct {
	db *sql.DB
}

// NewPnLRepository создает новый экземпляр репозитория
func NewPnLRepository(db *sql.DB) *PnLRepository {
	return &PnLRepository{db: db}
}

// AddRealizedPnL добавляет реализованный PnL одной закрытой сделки
// к агрегату текущего дня UTC
func (r *PnLRepository) AddRealizedPnL(pnl, fees float64) error {
	query := `
		INSERT INTO daily_pnl (date, realized_pnl, unrealized_pnl, fees_paid, trade_count, win_count, loss_count)
		VALUES ($1, $2, 0, $3, 1, $4, $5)
		ON CONFLICT (date)
		DO UPDATE SET
			realized_pnl = daily_pnl.realized_pnl + EXCLUDED.realized_pnl,
			fees_paid = daily_pnl.fees_paid + EXCLUDED.fees_paid,
			trade_count = daily_pnl.trade_count + 1,
			win_count = daily_pnl.win_count + EXCLUDED.win_count,
			loss_count = daily_pnl.loss_count + EXCLUDED.loss_count`

	win, loss := 0, 0
	if pnl >= 0 {
		win = 1
	} else {
		loss = 1
	}

	_, err := r.db.Exec(query, utils.DayStartUTC(time.Now()), pnl, fees, win, loss)
	return err
}

// UpdateUnrealized перезаписывает нереализованный PnL текущего дня
func (r *PnLRepository) UpdateUnrealized(unrealized float64) error {
	query := `
		INSERT INTO daily_pnl (date, realized_pnl, unrealized_pnl, fees_paid, trade_count, win_count, loss_count)
		VALUES ($1, 0, $2, 0, 0, 0, 0)
		ON CONFLICT (date)
		DO UPDATE SET unrealized_pnl = EXCLUDED.unrealized_pnl`

	_, err := r.db.Exec(query, utils.DayStartUTC(time.Now()), unrealized)
	return err
}

// GetDailyLoss возвращает дневной убыток как положительное число.
// Прибыльный день дает 0.
func (r *PnLRepository) GetDailyLoss() (float64, error) {
	var realized float64
	err := r.db.QueryRow(
		`SELECT COALESCE(realized_pnl, 0) FROM daily_pnl WHERE date = $1`,
		utils.DayStartUTC(time.Now()),
	).Scan(&realized)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}

	if realized >= 0 {
		return 0, nil
	}
	return -realized, nil
}

// GetDay возвращает агрегат за указанную дату
func (r *PnLRepository) GetDay(date time.Time) (*models.DailyPnL, error) {
	query := `
		SELECT id, date, realized_pnl, unrealized_pnl, fees_paid, trade_count, win_count, loss_count
		FROM daily_pnl
		WHERE date = $1`

	d := &models.DailyPnL{}
	err := r.db.QueryRow(query, utils.DayStartUTC(date)).Scan(&d.ID, &d.Date, &d.RealizedPnL,
		&d.UnrealizedPnL, &d.FeesPaid, &d.TradeCount, &d.WinCount, &d.LossCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.DailyPnL{Date: utils.DayStartUTC(date)}, nil
		}
		return nil, err
	}

	return d, nil
}
