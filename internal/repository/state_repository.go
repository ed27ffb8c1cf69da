package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"polytrader/internal/models"
)

// Ошибки репозитория состояния
var (
	ErrVersionConflict = errors.New("bot state version conflict: concurrent transition won")
	ErrStateNotFound   = errors.New("bot state not found")
)

// StateRepository - работа с таблицей bot_state.
//
// Таблица хранит append-only цепочку версий состояния. Текущее
// состояние = строка с максимальной версией. Вставка новой строки с
// version = expected+1 защищена уникальным индексом: если конкурентный
// переход успел первым, вставка падает с unique_violation и
// возвращается ErrVersionConflict - вызывающий обязан перечитать
// состояние перед повтором.
type StateRepository struct {
	db *sql.DB
}

// NewStateRepository создает новый экземпляр репозитория
func NewStateRepository(db *sql.DB) *StateRepository {
	return &StateRepository{db: db}
}

// Current возвращает актуальное состояние бота.
//
// Если записей нет (первый запуск), создается начальная запись
// STOPPED / "initial state".
func (r *StateRepository) Current() (*models.BotState, error) {
	query := `
		SELECT id, version, state, reason, updated_by, updated_at
		FROM bot_state
		ORDER BY version DESC
		LIMIT 1`

	st := &models.BotState{}
	err := r.db.QueryRow(query).Scan(
		&st.ID,
		&st.Version,
		&st.State,
		&st.Reason,
		&st.UpdatedBy,
		&st.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.seedInitial()
		}
		return nil, err
	}

	return st, nil
}

// AppendTransition фиксирует переход состояния через optimistic CAS.
//
// expectedVersion - версия, которую вызывающий прочитал перед
// принятием решения о переходе. Если с тех пор кто-то успел записать
// новую версию, возвращается ErrVersionConflict.
func (r *StateRepository) AppendTransition(expectedVersion int, state, reason, actor string) (*models.BotState, error) {
	query := `
		INSERT INTO bot_state (version, state, reason, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	st := &models.BotState{
		Version:   expectedVersion + 1,
		State:     state,
		Reason:    reason,
		UpdatedBy: actor,
		UpdatedAt: time.Now().UTC(),
	}

	err := r.db.QueryRow(query, st.Version, st.State, st.Reason, st.UpdatedBy, st.UpdatedAt).Scan(&st.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, ErrVersionConflict
		}
		return nil, err
	}

	return st, nil
}

// History возвращает последние переходы состояния (новые первыми)
func (r *StateRepository) History(limit int) ([]*models.BotState, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, version, state, reason, updated_by, updated_at
		FROM bot_state
		ORDER BY version DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []*models.BotState
	for rows.Next() {
		st := &models.BotState{}
		if err := rows.Scan(&st.ID, &st.Version, &st.State, &st.Reason, &st.UpdatedBy, &st.UpdatedAt); err != nil {
			return nil, err
		}
		history = append(history, st)
	}

	return history, rows.Err()
}

// seedInitial создает начальную запись состояния (первый запуск)
func (r *StateRepository) seedInitial() (*models.BotState, error) {
	query := `
		INSERT INTO bot_state (version, state, reason, updated_by, updated_at)
		VALUES (1, $1, 'initial state', 'system', $2)
		ON CONFLICT (version) DO NOTHING`

	now := time.Now().UTC()
	if _, err := r.db.Exec(query, models.StateStopped, now); err != nil {
		return nil, err
	}

	// Перечитываем: при гонке двух первых запусков выиграла одна вставка
	st := &models.BotState{}
	err := r.db.QueryRow(`
		SELECT id, version, state, reason, updated_by, updated_at
		FROM bot_state
		ORDER BY version DESC
		LIMIT 1`).Scan(&st.ID, &st.Version, &st.State, &st.Reason, &st.UpdatedBy, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStateNotFound
		}
		return nil, err
	}

	return st, nil
}
