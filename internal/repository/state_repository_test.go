package repository

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"polytrader/internal/models"
)

// ============================================================
// StateRepository Tests
// ============================================================

func TestNewStateRepository(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewStateRepository(db)
	if repo == nil {
		t.Fatal("NewStateRepository returned nil")
	}
	if repo.db != db {
		t.Error("db not set correctly")
	}
}

func TestStateRepositoryCurrent(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name          string
		mockSetup     func(mock sqlmock.Sqlmock)
		expectedState string
		expectError   bool
	}{
		{
			name: "success",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "version", "state", "reason", "updated_by", "updated_at"}).
					AddRow(7, 7, models.StateRunning, "manual start", "operator", now)
				mock.ExpectQuery(`SELECT .+ FROM bot_state ORDER BY version DESC LIMIT 1`).
					WillReturnRows(rows)
			},
			expectedState: models.StateRunning,
			expectError:   false,
		},
		{
			name: "empty table - seeds initial state",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM bot_state ORDER BY version DESC LIMIT 1`).
					WillReturnError(sql.ErrNoRows)
				mock.ExpectExec(`INSERT INTO bot_state`).
					WithArgs(models.StateStopped, sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(1, 1))
				rows := sqlmock.NewRows([]string{"id", "version", "state", "reason", "updated_by", "updated_at"}).
					AddRow(1, 1, models.StateStopped, "initial state", "system", now)
				mock.ExpectQuery(`SELECT .+ FROM bot_state ORDER BY version DESC LIMIT 1`).
					WillReturnRows(rows)
			},
			expectedState: models.StateStopped,
			expectError:   false,
		},
		{
			name: "query error",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM bot_state ORDER BY version DESC LIMIT 1`).
					WillReturnError(errors.New("connection refused"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewStateRepository(db)
			result, err := repo.Current()

			if tt.expectError {
				if err == nil {
					t.Error("expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if result.State != tt.expectedState {
					t.Errorf("expected state %s, got %s", tt.expectedState, result.State)
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestStateRepositoryAppendTransition(t *testing.T) {
	tests := []struct {
		name            string
		expectedVersion int
		state           string
		mockSetup       func(mock sqlmock.Sqlmock)
		expectError     error
	}{
		{
			name:            "success",
			expectedVersion: 3,
			state:           models.StateRunning,
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id"}).AddRow(4)
				mock.ExpectQuery(`INSERT INTO bot_state`).
					WithArgs(4, models.StateRunning, "manual start", "operator", sqlmock.AnyArg()).
					WillReturnRows(rows)
			},
			expectError: nil,
		},
		{
			name:            "version conflict",
			expectedVersion: 3,
			state:           models.StateRunning,
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO bot_state`).
					WithArgs(4, models.StateRunning, "manual start", "operator", sqlmock.AnyArg()).
					WillReturnError(&pq.Error{Code: "23505"})
			},
			expectError: ErrVersionConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewStateRepository(db)
			result, err := repo.AppendTransition(tt.expectedVersion, tt.state, "manual start", "operator")

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Errorf("expected error %v, got %v", tt.expectError, err)
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if result.Version != tt.expectedVersion+1 {
					t.Errorf("expected version %d, got %d", tt.expectedVersion+1, result.Version)
				}
				if result.State != tt.state {
					t.Errorf("expected state %s, got %s", tt.state, result.State)
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestStateRepositoryHistory(t *testing.T) {
	now := time.Now()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "version", "state", "reason", "updated_by", "updated_at"}).
		AddRow(3, 3, models.StateHaltedDailyLoss, "daily loss limit breached", "system", now).
		AddRow(2, 2, models.StateRunning, "manual start", "operator", now.Add(-time.Hour)).
		AddRow(1, 1, models.StateStopped, "initial state", "system", now.Add(-2*time.Hour))
	mock.ExpectQuery(`SELECT .+ FROM bot_state ORDER BY version DESC LIMIT \$1`).
		WithArgs(10).
		WillReturnRows(rows)

	repo := NewStateRepository(db)
	history, err := repo.History(10)

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(history))
	}
	if history[0].State != models.StateHaltedDailyLoss {
		t.Errorf("expected newest entry first, got %s", history[0].State)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
