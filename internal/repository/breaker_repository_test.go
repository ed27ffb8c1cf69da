package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"polytrader/internal/models"
)

// ============================================================
// BreakerRepository Tests
// ============================================================

func TestNewBreakerRepository(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewBreakerRepository(db)
	if repo == nil {
		t.Fatal("NewBreakerRepository returned nil")
	}
	if repo.db != db {
		t.Error("db not set correctly")
	}
}

func TestBreakerRepositorySeed(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	for _, name := range models.BreakerNames() {
		mock.ExpectExec(`INSERT INTO circuit_breakers`).
			WithArgs(name, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	repo := NewBreakerRepository(db)
	if err := repo.Seed(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestBreakerRepositoryTrip(t *testing.T) {
	tests := []struct {
		name          string
		breaker       string
		mockSetup     func(mock sqlmock.Sqlmock)
		expectTripped bool
		expectError   error
	}{
		{
			name:    "fresh trip",
			breaker: models.BreakerDailyLossLimit,
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE circuit_breakers`).
					WithArgs(models.BreakerDailyLossLimit, "daily loss 51.20 >= limit 50.00", sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			expectTripped: true,
			expectError:   nil,
		},
		{
			name:    "already tripped - idempotent",
			breaker: models.BreakerDailyLossLimit,
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE circuit_breakers`).
					WithArgs(models.BreakerDailyLossLimit, "daily loss 51.20 >= limit 50.00", sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 0))
				rows := sqlmock.NewRows([]string{"exists"}).AddRow(true)
				mock.ExpectQuery(`SELECT EXISTS`).
					WithArgs(models.BreakerDailyLossLimit).
					WillReturnRows(rows)
			},
			expectTripped: false,
			expectError:   nil,
		},
		{
			name:    "unknown breaker",
			breaker: "flux_capacitor",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE circuit_breakers`).
					WithArgs("flux_capacitor", "daily loss 51.20 >= limit 50.00", sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 0))
				rows := sqlmock.NewRows([]string{"exists"}).AddRow(false)
				mock.ExpectQuery(`SELECT EXISTS`).
					WithArgs("flux_capacitor").
					WillReturnRows(rows)
			},
			expectTripped: false,
			expectError:   ErrBreakerNotFound,
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

			repo := NewBreakerRepository(db)
			tripped, err := repo.Trip(tt.breaker, "daily loss 51.20 >= limit 50.00")

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Errorf("expected error %v, got %v", tt.expectError, err)
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
			if tripped != tt.expectTripped {
				t.Errorf("expected tripped=%v, got %v", tt.expectTripped, tripped)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestBreakerRepositoryReset(t *testing.T) {
	tests := []struct {
		name        string
		breaker     string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError error
	}{
		{
			name:    "success",
			breaker: models.BreakerStaleData,
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE circuit_breakers`).
					WithArgs(models.BreakerStaleData, sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			expectError: nil,
		},
		{
			name:    "not found",
			breaker: "flux_capacitor",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE circuit_breakers`).
					WithArgs("flux_capacitor", sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			expectError: ErrBreakerNotFound,
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

			repo := NewBreakerRepository(db)
			err = repo.Reset(tt.breaker)

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Errorf("expected error %v, got %v", tt.expectError, err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestBreakerRepositoryGetAll(t *testing.T) {
	now := time.Now()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "breaker_name", "is_tripped", "trip_reason", "trip_count", "last_trip", "last_reset", "created_at"}).
		AddRow(1, models.BreakerAPIRateLimit, false, "", 0, nil, nil, now).
		AddRow(2, models.BreakerDailyLossLimit, true, "daily loss 51.20 >= limit 50.00", 3, now, nil, now)
	mock.ExpectQuery(`SELECT .+ FROM circuit_breakers ORDER BY breaker_name`).
		WillReturnRows(rows)

	repo := NewBreakerRepository(db)
	breakers, err := repo.GetAll()

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if len(breakers) != 2 {
		t.Fatalf("expected 2 breakers, got %d", len(breakers))
	}
	if !breakers[1].IsTripped {
		t.Error("expected daily_loss_limit to be tripped")
	}
	if breakers[1].TripCount != 3 {
		t.Errorf("expected trip_count=3, got %d", breakers[1].TripCount)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestBreakerRepositoryTrippedNames(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"breaker_name"}).
		AddRow(models.BreakerDailyLossLimit).
		AddRow(models.BreakerStaleData)
	mock.ExpectQuery(`SELECT breaker_name FROM circuit_breakers WHERE is_tripped = TRUE`).
		WillReturnRows(rows)

	repo := NewBreakerRepository(db)
	names, err := repo.TrippedNames()

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %d", len(names))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
