package persistence

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"jobtrack_worker/core/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

func newMockAdapter(t *testing.T) (*StagingAdapter, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	return NewStagingAdapter(sqlx.NewDb(mockDB, "pgx")), mock
}

func testImport() *domain.StagedImport {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return &domain.StagedImport{
		ID:        uuid.MustParse("5f1b1f9e-2a7c-4a6e-9d43-1b2c3d4e5f60"),
		MessageID: "m1@x",
		Subject:   "Interview invitation",
		Classification: domain.ClassificationResult{
			Type:       domain.TypeInterview,
			Confidence: 0.95,
			Source:     domain.SourceRule,
		},
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateUsesPostgresPlaceholders(t *testing.T) {
	a, mock := newMockAdapter(t)

	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (message_id) DO NOTHING`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := a.Create(context.Background(), testImport()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCreateDuplicate(t *testing.T) {
	tests := []struct {
		name  string
		setup func(sqlmock.Sqlmock)
	}{
		{
			name: "conflict swallowed",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectExec(`INSERT INTO staged_imports`).WillReturnResult(sqlmock.NewResult(0, 0))
			},
		},
		{
			name: "unique violation",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectExec(`INSERT INTO staged_imports`).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "staged_imports_pkey"})
			},
		},
		{
			name: "sqlite unique",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectExec(`INSERT INTO staged_imports`).
					WillReturnError(errors.New("constraint failed: UNIQUE constraint failed: staged_imports.id (2067)"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, mock := newMockAdapter(t)
			tt.setup(mock)
			err := a.Create(context.Background(), testImport())
			if !errors.Is(err, ErrDuplicate) {
				t.Errorf("Create() error = %v, want ErrDuplicate", err)
			}
		})
	}
}

func TestCreateOtherError(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectExec(`INSERT INTO staged_imports`).WillReturnError(errors.New("connection reset"))

	err := a.Create(context.Background(), testImport())
	if err == nil || errors.Is(err, ErrDuplicate) {
		t.Errorf("Create() error = %v, want wrapped driver error", err)
	}
}

func TestExistsAndDelete(t *testing.T) {
	a, mock := newMockAdapter(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM staged_imports WHERE message_id = $1`)).
		WithArgs("m1@x").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM staged_imports WHERE message_id = $1`)).
		WithArgs("m1@x").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := a.Exists(context.Background(), "m1@x")
	if err != nil || !ok {
		t.Fatalf("Exists() = %v, %v", ok, err)
	}
	deleted, err := a.DeleteByMessageID(context.Background(), "m1@x")
	if err != nil || deleted {
		t.Fatalf("DeleteByMessageID() = %v, %v; want false, nil", deleted, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGetByMessageIDNotFound(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectQuery(`FROM staged_imports WHERE message_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := a.GetByMessageID(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestUpdateStatusMissingRow(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectExec(`UPDATE staged_imports`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := a.UpdateStatus(context.Background(), uuid.New(), domain.StatusApproved, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
