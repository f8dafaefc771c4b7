package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-ingest/internal/models"
	appErrors "github.com/noah-isme/timetable-ingest/pkg/errors"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

var importColumns = []string{"id", "payload_hash", "status_code", "message", "occurrence_count", "stats", "created_at"}

func TestTimetableImportRepositoryCreate(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewTimetableImportRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_imports")).
		WithArgs(sqlmock.AnyArg(), "hash-1", "0", "success", 3, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	record := &models.TimetableImport{PayloadHash: "hash-1", StatusCode: "0", Message: "success", OccurrenceCount: 3}
	require.NoError(t, repo.Create(context.Background(), nil, record))
	assert.NotEmpty(t, record.ID)
	assert.False(t, record.CreatedAt.IsZero())
	assert.Equal(t, "{}", string(record.Stats))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableImportRepositoryFindByID(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewTimetableImportRepository(db)

	rows := sqlmock.NewRows(importColumns).
		AddRow("imp-1", "hash-1", "0", "success", 3, []byte(`{"items":2}`), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_imports WHERE id = $1")).
		WithArgs("imp-1").
		WillReturnRows(rows)

	record, err := repo.FindByID(context.Background(), "imp-1")
	require.NoError(t, err)
	assert.Equal(t, "hash-1", record.PayloadHash)
	assert.Equal(t, 3, record.OccurrenceCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableImportRepositoryFindByIDNotFound(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewTimetableImportRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_imports WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestTimetableImportRepositoryList(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewTimetableImportRepository(db)

	rows := sqlmock.NewRows(importColumns).
		AddRow("imp-2", "hash-2", "0", "ok", 1, []byte(`{}`), time.Now()).
		AddRow("imp-1", "hash-1", "0", "ok", 3, []byte(`{}`), time.Now().Add(-time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_imports ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM timetable_imports")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	records, total, err := repo.List(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 2, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
