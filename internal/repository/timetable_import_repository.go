package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-ingest/internal/models"
	appErrors "github.com/noah-isme/timetable-ingest/pkg/errors"
)

// TimetableImportRepository persists ingested timetable documents.
type TimetableImportRepository struct {
	db *sqlx.DB
}

// NewTimetableImportRepository builds the repository.
func NewTimetableImportRepository(db *sqlx.DB) *TimetableImportRepository {
	return &TimetableImportRepository{db: db}
}

func (r *TimetableImportRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts an import record, assigning ID and timestamp when missing.
func (r *TimetableImportRepository) Create(ctx context.Context, exec sqlx.ExtContext, record *models.TimetableImport) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if len(record.Stats) == 0 {
		record.Stats = []byte("{}")
	}
	const query = `
INSERT INTO timetable_imports (id, payload_hash, status_code, message, occurrence_count, stats, created_at)
VALUES (:id, :payload_hash, :status_code, :message, :occurrence_count, :stats, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, record); err != nil {
		return fmt.Errorf("create timetable import: %w", err)
	}
	return nil
}

// FindByID fetches an import by ID.
func (r *TimetableImportRepository) FindByID(ctx context.Context, id string) (*models.TimetableImport, error) {
	const query = `SELECT id, payload_hash, status_code, message, occurrence_count, stats, created_at FROM timetable_imports WHERE id = $1`
	var record models.TimetableImport
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable import not found")
		}
		return nil, fmt.Errorf("find timetable import: %w", err)
	}
	return &record, nil
}

// List returns imports newest first with the total count.
func (r *TimetableImportRepository) List(ctx context.Context, page, size int) ([]models.TimetableImport, int, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT id, payload_hash, status_code, message, occurrence_count, stats, created_at FROM timetable_imports ORDER BY created_at DESC LIMIT %d OFFSET %d", size, offset)
	var records []models.TimetableImport
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, 0, fmt.Errorf("list timetable imports: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM timetable_imports"); err != nil {
		return nil, 0, fmt.Errorf("count timetable imports: %w", err)
	}
	return records, total, nil
}
