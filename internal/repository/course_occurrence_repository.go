package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-ingest/internal/models"
)

// CourseOccurrenceRepository stores normalized occurrences of an import.
type CourseOccurrenceRepository struct {
	db *sqlx.DB
}

// NewCourseOccurrenceRepository builds the repository.
func NewCourseOccurrenceRepository(db *sqlx.DB) *CourseOccurrenceRepository {
	return &CourseOccurrenceRepository{db: db}
}

func (r *CourseOccurrenceRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// InsertBatch writes occurrences in order, numbering them by position.
func (r *CourseOccurrenceRepository) InsertBatch(ctx context.Context, exec sqlx.ExtContext, importID string, occurrences []models.Occurrence) error {
	if len(occurrences) == 0 {
		return nil
	}
	target := r.exec(exec)

	const query = `
INSERT INTO course_occurrences (id, import_id, position, name, day_of_week, room, teacher, start_period, end_period, start_week, end_week, recurrence, credit, note, start_time, end_time)
VALUES (:id, :import_id, :position, :name, :day_of_week, :room, :teacher, :start_period, :end_period, :start_week, :end_week, :recurrence, :credit, :note, :start_time, :end_time)`

	for i, occ := range occurrences {
		row := models.StoredOccurrence{
			ID:         uuid.NewString(),
			ImportID:   importID,
			Position:   i,
			Occurrence: occ,
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, row); err != nil {
			return fmt.Errorf("insert course occurrence: %w", err)
		}
	}
	return nil
}

// List returns the stored occurrences of an import in their original order.
// A positive filter week keeps only occurrences that meet in that week, honouring ODD/EVEN parity.
func (r *CourseOccurrenceRepository) List(ctx context.Context, filter models.OccurrenceFilter) ([]models.StoredOccurrence, error) {
	conditions := []string{"import_id = $1"}
	args := []interface{}{filter.ImportID}

	if filter.Day > 0 {
		conditions = append(conditions, fmt.Sprintf("day_of_week = $%d", len(args)+1))
		args = append(args, filter.Day)
	}
	if filter.Teacher != "" {
		conditions = append(conditions, fmt.Sprintf("teacher = $%d", len(args)+1))
		args = append(args, filter.Teacher)
	}
	if filter.Week > 0 {
		n := len(args) + 1
		conditions = append(conditions, fmt.Sprintf(
			"start_week <= $%[1]d AND end_week >= $%[1]d AND (recurrence = 'ALL' OR (recurrence = 'ODD' AND $%[1]d::int %% 2 = 1) OR (recurrence = 'EVEN' AND $%[1]d::int %% 2 = 0))", n))
		args = append(args, filter.Week)
	}

	query := fmt.Sprintf(`SELECT id, import_id, position, name, day_of_week, room, teacher, start_period, end_period, start_week, end_week, recurrence, credit, note, start_time, end_time
FROM course_occurrences WHERE %s ORDER BY position ASC`, strings.Join(conditions, " AND "))

	var rows []models.StoredOccurrence
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list course occurrences: %w", err)
	}

	return rows, nil
}
