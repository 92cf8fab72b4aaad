package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendance-engine/internal/models"
)

const timetableColumns = `id, teacher_id, day_of_week, start_time, end_time, active, created_by, created_at, updated_at, deactivated_at`

// TimetableRepository handles persistence for weekly timetable entries.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs the repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// List returns entries matching the filter, ordered by day then start time.
func (r *TimetableRepository) List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM timetable_entries WHERE 1=1", timetableColumns)
	args := []interface{}{}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		query += fmt.Sprintf(" AND teacher_id = $%d", len(args))
	}
	if filter.DayOfWeek != nil {
		args = append(args, *filter.DayOfWeek)
		query += fmt.Sprintf(" AND day_of_week = $%d", len(args))
	}
	if filter.ActiveOnly {
		query += " AND active = TRUE"
	}
	query += " ORDER BY day_of_week, start_time"

	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list timetable entries: %w", err)
	}
	return entries, nil
}

// ActiveForDay returns every active entry scheduled on the given weekday.
func (r *TimetableRepository) ActiveForDay(ctx context.Context, day int) ([]models.TimetableEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM timetable_entries WHERE day_of_week = $1 AND active = TRUE ORDER BY teacher_id, start_time", timetableColumns)
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, day); err != nil {
		return nil, fmt.Errorf("list active timetable entries for day %d: %w", day, err)
	}
	return entries, nil
}

// FindByID fetches a single entry.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.TimetableEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM timetable_entries WHERE id = $1", timetableColumns)
	var entry models.TimetableEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ActiveOverlapping returns active windows for the same teacher and day that
// intersect [start, end) under the half-open interval test. excludeID skips
// the entry being updated.
func (r *TimetableRepository) ActiveOverlapping(ctx context.Context, teacherID string, day int, start, end, excludeID string) ([]models.TimetableEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM timetable_entries
WHERE teacher_id = $1 AND day_of_week = $2 AND active = TRUE
AND start_time < $3 AND end_time > $4
AND id <> $5`, timetableColumns)
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, teacherID, day, end, start, excludeID); err != nil {
		return nil, fmt.Errorf("probe overlapping timetable entries: %w", err)
	}
	return entries, nil
}

// Create inserts a new entry.
func (r *TimetableRepository) Create(ctx context.Context, entry *models.TimetableEntry) error {
	now := time.Now().UTC()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = now
	entry.UpdatedAt = now
	query := `INSERT INTO timetable_entries (id, teacher_id, day_of_week, start_time, end_time, active, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(ctx, query, entry.ID, entry.TeacherID, entry.DayOfWeek, entry.StartTime, entry.EndTime, entry.Active, entry.CreatedBy, entry.CreatedAt, entry.UpdatedAt); err != nil {
		return fmt.Errorf("create timetable entry: %w", err)
	}
	return nil
}

// Update rewrites the mutable window fields of an entry.
func (r *TimetableRepository) Update(ctx context.Context, entry *models.TimetableEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	query := `UPDATE timetable_entries
SET day_of_week = $2, start_time = $3, end_time = $4, active = $5, updated_at = $6
WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, entry.ID, entry.DayOfWeek, entry.StartTime, entry.EndTime, entry.Active, entry.UpdatedAt); err != nil {
		return fmt.Errorf("update timetable entry: %w", err)
	}
	return nil
}

// Deactivate soft-deletes an entry; rows referenced by past reconciliation
// runs are never removed.
func (r *TimetableRepository) Deactivate(ctx context.Context, id string) error {
	now := time.Now().UTC()
	query := `UPDATE timetable_entries SET active = FALSE, deactivated_at = $2, updated_at = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return fmt.Errorf("deactivate timetable entry: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("deactivate timetable entry %s: no row", id)
	}
	return nil
}
