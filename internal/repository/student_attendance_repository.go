package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendance-engine/internal/models"
)

const studentAttendanceColumns = `id, student_id, teacher_id, date, status, notes, teacher_attendance_id, lesson_id, marked_at, created_at, updated_at`

// StudentAttendanceRepository persists student attendance rows keyed by
// (student, teacher, date).
type StudentAttendanceRepository struct {
	db *sqlx.DB
}

// NewStudentAttendanceRepository constructs the repository.
func NewStudentAttendanceRepository(db *sqlx.DB) *StudentAttendanceRepository {
	return &StudentAttendanceRepository{db: db}
}

// BulkUpsert writes a batch of rows inside one transaction. An existing row
// for the same (student, teacher, date) is overwritten; the latest write wins.
func (r *StudentAttendanceRepository) BulkUpsert(ctx context.Context, records []models.StudentAttendanceRecord) (created int, updated int, stored []models.StudentAttendanceRecord, err error) {
	if len(records) == 0 {
		return 0, 0, nil, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("begin bulk student attendance: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	query := fmt.Sprintf(`INSERT INTO student_attendance (id, student_id, teacher_id, date, status, notes, teacher_attendance_id, lesson_id, marked_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, $9)
ON CONFLICT (student_id, teacher_id, date)
DO UPDATE SET status = EXCLUDED.status, notes = EXCLUDED.notes, teacher_attendance_id = EXCLUDED.teacher_attendance_id,
lesson_id = EXCLUDED.lesson_id, marked_at = EXCLUDED.marked_at, updated_at = EXCLUDED.updated_at
RETURNING %s, (created_at = updated_at) AS inserted`, studentAttendanceColumns)

	now := time.Now().UTC()
	stored = make([]models.StudentAttendanceRecord, 0, len(records))
	for i := range records {
		rec := records[i]
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		var row struct {
			models.StudentAttendanceRecord
			Inserted bool `db:"inserted"`
		}
		if err := tx.GetContext(ctx, &row, query, rec.ID, rec.StudentID, rec.TeacherID, rec.Date, rec.Status, rec.Notes, rec.TeacherAttendanceID, rec.LessonID, now); err != nil {
			return 0, 0, nil, fmt.Errorf("upsert student attendance for %s: %w", rec.StudentID, err)
		}
		if row.Inserted {
			created++
		} else {
			updated++
		}
		stored = append(stored, row.StudentAttendanceRecord)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, nil, fmt.Errorf("commit bulk student attendance: %w", err)
	}
	committed = true
	return created, updated, stored, nil
}

// ByTeacherAndDate returns every row a teacher captured on a date.
func (r *StudentAttendanceRepository) ByTeacherAndDate(ctx context.Context, teacherID string, date time.Time) ([]models.StudentAttendanceRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM student_attendance WHERE teacher_id = $1 AND date = $2 ORDER BY student_id", studentAttendanceColumns)
	var records []models.StudentAttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, teacherID, date); err != nil {
		return nil, fmt.Errorf("list student attendance: %w", err)
	}
	return records, nil
}
