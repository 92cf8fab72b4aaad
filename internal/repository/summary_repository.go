package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendance-engine/internal/models"
)

const summaryColumns = `id, user_id, month, total_days, present_days, absent_days, late_days, excused_days, attendance_rate, last_updated`

// SummaryRepository persists derived monthly attendance summaries.
type SummaryRepository struct {
	db *sqlx.DB
}

// NewSummaryRepository constructs the repository.
func NewSummaryRepository(db *sqlx.DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

// Get returns the stored summary for a user and month.
func (r *SummaryRepository) Get(ctx context.Context, userID string, month time.Time) (*models.MonthlySummary, error) {
	query := fmt.Sprintf("SELECT %s FROM attendance_summaries WHERE user_id = $1 AND month = $2", summaryColumns)
	var summary models.MonthlySummary
	if err := r.db.GetContext(ctx, &summary, query, userID, month); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Upsert overwrites the summary row for (user, month). Summaries are always
// recomputed in full, so the write unconditionally replaces every counter.
func (r *SummaryRepository) Upsert(ctx context.Context, summary *models.MonthlySummary) (*models.MonthlySummary, error) {
	if summary.ID == "" {
		summary.ID = uuid.NewString()
	}
	summary.LastUpdated = time.Now().UTC()
	query := fmt.Sprintf(`INSERT INTO attendance_summaries (id, user_id, month, total_days, present_days, absent_days, late_days, excused_days, attendance_rate, last_updated)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (user_id, month)
DO UPDATE SET total_days = EXCLUDED.total_days, present_days = EXCLUDED.present_days, absent_days = EXCLUDED.absent_days,
late_days = EXCLUDED.late_days, excused_days = EXCLUDED.excused_days, attendance_rate = EXCLUDED.attendance_rate, last_updated = EXCLUDED.last_updated
RETURNING %s`, summaryColumns)
	var stored models.MonthlySummary
	if err := r.db.GetContext(ctx, &stored, query, summary.ID, summary.UserID, summary.Month, summary.TotalDays, summary.PresentDays, summary.AbsentDays, summary.LateDays, summary.ExcusedDays, summary.AttendanceRate, summary.LastUpdated); err != nil {
		return nil, fmt.Errorf("upsert attendance summary: %w", err)
	}
	return &stored, nil
}

// CountTeacherStatuses scans the teacher ledger for [from, to] and counts by
// status. planned_absence is folded into excused downstream.
func (r *SummaryRepository) CountTeacherStatuses(ctx context.Context, teacherID string, from, to time.Time) (*models.StatusCounts, error) {
	query := `SELECT COUNT(*) AS total,
COUNT(*) FILTER (WHERE status = 'present') AS present,
COUNT(*) FILTER (WHERE status = 'absent') AS absent,
COUNT(*) FILTER (WHERE status = 'late') AS late,
0 AS excused,
COUNT(*) FILTER (WHERE status = 'planned_absence') AS planned_absence
FROM attendance_records WHERE teacher_id = $1 AND date >= $2 AND date <= $3`
	var counts models.StatusCounts
	if err := r.db.GetContext(ctx, &counts, query, teacherID, from, to); err != nil {
		return nil, fmt.Errorf("count teacher statuses: %w", err)
	}
	return &counts, nil
}

// CountStudentStatuses scans the student ledger for [from, to].
func (r *SummaryRepository) CountStudentStatuses(ctx context.Context, studentID string, from, to time.Time) (*models.StatusCounts, error) {
	query := `SELECT COUNT(*) AS total,
COUNT(*) FILTER (WHERE status = 'present') AS present,
COUNT(*) FILTER (WHERE status = 'absent') AS absent,
COUNT(*) FILTER (WHERE status = 'late') AS late,
COUNT(*) FILTER (WHERE status = 'excused') AS excused,
0 AS planned_absence
FROM student_attendance WHERE student_id = $1 AND date >= $2 AND date <= $3`
	var counts models.StatusCounts
	if err := r.db.GetContext(ctx, &counts, query, studentID, from, to); err != nil {
		return nil, fmt.Errorf("count student statuses: %w", err)
	}
	return &counts, nil
}
