package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendance-engine/internal/models"
)

const attendanceColumns = `id, teacher_id, date, status, check_in_time, check_out_time, reason, is_planned, planned_at,
verified_by_delegation, delegation_notes, verified_by_advisor, advisor_notes, teaching_plan_id, created_at, updated_at`

// AttendanceRepository persists the per-(teacher, date) attendance ledger.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// FindByID fetches a single ledger row.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM attendance_records WHERE id = $1", attendanceColumns)
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByTeacherAndDate fetches the ledger row for one teacher-day.
func (r *AttendanceRepository) FindByTeacherAndDate(ctx context.Context, teacherID string, date time.Time) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM attendance_records WHERE teacher_id = $1 AND date = $2", attendanceColumns)
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, teacherID, date); err != nil {
		return nil, err
	}
	return &record, nil
}

// GetOrCreate returns the ledger row for the teacher-day, inserting the
// provided defaults when none exists. The uniqueness constraint arbitrates
// concurrent creators: a loser of the insert race re-reads the winner's row.
func (r *AttendanceRepository) GetOrCreate(ctx context.Context, teacherID string, date time.Time, defaults models.AttendanceRecord) (*models.AttendanceRecord, bool, error) {
	now := time.Now().UTC()
	insert := fmt.Sprintf(`INSERT INTO attendance_records (id, teacher_id, date, status, check_in_time, check_out_time, reason, is_planned, planned_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
ON CONFLICT (teacher_id, date) DO NOTHING
RETURNING %s`, attendanceColumns)

	var record models.AttendanceRecord
	err := r.db.GetContext(ctx, &record, insert,
		uuid.NewString(), teacherID, date, defaults.Status, defaults.CheckInTime, defaults.CheckOutTime,
		defaults.Reason, defaults.IsPlanned, defaults.PlannedAt, now)
	if err == nil {
		return &record, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("create attendance record: %w", err)
	}

	existing, err := r.FindByTeacherAndDate(ctx, teacherID, date)
	if err != nil {
		return nil, false, fmt.Errorf("reload attendance record after conflict: %w", err)
	}
	return existing, false, nil
}

// Update rewrites the mutable ledger fields unconditionally.
func (r *AttendanceRepository) Update(ctx context.Context, record *models.AttendanceRecord) error {
	record.UpdatedAt = time.Now().UTC()
	query := `UPDATE attendance_records
SET status = $2, check_in_time = $3, check_out_time = $4, reason = $5, is_planned = $6, planned_at = $7, updated_at = $8
WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, record.ID, record.Status, record.CheckInTime, record.CheckOutTime, record.Reason, record.IsPlanned, record.PlannedAt, record.UpdatedAt); err != nil {
		return fmt.Errorf("update attendance record: %w", err)
	}
	return nil
}

// UpdateGuarded applies the same update as Update but only when the row has
// not changed since it was read. Returns false when the guard lost the race.
func (r *AttendanceRepository) UpdateGuarded(ctx context.Context, record *models.AttendanceRecord, seenUpdatedAt time.Time) (bool, error) {
	now := time.Now().UTC()
	query := `UPDATE attendance_records
SET status = $2, check_in_time = $3, check_out_time = $4, reason = $5, is_planned = $6, planned_at = $7, updated_at = $8
WHERE id = $1 AND updated_at = $9`
	res, err := r.db.ExecContext(ctx, query, record.ID, record.Status, record.CheckInTime, record.CheckOutTime, record.Reason, record.IsPlanned, record.PlannedAt, now, seenUpdatedAt)
	if err != nil {
		return false, fmt.Errorf("guarded update attendance record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("guarded update attendance record: %w", err)
	}
	if affected == 0 {
		return false, nil
	}
	record.UpdatedAt = now
	return true, nil
}

// UpsertPlanned forces the teacher-day into planned_absence, creating the row
// when needed. Planned absences always win over automated state.
func (r *AttendanceRepository) UpsertPlanned(ctx context.Context, teacherID string, date time.Time, reason string, plannedAt time.Time) (*models.AttendanceRecord, error) {
	now := time.Now().UTC()
	query := fmt.Sprintf(`INSERT INTO attendance_records (id, teacher_id, date, status, reason, is_planned, planned_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, TRUE, $6, $7, $7)
ON CONFLICT (teacher_id, date)
DO UPDATE SET status = EXCLUDED.status, reason = EXCLUDED.reason, is_planned = TRUE, planned_at = EXCLUDED.planned_at, updated_at = EXCLUDED.updated_at
RETURNING %s`, attendanceColumns)
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, uuid.NewString(), teacherID, date, models.StatusPlannedAbsence, reason, plannedAt, now); err != nil {
		return nil, fmt.Errorf("upsert planned absence: %w", err)
	}
	return &record, nil
}

// ListRange returns ledger rows for a teacher within an optional date range,
// newest first.
func (r *AttendanceRepository) ListRange(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM attendance_records WHERE teacher_id = $1", attendanceColumns)
	args := []interface{}{filter.TeacherID}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		query += fmt.Sprintf(" AND date >= $%d", len(args))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		query += fmt.Sprintf(" AND date <= $%d", len(args))
	}
	query += " ORDER BY date DESC"

	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	return records, nil
}

// SetVerification writes one authority's flag and notes. The two authorities
// touch disjoint columns, so their writes can proceed in parallel.
func (r *AttendanceRepository) SetVerification(ctx context.Context, id string, authority models.VerificationAuthority, approved bool, notes string) (*models.AttendanceRecord, error) {
	var query string
	switch authority {
	case models.AuthorityDelegation:
		query = fmt.Sprintf(`UPDATE attendance_records
SET verified_by_delegation = $2, delegation_notes = $3, updated_at = $4
WHERE id = $1 RETURNING %s`, attendanceColumns)
	case models.AuthorityAdvisor:
		query = fmt.Sprintf(`UPDATE attendance_records
SET verified_by_advisor = $2, advisor_notes = $3, updated_at = $4
WHERE id = $1 RETURNING %s`, attendanceColumns)
	default:
		return nil, fmt.Errorf("unknown verification authority %q", authority)
	}

	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, id, approved, notes, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &record, nil
}
