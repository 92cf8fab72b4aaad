package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-engine/internal/models"
	appErrors "github.com/noah-isme/attendance-engine/pkg/errors"
)

type attendanceRepository interface {
	FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error)
	FindByTeacherAndDate(ctx context.Context, teacherID string, date time.Time) (*models.AttendanceRecord, error)
	GetOrCreate(ctx context.Context, teacherID string, date time.Time, defaults models.AttendanceRecord) (*models.AttendanceRecord, bool, error)
	Update(ctx context.Context, record *models.AttendanceRecord) error
	UpsertPlanned(ctx context.Context, teacherID string, date time.Time, reason string, plannedAt time.Time) (*models.AttendanceRecord, error)
	ListRange(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error)
}

type staffDirectory interface {
	FindStaff(ctx context.Context, id string) (*models.StaffMember, error)
	DelegationStaffForTeacher(ctx context.Context, teacherID string) ([]models.StaffMember, error)
}

type weeklyTimetableRepository interface {
	List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableEntry, error)
}

// AttendanceService owns the teacher attendance ledger state machine.
type AttendanceService struct {
	repo       attendanceRepository
	timetables weeklyTimetableRepository
	staff      staffDirectory
	notifier   Notifier
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, timetables weeklyTimetableRepository, staff staffDirectory, notifier Notifier, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		repo:       repo,
		timetables: timetables,
		staff:      staff,
		notifier:   notifier,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
	}
}

// MarkPresentRequest is the self check-in payload.
type MarkPresentRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	Date      string `json:"date"`
}

// CheckOutRequest records departure time for an existing day record.
type CheckOutRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	Date      string `json:"date"`
}

// PlannedAbsenceRequest reports a planned absence over an inclusive range.
type PlannedAbsenceRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date"`
	Reason    string `json:"reason" validate:"required"`
}

// ByTeacherRequest scopes the history-with-stats read.
type ByTeacherRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// WeeklyScheduleRequest scopes the weekly view; defaults to the current week.
type WeeklyScheduleRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// WeeklySchedule is the merged timetable + attendance view of one week.
type WeeklySchedule struct {
	StartDate string                   `json:"start_date"`
	EndDate   string                   `json:"end_date"`
	Days      []models.WeeklyDayStatus `json:"days"`
}

// MarkPresent performs a self check-in. Idempotent: repeating the call on an
// already-present day is a no-op; any other state corrects to present with a
// fresh check-in time and drops any stale absence annotation.
func (s *AttendanceService) MarkPresent(ctx context.Context, req MarkPresentRequest) (*models.AttendanceRecord, string, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	date, err := s.parseDateOrToday(req.Date)
	if err != nil {
		return nil, "", err
	}

	now := s.now().UTC()
	defaults := models.AttendanceRecord{Status: models.StatusPresent, CheckInTime: &now}
	record, created, err := s.repo.GetOrCreate(ctx, req.TeacherID, date, defaults)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark present")
	}
	if created {
		return record, "marked present successfully", nil
	}
	if record.Status == models.StatusPresent {
		return record, "already marked present for today", nil
	}

	record.Status = models.StatusPresent
	record.CheckInTime = &now
	record.Reason = ""
	record.IsPlanned = false
	record.PlannedAt = nil
	if err := s.repo.Update(ctx, record); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark present")
	}
	return record, "attendance updated to present", nil
}

// CheckOut stamps the departure time. It never changes status and requires
// an existing same-day record.
func (s *AttendanceService) CheckOut(ctx context.Context, req CheckOutRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	date, err := s.parseDateOrToday(req.Date)
	if err != nil {
		return nil, err
	}

	record, err := s.repo.FindByTeacherAndDate(ctx, req.TeacherID, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no attendance record found for today; mark present first")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check out")
	}

	now := s.now().UTC()
	record.CheckOutTime = &now
	if err := s.repo.Update(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check out")
	}
	return record, nil
}

// ReportPlannedAbsence marks every date in the inclusive range as a planned
// absence and notifies the delegation staff of the teacher's school. Planned
// absences always win over automated status and are never overridden by the
// reconciler.
func (s *AttendanceService) ReportPlannedAbsence(ctx context.Context, req PlannedAbsenceRequest) ([]models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	start, err := time.Parse(models.DateLayout, req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start date format, expected YYYY-MM-DD")
	}
	end := start
	if req.EndDate != "" {
		end, err = time.Parse(models.DateLayout, req.EndDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid end date format, expected YYYY-MM-DD")
		}
	}
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must not be before start date")
	}
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, start.Location())
	if start.Before(today) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot report a planned absence for past dates")
	}

	records := make([]models.AttendanceRecord, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		record, err := s.repo.UpsertPlanned(ctx, req.TeacherID, d, req.Reason, now)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to report absence")
		}
		records = append(records, *record)
	}

	s.notifyDelegation(ctx, req, records)
	return records, nil
}

// notifyDelegation fans the planned absence out to delegation staff.
// Fire-and-forget: lookup failures are logged and swallowed.
func (s *AttendanceService) notifyDelegation(ctx context.Context, req PlannedAbsenceRequest, records []models.AttendanceRecord) {
	if s.notifier == nil || s.staff == nil || len(records) == 0 {
		return
	}

	teacherName := req.TeacherID
	if teacher, err := s.staff.FindStaff(ctx, req.TeacherID); err == nil {
		teacherName = teacher.FullName
	}

	recipients, err := s.staff.DelegationStaffForTeacher(ctx, req.TeacherID)
	if err != nil {
		s.logger.Warn("failed to resolve delegation staff for absence notification",
			zap.String("teacher_id", req.TeacherID), zap.Error(err))
		return
	}

	endDate := req.EndDate
	if endDate == "" {
		endDate = req.StartDate
	}
	body := fmt.Sprintf("%s reported absence from %s to %s. Reason: %s", teacherName, req.StartDate, endDate, req.Reason)
	for _, recipient := range recipients {
		s.notifier.Notify(ctx, recipient.ID, models.NotificationAttendance,
			"Teacher Absence Reported", body, "attendance_record", records[0].ID)
	}
}

// Today returns the teacher's record for the current date, or nil when none
// exists yet.
func (s *AttendanceService) Today(ctx context.Context, teacherID string) (*models.AttendanceRecord, error) {
	if teacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher_id is required")
	}
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	record, err := s.repo.FindByTeacherAndDate(ctx, teacherID, today)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load today's attendance")
	}
	return record, nil
}

// ByTeacherWithStats returns a teacher's ledger rows plus aggregate counts
// for the optional date range.
func (s *AttendanceService) ByTeacherWithStats(ctx context.Context, req ByTeacherRequest) ([]models.AttendanceRecord, *models.AttendanceStats, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "teacher_id is required")
	}

	filter := models.AttendanceFilter{TeacherID: req.TeacherID}
	if req.StartDate != "" {
		from, err := time.Parse(models.DateLayout, req.StartDate)
		if err != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid start date format, expected YYYY-MM-DD")
		}
		filter.DateFrom = &from
	}
	if req.EndDate != "" {
		to, err := time.Parse(models.DateLayout, req.EndDate)
		if err != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid end date format, expected YYYY-MM-DD")
		}
		filter.DateTo = &to
	}

	records, err := s.repo.ListRange(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}

	stats := &models.AttendanceStats{TotalDays: len(records)}
	for _, record := range records {
		switch record.Status {
		case models.StatusPresent:
			stats.Present++
		case models.StatusAbsent:
			stats.Absent++
		case models.StatusLate:
			stats.Late++
		case models.StatusPlannedAbsence:
			stats.PlannedAbsence++
		}
	}
	if stats.TotalDays > 0 {
		stats.AttendanceRate = math.Round(float64(stats.Present)/float64(stats.TotalDays)*100*100) / 100
	}
	return records, stats, nil
}

// WeeklySchedule merges the teacher's active timetable with the attendance
// outcomes of one week.
func (s *AttendanceService) WeeklySchedule(ctx context.Context, req WeeklyScheduleRequest) (*WeeklySchedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "teacher_id is required")
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := today.AddDate(0, 0, -models.WeekdayIndex(today.Weekday()))
	end := start.AddDate(0, 0, 6)

	if req.StartDate != "" {
		if parsed, err := time.Parse(models.DateLayout, req.StartDate); err == nil {
			start = parsed
		}
	}
	if req.EndDate != "" {
		if parsed, err := time.Parse(models.DateLayout, req.EndDate); err == nil {
			end = parsed
		}
	}
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must not be before start date")
	}

	entries, err := s.timetables.List(ctx, models.TimetableFilter{TeacherID: req.TeacherID, ActiveOnly: true})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}

	records, err := s.repo.ListRange(ctx, models.AttendanceFilter{TeacherID: req.TeacherID, DateFrom: &start, DateTo: &end})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	byDate := make(map[string]models.AttendanceRecord, len(records))
	for _, record := range records {
		byDate[record.Date.Format(models.DateLayout)] = record
	}

	schedule := &WeeklySchedule{
		StartDate: start.Format(models.DateLayout),
		EndDate:   end.Format(models.DateLayout),
	}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dateStr := d.Format(models.DateLayout)
		dayIdx := models.WeekdayIndex(d.Weekday())

		day := models.WeeklyDayStatus{
			Date:       dateStr,
			DayOfWeek:  dayIdx,
			Timetables: []models.WeeklyTimetableSlot{},
			IsToday:    d.Equal(today),
		}
		for _, entry := range entries {
			if entry.DayOfWeek != dayIdx {
				continue
			}
			day.Timetables = append(day.Timetables, models.WeeklyTimetableSlot{
				ID:        entry.ID,
				StartTime: entry.StartTime,
				EndTime:   entry.EndTime,
			})
		}
		day.HasSchedule = len(day.Timetables) > 0

		if record, ok := byDate[dateStr]; ok {
			att := &models.WeeklyAttendance{Status: record.Status}
			if record.CheckInTime != nil {
				v := record.CheckInTime.Format("15:04")
				att.CheckInTime = &v
			}
			if record.CheckOutTime != nil {
				v := record.CheckOutTime.Format("15:04")
				att.CheckOutTime = &v
			}
			day.Attendance = att
		}
		schedule.Days = append(schedule.Days, day)
	}
	return schedule, nil
}

func (s *AttendanceService) parseDateOrToday(raw string) (time.Time, error) {
	if raw == "" {
		now := s.now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	date, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	return date, nil
}
