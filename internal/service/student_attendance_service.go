package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-engine/internal/models"
	appErrors "github.com/noah-isme/attendance-engine/pkg/errors"
)

type studentAttendanceRepository interface {
	BulkUpsert(ctx context.Context, records []models.StudentAttendanceRecord) (created int, updated int, stored []models.StudentAttendanceRecord, err error)
	ByTeacherAndDate(ctx context.Context, teacherID string, date time.Time) ([]models.StudentAttendanceRecord, error)
}

type teacherLedgerReader interface {
	FindByTeacherAndDate(ctx context.Context, teacherID string, date time.Time) (*models.AttendanceRecord, error)
}

// StudentAttendanceService captures student attendance behind the dependency
// gate: a teacher may only mark students on a date where their own ledger
// entry is present.
type StudentAttendanceService struct {
	repo      studentAttendanceRepository
	ledger    teacherLedgerReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentAttendanceService constructs the service.
func NewStudentAttendanceService(repo studentAttendanceRepository, ledger teacherLedgerReader, validate *validator.Validate, logger *zap.Logger) *StudentAttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &StudentAttendanceService{repo: repo, ledger: ledger, validator: validate, logger: logger}
	svc.validator.RegisterValidation("student_status", func(fl validator.FieldLevel) bool {
		return models.StudentAttendanceStatus(strings.ToLower(fl.Field().String())).Valid()
	})
	return svc
}

// BulkStudentItem is one student's state within a bulk capture.
type BulkStudentItem struct {
	StudentID string `json:"student_id" validate:"required"`
	Status    string `json:"status" validate:"required,student_status"`
	Notes     string `json:"notes"`
}

// BulkMarkRequest captures a class session's attendance in one call.
type BulkMarkRequest struct {
	TeacherID string            `json:"teacher_id" validate:"required"`
	Date      string            `json:"date" validate:"required"`
	Items     []BulkStudentItem `json:"items" validate:"required,min=1,dive"`
	LessonID  *string           `json:"lesson_id"`
}

// BulkMarkResult summarises a bulk capture.
type BulkMarkResult struct {
	Marked  int                              `json:"marked"`
	Created int                              `json:"created"`
	Updated int                              `json:"updated"`
	Records []models.StudentAttendanceRecord `json:"records"`
}

// BulkMark upserts every (student, teacher, date) row after the dependency
// gate passes. The latest write for a key wins.
func (s *StudentAttendanceService) BulkMark(ctx context.Context, req BulkMarkRequest) (*BulkMarkResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk attendance payload")
	}
	date, err := time.Parse(models.DateLayout, req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}

	teacherRecord, err := s.ledger.FindByTeacherAndDate(ctx, req.TeacherID, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "teacher must be present before marking students")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher attendance")
	}
	if teacherRecord.Status != models.StatusPresent {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "teacher must be present before marking students")
	}

	records := make([]models.StudentAttendanceRecord, 0, len(req.Items))
	for _, item := range req.Items {
		records = append(records, models.StudentAttendanceRecord{
			StudentID:           item.StudentID,
			TeacherID:           req.TeacherID,
			Date:                date,
			Status:              models.StudentAttendanceStatus(strings.ToLower(item.Status)),
			Notes:               item.Notes,
			TeacherAttendanceID: teacherRecord.ID,
			LessonID:            req.LessonID,
		})
	}

	created, updated, stored, err := s.repo.BulkUpsert(ctx, records)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark student attendance")
	}
	return &BulkMarkResult{Marked: created + updated, Created: created, Updated: updated, Records: stored}, nil
}

// ByDate returns everything a teacher captured on a date, with counts.
func (s *StudentAttendanceService) ByDate(ctx context.Context, teacherID, rawDate string) (*models.StudentAttendanceReport, error) {
	if teacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher_id is required")
	}
	date, err := time.Parse(models.DateLayout, rawDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}

	records, err := s.repo.ByTeacherAndDate(ctx, teacherID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student attendance")
	}

	report := &models.StudentAttendanceReport{
		Date:    rawDate,
		Records: records,
		Total:   len(records),
	}
	for _, record := range records {
		switch record.Status {
		case models.StudentStatusPresent:
			report.Present++
		case models.StudentStatusAbsent:
			report.Absent++
		case models.StudentStatusLate:
			report.Late++
		case models.StudentStatusExcused:
			report.Excused++
		}
	}
	return report, nil
}
