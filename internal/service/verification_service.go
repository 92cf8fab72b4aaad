package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-engine/internal/models"
	appErrors "github.com/noah-isme/attendance-engine/pkg/errors"
)

type verificationRepository interface {
	SetVerification(ctx context.Context, id string, authority models.VerificationAuthority, approved bool, notes string) (*models.AttendanceRecord, error)
}

// VerificationService lets the two reviewer authorities annotate ledger
// entries. Each authority owns its own flag and notes; a later call from the
// same authority overwrites only its own annotation, and status is never
// touched.
type VerificationService struct {
	repo      verificationRepository
	staff     staffDirectory
	notifier  Notifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewVerificationService constructs the verification service.
func NewVerificationService(repo verificationRepository, staff staffDirectory, notifier Notifier, validate *validator.Validate, logger *zap.Logger) *VerificationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerificationService{repo: repo, staff: staff, notifier: notifier, validator: validate, logger: logger}
}

// VerifyRequest is one authority's annotation of a ledger entry.
type VerifyRequest struct {
	RecordID   string `json:"record_id" validate:"required"`
	Authority  string `json:"authority" validate:"required,oneof=delegation advisor"`
	Approved   bool   `json:"approved"`
	Notes      string `json:"notes"`
	ReviewerID string `json:"reviewer_id" validate:"required"`
}

// Verify writes the annotation and notifies the teacher.
func (s *VerificationService) Verify(ctx context.Context, req VerifyRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid verification payload")
	}

	authority := models.VerificationAuthority(req.Authority)
	record, err := s.repo.SetVerification(ctx, req.RecordID, authority, req.Approved, req.Notes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify attendance")
	}

	s.notifyTeacher(ctx, record, req)
	return record, nil
}

func (s *VerificationService) notifyTeacher(ctx context.Context, record *models.AttendanceRecord, req VerifyRequest) {
	if s.notifier == nil {
		return
	}
	reviewerName := req.ReviewerID
	if s.staff != nil {
		if reviewer, err := s.staff.FindStaff(ctx, req.ReviewerID); err == nil {
			reviewerName = reviewer.FullName
		}
	}
	verdict := "verified"
	if !req.Approved {
		verdict = "flagged"
	}
	body := fmt.Sprintf("your attendance for %s has been %s by %s",
		record.Date.Format(models.DateLayout), verdict, reviewerName)
	s.notifier.Notify(ctx, record.TeacherID, models.NotificationAttendance,
		"Attendance Verified", body, "attendance_record", record.ID)
}
