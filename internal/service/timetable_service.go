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

type timetableRepository interface {
	List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableEntry, error)
	FindByID(ctx context.Context, id string) (*models.TimetableEntry, error)
	ActiveOverlapping(ctx context.Context, teacherID string, day int, start, end, excludeID string) ([]models.TimetableEntry, error)
	Create(ctx context.Context, entry *models.TimetableEntry) error
	Update(ctx context.Context, entry *models.TimetableEntry) error
	Deactivate(ctx context.Context, id string) error
}

// TimetableService manages weekly recurring teacher commitments.
type TimetableService struct {
	repo      timetableRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTimetableService constructs the timetable service.
func NewTimetableService(repo timetableRepository, validate *validator.Validate, logger *zap.Logger) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &TimetableService{repo: repo, validator: validate, logger: logger}
	svc.validator.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return models.ValidClock(fl.Field().String())
	})
	return svc
}

// UpsertTimetableRequest creates or, when ID is set, updates an entry.
type UpsertTimetableRequest struct {
	ID        string  `json:"id"`
	TeacherID string  `json:"teacher_id" validate:"required"`
	DayOfWeek int     `json:"day_of_week" validate:"min=0,max=6"`
	StartTime string  `json:"start_time" validate:"required,clock"`
	EndTime   string  `json:"end_time" validate:"required,clock"`
	Active    *bool   `json:"active"`
	CreatedBy *string `json:"created_by"`
}

// Upsert validates the window and writes the entry. A window intersecting an
// existing active window for the same teacher and day is rejected.
func (s *TimetableService) Upsert(ctx context.Context, req UpsertTimetableRequest) (*models.TimetableEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable payload")
	}
	if req.EndTime <= req.StartTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	if active {
		clashes, err := s.repo.ActiveOverlapping(ctx, req.TeacherID, req.DayOfWeek, req.StartTime, req.EndTime, req.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check timetable overlap")
		}
		if len(clashes) > 0 {
			clash := clashes[0]
			return nil, appErrors.Clone(appErrors.ErrConflict,
				fmt.Sprintf("window overlaps existing %s entry %s-%s", models.DayName(clash.DayOfWeek), clash.StartTime, clash.EndTime))
		}
	}

	if req.ID == "" {
		entry := &models.TimetableEntry{
			TeacherID: req.TeacherID,
			DayOfWeek: req.DayOfWeek,
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
			Active:    active,
			CreatedBy: req.CreatedBy,
		}
		if err := s.repo.Create(ctx, entry); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable entry")
		}
		return entry, nil
	}

	entry, err := s.repo.FindByID(ctx, req.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entry")
	}
	entry.DayOfWeek = req.DayOfWeek
	entry.StartTime = req.StartTime
	entry.EndTime = req.EndTime
	entry.Active = active
	if err := s.repo.Update(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update timetable entry")
	}
	return entry, nil
}

// Deactivate soft-deletes an entry.
func (s *TimetableService) Deactivate(ctx context.Context, id string) error {
	if id == "" {
		return appErrors.Clone(appErrors.ErrValidation, "timetable entry id is required")
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entry")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate timetable entry")
	}
	return nil
}

// List returns a teacher's entries ordered by day then start time.
func (s *TimetableService) List(ctx context.Context, teacherID string, activeOnly bool) ([]models.TimetableEntry, error) {
	if teacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher_id is required")
	}
	entries, err := s.repo.List(ctx, models.TimetableFilter{TeacherID: teacherID, ActiveOnly: activeOnly})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable entries")
	}
	return entries, nil
}
