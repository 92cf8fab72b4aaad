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

type summaryRepository interface {
	Get(ctx context.Context, userID string, month time.Time) (*models.MonthlySummary, error)
	Upsert(ctx context.Context, summary *models.MonthlySummary) (*models.MonthlySummary, error)
	CountTeacherStatuses(ctx context.Context, teacherID string, from, to time.Time) (*models.StatusCounts, error)
	CountStudentStatuses(ctx context.Context, studentID string, from, to time.Time) (*models.StatusCounts, error)
}

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// SummaryService maintains derived monthly attendance summaries. Refresh is
// always a full recompute over the month's ledger rows so retroactive
// corrections are absorbed, never patched around.
type SummaryService struct {
	repo      summaryRepository
	cache     summaryCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSummaryService constructs the summary service. cache may be nil.
func NewSummaryService(repo summaryRepository, cache summaryCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *SummaryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &SummaryService{repo: repo, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// RefreshSummaryRequest identifies the user-month to recompute.
type RefreshSummaryRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Month  string `json:"month" validate:"required"`
	Role   string `json:"role" validate:"omitempty,oneof=teacher student"`
}

// Refresh recomputes and stores the summary for one user and month.
func (s *SummaryService) Refresh(ctx context.Context, req RefreshSummaryRequest) (*models.MonthlySummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid summary payload")
	}
	month, err := time.Parse(models.MonthLayout, req.Month)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid month format, expected YYYY-MM")
	}
	firstDay := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastDay := firstDay.AddDate(0, 1, -1)

	var counts *models.StatusCounts
	if req.Role == "student" {
		counts, err = s.repo.CountStudentStatuses(ctx, req.UserID, firstDay, lastDay)
	} else {
		counts, err = s.repo.CountTeacherStatuses(ctx, req.UserID, firstDay, lastDay)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan attendance history")
	}

	summary := &models.MonthlySummary{
		UserID:      req.UserID,
		Month:       firstDay,
		TotalDays:   counts.Total,
		PresentDays: counts.Present,
		AbsentDays:  counts.Absent,
		LateDays:    counts.Late,
		// Planned absences count as excused days, matching how the ledger
		// treats a reported absence as a non-penalised day.
		ExcusedDays: counts.Excused + counts.PlannedAbsence,
	}
	if summary.TotalDays > 0 {
		summary.AttendanceRate = math.Round(float64(summary.PresentDays)/float64(summary.TotalDays)*100*100) / 100
	}

	stored, err := s.repo.Upsert(ctx, summary)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store summary")
	}

	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, s.cacheKey(req.UserID, req.Month)); err != nil {
			s.logger.Warn("failed to invalidate summary cache", zap.String("user_id", req.UserID), zap.Error(err))
		}
	}
	return stored, nil
}

// Get returns the stored summary for a user and month, serving repeat reads
// from cache when one is configured.
func (s *SummaryService) Get(ctx context.Context, userID, rawMonth string) (*models.MonthlySummary, error) {
	if userID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user_id is required")
	}
	month, err := time.Parse(models.MonthLayout, rawMonth)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid month format, expected YYYY-MM")
	}
	firstDay := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)

	key := s.cacheKey(userID, rawMonth)
	if s.cache != nil {
		var cached models.MonthlySummary
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("summary cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	summary, err := s.repo.Get(ctx, userID, firstDay)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no summary for this month; refresh first")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load summary")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, summary, s.cacheTTL); err != nil {
			s.logger.Warn("summary cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return summary, nil
}

func (s *SummaryService) cacheKey(userID, month string) string {
	return fmt.Sprintf("summary:%s:%s", userID, month)
}
