package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-engine/internal/models"
	appErrors "github.com/noah-isme/attendance-engine/pkg/errors"
)

type summaryRepoStub struct {
	teacherCounts *models.StatusCounts
	studentCounts *models.StatusCounts
	stored        map[string]*models.MonthlySummary

	teacherScans int
	studentScans int
	scannedFrom  time.Time
	scannedTo    time.Time
}

func newSummaryRepoStub() *summaryRepoStub {
	return &summaryRepoStub{stored: map[string]*models.MonthlySummary{}}
}

func (s *summaryRepoStub) key(userID string, month time.Time) string {
	return userID + "|" + month.Format(models.MonthLayout)
}

func (s *summaryRepoStub) Get(ctx context.Context, userID string, month time.Time) (*models.MonthlySummary, error) {
	summary, ok := s.stored[s.key(userID, month)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *summary
	return &clone, nil
}

func (s *summaryRepoStub) Upsert(ctx context.Context, summary *models.MonthlySummary) (*models.MonthlySummary, error) {
	clone := *summary
	clone.ID = "sum-1"
	clone.LastUpdated = time.Now()
	s.stored[s.key(summary.UserID, summary.Month)] = &clone
	out := clone
	return &out, nil
}

func (s *summaryRepoStub) CountTeacherStatuses(ctx context.Context, teacherID string, from, to time.Time) (*models.StatusCounts, error) {
	s.teacherScans++
	s.scannedFrom, s.scannedTo = from, to
	return s.teacherCounts, nil
}

func (s *summaryRepoStub) CountStudentStatuses(ctx context.Context, studentID string, from, to time.Time) (*models.StatusCounts, error) {
	s.studentScans++
	return s.studentCounts, nil
}

type summaryCacheStub struct {
	values  map[string][]byte
	gets    int
	sets    int
	deletes int
}

func newSummaryCacheStub() *summaryCacheStub {
	return &summaryCacheStub{values: map[string][]byte{}}
}

func (s *summaryCacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	s.gets++
	raw, ok := s.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	summary := dest.(*models.MonthlySummary)
	summary.ID = string(raw)
	return nil
}

func (s *summaryCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	s.sets++
	summary := value.(*models.MonthlySummary)
	s.values[key] = []byte(summary.ID)
	return nil
}

func (s *summaryCacheStub) DeleteByPattern(ctx context.Context, pattern string) error {
	s.deletes++
	delete(s.values, pattern)
	return nil
}

func TestSummaryRefreshTeacherMonth(t *testing.T) {
	repo := newSummaryRepoStub()
	repo.teacherCounts = &models.StatusCounts{Total: 20, Present: 15, Absent: 3, Late: 2}
	svc := NewSummaryService(repo, nil, 0, nil, nil)

	summary, err := svc.Refresh(context.Background(), RefreshSummaryRequest{
		UserID: "teacher-1", Month: "2026-03", Role: "teacher",
	})
	require.NoError(t, err)

	assert.Equal(t, 20, summary.TotalDays)
	assert.Equal(t, 15, summary.PresentDays)
	assert.Equal(t, 3, summary.AbsentDays)
	assert.Equal(t, 2, summary.LateDays)
	assert.InDelta(t, 75.0, summary.AttendanceRate, 0.001)

	assert.Equal(t, 1, repo.teacherScans)
	assert.Equal(t, "2026-03-01", repo.scannedFrom.Format(models.DateLayout))
	assert.Equal(t, "2026-03-31", repo.scannedTo.Format(models.DateLayout))
}

func TestSummaryRefreshFoldsPlannedIntoExcused(t *testing.T) {
	repo := newSummaryRepoStub()
	repo.teacherCounts = &models.StatusCounts{Total: 22, Present: 18, Absent: 1, Late: 1, PlannedAbsence: 2}
	svc := NewSummaryService(repo, nil, 0, nil, nil)

	summary, err := svc.Refresh(context.Background(), RefreshSummaryRequest{
		UserID: "teacher-1", Month: "2026-03",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ExcusedDays)
}

func TestSummaryRefreshStudentRole(t *testing.T) {
	repo := newSummaryRepoStub()
	repo.studentCounts = &models.StatusCounts{Total: 10, Present: 9, Excused: 1}
	svc := NewSummaryService(repo, nil, 0, nil, nil)

	summary, err := svc.Refresh(context.Background(), RefreshSummaryRequest{
		UserID: "student-1", Month: "2026-03", Role: "student",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.studentScans)
	assert.Equal(t, 0, repo.teacherScans)
	assert.Equal(t, 1, summary.ExcusedDays)
	assert.InDelta(t, 90.0, summary.AttendanceRate, 0.001)
}

func TestSummaryRefreshEmptyMonth(t *testing.T) {
	repo := newSummaryRepoStub()
	repo.teacherCounts = &models.StatusCounts{}
	svc := NewSummaryService(repo, nil, 0, nil, nil)

	summary, err := svc.Refresh(context.Background(), RefreshSummaryRequest{
		UserID: "teacher-1", Month: "2026-03",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalDays)
	assert.Equal(t, 0.0, summary.AttendanceRate)
}

func TestSummaryRefreshInvalidMonth(t *testing.T) {
	svc := NewSummaryService(newSummaryRepoStub(), nil, 0, nil, nil)

	_, err := svc.Refresh(context.Background(), RefreshSummaryRequest{UserID: "teacher-1", Month: "March 2026"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSummaryGetMissing(t *testing.T) {
	svc := NewSummaryService(newSummaryRepoStub(), nil, 0, nil, nil)

	_, err := svc.Get(context.Background(), "teacher-1", "2026-03")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Equal(t, "no summary for this month; refresh first", appErr.Message)
}

func TestSummaryGetServesFromCache(t *testing.T) {
	repo := newSummaryRepoStub()
	repo.teacherCounts = &models.StatusCounts{Total: 20, Present: 15, Absent: 3, Late: 2}
	cache := newSummaryCacheStub()
	svc := NewSummaryService(repo, cache, time.Minute, nil, nil)

	_, err := svc.Refresh(context.Background(), RefreshSummaryRequest{UserID: "teacher-1", Month: "2026-03"})
	require.NoError(t, err)

	first, err := svc.Get(context.Background(), "teacher-1", "2026-03")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	second, err := svc.Get(context.Background(), "teacher-1", "2026-03")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, cache.gets)
	assert.Equal(t, 1, cache.sets)
}

func TestSummaryRefreshInvalidatesCache(t *testing.T) {
	repo := newSummaryRepoStub()
	repo.teacherCounts = &models.StatusCounts{Total: 20, Present: 15, Absent: 3, Late: 2}
	cache := newSummaryCacheStub()
	svc := NewSummaryService(repo, cache, time.Minute, nil, nil)

	_, err := svc.Refresh(context.Background(), RefreshSummaryRequest{UserID: "teacher-1", Month: "2026-03"})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "teacher-1", "2026-03")
	require.NoError(t, err)

	// A corrected ledger triggers a refresh, which must drop the cached copy.
	repo.teacherCounts = &models.StatusCounts{Total: 20, Present: 16, Absent: 2, Late: 2}
	_, err = svc.Refresh(context.Background(), RefreshSummaryRequest{UserID: "teacher-1", Month: "2026-03"})
	require.NoError(t, err)
	assert.Equal(t, 2, cache.deletes)
	assert.Empty(t, cache.values)
}
