package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-engine/internal/models"
	appErrors "github.com/noah-isme/attendance-engine/pkg/errors"
)

type timetableStub struct {
	entries []models.TimetableEntry
	err     error
}

func (s timetableStub) ActiveForDay(ctx context.Context, day int) ([]models.TimetableEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.entries, nil
}

type ledgerStub struct {
	records map[string]*models.AttendanceRecord

	getOrCreateErr map[string]error
	failUpdates    int
	getOrCreates   int
	updates        int
}

func newLedgerStub() *ledgerStub {
	return &ledgerStub{records: map[string]*models.AttendanceRecord{}}
}

func (s *ledgerStub) key(teacherID string, date time.Time) string {
	return teacherID + "|" + date.Format(models.DateLayout)
}

func (s *ledgerStub) FindByTeacherAndDate(ctx context.Context, teacherID string, date time.Time) (*models.AttendanceRecord, error) {
	record, ok := s.records[s.key(teacherID, date)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *record
	return &clone, nil
}

func (s *ledgerStub) GetOrCreate(ctx context.Context, teacherID string, date time.Time, defaults models.AttendanceRecord) (*models.AttendanceRecord, bool, error) {
	s.getOrCreates++
	if err := s.getOrCreateErr[teacherID]; err != nil {
		return nil, false, err
	}
	if record, ok := s.records[s.key(teacherID, date)]; ok {
		clone := *record
		return &clone, false, nil
	}
	record := defaults
	record.ID = fmt.Sprintf("rec-%d", len(s.records)+1)
	record.TeacherID = teacherID
	record.Date = date
	record.UpdatedAt = date
	s.records[s.key(teacherID, date)] = &record
	clone := record
	return &clone, true, nil
}

func (s *ledgerStub) UpdateGuarded(ctx context.Context, record *models.AttendanceRecord, seenUpdatedAt time.Time) (bool, error) {
	if s.failUpdates > 0 {
		s.failUpdates--
		return false, nil
	}
	stored, ok := s.records[s.key(record.TeacherID, record.Date)]
	if !ok || !stored.UpdatedAt.Equal(seenUpdatedAt) {
		return false, nil
	}
	s.updates++
	clone := *record
	clone.UpdatedAt = seenUpdatedAt.Add(time.Minute)
	s.records[s.key(record.TeacherID, record.Date)] = &clone
	return true, nil
}

const reconcileDate = "2026-03-02" // a Monday

func reconcileFixture(t *testing.T, ledger *ledgerStub, downgrade bool, now string) *ReconcileService {
	t.Helper()
	entries := []models.TimetableEntry{
		{ID: "tt-1", TeacherID: "teacher-1", DayOfWeek: 0, StartTime: "08:00", EndTime: "10:00", Active: true},
	}
	svc := NewReconcileService(timetableStub{entries: entries}, ledger, nil, nil, 15, downgrade)
	svc.now = func() time.Time {
		parsed, err := time.Parse("2006-01-02 15:04:05", now)
		require.NoError(t, err)
		return parsed
	}
	return svc
}

func dateAt(t *testing.T, clock string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02 15:04:05", reconcileDate+" "+clock)
	require.NoError(t, err)
	return parsed
}

func seedRecord(ledger *ledgerStub, status models.AttendanceStatus, checkIn *time.Time) {
	date, _ := time.Parse(models.DateLayout, reconcileDate)
	ledger.records[ledger.key("teacher-1", date)] = &models.AttendanceRecord{
		ID:          "rec-1",
		TeacherID:   "teacher-1",
		Date:        date,
		Status:      status,
		CheckInTime: checkIn,
		UpdatedAt:   date,
	}
}

func TestReconcileMarksAbsentPastDeadline(t *testing.T) {
	ledger := newLedgerStub()
	svc := reconcileFixture(t, ledger, false, reconcileDate+" 09:00:00")

	result, err := svc.Run(context.Background(), ReconcileRequest{Date: reconcileDate})
	require.NoError(t, err)

	require.Len(t, result.Decisions, 1)
	decision := result.Decisions[0]
	assert.Equal(t, "no-check-in-past-deadline", decision.Rule)
	assert.Equal(t, models.ReconcileMarkAbsent, decision.Action)
	assert.True(t, decision.Applied)
	assert.Equal(t, 1, result.Stats.MarkedAbsent)

	date, _ := time.Parse(models.DateLayout, reconcileDate)
	stored := ledger.records[ledger.key("teacher-1", date)]
	require.NotNil(t, stored)
	assert.Equal(t, models.StatusAbsent, stored.Status)
	assert.Equal(t, "no check-in by grace deadline", stored.Reason)
}

func TestReconcileCheckInExactlyAtDeadline(t *testing.T) {
	ledger := newLedgerStub()
	checkIn := dateAt(t, "08:15:00")
	seedRecord(ledger, models.StatusAbsent, &checkIn)
	svc := reconcileFixture(t, ledger, false, reconcileDate+" 09:00:00")

	result, err := svc.Run(context.Background(), ReconcileRequest{Date: reconcileDate})
	require.NoError(t, err)

	decision := result.Decisions[0]
	assert.Equal(t, "check-in-within-grace", decision.Rule)
	assert.Equal(t, models.ReconcileMarkPresent, decision.Action)
	assert.True(t, decision.Applied)
	assert.Equal(t, 1, result.Stats.AlreadyPresent)

	date, _ := time.Parse(models.DateLayout, reconcileDate)
	assert.Equal(t, models.StatusPresent, ledger.records[ledger.key("teacher-1", date)].Status)
}

func TestReconcileCheckInOneSecondLate(t *testing.T) {
	ledger := newLedgerStub()
	checkIn := dateAt(t, "08:15:01")
	seedRecord(ledger, models.StatusAbsent, &checkIn)
	svc := reconcileFixture(t, ledger, false, reconcileDate+" 09:00:00")

	result, err := svc.Run(context.Background(), ReconcileRequest{Date: reconcileDate})
	require.NoError(t, err)

	decision := result.Decisions[0]
	assert.Equal(t, "check-in-after-grace", decision.Rule)
	assert.Equal(t, models.ReconcileMarkLate, decision.Action)
	assert.Equal(t, 1, result.Stats.MarkedLate)
}

func TestReconcileLateReasonMinutes(t *testing.T) {
	ledger := newLedgerStub()
	checkIn := dateAt(t, "08:25:00")
	seedRecord(ledger, models.StatusAbsent, &checkIn)
	svc := reconcileFixture(t, ledger, false, reconcileDate+" 09:00:00")

	result, err := svc.Run(context.Background(), ReconcileRequest{Date: reconcileDate})
	require.NoError(t, err)

	assert.Equal(t, "checked in 10 minutes after grace period", result.Decisions[0].Reason)
}

func TestReconcilePresentPreservedDespiteLateCheckIn(t *testing.T) {
	ledger := newLedgerStub()
	checkIn := dateAt(t, "08:40:00")
	seedRecord(ledger, models.StatusPresent, &checkIn)
	svc := reconcileFixture(t, ledger, false, reconcileDate+" 09:00:00")

	result, err := svc.Run(context.Background(), ReconcileRequest{Date: reconcileDate})
	require.NoError(t, err)

	decision := result.Decisions[0]
	assert.Equal(t, "present-with-check-in", decision.Rule)
	assert.Equal(t, models.ReconcileAlreadyPresent, decision.Action)
	assert.Equal(t, "confirmed present preserved despite late check-in", decision.Note)
	assert.Equal(t, 0, ledger.updates)
}

func TestReconcileDowngradePresentWhenEnabled(t *testing.T) {
	ledger := newLedgerStub()
	checkIn := dateAt(t, "08:40:00")
	seedRecord(ledger, models.StatusPresent, &checkIn)
	svc := reconcileFixture(t, ledger, true, reconcileDate+" 09:00:00")

	result, err := svc.Run(context.Background(), ReconcileRequest{Date: reconcileDate})
	require.NoError(t, err)

	decision := result.Decisions[0]
	assert.Equal(t, "check-in-after-grace", decision.Rule)
	assert.Equal(t, models.ReconcileMarkLate, decision.Action)
	assert.True(t, decision.Applied)

	date, _ := time.Parse(models.DateLayout, reconcileDate)
	assert.Equal(t, models.StatusLate, ledger.records[ledger.key("teacher-1", date)].Status)
}

func TestReconcileWithinGraceNoAction(t *testing.T) {
	ledger := newLedgerStub()
	svc := reconcileFixture(t, ledger, false, reconcileDate+" 08:10:00")

	result, err := svc.Run(context.Background(), ReconcileRequest{Date: reconcileDate})
	require.NoError(t, err)

	decision := result.Decisions[0]
	assert.Equal(t, "within-grace-period", decision.Rule)
	assert.Equal(t, models.ReconcileNoAction, decision.Action)
	assert.Equal(t, "still within grace period", decision.Note)
	assert.Equal(t, 1, result.Stats.NoAction)
	assert.Equal(t, 0, ledger.updates)
}

func TestReconcilePlannedAbsencePreserved(t *testing.T) {
	ledger := newLedgerStub()
	seedRecord(ledger, models.StatusPlannedAbsence, nil)
	svc := reconcileFixture(t, ledger, false, reconcileDate+" 09:00:00")

	result, err := svc.Run(context.Background(), ReconcileRequest{Date: reconcileDate})
	require.NoError(t, err)

	decision := result.Decisions[0]
	assert.Equal(t, "no-op", decision.Rule)
	assert.Equal(t, models.ReconcileNoAction, decision.Action)
	assert.Equal(t, "status planned_absence preserved", decision.Note)

	date, _ := time.Parse(models.DateLayout, reconcileDate)
	assert.Equal(t, models.StatusPlannedAbsence, ledger.records[ledger.key("teacher-1", date)].Status)
}

func TestReconcileIdempotent(t *testing.T) {
	ledger := newLedgerStub()
	svc := reconcileFixture(t, ledger, false, reconcileDate+" 09:00:00")

	first, err := svc.Run(context.Background(), ReconcileRequest{Date: reconcileDate})
	require.NoError(t, err)
	second, err := svc.Run(context.Background(), ReconcileRequest{Date: reconcileDate})
	require.NoError(t, err)

	assert.Equal(t, 1, first.Stats.MarkedAbsent)
	assert.Equal(t, models.ReconcileAlreadyAbsent, second.Decisions[0].Action)
	assert.Equal(t, 1, second.Stats.AlreadyAbsent)
	assert.Equal(t, 1, ledger.updates)
}

func TestReconcileDryRunDoesNotPersist(t *testing.T) {
	ledger := newLedgerStub()
	svc := reconcileFixture(t, ledger, false, reconcileDate+" 09:00:00")

	result, err := svc.Run(context.Background(), ReconcileRequest{Date: reconcileDate, DryRun: true})
	require.NoError(t, err)

	decision := result.Decisions[0]
	assert.Equal(t, "no-check-in-past-deadline", decision.Rule)
	assert.Equal(t, models.ReconcileMarkAbsent, decision.Action)
	assert.False(t, decision.Applied)
	assert.Equal(t, 0, ledger.getOrCreates)
	assert.Empty(t, ledger.records)
}

func TestReconcileInvalidDate(t *testing.T) {
	svc := reconcileFixture(t, newLedgerStub(), false, reconcileDate+" 09:00:00")

	_, err := svc.Run(context.Background(), ReconcileRequest{Date: "03/02/2026"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestReconcileLostRaceReDecides(t *testing.T) {
	ledger := newLedgerStub()
	checkIn := dateAt(t, "08:05:00")
	seedRecord(ledger, models.StatusAbsent, &checkIn)
	ledger.failUpdates = 1
	svc := reconcileFixture(t, ledger, false, reconcileDate+" 09:00:00")

	result, err := svc.Run(context.Background(), ReconcileRequest{Date: reconcileDate})
	require.NoError(t, err)

	decision := result.Decisions[0]
	assert.Equal(t, models.ReconcileMarkPresent, decision.Action)
	assert.True(t, decision.Applied)
	assert.Equal(t, 1, ledger.updates)
}

func TestReconcilePerTeacherFailureSkips(t *testing.T) {
	ledger := newLedgerStub()
	ledger.getOrCreateErr = map[string]error{"teacher-1": errors.New("connection reset")}
	entries := []models.TimetableEntry{
		{ID: "tt-1", TeacherID: "teacher-1", DayOfWeek: 0, StartTime: "08:00", EndTime: "10:00", Active: true},
		{ID: "tt-2", TeacherID: "teacher-2", DayOfWeek: 0, StartTime: "08:00", EndTime: "10:00", Active: true},
	}
	svc := NewReconcileService(timetableStub{entries: entries}, ledger, nil, nil, 15, false)
	svc.now = func() time.Time { return dateAt(t, "09:00:00") }

	result, err := svc.Run(context.Background(), ReconcileRequest{Date: reconcileDate})
	require.NoError(t, err)

	require.Len(t, result.Decisions, 2)
	assert.Equal(t, models.ReconcileSkippedError, result.Decisions[0].Action)
	assert.Equal(t, models.ReconcileMarkAbsent, result.Decisions[1].Action)
	assert.Equal(t, 1, result.Stats.Skipped)
	assert.Equal(t, 2, result.Stats.TotalChecked)
}
