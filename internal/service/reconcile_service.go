package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-engine/internal/models"
	appErrors "github.com/noah-isme/attendance-engine/pkg/errors"
)

type reconcileTimetableRepository interface {
	ActiveForDay(ctx context.Context, day int) ([]models.TimetableEntry, error)
}

type reconcileLedgerRepository interface {
	FindByTeacherAndDate(ctx context.Context, teacherID string, date time.Time) (*models.AttendanceRecord, error)
	GetOrCreate(ctx context.Context, teacherID string, date time.Time, defaults models.AttendanceRecord) (*models.AttendanceRecord, bool, error)
	UpdateGuarded(ctx context.Context, record *models.AttendanceRecord, seenUpdatedAt time.Time) (bool, error)
}

// ReconcileService runs the grace-period batch pass: for one calendar date it
// derives or corrects the ledger entry of every teacher scheduled that
// weekday. Runs are idempotent and tolerate per-teacher failures.
type ReconcileService struct {
	timetables reconcileTimetableRepository
	ledger     reconcileLedgerRepository
	metrics    *MetricsService
	logger     *zap.Logger

	defaultGraceMinutes int
	// downgradeConfirmedPresent lets a pass demote present -> late when the
	// recorded check-in is past the grace deadline. Off by default because a
	// confirmed present should survive later automated passes.
	downgradeConfirmedPresent bool

	now func() time.Time
}

// NewReconcileService constructs the service.
func NewReconcileService(timetables reconcileTimetableRepository, ledger reconcileLedgerRepository, metrics *MetricsService, logger *zap.Logger, defaultGraceMinutes int, downgradeConfirmedPresent bool) *ReconcileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultGraceMinutes <= 0 {
		defaultGraceMinutes = 15
	}
	return &ReconcileService{
		timetables:                timetables,
		ledger:                    ledger,
		metrics:                   metrics,
		logger:                    logger,
		defaultGraceMinutes:       defaultGraceMinutes,
		downgradeConfirmedPresent: downgradeConfirmedPresent,
		now:                       time.Now,
	}
}

// ReconcileRequest is the scheduled-trigger contract.
type ReconcileRequest struct {
	Date               string `json:"date"`
	GracePeriodMinutes int    `json:"grace_period_minutes"`
	DryRun             bool   `json:"dry_run"`
}

// ruleInput is the state one decision-table evaluation sees.
type ruleInput struct {
	record          *models.AttendanceRecord
	created         bool
	graceDeadline   time.Time
	now             time.Time
	date            time.Time
	today           time.Time
	downgradeOnLate bool
}

// outcome is what a matched rule wants done to the record.
type outcome struct {
	action    models.ReconcileAction
	newStatus *models.AttendanceStatus
	reason    string
	note      string
}

// decisionRule is one ordered row of the reconciliation decision table.
// Rules are evaluated top to bottom; the first match wins.
type decisionRule struct {
	name    string
	matches func(in ruleInput) bool
	decide  func(in ruleInput) outcome
}

func statusPtr(s models.AttendanceStatus) *models.AttendanceStatus { return &s }

var decisionTable = []decisionRule{
	{
		// A record already present with a check-in stays untouched, unless
		// the downgrade flag allows the late rule below to claim it.
		name: "present-with-check-in",
		matches: func(in ruleInput) bool {
			if in.record.Status != models.StatusPresent || in.record.CheckInTime == nil {
				return false
			}
			if in.downgradeOnLate && in.record.CheckInTime.After(in.graceDeadline) {
				return false
			}
			return true
		},
		decide: func(in ruleInput) outcome {
			note := "already marked present"
			if in.record.CheckInTime.After(in.graceDeadline) {
				note = "confirmed present preserved despite late check-in"
			}
			return outcome{action: models.ReconcileAlreadyPresent, note: note}
		},
	},
	{
		name: "check-in-within-grace",
		matches: func(in ruleInput) bool {
			return in.record.CheckInTime != nil &&
				!in.record.CheckInTime.After(in.graceDeadline) &&
				in.record.Status != models.StatusPresent
		},
		decide: func(in ruleInput) outcome {
			return outcome{
				action:    models.ReconcileMarkPresent,
				newStatus: statusPtr(models.StatusPresent),
				reason:    fmt.Sprintf("checked in at %s", in.record.CheckInTime.Format("15:04:05")),
			}
		},
	},
	{
		name: "check-in-after-grace",
		matches: func(in ruleInput) bool {
			return in.record.CheckInTime != nil &&
				in.record.CheckInTime.After(in.graceDeadline) &&
				in.record.Status != models.StatusLate
		},
		decide: func(in ruleInput) outcome {
			minutesLate := int(in.record.CheckInTime.Sub(in.graceDeadline).Minutes())
			return outcome{
				action:    models.ReconcileMarkLate,
				newStatus: statusPtr(models.StatusLate),
				reason:    fmt.Sprintf("checked in %d minutes after grace period", minutesLate),
			}
		},
	},
	{
		name: "no-check-in-already-absent",
		matches: func(in ruleInput) bool {
			return in.record.CheckInTime == nil && !in.created &&
				(in.now.After(in.graceDeadline) || in.date.Before(in.today)) &&
				in.record.Status == models.StatusAbsent
		},
		decide: func(in ruleInput) outcome {
			return outcome{action: models.ReconcileAlreadyAbsent, note: "already marked absent"}
		},
	},
	{
		name: "no-check-in-past-deadline",
		matches: func(in ruleInput) bool {
			return in.record.CheckInTime == nil &&
				(in.now.After(in.graceDeadline) || in.date.Before(in.today)) &&
				in.record.Status != models.StatusPlannedAbsence
		},
		decide: func(in ruleInput) outcome {
			return outcome{
				action:    models.ReconcileMarkAbsent,
				newStatus: statusPtr(models.StatusAbsent),
				reason:    "no check-in by grace deadline",
			}
		},
	},
	{
		name: "within-grace-period",
		matches: func(in ruleInput) bool {
			return in.record.CheckInTime == nil &&
				!in.now.After(in.graceDeadline) &&
				in.date.Equal(in.today)
		},
		decide: func(in ruleInput) outcome {
			return outcome{action: models.ReconcileNoAction, note: "still within grace period"}
		},
	},
	{
		// Planned absences and states the earlier rules declined to touch.
		name:    "no-op",
		matches: func(in ruleInput) bool { return true },
		decide: func(in ruleInput) outcome {
			return outcome{action: models.ReconcileNoAction, note: fmt.Sprintf("status %s preserved", in.record.Status)}
		},
	},
}

// Run executes one reconciliation pass. A malformed date fails before any
// mutation; individual teacher failures are logged, counted and skipped.
func (s *ReconcileService) Run(ctx context.Context, req ReconcileRequest) (*models.ReconcileResult, error) {
	date, err := time.Parse(models.DateLayout, req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	grace := req.GracePeriodMinutes
	if grace <= 0 {
		grace = s.defaultGraceMinutes
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, date.Location())
	day := models.WeekdayIndex(date.Weekday())

	result := &models.ReconcileResult{
		Date:               req.Date,
		DayOfWeek:          day,
		DayName:            models.DayName(day),
		GracePeriodMinutes: grace,
		DryRun:             req.DryRun,
	}

	entries, err := s.timetables.ActiveForDay(ctx, day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entries")
	}

	started := s.now()
	s.logger.Info("reconciliation pass started",
		zap.String("date", req.Date),
		zap.String("day", result.DayName),
		zap.Int("grace_period_minutes", grace),
		zap.Bool("dry_run", req.DryRun),
		zap.Int("entries", len(entries)))

	for _, entry := range entries {
		decision := s.reconcileEntry(ctx, entry, date, today, now, grace, req.DryRun)
		result.Decisions = append(result.Decisions, decision)
		s.tally(&result.Stats, decision)

		if !req.DryRun && s.metrics != nil {
			s.metrics.ObserveReconcileDecision(decision.Action)
		}

		field := s.logger.Info
		if decision.Action == models.ReconcileSkippedError {
			field = s.logger.Warn
		}
		field("reconcile decision",
			zap.String("teacher_id", decision.TeacherID),
			zap.String("rule", decision.Rule),
			zap.String("action", string(decision.Action)),
			zap.String("reason", decision.Reason),
			zap.Bool("applied", decision.Applied),
			zap.String("error", decision.Error))
	}

	if s.metrics != nil {
		s.metrics.ObserveReconcileRun(s.now().Sub(started))
	}

	s.logger.Info("reconciliation pass finished",
		zap.String("date", req.Date),
		zap.Int("total_checked", result.Stats.TotalChecked),
		zap.Int("marked_absent", result.Stats.MarkedAbsent),
		zap.Int("marked_late", result.Stats.MarkedLate),
		zap.Int("already_present", result.Stats.AlreadyPresent),
		zap.Int("already_absent", result.Stats.AlreadyAbsent),
		zap.Int("no_action", result.Stats.NoAction),
		zap.Int("skipped", result.Stats.Skipped))

	return result, nil
}

// reconcileEntry evaluates and, outside dry runs, applies the decision table
// for one timetable entry. A lost compare-and-set race re-reads and
// re-decides once before the teacher is skipped.
func (s *ReconcileService) reconcileEntry(ctx context.Context, entry models.TimetableEntry, date, today, now time.Time, graceMinutes int, dryRun bool) models.ReconcileDecision {
	decision := models.ReconcileDecision{TeacherID: entry.TeacherID, EntryID: entry.ID}

	deadline, err := models.CombineDateClock(date, entry.StartTime)
	if err != nil {
		decision.Action = models.ReconcileSkippedError
		decision.Error = err.Error()
		return decision
	}
	deadline = deadline.Add(time.Duration(graceMinutes) * time.Minute)
	decision.GraceDeadline = deadline

	record, created, err := s.loadRecord(ctx, entry.TeacherID, date, dryRun)
	if err != nil {
		decision.Action = models.ReconcileSkippedError
		decision.Error = err.Error()
		s.logger.Warn("reconcile skipping teacher",
			zap.String("teacher_id", entry.TeacherID),
			zap.String("date", date.Format(models.DateLayout)),
			zap.Error(err))
		return decision
	}

	for attempt := 0; attempt < 2; attempt++ {
		in := ruleInput{
			record:          record,
			created:         created,
			graceDeadline:   deadline,
			now:             now,
			date:            date,
			today:           today,
			downgradeOnLate: s.downgradeConfirmedPresent,
		}

		rule, out := evaluate(in)
		decision.Rule = rule
		decision.Action = out.action
		decision.NewStatus = out.newStatus
		decision.Reason = out.reason
		decision.Note = out.note
		decision.CheckInTime = record.CheckInTime

		if out.newStatus == nil || dryRun {
			return decision
		}

		seen := record.UpdatedAt
		record.Status = *out.newStatus
		record.Reason = out.reason
		applied, err := s.ledger.UpdateGuarded(ctx, record, seen)
		if err != nil {
			decision.Action = models.ReconcileSkippedError
			decision.Error = err.Error()
			return decision
		}
		if applied {
			decision.Applied = true
			return decision
		}

		// Lost the race against a concurrent writer; re-read and re-decide.
		created = false
		record, err = s.ledger.FindByTeacherAndDate(ctx, entry.TeacherID, date)
		if err != nil {
			decision.Action = models.ReconcileSkippedError
			decision.Error = fmt.Sprintf("reload after conflict: %v", err)
			return decision
		}
	}

	decision.Action = models.ReconcileSkippedError
	decision.Error = "concurrent updates exhausted retries"
	return decision
}

func (s *ReconcileService) loadRecord(ctx context.Context, teacherID string, date time.Time, dryRun bool) (*models.AttendanceRecord, bool, error) {
	defaults := models.AttendanceRecord{
		Status: models.StatusAbsent,
		Reason: "no check-in recorded within scheduled hours",
	}

	if dryRun {
		record, err := s.ledger.FindByTeacherAndDate(ctx, teacherID, date)
		if err == nil {
			return record, false, nil
		}
		if errors.Is(err, sql.ErrNoRows) {
			// Dry runs never persist; evaluate against the would-be default.
			defaults.TeacherID = teacherID
			defaults.Date = date
			return &defaults, true, nil
		}
		return nil, false, err
	}

	return s.ledger.GetOrCreate(ctx, teacherID, date, defaults)
}

func evaluate(in ruleInput) (string, outcome) {
	for _, rule := range decisionTable {
		if rule.matches(in) {
			return rule.name, rule.decide(in)
		}
	}
	// The table ends with a catch-all; this is unreachable.
	return "no-op", outcome{action: models.ReconcileNoAction}
}

func (s *ReconcileService) tally(stats *models.ReconcileStats, decision models.ReconcileDecision) {
	stats.TotalChecked++
	switch decision.Action {
	case models.ReconcileMarkAbsent:
		stats.MarkedAbsent++
	case models.ReconcileMarkLate:
		stats.MarkedLate++
	case models.ReconcileMarkPresent, models.ReconcileAlreadyPresent:
		stats.AlreadyPresent++
	case models.ReconcileAlreadyAbsent:
		stats.AlreadyAbsent++
	case models.ReconcileSkippedError:
		stats.Skipped++
	default:
		stats.NoAction++
	}
}
