package models

import "time"

// ReconcileAction is the outcome of one decision-table evaluation.
type ReconcileAction string

const (
	ReconcileNoAction       ReconcileAction = "no_action"
	ReconcileMarkPresent    ReconcileAction = "mark_present"
	ReconcileMarkLate       ReconcileAction = "mark_late"
	ReconcileMarkAbsent     ReconcileAction = "mark_absent"
	ReconcileAlreadyPresent ReconcileAction = "already_present"
	ReconcileAlreadyAbsent  ReconcileAction = "already_absent"
	ReconcileSkippedError   ReconcileAction = "skipped_error"
)

// ReconcileDecision is one per-teacher row of the structured decision log.
type ReconcileDecision struct {
	TeacherID     string            `json:"teacher_id"`
	EntryID       string            `json:"entry_id"`
	Rule          string            `json:"rule"`
	Action        ReconcileAction   `json:"action"`
	NewStatus     *AttendanceStatus `json:"new_status,omitempty"`
	Reason        string            `json:"reason,omitempty"`
	Note          string            `json:"note,omitempty"`
	GraceDeadline time.Time         `json:"grace_deadline"`
	CheckInTime   *time.Time        `json:"check_in_time,omitempty"`
	Applied       bool              `json:"applied"`
	Error         string            `json:"error,omitempty"`
}

// ReconcileStats aggregates the counters of one reconciliation pass.
type ReconcileStats struct {
	TotalChecked   int `json:"total_checked"`
	MarkedAbsent   int `json:"marked_absent"`
	MarkedLate     int `json:"marked_late"`
	AlreadyPresent int `json:"already_present"`
	AlreadyAbsent  int `json:"already_absent"`
	NoAction       int `json:"no_action"`
	Skipped        int `json:"skipped"`
}

// ReconcileResult is the structured return of a reconciliation pass: purely a
// function of (date, config, repository state), no shared mutable counters.
type ReconcileResult struct {
	Date               string              `json:"date"`
	DayOfWeek          int                 `json:"day_of_week"`
	DayName            string              `json:"day_name"`
	GracePeriodMinutes int                 `json:"grace_period_minutes"`
	DryRun             bool                `json:"dry_run"`
	Decisions          []ReconcileDecision `json:"decisions"`
	Stats              ReconcileStats      `json:"stats"`
}
