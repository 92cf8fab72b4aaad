package models

import "time"

// AttendanceStatus represents the daily state of a teacher's attendance record.
type AttendanceStatus string

const (
	StatusPresent        AttendanceStatus = "present"
	StatusAbsent         AttendanceStatus = "absent"
	StatusLate           AttendanceStatus = "late"
	StatusPlannedAbsence AttendanceStatus = "planned_absence"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusPlannedAbsence:
		return true
	default:
		return false
	}
}

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// AttendanceRecord is the authoritative per-(teacher, date) ledger row.
// Unique on (teacher_id, date); rows are created on first check-in, first
// reconciliation pass or first planned-absence report and are never deleted.
type AttendanceRecord struct {
	ID        string           `db:"id" json:"id"`
	TeacherID string           `db:"teacher_id" json:"teacher_id"`
	Date      time.Time        `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`

	CheckInTime  *time.Time `db:"check_in_time" json:"check_in_time,omitempty"`
	CheckOutTime *time.Time `db:"check_out_time" json:"check_out_time,omitempty"`

	Reason    string     `db:"reason" json:"reason,omitempty"`
	IsPlanned bool       `db:"is_planned" json:"is_planned"`
	PlannedAt *time.Time `db:"planned_at" json:"planned_at,omitempty"`

	// Verification flags stay nil until the matching authority annotates
	// the record. Each authority owns its own flag/notes pair.
	VerifiedByDelegation *bool  `db:"verified_by_delegation" json:"verified_by_delegation,omitempty"`
	DelegationNotes      string `db:"delegation_notes" json:"delegation_notes,omitempty"`
	VerifiedByAdvisor    *bool  `db:"verified_by_advisor" json:"verified_by_advisor,omitempty"`
	AdvisorNotes         string `db:"advisor_notes" json:"advisor_notes,omitempty"`

	TeachingPlanID *string `db:"teaching_plan_id" json:"teaching_plan_id,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AttendanceFilter scopes ledger range scans.
type AttendanceFilter struct {
	TeacherID string
	DateFrom  *time.Time
	DateTo    *time.Time
}

// AttendanceStats aggregates a set of ledger rows for a teacher.
type AttendanceStats struct {
	TotalDays      int     `json:"total_days"`
	Present        int     `json:"present"`
	Absent         int     `json:"absent"`
	Late           int     `json:"late"`
	PlannedAbsence int     `json:"planned_absence"`
	AttendanceRate float64 `json:"attendance_rate"`
}

// WeeklyTimetableSlot is a timetable window surfaced in the weekly view.
type WeeklyTimetableSlot struct {
	ID        string `json:"id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// WeeklyDayStatus merges one day's schedule with its attendance outcome.
type WeeklyDayStatus struct {
	Date        string                `json:"date"`
	DayOfWeek   int                   `json:"day_of_week"`
	HasSchedule bool                  `json:"has_schedule"`
	Timetables  []WeeklyTimetableSlot `json:"timetables"`
	Attendance  *WeeklyAttendance     `json:"attendance,omitempty"`
	IsToday     bool                  `json:"is_today"`
}

// WeeklyAttendance is the attendance slice of a weekly day entry.
type WeeklyAttendance struct {
	Status       AttendanceStatus `json:"status"`
	CheckInTime  *string          `json:"check_in_time,omitempty"`
	CheckOutTime *string          `json:"check_out_time,omitempty"`
}

// VerificationAuthority identifies one of the two independent reviewer roles.
type VerificationAuthority string

const (
	AuthorityDelegation VerificationAuthority = "delegation"
	AuthorityAdvisor    VerificationAuthority = "advisor"
)

// Valid returns true for a known reviewer role.
func (a VerificationAuthority) Valid() bool {
	return a == AuthorityDelegation || a == AuthorityAdvisor
}
