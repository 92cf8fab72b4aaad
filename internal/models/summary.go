package models

import "time"

// MonthlySummary holds per-user monthly attendance counts. It is always a
// full recompute from the ledger, never patched incrementally, so it stays
// consistent after retroactive corrections. Unique on (user_id, month).
type MonthlySummary struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"user_id"`
	Month          time.Time `db:"month" json:"month"`
	TotalDays      int       `db:"total_days" json:"total_days"`
	PresentDays    int       `db:"present_days" json:"present_days"`
	AbsentDays     int       `db:"absent_days" json:"absent_days"`
	LateDays       int       `db:"late_days" json:"late_days"`
	ExcusedDays    int       `db:"excused_days" json:"excused_days"`
	AttendanceRate float64   `db:"attendance_rate" json:"attendance_rate"`
	LastUpdated    time.Time `db:"last_updated" json:"last_updated"`
}

// MonthLayout is the wire format for summary month keys.
const MonthLayout = "2006-01"

// StatusCounts carries raw per-status counts scanned from the ledger.
type StatusCounts struct {
	Total          int `db:"total"`
	Present        int `db:"present"`
	Absent         int `db:"absent"`
	Late           int `db:"late"`
	Excused        int `db:"excused"`
	PlannedAbsence int `db:"planned_absence"`
}
