package models

import (
	"fmt"
	"time"
)

var dayNames = [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// DayName returns the English name for a timetable weekday index (Monday=0).
func DayName(day int) string {
	if day < 0 || day > 6 {
		return "Unknown"
	}
	return dayNames[day]
}

// WeekdayIndex converts a time.Weekday (Sunday=0) into the timetable
// convention (Monday=0 .. Sunday=6).
func WeekdayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// TimetableEntry is a weekly recurring commitment for a teacher. Entries are
// soft-deactivated, never deleted, so historical reconciliation runs keep
// their referential integrity.
type TimetableEntry struct {
	ID            string     `db:"id" json:"id"`
	TeacherID     string     `db:"teacher_id" json:"teacher_id"`
	DayOfWeek     int        `db:"day_of_week" json:"day_of_week"`
	StartTime     string     `db:"start_time" json:"start_time"`
	EndTime       string     `db:"end_time" json:"end_time"`
	Active        bool       `db:"active" json:"active"`
	CreatedBy     *string    `db:"created_by" json:"created_by,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
	DeactivatedAt *time.Time `db:"deactivated_at" json:"deactivated_at,omitempty"`
}

// Overlaps reports whether two windows intersect using the half-open
// interval test. Clock values are fixed-width HH:MM strings, so the
// lexicographic comparison matches the chronological one.
func (e TimetableEntry) Overlaps(other TimetableEntry) bool {
	return e.StartTime < other.EndTime && e.EndTime > other.StartTime
}

// ClockLayout is the wire format for timetable clock values.
const ClockLayout = "15:04"

// ValidClock reports whether the value parses as an HH:MM clock.
func ValidClock(clock string) bool {
	_, err := time.Parse(ClockLayout, clock)
	return err == nil
}

// CombineDateClock anchors an HH:MM clock value on the given calendar date.
func CombineDateClock(date time.Time, clock string) (time.Time, error) {
	t, err := time.Parse(ClockLayout, clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse clock %q: %w", clock, err)
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location()), nil
}

// TimetableFilter scopes timetable listing.
type TimetableFilter struct {
	TeacherID  string
	DayOfWeek  *int
	ActiveOnly bool
}
