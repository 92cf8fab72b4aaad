package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekdayIndexStartsWeekOnMonday(t *testing.T) {
	assert.Equal(t, 0, WeekdayIndex(time.Monday))
	assert.Equal(t, 4, WeekdayIndex(time.Friday))
	assert.Equal(t, 6, WeekdayIndex(time.Sunday))
}

func TestDayNameOutOfRange(t *testing.T) {
	assert.Equal(t, "Monday", DayName(0))
	assert.Equal(t, "Sunday", DayName(6))
	assert.Equal(t, "Unknown", DayName(7))
	assert.Equal(t, "Unknown", DayName(-1))
}

func TestOverlapsIsHalfOpen(t *testing.T) {
	base := TimetableEntry{StartTime: "08:00", EndTime: "10:00"}

	assert.True(t, base.Overlaps(TimetableEntry{StartTime: "09:00", EndTime: "11:00"}))
	assert.True(t, base.Overlaps(TimetableEntry{StartTime: "08:30", EndTime: "09:30"}))
	assert.False(t, base.Overlaps(TimetableEntry{StartTime: "10:00", EndTime: "12:00"}))
	assert.False(t, base.Overlaps(TimetableEntry{StartTime: "06:00", EndTime: "08:00"}))
}

func TestValidClock(t *testing.T) {
	assert.True(t, ValidClock("00:00"))
	assert.True(t, ValidClock("23:59"))
	assert.False(t, ValidClock("8am"))
	assert.False(t, ValidClock("24:00"))
	assert.False(t, ValidClock(""))
}

func TestCombineDateClockKeepsLocation(t *testing.T) {
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	combined, err := CombineDateClock(date, "08:15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 8, 15, 0, 0, time.UTC), combined)

	_, err = CombineDateClock(date, "late")
	assert.Error(t, err)
}
