package models

import "time"

// StudentAttendanceStatus is the per-student daily state marked by a teacher.
type StudentAttendanceStatus string

const (
	StudentStatusPresent StudentAttendanceStatus = "present"
	StudentStatusAbsent  StudentAttendanceStatus = "absent"
	StudentStatusLate    StudentAttendanceStatus = "late"
	StudentStatusExcused StudentAttendanceStatus = "excused"
)

// Valid returns true when the status is a supported value.
func (s StudentAttendanceStatus) Valid() bool {
	switch s {
	case StudentStatusPresent, StudentStatusAbsent, StudentStatusLate, StudentStatusExcused:
		return true
	default:
		return false
	}
}

// StudentAttendanceRecord is a student's daily attendance, captured by a
// teacher and linked to the teacher's own ledger row for that date. Unique
// on (student_id, teacher_id, date); the latest write wins.
type StudentAttendanceRecord struct {
	ID                  string                  `db:"id" json:"id"`
	StudentID           string                  `db:"student_id" json:"student_id"`
	TeacherID           string                  `db:"teacher_id" json:"teacher_id"`
	Date                time.Time               `db:"date" json:"date"`
	Status              StudentAttendanceStatus `db:"status" json:"status"`
	Notes               string                  `db:"notes" json:"notes,omitempty"`
	TeacherAttendanceID string                  `db:"teacher_attendance_id" json:"teacher_attendance_id"`
	LessonID            *string                 `db:"lesson_id" json:"lesson_id,omitempty"`
	MarkedAt            time.Time               `db:"marked_at" json:"marked_at"`
	CreatedAt           time.Time               `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time               `db:"updated_at" json:"updated_at"`
}

// StudentAttendanceReport summarises one teacher's captures for a date.
type StudentAttendanceReport struct {
	Date    string                    `json:"date"`
	Records []StudentAttendanceRecord `json:"records"`
	Total   int                       `json:"total"`
	Present int                       `json:"present"`
	Absent  int                       `json:"absent"`
	Late    int                       `json:"late"`
	Excused int                       `json:"excused"`
}
