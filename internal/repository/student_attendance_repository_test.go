package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-engine/internal/models"
)

var studentColumnList = []string{
	"id", "student_id", "teacher_id", "date", "status", "notes", "teacher_attendance_id", "lesson_id", "marked_at", "created_at", "updated_at",
}

func studentRow(id, studentID string, date time.Time, status models.StudentAttendanceStatus, inserted bool) *sqlmock.Rows {
	now := time.Now()
	columns := append(append([]string{}, studentColumnList...), "inserted")
	return sqlmock.NewRows(columns).
		AddRow(id, studentID, "teacher-1", date, status, "", "rec-1", nil, now, now, now, inserted)
}

func TestStudentBulkUpsertCountsCreatedAndUpdated(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentAttendanceRepository(db)
	date, _ := time.Parse(models.DateLayout, "2026-03-02")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO student_attendance")).
		WithArgs(sqlmock.AnyArg(), "student-1", "teacher-1", date, models.StudentStatusPresent, "", "rec-1", nil, sqlmock.AnyArg()).
		WillReturnRows(studentRow("sa-1", "student-1", date, models.StudentStatusPresent, true))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO student_attendance")).
		WithArgs(sqlmock.AnyArg(), "student-2", "teacher-1", date, models.StudentStatusLate, "bus delay", "rec-1", nil, sqlmock.AnyArg()).
		WillReturnRows(studentRow("sa-2", "student-2", date, models.StudentStatusLate, false))
	mock.ExpectCommit()

	created, updated, stored, err := repo.BulkUpsert(context.Background(), []models.StudentAttendanceRecord{
		{StudentID: "student-1", TeacherID: "teacher-1", Date: date, Status: models.StudentStatusPresent, TeacherAttendanceID: "rec-1"},
		{StudentID: "student-2", TeacherID: "teacher-1", Date: date, Status: models.StudentStatusLate, Notes: "bus delay", TeacherAttendanceID: "rec-1"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, created)
	require.Equal(t, 1, updated)
	require.Len(t, stored, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentBulkUpsertEmptyBatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentAttendanceRepository(db)
	created, updated, stored, err := repo.BulkUpsert(context.Background(), nil)
	require.NoError(t, err)
	require.Zero(t, created)
	require.Zero(t, updated)
	require.Empty(t, stored)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentBulkUpsertRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentAttendanceRepository(db)
	date, _ := time.Parse(models.DateLayout, "2026-03-02")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO student_attendance")).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	_, _, _, err := repo.BulkUpsert(context.Background(), []models.StudentAttendanceRecord{
		{StudentID: "student-1", TeacherID: "teacher-1", Date: date, Status: models.StudentStatusPresent, TeacherAttendanceID: "rec-1"},
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentByTeacherAndDate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentAttendanceRepository(db)
	date, _ := time.Parse(models.DateLayout, "2026-03-02")

	now := time.Now()
	rows := sqlmock.NewRows(studentColumnList).
		AddRow("sa-1", "student-1", "teacher-1", date, models.StudentStatusPresent, "", "rec-1", nil, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM student_attendance WHERE teacher_id = $1 AND date = $2")).
		WithArgs("teacher-1", date).
		WillReturnRows(rows)

	records, err := repo.ByTeacherAndDate(context.Background(), "teacher-1", date)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "student-1", records[0].StudentID)
	require.NoError(t, mock.ExpectationsWereMet())
}
