package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ElleGoodarzi/schoolaut-sub000/internal/models"
)

func newAttendanceMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAttendanceRepositoryRoster(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	status := models.AttendanceStatusPresent
	rows := sqlmock.NewRows([]string{"student_id", "full_name", "national_id", "class_id", "status", "notes", "recorded_at"}).
		AddRow("stu-1", "Sara Ahmadi", "0012345678", "class-1", string(status), nil, time.Now()).
		AddRow("stu-2", "Reza Karimi", "0012345679", "class-1", nil, nil, nil)
	mock.ExpectQuery("SELECT s.id AS student_id, s.full_name").
		WithArgs("class-1", date).
		WillReturnRows(rows)

	roster, err := repo.Roster(context.Background(), "class-1", date)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	require.NotNil(t, roster[0].Status)
	assert.Equal(t, models.AttendanceStatusPresent, *roster[0].Status)
	assert.Nil(t, roster[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	returned := sqlmock.NewRows([]string{"id", "student_id", "class_id", "date", "status", "notes", "created_at", "updated_at"}).
		AddRow("att-1", "stu-1", "class-1", date, string(models.AttendanceStatusLate), nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO attendance_records")).
		WithArgs(sqlmock.AnyArg(), "stu-1", "class-1", date, models.AttendanceStatusLate, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(returned)

	stored, err := repo.Upsert(context.Background(), &models.AttendanceRecord{
		StudentID: "stu-1",
		ClassID:   "class-1",
		Date:      date,
		Status:    models.AttendanceStatusLate,
	})
	require.NoError(t, err)
	assert.Equal(t, "att-1", stored.ID)
	assert.Equal(t, models.AttendanceStatusLate, stored.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryDeleteByClassDate(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("DELETE FROM attendance_records WHERE class_id").
		WithArgs("class-1", date).
		WillReturnResult(sqlmock.NewResult(0, 23))

	affected, err := repo.DeleteByClassDate(context.Background(), "class-1", date)
	require.NoError(t, err)
	assert.Equal(t, int64(23), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryDeleteByStudentsEmpty(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	affected, err := repo.DeleteByStudents(context.Background(), nil, time.Now())
	require.NoError(t, err)
	assert.Zero(t, affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryStudentSummary(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"status", "cnt"}).
		AddRow("PRESENT", 18).
		AddRow("ABSENT", 1).
		AddRow("LATE", 2)
	mock.ExpectQuery("SELECT status, COUNT").
		WithArgs("stu-1").
		WillReturnRows(rows)

	summary, err := repo.StudentSummary(context.Background(), "stu-1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 18, summary.Present)
	assert.Equal(t, 1, summary.Absent)
	assert.Equal(t, 2, summary.Late)
	assert.Equal(t, 21, summary.Total)
	assert.InDelta(t, float64(20)/21*100, summary.Percent, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}
