package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ElleGoodarzi/schoolaut-sub000/internal/models"
	"github.com/ElleGoodarzi/schoolaut-sub000/internal/rbac"
	appErrors "github.com/ElleGoodarzi/schoolaut-sub000/pkg/errors"
)

type mockAttendanceRepo struct {
	records       map[string]models.AttendanceRecord
	rosterRows    []models.RosterRow
	deletedClass  string
	deletedCount  int64
	failStudentID string
}

func attendanceKey(studentID string, date time.Time) string {
	return studentID + "|" + date.Format("2006-01-02")
}

func (m *mockAttendanceRepo) Roster(ctx context.Context, classID string, date time.Time) ([]models.RosterRow, error) {
	if classID == "" {
		return m.rosterRows, nil
	}
	out := make([]models.RosterRow, 0, len(m.rosterRows))
	for _, row := range m.rosterRows {
		if row.ClassID == classID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *mockAttendanceRepo) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	if record.StudentID == m.failStudentID {
		return nil, errors.New("boom")
	}
	if m.records == nil {
		m.records = make(map[string]models.AttendanceRecord)
	}
	stored := *record
	if stored.ID == "" {
		stored.ID = "rec-" + record.StudentID
	}
	m.records[attendanceKey(record.StudentID, record.Date)] = stored
	return &stored, nil
}

func (m *mockAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	out := make([]models.AttendanceRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	return out, len(out), nil
}

func (m *mockAttendanceRepo) DeleteByClassDate(ctx context.Context, classID string, date time.Time) (int64, error) {
	m.deletedClass = classID
	return m.deletedCount, nil
}

func (m *mockAttendanceRepo) DeleteByStudents(ctx context.Context, studentIDs []string, date time.Time) (int64, error) {
	var n int64
	for _, id := range studentIDs {
		if _, ok := m.records[attendanceKey(id, date)]; ok {
			delete(m.records, attendanceKey(id, date))
			n++
		}
	}
	return n, nil
}

func (m *mockAttendanceRepo) StudentHistory(ctx context.Context, studentID string, from, to *time.Time) ([]models.AttendanceHistoryRow, error) {
	return nil, nil
}

func (m *mockAttendanceRepo) StudentSummary(ctx context.Context, studentID string, from, to *time.Time) (*models.AttendanceSummary, error) {
	return &models.AttendanceSummary{}, nil
}

type mockStudentLookup struct {
	students map[string]models.StudentDetail
}

func (m *mockStudentLookup) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

type mockClassLookup struct {
	classes map[string]models.ClassDetail
}

func (m *mockClassLookup) FindByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	if c, ok := m.classes[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

type mockTeacherLookup struct {
	byUserID map[string]models.Teacher
}

func (m *mockTeacherLookup) FindByUserID(ctx context.Context, userID string) (*models.Teacher, error) {
	if t, ok := m.byUserID[userID]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func strPtr(s string) *string { return &s }

func newAttendanceFixture() (*AttendanceService, *mockAttendanceRepo) {
	repo := &mockAttendanceRepo{}
	students := &mockStudentLookup{students: map[string]models.StudentDetail{
		"st-1": {Student: models.Student{ID: "st-1", FullName: "سارا محمدی", ClassID: strPtr("cl-1"), Active: true}},
		"st-2": {Student: models.Student{ID: "st-2", FullName: "علی رضایی", ClassID: strPtr("cl-1"), Active: true}},
		"st-3": {Student: models.Student{ID: "st-3", FullName: "مریم کریمی", ClassID: strPtr("cl-2"), Active: true}},
		"st-4": {Student: models.Student{ID: "st-4", FullName: "رضا احمدی", ClassID: strPtr("cl-1"), Active: false}},
	}}
	classes := &mockClassLookup{classes: map[string]models.ClassDetail{
		"cl-1": {Class: models.Class{ID: "cl-1", Name: "اول الف", Grade: 1, TeacherID: strPtr("te-1")}},
		"cl-2": {Class: models.Class{ID: "cl-2", Name: "دوم ب", Grade: 2, TeacherID: strPtr("te-2")}},
	}}
	teachers := &mockTeacherLookup{byUserID: map[string]models.Teacher{
		"user-te-1": {ID: "te-1", FullName: "خانم حسینی", UserID: strPtr("user-te-1"), Active: true},
	}}
	svc := NewAttendanceService(repo, students, classes, teachers, validator.New(), zap.NewNop())
	return svc, repo
}

func TestAttendanceServiceMarkOverwrites(t *testing.T) {
	svc, repo := newAttendanceFixture()
	admin := Actor{UserID: "user-admin", Role: rbac.RoleAdmin}

	first, err := svc.Mark(context.Background(), admin, MarkAttendanceRequest{
		StudentID: "st-1", Date: "2025-10-04", Status: "PRESENT",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusPresent, first.Status)
	assert.Equal(t, "cl-1", first.ClassID)

	second, err := svc.Mark(context.Background(), admin, MarkAttendanceRequest{
		StudentID: "st-1", Date: "2025-10-04", Status: "late",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusLate, second.Status)
	assert.Len(t, repo.records, 1)
}

func TestAttendanceServiceMarkRejectsInactive(t *testing.T) {
	svc, _ := newAttendanceFixture()
	admin := Actor{UserID: "user-admin", Role: rbac.RoleAdmin}

	_, err := svc.Mark(context.Background(), admin, MarkAttendanceRequest{
		StudentID: "st-4", Date: "2025-10-04", Status: "PRESENT",
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestAttendanceServiceTeacherOwnClassOnly(t *testing.T) {
	svc, _ := newAttendanceFixture()
	teacher := Actor{UserID: "user-te-1", Role: rbac.RoleTeacher}

	_, err := svc.Mark(context.Background(), teacher, MarkAttendanceRequest{
		StudentID: "st-1", Date: "2025-10-04", Status: "PRESENT",
	})
	require.NoError(t, err)

	_, err = svc.Mark(context.Background(), teacher, MarkAttendanceRequest{
		StudentID: "st-3", Date: "2025-10-04", Status: "PRESENT",
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestAttendanceServiceBulkManifest(t *testing.T) {
	svc, repo := newAttendanceFixture()
	repo.failStudentID = "st-2"
	admin := Actor{UserID: "user-admin", Role: rbac.RoleAdmin}

	result, err := svc.BulkMark(context.Background(), admin, BulkMarkAttendanceRequest{
		ClassID: "cl-1",
		Date:    "2025-10-04",
		Updates: []BulkAttendanceItem{
			{StudentID: "st-1", Status: "PRESENT"},
			{StudentID: "st-1", Status: "ABSENT"},
			{StudentID: "st-2", Status: "PRESENT"},
			{StudentID: "st-3", Status: "PRESENT"},
			{StudentID: "st-4", Status: "PRESENT"},
			{StudentID: "missing", Status: "PRESENT"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 6, result.Processed)
	assert.Equal(t, 1, result.Succeeded)
	require.Len(t, result.Failures, 5)

	reasons := map[string]string{}
	for _, f := range result.Failures {
		reasons[f.StudentID] = f.Reason
	}
	assert.Equal(t, "duplicate student in payload", reasons["st-1"])
	assert.Equal(t, "failed to store record", reasons["st-2"])
	assert.Equal(t, "student does not belong to class", reasons["st-3"])
	assert.Equal(t, "student is inactive", reasons["st-4"])
	assert.Equal(t, "student not found", reasons["missing"])
}

func TestAttendanceServiceClearSelective(t *testing.T) {
	svc, repo := newAttendanceFixture()
	admin := Actor{UserID: "user-admin", Role: rbac.RoleAdmin}

	for _, id := range []string{"st-1", "st-2"} {
		_, err := svc.Mark(context.Background(), admin, MarkAttendanceRequest{
			StudentID: id, Date: "2025-10-04", Status: "PRESENT",
		})
		require.NoError(t, err)
	}

	affected, err := svc.Clear(context.Background(), admin, ClearAttendanceRequest{
		ClassID: "cl-1", Date: "2025-10-04", StudentIDs: []string{"st-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.Len(t, repo.records, 1)
}

func TestAttendanceServiceClearWholeClass(t *testing.T) {
	svc, repo := newAttendanceFixture()
	repo.deletedCount = 23
	admin := Actor{UserID: "user-admin", Role: rbac.RoleAdmin}

	affected, err := svc.Clear(context.Background(), admin, ClearAttendanceRequest{
		ClassID: "cl-1", Date: "2025-10-04",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(23), affected)
	assert.Equal(t, "cl-1", repo.deletedClass)
}

func TestAttendanceServiceRosterSummary(t *testing.T) {
	svc, repo := newAttendanceFixture()
	present := models.AttendanceStatusPresent
	absent := models.AttendanceStatusAbsent
	repo.rosterRows = []models.RosterRow{
		{StudentID: "st-1", ClassID: "cl-1", Status: &present},
		{StudentID: "st-2", ClassID: "cl-1", Status: &absent},
		{StudentID: "st-5", ClassID: "cl-1", Status: nil},
	}
	admin := Actor{UserID: "user-admin", Role: rbac.RoleAdmin}

	resp, err := svc.Roster(context.Background(), admin, "cl-1", time.Date(2025, 10, 4, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Summary.Total)
	assert.Equal(t, 1, resp.Summary.Present)
	assert.Equal(t, 1, resp.Summary.Absent)
	assert.Equal(t, 1, resp.Summary.Unmarked)
}

func TestAttendanceServiceRosterWholeSchool(t *testing.T) {
	svc, repo := newAttendanceFixture()
	present := models.AttendanceStatusPresent
	repo.rosterRows = []models.RosterRow{
		{StudentID: "st-1", ClassID: "cl-1", Status: &present},
		{StudentID: "st-2", ClassID: "cl-1", Status: nil},
		{StudentID: "st-3", ClassID: "cl-2", Status: nil},
	}
	admin := Actor{UserID: "user-admin", Role: rbac.RoleAdmin}
	day := time.Date(2025, 10, 4, 0, 0, 0, 0, time.UTC)

	scoped, err := svc.Roster(context.Background(), admin, "cl-2", day)
	require.NoError(t, err)
	assert.Equal(t, 1, scoped.Summary.Total)

	all, err := svc.Roster(context.Background(), admin, "", day)
	require.NoError(t, err)
	assert.Len(t, all.Rows, 3)
	assert.Equal(t, 3, all.Summary.Total)
	assert.Equal(t, 2, all.Summary.Unmarked)
	assert.Equal(t, "", all.ClassID)
}
