package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ElleGoodarzi/schoolaut-sub000/internal/models"
	"github.com/ElleGoodarzi/schoolaut-sub000/pkg/storage"
)

type mockExportAttendanceRepo struct {
	rows []models.RosterRow
}

func (m *mockExportAttendanceRepo) Roster(ctx context.Context, classID string, date time.Time) ([]models.RosterRow, error) {
	if classID == "" {
		return m.rows, nil
	}
	out := make([]models.RosterRow, 0, len(m.rows))
	for _, row := range m.rows {
		if row.ClassID == classID {
			out = append(out, row)
		}
	}
	return out, nil
}

type mockExportClassRepo struct {
	classes map[string]models.ClassDetail
}

func (m *mockExportClassRepo) FindByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	class, ok := m.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &class, nil
}

type mockExportStudentRepo struct{}

func (m *mockExportStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	return nil, 0, nil
}

type mockExportPaymentRepo struct{}

func (m *mockExportPaymentRepo) ListDueBetween(ctx context.Context, from, to time.Time) ([]models.Payment, error) {
	return nil, nil
}

type mockFileStorage struct {
	saved map[string][]byte
}

func (m *mockFileStorage) Save(filename string, data []byte) (string, error) {
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[filename] = data
	return filename, nil
}

func (m *mockFileStorage) Open(filename string) (*os.File, error) { return nil, os.ErrNotExist }
func (m *mockFileStorage) Delete(filename string) error           { return nil }
func (m *mockFileStorage) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	return nil, nil
}

func newExportFixture() (*ExportService, *mockExportAttendanceRepo) {
	present := models.AttendanceStatusPresent
	absent := models.AttendanceStatusAbsent
	late := models.AttendanceStatusLate
	notes := "با هماهنگی مدیر"
	attendance := &mockExportAttendanceRepo{rows: []models.RosterRow{
		{StudentID: "st-1", FullName: "سارا محمدی", NationalID: "0012345678", ClassID: "cl-1", Status: &present},
		{StudentID: "st-2", FullName: "علی رضایی", NationalID: "0023456789", ClassID: "cl-1", Status: &absent, Notes: &notes},
		{StudentID: "st-3", FullName: "مریم کریمی", NationalID: "0034567890", ClassID: "cl-1", Status: nil},
		{StudentID: "st-4", FullName: "رضا احمدی", NationalID: "0045678901", ClassID: "cl-2", Status: &late},
		{StudentID: "st-5", FullName: "نرگس رضایی", NationalID: "0056789012", ClassID: "cl-2", Status: nil},
	}}
	classes := &mockExportClassRepo{classes: map[string]models.ClassDetail{
		"cl-1": {Class: models.Class{ID: "cl-1", Name: "اول الف", Grade: 1}},
		"cl-2": {Class: models.Class{ID: "cl-2", Name: "دوم ب", Grade: 2}},
	}}
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	svc := NewExportService(attendance, classes, &mockExportStudentRepo{}, &mockExportPaymentRepo{}, &mockFileStorage{}, signer, ExportConfig{APIPrefix: "/api/v1"}, zap.NewNop())
	return svc, attendance
}

// parseRosterCSV splits the rendered payload into header and data rows,
// stripping the BOM prepended for spreadsheet applications.
func parseRosterCSV(t *testing.T, payload []byte) ([]string, [][]string) {
	t.Helper()
	payload = bytes.TrimPrefix(payload, []byte{0xEF, 0xBB, 0xBF})
	records, err := csv.NewReader(bytes.NewReader(payload)).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, records)
	return records[0], records[1:]
}

func TestExportServiceRosterCSVColumnsAndRows(t *testing.T) {
	svc, repo := newExportFixture()
	day := time.Date(2025, 10, 4, 0, 0, 0, 0, time.UTC)

	filename, payload, err := svc.RosterCSV(context.Background(), "cl-1", day, RosterExportFilter{})
	require.NoError(t, err)
	assert.Equal(t, "attendance_cl-1_2025-10-04.csv", filename)

	header, rows := parseRosterCSV(t, payload)
	assert.Equal(t, []string{"کد دانش‌آموز", "نام و نام خانوادگی", "کد ملی", "وضعیت", "توضیحات"}, header)

	classRows := 0
	for _, row := range repo.rows {
		if row.ClassID == "cl-1" {
			classRows++
		}
	}
	require.Len(t, rows, classRows)
	assert.Equal(t, []string{"st-1", "سارا محمدی", "0012345678", "حاضر", ""}, rows[0])
	assert.Equal(t, []string{"st-2", "علی رضایی", "0023456789", "غایب", "با هماهنگی مدیر"}, rows[1])
	assert.Equal(t, "ثبت‌نشده", rows[2][3])
}

func TestExportServiceRosterCSVStatusFilter(t *testing.T) {
	svc, _ := newExportFixture()
	day := time.Date(2025, 10, 4, 0, 0, 0, 0, time.UTC)

	_, payload, err := svc.RosterCSV(context.Background(), "cl-1", day, RosterExportFilter{Status: "absent"})
	require.NoError(t, err)
	_, rows := parseRosterCSV(t, payload)
	require.Len(t, rows, 1)
	assert.Equal(t, "st-2", rows[0][0])

	_, payload, err = svc.RosterCSV(context.Background(), "", day, RosterExportFilter{Status: "UNMARKED"})
	require.NoError(t, err)
	_, rows = parseRosterCSV(t, payload)
	require.Len(t, rows, 2)
	assert.Equal(t, "st-3", rows[0][0])
	assert.Equal(t, "st-5", rows[1][0])
}

func TestExportServiceRosterCSVSearchFilter(t *testing.T) {
	svc, _ := newExportFixture()
	day := time.Date(2025, 10, 4, 0, 0, 0, 0, time.UTC)

	_, payload, err := svc.RosterCSV(context.Background(), "", day, RosterExportFilter{Search: "رضایی"})
	require.NoError(t, err)
	_, rows := parseRosterCSV(t, payload)
	require.Len(t, rows, 2)
	assert.Equal(t, "st-2", rows[0][0])
	assert.Equal(t, "st-5", rows[1][0])

	_, payload, err = svc.RosterCSV(context.Background(), "", day, RosterExportFilter{Search: "0045678901"})
	require.NoError(t, err)
	_, rows = parseRosterCSV(t, payload)
	require.Len(t, rows, 1)
	assert.Equal(t, "st-4", rows[0][0])
}

func TestExportServiceRosterCSVWholeSchool(t *testing.T) {
	svc, repo := newExportFixture()
	day := time.Date(2025, 10, 4, 0, 0, 0, 0, time.UTC)

	filename, payload, err := svc.RosterCSV(context.Background(), "", day, RosterExportFilter{})
	require.NoError(t, err)
	assert.Equal(t, "attendance_all_2025-10-04.csv", filename)

	_, rows := parseRosterCSV(t, payload)
	assert.Len(t, rows, len(repo.rows))
}

func TestExportServiceRosterCSVUnknownClass(t *testing.T) {
	svc, _ := newExportFixture()
	day := time.Date(2025, 10, 4, 0, 0, 0, 0, time.UTC)

	_, _, err := svc.RosterCSV(context.Background(), "cl-missing", day, RosterExportFilter{})
	require.Error(t, err)
}
