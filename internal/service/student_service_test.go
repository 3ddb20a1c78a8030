package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ElleGoodarzi/schoolaut-sub000/internal/models"
	appErrors "github.com/ElleGoodarzi/schoolaut-sub000/pkg/errors"
)

type mockStudentRepo struct {
	students     map[string]models.Student
	existsByNID  map[string]string
	classCounts  map[string]int
	deactivated  []string
	movedClassID *string
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	details := make([]models.StudentDetail, 0, len(m.students))
	for _, s := range m.students {
		details = append(details, models.StudentDetail{Student: s})
	}
	return details, len(details), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s, ok := m.students[id]; ok {
		return &models.StudentDetail{Student: s}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) ExistsByNationalID(ctx context.Context, nationalID string, excludeID string) (bool, error) {
	if id, ok := m.existsByNID[nationalID]; ok {
		if excludeID == "" || id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if m.students == nil {
		m.students = make(map[string]models.Student)
	}
	if student.ID == "" {
		student.ID = "st-generated"
	}
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) Deactivate(ctx context.Context, id string) error {
	m.deactivated = append(m.deactivated, id)
	if s, ok := m.students[id]; ok {
		s.Active = false
		m.students[id] = s
	}
	return nil
}

func (m *mockStudentRepo) Delete(ctx context.Context, id string) error {
	delete(m.students, id)
	return nil
}

func (m *mockStudentRepo) MoveToClass(ctx context.Context, id string, classID *string) error {
	m.movedClassID = classID
	if s, ok := m.students[id]; ok {
		s.ClassID = classID
		m.students[id] = s
	}
	return nil
}

func (m *mockStudentRepo) CountInClass(ctx context.Context, classID string) (int, error) {
	return m.classCounts[classID], nil
}

func newStudentFixture() (*StudentService, *mockStudentRepo, *mockClassLookup) {
	repo := &mockStudentRepo{
		students:    map[string]models.Student{},
		existsByNID: map[string]string{},
		classCounts: map[string]int{},
	}
	classes := &mockClassLookup{classes: map[string]models.ClassDetail{
		"cl-1": {Class: models.Class{ID: "cl-1", Name: "اول الف", Grade: 1, Capacity: 2}},
		"cl-2": {Class: models.Class{ID: "cl-2", Name: "دوم ب", Grade: 2, Capacity: 30}},
	}}
	svc := NewStudentService(repo, classes, validator.New(), zap.NewNop())
	return svc, repo, classes
}

func validCreateRequest() CreateStudentRequest {
	return CreateStudentRequest{
		NationalID:    "0012345678",
		FullName:      "سارا محمدی",
		Gender:        "F",
		BirthDate:     time.Date(2018, 3, 21, 0, 0, 0, 0, time.UTC),
		GuardianName:  "حسین محمدی",
		GuardianPhone: "09121234567",
		Address:       "تهران",
	}
}

func TestStudentServiceCreate(t *testing.T) {
	svc, repo, _ := newStudentFixture()

	student, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, student.ID)
	assert.True(t, student.Active)
	assert.Len(t, repo.students, 1)
}

func TestStudentServiceCreateDuplicateNationalID(t *testing.T) {
	svc, repo, _ := newStudentFixture()
	repo.existsByNID["0012345678"] = "st-existing"

	_, err := svc.Create(context.Background(), validCreateRequest())
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestStudentServiceCreateRespectsCapacity(t *testing.T) {
	svc, repo, _ := newStudentFixture()
	repo.classCounts["cl-1"] = 2

	req := validCreateRequest()
	classID := "cl-1"
	req.ClassID = &classID

	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrClassFull.Code, appErr.Code)
}

func TestStudentServiceMoveToClassCapacity(t *testing.T) {
	svc, repo, _ := newStudentFixture()
	from := "cl-2"
	repo.students["st-1"] = models.Student{ID: "st-1", FullName: "علی رضایی", ClassID: &from, Active: true}
	repo.classCounts["cl-1"] = 2

	full := "cl-1"
	err := svc.MoveToClass(context.Background(), "st-1", &full)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrClassFull.Code, appErr.Code)

	open := "cl-2"
	repo.classCounts["cl-2"] = 10
	require.NoError(t, svc.MoveToClass(context.Background(), "st-1", &open))
}

func TestStudentServiceMoveToClassUnassign(t *testing.T) {
	svc, repo, _ := newStudentFixture()
	from := "cl-1"
	repo.students["st-1"] = models.Student{ID: "st-1", FullName: "علی رضایی", ClassID: &from, Active: true}

	require.NoError(t, svc.MoveToClass(context.Background(), "st-1", nil))
	assert.Nil(t, repo.movedClassID)
	assert.Nil(t, repo.students["st-1"].ClassID)
}
