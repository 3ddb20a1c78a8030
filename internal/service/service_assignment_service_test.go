package service

import (
	"context"
	"database/sql"
	"fmt"
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

type mockServiceAssignmentRepo struct {
	assignments map[string]models.ServiceAssignment
}

func (m *mockServiceAssignmentRepo) List(ctx context.Context, filter models.ServiceAssignmentFilter) ([]models.ServiceAssignmentDetail, int, error) {
	out := []models.ServiceAssignmentDetail{}
	for _, a := range m.assignments {
		if filter.StudentID != "" && a.StudentID != filter.StudentID {
			continue
		}
		if filter.Type != nil && a.Type != *filter.Type {
			continue
		}
		if filter.Active != nil && a.Active != *filter.Active {
			continue
		}
		out = append(out, models.ServiceAssignmentDetail{ServiceAssignment: a})
	}
	return out, len(out), nil
}

func (m *mockServiceAssignmentRepo) FindByID(ctx context.Context, id string) (*models.ServiceAssignment, error) {
	if a, ok := m.assignments[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockServiceAssignmentRepo) FindActiveByStudentAndType(ctx context.Context, studentID string, serviceType models.ServiceType) (*models.ServiceAssignment, error) {
	for _, a := range m.assignments {
		if a.StudentID == studentID && a.Type == serviceType && a.Active {
			found := a
			return &found, nil
		}
	}
	return nil, nil
}

func (m *mockServiceAssignmentRepo) Create(ctx context.Context, assignment *models.ServiceAssignment) error {
	if m.assignments == nil {
		m.assignments = make(map[string]models.ServiceAssignment)
	}
	if assignment.ID == "" {
		assignment.ID = fmt.Sprintf("svc-%d", len(m.assignments)+1)
	}
	m.assignments[assignment.ID] = *assignment
	return nil
}

func (m *mockServiceAssignmentRepo) Update(ctx context.Context, assignment *models.ServiceAssignment) error {
	m.assignments[assignment.ID] = *assignment
	return nil
}

func (m *mockServiceAssignmentRepo) Terminate(ctx context.Context, id string, endDate time.Time) error {
	a := m.assignments[id]
	a.Active = false
	a.EndDate = &endDate
	m.assignments[id] = a
	return nil
}

func (m *mockServiceAssignmentRepo) Delete(ctx context.Context, id string) error {
	delete(m.assignments, id)
	return nil
}

func newServiceAssignmentFixture() (*ServiceAssignmentService, *mockServiceAssignmentRepo) {
	repo := &mockServiceAssignmentRepo{assignments: map[string]models.ServiceAssignment{}}
	students := &mockStudentLookup{students: map[string]models.StudentDetail{
		"st-1": {Student: models.Student{ID: "st-1", FullName: "آرش کریمی", Active: true}},
	}}
	svc := NewServiceAssignmentService(repo, students, validator.New(), zap.NewNop())
	return svc, repo
}

func assignReq(serviceType string) AssignServiceRequest {
	return AssignServiceRequest{
		StudentID:  "st-1",
		Type:       serviceType,
		Plan:       "سرویس ناهار",
		MonthlyFee: 800_000,
		StartDate:  time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestServiceAssignmentFinanceLimitedToMeal(t *testing.T) {
	svc, _ := newServiceAssignmentFixture()
	finance := Actor{UserID: "user-fin", Role: rbac.RoleFinance}

	created, err := svc.Assign(context.Background(), finance, assignReq("MEAL"))
	require.NoError(t, err)
	assert.Equal(t, models.ServiceTypeMeal, created.Type)

	_, err = svc.Assign(context.Background(), finance, assignReq("TRANSPORT"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestServiceAssignmentFinanceCannotTouchTransport(t *testing.T) {
	svc, repo := newServiceAssignmentFixture()
	repo.assignments["svc-bus"] = models.ServiceAssignment{
		ID: "svc-bus", StudentID: "st-1", Type: models.ServiceTypeTransport,
		Plan: "مسیر ۳", MonthlyFee: 1_200_000,
		StartDate: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), Active: true,
	}
	finance := Actor{UserID: "user-fin", Role: rbac.RoleFinance}

	_, err := svc.Update(context.Background(), finance, "svc-bus", UpdateServiceRequest{
		Plan: "مسیر ۵", MonthlyFee: 1_300_000, Active: true,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = svc.Terminate(context.Background(), finance, "svc-bus", time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = svc.Delete(context.Background(), finance, "svc-bus")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// The assignment is untouched.
	stored, findErr := repo.FindByID(context.Background(), "svc-bus")
	require.NoError(t, findErr)
	assert.True(t, stored.Active)
	assert.Equal(t, "مسیر ۳", stored.Plan)
}

func TestServiceAssignmentFinanceCannotDeleteMeal(t *testing.T) {
	svc, repo := newServiceAssignmentFixture()
	repo.assignments["svc-meal"] = models.ServiceAssignment{
		ID: "svc-meal", StudentID: "st-1", Type: models.ServiceTypeMeal,
		Plan: "سرویس ناهار", MonthlyFee: 800_000,
		StartDate: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), Active: true,
	}
	finance := Actor{UserID: "user-fin", Role: rbac.RoleFinance}

	err := svc.Delete(context.Background(), finance, "svc-meal")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// MEAL updates stay open to FINANCE.
	updated, err := svc.Update(context.Background(), finance, "svc-meal", UpdateServiceRequest{
		Plan: "سرویس ناهار ویژه", MonthlyFee: 900_000, Active: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "سرویس ناهار ویژه", updated.Plan)
}

func TestServiceAssignmentVicePrincipalMutatesBothTypes(t *testing.T) {
	svc, repo := newServiceAssignmentFixture()
	vp := Actor{UserID: "user-vp", Role: rbac.RoleVicePrincipal}

	created, err := svc.Assign(context.Background(), vp, assignReq("TRANSPORT"))
	require.NoError(t, err)
	assert.Equal(t, models.ServiceTypeTransport, created.Type)

	err = svc.Delete(context.Background(), vp, created.ID)
	require.NoError(t, err)
	_, findErr := repo.FindByID(context.Background(), created.ID)
	assert.Error(t, findErr)
}
