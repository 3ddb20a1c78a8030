package service

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ElleGoodarzi/schoolaut-sub000/internal/models"
	appErrors "github.com/ElleGoodarzi/schoolaut-sub000/pkg/errors"
)

type mockPaymentRepo struct {
	payments map[string]models.Payment
}

func (m *mockPaymentRepo) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	out := []models.Payment{}
	for _, p := range m.payments {
		if filter.StudentID != "" && p.StudentID != filter.StudentID {
			continue
		}
		if filter.Type != nil && p.Type != *filter.Type {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *mockPaymentRepo) ListAll(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error) {
	out, _, err := m.List(ctx, filter)
	return out, err
}

func (m *mockPaymentRepo) ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error) {
	out := []models.Payment{}
	for _, p := range m.payments {
		if p.StudentID == studentID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockPaymentRepo) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	if p, ok := m.payments[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	if m.payments == nil {
		m.payments = make(map[string]models.Payment)
	}
	if payment.ID == "" {
		payment.ID = "pay-generated"
	}
	if payment.State == "" {
		payment.State = models.PaymentStatePending
	}
	m.payments[payment.ID] = *payment
	return nil
}

func (m *mockPaymentRepo) Update(ctx context.Context, payment *models.Payment) error {
	stored := m.payments[payment.ID]
	stored.Amount = payment.Amount
	stored.Type = payment.Type
	stored.Description = payment.Description
	stored.DueDate = payment.DueDate
	m.payments[payment.ID] = stored
	*payment = stored
	return nil
}

func (m *mockPaymentRepo) MarkPaid(ctx context.Context, id string, paidDate time.Time) error {
	p := m.payments[id]
	p.State = models.PaymentStatePaid
	p.PaidDate = &paidDate
	m.payments[id] = p
	return nil
}

func (m *mockPaymentRepo) SetState(ctx context.Context, id string, state models.PaymentState) error {
	p := m.payments[id]
	p.State = state
	if state == models.PaymentStateCancelled {
		p.PaidDate = nil
	}
	m.payments[id] = p
	return nil
}

func (m *mockPaymentRepo) Delete(ctx context.Context, id string) error {
	delete(m.payments, id)
	return nil
}

func newPaymentFixture(now time.Time) (*PaymentService, *mockPaymentRepo) {
	repo := &mockPaymentRepo{payments: map[string]models.Payment{}}
	students := &mockStudentLookup{students: map[string]models.StudentDetail{
		"st-1": {Student: models.Student{ID: "st-1", FullName: "سارا محمدی", Active: true}},
	}}
	svc := NewPaymentService(repo, students, validator.New(), zap.NewNop())
	svc.now = func() time.Time { return now }
	return svc, repo
}

func TestPaymentServiceListDerivesOverdue(t *testing.T) {
	now := time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)
	svc, repo := newPaymentFixture(now)
	repo.payments["pay-1"] = models.Payment{
		ID: "pay-1", StudentID: "st-1", Amount: 5_000_000,
		Type: models.PaymentTypeTuition, State: models.PaymentStatePending,
		DueDate: now.AddDate(0, 0, -10),
	}
	repo.payments["pay-2"] = models.Payment{
		ID: "pay-2", StudentID: "st-1", Amount: 1_500_000,
		Type: models.PaymentTypeMeal, State: models.PaymentStatePending,
		DueDate: now.AddDate(0, 0, 10),
	}

	overdue := "OVERDUE"
	views, pagination, err := svc.List(context.Background(), PaymentListRequest{Status: &overdue})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "pay-1", views[0].ID)
	assert.Equal(t, models.PaymentStatusOverdue, views[0].Status)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestPaymentServiceStatusFilterPaginatesAfterFiltering(t *testing.T) {
	now := time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)
	svc, repo := newPaymentFixture(now)
	// Three effectively overdue, one pending, one paid.
	for i, due := range []time.Time{
		now.AddDate(0, 0, -30),
		now.AddDate(0, 0, -20),
		now.AddDate(0, 0, -10),
	} {
		id := []string{"pay-1", "pay-2", "pay-3"}[i]
		repo.payments[id] = models.Payment{
			ID: id, StudentID: "st-1", Amount: 1_000_000,
			Type: models.PaymentTypeTuition, State: models.PaymentStatePending,
			DueDate: due,
		}
	}
	repo.payments["pay-4"] = models.Payment{
		ID: "pay-4", StudentID: "st-1", Amount: 1_000_000,
		Type: models.PaymentTypeTuition, State: models.PaymentStatePending,
		DueDate: now.AddDate(0, 0, 10),
	}
	paid := now.AddDate(0, 0, -5)
	repo.payments["pay-5"] = models.Payment{
		ID: "pay-5", StudentID: "st-1", Amount: 1_000_000,
		Type: models.PaymentTypeTuition, State: models.PaymentStatePaid,
		DueDate: now.AddDate(0, 0, -15), PaidDate: &paid,
	}

	overdue := "OVERDUE"
	seen := map[string]bool{}

	first, pagination, err := svc.List(context.Background(), PaymentListRequest{Status: &overdue, Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 3, pagination.TotalCount)
	for _, v := range first {
		assert.Equal(t, models.PaymentStatusOverdue, v.Status)
		seen[v.ID] = true
	}

	second, pagination, err := svc.List(context.Background(), PaymentListRequest{Status: &overdue, Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, 3, pagination.TotalCount)
	seen[second[0].ID] = true

	assert.Len(t, seen, 3)

	empty, pagination, err := svc.List(context.Background(), PaymentListRequest{Status: &overdue, Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Equal(t, 3, pagination.TotalCount)
}

func TestPaymentServiceMarkPaidClearsOverdue(t *testing.T) {
	now := time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)
	svc, repo := newPaymentFixture(now)
	repo.payments["pay-1"] = models.Payment{
		ID: "pay-1", StudentID: "st-1", Amount: 5_000_000,
		Type: models.PaymentTypeTuition, State: models.PaymentStatePending,
		DueDate: now.AddDate(0, 0, -10),
	}

	view, err := svc.MarkPaid(context.Background(), "pay-1", nil)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, view.Status)
	require.NotNil(t, view.PaidDate)
}

func TestPaymentServiceMarkPaidTwiceConflicts(t *testing.T) {
	now := time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)
	svc, repo := newPaymentFixture(now)
	paid := now.AddDate(0, 0, -1)
	repo.payments["pay-1"] = models.Payment{
		ID: "pay-1", StudentID: "st-1", Amount: 5_000_000,
		Type: models.PaymentTypeTuition, State: models.PaymentStatePaid,
		PaidDate: &paid, DueDate: now.AddDate(0, 0, -10),
	}

	_, err := svc.MarkPaid(context.Background(), "pay-1", nil)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestPaymentServiceUpdateOnlyPending(t *testing.T) {
	now := time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)
	svc, repo := newPaymentFixture(now)
	paid := now
	repo.payments["pay-1"] = models.Payment{
		ID: "pay-1", StudentID: "st-1", Amount: 5_000_000,
		Type: models.PaymentTypeTuition, State: models.PaymentStatePaid,
		PaidDate: &paid, DueDate: now.AddDate(0, 0, 10),
	}

	_, err := svc.Update(context.Background(), "pay-1", UpdatePaymentRequest{
		Amount: 6_000_000, Type: "TUITION", DueDate: now.AddDate(0, 1, 0),
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestPaymentServiceCancelRemovesFromSummary(t *testing.T) {
	now := time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)
	svc, repo := newPaymentFixture(now)
	paid := now.AddDate(0, 0, -5)
	repo.payments["pay-1"] = models.Payment{
		ID: "pay-1", StudentID: "st-1", Amount: 5_000_000,
		Type: models.PaymentTypeTuition, State: models.PaymentStatePending,
		DueDate: now.AddDate(0, 0, -10),
	}
	repo.payments["pay-2"] = models.Payment{
		ID: "pay-2", StudentID: "st-1", Amount: 1_500_000,
		Type: models.PaymentTypeMeal, State: models.PaymentStatePaid,
		PaidDate: &paid, DueDate: now.AddDate(0, 0, -7),
	}

	require.NoError(t, svc.Cancel(context.Background(), "pay-1"))

	summary, err := svc.StudentSummary(context.Background(), "st-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1_500_000), summary.TotalBilled)
	assert.Equal(t, int64(1_500_000), summary.TotalPaid)
	assert.Equal(t, int64(0), summary.Outstanding)
	assert.Equal(t, 0, summary.OverdueCount)
}
