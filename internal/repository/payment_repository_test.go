package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ElleGoodarzi/schoolaut-sub000/internal/models"
)

func newPaymentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func paymentColumns() []string {
	return []string{"id", "student_id", "amount", "type", "description", "due_date", "paid_date", "state", "created_at", "updated_at"}
}

func TestPaymentRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	rows := sqlmock.NewRows(paymentColumns()).
		AddRow("pay-1", "stu-1", int64(5000000), "TUITION", "Mehr tuition", time.Now(), nil, "PENDING", time.Now(), time.Now()).
		AddRow("pay-2", "stu-1", int64(1200000), "MEAL", "Mehr meals", time.Now(), time.Now(), "PAID", time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, student_id, amount").
		WithArgs("stu-1").
		WillReturnRows(rows)

	payments, err := repo.ListByStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, models.PaymentStatePending, payments[0].State)
	assert.Equal(t, models.PaymentStatePaid, payments[1].State)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryCreateDefaultsState(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec("INSERT INTO payments").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	payment := &models.Payment{StudentID: "stu-1", Amount: 5000000, Type: models.PaymentTypeTuition, DueDate: time.Now().Add(30 * 24 * time.Hour)}
	err := repo.Create(context.Background(), payment)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatePending, payment.State)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryMarkPaid(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	paidDate := time.Date(2025, 10, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE payments SET state").
		WithArgs("pay-1", models.PaymentStatePaid, paidDate, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkPaid(context.Background(), "pay-1", paidDate)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentEffectiveStatus(t *testing.T) {
	now := time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)
	paid := now.Add(-24 * time.Hour)

	cases := []struct {
		name    string
		payment models.Payment
		want    models.PaymentStatus
	}{
		{"pending before due", models.Payment{State: models.PaymentStatePending, DueDate: now.Add(24 * time.Hour)}, models.PaymentStatusPending},
		{"overdue after due", models.Payment{State: models.PaymentStatePending, DueDate: now.Add(-24 * time.Hour)}, models.PaymentStatusOverdue},
		{"paid stays paid past due", models.Payment{State: models.PaymentStatePaid, DueDate: now.Add(-24 * time.Hour), PaidDate: &paid}, models.PaymentStatusPaid},
		{"cancelled wins", models.Payment{State: models.PaymentStateCancelled, DueDate: now.Add(-24 * time.Hour)}, models.PaymentStatusCancelled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.payment.EffectiveStatus(now))
		})
	}
}
