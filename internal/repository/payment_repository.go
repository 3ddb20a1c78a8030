package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ElleGoodarzi/schoolaut-sub000/internal/models"
)

// PaymentRepository manages persistence for payment records. The
// stored state never contains OVERDUE; filtering on the derived
// status happens in the service after the read.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs a PaymentRepository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// List returns payments matching the stored-column parts of the filter.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	base := "FROM payments p"
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("p.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("p.type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}
	whereClause := strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"due_date":   "p.due_date",
		"amount":     "p.amount",
		"created_at": "p.created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "p.due_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT p.id, p.student_id, p.amount, p.type, p.description, p.due_date, p.paid_date, p.state, p.created_at, p.updated_at
        %s WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, whereClause, column, order, size, offset)

	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}

// ListAll returns every payment matching the student/type filter,
// sorted but unpaginated. The service paginates itself when it
// filters on the derived status, which SQL cannot see.
func (r *PaymentRepository) ListAll(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error) {
	base := "FROM payments p"
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("p.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("p.type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}
	whereClause := strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"due_date":   "p.due_date",
		"amount":     "p.amount",
		"created_at": "p.created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "p.due_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	query := fmt.Sprintf(`SELECT p.id, p.student_id, p.amount, p.type, p.description, p.due_date, p.paid_date, p.state, p.created_at, p.updated_at
        %s WHERE %s ORDER BY %s %s`, base, whereClause, column, order)

	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, fmt.Errorf("list all payments: %w", err)
	}
	return payments, nil
}

// ListByStudent returns all payments for one student without paging.
// Summaries need the full set because the effective status is derived.
func (r *PaymentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error) {
	const query = `SELECT id, student_id, amount, type, description, due_date, paid_date, state, created_at, updated_at
        FROM payments WHERE student_id = $1 ORDER BY due_date DESC`
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, studentID); err != nil {
		return nil, fmt.Errorf("list payments by student: %w", err)
	}
	return payments, nil
}

// ListDueBetween returns payments due within the window. Report
// generation uses this to bound a monthly export.
func (r *PaymentRepository) ListDueBetween(ctx context.Context, from, to time.Time) ([]models.Payment, error) {
	const query = `SELECT id, student_id, amount, type, description, due_date, paid_date, state, created_at, updated_at
        FROM payments WHERE due_date >= $1 AND due_date < $2 ORDER BY due_date ASC`
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, from, to); err != nil {
		return nil, fmt.Errorf("list payments by due window: %w", err)
	}
	return payments, nil
}

// FindByID fetches a payment by ID.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	const query = `SELECT id, student_id, amount, type, description, due_date, paid_date, state, created_at, updated_at
        FROM payments WHERE id = $1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// Create inserts a new payment in the PENDING state.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.State == "" {
		payment.State = models.PaymentStatePending
	}
	now := time.Now().UTC()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	const query = `INSERT INTO payments (id, student_id, amount, type, description, due_date, paid_date, state, created_at, updated_at)
        VALUES (:id, :student_id, :amount, :type, :description, :due_date, :paid_date, :state, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// Update modifies the billable fields of a payment.
func (r *PaymentRepository) Update(ctx context.Context, payment *models.Payment) error {
	payment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE payments SET amount = :amount, type = :type, description = :description,
        due_date = :due_date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	return nil
}

// MarkPaid records the paid date and moves the state to PAID.
func (r *PaymentRepository) MarkPaid(ctx context.Context, id string, paidDate time.Time) error {
	const query = `UPDATE payments SET state = $2, paid_date = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.PaymentStatePaid, paidDate, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark payment paid: %w", err)
	}
	return nil
}

// SetState moves a payment to the given stored state. Cancelling
// clears the paid date.
func (r *PaymentRepository) SetState(ctx context.Context, id string, state models.PaymentState) error {
	query := `UPDATE payments SET state = $2, updated_at = $3 WHERE id = $1`
	if state == models.PaymentStateCancelled {
		query = `UPDATE payments SET state = $2, paid_date = NULL, updated_at = $3 WHERE id = $1`
	}
	if _, err := r.db.ExecContext(ctx, query, id, state, time.Now().UTC()); err != nil {
		return fmt.Errorf("set payment state: %w", err)
	}
	return nil
}

// Delete removes a payment record.
func (r *PaymentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	return nil
}
