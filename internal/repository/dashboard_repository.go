package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ElleGoodarzi/schoolaut-sub000/internal/models"
)

// DashboardRepository runs the aggregate count queries behind the
// admin overview. Overdue and pending payment counters are computed
// from the due date because OVERDUE is never stored.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs a DashboardRepository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// CountActiveStudents returns the number of active students.
func (r *DashboardRepository) CountActiveStudents(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM students WHERE active = true`); err != nil {
		return 0, fmt.Errorf("count active students: %w", err)
	}
	return count, nil
}

// CountActiveTeachers returns the number of active teachers.
func (r *DashboardRepository) CountActiveTeachers(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM teachers WHERE active = true`); err != nil {
		return 0, fmt.Errorf("count active teachers: %w", err)
	}
	return count, nil
}

// CountClasses returns the number of classes.
func (r *DashboardRepository) CountClasses(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM classes`); err != nil {
		return 0, fmt.Errorf("count classes: %w", err)
	}
	return count, nil
}

type paymentCounters struct {
	Pending     int   `db:"pending"`
	Overdue     int   `db:"overdue"`
	Outstanding int64 `db:"outstanding"`
}

// PaymentCounters returns pending and overdue counts plus the total
// outstanding amount, evaluated against the given time.
func (r *DashboardRepository) PaymentCounters(ctx context.Context, now time.Time) (pending int, overdue int, outstanding int64, err error) {
	const query = `SELECT
        COUNT(*) FILTER (WHERE due_date >= $1) AS pending,
        COUNT(*) FILTER (WHERE due_date < $1) AS overdue,
        COALESCE(SUM(amount), 0) AS outstanding
        FROM payments WHERE state = $2`
	var counters paymentCounters
	if err := r.db.GetContext(ctx, &counters, query, now, models.PaymentStatePending); err != nil {
		return 0, 0, 0, fmt.Errorf("payment counters: %w", err)
	}
	return counters.Pending, counters.Overdue, counters.Outstanding, nil
}

// CountActiveServiceSubscribers returns the number of students with an
// active subscription of the given type.
func (r *DashboardRepository) CountActiveServiceSubscribers(ctx context.Context, serviceType models.ServiceType) (int, error) {
	const query = `SELECT COUNT(DISTINCT student_id) FROM service_assignments WHERE type = $1 AND active = true`
	var count int
	if err := r.db.GetContext(ctx, &count, query, serviceType); err != nil {
		return 0, fmt.Errorf("count service subscribers: %w", err)
	}
	return count, nil
}
