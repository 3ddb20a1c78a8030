package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ElleGoodarzi/schoolaut-sub000/internal/models"
)

// ServiceAssignmentRepository manages meal and transport subscriptions.
type ServiceAssignmentRepository struct {
	db *sqlx.DB
}

// NewServiceAssignmentRepository constructs a ServiceAssignmentRepository.
func NewServiceAssignmentRepository(db *sqlx.DB) *ServiceAssignmentRepository {
	return &ServiceAssignmentRepository{db: db}
}

// List returns assignments with student context.
func (r *ServiceAssignmentRepository) List(ctx context.Context, filter models.ServiceAssignmentFilter) ([]models.ServiceAssignmentDetail, int, error) {
	base := `FROM service_assignments sa JOIN students s ON s.id = sa.student_id`
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("sa.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("s.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("sa.type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("sa.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	whereClause := strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT sa.id, sa.student_id, sa.type, sa.plan, sa.monthly_fee, sa.start_date, sa.end_date,
        sa.active, sa.created_at, sa.updated_at, s.full_name AS student_name, s.class_id
        %s WHERE %s ORDER BY s.full_name ASC, sa.type ASC LIMIT %d OFFSET %d`, base, whereClause, size, offset)

	var assignments []models.ServiceAssignmentDetail
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list service assignments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count service assignments: %w", err)
	}
	return assignments, total, nil
}

// FindByID fetches an assignment by ID.
func (r *ServiceAssignmentRepository) FindByID(ctx context.Context, id string) (*models.ServiceAssignment, error) {
	const query = `SELECT id, student_id, type, plan, monthly_fee, start_date, end_date, active, created_at, updated_at
        FROM service_assignments WHERE id = $1`
	var assignment models.ServiceAssignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// FindActiveByStudentAndType resolves a student's current subscription
// for one service type. A student holds at most one active row per type.
func (r *ServiceAssignmentRepository) FindActiveByStudentAndType(ctx context.Context, studentID string, serviceType models.ServiceType) (*models.ServiceAssignment, error) {
	const query = `SELECT id, student_id, type, plan, monthly_fee, start_date, end_date, active, created_at, updated_at
        FROM service_assignments WHERE student_id = $1 AND type = $2 AND active = true LIMIT 1`
	var assignment models.ServiceAssignment
	if err := r.db.GetContext(ctx, &assignment, query, studentID, serviceType); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find active assignment: %w", err)
	}
	return &assignment, nil
}

// Create inserts a new assignment.
func (r *ServiceAssignmentRepository) Create(ctx context.Context, assignment *models.ServiceAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	assignment.CreatedAt = now
	assignment.UpdatedAt = now
	const query = `INSERT INTO service_assignments (id, student_id, type, plan, monthly_fee, start_date, end_date, active, created_at, updated_at)
        VALUES (:id, :student_id, :type, :plan, :monthly_fee, :start_date, :end_date, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create service assignment: %w", err)
	}
	return nil
}

// Update modifies an existing assignment.
func (r *ServiceAssignmentRepository) Update(ctx context.Context, assignment *models.ServiceAssignment) error {
	assignment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE service_assignments SET plan = :plan, monthly_fee = :monthly_fee, start_date = :start_date,
        end_date = :end_date, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("update service assignment: %w", err)
	}
	return nil
}

// Terminate closes an assignment with an end date and deactivates it.
func (r *ServiceAssignmentRepository) Terminate(ctx context.Context, id string, endDate time.Time) error {
	const query = `UPDATE service_assignments SET active = false, end_date = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, endDate, time.Now().UTC()); err != nil {
		return fmt.Errorf("terminate service assignment: %w", err)
	}
	return nil
}

func (r *ServiceAssignmentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM service_assignments WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete service assignment: %w", err)
	}
	return nil
}
