package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ElleGoodarzi/schoolaut-sub000/internal/models"
	"github.com/ElleGoodarzi/schoolaut-sub000/internal/rbac"
)

// CircularRepository manages persistence for school circulars.
type CircularRepository struct {
	db *sqlx.DB
}

// NewCircularRepository constructs a CircularRepository.
func NewCircularRepository(db *sqlx.DB) *CircularRepository {
	return &CircularRepository{db: db}
}

// List returns circulars visible to the filter's viewer, pinned and
// high-priority ones first, excluding expired circulars.
func (r *CircularRepository) List(ctx context.Context, filter models.CircularFilter) ([]models.Circular, int, error) {
	base := "FROM circulars c"
	conditions := []string{"(c.expires_at IS NULL OR c.expires_at > NOW())"}
	args := []interface{}{}

	// ADMIN and VICE_PRINCIPAL see every circular. Teachers see ALL,
	// TEACHERS and circulars targeting their own classes.
	switch filter.ViewerRole {
	case rbac.RoleTeacher:
		if len(filter.ClassIDs) > 0 {
			conditions = append(conditions, fmt.Sprintf(
				"(c.audience IN ('ALL', 'TEACHERS') OR (c.audience = 'CLASS' AND c.target_class_id = ANY($%d)))", len(args)+1))
			args = append(args, pq.Array(filter.ClassIDs))
		} else {
			conditions = append(conditions, "c.audience IN ('ALL', 'TEACHERS')")
		}
	case rbac.RoleFinance:
		conditions = append(conditions, "c.audience = 'ALL'")
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

	query := fmt.Sprintf(`SELECT c.id, c.title, c.body, c.audience, c.target_class_id, c.priority, c.is_pinned,
        c.published_at, c.expires_at, c.created_by, c.created_at, c.updated_at
        %s WHERE %s
        ORDER BY c.is_pinned DESC, CASE c.priority WHEN 'HIGH' THEN 0 WHEN 'NORMAL' THEN 1 ELSE 2 END, c.published_at DESC
        LIMIT %d OFFSET %d`, base, whereClause, size, offset)

	var circulars []models.Circular
	if err := r.db.SelectContext(ctx, &circulars, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list circulars: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count circulars: %w", err)
	}
	return circulars, total, nil
}

// FindByID fetches a circular by ID.
func (r *CircularRepository) FindByID(ctx context.Context, id string) (*models.Circular, error) {
	const query = `SELECT id, title, body, audience, target_class_id, priority, is_pinned,
        published_at, expires_at, created_by, created_at, updated_at FROM circulars WHERE id = $1`
	var circular models.Circular
	if err := r.db.GetContext(ctx, &circular, query, id); err != nil {
		return nil, err
	}
	return &circular, nil
}

// Create inserts a new circular.
func (r *CircularRepository) Create(ctx context.Context, circular *models.Circular) error {
	if circular.ID == "" {
		circular.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if circular.PublishedAt.IsZero() {
		circular.PublishedAt = now
	}
	circular.CreatedAt = now
	circular.UpdatedAt = now
	const query = `INSERT INTO circulars (id, title, body, audience, target_class_id, priority, is_pinned,
        published_at, expires_at, created_by, created_at, updated_at)
        VALUES (:id, :title, :body, :audience, :target_class_id, :priority, :is_pinned,
        :published_at, :expires_at, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, circular); err != nil {
		return fmt.Errorf("create circular: %w", err)
	}
	return nil
}

// Update modifies an existing circular.
func (r *CircularRepository) Update(ctx context.Context, circular *models.Circular) error {
	circular.UpdatedAt = time.Now().UTC()
	const query = `UPDATE circulars SET title = :title, body = :body, audience = :audience,
        target_class_id = :target_class_id, priority = :priority, is_pinned = :is_pinned,
        expires_at = :expires_at, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, circular); err != nil {
		return fmt.Errorf("update circular: %w", err)
	}
	return nil
}

// Delete removes a circular.
func (r *CircularRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM circulars WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete circular: %w", err)
	}
	return nil
}
