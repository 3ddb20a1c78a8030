package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ElleGoodarzi/schoolaut-sub000/internal/models"
	"github.com/ElleGoodarzi/schoolaut-sub000/internal/rbac"
	appErrors "github.com/ElleGoodarzi/schoolaut-sub000/pkg/errors"
)

type circularRepository interface {
	List(ctx context.Context, filter models.CircularFilter) ([]models.Circular, int, error)
	FindByID(ctx context.Context, id string) (*models.Circular, error)
	Create(ctx context.Context, circular *models.Circular) error
	Update(ctx context.Context, circular *models.Circular) error
	Delete(ctx context.Context, id string) error
}

type circularTeacherRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.Teacher, error)
}

type circularClassRepository interface {
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Class, error)
}

// CreateCircularRequest holds payload for publishing circulars.
type CreateCircularRequest struct {
	Title         string     `json:"title" validate:"required"`
	Body          string     `json:"body" validate:"required"`
	Audience      string     `json:"audience" validate:"required,circular_audience"`
	TargetClassID *string    `json:"target_class_id"`
	Priority      string     `json:"priority" validate:"required,circular_priority"`
	IsPinned      bool       `json:"is_pinned"`
	ExpiresAt     *time.Time `json:"expires_at"`
}

// UpdateCircularRequest mirrors the create payload for edits.
type UpdateCircularRequest = CreateCircularRequest

// CircularService handles circular publishing and scoped listing.
type CircularService struct {
	repo        circularRepository
	teacherRepo circularTeacherRepository
	classRepo   circularClassRepository
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCircularService constructs the circular service.
func NewCircularService(repo circularRepository, teachers circularTeacherRepository, classes circularClassRepository, validate *validator.Validate, logger *zap.Logger) *CircularService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &CircularService{repo: repo, teacherRepo: teachers, classRepo: classes, validator: validate, logger: logger}
	svc.validator.RegisterValidation("circular_audience", func(fl validator.FieldLevel) bool {
		switch models.CircularAudience(strings.ToUpper(fl.Field().String())) {
		case models.CircularAudienceAll, models.CircularAudienceTeachers, models.CircularAudienceParents, models.CircularAudienceClass:
			return true
		default:
			return false
		}
	})
	svc.validator.RegisterValidation("circular_priority", func(fl validator.FieldLevel) bool {
		switch models.CircularPriority(strings.ToUpper(fl.Field().String())) {
		case models.CircularPriorityLow, models.CircularPriorityNormal, models.CircularPriorityHigh:
			return true
		default:
			return false
		}
	})
	return svc
}

// List returns circulars visible to the actor. For teachers the
// visible set includes circulars targeting their own classes.
func (s *CircularService) List(ctx context.Context, actor Actor, page, pageSize int) ([]models.Circular, *models.Pagination, error) {
	filter := models.CircularFilter{ViewerRole: actor.Role, Page: page, PageSize: pageSize}
	if actor.Role == rbac.RoleTeacher {
		teacher, err := s.teacherRepo.FindByUserID(ctx, actor.UserID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve teacher")
		}
		if teacher != nil {
			classes, err := s.classRepo.ListByTeacher(ctx, teacher.ID)
			if err != nil {
				return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher classes")
			}
			for _, class := range classes {
				filter.ClassIDs = append(filter.ClassIDs, class.ID)
			}
		}
	}
	circulars, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list circulars")
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
	return circulars, pagination, nil
}

// Get returns a circular by ID.
func (s *CircularService) Get(ctx context.Context, id string) (*models.Circular, error) {
	circular, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "circular not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load circular")
	}
	return circular, nil
}

// Create publishes a circular.
func (s *CircularService) Create(ctx context.Context, actor Actor, req CreateCircularRequest) (*models.Circular, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid circular payload")
	}
	audience := models.CircularAudience(strings.ToUpper(req.Audience))
	if audience == models.CircularAudienceClass && req.TargetClassID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class audience requires a target class")
	}
	if audience != models.CircularAudienceClass && req.TargetClassID != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target class only applies to class audience")
	}
	circular := &models.Circular{
		Title:         req.Title,
		Body:          req.Body,
		Audience:      audience,
		TargetClassID: req.TargetClassID,
		Priority:      models.CircularPriority(strings.ToUpper(req.Priority)),
		IsPinned:      req.IsPinned,
		ExpiresAt:     req.ExpiresAt,
		CreatedBy:     actor.UserID,
	}
	if err := s.repo.Create(ctx, circular); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create circular")
	}
	return circular, nil
}

// Update edits an existing circular.
func (s *CircularService) Update(ctx context.Context, id string, req UpdateCircularRequest) (*models.Circular, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid circular payload")
	}
	circular, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "circular not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load circular")
	}
	audience := models.CircularAudience(strings.ToUpper(req.Audience))
	if audience == models.CircularAudienceClass && req.TargetClassID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class audience requires a target class")
	}
	circular.Title = req.Title
	circular.Body = req.Body
	circular.Audience = audience
	circular.TargetClassID = req.TargetClassID
	circular.Priority = models.CircularPriority(strings.ToUpper(req.Priority))
	circular.IsPinned = req.IsPinned
	circular.ExpiresAt = req.ExpiresAt
	if err := s.repo.Update(ctx, circular); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update circular")
	}
	return circular, nil
}

// Delete removes a circular.
func (s *CircularService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "circular not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load circular")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete circular")
	}
	return nil
}
