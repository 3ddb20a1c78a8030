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

type serviceAssignmentRepository interface {
	List(ctx context.Context, filter models.ServiceAssignmentFilter) ([]models.ServiceAssignmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.ServiceAssignment, error)
	FindActiveByStudentAndType(ctx context.Context, studentID string, serviceType models.ServiceType) (*models.ServiceAssignment, error)
	Create(ctx context.Context, assignment *models.ServiceAssignment) error
	Update(ctx context.Context, assignment *models.ServiceAssignment) error
	Terminate(ctx context.Context, id string, endDate time.Time) error
	Delete(ctx context.Context, id string) error
}

type serviceAssignmentStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

// AssignServiceRequest subscribes a student to a meal plan or bus route.
type AssignServiceRequest struct {
	StudentID  string    `json:"student_id" validate:"required"`
	Type       string    `json:"type" validate:"required,service_type"`
	Plan       string    `json:"plan" validate:"required"`
	MonthlyFee int64     `json:"monthly_fee" validate:"required,gt=0"`
	StartDate  time.Time `json:"start_date" validate:"required"`
}

// UpdateServiceRequest amends an active subscription.
type UpdateServiceRequest struct {
	Plan       string     `json:"plan" validate:"required"`
	MonthlyFee int64      `json:"monthly_fee" validate:"required,gt=0"`
	EndDate    *time.Time `json:"end_date"`
	Active     bool       `json:"active"`
}

// ServiceAssignmentService handles meal and transport subscriptions.
type ServiceAssignmentService struct {
	repo        serviceAssignmentRepository
	studentRepo serviceAssignmentStudentRepository
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewServiceAssignmentService constructs the service.
func NewServiceAssignmentService(repo serviceAssignmentRepository, students serviceAssignmentStudentRepository, validate *validator.Validate, logger *zap.Logger) *ServiceAssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ServiceAssignmentService{repo: repo, studentRepo: students, validator: validate, logger: logger}
	svc.validator.RegisterValidation("service_type", func(fl validator.FieldLevel) bool {
		return models.ServiceType(strings.ToUpper(fl.Field().String())).Valid()
	})
	return svc
}

// List returns subscriptions and pagination metadata.
func (s *ServiceAssignmentService) List(ctx context.Context, filter models.ServiceAssignmentFilter) ([]models.ServiceAssignmentDetail, *models.Pagination, error) {
	assignments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list service assignments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return assignments, pagination, nil
}

// Get returns a subscription by ID.
func (s *ServiceAssignmentService) Get(ctx context.Context, id string) (*models.ServiceAssignment, error) {
	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "service assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load service assignment")
	}
	return assignment, nil
}

// serviceResource maps a service type onto its permission resource.
// The route guard only narrows to the staff roles; the per-type
// matrix check (FINANCE may touch MEAL but not TRANSPORT) happens
// here, where the type is known.
func serviceResource(serviceType models.ServiceType) rbac.Resource {
	if serviceType == models.ServiceTypeTransport {
		return rbac.ResourceTransport
	}
	return rbac.ResourceMeal
}

func (s *ServiceAssignmentService) ensurePermitted(actor Actor, serviceType models.ServiceType, action rbac.Action) error {
	if !rbac.HasPermission(actor.Role, serviceResource(serviceType), action) {
		return appErrors.Clone(appErrors.ErrForbidden, "role may not modify this service type")
	}
	return nil
}

// Assign subscribes a student. A student holds at most one active
// subscription per service type.
func (s *ServiceAssignmentService) Assign(ctx context.Context, actor Actor, req AssignServiceRequest) (*models.ServiceAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid service payload")
	}
	if err := s.ensurePermitted(actor, models.ServiceType(strings.ToUpper(req.Type)), rbac.ActionCreate); err != nil {
		return nil, err
	}
	student, err := s.studentRepo.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot assign services to inactive student")
	}
	serviceType := models.ServiceType(strings.ToUpper(req.Type))
	current, err := s.repo.FindActiveByStudentAndType(ctx, req.StudentID, serviceType)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing assignment")
	}
	if current != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already has an active subscription of this type")
	}
	assignment := &models.ServiceAssignment{
		StudentID:  req.StudentID,
		Type:       serviceType,
		Plan:       req.Plan,
		MonthlyFee: req.MonthlyFee,
		StartDate:  req.StartDate,
		Active:     true,
	}
	if err := s.repo.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create service assignment")
	}
	return assignment, nil
}

// Update amends a subscription.
func (s *ServiceAssignmentService) Update(ctx context.Context, actor Actor, id string, req UpdateServiceRequest) (*models.ServiceAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid service payload")
	}
	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "service assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load service assignment")
	}
	if err := s.ensurePermitted(actor, assignment.Type, rbac.ActionUpdate); err != nil {
		return nil, err
	}
	assignment.Plan = req.Plan
	assignment.MonthlyFee = req.MonthlyFee
	assignment.EndDate = req.EndDate
	assignment.Active = req.Active
	if err := s.repo.Update(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update service assignment")
	}
	return assignment, nil
}

// Terminate ends a subscription as of the given date.
func (s *ServiceAssignmentService) Terminate(ctx context.Context, actor Actor, id string, endDate time.Time) error {
	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "service assignment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load service assignment")
	}
	if err := s.ensurePermitted(actor, assignment.Type, rbac.ActionUpdate); err != nil {
		return err
	}
	if !assignment.Active {
		return appErrors.Clone(appErrors.ErrConflict, "service assignment is already terminated")
	}
	if endDate.Before(assignment.StartDate) {
		return appErrors.Clone(appErrors.ErrValidation, "end date cannot precede start date")
	}
	if err := s.repo.Terminate(ctx, id, endDate); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to terminate service assignment")
	}
	return nil
}

// Delete removes a mistaken assignment entirely.
func (s *ServiceAssignmentService) Delete(ctx context.Context, actor Actor, id string) error {
	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "service assignment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load service assignment")
	}
	if err := s.ensurePermitted(actor, assignment.Type, rbac.ActionDelete); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete service assignment")
	}
	return nil
}
