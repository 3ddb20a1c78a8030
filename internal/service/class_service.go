package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ElleGoodarzi/schoolaut-sub000/internal/models"
	appErrors "github.com/ElleGoodarzi/schoolaut-sub000/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.ClassDetail, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	Delete(ctx context.Context, id string) error
}

type classTeacherRepository interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

// CreateClassRequest holds payload for creating classes.
type CreateClassRequest struct {
	Name      string  `json:"name" validate:"required"`
	Grade     int     `json:"grade" validate:"required,min=1,max=6"`
	Section   string  `json:"section" validate:"required"`
	TeacherID *string `json:"teacher_id"`
	Capacity  int     `json:"capacity" validate:"required,min=1"`
}

// UpdateClassRequest holds payload for updating classes.
type UpdateClassRequest struct {
	Name      string  `json:"name" validate:"required"`
	Grade     int     `json:"grade" validate:"required,min=1,max=6"`
	Section   string  `json:"section" validate:"required"`
	TeacherID *string `json:"teacher_id"`
	Capacity  int     `json:"capacity" validate:"required,min=1"`
}

// ClassService handles classroom use-cases.
type ClassService struct {
	repo        classRepository
	teacherRepo classTeacherRepository
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewClassService constructs the class service.
func NewClassService(repo classRepository, teachers classTeacherRepository, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, teacherRepo: teachers, validator: validate, logger: logger}
}

// List returns classes and pagination metadata.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, *models.Pagination, error) {
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
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
	return classes, pagination, nil
}

// Get returns a class with teacher name and head count.
func (s *ClassService) Get(ctx context.Context, id string) (*models.ClassDetail, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

// Create registers a new class.
func (s *ClassService) Create(ctx context.Context, req CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	if err := s.checkTeacher(ctx, req.TeacherID); err != nil {
		return nil, err
	}
	class := &models.Class{
		Name:      req.Name,
		Grade:     req.Grade,
		Section:   req.Section,
		TeacherID: req.TeacherID,
		Capacity:  req.Capacity,
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	return class, nil
}

// Update modifies an existing class.
func (s *ClassService) Update(ctx context.Context, id string, req UpdateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if err := s.checkTeacher(ctx, req.TeacherID); err != nil {
		return nil, err
	}
	// Shrinking capacity below the head count would strand students.
	if req.Capacity < detail.StudentCount {
		return nil, appErrors.Clone(appErrors.ErrValidation, "capacity cannot be below current student count")
	}
	class := detail.Class
	class.Name = req.Name
	class.Grade = req.Grade
	class.Section = req.Section
	class.TeacherID = req.TeacherID
	class.Capacity = req.Capacity
	if err := s.repo.Update(ctx, &class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return &class, nil
}

// Delete removes an empty class.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if detail.StudentCount > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "class still has students assigned")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	return nil
}

func (s *ClassService) checkTeacher(ctx context.Context, teacherID *string) error {
	if teacherID == nil {
		return nil
	}
	teacher, err := s.teacherRepo.FindByID(ctx, *teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "teacher does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if !teacher.Active {
		return appErrors.Clone(appErrors.ErrValidation, "teacher is inactive")
	}
	return nil
}
