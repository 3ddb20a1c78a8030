package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ElleGoodarzi/schoolaut-sub000/internal/models"
	appErrors "github.com/ElleGoodarzi/schoolaut-sub000/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	ExistsByNationalID(ctx context.Context, nationalID string, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	MoveToClass(ctx context.Context, id string, classID *string) error
	CountInClass(ctx context.Context, classID string) (int, error)
}

type studentClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.ClassDetail, error)
}

// CreateStudentRequest holds payload for registering students.
type CreateStudentRequest struct {
	NationalID    string    `json:"national_id" validate:"required"`
	FullName      string    `json:"full_name" validate:"required"`
	Gender        string    `json:"gender" validate:"required,oneof=M F"`
	BirthDate     time.Time `json:"birth_date" validate:"required"`
	GuardianName  string    `json:"guardian_name" validate:"required"`
	GuardianPhone string    `json:"guardian_phone" validate:"required"`
	Address       string    `json:"address"`
	ClassID       *string   `json:"class_id"`
}

// UpdateStudentRequest holds payload for updating students.
type UpdateStudentRequest struct {
	NationalID    string    `json:"national_id" validate:"required"`
	FullName      string    `json:"full_name" validate:"required"`
	Gender        string    `json:"gender" validate:"required,oneof=M F"`
	BirthDate     time.Time `json:"birth_date" validate:"required"`
	GuardianName  string    `json:"guardian_name" validate:"required"`
	GuardianPhone string    `json:"guardian_phone" validate:"required"`
	Address       string    `json:"address"`
	ClassID       *string   `json:"class_id"`
	Active        bool      `json:"active"`
}

// StudentService handles student use-cases.
type StudentService struct {
	repo      studentRepository
	classRepo studentClassRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, classes studentClassRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, classRepo: classes, validator: validate, logger: logger}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
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
	return students, pagination, nil
}

// Get returns detailed student information.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a new student, enforcing class capacity when a
// class is assigned at registration.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	exists, err := s.repo.ExistsByNationalID(ctx, req.NationalID, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate national id")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "national id already registered")
	}
	if req.ClassID != nil {
		if err := s.checkCapacity(ctx, *req.ClassID); err != nil {
			return nil, err
		}
	}
	student := &models.Student{
		NationalID:    req.NationalID,
		FullName:      req.FullName,
		Gender:        req.Gender,
		BirthDate:     req.BirthDate,
		GuardianName:  req.GuardianName,
		GuardianPhone: req.GuardianPhone,
		Address:       req.Address,
		ClassID:       req.ClassID,
		Active:        true,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update modifies an existing student record.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	exists, err := s.repo.ExistsByNationalID(ctx, req.NationalID, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate national id")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "national id already registered")
	}
	// Capacity only matters when moving into a different class.
	if req.ClassID != nil && (detail.ClassID == nil || *detail.ClassID != *req.ClassID) {
		if err := s.checkCapacity(ctx, *req.ClassID); err != nil {
			return nil, err
		}
	}
	student := detail.Student
	student.NationalID = req.NationalID
	student.FullName = req.FullName
	student.Gender = req.Gender
	student.BirthDate = req.BirthDate
	student.GuardianName = req.GuardianName
	student.GuardianPhone = req.GuardianPhone
	student.Address = req.Address
	student.ClassID = req.ClassID
	student.Active = req.Active
	if err := s.repo.Update(ctx, &student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return &student, nil
}

// MoveToClass reassigns a student, enforcing the target capacity.
func (s *StudentService) MoveToClass(ctx context.Context, id string, classID *string) error {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if classID != nil && (detail.ClassID == nil || *detail.ClassID != *classID) {
		if err := s.checkCapacity(ctx, *classID); err != nil {
			return err
		}
	}
	if err := s.repo.MoveToClass(ctx, id, classID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move student")
	}
	return nil
}

// Deactivate marks a student inactive without deleting history.
func (s *StudentService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	return nil
}

// Delete removes the student row for good. Deactivate is the normal
// path; this backs the admin cleanup screen.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	return nil
}

func (s *StudentService) checkCapacity(ctx context.Context, classID string) error {
	class, err := s.classRepo.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "class does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.Capacity <= 0 {
		return nil
	}
	count, err := s.repo.CountInClass(ctx, classID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count class students")
	}
	if count >= class.Capacity {
		return appErrors.Clone(appErrors.ErrClassFull, "")
	}
	return nil
}
