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

type attendanceRepository interface {
	Roster(ctx context.Context, classID string, date time.Time) ([]models.RosterRow, error)
	Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
	DeleteByClassDate(ctx context.Context, classID string, date time.Time) (int64, error)
	DeleteByStudents(ctx context.Context, studentIDs []string, date time.Time) (int64, error)
	StudentHistory(ctx context.Context, studentID string, from, to *time.Time) ([]models.AttendanceHistoryRow, error)
	StudentSummary(ctx context.Context, studentID string, from, to *time.Time) (*models.AttendanceSummary, error)
}

type attendanceStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

type attendanceClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.ClassDetail, error)
}

type attendanceTeacherRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.Teacher, error)
}

// Actor identifies the authenticated caller for ownership checks.
type Actor struct {
	UserID string
	Role   rbac.Role
}

// AttendanceService coordinates roster loading, marking, clearing and
// history. The permission middleware has already verified the role can
// touch attendance; this layer adds the dynamic check that a TEACHER
// only mutates their own class.
type AttendanceService struct {
	repo        attendanceRepository
	studentRepo attendanceStudentRepository
	classRepo   attendanceClassRepository
	teacherRepo attendanceTeacherRepository
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, students attendanceStudentRepository, classes attendanceClassRepository, teachers attendanceTeacherRepository, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AttendanceService{repo: repo, studentRepo: students, classRepo: classes, teacherRepo: teachers, validator: validate, logger: logger}
	svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(strings.ToUpper(fl.Field().String())).Valid()
	})
	return svc
}

// MarkAttendanceRequest describes payload for marking one student.
type MarkAttendanceRequest struct {
	StudentID string  `json:"student_id" validate:"required"`
	Date      string  `json:"date" validate:"required"`
	Status    string  `json:"status" validate:"required,attendance_status"`
	Notes     *string `json:"notes"`
}

// BulkAttendanceItem holds one entry of a bulk payload.
type BulkAttendanceItem struct {
	StudentID string  `json:"student_id" validate:"required"`
	Status    string  `json:"status" validate:"required,attendance_status"`
	Notes     *string `json:"notes"`
}

// BulkMarkAttendanceRequest describes the bulk mark payload.
type BulkMarkAttendanceRequest struct {
	ClassID string               `json:"class_id" validate:"required"`
	Date    string               `json:"date" validate:"required"`
	Updates []BulkAttendanceItem `json:"updates" validate:"required,min=1,dive"`
}

// ClearAttendanceRequest clears marks for a day, either the whole
// class or the listed students.
type ClearAttendanceRequest struct {
	ClassID    string   `json:"class_id" validate:"required"`
	Date       string   `json:"date" validate:"required"`
	StudentIDs []string `json:"student_ids"`
}

// RosterResponse pairs per-student rows with the day's counters.
type RosterResponse struct {
	ClassID string               `json:"class_id"`
	Date    string               `json:"date"`
	Rows    []models.RosterRow   `json:"rows"`
	Summary models.RosterSummary `json:"summary"`
}

// Roster returns the roster joined with the day's marks. An empty
// classID spans every active student in the school.
func (s *AttendanceService) Roster(ctx context.Context, actor Actor, classID string, date time.Time) (*RosterResponse, error) {
	if classID != "" {
		if _, err := s.classRepo.FindByID(ctx, classID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
		}
	}
	rows, err := s.repo.Roster(ctx, classID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	summary := models.RosterSummary{Total: len(rows)}
	for _, row := range rows {
		if row.Status == nil {
			summary.Unmarked++
			continue
		}
		switch *row.Status {
		case models.AttendanceStatusPresent:
			summary.Present++
		case models.AttendanceStatusAbsent:
			summary.Absent++
		case models.AttendanceStatusLate:
			summary.Late++
		case models.AttendanceStatusExcused:
			summary.Excused++
		}
	}
	return &RosterResponse{ClassID: classID, Date: date.Format("2006-01-02"), Rows: rows, Summary: summary}, nil
}

// Mark records a single student's attendance for a day. Re-marking the
// same day overwrites the previous status.
func (s *AttendanceService) Mark(ctx context.Context, actor Actor, req MarkAttendanceRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	student, err := s.studentRepo.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot mark attendance for inactive student")
	}
	if student.ClassID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is not assigned to a class")
	}
	if err := s.ensureCanMutate(ctx, actor, *student.ClassID); err != nil {
		return nil, err
	}
	record := &models.AttendanceRecord{
		StudentID: req.StudentID,
		ClassID:   *student.ClassID,
		Date:      date,
		Status:    models.AttendanceStatus(strings.ToUpper(req.Status)),
		Notes:     req.Notes,
	}
	stored, err := s.repo.Upsert(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
	}
	return stored, nil
}

// BulkMark records attendance for many students at once. Rows are
// processed independently; a failed row lands in the manifest and the
// remainder still commits.
func (s *AttendanceService) BulkMark(ctx context.Context, actor Actor, req BulkMarkAttendanceRequest) (*models.BulkResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	if err := s.ensureCanMutate(ctx, actor, req.ClassID); err != nil {
		return nil, err
	}

	result := &models.BulkResult{Processed: len(req.Updates)}
	seen := map[string]struct{}{}
	for _, item := range req.Updates {
		if _, ok := seen[item.StudentID]; ok {
			result.Failures = append(result.Failures, models.BulkFailure{StudentID: item.StudentID, Reason: "duplicate student in payload"})
			continue
		}
		seen[item.StudentID] = struct{}{}

		student, err := s.studentRepo.FindByID(ctx, item.StudentID)
		if err != nil {
			reason := "failed to load student"
			if errors.Is(err, sql.ErrNoRows) {
				reason = "student not found"
			}
			result.Failures = append(result.Failures, models.BulkFailure{StudentID: item.StudentID, Reason: reason})
			continue
		}
		if !student.Active {
			result.Failures = append(result.Failures, models.BulkFailure{StudentID: item.StudentID, Reason: "student is inactive"})
			continue
		}
		if student.ClassID == nil || *student.ClassID != req.ClassID {
			result.Failures = append(result.Failures, models.BulkFailure{StudentID: item.StudentID, Reason: "student does not belong to class"})
			continue
		}
		record := &models.AttendanceRecord{
			StudentID: item.StudentID,
			ClassID:   req.ClassID,
			Date:      date,
			Status:    models.AttendanceStatus(strings.ToUpper(item.Status)),
			Notes:     item.Notes,
		}
		if _, err := s.repo.Upsert(ctx, record); err != nil {
			s.logger.Warn("bulk attendance row failed",
				zap.String("student_id", item.StudentID),
				zap.String("date", req.Date),
				zap.Error(err))
			result.Failures = append(result.Failures, models.BulkFailure{StudentID: item.StudentID, Reason: "failed to store record"})
			continue
		}
		result.Succeeded++
	}
	return result, nil
}

// Clear removes marks for a day. With StudentIDs set only those rows
// are deleted, otherwise the whole class day is cleared. The affected
// students return to the unmarked state.
func (s *AttendanceService) Clear(ctx context.Context, actor Actor, req ClearAttendanceRequest) (int64, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	if err := s.ensureCanMutate(ctx, actor, req.ClassID); err != nil {
		return 0, err
	}
	var affected int64
	if len(req.StudentIDs) > 0 {
		affected, err = s.repo.DeleteByStudents(ctx, req.StudentIDs, date)
	} else {
		affected, err = s.repo.DeleteByClassDate(ctx, req.ClassID, date)
	}
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear attendance")
	}
	return affected, nil
}

// AttendanceListRequest is used for listing raw attendance records.
type AttendanceListRequest struct {
	ClassID   string     `json:"class_id"`
	StudentID string     `json:"student_id"`
	Status    *string    `json:"status" validate:"omitempty,attendance_status"`
	DateFrom  *time.Time `json:"date_from"`
	DateTo    *time.Time `json:"date_to"`
	Page      int        `json:"page"`
	PageSize  int        `json:"page_size"`
	SortBy    string     `json:"sort_by"`
	SortOrder string     `json:"sort_order"`
}

// List returns paginated attendance records.
func (s *AttendanceService) List(ctx context.Context, req AttendanceListRequest) ([]models.AttendanceRecord, *models.Pagination, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid filter")
	}
	var status *models.AttendanceStatus
	if req.Status != nil {
		st := models.AttendanceStatus(strings.ToUpper(*req.Status))
		status = &st
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	if size <= 0 {
		size = 50
	}
	filter := models.AttendanceFilter{
		ClassID:   req.ClassID,
		StudentID: req.StudentID,
		Status:    status,
		DateFrom:  req.DateFrom,
		DateTo:    req.DateTo,
		Page:      page,
		PageSize:  size,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return rows, pagination, nil
}

// StudentAttendanceReport bundles history with aggregate counts.
type StudentAttendanceReport struct {
	History []models.AttendanceHistoryRow `json:"history"`
	Summary *models.AttendanceSummary     `json:"summary"`
}

// StudentReport returns a student's attendance history and summary.
func (s *AttendanceService) StudentReport(ctx context.Context, studentID string, from, to *time.Time) (*StudentAttendanceReport, error) {
	if _, err := s.studentRepo.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	history, err := s.repo.StudentHistory(ctx, studentID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch attendance history")
	}
	summary, err := s.repo.StudentSummary(ctx, studentID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise attendance")
	}
	return &StudentAttendanceReport{History: history, Summary: summary}, nil
}

// ensureCanMutate applies the dynamic ownership rule: a TEACHER may only
// write attendance for the class they homeroom. Other roles passed the
// static permission check already.
func (s *AttendanceService) ensureCanMutate(ctx context.Context, actor Actor, classID string) error {
	if actor.Role != rbac.RoleTeacher {
		return nil
	}
	teacher, err := s.teacherRepo.FindByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrForbidden, "no teacher profile linked to account")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve teacher")
	}
	class, err := s.classRepo.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.TeacherID == nil || *class.TeacherID != teacher.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "teachers may only mark their own class")
	}
	return nil
}
