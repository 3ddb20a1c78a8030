package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ElleGoodarzi/schoolaut-sub000/internal/models"
	"github.com/ElleGoodarzi/schoolaut-sub000/internal/rbac"
	appErrors "github.com/ElleGoodarzi/schoolaut-sub000/pkg/errors"
	"github.com/ElleGoodarzi/schoolaut-sub000/pkg/jobs"
)

type reportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	FindByID(ctx context.Context, id string) (*models.ReportJob, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.ReportJob, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkFinished(ctx context.Context, id string, resultURL string) error
	MarkFailed(ctx context.Context, id string, message string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]string, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type reportTeacherRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.Teacher, error)
}

type reportClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.ClassDetail, error)
}

// CreateReportRequest asks for a background export.
type CreateReportRequest struct {
	Type    string  `json:"type"`
	Format  string  `json:"format"`
	Date    string  `json:"date,omitempty"`
	Month   string  `json:"month,omitempty"`
	ClassID *string `json:"class_id,omitempty"`
}

// ReportServiceConfig governs cleanup of generated files.
type ReportServiceConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// ReportDownload aggregates resolved download data.
type ReportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ReportFormat
	ExpiresAt time.Time
}

// ReportService orchestrates the background report job lifecycle:
// persist the job, enqueue it, process it off the request path, and
// hand out signed download URLs.
type ReportService struct {
	repo        reportJobStore
	teacherRepo reportTeacherRepository
	classRepo   reportClassRepository
	queue       jobDispatcher
	exporter    *ExportService
	logger      *zap.Logger
	cfg         ReportServiceConfig
}

// NewReportService constructs the report service.
func NewReportService(repo reportJobStore, teachers reportTeacherRepository, classes reportClassRepository, queue jobDispatcher, exporter *ExportService, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ReportService{
		repo:        repo,
		teacherRepo: teachers,
		classRepo:   classes,
		queue:       queue,
		exporter:    exporter,
		logger:      logger,
		cfg:         cfg,
	}
}

// CreateJob validates the request, persists the job and enqueues it.
func (s *ReportService) CreateJob(ctx context.Context, actor Actor, req CreateReportRequest) (*models.ReportJob, error) {
	reportType := models.ReportType(strings.ToLower(req.Type))
	format := models.ReportFormat(strings.ToLower(req.Format))
	if err := s.validateRequest(ctx, actor, reportType, format, req); err != nil {
		return nil, err
	}
	job := &models.ReportJob{
		Type: reportType,
		Params: models.ReportJobParams{
			Date:    req.Date,
			Month:   req.Month,
			ClassID: req.ClassID,
			Format:  format,
		},
		Status:    models.ReportStatusQueued,
		CreatedBy: actor.UserID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		if markErr := s.repo.MarkFailed(ctx, job.ID, "failed to enqueue job"); markErr != nil {
			s.logger.Warn("failed to mark unenqueued job", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}
	return job, nil
}

// Process runs a queued job to completion. Wired as the queue handler.
func (s *ReportService) Process(ctx context.Context, queued jobs.Job) error {
	job, err := s.repo.FindByID(ctx, queued.ID)
	if err != nil {
		return err
	}
	if job.Status == models.ReportStatusFinished {
		return nil
	}
	if err := s.repo.MarkProcessing(ctx, job.ID); err != nil {
		return err
	}
	result, err := s.exporter.Generate(ctx, job)
	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			s.logger.Warn("failed to mark report job failed", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return err
	}
	if err := s.repo.MarkFinished(ctx, job.ID, result.URL); err != nil {
		return err
	}
	return nil
}

// GetStatus exposes job metadata, restricting non-admins to their own jobs.
func (s *ReportService) GetStatus(ctx context.Context, actor Actor, id string) (*models.ReportJob, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if actor.Role != rbac.RoleAdmin && job.CreatedBy != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report belongs to another user")
	}
	return job, nil
}

// ListMine returns the actor's recent jobs.
func (s *ReportService) ListMine(ctx context.Context, actor Actor, limit int) ([]models.ReportJob, error) {
	jobsList, err := s.repo.ListByUser(ctx, actor.UserID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list report jobs")
	}
	return jobsList, nil
}

// ResolveDownload validates the token and opens the stored file.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*ReportDownload, error) {
	jobID, relPath, expiresAt, err := s.exporter.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ReportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report not ready")
	}
	file, err := s.exporter.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ReportDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		Format:    job.Params.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *ReportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *ReportService) cleanupExpired(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.cfg.ResultTTL)
	if _, err := s.repo.DeleteOlderThan(ctx, cutoff); err != nil {
		s.logger.Warn("report job cleanup failed", zap.Error(err))
	}
	if _, err := s.exporter.Cleanup(s.cfg.ResultTTL); err != nil {
		s.logger.Warn("export file cleanup failed", zap.Error(err))
	}
}

func (s *ReportService) validateRequest(ctx context.Context, actor Actor, reportType models.ReportType, format models.ReportFormat, req CreateReportRequest) error {
	switch reportType {
	case models.ReportTypeAttendance:
		if req.ClassID == nil || *req.ClassID == "" {
			return appErrors.Clone(appErrors.ErrValidation, "attendance report requires class_id")
		}
		if _, err := time.Parse("2006-01-02", req.Date); err != nil {
			return appErrors.Clone(appErrors.ErrValidation, "attendance report requires date as YYYY-MM-DD")
		}
	case models.ReportTypePayments:
		if _, err := time.Parse("2006-01", req.Month); err != nil {
			return appErrors.Clone(appErrors.ErrValidation, "payments report requires month as YYYY-MM")
		}
	case models.ReportTypeRoster:
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unsupported report type")
	}
	if format != models.ReportFormatCSV && format != models.ReportFormatPDF {
		return appErrors.Clone(appErrors.ErrValidation, "unsupported report format")
	}
	if actor.Role == rbac.RoleTeacher {
		if req.ClassID == nil || *req.ClassID == "" {
			return appErrors.Clone(appErrors.ErrValidation, "class_id is required for teacher reports")
		}
		teacher, err := s.teacherRepo.FindByUserID(ctx, actor.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrForbidden, "no teacher profile linked to account")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve teacher")
		}
		class, err := s.classRepo.FindByID(ctx, *req.ClassID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrValidation, "class does not exist")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
		}
		if class.TeacherID == nil || *class.TeacherID != teacher.ID {
			return appErrors.Clone(appErrors.ErrForbidden, "teachers may only export their own class")
		}
	}
	return nil
}
