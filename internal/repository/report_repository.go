package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ElleGoodarzi/schoolaut-sub000/internal/models"
)

// ReportRepository manages background report job rows.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs a ReportRepository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts a queued report job.
func (r *ReportRepository) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ReportStatusQueued
	}
	job.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO report_jobs (id, type, params, status, created_by, created_at)
        VALUES (:id, :type, :params, :status, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create report job: %w", err)
	}
	return nil
}

// FindByID fetches a report job by ID.
func (r *ReportRepository) FindByID(ctx context.Context, id string) (*models.ReportJob, error) {
	const query = `SELECT id, type, params, status, result_url, created_by, created_at, finished_at, error_message
        FROM report_jobs WHERE id = $1`
	var job models.ReportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListByUser returns a user's recent report jobs, newest first.
func (r *ReportRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.ReportJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT id, type, params, status, result_url, created_by, created_at, finished_at, error_message
        FROM report_jobs WHERE created_by = $1 ORDER BY created_at DESC LIMIT %d`, limit)
	var jobs []models.ReportJob
	if err := r.db.SelectContext(ctx, &jobs, query, userID); err != nil {
		return nil, fmt.Errorf("list report jobs: %w", err)
	}
	return jobs, nil
}

// MarkProcessing moves a job to PROCESSING.
func (r *ReportRepository) MarkProcessing(ctx context.Context, id string) error {
	const query = `UPDATE report_jobs SET status = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReportStatusProcessing); err != nil {
		return fmt.Errorf("mark report job processing: %w", err)
	}
	return nil
}

// MarkFinished records the result URL and finish time.
func (r *ReportRepository) MarkFinished(ctx context.Context, id string, resultURL string) error {
	const query = `UPDATE report_jobs SET status = $2, result_url = $3, finished_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReportStatusFinished, resultURL, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark report job finished: %w", err)
	}
	return nil
}

// MarkFailed records the failure reason.
func (r *ReportRepository) MarkFailed(ctx context.Context, id string, message string) error {
	const query = `UPDATE report_jobs SET status = $2, error_message = $3, finished_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReportStatusFailed, message, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark report job failed: %w", err)
	}
	return nil
}

// DeleteOlderThan removes finished jobs past the retention window and
// returns the IDs so the caller can remove the generated files too.
func (r *ReportRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	const query = `DELETE FROM report_jobs
        WHERE created_at < $1 AND status IN ($2, $3) RETURNING id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, cutoff, models.ReportStatusFinished, models.ReportStatusFailed); err != nil {
		return nil, fmt.Errorf("delete old report jobs: %w", err)
	}
	return ids, nil
}
