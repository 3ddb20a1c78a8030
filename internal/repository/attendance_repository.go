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
)

// AttendanceRepository handles persistence for attendance records.
// Rows are keyed by the (student_id, date) natural key; writes go
// through an upsert so re-marking a day can never duplicate.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Roster returns every active student of a class joined with that
// day's attendance. Unmarked students come back with a NULL status.
func (r *AttendanceRepository) Roster(ctx context.Context, classID string, date time.Time) ([]models.RosterRow, error) {
	const query = `SELECT s.id AS student_id, s.full_name, s.national_id, s.class_id,
        a.status, a.notes, a.updated_at AS recorded_at
        FROM students s
        LEFT JOIN attendance_records a ON a.student_id = s.id AND a.date = $2
        WHERE ($1 = '' OR s.class_id = $1) AND s.active = true
        ORDER BY s.full_name ASC`
	var rows []models.RosterRow
	if err := r.db.SelectContext(ctx, &rows, query, classID, date); err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	return rows, nil
}

// Upsert inserts or updates the attendance row for (student, date).
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	const query = `INSERT INTO attendance_records (id, student_id, class_id, date, status, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (student_id, date)
DO UPDATE SET status = EXCLUDED.status, notes = EXCLUDED.notes, class_id = EXCLUDED.class_id, updated_at = EXCLUDED.updated_at
RETURNING id, student_id, class_id, date, status, notes, created_at, updated_at`
	var stored models.AttendanceRecord
	if err := r.db.GetContext(ctx, &stored, query, record.ID, record.StudentID, record.ClassID, record.Date, record.Status, record.Notes, record.CreatedAt, record.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert attendance: %w", err)
	}
	return &stored, nil
}

// List returns attendance rows matching the provided filter.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	base := "FROM attendance_records a"
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.ClassID != "" {
		where = append(where, fmt.Sprintf("a.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("a.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != nil && filter.Status.Valid() {
		where = append(where, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("a.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("a.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	whereClause := strings.Join(where, " AND ")

	allowedSort := map[string]string{
		"date":       "a.date",
		"status":     "a.status",
		"created_at": "a.created_at",
	}
	sortColumn, ok := allowedSort[filter.SortBy]
	if !ok {
		sortColumn = "a.date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT a.id, a.student_id, a.class_id, a.date, a.status, a.notes, a.created_at, a.updated_at
        %s WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, whereClause, sortColumn, order, size, offset)

	var rows []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return rows, total, nil
}

// DeleteByClassDate clears every mark for a class on a day, returning
// the number of rows removed.
func (r *AttendanceRepository) DeleteByClassDate(ctx context.Context, classID string, date time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM attendance_records WHERE class_id = $1 AND date = $2", classID, date)
	if err != nil {
		return 0, fmt.Errorf("clear attendance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear attendance rows: %w", err)
	}
	return affected, nil
}

// DeleteByStudents clears marks for the listed students on a day.
func (r *AttendanceRepository) DeleteByStudents(ctx context.Context, studentIDs []string, date time.Time) (int64, error) {
	if len(studentIDs) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, "DELETE FROM attendance_records WHERE student_id = ANY($1) AND date = $2", pq.Array(studentIDs), date)
	if err != nil {
		return 0, fmt.Errorf("clear attendance for students: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear attendance rows: %w", err)
	}
	return affected, nil
}

// StudentHistory returns attendance history for a student.
func (r *AttendanceRepository) StudentHistory(ctx context.Context, studentID string, from, to *time.Time) ([]models.AttendanceHistoryRow, error) {
	where := []string{"student_id = $1"}
	args := []interface{}{studentID}
	if from != nil {
		where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *from)
	}
	if to != nil {
		where = append(where, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *to)
	}
	query := fmt.Sprintf(`SELECT date, status, notes FROM attendance_records
WHERE %s ORDER BY date DESC`, strings.Join(where, " AND "))
	var rows []models.AttendanceHistoryRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("student attendance history: %w", err)
	}
	return rows, nil
}

// StudentSummary aggregates a student's counts within a period.
func (r *AttendanceRepository) StudentSummary(ctx context.Context, studentID string, from, to *time.Time) (*models.AttendanceSummary, error) {
	where := []string{"student_id = $1"}
	args := []interface{}{studentID}
	if from != nil {
		where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *from)
	}
	if to != nil {
		where = append(where, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *to)
	}
	query := fmt.Sprintf(`SELECT status, COUNT(*) AS cnt FROM attendance_records
WHERE %s GROUP BY status`, strings.Join(where, " AND "))
	rows := []struct {
		Status string `db:"status"`
		Count  int    `db:"cnt"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("student attendance summary: %w", err)
	}
	summary := &models.AttendanceSummary{}
	for _, row := range rows {
		switch models.AttendanceStatus(row.Status) {
		case models.AttendanceStatusPresent:
			summary.Present += row.Count
		case models.AttendanceStatusAbsent:
			summary.Absent += row.Count
		case models.AttendanceStatusLate:
			summary.Late += row.Count
		case models.AttendanceStatusExcused:
			summary.Excused += row.Count
		}
		summary.Total += row.Count
	}
	if summary.Total > 0 {
		summary.Percent = float64(summary.Present+summary.Late) / float64(summary.Total) * 100
	}
	return summary, nil
}

// DailySummary counts statuses school-wide for one day. Used by the
// dashboard; the unmarked bucket is derived by the caller from the
// active student count.
func (r *AttendanceRepository) DailySummary(ctx context.Context, date time.Time) (*models.RosterSummary, error) {
	const query = `SELECT status, COUNT(*) AS cnt FROM attendance_records WHERE date = $1 GROUP BY status`
	rows := []struct {
		Status string `db:"status"`
		Count  int    `db:"cnt"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, date); err != nil {
		return nil, fmt.Errorf("daily attendance summary: %w", err)
	}
	summary := &models.RosterSummary{}
	for _, row := range rows {
		switch models.AttendanceStatus(row.Status) {
		case models.AttendanceStatusPresent:
			summary.Present += row.Count
		case models.AttendanceStatusAbsent:
			summary.Absent += row.Count
		case models.AttendanceStatusLate:
			summary.Late += row.Count
		case models.AttendanceStatusExcused:
			summary.Excused += row.Count
		}
		summary.Total += row.Count
	}
	return summary, nil
}
