package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ElleGoodarzi/schoolaut-sub000/internal/models"
	"github.com/ElleGoodarzi/schoolaut-sub000/pkg/export"
	"github.com/ElleGoodarzi/schoolaut-sub000/pkg/storage"
)

type exportAttendanceRepository interface {
	Roster(ctx context.Context, classID string, date time.Time) ([]models.RosterRow, error)
}

type exportClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.ClassDetail, error)
}

type exportStudentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
}

type exportPaymentRepository interface {
	ListDueBetween(ctx context.Context, from, to time.Time) ([]models.Payment, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files.
// Labels and status values render in Persian for the school office.
type ExportService struct {
	attendance exportAttendanceRepository
	classes    exportClassRepository
	students   exportStudentRepository
	payments   exportPaymentRepository
	storage    fileStorage
	csv        csvRenderer
	pdf        pdfRenderer
	signer     *storage.SignedURLSigner
	logger     *zap.Logger
	cfg        ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(attendance exportAttendanceRepository, classes exportClassRepository, students exportStudentRepository, payments exportPaymentRepository, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		attendance: attendance,
		classes:    classes,
		students:   students,
		payments:   payments,
		storage:    store,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		signer:     signer,
		logger:     logger,
		cfg:        cfg,
	}
}

// RosterExportFilter narrows the synchronous roster export. Status
// "unmarked" selects students without a record for the day.
type RosterExportFilter struct {
	Status string
	Search string
}

// RosterCSV renders a class day roster for immediate download.
func (s *ExportService) RosterCSV(ctx context.Context, classID string, date time.Time, filter RosterExportFilter) (filename string, payload []byte, err error) {
	dataset, _, err := s.buildAttendanceDataset(ctx, classID, date, filter)
	if err != nil {
		return "", nil, err
	}
	payload, err = s.csv.Render(dataset)
	if err != nil {
		return "", nil, err
	}
	scope := "all"
	if classID != "" {
		scope = sanitizeFilename(classID)
	}
	filename = fmt.Sprintf("attendance_%s_%s.csv", scope, date.Format("2006-01-02"))
	return filename, payload, nil
}

// Generate builds a dataset according to the job definition and
// stores the rendered export, returning a signed download URL.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl, defaulting to the configured
// result TTL.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	scope := "all"
	if job.Params.ClassID != nil {
		scope = sanitizeFilename(*job.Params.ClassID)
	}
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), scope, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeAttendance:
		classID := ""
		if job.Params.ClassID != nil {
			classID = *job.Params.ClassID
		}
		date, err := time.Parse("2006-01-02", job.Params.Date)
		if err != nil {
			return export.Dataset{}, "", fmt.Errorf("invalid report date %q", job.Params.Date)
		}
		return s.buildAttendanceDataset(ctx, classID, date, RosterExportFilter{})
	case models.ReportTypePayments:
		return s.buildPaymentsDataset(ctx, job.Params)
	case models.ReportTypeRoster:
		return s.buildRosterDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildAttendanceDataset(ctx context.Context, classID string, date time.Time, filter RosterExportFilter) (export.Dataset, string, error) {
	scope := "کل مدرسه"
	if classID != "" {
		class, err := s.classes.FindByID(ctx, classID)
		if err != nil {
			return export.Dataset{}, "", err
		}
		scope = class.Name
	}
	rows, err := s.attendance.Roster(ctx, classID, date)
	if err != nil {
		return export.Dataset{}, "", err
	}
	rows = filterRoster(rows, filter)
	headers := []string{"کد دانش‌آموز", "نام و نام خانوادگی", "کد ملی", "وضعیت", "توضیحات"}
	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		status := "ثبت‌نشده"
		if row.Status != nil {
			status = row.Status.PersianLabel()
		}
		notes := ""
		if row.Notes != nil {
			notes = *row.Notes
		}
		dataRows = append(dataRows, map[string]string{
			"کد دانش‌آموز":       row.StudentID,
			"نام و نام خانوادگی": row.FullName,
			"کد ملی":             row.NationalID,
			"وضعیت":              status,
			"توضیحات":            notes,
		})
	}
	title := fmt.Sprintf("حضور و غیاب %s %s", scope, date.Format("2006-01-02"))
	return export.Dataset{Headers: headers, Rows: dataRows}, title, nil
}

func filterRoster(rows []models.RosterRow, filter RosterExportFilter) []models.RosterRow {
	status := strings.ToUpper(strings.TrimSpace(filter.Status))
	search := strings.TrimSpace(filter.Search)
	if status == "" && search == "" {
		return rows
	}
	out := make([]models.RosterRow, 0, len(rows))
	for _, row := range rows {
		if status != "" {
			if status == "UNMARKED" {
				if row.Status != nil {
					continue
				}
			} else if row.Status == nil || string(*row.Status) != status {
				continue
			}
		}
		if search != "" && !strings.Contains(row.FullName, search) && !strings.Contains(row.NationalID, search) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func (s *ExportService) buildPaymentsDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	month, err := time.Parse("2006-01", params.Month)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("invalid report month %q", params.Month)
	}
	payments, err := s.payments.ListDueBetween(ctx, month, month.AddDate(0, 1, 0))
	if err != nil {
		return export.Dataset{}, "", err
	}
	headers := []string{"شناسه", "دانش‌آموز", "مبلغ (ریال)", "نوع", "سررسید", "وضعیت"}
	now := time.Now().UTC()
	dataRows := make([]map[string]string, 0, len(payments))
	for _, payment := range payments {
		dataRows = append(dataRows, map[string]string{
			"شناسه":       payment.ID,
			"دانش‌آموز":   payment.StudentID,
			"مبلغ (ریال)": fmt.Sprintf("%d", payment.Amount),
			"نوع":         string(payment.Type),
			"سررسید":      payment.DueDate.Format("2006-01-02"),
			"وضعیت":       string(payment.EffectiveStatus(now)),
		})
	}
	title := fmt.Sprintf("گزارش شهریه %s", params.Month)
	return export.Dataset{Headers: headers, Rows: dataRows}, title, nil
}

func (s *ExportService) buildRosterDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	active := true
	filter := models.StudentFilter{Active: &active, PageSize: 100, SortBy: "full_name", SortOrder: "ASC"}
	if params.ClassID != nil {
		filter.ClassID = *params.ClassID
	}
	headers := []string{"ردیف", "نام و نام خانوادگی", "کد ملی", "کلاس", "نام سرپرست", "تلفن سرپرست"}
	var dataRows []map[string]string
	for page := 1; ; page++ {
		filter.Page = page
		students, total, err := s.students.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, "", err
		}
		for _, student := range students {
			className := ""
			if student.ClassName != nil {
				className = *student.ClassName
			}
			dataRows = append(dataRows, map[string]string{
				"ردیف":               fmt.Sprintf("%d", len(dataRows)+1),
				"نام و نام خانوادگی": student.FullName,
				"کد ملی":             student.NationalID,
				"کلاس":               className,
				"نام سرپرست":         student.GuardianName,
				"تلفن سرپرست":        student.GuardianPhone,
			})
		}
		if len(dataRows) >= total || len(students) == 0 {
			break
		}
	}
	return export.Dataset{Headers: headers, Rows: dataRows}, "فهرست دانش‌آموزان", nil
}
