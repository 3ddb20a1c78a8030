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
	appErrors "github.com/ElleGoodarzi/schoolaut-sub000/pkg/errors"
)

type paymentRepository interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
	ListAll(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error)
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) error
	Update(ctx context.Context, payment *models.Payment) error
	MarkPaid(ctx context.Context, id string, paidDate time.Time) error
	SetState(ctx context.Context, id string, state models.PaymentState) error
	Delete(ctx context.Context, id string) error
}

type paymentStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

// CreatePaymentRequest holds payload for billing a student.
type CreatePaymentRequest struct {
	StudentID   string    `json:"student_id" validate:"required"`
	Amount      int64     `json:"amount" validate:"required,gt=0"`
	Type        string    `json:"type" validate:"required,payment_type"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date" validate:"required"`
}

// UpdatePaymentRequest holds payload for amending an unpaid bill.
type UpdatePaymentRequest struct {
	Amount      int64     `json:"amount" validate:"required,gt=0"`
	Type        string    `json:"type" validate:"required,payment_type"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date" validate:"required"`
}

// PaymentListRequest filters payment listings. The status filter
// matches the derived status, so OVERDUE works even though it is
// never stored.
type PaymentListRequest struct {
	StudentID string  `json:"student_id"`
	Type      *string `json:"type" validate:"omitempty,payment_type"`
	Status    *string `json:"status" validate:"omitempty,payment_status"`
	Page      int     `json:"page"`
	PageSize  int     `json:"page_size"`
	SortBy    string  `json:"sort_by"`
	SortOrder string  `json:"sort_order"`
}

// PaymentService handles tuition and service billing use-cases.
type PaymentService struct {
	repo        paymentRepository
	studentRepo paymentStudentRepository
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewPaymentService constructs the payment service.
func NewPaymentService(repo paymentRepository, students paymentStudentRepository, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &PaymentService{repo: repo, studentRepo: students, validator: validate, logger: logger, now: func() time.Time { return time.Now().UTC() }}
	svc.validator.RegisterValidation("payment_type", func(fl validator.FieldLevel) bool {
		return models.PaymentType(strings.ToUpper(fl.Field().String())).Valid()
	})
	svc.validator.RegisterValidation("payment_status", func(fl validator.FieldLevel) bool {
		switch models.PaymentStatus(strings.ToUpper(fl.Field().String())) {
		case models.PaymentStatusPending, models.PaymentStatusPaid, models.PaymentStatusOverdue, models.PaymentStatusCancelled:
			return true
		default:
			return false
		}
	})
	return svc
}

// List returns payments with derived statuses. When the request
// filters on status, matching happens after the read against the
// effective status at the current time.
func (s *PaymentService) List(ctx context.Context, req PaymentListRequest) ([]models.PaymentView, *models.Pagination, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid filter")
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	if size <= 0 {
		size = 20
	}
	filter := models.PaymentFilter{
		StudentID: req.StudentID,
		Page:      page,
		PageSize:  size,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}
	if req.Type != nil {
		paymentType := models.PaymentType(strings.ToUpper(*req.Type))
		filter.Type = &paymentType
	}
	now := s.now()

	// A status filter matches the derived status, which SQL cannot
	// compute, so pagination has to happen after filtering.
	if req.Status != nil {
		wanted := models.PaymentStatus(strings.ToUpper(*req.Status))
		payments, err := s.repo.ListAll(ctx, filter)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
		}
		matched := make([]models.PaymentView, 0, len(payments))
		for _, payment := range payments {
			status := payment.EffectiveStatus(now)
			if status != wanted {
				continue
			}
			matched = append(matched, models.PaymentView{Payment: payment, Status: status})
		}
		total := len(matched)
		start := (page - 1) * size
		if start > total {
			start = total
		}
		end := start + size
		if end > total {
			end = total
		}
		pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
		return matched[start:end], pagination, nil
	}

	payments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	views := make([]models.PaymentView, 0, len(payments))
	for _, payment := range payments {
		views = append(views, models.PaymentView{Payment: payment, Status: payment.EffectiveStatus(now)})
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return views, pagination, nil
}

// Get returns a single payment with its derived status.
func (s *PaymentService) Get(ctx context.Context, id string) (*models.PaymentView, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	return &models.PaymentView{Payment: *payment, Status: payment.EffectiveStatus(s.now())}, nil
}

// Create bills a student.
func (s *PaymentService) Create(ctx context.Context, req CreatePaymentRequest) (*models.PaymentView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if _, err := s.studentRepo.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	payment := &models.Payment{
		StudentID:   req.StudentID,
		Amount:      req.Amount,
		Type:        models.PaymentType(strings.ToUpper(req.Type)),
		Description: req.Description,
		DueDate:     req.DueDate,
		State:       models.PaymentStatePending,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create payment")
	}
	return &models.PaymentView{Payment: *payment, Status: payment.EffectiveStatus(s.now())}, nil
}

// Update amends an unpaid bill.
func (s *PaymentService) Update(ctx context.Context, id string, req UpdatePaymentRequest) (*models.PaymentView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if payment.State != models.PaymentStatePending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only pending payments can be amended")
	}
	payment.Amount = req.Amount
	payment.Type = models.PaymentType(strings.ToUpper(req.Type))
	payment.Description = req.Description
	payment.DueDate = req.DueDate
	if err := s.repo.Update(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment")
	}
	return &models.PaymentView{Payment: *payment, Status: payment.EffectiveStatus(s.now())}, nil
}

// MarkPaid settles a payment. An overdue payment settles the same way
// as a pending one.
func (s *PaymentService) MarkPaid(ctx context.Context, id string, paidDate *time.Time) (*models.PaymentView, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if payment.State == models.PaymentStatePaid {
		return nil, appErrors.Clone(appErrors.ErrConflict, "payment is already settled")
	}
	if payment.State == models.PaymentStateCancelled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "cancelled payments cannot be settled")
	}
	when := s.now()
	if paidDate != nil {
		when = *paidDate
	}
	if err := s.repo.MarkPaid(ctx, id, when); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to settle payment")
	}
	payment.State = models.PaymentStatePaid
	payment.PaidDate = &when
	return &models.PaymentView{Payment: *payment, Status: payment.EffectiveStatus(s.now())}, nil
}

// Cancel voids a payment.
func (s *PaymentService) Cancel(ctx context.Context, id string) error {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if payment.State == models.PaymentStateCancelled {
		return appErrors.Clone(appErrors.ErrConflict, "payment is already cancelled")
	}
	if err := s.repo.SetState(ctx, id, models.PaymentStateCancelled); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel payment")
	}
	return nil
}

// Delete removes a payment record entirely. Cancelled and pending
// records can go; collected payments stay for the books.
func (s *PaymentService) Delete(ctx context.Context, id string) error {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if payment.State == models.PaymentStatePaid {
		return appErrors.Clone(appErrors.ErrConflict, "paid payments cannot be deleted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete payment")
	}
	return nil
}

// StudentSummary aggregates a student's account from the full payment
// set, computing overdue counts at the current time.
func (s *PaymentService) StudentSummary(ctx context.Context, studentID string) (*models.PaymentSummary, error) {
	if _, err := s.studentRepo.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	payments, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payments")
	}
	now := s.now()
	summary := &models.PaymentSummary{StudentID: studentID}
	for _, payment := range payments {
		switch payment.EffectiveStatus(now) {
		case models.PaymentStatusPaid:
			summary.TotalBilled += payment.Amount
			summary.TotalPaid += payment.Amount
		case models.PaymentStatusPending:
			summary.TotalBilled += payment.Amount
			summary.Outstanding += payment.Amount
		case models.PaymentStatusOverdue:
			summary.TotalBilled += payment.Amount
			summary.Outstanding += payment.Amount
			summary.OverdueCount++
		}
	}
	return summary, nil
}
