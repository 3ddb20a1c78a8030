package models

import "time"

// PaymentType categorises what a payment is for.
type PaymentType string

const (
	PaymentTypeTuition   PaymentType = "TUITION"
	PaymentTypeMeal      PaymentType = "MEAL"
	PaymentTypeTransport PaymentType = "TRANSPORT"
	PaymentTypeOther     PaymentType = "OTHER"
)

// Valid reports whether the payment type is supported.
func (t PaymentType) Valid() bool {
	switch t {
	case PaymentTypeTuition, PaymentTypeMeal, PaymentTypeTransport, PaymentTypeOther:
		return true
	default:
		return false
	}
}

// PaymentState is the stored lifecycle state. OVERDUE is intentionally
// not storable; it is derived from the due date at read time so the
// stored state can never drift as deadlines pass.
type PaymentState string

const (
	PaymentStatePending   PaymentState = "PENDING"
	PaymentStatePaid      PaymentState = "PAID"
	PaymentStateCancelled PaymentState = "CANCELLED"
)

// PaymentStatus is the effective, reader-facing status.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusOverdue   PaymentStatus = "OVERDUE"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// Payment represents a tuition or service charge against a student.
// Amount is in rial.
type Payment struct {
	ID          string       `db:"id" json:"id"`
	StudentID   string       `db:"student_id" json:"student_id"`
	Amount      int64        `db:"amount" json:"amount"`
	Type        PaymentType  `db:"type" json:"type"`
	Description string       `db:"description" json:"description"`
	DueDate     time.Time    `db:"due_date" json:"due_date"`
	PaidDate    *time.Time   `db:"paid_date" json:"paid_date,omitempty"`
	State       PaymentState `db:"state" json:"-"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// EffectiveStatus derives the reader-facing status at the given time.
func (p Payment) EffectiveStatus(now time.Time) PaymentStatus {
	switch p.State {
	case PaymentStateCancelled:
		return PaymentStatusCancelled
	case PaymentStatePaid:
		return PaymentStatusPaid
	}
	if p.PaidDate != nil {
		return PaymentStatusPaid
	}
	if now.After(p.DueDate) {
		return PaymentStatusOverdue
	}
	return PaymentStatusPending
}

// PaymentView is a Payment with the derived status attached for responses.
type PaymentView struct {
	Payment
	Status PaymentStatus `json:"status"`
}

// PaymentFilter narrows payment listings. Status filters on the
// derived status and is therefore applied after the read.
type PaymentFilter struct {
	StudentID string
	Type      *PaymentType
	Status    *PaymentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// PaymentSummary aggregates a student's account.
type PaymentSummary struct {
	StudentID    string `json:"student_id"`
	TotalBilled  int64  `json:"total_billed"`
	TotalPaid    int64  `json:"total_paid"`
	Outstanding  int64  `json:"outstanding"`
	OverdueCount int    `json:"overdue_count"`
}
