package models

import "time"

// ServiceType distinguishes the optional paid school services.
type ServiceType string

const (
	ServiceTypeMeal      ServiceType = "MEAL"
	ServiceTypeTransport ServiceType = "TRANSPORT"
)

// Valid reports whether the service type is supported.
func (t ServiceType) Valid() bool {
	return t == ServiceTypeMeal || t == ServiceTypeTransport
}

// ServiceAssignment subscribes a student to a meal plan or bus route.
type ServiceAssignment struct {
	ID         string      `db:"id" json:"id"`
	StudentID  string      `db:"student_id" json:"student_id"`
	Type       ServiceType `db:"type" json:"type"`
	Plan       string      `db:"plan" json:"plan"`
	MonthlyFee int64       `db:"monthly_fee" json:"monthly_fee"`
	StartDate  time.Time   `db:"start_date" json:"start_date"`
	EndDate    *time.Time  `db:"end_date" json:"end_date,omitempty"`
	Active     bool        `db:"active" json:"active"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at" json:"updated_at"`
}

// ServiceAssignmentDetail adds student context for listings.
type ServiceAssignmentDetail struct {
	ServiceAssignment
	StudentName string  `db:"student_name" json:"student_name"`
	ClassID     *string `db:"class_id" json:"class_id,omitempty"`
}

// ServiceAssignmentFilter scopes listing queries.
type ServiceAssignmentFilter struct {
	StudentID string
	ClassID   string
	Type      *ServiceType
	Active    *bool
	Page      int
	PageSize  int
}
