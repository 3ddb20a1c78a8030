package models

import (
	"time"

	"github.com/ElleGoodarzi/schoolaut-sub000/internal/rbac"
)

// CircularAudience defines who can see a circular.
type CircularAudience string

const (
	CircularAudienceAll      CircularAudience = "ALL"
	CircularAudienceTeachers CircularAudience = "TEACHERS"
	CircularAudienceParents  CircularAudience = "PARENTS"
	CircularAudienceClass    CircularAudience = "CLASS"
)

// CircularPriority defines ordering for circulars.
type CircularPriority string

const (
	CircularPriorityLow    CircularPriority = "LOW"
	CircularPriorityNormal CircularPriority = "NORMAL"
	CircularPriorityHigh   CircularPriority = "HIGH"
)

// Circular represents a persisted school circular/announcement row.
type Circular struct {
	ID            string           `db:"id" json:"id"`
	Title         string           `db:"title" json:"title"`
	Body          string           `db:"body" json:"body"`
	Audience      CircularAudience `db:"audience" json:"audience"`
	TargetClassID *string          `db:"target_class_id" json:"target_class_id,omitempty"`
	Priority      CircularPriority `db:"priority" json:"priority"`
	IsPinned      bool             `db:"is_pinned" json:"is_pinned"`
	PublishedAt   time.Time        `db:"published_at" json:"published_at"`
	ExpiresAt     *time.Time       `db:"expires_at" json:"expires_at,omitempty"`
	CreatedBy     string           `db:"created_by" json:"created_by"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}

// CircularFilter allows listing circulars visible to a role.
type CircularFilter struct {
	ViewerRole rbac.Role
	ClassIDs   []string
	Page       int
	PageSize   int
}
