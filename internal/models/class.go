package models

import "time"

// Class represents a grade/section classroom with an assigned teacher.
type Class struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Grade     int       `db:"grade" json:"grade"`
	Section   string    `db:"section" json:"section"`
	TeacherID *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	Capacity  int       `db:"capacity" json:"capacity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClassDetail extends Class with teacher name and current head count.
type ClassDetail struct {
	Class
	TeacherName  *string `db:"teacher_name" json:"teacher_name,omitempty"`
	StudentCount int     `db:"student_count" json:"student_count"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	Grade     *int
	TeacherID string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
