package models

import "time"

// Student represents a pupil registered at the school.
type Student struct {
	ID            string    `db:"id" json:"id"`
	NationalID    string    `db:"national_id" json:"national_id"`
	FullName      string    `db:"full_name" json:"full_name"`
	Gender        string    `db:"gender" json:"gender"`
	BirthDate     time.Time `db:"birth_date" json:"birth_date"`
	GuardianName  string    `db:"guardian_name" json:"guardian_name"`
	GuardianPhone string    `db:"guardian_phone" json:"guardian_phone"`
	Address       string    `db:"address" json:"address"`
	ClassID       *string   `db:"class_id" json:"class_id,omitempty"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	ClassID   string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StudentDetail contains student information with class context.
type StudentDetail struct {
	Student
	ClassName    *string `db:"class_name" json:"class_name,omitempty"`
	ClassGrade   *int    `db:"class_grade" json:"class_grade,omitempty"`
	ClassSection *string `db:"class_section" json:"class_section,omitempty"`
}
