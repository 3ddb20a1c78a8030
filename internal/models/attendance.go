package models

import "time"

// AttendanceStatus represents the status stored for attendance records.
// "Unmarked" is deliberately absent: a student with no row for a day is
// unmarked, surfaced to clients as a null status, and clearing a mark
// deletes the row rather than writing a sentinel.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "PRESENT"
	AttendanceStatusAbsent  AttendanceStatus = "ABSENT"
	AttendanceStatusLate    AttendanceStatus = "LATE"
	AttendanceStatusExcused AttendanceStatus = "EXCUSED"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// PersianLabel returns the operator-facing label used in exports.
func (s AttendanceStatus) PersianLabel() string {
	switch s {
	case AttendanceStatusPresent:
		return "حاضر"
	case AttendanceStatusAbsent:
		return "غایب"
	case AttendanceStatusLate:
		return "تأخیر"
	case AttendanceStatusExcused:
		return "موجه"
	default:
		return string(s)
	}
}

// AttendanceRecord is a stored attendance row. The (student_id, date)
// pair is the natural key; class_id is denormalized from the student's
// class at write time.
type AttendanceRecord struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	ClassID   string           `db:"class_id" json:"class_id"`
	Date      time.Time        `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Notes     *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// RosterRow pairs a student with that day's attendance, if any. Status
// is nil for unmarked students.
type RosterRow struct {
	StudentID   string            `db:"student_id" json:"student_id"`
	FullName    string            `db:"full_name" json:"full_name"`
	NationalID  string            `db:"national_id" json:"national_id"`
	ClassID     string            `db:"class_id" json:"class_id"`
	Status      *AttendanceStatus `db:"status" json:"status"`
	Notes       *string           `db:"notes" json:"notes,omitempty"`
	RecordedAt  *time.Time        `db:"recorded_at" json:"recorded_at,omitempty"`
}

// RosterSummary carries per-status counts for a roster view.
type RosterSummary struct {
	Total    int `json:"total"`
	Present  int `json:"present"`
	Absent   int `json:"absent"`
	Late     int `json:"late"`
	Excused  int `json:"excused"`
	Unmarked int `json:"unmarked"`
}

// AttendanceFilter defines query filters for listing raw records.
type AttendanceFilter struct {
	ClassID   string
	StudentID string
	Status    *AttendanceStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// AttendanceHistoryRow captures one day of a student's history.
type AttendanceHistoryRow struct {
	Date   time.Time        `db:"date" json:"date"`
	Status AttendanceStatus `db:"status" json:"status"`
	Notes  *string          `db:"notes" json:"notes,omitempty"`
}

// AttendanceSummary aggregates counts for a student over a period.
type AttendanceSummary struct {
	Present int     `json:"present"`
	Absent  int     `json:"absent"`
	Late    int     `json:"late"`
	Excused int     `json:"excused"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

// BulkFailure records one rejected row of a bulk operation.
type BulkFailure struct {
	StudentID string `json:"student_id"`
	Reason    string `json:"reason"`
}

// BulkResult is the per-row manifest returned by bulk attendance
// writes; a failed row never aborts the remainder.
type BulkResult struct {
	Processed int           `json:"processed"`
	Succeeded int           `json:"succeeded"`
	Failures  []BulkFailure `json:"failures,omitempty"`
}
