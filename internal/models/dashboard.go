package models

import "time"

// DashboardOverview aggregates today's operational counters for the
// admin landing page. Cached per day in Redis.
type DashboardOverview struct {
	ActiveStudents       int           `json:"active_students"`
	ActiveTeachers       int           `json:"active_teachers"`
	ClassCount           int           `json:"class_count"`
	Attendance           RosterSummary `json:"attendance"`
	AttendanceRate       float64       `json:"attendance_rate"`
	PendingPayments      int           `json:"pending_payments"`
	OverduePayments      int           `json:"overdue_payments"`
	OutstandingAmount    int64         `json:"outstanding_amount"`
	MealSubscribers      int           `json:"meal_subscribers"`
	TransportSubscribers int           `json:"transport_subscribers"`
	GeneratedAt          time.Time     `json:"generated_at"`
}

// SystemMetrics is a lightweight snapshot of runtime counters exposed
// alongside the Prometheus endpoint for the admin UI.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	DBQueryCount             uint64    `json:"db_query_count"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
