package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ElleGoodarzi/schoolaut-sub000/internal/models"
	appErrors "github.com/ElleGoodarzi/schoolaut-sub000/pkg/errors"
)

type dashboardCounterRepository interface {
	CountActiveStudents(ctx context.Context) (int, error)
	CountActiveTeachers(ctx context.Context) (int, error)
	CountClasses(ctx context.Context) (int, error)
	PaymentCounters(ctx context.Context, now time.Time) (pending int, overdue int, outstanding int64, err error)
	CountActiveServiceSubscribers(ctx context.Context, serviceType models.ServiceType) (int, error)
}

type dashboardAttendanceRepository interface {
	DailySummary(ctx context.Context, date time.Time) (*models.RosterSummary, error)
}

type overviewCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type cacheRecorder interface {
	RecordCacheOperation(hit bool)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardService composes the daily operational overview and keeps it
// warm in Redis. All counters are recomputed relative to the current day.
type DashboardService struct {
	repo       dashboardCounterRepository
	attendance dashboardAttendanceRepository
	cache      overviewCache
	metrics    cacheRecorder
	logger     *zap.Logger
	now        func() time.Time
	cfg        DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(repo dashboardCounterRepository, attendance dashboardAttendanceRepository, cache overviewCache, metrics cacheRecorder, logger *zap.Logger, cfg DashboardServiceConfig) *DashboardService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		repo:       repo,
		attendance: attendance,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
		cfg:        cfg,
	}
}

// Overview returns today's counters and reports whether the cache served them.
func (s *DashboardService) Overview(ctx context.Context) (*models.DashboardOverview, bool, error) {
	now := s.now().UTC()
	cacheKey := fmt.Sprintf("dash:overview:%s", now.Format("2006-01-02"))

	if s.cache != nil {
		var cached models.DashboardOverview
		err := s.cache.Get(ctx, cacheKey, &cached)
		if err == nil {
			s.recordCache(true)
			return &cached, true, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.String("key", cacheKey), zap.Error(err))
		}
		s.recordCache(false)
	}

	overview, err := s.compose(ctx, now)
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, overview, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return overview, false, nil
}

// Invalidate drops cached overviews. Called after writes that move the
// counters (attendance marks, payment state changes, enrolment).
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "dash:overview:*"); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}

func (s *DashboardService) compose(ctx context.Context, now time.Time) (*models.DashboardOverview, error) {
	students, err := s.repo.CountActiveStudents(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	teachers, err := s.repo.CountActiveTeachers(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count teachers")
	}
	classes, err := s.repo.CountClasses(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count classes")
	}

	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	summary, err := s.attendance.DailySummary(ctx, day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise attendance")
	}
	if unmarked := students - summary.Total; unmarked > 0 {
		summary.Unmarked = unmarked
	}
	rate := 0.0
	if summary.Total > 0 {
		rate = float64(summary.Present+summary.Late) / float64(summary.Total) * 100
	}

	pending, overdue, outstanding, err := s.repo.PaymentCounters(ctx, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count payments")
	}
	meals, err := s.repo.CountActiveServiceSubscribers(ctx, models.ServiceTypeMeal)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count meal subscribers")
	}
	transport, err := s.repo.CountActiveServiceSubscribers(ctx, models.ServiceTypeTransport)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count transport subscribers")
	}

	return &models.DashboardOverview{
		ActiveStudents:       students,
		ActiveTeachers:       teachers,
		ClassCount:           classes,
		Attendance:           *summary,
		AttendanceRate:       rate,
		PendingPayments:      pending,
		OverduePayments:      overdue,
		OutstandingAmount:    outstanding,
		MealSubscribers:      meals,
		TransportSubscribers: transport,
		GeneratedAt:          now,
	}, nil
}

func (s *DashboardService) recordCache(hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(hit)
	}
}
