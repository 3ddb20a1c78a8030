package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/ElleGoodarzi/schoolaut-sub000/api/swagger"
	"github.com/ElleGoodarzi/schoolaut-sub000/internal/handler"
	custommiddleware "github.com/ElleGoodarzi/schoolaut-sub000/internal/middleware"
	"github.com/ElleGoodarzi/schoolaut-sub000/internal/repository"
	"github.com/ElleGoodarzi/schoolaut-sub000/internal/router"
	"github.com/ElleGoodarzi/schoolaut-sub000/internal/service"
	"github.com/ElleGoodarzi/schoolaut-sub000/pkg/cache"
	"github.com/ElleGoodarzi/schoolaut-sub000/pkg/config"
	"github.com/ElleGoodarzi/schoolaut-sub000/pkg/database"
	"github.com/ElleGoodarzi/schoolaut-sub000/pkg/jobs"
	"github.com/ElleGoodarzi/schoolaut-sub000/pkg/logger"
	corsmiddleware "github.com/ElleGoodarzi/schoolaut-sub000/pkg/middleware/cors"
	reqidmiddleware "github.com/ElleGoodarzi/schoolaut-sub000/pkg/middleware/requestid"
	"github.com/ElleGoodarzi/schoolaut-sub000/pkg/storage"
)

// @title Schoolaut API
// @version 1.0.0
// @description Administration backend for an elementary school: students, attendance, tuition, services and circulars.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, dashboard cache disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	classRepo := repository.NewClassRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	serviceRepo := repository.NewServiceAssignmentRepository(db)
	circularRepo := repository.NewCircularRepository(db)
	reportRepo := repository.NewReportRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Export infrastructure.
	store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	// Services.
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "schoolaut",
	})
	studentSvc := service.NewStudentService(studentRepo, classRepo, validate, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, teacherRepo, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, studentRepo, classRepo, teacherRepo, validate, logr)
	paymentSvc := service.NewPaymentService(paymentRepo, studentRepo, validate, logr)
	serviceSvc := service.NewServiceAssignmentService(serviceRepo, studentRepo, validate, logr)
	circularSvc := service.NewCircularService(circularRepo, teacherRepo, classRepo, validate, logr)
	userSvc := service.NewUserService(userRepo, validate, logr)
	dashboardSvc := service.NewDashboardService(dashboardRepo, attendanceRepo, cacheRepo, metricsSvc, logr, service.DashboardServiceConfig{
		CacheTTL: cfg.Dashboard.CacheTTL,
	})
	exportSvc := service.NewExportService(attendanceRepo, classRepo, studentRepo, paymentRepo, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, logr)

	var reportSvc *service.ReportService
	queue := jobs.NewQueue("reports", func(ctx context.Context, job jobs.Job) error {
		return reportSvc.Process(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logr,
	})
	reportSvc = service.NewReportService(reportRepo, teacherRepo, classRepo, queue, exportSvc, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
	})

	queue.Start(ctx)
	defer queue.Stop()
	reportSvc.StartCleanup(ctx)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(custommiddleware.Metrics(metricsSvc))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	router.Register(r, router.Deps{
		APIPrefix: cfg.APIPrefix,
		Auth:      authSvc,
		Metrics:   metricsSvc,
		UserRepo:  userRepo,

		AuthHandler:       handler.NewAuthHandler(authSvc),
		UserHandler:       handler.NewUserHandler(userSvc),
		StudentHandler:    handler.NewStudentHandler(studentSvc, paymentSvc),
		TeacherHandler:    handler.NewTeacherHandler(teacherSvc),
		ClassHandler:      handler.NewClassHandler(classSvc),
		AttendanceHandler: handler.NewAttendanceHandler(attendanceSvc, exportSvc),
		PaymentHandler:    handler.NewPaymentHandler(paymentSvc),
		ServiceHandler:    handler.NewServiceAssignmentHandler(serviceSvc),
		CircularHandler:   handler.NewCircularHandler(circularSvc),
		DashboardHandler:  handler.NewDashboardHandler(dashboardSvc, metricsSvc),
		ReportHandler:     handler.NewReportHandler(reportSvc),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
	}
	if err := cacheRepo.Close(); err != nil {
		logr.Sugar().Warnw("failed to close redis", "error", err)
	}
}
