package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ElleGoodarzi/schoolaut-sub000/internal/handler"
	"github.com/ElleGoodarzi/schoolaut-sub000/internal/middleware"
	"github.com/ElleGoodarzi/schoolaut-sub000/internal/models"
	"github.com/ElleGoodarzi/schoolaut-sub000/internal/rbac"
	"github.com/ElleGoodarzi/schoolaut-sub000/internal/repository"
	"github.com/ElleGoodarzi/schoolaut-sub000/internal/service"
)

// Deps groups everything route registration needs.
type Deps struct {
	APIPrefix string

	Auth        *service.AuthService
	Metrics     *service.MetricsService
	UserRepo    *repository.UserRepository

	AuthHandler       *handler.AuthHandler
	UserHandler       *handler.UserHandler
	StudentHandler    *handler.StudentHandler
	TeacherHandler    *handler.TeacherHandler
	ClassHandler      *handler.ClassHandler
	AttendanceHandler *handler.AttendanceHandler
	PaymentHandler    *handler.PaymentHandler
	ServiceHandler    *handler.ServiceAssignmentHandler
	CircularHandler   *handler.CircularHandler
	DashboardHandler  *handler.DashboardHandler
	ReportHandler     *handler.ReportHandler
}

// Register mounts every route group on the engine. Static permission
// checks happen here; ownership rules stay in the services.
func Register(r *gin.Engine, deps Deps) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	api := r.Group(deps.APIPrefix)

	// Public auth surface plus signed downloads; the token itself is
	// the credential for /export.
	api.POST("/auth/login", deps.AuthHandler.Login)
	api.POST("/auth/refresh", deps.AuthHandler.Refresh)
	api.GET("/export/:token", deps.ReportHandler.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(deps.Auth))

	authed.POST("/auth/logout", deps.AuthHandler.Logout)
	authed.POST("/auth/change-password", deps.AuthHandler.ChangePassword)
	authed.GET("/auth/me", deps.AuthHandler.Me)
	authed.GET("/permissions", deps.UserHandler.Permissions)

	students := authed.Group("/students")
	{
		students.GET("", deps.StudentHandler.List)
		students.GET("/:id", deps.StudentHandler.Get)
		students.GET("/:id/attendance", deps.AttendanceHandler.StudentReport)
		students.GET("/:id/payments/summary", deps.StudentHandler.PaymentSummary)
		students.POST("", middleware.RequirePermission(rbac.ResourceStudent, rbac.ActionCreate), audit(deps, models.AuditActionCreate, "students"), deps.StudentHandler.Create)
		students.PUT("/:id", middleware.RequirePermission(rbac.ResourceStudent, rbac.ActionUpdate), audit(deps, models.AuditActionUpdate, "students"), deps.StudentHandler.Update)
		students.PUT("/:id/class", middleware.RequirePermission(rbac.ResourceStudent, rbac.ActionUpdate), audit(deps, models.AuditActionUpdate, "students"), deps.StudentHandler.MoveToClass)
		students.DELETE("/:id", middleware.RequirePermission(rbac.ResourceStudent, rbac.ActionDelete), audit(deps, models.AuditActionDelete, "students"), deps.StudentHandler.Delete)
	}

	teachers := authed.Group("/teachers")
	{
		teachers.GET("", deps.TeacherHandler.List)
		teachers.GET("/:id", deps.TeacherHandler.Get)
		teachers.POST("", middleware.RequirePermission(rbac.ResourceTeacher, rbac.ActionCreate), deps.TeacherHandler.Create)
		teachers.PUT("/:id", middleware.RequirePermission(rbac.ResourceTeacher, rbac.ActionUpdate), deps.TeacherHandler.Update)
		teachers.DELETE("/:id", middleware.RequirePermission(rbac.ResourceTeacher, rbac.ActionDelete), deps.TeacherHandler.Delete)
	}

	classes := authed.Group("/classes")
	{
		classes.GET("", deps.ClassHandler.List)
		classes.GET("/:id", deps.ClassHandler.Get)
		classes.POST("", middleware.RequirePermission(rbac.ResourceClass, rbac.ActionCreate), deps.ClassHandler.Create)
		classes.PUT("/:id", middleware.RequirePermission(rbac.ResourceClass, rbac.ActionUpdate), deps.ClassHandler.Update)
		classes.DELETE("/:id", middleware.RequirePermission(rbac.ResourceClass, rbac.ActionDelete), deps.ClassHandler.Delete)
	}
	// Legacy path kept for the previous admin panel build.
	authed.GET("/management/classes", deps.ClassHandler.List)

	attendance := authed.Group("/attendance")
	{
		attendance.GET("", deps.AttendanceHandler.List)
		attendance.GET("/roster", deps.AttendanceHandler.Roster)
		attendance.GET("/history", deps.AttendanceHandler.History)
		attendance.GET("/export", deps.AttendanceHandler.ExportRoster)
		attendance.POST("", middleware.RequirePermission(rbac.ResourceAttendance, rbac.ActionUpdate), deps.AttendanceHandler.Mark)
		attendance.POST("/mark", middleware.RequirePermission(rbac.ResourceAttendance, rbac.ActionUpdate), deps.AttendanceHandler.Mark)
		attendance.POST("/bulk", middleware.RequirePermission(rbac.ResourceAttendance, rbac.ActionUpdate), deps.AttendanceHandler.BulkMark)
		attendance.POST("/clear", middleware.RequirePermission(rbac.ResourceAttendance, rbac.ActionUpdate), deps.AttendanceHandler.Clear)
	}

	payments := authed.Group("/payments")
	{
		payments.GET("", deps.PaymentHandler.List)
		payments.GET("/:id", deps.PaymentHandler.Get)
		payments.POST("", middleware.RequirePermission(rbac.ResourcePayment, rbac.ActionCreate), audit(deps, models.AuditActionCreate, "payments"), deps.PaymentHandler.Create)
		payments.PUT("/:id", middleware.RequirePermission(rbac.ResourcePayment, rbac.ActionUpdate), audit(deps, models.AuditActionUpdate, "payments"), deps.PaymentHandler.Update)
		payments.POST("/:id/pay", middleware.RequirePermission(rbac.ResourcePayment, rbac.ActionUpdate), audit(deps, models.AuditActionUpdate, "payments"), deps.PaymentHandler.MarkPaid)
		payments.POST("/:id/cancel", middleware.RequirePermission(rbac.ResourcePayment, rbac.ActionUpdate), audit(deps, models.AuditActionUpdate, "payments"), deps.PaymentHandler.Cancel)
		payments.DELETE("/:id", middleware.RequirePermission(rbac.ResourcePayment, rbac.ActionDelete), audit(deps, models.AuditActionDelete, "payments"), deps.PaymentHandler.Delete)
	}

	// Meal and transport share one surface. The route guard narrows to
	// the roles that hold either resource; the service re-checks the
	// matrix against the concrete service type once it is known.
	services := authed.Group("/services")
	serviceMutators := middleware.RequireRoles(rbac.RoleAdmin, rbac.RoleVicePrincipal, rbac.RoleFinance)
	{
		services.GET("", deps.ServiceHandler.List)
		services.GET("/:id", deps.ServiceHandler.Get)
		services.POST("", serviceMutators, deps.ServiceHandler.Assign)
		services.PUT("/:id", serviceMutators, deps.ServiceHandler.Update)
		services.POST("/:id/terminate", serviceMutators, deps.ServiceHandler.Terminate)
		services.DELETE("/:id", serviceMutators, deps.ServiceHandler.Delete)
	}

	circulars := authed.Group("/circulars")
	{
		circulars.GET("", deps.CircularHandler.List)
		circulars.GET("/:id", deps.CircularHandler.Get)
		circulars.POST("", middleware.RequirePermission(rbac.ResourceCircular, rbac.ActionCreate), deps.CircularHandler.Create)
		circulars.PUT("/:id", middleware.RequirePermission(rbac.ResourceCircular, rbac.ActionUpdate), deps.CircularHandler.Update)
		circulars.DELETE("/:id", middleware.RequirePermission(rbac.ResourceCircular, rbac.ActionDelete), deps.CircularHandler.Delete)
	}

	users := authed.Group("/users")
	users.Use(middleware.RequireRoles(rbac.RoleAdmin))
	{
		users.GET("", deps.UserHandler.List)
		users.GET("/:id", deps.UserHandler.Get)
		users.POST("", deps.UserHandler.Create)
		users.PUT("/:id", deps.UserHandler.Update)
		users.POST("/:id/reset-password", deps.UserHandler.ResetPassword)
		users.DELETE("/:id", deps.UserHandler.Delete)
	}

	dashboard := authed.Group("/dashboard")
	dashboard.Use(middleware.RequireRoles(rbac.RoleAdmin, rbac.RoleVicePrincipal, rbac.RoleFinance))
	{
		dashboard.GET("", deps.DashboardHandler.Overview)
		dashboard.GET("/system", deps.DashboardHandler.SystemMetrics)
	}

	reports := authed.Group("/reports")
	{
		reports.GET("", deps.ReportHandler.ListMine)
		reports.GET("/:id", deps.ReportHandler.Status)
		reports.POST("", deps.ReportHandler.Create)
	}
}

func audit(deps Deps, action, resource string) gin.HandlerFunc {
	if deps.UserRepo == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.Audit(deps.UserRepo, action, resource)
}
