package router

import (
	"context"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-schedule-api/internal/handler"
	"github.com/noah-isme/campus-schedule-api/internal/middleware"
	"github.com/noah-isme/campus-schedule-api/internal/models"
	"github.com/noah-isme/campus-schedule-api/internal/service"
	"github.com/noah-isme/campus-schedule-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/campus-schedule-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-schedule-api/pkg/middleware/requestid"
)

type identityLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// Deps carries everything the routes need.
type Deps struct {
	Logger         *zap.Logger
	AllowedOrigins []string
	EnableDocs     bool

	Tokens     *service.TokenService
	Identities identityLookup
	Metrics    *service.MetricsService

	AuthHandler      *handler.AuthHandler
	UserHandler      *handler.UserHandler
	SubjectHandler   *handler.SubjectHandler
	ScheduleHandler  *handler.ScheduleHandler
	DashboardHandler *handler.DashboardHandler
	MetricsHandler   *handler.MetricsHandler
}

// New builds the gin engine with the global middleware chain and every route.
func New(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(d.Logger))
	r.Use(middleware.Metrics(d.Metrics))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(corsmiddleware.New(d.AllowedOrigins))
	r.Use(middleware.ResponseMeta())

	r.GET("/health", d.MetricsHandler.Health)
	r.GET("/ready", d.MetricsHandler.Ready)
	r.GET("/metrics", d.MetricsHandler.Prometheus)
	if d.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authenticate := middleware.Authenticate(d.Tokens, d.Identities, d.Metrics)
	roles := func(set []models.UserRole) gin.HandlerFunc {
		return middleware.RequireRoles(d.Metrics, set...)
	}

	auth := r.Group("/auth")
	{
		guest := middleware.RedirectAuthenticated(d.Tokens)
		auth.POST("/login", guest, d.AuthHandler.Login)
		auth.POST("/register", guest, d.AuthHandler.Register)
		auth.POST("/logout", d.AuthHandler.Logout)
		auth.GET("/profile", authenticate, d.AuthHandler.Profile)
		auth.POST("/profile/password", authenticate, d.AuthHandler.ChangePassword)
	}

	admin := r.Group("/admin", authenticate, roles(middleware.Admin))
	{
		admin.GET("/dashboard", d.DashboardHandler.Admin)
		admin.GET("/users", d.UserHandler.List)
		admin.POST("/users", d.UserHandler.Create)
		admin.GET("/users/:id", d.UserHandler.Get)
		admin.PUT("/users/:id", d.UserHandler.Update)
		admin.DELETE("/users/:id", d.UserHandler.Delete)
		admin.POST("/users/:id/reset-password", d.UserHandler.ResetPassword)
		admin.GET("/users/:id/groups", d.UserHandler.Groups)
		admin.POST("/users/:id/groups", d.UserHandler.AssignGroup)
		admin.DELETE("/users/:id/groups/:group", d.UserHandler.RemoveGroup)
		admin.GET("/teachers/:id", d.UserHandler.Teacher)
		admin.GET("/schedules", d.ScheduleHandler.AllSchedules)
	}

	subjects := r.Group("/subjects", authenticate)
	{
		subjects.GET("/:id", roles(middleware.AnyRole), d.SubjectHandler.Get)
		subjects.GET("", roles(middleware.Admin), d.SubjectHandler.List)
		subjects.POST("", roles(middleware.Admin), d.SubjectHandler.Create)
		subjects.PUT("/:id", roles(middleware.Admin), d.SubjectHandler.Update)
		subjects.DELETE("/:id", roles(middleware.Admin), d.SubjectHandler.Delete)
	}

	student := r.Group("/student", authenticate, roles(middleware.StudentAccess))
	{
		student.GET("/schedule", d.ScheduleHandler.StudentSchedule)
		student.GET("/schedule/export", d.ScheduleHandler.ExportStudentSchedule)
	}

	teacher := r.Group("/teacher", authenticate, roles(middleware.TeacherAccess))
	{
		teacher.GET("/schedule", d.ScheduleHandler.TeacherSchedule)
		teacher.GET("/schedule/export", d.ScheduleHandler.ExportTeacherSchedule)
		teacher.GET("/manage-schedule", d.ScheduleHandler.ManageSchedule)
		teacher.POST("/schedule", d.ScheduleHandler.Create)
		teacher.PUT("/schedule/:id", d.ScheduleHandler.Update)
		teacher.DELETE("/schedule/:id", d.ScheduleHandler.Delete)
	}

	return r
}
