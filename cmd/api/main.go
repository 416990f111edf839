package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/campus-schedule-api/api/swagger"
	"github.com/noah-isme/campus-schedule-api/internal/handler"
	"github.com/noah-isme/campus-schedule-api/internal/repository"
	"github.com/noah-isme/campus-schedule-api/internal/router"
	"github.com/noah-isme/campus-schedule-api/internal/service"
	"github.com/noah-isme/campus-schedule-api/migrations"
	"github.com/noah-isme/campus-schedule-api/pkg/cache"
	"github.com/noah-isme/campus-schedule-api/pkg/config"
	"github.com/noah-isme/campus-schedule-api/pkg/credential"
	"github.com/noah-isme/campus-schedule-api/pkg/database"
	"github.com/noah-isme/campus-schedule-api/pkg/logger"
)

// @title Campus Schedule API
// @version 1.0.0
// @description Role-based university course scheduling: users, subjects, group membership and conflict-free weekly slots.
// @BasePath /
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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		migrator, err := database.NewMigrator(db, migrations.FS, logr)
		if err != nil {
			return err
		}
		if err := migrator.Up(ctx); err != nil {
			return err
		}
	}

	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("schedule cache disabled, redis unavailable", zap.Error(err))
		} else {
			defer client.Close() //nolint:errcheck
			cacheRepo = repository.NewCacheRepository(client, "campus")
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.ScheduleTTL, logr, cfg.Cache.Enabled)

	validate := validator.New()
	hasher := credential.NewHasher(cfg.Security.BcryptCost)
	tokens := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	userRepo := repository.NewUserRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)

	authSvc := service.NewAuthService(userRepo, hasher, tokens, metrics, validate, logr)
	userSvc := service.NewUserService(userRepo, scheduleRepo, hasher, cacheSvc, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, cacheSvc, validate, logr)
	scheduleSvc := service.NewScheduleService(scheduleRepo, subjectRepo, userRepo, cacheSvc, metrics, validate, logr)
	dashboardSvc := service.NewDashboardService(dashboardRepo, metrics, logr)
	exportSvc := service.NewExportService(logr)

	if _, err := authSvc.EnsureAdmin(ctx, service.AdminBootstrap{
		Username: cfg.Admin.Username,
		Password: cfg.Admin.Password,
		Email:    cfg.Admin.Email,
	}); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	engine := router.New(router.Deps{
		Logger:           logr,
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		EnableDocs:       cfg.Env != config.EnvProduction,
		Tokens:           tokens,
		Identities:       userRepo,
		Metrics:          metrics,
		AuthHandler:      handler.NewAuthHandler(authSvc, cfg.Session.CookieSecure),
		UserHandler:      handler.NewUserHandler(userSvc),
		SubjectHandler:   handler.NewSubjectHandler(subjectSvc),
		ScheduleHandler:  handler.NewScheduleHandler(scheduleSvc, exportSvc),
		DashboardHandler: handler.NewDashboardHandler(dashboardSvc),
		MetricsHandler:   handler.NewMetricsHandler(metrics, dashboardRepo),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
