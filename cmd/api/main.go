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
	"go.uber.org/zap"

	_ "github.com/noah-isme/attendance-engine/api/swagger"
	"github.com/noah-isme/attendance-engine/internal/handler"
	"github.com/noah-isme/attendance-engine/internal/middleware"
	"github.com/noah-isme/attendance-engine/internal/repository"
	"github.com/noah-isme/attendance-engine/internal/service"
	"github.com/noah-isme/attendance-engine/pkg/cache"
	"github.com/noah-isme/attendance-engine/pkg/config"
	"github.com/noah-isme/attendance-engine/pkg/database"
	"github.com/noah-isme/attendance-engine/pkg/jobs"
	"github.com/noah-isme/attendance-engine/pkg/logger"
	corsmiddleware "github.com/noah-isme/attendance-engine/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/attendance-engine/pkg/middleware/requestid"
)

// @title Attendance Engine API
// @version 0.1.0
// @description Attendance reconciliation and verification service
// @BasePath /
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	validate := validator.New()

	timetableRepo := repository.NewTimetableRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	studentRepo := repository.NewStudentAttendanceRepository(db)
	summaryRepo := repository.NewSummaryRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	metricsSvc := service.NewMetricsService()

	notificationSvc := service.NewNotificationService(notificationRepo, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	}, logr)

	timetableSvc := service.NewTimetableService(timetableRepo, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, timetableRepo, notificationRepo, notificationSvc, validate, logr)
	verificationSvc := service.NewVerificationService(attendanceRepo, notificationRepo, notificationSvc, validate, logr)
	studentSvc := service.NewStudentAttendanceService(studentRepo, attendanceRepo, validate, logr)
	reconcileSvc := service.NewReconcileService(timetableRepo, attendanceRepo, metricsSvc, logr,
		cfg.Reconciler.GracePeriodMinutes, cfg.Reconciler.DowngradeConfirmedPresent)

	summarySvc := newSummaryService(cfg, summaryRepo, validate, logr)

	notifyCtx, cancelNotify := context.WithCancel(context.Background())
	notificationSvc.Start(notifyCtx)
	defer cancelNotify()
	defer notificationSvc.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Registry{
		Timetables:    handler.NewTimetableHandler(timetableSvc),
		Attendance:    handler.NewAttendanceHandler(attendanceSvc, verificationSvc),
		Students:      handler.NewStudentAttendanceHandler(studentSvc),
		Summaries:     handler.NewSummaryHandler(summarySvc),
		Reconcile:     handler.NewReconcileHandler(reconcileSvc),
		Notifications: handler.NewNotificationHandler(notificationSvc),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

// newSummaryService wires the summary service with or without the redis cache
// depending on configuration.
func newSummaryService(cfg *config.Config, repo *repository.SummaryRepository, validate *validator.Validate, logr *zap.Logger) *service.SummaryService {
	if !cfg.Summaries.CacheEnabled {
		return service.NewSummaryService(repo, nil, 0, validate, logr)
	}
	client, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, summaries uncached", "error", err)
		return service.NewSummaryService(repo, nil, 0, validate, logr)
	}
	cacheRepo := repository.NewCacheRepository(client, logr)
	return service.NewSummaryService(repo, cacheRepo, cfg.Summaries.CacheTTL, validate, logr)
}
