package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/matriculapp/enrollment-api/api/swagger"
	"github.com/matriculapp/enrollment-api/internal/handler"
	"github.com/matriculapp/enrollment-api/internal/middleware"
	"github.com/matriculapp/enrollment-api/internal/repository"
	"github.com/matriculapp/enrollment-api/internal/service"
	"github.com/matriculapp/enrollment-api/pkg/cache"
	"github.com/matriculapp/enrollment-api/pkg/config"
	"github.com/matriculapp/enrollment-api/pkg/database"
	"github.com/matriculapp/enrollment-api/pkg/logger"
	corsmiddleware "github.com/matriculapp/enrollment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/matriculapp/enrollment-api/pkg/middleware/requestid"
	"github.com/matriculapp/enrollment-api/pkg/storage"
)

// @title Matricula Enrollment API
// @version 0.1.0
// @description Enrollment lifecycle, submission review and notification service
// @BasePath /api/v1
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
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
		redisClient = nil
	}

	uploads, err := storage.NewLocalStorage(cfg.Uploads.StorageDir, cfg.Uploads.MaxFileSizeBytes, cfg.Uploads.AllowedMIMEs)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	uow := repository.NewSqlxUnitOfWork(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	notificationSvc := service.NewNotificationService(
		repository.NewNotificationRepository(db),
		cacheRepo,
		cfg.Notifications.UnreadCountTTL,
		metricsSvc,
		logr,
	)
	authSvc := service.NewAuthService(uow, cfg.JWT, nil, logr)
	stageSvc := service.NewStageService(uow, notificationSvc, metricsSvc, nil, logr)
	reviewSvc := service.NewReviewService(uow, notificationSvc, stageSvc, metricsSvc, nil, logr)
	studentSvc := service.NewStudentService(uow, nil, logr)
	installmentSvc := service.NewInstallmentService(uow, nil, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	stageHandler := handler.NewStageHandler(stageSvc)
	submissionHandler := handler.NewSubmissionHandler(reviewSvc, uploads, signer)
	installmentHandler := handler.NewInstallmentHandler(installmentSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	// Access is authorized by the signed token itself.
	api.GET("/files", submissionHandler.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	authed.GET("/auth/me", authHandler.Me)

	// Non-sequential transitions and reverts are further restricted to
	// superusers inside the stage service.
	staff := middleware.RequireStaff()

	students := authed.Group("/students")
	students.GET("/me", studentHandler.Me)
	students.GET("", staff, studentHandler.List)
	students.POST("", staff, studentHandler.Register)
	students.GET("/:id", studentHandler.Get)
	students.GET("/:id/summary", studentHandler.Summary)
	students.GET("/:id/history", studentHandler.History)
	students.GET("/:id/checklist", submissionHandler.Checklist)
	students.GET("/:id/installments", installmentHandler.ListByStudent)
	students.POST("/:id/stage", staff, stageHandler.Advance)

	authed.GET("/stages", stageHandler.Stages)

	submissions := authed.Group("/submissions")
	submissions.GET("", submissionHandler.List)
	submissions.GET("/:id", submissionHandler.Get)
	submissions.POST("/documents", submissionHandler.CreateDocument)
	submissions.POST("/supports", submissionHandler.CreateSupport)
	submissions.POST("/requests", submissionHandler.CreateRequest)
	submissions.POST("/:id/open", staff, submissionHandler.Open)
	submissions.POST("/:id/approve", staff, submissionHandler.Approve)
	submissions.POST("/:id/reject", staff, submissionHandler.Reject)
	submissions.POST("/:id/resubmit", submissionHandler.Resubmit)

	authed.POST("/installments", staff, installmentHandler.Create)

	notifications := authed.Group("/notifications")
	notifications.GET("", notificationHandler.List)
	notifications.GET("/unread-count", notificationHandler.UnreadCount)
	notifications.POST("/read-all", notificationHandler.MarkAllRead)
	notifications.POST("/:id/read", notificationHandler.MarkRead)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
