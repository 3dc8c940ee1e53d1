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

	_ "github.com/examdash/exam-dash-api/api/swagger"
	"github.com/examdash/exam-dash-api/internal/handler"
	"github.com/examdash/exam-dash-api/internal/middleware"
	"github.com/examdash/exam-dash-api/internal/models"
	"github.com/examdash/exam-dash-api/internal/repository"
	"github.com/examdash/exam-dash-api/internal/service"
	"github.com/examdash/exam-dash-api/pkg/cache"
	"github.com/examdash/exam-dash-api/pkg/config"
	"github.com/examdash/exam-dash-api/pkg/database"
	"github.com/examdash/exam-dash-api/pkg/jobs"
	"github.com/examdash/exam-dash-api/pkg/logger"
	corsmiddleware "github.com/examdash/exam-dash-api/pkg/middleware/cors"
	reqidmiddleware "github.com/examdash/exam-dash-api/pkg/middleware/requestid"
	"github.com/examdash/exam-dash-api/pkg/storage"
)

// @title Exam Dashboard API
// @version 0.1.0
// @description Scheduling and grading determination engine for the exam dashboard
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
	sugar := logr.Sugar()

	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		sugar.Fatalw("invalid schedule timezone", "timezone", cfg.Schedule.Timezone, "error", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		sugar.Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		sugar.Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	termRepo := repository.NewTermRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	examRepo := repository.NewExamRepository(db)
	windowRepo := repository.NewWindowRepository(db)
	exportRepo := repository.NewExportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Schedule.SlotCacheTTL, logr, redisClient != nil)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	termSvc := service.NewTermService(termRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, termRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, courseSvc, validate, logr)
	examSvc := service.NewExamService(examRepo, cacheSvc, loc, validate, logr)
	windowSvc := service.NewWindowService(windowRepo, cacheSvc, metricsSvc, loc, service.WindowServiceConfig{
		SlotCacheTTL: cfg.Schedule.SlotCacheTTL,
		SlotHorizon:  cfg.Schedule.SlotHorizon,
	}, validate, logr)
	gradeSvc := service.NewGradeService(courseRepo, examRepo, studentRepo, cacheSvc, validate, logr)
	dashboardSvc := service.NewDashboardService(examSvc, windowSvc, gradeSvc, cacheSvc, service.DashboardServiceConfig{
		CacheTTL: cfg.Dashboard.CacheTTL,
	}, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			sugar.Fatalw("failed to prepare export storage", "dir", cfg.Exports.StorageDir, "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(exportRepo, gradeSvc, store, signer, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			BufferSize: 64,
			MaxRetries: cfg.Exports.WorkerRetries,
			RetryDelay: 5 * time.Second,
			Logger:     logr,
		}, validate, logr)
		exportSvc.Start(ctx)
		defer exportSvc.Stop()
	}

	authHandler := handler.NewAuthHandler(authSvc)
	termHandler := handler.NewTermHandler(termSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	examHandler := handler.NewExamHandler(examSvc)
	windowHandler := handler.NewWindowHandler(windowSvc)
	gradeHandler := handler.NewGradeHandler(gradeSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc, studentSvc)
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
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	auth.PUT("/password", middleware.JWT(authSvc), authHandler.ChangePassword)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor)
	admin := middleware.RequireRoles(models.RoleAdmin)

	terms := protected.Group("/terms")
	terms.GET("", termHandler.List)
	terms.GET("/active", termHandler.Active)
	terms.GET("/:id", termHandler.Get)
	terms.POST("", admin, termHandler.Create)
	terms.PUT("/:id", admin, termHandler.Update)

	courses := protected.Group("/courses")
	courses.GET("", courseHandler.List)
	courses.GET("/:id", courseHandler.Get)
	courses.POST("", staff, courseHandler.Create)
	courses.PUT("/:id", staff, courseHandler.Update)
	courses.DELETE("/:id", admin, courseHandler.Delete)
	courses.GET("/:id/slots", windowHandler.CourseSlots)
	courses.GET("/:id/roster", staff, gradeHandler.Roster)
	courses.GET("/:id/grades/:studentId", gradeHandler.CourseGrade)
	courses.GET("/:id/grade-strategy", staff, gradeHandler.Strategy)
	courses.PUT("/:id/grade-strategy", staff, gradeHandler.UpdateStrategy)

	students := protected.Group("/students")
	students.GET("", staff, studentHandler.List)
	students.GET("/me", studentHandler.Me)
	students.GET("/:id", studentHandler.Get)
	students.POST("", staff, studentHandler.Create)
	students.POST("/:id/enrollments", staff, studentHandler.Enroll)

	exams := protected.Group("/exams")
	exams.GET("", examHandler.List)
	exams.GET("/:id", examHandler.Get)
	exams.POST("", staff, examHandler.Create)
	exams.PUT("/:id", staff, examHandler.Update)
	exams.PATCH("/:id/state", staff, examHandler.SetState)

	instances := protected.Group("/exam-instances")
	instances.GET("", examHandler.ListInstances)
	instances.GET("/backlog", examHandler.Backlog)
	instances.GET("/:id", examHandler.GetInstance)
	instances.POST("", staff, examHandler.CreateInstance)
	instances.PUT("/:id/schedule", examHandler.Schedule)
	instances.PUT("/:id/result", staff, examHandler.RecordResult)

	windows := protected.Group("/test-windows")
	windows.GET("", windowHandler.List)
	windows.GET("/:id", windowHandler.Get)
	windows.GET("/:id/slots", windowHandler.Slots)
	windows.POST("", staff, windowHandler.Create)
	windows.PUT("/:id", staff, windowHandler.Update)
	windows.DELETE("/:id", staff, windowHandler.Delete)

	if cfg.Dashboard.Enabled {
		protected.GET("/dashboard/summary", dashboardHandler.Summary)
	}

	if exportSvc != nil {
		exportHandler := handler.NewExportHandler(exportSvc)
		courses.POST("/:id/exports", staff, exportHandler.Enqueue)
		courses.GET("/:id/exports", staff, exportHandler.ListByCourse)
		protected.GET("/exports/:id", staff, exportHandler.Get)
		// Download is authorized by the signed token itself.
		api.GET("/exports/download", exportHandler.Download)
	}

	protected.GET("/metrics/summary", admin, metricsHandler.Snapshot)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		sugar.Infow("server starting", "addr", addr, "env", cfg.Env, "timezone", cfg.Schedule.Timezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	sugar.Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("graceful shutdown failed", "error", err)
	}
}
