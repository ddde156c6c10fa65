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

	_ "github.com/pharmedu/training-api/api/swagger"
	"github.com/pharmedu/training-api/internal/handler"
	"github.com/pharmedu/training-api/internal/middleware"
	"github.com/pharmedu/training-api/internal/models"
	"github.com/pharmedu/training-api/internal/repository"
	"github.com/pharmedu/training-api/internal/service"
	"github.com/pharmedu/training-api/internal/workflow"
	"github.com/pharmedu/training-api/pkg/cache"
	"github.com/pharmedu/training-api/pkg/config"
	"github.com/pharmedu/training-api/pkg/database"
	"github.com/pharmedu/training-api/pkg/jobs"
	"github.com/pharmedu/training-api/pkg/logger"
	corsmiddleware "github.com/pharmedu/training-api/pkg/middleware/cors"
	reqidmiddleware "github.com/pharmedu/training-api/pkg/middleware/requestid"
	"github.com/pharmedu/training-api/pkg/sheets"
	"github.com/pharmedu/training-api/pkg/storage"
)

// @title Pharmacy Training API
// @version 0.1.0
// @description Hospital pharmacy training records and assessment workflows
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
	engine := workflow.DefaultEngine()

	metricsSvc := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, redisClient != nil)

	userRepo := repository.NewUserRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	sopRepo := repository.NewSOPRepository(db)
	videoRepo := repository.NewVideoRepository(db)
	shiftRepo := repository.NewShiftRepository(db)
	reportRepo := repository.NewReportRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "training-api",
		Audience:           []string{"training-api"},
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	assessmentSvc := service.NewAssessmentService(service.AssessmentServiceParams{
		Engine:    engine,
		Repo:      assessmentRepo,
		Users:     userRepo,
		Audit:     userRepo,
		Cache:     cacheSvc,
		Metrics:   metricsSvc,
		Validator: validate,
		Logger:    logr,
	})
	sopSvc := service.NewSOPService(sopRepo, validate, logr)
	videoSvc := service.NewVideoService(videoRepo, validate, logr)

	var shiftSvc *service.ShiftService
	if cfg.Sheets.Enabled {
		rosterSource := sheets.NewClient(cfg.Sheets.EndpointURL, cfg.Sheets.APIToken, cfg.Sheets.Timeout)
		shiftSvc = service.NewShiftService(shiftRepo, rosterSource, userRepo, cacheSvc, logr)
	} else {
		shiftSvc = service.NewShiftService(shiftRepo, nil, userRepo, cacheSvc, logr)
	}

	var dashboardSvc *service.DashboardService
	if cfg.Dashboard.Enabled {
		dashboardSvc = service.NewDashboardService(service.DashboardServiceParams{
			Engine:  engine,
			Records: assessmentRepo,
			Users:   userRepo,
			Cache:   cacheSvc,
			Logger:  logr,
			Config: service.DashboardServiceConfig{
				CacheTTL: cfg.Dashboard.CacheTTL,
			},
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var reportSvc *service.ReportService
	if cfg.Reports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			sugar.Fatalw("failed to init report storage", "error", err)
		}
		reportSvc = service.NewReportService(service.ReportServiceParams{
			Repo:    reportRepo,
			Records: assessmentRepo,
			Engine:  engine,
			Storage: store,
			Signer:  storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL),
			Queue: jobs.QueueConfig{
				Workers:    cfg.Reports.WorkerConcurrency,
				MaxRetries: cfg.Reports.WorkerRetries,
				Logger:     logr,
			},
			Validator: validate,
			Logger:    logr,
		})
		reportSvc.Start(ctx)
		defer reportSvc.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeDeps{
		auth:       handler.NewAuthHandler(authSvc),
		users:      handler.NewUserHandler(userSvc),
		assessment: handler.NewAssessmentHandler(assessmentSvc),
		dashboard:  handler.NewDashboardHandler(dashboardSvc),
		sops:       handler.NewSOPHandler(sopSvc),
		videos:     handler.NewVideoHandler(videoSvc),
		shifts:     handler.NewShiftHandler(shiftSvc),
		reports:    handler.NewReportHandler(reportSvc),
		metrics:    metricsHandler,
		authSvc:    authSvc,
		dashboards: cfg.Dashboard.Enabled,
		exports:    cfg.Reports.Enabled,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sugar.Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	sugar.Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("shutdown error", "error", err)
	}
}

type routeDeps struct {
	auth       *handler.AuthHandler
	users      *handler.UserHandler
	assessment *handler.AssessmentHandler
	dashboard  *handler.DashboardHandler
	sops       *handler.SOPHandler
	videos     *handler.VideoHandler
	shifts     *handler.ShiftHandler
	reports    *handler.ReportHandler
	metrics    *handler.MetricsHandler
	authSvc    *service.AuthService
	dashboards bool
	exports    bool
}

func registerRoutes(api *gin.RouterGroup, deps routeDeps) {
	auth := api.Group("/auth")
	{
		auth.POST("/login", deps.auth.Login)
		auth.POST("/refresh", deps.auth.Refresh)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(deps.authSvc))

	protected.POST("/auth/logout", deps.auth.Logout)
	protected.POST("/auth/change-password", deps.auth.ChangePassword)
	protected.GET("/auth/me", deps.auth.Me)

	users := protected.Group("/users")
	{
		users.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), deps.users.List)
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), string(models.RoleTeacher), "SELF"), deps.users.Get)
		users.POST("", middleware.RequireRoles(models.RoleAdmin), deps.users.Create)
		users.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), deps.users.Update)
		users.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), deps.users.Delete)
	}

	assessments := protected.Group("/assessments")
	{
		assessments.GET("/schemas", deps.assessment.Schemas)
		assessments.GET("/schemas/:formTypeId", deps.assessment.Schema)
		assessments.POST("", middleware.StaffOnly(), deps.assessment.Create)
		assessments.GET("", deps.assessment.List)
		assessments.GET("/:id", deps.assessment.Get)
		assessments.PUT("/:id/draft", deps.assessment.SaveDraft)
		assessments.POST("/:id/transition", deps.assessment.Transition)
		assessments.POST("/:id/follow-up", middleware.StaffOnly(), deps.assessment.FollowUp)
	}

	if deps.dashboards {
		dashboard := protected.Group("/dashboard")
		{
			dashboard.GET("/students/:id", deps.dashboard.Student)
			dashboard.GET("/overview", middleware.StaffOnly(), deps.dashboard.Overview)
		}
	}

	sops := protected.Group("/sops")
	{
		sops.GET("", deps.sops.List)
		sops.GET("/:id", deps.sops.Get)
		sops.POST("", middleware.RequireRoles(models.RoleAdmin), deps.sops.Create)
		sops.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), deps.sops.Update)
		sops.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), deps.sops.Delete)
	}

	videos := protected.Group("/videos")
	{
		videos.GET("", deps.videos.List)
		videos.GET("/:id", deps.videos.Get)
		videos.POST("", middleware.RequireRoles(models.RoleAdmin), deps.videos.Create)
		videos.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), deps.videos.Update)
		videos.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), deps.videos.Delete)
	}

	shifts := protected.Group("/shifts")
	{
		shifts.GET("", deps.shifts.List)
		shifts.POST("/sync", middleware.RequireRoles(models.RoleAdmin), deps.shifts.Sync)
	}

	if deps.exports {
		// download authenticates via the signed token, not the JWT
		api.GET("/reports/:id/download", deps.reports.Download)

		reports := protected.Group("/reports")
		{
			reports.POST("", deps.reports.Create)
			reports.GET("", deps.reports.List)
			reports.GET("/:id", deps.reports.Get)
		}
	}

	protected.GET("/metrics/summary", middleware.RequireRoles(models.RoleAdmin), deps.metrics.Snapshot)
}
