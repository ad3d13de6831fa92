package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/mhollis-dev/fieldops-api/api/swagger"
	"github.com/mhollis-dev/fieldops-api/internal/events"
	"github.com/mhollis-dev/fieldops-api/internal/handler"
	"github.com/mhollis-dev/fieldops-api/internal/middleware"
	"github.com/mhollis-dev/fieldops-api/internal/models"
	"github.com/mhollis-dev/fieldops-api/internal/repository"
	"github.com/mhollis-dev/fieldops-api/internal/service"
	rediscache "github.com/mhollis-dev/fieldops-api/pkg/cache"
	"github.com/mhollis-dev/fieldops-api/pkg/config"
	"github.com/mhollis-dev/fieldops-api/pkg/database"
	"github.com/mhollis-dev/fieldops-api/pkg/logger"
	corsmiddleware "github.com/mhollis-dev/fieldops-api/pkg/middleware/cors"
	reqidmiddleware "github.com/mhollis-dev/fieldops-api/pkg/middleware/requestid"
	"github.com/mhollis-dev/fieldops-api/pkg/storage"
)

// @title FieldOps API
// @version 0.1.0
// @description Field operations tracking and compensation approval
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
	defer db.Close()

	redisClient, err := rediscache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	validate := validator.New()

	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	decisionRepo := repository.NewDecisionRepository(db)
	mutationRepo := repository.NewMutationRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	feedCache := repository.NewFeedCache(redisClient, cfg.Feed.CacheTTL)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(cfg.JWT.Secret)

	registrySvc := service.NewRegistryService(assignmentRepo, feedCache, auditRepo, logr).WithMetrics(metricsSvc)

	dispatcher := events.NewDispatcher(events.DispatcherConfig{
		BufferSize: cfg.Sync.EventQueueSize,
		Logger:     logr,
	})
	dispatcher.Subscribe(func(_ context.Context, event models.DecisionEvent) error {
		logr.Sugar().Infow("decision committed",
			"submission_id", event.SubmissionID,
			"assignment_id", event.AssignmentID,
			"outcome", event.Outcome,
			"final_total_pence", event.FinalTotalPence)
		return nil
	})
	// Repairs assignments whose inline transition failed after the decision
	// committed; the dispatcher retries until the state matches the outcome.
	dispatcher.Subscribe(registrySvc.ReconcileDecision)
	dispatcher.Start(context.Background())
	defer dispatcher.Stop()

	submissionSvc := service.NewSubmissionService(submissionRepo, registrySvc, auditRepo, validate, logr)
	approvalSvc := service.NewApprovalService(submissionRepo, decisionRepo, registrySvc, dispatcher, auditRepo, validate, logr)
	syncSvc := service.NewSyncService(mutationRepo, submissionSvc, approvalSvc, metricsSvc, auditRepo, validate, logr, service.SyncConfig{
		MaxBatchSize:  cfg.Sync.MaxBatchSize,
		RetryAttempts: cfg.Sync.RetryAttempts,
		RetryDelay:    cfg.Sync.RetryDelay,
	})
	exportStore, err := storage.NewLocalStorage(cfg.Reports.ExportDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export directory", "error", err)
	}
	exportSvc := service.NewExportService(submissionRepo, exportStore, logr)

	assignmentHandler := handler.NewAssignmentHandler(registrySvc)
	submissionHandler := handler.NewSubmissionHandler(submissionSvc)
	decisionHandler := handler.NewDecisionHandler(approvalSvc)
	syncHandler := handler.NewSyncHandler(syncSvc)
	reportHandler := handler.NewReportHandler(exportSvc)
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
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))

	assignments := api.Group("/assignments")
	{
		assignments.GET("", assignmentHandler.Feed)
		assignments.GET("/:id", assignmentHandler.Get)
		assignments.POST("/:id/claim",
			middleware.RequireRoles(models.RoleWorker),
			middleware.Audit(auditRepo, models.AuditActionAssignmentClaim, "assignment"),
			assignmentHandler.Claim)
		assignments.POST("/:id/release",
			middleware.RequireRoles(models.RoleWorker),
			assignmentHandler.Release)
		assignments.POST("/:id/lock",
			middleware.RequireRoles(models.RoleAdmin, models.RoleSupervisor),
			middleware.Audit(auditRepo, models.AuditActionAssignmentLock, "assignment"),
			assignmentHandler.Lock)
	}

	submissions := api.Group("/submissions")
	{
		submissions.POST("", middleware.RequireRoles(models.RoleWorker), submissionHandler.Create)
		submissions.GET("", submissionHandler.List)
		submissions.GET("/:id", submissionHandler.Get)
		submissions.POST("/:id/decision",
			middleware.RequireRoles(models.RoleAdmin, models.RoleSupervisor),
			decisionHandler.Decide)
	}

	api.GET("/decisions",
		middleware.RequireRoles(models.RoleAdmin, models.RoleSupervisor),
		decisionHandler.List)

	if cfg.Sync.Enabled {
		sync := api.Group("/sync")
		{
			sync.POST("/mutations", syncHandler.Push)
			sync.POST("/drain", syncHandler.Drain)
			sync.GET("/conflicts", syncHandler.Conflicts)
			sync.DELETE("/mutations/:seq", syncHandler.Withdraw)
		}
	}

	if cfg.Reports.Enabled {
		api.GET("/reports/submissions",
			middleware.RequireRoles(models.RoleAdmin, models.RoleSupervisor),
			reportHandler.ExportSubmissions)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
