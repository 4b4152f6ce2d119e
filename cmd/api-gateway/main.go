package main

import (
	"context"
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

	_ "github.com/noah-isme/sis-match-api/api/swagger"
	"github.com/noah-isme/sis-match-api/internal/handler"
	"github.com/noah-isme/sis-match-api/internal/middleware"
	"github.com/noah-isme/sis-match-api/internal/models"
	"github.com/noah-isme/sis-match-api/internal/repository"
	"github.com/noah-isme/sis-match-api/internal/service"
	"github.com/noah-isme/sis-match-api/pkg/cache"
	"github.com/noah-isme/sis-match-api/pkg/config"
	"github.com/noah-isme/sis-match-api/pkg/database"
	"github.com/noah-isme/sis-match-api/pkg/jobs"
	"github.com/noah-isme/sis-match-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sis-match-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sis-match-api/pkg/middleware/requestid"
	"github.com/noah-isme/sis-match-api/pkg/storage"
)

// @title SIS Match API
// @version 1.0.0
// @description Record-linkage service matching uploaded student datasets against the enrolled roster
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	exportStorage, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	validate := validator.New()
	metricsService := service.NewMetricsService()

	rosterRepo := repository.NewRosterRepository(db)
	reportRepo := repository.NewReportRepository(db)
	matchRepo := repository.NewMatchRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Cache.ReportTTL, logr, cfg.Cache.Enabled)
	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "sis-match-api",
	})
	rosterService := service.NewRosterService(rosterRepo, cacheService, validate, logr)
	reportService := service.NewReportService(reportRepo, matchRepo, exportStorage, signer, logr, service.ReportServiceConfig{
		APIPrefix:       cfg.APIPrefix,
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	})

	var matchService *service.MatchService
	matchQueue := jobs.NewQueue("match-runs", func(ctx context.Context, job jobs.Job) error {
		return matchService.HandleJob(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Matching.Workers,
		BufferSize: cfg.Matching.AsyncQueueSize,
		Logger:     logr,
	})
	matchService = service.NewMatchService(rosterService, reportRepo, matchRepo, matchQueue, metricsService, validate, logr, cfg.Matching)

	authHandler := handler.NewAuthHandler(authService)
	rosterHandler := handler.NewRosterHandler(rosterService)
	matchHandler := handler.NewMatchHandler(matchService)
	reportHandler := handler.NewReportHandler(reportService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/match/export/:token", reportHandler.Download)

	protected := api.Group("")
	protected.Use(middleware.JWT(authService))
	protected.Use(middleware.RequireRole(models.RoleAdmin, models.RoleOperator))
	protected.GET("/auth/me", authHandler.Me)
	protected.GET("/students", rosterHandler.List)
	protected.POST("/roster/import", rosterHandler.Import)
	protected.POST("/match/runs", matchHandler.Run)
	protected.GET("/match/reports", reportHandler.List)
	protected.GET("/match/reports/:id", reportHandler.Get)
	protected.POST("/match/reports/:id/export", reportHandler.Export)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	matchQueue.Start(ctx)
	defer matchQueue.Stop()
	reportService.StartCleanup(ctx)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
	}
}
