package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/training-assessment-service/internal/attempt"
	"github.com/SAP-F-2025/training-assessment-service/internal/cache"
	"github.com/SAP-F-2025/training-assessment-service/internal/client"
	"github.com/SAP-F-2025/training-assessment-service/internal/config"
	"github.com/SAP-F-2025/training-assessment-service/internal/events"
	"github.com/SAP-F-2025/training-assessment-service/internal/handlers"
	"github.com/SAP-F-2025/training-assessment-service/internal/proctoring"
	"github.com/SAP-F-2025/training-assessment-service/internal/progression"
	"github.com/SAP-F-2025/training-assessment-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/training-assessment-service/internal/services"
	"github.com/SAP-F-2025/training-assessment-service/internal/utils"
	"github.com/SAP-F-2025/training-assessment-service/internal/validator"
	ws "github.com/SAP-F-2025/training-assessment-service/internal/websocket"
	"github.com/SAP-F-2025/training-assessment-service/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.NewLogger(false).LogError(err, "Failed to load configuration")
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.IsProduction())
	slogger := utils.ToSlogLogger(logger)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.LogError(err, "Failed to connect to PostgreSQL")
		os.Exit(1)
	}
	if err := pkg.Migrate(db); err != nil {
		logger.LogError(err, "Failed to migrate schema")
		os.Exit(1)
	}
	logger.Info("Connected to PostgreSQL")

	var cacheService cache.CacheService
	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, running without definition cache", "error", err)
	} else {
		defer redisClient.Close()
		cacheService = cache.NewRedisCache(redisClient, "training-assessment", slogger)
		logger.Info("Connected to Redis")
	}

	publisher, err := cfg.Events.CreateEventPublisher(slogger)
	if err != nil {
		logger.Warn("Event publisher unavailable, falling back to mock publisher", "error", err)
		publisher = events.NewMockEventPublisher(slogger)
	}
	defer publisher.Close()

	policy, err := progression.ParseQuizlessPolicy(cfg.QuizlessPolicy)
	if err != nil {
		logger.LogError(err, "Invalid quiz-less module policy")
		os.Exit(1)
	}

	// without a grading server the client score is accepted as final
	var submitter attempt.Submitter
	if cfg.GradingAPIURL != "" {
		submitter = client.NewGradingClient(cfg.GradingAPIURL, cfg.SubmitTimeout)
	} else {
		logger.Warn("GRADING_API_URL not set, attempts are scored locally")
	}

	playerConfig := services.PlayerConfig{
		AdvanceDelay:   cfg.AdvanceDelay,
		SubmitTimeout:  cfg.SubmitTimeout,
		QuizlessPolicy: policy,
	}
	if len(cfg.AllowedKeys) > 0 {
		keys := proctoring.NewKeyPolicy(cfg.AllowedKeys, cfg.AllowTyping)
		playerConfig.KeyPolicy = &keys
	}

	v := validator.New()
	repo := postgres.NewRepository(db)
	definitions := services.NewDefinitions(
		client.NewContentClient(cfg.ContentAPIURL, 10*time.Second),
		cacheService,
		cfg.DefinitionCacheTTL,
		v.Quiz(),
		slogger,
	)

	playerService := services.NewPlayerService(
		repo,
		definitions,
		submitter,
		publisher,
		services.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTokenTTL),
		v,
		playerConfig,
		slogger,
	)
	progressionService := services.NewProgressionService(repo, definitions, publisher, cacheService, policy, slogger)
	reportService := services.NewReportService(repo, slogger)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	hub := ws.NewHub(playerService, ws.DefaultTick, slogger)
	go hub.Run(ctx)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ContextLogger(logger))
	router.Use(utils.LoggerMiddleware(logger))

	handlers.NewHandlerManager(playerService, progressionService, reportService, hub, cfg.AllowedOrigins, logger).
		SetupRoutes(router)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Training assessment service starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.LogError(err, "HTTP server failed")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.LogError(err, "HTTP server shutdown failed")
	}

	// abandon live attempts so their audits are persisted before the pool closes
	stop()
	playerService.Shutdown()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info("Training assessment service stopped")
}
