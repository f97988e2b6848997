package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/fpl-optimizer/internal/api"
	"github.com/jstittsworth/fpl-optimizer/internal/api/handlers"
	"github.com/jstittsworth/fpl-optimizer/internal/api/middleware"
	"github.com/jstittsworth/fpl-optimizer/internal/providers"
	"github.com/jstittsworth/fpl-optimizer/internal/scout"
	"github.com/jstittsworth/fpl-optimizer/internal/services"
	"github.com/jstittsworth/fpl-optimizer/internal/squad"
	"github.com/jstittsworth/fpl-optimizer/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Setup logging
	if cfg.IsDevelopment() {
		logrus.SetLevel(logrus.DebugLevel)
		gin.SetMode(gin.DebugMode)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
		gin.SetMode(gin.ReleaseMode)
	}
	logger := logrus.StandardLogger()

	// Connect to Redis
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logrus.Fatalf("Failed to parse Redis URL: %v", err)
	}
	redisClient := redis.NewClient(opt)
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logrus.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	cacheService := services.NewCacheService(redisClient)

	// Initialize feed clients
	fplClient, err := providers.NewFPLClient(providers.FPLOptions{
		Email:            cfg.FPLEmail,
		Password:         cfg.FPLPassword,
		Timeout:          cfg.ExternalAPITimeout,
		RequestsPerSec:   cfg.FPLRateLimit,
		BreakerThreshold: uint32(cfg.CircuitBreakerThreshold),
	}, logger)
	if err != nil {
		logrus.Fatalf("Failed to initialize FPL client: %v", err)
	}

	model, err := squad.ParseScoreModel(cfg.ScoreModel)
	if err != nil {
		logrus.Fatalf("Invalid score model: %v", err)
	}

	var projectionClient *providers.RotoWireClient
	if cfg.HasProjectionFeed() {
		projectionClient, err = providers.NewRotoWireClient(providers.RotoWireOptions{
			Username:         cfg.RotoWireUsername,
			Password:         cfg.RotoWirePassword,
			Timeout:          cfg.ExternalAPITimeout,
			BreakerThreshold: uint32(cfg.CircuitBreakerThreshold),
		}, logger)
		if err != nil {
			logrus.Fatalf("Failed to initialize RotoWire client: %v", err)
		}
	} else if model.NeedsProjections() {
		logrus.Fatal("SCORE_MODEL=projection requires RotoWire credentials")
	}

	// Initialize services
	playerService := newPlayerService(fplClient, projectionClient, logger, cfg)

	refreshInterval, err := time.ParseDuration(cfg.DataRefreshInterval)
	if err != nil {
		logrus.Warnf("Invalid refresh interval, using default 2h: %v", err)
		refreshInterval = 2 * time.Hour
	}
	poolService := services.NewPoolService(playerService, cacheService, logger, model, refreshInterval)
	if err := poolService.Start(); err != nil {
		logrus.Errorf("Failed to start pool service: %v", err)
	}
	defer poolService.Stop()

	scoutService := scout.New(logger, cfg.ScoutWorkers, time.Duration(cfg.SolverTimeout)*time.Second)

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.CorsOrigins))

	healthHandler := handlers.NewHealthHandler(poolService)
	router.GET("/health", healthHandler.Health)

	apiV1 := router.Group("/api/v1")
	api.SetupRoutes(apiV1, poolService, playerService, scoutService, cacheService, cfg)

	// Setup server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logrus.Infof("Server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}
	logrus.Info("Server exited")
}

func newPlayerService(fplClient *providers.FPLClient, projectionClient *providers.RotoWireClient, logger *logrus.Logger, cfg *config.Config) *services.PlayerService {
	if projectionClient != nil {
		return services.NewPlayerService(fplClient, projectionClient, logger, cfg.FixtureLookahead)
	}
	return services.NewPlayerService(fplClient, nil, logger, cfg.FixtureLookahead)
}
