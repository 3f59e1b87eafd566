package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/stwalsh4118/rainyield/internal/climatology"
	"github.com/stwalsh4118/rainyield/internal/config"
	"github.com/stwalsh4118/rainyield/internal/database"
	apierrors "github.com/stwalsh4118/rainyield/internal/errors"
	"github.com/stwalsh4118/rainyield/internal/estimator"
	"github.com/stwalsh4118/rainyield/internal/handlers"
	"github.com/stwalsh4118/rainyield/internal/logger"
	"github.com/stwalsh4118/rainyield/internal/middleware"
	"github.com/stwalsh4118/rainyield/internal/repository"
	"github.com/stwalsh4118/rainyield/internal/scheduler"
	"github.com/stwalsh4118/rainyield/internal/services"
)

const (
	shutdownTimeout = 30 * time.Second
)

func main() {
	// A missing .env file is normal outside local development
	envErr := godotenv.Load()

	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.NewWithLevel(cfg.Server.Env, cfg.Logging.Level)
	log.Info("Starting Rainyield API", map[string]interface{}{
		"version":       handlers.APIVersion,
		"environment":   cfg.Server.Env,
		"port":          cfg.Server.Port,
		"cache_enabled": cfg.Cache.Enabled,
	})
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		log.Warn("Failed to read .env file", map[string]interface{}{
			"error": envErr.Error(),
		})
	}

	ctx := context.Background()

	// Climatology source, optionally fronted by the Postgres cache
	var source climatology.Source = climatology.NewPowerClient(cfg.Climatology, log)
	var cachePinger handlers.Pinger
	var purger *scheduler.CachePurger

	if cfg.Cache.Enabled {
		db, err := database.NewPostgresPool(ctx, cfg.Database)
		if err != nil {
			log.Fatal("Failed to connect to cache database", err, map[string]interface{}{
				"host": cfg.Database.Host,
				"port": cfg.Database.Port,
				"name": cfg.Database.Name,
			})
		}
		defer db.Close()

		log.Info("Cache database connection established", map[string]interface{}{
			"host":     cfg.Database.Host,
			"port":     cfg.Database.Port,
			"database": cfg.Database.Name,
			"pool_min": cfg.Database.PoolMin,
			"pool_max": cfg.Database.PoolMax,
		})

		repo := repository.NewClimatologyRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatal("Failed to prepare climatology cache schema", err, nil)
		}

		source = climatology.NewCachedSource(repo, source, cfg.Climatology.Parameter, cfg.Cache.TTL, log)
		cachePinger = db

		purger = scheduler.NewCachePurger(repo, cfg.Cache.PurgeSchedule, log)
		if err := purger.Start(); err != nil {
			log.Fatal("Failed to start cache purger", err, map[string]interface{}{
				"schedule": cfg.Cache.PurgeSchedule,
			})
		}
	}

	// Initialize service layer
	estimationService := services.NewEstimationService(source, services.NewSessionTracker(), estimator.Options{
		Timeout:           cfg.Climatology.Timeout,
		FallbackMmPerYear: cfg.Climatology.FallbackMmPerYear,
	}, log)

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware in order: RequestID -> Session -> Logger -> Recovery -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Session())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS.Origins))

	// Register health check routes
	healthHandler := handlers.NewHealthHandler(cachePinger, cfg.Server.Env)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/api/v1/info", healthHandler.Info)

	// Initialize handlers
	estimateHandler := handlers.NewEstimateHandler(estimationService)

	// Register API v1 routes
	v1 := router.Group("/api/v1")
	{
		estimates := v1.Group("/estimates")
		{
			estimates.POST("/harvest", estimateHandler.Harvest)
			estimates.POST("/power", estimateHandler.Power)
			estimates.POST("/combined", estimateHandler.Combined)
		}
		v1.GET("/climatology", estimateHandler.Climatology)
	}

	router.NoRoute(func(c *gin.Context) {
		apierrors.NotFound(c, "Route not found")
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	if purger != nil {
		purger.Stop(shutdownCtx)
	}

	log.Info("Server exited", nil)
}
