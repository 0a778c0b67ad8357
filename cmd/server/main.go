package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/manhunt-engine/internal/config"
	"github.com/manhunt-engine/internal/engine"
	"github.com/manhunt-engine/internal/handler"
	"github.com/manhunt-engine/internal/kafka"
	"github.com/manhunt-engine/internal/postgres"
	"github.com/manhunt-engine/internal/presence"
	"github.com/manhunt-engine/internal/redis"
	"github.com/manhunt-engine/internal/service"
	"github.com/manhunt-engine/internal/websocket"
	"github.com/manhunt-engine/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	positions, err := redis.NewPositionService(&cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer positions.Close()
	logger.Info("connected to Redis")

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	repo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := repo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Initialize engine components
	tracker := presence.NewTracker()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	mover := engine.NewSimulator(positions, tracker, &cfg.Movement, rng, logger)
	detector := engine.NewDetector(positions, repo, tracker, &cfg.Capture, cfg.Presence.SimulationWindow, rng, logger)
	lifecycle := engine.NewLifecycle(repo, repo, logger)

	// Initialize services
	gameService := service.NewGameService(
		positions,
		positions,
		repo,
		tracker,
		lifecycle,
		wsHub,
		&cfg.Presence,
		logger,
	)

	// Start simulation loop
	simLoop := worker.NewSimLoop(repo, mover, detector, lifecycle, &cfg.Simulation, wsHub, logger)
	if cfg.Simulation.Enabled {
		if err := simLoop.Start(ctx); err != nil {
			logger.Error("failed to start simulation loop", "error", err)
			os.Exit(1)
		}
	}

	// Initialize Kafka consumer for high-load position ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		var err error
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, gameService, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	// Initialize HTTP handler with WebSocket hub
	httpHandler := handler.NewHandler(gameService, wsHub, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		logger.Info("WebSocket endpoint available at /ws")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop WebSocket hub
	wsHub.Stop()

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Stop simulation loop, letting an in-flight tick finish
	if err := simLoop.Stop(); err != nil {
		logger.Error("failed to stop simulation loop", "error", err)
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
