package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/docuflow/engine/cmd/engine/routes"
	"github.com/docuflow/engine/cmd/engine/tasks"
	"github.com/docuflow/engine/common/config"
	"github.com/docuflow/engine/common/db"
	"github.com/docuflow/engine/common/logger"
	commonredis "github.com/docuflow/engine/common/redis"
	"github.com/docuflow/engine/engine"
	"github.com/docuflow/engine/engine/executor"
	"github.com/docuflow/engine/engine/job"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load("engine")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Service.LogLevel, cfg.Service.LogFormat)

	taskRunnerURL := os.Getenv("TASK_RUNNER_URL")
	if taskRunnerURL == "" {
		taskRunnerURL = "http://localhost:8090"
	}
	taskExecutor := tasks.NewHTTPExecutor(taskRunnerURL, 5*time.Minute, log)

	opts, cleanup, err := buildOptions(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize engine dependencies", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	eng := engine.New(cfg, taskExecutor, log, opts...)
	eng.Start(ctx)
	defer eng.Close()

	e := setupEcho()
	setupMiddleware(e)
	setupHealthCheck(e)
	registerRoutes(e, eng, log)

	startServer(e, cfg, log)
}

// buildOptions wires the optional Redis checkpoint store and Postgres job
// archive from configuration
func buildOptions(ctx context.Context, cfg *config.Config, log *logger.Logger) ([]engine.Option, func(), error) {
	var opts []engine.Option
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Redis.Enabled {
		client, err := commonredis.Connect(ctx, cfg, log)
		if err != nil {
			return nil, cleanup, fmt.Errorf("connect redis: %w", err)
		}
		closers = append(closers, func() { client.Close() })
		opts = append(opts, engine.WithCheckpointStore(
			executor.NewRedisCheckpointStore(client, cfg.Redis.CheckpointTTL),
		))
		log.Info("Checkpoint store: redis", "addr", cfg.Redis.Addr)
	}

	if cfg.Database.Enabled {
		database, err := db.New(ctx, cfg, log)
		if err != nil {
			return nil, cleanup, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, database.Close)

		if err := database.EnsureJobArchive(ctx); err != nil {
			return nil, cleanup, err
		}
		opts = append(opts, engine.WithArchive(job.NewPostgresArchive(database, log)))
		log.Info("Job archive: postgres", "database", cfg.Database.Database)
	}

	return opts, cleanup, nil
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
}

// setupHealthCheck registers the health and metrics endpoints
func setupHealthCheck(e *echo.Echo) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "ok",
			"service": "engine",
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// registerRoutes registers all application routes
func registerRoutes(e *echo.Echo, eng *engine.Engine, log *logger.Logger) {
	routes.RegisterExecuteRoutes(e, eng, log)
	routes.RegisterWorkflowRoutes(e, eng, log)
	routes.RegisterGraphRoutes(e, eng, log)
	routes.RegisterTemplateRoutes(e, eng, log)
	routes.RegisterJobRoutes(e, eng, log)
}

// startServer starts the Echo server and shuts it down on SIGINT/SIGTERM
func startServer(e *echo.Echo, cfg *config.Config, log *logger.Logger) {
	go func() {
		log.Info("Starting engine", "port", cfg.Service.Port)
		if err := e.Start(fmt.Sprintf(":%d", cfg.Service.Port)); err != nil {
			log.Info("Server stopped", "reason", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Shutdown error", "error", err)
	}
}
