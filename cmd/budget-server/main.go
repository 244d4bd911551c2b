package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"budgetsense/internal/backend"
	"budgetsense/internal/cli"
	"budgetsense/internal/config"
	apphttp "budgetsense/internal/http"
	"budgetsense/internal/model"
	"budgetsense/internal/services"
)

type readier interface {
	Ready(ctx context.Context) error
}

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	tables, err := config.LoadTables(cfg.TablesPath)
	if err != nil {
		logger.Error("Failed to load category tables", "error", err, "path", cfg.TablesPath)
		os.Exit(1)
	}

	encoders := model.NewEncoders(tables)
	if cfg.EncodersPath != "" {
		encoders, err = model.LoadEncoders(cfg.EncodersPath)
		if err != nil {
			logger.Error("Failed to load label encoders", "error", err, "path", cfg.EncodersPath)
			os.Exit(1)
		}
		logger.Info("Label encoders loaded", "path", cfg.EncodersPath)
	}

	oracle, err := model.New(cfg.ModelBackend, cfg.ModelURL, cfg.ModelTimeout, tables)
	if err != nil {
		logger.Error("Failed to initialize prediction model", "error", err, "model_backend", cfg.ModelBackend)
		os.Exit(1)
	}
	if cfg.ModelBackend == "none" {
		logger.Warn("No prediction model configured, /predict will answer 503")
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	predictions := services.NewPredictionService(oracle, encoders, result.Backend)

	probes := []apphttp.Probe{{Name: "store", Check: result.Backend.Ping}}
	if r, ok := oracle.(readier); ok {
		probes = append(probes, apphttp.Probe{Name: "model", Check: r.Ready})
	}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		SnapshotCacheTTL:   cfg.SnapshotCacheTTL,
	}, predictions, result.Backend, probes...)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", "error", err)
			}
		}
	})

	logger.Info("Starting budgetsense server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"model_backend", cfg.ModelBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
