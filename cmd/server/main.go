package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"energy-platform/internal/config"
	"energy-platform/internal/handlers"
	"energy-platform/internal/repository"
	"energy-platform/internal/services"
	"energy-platform/pkg/database"
	"energy-platform/pkg/logging"
	"energy-platform/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("energy-api", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting building energy API server", logging.Fields{
		"version":     "1.0.0",
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"db_host":     cfg.Database.Host,
		"db_name":     cfg.Database.Database,
	})

	metricsCollector := metrics.NewCollector("energy_platform")

	dbConfig := &database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}

	db, err := database.NewPostgresDB(dbConfig, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	energyRepo := repository.NewEnergyRepository(db, logger, metricsCollector, cfg.Ingest.BatchSize)

	// The process must not serve without a valid schema
	if err := energyRepo.EnsureSchema(ctx); err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to provision schema", logging.Fields{}, err)
	}

	// Ingestion runs to completion before the API accepts connections,
	// so the first request never observes a half-loaded store
	ingestionService := services.NewIngestionService(energyRepo, logger, metricsCollector, cfg.Ingest)
	result := ingestionService.LoadAll(ctx, services.Sources{
		BuildingsFile: cfg.Ingest.BuildingsFile,
		ReadingsFile:  cfg.Ingest.ReadingsFile,
		BreakdownFile: cfg.Ingest.BreakdownFile,
	})
	if len(result.Errors) > 0 {
		logger.Warn(ctx, "[STARTUP_LOAD_PARTIAL] Some sources failed to load", logging.Fields{
			"run_id": result.RunID,
			"errors": result.Errors,
		})
	}

	queryService := services.NewQueryService(energyRepo, logger, metricsCollector)
	energyHandler := handlers.NewEnergyHandler(queryService, logger, metricsCollector, cfg.API.DefaultYear)

	router := mux.NewRouter()
	energyHandler.RegisterRoutes(router)

	router.HandleFunc("/api/docs", handlers.SwaggerUI).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", handlers.OpenAPISpec).Methods("GET")
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
