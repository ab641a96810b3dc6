package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"energy-platform/internal/config"
	"energy-platform/internal/repository"
	"energy-platform/internal/services"
	"energy-platform/pkg/database"
	"energy-platform/pkg/logging"
	"energy-platform/pkg/metrics"
)

func main() {
	buildingsFile := flag.String("buildings", "", "Building metadata CSV (default from INGEST_BUILDINGS_FILE)")
	readingsFile := flag.String("readings", "", "Meter readings CSV (default from INGEST_READINGS_FILE)")
	breakdownFile := flag.String("breakdown", "", "Energy breakdown CSV (default from INGEST_BREAKDOWN_FILE)")
	readingCap := flag.Int("reading-cap", 0, "Override the meter reading row cap")
	breakdownCap := flag.Int("breakdown-cap", 0, "Override the breakdown row cap")
	batchSize := flag.Int("batch-size", 0, "Override the insert batch size")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *buildingsFile != "" {
		cfg.Ingest.BuildingsFile = *buildingsFile
	}
	if *readingsFile != "" {
		cfg.Ingest.ReadingsFile = *readingsFile
	}
	if *breakdownFile != "" {
		cfg.Ingest.BreakdownFile = *breakdownFile
	}
	if *readingCap > 0 {
		cfg.Ingest.ReadingRowCap = *readingCap
	}
	if *breakdownCap > 0 {
		cfg.Ingest.BreakdownRowCap = *breakdownCap
	}
	if *batchSize > 0 {
		cfg.Ingest.BatchSize = *batchSize
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("energy-ingester", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[INGESTER_START] Starting full-refresh ingestion", logging.Fields{
		"version":        "1.0.0",
		"buildings_file": cfg.Ingest.BuildingsFile,
		"readings_file":  cfg.Ingest.ReadingsFile,
		"breakdown_file": cfg.Ingest.BreakdownFile,
		"batch_size":     cfg.Ingest.BatchSize,
	})

	metricsCollector := metrics.NewCollector("energy_ingester")

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
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	energyRepo := repository.NewEnergyRepository(db, logger, metricsCollector, cfg.Ingest.BatchSize)

	if err := energyRepo.EnsureSchema(ctx); err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to provision schema", logging.Fields{}, err)
	}

	ingestionService := services.NewIngestionService(energyRepo, logger, metricsCollector, cfg.Ingest)

	result := ingestionService.LoadAll(ctx, services.Sources{
		BuildingsFile: cfg.Ingest.BuildingsFile,
		ReadingsFile:  cfg.Ingest.ReadingsFile,
		BreakdownFile: cfg.Ingest.BreakdownFile,
	})

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("INGESTION COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Run ID:              %s\n", result.RunID)
	fmt.Printf("Buildings ingested:  %d (read %d, skipped %d)\n",
		result.Buildings.RowsIngested, result.Buildings.RowsRead, result.Buildings.RowsSkipped)
	fmt.Printf("Readings ingested:   %d (read %d, skipped %d)\n",
		result.Readings.RowsIngested, result.Readings.RowsRead, result.Readings.RowsSkipped)
	fmt.Printf("Breakdown ingested:  %d (read %d, skipped %d)\n",
		result.Breakdown.RowsIngested, result.Breakdown.RowsRead, result.Breakdown.RowsSkipped)
	fmt.Printf("Duration:            %v\n", result.Duration)

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for _, errMsg := range result.Errors {
			fmt.Printf("  - %s\n", errMsg)
		}
		os.Exit(1)
	}

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion completed successfully", logging.Fields{
		"run_id":             result.RunID,
		"buildings_ingested": result.Buildings.RowsIngested,
		"readings_ingested":  result.Readings.RowsIngested,
		"breakdown_ingested": result.Breakdown.RowsIngested,
		"duration_seconds":   result.Duration.Seconds(),
	})
}
