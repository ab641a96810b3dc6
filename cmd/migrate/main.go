package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"energy-platform/internal/config"
	"energy-platform/internal/repository"
	"energy-platform/pkg/database"
	"energy-platform/pkg/logging"
	"energy-platform/pkg/metrics"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("energy-migrate", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
	metricsCollector := metrics.NewCollector("energy_migrate")

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

	ctx := context.Background()

	db, err := database.NewPostgresDB(dbConfig, logger, metricsCollector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Println("Connected to database successfully")

	energyRepo := repository.NewEnergyRepository(db, logger, metricsCollector, cfg.Ingest.BatchSize)

	switch *direction {
	case "up":
		fmt.Println("Provisioning schema...")
		err = energyRepo.EnsureSchema(ctx)
	case "down":
		fmt.Println("Dropping schema...")
		err = energyRepo.DropSchema(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown direction %q, expected up or down\n", *direction)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Migration completed successfully")
}
