package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration, loaded from the environment
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Ingest   IngestConfig
	API      APIConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// IngestConfig holds CSV source locations and load limits
type IngestConfig struct {
	BuildingsFile   string
	ReadingsFile    string
	BreakdownFile   string
	BatchSize       int
	ReadingRowCap   int
	BreakdownRowCap int
}

// APIConfig holds query-level defaults
type APIConfig struct {
	// DefaultYear is used by /api/buildings-energy when no year
	// parameter is supplied
	DefaultYear string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "energy"),
			Password:        getEnv("DB_PASSWORD", "energy"),
			Database:        getEnv("DB_NAME", "energy_platform"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Ingest: IngestConfig{
			BuildingsFile:   getEnv("INGEST_BUILDINGS_FILE", "./data/buildings.csv"),
			ReadingsFile:    getEnv("INGEST_READINGS_FILE", "./data/meter_readings.csv"),
			BreakdownFile:   getEnv("INGEST_BREAKDOWN_FILE", "./data/energy_breakdown.csv"),
			BatchSize:       getEnvInt("INGEST_BATCH_SIZE", 500),
			ReadingRowCap:   getEnvInt("INGEST_READING_ROW_CAP", 10000),
			BreakdownRowCap: getEnvInt("INGEST_BREAKDOWN_ROW_CAP", 1000),
		},
		API: APIConfig{
			DefaultYear: getEnv("API_DEFAULT_YEAR", "2021"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	return cfg, nil
}

// Validate checks configuration for invalid values
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("db max open conns must be positive, got %d", c.Database.MaxOpenConns)
	}

	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("ingest batch size must be positive, got %d", c.Ingest.BatchSize)
	}

	if c.Ingest.ReadingRowCap <= 0 || c.Ingest.BreakdownRowCap <= 0 {
		return fmt.Errorf("ingest row caps must be positive")
	}

	if len(c.API.DefaultYear) != 4 {
		return fmt.Errorf("default year must be a 4-digit year, got %q", c.API.DefaultYear)
	}
	if _, err := strconv.Atoi(c.API.DefaultYear); err != nil {
		return fmt.Errorf("default year must be numeric, got %q", c.API.DefaultYear)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
