package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"energy-platform/internal/config"
	"energy-platform/internal/models"
	"energy-platform/internal/normalize"
	"energy-platform/internal/repository"
	"energy-platform/pkg/logging"
	"energy-platform/pkg/metrics"
)

// IngestionService performs full-refresh loads of the three CSV sources
type IngestionService struct {
	repo    repository.EnergyRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	cfg     config.IngestConfig
}

// Sources names the three optional CSV inputs of a load
type Sources struct {
	BuildingsFile string
	ReadingsFile  string
	BreakdownFile string
}

// SourceResult contains per-source load statistics
type SourceResult struct {
	RowsRead     int
	RowsIngested int
	RowsSkipped  int
}

// LoadResult contains statistics for a whole ingestion run
type LoadResult struct {
	RunID     string
	Buildings SourceResult
	Readings  SourceResult
	Breakdown SourceResult
	Duration  time.Duration
	Errors    []string
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(repo repository.EnergyRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector, cfg config.IngestConfig) *IngestionService {
	return &IngestionService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
		cfg:     cfg,
	}
}

// LoadAll runs a full refresh of all three relations. Every relation is
// cleared even when its source file is absent; a missing file only skips
// the repopulation. A store failure aborts that source's load and is
// reported in the result; remaining sources are still attempted.
func (s *IngestionService) LoadAll(ctx context.Context, sources Sources) *LoadResult {
	startTime := time.Now()

	result := &LoadResult{
		RunID:  uuid.NewString(),
		Errors: make([]string, 0),
	}
	ctx = logging.WithRunID(ctx, result.RunID)

	s.logger.Info(ctx, "[LOAD_START] Starting full-refresh load", logging.Fields{
		"buildings_file":    sources.BuildingsFile,
		"readings_file":     sources.ReadingsFile,
		"breakdown_file":    sources.BreakdownFile,
		"reading_row_cap":   s.cfg.ReadingRowCap,
		"breakdown_row_cap": s.cfg.BreakdownRowCap,
	})

	if err := s.loadBuildings(ctx, sources.BuildingsFile, &result.Buildings); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("buildings: %v", err))
		s.logger.Error(ctx, "[LOAD_SOURCE_ERROR] Buildings load failed", logging.Fields{
			"file": sources.BuildingsFile,
		}, err)
	}

	if err := s.loadReadings(ctx, sources.ReadingsFile, &result.Readings); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("meter readings: %v", err))
		s.logger.Error(ctx, "[LOAD_SOURCE_ERROR] Meter readings load failed", logging.Fields{
			"file": sources.ReadingsFile,
		}, err)
	}

	if err := s.loadBreakdown(ctx, sources.BreakdownFile, &result.Breakdown); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("energy breakdown: %v", err))
		s.logger.Error(ctx, "[LOAD_SOURCE_ERROR] Energy breakdown load failed", logging.Fields{
			"file": sources.BreakdownFile,
		}, err)
	}

	result.Duration = time.Since(startTime)

	s.logger.Info(ctx, "[LOAD_COMPLETE] Full-refresh load completed", logging.Fields{
		"buildings_ingested": result.Buildings.RowsIngested,
		"readings_ingested":  result.Readings.RowsIngested,
		"breakdown_ingested": result.Breakdown.RowsIngested,
		"rows_skipped":       result.Buildings.RowsSkipped + result.Readings.RowsSkipped + result.Breakdown.RowsSkipped,
		"duration_seconds":   result.Duration.Seconds(),
		"error_count":        len(result.Errors),
	})

	return result
}

// loadBuildings reads the metadata source eagerly (the set is small) and
// replaces the buildings relation wholesale
func (s *IngestionService) loadBuildings(ctx context.Context, path string, res *SourceResult) error {
	timer := time.Now()
	defer func() {
		s.metrics.IngestDuration.WithLabelValues("buildings").Observe(time.Since(timer).Seconds())
	}()

	file, err := os.Open(path)
	if os.IsNotExist(err) {
		s.logger.Info(ctx, "[LOAD_SOURCE_ABSENT] Buildings source missing, clearing relation only", logging.Fields{
			"file": path,
		})
		return s.repo.ReplaceBuildings(ctx, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to open buildings source: %w", err)
	}
	defer file.Close()

	reader := normalize.NewReader(file, models.BuildingShape(), s.logger)

	var buildings []*models.BuildingMetadata
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("buildings stream failed: %w", err)
		}

		building, err := models.BuildingFromRecord(rec)
		if err != nil {
			res.RowsSkipped++
			s.metrics.RecordSkippedRow("buildings", "validation")
			s.logger.Warn(ctx, "[LOAD_ROW_SKIPPED] Invalid building row", logging.Fields{
				"reason": err.Error(),
			})
			continue
		}

		buildings = append(buildings, building)
	}

	counts := reader.Counts()
	res.RowsRead = counts.RowsRead
	res.RowsSkipped += counts.RowsSkipped
	res.RowsIngested = len(buildings)

	if err := s.repo.ReplaceBuildings(ctx, buildings); err != nil {
		res.RowsIngested = 0
		return err
	}

	s.logger.Info(ctx, "[LOAD_SOURCE_COMPLETE] Buildings loaded", logging.Fields{
		"rows_read":     res.RowsRead,
		"rows_ingested": res.RowsIngested,
		"rows_skipped":  res.RowsSkipped,
	})

	return nil
}

// loadReadings streams the meter readings source through the normalizer
// into a transactional loader, stopping at the configured row cap
func (s *IngestionService) loadReadings(ctx context.Context, path string, res *SourceResult) error {
	timer := time.Now()
	defer func() {
		s.metrics.IngestDuration.WithLabelValues("meter_readings").Observe(time.Since(timer).Seconds())
	}()

	loader, err := s.repo.NewReadingLoader(ctx)
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if os.IsNotExist(err) {
		s.logger.Info(ctx, "[LOAD_SOURCE_ABSENT] Readings source missing, clearing relation only", logging.Fields{
			"file": path,
		})
		return loader.Commit(ctx)
	}
	if err != nil {
		loader.Rollback()
		return fmt.Errorf("failed to open readings source: %w", err)
	}
	defer file.Close()

	reader := normalize.NewReader(file, models.ReadingShape(), s.logger)

	for res.RowsIngested < s.cfg.ReadingRowCap {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			loader.Rollback()
			return fmt.Errorf("readings stream failed: %w", err)
		}

		reading, err := models.ReadingFromRecord(rec)
		if err != nil {
			res.RowsSkipped++
			s.metrics.RecordSkippedRow("meter_readings", "validation")
			s.logger.Warn(ctx, "[LOAD_ROW_SKIPPED] Invalid meter reading", logging.Fields{
				"reason": err.Error(),
			})
			continue
		}

		if err := loader.Add(ctx, reading); err != nil {
			loader.Rollback()
			return err
		}
		res.RowsIngested++
	}

	// Rows past the cap are deliberately not ingested; the source
	// stream is abandoned here rather than read to the end.
	if res.RowsIngested >= s.cfg.ReadingRowCap {
		s.metrics.RecordCapReached("meter_readings")
		s.logger.Info(ctx, "[LOAD_ROW_CAP] Reading row cap reached", logging.Fields{
			"cap": s.cfg.ReadingRowCap,
		})
	}

	if err := loader.Commit(ctx); err != nil {
		res.RowsIngested = 0
		return err
	}

	counts := reader.Counts()
	res.RowsRead = counts.RowsRead
	res.RowsSkipped += counts.RowsSkipped

	s.logger.Info(ctx, "[LOAD_SOURCE_COMPLETE] Meter readings loaded", logging.Fields{
		"rows_read":     res.RowsRead,
		"rows_ingested": res.RowsIngested,
		"rows_skipped":  res.RowsSkipped,
	})

	return nil
}

// loadBreakdown streams the grid breakdown source, capped like readings
func (s *IngestionService) loadBreakdown(ctx context.Context, path string, res *SourceResult) error {
	timer := time.Now()
	defer func() {
		s.metrics.IngestDuration.WithLabelValues("energy_breakdown").Observe(time.Since(timer).Seconds())
	}()

	loader, err := s.repo.NewBreakdownLoader(ctx)
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if os.IsNotExist(err) {
		s.logger.Info(ctx, "[LOAD_SOURCE_ABSENT] Breakdown source missing, clearing relation only", logging.Fields{
			"file": path,
		})
		return loader.Commit(ctx)
	}
	if err != nil {
		loader.Rollback()
		return fmt.Errorf("failed to open breakdown source: %w", err)
	}
	defer file.Close()

	reader := normalize.NewReader(file, models.BreakdownShape(), s.logger)

	for res.RowsIngested < s.cfg.BreakdownRowCap {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			loader.Rollback()
			return fmt.Errorf("breakdown stream failed: %w", err)
		}

		row, err := models.BreakdownFromRecord(rec)
		if err != nil {
			res.RowsSkipped++
			s.metrics.RecordSkippedRow("energy_breakdown", "validation")
			s.logger.Warn(ctx, "[LOAD_ROW_SKIPPED] Invalid breakdown row", logging.Fields{
				"reason": err.Error(),
			})
			continue
		}

		if err := loader.Add(ctx, row); err != nil {
			loader.Rollback()
			return err
		}
		res.RowsIngested++
	}

	if res.RowsIngested >= s.cfg.BreakdownRowCap {
		s.metrics.RecordCapReached("energy_breakdown")
		s.logger.Info(ctx, "[LOAD_ROW_CAP] Breakdown row cap reached", logging.Fields{
			"cap": s.cfg.BreakdownRowCap,
		})
	}

	if err := loader.Commit(ctx); err != nil {
		res.RowsIngested = 0
		return err
	}

	counts := reader.Counts()
	res.RowsRead = counts.RowsRead
	res.RowsSkipped += counts.RowsSkipped

	s.logger.Info(ctx, "[LOAD_SOURCE_COMPLETE] Energy breakdown loaded", logging.Fields{
		"rows_read":     res.RowsRead,
		"rows_ingested": res.RowsIngested,
		"rows_skipped":  res.RowsSkipped,
	})

	return nil
}
