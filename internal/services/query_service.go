package services

import (
	"context"

	"energy-platform/internal/models"
	"energy-platform/internal/repository"
	"energy-platform/pkg/logging"
	"energy-platform/pkg/metrics"
)

// QueryService exposes the read-only aggregation queries. It is
// stateless relative to the store; every call re-queries current
// relation contents.
type QueryService struct {
	repo    repository.EnergyRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewQueryService creates a new query service
func NewQueryService(repo repository.EnergyRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *QueryService {
	return &QueryService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// BuildingTotals returns every building with its lifetime energy sum,
// highest consumers first
func (s *QueryService) BuildingTotals(ctx context.Context) ([]*models.BuildingEnergy, error) {
	return s.repo.BuildingTotals(ctx)
}

// BuildingTotalsForYear returns per-building sums restricted to a year
func (s *QueryService) BuildingTotalsForYear(ctx context.Context, year string) ([]*models.BuildingEnergy, error) {
	return s.repo.BuildingTotalsForYear(ctx, year)
}

// MonthlySeries returns a building's monthly energy sums for a year
func (s *QueryService) MonthlySeries(ctx context.Context, cpe, year string) ([]*models.SeriesPoint, error) {
	return s.repo.MonthlySeries(ctx, cpe, year)
}

// DailySeries returns a building's daily energy sums for a year-month
func (s *QueryService) DailySeries(ctx context.Context, cpe, yearMonth string) ([]*models.SeriesPoint, error) {
	return s.repo.DailySeries(ctx, cpe, yearMonth)
}

// HourlySeries returns a building's hourly energy sums for a date
func (s *QueryService) HourlySeries(ctx context.Context, cpe, date string) ([]*models.SeriesPoint, error) {
	return s.repo.HourlySeries(ctx, cpe, date)
}

// BreakdownRows returns up to 24 grid breakdown rows, optionally
// filtered by a timestamp prefix
func (s *QueryService) BreakdownRows(ctx context.Context, prefix string) ([]*models.EnergyBreakdown, error) {
	return s.repo.BreakdownRows(ctx, prefix)
}

// SampleBuildings returns a small metadata sample for diagnostics
func (s *QueryService) SampleBuildings(ctx context.Context, limit int) ([]*models.BuildingMetadata, error) {
	return s.repo.SampleBuildings(ctx, limit)
}
