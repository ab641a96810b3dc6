package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"energy-platform/internal/models"
	"energy-platform/pkg/database"
	"energy-platform/pkg/logging"
	"energy-platform/pkg/metrics"
)

// EnergyRepository provides data access for the energy platform
type EnergyRepository interface {
	// Schema operations
	EnsureSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// Load operations (full refresh)
	ReplaceBuildings(ctx context.Context, buildings []*models.BuildingMetadata) error
	NewReadingLoader(ctx context.Context) (ReadingLoader, error)
	NewBreakdownLoader(ctx context.Context) (BreakdownLoader, error)

	// Aggregation queries
	BuildingTotals(ctx context.Context) ([]*models.BuildingEnergy, error)
	BuildingTotalsForYear(ctx context.Context, year string) ([]*models.BuildingEnergy, error)
	MonthlySeries(ctx context.Context, cpe, year string) ([]*models.SeriesPoint, error)
	DailySeries(ctx context.Context, cpe, yearMonth string) ([]*models.SeriesPoint, error)
	HourlySeries(ctx context.Context, cpe, date string) ([]*models.SeriesPoint, error)
	BreakdownRows(ctx context.Context, prefix string) ([]*models.EnergyBreakdown, error)
	SampleBuildings(ctx context.Context, limit int) ([]*models.BuildingMetadata, error)

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// ReadingLoader streams meter readings into a transaction that cleared
// the relation when the loader was created. Readers see either the old
// or the new dataset, never a partially cleared one.
type ReadingLoader interface {
	Add(ctx context.Context, reading *models.MeterReading) error
	Commit(ctx context.Context) error
	Rollback() error
}

// BreakdownLoader is the breakdown counterpart of ReadingLoader
type BreakdownLoader interface {
	Add(ctx context.Context, row *models.EnergyBreakdown) error
	Commit(ctx context.Context) error
	Rollback() error
}

// energyRepository implements EnergyRepository
type energyRepository struct {
	db        *database.PostgresDB
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
	batchSize int
}

// NewEnergyRepository creates a new energy repository
func NewEnergyRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector, batchSize int) EnergyRepository {
	return &energyRepository{
		db:        db,
		logger:    logger,
		metrics:   metricsCollector,
		batchSize: batchSize,
	}
}

// schemaStatements provision the three relations and their indexes.
// Each statement is idempotent, so EnsureSchema is safe to call on
// every startup.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS buildings (
		cpe          TEXT PRIMARY KEY,
		lat          DOUBLE PRECISION,
		lon          DOUBLE PRECISION,
		total_area   DOUBLE PRECISION,
		name         TEXT NOT NULL DEFAULT '',
		full_address TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS meter_readings (
		id            BIGSERIAL PRIMARY KEY,
		cpe           TEXT NOT NULL,
		read_at       TEXT NOT NULL,
		active_energy DOUBLE PRECISION NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_meter_readings_cpe ON meter_readings (cpe)`,
	`CREATE INDEX IF NOT EXISTS idx_meter_readings_read_at ON meter_readings (read_at)`,
	`CREATE TABLE IF NOT EXISTS energy_breakdown (
		id                 BIGSERIAL PRIMARY KEY,
		read_at            TEXT NOT NULL,
		biomass            DOUBLE PRECISION,
		hydro              DOUBLE PRECISION,
		solar              DOUBLE PRECISION,
		wind               DOUBLE PRECISION,
		geothermal         DOUBLE PRECISION,
		other_renewable    DOUBLE PRECISION,
		renewable_total    DOUBLE PRECISION,
		coal               DOUBLE PRECISION,
		gas                DOUBLE PRECISION,
		nuclear            DOUBLE PRECISION,
		oil                DOUBLE PRECISION,
		nonrenewable_total DOUBLE PRECISION,
		pumped_storage     DOUBLE PRECISION,
		unknown            DOUBLE PRECISION
	)`,
	`CREATE INDEX IF NOT EXISTS idx_energy_breakdown_read_at ON energy_breakdown (read_at)`,
}

// EnsureSchema creates the three relations and their indexes if absent
func (r *energyRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := r.db.ExecContext(ctx, "ensure_schema", stmt); err != nil {
			return fmt.Errorf("failed to provision schema: %w", err)
		}
	}

	r.logger.Info(ctx, "[SCHEMA_READY] Relations and indexes provisioned", logging.Fields{
		"relations": []string{"buildings", "meter_readings", "energy_breakdown"},
	})

	return nil
}

// DropSchema removes the three relations. Used by the migrate command only.
func (r *energyRepository) DropSchema(ctx context.Context) error {
	for _, table := range []string{"meter_readings", "energy_breakdown", "buildings"} {
		if _, err := r.db.ExecContext(ctx, "drop_schema", "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("failed to drop %s: %w", table, err)
		}
	}

	return nil
}

// ReplaceBuildings clears the buildings relation and inserts the given
// set in a single transaction. Insert-or-replace keyed on cpe keeps a
// re-run of the load free of duplicate-key errors.
func (r *energyRepository) ReplaceBuildings(ctx context.Context, buildings []*models.BuildingMetadata) error {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin buildings refresh: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM buildings"); err != nil {
		return fmt.Errorf("failed to clear buildings: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO buildings (cpe, lat, lon, total_area, name, full_address)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (cpe) DO UPDATE SET
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon,
			total_area = EXCLUDED.total_area,
			name = EXCLUDED.name,
			full_address = EXCLUDED.full_address
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare buildings insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range buildings {
		if _, err := stmt.ExecContext(ctx, b.CPE, b.Lat, b.Lon, b.TotalArea, b.Name, b.FullAddress); err != nil {
			return fmt.Errorf("failed to insert building %s: %w", b.CPE, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit buildings refresh: %w", err)
	}

	r.metrics.RecordIngestedRows("buildings", len(buildings))
	r.logger.Debug(ctx, "[REPO_BUILDINGS_REPLACED] Buildings relation refreshed", logging.Fields{
		"count": len(buildings),
	})

	return nil
}

// readingLoader implements ReadingLoader over a single transaction
type readingLoader struct {
	repo  *energyRepository
	tx    *sqlx.Tx
	batch []*models.MeterReading
}

// NewReadingLoader begins a readings refresh: the relation is cleared
// inside the loader's transaction and rows are inserted in batches.
func (r *energyRepository) NewReadingLoader(ctx context.Context) (ReadingLoader, error) {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin readings refresh: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM meter_readings"); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to clear meter readings: %w", err)
	}

	return &readingLoader{
		repo:  r,
		tx:    tx,
		batch: make([]*models.MeterReading, 0, r.batchSize),
	}, nil
}

func (l *readingLoader) Add(ctx context.Context, reading *models.MeterReading) error {
	l.batch = append(l.batch, reading)
	if len(l.batch) >= l.repo.batchSize {
		return l.flush(ctx)
	}
	return nil
}

func (l *readingLoader) flush(ctx context.Context) error {
	if len(l.batch) == 0 {
		return nil
	}

	stmt, err := l.tx.PrepareContext(ctx, `
		INSERT INTO meter_readings (cpe, read_at, active_energy)
		VALUES ($1, $2, $3)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare readings insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range l.batch {
		if _, err := stmt.ExecContext(ctx, m.CPE, m.ReadAt, m.ActiveEnergy); err != nil {
			return fmt.Errorf("failed to insert reading: %w", err)
		}
	}

	l.repo.metrics.IngestBatchSize.Observe(float64(len(l.batch)))
	l.repo.metrics.RecordIngestedRows("meter_readings", len(l.batch))
	l.batch = l.batch[:0]

	return nil
}

func (l *readingLoader) Commit(ctx context.Context) error {
	if err := l.flush(ctx); err != nil {
		l.tx.Rollback()
		return err
	}
	if err := l.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit readings refresh: %w", err)
	}
	return nil
}

func (l *readingLoader) Rollback() error {
	return l.tx.Rollback()
}

// breakdownLoader implements BreakdownLoader over a single transaction
type breakdownLoader struct {
	repo  *energyRepository
	tx    *sqlx.Tx
	batch []*models.EnergyBreakdown
}

// NewBreakdownLoader begins a breakdown refresh
func (r *energyRepository) NewBreakdownLoader(ctx context.Context) (BreakdownLoader, error) {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin breakdown refresh: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM energy_breakdown"); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to clear energy breakdown: %w", err)
	}

	return &breakdownLoader{
		repo:  r,
		tx:    tx,
		batch: make([]*models.EnergyBreakdown, 0, r.batchSize),
	}, nil
}

func (l *breakdownLoader) Add(ctx context.Context, row *models.EnergyBreakdown) error {
	l.batch = append(l.batch, row)
	if len(l.batch) >= l.repo.batchSize {
		return l.flush(ctx)
	}
	return nil
}

func (l *breakdownLoader) flush(ctx context.Context) error {
	if len(l.batch) == 0 {
		return nil
	}

	stmt, err := l.tx.PrepareContext(ctx, `
		INSERT INTO energy_breakdown (
			read_at, biomass, hydro, solar, wind, geothermal,
			other_renewable, renewable_total, coal, gas, nuclear, oil,
			nonrenewable_total, pumped_storage, unknown
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare breakdown insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range l.batch {
		_, err := stmt.ExecContext(ctx,
			b.ReadAt,
			b.Biomass, b.Hydro, b.Solar, b.Wind, b.Geothermal,
			b.OtherRenewable, b.RenewableTotal,
			b.Coal, b.Gas, b.Nuclear, b.Oil,
			b.NonrenewableTotal, b.PumpedStorage, b.Unknown,
		)
		if err != nil {
			return fmt.Errorf("failed to insert breakdown row: %w", err)
		}
	}

	l.repo.metrics.IngestBatchSize.Observe(float64(len(l.batch)))
	l.repo.metrics.RecordIngestedRows("energy_breakdown", len(l.batch))
	l.batch = l.batch[:0]

	return nil
}

func (l *breakdownLoader) Commit(ctx context.Context) error {
	if err := l.flush(ctx); err != nil {
		l.tx.Rollback()
		return err
	}
	if err := l.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit breakdown refresh: %w", err)
	}
	return nil
}

func (l *breakdownLoader) Rollback() error {
	return l.tx.Rollback()
}

// BuildingTotals sums each building's readings across its whole history.
// The join is outer so buildings with no readings appear with a zero total.
func (r *energyRepository) BuildingTotals(ctx context.Context) ([]*models.BuildingEnergy, error) {
	query := `
		SELECT b.cpe, b.lat, b.lon, b.total_area, b.name, b.full_address,
		       COALESCE(SUM(m.active_energy), 0) AS annual_energy
		FROM buildings b
		LEFT JOIN meter_readings m ON m.cpe = b.cpe
		GROUP BY b.cpe, b.lat, b.lon, b.total_area, b.name, b.full_address
		ORDER BY annual_energy DESC
	`

	var totals []*models.BuildingEnergy
	if err := r.db.SelectContext(ctx, "building_totals", &totals, query); err != nil {
		return nil, fmt.Errorf("failed to get building totals: %w", err)
	}

	return totals, nil
}

// BuildingTotalsForYear is BuildingTotals restricted to readings whose
// timestamp falls in the given calendar year. The year filter lives in
// the join condition so the join stays outer.
func (r *energyRepository) BuildingTotalsForYear(ctx context.Context, year string) ([]*models.BuildingEnergy, error) {
	query := `
		SELECT b.cpe, b.lat, b.lon, b.total_area, b.name, b.full_address,
		       COALESCE(SUM(m.active_energy), 0) AS annual_energy
		FROM buildings b
		LEFT JOIN meter_readings m
		       ON m.cpe = b.cpe AND substr(m.read_at, 1, 4) = $1
		GROUP BY b.cpe, b.lat, b.lon, b.total_area, b.name, b.full_address
		ORDER BY annual_energy DESC
	`

	var totals []*models.BuildingEnergy
	if err := r.db.SelectContext(ctx, "building_totals_year", &totals, query, year); err != nil {
		return nil, fmt.Errorf("failed to get building totals for year %s: %w", year, err)
	}

	return totals, nil
}

// MonthlySeries groups one building's readings within a year by
// calendar month. Bucket labels are YYYY-MM, chronological.
func (r *energyRepository) MonthlySeries(ctx context.Context, cpe, year string) ([]*models.SeriesPoint, error) {
	query := `
		SELECT substr(read_at, 1, 7) AS bucket_label,
		       SUM(active_energy) AS total_energy
		FROM meter_readings
		WHERE cpe = $1 AND substr(read_at, 1, 4) = $2
		GROUP BY bucket_label
		ORDER BY bucket_label
	`

	var series []*models.SeriesPoint
	if err := r.db.SelectContext(ctx, "monthly_series", &series, query, cpe, year); err != nil {
		return nil, fmt.Errorf("failed to get monthly series: %w", err)
	}

	return series, nil
}

// DailySeries groups one building's readings within a year-month by
// calendar day. Bucket labels are YYYY-MM-DD, chronological.
func (r *energyRepository) DailySeries(ctx context.Context, cpe, yearMonth string) ([]*models.SeriesPoint, error) {
	query := `
		SELECT substr(read_at, 1, 10) AS bucket_label,
		       SUM(active_energy) AS total_energy
		FROM meter_readings
		WHERE cpe = $1 AND substr(read_at, 1, 7) = $2
		GROUP BY bucket_label
		ORDER BY bucket_label
	`

	var series []*models.SeriesPoint
	if err := r.db.SelectContext(ctx, "daily_series", &series, query, cpe, yearMonth); err != nil {
		return nil, fmt.Errorf("failed to get daily series: %w", err)
	}

	return series, nil
}

// HourlySeries groups one building's readings within a calendar day by
// hour of day. Bucket labels are zero-padded HH:00, chronological.
func (r *energyRepository) HourlySeries(ctx context.Context, cpe, date string) ([]*models.SeriesPoint, error) {
	query := `
		SELECT substr(read_at, 12, 2) || ':00' AS bucket_label,
		       SUM(active_energy) AS total_energy
		FROM meter_readings
		WHERE cpe = $1 AND substr(read_at, 1, 10) = $2
		GROUP BY bucket_label
		ORDER BY bucket_label
	`

	var series []*models.SeriesPoint
	if err := r.db.SelectContext(ctx, "hourly_series", &series, query, cpe, date); err != nil {
		return nil, fmt.Errorf("failed to get hourly series: %w", err)
	}

	return series, nil
}

// BreakdownRows returns breakdown rows optionally filtered by a
// timestamp prefix, ordered by timestamp and capped to 24 rows (one
// day's worth of hourly breakdown).
func (r *energyRepository) BreakdownRows(ctx context.Context, prefix string) ([]*models.EnergyBreakdown, error) {
	query := `
		SELECT id, read_at, biomass, hydro, solar, wind, geothermal,
		       other_renewable, renewable_total, coal, gas, nuclear, oil,
		       nonrenewable_total, pumped_storage, unknown
		FROM energy_breakdown
	`
	args := []interface{}{}

	if prefix != "" {
		query += " WHERE read_at LIKE $1 || '%'"
		args = append(args, prefix)
	}

	query += " ORDER BY read_at LIMIT 24"

	var rows []*models.EnergyBreakdown
	if err := r.db.SelectContext(ctx, "breakdown_rows", &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get breakdown rows: %w", err)
	}

	return rows, nil
}

// SampleBuildings returns the first few metadata rows for diagnostics
func (r *energyRepository) SampleBuildings(ctx context.Context, limit int) ([]*models.BuildingMetadata, error) {
	query := `
		SELECT cpe, lat, lon, total_area, name, full_address
		FROM buildings
		ORDER BY cpe
		LIMIT $1
	`

	var buildings []*models.BuildingMetadata
	if err := r.db.SelectContext(ctx, "sample_buildings", &buildings, query, limit); err != nil {
		return nil, fmt.Errorf("failed to sample buildings: %w", err)
	}

	return buildings, nil
}

// HealthCheck performs a repository health check
func (r *energyRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
