package models

import (
	"math"

	"energy-platform/internal/normalize"
)

// BuildingMetadata describes one metered building. The cpe code is the
// primary key; rows without one are dropped during ingestion, never stored.
type BuildingMetadata struct {
	CPE         string   `json:"cpe" db:"cpe"`
	Lat         *float64 `json:"lat" db:"lat"`
	Lon         *float64 `json:"lon" db:"lon"`
	TotalArea   *float64 `json:"totalarea" db:"total_area"`
	Name        string   `json:"name" db:"name"`
	FullAddress string   `json:"fulladdress" db:"full_address"`
}

// MeterReading is one (building, timestamp) energy observation.
// ReadAt keeps the source's ISO-style timestamp string; its lexicographic
// layout is what the time-bucketed queries group on.
type MeterReading struct {
	ID           int64   `json:"id" db:"id"`
	CPE          string  `json:"cpe" db:"cpe"`
	ReadAt       string  `json:"timestamp" db:"read_at"`
	ActiveEnergy float64 `json:"active_energy" db:"active_energy"`
}

// EnergyBreakdown is the grid-wide generation mix at one timestamp.
// The two *_total fields are stored as supplied by the source and are
// never recomputed from their components.
type EnergyBreakdown struct {
	ID                int64    `json:"-" db:"id"`
	ReadAt            string   `json:"timestamp" db:"read_at"`
	Biomass           *float64 `json:"biomass" db:"biomass"`
	Hydro             *float64 `json:"hydro" db:"hydro"`
	Solar             *float64 `json:"solar" db:"solar"`
	Wind              *float64 `json:"wind" db:"wind"`
	Geothermal        *float64 `json:"geothermal" db:"geothermal"`
	OtherRenewable    *float64 `json:"other_renewable" db:"other_renewable"`
	RenewableTotal    *float64 `json:"renewable_total" db:"renewable_total"`
	Coal              *float64 `json:"coal" db:"coal"`
	Gas               *float64 `json:"gas" db:"gas"`
	Nuclear           *float64 `json:"nuclear" db:"nuclear"`
	Oil               *float64 `json:"oil" db:"oil"`
	NonrenewableTotal *float64 `json:"nonrenewable_total" db:"nonrenewable_total"`
	PumpedStorage     *float64 `json:"pumped_storage" db:"pumped_storage"`
	Unknown           *float64 `json:"unknown" db:"unknown"`
}

// BuildingEnergy is a building joined with its summed readings,
// returned by /api/buildings and /api/buildings-energy
type BuildingEnergy struct {
	CPE          string   `json:"cpe" db:"cpe"`
	Lat          *float64 `json:"lat" db:"lat"`
	Lon          *float64 `json:"lon" db:"lon"`
	TotalArea    *float64 `json:"totalarea" db:"total_area"`
	Name         string   `json:"name" db:"name"`
	FullAddress  string   `json:"fulladdress" db:"full_address"`
	AnnualEnergy float64  `json:"annual_energy" db:"annual_energy"`
}

// SeriesPoint is one bucket of a time-bucketed energy series
type SeriesPoint struct {
	BucketLabel string  `json:"bucket_label" db:"bucket_label"`
	TotalEnergy float64 `json:"total_energy" db:"total_energy"`
}

// breakdownComponents lists the 14 generation-mix columns in source order
var breakdownComponents = []string{
	"biomass", "hydro", "solar", "wind", "geothermal", "other_renewable",
	"renewable_total", "coal", "gas", "nuclear", "oil",
	"nonrenewable_total", "pumped_storage", "unknown",
}

// BuildingShape describes the building metadata CSV source
func BuildingShape() normalize.Shape {
	return normalize.Shape{
		Columns: []normalize.Column{
			{Name: "cpe", Kind: normalize.TextKind},
			{Name: "lat", Kind: normalize.FloatKind},
			{Name: "lon", Kind: normalize.FloatKind},
			{Name: "totalarea", Kind: normalize.FloatKind},
			{Name: "name", Kind: normalize.TextKind},
			{Name: "fulladdress", Kind: normalize.TextKind},
		},
		Required: "cpe",
	}
}

// ReadingShape describes the meter readings CSV source
func ReadingShape() normalize.Shape {
	return normalize.Shape{
		Columns: []normalize.Column{
			{Name: "cpe", Kind: normalize.TextKind},
			{Name: "timestamp", Kind: normalize.TextKind},
			{Name: "active_energy", Kind: normalize.FloatKind},
		},
		Required: "cpe",
	}
}

// BreakdownShape describes the grid energy-source breakdown CSV source
func BreakdownShape() normalize.Shape {
	cols := make([]normalize.Column, 0, 1+len(breakdownComponents))
	cols = append(cols, normalize.Column{Name: "timestamp", Kind: normalize.TextKind})
	for _, name := range breakdownComponents {
		cols = append(cols, normalize.Column{Name: name, Kind: normalize.FloatKind})
	}

	return normalize.Shape{
		Columns:  cols,
		Required: "timestamp",
	}
}

// BuildingFromRecord converts a normalized metadata record into a
// BuildingMetadata. Unparseable coordinates and area become NULLs.
func BuildingFromRecord(rec normalize.Record) (*BuildingMetadata, error) {
	cpe := rec.Text("cpe")
	if cpe == "" {
		return nil, &ValidationError{
			Field:   "cpe",
			Message: "building code is empty",
		}
	}

	return &BuildingMetadata{
		CPE:         cpe,
		Lat:         floatPtr(rec.Float("lat")),
		Lon:         floatPtr(rec.Float("lon")),
		TotalArea:   floatPtr(rec.Float("totalarea")),
		Name:        rec.Text("name"),
		FullAddress: rec.Text("fulladdress"),
	}, nil
}

// ReadingFromRecord converts a normalized meter row into a MeterReading.
// A reading whose energy value failed coercion is rejected rather than
// stored with a NaN marker.
func ReadingFromRecord(rec normalize.Record) (*MeterReading, error) {
	cpe := rec.Text("cpe")
	if cpe == "" {
		return nil, &ValidationError{
			Field:   "cpe",
			Message: "building code is empty",
		}
	}

	readAt := rec.Text("timestamp")
	if readAt == "" {
		return nil, &ValidationError{
			Field:   "timestamp",
			Message: "reading timestamp is empty",
		}
	}

	energy := rec.Float("active_energy")
	if math.IsNaN(energy) {
		return nil, &ValidationError{
			Field:   "active_energy",
			Message: "active energy value is not numeric",
		}
	}

	return &MeterReading{
		CPE:          cpe,
		ReadAt:       readAt,
		ActiveEnergy: energy,
	}, nil
}

// BreakdownFromRecord converts a normalized breakdown row into an
// EnergyBreakdown. Missing components become NULLs; totals are trusted
// from the source.
func BreakdownFromRecord(rec normalize.Record) (*EnergyBreakdown, error) {
	readAt := rec.Text("timestamp")
	if readAt == "" {
		return nil, &ValidationError{
			Field:   "timestamp",
			Message: "breakdown timestamp is empty",
		}
	}

	return &EnergyBreakdown{
		ReadAt:            readAt,
		Biomass:           floatPtr(rec.Float("biomass")),
		Hydro:             floatPtr(rec.Float("hydro")),
		Solar:             floatPtr(rec.Float("solar")),
		Wind:              floatPtr(rec.Float("wind")),
		Geothermal:        floatPtr(rec.Float("geothermal")),
		OtherRenewable:    floatPtr(rec.Float("other_renewable")),
		RenewableTotal:    floatPtr(rec.Float("renewable_total")),
		Coal:              floatPtr(rec.Float("coal")),
		Gas:               floatPtr(rec.Float("gas")),
		Nuclear:           floatPtr(rec.Float("nuclear")),
		Oil:               floatPtr(rec.Float("oil")),
		NonrenewableTotal: floatPtr(rec.Float("nonrenewable_total")),
		PumpedStorage:     floatPtr(rec.Float("pumped_storage")),
		Unknown:           floatPtr(rec.Float("unknown")),
	}, nil
}

// floatPtr maps the normalizer's NaN missing marker to a NULL-able pointer
func floatPtr(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// ValidationError represents a data validation error on a single row
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
