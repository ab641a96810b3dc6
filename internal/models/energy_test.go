package models

import (
	"io"
	"strings"
	"testing"

	"energy-platform/internal/normalize"
	"energy-platform/pkg/logging"
)

func quietLogger() *logging.StructuredLogger {
	l := logging.NewStructuredLogger("test", "0.0.0", logging.DebugLevel)
	l.SetOutput(io.Discard)
	return l
}

// recordFrom parses a single CSV data row through the normalizer,
// the only way records are produced in production
func recordFrom(t *testing.T, shape normalize.Shape, header, row string) normalize.Record {
	t.Helper()

	r := normalize.NewReader(strings.NewReader(header+"\n"+row+"\n"), shape, quietLogger())
	rec, err := r.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	return rec
}

func TestBuildingFromRecord(t *testing.T) {
	header := "cpe,lat,lon,totalarea,name,fulladdress"

	tests := []struct {
		name        string
		row         string
		wantErr     bool
		checkValues func(*testing.T, *BuildingMetadata)
	}{
		{
			name: "valid row with all values",
			row:  `B1,40.0,-73.9,1000,"A","1 Main St"`,
			checkValues: func(t *testing.T, b *BuildingMetadata) {
				if b.CPE != "B1" {
					t.Errorf("CPE = %v, want B1", b.CPE)
				}
				if b.Lat == nil || *b.Lat != 40.0 {
					t.Errorf("Lat = %v, want 40.0", b.Lat)
				}
				if b.Lon == nil || *b.Lon != -73.9 {
					t.Errorf("Lon = %v, want -73.9", b.Lon)
				}
				if b.TotalArea == nil || *b.TotalArea != 1000 {
					t.Errorf("TotalArea = %v, want 1000", b.TotalArea)
				}
				if b.Name != "A" {
					t.Errorf("Name = %v, want A", b.Name)
				}
				if b.FullAddress != "1 Main St" {
					t.Errorf("FullAddress = %v, want 1 Main St", b.FullAddress)
				}
			},
		},
		{
			name: "unparseable coordinates become nil",
			row:  "B2,north,west,500,B,2 Main St",
			checkValues: func(t *testing.T, b *BuildingMetadata) {
				if b.Lat != nil {
					t.Errorf("Lat = %v, want nil", *b.Lat)
				}
				if b.Lon != nil {
					t.Errorf("Lon = %v, want nil", *b.Lon)
				}
				if b.TotalArea == nil || *b.TotalArea != 500 {
					t.Errorf("TotalArea = %v, want 500", b.TotalArea)
				}
			},
		},
		{
			name: "empty coordinates become nil",
			row:  "B3,,,250,C,3 Main St",
			checkValues: func(t *testing.T, b *BuildingMetadata) {
				if b.Lat != nil || b.Lon != nil {
					t.Error("empty lat/lon should be nil")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := recordFrom(t, BuildingShape(), header, tt.row)

			b, err := BuildingFromRecord(rec)
			if (err != nil) != tt.wantErr {
				t.Errorf("BuildingFromRecord() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && tt.checkValues != nil {
				tt.checkValues(t, b)
			}
		})
	}
}

func TestReadingFromRecord(t *testing.T) {
	header := "cpe,timestamp,active_energy"

	tests := []struct {
		name        string
		row         string
		wantErr     bool
		checkValues func(*testing.T, *MeterReading)
	}{
		{
			name: "valid reading",
			row:  "B1,2021-03-01T00:00:00,5.0",
			checkValues: func(t *testing.T, m *MeterReading) {
				if m.CPE != "B1" {
					t.Errorf("CPE = %v, want B1", m.CPE)
				}
				if m.ReadAt != "2021-03-01T00:00:00" {
					t.Errorf("ReadAt = %v", m.ReadAt)
				}
				if m.ActiveEnergy != 5.0 {
					t.Errorf("ActiveEnergy = %v, want 5.0", m.ActiveEnergy)
				}
			},
		},
		{
			name:    "non-numeric energy is rejected",
			row:     "B1,2021-03-01T00:00:00,broken",
			wantErr: true,
		},
		{
			name:    "empty energy is rejected",
			row:     "B1,2021-03-01T00:00:00,",
			wantErr: true,
		},
		{
			name:    "empty timestamp is rejected",
			row:     "B1,,5.0",
			wantErr: true,
		},
		{
			name: "zero energy is valid",
			row:  "B1,2021-03-01T00:00:00,0",
			checkValues: func(t *testing.T, m *MeterReading) {
				if m.ActiveEnergy != 0 {
					t.Errorf("ActiveEnergy = %v, want 0", m.ActiveEnergy)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := recordFrom(t, ReadingShape(), header, tt.row)

			m, err := ReadingFromRecord(rec)
			if (err != nil) != tt.wantErr {
				t.Errorf("ReadingFromRecord() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && tt.checkValues != nil {
				tt.checkValues(t, m)
			}
		})
	}
}

func TestBreakdownFromRecord(t *testing.T) {
	header := "timestamp,biomass,hydro,solar,wind,geothermal,other_renewable," +
		"renewable_total,coal,gas,nuclear,oil,nonrenewable_total,pumped_storage,unknown"

	t.Run("totals stored as supplied, not recomputed", func(t *testing.T) {
		// renewable_total deliberately disagrees with its components
		row := "2021-03-01T00:00:00,1,2,3,4,5,6,999,7,8,9,10,888,11,12"
		rec := recordFrom(t, BreakdownShape(), header, row)

		b, err := BreakdownFromRecord(rec)
		if err != nil {
			t.Fatalf("BreakdownFromRecord() error = %v", err)
		}

		if b.RenewableTotal == nil || *b.RenewableTotal != 999 {
			t.Errorf("RenewableTotal = %v, want 999 as supplied", b.RenewableTotal)
		}
		if b.NonrenewableTotal == nil || *b.NonrenewableTotal != 888 {
			t.Errorf("NonrenewableTotal = %v, want 888 as supplied", b.NonrenewableTotal)
		}
	})

	t.Run("missing components become nil", func(t *testing.T) {
		row := "2021-03-01T00:00:00,1,,3,4,5,6,19,7,8,9,10,34,11,12"
		rec := recordFrom(t, BreakdownShape(), header, row)

		b, err := BreakdownFromRecord(rec)
		if err != nil {
			t.Fatalf("BreakdownFromRecord() error = %v", err)
		}

		if b.Hydro != nil {
			t.Errorf("Hydro = %v, want nil", *b.Hydro)
		}
		if b.Biomass == nil || *b.Biomass != 1 {
			t.Errorf("Biomass = %v, want 1", b.Biomass)
		}
	})
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{
		Field:   "cpe",
		Message: "building code is empty",
	}

	if err.Error() != "building code is empty" {
		t.Errorf("Error() = %v", err.Error())
	}

	if err.IsTransient() {
		t.Error("ValidationError should not be transient")
	}
}
