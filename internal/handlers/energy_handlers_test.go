package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energy-platform/internal/models"
	"energy-platform/internal/repository"
	"energy-platform/internal/services"
	"energy-platform/pkg/logging"
	"energy-platform/pkg/metrics"
)

// fakeRepo serves canned query results and records the arguments it
// was called with
type fakeRepo struct {
	totals    []*models.BuildingEnergy
	series    []*models.SeriesPoint
	breakdown []*models.EnergyBreakdown

	gotYear      string
	gotYearMonth string
	gotDate      string
	gotPrefix    string
	gotCPE       string
}

func (f *fakeRepo) EnsureSchema(ctx context.Context) error { return nil }
func (f *fakeRepo) DropSchema(ctx context.Context) error   { return nil }
func (f *fakeRepo) ReplaceBuildings(ctx context.Context, b []*models.BuildingMetadata) error {
	return nil
}
func (f *fakeRepo) NewReadingLoader(ctx context.Context) (repository.ReadingLoader, error) {
	return nil, nil
}
func (f *fakeRepo) NewBreakdownLoader(ctx context.Context) (repository.BreakdownLoader, error) {
	return nil, nil
}

func (f *fakeRepo) BuildingTotals(ctx context.Context) ([]*models.BuildingEnergy, error) {
	return f.totals, nil
}

func (f *fakeRepo) BuildingTotalsForYear(ctx context.Context, year string) ([]*models.BuildingEnergy, error) {
	f.gotYear = year
	return f.totals, nil
}

func (f *fakeRepo) MonthlySeries(ctx context.Context, cpe, year string) ([]*models.SeriesPoint, error) {
	f.gotCPE = cpe
	f.gotYear = year
	return f.series, nil
}

func (f *fakeRepo) DailySeries(ctx context.Context, cpe, yearMonth string) ([]*models.SeriesPoint, error) {
	f.gotCPE = cpe
	f.gotYearMonth = yearMonth
	return f.series, nil
}

func (f *fakeRepo) HourlySeries(ctx context.Context, cpe, date string) ([]*models.SeriesPoint, error) {
	f.gotCPE = cpe
	f.gotDate = date
	return f.series, nil
}

func (f *fakeRepo) BreakdownRows(ctx context.Context, prefix string) ([]*models.EnergyBreakdown, error) {
	f.gotPrefix = prefix
	return f.breakdown, nil
}

func (f *fakeRepo) SampleBuildings(ctx context.Context, limit int) ([]*models.BuildingMetadata, error) {
	return nil, nil
}

func (f *fakeRepo) HealthCheck(ctx context.Context) error { return nil }

var testCollector = metrics.NewCollector("energy_platform_handlers_test")

func newTestRouter(repo *fakeRepo) *mux.Router {
	logger := logging.NewStructuredLogger("test", "0.0.0", logging.DebugLevel)
	logger.SetOutput(io.Discard)

	queryService := services.NewQueryService(repo, logger, testCollector)
	handler := NewEnergyHandler(queryService, logger, testCollector, "2021")

	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	return router
}

func doGet(t *testing.T, router *mux.Router, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestGetBuildings(t *testing.T) {
	lat := 40.0
	repo := &fakeRepo{
		totals: []*models.BuildingEnergy{
			{CPE: "B1", Lat: &lat, AnnualEnergy: 8.0},
			{CPE: "B2", AnnualEnergy: 0},
		},
	}
	router := newTestRouter(repo)

	rr := doGet(t, router, "/api/buildings")
	require.Equal(t, http.StatusOK, rr.Code)

	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "B1", got[0]["cpe"])
	assert.Equal(t, 8.0, got[0]["annual_energy"])

	// Zero-reading buildings still appear, with a zero total and null
	// coordinates
	assert.Equal(t, "B2", got[1]["cpe"])
	assert.Equal(t, 0.0, got[1]["annual_energy"])
	assert.Nil(t, got[1]["lat"])
}

func TestGetEnergySeries_Monthly(t *testing.T) {
	repo := &fakeRepo{
		series: []*models.SeriesPoint{{BucketLabel: "2021-03", TotalEnergy: 8.0}},
	}
	router := newTestRouter(repo)

	rr := doGet(t, router, "/api/energy/B1/monthly?year=2021")
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, "B1", repo.gotCPE)
	assert.Equal(t, "2021", repo.gotYear)

	var got []models.SeriesPoint
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "2021-03", got[0].BucketLabel)
	assert.Equal(t, 8.0, got[0].TotalEnergy)
}

func TestGetEnergySeries_DailyPadsMonth(t *testing.T) {
	repo := &fakeRepo{}
	router := newTestRouter(repo)

	rr := doGet(t, router, "/api/energy/B1/daily?year=2021&month=3")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "2021-03", repo.gotYearMonth)
}

func TestGetEnergySeries_HourlyBuildsDate(t *testing.T) {
	repo := &fakeRepo{}
	router := newTestRouter(repo)

	rr := doGet(t, router, "/api/energy/B1/hourly?year=2021&month=3&day=4")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "2021-03-04", repo.gotDate)
}

func TestGetEnergySeries_UnknownPeriodIsBadRequest(t *testing.T) {
	router := newTestRouter(&fakeRepo{})

	rr := doGet(t, router, "/api/energy/B1/weekly?year=2021")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "weekly")
}

func TestGetEnergySeries_MissingParamsAreBadRequests(t *testing.T) {
	router := newTestRouter(&fakeRepo{})

	tests := []struct {
		name string
		url  string
	}{
		{"monthly without year", "/api/energy/B1/monthly"},
		{"daily without month", "/api/energy/B1/daily?year=2021"},
		{"hourly without day", "/api/energy/B1/hourly?year=2021&month=3"},
		{"non-numeric year", "/api/energy/B1/monthly?year=undefined"},
		{"out-of-range month", "/api/energy/B1/daily?year=2021&month=13"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doGet(t, router, tt.url)
			assert.Equal(t, http.StatusBadRequest, rr.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestGetEnergyBreakdown_PrefixPassthrough(t *testing.T) {
	repo := &fakeRepo{
		breakdown: []*models.EnergyBreakdown{{ReadAt: "2021-03-01T00:00:00"}},
	}
	router := newTestRouter(repo)

	rr := doGet(t, router, "/api/energy-breakdown?timestamp=2021-03-01")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "2021-03-01", repo.gotPrefix)
}

func TestGetEnergyBreakdown_NoFilter(t *testing.T) {
	repo := &fakeRepo{}
	router := newTestRouter(repo)

	rr := doGet(t, router, "/api/energy-breakdown")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "", repo.gotPrefix)
	assert.Equal(t, "[]\n", rr.Body.String())
}

func TestGetBuildingsEnergy_DefaultYear(t *testing.T) {
	repo := &fakeRepo{}
	router := newTestRouter(repo)

	rr := doGet(t, router, "/api/buildings-energy")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "2021", repo.gotYear, "absent year should use the configured default")
}

func TestGetBuildingsEnergy_ExplicitYear(t *testing.T) {
	repo := &fakeRepo{}
	router := newTestRouter(repo)

	rr := doGet(t, router, "/api/buildings-energy?year=2020")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "2020", repo.gotYear)
}

func TestGetBuildingsEnergy_BadYear(t *testing.T) {
	router := newTestRouter(&fakeRepo{})

	rr := doGet(t, router, "/api/buildings-energy?year=21")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(&fakeRepo{})

	rr := doGet(t, router, "/health")
	require.Equal(t, http.StatusOK, rr.Code)

	var status map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status["status"])
}
