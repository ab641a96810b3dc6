package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"energy-platform/internal/models"
	"energy-platform/internal/services"
	"energy-platform/pkg/logging"
	"energy-platform/pkg/metrics"
)

// EnergyHandler handles the dashboard query API endpoints
type EnergyHandler struct {
	queryService *services.QueryService
	logger       *logging.StructuredLogger
	metrics      *metrics.Collector
	defaultYear  string
}

// NewEnergyHandler creates a new energy handler. defaultYear is the
// documented fallback for /api/buildings-energy when no year is given.
func NewEnergyHandler(
	queryService *services.QueryService,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
	defaultYear string,
) *EnergyHandler {
	return &EnergyHandler{
		queryService: queryService,
		logger:       logger,
		metrics:      metricsCollector,
		defaultYear:  defaultYear,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// GetBuildings handles GET /api/buildings
func (h *EnergyHandler) GetBuildings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues("/api/buildings").Observe(time.Since(startTime).Seconds())
	}()

	totals, err := h.queryService.BuildingTotals(ctx)
	if err != nil {
		h.logger.Error(ctx, "[API_BUILDINGS_ERROR] Failed to get building totals", logging.Fields{}, err)
		h.metrics.RecordAPIError("internal_error", "/api/buildings")
		h.sendError(w, r, "failed to retrieve building totals", http.StatusInternalServerError)
		return
	}

	if totals == nil {
		totals = []*models.BuildingEnergy{}
	}

	h.metrics.RecordAPIRequest("/api/buildings", "GET", "200")
	h.sendJSON(w, totals, http.StatusOK)
}

// GetEnergySeries handles GET /api/energy/{cpe}/{period}.
// period selects the bucket granularity; the required query parameters
// depend on it: monthly needs year, daily needs year and month, hourly
// needs year, month, and day. Missing or malformed parameters are
// client errors, never silently substituted.
func (h *EnergyHandler) GetEnergySeries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues("/api/energy").Observe(time.Since(startTime).Seconds())
	}()

	vars := mux.Vars(r)
	cpe := vars["cpe"]
	period := vars["period"]

	q := r.URL.Query()

	var (
		series []*models.SeriesPoint
		err    error
	)

	switch period {
	case "monthly":
		year, perr := parseYear(q.Get("year"))
		if perr != nil {
			h.sendError(w, r, perr.Error(), http.StatusBadRequest)
			return
		}
		series, err = h.queryService.MonthlySeries(ctx, cpe, year)

	case "daily":
		year, perr := parseYear(q.Get("year"))
		if perr != nil {
			h.sendError(w, r, perr.Error(), http.StatusBadRequest)
			return
		}
		month, perr := parseDatePart(q.Get("month"), "month", 1, 12)
		if perr != nil {
			h.sendError(w, r, perr.Error(), http.StatusBadRequest)
			return
		}
		series, err = h.queryService.DailySeries(ctx, cpe, year+"-"+month)

	case "hourly":
		year, perr := parseYear(q.Get("year"))
		if perr != nil {
			h.sendError(w, r, perr.Error(), http.StatusBadRequest)
			return
		}
		month, perr := parseDatePart(q.Get("month"), "month", 1, 12)
		if perr != nil {
			h.sendError(w, r, perr.Error(), http.StatusBadRequest)
			return
		}
		day, perr := parseDatePart(q.Get("day"), "day", 1, 31)
		if perr != nil {
			h.sendError(w, r, perr.Error(), http.StatusBadRequest)
			return
		}
		series, err = h.queryService.HourlySeries(ctx, cpe, year+"-"+month+"-"+day)

	default:
		h.sendError(w, r, fmt.Sprintf("unrecognized period %q, expected monthly, daily, or hourly", period), http.StatusBadRequest)
		return
	}

	if err != nil {
		h.logger.Error(ctx, "[API_SERIES_ERROR] Failed to get energy series", logging.Fields{
			"cpe":    cpe,
			"period": period,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/energy")
		h.sendError(w, r, "failed to retrieve energy series", http.StatusInternalServerError)
		return
	}

	if series == nil {
		series = []*models.SeriesPoint{}
	}

	h.metrics.RecordAPIRequest("/api/energy", "GET", "200")
	h.sendJSON(w, series, http.StatusOK)
}

// GetEnergyBreakdown handles GET /api/energy-breakdown
func (h *EnergyHandler) GetEnergyBreakdown(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues("/api/energy-breakdown").Observe(time.Since(startTime).Seconds())
	}()

	prefix := r.URL.Query().Get("timestamp")

	rows, err := h.queryService.BreakdownRows(ctx, prefix)
	if err != nil {
		h.logger.Error(ctx, "[API_BREAKDOWN_ERROR] Failed to get energy breakdown", logging.Fields{
			"prefix": prefix,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/energy-breakdown")
		h.sendError(w, r, "failed to retrieve energy breakdown", http.StatusInternalServerError)
		return
	}

	if rows == nil {
		rows = []*models.EnergyBreakdown{}
	}

	h.metrics.RecordAPIRequest("/api/energy-breakdown", "GET", "200")
	h.sendJSON(w, rows, http.StatusOK)
}

// GetBuildingsEnergy handles GET /api/buildings-energy. An absent year
// parameter falls back to the configured default year; a malformed one
// is a client error.
func (h *EnergyHandler) GetBuildingsEnergy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues("/api/buildings-energy").Observe(time.Since(startTime).Seconds())
	}()

	year := r.URL.Query().Get("year")
	if year == "" {
		year = h.defaultYear
	}
	if _, err := parseYear(year); err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	totals, err := h.queryService.BuildingTotalsForYear(ctx, year)
	if err != nil {
		h.logger.Error(ctx, "[API_BUILDINGS_ENERGY_ERROR] Failed to get yearly totals", logging.Fields{
			"year": year,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/buildings-energy")
		h.sendError(w, r, "failed to retrieve yearly building totals", http.StatusInternalServerError)
		return
	}

	if totals == nil {
		totals = []*models.BuildingEnergy{}
	}

	h.metrics.RecordAPIRequest("/api/buildings-energy", "GET", "200")
	h.sendJSON(w, totals, http.StatusOK)
}

// GetBuildingSample handles GET /api/buildings/sample, a diagnostic
// endpoint outside the stable contract
func (h *EnergyHandler) GetBuildingSample(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sample, err := h.queryService.SampleBuildings(ctx, 5)
	if err != nil {
		h.metrics.RecordAPIError("internal_error", "/api/buildings/sample")
		h.sendError(w, r, "failed to retrieve building sample", http.StatusInternalServerError)
		return
	}

	if sample == nil {
		sample = []*models.BuildingMetadata{}
	}

	h.metrics.RecordAPIRequest("/api/buildings/sample", "GET", "200")
	h.sendJSON(w, sample, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *EnergyHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, http.StatusOK)
}

// parseYear validates a 4-digit calendar year
func parseYear(s string) (string, error) {
	if len(s) != 4 {
		return "", fmt.Errorf("year parameter is required and must be a 4-digit year")
	}
	if _, err := strconv.Atoi(s); err != nil {
		return "", fmt.Errorf("invalid year %q", s)
	}
	return s, nil
}

// parseDatePart validates a month or day parameter and zero-pads it to
// two digits so it lines up with the stored ISO timestamps
func parseDatePart(s, name string, min, max int) (string, error) {
	if s == "" {
		return "", fmt.Errorf("%s parameter is required", name)
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < min || n > max {
		return "", fmt.Errorf("invalid %s %q", name, s)
	}
	return fmt.Sprintf("%02d", n), nil
}

// sendJSON sends a JSON response
func (h *EnergyHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *EnergyHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	if statusCode == http.StatusBadRequest {
		h.logger.Debug(r.Context(), "[API_BAD_REQUEST] Rejected client input", logging.Fields{
			"path":   r.URL.Path,
			"reason": message,
		})
	}

	h.sendJSON(w, ErrorResponse{Error: message}, statusCode)
}

// RegisterRoutes registers all energy API routes
func (h *EnergyHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/buildings", h.GetBuildings).Methods("GET")
	router.HandleFunc("/api/buildings/sample", h.GetBuildingSample).Methods("GET")
	router.HandleFunc("/api/buildings-energy", h.GetBuildingsEnergy).Methods("GET")
	router.HandleFunc("/api/energy-breakdown", h.GetEnergyBreakdown).Methods("GET")
	router.HandleFunc("/api/energy/{cpe}/{period}", h.GetEnergySeries).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}
