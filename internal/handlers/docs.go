package handlers

import (
	"encoding/json"
	"net/http"
)

// OpenAPISpec returns the OpenAPI 3.0 specification for the Energy Platform API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Building Energy Platform API",
			"description": "Read-only dashboard API over ingested building-energy CSV data: per-building totals, time-bucketed series, and grid energy-source breakdown",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/buildings": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "List buildings with lifetime energy totals",
					"description": "Every building appears, including those with no readings (zero total). Ordered by annual_energy descending.",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Array of building totals",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]interface{}{
										"type":  "array",
										"items": map[string]string{"$ref": "#/components/schemas/BuildingEnergy"},
									},
								},
							},
						},
					},
				},
			},
			"/api/energy/{cpe}/{period}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Time-bucketed energy series for one building",
					"description": "monthly requires year; daily requires year and month; hourly requires year, month, and day. Missing or malformed parameters return 400.",
					"parameters": []map[string]interface{}{
						{"name": "cpe", "in": "path", "required": true, "schema": map[string]string{"type": "string"}},
						{"name": "period", "in": "path", "required": true, "schema": map[string]interface{}{"type": "string", "enum": []string{"monthly", "daily", "hourly"}}},
						{"name": "year", "in": "query", "schema": map[string]string{"type": "string", "example": "2021"}},
						{"name": "month", "in": "query", "schema": map[string]string{"type": "string", "example": "3"}},
						{"name": "day", "in": "query", "schema": map[string]string{"type": "string", "example": "14"}},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Array of (bucket_label, total_energy) pairs in chronological order",
						},
						"400": map[string]interface{}{
							"description": "Unrecognized period or missing required parameter",
						},
					},
				},
			},
			"/api/energy-breakdown": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Grid energy-source breakdown rows",
					"description": "Up to 24 rows ordered by timestamp, optionally filtered by a timestamp prefix (a date selects its hourly rows).",
					"parameters": []map[string]interface{}{
						{"name": "timestamp", "in": "query", "schema": map[string]string{"type": "string", "example": "2021-03-01"}},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Array of breakdown rows"},
					},
				},
			},
			"/api/buildings-energy": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Per-building energy totals for one year",
					"description": "Defaults to the configured year (2021) when no year parameter is supplied.",
					"parameters": []map[string]interface{}{
						{"name": "year", "in": "query", "schema": map[string]string{"type": "string", "example": "2021"}},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Array of building totals for the year"},
						"400": map[string]interface{}{"description": "Malformed year"},
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Health check",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Service is healthy"},
					},
				},
			},
		},
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"BuildingEnergy": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"cpe":           map[string]string{"type": "string"},
						"lat":           map[string]interface{}{"type": "number", "nullable": true},
						"lon":           map[string]interface{}{"type": "number", "nullable": true},
						"totalarea":     map[string]interface{}{"type": "number", "nullable": true},
						"name":          map[string]string{"type": "string"},
						"fulladdress":   map[string]string{"type": "string"},
						"annual_energy": map[string]string{"type": "number"},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
