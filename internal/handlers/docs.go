package handlers

import (
	"encoding/json"
	"net/http"
)

func queryParam(name, description string, schema map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    false,
		"schema":      schema,
	}
}

var stationIDParam = map[string]interface{}{
	"name":        "id",
	"in":          "path",
	"description": "11 character GHCN station id, e.g. USC00011084",
	"required":    true,
	"schema":      map[string]string{"type": "string"},
}

var errorResponses = map[string]interface{}{
	"400": map[string]string{"description": "Invalid filter or parameter"},
	"404": map[string]string{"description": "Station not found"},
	"422": map[string]string{"description": "Interpolation impossible: a group has no valid value"},
	"500": map[string]string{"description": "Internal error"},
}

func jsonContent(schema map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"application/json": map[string]interface{}{"schema": schema},
	}
}

func withErrors(ok map[string]interface{}) map[string]interface{} {
	responses := map[string]interface{}{"200": ok}
	for code, resp := range errorResponses {
		responses[code] = resp
	}
	return responses
}

var stationSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"station_id": map[string]string{"type": "string"},
		"country":    map[string]string{"type": "string"},
	},
}

var observationSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"station_id": map[string]string{"type": "string"},
		"units":      map[string]interface{}{"type": "string", "enum": []string{"tenths", "physical"}},
		"count":      map[string]string{"type": "integer"},
		"records": map[string]interface{}{
			"type":        "object",
			"description": "One array per column (year, month, day, obs, value) in row order. Missing days hold -9999.",
			"additionalProperties": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{},
			},
		},
		"interpolation": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"axis":           map[string]string{"type": "string"},
				"groups":         map[string]string{"type": "integer"},
				"filled":         map[string]string{"type": "integer"},
				"unfilled":       map[string]string{"type": "integer"},
				"dropped":        map[string]string{"type": "integer"},
				"rescaled":       map[string]string{"type": "integer"},
				"already_scaled": map[string]string{"type": "boolean"},
				"skipped_groups": map[string]interface{}{"type": "array", "items": map[string]string{"type": "string"}},
			},
		},
	},
}

// OpenAPISpec serves the OpenAPI 3.0 document of the API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	doc := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "GHCN Daily Observation API",
			"description": "Daily station observations decoded from GHCN .dly files, with column filters and linear gap interpolation",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/stations": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "List stations",
					"parameters": []map[string]interface{}{
						queryParam("page", "Page number (default: 1)", map[string]interface{}{"type": "integer", "default": 1}),
						queryParam("limit", "Stations per page (max 1000)", map[string]interface{}{"type": "integer"}),
					},
					"responses": withErrors(map[string]interface{}{
						"description": "One page of stations",
						"content": jsonContent(map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"data":  map[string]interface{}{"type": "array", "items": stationSchema},
								"page":  map[string]string{"type": "integer"},
								"limit": map[string]string{"type": "integer"},
							},
						}),
					}),
				},
			},
			"/api/stations/{id}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":    "Station summary",
					"parameters": []map[string]interface{}{stationIDParam},
					"responses": withErrors(map[string]interface{}{
						"description": "Stored year span, row count and elements",
						"content": jsonContent(map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"station_id": map[string]string{"type": "string"},
								"country":    map[string]string{"type": "string"},
								"first_year": map[string]string{"type": "integer"},
								"last_year":  map[string]string{"type": "integer"},
								"rows":       map[string]string{"type": "integer"},
								"elements":   map[string]interface{}{"type": "array", "items": map[string]string{"type": "string"}},
							},
						}),
					}),
				},
			},
			"/api/stations/{id}/observations": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Station observations",
					"description": "Loads the station table, applies filters left to right and optionally interpolates missing days. Interpolated values are in physical units (raw / 10).",
					"parameters": []map[string]interface{}{
						stationIDParam,
						queryParam("start_year", "First year, inclusive", map[string]interface{}{"type": "integer"}),
						queryParam("end_year", "Last year, inclusive", map[string]interface{}{"type": "integer"}),
						queryParam("filter", "Repeatable column:op:value filter. Columns year, month, day, obs, value; ops eq, ne, gt, lt, ge, le", map[string]interface{}{
							"type": "array", "items": map[string]string{"type": "string"},
						}),
						queryParam("interpolate", "Interpolation axis", map[string]interface{}{"type": "string", "enum": []string{"year", "month", "day"}}),
						queryParam("edge", "Handling of gaps with a valid neighbour on one side only", map[string]interface{}{
							"type": "string", "enum": []string{"leave", "nearest", "drop"}, "default": "leave",
						}),
						queryParam("skip_empty", "Leave groups without any valid value untouched instead of failing", map[string]interface{}{"type": "boolean", "default": false}),
					},
					"responses": withErrors(map[string]interface{}{
						"description": "Column-oriented rows",
						"content":     jsonContent(observationSchema),
					}),
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Health check",
					"responses": map[string]interface{}{
						"200": map[string]string{"description": "Service and store are healthy"},
						"503": map[string]string{"description": "Store unreachable"},
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Prometheus metrics",
					"responses": map[string]interface{}{
						"200": map[string]string{"description": "Prometheus text format"},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}
