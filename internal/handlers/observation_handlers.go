package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"ghcn-daily/internal/models"
	"ghcn-daily/internal/services"
	"ghcn-daily/pkg/logging"
	"ghcn-daily/pkg/metrics"
)

const (
	maxPageSize = 1000
	openAPIPath = "/api/docs/openapi.json"
)

// HealthChecker reports whether a backing store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ObservationHandler serves the station and observation endpoints
type ObservationHandler struct {
	queryService *services.QueryService
	health       HealthChecker
	pageSize     int
	logger       *logging.StructuredLogger
	metrics      *metrics.Collector
}

// NewObservationHandler creates a handler. pageSize is the default limit
// of paged endpoints.
func NewObservationHandler(
	queryService *services.QueryService,
	health HealthChecker,
	pageSize int,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *ObservationHandler {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &ObservationHandler{
		queryService: queryService,
		health:       health,
		pageSize:     pageSize,
		logger:       logger,
		metrics:      metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PageResponse wraps one page of a listing
type PageResponse struct {
	Data  interface{} `json:"data"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// ListStations handles GET /api/stations
func (h *ObservationHandler) ListStations(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/stations"
	defer h.observe(endpoint, time.Now())

	page, limit, err := h.pagination(r)
	if err != nil {
		h.sendServiceError(w, r, endpoint, err)
		return
	}

	stations, err := h.queryService.ListStations(r.Context(), limit, (page-1)*limit)
	if err != nil {
		h.sendServiceError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, PageResponse{Data: stations, Page: page, Limit: limit}, http.StatusOK)
}

// GetStation handles GET /api/stations/{id}
func (h *ObservationHandler) GetStation(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/stations/{id}"
	defer h.observe(endpoint, time.Now())

	summary, err := h.queryService.GetStation(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.sendServiceError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, summary, http.StatusOK)
}

// GetObservations handles GET /api/stations/{id}/observations. Query
// parameters: start_year, end_year, filter (repeatable, column:op:value),
// interpolate (year|month|day), edge (leave|nearest|drop), skip_empty.
func (h *ObservationHandler) GetObservations(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/stations/{id}/observations"
	defer h.observe(endpoint, time.Now())

	req, err := parseObservationRequest(r)
	if err != nil {
		h.sendServiceError(w, r, endpoint, err)
		return
	}

	result, err := h.queryService.Observations(r.Context(), req)
	if err != nil {
		h.sendServiceError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, result, http.StatusOK)
}

func parseObservationRequest(r *http.Request) (services.ObservationRequest, error) {
	q := r.URL.Query()
	req := services.ObservationRequest{
		StationID:   mux.Vars(r)["id"],
		Filters:     q["filter"],
		Interpolate: strings.TrimSpace(q.Get("interpolate")),
		Edge:        q.Get("edge"),
	}

	var err error
	if req.StartYear, err = optionalInt(q.Get("start_year"), "start_year"); err != nil {
		return req, err
	}
	if req.EndYear, err = optionalInt(q.Get("end_year"), "end_year"); err != nil {
		return req, err
	}
	if s := q.Get("skip_empty"); s != "" {
		if req.SkipEmpty, err = strconv.ParseBool(s); err != nil {
			return req, &models.ValidationError{Field: "skip_empty", Value: s, Message: "must be a boolean"}
		}
	}
	return req, nil
}

func optionalInt(raw, field string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, &models.ValidationError{Field: field, Value: raw, Message: "must be an integer"}
	}
	return &v, nil
}

func (h *ObservationHandler) pagination(r *http.Request) (page, limit int, err error) {
	page, limit = 1, h.pageSize

	if s := r.URL.Query().Get("page"); s != "" {
		if page, err = strconv.Atoi(s); err != nil || page < 1 {
			return 0, 0, &models.ValidationError{Field: "page", Value: s, Message: "must be a positive integer"}
		}
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil || limit < 1 || limit > maxPageSize {
			return 0, 0, &models.ValidationError{Field: "limit", Value: s, Message: "must be between 1 and 1000"}
		}
	}
	return page, limit, nil
}

// HealthCheck handles GET /health
func (h *ObservationHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK

	if h.health != nil {
		if err := h.health.HealthCheck(ctx); err != nil {
			h.logger.Error(ctx, "[HEALTH_CHECK_ERROR] Store unreachable", logging.Fields{}, err)
			status["status"] = "unhealthy"
			status["error"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}

	h.sendJSON(w, status, code)
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) (int, string) {
	var (
		invalidFilter *models.InvalidFilterError
		validation    *models.ValidationError
		notFound      *models.NotFoundError
		interpolation *models.InterpolationError
	)
	switch {
	case errors.As(err, &invalidFilter):
		return http.StatusBadRequest, "invalid_filter"
	case errors.As(err, &validation):
		return http.StatusBadRequest, "validation_error"
	case errors.As(err, &notFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &interpolation):
		return http.StatusUnprocessableEntity, "interpolation_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (h *ObservationHandler) sendServiceError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	code, errorType := statusFor(err)
	h.metrics.RecordAPIError(errorType, endpoint)
	h.metrics.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(code))

	message := err.Error()
	if code == http.StatusInternalServerError {
		h.logger.Error(r.Context(), "[API_ERROR] Request failed", logging.Fields{
			"endpoint": endpoint,
			"path":     r.URL.Path,
		}, err)
		message = "internal server error"
	}

	h.sendJSON(w, ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Code:    code,
	}, code)
}

func (h *ObservationHandler) observe(endpoint string, start time.Time) {
	h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func (h *ObservationHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// RequestID tags each request context with an id, reusing X-Request-ID
// when the caller sent one
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), logging.RequestIDKey, id)))
	})
}

// RegisterRoutes registers the API, health and documentation routes
func (h *ObservationHandler) RegisterRoutes(router *mux.Router) {
	router.Use(RequestID)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stations", h.ListStations).Methods(http.MethodGet)
	api.HandleFunc("/stations/{id}", h.GetStation).Methods(http.MethodGet)
	api.HandleFunc("/stations/{id}/observations", h.GetObservations).Methods(http.MethodGet)
	api.HandleFunc("/docs", SwaggerUIHandler(openAPIPath)).Methods(http.MethodGet)
	api.HandleFunc("/docs/openapi.json", OpenAPISpec).Methods(http.MethodGet)

	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
}
