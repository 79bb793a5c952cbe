package services

import (
	"context"
	"fmt"
	"strconv"

	"ghcn-daily/internal/dly"
	"ghcn-daily/internal/models"
	"ghcn-daily/internal/repository"
	"ghcn-daily/pkg/logging"
	"ghcn-daily/pkg/metrics"
)

// ObservationRequest describes one station query. Filters use the
// "column:op:value" form; an empty Interpolate skips gap filling.
type ObservationRequest struct {
	StationID   string
	StartYear   *int
	EndYear     *int
	Filters     []string
	Interpolate string
	Edge        string
	SkipEmpty   bool
}

// ObservationResult is the column-oriented answer to an ObservationRequest
type ObservationResult struct {
	StationID     string                   `json:"station_id"`
	Units         dly.Units                `json:"units"`
	Count         int                      `json:"count"`
	Records       map[string][]any         `json:"records"`
	Interpolation *dly.InterpolationReport `json:"interpolation,omitempty"`
}

// QueryService answers station queries from the observation store
type QueryService struct {
	repo    repository.ObservationRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewQueryService creates a new query service
func NewQueryService(repo repository.ObservationRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *QueryService {
	return &QueryService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ListStations returns one page of stations
func (s *QueryService) ListStations(ctx context.Context, limit, offset int) ([]*models.Station, error) {
	return s.repo.ListStations(ctx, limit, offset)
}

// GetStation returns a station with its stored year span and elements
func (s *QueryService) GetStation(ctx context.Context, stationID string) (*models.StationSummary, error) {
	return s.repo.SummarizeStation(ctx, stationID)
}

// Observations loads the station table, applies the filters in order and
// optionally interpolates along the requested axis. Arguments are
// validated before the store is touched.
func (s *QueryService) Observations(ctx context.Context, req ObservationRequest) (*ObservationResult, error) {
	if req.StartYear != nil && req.EndYear != nil && *req.EndYear < *req.StartYear {
		return nil, &models.ValidationError{
			Field:   "end_year",
			Value:   strconv.Itoa(*req.EndYear),
			Message: fmt.Sprintf("end_year %d cannot be less than start_year %d", *req.EndYear, *req.StartYear),
		}
	}

	filters, err := dly.ParseFilters(req.Filters)
	if err != nil {
		return nil, err
	}

	var (
		axis    models.Column
		options []dly.InterpolateOption
	)
	if req.Interpolate != "" {
		axis, err = models.ParseColumn(req.Interpolate)
		if err != nil || axis == models.ColumnObs || axis == models.ColumnValue {
			return nil, &models.ValidationError{
				Field:   "interpolate",
				Value:   req.Interpolate,
				Message: "interpolation axis must be one of year, month, day",
			}
		}
		edge, err := dly.ParseEdgePolicy(req.Edge)
		if err != nil {
			return nil, err
		}
		options = append(options, dly.WithEdgePolicy(edge))
		if req.SkipEmpty {
			options = append(options, dly.WithSkipEmptyGroups())
		}
	}

	if _, err := s.repo.GetStation(ctx, req.StationID); err != nil {
		return nil, err
	}

	rows, err := s.repo.LoadRows(ctx, repository.ObservationQuery{
		StationID: req.StationID,
		StartYear: req.StartYear,
		EndYear:   req.EndYear,
	})
	if err != nil {
		return nil, fmt.Errorf("load station table: %w", err)
	}

	table, err := dly.Apply(dly.NewTable(rows, dly.UnitsRaw), filters)
	if err != nil {
		return nil, err
	}
	s.metrics.FilterApplications.Add(float64(len(filters)))

	result := &ObservationResult{StationID: req.StationID}

	if req.Interpolate != "" {
		interpolated, report, err := dly.Interpolate(table, axis, options...)
		if err != nil {
			s.metrics.InterpolationEmpty.Inc()
			return nil, err
		}
		s.metrics.RecordInterpolation(report.Filled, report.Unfilled, report.Dropped, len(report.SkippedGroups))
		s.logRescale(ctx, req.StationID, report)

		table = interpolated
		result.Interpolation = report
	}

	result.Units = table.Units()
	result.Count = table.Len()
	result.Records = dly.ToRecords(table)

	s.logger.Debug(ctx, "[QUERY_OBSERVATIONS] Station query served", logging.Fields{
		"station_id": req.StationID,
		"loaded":     len(rows),
		"filters":    len(filters),
		"returned":   result.Count,
	})
	return result, nil
}

func (s *QueryService) logRescale(ctx context.Context, stationID string, report *dly.InterpolationReport) {
	if report.AlreadyScaled {
		return
	}
	s.logger.Info(ctx, "[INTERPOLATE_RESCALE] Values rescaled from tenths to physical units", logging.Fields{
		"station_id":     stationID,
		"axis":           report.Axis,
		"groups":         report.Groups,
		"filled":         report.Filled,
		"unfilled":       report.Unfilled,
		"dropped":        report.Dropped,
		"rescaled":       report.Rescaled,
		"skipped_groups": len(report.SkippedGroups),
		"scale_factor":   models.ScaleFactor,
	})
}
