package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ghcn-daily/internal/dly"
	"ghcn-daily/internal/models"
	"ghcn-daily/internal/repository"
	"ghcn-daily/pkg/logging"
	"ghcn-daily/pkg/metrics"
)

// RowPublisher forwards ingested rows to a downstream consumer
type RowPublisher interface {
	PublishRows(ctx context.Context, runID string, units dly.Units, rows []models.Row) error
}

// IngestOptions tunes an ingestion run
type IngestOptions struct {
	Pattern       string
	Workers       int
	BatchSize     int
	StartYear     *int
	EndYear       *int
	SkipMalformed bool
}

// IngestionService loads .dly files into the observation store
type IngestionService struct {
	repo      repository.ObservationRepository
	publisher RowPublisher
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
	opts      IngestOptions
}

// IngestionResult summarizes one run over a directory
type IngestionResult struct {
	RunID       string
	TotalFiles  int
	FailedFiles int
	Rows        int
	Malformed   int
	Stations    int
	Duration    time.Duration
	Files       []FileIngestionResult
	Errors      []string
}

// FileIngestionResult summarizes one file
type FileIngestionResult struct {
	Path      string
	Stations  []string
	Rows      int
	Missing   int
	Malformed int
	Err       error
}

// NewIngestionService creates a service. publisher may be nil.
func NewIngestionService(repo repository.ObservationRepository, publisher RowPublisher, logger *logging.StructuredLogger, metricsCollector *metrics.Collector, opts IngestOptions) *IngestionService {
	if opts.Pattern == "" {
		opts.Pattern = "*.dly"
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &IngestionService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		metrics:   metricsCollector,
		opts:      opts,
	}
}

// IngestDirectory parses every matching file of dataDir in parallel and
// stores the rows. A failing file is recorded and the run continues; only
// cancellation of ctx aborts the run.
func (s *IngestionService) IngestDirectory(ctx context.Context, dataDir string) (*IngestionResult, error) {
	startTime := time.Now()
	runID := uuid.NewString()
	ctx = context.WithValue(ctx, logging.RunIDKey, runID)

	s.logger.Info(ctx, "[INGEST_START] Starting data ingestion", logging.Fields{
		"data_dir":   dataDir,
		"pattern":    s.opts.Pattern,
		"workers":    s.opts.Workers,
		"batch_size": s.opts.BatchSize,
	})

	files, err := filepath.Glob(filepath.Join(dataDir, s.opts.Pattern))
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files matching %s found in %s", s.opts.Pattern, dataDir)
	}
	sort.Strings(files)

	s.logger.Info(ctx, "[INGEST_FILES] Found data files", logging.Fields{
		"file_count": len(files),
	})

	results := make([]FileIngestionResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for i, path := range files {
		g.Go(func() error {
			results[i] = s.ingestFile(gctx, runID, path)
			if err := results[i].Err; err != nil && isCancellation(err) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ingestion run %s aborted: %w", runID, err)
	}

	result := &IngestionResult{RunID: runID, TotalFiles: len(files), Files: results, Errors: []string{}}
	stations := make(map[string]bool)
	for _, fr := range results {
		result.Malformed += fr.Malformed
		if fr.Err != nil {
			result.FailedFiles++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", fr.Path, fr.Err))
			continue
		}
		result.Rows += fr.Rows
		for _, id := range fr.Stations {
			stations[id] = true
		}
	}
	result.Stations = len(stations)
	result.Duration = time.Since(startTime)
	s.metrics.IngestionDuration.Observe(result.Duration.Seconds())

	s.logger.Info(ctx, "[INGEST_COMPLETE] Data ingestion completed", logging.Fields{
		"total_files":      result.TotalFiles,
		"failed_files":     result.FailedFiles,
		"rows":             result.Rows,
		"malformed_lines":  result.Malformed,
		"stations":         result.Stations,
		"duration_seconds": result.Duration.Seconds(),
	})

	return result, nil
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ingestFile builds one file, registers its stations, stores and
// optionally publishes the rows
func (s *IngestionService) ingestFile(ctx context.Context, runID, path string) FileIngestionResult {
	result := FileIngestionResult{Path: path}
	log := s.logger.WithFields(logging.Fields{"file_path": path})

	opts := []dly.BuildOption{dly.WithYearRange(s.opts.StartYear, s.opts.EndYear)}
	if s.opts.SkipMalformed {
		opts = append(opts, dly.WithMalformedHandler(func(e *models.MalformedRecordError) {
			result.Malformed++
			s.metrics.RecordMalformedLine(e.Field)
			log.Warn(ctx, "[INGEST_MALFORMED] Skipping malformed line", logging.Fields{
				"line":   e.Line,
				"field":  e.Field,
				"reason": e.Reason,
			})
		}))
	}

	table, err := dly.ParseFile(path, opts...)
	if err != nil {
		return s.fileFailed(ctx, log, result, "parse_error", err)
	}
	s.metrics.RowsBuiltTotal.Add(float64(table.Len()))

	rows := table.Rows()
	result.Stations = stationIDs(rows)
	result.Missing = table.Missing()

	for _, id := range result.Stations {
		if err := s.repo.CreateStation(ctx, models.NewStation(id)); err != nil {
			return s.fileFailed(ctx, log, result, "station_error", err)
		}
	}

	saved, err := s.repo.SaveRows(ctx, rows, s.opts.BatchSize)
	s.metrics.IngestionRowsTotal.Add(float64(saved))
	if err != nil {
		return s.fileFailed(ctx, log, result, "store_error", err)
	}
	result.Rows = saved

	if s.publisher != nil {
		if err := s.publisher.PublishRows(ctx, runID, table.Units(), rows); err != nil {
			return s.fileFailed(ctx, log, result, "publish_error", err)
		}
	}

	s.metrics.IngestionFilesTotal.WithLabelValues("ok").Inc()
	log.Info(ctx, "[INGEST_FILE_SUCCESS] File ingested successfully", logging.Fields{
		"stations":        result.Stations,
		"rows":            result.Rows,
		"missing":         result.Missing,
		"malformed_lines": result.Malformed,
	})
	return result
}

func (s *IngestionService) fileFailed(ctx context.Context, log *logging.ContextLogger, result FileIngestionResult, errorType string, err error) FileIngestionResult {
	result.Err = err
	s.metrics.RecordIngestionError(errorType)
	s.metrics.IngestionFilesTotal.WithLabelValues("failed").Inc()
	log.Error(ctx, "[INGEST_FILE_ERROR] File ingestion failed", logging.Fields{
		"error_type": errorType,
	}, err)
	return result
}

// stationIDs lists the distinct station ids in first-seen order
func stationIDs(rows []models.Row) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, r := range rows {
		if !seen[r.Station] {
			seen[r.Station] = true
			ids = append(ids, r.Station)
		}
	}
	return ids
}
