package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"ghcn-daily/internal/config"
	"ghcn-daily/internal/publisher"
	"ghcn-daily/internal/repository"
	"ghcn-daily/internal/services"
	"ghcn-daily/migrations"
	"ghcn-daily/pkg/database"
	"ghcn-daily/pkg/logging"
	"ghcn-daily/pkg/metrics"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code
func run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	// Flags default to the loaded configuration and override it when set.
	dataDir := flag.String("data-dir", cfg.Ingest.DataDir, "Directory containing .dly files")
	pattern := flag.String("pattern", cfg.Ingest.Pattern, "Glob of files to ingest inside data-dir")
	workers := flag.Int("workers", cfg.Ingest.Workers, "Files parsed in parallel")
	batchSize := flag.Int("batch-size", cfg.Ingest.BatchSize, "Rows written per transaction")
	startYear := flag.Int("start-year", cfg.Ingest.StartYear, "First year to keep, 0 for open")
	endYear := flag.Int("end-year", cfg.Ingest.EndYear, "Last year to keep, 0 for open")
	skipMalformed := flag.Bool("skip-malformed", cfg.Ingest.SkipMalformed, "Skip malformed lines instead of failing the file")
	migrate := flag.Bool("migrate", false, "Apply schema migrations before ingesting")
	publish := flag.Bool("publish", cfg.Kafka.Enabled, "Publish ingested rows to Kafka")
	flag.Parse()

	cfg.Ingest.DataDir = *dataDir
	cfg.Ingest.Pattern = *pattern
	cfg.Ingest.Workers = *workers
	cfg.Ingest.BatchSize = *batchSize
	cfg.Ingest.StartYear = *startYear
	cfg.Ingest.EndYear = *endYear
	cfg.Ingest.SkipMalformed = *skipMalformed
	cfg.Kafka.Enabled = *publish
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	logLevel, _ := logging.ParseLevel(cfg.Logging.Level)
	logger := logging.NewStructuredLogger("ghcn-ingester", cfg.Logging.Version, logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "[INGESTER_START] Starting GHCN daily ingestion", logging.Fields{
		"version":        cfg.Logging.Version,
		"data_dir":       cfg.Ingest.DataDir,
		"pattern":        cfg.Ingest.Pattern,
		"workers":        cfg.Ingest.Workers,
		"batch_size":     cfg.Ingest.BatchSize,
		"skip_malformed": cfg.Ingest.SkipMalformed,
		"publish":        cfg.Kafka.Enabled,
	})

	metricsCollector := metrics.NewCollector("ghcn_ingester")

	db, err := database.Open(ctx, cfg.Database.DatabaseOptions(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	if *migrate {
		applied, err := migrations.Run(ctx, db.DB(), migrations.Up)
		if err != nil {
			logger.Fatal(ctx, "[INGESTER_ERROR] Migration failed", logging.Fields{}, err)
		}
		logger.Info(ctx, "[INGESTER_MIGRATE] Schema up to date", logging.Fields{"scripts": applied})
	}

	repo := repository.NewObservationRepository(db, logger, metricsCollector)

	var rowPublisher services.RowPublisher
	if cfg.Kafka.Enabled {
		writer := publisher.NewWriter(cfg.Kafka, logger, metricsCollector)
		defer writer.Close()
		rowPublisher = writer
	}

	start, end := cfg.Ingest.YearRange()
	ingestionService := services.NewIngestionService(repo, rowPublisher, logger, metricsCollector, services.IngestOptions{
		Pattern:       cfg.Ingest.Pattern,
		Workers:       cfg.Ingest.Workers,
		BatchSize:     cfg.Ingest.BatchSize,
		StartYear:     start,
		EndYear:       end,
		SkipMalformed: cfg.Ingest.SkipMalformed,
	})

	result, err := ingestionService.IngestDirectory(ctx, cfg.Ingest.DataDir)
	if err != nil {
		logger.Fatal(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{}, err)
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("INGESTION COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Run ID:          %s\n", result.RunID)
	fmt.Printf("Total Files:     %d\n", result.TotalFiles)
	fmt.Printf("Failed Files:    %d\n", result.FailedFiles)
	fmt.Printf("Stations:        %d\n", result.Stations)
	fmt.Printf("Rows Stored:     %d\n", result.Rows)
	fmt.Printf("Malformed Lines: %d\n", result.Malformed)
	fmt.Printf("Duration:        %v\n", result.Duration)
	if secs := result.Duration.Seconds(); secs > 0 {
		fmt.Printf("Rows/Second:     %.2f\n", float64(result.Rows)/secs)
	}

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i == 10 {
				fmt.Printf("  ... and %d more errors\n", len(result.Errors)-10)
				break
			}
			fmt.Printf("  - %s\n", errMsg)
		}
	}

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion finished", logging.Fields{
		"run_id":       result.RunID,
		"files":        result.TotalFiles,
		"failed_files": result.FailedFiles,
		"rows":         result.Rows,
		"malformed":    result.Malformed,
		"duration_ms":  result.Duration.Milliseconds(),
	})

	if result.FailedFiles > 0 {
		return 1
	}
	return 0
}
