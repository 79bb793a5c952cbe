package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"ghcn-daily/internal/config"
	"ghcn-daily/migrations"
	"ghcn-daily/pkg/database"
	"ghcn-daily/pkg/logging"
	"ghcn-daily/pkg/metrics"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	dir, err := migrations.ParseDirection(*direction)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logLevel, _ := logging.ParseLevel(cfg.Logging.Level)
	logger := logging.NewStructuredLogger("ghcn-migrate", cfg.Logging.Version, logLevel)
	ctx := context.Background()

	db, err := database.Open(ctx, cfg.Database.DatabaseOptions(), logger, metrics.NewCollector("ghcn_migrate"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Printf("Connected to %s database successfully\n", db.Driver())

	applied, err := migrations.Run(ctx, db.DB(), dir)
	for _, name := range applied {
		fmt.Printf("Applied migration: %s\n", name)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute migration: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Migration completed successfully")
}
