package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/statement-ledger/internal/app"
	"github.com/dvloznov/statement-ledger/internal/auth"
	"github.com/dvloznov/statement-ledger/internal/config"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
)

func main() {
	log := logger.New()

	gcsURI := flag.String("gcs-uri", "", "GCS URI of the statement PDF (e.g. gs://bucket/file.pdf)")
	configPath := flag.String("config", "", "path to a YAML config file")
	spreadsheetID := flag.String("spreadsheet", "", "append to this ledger instead of creating one")
	csvOutput := flag.String("csv-output", "", `gs:// object or prefix ending in "/" for a CSV copy`)
	timeout := flag.Duration("timeout", 5*time.Minute, "overall deadline for the run")
	flag.Parse()

	if *gcsURI == "" {
		log.Fatal().Msg("Error: --gcs-uri is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	configured, err := app.Logger(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid log level")
	}
	log = configured

	// Create context with timeout so the run doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	deps, closeDeps, err := app.IngestDeps(ctx, cfg, auth.NewTokenCache(nil))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up ingestion")
	}
	defer closeDeps()

	csvOpts, err := app.CSVOptions(cfg.CSV)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid csv options")
	}

	log.Info().Str("gcs_uri", *gcsURI).Msg("Starting ingestion")

	state, err := pipeline.IngestStatementFromGCSWithDeps(ctx, *gcsURI, deps, pipeline.Options{
		Ledger:    app.LedgerTarget(cfg, *spreadsheetID),
		CSVOutput: *csvOutput,
		CSV:       csvOpts,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	switch {
	case state.Created != nil:
		fmt.Printf("Ledger created: %s (%d rows)\n", state.Created.SpreadsheetID, state.Created.Rows)
	case state.Appended != nil:
		fmt.Printf("Ledger updated: %d appended, %d duplicates\n", state.Appended.Appended, state.Appended.Duplicates)
	}
}
