// Package app builds the collaborators the binaries share from a Config.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/dvloznov/statement-ledger/internal/auth"
	"github.com/dvloznov/statement-ledger/internal/config"
	"github.com/dvloznov/statement-ledger/internal/csvexport"
	"github.com/dvloznov/statement-ledger/internal/extract"
	"github.com/dvloznov/statement-ledger/internal/gcsuploader"
	infra "github.com/dvloznov/statement-ledger/internal/infra/bigquery"
	"github.com/dvloznov/statement-ledger/internal/infra/sheets"
	"github.com/dvloznov/statement-ledger/internal/infra/workbook"
	"github.com/dvloznov/statement-ledger/internal/ledger"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
)

// CredentialKey names the single credential set the binaries use.
const CredentialKey = "default"

// Logger returns a console logger at the configured level.
func Logger(cfg *config.Config) (zerolog.Logger, error) {
	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return zerolog.Nop(), err
	}
	return logger.NewWithLevel(level), nil
}

// CSVOptions maps the csv section onto formatter options.
func CSVOptions(c config.CSVConfig) (csvexport.Options, error) {
	delim, err := c.DelimiterRune()
	if err != nil {
		return csvexport.Options{}, err
	}
	opts := csvexport.Options{Delimiter: delim, BOM: c.BOM, EmptyZero: c.EmptyZero}
	switch c.Mode {
	case config.CSVModeSigned:
		opts.Mode = csvexport.ModeSigned
	case config.CSVModeDebitCredit:
		opts.Mode = csvexport.ModeDebitCredit
	default:
		return csvexport.Options{}, fmt.Errorf("CSVOptions: unknown mode %q", c.Mode)
	}
	return opts, nil
}

// LedgerService returns the configured ledger backend. tokens is only used
// by the sheets backend.
func LedgerService(ctx context.Context, cfg *config.Config, tokens *auth.TokenCache) (ledger.Service, error) {
	switch cfg.Ledger.Backend {
	case config.BackendWorkbook:
		store, err := workbook.NewStore(cfg.Ledger.WorkbookDir)
		if err != nil {
			return nil, fmt.Errorf("LedgerService: %w", err)
		}
		return store, nil
	case config.BackendSheets:
		ts, err := tokens.TokenSource(ctx, CredentialKey)
		if err != nil {
			return nil, fmt.Errorf("LedgerService: %w", err)
		}
		client, err := sheets.New(ctx, option.WithTokenSource(ts))
		if err != nil {
			return nil, fmt.Errorf("LedgerService: %w", err)
		}
		return client, nil
	}
	return nil, fmt.Errorf("LedgerService: unknown backend %q", cfg.Ledger.Backend)
}

// IngestDeps wires the pipeline for cfg. The returned close function
// releases the archive client and must be called when done.
func IngestDeps(ctx context.Context, cfg *config.Config, tokens *auth.TokenCache) (pipeline.Deps, func() error, error) {
	noop := func() error { return nil }

	svc, err := LedgerService(ctx, cfg, tokens)
	if err != nil {
		return pipeline.Deps{}, noop, err
	}
	ext, err := extract.New(ctx, cfg.Gemini.Model)
	if err != nil {
		return pipeline.Deps{}, noop, fmt.Errorf("IngestDeps: %w", err)
	}

	deps := pipeline.Deps{
		Storage:   gcsuploader.NewGCSStorageService(),
		Extractor: ext,
		Exporter:  ledger.NewExporter(svc),
	}
	if !cfg.Archive.Enabled {
		return deps, noop, nil
	}

	archive, err := infra.NewBigQueryArchive(ctx, infra.Tables{
		ProjectID:    cfg.Archive.ProjectID,
		Dataset:      cfg.Archive.Dataset,
		Transactions: cfg.Archive.Table,
	})
	if err != nil {
		return pipeline.Deps{}, noop, fmt.Errorf("IngestDeps: %w", err)
	}
	if err := archive.EnsureTables(ctx); err != nil {
		archive.Close()
		return pipeline.Deps{}, noop, fmt.Errorf("IngestDeps: %w", err)
	}
	deps.Archive = archive
	return deps, archive.Close, nil
}

// LedgerTarget maps the ledger section onto a pipeline target. A non-empty
// spreadsheetID switches the run to append mode.
func LedgerTarget(cfg *config.Config, spreadsheetID string) pipeline.LedgerTarget {
	return pipeline.LedgerTarget{
		SpreadsheetID: spreadsheetID,
		TabName:       cfg.Ledger.TabName,
		TitlePrefix:   cfg.Ledger.TitlePrefix,
		FolderID:      cfg.Ledger.FolderID,
	}
}
