package pipeline

import (
	"context"

	"github.com/dvloznov/statement-ledger/internal/csvexport"
	"github.com/dvloznov/statement-ledger/internal/entities"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/statementtext"
)

// Deps are the collaborators of one ingestion. Archive may be nil.
type Deps struct {
	Storage   StorageService
	Extractor Extractor
	Exporter  LedgerExporter
	Archive   ArchiveRepository

	Normalizer entities.Normalizer
	Parser     *statementtext.Parser
}

// Options configure one ingestion.
type Options struct {
	Ledger    LedgerTarget
	CSVOutput string // optional gs:// destination for the CSV rendition
	CSV       csvexport.Options
}

// NewStatementIngestionPipeline creates the standard statement pipeline.
func NewStatementIngestionPipeline(deps Deps, opts Options) *Pipeline {
	return NewPipeline(
		&FetchStatementStep{Storage: deps.Storage},
		&ExtractEntitiesStep{Extractor: deps.Extractor},
		&NormalizeStep{Normalizer: deps.Normalizer},
		&TextFallbackStep{Extractor: deps.Extractor, Parser: deps.Parser},
		&FilterExportableStep{},
		&ArchiveStep{Archive: deps.Archive},
		&ExportCSVStep{Storage: deps.Storage, OutputURI: opts.CSVOutput, Options: opts.CSV},
		&LedgerExportStep{Exporter: deps.Exporter, Target: opts.Ledger},
	)
}

// IngestStatementFromGCSWithDeps runs the pipeline for one gs:// statement.
// With an archive configured the run is tracked in the export runs table.
func IngestStatementFromGCSWithDeps(ctx context.Context, gcsURI string, deps Deps, opts Options) (*PipelineState, error) {
	log := logger.FromContext(ctx)
	state := &PipelineState{GCSURI: gcsURI}

	if deps.Archive != nil {
		runID, err := deps.Archive.StartRun(ctx, gcsURI)
		if err != nil {
			return nil, err
		}
		state.RunID = runID
	}

	if err := NewStatementIngestionPipeline(deps, opts).Execute(ctx, state); err != nil {
		if deps.Archive != nil {
			deps.Archive.MarkRunFailed(ctx, state.RunID, err)
		}
		return state, err
	}

	if deps.Archive != nil {
		if err := deps.Archive.MarkRunSucceeded(ctx, state.RunID, state.Archived); err != nil {
			return state, err
		}
	}

	log.Info().
		Str("gcs_uri", gcsURI).
		Str("source", state.Source).
		Int("transactions", len(state.Transactions)).
		Msg("statement ingested")
	return state, nil
}
