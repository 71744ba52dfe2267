package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/dvloznov/statement-ledger/internal/csvexport"
	"github.com/dvloznov/statement-ledger/internal/dedup"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/entities"
	"github.com/dvloznov/statement-ledger/internal/gcsuploader"
	infra "github.com/dvloznov/statement-ledger/internal/infra/bigquery"
	"github.com/dvloznov/statement-ledger/internal/ledger"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/statementtext"
)

// ErrNoTransactions is returned when neither route yields an exportable
// transaction.
var ErrNoTransactions = errors.New("no exportable transactions")

// ErrLedgerExport marks failures of the ledger step. The ledger may already
// hold some of the rows, so a run that failed with it must not be replayed.
var ErrLedgerExport = errors.New("ledger export failed")

// PipelineStep represents a single step in the ingestion pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	GCSURI   string
	Filename string
	RunID    string
	PDFBytes []byte

	Document     entities.Document
	Transactions []domain.Transaction
	Source       string // SourceEntities or SourceText
	Dropped      int    // rows the normalizer could not resolve

	Archived int
	CSVURI   string
	Created  *ledger.CreateResult
	Appended *ledger.AppendResult
}

// Step 1: FetchStatementStep fetches the PDF bytes from GCS.
type FetchStatementStep struct {
	Storage StorageService
}

func (s *FetchStatementStep) Execute(ctx context.Context, state *PipelineState) error {
	pdf, err := s.Storage.FetchFromGCS(ctx, state.GCSURI)
	if err != nil {
		return err
	}
	state.PDFBytes = pdf
	state.Filename = s.Storage.ExtractFilenameFromGCSURI(state.GCSURI)
	return nil
}

// Step 2: ExtractEntitiesStep asks the extractor for the entity document.
// A failed extraction leaves the document empty so the text route runs.
type ExtractEntitiesStep struct {
	Extractor Extractor
}

func (s *ExtractEntitiesStep) Execute(ctx context.Context, state *PipelineState) error {
	doc, err := s.Extractor.ExtractEntities(ctx, state.PDFBytes)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().
			Err(err).
			Str("gcs_uri", state.GCSURI).
			Msg("entity extraction failed, falling back to text")
		state.Document = entities.Document{}
		return nil
	}
	state.Document = doc
	return nil
}

// Step 3: NormalizeStep converts the entity document.
type NormalizeStep struct {
	Normalizer entities.Normalizer
}

func (s *NormalizeStep) Execute(ctx context.Context, state *PipelineState) error {
	txs, stats := s.Normalizer.NormalizeWithStats(state.Document)
	state.Transactions = txs
	state.Dropped = stats.Dropped
	state.Source = SourceEntities

	log := logger.FromContext(ctx)
	log.Info().
		Int("rows", stats.Rows).
		Int("kept", stats.Kept).
		Int("dropped", stats.Dropped).
		Msg("entities normalized")
	return nil
}

// Step 4: TextFallbackStep parses the statement text when the entity route
// produced nothing.
type TextFallbackStep struct {
	Extractor Extractor
	Parser    *statementtext.Parser
}

func (s *TextFallbackStep) Execute(ctx context.Context, state *PipelineState) error {
	if len(state.Transactions) > 0 {
		return nil
	}
	text, err := s.Extractor.ExtractText(ctx, state.PDFBytes)
	if err != nil {
		return fmt.Errorf("TextFallbackStep: %w", err)
	}
	parser := s.Parser
	if parser == nil {
		parser = statementtext.New(statementtext.Options{})
	}
	state.Transactions = parser.ParseTransactions(text)
	state.Source = SourceText

	log := logger.FromContext(ctx)
	log.Info().
		Int("transactions", len(state.Transactions)).
		Msg("statement text parsed")
	return nil
}

// Step 5: FilterExportableStep drops transactions no exporter may write.
type FilterExportableStep struct{}

func (s *FilterExportableStep) Execute(ctx context.Context, state *PipelineState) error {
	before := len(state.Transactions)
	state.Transactions = domain.Exportable(state.Transactions)
	if skipped := before - len(state.Transactions); skipped > 0 {
		log := logger.FromContext(ctx)
		log.Debug().Int("skipped", skipped).Msg("non-exportable transactions skipped")
	}
	if len(state.Transactions) == 0 {
		return ErrNoTransactions
	}
	return nil
}

// Step 6: ArchiveStep inserts transactions the archive has not seen yet.
type ArchiveStep struct {
	Archive ArchiveRepository
	Now     func() time.Time
}

func (s *ArchiveStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Archive == nil {
		return nil
	}
	existing, err := s.Archive.ListHashes(ctx, "")
	if err != nil {
		return fmt.Errorf("ArchiveStep: list hashes: %w", err)
	}
	res := dedup.FilterDuplicates(state.Transactions, existing)

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	created := now()
	rows := make([]*infra.TransactionRow, 0, len(res.Unique))
	for _, tx := range res.Unique {
		rows = append(rows, infra.NewTransactionRow(tx, state.RunID, state.GCSURI, created))
	}
	if err := s.Archive.InsertTransactions(ctx, rows); err != nil {
		return fmt.Errorf("ArchiveStep: %w", err)
	}
	state.Archived = len(rows)

	log := logger.FromContext(ctx)
	log.Info().
		Int("archived", len(rows)).
		Int("duplicates", res.DuplicateCount).
		Msg("transactions archived")
	return nil
}

// Step 7: ExportCSVStep uploads the CSV rendition next to the statement.
type ExportCSVStep struct {
	Storage   StorageService
	OutputURI string // gs:// object or prefix ending in "/"
	Options   csvexport.Options
}

func (s *ExportCSVStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.OutputURI == "" {
		return nil
	}
	uri := s.OutputURI
	if strings.HasSuffix(uri, "/") {
		base := strings.TrimSuffix(state.Filename, path.Ext(state.Filename))
		uri += base + ".csv"
	}

	var b strings.Builder
	if err := csvexport.Write(&b, state.Transactions, s.Options); err != nil {
		return fmt.Errorf("ExportCSVStep: %w", err)
	}
	if err := s.Storage.UploadBytes(ctx, uri, gcsuploader.ContentTypeCSV, []byte(b.String())); err != nil {
		return fmt.Errorf("ExportCSVStep: %w", err)
	}
	state.CSVURI = uri
	return nil
}

// Step 8: LedgerExportStep appends to an existing ledger when one is
// configured and creates a new one otherwise.
type LedgerExportStep struct {
	Exporter LedgerExporter
	Target   LedgerTarget
}

// LedgerTarget selects the ledger a run writes to.
type LedgerTarget struct {
	SpreadsheetID string // append when set
	TabName       string // DefaultTabName when empty
	TitlePrefix   string
	FolderID      string // move new ledgers here when set
}

func (s *LedgerExportStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Target.SpreadsheetID != "" {
		tab := s.Target.TabName
		if tab == "" {
			tab = DefaultTabName
		}
		res, err := s.Exporter.Append(ctx, ledger.AppendRequest{
			SpreadsheetID: s.Target.SpreadsheetID,
			TabName:       tab,
			Transactions:  state.Transactions,
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrLedgerExport, err)
		}
		state.Appended = res
		return nil
	}

	res, err := s.Exporter.Create(ctx, ledger.CreateRequest{
		Title:        s.Target.title(state.Filename),
		Transactions: state.Transactions,
		Move:         s.Target.FolderID != "",
		FolderID:     s.Target.FolderID,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLedgerExport, err)
	}
	state.Created = res
	return nil
}

func (t LedgerTarget) title(filename string) string {
	prefix := t.TitlePrefix
	if prefix == "" {
		prefix = DefaultTitlePrefix
	}
	base := strings.TrimSuffix(filename, path.Ext(filename))
	if base == "" {
		return prefix
	}
	return prefix + " " + base
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}
