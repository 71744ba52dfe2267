package pipeline

import (
	"context"

	"github.com/dvloznov/statement-ledger/internal/entities"
	infra "github.com/dvloznov/statement-ledger/internal/infra/bigquery"
	"github.com/dvloznov/statement-ledger/internal/ledger"
)

// StorageService is an interface for storage operations.
type StorageService interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
	UploadBytes(ctx context.Context, gcsURI, contentType string, data []byte) error
	ExtractFilenameFromGCSURI(uri string) string
}

// Extractor turns statement PDFs into an entity document or plain text.
// The Gemini client in internal/extract implements it.
type Extractor interface {
	ExtractEntities(ctx context.Context, pdf []byte) (entities.Document, error)
	ExtractText(ctx context.Context, pdf []byte) (string, error)
}

// LedgerExporter writes transactions to a spreadsheet ledger.
// *ledger.Exporter implements it.
type LedgerExporter interface {
	Create(ctx context.Context, req ledger.CreateRequest) (*ledger.CreateResult, error)
	Append(ctx context.Context, req ledger.AppendRequest) (*ledger.AppendResult, error)
}

// ArchiveRepository is the optional BigQuery archive.
type ArchiveRepository = infra.ArchiveRepository
