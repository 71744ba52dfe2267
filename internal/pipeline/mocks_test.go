package pipeline_test

import (
	"context"

	"github.com/dvloznov/statement-ledger/internal/dedup"
	"github.com/dvloznov/statement-ledger/internal/entities"
	infra "github.com/dvloznov/statement-ledger/internal/infra/bigquery"
	"github.com/dvloznov/statement-ledger/internal/ledger"
)

// MockStorageService is a mock implementation of StorageService for testing.
type MockStorageService struct {
	FetchFromGCSFunc              func(ctx context.Context, gcsURI string) ([]byte, error)
	UploadBytesFunc               func(ctx context.Context, gcsURI, contentType string, data []byte) error
	ExtractFilenameFromGCSURIFunc func(uri string) string
}

func (m *MockStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	if m.FetchFromGCSFunc != nil {
		return m.FetchFromGCSFunc(ctx, gcsURI)
	}
	return []byte("mock pdf data"), nil
}

func (m *MockStorageService) UploadBytes(ctx context.Context, gcsURI, contentType string, data []byte) error {
	if m.UploadBytesFunc != nil {
		return m.UploadBytesFunc(ctx, gcsURI, contentType, data)
	}
	return nil
}

func (m *MockStorageService) ExtractFilenameFromGCSURI(uri string) string {
	if m.ExtractFilenameFromGCSURIFunc != nil {
		return m.ExtractFilenameFromGCSURIFunc(uri)
	}
	return "2024-02.pdf"
}

// MockExtractor is a mock implementation of Extractor for testing.
type MockExtractor struct {
	ExtractEntitiesFunc func(ctx context.Context, pdf []byte) (entities.Document, error)
	ExtractTextFunc     func(ctx context.Context, pdf []byte) (string, error)

	TextCalls int
}

func (m *MockExtractor) ExtractEntities(ctx context.Context, pdf []byte) (entities.Document, error) {
	if m.ExtractEntitiesFunc != nil {
		return m.ExtractEntitiesFunc(ctx, pdf)
	}
	return entities.Document{}, nil
}

func (m *MockExtractor) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	m.TextCalls++
	if m.ExtractTextFunc != nil {
		return m.ExtractTextFunc(ctx, pdf)
	}
	return "", nil
}

// MockLedgerExporter is a mock implementation of LedgerExporter for testing.
type MockLedgerExporter struct {
	CreateFunc func(ctx context.Context, req ledger.CreateRequest) (*ledger.CreateResult, error)
	AppendFunc func(ctx context.Context, req ledger.AppendRequest) (*ledger.AppendResult, error)

	Creates []ledger.CreateRequest
	Appends []ledger.AppendRequest
}

func (m *MockLedgerExporter) Create(ctx context.Context, req ledger.CreateRequest) (*ledger.CreateResult, error) {
	m.Creates = append(m.Creates, req)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, req)
	}
	return &ledger.CreateResult{SpreadsheetID: "sheet-1", Rows: len(req.Transactions)}, nil
}

func (m *MockLedgerExporter) Append(ctx context.Context, req ledger.AppendRequest) (*ledger.AppendResult, error) {
	m.Appends = append(m.Appends, req)
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, req)
	}
	return &ledger.AppendResult{SpreadsheetID: req.SpreadsheetID, Appended: len(req.Transactions)}, nil
}

// MockArchive is a mock implementation of ArchiveRepository for testing.
type MockArchive struct {
	Existing  map[dedup.Hash]struct{}
	InsertErr error

	Inserted  []*infra.TransactionRow
	Succeeded []int
	Failed    []error
}

func (m *MockArchive) StartRun(ctx context.Context, sourceURI string) (string, error) {
	return "run-1", nil
}

func (m *MockArchive) ListHashes(ctx context.Context, accountID string) (map[dedup.Hash]struct{}, error) {
	if m.Existing == nil {
		return map[dedup.Hash]struct{}{}, nil
	}
	return m.Existing, nil
}

func (m *MockArchive) InsertTransactions(ctx context.Context, rows []*infra.TransactionRow) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.Inserted = append(m.Inserted, rows...)
	return nil
}

func (m *MockArchive) MarkRunSucceeded(ctx context.Context, runID string, archived int) error {
	m.Succeeded = append(m.Succeeded, archived)
	return nil
}

func (m *MockArchive) MarkRunFailed(ctx context.Context, runID string, runErr error) {
	m.Failed = append(m.Failed, runErr)
}
