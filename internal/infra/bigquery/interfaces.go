package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/statement-ledger/internal/dedup"
)

// ArchiveRepository is the archive surface the ingestion pipeline uses.
type ArchiveRepository interface {
	StartRun(ctx context.Context, sourceURI string) (string, error)
	ListHashes(ctx context.Context, accountID string) (map[dedup.Hash]struct{}, error)
	InsertTransactions(ctx context.Context, rows []*TransactionRow) error
	MarkRunSucceeded(ctx context.Context, runID string, archived int) error
	MarkRunFailed(ctx context.Context, runID string, runErr error)
}

// BigQueryArchive implements ArchiveRepository with a shared client.
type BigQueryArchive struct {
	client *bigquery.Client
	tables Tables
}

var _ ArchiveRepository = (*BigQueryArchive)(nil)

// NewBigQueryArchive opens a client for tables.ProjectID.
func NewBigQueryArchive(ctx context.Context, tables Tables) (*BigQueryArchive, error) {
	client, err := bigquery.NewClient(ctx, tables.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryArchive: creating client: %w", err)
	}
	return &BigQueryArchive{client: client, tables: tables.withDefaults()}, nil
}

// Close closes the BigQuery client connection.
func (a *BigQueryArchive) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

// EnsureTables creates the archive dataset and tables when missing.
func (a *BigQueryArchive) EnsureTables(ctx context.Context) error {
	return EnsureTablesWithClient(ctx, a.client, a.tables)
}

func (a *BigQueryArchive) StartRun(ctx context.Context, sourceURI string) (string, error) {
	return StartRunWithClient(ctx, a.client, a.tables, sourceURI)
}

func (a *BigQueryArchive) ListHashes(ctx context.Context, accountID string) (map[dedup.Hash]struct{}, error) {
	return ListHashesWithClient(ctx, a.client, a.tables, accountID)
}

func (a *BigQueryArchive) InsertTransactions(ctx context.Context, rows []*TransactionRow) error {
	return InsertTransactionsWithClient(ctx, a.client, a.tables, rows)
}

func (a *BigQueryArchive) MarkRunSucceeded(ctx context.Context, runID string, archived int) error {
	return MarkRunSucceededWithClient(ctx, a.client, a.tables, runID, archived)
}

func (a *BigQueryArchive) MarkRunFailed(ctx context.Context, runID string, runErr error) {
	MarkRunFailedWithClient(ctx, a.client, a.tables, runID, runErr)
}
