package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/statement-ledger/internal/dedup"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

// Default table names inside the archive dataset.
const (
	DefaultDataset     = "statement_ledger"
	TransactionsTable  = "transactions"
	ExportRunsTable    = "export_runs"
	defaultDatasetZone = "US"
)

// Tables names the archive tables.
type Tables struct {
	ProjectID    string
	Dataset      string
	Transactions string
	Runs         string
}

func (t Tables) withDefaults() Tables {
	if t.Dataset == "" {
		t.Dataset = DefaultDataset
	}
	if t.Transactions == "" {
		t.Transactions = TransactionsTable
	}
	if t.Runs == "" {
		t.Runs = ExportRunsTable
	}
	return t
}

// qualified returns the backquoted `project.dataset.table` name.
func (t Tables) qualified(table string) string {
	return fmt.Sprintf("`%s.%s.%s`", t.ProjectID, t.Dataset, table)
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

// EnsureTablesWithClient creates the dataset and both tables when missing.
// Schemas are inferred from the row structs.
func EnsureTablesWithClient(ctx context.Context, client *bigquery.Client, t Tables) error {
	t = t.withDefaults()
	log := logger.FromContext(ctx)

	ds := client.DatasetInProject(t.ProjectID, t.Dataset)
	if _, err := ds.Metadata(ctx); err != nil {
		if !isNotFound(err) {
			return fmt.Errorf("EnsureTables: dataset metadata: %w", err)
		}
		if err := ds.Create(ctx, &bigquery.DatasetMetadata{Location: defaultDatasetZone}); err != nil {
			return fmt.Errorf("EnsureTables: create dataset: %w", err)
		}
		log.Info().Str("dataset", t.Dataset).Msg("archive dataset created")
	}

	tables := []struct {
		name string
		row  any
		meta func(bigquery.Schema) *bigquery.TableMetadata
	}{
		{t.Transactions, TransactionRow{}, func(s bigquery.Schema) *bigquery.TableMetadata {
			return &bigquery.TableMetadata{
				Schema:           s,
				TimePartitioning: &bigquery.TimePartitioning{Field: "created_ts"},
				Clustering:       &bigquery.Clustering{Fields: []string{"account_id"}},
			}
		}},
		{t.Runs, ExportRunRow{}, func(s bigquery.Schema) *bigquery.TableMetadata {
			return &bigquery.TableMetadata{Schema: s}
		}},
	}

	for _, tbl := range tables {
		ref := ds.Table(tbl.name)
		if _, err := ref.Metadata(ctx); err == nil {
			continue
		} else if !isNotFound(err) {
			return fmt.Errorf("EnsureTables: %s metadata: %w", tbl.name, err)
		}
		schema, err := bigquery.InferSchema(tbl.row)
		if err != nil {
			return fmt.Errorf("EnsureTables: infer %s schema: %w", tbl.name, err)
		}
		if err := ref.Create(ctx, tbl.meta(schema)); err != nil {
			return fmt.Errorf("EnsureTables: create %s: %w", tbl.name, err)
		}
		log.Info().Str("table", tbl.name).Msg("archive table created")
	}
	return nil
}

// InsertTransactionsWithClient streams rows into the transactions table.
// The transaction id doubles as the insert id so a retried batch is not
// archived twice.
func InsertTransactionsWithClient(ctx context.Context, client *bigquery.Client, t Tables, rows []*TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}
	t = t.withDefaults()

	savers := make([]*bigquery.StructSaver, 0, len(rows))
	for _, r := range rows {
		savers = append(savers, &bigquery.StructSaver{Struct: r, InsertID: r.TransactionID})
	}

	inserter := client.DatasetInProject(t.ProjectID, t.Dataset).Table(t.Transactions).Inserter()
	if err := inserter.Put(ctx, savers); err != nil {
		return fmt.Errorf("InsertTransactions: inserting rows: %w", err)
	}
	return nil
}

// ListHashesWithClient returns every archived transaction id, optionally
// limited to one account.
func ListHashesWithClient(ctx context.Context, client *bigquery.Client, t Tables, accountID string) (map[dedup.Hash]struct{}, error) {
	t = t.withDefaults()

	sql := fmt.Sprintf("SELECT DISTINCT transaction_id FROM %s", t.qualified(t.Transactions))
	var params []bigquery.QueryParameter
	if accountID != "" {
		sql += " WHERE account_id = @account_id"
		params = append(params, bigquery.QueryParameter{Name: "account_id", Value: accountID})
	}
	q := client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		if isNotFound(err) {
			return map[dedup.Hash]struct{}{}, nil
		}
		return nil, fmt.Errorf("ListHashes: query read: %w", err)
	}

	out := make(map[dedup.Hash]struct{})
	for {
		var r struct {
			TransactionID string `bigquery:"transaction_id"`
		}
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListHashes: iter next: %w", err)
		}
		if h, ok := archivedHash(r.TransactionID); ok {
			out[h] = struct{}{}
		}
	}
	return out, nil
}

// archivedHash returns the stored transaction id as a hash. Ids that are not
// well-formed hashes are skipped.
func archivedHash(id string) (dedup.Hash, bool) {
	h := dedup.Hash(id)
	return h, dedup.Valid(h)
}
