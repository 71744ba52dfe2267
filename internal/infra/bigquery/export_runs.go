package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// Export run statuses.
const (
	RunStatusRunning = "RUNNING"
	RunStatusSuccess = "SUCCESS"
	RunStatusFailed  = "FAILED"
)

// ExportRunRow tracks one ingestion of a statement.
type ExportRunRow struct {
	RunID     string `bigquery:"run_id"`     // REQUIRED
	SourceURI string `bigquery:"source_uri"` // REQUIRED

	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	Status       string             `bigquery:"status"`
	ErrorMessage string             `bigquery:"error_message"`
	Archived     bigquery.NullInt64 `bigquery:"archived"` // rows inserted by this run
}
