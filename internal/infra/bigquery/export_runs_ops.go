package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	"github.com/dvloznov/statement-ledger/internal/logger"
)

const maxErrorMessage = 2000

// StartRunWithClient inserts a RUNNING export run and returns its id.
func StartRunWithClient(ctx context.Context, client *bigquery.Client, t Tables, sourceURI string) (string, error) {
	t = t.withDefaults()
	runID := uuid.NewString()

	q := client.Query(fmt.Sprintf(`
		INSERT %s (run_id, source_uri, started_ts, status)
		VALUES (@run_id, @source_uri, @started_ts, @status)
	`, t.qualified(t.Runs)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
		{Name: "source_uri", Value: sourceURI},
		{Name: "started_ts", Value: time.Now()},
		{Name: "status", Value: RunStatusRunning},
	}

	if err := runDML(ctx, q); err != nil {
		return "", fmt.Errorf("StartRun: %w", err)
	}
	return runID, nil
}

// MarkRunSucceededWithClient sets status=SUCCESS and the archived row count.
func MarkRunSucceededWithClient(ctx context.Context, client *bigquery.Client, t Tables, runID string, archived int) error {
	t = t.withDefaults()

	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = "",
		    archived = @archived
		WHERE run_id = @run_id
	`, t.qualified(t.Runs)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: RunStatusSuccess},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "archived", Value: archived},
		{Name: "run_id", Value: runID},
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("MarkRunSucceeded: %w", err)
	}
	return nil
}

// MarkRunFailedWithClient sets status=FAILED. Errors are logged, not
// returned, so the original failure stays the one reported.
func MarkRunFailedWithClient(ctx context.Context, client *bigquery.Client, t Tables, runID string, runErr error) {
	t = t.withDefaults()
	log := logger.FromContext(ctx)

	msg := ""
	if runErr != nil {
		msg = runErr.Error()
		if len(msg) > maxErrorMessage {
			msg = msg[:maxErrorMessage]
		}
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE run_id = @run_id
	`, t.qualified(t.Runs)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: RunStatusFailed},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: msg},
		{Name: "run_id", Value: runID},
	}

	if err := runDML(ctx, q); err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkRunFailed: update failed")
	}
}

func runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
