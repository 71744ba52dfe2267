package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-ledger/internal/app"
	"github.com/dvloznov/statement-ledger/internal/gcsuploader"
	"github.com/dvloznov/statement-ledger/internal/jobs"
	"github.com/dvloznov/statement-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/statement-ledger/internal/ledger"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
)

func newIngestCmd(st *cliState) *cobra.Command {
	var (
		spreadsheetID string
		csvOutput     string
		attempts      int
	)
	cmd := &cobra.Command{
		Use:   "ingest gs://bucket/statement.pdf...",
		Short: "Extract PDF statements from GCS and export them to ledgers",
		Long: `ingest fetches statement PDFs from Cloud Storage, extracts their
transactions with Gemini (entity document first, statement text as a
fallback), optionally archives them in BigQuery and uploads a CSV, and
finally creates a ledger per statement or appends them all to --spreadsheet.
Statements run one at a time; failed fetches and extractions are retried.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deps, closeDeps, err := app.IngestDeps(ctx, st.cfg, st.tokens)
			if err != nil {
				return err
			}
			defer closeDeps()

			opts := pipeline.Options{
				Ledger:    app.LedgerTarget(st.cfg, spreadsheetID),
				CSVOutput: csvOutput,
			}
			if opts.CSV, err = app.CSVOptions(st.cfg.CSV); err != nil {
				return err
			}

			return runIngest(ctx, cmd.OutOrStdout(), args, attempts, func(ctx context.Context, uri string) (*pipeline.PipelineState, error) {
				return pipeline.IngestStatementFromGCSWithDeps(ctx, uri, deps, opts)
			})
		},
	}
	cmd.Flags().StringVar(&spreadsheetID, "spreadsheet", "", "append to this ledger instead of creating one")
	cmd.Flags().StringVar(&csvOutput, "csv-output", "", `gs:// object or prefix ending in "/" for a CSV copy`)
	cmd.Flags().IntVar(&attempts, "attempts", 3, "attempts per statement")
	return cmd
}

type ingestFunc func(ctx context.Context, gcsURI string) (*pipeline.PipelineState, error)

// runIngest queues every uri on a single worker and prints one summary
// line per statement. Only failures before the ledger step are retried.
func runIngest(ctx context.Context, out io.Writer, uris []string, attempts int, ingest ingestFunc) error {
	var (
		mu     sync.Mutex
		states = make(map[string]*pipeline.PipelineState)
	)
	handler := func(ctx context.Context, job *jobs.IngestJob) error {
		state, err := ingest(ctx, job.GCSURI)
		if err != nil {
			if !retryable(err) {
				return jobs.Permanent(err)
			}
			return err
		}
		mu.Lock()
		states[job.JobID] = state
		mu.Unlock()
		return nil
	}

	queue := inmemory.NewQueue(inmemory.Options{Workers: 1, MaxAttempts: attempts}, inmemory.NewStore())
	if err := queue.Start(ctx, handler); err != nil {
		return err
	}
	published := make([]*jobs.IngestJob, 0, len(uris))
	for _, uri := range uris {
		job := &jobs.IngestJob{GCSURI: uri}
		if err := queue.Publish(ctx, job); err != nil {
			queue.Stop(ctx)
			return err
		}
		published = append(published, job)
	}
	if err := queue.Drain(ctx); err != nil {
		return err
	}

	failed := 0
	for _, job := range published {
		if job.Status != jobs.JobStatusCompleted {
			failed++
			fmt.Fprintf(out, "%s: failed after %d attempt(s): %s\n", job.GCSURI, job.Attempts, job.Error)
			continue
		}
		state := states[job.JobID]
		switch {
		case state.Created != nil:
			fmt.Fprintf(out, "%s: %d transactions (%s), created %s\n", job.GCSURI, len(state.Transactions), state.Source, state.Created.SpreadsheetID)
		case state.Appended != nil:
			fmt.Fprintf(out, "%s: %d transactions (%s), appended %d, duplicates %d\n", job.GCSURI, len(state.Transactions), state.Source, state.Appended.Appended, state.Appended.Duplicates)
		}
		if state.CSVURI != "" {
			fmt.Fprintf(out, "%s: csv %s\n", job.GCSURI, state.CSVURI)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d statements failed", failed, len(published))
	}
	return nil
}

// retryable reports whether a failed ingest may run again. Anything that
// reached the ledger is final: a replay after a partial write would add the
// same rows twice.
func retryable(err error) bool {
	var (
		lerr *ledger.Error
		serr *ledger.StatusError
	)
	switch {
	case errors.Is(err, pipeline.ErrNoTransactions),
		errors.Is(err, pipeline.ErrLedgerExport),
		errors.As(err, &lerr),
		errors.As(err, &serr):
		return false
	}
	return true
}

func newUploadCmd(st *cliState) *cobra.Command {
	var dest string
	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a statement or export to GCS",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uri, err := uploadURI(dest, st.cfg.Storage.Bucket, args[0])
			if err != nil {
				return err
			}
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			if err := gcsuploader.UploadBytes(cmd.Context(), uri, contentTypeFor(args[0]), data); err != nil {
				return err
			}
			log := logger.FromContext(cmd.Context())
			log.Info().Str("gcs_uri", uri).Msg("uploaded")
			fmt.Fprintln(cmd.OutOrStdout(), uri)
			return nil
		},
	}
	cmd.Flags().StringVar(&dest, "to", "", `gs:// destination, or a prefix ending in "/" (default: storage.bucket)`)
	return cmd
}

// uploadURI resolves the destination of file. A destination ending in "/"
// receives the file's base name.
func uploadURI(dest, bucket, file string) (string, error) {
	base := filepath.Base(file)
	switch {
	case dest == "" && bucket == "":
		return "", errors.New("--to or storage.bucket is required")
	case dest == "":
		return fmt.Sprintf("gs://%s/statements/%s", bucket, base), nil
	case strings.HasSuffix(dest, "/"):
		dest += base
	}
	if _, _, err := gcsuploader.ParseGCSURI(dest); err != nil {
		return "", err
	}
	return dest, nil
}

func contentTypeFor(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".csv":
		return gcsuploader.ContentTypeCSV
	case ".xlsx":
		return gcsuploader.ContentTypeXLSX
	case ".pdf":
		return "application/pdf"
	}
	return "application/octet-stream"
}
