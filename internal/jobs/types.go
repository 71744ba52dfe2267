package jobs

import (
	"context"
	"errors"
	"time"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed and will not be retried.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and waits for another attempt.
	JobStatusRetrying JobStatus = "retrying"
)

// IngestJob runs one statement through the ingestion pipeline.
type IngestJob struct {
	JobID  string    `json:"job_id"`
	GCSURI string    `json:"gcs_uri"`
	Status JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error holds the message of the last failed attempt.
	Error       string `json:"error,omitempty"`
	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"max_attempts"`
}

// Terminal reports whether the job will not run again.
func (j *IngestJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// JobHandler processes a job. A returned error marks the attempt failed; it
// is retried unless it is Permanent.
type JobHandler func(ctx context.Context, job *IngestJob) error

// Publisher enqueues jobs.
type Publisher interface {
	Publish(ctx context.Context, job *IngestJob) error
	Close() error
}

// Consumer runs queued jobs.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error
	// Drain stops accepting jobs and waits until every queued job is done.
	Drain(ctx context.Context) error
	// Stop abandons queued jobs and waits for in-flight ones.
	Stop(ctx context.Context) error
}

// JobStore records job state.
type JobStore interface {
	SaveJob(ctx context.Context, job *IngestJob) error
	GetJob(ctx context.Context, jobID string) (*IngestJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*IngestJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	Status JobStatus
	Limit  int
	Offset int
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
