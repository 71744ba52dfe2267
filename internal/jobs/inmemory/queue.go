package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/statement-ledger/internal/jobs"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

// Options configures a Queue. Zero values fall back to the defaults.
type Options struct {
	BufferSize  int           // jobs queued before Publish blocks; default 100
	Workers     int           // concurrent handlers; default 1
	MaxAttempts int           // attempts per job unless the job sets its own; default 3
	Backoff     time.Duration // wait before attempt n is n-1 times this; default 1s
}

// Queue is an in-memory implementation of job publisher and consumer.
// It uses Go channels for job distribution and is safe for concurrent use.
type Queue struct {
	jobChan   chan *jobs.IngestJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	sending   sync.WaitGroup // publishes past the closed check
	mu        sync.RWMutex
	store     jobs.JobStore
	opts      Options
	closed    bool
	draining  bool
	stopped   bool
}

// NewQueue creates a new in-memory job queue. store may be nil.
func NewQueue(opts Options, store jobs.JobStore) *Queue {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 100
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	return &Queue{
		jobChan:   make(chan *jobs.IngestJob, opts.BufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		opts:      opts,
	}
}

// Publish enqueues job, filling in its id, status and limits when unset.
// It blocks while the buffer is full until a worker takes a job, ctx is done
// or the queue is stopped.
func (q *Queue) Publish(ctx context.Context, job *jobs.IngestJob) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.sending.Add(1)
	q.mu.RUnlock()
	defer q.sending.Done()

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxAttempts == 0 {
		job.MaxAttempts = q.opts.MaxAttempts
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start launches the workers. Each job is handled by one worker at a time.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.stopped {
		q.mu.RUnlock()
		return fmt.Errorf("queue is stopped")
	}
	q.mu.RUnlock()

	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job, ok := <-q.jobChan:
			if !ok || job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob runs job until it succeeds, fails permanently or runs out of
// attempts.
func (q *Queue) processJob(ctx context.Context, job *jobs.IngestJob, handler jobs.JobHandler) {
	log := logger.FromContext(ctx).With().Str("job_id", job.JobID).Str("gcs_uri", job.GCSURI).Logger()

	for {
		job.Attempts++
		job.Status = jobs.JobStatusRunning
		now := time.Now()
		job.StartedAt = &now
		job.CompletedAt = nil
		q.save(ctx, job)

		err := handler(ctx, job)

		completedAt := time.Now()
		job.CompletedAt = &completedAt
		if err == nil {
			job.Status = jobs.JobStatusCompleted
			job.Error = ""
			q.save(ctx, job)
			return
		}

		job.Error = err.Error()
		if jobs.IsPermanent(err) || job.Attempts >= job.MaxAttempts || ctx.Err() != nil {
			job.Status = jobs.JobStatusFailed
			q.save(ctx, job)
			log.Error().Err(err).Int("attempts", job.Attempts).Msg("job failed")
			return
		}

		job.Status = jobs.JobStatusRetrying
		q.save(ctx, job)
		backoff := time.Duration(job.Attempts) * q.opts.Backoff
		log.Warn().Err(err).Int("attempt", job.Attempts).Dur("backoff", backoff).Msg("job attempt failed, retrying")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			job.Status = jobs.JobStatusFailed
			q.save(ctx, job)
			return
		case <-q.closeChan:
			job.Status = jobs.JobStatusFailed
			q.save(ctx, job)
			return
		}
	}
}

func (q *Queue) save(ctx context.Context, job *jobs.IngestJob) {
	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}
}

// Drain stops accepting jobs and waits until the workers have finished
// every queued job. Publishes already blocked on a full buffer are let
// through first.
func (q *Queue) Drain(ctx context.Context) error {
	q.mu.Lock()
	first := !q.draining
	q.closed = true
	q.draining = true
	q.mu.Unlock()

	if first {
		q.sending.Wait()
		close(q.jobChan)
	}
	return q.wait(ctx)
}

// Stop stops the workers without running queued jobs and waits for
// in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.stopped = true
	close(q.closeChan)
	q.mu.Unlock()
	return q.wait(ctx)
}

func (q *Queue) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
