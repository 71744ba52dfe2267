package inmemory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/statement-ledger/internal/jobs"
)

func TestQueueRunsJobsWithRetries(t *testing.T) {
	store := NewStore()
	q := NewQueue(Options{MaxAttempts: 3, Backoff: time.Millisecond}, store)
	ctx := context.Background()

	var mu sync.Mutex
	calls := map[string]int{}
	handler := func(ctx context.Context, job *jobs.IngestJob) error {
		mu.Lock()
		calls[job.GCSURI]++
		n := calls[job.GCSURI]
		mu.Unlock()

		switch job.GCSURI {
		case "gs://b/flaky.pdf":
			if n == 1 {
				return errors.New("temporary")
			}
		case "gs://b/broken.pdf":
			return jobs.Permanent(errors.New("no exportable transactions"))
		case "gs://b/down.pdf":
			return errors.New("unavailable")
		}
		return nil
	}
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start: %v", err)
	}

	uris := []string{"gs://b/ok.pdf", "gs://b/flaky.pdf", "gs://b/broken.pdf", "gs://b/down.pdf"}
	published := make([]*jobs.IngestJob, len(uris))
	for i, uri := range uris {
		published[i] = &jobs.IngestJob{GCSURI: uri}
		if err := q.Publish(ctx, published[i]); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	if err := q.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	tests := []struct {
		uri      string
		status   jobs.JobStatus
		attempts int
	}{
		{"gs://b/ok.pdf", jobs.JobStatusCompleted, 1},
		{"gs://b/flaky.pdf", jobs.JobStatusCompleted, 2},
		{"gs://b/broken.pdf", jobs.JobStatusFailed, 1},
		{"gs://b/down.pdf", jobs.JobStatusFailed, 3},
	}
	for i, tt := range tests {
		job := published[i]
		if job.Status != tt.status || job.Attempts != tt.attempts {
			t.Errorf("%s: status %s after %d attempts, want %s after %d", tt.uri, job.Status, job.Attempts, tt.status, tt.attempts)
		}
		stored, err := store.GetJob(ctx, job.JobID)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if stored.Status != tt.status {
			t.Errorf("%s: stored status = %s", tt.uri, stored.Status)
		}
	}
	if published[1].Error != "" {
		t.Errorf("completed job kept error %q", published[1].Error)
	}
	if published[3].Error != "unavailable" {
		t.Errorf("failed job error = %q", published[3].Error)
	}
}

func TestQueueRejectsAfterDrain(t *testing.T) {
	q := NewQueue(Options{}, nil)
	ctx := context.Background()
	if err := q.Start(ctx, func(context.Context, *jobs.IngestJob) error { return nil }); err != nil {
		t.Fatal(err)
	}
	if err := q.Drain(ctx); err != nil {
		t.Fatal(err)
	}
	if err := q.Publish(ctx, &jobs.IngestJob{GCSURI: "gs://b/late.pdf"}); err == nil {
		t.Error("expected publish to a drained queue to fail")
	}
	if err := q.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestPublishFillsDefaults(t *testing.T) {
	q := NewQueue(Options{MaxAttempts: 5}, nil)
	job := &jobs.IngestJob{GCSURI: "gs://b/a.pdf"}
	if err := q.Publish(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	if job.JobID == "" || job.Status != jobs.JobStatusPending || job.MaxAttempts != 5 || job.CreatedAt.IsZero() {
		t.Errorf("job = %+v", job)
	}
}

func TestStoreListJobs(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC)
	for i, status := range []jobs.JobStatus{jobs.JobStatusFailed, jobs.JobStatusCompleted, jobs.JobStatusCompleted} {
		job := &jobs.IngestJob{
			JobID:     string(rune('c' - i)),
			Status:    status,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.SaveJob(ctx, job); err != nil {
			t.Fatal(err)
		}
	}

	all, _ := s.ListJobs(ctx, jobs.JobFilter{})
	if len(all) != 3 || all[0].JobID != "c" || all[2].JobID != "a" {
		t.Errorf("expected oldest first, got %v %v %v", all[0].JobID, all[1].JobID, all[2].JobID)
	}

	done, _ := s.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusCompleted, Limit: 1, Offset: 1})
	if len(done) != 1 || done[0].JobID != "a" {
		t.Errorf("filtered = %+v", done)
	}

	if err := s.SaveJob(ctx, &jobs.IngestJob{}); err == nil {
		t.Error("expected error for missing job id")
	}
	if _, err := s.GetJob(ctx, "zzz"); err == nil {
		t.Error("expected error for unknown job")
	}
}

type mockStore struct {
	SaveJobFunc func(ctx context.Context, job *jobs.IngestJob) error
}

func (m *mockStore) SaveJob(ctx context.Context, job *jobs.IngestJob) error {
	return m.SaveJobFunc(ctx, job)
}

func (m *mockStore) GetJob(ctx context.Context, jobID string) (*jobs.IngestJob, error) {
	return nil, errors.New("not implemented")
}

func (m *mockStore) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.IngestJob, error) {
	return nil, errors.New("not implemented")
}

func TestStopReleasesBlockedPublish(t *testing.T) {
	saved := make(chan string, 2)
	store := &mockStore{SaveJobFunc: func(ctx context.Context, job *jobs.IngestJob) error {
		saved <- job.GCSURI
		return nil
	}}
	q := NewQueue(Options{BufferSize: 1}, store)
	ctx := context.Background()

	if err := q.Publish(ctx, &jobs.IngestJob{GCSURI: "gs://b/first.pdf"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	<-saved

	blocked := make(chan error, 1)
	go func() {
		blocked <- q.Publish(ctx, &jobs.IngestJob{GCSURI: "gs://b/second.pdf"})
	}()
	<-saved
	// give the second publish time to reach the full buffer
	time.Sleep(10 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := q.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	select {
	case err := <-blocked:
		if err == nil {
			t.Error("expected the blocked publish to fail after Stop")
		}
	case <-time.After(time.Second):
		t.Fatal("publish still blocked after Stop")
	}
}

func TestDrainLetsBlockedPublishThrough(t *testing.T) {
	queued := make(chan struct{}, 3)
	store := &mockStore{SaveJobFunc: func(ctx context.Context, job *jobs.IngestJob) error {
		if job.Status == jobs.JobStatusPending {
			queued <- struct{}{}
		}
		return nil
	}}
	q := NewQueue(Options{BufferSize: 1}, store)
	ctx := context.Background()

	var mu sync.Mutex
	var handled []string
	release := make(chan struct{})
	handler := func(ctx context.Context, job *jobs.IngestJob) error {
		<-release
		mu.Lock()
		handled = append(handled, job.GCSURI)
		mu.Unlock()
		return nil
	}
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start: %v", err)
	}

	uris := []string{"gs://b/a.pdf", "gs://b/b.pdf", "gs://b/c.pdf"}
	errs := make(chan error, len(uris))
	for _, uri := range uris {
		go func() {
			errs <- q.Publish(ctx, &jobs.IngestJob{GCSURI: uri})
		}()
	}
	for range uris {
		<-queued
	}

	drained := make(chan error, 1)
	go func() { drained <- q.Drain(ctx) }()
	close(release)

	for range uris {
		if err := <-errs; err != nil {
			t.Errorf("Publish: %v", err)
		}
	}
	if err := <-drained; err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(handled) != len(uris) {
		t.Errorf("handled %d jobs, want %d", len(handled), len(uris))
	}
}
