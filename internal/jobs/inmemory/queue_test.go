package inmemory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/mailparse/internal/jobs"
)

func TestQueuePublishAndConsume(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 2, store)
	defer q.Close()

	var processed atomic.Int64
	done := make(chan struct{}, 1)

	handler := func(ctx context.Context, job jobs.Job) error {
		if processed.Add(1) == 3 {
			done <- struct{}{}
		}
		return nil
	}

	ctx := context.Background()
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		job := &jobs.ParseEmailJob{EmailID: "e1"}
		if err := q.PublishParseEmail(ctx, job); err != nil {
			t.Fatalf("PublishParseEmail() error = %v", err)
		}
		if job.JobID == "" {
			t.Error("JobID was not assigned on publish")
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("processed %d jobs, want 3", processed.Load())
	}
}

func TestQueueJobLifecycleInStore(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store)
	defer q.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	handler := func(ctx context.Context, job jobs.Job) error {
		defer wg.Done()
		return nil
	}

	ctx := context.Background()
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	job := &jobs.ParseEmailJob{EmailID: "e1", ForceReparse: true}
	if err := q.PublishParseEmail(ctx, job); err != nil {
		t.Fatalf("PublishParseEmail() error = %v", err)
	}
	wg.Wait()

	// The final store write races the handler return by a hair.
	deadline := time.Now().Add(time.Second)
	for {
		stored, err := store.GetJob(ctx, job.JobID)
		if err != nil {
			t.Fatalf("GetJob() error = %v", err)
		}
		if stored.Status == jobs.JobStatusCompleted {
			if !stored.ForceReparse {
				t.Error("ForceReparse flag lost in the store")
			}
			if stored.StartedAt == nil || stored.CompletedAt == nil {
				t.Errorf("timestamps = %v/%v, want both set", stored.StartedAt, stored.CompletedAt)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("job status = %v, want %v", stored.Status, jobs.JobStatusCompleted)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store)
	defer q.Close()

	var calls atomic.Int64
	done := make(chan struct{})

	handler := func(ctx context.Context, job jobs.Job) error {
		if calls.Add(1) == 1 {
			return errors.New("transient failure")
		}
		close(done)
		return nil
	}

	ctx := context.Background()
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	job := &jobs.ParseEmailJob{EmailID: "e1", MaxRetries: 2}
	if err := q.PublishParseEmail(ctx, job); err != nil {
		t.Fatalf("PublishParseEmail() error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("job was not retried, calls = %d", calls.Load())
	}
	if calls.Load() != 2 {
		t.Errorf("handler calls = %d, want 2", calls.Load())
	}
}

func TestQueueClosedRejectsPublish(t *testing.T) {
	q := NewQueue(1, 1, nil)
	if err := q.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	err := q.PublishParseEmail(context.Background(), &jobs.ParseEmailJob{EmailID: "e1"})
	if err == nil {
		t.Error("PublishParseEmail() after Close = nil, want error")
	}
}

func TestStoreListJobs(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	seed := []*jobs.ParseEmailJob{
		{JobID: "j1", EmailID: "a", Status: jobs.JobStatusPending},
		{JobID: "j2", EmailID: "a", Status: jobs.JobStatusCompleted},
		{JobID: "j3", EmailID: "b", Status: jobs.JobStatusCompleted},
	}
	for _, j := range seed {
		if err := store.SaveJob(ctx, j); err != nil {
			t.Fatalf("SaveJob(%s) error = %v", j.JobID, err)
		}
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   int
	}{
		{name: "all", filter: jobs.JobFilter{}, want: 3},
		{name: "by email", filter: jobs.JobFilter{EmailID: "a"}, want: 2},
		{name: "by status", filter: jobs.JobFilter{Status: jobs.JobStatusCompleted}, want: 2},
		{name: "combined", filter: jobs.JobFilter{EmailID: "b", Status: jobs.JobStatusCompleted}, want: 1},
		{name: "limit", filter: jobs.JobFilter{Limit: 2}, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListJobs(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListJobs() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("ListJobs() = %d jobs, want %d", len(got), tt.want)
			}
		})
	}

	if err := store.SaveJob(ctx, &jobs.ParseEmailJob{}); err == nil {
		t.Error("SaveJob() without ID = nil, want error")
	}
	if _, err := store.GetJob(ctx, "missing"); err == nil {
		t.Error("GetJob(missing) = nil error, want error")
	}
}
