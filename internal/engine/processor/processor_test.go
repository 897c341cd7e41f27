package processor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jobforge/jobforge/internal/engine/handler"
	"github.com/jobforge/jobforge/internal/engine/job"
	"github.com/jobforge/jobforge/internal/engine/queue"
	"github.com/jobforge/jobforge/internal/store/memory"
)

func newTestQueue(t *testing.T) *queue.Queue {
	t.Helper()
	q, err := queue.New(context.Background(), queue.Config{
		Store:         memory.New(),
		RetryDelay:    time.Millisecond,
		BackoffFactor: 2,
		MaxRetryDelay: time.Second,
	})
	if err != nil {
		t.Fatalf("queue.New error: %v", err)
	}
	return q
}

func TestProcessJob_SuccessMarksCompleted(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	j, err := q.CreateJob(ctx, job.CreateOptions{Type: job.TypeCleanup})
	if err != nil {
		t.Fatalf("CreateJob error: %v", err)
	}

	p := New(Config{Queue: q, JobTimeout: time.Second})
	p.RegisterHandler(job.TypeCleanup, handler.Func(func(ctx context.Context, jv handler.JobView) handler.Result {
		return handler.Success(nil)
	}))

	next, err := q.GetNextJob(ctx)
	if err != nil || next == nil {
		t.Fatalf("expected a dispatchable job, got %v, err %v", next, err)
	}

	p.processJob(ctx, *next, mustHandler(t, p, job.TypeCleanup))

	got, ok := q.GetJob(j.ID)
	if !ok {
		t.Fatalf("job disappeared")
	}
	if got.Status != job.StatusCompleted {
		t.Fatalf("expected Completed, got %s", got.Status)
	}
	if got.Progress != 100 {
		t.Fatalf("expected progress 100, got %d", got.Progress)
	}
}

func TestProcessJob_FailureRetriesUntilExhausted(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	opts := job.CreateOptions{Type: job.TypeBackup, MaxRetries: 2}
	j, err := q.CreateJob(ctx, opts)
	if err != nil {
		t.Fatalf("CreateJob error: %v", err)
	}

	var invocations int64
	p := New(Config{Queue: q, JobTimeout: time.Second})
	h := handler.Func(func(ctx context.Context, jv handler.JobView) handler.Result {
		atomic.AddInt64(&invocations, 1)
		return handler.Failure("boom")
	})
	p.RegisterHandler(job.TypeBackup, h)

	for i := 0; i < 3; i++ {
		time.Sleep(5 * time.Millisecond) // let backoff schedule time pass
		next, err := q.GetNextJob(ctx)
		if err != nil {
			t.Fatalf("GetNextJob error: %v", err)
		}
		if next == nil {
			continue
		}
		p.processJob(ctx, *next, h)
	}

	got, ok := q.GetJob(j.ID)
	if !ok {
		t.Fatalf("job disappeared")
	}
	if got.Status != job.StatusFailed {
		t.Fatalf("expected terminal Failed after exhausting retries, got %s", got.Status)
	}
	if got.RetryCount != got.MaxRetries {
		t.Fatalf("expected retryCount == maxRetries (%d), got %d", got.MaxRetries, got.RetryCount)
	}
	// maxRetries=2 means three attempts total: the initial try plus two
	// retries, with the final attempt's failure going through failTerminal.
	if got := atomic.LoadInt64(&invocations); got != 3 {
		t.Fatalf("expected 3 handler invocations (initial + 2 retries), got %d", got)
	}
}

func TestProcessJob_NoHandlerFailsImmediately(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	j, err := q.CreateJob(ctx, job.CreateOptions{Type: job.TypeDigest})
	if err != nil {
		t.Fatalf("CreateJob error: %v", err)
	}

	p := New(Config{Queue: q, JobTimeout: time.Second})
	next, err := q.GetNextJob(ctx)
	if err != nil || next == nil {
		t.Fatalf("expected dispatchable job, got %v, err %v", next, err)
	}
	p.failNoHandler(ctx, *next)

	got, ok := q.GetJob(j.ID)
	if !ok {
		t.Fatalf("job disappeared")
	}
	if got.Status != job.StatusFailed {
		t.Fatalf("expected Failed, got %s", got.Status)
	}
}

func TestCancelJob_FiresToken(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	_, err := q.CreateJob(ctx, job.CreateOptions{Type: job.TypeHealthCheck})
	if err != nil {
		t.Fatalf("CreateJob error: %v", err)
	}

	p := New(Config{Queue: q, JobTimeout: time.Minute})
	var observed int32
	p.RegisterHandler(job.TypeHealthCheck, handler.Func(func(ctx context.Context, jv handler.JobView) handler.Result {
		<-ctx.Done()
		atomic.StoreInt32(&observed, 1)
		return handler.Failure("cancelled")
	}))

	next, err := q.GetNextJob(ctx)
	if err != nil || next == nil {
		t.Fatalf("expected dispatchable job, got %v, err %v", next, err)
	}

	h, _ := p.handlerFor(next.Type)
	p.launch(ctx, *next, h)

	// give launch a moment to register the cancel token
	time.Sleep(5 * time.Millisecond)
	if !p.CancelJob(next.ID) {
		t.Fatalf("expected CancelJob to find an active token")
	}

	p.wg.Wait()
	if atomic.LoadInt32(&observed) != 1 {
		t.Fatalf("expected handler to observe cancellation")
	}
}

func mustHandler(t *testing.T, p *Processor, jt job.Type) handler.Handler {
	t.Helper()
	h, ok := p.handlerFor(jt)
	if !ok {
		t.Fatalf("no handler registered for %s", jt)
	}
	return h
}
