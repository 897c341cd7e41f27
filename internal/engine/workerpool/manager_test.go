package workerpool

import (
	"context"
	"testing"
	"time"

	"github.com/jobforge/jobforge/internal/engine/handler"
	"github.com/jobforge/jobforge/internal/engine/job"
	"github.com/jobforge/jobforge/internal/engine/queue"
	"github.com/jobforge/jobforge/internal/observability"
	"github.com/jobforge/jobforge/internal/store/memory"
)

func newTestManager(t *testing.T) (context.Context, *Manager, *queue.Queue) {
	t.Helper()
	ctx := context.Background()

	q, err := queue.New(ctx, queue.Config{Store: memory.New()})
	if err != nil {
		t.Fatalf("queue.New error: %v", err)
	}

	m := New(ctx, Config{Queue: q})
	return ctx, m, q
}

func TestAddWorker_InstallsHandlersBeforeDispatch(t *testing.T) {
	ctx, m, q := newTestManager(t)

	done := make(chan struct{}, 1)
	m.RegisterHandler(job.TypeCleanup, handler.Func(func(ctx context.Context, jv handler.JobView) handler.Result {
		done <- struct{}{}
		return handler.Success(nil)
	}))

	if err := m.AddWorker(job.WorkerInstance{
		ID:                  "worker-1",
		MaxJobs:              2,
		SupportedJobTypes:    []job.Type{job.TypeCleanup},
		Enabled:              true,
		HealthCheckInterval:  time.Minute,
	}); err != nil {
		t.Fatalf("AddWorker error: %v", err)
	}

	if _, err := q.CreateJob(ctx, job.CreateOptions{Type: job.TypeCleanup}); err != nil {
		t.Fatalf("CreateJob error: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected handler to run")
	}
}

func TestAddWorker_TypeFilterRespected(t *testing.T) {
	ctx, m, q := newTestManager(t)

	var ran int32
	m.RegisterHandler(job.TypeDigest, handler.Func(func(ctx context.Context, jv handler.JobView) handler.Result {
		ran++
		return handler.Success(nil)
	}))

	if err := m.AddWorker(job.WorkerInstance{
		ID:                  "cleanup-only",
		MaxJobs:              2,
		SupportedJobTypes:    []job.Type{job.TypeCleanup},
		Enabled:              true,
		HealthCheckInterval:  time.Minute,
	}); err != nil {
		t.Fatalf("AddWorker error: %v", err)
	}

	if _, err := q.CreateJob(ctx, job.CreateOptions{Type: job.TypeDigest}); err != nil {
		t.Fatalf("CreateJob error: %v", err)
	}

	time.Sleep(300 * time.Millisecond)
	if ran != 0 {
		t.Fatalf("expected worker with no affinity for TypeDigest to never run it")
	}

	got, ok := q.GetJob(mustFirstJobID(t, q))
	if !ok || got.Status == job.StatusCompleted {
		t.Fatalf("job should remain undispatched, got status %v", got.Status)
	}
}

func TestAddWorker_RecordsJobMetrics(t *testing.T) {
	ctx := context.Background()
	q, err := queue.New(ctx, queue.Config{Store: memory.New()})
	if err != nil {
		t.Fatalf("queue.New error: %v", err)
	}

	metrics := observability.NewJobMetrics()
	m := New(ctx, Config{Queue: q, Metrics: metrics})
	m.RegisterHandler(job.TypeCleanup, handler.Func(func(ctx context.Context, jv handler.JobView) handler.Result {
		return handler.Success(nil)
	}))

	if err := m.AddWorker(job.WorkerInstance{
		ID:                  "metered",
		MaxJobs:              2,
		SupportedJobTypes:    []job.Type{job.TypeCleanup},
		Enabled:              true,
		HealthCheckInterval:  time.Minute,
	}); err != nil {
		t.Fatalf("AddWorker error: %v", err)
	}

	if _, err := q.CreateJob(ctx, job.CreateOptions{Type: job.TypeCleanup}); err != nil {
		t.Fatalf("CreateJob error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if metrics.Snapshot().Done > 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expected Metrics.Done to be incremented by the worker's Processor, got %+v", metrics.Snapshot())
}

func mustFirstJobID(t *testing.T, q *queue.Queue) string {
	t.Helper()
	jobs := q.QueryJobs(queue.QueryFilters{})
	if len(jobs) == 0 {
		t.Fatalf("expected at least one job")
	}
	return jobs[0].ID
}

func TestEvaluateAutoScale_ScalesUpOnBacklog(t *testing.T) {
	_, m, _ := newTestManager(t)
	m.RegisterHandler(job.TypeCleanup, handler.Func(func(ctx context.Context, jv handler.JobView) handler.Result {
		return handler.Success(nil)
	}))

	m.EvaluateAutoScale(scaleUpQueueLength + 1)

	workers := m.ListWorkers()
	if len(workers) != 1 {
		t.Fatalf("expected one auto-created worker, got %d", len(workers))
	}
}

func TestPickWorker_LeastLoadedDefault(t *testing.T) {
	_, m, _ := newTestManager(t)

	if err := m.AddWorker(job.WorkerInstance{ID: "w1", MaxJobs: 10, SupportedJobTypes: []job.Type{job.TypeCleanup}, Enabled: true, HealthCheckInterval: time.Minute}); err != nil {
		t.Fatalf("AddWorker error: %v", err)
	}
	if err := m.AddWorker(job.WorkerInstance{ID: "w2", MaxJobs: 10, SupportedJobTypes: []job.Type{job.TypeCleanup}, Enabled: true, HealthCheckInterval: time.Minute}); err != nil {
		t.Fatalf("AddWorker error: %v", err)
	}

	id, ok := m.PickWorker(job.TypeCleanup)
	if !ok {
		t.Fatalf("expected an eligible worker")
	}
	if id != "w1" && id != "w2" {
		t.Fatalf("unexpected worker id %s", id)
	}
}

func TestRemoveWorker_Forceful_FailsActiveJobs(t *testing.T) {
	ctx, m, q := newTestManager(t)

	blockCh := make(chan struct{})
	m.RegisterHandler(job.TypeBackup, handler.Func(func(ctx context.Context, jv handler.JobView) handler.Result {
		<-ctx.Done()
		return handler.Failure("interrupted")
	}))
	defer close(blockCh)

	if err := m.AddWorker(job.WorkerInstance{ID: "doomed", MaxJobs: 1, SupportedJobTypes: []job.Type{job.TypeBackup}, Enabled: true, HealthCheckInterval: time.Minute}); err != nil {
		t.Fatalf("AddWorker error: %v", err)
	}

	j, err := q.CreateJob(ctx, job.CreateOptions{Type: job.TypeBackup, MaxRetries: 0})
	if err != nil {
		t.Fatalf("CreateJob error: %v", err)
	}

	time.Sleep(300 * time.Millisecond) // let the worker pick it up

	if err := m.RemoveWorker(ctx, "doomed", false); err != nil {
		t.Fatalf("RemoveWorker error: %v", err)
	}

	got, ok := q.GetJob(j.ID)
	if !ok {
		t.Fatalf("job disappeared")
	}
	if got.Status != job.StatusFailed {
		t.Fatalf("expected Failed after forceful removal, got %s", got.Status)
	}
}
