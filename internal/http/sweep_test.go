package http

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jobforge/jobforge/internal/engine/job"
	"github.com/jobforge/jobforge/internal/store"
	"github.com/jobforge/jobforge/internal/store/memory"
)

func TestSweepTerminalJobs_DeletesOnlyFinishedBeforeCutoff(t *testing.T) {
	memStore := memory.New()
	ctx := context.Background()
	now := time.Now().UTC()

	old := now.Add(-2 * time.Hour)
	mustUpsert(t, memStore, job.Job{ID: uuid.NewString(), Type: job.TypeCleanup, Status: job.StatusCompleted, FinishedAt: &old})
	mustUpsert(t, memStore, job.Job{ID: uuid.NewString(), Type: job.TypeCleanup, Status: job.StatusFailed, FinishedAt: &old})

	recent := now.Add(-1 * time.Minute)
	mustUpsert(t, memStore, job.Job{ID: uuid.NewString(), Type: job.TypeCleanup, Status: job.StatusCompleted, FinishedAt: &recent})

	mustUpsert(t, memStore, job.Job{ID: uuid.NewString(), Type: job.TypeCleanup, Status: job.StatusRunning})

	sweep := sweepTerminalJobs(memStore)
	deleted, err := sweep(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("sweep error: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", deleted)
	}

	remaining, err := memStore.FindMany(ctx, store.Filter{})
	if err != nil {
		t.Fatalf("FindMany error: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("expected 2 jobs to remain, got %d", len(remaining))
	}
}

func mustUpsert(t *testing.T, s *memory.Store, j job.Job) {
	t.Helper()
	if err := s.Upsert(context.Background(), j); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
}
