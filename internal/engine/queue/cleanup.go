package queue

import (
	"context"
	"time"
)

// Cleanup sweeps Completed and Failed buckets, removing from memory and
// the store any job whose FinishedAt predates olderThanHours (spec.md
// §4.1 "Cleanup"). Returns the number removed.
func (q *Queue) Cleanup(ctx context.Context, olderThanHours int) int {
	cutoff := q.now().Add(-time.Duration(olderThanHours) * time.Hour)

	q.mu.Lock()
	var toDelete []string
	for id := range q.completed {
		if j := q.byID[id]; j.FinishedAt != nil && j.FinishedAt.Before(cutoff) {
			toDelete = append(toDelete, id)
		}
	}
	for id := range q.failed {
		if j := q.byID[id]; j.FinishedAt != nil && j.FinishedAt.Before(cutoff) {
			toDelete = append(toDelete, id)
		}
	}
	for _, id := range toDelete {
		q.clearBuckets(id)
		delete(q.byID, id)
	}
	q.mu.Unlock()

	if q.cfg.Store != nil {
		for _, id := range toDelete {
			if err := q.cfg.Store.Delete(ctx, id); err != nil {
				q.cfg.Logger.Error("queue.cleanup_delete_failed", "job_id", id, "err", err)
			}
		}
	}

	return len(toDelete)
}

// Shutdown releases Queue resources. The Queue itself holds no background
// goroutines or open handles — it exists purely as an in-memory index —
// so this is a placeholder hook for symmetry with the Processor/Scheduler/
// Monitor Shutdown methods and future extension (e.g. a final flush).
func (q *Queue) Shutdown() {}
