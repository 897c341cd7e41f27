package queue

import "github.com/jobforge/jobforge/internal/engine/job"

// recover places jobs loaded from the store into the correct in-memory
// bucket (spec.md §4.1 "Recovery on startup"):
//   - Running jobs were interrupted by the crash/restart; demote to Queued
//     with StartedAt cleared so they are retried from scratch (handlers
//     must be idempotent — see SPEC_FULL.md Open Question (b)).
//   - Pending jobs with a future ScheduleTime join the Scheduled bucket.
//   - Everything else (Pending due now, Queued) joins the priority list.
func (q *Queue) recover(jobs []job.Job) {
	now := q.now()

	for i := range jobs {
		j := jobs[i]

		if j.Status == job.StatusRunning {
			j.Status = job.StatusQueued
			j.StartedAt = nil
			j.UpdatedAt = now
		} else if j.Status == job.StatusPending && !j.IsDue(now) {
			// stays Pending, goes to Scheduled bucket below
		} else {
			j.Status = job.StatusQueued
			j.UpdatedAt = now
		}

		jCopy := j
		q.byID[jCopy.ID] = &jCopy
		q.placeInBucket(&jCopy)
	}
}
