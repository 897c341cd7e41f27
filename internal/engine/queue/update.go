package queue

import (
	"context"
	"math"
	"time"

	"github.com/jobforge/jobforge/internal/engine/events"
	"github.com/jobforge/jobforge/internal/engine/job"
)

// Update is the patch applied by UpdateJob. Only non-nil fields are
// changed.
type Update struct {
	Status     *job.Status
	Progress   *int
	Error      *string
	StartedAt  *time.Time
	FinishedAt *time.Time
	RetryCount *int
}

var eventForStatus = map[job.Status]events.Kind{
	job.StatusCompleted: events.JobCompleted,
	job.StatusFailed:    events.JobFailed,
	job.StatusCancelled: events.JobCancelled,
	job.StatusRunning:   events.JobStarted,
	job.StatusRetrying:  events.JobRetrying,
}

// UpdateJob applies a patch, recomputing bucket membership on status
// change and write-through to the store (spec.md §4.1 "Updates").
func (q *Queue) UpdateJob(ctx context.Context, id string, upd Update) (*job.Job, error) {
	q.mu.Lock()

	j, ok := q.byID[id]
	if !ok {
		q.mu.Unlock()
		return nil, job.ErrJobNotFound
	}

	statusChanged := false
	if upd.Progress != nil {
		j.Progress = *upd.Progress
	}
	if upd.Error != nil {
		j.Error = upd.Error
	}
	if upd.StartedAt != nil {
		j.StartedAt = upd.StartedAt
	}
	if upd.FinishedAt != nil {
		j.FinishedAt = upd.FinishedAt
	}
	if upd.RetryCount != nil {
		j.RetryCount = *upd.RetryCount
	}
	if upd.Status != nil && *upd.Status != j.Status {
		j.Status = *upd.Status
		statusChanged = true
		q.placeInBucket(j)
	}
	j.UpdatedAt = q.now()
	snapshot := j.Clone()
	q.mu.Unlock()

	q.persist(ctx, snapshot)

	if statusChanged {
		if kind, ok := eventForStatus[snapshot.Status]; ok {
			q.publish(events.Event{Kind: kind, JobID: snapshot.ID})
		}
	} else if upd.Progress != nil {
		q.publish(events.Event{Kind: events.JobProgressUpdated, JobID: snapshot.ID, Payload: snapshot.Progress})
	}

	return &snapshot, nil
}

// GetJob returns a snapshot of the job, or false if unknown.
func (q *Queue) GetJob(id string) (job.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.byID[id]
	if !ok {
		return job.Job{}, false
	}
	return j.Clone(), true
}

// QueryFilters narrows QueryJobs.
type QueryFilters struct {
	Status      *job.Status
	Type        *job.Type
	CreatedByID *string
}

// QueryJobs returns every tracked job matching the filters.
func (q *Queue) QueryJobs(filters QueryFilters) []job.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]job.Job, 0, len(q.byID))
	for _, j := range q.byID {
		if filters.Status != nil && j.Status != *filters.Status {
			continue
		}
		if filters.Type != nil && j.Type != *filters.Type {
			continue
		}
		if filters.CreatedByID != nil && j.CreatedByID != *filters.CreatedByID {
			continue
		}
		out = append(out, j.Clone())
	}
	return out
}

// CancelJob marks a job Cancelled if it is not already terminal.
func (q *Queue) CancelJob(ctx context.Context, id string) bool {
	q.mu.Lock()
	j, ok := q.byID[id]
	if !ok || j.Status.IsTerminal() {
		q.mu.Unlock()
		return false
	}

	now := q.now()
	j.Status = job.StatusCancelled
	j.FinishedAt = timePtr(now)
	j.UpdatedAt = now
	q.placeInBucket(j)
	snapshot := j.Clone()
	q.mu.Unlock()

	q.persist(ctx, snapshot)
	q.publish(events.Event{Kind: events.JobCancelled, JobID: snapshot.ID})
	return true
}

// RetryJob re-schedules a Failed/Retrying job with exponential backoff
// (spec.md §4.1 "Retry"): delay = min(maxRetryDelay, retryDelay *
// backoffFactor^retryCount).
func (q *Queue) RetryJob(ctx context.Context, id string) bool {
	q.mu.Lock()

	j, ok := q.byID[id]
	if !ok {
		q.mu.Unlock()
		return false
	}
	if j.Status != job.StatusFailed && j.Status != job.StatusRetrying {
		q.mu.Unlock()
		return false
	}
	// Status/RetryCount have already been persisted by the caller's
	// UpdateJob (processor.fail) before RetryJob runs, so RetryCount here
	// is post-increment: only reject once it has actually overrun
	// MaxRetries, not on the legitimate final retry where it equals it.
	if j.RetryCount > j.MaxRetries {
		q.mu.Unlock()
		return false
	}

	delay := backoffDelay(q.cfg.RetryDelay, q.cfg.BackoffFactor, q.cfg.MaxRetryDelay, j.RetryCount)
	now := q.now()
	runAt := now.Add(delay)

	j.Status = job.StatusPending
	j.ScheduleTime = timePtr(runAt)
	j.Error = nil
	j.StartedAt = nil
	j.FinishedAt = nil
	j.UpdatedAt = now
	q.placeInBucket(j)
	snapshot := j.Clone()
	q.mu.Unlock()

	q.persist(ctx, snapshot)
	q.publish(events.Event{Kind: events.JobRetrying, JobID: snapshot.ID})
	return true
}

func backoffDelay(retryDelay time.Duration, backoffFactor float64, maxRetryDelay time.Duration, retryCount int) time.Duration {
	multiplier := math.Pow(backoffFactor, float64(retryCount))
	delay := time.Duration(float64(retryDelay) * multiplier)
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}
