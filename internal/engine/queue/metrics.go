package queue

import "time"

// Metrics is the snapshot returned by Queue.GetMetrics (spec.md §4.1).
type Metrics struct {
	TotalJobs             int
	PendingJobs            int
	RunningJobs            int
	CompletedJobs          int
	FailedJobs             int
	QueueLength            int
	ActiveWorkers          int
	AverageProcessingTime  time.Duration
	SuccessRate            float64
	LastUpdated            time.Time
}

// GetMetrics aggregates the current bucket sizes and processing-time
// statistics. ActiveWorkers is always 0 here — the Monitor overwrites it
// with the live healthy-worker count it gets from the Worker Pool Manager
// (spec.md §4.5, metrics collection step 1).
func (q *Queue) GetMetrics() Metrics {
	q.mu.Lock()
	defer q.mu.Unlock()

	var totalProcessingTime time.Duration
	var processedCount int

	for id := range q.completed {
		j := q.byID[id]
		if j.StartedAt != nil && j.FinishedAt != nil {
			totalProcessingTime += j.FinishedAt.Sub(*j.StartedAt)
			processedCount++
		}
	}

	var avg time.Duration
	if processedCount > 0 {
		avg = totalProcessingTime / time.Duration(processedCount)
	}

	completed := len(q.completed)
	failed := len(q.failed)

	var successRate float64
	if completed+failed > 0 {
		successRate = float64(completed) / float64(completed+failed) * 100
	}

	return Metrics{
		TotalJobs:            len(q.byID),
		PendingJobs:          len(q.scheduled),
		RunningJobs:          len(q.running),
		CompletedJobs:        completed,
		FailedJobs:           failed,
		QueueLength:          len(q.queuedOrder),
		AverageProcessingTime: avg,
		SuccessRate:          successRate,
		LastUpdated:          q.now(),
	}
}

// OldestPending returns the CreatedAt of the longest-waiting Pending or
// Queued job, for the Monitor's health check endpoint (spec.md §4.5).
func (q *Queue) OldestPending() *time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()

	var oldest *time.Time
	consider := func(id string) {
		j := q.byID[id]
		if oldest == nil || j.CreatedAt.Before(*oldest) {
			t := j.CreatedAt
			oldest = &t
		}
	}
	for id := range q.scheduled {
		consider(id)
	}
	for _, id := range q.queuedOrder {
		consider(id)
	}
	return oldest
}

// LastProcessed returns the FinishedAt of the most recently
// completed-or-failed job, or nil if none have finished yet.
func (q *Queue) LastProcessed() *time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()

	var latest *time.Time
	consider := func(id string) {
		j := q.byID[id]
		if j.FinishedAt == nil {
			return
		}
		if latest == nil || j.FinishedAt.After(*latest) {
			t := *j.FinishedAt
			latest = &t
		}
	}
	for id := range q.completed {
		consider(id)
	}
	for id := range q.failed {
		consider(id)
	}
	return latest
}

// StuckJobs counts Running jobs whose StartedAt predates the cutoff
// (spec.md §4.5 "stuck_jobs" condition).
func (q *Queue) StuckJobs(cutoff time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for id := range q.running {
		j := q.byID[id]
		if j.StartedAt != nil && j.StartedAt.Before(cutoff) {
			n++
		}
	}
	return n
}
