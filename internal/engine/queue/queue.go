// Package queue implements the in-memory job index described in
// SPEC_FULL.md §4.1: per-state buckets, a priority-ordered dispatch list,
// dependency/schedule gating, and store write-through. It is the component
// every other part of the engine (Processor, Scheduler, Monitor) talks to;
// it never talks back to them.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jobforge/jobforge/internal/engine/events"
	"github.com/jobforge/jobforge/internal/engine/job"
	"github.com/jobforge/jobforge/internal/store"
)

// DigestExists is an optional collaborator the Queue calls to validate
// CreateOptions.DigestID. The digest store is an external system (out of
// scope per spec.md §1) — when this is nil, digest references are accepted
// unchecked, matching "never blocks creation".
type DigestExists func(ctx context.Context, digestID string) bool

type Config struct {
	Store  store.JobStore
	Bus    *events.Bus
	Logger *slog.Logger

	RetryDelay    time.Duration
	BackoffFactor float64
	MaxRetryDelay time.Duration

	DigestExists DigestExists

	// OnJobCreated, if set, fires after every successful creation (not on
	// idempotent replays) with the current queue length, so a
	// WorkerPoolManager can evaluate auto-scaling without the Queue
	// knowing workers exist (spec.md §4.4 "Auto-scale").
	OnJobCreated func(queueLength int)

	// Now is overridable for deterministic tests.
	Now func() time.Time
}

func (c *Config) setDefaults() {
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.BackoffFactor <= 0 {
		c.BackoffFactor = 2
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = 5 * time.Minute
	}
	if c.Now == nil {
		c.Now = func() time.Time { return time.Now().UTC() }
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Queue is the in-memory index of all live jobs. All exported methods are
// safe for concurrent use; state moves are serialized under mu so they are
// atomic from the perspective of any caller (spec.md §5).
type Queue struct {
	cfg Config
	mu  sync.Mutex

	// byID is the canonical record for every job the Queue currently
	// tracks, regardless of bucket.
	byID map[string]*job.Job

	// queuedOrder holds the IDs of Queued jobs, kept sorted by
	// (priority desc, createdAt asc) — spec.md invariant 5.
	queuedOrder []string

	running   map[string]bool
	scheduled map[string]bool // Pending jobs gated on a future ScheduleTime
	completed map[string]bool
	failed    map[string]bool
	cancelled map[string]bool
}

// New constructs a Queue and, if cfg.Store is set, recovers non-terminal
// jobs from it (spec.md §4.1 "Recovery on startup").
func New(ctx context.Context, cfg Config) (*Queue, error) {
	cfg.setDefaults()
	q := &Queue{
		cfg:       cfg,
		byID:      make(map[string]*job.Job),
		running:   make(map[string]bool),
		scheduled: make(map[string]bool),
		completed: make(map[string]bool),
		failed:    make(map[string]bool),
		cancelled: make(map[string]bool),
	}

	if cfg.Store == nil {
		return q, nil
	}

	recovered, err := cfg.Store.FindMany(ctx, store.Filter{
		Statuses: []job.Status{job.StatusPending, job.StatusQueued, job.StatusRunning},
	})
	if err != nil {
		return nil, fmt.Errorf("queue: recover jobs: %w", err)
	}
	q.recover(recovered)
	return q, nil
}

func (q *Queue) now() time.Time { return q.cfg.Now() }

func (q *Queue) publish(e events.Event) {
	if q.cfg.Bus != nil {
		q.cfg.Bus.Publish(e)
	}
}

func (q *Queue) persist(ctx context.Context, j job.Job) {
	if q.cfg.Store == nil {
		return
	}
	if err := q.cfg.Store.Upsert(ctx, j); err != nil {
		q.cfg.Logger.Error("queue.persist_failed", "job_id", j.ID, "err", err)
	}
}

// insertQueued places id into queuedOrder preserving the
// (priority desc, createdAt asc) invariant. Callers must hold mu.
func (q *Queue) insertQueued(id string) {
	j := q.byID[id]
	pos := 0
	for pos < len(q.queuedOrder) {
		other := q.byID[q.queuedOrder[pos]]
		if less(j, other) {
			break
		}
		pos++
	}
	q.queuedOrder = append(q.queuedOrder, "")
	copy(q.queuedOrder[pos+1:], q.queuedOrder[pos:])
	q.queuedOrder[pos] = id
}

// less reports whether a should be dispatched before b.
func less(a, b *job.Job) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func (q *Queue) removeQueued(id string) {
	for i, qid := range q.queuedOrder {
		if qid == id {
			q.queuedOrder = append(q.queuedOrder[:i], q.queuedOrder[i+1:]...)
			return
		}
	}
}

// clearBuckets removes id from every bucket membership set (not byID).
func (q *Queue) clearBuckets(id string) {
	q.removeQueued(id)
	delete(q.running, id)
	delete(q.scheduled, id)
	delete(q.completed, id)
	delete(q.failed, id)
	delete(q.cancelled, id)
}

// placeInBucket moves id into the bucket matching its current Status.
// Callers must hold mu and have already set j.Status.
func (q *Queue) placeInBucket(j *job.Job) {
	q.clearBuckets(j.ID)
	switch j.Status {
	case job.StatusQueued:
		q.insertQueued(j.ID)
	case job.StatusRunning:
		q.running[j.ID] = true
	case job.StatusPending:
		q.scheduled[j.ID] = true
	case job.StatusCompleted:
		q.completed[j.ID] = true
	case job.StatusFailed:
		q.failed[j.ID] = true
	case job.StatusCancelled:
		q.cancelled[j.ID] = true
	case job.StatusRetrying:
		q.scheduled[j.ID] = true
	}
}

// dependenciesResolved reports whether every dependency of j is Completed.
// Callers must hold mu.
func (q *Queue) dependenciesResolved(j *job.Job) bool {
	for _, depID := range j.Dependencies {
		dep, ok := q.byID[depID]
		if !ok || dep.Status != job.StatusCompleted {
			return false
		}
	}
	return true
}

// CreateJob validates and inserts a new job (spec.md §4.1 "Creation").
func (q *Queue) CreateJob(ctx context.Context, opts job.CreateOptions) (job.Job, error) {
	q.mu.Lock()

	if opts.IdempotencyKey != nil {
		for _, existing := range q.byID {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *opts.IdempotencyKey {
				j := existing.Clone()
				q.mu.Unlock()
				return j, nil
			}
		}
	}

	for _, depID := range opts.Dependencies {
		if _, ok := q.byID[depID]; !ok {
			q.mu.Unlock()
			return job.Job{}, fmt.Errorf("%w: %s", job.ErrInvalidDependency, depID)
		}
	}
	q.mu.Unlock()

	if opts.DigestID != nil && q.cfg.DigestExists != nil {
		if !q.cfg.DigestExists(ctx, *opts.DigestID) {
			q.cfg.Logger.Warn("queue.digest_not_found", "digest_id", *opts.DigestID)
			opts.DigestID = nil
		}
	}

	j := job.New(opts)
	now := q.now()
	if j.IsDue(now) {
		j.Status = job.StatusQueued
	} else {
		j.Status = job.StatusPending
	}
	j.UpdatedAt = now

	q.mu.Lock()
	q.byID[j.ID] = &j
	q.placeInBucket(&j)
	q.mu.Unlock()

	q.persist(ctx, j)
	q.publish(events.Event{Kind: events.JobCreated, JobID: j.ID})

	if q.cfg.OnJobCreated != nil {
		q.mu.Lock()
		queueLength := len(q.queuedOrder)
		q.mu.Unlock()
		q.cfg.OnJobCreated(queueLength)
	}

	return j.Clone(), nil
}

// GetNextJob promotes due scheduled jobs then dispatches the highest
// priority Queued job whose dependencies are satisfied (spec.md §4.1
// "Dispatch selection"). Returns nil, nil when nothing is dispatchable.
func (q *Queue) GetNextJob(ctx context.Context) (*job.Job, error) {
	return q.getNextJob(ctx, nil)
}

// GetNextJobOfTypes is GetNextJob narrowed to a worker's supportedJobTypes
// (spec.md §4.4 "Job-type filtering"): the scan skips jobs whose type the
// caller cannot handle, without removing or re-ordering them, so another
// worker can still pick them up.
func (q *Queue) GetNextJobOfTypes(ctx context.Context, types []job.Type) (*job.Job, error) {
	return q.getNextJob(ctx, types)
}

func (q *Queue) getNextJob(ctx context.Context, types []job.Type) (*job.Job, error) {
	q.mu.Lock()

	now := q.now()
	q.promoteDueScheduled(now)

	var dispatched *job.Job
	for _, id := range q.queuedOrder {
		j := q.byID[id]
		if types != nil && !typeAllowed(j.Type, types) {
			continue
		}
		if q.dependenciesResolved(j) {
			dispatched = j
			break
		}
	}

	if dispatched == nil {
		q.mu.Unlock()
		return nil, nil
	}

	dispatched.Status = job.StatusRunning
	dispatched.StartedAt = timePtr(now)
	dispatched.Progress = 0
	dispatched.UpdatedAt = now
	q.placeInBucket(dispatched)
	snapshot := dispatched.Clone()
	q.mu.Unlock()

	q.persist(ctx, snapshot)
	q.publish(events.Event{Kind: events.JobStarted, JobID: snapshot.ID})

	return &snapshot, nil
}

// promoteDueScheduled moves every Pending job whose ScheduleTime has
// passed into Queued. Callers must hold mu.
func (q *Queue) promoteDueScheduled(now time.Time) {
	for id := range q.scheduled {
		j := q.byID[id]
		if j.IsDue(now) {
			j.Status = job.StatusQueued
			j.UpdatedAt = now
			q.placeInBucket(j)
		}
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func typeAllowed(t job.Type, allowed []job.Type) bool {
	for _, a := range allowed {
		if a == t {
			return true
		}
	}
	return false
}
