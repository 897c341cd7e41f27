// Package workerpool implements the Worker Pool Manager described in
// SPEC_FULL.md §4.4: it owns N worker instances, each wrapping its own
// Processor, and performs health checks and elastic auto-scaling. Grounded
// on the teacher's internal/queue/worker (per-worker concurrency, health
// server, graceful-vs-forceful shutdown) generalized from one fixed worker
// process to a managed pool of many.
package workerpool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jobforge/jobforge/internal/engine/events"
	"github.com/jobforge/jobforge/internal/engine/handler"
	"github.com/jobforge/jobforge/internal/engine/job"
	"github.com/jobforge/jobforge/internal/engine/processor"
	"github.com/jobforge/jobforge/internal/engine/queue"
	"github.com/jobforge/jobforge/internal/observability"
)

// Strategy picks which eligible worker should receive the next job in a
// manager-driven dispatch scheme (spec.md §4.4 "Load balancing
// strategies"). Most deployments let each worker's own Processor pull
// directly from the Queue; Strategy exists for callers (e.g. an admin
// "assign job to worker" action) that need an explicit pick.
type Strategy string

const (
	StrategyRoundRobin      Strategy = "round_robin"
	StrategyLeastLoaded     Strategy = "least_loaded"
	StrategyJobTypeAffinity Strategy = "job_type_affinity"
)

const (
	defaultHealthCheckInterval     = 30 * time.Second
	defaultGracefulShutdownTimeout = 30 * time.Second
	defaultDispatchInterval        = 200 * time.Millisecond
	unhealthyErrorWindow           = 5 * time.Minute
	unhealthyErrorThreshold        = 5
)

type Config struct {
	Queue    *queue.Queue
	Bus      *events.Bus
	Logger   *slog.Logger
	Strategy Strategy

	// Metrics, if set, is handed to every Processor this Manager creates
	// so every worker's dispatch counters accumulate in the same
	// in-process JobMetrics; they are not registered with Prometheus.
	Metrics *observability.JobMetrics

	// Now is overridable for deterministic tests.
	Now func() time.Time
}

func (c *Config) setDefaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Strategy == "" {
		c.Strategy = StrategyLeastLoaded
	}
	if c.Now == nil {
		c.Now = func() time.Time { return time.Now().UTC() }
	}
}

type entry struct {
	instance job.WorkerInstance
	proc     *processor.Processor

	statusMu sync.Mutex
	status   job.WorkerStatus

	healthStop chan struct{}
	healthDone chan struct{}
}

// Manager is the Worker Pool Manager.
type Manager struct {
	cfg Config

	handlersMu sync.RWMutex
	handlers   map[job.Type]handler.Handler

	mu      sync.RWMutex
	workers map[string]*entry

	rrMu     sync.Mutex
	rrCursor int

	ctx context.Context
}

func New(ctx context.Context, cfg Config) *Manager {
	cfg.setDefaults()
	return &Manager{
		cfg:      cfg,
		handlers: make(map[job.Type]handler.Handler),
		workers:  make(map[string]*entry),
		ctx:      ctx,
	}
}

// RegisterHandler adds to the global handler registry and installs it onto
// every already-running worker's Processor (spec.md §4.4 "Handler
// registration").
func (m *Manager) RegisterHandler(t job.Type, h handler.Handler) {
	m.handlersMu.Lock()
	m.handlers[t] = h
	m.handlersMu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.workers {
		e.proc.RegisterHandler(t, h)
	}
}

func (m *Manager) snapshotHandlers() map[job.Type]handler.Handler {
	m.handlersMu.RLock()
	defer m.handlersMu.RUnlock()
	out := make(map[job.Type]handler.Handler, len(m.handlers))
	for t, h := range m.handlers {
		out[t] = h
	}
	return out
}

// AddWorker constructs a Processor for instance, installs every registered
// handler before starting dispatch (spec.md: "handlers must be installed
// before dispatch starts"), and launches its health-check loop.
func (m *Manager) AddWorker(instance job.WorkerInstance) error {
	if instance.ID == "" {
		return fmt.Errorf("workerpool: worker id is required")
	}
	if instance.HealthCheckInterval <= 0 {
		instance.HealthCheckInterval = defaultHealthCheckInterval
	}
	if instance.GracefulShutdownTimeout <= 0 {
		instance.GracefulShutdownTimeout = defaultGracefulShutdownTimeout
	}

	m.mu.Lock()
	if _, exists := m.workers[instance.ID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("workerpool: worker %s already exists", instance.ID)
	}
	m.mu.Unlock()

	now := m.cfg.Now()
	e := &entry{
		instance: instance,
		status: job.WorkerStatus{
			WorkerID:     instance.ID,
			Healthy:      true,
			LastActivity: now,
		},
	}

	proc := processor.New(processor.Config{
		Queue:             m.cfg.Queue,
		Bus:               m.cfg.Bus,
		Logger:            m.cfg.Logger,
		MaxConcurrentJobs: instance.MaxJobs,
		TypeFilter:        instance.SupportedJobTypes,
		Metrics:           m.cfg.Metrics,
		OnJobDone: func(jobID string, success bool, errMsg string) {
			m.recordActivity(instance.ID, success, errMsg)
		},
	})
	for t, h := range m.snapshotHandlers() {
		proc.RegisterHandler(t, h)
	}
	e.proc = proc

	m.mu.Lock()
	m.workers[instance.ID] = e
	m.mu.Unlock()

	if instance.Enabled {
		proc.StartProcessing(m.ctx, defaultDispatchInterval)
	}

	e.healthStop = make(chan struct{})
	e.healthDone = make(chan struct{})
	go m.healthLoop(e)

	return nil
}

// RemoveWorker removes a worker. Graceful: stop the health timer, poll
// until activeJobs reaches zero or gracefulShutdownTimeout elapses, then
// stop the Processor. Forceful: stop immediately and fail all remaining
// jobs (spec.md §4.4 "Graceful removal").
func (m *Manager) RemoveWorker(ctx context.Context, id string, graceful bool) error {
	m.mu.Lock()
	e, ok := m.workers[id]
	if !ok {
		m.mu.Unlock()
		return job.ErrWorkerNotFound
	}
	delete(m.workers, id)
	m.mu.Unlock()

	close(e.healthStop)
	<-e.healthDone

	if !graceful {
		e.proc.Shutdown(ctx, 0, "worker forcefully shut down")
		m.publish(events.Event{Kind: events.WorkerRemoved, WorkerID: id})
		return nil
	}

	deadline := time.Now().Add(e.instance.GracefulShutdownTimeout)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		if e.proc.GetStats().ActiveJobs == 0 || time.Now().After(deadline) {
			break
		}
		<-ticker.C
	}

	e.proc.Shutdown(ctx, e.instance.GracefulShutdownTimeout, "worker forcefully shut down")
	m.publish(events.Event{Kind: events.WorkerRemoved, WorkerID: id})
	return nil
}

func (m *Manager) publish(e events.Event) {
	if m.cfg.Bus != nil {
		m.cfg.Bus.Publish(e)
	}
}

// GetWorker returns a snapshot of one worker's instance config and status.
func (m *Manager) GetWorker(id string) (job.WorkerInstance, job.WorkerStatus, bool) {
	m.mu.RLock()
	e, ok := m.workers[id]
	m.mu.RUnlock()
	if !ok {
		return job.WorkerInstance{}, job.WorkerStatus{}, false
	}

	e.statusMu.Lock()
	status := e.status
	e.statusMu.Unlock()
	return e.instance, status, true
}

// ListWorkers returns every worker's instance config and status.
func (m *Manager) ListWorkers() []job.WorkerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]job.WorkerStatus, 0, len(m.workers))
	for _, e := range m.workers {
		e.statusMu.Lock()
		out = append(out, e.status)
		e.statusMu.Unlock()
	}
	return out
}

// HealthyWorkerCount returns the number of workers currently marked
// healthy — the Monitor overwrites its activeWorkers metric with this
// (spec.md §4.5).
func (m *Manager) HealthyWorkerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, e := range m.workers {
		e.statusMu.Lock()
		healthy := e.status.Healthy
		e.statusMu.Unlock()
		if healthy {
			n++
		}
	}
	return n
}

func (m *Manager) recordActivity(workerID string, success bool, errMsg string) {
	m.mu.RLock()
	e, ok := m.workers[workerID]
	m.mu.RUnlock()
	if !ok {
		return
	}

	now := m.cfg.Now()
	e.statusMu.Lock()
	e.status.LastActivity = now
	if success {
		e.status.TotalProcessed++
	} else {
		e.status.PushError(now, errMsg)
	}
	e.statusMu.Unlock()
}
