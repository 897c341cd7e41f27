// Package processor implements the concurrent dispatcher described in
// SPEC_FULL.md §4.2: it pulls ready jobs from a Queue, invokes the
// registered Handler with a timeout, and applies retry/failure policy.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jobforge/jobforge/internal/engine/events"
	"github.com/jobforge/jobforge/internal/engine/handler"
	"github.com/jobforge/jobforge/internal/engine/job"
	"github.com/jobforge/jobforge/internal/engine/queue"
	"github.com/jobforge/jobforge/internal/observability"
)

type Config struct {
	Queue             *queue.Queue
	Bus               *events.Bus
	Logger            *slog.Logger
	MaxConcurrentJobs int
	JobTimeout        time.Duration

	// TypeFilter restricts dispatch to these job types (spec.md §4.4
	// "Job-type filtering"). Nil means accept any type — used for a
	// standalone Processor not owned by a WorkerPoolManager.
	TypeFilter []job.Type

	// OnJobDone, if set, fires after every terminal outcome (success,
	// retry-scheduled, or exhausted failure) so an owning
	// WorkerPoolManager can update its WorkerStatus activity/error ring
	// without the Processor knowing about workers at all.
	OnJobDone func(jobID string, success bool, errMsg string)

	// Metrics, if set, receives lock-free counters for every dispatch
	// outcome (claimed/done/failed/retried/no-handler) plus handler
	// duration, mirroring the teacher's worker-side JobMetrics.
	Metrics *observability.JobMetrics
}

func (c *Config) setDefaults() {
	if c.MaxConcurrentJobs <= 0 {
		c.MaxConcurrentJobs = 10
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Stats is returned by GetStats.
type Stats struct {
	ActiveJobs   int
	Completed    int
	Failed       int
	Retried      int
	NoHandler    int
}

type Processor struct {
	cfg Config

	handlersMu sync.RWMutex
	handlers   map[job.Type]handler.Handler

	activeMu sync.Mutex
	active   map[string]context.CancelFunc
	wg       sync.WaitGroup

	statsMu sync.Mutex
	stats   Stats

	shutdownMu sync.Mutex
	shuttingDown bool

	stopLoop chan struct{}
	loopDone chan struct{}
}

func New(cfg Config) *Processor {
	cfg.setDefaults()
	return &Processor{
		cfg:      cfg,
		handlers: make(map[job.Type]handler.Handler),
		active:   make(map[string]context.CancelFunc),
	}
}

func (p *Processor) RegisterHandler(t job.Type, h handler.Handler) {
	p.handlersMu.Lock()
	defer p.handlersMu.Unlock()
	p.handlers[t] = h
}

func (p *Processor) UnregisterHandler(t job.Type) {
	p.handlersMu.Lock()
	defer p.handlersMu.Unlock()
	delete(p.handlers, t)
}

func (p *Processor) handlerFor(t job.Type) (handler.Handler, bool) {
	p.handlersMu.RLock()
	defer p.handlersMu.RUnlock()
	h, ok := p.handlers[t]
	return h, ok
}

func (p *Processor) GetStats() Stats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	s := p.stats
	p.activeMu.Lock()
	s.ActiveJobs = len(p.active)
	p.activeMu.Unlock()
	return s
}

func (p *Processor) isShuttingDown() bool {
	p.shutdownMu.Lock()
	defer p.shutdownMu.Unlock()
	return p.shuttingDown
}

// StartProcessing launches the dispatch loop: every interval it computes
// free slots, pulls that many ready jobs from the Queue, and launches each
// concurrently (spec.md §4.2 "Dispatch loop").
func (p *Processor) StartProcessing(ctx context.Context, interval time.Duration) {
	p.stopLoop = make(chan struct{})
	p.loopDone = make(chan struct{})

	go func() {
		defer close(p.loopDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stopLoop:
				return
			case <-ticker.C:
				p.tick(ctx)
			}
		}
	}()
}

func (p *Processor) tick(ctx context.Context) {
	if p.isShuttingDown() {
		return
	}

	p.activeMu.Lock()
	slots := p.cfg.MaxConcurrentJobs - len(p.active)
	p.activeMu.Unlock()

	for i := 0; i < slots; i++ {
		var j *job.Job
		var err error
		if p.cfg.TypeFilter != nil {
			j, err = p.cfg.Queue.GetNextJobOfTypes(ctx, p.cfg.TypeFilter)
		} else {
			j, err = p.cfg.Queue.GetNextJob(ctx)
		}
		if err != nil {
			p.cfg.Logger.Error("processor.get_next_job_failed", "err", err)
			break
		}
		if j == nil {
			break
		}

		h, ok := p.handlerFor(j.Type)
		if !ok {
			p.failNoHandler(ctx, *j)
			continue
		}

		if p.cfg.Metrics != nil {
			p.cfg.Metrics.IncClaimed()
		}
		p.launch(ctx, *j, h)
	}
}

// StopProcessing stops accepting new dispatch ticks; in-flight jobs keep
// running. Use Shutdown for a bounded drain.
func (p *Processor) StopProcessing() {
	if p.stopLoop != nil {
		close(p.stopLoop)
		<-p.loopDone
	}
}

func (p *Processor) failNoHandler(ctx context.Context, j job.Job) {
	errMsg := fmt.Sprintf("no handler registered for job type %q", j.Type)
	now := time.Now().UTC()
	failedStatus := job.StatusFailed

	p.statsMu.Lock()
	p.stats.NoHandler++
	p.statsMu.Unlock()
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.IncDeadLettered()
	}

	_, err := p.cfg.Queue.UpdateJob(ctx, j.ID, queue.Update{
		Status:     &failedStatus,
		Error:      &errMsg,
		FinishedAt: &now,
	})
	if err != nil {
		p.cfg.Logger.Error("processor.fail_no_handler_update_failed", "job_id", j.ID, "err", err)
	}
	p.publish(events.Event{Kind: events.JobFailed, JobID: j.ID, Payload: map[string]any{"finalFailure": true, "reason": "no_handler"}})
	p.notifyDone(j.ID, false, errMsg)
}

func (p *Processor) publish(e events.Event) {
	if p.cfg.Bus != nil {
		p.cfg.Bus.Publish(e)
	}
}
