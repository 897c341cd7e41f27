// Package scheduler implements the periodic-job-creation component
// described in SPEC_FULL.md §4.3: operator-managed ScheduleDefinitions are
// advanced on their own cadence and turned into Queue.CreateJob calls,
// gated by an optional cooldown. Grounded on the teacher pack's
// tyemirov-utils/scheduler.Worker shape (tick loop over a Repository,
// Clock abstraction, RunOnce for tests).
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jobforge/jobforge/internal/engine/job"
	"github.com/jobforge/jobforge/internal/engine/queue"
)

type Config struct {
	Queue  *queue.Queue
	Logger *slog.Logger

	// Now is overridable for deterministic tests.
	Now func() time.Time
}

func (c *Config) setDefaults() {
	if c.Now == nil {
		c.Now = func() time.Time { return time.Now().UTC() }
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Stats is returned by GetStats.
type Stats struct {
	ScheduleCount int
	JobsCreated   int
	Errors        int
}

type Scheduler struct {
	cfg Config

	mu        sync.RWMutex
	schedules map[string]*job.ScheduleDefinition

	statsMu sync.Mutex
	stats   Stats

	stopCh chan struct{}
	doneCh chan struct{}
}

func New(cfg Config) *Scheduler {
	cfg.setDefaults()
	return &Scheduler{
		cfg:       cfg,
		schedules: make(map[string]*job.ScheduleDefinition),
	}
}

func (s *Scheduler) now() time.Time { return s.cfg.Now() }

// AddSchedule registers a new ScheduleDefinition, computing its first
// NextRun from Advance applied to the current time (spec.md §4.3
// "Registration").
func (s *Scheduler) AddSchedule(def job.ScheduleDefinition) (job.ScheduleDefinition, error) {
	if def.ID == "" {
		return job.ScheduleDefinition{}, fmt.Errorf("scheduler: schedule id is required")
	}
	if def.Advance == nil {
		return job.ScheduleDefinition{}, fmt.Errorf("scheduler: schedule %s has no advance strategy", def.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.schedules[def.ID]; exists {
		return job.ScheduleDefinition{}, fmt.Errorf("scheduler: schedule %s already registered", def.ID)
	}

	def.NextRun = def.Advance(s.now())
	stored := def
	s.schedules[def.ID] = &stored

	s.statsMu.Lock()
	s.stats.ScheduleCount = len(s.schedules)
	s.statsMu.Unlock()

	return stored, nil
}

// UpdateSchedule applies a patch function to an existing schedule under
// lock, returning the updated copy.
func (s *Scheduler) UpdateSchedule(id string, patch func(*job.ScheduleDefinition)) (job.ScheduleDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	def, ok := s.schedules[id]
	if !ok {
		return job.ScheduleDefinition{}, job.ErrScheduleNotFound
	}
	patch(def)
	return *def, nil
}

// RemoveSchedule deletes a schedule. It does not cancel jobs already
// created from it.
func (s *Scheduler) RemoveSchedule(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schedules[id]; !ok {
		return job.ErrScheduleNotFound
	}
	delete(s.schedules, id)

	s.statsMu.Lock()
	s.stats.ScheduleCount = len(s.schedules)
	s.statsMu.Unlock()
	return nil
}

func (s *Scheduler) GetSchedule(id string) (job.ScheduleDefinition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.schedules[id]
	if !ok {
		return job.ScheduleDefinition{}, false
	}
	return *def, true
}

func (s *Scheduler) GetAllSchedules() []job.ScheduleDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]job.ScheduleDefinition, 0, len(s.schedules))
	for _, def := range s.schedules {
		out = append(out, *def)
	}
	return out
}

func (s *Scheduler) GetStats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// TriggerSchedule creates a job from a schedule immediately, bypassing its
// cooldown and NextRun gating (spec.md §4.3 "Manual trigger").
func (s *Scheduler) TriggerSchedule(ctx context.Context, id string) (job.Job, error) {
	s.mu.RLock()
	def, ok := s.schedules[id]
	if !ok {
		s.mu.RUnlock()
		return job.Job{}, job.ErrScheduleNotFound
	}
	defCopy := *def
	s.mu.RUnlock()

	return s.createFromSchedule(ctx, &defCopy, false)
}

// Start launches the tick loop. Every tick, every enabled schedule whose
// NextRun has passed (and whose cooldown since LastRun, if any, has
// elapsed) creates a job and advances NextRun.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go func() {
		defer close(s.doneCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.runCycle(ctx)
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	if s.stopCh != nil {
		close(s.stopCh)
		<-s.doneCh
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	now := s.now()

	s.mu.RLock()
	due := make([]*job.ScheduleDefinition, 0)
	for _, def := range s.schedules {
		if !def.Enabled {
			continue
		}
		if def.NextRun.After(now) {
			continue
		}
		if def.Cooldown != nil && def.LastRun != nil && now.Sub(*def.LastRun) < *def.Cooldown {
			continue
		}
		cp := *def
		due = append(due, &cp)
	}
	s.mu.RUnlock()

	for _, def := range due {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.createFromSchedule(ctx, def, true); err != nil {
			s.cfg.Logger.Error("scheduler.create_from_schedule_failed", "schedule_id", def.ID, "err", err)
			s.statsMu.Lock()
			s.stats.Errors++
			s.statsMu.Unlock()
		}
	}
}

// createFromSchedule enqueues a job for def. When advance is true (the
// tick-driven runCycle path) it also updates the live schedule's
// LastRun/NextRun; TriggerSchedule passes false so a manual trigger is a
// forced immediate enqueue that leaves NextRun untouched (spec.md §4.3
// "Manual trigger").
func (s *Scheduler) createFromSchedule(ctx context.Context, def *job.ScheduleDefinition, advance bool) (job.Job, error) {
	now := s.now()

	created, err := s.cfg.Queue.CreateJob(ctx, job.CreateOptions{
		Type:        def.JobType,
		Priority:    def.Priority,
		Params:      def.Params,
		CreatedByID: def.CreatedByID,
		MaxRetries:  def.MaxRetries,
		Tags:        []string{"schedule:" + def.ID},
	})
	if err != nil {
		return job.Job{}, fmt.Errorf("scheduler: create job from schedule %s: %w", def.ID, err)
	}

	if advance {
		s.mu.Lock()
		if stored, ok := s.schedules[def.ID]; ok {
			stored.LastRun = &now
			if stored.Advance != nil {
				stored.NextRun = stored.Advance(now)
			}
		}
		s.mu.Unlock()
	}

	s.statsMu.Lock()
	s.stats.JobsCreated++
	s.statsMu.Unlock()

	return created, nil
}
