package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/jobforge/jobforge/internal/engine/job"
	"github.com/jobforge/jobforge/internal/engine/queue"
	"github.com/jobforge/jobforge/internal/store/memory"
)

func newTestScheduler(t *testing.T, now time.Time) (*Scheduler, *queue.Queue) {
	t.Helper()

	clock := &fakeClock{now: now}
	q, err := queue.New(context.Background(), queue.Config{
		Store: memory.New(),
		Now:   clock.Now,
	})
	if err != nil {
		t.Fatalf("queue.New error: %v", err)
	}

	s := New(Config{Queue: q, Now: clock.Now})
	return s, q
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func TestAddSchedule_ComputesInitialNextRun(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, now)

	def := job.ScheduleDefinition{
		ID:      "hourly-cleanup",
		Name:    "hourly cleanup",
		JobType: job.TypeCleanup,
		Enabled: true,
		Advance: FixedInterval(time.Hour),
	}

	stored, err := s.AddSchedule(def)
	if err != nil {
		t.Fatalf("AddSchedule error: %v", err)
	}
	want := now.Add(time.Hour)
	if !stored.NextRun.Equal(want) {
		t.Fatalf("expected NextRun %v, got %v", want, stored.NextRun)
	}
}

func TestRunCycle_CreatesJobWhenDue(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s, q := newTestScheduler(t, now)

	def := job.ScheduleDefinition{
		ID:      "digest",
		JobType: job.TypeDigest,
		Enabled: true,
		Advance: FixedInterval(time.Minute),
	}
	if _, err := s.AddSchedule(def); err != nil {
		t.Fatalf("AddSchedule error: %v", err)
	}

	// force NextRun into the past so the cycle considers it due
	if _, err := s.UpdateSchedule("digest", func(d *job.ScheduleDefinition) {
		d.NextRun = now.Add(-time.Second)
	}); err != nil {
		t.Fatalf("UpdateSchedule error: %v", err)
	}

	s.runCycle(context.Background())

	jobs := q.QueryJobs(queue.QueryFilters{})
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job created, got %d", len(jobs))
	}
	if jobs[0].Type != job.TypeDigest {
		t.Fatalf("expected digest job, got %s", jobs[0].Type)
	}

	updated, ok := s.GetSchedule("digest")
	if !ok {
		t.Fatalf("schedule disappeared")
	}
	if updated.LastRun == nil {
		t.Fatalf("expected LastRun to be set")
	}
	if !updated.NextRun.After(now) {
		t.Fatalf("expected NextRun advanced past now, got %v", updated.NextRun)
	}
}

func TestRunCycle_RespectsCooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s, q := newTestScheduler(t, now)

	cooldown := 10 * time.Minute
	lastRun := now.Add(-time.Minute)
	def := job.ScheduleDefinition{
		ID:       "reports",
		JobType:  job.TypeDigest,
		Enabled:  true,
		Advance:  FixedInterval(time.Minute),
		Cooldown: &cooldown,
		LastRun:  &lastRun,
	}
	if _, err := s.AddSchedule(def); err != nil {
		t.Fatalf("AddSchedule error: %v", err)
	}
	if _, err := s.UpdateSchedule("reports", func(d *job.ScheduleDefinition) {
		d.NextRun = now.Add(-time.Second)
	}); err != nil {
		t.Fatalf("UpdateSchedule error: %v", err)
	}

	s.runCycle(context.Background())

	jobs := q.QueryJobs(queue.QueryFilters{})
	if len(jobs) != 0 {
		t.Fatalf("expected cooldown to suppress job creation, got %d jobs", len(jobs))
	}
}

func TestTriggerSchedule_BypassesCooldownAndNextRun(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: now}
	q, err := queue.New(context.Background(), queue.Config{Store: memory.New(), Now: clock.Now})
	if err != nil {
		t.Fatalf("queue.New error: %v", err)
	}
	s := New(Config{Queue: q, Now: clock.Now})

	def := job.ScheduleDefinition{
		ID:      "manual",
		JobType: job.TypeBackup,
		Enabled: true,
		Advance: FixedInterval(24 * time.Hour),
	}
	added, err := s.AddSchedule(def)
	if err != nil {
		t.Fatalf("AddSchedule error: %v", err)
	}
	wantNextRun := added.NextRun

	if _, err := s.TriggerSchedule(context.Background(), "manual"); err != nil {
		t.Fatalf("TriggerSchedule error: %v", err)
	}

	jobs := q.QueryJobs(queue.QueryFilters{})
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job created by trigger, got %d", len(jobs))
	}

	got, ok := s.GetSchedule("manual")
	if !ok {
		t.Fatalf("schedule disappeared")
	}
	if !got.NextRun.Equal(wantNextRun) {
		t.Fatalf("expected NextRun untouched by manual trigger, want %v got %v", wantNextRun, got.NextRun)
	}
	if got.LastRun != nil {
		t.Fatalf("expected LastRun untouched by manual trigger, got %v", got.LastRun)
	}

	// A later normal tick still fires and advances NextRun/LastRun on its
	// own, proving the trigger didn't also consume the tick-driven path.
	// The clock must actually move, or Advance(now) just recomputes the
	// same NextRun it already had and masks a missing advance.
	clock.now = now.Add(25 * time.Hour)
	if _, err := s.UpdateSchedule("manual", func(d *job.ScheduleDefinition) {
		d.NextRun = clock.now.Add(-time.Second)
	}); err != nil {
		t.Fatalf("UpdateSchedule error: %v", err)
	}
	s.runCycle(context.Background())

	jobs = q.QueryJobs(queue.QueryFilters{})
	if len(jobs) != 2 {
		t.Fatalf("expected runCycle to create a second job, got %d", len(jobs))
	}
	got, ok = s.GetSchedule("manual")
	if !ok {
		t.Fatalf("schedule disappeared")
	}
	if got.LastRun == nil {
		t.Fatalf("expected runCycle to set LastRun")
	}
	if got.NextRun.Equal(wantNextRun) {
		t.Fatalf("expected runCycle to advance NextRun past the original value")
	}
}

func TestRemoveSchedule_UnknownIDErrors(t *testing.T) {
	s, _ := newTestScheduler(t, time.Now().UTC())
	if err := s.RemoveSchedule("nope"); err != job.ErrScheduleNotFound {
		t.Fatalf("expected ErrScheduleNotFound, got %v", err)
	}
}

func TestCronExpression_AdvancesToNextMinute(t *testing.T) {
	advance, err := CronExpression("* * * * *")
	if err != nil {
		t.Fatalf("CronExpression error: %v", err)
	}
	base := time.Date(2026, 1, 1, 12, 0, 30, 0, time.UTC)
	next := advance(base)
	if !next.After(base) {
		t.Fatalf("expected next run after base, got %v", next)
	}
}
