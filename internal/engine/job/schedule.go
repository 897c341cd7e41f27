package job

import "time"

// Advance computes the next run time for a ScheduleDefinition given the
// previous one. Concrete strategies (fixed interval, calendar-of-day, cron
// expression) live in internal/engine/scheduler/advance.go — the engine
// itself only ever calls this abstraction (spec.md: "nextRun is opaque").
type Advance func(previous time.Time) time.Time

// ScheduleDefinition is an operator-managed recipe the Scheduler uses to
// enqueue jobs on a cadence.
type ScheduleDefinition struct {
	ID       string
	Name     string
	JobType  Type
	Params   map[string]any
	Priority int
	Enabled  bool

	LastRun *time.Time
	NextRun time.Time

	Cooldown   *time.Duration
	MaxRetries int

	CreatedByID string

	// Advance is not persisted; it is re-attached by whichever code path
	// reconstructs the ScheduleDefinition (operator API payload -> strategy).
	Advance Advance `json:"-"`
}
