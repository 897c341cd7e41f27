package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jobforge/jobforge/internal/engine/job"
)

// FixedInterval returns an Advance strategy that always adds d to the
// previous run time, regardless of how late the previous run fired.
func FixedInterval(d time.Duration) job.Advance {
	return func(previous time.Time) time.Time {
		return previous.Add(d)
	}
}

// DailyAt returns an Advance strategy that fires once per day at the given
// hour/minute (UTC), rolling forward to the next day when previous already
// passed today's occurrence.
func DailyAt(hour, minute int) job.Advance {
	return func(previous time.Time) time.Time {
		next := time.Date(previous.Year(), previous.Month(), previous.Day(), hour, minute, 0, 0, time.UTC)
		if !next.After(previous) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	}
}

// CronExpression returns an Advance strategy driven by a standard 5-field
// cron expression, parsed once via robfig/cron (spec.md's Non-goal on
// hand-rolled cron parsing). An invalid expression returns no strategy and
// the cron.ParseStandard error.
func CronExpression(expr string) (job.Advance, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, err
	}
	return func(previous time.Time) time.Time {
		return schedule.Next(previous)
	}, nil
}
