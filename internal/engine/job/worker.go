package job

import "time"

// WorkerInstance configures one member of the Worker Pool Manager's pool.
type WorkerInstance struct {
	ID                      string
	MaxJobs                 int
	SupportedJobTypes       []Type
	Enabled                 bool
	HealthCheckInterval     time.Duration
	GracefulShutdownTimeout time.Duration

	// AutoCreated marks workers the autoscaler added (id prefixed
	// "auto_worker_"); only these are ever removed on scale-down.
	AutoCreated bool
}

// WorkerStatus is the mutable runtime status of a WorkerInstance, owned
// exclusively by that worker's own event handlers and health-check loop
// (spec.md §5 "Shared state & mutation discipline").
type WorkerStatus struct {
	WorkerID       string
	Healthy        bool
	ActiveJobs     int
	TotalProcessed int
	LastActivity   time.Time

	// RecentErrors is a ring of the last 10 error messages.
	RecentErrors []RecentError
}

type RecentError struct {
	At      time.Time
	Message string
}

const recentErrorsCap = 10

// PushError appends to the ring, evicting the oldest entry once full.
func (s *WorkerStatus) PushError(at time.Time, msg string) {
	s.RecentErrors = append(s.RecentErrors, RecentError{At: at, Message: msg})
	if len(s.RecentErrors) > recentErrorsCap {
		s.RecentErrors = s.RecentErrors[len(s.RecentErrors)-recentErrorsCap:]
	}
}

// ErrorsSince counts ring entries newer than 'since'.
func (s *WorkerStatus) ErrorsSince(since time.Time) int {
	n := 0
	for _, e := range s.RecentErrors {
		if e.At.After(since) {
			n++
		}
	}
	return n
}
