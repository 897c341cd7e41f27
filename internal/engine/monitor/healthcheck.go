package monitor

import "time"

const (
	warnQueueLength  = 1000
	warnFailedJobs   = 100
	warnSuccessRate  = 90.0
	stuckJobsMinutes = 30
)

// HealthCheck assembles the health check endpoint payload (spec.md §4.5).
// healthy is true iff Errors is empty.
func (m *Monitor) HealthCheck() HealthStatus {
	metrics := m.cfg.Queue.GetMetrics()
	if m.cfg.Workers != nil {
		metrics.ActiveWorkers = m.cfg.Workers.HealthyWorkerCount()
	}

	status := HealthStatus{
		QueueLength:      metrics.QueueLength,
		ActiveJobs:       metrics.RunningJobs,
		FailedJobs:       metrics.FailedJobs,
		OldestPendingJob: m.cfg.Queue.OldestPending(),
		LastProcessedJob: m.cfg.Queue.LastProcessed(),
	}

	if m.cfg.Workers != nil {
		status.WorkerStatus = m.cfg.Workers.ListWorkers()
	}

	if metrics.QueueLength > warnQueueLength {
		status.Warnings = append(status.Warnings, "queue length exceeds 1000")
	}
	if metrics.FailedJobs > warnFailedJobs {
		status.Warnings = append(status.Warnings, "failed job count exceeds 100")
	}
	if metrics.SuccessRate < warnSuccessRate {
		status.Warnings = append(status.Warnings, "success rate below 90%")
	}

	stuck := m.cfg.Queue.StuckJobs(m.now().Add(-stuckJobsMinutes * time.Minute))
	if stuck > 0 {
		status.Errors = append(status.Errors, "stuck jobs detected")
	}
	for _, ws := range status.WorkerStatus {
		if !ws.Healthy {
			status.Errors = append(status.Errors, "unhealthy worker: "+ws.WorkerID)
		}
	}

	status.Healthy = len(status.Errors) == 0
	return status
}
