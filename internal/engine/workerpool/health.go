package workerpool

import (
	"time"

	"github.com/jobforge/jobforge/internal/engine/events"
)

// healthLoop evaluates one worker's health every instance.HealthCheckInterval
// (spec.md §4.4 "Health check").
func (m *Manager) healthLoop(e *entry) {
	defer close(e.healthDone)

	ticker := time.NewTicker(e.instance.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.healthStop:
			return
		case <-ticker.C:
			m.evaluateHealth(e)
		}
	}
}

func (m *Manager) evaluateHealth(e *entry) {
	now := m.cfg.Now()

	e.statusMu.Lock()
	sinceActivity := now.Sub(e.status.LastActivity)
	errorsRecently := e.status.ErrorsSince(now.Add(-unhealthyErrorWindow))
	wasHealthy := e.status.Healthy

	unhealthy := sinceActivity > 3*e.instance.HealthCheckInterval || errorsRecently > unhealthyErrorThreshold
	e.status.Healthy = !unhealthy
	nowHealthy := e.status.Healthy
	e.statusMu.Unlock()

	if wasHealthy != nowHealthy {
		m.publish(events.Event{
			Kind:     events.WorkerHealthChanged,
			WorkerID: e.instance.ID,
			Payload:  map[string]any{"healthy": nowHealthy},
		})
	}
}
