package monitor

import (
	"context"
	"time"

	"github.com/jobforge/jobforge/internal/engine/events"
)

// StartMetricsCollection launches the first of the Monitor's two timers
// (spec.md §4.5 step 1): every interval, snapshot Queue.GetMetrics,
// overwrite ActiveWorkers with the live healthy-worker count, and append
// to the bounded history.
func (m *Monitor) StartMetricsCollection(ctx context.Context, interval time.Duration) {
	m.metricsStop = make(chan struct{})
	m.metricsDone = make(chan struct{})

	go func() {
		defer close(m.metricsDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-m.metricsStop:
				return
			case <-ticker.C:
				m.collectMetrics()
			}
		}
	}()
}

func (m *Monitor) StopMetricsCollection() {
	if m.metricsStop != nil {
		close(m.metricsStop)
		<-m.metricsDone
	}
}

func (m *Monitor) collectMetrics() {
	snapshot := m.cfg.Queue.GetMetrics()
	if m.cfg.Workers != nil {
		snapshot.ActiveWorkers = m.cfg.Workers.HealthyWorkerCount()
	}

	entry := HistoryEntry{Timestamp: m.now(), Metrics: snapshot}

	m.historyMu.Lock()
	m.history = append(m.history, entry)
	if len(m.history) > m.cfg.HistoryCapacity {
		m.history = m.history[len(m.history)-m.cfg.HistoryCapacity:]
	}
	m.historyMu.Unlock()

	m.publish(events.Event{Kind: events.MetricsCollected, Payload: snapshot})
}

// Latest returns the most recent metrics snapshot, or the zero value and
// false if none have been collected yet.
func (m *Monitor) Latest() (HistoryEntry, bool) {
	m.historyMu.Lock()
	defer m.historyMu.Unlock()
	if len(m.history) == 0 {
		return HistoryEntry{}, false
	}
	return m.history[len(m.history)-1], true
}
