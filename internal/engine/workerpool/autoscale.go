package workerpool

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/jobforge/jobforge/internal/engine/job"
)

const (
	scaleUpQueueLength    = 100
	scaleUpMaxHealthy     = 10
	scaleDownQueueLength  = 10
	scaleDownMinHealthy   = 2
	autoWorkerMaxJobs     = 5
	autoWorkerIDPrefix    = "auto_worker_"
)

var autoWorkerSeq int64

// GeneralJobTypes is what an auto-created worker supports — the "general
// types" spec.md §4.4 refers to, i.e. every type known to the handler
// registry at scale-up time.
func (m *Manager) generalJobTypes() []job.Type {
	m.handlersMu.RLock()
	defer m.handlersMu.RUnlock()

	out := make([]job.Type, 0, len(m.handlers))
	for t := range m.handlers {
		out = append(out, t)
	}
	return out
}

// EvaluateAutoScale is invoked whenever a new job is created (spec.md §4.4
// "Auto-scale"). queueLength is the caller's current Queue.GetMetrics()
// QueueLength.
func (m *Manager) EvaluateAutoScale(queueLength int) {
	healthy := m.HealthyWorkerCount()

	if queueLength > scaleUpQueueLength && healthy < scaleUpMaxHealthy {
		m.scaleUp()
		return
	}
	if queueLength < scaleDownQueueLength && healthy > scaleDownMinHealthy {
		m.scaleDown()
	}
}

func (m *Manager) scaleUp() {
	seq := atomic.AddInt64(&autoWorkerSeq, 1)
	id := fmt.Sprintf("%s%d", autoWorkerIDPrefix, seq)

	_ = m.AddWorker(job.WorkerInstance{
		ID:                      id,
		MaxJobs:                 autoWorkerMaxJobs,
		SupportedJobTypes:       m.generalJobTypes(),
		Enabled:                 true,
		HealthCheckInterval:     defaultHealthCheckInterval,
		GracefulShutdownTimeout: defaultGracefulShutdownTimeout,
		AutoCreated:             true,
	})
}

// scaleDown removes the least-loaded auto-created worker, if any. Manually
// added workers are never touched by the autoscaler.
func (m *Manager) scaleDown() {
	m.mu.RLock()
	var target *entry
	var targetLoad float64 = -1
	for _, e := range m.workers {
		if !e.instance.AutoCreated {
			continue
		}
		load := loadRatio(e)
		if target == nil || load < targetLoad {
			target = e
			targetLoad = load
		}
	}
	id := ""
	if target != nil {
		id = target.instance.ID
	}
	m.mu.RUnlock()

	if id == "" {
		return
	}

	go func() {
		_ = m.RemoveWorker(context.Background(), id, true)
	}()
}

func loadRatio(e *entry) float64 {
	if e.instance.MaxJobs <= 0 {
		return 0
	}
	return float64(e.proc.GetStats().ActiveJobs) / float64(e.instance.MaxJobs)
}
