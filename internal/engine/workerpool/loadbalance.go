package workerpool

import (
	"github.com/jobforge/jobforge/internal/engine/job"
)

// PickWorker selects the worker that should receive a job of type t,
// according to the manager's configured Strategy (spec.md §4.4 "Load
// balancing strategies"). Returns false if no enabled worker supports t.
func (m *Manager) PickWorker(t job.Type) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	eligible := make([]*entry, 0, len(m.workers))
	for _, e := range m.workers {
		if !e.instance.Enabled || !supportsType(e.instance, t) {
			continue
		}
		eligible = append(eligible, e)
	}
	if len(eligible) == 0 {
		return "", false
	}

	switch m.cfg.Strategy {
	case StrategyRoundRobin:
		return m.pickRoundRobin(eligible), true
	case StrategyJobTypeAffinity:
		return m.pickAffinity(eligible, t), true
	default:
		return m.pickLeastLoaded(eligible), true
	}
}

func supportsType(instance job.WorkerInstance, t job.Type) bool {
	if len(instance.SupportedJobTypes) == 0 {
		return true
	}
	for _, st := range instance.SupportedJobTypes {
		if st == t {
			return true
		}
	}
	return false
}

// pickLeastLoaded picks the eligible worker with the smallest
// activeJobs/maxJobs ratio (spec.md's documented default).
func (m *Manager) pickLeastLoaded(eligible []*entry) string {
	best := eligible[0]
	bestLoad := loadRatio(best)
	for _, e := range eligible[1:] {
		load := loadRatio(e)
		if load < bestLoad {
			best = e
			bestLoad = load
		}
	}
	return best.instance.ID
}

func (m *Manager) pickRoundRobin(eligible []*entry) string {
	m.rrMu.Lock()
	idx := m.rrCursor % len(eligible)
	m.rrCursor++
	m.rrMu.Unlock()
	return eligible[idx].instance.ID
}

// pickAffinity prefers a worker whose SupportedJobTypes names exactly t
// (a narrow specialist) over a generalist that merely includes it,
// breaking ties with least-loaded.
func (m *Manager) pickAffinity(eligible []*entry, t job.Type) string {
	var specialists []*entry
	for _, e := range eligible {
		if len(e.instance.SupportedJobTypes) == 1 && e.instance.SupportedJobTypes[0] == t {
			specialists = append(specialists, e)
		}
	}
	if len(specialists) > 0 {
		return m.pickLeastLoaded(specialists)
	}
	return m.pickLeastLoaded(eligible)
}
