// Package monitor implements the metrics-collection and alert-evaluation
// component described in SPEC_FULL.md §4.5: two independent timers, a
// bounded metrics history, rule-driven alert evaluation with cooldown, and
// the health check endpoint payload.
package monitor

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jobforge/jobforge/internal/engine/events"
	"github.com/jobforge/jobforge/internal/engine/job"
	"github.com/jobforge/jobforge/internal/engine/queue"
	"github.com/jobforge/jobforge/internal/notifications"
)

const defaultHistoryCapacity = 1440

// WorkerSource is the subset of workerpool.Manager the Monitor needs — a
// narrow interface so this package never imports workerpool.
type WorkerSource interface {
	HealthyWorkerCount() int
	ListWorkers() []job.WorkerStatus
}

type Config struct {
	Queue   *queue.Queue
	Workers WorkerSource
	Bus     *events.Bus
	Logger  *slog.Logger

	Notifier notifications.AlertNotifier

	HistoryCapacity int
	Now             func() time.Time
}

func (c *Config) setDefaults() {
	if c.HistoryCapacity <= 0 {
		c.HistoryCapacity = defaultHistoryCapacity
	}
	if c.Now == nil {
		c.Now = func() time.Time { return time.Now().UTC() }
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// HistoryEntry is one appended metrics snapshot.
type HistoryEntry struct {
	Timestamp time.Time
	Metrics   queue.Metrics
}

// HealthStatus is the health check endpoint payload (spec.md §4.5).
type HealthStatus struct {
	Healthy          bool
	QueueLength      int
	ActiveJobs       int
	FailedJobs       int
	OldestPendingJob *time.Time
	WorkerStatus     []job.WorkerStatus
	LastProcessedJob *time.Time
	Errors           []string
	Warnings         []string
}

type Monitor struct {
	cfg Config

	historyMu sync.Mutex
	history   []HistoryEntry

	rulesMu sync.RWMutex
	rules   map[string]*job.AlertRule

	alertsMu sync.Mutex
	alerts   map[string]*job.ActiveAlert

	metricsStop, metricsDone chan struct{}
	alertsStop, alertsDone   chan struct{}
}

func New(cfg Config) *Monitor {
	cfg.setDefaults()
	return &Monitor{
		cfg:    cfg,
		rules:  make(map[string]*job.AlertRule),
		alerts: make(map[string]*job.ActiveAlert),
	}
}

func (m *Monitor) now() time.Time { return m.cfg.Now() }

func (m *Monitor) publish(e events.Event) {
	if m.cfg.Bus != nil {
		m.cfg.Bus.Publish(e)
	}
}

// AddRule registers an alert rule.
func (m *Monitor) AddRule(rule job.AlertRule) error {
	if rule.ID == "" {
		return fmt.Errorf("monitor: rule id is required")
	}
	m.rulesMu.Lock()
	defer m.rulesMu.Unlock()
	if _, exists := m.rules[rule.ID]; exists {
		return fmt.Errorf("monitor: rule %s already exists", rule.ID)
	}
	stored := rule
	m.rules[rule.ID] = &stored
	return nil
}

func (m *Monitor) RemoveRule(id string) error {
	m.rulesMu.Lock()
	defer m.rulesMu.Unlock()
	if _, ok := m.rules[id]; !ok {
		return job.ErrAlertRuleNotFound
	}
	delete(m.rules, id)
	return nil
}

func (m *Monitor) GetRule(id string) (job.AlertRule, bool) {
	m.rulesMu.RLock()
	defer m.rulesMu.RUnlock()
	rule, ok := m.rules[id]
	if !ok {
		return job.AlertRule{}, false
	}
	return *rule, true
}

func (m *Monitor) GetAllRules() []job.AlertRule {
	m.rulesMu.RLock()
	defer m.rulesMu.RUnlock()
	out := make([]job.AlertRule, 0, len(m.rules))
	for _, r := range m.rules {
		out = append(out, *r)
	}
	return out
}

// GetActiveAlerts returns every currently-active alert.
func (m *Monitor) GetActiveAlerts() []job.ActiveAlert {
	m.alertsMu.Lock()
	defer m.alertsMu.Unlock()
	out := make([]job.ActiveAlert, 0, len(m.alerts))
	for _, a := range m.alerts {
		out = append(out, *a)
	}
	return out
}

// AcknowledgeAlert stamps ack fields on an active alert.
func (m *Monitor) AcknowledgeAlert(id, by string) error {
	m.alertsMu.Lock()
	defer m.alertsMu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return job.ErrAlertNotFound
	}
	a.Acknowledged = &job.AckInfo{At: m.now(), By: by}
	return nil
}

// ResolveAlert stamps resolution and removes the alert from the active
// table.
func (m *Monitor) ResolveAlert(id string) error {
	m.alertsMu.Lock()
	defer m.alertsMu.Unlock()
	if _, ok := m.alerts[id]; !ok {
		return job.ErrAlertNotFound
	}
	delete(m.alerts, id)
	return nil
}

// GetHistory returns the bounded metrics history, oldest first.
func (m *Monitor) GetHistory() []HistoryEntry {
	m.historyMu.Lock()
	defer m.historyMu.Unlock()
	out := make([]HistoryEntry, len(m.history))
	copy(out, m.history)
	return out
}
