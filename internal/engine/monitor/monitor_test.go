package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/jobforge/jobforge/internal/engine/job"
	"github.com/jobforge/jobforge/internal/engine/queue"
	"github.com/jobforge/jobforge/internal/notifications"
	"github.com/jobforge/jobforge/internal/store/memory"
)

type fakeWorkers struct {
	healthy  int
	statuses []job.WorkerStatus
}

func (f *fakeWorkers) HealthyWorkerCount() int            { return f.healthy }
func (f *fakeWorkers) ListWorkers() []job.WorkerStatus    { return f.statuses }

type recordingNotifier struct {
	calls []notifications.AlertInput
}

func (r *recordingNotifier) NotifyAlert(ctx context.Context, recipient string, in notifications.AlertInput) error {
	r.calls = append(r.calls, in)
	return nil
}

func TestCollectMetrics_AppendsHistoryAndOverwritesActiveWorkers(t *testing.T) {
	ctx := context.Background()
	q, err := queue.New(ctx, queue.Config{Store: memory.New()})
	if err != nil {
		t.Fatalf("queue.New error: %v", err)
	}

	workers := &fakeWorkers{healthy: 3}
	m := New(Config{Queue: q, Workers: workers})

	m.collectMetrics()

	entry, ok := m.Latest()
	if !ok {
		t.Fatalf("expected a history entry")
	}
	if entry.Metrics.ActiveWorkers != 3 {
		t.Fatalf("expected ActiveWorkers overwritten to 3, got %d", entry.Metrics.ActiveWorkers)
	}
}

func TestEvaluateAlerts_TriggersAndNotifiesRecipients(t *testing.T) {
	ctx := context.Background()
	q, err := queue.New(ctx, queue.Config{Store: memory.New()})
	if err != nil {
		t.Fatalf("queue.New error: %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := q.CreateJob(ctx, job.CreateOptions{Type: job.TypeCleanup}); err != nil {
			t.Fatalf("CreateJob error: %v", err)
		}
	}

	notifier := &recordingNotifier{}
	m := New(Config{Queue: q, Notifier: notifier})

	if err := m.AddRule(job.AlertRule{
		ID:         "queue-backlog",
		Name:       "queue backlog",
		Condition:  job.ConditionQueueLength,
		Threshold:  1,
		Enabled:    true,
		Recipients: []string{"oncall@example.com"},
	}); err != nil {
		t.Fatalf("AddRule error: %v", err)
	}

	m.evaluateAlerts(ctx)

	active := m.GetActiveAlerts()
	if len(active) != 1 {
		t.Fatalf("expected 1 active alert, got %d", len(active))
	}
	if active[0].Severity != job.SeverityWarning {
		t.Fatalf("expected warning severity for queue_length, got %s", active[0].Severity)
	}
	if len(notifier.calls) != 1 {
		t.Fatalf("expected notifier to fire once, got %d", len(notifier.calls))
	}
}

func TestEvaluateAlerts_RespectsCooldown(t *testing.T) {
	ctx := context.Background()
	q, err := queue.New(ctx, queue.Config{Store: memory.New()})
	if err != nil {
		t.Fatalf("queue.New error: %v", err)
	}
	if _, err := q.CreateJob(ctx, job.CreateOptions{Type: job.TypeCleanup}); err != nil {
		t.Fatalf("CreateJob error: %v", err)
	}

	notifier := &recordingNotifier{}
	m := New(Config{Queue: q, Notifier: notifier})

	lastTriggered := time.Now().UTC()
	if err := m.AddRule(job.AlertRule{
		ID:              "recently-fired",
		Condition:       job.ConditionQueueLength,
		Threshold:       0,
		Enabled:         true,
		CooldownMinutes: 60,
		LastTriggered:   &lastTriggered,
		Recipients:      []string{"a@example.com"},
	}); err != nil {
		t.Fatalf("AddRule error: %v", err)
	}

	m.evaluateAlerts(ctx)

	if len(m.GetActiveAlerts()) != 0 {
		t.Fatalf("expected cooldown to suppress retrigger")
	}
}

func TestAcknowledgeAndResolveAlert(t *testing.T) {
	ctx := context.Background()
	q, err := queue.New(ctx, queue.Config{Store: memory.New()})
	if err != nil {
		t.Fatalf("queue.New error: %v", err)
	}
	if _, err := q.CreateJob(ctx, job.CreateOptions{Type: job.TypeCleanup}); err != nil {
		t.Fatalf("CreateJob error: %v", err)
	}

	m := New(Config{Queue: q})
	if err := m.AddRule(job.AlertRule{ID: "r1", Condition: job.ConditionQueueLength, Threshold: 0, Enabled: true}); err != nil {
		t.Fatalf("AddRule error: %v", err)
	}
	m.evaluateAlerts(ctx)

	active := m.GetActiveAlerts()
	if len(active) != 1 {
		t.Fatalf("expected 1 active alert")
	}
	id := active[0].ID

	if err := m.AcknowledgeAlert(id, "ops@example.com"); err != nil {
		t.Fatalf("AcknowledgeAlert error: %v", err)
	}
	if err := m.ResolveAlert(id); err != nil {
		t.Fatalf("ResolveAlert error: %v", err)
	}
	if len(m.GetActiveAlerts()) != 0 {
		t.Fatalf("expected alert removed after resolve")
	}
	if err := m.ResolveAlert(id); err != job.ErrAlertNotFound {
		t.Fatalf("expected ErrAlertNotFound on double resolve, got %v", err)
	}
}

func TestHealthCheck_WarningsAndErrors(t *testing.T) {
	ctx := context.Background()
	q, err := queue.New(ctx, queue.Config{Store: memory.New()})
	if err != nil {
		t.Fatalf("queue.New error: %v", err)
	}

	workers := &fakeWorkers{healthy: 0, statuses: []job.WorkerStatus{{WorkerID: "w1", Healthy: false}}}
	m := New(Config{Queue: q, Workers: workers})

	status := m.HealthCheck()
	if status.Healthy {
		t.Fatalf("expected unhealthy due to unhealthy worker")
	}
	if len(status.Errors) == 0 {
		t.Fatalf("expected at least one error")
	}
}
