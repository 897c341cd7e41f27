package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jobforge/jobforge/internal/engine/events"
	"github.com/jobforge/jobforge/internal/engine/job"
	"github.com/jobforge/jobforge/internal/engine/queue"
	"github.com/jobforge/jobforge/internal/notifications"
)

const stuckJobThresholdUnit = time.Minute

// StartAlertEvaluation launches the second timer (spec.md §4.5 step 2):
// every interval, evaluate every enabled rule and trigger alerts past
// cooldown.
func (m *Monitor) StartAlertEvaluation(ctx context.Context, interval time.Duration) {
	m.alertsStop = make(chan struct{})
	m.alertsDone = make(chan struct{})

	go func() {
		defer close(m.alertsDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-m.alertsStop:
				return
			case <-ticker.C:
				m.evaluateAlerts(ctx)
			}
		}
	}()
}

func (m *Monitor) StopAlertEvaluation() {
	if m.alertsStop != nil {
		close(m.alertsStop)
		<-m.alertsDone
	}
}

func (m *Monitor) evaluateAlerts(ctx context.Context) {
	now := m.now()
	metrics := m.cfg.Queue.GetMetrics()
	if m.cfg.Workers != nil {
		metrics.ActiveWorkers = m.cfg.Workers.HealthyWorkerCount()
	}

	m.rulesMu.RLock()
	rules := make([]*job.AlertRule, 0, len(m.rules))
	for _, r := range m.rules {
		rules = append(rules, r)
	}
	m.rulesMu.RUnlock()

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if rule.LastTriggered != nil && now.Sub(*rule.LastTriggered) < time.Duration(rule.CooldownMinutes)*time.Minute {
			continue
		}

		triggered, currentValue := m.shouldTrigger(rule, metrics, now)
		if !triggered {
			continue
		}

		m.trigger(ctx, rule, currentValue, now)
	}
}

func (m *Monitor) shouldTrigger(rule *job.AlertRule, mx queue.Metrics, now time.Time) (bool, float64) {
	switch rule.Condition {
	case job.ConditionQueueLength:
		return float64(mx.QueueLength) > rule.Threshold, float64(mx.QueueLength)
	case job.ConditionFailureRate:
		return mx.SuccessRate < (100 - rule.Threshold), mx.SuccessRate
	case job.ConditionProcessingTime:
		secs := mx.AverageProcessingTime.Seconds()
		return secs > rule.Threshold, secs
	case job.ConditionStuckJobs:
		cutoff := now.Add(-time.Duration(rule.Threshold) * stuckJobThresholdUnit)
		count := m.cfg.Queue.StuckJobs(cutoff)
		return count > 0, float64(count)
	case job.ConditionWorkerDown:
		healthy := float64(mx.ActiveWorkers)
		return healthy < rule.Threshold, healthy
	default:
		return false, 0
	}
}

func severityFor(rule *job.AlertRule) job.Severity {
	switch rule.Condition {
	case job.ConditionWorkerDown, job.ConditionStuckJobs:
		return job.SeverityCritical
	case job.ConditionFailureRate:
		if rule.Threshold > 50 {
			return job.SeverityError
		}
		return job.SeverityWarning
	default:
		return job.SeverityWarning
	}
}

func (m *Monitor) trigger(ctx context.Context, rule *job.AlertRule, currentValue float64, now time.Time) {
	alert := job.ActiveAlert{
		ID:          uuid.NewString(),
		RuleID:      rule.ID,
		Message:     fmt.Sprintf("%s: condition %s breached threshold %.2f (current %.2f)", rule.Name, rule.Condition, rule.Threshold, currentValue),
		Severity:    severityFor(rule),
		TriggeredAt: now,
		Metadata:    map[string]any{"currentValue": currentValue, "threshold": rule.Threshold},
	}

	m.alertsMu.Lock()
	m.alerts[alert.ID] = &alert
	m.alertsMu.Unlock()

	m.rulesMu.Lock()
	if stored, ok := m.rules[rule.ID]; ok {
		stored.LastTriggered = &now
	}
	m.rulesMu.Unlock()

	m.publish(events.Event{Kind: events.AlertTriggered, AlertID: alert.ID, Payload: alert})

	if m.cfg.Notifier == nil {
		return
	}
	for _, recipient := range rule.Recipients {
		if err := m.cfg.Notifier.NotifyAlert(ctx, recipient, notifications.AlertInput{
			AlertID:     alert.ID,
			RuleID:      rule.ID,
			Message:     alert.Message,
			Severity:    string(alert.Severity),
			TriggeredAt: alert.TriggeredAt,
		}); err != nil {
			m.cfg.Logger.Error("monitor.notify_alert_failed", "alert_id", alert.ID, "recipient", recipient, "err", err)
		}
	}
}
