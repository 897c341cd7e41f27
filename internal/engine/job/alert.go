package job

import "time"

type AlertCondition string

const (
	ConditionQueueLength    AlertCondition = "queue_length"
	ConditionFailureRate    AlertCondition = "failed_rate"
	ConditionProcessingTime AlertCondition = "processing_time"
	ConditionStuckJobs      AlertCondition = "stuck_jobs"
	ConditionWorkerDown     AlertCondition = "worker_down"
)

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// AlertRule is an operator-managed threshold the Monitor evaluates on a
// timer (spec.md §4.5). Threshold's unit depends on Condition: a raw count
// for queue_length, a percentage point for failed_rate, seconds for
// processing_time, minutes for stuck_jobs, a worker count for worker_down.
type AlertRule struct {
	ID              string
	Name            string
	Condition       AlertCondition
	Threshold       float64
	Enabled         bool
	Recipients      []string
	LastTriggered   *time.Time
	CooldownMinutes int
}

// ActiveAlert is an instance of a rule firing.
type ActiveAlert struct {
	ID           string
	RuleID       string
	Message      string
	Severity     Severity
	TriggeredAt  time.Time
	Acknowledged *AckInfo
	Resolved     *time.Time
	Metadata     map[string]any
}

type AckInfo struct {
	At time.Time
	By string
}
