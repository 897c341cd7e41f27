package notifications

import (
	"context"
	"log"
	"sync"
	"time"
)

// AlertInput is what the Monitor hands to an AlertNotifier for each
// recipient of a triggered alert (spec.md §4.5 "fan out one notification
// log per recipient").
type AlertInput struct {
	AlertID     string
	RuleID      string
	Message     string
	Severity    string
	TriggeredAt time.Time
}

// AlertNotifier is the Monitor's collaborator for alert-recipient fan-out —
// the same shape as Notifier, generalized from registration confirmations
// to alert delivery.
type AlertNotifier interface {
	NotifyAlert(ctx context.Context, recipient string, input AlertInput) error
}

// LogAlertNotifier logs every alert instead of delivering it anywhere,
// mirroring LogNotifier's role for registration confirmations.
type LogAlertNotifier struct{}

func NewLogAlertNotifier() *LogAlertNotifier { return &LogAlertNotifier{} }

func (n *LogAlertNotifier) NotifyAlert(ctx context.Context, recipient string, in AlertInput) error {
	log.Printf("notification.alert recipient=%s alert=%s rule=%s severity=%s message=%q",
		recipient, in.AlertID, in.RuleID, in.Severity, in.Message,
	)
	return nil
}

// ProtectedAlertNotifier wraps an AlertNotifier with the same
// consecutive-failure circuit breaker as ProtectedNotifier, so a flaky
// downstream alert channel (paging provider, webhook) can't make alert
// fan-out block the Monitor's evaluation loop.
type ProtectedAlertNotifier struct {
	inner AlertNotifier
	cfg   ProtectedNotifierConfig
	mu    sync.Mutex

	state string

	consecutiveFailures int
	openedAt             time.Time
	halfOpenInFlight     int
}

func NewProtectedAlertNotifier(inner AlertNotifier, cfg ProtectedNotifierConfig) *ProtectedAlertNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}
	return &ProtectedAlertNotifier{inner: inner, cfg: cfg, state: "closed"}
}

func (n *ProtectedAlertNotifier) NotifyAlert(ctx context.Context, recipient string, in AlertInput) error {
	if !n.allowRequest() {
		return ErrCircuitOpen
	}

	sendCtx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	err := n.inner.NotifyAlert(sendCtx, recipient, in)
	n.afterRequest(err)
	return err
}

func (n *ProtectedAlertNotifier) allowRequest() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state {
	case "closed":
		return true
	case "open":
		if time.Since(n.openedAt) >= n.cfg.Cooldown {
			n.state = "half_open"
			n.halfOpenInFlight = 0
			return true
		}
		return false
	case "half_open":
		if n.halfOpenInFlight >= n.cfg.HalfOpenMaxCalls {
			return false
		}
		n.halfOpenInFlight++
		return true
	default:
		return true
	}
}

func (n *ProtectedAlertNotifier) afterRequest(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == "half_open" && n.halfOpenInFlight > 0 {
		n.halfOpenInFlight--
	}

	if err == nil {
		n.consecutiveFailures = 0
		n.state = "closed"
		return
	}

	n.consecutiveFailures++
	if n.state == "half_open" {
		n.state = "open"
		n.openedAt = time.Now()
		return
	}
	if n.consecutiveFailures >= n.cfg.FailureThreshold {
		n.state = "open"
		n.openedAt = time.Now()
	}
}
