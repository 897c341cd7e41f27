// Package events implements the typed, in-process event bus described in
// SPEC_FULL.md §4.6: components publish discriminated Event variants and
// subscribers drain them from a buffered channel. There is no back-pressure
// — events are advisory (spec.md §9 "Event plumbing") — so a subscriber
// that falls behind drops events (logged at debug) rather than stalling a
// publisher.
package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

type Kind string

const (
	// Queue events
	JobCreated          Kind = "job.created"
	JobStarted          Kind = "job.started"
	JobCompleted        Kind = "job.completed"
	JobFailed           Kind = "job.failed"
	JobCancelled        Kind = "job.cancelled"
	JobRetrying         Kind = "job.retrying"
	JobProgressUpdated  Kind = "job.progress_updated"

	// Scheduler events
	ScheduleError Kind = "schedule.error"

	// Worker pool events
	WorkerHealthChanged Kind = "worker.health_changed"
	WorkerAdded         Kind = "worker.added"
	WorkerRemoved       Kind = "worker.removed"

	// Monitor events
	MetricsCollected Kind = "monitor.metrics_collected"
	AlertTriggered   Kind = "monitor.alert_triggered"
)

// Event is the wire shape delivered to subscribers, matching spec.md §6
// "{event, jobId | workerId | alertId, payload, timestamp}".
type Event struct {
	Kind      Kind      `json:"event"`
	JobID     string    `json:"jobId,omitempty"`
	WorkerID  string    `json:"workerId,omitempty"`
	AlertID   string    `json:"alertId,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher is implemented by anything an Event can be handed to — the Bus
// itself, or a decorator such as the Redis fan-out in redisrelay.go.
type Publisher interface {
	Publish(e Event)
}

type subscriber struct {
	ch     chan Event
	closed bool
}

// Bus fans out Events to any number of subscribers. Zero value is usable
// only via New (so the internal map/mutex are initialized).
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]*subscriber
	nextID      int
	logger      *slog.Logger
}

func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subscribers: make(map[int]*subscriber),
		logger:      logger,
	}
}

// Subscribe returns a channel of Events and an unsubscribe function. The
// channel has a modest buffer; a consumer that does not drain it fast
// enough will miss events rather than block publishers.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	sub := &subscriber{ch: make(chan Event, buffer)}
	b.subscribers[id] = sub
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subscribers[id]; ok && !s.closed {
			s.closed = true
			close(s.ch)
			delete(b.subscribers, id)
		}
	}
	return sub.ch, unsubscribe
}

// Publish stamps the timestamp (if unset) and fans out to every live
// subscriber without blocking.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		select {
		case sub.ch <- e:
		default:
			b.logger.Debug("events.subscriber_slow_dropped", "event", e.Kind)
		}
	}
}

// MarshalJSON is used by the Redis relay and the websocket stream handler.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	return json.Marshal(alias(e))
}
