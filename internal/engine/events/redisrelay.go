package events

import (
	"context"
	"encoding/json"
	"log/slog"
)

// RedisPublisher is the subset of redisclient.Client the relay needs,
// kept narrow so tests can fake it without pulling in go-redis.
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Relay fans every Bus event out to a Redis pub/sub channel so external
// dashboards/tools can observe the running engine (SPEC_FULL.md §4.6). It
// never feeds back into the engine's own dispatch decisions — the engine
// remains single-process-authoritative, so this is observability, not
// distributed coordination.
type Relay struct {
	bus     *Bus
	redis   RedisPublisher
	channel string
	logger  *slog.Logger
}

func NewRelay(bus *Bus, redis RedisPublisher, channel string, logger *slog.Logger) *Relay {
	if channel == "" {
		channel = "jobforge:events"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{bus: bus, redis: redis, channel: channel, logger: logger}
}

// Run subscribes to the bus and republishes to Redis until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	events, unsubscribe := r.bus.Subscribe(256)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			b, err := json.Marshal(e)
			if err != nil {
				r.logger.Error("events.relay_marshal_failed", "err", err)
				continue
			}
			if err := r.redis.Publish(ctx, r.channel, b); err != nil {
				r.logger.Warn("events.relay_publish_failed", "err", err)
			}
		}
	}
}
