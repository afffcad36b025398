package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStream is the Redis stream consumed by reporting and alerting.
const DefaultStream = "ledger:events"

// Publisher appends events to a Redis stream.
type Publisher struct {
	rdb    *redis.Client
	stream string
	logger *slog.Logger
	now    func() time.Time
}

// NewPublisher constructs a Publisher. An empty stream selects DefaultStream.
func NewPublisher(rdb *redis.Client, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &Publisher{rdb: rdb, stream: stream, logger: logger, now: time.Now}
}

// WithNow overrides the publisher clock for testing.
func (p *Publisher) WithNow(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

// Publish appends the event to the stream. The returned error is for the
// caller's log line only; publishing sits outside the consistency boundary.
func (p *Publisher) Publish(ctx context.Context, evt Event) error {
	if evt.At.IsZero() {
		evt.At = p.now()
	}
	payload, err := evt.MarshalPayload()
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", evt.Type, err)
	}
	err = p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"type":    string(evt.Type),
			"at":      evt.At.UTC().Format(time.RFC3339Nano),
			"payload": string(payload),
		},
	}).Err()
	if err != nil {
		p.logger.Warn("event publish failed",
			slog.String("type", string(evt.Type)),
			slog.Any("error", err))
		return fmt.Errorf("events: publish %s: %w", evt.Type, err)
	}
	return nil
}
