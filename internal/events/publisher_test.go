package events

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestPublisher(t *testing.T) (*Publisher, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewPublisher(rdb, "", slog.Default()), rdb
}

func TestPublishAppendsToStream(t *testing.T) {
	ctx := context.Background()
	pub, rdb := newTestPublisher(t)
	at := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	evt := New(TypeTransactionPosted, at, map[string]any{
		"transaction_id": "t-1",
		"number":         "TXN-20260901-000001",
	})
	require.NoError(t, pub.Publish(ctx, evt))

	msgs, err := rdb.XRange(ctx, DefaultStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	values := msgs[0].Values
	require.Equal(t, string(TypeTransactionPosted), values["type"])
	require.Equal(t, at.Format(time.RFC3339Nano), values["at"])
	require.Contains(t, values["payload"], `"transaction_id":"t-1"`)
}

func TestPublishStampsMissingTime(t *testing.T) {
	ctx := context.Background()
	pub, rdb := newTestPublisher(t)
	fixed := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	pub.WithNow(func() time.Time { return fixed })

	require.NoError(t, pub.Publish(ctx, Event{
		Type:    TypeBudgetExceeded,
		Payload: map[string]any{"budget_id": "b-1"},
	}))

	msgs, err := rdb.XRange(ctx, DefaultStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, fixed.Format(time.RFC3339Nano), msgs[0].Values["at"])
}
