package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumit010804/food-share-sub000/internal/config"
	"github.com/sumit010804/food-share-sub000/internal/database/dbtest"
	"github.com/sumit010804/food-share-sub000/internal/repository"
)

func newRelay(t *testing.T, maxAttempts int) (*Relay, *repository.OutboxRepo) {
	t.Helper()
	store := repository.NewOutboxRepo(dbtest.New(t))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.OutboxConfig{Interval: 10 * time.Millisecond, BatchSize: 10, MaxAttempts: maxAttempts}
	return NewRelay(store, cfg, log), store
}

func TestEnqueue_Dedup(t *testing.T) {
	_, store := newRelay(t, 3)

	ok, err := Enqueue(context.Background(), store, TopicNotification, "notification:n1", map[string]string{"id": "n1"})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = Enqueue(context.Background(), store, TopicNotification, "notification:n1", map[string]string{"id": "n1"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRelay_Drain_DeliversOnce(t *testing.T) {
	relay, store := newRelay(t, 3)
	var got []string
	relay.Handle(TopicNotification, func(_ context.Context, payload []byte) error {
		got = append(got, string(payload))
		return nil
	})
	_, err := Enqueue(context.Background(), store, TopicNotification, "k1", map[string]string{"id": "n1"})
	require.NoError(t, err)

	n, err := relay.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = relay.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []string{`{"id":"n1"}`}, got)
}

func TestRelay_Drain_RetriesThenGivesUp(t *testing.T) {
	relay, store := newRelay(t, 2)
	calls := 0
	relay.Handle(TopicAnalytics, func(context.Context, []byte) error {
		calls++
		return errors.New("redis down")
	})
	_, err := Enqueue(context.Background(), store, TopicAnalytics, "analytics:d1", map[string]string{"id": "d1"})
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err := relay.Drain(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)

	pending, err := store.Pending(context.Background(), []string{TopicAnalytics}, 10, 100)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "redis down", pending[0].LastError)
}

func TestRelay_Drain_LeavesUnhandledTopicsPending(t *testing.T) {
	relay, store := newRelay(t, 1)
	relay.Handle(TopicNotification, func(context.Context, []byte) error { return nil })
	ctx := context.Background()
	_, err := Enqueue(ctx, store, TopicAnalytics, "analytics:d1", map[string]string{"id": "d1"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		n, err := relay.Drain(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	}

	pending, err := store.Pending(ctx, []string{TopicAnalytics}, 10, 1)
	require.NoError(t, err)
	require.Len(t, pending, 1, "no attempt was spent")
	assert.Zero(t, pending[0].Attempts)

	// A relay that can handle the topic delivers it later.
	var got int
	relay.Handle(TopicAnalytics, func(context.Context, []byte) error { got++; return nil })
	n, err := relay.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, got)
}

func TestRelay_Run_StopsOnCancel(t *testing.T) {
	relay, _ := newRelay(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, relay.Run(ctx), context.DeadlineExceeded)
}
