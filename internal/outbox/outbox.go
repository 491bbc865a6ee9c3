// Package outbox delivers secondary writes (notifications, analytics
// updates) that were recorded next to a primary state change.  Producers
// append an event in the same database as the state change; the Relay
// later hands each event to the handler registered for its topic and
// retries until it succeeds or runs out of attempts.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sumit010804/food-share-sub000/internal/config"
	"github.com/sumit010804/food-share-sub000/internal/metrics"
	"github.com/sumit010804/food-share-sub000/internal/model"
)

// Topics understood by the relay.
const (
	TopicNotification = "notification"
	TopicAnalytics    = "analytics.apply"
)

// Appender records events.  Appending an event whose dedup key already
// exists must succeed without writing.
type Appender interface {
	Append(ctx context.Context, ev *model.OutboxEvent) (bool, error)
}

// Store is everything the relay needs from persistence.
type Store interface {
	Appender
	Pending(ctx context.Context, topics []string, limit int64, maxAttempts int) ([]model.OutboxEvent, error)
	MarkDelivered(ctx context.Context, id string, now time.Time) (int64, error)
	MarkFailed(ctx context.Context, id, msg string) error
}

// Handler delivers one event payload.
type Handler func(ctx context.Context, payload []byte) error

// Enqueue JSON-encodes payload and appends it under topic.  The dedup key
// makes repeated enqueues of the same logical event collapse to one row.
func Enqueue(ctx context.Context, store Appender, topic, dedupKey string, payload any) (bool, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("encode %s payload: %w", topic, err)
	}
	return store.Append(ctx, &model.OutboxEvent{
		ID:        uuid.NewString(),
		Topic:     topic,
		DedupKey:  dedupKey,
		Payload:   string(body),
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	})
}

// Relay polls the store and dispatches pending events.
type Relay struct {
	store       Store
	handlers    map[string]Handler
	interval    time.Duration
	batch       int64
	maxAttempts int
	log         *slog.Logger
}

// NewRelay returns a Relay configured by cfg.  Register handlers with
// Handle before calling Run.
func NewRelay(store Store, cfg config.OutboxConfig, log *slog.Logger) *Relay {
	return &Relay{
		store:       store,
		handlers:    map[string]Handler{},
		interval:    cfg.Interval,
		batch:       int64(cfg.BatchSize),
		maxAttempts: cfg.MaxAttempts,
		log:         log,
	}
}

// Handle registers h for topic.
func (r *Relay) Handle(topic string, h Handler) {
	r.handlers[topic] = h
}

// topics lists the registered topics.  Events of unregistered topics stay
// pending without spending attempts, so they are delivered once a handler
// for them is registered (e.g. after Redis comes back and the server
// restarts).
func (r *Relay) topics() []string {
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Run drains the outbox every interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
			r.log.Error("outbox drain failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Drain delivers one batch of pending events and returns how many were
// delivered.  A failing handler only affects its own event.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	events, err := r.store.Pending(ctx, r.topics(), r.batch, r.maxAttempts)
	if err != nil {
		return 0, err
	}
	delivered := 0
	for _, ev := range events {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}
		h, ok := r.handlers[ev.Topic]
		if !ok {
			r.fail(ctx, ev, fmt.Errorf("no handler for topic %q", ev.Topic))
			continue
		}
		if err := h(ctx, []byte(ev.Payload)); err != nil {
			r.fail(ctx, ev, err)
			continue
		}
		n, err := r.store.MarkDelivered(ctx, ev.ID, time.Now().UTC().Truncate(time.Millisecond))
		if err != nil {
			r.log.Error("outbox mark delivered failed", "id", ev.ID, "err", err)
			continue
		}
		if n == 1 {
			delivered++
			metrics.OutboxDelivery(ev.Topic, "delivered")
		}
	}
	return delivered, nil
}

func (r *Relay) fail(ctx context.Context, ev model.OutboxEvent, cause error) {
	metrics.OutboxDelivery(ev.Topic, "failed")
	r.log.Warn("outbox delivery failed", "id", ev.ID, "topic", ev.Topic, "attempt", ev.Attempts+1, "err", cause)
	if err := r.store.MarkFailed(ctx, ev.ID, cause.Error()); err != nil {
		r.log.Error("outbox mark failed", "id", ev.ID, "err", err)
	}
}
