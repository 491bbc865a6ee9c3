package repository

import (
	"context"
	"time"

	"github.com/pocketbase/dbx"

	"github.com/sumit010804/food-share-sub000/internal/model"
)

// OutboxRepo stores secondary writes until the relay delivers them.
type OutboxRepo struct {
	db *dbx.DB
}

// NewOutboxRepo returns a new OutboxRepo bound to db.
func NewOutboxRepo(db *dbx.DB) *OutboxRepo { return &OutboxRepo{db: db} }

// Append records ev unless an event with the same dedup key exists.  It
// reports whether a row was written.
func (r *OutboxRepo) Append(ctx context.Context, ev *model.OutboxEvent) (bool, error) {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = Now()
	}
	_, err := r.db.Insert("outbox_events", dbx.Params{
		"id":         ev.ID,
		"topic":      ev.Topic,
		"dedup_key":  ev.DedupKey,
		"payload":    ev.Payload,
		"attempts":   0,
		"last_error": "",
		"created_at": ev.CreatedAt,
	}).WithContext(ctx).Execute()
	if err != nil {
		if isDuplicateKey(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Pending returns undelivered events of the given topics that have not
// exhausted their attempts, oldest first.  Events of other topics are left
// untouched for a relay that can handle them.
func (r *OutboxRepo) Pending(ctx context.Context, topics []string, limit int64, maxAttempts int) ([]model.OutboxEvent, error) {
	out := []model.OutboxEvent{}
	if len(topics) == 0 {
		return out, nil
	}
	err := r.db.Select().
		From("outbox_events").
		Where(dbx.And(
			dbx.HashExp{"delivered_at": nil},
			dbx.In("topic", anySlice(topics)...),
			dbx.NewExp("attempts < {:max}", dbx.Params{"max": maxAttempts}),
		)).
		OrderBy("created_at ASC", "id ASC").
		Limit(limit).
		WithContext(ctx).
		All(&out)
	return out, err
}

// MarkDelivered stamps delivered_at once; a second relay racing on the same
// event sees 0.
func (r *OutboxRepo) MarkDelivered(ctx context.Context, id string, now time.Time) (int64, error) {
	return updateIf(ctx, r.db, "outbox_events",
		dbx.Params{"delivered_at": now},
		dbx.HashExp{"id": id, "delivered_at": nil})
}

// MarkFailed bumps the attempt counter and keeps the last error message.
func (r *OutboxRepo) MarkFailed(ctx context.Context, id, msg string) error {
	if len(msg) > 1024 {
		msg = msg[:1024]
	}
	_, err := updateIf(ctx, r.db, "outbox_events", dbx.Params{
		"attempts":   dbx.NewExp("attempts + 1"),
		"last_error": msg,
	}, dbx.HashExp{"id": id, "delivered_at": nil})
	return err
}

// Get returns a single event; used by tests and the repair tool.
func (r *OutboxRepo) Get(ctx context.Context, id string) (*model.OutboxEvent, error) {
	var ev model.OutboxEvent
	err := r.db.Select().From("outbox_events").Where(dbx.HashExp{"id": id}).WithContext(ctx).One(&ev)
	if err != nil {
		return nil, notFound(err)
	}
	return &ev, nil
}
