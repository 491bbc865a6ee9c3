package model

import "time"

// OutboxEvent is a secondary write recorded next to the primary one and
// delivered later by the relay.  DedupKey makes enqueueing idempotent.
type OutboxEvent struct {
    ID          string     `db:"id"`
    Topic       string     `db:"topic"`
    DedupKey    string     `db:"dedup_key"`
    Payload     string     `db:"payload"`
    Attempts    int        `db:"attempts"`
    LastError   string     `db:"last_error"`
    CreatedAt   time.Time  `db:"created_at"`
    DeliveredAt *time.Time `db:"delivered_at"`
}
