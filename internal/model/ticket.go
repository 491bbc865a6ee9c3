package model

import "time"

// Ticket authorizes exactly one handoff of a collection.  UsedAt moves
// from nil to a timestamp once and never back.
type Ticket struct {
    ID            string     `db:"id" json:"id"`
    CollectionID  string     `db:"collection_id" json:"collectionId"`
    Token         string     `db:"token" json:"token"`
    UserID        *string    `db:"user_id" json:"userId"`
    ExpiresAt     time.Time  `db:"expires_at" json:"expiresAt"`
    UsedAt        *time.Time `db:"used_at" json:"usedAt"`
    UsedByScanner *string    `db:"used_by_scanner" json:"usedByScanner,omitempty"`
    CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
    UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}
