package model

import "time"

// Notification types written to the feed.
const (
    NotifyReserved            = "reserved"
    NotifyItemCollected       = "item_collected"
    NotifyCollectionConfirmed = "collection_confirmed"
)

// Notification is a feed entry for one user.  IDs are deterministic per
// (listing, recipient role) so redelivered events collapse onto one row.
type Notification struct {
    ID               string    `db:"id" json:"id"`
    UserID           string    `db:"user_id" json:"userId"`
    Type             string    `db:"type" json:"type"`
    Title            string    `db:"title" json:"title"`
    Message          string    `db:"message" json:"message"`
    ListingID        string    `db:"listing_id" json:"listingId"`
    CollectionMethod string    `db:"collection_method" json:"collectionMethod,omitempty"`
    IsRead           bool      `db:"is_read" json:"isRead"`
    CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}
