package model

import "time"

// Listing statuses.  A listing moves available -> reserved -> collected,
// or available -> expired once its availability window has passed.
const (
    ListingAvailable = "available"
    ListingReserved  = "reserved"
    ListingCollected = "collected"
    ListingExpired   = "expired"
)

// Listing is a unit of surplus food offered by an owner.
//
// Fields:
//  ID             – canonical key.
//  LegacyID       – historical alternate key; lookups accept either form.
//  Quantity       – free text as typed by the owner ("5 kg", "20 servings").
//  ReservedBy*    – identity of the single reservation holder, empty while available.
//  AvailableUntil – end of the availability window, nil for open-ended listings.
type Listing struct {
    ID              string     `db:"id" json:"id"`
    LegacyID        *string    `db:"legacy_id" json:"legacyId,omitempty"`
    Title           string     `db:"title" json:"title"`
    Quantity        string     `db:"quantity" json:"quantity"`
    Location        string     `db:"location" json:"location"`
    Status          string     `db:"status" json:"status"`
    OwnerID         string     `db:"owner_id" json:"ownerId"`
    OwnerName       string     `db:"owner_name" json:"ownerName"`
    OwnerEmail      string     `db:"owner_email" json:"ownerEmail"`
    ReservedBy      string     `db:"reserved_by" json:"reservedBy,omitempty"`
    ReservedByName  string     `db:"reserved_by_name" json:"reservedByName,omitempty"`
    ReservedByEmail string     `db:"reserved_by_email" json:"reservedByEmail,omitempty"`
    ReservedAt      *time.Time `db:"reserved_at" json:"reservedAt,omitempty"`
    CollectedBy     string     `db:"collected_by" json:"collectedBy,omitempty"`
    CollectedAt     *time.Time `db:"collected_at" json:"collectedAt,omitempty"`
    AvailableUntil  *time.Time `db:"available_until" json:"availableUntil,omitempty"`
    CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
    UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
}

// ExpiredAt reports whether the availability window closed before now.
func (l Listing) ExpiredAt(now time.Time) bool {
    return l.AvailableUntil != nil && now.After(*l.AvailableUntil)
}
