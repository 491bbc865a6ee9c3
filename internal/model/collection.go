package model

import "time"

const (
    CollectionReserved  = "reserved"
    CollectionCollected = "collected"
)

// Collection methods recorded when the handoff completes.
const (
    MethodQRScan = "qr_scan"
    MethodManual = "manual"
)

// Collection is the record of one collector's claim on one listing.  There
// is at most one per listing.
type Collection struct {
    ID               string     `db:"id" json:"id"`
    ListingID        string     `db:"listing_id" json:"listingId"`
    ListingTitle     string     `db:"listing_title" json:"listingTitle"`
    DonorID          string     `db:"donor_id" json:"donorId"`
    DonorName        string     `db:"donor_name" json:"donorName"`
    RecipientID      string     `db:"recipient_id" json:"recipientId"`
    RecipientName    string     `db:"recipient_name" json:"recipientName"`
    RecipientEmail   string     `db:"recipient_email" json:"recipientEmail"`
    Quantity         string     `db:"quantity" json:"quantity"`
    Location         string     `db:"location" json:"location"`
    Status           string     `db:"status" json:"status"`
    CollectionMethod string     `db:"collection_method" json:"collectionMethod,omitempty"`
    CollectedBy      string     `db:"collected_by" json:"collectedBy,omitempty"`
    ReservedAt       *time.Time `db:"reserved_at" json:"reservedAt,omitempty"`
    CollectedAt      *time.Time `db:"collected_at" json:"collectedAt,omitempty"`
    CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
    UpdatedAt        time.Time  `db:"updated_at" json:"updatedAt"`
}
