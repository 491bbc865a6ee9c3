package model

import "time"

// Donation is the append-only record of a completed handoff together with
// the impact computed from its quantity.
type Donation struct {
    ID            string    `db:"id" json:"id"`
    CollectionID  string    `db:"collection_id" json:"collectionId"`
    ListingID     string    `db:"listing_id" json:"listingId"`
    DonorID       string    `db:"donor_id" json:"donorId"`
    DonorName     string    `db:"donor_name" json:"donorName"`
    RecipientID   string    `db:"recipient_id" json:"recipientId"`
    RecipientName string    `db:"recipient_name" json:"recipientName"`
    Quantity      string    `db:"quantity" json:"quantity"`
    FoodKg        float64   `db:"food_kg" json:"foodKg"`
    CO2Saved      float64   `db:"co2_saved" json:"co2Saved"`
    WaterSaved    int64     `db:"water_saved" json:"waterSaved"`
    PeopleFed     int       `db:"people_fed" json:"peopleFed"`
    CollectedAt   time.Time `db:"collected_at" json:"collectedAt"`
    CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}
