package repository

import (
	"context"

	"github.com/pocketbase/dbx"

	"github.com/sumit010804/food-share-sub000/internal/model"
)

// DonationRepo provides data access to the append-only donations table.
type DonationRepo struct {
	db *dbx.DB
}

// NewDonationRepo returns a new DonationRepo bound to db.
func NewDonationRepo(db *dbx.DB) *DonationRepo { return &DonationRepo{db: db} }

// Insert records d.  A second donation for the same collection violates
// UNIQUE(collection_id); that case returns false with no error.
func (r *DonationRepo) Insert(ctx context.Context, d *model.Donation) (bool, error) {
	_, err := r.db.Insert("donations", dbx.Params{
		"id":             d.ID,
		"collection_id":  d.CollectionID,
		"listing_id":     d.ListingID,
		"donor_id":       d.DonorID,
		"donor_name":     d.DonorName,
		"recipient_id":   d.RecipientID,
		"recipient_name": d.RecipientName,
		"quantity":       d.Quantity,
		"food_kg":        d.FoodKg,
		"co2_saved":      d.CO2Saved,
		"water_saved":    d.WaterSaved,
		"people_fed":     d.PeopleFed,
		"collected_at":   d.CollectedAt,
		"created_at":     d.CreatedAt,
	}).WithContext(ctx).Execute()
	if err != nil {
		if isDuplicateKey(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// FindByCollection returns the donation recorded for a collection.
func (r *DonationRepo) FindByCollection(ctx context.Context, collectionID string) (*model.Donation, error) {
	var d model.Donation
	err := r.db.Select().
		From("donations").
		Where(dbx.HashExp{"collection_id": collectionID}).
		WithContext(ctx).
		One(&d)
	if err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

// Page returns up to limit donations created after the donation with id
// after (empty for the first page), ordered by id.
func (r *DonationRepo) Page(ctx context.Context, after string, limit int64) ([]model.Donation, error) {
	q := r.db.Select().From("donations").OrderBy("id ASC").Limit(limit)
	if after != "" {
		q = q.Where(dbx.NewExp("id > {:after}", dbx.Params{"after": after}))
	}
	out := []model.Donation{}
	err := q.WithContext(ctx).All(&out)
	return out, err
}

// UpdateImpact overwrites the impact columns of a donation.
func (r *DonationRepo) UpdateImpact(ctx context.Context, id string, foodKg, co2 float64, water int64, people int) error {
	_, err := r.db.Update("donations", dbx.Params{
		"food_kg":     foodKg,
		"co2_saved":   co2,
		"water_saved": water,
		"people_fed":  people,
	}, dbx.HashExp{"id": id}).WithContext(ctx).Execute()
	return err
}
