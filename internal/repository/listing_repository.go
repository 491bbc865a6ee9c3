package repository

import (
	"context"
	"time"

	"github.com/pocketbase/dbx"

	"github.com/sumit010804/food-share-sub000/internal/model"
)

// Holder identifies the collector a listing is reserved for.
type Holder struct {
	ID    string
	Name  string
	Email string
}

// ListingRepo provides data access to the listings table.  Reads apply the
// lazy available -> expired transition before returning rows.
type ListingRepo struct {
	db *dbx.DB
}

// NewListingRepo returns a new ListingRepo bound to db.
func NewListingRepo(db *dbx.DB) *ListingRepo { return &ListingRepo{db: db} }

// ResolveKey finds the listing addressed by anyID, which may be either the
// canonical id or the legacy id.
func (r *ListingRepo) ResolveKey(ctx context.Context, anyID string) (ListingKey, error) {
	var row struct {
		ID       string  `db:"id"`
		LegacyID *string `db:"legacy_id"`
	}
	err := r.db.Select("id", "legacy_id").
		From("listings").
		Where(matchListing([]string{anyID})).
		Limit(1).
		WithContext(ctx).
		One(&row)
	if err != nil {
		return ListingKey{}, notFound(err)
	}
	key := ListingKey{ID: row.ID}
	if row.LegacyID != nil {
		key.LegacyID = *row.LegacyID
	}
	return key, nil
}

// Create inserts a new listing.  Missing timestamps and status are filled in.
func (r *ListingRepo) Create(ctx context.Context, l *model.Listing) error {
	now := Now()
	if l.Status == "" {
		l.Status = model.ListingAvailable
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
	_, err := r.db.Insert("listings", dbx.Params{
		"id":                l.ID,
		"legacy_id":         l.LegacyID,
		"title":             l.Title,
		"quantity":          l.Quantity,
		"location":          l.Location,
		"status":            l.Status,
		"owner_id":          l.OwnerID,
		"owner_name":        l.OwnerName,
		"owner_email":       l.OwnerEmail,
		"reserved_by":       l.ReservedBy,
		"reserved_by_name":  l.ReservedByName,
		"reserved_by_email": l.ReservedByEmail,
		"reserved_at":       l.ReservedAt,
		"collected_by":      l.CollectedBy,
		"collected_at":      l.CollectedAt,
		"available_until":   l.AvailableUntil,
		"created_at":        l.CreatedAt,
		"updated_at":        l.UpdatedAt,
	}).WithContext(ctx).Execute()
	return err
}

// Get returns the listing addressed by anyID after applying lazy expiry.
func (r *ListingRepo) Get(ctx context.Context, anyID string) (*model.Listing, error) {
	if _, err := r.expire(ctx, matchListing([]string{anyID}), Now()); err != nil {
		return nil, err
	}
	var l model.Listing
	err := r.db.Select().
		From("listings").
		Where(matchListing([]string{anyID})).
		Limit(1).
		WithContext(ctx).
		One(&l)
	if err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}

// List returns listings newest first, optionally filtered by status.  Due
// listings are expired before the select runs.
func (r *ListingRepo) List(ctx context.Context, status string) ([]model.Listing, error) {
	if _, err := r.ExpireDue(ctx, Now()); err != nil {
		return nil, err
	}
	q := r.db.Select().From("listings").OrderBy("created_at DESC")
	if status != "" {
		q = q.Where(dbx.HashExp{"status": status})
	}
	listings := []model.Listing{}
	if err := q.WithContext(ctx).All(&listings); err != nil {
		return nil, err
	}
	return listings, nil
}

// ExpireDue moves every available listing whose window closed before now
// to expired and returns how many rows changed.
func (r *ListingRepo) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	return r.expire(ctx, nil, now)
}

func (r *ListingRepo) expire(ctx context.Context, scope dbx.Expression, now time.Time) (int64, error) {
	where := dbx.And(
		dbx.HashExp{"status": model.ListingAvailable},
		dbx.NewExp("available_until IS NOT NULL AND available_until < {:now}", dbx.Params{"now": now}),
		scope,
	)
	return updateIf(ctx, r.db, "listings", dbx.Params{
		"status":     model.ListingExpired,
		"updated_at": now,
	}, where)
}

// ReserveIf reserves the listing for h only while it is still available
// and inside its availability window.  It returns 1 when this call won the
// reservation and 0 otherwise.
func (r *ListingRepo) ReserveIf(ctx context.Context, key ListingKey, h Holder, now time.Time) (int64, error) {
	where := dbx.And(
		dbx.HashExp{"id": key.ID, "status": model.ListingAvailable},
		dbx.NewExp("(available_until IS NULL OR available_until >= {:now})", dbx.Params{"now": now}),
	)
	return updateIf(ctx, r.db, "listings", dbx.Params{
		"status":            model.ListingReserved,
		"reserved_by":       h.ID,
		"reserved_by_name":  h.Name,
		"reserved_by_email": h.Email,
		"reserved_at":       now,
		"updated_at":        now,
	}, where)
}

// MarkCollected moves the listing matching any of forms to collected.  It
// is a no-op for listings that are already collected.
func (r *ListingRepo) MarkCollected(ctx context.Context, forms []string, by string, now time.Time) (int64, error) {
	where := dbx.And(
		matchListing(forms),
		dbx.Not(dbx.HashExp{"status": model.ListingCollected}),
	)
	return updateIf(ctx, r.db, "listings", dbx.Params{
		"status":       model.ListingCollected,
		"collected_by": by,
		"collected_at": now,
		"updated_at":   now,
	}, where)
}
