package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pocketbase/dbx"

	"github.com/sumit010804/food-share-sub000/internal/model"
)

// CollectionRepo provides data access to the collections table.
type CollectionRepo struct {
	db *dbx.DB
}

// NewCollectionRepo returns a new CollectionRepo bound to db.
func NewCollectionRepo(db *dbx.DB) *CollectionRepo { return &CollectionRepo{db: db} }

// Get returns the collection with the given id.
func (r *CollectionRepo) Get(ctx context.Context, id string) (*model.Collection, error) {
	var c model.Collection
	err := r.db.Select().
		From("collections").
		Where(dbx.HashExp{"id": id}).
		WithContext(ctx).
		One(&c)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// FindByListing returns the collection stored under any of the listing's
// key forms.
func (r *CollectionRepo) FindByListing(ctx context.Context, forms []string) (*model.Collection, error) {
	var c model.Collection
	err := r.db.Select().
		From("collections").
		Where(matchListingRef(forms)).
		OrderBy("created_at ASC").
		Limit(1).
		WithContext(ctx).
		One(&c)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// collectionColumns lists the columns written by InsertIfAbsent, in order.
var collectionColumns = []string{
	"id", "listing_id", "listing_title", "donor_id", "donor_name",
	"recipient_id", "recipient_name", "recipient_email", "quantity", "location",
	"status", "collection_method", "collected_by", "reserved_at", "collected_at",
	"created_at", "updated_at",
}

func collectionParams(c *model.Collection) dbx.Params {
	return dbx.Params{
		"id":                c.ID,
		"listing_id":        c.ListingID,
		"listing_title":     c.ListingTitle,
		"donor_id":          c.DonorID,
		"donor_name":        c.DonorName,
		"recipient_id":      c.RecipientID,
		"recipient_name":    c.RecipientName,
		"recipient_email":   c.RecipientEmail,
		"quantity":          c.Quantity,
		"location":          c.Location,
		"status":            c.Status,
		"collection_method": c.CollectionMethod,
		"collected_by":      c.CollectedBy,
		"reserved_at":       c.ReservedAt,
		"collected_at":      c.CollectedAt,
		"created_at":        c.CreatedAt,
		"updated_at":        c.UpdatedAt,
	}
}

// InsertIfAbsent inserts c unless a collection already exists under any of
// forms.  The existence check and the insert are one statement, and the
// UNIQUE(listing_id) constraint catches the remaining race on the canonical
// form.  It reports whether a row was written.
func (r *CollectionRepo) InsertIfAbsent(ctx context.Context, c *model.Collection, forms []string) (bool, error) {
	params := collectionParams(c)
	placeholders := make([]string, len(collectionColumns))
	for i, col := range collectionColumns {
		placeholders[i] = "{:" + col + "}"
	}
	inList := make([]string, len(forms))
	for i, f := range forms {
		name := fmt.Sprintf("form%d", i)
		params[name] = f
		inList[i] = "{:" + name + "}"
	}

	from := ""
	if r.db.DriverName() == "mysql" {
		from = " FROM DUAL"
	}
	sql := "INSERT INTO collections (" + strings.Join(collectionColumns, ", ") + ") " +
		"SELECT " + strings.Join(placeholders, ", ") + from +
		" WHERE NOT EXISTS (SELECT 1 FROM collections WHERE listing_id IN (" + strings.Join(inList, ", ") + "))"

	res, err := r.db.NewQuery(sql).Bind(params).WithContext(ctx).Execute()
	if err != nil {
		if isDuplicateKey(err) {
			return false, nil
		}
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// EnsureForListing returns the collection for the listing identified by
// forms, creating it from draft when none exists.  It never writes a second
// collection: a lost insert race is resolved by re-reading through the same
// tolerant filter.  The boolean reports whether draft was inserted.
func (r *CollectionRepo) EnsureForListing(ctx context.Context, forms []string, draft *model.Collection) (*model.Collection, bool, error) {
	existing, err := r.FindByListing(ctx, forms)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	inserted, err := r.InsertIfAbsent(ctx, draft, forms)
	if err != nil {
		return nil, false, err
	}
	if inserted {
		return draft, true, nil
	}
	existing, err = r.FindByListing(ctx, forms)
	if err != nil {
		return nil, false, fmt.Errorf("re-read collection after lost insert: %w", err)
	}
	return existing, false, nil
}

// MarkCollectedIf moves a collection to collected unless it already is.
// It returns 1 for the caller that performed the transition.
func (r *CollectionRepo) MarkCollectedIf(ctx context.Context, id, by, method string, now time.Time) (int64, error) {
	where := dbx.And(
		dbx.HashExp{"id": id},
		dbx.Not(dbx.HashExp{"status": model.CollectionCollected}),
	)
	return updateIf(ctx, r.db, "collections", dbx.Params{
		"status":            model.CollectionCollected,
		"collected_by":      by,
		"collection_method": method,
		"collected_at":      now,
		"updated_at":        now,
	}, where)
}

// ListCollectedWithoutDonation returns collected collections that have no
// donation row, oldest first.
func (r *CollectionRepo) ListCollectedWithoutDonation(ctx context.Context, limit int64) ([]model.Collection, error) {
	out := []model.Collection{}
	err := r.db.Select().
		From("collections").
		Where(dbx.And(
			dbx.HashExp{"status": model.CollectionCollected},
			dbx.NewExp("NOT EXISTS (SELECT 1 FROM donations d WHERE d.collection_id = collections.id)"),
		)).
		OrderBy("collected_at ASC").
		Limit(limit).
		WithContext(ctx).
		All(&out)
	return out, err
}
