package repository

import (
	"context"
	"time"

	"github.com/pocketbase/dbx"
)

// updateIf is the single compare-and-set primitive used by every state
// transition in the service: the UPDATE only touches rows that still match
// where, and the returned count tells the caller whether it won.  A zero
// count is not an error; callers re-read to find out why.
func updateIf(ctx context.Context, db dbx.Builder, table string, set dbx.Params, where dbx.Expression) (int64, error) {
	res, err := db.Update(table, set, where).WithContext(ctx).Execute()
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Now returns the current time truncated to the millisecond precision the
// DATETIME(3) columns keep, so values read back compare equal.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func anySlice(vals []string) []interface{} {
	out := make([]interface{}, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

// ListingKey is the resolved identity of a listing.  Every component that
// touches listing-keyed records goes through ResolveKey and then matches
// against Forms(), so rows written under either the canonical or the legacy
// encoding are found.
type ListingKey struct {
	ID       string
	LegacyID string
}

// Forms returns every encoding of the key, canonical first.
func (k ListingKey) Forms() []string {
	forms := []string{k.ID}
	if k.LegacyID != "" && k.LegacyID != k.ID {
		forms = append(forms, k.LegacyID)
	}
	return forms
}

// matchListing selects listings whose id or legacy id is one of forms.
func matchListing(forms []string) dbx.Expression {
	vals := anySlice(forms)
	return dbx.Or(dbx.In("id", vals...), dbx.In("legacy_id", vals...))
}

// matchListingRef selects rows whose listing_id column holds any of forms.
func matchListingRef(forms []string) dbx.Expression {
	return dbx.In("listing_id", anySlice(forms)...)
}
