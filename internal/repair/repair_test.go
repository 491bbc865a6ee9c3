package repair

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumit010804/food-share-sub000/internal/database/dbtest"
	"github.com/sumit010804/food-share-sub000/internal/model"
	"github.com/sumit010804/food-share-sub000/internal/repository"
)

type countingApplier struct{ seen map[string]bool }

func (a *countingApplier) Apply(_ context.Context, d model.Donation) (bool, error) {
	if a.seen[d.ID] {
		return false, nil
	}
	a.seen[d.ID] = true
	return true, nil
}

func setup(t *testing.T) (*dbx.DB, *Jobs) {
	t.Helper()
	db := dbtest.New(t)
	return db, &Jobs{
		Collections: repository.NewCollectionRepo(db),
		Donations:   repository.NewDonationRepo(db),
		Analytics:   &countingApplier{seen: map[string]bool{}},
		BatchSize:   2,
		Log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func seedCollected(t *testing.T, j *Jobs, quantity string) *model.Collection {
	t.Helper()
	now := repository.Now()
	at := now.Add(-time.Hour)
	c := &model.Collection{
		ID:          uuid.NewString(),
		ListingID:   uuid.NewString(),
		DonorID:     "donor-1",
		RecipientID: "U1",
		Quantity:    quantity,
		Status:      model.CollectionCollected,
		ReservedAt:  &at,
		CollectedAt: &now,
		CreatedAt:   at,
		UpdatedAt:   now,
	}
	ok, err := j.Collections.InsertIfAbsent(context.Background(), c, []string{c.ListingID})
	require.NoError(t, err)
	require.True(t, ok)
	return c
}

func donationCount(t *testing.T, db *dbx.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.Select("COUNT(*)").From("donations").Row(&n))
	return n
}

func TestBackfillDonations_DryRunThenApply(t *testing.T) {
	db, j := setup(t)
	ctx := context.Background()
	for _, q := range []string{"5 kg", "500 g", "3", "a tray"} {
		seedCollected(t, j, q)
	}

	rep, err := j.BackfillDonations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Changed, "dry run reports one batch")
	assert.Zero(t, donationCount(t, db))

	j.Apply = true
	rep, err = j.BackfillDonations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, rep.Changed)
	assert.Equal(t, 4, donationCount(t, db))

	rep, err = j.BackfillDonations(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Scanned, "re-running finds nothing left to do")
}

func TestReplayAnalytics_CountsEachDonationOnce(t *testing.T) {
	_, j := setup(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		seedCollected(t, j, "1 kg")
	}
	j.Apply = true
	_, err := j.BackfillDonations(ctx)
	require.NoError(t, err)

	rep, err := j.ReplayAnalytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Scanned: 3, Changed: 3}, rep)

	rep, err = j.ReplayAnalytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Scanned: 3, Changed: 0}, rep)
}

func TestReplayAnalytics_RequiresAggregateWhenApplying(t *testing.T) {
	_, j := setup(t)
	j.Analytics = nil
	j.Apply = true
	_, err := j.ReplayAnalytics(context.Background())
	assert.Error(t, err)
}

func TestRecomputeImpacts(t *testing.T) {
	_, j := setup(t)
	ctx := context.Background()
	c := seedCollected(t, j, "4 kg")
	j.Apply = true
	_, err := j.BackfillDonations(ctx)
	require.NoError(t, err)

	d, err := j.Donations.FindByCollection(ctx, c.ID)
	require.NoError(t, err)
	require.NoError(t, j.Donations.UpdateImpact(ctx, d.ID, 2, 5, 1000, 1))

	j.Apply = false
	rep, err := j.RecomputeImpacts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Scanned: 1, Changed: 1}, rep)

	j.Apply = true
	_, err = j.RecomputeImpacts(ctx)
	require.NoError(t, err)
	d, err = j.Donations.FindByCollection(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, d.FoodKg)
	assert.Equal(t, 10.0, d.CO2Saved)
	assert.Equal(t, int64(2000), d.WaterSaved)

	rep, err = j.RecomputeImpacts(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Changed)
}
