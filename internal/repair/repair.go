// Package repair holds the batch jobs behind cmd/repair.  Every job runs
// as a dry run unless Apply is set, and every job is safe to re-run.
package repair

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sumit010804/food-share-sub000/internal/impact"
	"github.com/sumit010804/food-share-sub000/internal/model"
	"github.com/sumit010804/food-share-sub000/internal/repository"
	"github.com/sumit010804/food-share-sub000/internal/service"
)

// Report counts what a job looked at and what it changed (or would
// change, in a dry run).
type Report struct {
	Scanned int
	Changed int
	Failed  int
}

func (r Report) String() string {
	return fmt.Sprintf("scanned=%d changed=%d failed=%d", r.Scanned, r.Changed, r.Failed)
}

// Jobs runs repair passes against the store.
type Jobs struct {
	Collections *repository.CollectionRepo
	Donations   *repository.DonationRepo
	Analytics   service.Applier
	Apply       bool
	BatchSize   int64
	Log         *slog.Logger
}

func (j *Jobs) batch() int64 {
	if j.BatchSize <= 0 {
		return 200
	}
	return j.BatchSize
}

// BackfillDonations creates the missing donation of every collected
// collection.  A dry run reports a single batch.
func (j *Jobs) BackfillDonations(ctx context.Context) (Report, error) {
	var rep Report
	for {
		pending, err := j.Collections.ListCollectedWithoutDonation(ctx, j.batch())
		if err != nil {
			return rep, err
		}
		inserted := 0
		for i := range pending {
			c := &pending[i]
			rep.Scanned++
			if !j.Apply {
				j.Log.Info("would backfill donation", "collection_id", c.ID, "quantity", c.Quantity)
				rep.Changed++
				continue
			}
			ok, err := j.Donations.Insert(ctx, service.NewDonation(c, repository.Now()))
			if err != nil {
				j.Log.Error("backfill failed", "collection_id", c.ID, "err", err)
				rep.Failed++
				continue
			}
			if ok {
				inserted++
				rep.Changed++
			}
		}
		// Stop when the batch was short or made no progress; the latter
		// keeps a persistently failing row from looping forever.
		if !j.Apply || int64(len(pending)) < j.batch() || inserted == 0 {
			return rep, nil
		}
	}
}

// ReplayAnalytics feeds every stored donation to the aggregate.  Donations
// already counted are skipped by the aggregate itself.
func (j *Jobs) ReplayAnalytics(ctx context.Context) (Report, error) {
	if j.Apply && j.Analytics == nil {
		return Report{}, fmt.Errorf("replay analytics: no aggregate configured")
	}
	var rep Report
	err := j.eachDonation(ctx, func(d model.Donation) {
		rep.Scanned++
		if !j.Apply {
			rep.Changed++
			return
		}
		applied, err := j.Analytics.Apply(ctx, d)
		switch {
		case err != nil:
			j.Log.Error("replay failed", "donation_id", d.ID, "err", err)
			rep.Failed++
		case applied:
			rep.Changed++
		}
	})
	return rep, err
}

// RecomputeImpacts rewrites the impact columns of donations whose stored
// figures disagree with their quantity text.
func (j *Jobs) RecomputeImpacts(ctx context.Context) (Report, error) {
	var rep Report
	err := j.eachDonation(ctx, func(d model.Donation) {
		rep.Scanned++
		m := impact.FromQuantity(d.Quantity)
		kg, co2 := m.FoodKg.InexactFloat64(), m.CO2Saved.InexactFloat64()
		if d.FoodKg == kg && d.CO2Saved == co2 && d.WaterSaved == m.WaterSaved && d.PeopleFed == m.PeopleFed {
			return
		}
		rep.Changed++
		j.Log.Info("impact mismatch", "donation_id", d.ID, "quantity", d.Quantity,
			"food_kg", d.FoodKg, "want_food_kg", kg, "apply", j.Apply)
		if !j.Apply {
			return
		}
		if err := j.Donations.UpdateImpact(ctx, d.ID, kg, co2, m.WaterSaved, m.PeopleFed); err != nil {
			j.Log.Error("impact update failed", "donation_id", d.ID, "err", err)
			rep.Failed++
			rep.Changed--
		}
	})
	return rep, err
}

func (j *Jobs) eachDonation(ctx context.Context, fn func(model.Donation)) error {
	after := ""
	for {
		page, err := j.Donations.Page(ctx, after, j.batch())
		if err != nil {
			return err
		}
		for _, d := range page {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(d)
		}
		if int64(len(page)) < j.batch() {
			return nil
		}
		after = page[len(page)-1].ID
	}
}
