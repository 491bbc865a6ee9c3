package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sumit010804/food-share-sub000/internal/impact"
	"github.com/sumit010804/food-share-sub000/internal/metrics"
	"github.com/sumit010804/food-share-sub000/internal/model"
	"github.com/sumit010804/food-share-sub000/internal/outbox"
	"github.com/sumit010804/food-share-sub000/internal/repository"
)

// Applier adds a donation to the analytics aggregate.  Applying the same
// donation twice must count it once.
type Applier interface {
	Apply(ctx context.Context, d model.Donation) (bool, error)
}

// Settlement is the outcome of Finalize.
type Settlement struct {
	Collection *model.Collection
	Donation   *model.Donation
	// AlreadyCollected is true when another call had finalized first.
	AlreadyCollected bool
}

// DirectCollectRequest marks a reservation collected without a ticket, for
// handoffs confirmed by hand.
type DirectCollectRequest struct {
	Ref         CollectionRef
	CollectedBy string
	Method      string
}

// SettlementService records completed handoffs.
type SettlementService struct {
	listings    *repository.ListingRepo
	collections *repository.CollectionRepo
	donations   *repository.DonationRepo
	outbox      outbox.Appender
	analytics   Applier
	notifier    *Notifier
	log         *slog.Logger
}

// NewSettlementService wires the settlement workflow.  analytics may be nil,
// in which case every donation is queued for the relay.
func NewSettlementService(listings *repository.ListingRepo, collections *repository.CollectionRepo, donations *repository.DonationRepo,
	ob outbox.Appender, analytics Applier, notifier *Notifier, log *slog.Logger) *SettlementService {
	return &SettlementService{
		listings:    listings,
		collections: collections,
		donations:   donations,
		outbox:      ob,
		analytics:   analytics,
		notifier:    notifier,
		log:         log,
	}
}

// Finalize marks a collection collected and records its consequences:
// the listing status, one donation with its impact, the analytics update
// and the notifications.  Only the caller that flips the collection status
// does this work; later calls return the existing state unchanged.  Once
// the collection is flipped, a failing step is logged and the remaining
// steps still run.
func (s *SettlementService) Finalize(ctx context.Context, collectionID, collectedBy, method string) (*Settlement, error) {
	c, err := s.collections.Get(ctx, collectionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrCollectionNotFound
	}
	if err != nil {
		return nil, internal("load collection", err)
	}
	if strings.TrimSpace(collectedBy) == "" {
		collectedBy = c.RecipientID
	}
	if method == "" {
		method = model.MethodQRScan
	}

	now := repository.Now()
	n, err := s.collections.MarkCollectedIf(ctx, c.ID, collectedBy, method, now)
	if err != nil {
		metrics.Settlement("error")
		return nil, internal("mark collection collected", err)
	}
	if n == 0 {
		metrics.Settlement("noop")
		return s.existing(ctx, c.ID)
	}

	if fresh, err := s.collections.Get(ctx, c.ID); err == nil {
		c = fresh
	} else {
		s.log.Warn("reload collection failed", "collection_id", c.ID, "err", err)
		c.Status, c.CollectedBy, c.CollectionMethod, c.CollectedAt = model.CollectionCollected, collectedBy, method, &now
	}

	s.markListing(ctx, c, collectedBy, now)
	d := s.recordDonation(ctx, c, now)
	if d != nil {
		s.applyAnalytics(ctx, *d)
	}
	s.notifier.Collected(ctx, c, method)

	metrics.Settlement("settled")
	s.log.Info("collection settled", "collection_id", c.ID, "listing_id", c.ListingID, "method", method)
	return &Settlement{Collection: c, Donation: d}, nil
}

func (s *SettlementService) existing(ctx context.Context, id string) (*Settlement, error) {
	c, err := s.collections.Get(ctx, id)
	if err != nil {
		return nil, internal("reload collection", err)
	}
	out := &Settlement{Collection: c, AlreadyCollected: true}
	if d, err := s.donations.FindByCollection(ctx, id); err == nil {
		out.Donation = d
	} else if !errors.Is(err, repository.ErrNotFound) {
		s.log.Warn("load donation failed", "collection_id", id, "err", err)
	}
	return out, nil
}

func (s *SettlementService) markListing(ctx context.Context, c *model.Collection, by string, now time.Time) {
	forms := []string{c.ListingID}
	if key, err := s.listings.ResolveKey(ctx, c.ListingID); err == nil {
		forms = key.Forms()
	} else if !errors.Is(err, repository.ErrNotFound) {
		s.log.Warn("resolve listing for settlement failed", "listing_id", c.ListingID, "err", err)
	}
	if _, err := s.listings.MarkCollected(ctx, forms, by, now); err != nil {
		s.log.Error("mark listing collected failed", "listing_id", c.ListingID, "err", err)
	}
}

// recordDonation inserts the donation for c, or returns the one already
// stored.  It returns nil only when neither could be done.
func (s *SettlementService) recordDonation(ctx context.Context, c *model.Collection, now time.Time) *model.Donation {
	d := NewDonation(c, now)
	inserted, err := s.donations.Insert(ctx, d)
	if err != nil {
		s.log.Error("record donation failed", "collection_id", c.ID, "err", err)
		return nil
	}
	if inserted {
		metrics.DonationRecorded(d.FoodKg)
		return d
	}
	existing, err := s.donations.FindByCollection(ctx, c.ID)
	if err != nil {
		s.log.Error("load existing donation failed", "collection_id", c.ID, "err", err)
		return nil
	}
	return existing
}

// applyAnalytics updates the aggregate in line and falls back to the
// outbox when that fails, so the relay retries it later.
func (s *SettlementService) applyAnalytics(ctx context.Context, d model.Donation) {
	if s.analytics != nil {
		_, err := s.analytics.Apply(ctx, d)
		if err == nil {
			return
		}
		s.log.Warn("analytics apply failed, queueing retry", "donation_id", d.ID, "err", err)
	}
	if s.outbox == nil {
		return
	}
	if _, err := outbox.Enqueue(ctx, s.outbox, outbox.TopicAnalytics, "analytics:"+d.ID, d); err != nil {
		s.log.Error("analytics enqueue failed", "donation_id", d.ID, "err", err)
	}
}

// NewDonation builds the donation record for a collected collection.
func NewDonation(c *model.Collection, now time.Time) *model.Donation {
	m := impact.FromQuantity(c.Quantity)
	collectedAt := now
	if c.CollectedAt != nil {
		collectedAt = *c.CollectedAt
	}
	return &model.Donation{
		ID:            uuid.NewString(),
		CollectionID:  c.ID,
		ListingID:     c.ListingID,
		DonorID:       c.DonorID,
		DonorName:     c.DonorName,
		RecipientID:   c.RecipientID,
		RecipientName: c.RecipientName,
		Quantity:      c.Quantity,
		FoodKg:        m.FoodKg.InexactFloat64(),
		CO2Saved:      m.CO2Saved.InexactFloat64(),
		WaterSaved:    m.WaterSaved,
		PeopleFed:     m.PeopleFed,
		CollectedAt:   collectedAt,
		CreatedAt:     now,
	}
}

// CollectDirect finalizes a handoff confirmed without a ticket.  A listing
// reference without a collection yet derives one from the reservation.
func (s *SettlementService) CollectDirect(ctx context.Context, req DirectCollectRequest) (*Settlement, error) {
	id := strings.TrimSpace(req.Ref.ID)
	if id == "" {
		return nil, validation("collectionId or listingId is required")
	}
	method := req.Method
	if method == "" {
		method = model.MethodManual
	}

	var c *model.Collection
	switch req.Ref.Kind {
	case RefCollection:
		got, err := s.collections.Get(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCollectionNotFound
		}
		if err != nil {
			return nil, internal("load collection", err)
		}
		c = got
	case RefListing:
		got, err := s.collectionForListing(ctx, id)
		if err != nil {
			return nil, err
		}
		c = got
	default:
		return nil, validation("unknown reference kind " + string(req.Ref.Kind))
	}

	if c.Status == model.CollectionCollected {
		return nil, ErrAlreadyCollected
	}
	out, err := s.Finalize(ctx, c.ID, req.CollectedBy, method)
	if err != nil {
		return nil, err
	}
	if out.AlreadyCollected {
		return nil, ErrAlreadyCollected
	}
	return out, nil
}

func (s *SettlementService) collectionForListing(ctx context.Context, anyID string) (*model.Collection, error) {
	key, err := s.listings.ResolveKey(ctx, anyID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, internal("resolve listing", err)
	}
	l, err := s.listings.Get(ctx, key.ID)
	if err != nil {
		return nil, internal("load listing", err)
	}
	if l.Status == model.ListingCollected {
		return nil, ErrAlreadyCollected
	}

	c, err := s.collections.FindByListing(ctx, key.Forms())
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, internal("load collection", err)
	}
	if l.Status != model.ListingReserved || l.ReservedBy == "" {
		return nil, ErrNotReserved
	}
	rc := reservationContext{
		key:       key,
		listing:   *l,
		requester: repository.Holder{ID: l.ReservedBy, Name: l.ReservedByName, Email: l.ReservedByEmail},
		now:       repository.Now(),
	}
	c, _, err = s.collections.EnsureForListing(ctx, key.Forms(), rc.collectionDraft())
	if err != nil {
		return nil, internal("ensure collection", err)
	}
	return c, nil
}
