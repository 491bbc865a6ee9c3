package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumit010804/food-share-sub000/internal/database/dbtest"
	"github.com/sumit010804/food-share-sub000/internal/model"
	"github.com/sumit010804/food-share-sub000/internal/outbox"
	"github.com/sumit010804/food-share-sub000/internal/repository"
	"github.com/sumit010804/food-share-sub000/internal/ticket"
)

type fakeApplier struct {
	mu      sync.Mutex
	applied map[string]model.Donation
	err     error
}

func (f *fakeApplier) Apply(_ context.Context, d model.Donation) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.applied[d.ID]; ok {
		return false, nil
	}
	f.applied[d.ID] = d
	return true, nil
}

type testEnv struct {
	db          *dbx.DB
	listings    *repository.ListingRepo
	collections *repository.CollectionRepo
	donations   *repository.DonationRepo
	outbox      *repository.OutboxRepo
	analytics   *fakeApplier
	reserve     *ReservationService
	tickets     *TicketService
	settle      *SettlementService
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	db := dbtest.New(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := &testEnv{
		db:          db,
		listings:    repository.NewListingRepo(db),
		collections: repository.NewCollectionRepo(db),
		donations:   repository.NewDonationRepo(db),
		outbox:      repository.NewOutboxRepo(db),
		analytics:   &fakeApplier{applied: map[string]model.Donation{}},
	}
	notifier := NewNotifier(e.outbox, log)
	e.reserve = NewReservationService(e.listings, e.collections, notifier, log)
	e.settle = NewSettlementService(e.listings, e.collections, e.donations, e.outbox, e.analytics, notifier, log)
	e.tickets = NewTicketService(e.listings, e.collections, repository.NewTicketRepo(db),
		ticket.NewCodec("qr-secret"), e.settle, time.Hour, log)
	return e
}

func (e *testEnv) seedListing(t *testing.T, id string, mutate func(*model.Listing)) *model.Listing {
	t.Helper()
	l := &model.Listing{
		ID:         id,
		Title:      "Vegetable Curry",
		Quantity:   "5 kg (approx)",
		Location:   "Hall B kitchen",
		OwnerID:    "donor-1",
		OwnerName:  "Dana",
		OwnerEmail: "dana@campus.edu",
	}
	if mutate != nil {
		mutate(l)
	}
	require.NoError(t, e.listings.Create(context.Background(), l))
	return l
}

func (e *testEnv) count(t *testing.T, table string, where dbx.Expression) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.Select("COUNT(*)").From(table).Where(where).Row(&n))
	return n
}

func u1() ReserveRequest {
	return ReserveRequest{ListingID: "L1", UserID: "U1", UserName: "Uma", UserEmail: "uma@campus.edu"}
}

func TestReserve_CreatesCollection(t *testing.T) {
	e := newEnv(t)
	e.seedListing(t, "L1", nil)

	res, err := e.reserve.Reserve(context.Background(), u1())

	require.NoError(t, err)
	assert.False(t, res.Repeat)
	assert.Equal(t, model.ListingReserved, res.Listing.Status)
	assert.Equal(t, "U1", res.Listing.ReservedBy)
	assert.Equal(t, "L1", res.Collection.ListingID)
	assert.Equal(t, "donor-1", res.Collection.DonorID)
	assert.Equal(t, "U1", res.Collection.RecipientID)
	assert.Equal(t, model.CollectionReserved, res.Collection.Status)
	assert.Equal(t, 1, e.count(t, "outbox_events", dbx.HashExp{"dedup_key": "notification:reservation-L1-donor"}))
}

func TestReserve_Errors(t *testing.T) {
	e := newEnv(t)
	e.seedListing(t, "L1", nil)

	_, err := e.reserve.Reserve(context.Background(), ReserveRequest{ListingID: "L1"})
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = e.reserve.Reserve(context.Background(), ReserveRequest{ListingID: "nope", UserID: "U1"})
	assert.ErrorIs(t, err, ErrListingNotFound)

	_, err = e.reserve.Reserve(context.Background(), ReserveRequest{ListingID: "L1", UserID: "donor-1"})
	assert.ErrorIs(t, err, ErrOwnListing)

	_, err = e.reserve.Reserve(context.Background(), ReserveRequest{ListingID: "L1", UserID: "other-account", UserEmail: " Dana@Campus.edu "})
	assert.ErrorIs(t, err, ErrOwnListing)

	_, err = e.reserve.Reserve(context.Background(), u1())
	require.NoError(t, err)

	_, err = e.reserve.Reserve(context.Background(), ReserveRequest{ListingID: "L1", UserID: "U2"})
	require.ErrorIs(t, err, ErrAlreadyReserved)
	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "reserved", se.Detail["currentStatus"])
	assert.Equal(t, "U1", se.Detail["reservedBy"])
	assert.Equal(t, "uma@campus.edu", se.Detail["reservedByEmail"])
}

func TestReserve_RepeatBySameUser(t *testing.T) {
	e := newEnv(t)
	e.seedListing(t, "L1", nil)

	first, err := e.reserve.Reserve(context.Background(), u1())
	require.NoError(t, err)
	second, err := e.reserve.Reserve(context.Background(), u1())
	require.NoError(t, err)

	assert.True(t, second.Repeat)
	assert.Equal(t, first.Collection.ID, second.Collection.ID)
	assert.Equal(t, 1, e.count(t, "collections", nil))
}

func TestReserve_ByLegacyID(t *testing.T) {
	e := newEnv(t)
	legacy := "64b7f0c2a1e4d3b2c1a09f8e"
	e.seedListing(t, "L1", func(l *model.Listing) { l.LegacyID = &legacy })

	res, err := e.reserve.Reserve(context.Background(), ReserveRequest{ListingID: legacy, UserID: "U1"})

	require.NoError(t, err)
	assert.Equal(t, "L1", res.Collection.ListingID)
}

func TestReserve_ExpiredListingConflicts(t *testing.T) {
	e := newEnv(t)
	past := repository.Now().Add(-time.Minute)
	e.seedListing(t, "L1", func(l *model.Listing) { l.AvailableUntil = &past })

	_, err := e.reserve.Reserve(context.Background(), u1())

	require.ErrorIs(t, err, ErrAlreadyReserved)
	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, model.ListingExpired, se.Detail["currentStatus"])
}

func TestReserve_ConcurrentSingleWinner(t *testing.T) {
	e := newEnv(t)
	e.seedListing(t, "L1", nil)

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, conflicted := 0, 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.reserve.Reserve(context.Background(), ReserveRequest{ListingID: "L1", UserID: string(rune('A' + i))})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrAlreadyReserved):
				conflicted++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, conflicted)
	assert.Equal(t, 1, e.count(t, "collections", nil))
}

func TestIssue_ByListingAndCollection(t *testing.T) {
	e := newEnv(t)
	e.seedListing(t, "L1", nil)
	res, err := e.reserve.Reserve(context.Background(), u1())
	require.NoError(t, err)

	byListing, err := e.tickets.Issue(context.Background(), IssueRequest{Ref: CollectionRef{Kind: RefListing, ID: "L1"}, UserID: "U1"})
	require.NoError(t, err)
	byCollection, err := e.tickets.Issue(context.Background(), IssueRequest{Ref: CollectionRef{Kind: RefCollection, ID: res.Collection.ID}})
	require.NoError(t, err)

	assert.Equal(t, res.Collection.ID, byListing.CollectionID)
	assert.Equal(t, res.Collection.ID, byCollection.CollectionID)
	assert.Nil(t, byCollection.UserID)
	assert.Regexp(t, `^tkt-`, byListing.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), byListing.ExpiresAt, time.Minute)

	list, err := e.tickets.Tickets(context.Background(), CollectionRef{Kind: RefListing, ID: "L1"})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = e.tickets.Issue(context.Background(), IssueRequest{Ref: CollectionRef{Kind: RefCollection, ID: "missing"}})
	assert.ErrorIs(t, err, ErrCollectionNotFound)
	_, err = e.tickets.Issue(context.Background(), IssueRequest{Ref: CollectionRef{Kind: RefListing}})
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestVerifyAndRedeem_FullScenario(t *testing.T) {
	e := newEnv(t)
	e.seedListing(t, "L1", nil)
	res, err := e.reserve.Reserve(context.Background(), u1())
	require.NoError(t, err)
	tk, err := e.tickets.Issue(context.Background(), IssueRequest{Ref: CollectionRef{Kind: RefCollection, ID: res.Collection.ID}, UserID: "U1"})
	require.NoError(t, err)

	r, err := e.tickets.VerifyAndRedeem(context.Background(), tk.Token, "scanner-7")
	require.NoError(t, err)

	require.NotNil(t, r.Ticket.UsedAt)
	require.NotNil(t, r.Collection)
	assert.Equal(t, model.CollectionCollected, r.Collection.Status)
	assert.Equal(t, model.MethodQRScan, r.Collection.CollectionMethod)
	assert.Equal(t, "scanner-7", r.Collection.CollectedBy)
	require.NotNil(t, r.Donation)
	assert.InDelta(t, 5, r.Donation.FoodKg, 1e-9)
	assert.InDelta(t, 12.5, r.Donation.CO2Saved, 1e-9)
	assert.EqualValues(t, 2500, r.Donation.WaterSaved)
	assert.Equal(t, 1, r.Donation.PeopleFed)

	l, err := e.listings.Get(context.Background(), "L1")
	require.NoError(t, err)
	assert.Equal(t, model.ListingCollected, l.Status)
	assert.Len(t, e.analytics.applied, 1)
	assert.Equal(t, 1, e.count(t, "outbox_events", dbx.HashExp{"dedup_key": "notification:collection-L1-donor"}))
	assert.Equal(t, 1, e.count(t, "outbox_events", dbx.HashExp{"dedup_key": "notification:collection-L1-collector"}))

	_, err = e.tickets.VerifyAndRedeem(context.Background(), tk.Token, "scanner-7")
	assert.ErrorIs(t, err, ErrTicketUsed)
	assert.Equal(t, 1, e.count(t, "donations", nil))
}

func TestVerifyAndRedeem_Rejections(t *testing.T) {
	e := newEnv(t)
	e.seedListing(t, "L1", nil)
	_, err := e.reserve.Reserve(context.Background(), u1())
	require.NoError(t, err)
	tk, err := e.tickets.Issue(context.Background(), IssueRequest{Ref: CollectionRef{Kind: RefListing, ID: "L1"}, Validity: time.Minute})
	require.NoError(t, err)

	_, err = e.tickets.VerifyAndRedeem(context.Background(), tk.Token+"00", "")
	assert.ErrorIs(t, err, ErrInvalidToken)

	forged, err := ticket.NewCodec("qr-secret").Encode(ticket.Payload{TicketID: "tkt-unknown", CollectionID: tk.CollectionID, ExpiresAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	_, err = e.tickets.VerifyAndRedeem(context.Background(), forged, "")
	assert.ErrorIs(t, err, ErrTicketNotFound)

	e.tickets.now = func() time.Time { return tk.ExpiresAt.Add(time.Second) }
	_, err = e.tickets.VerifyAndRedeem(context.Background(), tk.Token, "")
	assert.ErrorIs(t, err, ErrTicketExpired)
	assert.Equal(t, 0, e.count(t, "donations", nil))
}

func TestVerifyAndRedeem_ConcurrentScans(t *testing.T) {
	e := newEnv(t)
	e.seedListing(t, "L1", nil)
	_, err := e.reserve.Reserve(context.Background(), u1())
	require.NoError(t, err)
	tk, err := e.tickets.Issue(context.Background(), IssueRequest{Ref: CollectionRef{Kind: RefListing, ID: "L1"}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, used := 0, 0
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.tickets.VerifyAndRedeem(context.Background(), tk.Token, "scanner")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if errors.Is(err, ErrTicketUsed) {
				used++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 4, used)
	assert.Equal(t, 1, e.count(t, "donations", nil))
}

func TestFinalize_Idempotent(t *testing.T) {
	e := newEnv(t)
	e.seedListing(t, "L1", nil)
	res, err := e.reserve.Reserve(context.Background(), u1())
	require.NoError(t, err)

	first, err := e.settle.Finalize(context.Background(), res.Collection.ID, "", "")
	require.NoError(t, err)
	second, err := e.settle.Finalize(context.Background(), res.Collection.ID, "", "")
	require.NoError(t, err)

	assert.False(t, first.AlreadyCollected)
	assert.True(t, second.AlreadyCollected)
	require.NotNil(t, second.Donation)
	assert.Equal(t, first.Donation.ID, second.Donation.ID)
	assert.Equal(t, "U1", first.Collection.CollectedBy)
	assert.Equal(t, 1, e.count(t, "donations", nil))
	assert.Len(t, e.analytics.applied, 1)

	_, err = e.settle.Finalize(context.Background(), "missing", "", "")
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestFinalize_AnalyticsFailureQueuesRetry(t *testing.T) {
	e := newEnv(t)
	e.analytics.err = errors.New("redis down")
	e.seedListing(t, "L1", func(l *model.Listing) { l.Quantity = "20 servings" })
	res, err := e.reserve.Reserve(context.Background(), u1())
	require.NoError(t, err)

	out, err := e.settle.Finalize(context.Background(), res.Collection.ID, "scanner", model.MethodQRScan)
	require.NoError(t, err)

	require.NotNil(t, out.Donation)
	assert.InDelta(t, 2, out.Donation.FoodKg, 1e-9)
	assert.Equal(t, 1, e.count(t, "outbox_events", dbx.HashExp{"topic": outbox.TopicAnalytics, "dedup_key": "analytics:" + out.Donation.ID}))
}

func TestCollectDirect(t *testing.T) {
	e := newEnv(t)
	e.seedListing(t, "L1", nil)
	e.seedListing(t, "L2", nil)

	_, err := e.settle.CollectDirect(context.Background(), DirectCollectRequest{Ref: CollectionRef{Kind: RefListing, ID: "L2"}})
	assert.ErrorIs(t, err, ErrNotReserved)

	_, err = e.reserve.Reserve(context.Background(), u1())
	require.NoError(t, err)
	out, err := e.settle.CollectDirect(context.Background(), DirectCollectRequest{Ref: CollectionRef{Kind: RefListing, ID: "L1"}, CollectedBy: "donor-1"})
	require.NoError(t, err)
	assert.Equal(t, model.MethodManual, out.Collection.CollectionMethod)
	assert.NotNil(t, out.Donation)

	_, err = e.settle.CollectDirect(context.Background(), DirectCollectRequest{Ref: CollectionRef{Kind: RefListing, ID: "L1"}})
	assert.ErrorIs(t, err, ErrAlreadyCollected)
	_, err = e.settle.CollectDirect(context.Background(), DirectCollectRequest{Ref: CollectionRef{Kind: RefCollection, ID: out.Collection.ID}})
	assert.ErrorIs(t, err, ErrAlreadyCollected)
}

func TestCollectDirect_DerivesMissingCollection(t *testing.T) {
	e := newEnv(t)
	now := repository.Now()
	e.seedListing(t, "L1", func(l *model.Listing) {
		l.Status = model.ListingReserved
		l.ReservedBy = "U9"
		l.ReservedAt = &now
	})

	out, err := e.settle.CollectDirect(context.Background(), DirectCollectRequest{Ref: CollectionRef{Kind: RefListing, ID: "L1"}})

	require.NoError(t, err)
	assert.Equal(t, "U9", out.Collection.RecipientID)
	assert.Equal(t, model.CollectionCollected, out.Collection.Status)
	assert.Equal(t, 1, e.count(t, "collections", nil))
}
