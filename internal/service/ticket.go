package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sumit010804/food-share-sub000/internal/metrics"
	"github.com/sumit010804/food-share-sub000/internal/model"
	"github.com/sumit010804/food-share-sub000/internal/repository"
	"github.com/sumit010804/food-share-sub000/internal/ticket"
)

// RefKind says which id a CollectionRef carries.
type RefKind string

const (
	RefCollection RefKind = "collection"
	RefListing    RefKind = "listing"
)

// CollectionRef addresses a collection either directly or through the
// listing it belongs to.  The kind is always explicit; ids are never
// guessed at.
type CollectionRef struct {
	Kind RefKind
	ID   string
}

// IssueRequest asks for a new ticket.  A zero Validity uses the service
// default; UserID is optional.
type IssueRequest struct {
	Ref      CollectionRef
	UserID   string
	Validity time.Duration
}

// Redemption is the outcome of a successful scan.  Donation is nil when
// settlement could not record one; the ticket stays used regardless.
type Redemption struct {
	Ticket     *model.Ticket
	Collection *model.Collection
	Donation   *model.Donation
}

// TicketService issues and redeems single-use handoff tickets.
type TicketService struct {
	listings    *repository.ListingRepo
	collections *repository.CollectionRepo
	tickets     *repository.TicketRepo
	codec       *ticket.Codec
	settlement  *SettlementService
	validity    time.Duration
	log         *slog.Logger
	now         func() time.Time
}

// NewTicketService wires the ticket workflow.
func NewTicketService(listings *repository.ListingRepo, collections *repository.CollectionRepo, tickets *repository.TicketRepo,
	codec *ticket.Codec, settlement *SettlementService, validity time.Duration, log *slog.Logger) *TicketService {
	if validity <= 0 {
		validity = time.Hour
	}
	return &TicketService{
		listings:    listings,
		collections: collections,
		tickets:     tickets,
		codec:       codec,
		settlement:  settlement,
		validity:    validity,
		log:         log,
		now:         repository.Now,
	}
}

// resolveCollection loads the collection addressed by ref.
func (s *TicketService) resolveCollection(ctx context.Context, ref CollectionRef) (*model.Collection, error) {
	id := strings.TrimSpace(ref.ID)
	if id == "" {
		return nil, validation("collectionId or listingId is required")
	}
	switch ref.Kind {
	case RefCollection:
		c, err := s.collections.Get(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCollectionNotFound
		}
		if err != nil {
			return nil, internal("load collection", err)
		}
		return c, nil
	case RefListing:
		key, err := s.listings.ResolveKey(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrListingNotFound
		}
		if err != nil {
			return nil, internal("resolve listing", err)
		}
		c, err := s.collections.FindByListing(ctx, key.Forms())
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCollectionNotFound
		}
		if err != nil {
			return nil, internal("load collection", err)
		}
		return c, nil
	}
	return nil, validation("unknown reference kind " + string(ref.Kind))
}

// Issue mints a signed ticket for the referenced collection.
func (s *TicketService) Issue(ctx context.Context, req IssueRequest) (*model.Ticket, error) {
	c, err := s.resolveCollection(ctx, req.Ref)
	if err != nil {
		return nil, err
	}
	validity := req.Validity
	if validity <= 0 {
		validity = s.validity
	}
	now := s.now()
	t := &model.Ticket{
		ID:           "tkt-" + uuid.NewString(),
		CollectionID: c.ID,
		ExpiresAt:    now.Add(validity).Truncate(time.Millisecond),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if u := strings.TrimSpace(req.UserID); u != "" {
		t.UserID = &u
	}
	t.Token, err = s.codec.Encode(ticket.Payload{
		TicketID:     t.ID,
		CollectionID: t.CollectionID,
		UserID:       t.UserID,
		ExpiresAt:    t.ExpiresAt,
	})
	if err != nil {
		return nil, internal("sign ticket", err)
	}
	if err := s.tickets.Create(ctx, t); err != nil {
		return nil, internal("store ticket", err)
	}
	metrics.TicketIssued()
	s.log.Info("ticket issued", "ticket_id", t.ID, "collection_id", c.ID, "expires_at", t.ExpiresAt)
	return t, nil
}

// Tickets lists the tickets of the referenced collection, newest first.
func (s *TicketService) Tickets(ctx context.Context, ref CollectionRef) ([]model.Ticket, error) {
	c, err := s.resolveCollection(ctx, ref)
	if err != nil {
		return nil, err
	}
	out, err := s.tickets.ListForCollection(ctx, c.ID, 20)
	if err != nil {
		return nil, internal("list tickets", err)
	}
	return out, nil
}

// VerifyAndRedeem checks a scanned token and consumes its ticket.  The
// checks run in a fixed order: signature, expiry, existence, prior use.
// Only the caller whose conditional update succeeds proceeds to
// settlement; everyone else gets ErrTicketUsed.
func (s *TicketService) VerifyAndRedeem(ctx context.Context, token, scannerID string) (*Redemption, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		metrics.Redemption("invalid")
		return nil, validation("token is required")
	}
	p, err := s.codec.Decode(token)
	if err != nil {
		metrics.Redemption("invalid")
		return nil, ErrInvalidToken
	}
	now := s.now()
	if now.After(p.ExpiresAt) {
		metrics.Redemption("expired")
		return nil, ErrTicketExpired.with(map[string]any{"expiresAt": p.ExpiresAt})
	}

	t, err := s.tickets.Find(ctx, p.TicketID, token)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.Redemption("not_found")
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, internal("load ticket", err)
	}
	if t.UsedAt != nil {
		metrics.Redemption("used")
		return nil, ErrTicketUsed.with(map[string]any{"usedAt": *t.UsedAt})
	}

	scannerID = strings.TrimSpace(scannerID)
	n, err := s.tickets.RedeemIf(ctx, t.ID, token, scannerID, now)
	if err != nil {
		return nil, internal("redeem ticket", err)
	}
	if n == 0 {
		metrics.Redemption("used")
		if again, err := s.tickets.Find(ctx, t.ID, token); err == nil && again.UsedAt != nil {
			return nil, ErrTicketUsed.with(map[string]any{"usedAt": *again.UsedAt})
		}
		return nil, ErrTicketUsed
	}
	metrics.Redemption("redeemed")

	redeemed, err := s.tickets.Find(ctx, t.ID, token)
	if err != nil {
		s.log.Warn("reload redeemed ticket failed", "ticket_id", t.ID, "err", err)
		t.UsedAt = &now
		redeemed = t
	}
	out := &Redemption{Ticket: redeemed}

	collectedBy := scannerID
	settled, err := s.settlement.Finalize(ctx, t.CollectionID, collectedBy, model.MethodQRScan)
	if err != nil {
		s.log.Error("settlement after redemption failed", "ticket_id", t.ID, "collection_id", t.CollectionID, "err", err)
		return out, nil
	}
	out.Collection = settled.Collection
	out.Donation = settled.Donation
	return out, nil
}
