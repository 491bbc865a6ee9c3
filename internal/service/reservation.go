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
)

// ReserveRequest identifies the listing and the collector claiming it.
// ListingID may be the canonical or the legacy id.
type ReserveRequest struct {
	ListingID string
	UserID    string
	UserName  string
	UserEmail string
}

// Reservation is the result of a successful Reserve.
type Reservation struct {
	Listing    *model.Listing
	Collection *model.Collection
	// Repeat is true when the requester already held the reservation.
	Repeat bool
}

// reservationContext is built once per request and passed by value to the
// steps that need it, so every step sees the same key, requester and clock.
type reservationContext struct {
	key       repository.ListingKey
	listing   model.Listing
	requester repository.Holder
	now       time.Time
}

// collectionDraft is the collection a reservation creates when none exists.
func (rc reservationContext) collectionDraft() *model.Collection {
	now := rc.now
	reservedAt := now
	if rc.listing.ReservedAt != nil {
		reservedAt = *rc.listing.ReservedAt
	}
	return &model.Collection{
		ID:             uuid.NewString(),
		ListingID:      rc.key.ID,
		ListingTitle:   rc.listing.Title,
		DonorID:        rc.listing.OwnerID,
		DonorName:      rc.listing.OwnerName,
		RecipientID:    rc.requester.ID,
		RecipientName:  rc.requester.Name,
		RecipientEmail: rc.requester.Email,
		Quantity:       rc.listing.Quantity,
		Location:       rc.listing.Location,
		Status:         model.CollectionReserved,
		ReservedAt:     &reservedAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ReservationService claims listings for collectors.
type ReservationService struct {
	listings    *repository.ListingRepo
	collections *repository.CollectionRepo
	notifier    *Notifier
	log         *slog.Logger
}

// NewReservationService wires the reservation workflow.
func NewReservationService(listings *repository.ListingRepo, collections *repository.CollectionRepo, notifier *Notifier, log *slog.Logger) *ReservationService {
	return &ReservationService{listings: listings, collections: collections, notifier: notifier, log: log}
}

// Reserve gives the requester the exclusive reservation of a listing and
// makes sure exactly one collection record exists for it.  Retrying a
// reservation the requester already holds succeeds without side effects.
func (s *ReservationService) Reserve(ctx context.Context, req ReserveRequest) (*Reservation, error) {
	req.ListingID = strings.TrimSpace(req.ListingID)
	req.UserID = strings.TrimSpace(req.UserID)
	if req.ListingID == "" || req.UserID == "" {
		metrics.Reservation("invalid")
		return nil, validation("listingId and userId are required")
	}

	key, err := s.listings.ResolveKey(ctx, req.ListingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.Reservation("not_found")
			return nil, ErrListingNotFound
		}
		return nil, internal("resolve listing", err)
	}
	listing, err := s.listings.Get(ctx, key.ID)
	if err != nil {
		return nil, internal("load listing", err)
	}

	requester := repository.Holder{ID: req.UserID, Name: strings.TrimSpace(req.UserName), Email: strings.TrimSpace(req.UserEmail)}
	if isOwner(listing, requester) {
		metrics.Reservation("own_listing")
		return nil, ErrOwnListing
	}

	now := repository.Now()
	won, err := s.listings.ReserveIf(ctx, key, requester, now)
	if err != nil {
		return nil, internal("reserve listing", err)
	}

	current, err := s.listings.Get(ctx, key.ID)
	if err != nil {
		return nil, internal("reload listing", err)
	}
	repeat := false
	if won == 0 {
		if current.Status != model.ListingReserved || current.ReservedBy != requester.ID {
			metrics.Reservation("conflict")
			return nil, ErrAlreadyReserved.with(map[string]any{
				"currentStatus":   current.Status,
				"reservedBy":      current.ReservedBy,
				"reservedByEmail": current.ReservedByEmail,
			})
		}
		repeat = true
	}

	rc := reservationContext{key: key, listing: *current, requester: requester, now: now}
	collection, _, err := s.collections.EnsureForListing(ctx, rc.key.Forms(), rc.collectionDraft())
	if err != nil {
		return nil, internal("ensure collection", err)
	}

	if !repeat {
		s.notifier.Reserved(ctx, current, collection)
		s.log.Info("listing reserved", "listing_id", key.ID, "user_id", requester.ID, "collection_id", collection.ID)
		metrics.Reservation("reserved")
	} else {
		metrics.Reservation("repeat")
	}
	return &Reservation{Listing: current, Collection: collection, Repeat: repeat}, nil
}

// isOwner compares by id and, when both sides have one, by e-mail.
func isOwner(l *model.Listing, h repository.Holder) bool {
	if l.OwnerID != "" && l.OwnerID == h.ID {
		return true
	}
	owner := strings.ToLower(strings.TrimSpace(l.OwnerEmail))
	return owner != "" && owner == strings.ToLower(h.Email)
}
