package repository

import (
	"context"
	"time"

	"github.com/pocketbase/dbx"

	"github.com/sumit010804/food-share-sub000/internal/model"
)

// TicketRepo provides data access to the tickets table.  Tickets are never
// deleted; redemption only sets used_at.
type TicketRepo struct {
	db *dbx.DB
}

// NewTicketRepo returns a new TicketRepo bound to db.
func NewTicketRepo(db *dbx.DB) *TicketRepo { return &TicketRepo{db: db} }

// Create inserts an unused ticket.
func (r *TicketRepo) Create(ctx context.Context, t *model.Ticket) error {
	_, err := r.db.Insert("tickets", dbx.Params{
		"id":            t.ID,
		"collection_id": t.CollectionID,
		"token":         t.Token,
		"user_id":       t.UserID,
		"expires_at":    t.ExpiresAt,
		"created_at":    t.CreatedAt,
		"updated_at":    t.UpdatedAt,
	}).WithContext(ctx).Execute()
	return err
}

// Find returns the ticket with the given id whose stored token is token.
func (r *TicketRepo) Find(ctx context.Context, id, token string) (*model.Ticket, error) {
	var t model.Ticket
	err := r.db.Select().
		From("tickets").
		Where(dbx.HashExp{"id": id, "token": token}).
		WithContext(ctx).
		One(&t)
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// RedeemIf marks the ticket used by scanner, but only if nobody has used
// it yet.  Exactly one concurrent caller sees 1.
func (r *TicketRepo) RedeemIf(ctx context.Context, id, token, scanner string, now time.Time) (int64, error) {
	var by interface{}
	if scanner != "" {
		by = scanner
	}
	return updateIf(ctx, r.db, "tickets", dbx.Params{
		"used_at":         now,
		"used_by_scanner": by,
		"updated_at":      now,
	}, dbx.HashExp{"id": id, "token": token, "used_at": nil})
}

// ListForCollection returns the tickets issued for a collection, newest
// first.
func (r *TicketRepo) ListForCollection(ctx context.Context, collectionID string, limit int64) ([]model.Ticket, error) {
	out := []model.Ticket{}
	err := r.db.Select().
		From("tickets").
		Where(dbx.HashExp{"collection_id": collectionID}).
		OrderBy("created_at DESC").
		Limit(limit).
		WithContext(ctx).
		All(&out)
	return out, err
}
