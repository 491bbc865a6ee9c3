package repository

import (
	"context"

	"github.com/pocketbase/dbx"

	"github.com/sumit010804/food-share-sub000/internal/model"
)

// NotificationRepo writes and reads the per-user notification feed.
type NotificationRepo struct {
	db *dbx.DB
}

// NewNotificationRepo returns a new NotificationRepo bound to db.
func NewNotificationRepo(db *dbx.DB) *NotificationRepo { return &NotificationRepo{db: db} }

// InsertIfAbsent stores n unless a notification with the same id exists,
// which makes redelivered broker messages harmless.
func (r *NotificationRepo) InsertIfAbsent(ctx context.Context, n *model.Notification) (bool, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = Now()
	}
	_, err := r.db.Insert("notifications", dbx.Params{
		"id":                n.ID,
		"user_id":           n.UserID,
		"type":              n.Type,
		"title":             n.Title,
		"message":           n.Message,
		"listing_id":        n.ListingID,
		"collection_method": n.CollectionMethod,
		"is_read":           n.IsRead,
		"created_at":        n.CreatedAt,
	}).WithContext(ctx).Execute()
	if err != nil {
		if isDuplicateKey(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListForUser returns the user's feed, newest first.
func (r *NotificationRepo) ListForUser(ctx context.Context, userID string, limit int64) ([]model.Notification, error) {
	out := []model.Notification{}
	err := r.db.Select().
		From("notifications").
		Where(dbx.HashExp{"user_id": userID}).
		OrderBy("created_at DESC").
		Limit(limit).
		WithContext(ctx).
		All(&out)
	return out, err
}
