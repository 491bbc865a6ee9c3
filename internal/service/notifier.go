package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sumit010804/food-share-sub000/internal/model"
	"github.com/sumit010804/food-share-sub000/internal/outbox"
	"github.com/sumit010804/food-share-sub000/internal/queue"
)

// Notifier turns workflow milestones into notification events in the
// outbox.  Failures are logged and never reach the caller.
type Notifier struct {
	outbox outbox.Appender
	log    *slog.Logger
}

// NewNotifier returns a Notifier writing to store.
func NewNotifier(store outbox.Appender, log *slog.Logger) *Notifier {
	return &Notifier{outbox: store, log: log}
}

// Reserved tells the owner that l was reserved by the holder of c.
func (n *Notifier) Reserved(ctx context.Context, l *model.Listing, c *model.Collection) {
	n.enqueue(ctx, queue.NotificationEvent{
		ID:       fmt.Sprintf("reservation-%s-donor", l.ID),
		Type:     model.NotifyReserved,
		UserID:   l.OwnerID,
		Title:    "Item reserved",
		Message:  fmt.Sprintf("%s reserved %q", displayName(c.RecipientName, c.RecipientEmail), l.Title),
		Metadata: queue.NotificationMetadata{ListingID: l.ID},
	})
}

// Collected tells both parties that the handoff of c completed.
func (n *Notifier) Collected(ctx context.Context, c *model.Collection, method string) {
	n.enqueue(ctx, queue.NotificationEvent{
		ID:       fmt.Sprintf("collection-%s-donor", c.ListingID),
		Type:     model.NotifyItemCollected,
		UserID:   c.DonorID,
		Title:    "Item collected",
		Message:  fmt.Sprintf("%q was collected by %s", c.ListingTitle, displayName(c.RecipientName, c.RecipientEmail)),
		Metadata: queue.NotificationMetadata{ListingID: c.ListingID, CollectionMethod: method},
	})
	n.enqueue(ctx, queue.NotificationEvent{
		ID:       fmt.Sprintf("collection-%s-collector", c.ListingID),
		Type:     model.NotifyCollectionConfirmed,
		UserID:   c.RecipientID,
		Title:    "Collection confirmed",
		Message:  fmt.Sprintf("You collected %q. Thanks for reducing food waste!", c.ListingTitle),
		Metadata: queue.NotificationMetadata{ListingID: c.ListingID, CollectionMethod: method},
	})
}

func (n *Notifier) enqueue(ctx context.Context, ev queue.NotificationEvent) {
	if n == nil || n.outbox == nil || ev.UserID == "" {
		return
	}
	if _, err := outbox.Enqueue(ctx, n.outbox, outbox.TopicNotification, "notification:"+ev.ID, ev); err != nil {
		n.log.Warn("notification enqueue failed", "id", ev.ID, "err", err)
	}
}

func displayName(name, email string) string {
	if name != "" {
		return name
	}
	if email != "" {
		return email
	}
	return "A collector"
}
