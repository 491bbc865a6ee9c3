// Package queue defines message payloads exchanged over the message broker
// together with the publisher and consumer for the notification queue.
package queue

import "github.com/sumit010804/food-share-sub000/internal/model"

// NotificationEvent asks the feed writer to show a message to one user.
// ID is deterministic for a given listing and recipient role, so a message
// delivered twice lands on the same feed row.
type NotificationEvent struct {
    ID       string               `json:"id"`
    Type     string               `json:"type"`
    UserID   string               `json:"userId"`
    Title    string               `json:"title"`
    Message  string               `json:"message"`
    Metadata NotificationMetadata `json:"metadata"`
}

// NotificationMetadata carries the references a client needs to deep-link
// from a feed entry.
type NotificationMetadata struct {
    ListingID        string `json:"listingId"`
    CollectionMethod string `json:"collectionMethod,omitempty"`
}

// Notification converts the event into the feed row written by the consumer.
func (e NotificationEvent) Notification() *model.Notification {
    return &model.Notification{
        ID:               e.ID,
        UserID:           e.UserID,
        Type:             e.Type,
        Title:            e.Title,
        Message:          e.Message,
        ListingID:        e.Metadata.ListingID,
        CollectionMethod: e.Metadata.CollectionMethod,
    }
}
