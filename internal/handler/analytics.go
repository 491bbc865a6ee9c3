package handler

import (
    "log/slog"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/sumit010804/food-share-sub000/internal/analytics"
    "github.com/sumit010804/food-share-sub000/internal/repository"
)

// FeedHandler serves the read side: the analytics summary and a user's
// notification feed.
type FeedHandler struct {
    Analytics *analytics.Aggregate
    Feed      *repository.NotificationRepo
    Log       *slog.Logger
}

// NewFeedHandler constructs a FeedHandler.  agg may be nil when Redis is
// unavailable; the summary endpoint then answers 503.
func NewFeedHandler(agg *analytics.Aggregate, notifications *repository.NotificationRepo, log *slog.Logger) *FeedHandler {
    return &FeedHandler{Analytics: agg, Feed: notifications, Log: log}
}

// Summary handles GET /v1/analytics.
func (h *FeedHandler) Summary(c echo.Context) error {
    if h.Analytics == nil {
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"message": "analytics unavailable"})
    }
    ctx, cancel := withTimeout(c)
    defer cancel()
    s, err := h.Analytics.Summary(ctx)
    if err != nil {
        h.Log.Error("analytics summary failed", "err", err)
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"message": "analytics unavailable"})
    }
    return c.JSON(http.StatusOK, s)
}

// Notifications handles GET /v1/notifications?userId=; the bearer subject
// is used when no userId is given.
func (h *FeedHandler) Notifications(c echo.Context) error {
    userID := firstNonEmpty(strings.TrimSpace(c.QueryParam("userId")), subject(c))
    if userID == "" {
        return badRequest(c, "userId is required")
    }
    ctx, cancel := withTimeout(c)
    defer cancel()
    feed, err := h.Feed.ListForUser(ctx, userID, 50)
    if err != nil {
        h.Log.Error("list notifications failed", "err", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Internal error"})
    }
    return c.JSON(http.StatusOK, echo.Map{"notifications": feed})
}
