package handler

import (
    "errors"
    "log/slog"
    "net/http"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"

    "github.com/sumit010804/food-share-sub000/internal/model"
    "github.com/sumit010804/food-share-sub000/internal/repository"
)

// ListingHandler exposes the thin listing endpoints the reservation flow
// depends on: create, list and fetch.
type ListingHandler struct {
    Listings *repository.ListingRepo
    Log      *slog.Logger
}

// NewListingHandler constructs a ListingHandler.
func NewListingHandler(listings *repository.ListingRepo, log *slog.Logger) *ListingHandler {
    if listings == nil {
        panic("nil repository passed to NewListingHandler")
    }
    return &ListingHandler{Listings: listings, Log: log}
}

type createListingRequest struct {
    Title          string     `json:"title"`
    Quantity       string     `json:"quantity"`
    Location       string     `json:"location"`
    OwnerID        string     `json:"ownerId"`
    OwnerName      string     `json:"ownerName"`
    OwnerEmail     string     `json:"ownerEmail"`
    AvailableUntil *time.Time `json:"availableUntil"`
    LegacyID       string     `json:"legacyId"`
}

// Create handles POST /v1/listings.  ownerId defaults to the bearer token
// subject when one is present.
func (h *ListingHandler) Create(c echo.Context) error {
    var body createListingRequest
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    body.Title = strings.TrimSpace(body.Title)
    body.OwnerID = firstNonEmpty(strings.TrimSpace(body.OwnerID), subject(c))
    if body.Title == "" || body.OwnerID == "" {
        return badRequest(c, "title and ownerId are required")
    }
    l := &model.Listing{
        ID:         uuid.NewString(),
        Title:      body.Title,
        Quantity:   strings.TrimSpace(body.Quantity),
        Location:   strings.TrimSpace(body.Location),
        OwnerID:    body.OwnerID,
        OwnerName:  strings.TrimSpace(body.OwnerName),
        OwnerEmail: strings.TrimSpace(body.OwnerEmail),
    }
    if body.AvailableUntil != nil {
        until := body.AvailableUntil.UTC().Truncate(time.Millisecond)
        l.AvailableUntil = &until
    }
    if legacy := strings.TrimSpace(body.LegacyID); legacy != "" {
        l.LegacyID = &legacy
    }

    ctx, cancel := withTimeout(c)
    defer cancel()
    if err := h.Listings.Create(ctx, l); err != nil {
        h.Log.Error("create listing failed", "err", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Internal error"})
    }
    return c.JSON(http.StatusCreated, echo.Map{"listing": l})
}

// List handles GET /v1/listings with an optional ?status= filter.
func (h *ListingHandler) List(c echo.Context) error {
    status := strings.ToLower(strings.TrimSpace(c.QueryParam("status")))
    switch status {
    case "", model.ListingAvailable, model.ListingReserved, model.ListingCollected, model.ListingExpired:
    default:
        return badRequest(c, "invalid status filter")
    }
    ctx, cancel := withTimeout(c)
    defer cancel()
    listings, err := h.Listings.List(ctx, status)
    if err != nil {
        h.Log.Error("list listings failed", "err", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Internal error"})
    }
    return c.JSON(http.StatusOK, echo.Map{"listings": listings})
}

// Get handles GET /v1/listings/:id; the id may be canonical or legacy.
func (h *ListingHandler) Get(c echo.Context) error {
    ctx, cancel := withTimeout(c)
    defer cancel()
    l, err := h.Listings.Get(ctx, c.Param("id"))
    if errors.Is(err, repository.ErrNotFound) {
        return c.JSON(http.StatusNotFound, echo.Map{"message": "Food listing not found"})
    }
    if err != nil {
        h.Log.Error("get listing failed", "err", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Internal error"})
    }
    return c.JSON(http.StatusOK, echo.Map{"listing": l})
}
