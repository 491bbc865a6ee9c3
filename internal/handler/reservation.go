package handler

import (
    "log/slog"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/sumit010804/food-share-sub000/internal/service"
)

// ReservationHandler serves the reserve and direct-collect endpoints.
type ReservationHandler struct {
    Reservations *service.ReservationService
    Settlement   *service.SettlementService
    Log          *slog.Logger
}

// NewReservationHandler constructs a ReservationHandler.
func NewReservationHandler(reservations *service.ReservationService, settlement *service.SettlementService, log *slog.Logger) *ReservationHandler {
    if reservations == nil || settlement == nil {
        panic("nil service passed to NewReservationHandler")
    }
    return &ReservationHandler{Reservations: reservations, Settlement: settlement, Log: log}
}

type reserveRequest struct {
    ListingID string `json:"listingId"`
    UserID    string `json:"userId"`
    UserName  string `json:"userName"`
    UserEmail string `json:"userEmail"`
}

// Reserve handles POST /v1/reserve.  It answers 200 with the reserved
// listing and its collection; a listing someone else holds is a 409
// carrying the current holder.
func (h *ReservationHandler) Reserve(c echo.Context) error {
    var body reserveRequest
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    ctx, cancel := withTimeout(c)
    defer cancel()
    res, err := h.Reservations.Reserve(ctx, service.ReserveRequest{
        ListingID: body.ListingID,
        UserID:    firstNonEmpty(body.UserID, subject(c)),
        UserName:  body.UserName,
        UserEmail: body.UserEmail,
    })
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "message":    "Food item reserved successfully",
        "listing":    res.Listing,
        "collection": res.Collection,
    })
}

type collectRequest struct {
    ListingID        string `json:"listingId"`
    CollectionID     string `json:"collectionId"`
    CollectedBy      string `json:"collectedBy"`
    CollectionMethod string `json:"collectionMethod"`
}

// Collect handles POST /v1/collect, the manual handoff confirmation that
// does not go through a ticket scan.
func (h *ReservationHandler) Collect(c echo.Context) error {
    var body collectRequest
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    ref, ok := refFrom(body.CollectionID, body.ListingID)
    if !ok {
        return badRequest(c, "collectionId or listingId is required")
    }
    ctx, cancel := withTimeout(c)
    defer cancel()
    out, err := h.Settlement.CollectDirect(ctx, service.DirectCollectRequest{
        Ref:         ref,
        CollectedBy: firstNonEmpty(body.CollectedBy, subject(c)),
        Method:      body.CollectionMethod,
    })
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "message":    "Item marked as collected",
        "collection": out.Collection,
        "donation":   out.Donation,
    })
}

// refFrom builds an explicit collection reference.  A collection id wins
// when both are supplied.
func refFrom(collectionID, listingID string) (service.CollectionRef, bool) {
    switch {
    case collectionID != "":
        return service.CollectionRef{Kind: service.RefCollection, ID: collectionID}, true
    case listingID != "":
        return service.CollectionRef{Kind: service.RefListing, ID: listingID}, true
    }
    return service.CollectionRef{}, false
}
