package handler

import (
    "log/slog"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/sumit010804/food-share-sub000/internal/service"
)

// maxValidityMinutes caps a requested ticket lifetime at one week.
const maxValidityMinutes = 7 * 24 * 60

// TicketHandler serves ticket issuing, lookup and scanning.
type TicketHandler struct {
    Tickets *service.TicketService
    Log     *slog.Logger
}

// NewTicketHandler constructs a TicketHandler.
func NewTicketHandler(tickets *service.TicketService, log *slog.Logger) *TicketHandler {
    if tickets == nil {
        panic("nil service passed to NewTicketHandler")
    }
    return &TicketHandler{Tickets: tickets, Log: log}
}

type issueRequest struct {
    CollectionID    string `json:"collectionId"`
    ListingID       string `json:"listingId"`
    UserID          string `json:"userId"`
    ValidityMinutes int    `json:"validityMinutes"`
}

// Issue handles POST /v1/tickets.
func (h *TicketHandler) Issue(c echo.Context) error {
    var body issueRequest
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    ref, ok := refFrom(strings.TrimSpace(body.CollectionID), strings.TrimSpace(body.ListingID))
    if !ok {
        return badRequest(c, "collectionId or listingId is required")
    }
    if body.ValidityMinutes < 0 || body.ValidityMinutes > maxValidityMinutes {
        return badRequest(c, "validityMinutes must be between 1 and 10080")
    }
    ctx, cancel := withTimeout(c)
    defer cancel()
    t, err := h.Tickets.Issue(ctx, service.IssueRequest{
        Ref:      ref,
        UserID:   firstNonEmpty(body.UserID, subject(c)),
        Validity: time.Duration(body.ValidityMinutes) * time.Minute,
    })
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{"ticket": echo.Map{
        "id":           t.ID,
        "collectionId": t.CollectionID,
        "token":        t.Token,
        "expiresAt":    t.ExpiresAt,
    }})
}

// List handles GET /v1/tickets?collectionId= or ?listingId=.
func (h *TicketHandler) List(c echo.Context) error {
    ref, ok := refFrom(strings.TrimSpace(c.QueryParam("collectionId")), strings.TrimSpace(c.QueryParam("listingId")))
    if !ok {
        return badRequest(c, "collectionId or listingId is required")
    }
    ctx, cancel := withTimeout(c)
    defer cancel()
    tickets, err := h.Tickets.Tickets(ctx, ref)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"tickets": tickets})
}

type scanRequest struct {
    Token     string `json:"token"`
    ScannerID string `json:"scannerId"`
}

// Scan handles POST /v1/tickets/scan.  A good ticket is consumed and the
// handoff settled.  Reusing a ticket is a 409.
func (h *TicketHandler) Scan(c echo.Context) error {
    var body scanRequest
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    ctx, cancel := withTimeout(c)
    defer cancel()
    r, err := h.Tickets.VerifyAndRedeem(ctx, body.Token, firstNonEmpty(body.ScannerID, subject(c)))
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "message":      "Ticket verified",
        "ticketId":     r.Ticket.ID,
        "collectionId": r.Ticket.CollectionID,
        "usedAt":       r.Ticket.UsedAt,
        "collection":   r.Collection,
        "donation":     r.Donation,
    })
}
