package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/pocketbase/dbx"

	"github.com/sumit010804/food-share-sub000/internal/handler"
)

// Handlers bundles the endpoint groups mounted under /v1.
type Handlers struct {
	Listings     *handler.ListingHandler
	Reservations *handler.ReservationHandler
	Tickets      *handler.TicketHandler
	Feed         *handler.FeedHandler
}

// Guards are the per-route middleware chains.  Identity wraps the whole
// /v1 group; Limit guards writes.
type Guards struct {
	Identity echo.MiddlewareFunc
	Limit    echo.MiddlewareFunc
	Cache    echo.MiddlewareFunc
}

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, db *dbx.DB) {
	// Load balancers poll this; it fails when the database is unreachable.
	e.GET("/healthz", handler.Health(db))
}

// RegisterAPI mounts the food-sharing API.  Reads are open; writes pass
// through the rate limiter.
func RegisterAPI(e *echo.Echo, h Handlers, g Guards) {
	v1 := e.Group("/v1", g.Identity)

	v1.GET("/listings", h.Listings.List)
	v1.GET("/listings/:id", h.Listings.Get)
	v1.POST("/listings", h.Listings.Create, g.Limit)

	v1.POST("/reserve", h.Reservations.Reserve, g.Limit)
	v1.POST("/collect", h.Reservations.Collect, g.Limit)

	// Tickets: issue a handoff code, list a collection's codes, redeem one.
	v1.POST("/tickets", h.Tickets.Issue, g.Limit)
	v1.GET("/tickets", h.Tickets.List)
	v1.POST("/tickets/scan", h.Tickets.Scan, g.Limit)

	v1.GET("/analytics", h.Feed.Summary, g.Cache)
	v1.GET("/notifications", h.Feed.Notifications)
}
