package handler // declare the package name; contains HTTP handlers

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/pocketbase/dbx"
)

// Health returns a health-check endpoint used by load balancers and
// monitoring systems.  It answers "ok" when the database responds to a
// ping within two seconds and 503 otherwise.
func Health(db *dbx.DB) echo.HandlerFunc {
    return func(c echo.Context) error {
        ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
        defer cancel()
        if err := db.DB().PingContext(ctx); err != nil {
            return c.String(http.StatusServiceUnavailable, "database unavailable")
        }
        return c.String(http.StatusOK, "ok")
    }
}
