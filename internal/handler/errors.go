package handler

import (
    "context"
    "errors"
    "log/slog"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/sumit010804/food-share-sub000/internal/service"
)

// requestTimeout bounds every store round trip made on behalf of a request.
const requestTimeout = 5 * time.Second

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
    return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// statusFor maps a service error kind to an HTTP status code.
func statusFor(k service.Kind) int {
    switch k {
    case service.KindValidation:
        return http.StatusBadRequest
    case service.KindNotFound:
        return http.StatusNotFound
    case service.KindForbidden:
        return http.StatusForbidden
    case service.KindConflict:
        return http.StatusConflict
    }
    return http.StatusInternalServerError
}

// writeError renders err as {"message": ...} plus any detail fields.
// Internal errors are logged and never echoed to the client.
func writeError(c echo.Context, log *slog.Logger, err error) error {
    var se *service.Error
    if !errors.As(err, &se) || se.Kind == service.KindInternal {
        log.Error("request failed", "method", c.Request().Method, "path", c.Path(), "err", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Internal error"})
    }
    body := echo.Map{"message": se.Message, "code": se.Code}
    for k, v := range se.Detail {
        body[k] = v
    }
    return c.JSON(statusFor(se.Kind), body)
}

func badRequest(c echo.Context, msg string) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"message": msg})
}

// subject returns the authenticated user id placed in the context by the
// bearer-token middleware, or "" for anonymous requests.
func subject(c echo.Context) string {
    if s, ok := c.Get("user_id").(string); ok {
        return s
    }
    return ""
}

// firstNonEmpty returns the first argument that is not empty.
func firstNonEmpty(vals ...string) string {
    for _, v := range vals {
        if v != "" {
            return v
        }
    }
    return ""
}
