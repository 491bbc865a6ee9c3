package middleware

import "github.com/labstack/echo/v4"

// userID returns the subject stored by BearerIdentity, or "anon" for
// unauthenticated requests.
func userID(c echo.Context) string {
    if s, ok := c.Get("user_id").(string); ok && s != "" {
        return s
    }
    return "anon"
}
