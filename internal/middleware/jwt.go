package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http" // HTTP status codes for responses
    "strings"  // string utilities for prefix checking and trimming

    "github.com/golang-jwt/jwt/v5" // JWT library for parsing and validating tokens
    "github.com/labstack/echo/v4"  // Echo framework used for defining middleware and handlers
)

// BearerIdentity returns an Echo middleware that reads an optional Bearer
// token and, when it is valid, stores its subject under "user_id" so that
// handlers can default the acting user from it.  Requests without an
// Authorization header pass through anonymously; a header carrying a bad
// token is rejected with 401.  An empty secret disables the middleware.
func BearerIdentity(secret string) echo.MiddlewareFunc {
    if secret == "" {
        return passThrough
    }
    key := []byte(secret)
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if auth == "" {
                return next(c)
            }
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"message": "missing bearer token"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            // Only HMAC signatures are accepted; anything else is treated as
            // a forged token.
            tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
                if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
                    return nil, echo.ErrUnauthorized
                }
                return key, nil
            })
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{"message": "invalid token"})
            }
            sub, _ := tok.Claims.GetSubject()
            if sub == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"message": "invalid claims"})
            }
            c.Set("user_id", sub)
            return next(c)
        }
    }
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }
