package middleware

import (
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/go-redis/redismock/v9"
    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/sumit010804/food-share-sub000/internal/config"
    "github.com/sumit010804/food-share-sub000/internal/utils"
)

const secret = "test-secret"

func signed(t *testing.T, sub string) string {
    t.Helper()
    tok, err := utils.NewAccessToken(secret, sub, time.Hour)
    require.NoError(t, err)
    return tok.Token
}

func serve(mw echo.MiddlewareFunc, header string) (*httptest.ResponseRecorder, string) {
    e := echo.New()
    var seen string
    e.GET("/who", func(c echo.Context) error {
        seen = userID(c)
        return c.String(http.StatusOK, seen)
    }, mw)
    req := httptest.NewRequest(http.MethodGet, "/who", nil)
    if header != "" {
        req.Header.Set("Authorization", header)
    }
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec, seen
}

func TestBearerIdentity(t *testing.T) {
    mw := BearerIdentity(secret)

    rec, who := serve(mw, "")
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "anon", who)

    rec, who = serve(mw, "Bearer "+signed(t, "U1"))
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "U1", who)

    rec, _ = serve(mw, "Bearer not-a-token")
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
    assert.JSONEq(t, `{"message":"invalid token"}`, rec.Body.String())

    rec, _ = serve(mw, "Basic dXNlcjpwYXNz")
    assert.Equal(t, http.StatusUnauthorized, rec.Code)

    expired, err := utils.NewAccessToken(secret, "U1", -time.Minute)
    require.NoError(t, err)
    rec, _ = serve(mw, "Bearer "+expired.Token)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)

    forged, err := utils.NewAccessToken("other-secret", "U1", time.Hour)
    require.NoError(t, err)
    rec, _ = serve(mw, "Bearer "+forged.Token)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerIdentity_DisabledWithoutSecret(t *testing.T) {
    rec, who := serve(BearerIdentity(""), "Bearer whatever")
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "anon", who)
}

func TestRateKey(t *testing.T) {
    e := echo.New()
    req := httptest.NewRequest(http.MethodPost, "/v1/reserve", nil)
    req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
    c := e.NewContext(req, httptest.NewRecorder())
    c.SetPath("/v1/reserve")
    c.Set("user_id", "U1")

    cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_user_route"}
    assert.Equal(t, "rl:ip:10.0.0.1:user:U1:route:POST /v1/reserve", rateKey(cfg, c))

    cfg.KeyStrategy = "user"
    assert.Equal(t, "rl:user:U1", rateKey(cfg, c))
}

func TestNewRedisCache_MissThenStore(t *testing.T) {
    rdb, mock := redismock.NewClientMock()
    cfg := config.CacheConfig{
        Enabled:     true,
        Methods:     map[string]bool{http.MethodGet: true},
        TTL:         time.Minute,
        KeyStrategy: "route_query",
        Prefix:      "c",
    }

    e := echo.New()
    e.GET("/v1/analytics", func(c echo.Context) error {
        return c.String(http.StatusOK, "fresh")
    }, NewRedisCache(cfg, rdb))

    req := httptest.NewRequest(http.MethodGet, "/v1/analytics", nil)
    c := e.NewContext(req, httptest.NewRecorder())
    c.SetPath("/v1/analytics")
    key := cacheKey(cfg, c)
    payload, err := json.Marshal(cachedResponse{
        Status:      http.StatusOK,
        ContentType: echo.MIMETextPlainCharsetUTF8,
        Body:        []byte("fresh"),
    })
    require.NoError(t, err)

    mock.ExpectGet(key).RedisNil()
    mock.ExpectSet(key, payload, time.Minute).SetVal("OK")

    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "fresh", rec.Body.String())
    assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRedisCache_DisabledIsPassThrough(t *testing.T) {
    e := echo.New()
    e.GET("/x", func(c echo.Context) error { return c.String(http.StatusOK, "x") },
        NewRedisCache(config.CacheConfig{Enabled: false}, nil))
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
    assert.Equal(t, "x", rec.Body.String())
    assert.Empty(t, rec.Header().Get("X-Cache"))
}
