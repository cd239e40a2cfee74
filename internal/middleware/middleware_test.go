package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/aura/internal/config"
	"github.com/iliyamo/aura/internal/model"
	"github.com/iliyamo/aura/internal/utils"
)

const secret = "test-secret"

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func token(t *testing.T, id uint64, role string) string {
	t.Helper()
	at, err := utils.NewAccessToken(secret, id, role, 5)
	require.NoError(t, err)
	return "Bearer " + at.Token
}

func do(e *echo.Echo, method, target, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func whoami(c echo.Context) error {
	id, ok := UserID(c)
	return c.JSON(http.StatusOK, echo.Map{"id": id, "ok": ok, "role": Role(c)})
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(secret))

	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/me", "Bearer nope").Code)

	wrong, err := utils.NewAccessToken("other-secret", 1, model.RoleUser, 5)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/me", "Bearer "+wrong.Token).Code)

	rec := do(e, http.MethodGet, "/me", token(t, 42, model.RoleUser))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":42,"ok":true,"role":"USER"}`, rec.Body.String())
}

func TestOptionalJWT(t *testing.T) {
	e := echo.New()
	e.GET("/home", whoami, OptionalJWT(secret))

	rec := do(e, http.MethodGet, "/home", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":0,"ok":false,"role":""}`, rec.Body.String())

	rec = do(e, http.MethodGet, "/home", "Bearer garbage")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":0,"ok":false,"role":""}`, rec.Body.String())

	rec = do(e, http.MethodGet, "/home", token(t, 5, model.RoleSupervisor))
	assert.JSONEq(t, `{"id":5,"ok":true,"role":"SUPERVISOR"}`, rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/sup", whoami, JWTAuth(secret), RequireRole(model.RoleSupervisor))

	assert.Equal(t, http.StatusForbidden, do(e, http.MethodGet, "/sup", token(t, 1, model.RoleUser)).Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/sup", token(t, 1, model.RoleSupervisor)).Code)
}

func cacheConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{"GET": true},
		TTL:          time.Minute,
		KeyStrategy:  "viewer_route_query",
		Prefix:       "aura:cache",
		MaxBodyBytes: 1 << 20,
	}
}

func TestCacheHitMissAndViewerSeparation(t *testing.T) {
	_, rdb := newRedis(t)
	calls := 0
	e := echo.New()
	e.GET("/v1/movies", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"calls": calls, "supervisor": IsSupervisor(c)})
	}, OptionalJWT(secret), NewRedisCache(cacheConfig(), rdb))

	first := do(e, http.MethodGet, "/v1/movies?page=2&category=popular", "")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := do(e, http.MethodGet, "/v1/movies?category=popular&page=2", token(t, 9, model.RoleUser))
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	sup := do(e, http.MethodGet, "/v1/movies?page=2&category=popular", token(t, 1, model.RoleSupervisor))
	assert.Equal(t, "MISS", sup.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"calls":2,"supervisor":true}`, sup.Body.String())
	assert.Equal(t, 2, calls)
}

func TestCacheSkipsErrors(t *testing.T) {
	_, rdb := newRedis(t)
	e := echo.New()
	e.GET("/x", func(c echo.Context) error {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "down"})
	}, NewRedisCache(cacheConfig(), rdb))

	do(e, http.MethodGet, "/x", "")
	rec := do(e, http.MethodGet, "/x", "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
}

func TestCacheSkipsNoStoreResponses(t *testing.T) {
	mr, rdb := newRedis(t)
	calls := 0
	e := echo.New()
	e.GET("/home", func(c echo.Context) error {
		calls++
		if calls == 1 {
			c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
		}
		return c.JSON(http.StatusOK, echo.Map{"call": calls})
	}, NewRedisCache(cacheConfig(), rdb))

	do(e, http.MethodGet, "/home", "")
	assert.Empty(t, mr.Keys())

	assert.Equal(t, "MISS", do(e, http.MethodGet, "/home", "").Header().Get("X-Cache"))
	assert.Equal(t, "HIT", do(e, http.MethodGet, "/home", "").Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)
}

func TestCachePurge(t *testing.T) {
	mr, rdb := newRedis(t)
	cfg := cacheConfig()
	e := echo.New()
	e.GET("/a", func(c echo.Context) error { return c.String(http.StatusOK, "a") }, NewRedisCache(cfg, rdb))
	e.GET("/b", func(c echo.Context) error { return c.String(http.StatusOK, "b") }, NewRedisCache(cfg, rdb))
	do(e, http.MethodGet, "/a", "")
	do(e, http.MethodGet, "/b", "")
	require.NoError(t, mr.Set("unrelated", "1"))

	n, err := NewCachePurger(cfg, rdb).Purge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.True(t, mr.Exists("unrelated"))
	assert.Equal(t, "MISS", do(e, http.MethodGet, "/a", "").Header().Get("X-Cache"))

	var nilPurger *CachePurger
	n, err = nilPurger.Purge(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestCacheDisabledWithoutRedis(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.String(http.StatusOK, "x") }, NewRedisCache(cacheConfig(), nil))
	rec := do(e, http.MethodGet, "/x", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestTokenBucketBlocksAfterCapacity(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            time.Minute,
		KeyStrategy:    "ip_route",
		Prefix:         "aura:rl",
	}
	e := echo.New()
	e.POST("/v1/auth/login", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, NewTokenBucket(cfg, rdb))

	for i := 0; i < 2; i++ {
		rec := do(e, http.MethodPost, "/v1/auth/login", "")
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, strconv.Itoa(1-i), rec.Header().Get("X-RateLimit-Remaining"))
	}
	rec := do(e, http.MethodPost, "/v1/auth/login", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestTokenBucketFailsOpen(t *testing.T) {
	mr, rdb := newRedis(t)
	mr.Close()
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute, Prefix: "rl"}
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, NewTokenBucket(cfg, rdb))

	assert.Equal(t, http.StatusNoContent, do(e, http.MethodGet, "/x", "").Code)
}

func TestBuildRateKeyUsesViewer(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/x", nil), httptest.NewRecorder())
	c.SetPath("/x")
	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}
	assert.Equal(t, "rl:user:guest", buildRateKey(cfg, c))

	c.Set(ContextUserID, uint64(12))
	assert.Equal(t, "rl:user:12", buildRateKey(cfg, c))
}

type signup struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func TestValidatorMessages(t *testing.T) {
	v := NewValidator()
	assert.NoError(t, v.Validate(&signup{Email: "a@b.co", Password: "longenough"}))

	err := v.Validate(&signup{Email: "nope", Password: "longenough"})
	require.Error(t, err)
	assert.Equal(t, "email must be a valid email", ValidationMessage(err))

	err = v.Validate(&signup{Email: "a@b.co", Password: "short"})
	assert.Equal(t, "password must be at least 8 characters", ValidationMessage(err))

	assert.Equal(t, "invalid request", ValidationMessage(assert.AnError))
}

func TestRequestIDIsSet(t *testing.T) {
	e := echo.New()
	e.Use(RequestID())
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	rec := do(e, http.MethodGet, "/x", "")
	assert.Len(t, rec.Header().Get(echo.HeaderXRequestID), 36)
}

func TestValidatorOTPTag(t *testing.T) {
	type req struct {
		Code string `json:"code" validate:"required,otp"`
	}
	v := NewValidator()
	assert.NoError(t, v.Validate(&req{Code: "012345"}))
	err := v.Validate(&req{Code: "12a456"})
	require.Error(t, err)
	assert.Equal(t, "code must be 6 digits", ValidationMessage(err))
}
