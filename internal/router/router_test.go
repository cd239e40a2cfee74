package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/iliyamo/aura/internal/handler"
	"github.com/iliyamo/aura/internal/metrics"
	"github.com/iliyamo/aura/internal/model"
	"github.com/iliyamo/aura/internal/utils"
)

const secret = "router-secret"

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func passthrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func newServer(db handler.Pinger) *echo.Echo {
	m := metrics.New()
	e := New(zap.NewNop(), m)
	RegisterRoutes(e, db, m)
	RegisterAuth(e, &handler.AuthHandler{Logger: zap.NewNop()}, secret, passthrough)
	RegisterProfile(e, &handler.ProfileHandler{Logger: zap.NewNop()}, secret)
	movies := &handler.MovieHandler{Logger: zap.NewNop()}
	RegisterMovies(e, movies, secret, passthrough)
	RegisterSupervisor(e, &handler.SupervisorHandler{Movies: movies, Logger: zap.NewNop()}, secret)
	return e
}

func serve(e *echo.Echo, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func accessToken(t *testing.T, role string) string {
	t.Helper()
	at, err := utils.NewAccessToken(secret, 3, role, 5)
	if err != nil {
		t.Fatal(err)
	}
	return at.Token
}

func TestOperationalEndpoints(t *testing.T) {
	e := newServer(pinger{})
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/readyz", "").Code)

	rec := serve(e, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "aura_http_requests_total"))

	down := newServer(pinger{err: errors.New("gone")})
	assert.Equal(t, http.StatusServiceUnavailable, serve(down, http.MethodGet, "/readyz", "").Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	e := newServer(pinger{})
	routes := []struct{ method, path string }{
		{http.MethodGet, "/v1/me"},
		{http.MethodGet, "/v1/profile"},
		{http.MethodGet, "/v1/watchlist"},
		{http.MethodPost, "/v1/watchlist/550"},
		{http.MethodPut, "/v1/movies/550/rating"},
		{http.MethodGet, "/v1/ratings"},
		{http.MethodGet, "/v1/supervisor/dashboard"},
		{http.MethodPost, "/v1/supervisor/movies/550/toggle-hidden"},
	}
	for _, r := range routes {
		rec := serve(e, r.method, r.path, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", r.method, r.path)
	}
}

func TestSupervisorRoutesRequireRole(t *testing.T) {
	e := newServer(pinger{})
	rec := serve(e, http.MethodGet, "/v1/supervisor/dashboard", accessToken(t, model.RoleUser))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequestIDHeader(t *testing.T) {
	e := newServer(pinger{})
	rec := serve(e, http.MethodGet, "/healthz", "")
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}
