package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveUpstream("tmdb", "ok", time.Millisecond)
		m.MovieViewed()
		m.EmailResult(true)
		m.Verification("ok")
	})

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMiddlewareCountsByRoute(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/v1/movies/:id", func(c echo.Context) error { return c.JSON(http.StatusOK, echo.Map{}) })

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/movies/603", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/v1/movies/:id", "200")))
}

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveUpstream("tmdb", "transient", time.Second)
	m.ObserveUpstream("tmdb", "ok", time.Second)
	m.MovieViewed()
	m.EmailResult(false)
	m.Verification("mismatch")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstreamAttempts.WithLabelValues("tmdb", "transient")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.movieViews))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.emails.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifications.WithLabelValues("mismatch")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.MovieViewed()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "aura_movie_views_total 1")
}
