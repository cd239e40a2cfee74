package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/aura/internal/analytics"
	"github.com/iliyamo/aura/internal/model"
)

// HiddenToggler flips the moderation flag of a cached movie.
type HiddenToggler interface {
	ToggleHidden(ctx context.Context, id uint64) (*model.Movie, error)
}

// Dashboarder builds the supervisor overview.
type Dashboarder interface {
	Dashboard(ctx context.Context, now time.Time, page int) (*analytics.Dashboard, error)
}

// CachePurger drops cached list responses.
type CachePurger interface {
	Purge(ctx context.Context) (int64, error)
}

// SupervisorHandler serves moderation and analytics for staff accounts.
type SupervisorHandler struct {
	Movies    *MovieHandler
	Toggler   HiddenToggler
	Analytics Dashboarder
	Cache     CachePurger
	Logger    *zap.Logger
}

// ToggleHidden hides or re-shows a movie, caching it first if nobody has
// opened it yet.  Cached list responses are purged so the change is
// visible immediately.
func (h *SupervisorHandler) ToggleHidden(c echo.Context) error {
	tmdbID, ok := tmdbIDParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid movie id"})
	}
	ctx := c.Request().Context()

	movie, err := h.Movies.resolveMovie(ctx, tmdbID)
	if err != nil {
		return h.Movies.movieFailure(c, tmdbID, err)
	}
	updated, err := h.Toggler.ToggleHidden(ctx, movie.ID)
	if err != nil {
		h.Logger.Error("toggle hidden failed", zap.Uint64("movie_id", movie.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "toggle hidden failed"})
	}
	if h.Cache != nil {
		if n, err := h.Cache.Purge(ctx); err != nil {
			h.Logger.Warn("cache purge failed", zap.Error(err))
		} else {
			h.Logger.Debug("cache purged", zap.Int64("keys", n))
		}
	}

	state := "visible"
	if updated.IsHidden {
		state = "hidden"
	}
	h.Logger.Info("movie moderation changed",
		zap.Int64("tmdb_id", tmdbID), zap.Bool("hidden", updated.IsHidden), zap.String("by", userLabel(c)))
	return c.JSON(http.StatusOK, echo.Map{
		"tmdb_id":   tmdbID,
		"is_hidden": updated.IsHidden,
		"message":   "Movie is now " + state,
	})
}

// Dashboard returns view statistics and one page of hidden movies.
func (h *SupervisorHandler) Dashboard(c echo.Context) error {
	page, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil {
		page = 1
	}
	d, err := h.Analytics.Dashboard(c.Request().Context(), h.Movies.now(), page)
	if err != nil {
		h.Logger.Error("dashboard failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load dashboard failed"})
	}
	hidden := make([]movieResp, 0, len(d.HiddenMovies))
	for i := range d.HiddenMovies {
		hidden = append(hidden, toMovieResp(&d.HiddenMovies[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"stats":         d,
		"hidden_movies": hidden,
		"page_range":    PageRange(d.Page, d.TotalPages),
	})
}

func userLabel(c echo.Context) string {
	if id, err := getUserID(c); err == nil {
		return strconv.FormatUint(id, 10)
	}
	return "unknown"
}
