package handler // handler defines http handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/aura/internal/catalog"
	"github.com/iliyamo/aura/internal/middleware"
	"github.com/iliyamo/aura/internal/model"
	"github.com/iliyamo/aura/internal/upstream"
)

// Client-facing messages for catalog failures.  Upstream bodies are never
// echoed.
const (
	msgUnavailable = "The movie database is temporarily unavailable. Please try again in a few moments."
	msgUnreadable  = "Unable to read movie details."
	msgNotFound    = "Movie not found"
	msgRestricted  = "This movie is currently restricted."
)

// getUserID extracts the authenticated user's id set by the JWT middleware.
func getUserID(c echo.Context) (uint64, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, errors.New("invalid user_id in context")
	}
	return id, nil
}

// viewerID is getUserID for public routes; nil when anonymous.
func viewerID(c echo.Context) *uint64 {
	if id, ok := middleware.UserID(c); ok {
		return &id
	}
	return nil
}

// tmdbIDParam parses the :id path parameter as a positive TMDB id.
func tmdbIDParam(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	return id, err == nil && id > 0
}

// pageParam reads ?page= and clamps it to the range TMDB serves.
func pageParam(c echo.Context) int {
	p, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil {
		p = 1
	}
	return catalog.ClampPage(p)
}

// catalogError maps catalog and upstream failures to responses.
func catalogError(c echo.Context, err error) error {
	var se *upstream.StatusError
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": msgNotFound})
	case errors.Is(err, catalog.ErrParse), errors.As(err, &se):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": msgUnreadable})
	default:
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": msgUnavailable})
	}
}

// PageRange returns the pagination strip: the first page, up to two pages
// either side of current, the last page, and "..." wherever pages are
// skipped.  A single page yields an empty strip.
func PageRange(current, total int) []any {
	if total <= 1 {
		return []any{}
	}
	pages := []any{1}
	start := max(2, current-2)
	end := min(total-1, current+2)
	if start > 2 {
		pages = append(pages, "...")
	}
	for p := start; p <= end; p++ {
		pages = append(pages, p)
	}
	if end < total-1 {
		pages = append(pages, "...")
	}
	return append(pages, total)
}

// HiddenLister is the part of the movie cache that moderation filtering
// needs.
type HiddenLister interface {
	HiddenTMDBIDs(ctx context.Context) ([]int64, error)
}

// hiddenFilter removes hidden titles for ordinary viewers.  Supervisors see
// everything and receive the hidden ids instead.
type hiddenFilter struct {
	ids        []int64
	set        map[int64]bool
	supervisor bool
}

func loadHiddenFilter(ctx context.Context, store HiddenLister, supervisor bool) (*hiddenFilter, error) {
	ids, err := store.HiddenTMDBIDs(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	if ids == nil {
		ids = []int64{}
	}
	return &hiddenFilter{ids: ids, set: set, supervisor: supervisor}, nil
}

// items filters and truncates to limit (0 = no limit).
func (f *hiddenFilter) items(in []catalog.Item, limit int) []catalog.Item {
	out := make([]catalog.Item, 0, len(in))
	for _, it := range in {
		if !f.supervisor && f.set[it.ID] {
			continue
		}
		out = append(out, it)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// decorate adds hidden_ids for supervisors.
func (f *hiddenFilter) decorate(resp echo.Map) echo.Map {
	if f.supervisor {
		resp["hidden_ids"] = f.ids
	}
	return resp
}

func (f *hiddenFilter) allows(m *model.Movie) bool {
	return f.supervisor || !m.IsHidden
}

// isUpstream reports whether err came from an outbound API call.
func isUpstream(err error) bool {
	var se *upstream.StatusError
	return errors.Is(err, upstream.ErrUnavailable) || errors.As(err, &se)
}
