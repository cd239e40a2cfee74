package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/aura/internal/analytics"
	"github.com/iliyamo/aura/internal/catalog"
	"github.com/iliyamo/aura/internal/metrics"
	"github.com/iliyamo/aura/internal/middleware"
	"github.com/iliyamo/aura/internal/model"
	q "github.com/iliyamo/aura/internal/queue"
	"github.com/iliyamo/aura/internal/repository"
	publisher "github.com/iliyamo/aura/internal/service"
	"github.com/iliyamo/aura/internal/trailer"
)

const (
	homeSectionSize = 24
	newTrailersSize = 5
	castSize        = 10
	similarSize     = 6
	maxQueryLength  = 255
)

// MovieStore is the local movie cache.
type MovieStore interface {
	HiddenLister
	GetByTMDBID(ctx context.Context, tmdbID int64) (*model.Movie, error)
	FindOrCreate(ctx context.Context, tmdbID int64, factory repository.MovieFactory) (*model.Movie, bool, error)
	SetTrailerOnce(ctx context.Context, id uint64, key string) (bool, error)
}

// WatchlistStore persists watchlist entries.
type WatchlistStore interface {
	Add(ctx context.Context, userID, movieID uint64) (bool, error)
	Remove(ctx context.Context, userID, movieID uint64) (bool, error)
	Exists(ctx context.Context, userID, movieID uint64) (bool, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.WatchlistEntry, error)
}

// RatingStore persists ratings.
type RatingStore interface {
	Upsert(ctx context.Context, userID, movieID uint64, score int, review string) error
	Delete(ctx context.Context, userID, movieID uint64) (bool, error)
	Get(ctx context.Context, userID, movieID uint64) (*model.Rating, error)
	ListByUser(ctx context.Context, userID uint64, limit, offset int) ([]model.Rating, error)
	CountByUser(ctx context.Context, userID uint64) (int64, error)
	Summary(ctx context.Context, movieID uint64) (*model.RatingSummary, error)
}

// ViewTracker records detail views and answers the home page ranking.
type ViewTracker interface {
	RecordView(ctx context.Context, movieID uint64, userID *uint64, ip string) (model.MovieView, error)
	TopToday(ctx context.Context, now time.Time, n int) ([]model.MovieViewCount, error)
}

// MovieHandler serves browsing, detail, watchlist and rating endpoints.
type MovieHandler struct {
	Catalog   catalog.Catalog
	Movies    MovieStore
	Trailers  trailer.Finder
	Watchlist WatchlistStore
	Ratings   RatingStore
	Views     ViewTracker
	Events    publisher.Publisher
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	Now       func() time.Time
}

func (h *MovieHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

func (h *MovieHandler) log() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// resolveMovie returns the cached record for tmdbID, fetching and caching
// it from the catalog on first use.
func (h *MovieHandler) resolveMovie(ctx context.Context, tmdbID int64) (*model.Movie, error) {
	m, _, err := h.Movies.FindOrCreate(ctx, tmdbID, func(ctx context.Context) (*model.Movie, error) {
		d, err := h.Catalog.FetchByID(ctx, tmdbID)
		if err != nil {
			return nil, err
		}
		return d.Movie(), nil
	})
	return m, err
}

// movieFailure maps a resolveMovie error.
func (h *MovieHandler) movieFailure(c echo.Context, tmdbID int64, err error) error {
	if errors.Is(err, catalog.ErrNotFound) || errors.Is(err, catalog.ErrParse) ||
		errors.Is(err, context.DeadlineExceeded) || isUpstream(err) {
		h.log().Warn("movie lookup failed", zap.Int64("tmdb_id", tmdbID), zap.Error(err))
		return catalogError(c, err)
	}
	h.log().Error("movie cache failed", zap.Int64("tmdb_id", tmdbID), zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load movie failed"})
}

// Home returns the landing page sections.  Catalog failures degrade to
// empty sections.
func (h *MovieHandler) Home(c echo.Context) error {
	ctx := c.Request().Context()
	filter, err := loadHiddenFilter(ctx, h.Movies, middleware.IsSupervisor(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load hidden movies failed"})
	}

	degraded := false
	section := func(category string, limit int) []catalog.Item {
		page, err := h.Catalog.ListByCategory(ctx, category, 1)
		if err != nil {
			h.log().Warn("home section unavailable", zap.String("category", category), zap.Error(err))
			degraded = true
			return []catalog.Item{}
		}
		return filter.items(page.Results, limit)
	}

	topToday, err := h.Views.TopToday(ctx, h.now(), analytics.TopTodayN)
	if err != nil {
		h.log().Warn("top viewed today unavailable", zap.Error(err))
	}
	if topToday == nil {
		topToday = []model.MovieViewCount{}
	}

	resp := filter.decorate(echo.Map{
		"trending":     section(catalog.CategoryTrending, homeSectionSize),
		"popular":      section(catalog.CategoryPopular, homeSectionSize),
		"top_rated":    section(catalog.CategoryTopRated, homeSectionSize),
		"new_trailers": section(catalog.CategoryUpcoming, newTrailersSize),
		"top_today":    topTodayResp(topToday),
	})
	if degraded || err != nil {
		noStore(c)
	}
	return c.JSON(http.StatusOK, resp)
}

// noStore keeps a partially degraded response out of the response cache.
func noStore(c echo.Context) {
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
}

type topTodayItem struct {
	TMDBID    int64  `json:"tmdb_id"`
	Title     string `json:"title"`
	PosterURL string `json:"poster_url"`
	Views     int64  `json:"views"`
}

func topTodayResp(in []model.MovieViewCount) []topTodayItem {
	out := make([]topTodayItem, 0, len(in))
	for _, v := range in {
		out = append(out, topTodayItem{TMDBID: v.TMDBID, Title: v.Title, PosterURL: model.PosterURL(v.Poster), Views: v.Views})
	}
	return out
}

// Browse lists a category, or a genre through discover.
func (h *MovieHandler) Browse(c echo.Context) error {
	ctx := c.Request().Context()
	page := pageParam(c)
	category := catalog.NormalizeCategory(strings.TrimSpace(c.QueryParam("category")))

	var genreID *int64
	if raw := strings.TrimSpace(c.QueryParam("genre")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid genre"})
		}
		genreID = &id
	}

	genres, err := h.Catalog.Genres(ctx)
	if err != nil {
		h.log().Warn("genres unavailable", zap.Error(err))
		genres = []model.Genre{}
		noStore(c)
	}

	var result *catalog.Page
	if genreID != nil {
		result, err = h.Catalog.Discover(ctx, *genreID, page)
	} else {
		result, err = h.Catalog.ListByCategory(ctx, category, page)
	}
	if err != nil {
		h.log().Warn("browse failed", zap.String("category", category), zap.Error(err))
		return catalogError(c, err)
	}

	filter, err := loadHiddenFilter(ctx, h.Movies, middleware.IsSupervisor(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load hidden movies failed"})
	}
	return c.JSON(http.StatusOK, filter.decorate(echo.Map{
		"movies":         filter.items(result.Results, 0),
		"category":       category,
		"selected_genre": genreID,
		"genres":         genres,
		"current_page":   result.Page,
		"total_pages":    result.TotalPages,
		"page_range":     PageRange(result.Page, result.TotalPages),
	}))
}

// normalizeQuery collapses whitespace runs to single spaces.
func normalizeQuery(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// Search runs a title search.  An empty query returns no results without
// calling the catalog.
func (h *MovieHandler) Search(c echo.Context) error {
	ctx := c.Request().Context()
	query := normalizeQuery(c.QueryParam("q"))
	if utf8.RuneCountInString(query) > maxQueryLength {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "query too long"})
	}
	page := pageParam(c)

	filter, err := loadHiddenFilter(ctx, h.Movies, middleware.IsSupervisor(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load hidden movies failed"})
	}

	if query == "" {
		return c.JSON(http.StatusOK, filter.decorate(echo.Map{
			"movies":        []catalog.Item{},
			"query":         "",
			"current_page":  1,
			"total_pages":   1,
			"total_results": 0,
			"page_range":    []any{},
		}))
	}

	result, err := h.Catalog.Search(ctx, query, page)
	if err != nil {
		h.log().Warn("search failed", zap.String("query", query), zap.Error(err))
		return catalogError(c, err)
	}
	return c.JSON(http.StatusOK, filter.decorate(echo.Map{
		"movies":        filter.items(result.Results, 0),
		"query":         query,
		"current_page":  result.Page,
		"total_pages":   result.TotalPages,
		"total_results": result.TotalResults,
		"page_range":    PageRange(result.Page, result.TotalPages),
	}))
}

// Genres lists catalog genres.
func (h *MovieHandler) Genres(c echo.Context) error {
	genres, err := h.Catalog.Genres(c.Request().Context())
	if err != nil {
		h.log().Warn("genres failed", zap.Error(err))
		return catalogError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"genres": genres})
}

// Detail serves one movie: catalog fetch, local cache, moderation check,
// trailer resolution, viewer state, view tracking.
func (h *MovieHandler) Detail(c echo.Context) error {
	tmdbID, ok := tmdbIDParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid movie id"})
	}
	ctx := c.Request().Context()
	supervisor := middleware.IsSupervisor(c)

	detail, err := h.Catalog.FetchByID(ctx, tmdbID)
	if err != nil {
		h.log().Warn("movie detail fetch failed", zap.Int64("tmdb_id", tmdbID), zap.Error(err))
		return catalogError(c, err)
	}

	movie, created, err := h.Movies.FindOrCreate(ctx, tmdbID, func(context.Context) (*model.Movie, error) {
		return detail.Movie(), nil
	})
	if err != nil {
		h.log().Error("movie cache failed", zap.Int64("tmdb_id", tmdbID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load movie failed"})
	}
	if created {
		h.log().Debug("movie cached", zap.Int64("tmdb_id", tmdbID), zap.Uint64("movie_id", movie.ID))
	}
	if movie.IsHidden && !supervisor {
		return c.JSON(http.StatusForbidden, echo.Map{"error": msgRestricted})
	}

	if movie.YouTubeTrailerKey == "" && h.Trailers != nil {
		h.resolveTrailer(ctx, movie, detail.Videos)
	}

	viewer := viewerID(c)
	resp := echo.Map{
		"in_watchlist": false,
		"user_rating":  nil,
	}
	if viewer != nil {
		inList, err := h.Watchlist.Exists(ctx, *viewer, movie.ID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load watchlist failed"})
		}
		resp["in_watchlist"] = inList
		r, err := h.Ratings.Get(ctx, *viewer, movie.ID)
		switch {
		case err == nil:
			rr := toRatingResp(r, false)
			resp["user_rating"] = &rr
		case !errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load rating failed"})
		}
	}

	view, err := h.Views.RecordView(ctx, movie.ID, viewer, analytics.ClientIP(c.Request()))
	if err != nil {
		h.log().Error("record view failed", zap.Uint64("movie_id", movie.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "record view failed"})
	}
	h.Metrics.MovieViewed()
	if h.Events != nil {
		_ = h.Events.PublishMovieViewed(ctx, q.MovieViewedEvent{
			MovieID:  movie.ID,
			TMDBID:   movie.TMDBID,
			Title:    movie.Title,
			UserID:   viewer,
			ViewedAt: q.Timestamp(view.ViewedAt),
		})
	}

	filter, err := loadHiddenFilter(ctx, h.Movies, supervisor)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load hidden movies failed"})
	}
	resp["movie"] = toMovieResp(movie)
	resp["cast"] = toCastResp(detail.Cast, castSize)
	resp["similar"] = filter.items(detail.Similar, similarSize)
	return c.JSON(http.StatusOK, resp)
}

// resolveTrailer stores the first embeddable YouTube trailer, falling back
// to a title search when the catalog lists no trailer videos.  A lost race
// adopts the key stored by the winner.
func (h *MovieHandler) resolveTrailer(ctx context.Context, movie *model.Movie, videos []catalog.Video) {
	var key string
	if candidates := trailer.Candidates(videos); len(candidates) > 0 {
		key = h.Trailers.FindEmbeddableTrailer(ctx, candidates)
	} else {
		year := 0
		if movie.ReleaseDate != nil {
			year = movie.ReleaseDate.Year()
		}
		key = h.Trailers.SearchTrailer(ctx, movie.Title, year)
	}
	if key == "" {
		return
	}
	stored, err := h.Movies.SetTrailerOnce(ctx, movie.ID, key)
	if err != nil {
		h.log().Warn("store trailer failed", zap.Uint64("movie_id", movie.ID), zap.Error(err))
		return
	}
	if stored {
		movie.YouTubeTrailerKey = key
		return
	}
	if fresh, err := h.Movies.GetByTMDBID(ctx, movie.TMDBID); err == nil {
		movie.YouTubeTrailerKey = fresh.YouTubeTrailerKey
	}
}
