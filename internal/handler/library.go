package handler

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/aura/internal/middleware"
	"github.com/iliyamo/aura/internal/model"
	"github.com/iliyamo/aura/internal/repository"
)

const (
	ratingsPerPage  = 20
	maxReviewLength = 2000
)

// ListWatchlist returns the caller's watchlist, newest first.
func (h *MovieHandler) ListWatchlist(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	entries, err := h.Watchlist.ListByUser(c.Request().Context(), uid)
	if err != nil {
		h.log().Error("list watchlist failed", zap.Uint64("user_id", uid), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list watchlist failed"})
	}
	supervisor := middleware.IsSupervisor(c)
	items := make([]watchlistResp, 0, len(entries))
	for i := range entries {
		if entries[i].Movie.IsHidden && !supervisor {
			continue
		}
		items = append(items, watchlistResp{AddedAt: entries[i].AddedAt, Movie: toMovieResp(&entries[i].Movie)})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// AddToWatchlist caches the movie if needed and adds it; repeating the call
// is harmless.
func (h *MovieHandler) AddToWatchlist(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	tmdbID, ok := tmdbIDParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid movie id"})
	}
	ctx := c.Request().Context()

	movie, err := h.resolveMovie(ctx, tmdbID)
	if err != nil {
		return h.movieFailure(c, tmdbID, err)
	}
	if movie.IsHidden && !middleware.IsSupervisor(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": msgRestricted})
	}
	added, err := h.Watchlist.Add(ctx, uid, movie.ID)
	if err != nil {
		h.log().Error("add to watchlist failed", zap.Uint64("user_id", uid), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "add to watchlist failed"})
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	return c.JSON(status, echo.Map{"added": added, "message": "Added to watchlist", "movie": toMovieResp(movie)})
}

// RemoveFromWatchlist deletes the entry for a cached movie.
func (h *MovieHandler) RemoveFromWatchlist(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	tmdbID, ok := tmdbIDParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid movie id"})
	}
	ctx := c.Request().Context()

	movie, err := h.Movies.GetByTMDBID(ctx, tmdbID)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": msgNotFound})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load movie failed"})
	}
	removed, err := h.Watchlist.Remove(ctx, uid, movie.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "remove from watchlist failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"removed": removed, "message": "Removed from watchlist"})
}

type rateReq struct {
	Score  int    `json:"score"`
	Review string `json:"review"`
}

// RateMovie creates or replaces the caller's rating of a movie.
func (h *MovieHandler) RateMovie(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	tmdbID, ok := tmdbIDParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid movie id"})
	}
	var req rateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Score < model.MinScore || req.Score > model.MaxScore {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "score must be between 1 and 10"})
	}
	req.Review = strings.TrimSpace(req.Review)
	if utf8.RuneCountInString(req.Review) > maxReviewLength {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "review too long"})
	}
	ctx := c.Request().Context()

	movie, err := h.resolveMovie(ctx, tmdbID)
	if err != nil {
		return h.movieFailure(c, tmdbID, err)
	}
	if movie.IsHidden && !middleware.IsSupervisor(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": msgRestricted})
	}
	if err := h.Ratings.Upsert(ctx, uid, movie.ID, req.Score, req.Review); err != nil {
		h.log().Error("save rating failed", zap.Uint64("user_id", uid), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save rating failed"})
	}
	r, err := h.Ratings.Get(ctx, uid, movie.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load rating failed"})
	}
	r.Movie = *movie
	return c.JSON(http.StatusOK, toRatingResp(r, true))
}

// DeleteRating removes the caller's rating.
func (h *MovieHandler) DeleteRating(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	tmdbID, ok := tmdbIDParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid movie id"})
	}
	ctx := c.Request().Context()

	movie, err := h.Movies.GetByTMDBID(ctx, tmdbID)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "rating not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load movie failed"})
	}
	deleted, err := h.Ratings.Delete(ctx, uid, movie.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete rating failed"})
	}
	if !deleted {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "rating not found"})
	}
	return c.NoContent(http.StatusNoContent)
}

// ListRatings pages through the caller's ratings.
func (h *MovieHandler) ListRatings(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	page := pageParam(c)

	total, err := h.Ratings.CountByUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "count ratings failed"})
	}
	ratings, err := h.Ratings.ListByUser(ctx, uid, ratingsPerPage, (page-1)*ratingsPerPage)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list ratings failed"})
	}
	items := make([]ratingResp, 0, len(ratings))
	for i := range ratings {
		items = append(items, toRatingResp(&ratings[i], true))
	}
	totalPages := int((total + ratingsPerPage - 1) / ratingsPerPage)
	if totalPages < 1 {
		totalPages = 1
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items":        items,
		"total":        total,
		"current_page": page,
		"total_pages":  totalPages,
		"page_range":   PageRange(page, totalPages),
	})
}

// RatingSummary returns the count and mean score of a movie.  Movies
// nobody has opened yet have an empty summary.
func (h *MovieHandler) RatingSummary(c echo.Context) error {
	tmdbID, ok := tmdbIDParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid movie id"})
	}
	ctx := c.Request().Context()

	movie, err := h.Movies.GetByTMDBID(ctx, tmdbID)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusOK, echo.Map{"tmdb_id": tmdbID, "count": 0, "average": 0})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load movie failed"})
	}
	if movie.IsHidden && !middleware.IsSupervisor(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": msgRestricted})
	}
	s, err := h.Ratings.Summary(ctx, movie.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load rating summary failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"tmdb_id": tmdbID, "count": s.Count, "average": s.Average})
}
