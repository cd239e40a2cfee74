package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/aura/internal/handler"
	"github.com/iliyamo/aura/internal/middleware"
	"github.com/iliyamo/aura/internal/model"
)

// RegisterMovies registers browsing, detail, watchlist and rating routes.
// Public routes identify the viewer when a token is sent; list routes are
// served through the response cache.  The detail route is never cached
// because every hit records a view.  Mutations require a valid JWT, so
// anonymous callers are rejected before any catalog call.
func RegisterMovies(e *echo.Echo, h *handler.MovieHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	viewer := middleware.OptionalJWT(jwtSecret)
	member := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser, model.RoleSupervisor),
	}

	g := e.Group("/v1")
	g.GET("/home", h.Home, viewer, cache)
	g.GET("/movies", h.Browse, viewer, cache)
	g.GET("/search", h.Search, viewer, cache)
	g.GET("/genres", h.Genres, cache)
	g.GET("/movies/:id", h.Detail, viewer)
	g.GET("/movies/:id/ratings", h.RatingSummary, viewer)

	g.PUT("/movies/:id/rating", h.RateMovie, member...)
	g.DELETE("/movies/:id/rating", h.DeleteRating, member...)
	g.GET("/ratings", h.ListRatings, member...)

	w := e.Group("/v1/watchlist", member...)
	w.GET("", h.ListWatchlist)
	w.POST("/:id", h.AddToWatchlist)
	w.DELETE("/:id", h.RemoveFromWatchlist)
}

// RegisterSupervisor registers moderation and analytics routes.  All
// routes require a valid JWT and the SUPERVISOR role.
func RegisterSupervisor(e *echo.Echo, s *handler.SupervisorHandler, jwtSecret string) {
	g := e.Group(
		"/v1/supervisor",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleSupervisor),
	)
	g.POST("/movies/:id/toggle-hidden", s.ToggleHidden)
	g.GET("/dashboard", s.Dashboard)
}
