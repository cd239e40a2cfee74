package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/aura/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/aura/internal/metrics"    // request counters and the /metrics endpoint
	"github.com/iliyamo/aura/internal/middleware" // import middleware for JWT authentication and role enforcement
)

// New returns an Echo instance with the global middleware chain: panic
// recovery, request IDs, metrics and request logging.  Request bodies are
// validated with go-playground/validator.
func New(logger *zap.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = middleware.NewValidator()
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(m.Middleware())
	e.Use(middleware.RequestLogger(logger))
	return e
}

// RegisterRoutes registers the operational endpoints: liveness, readiness
// and Prometheus metrics.
func RegisterRoutes(e *echo.Echo, db handler.Pinger, m *metrics.Metrics) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
	e.GET("/metrics", echo.WrapHandler(m.Handler()))
}

// RegisterAuth registers all authentication-related routes.  Unauthenticated
// operations live under /v1/auth; the account-creating and credential
// checking ones sit behind the rate limiter.  Protected endpoints live
// under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register, limiter)
	g.POST("/verify", a.Verify, limiter)
	g.POST("/resend", a.Resend, limiter)
	g.POST("/login", a.Login, limiter)
	g.POST("/supervisor/login", a.SupervisorLogin, limiter)
	// rotates the refresh token
	g.POST("/refresh", a.Refresh)
	// new access token, same refresh token
	g.POST("/refresh-access", a.RefreshAccess)
	// a refresh token in the body ends one session; a bearer alone ends all
	g.POST("/logout", a.Logout, middleware.OptionalJWT(jwtSecret))

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// RegisterProfile registers the account page endpoints for signed-in users.
func RegisterProfile(e *echo.Echo, p *handler.ProfileHandler, jwtSecret string) {
	g := e.Group("/v1/profile", middleware.JWTAuth(jwtSecret))
	g.GET("", p.Get)
	g.PUT("", p.Update)
	g.PATCH("", p.Update)
	g.PUT("/password", p.ChangePassword)
	g.POST("/avatar", p.UploadAvatar)
}
