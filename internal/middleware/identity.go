package middleware

// identity.go holds the accessors for the identity stored by the JWT
// middlewares, shared by handlers, the cache and the rate limiter.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/aura/internal/model"
)

// UserID returns the authenticated user's ID, if any.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ContextUserID).(uint64)
	return id, ok && id > 0
}

// Role returns the authenticated user's role or "".
func Role(c echo.Context) string {
	r, _ := c.Get(ContextRole).(string)
	return r
}

// IsSupervisor reports whether the viewer carries the supervisor role.
func IsSupervisor(c echo.Context) bool {
	return Role(c) == model.RoleSupervisor
}

// userID renders the viewer for keys and logs; "guest" when anonymous.
func userID(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "guest"
}

// viewerClass groups viewers that receive identical public responses.
func viewerClass(c echo.Context) string {
	if IsSupervisor(c) {
		return "supervisor"
	}
	return "public"
}
