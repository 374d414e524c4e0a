package middleware // middleware provides shared request processing for handlers

import (
	"net/http" // http package defines standard HTTP status codes

	"github.com/labstack/echo/v4" // echo provides middleware chaining and context

	"github.com/iliyamo/auth-user-service/internal/model"
)

// RequireRole returns a middleware function that enforces that the
// authenticated user has one of the specified roles.  It must run after
// AuthGate.RequireAuth, which stores the live user on the context.  The role
// is read from that user, not from the token, so a role change takes
// effect immediately.  Without a user the request is answered with 401;
// with a role outside the set, 403.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u := CurrentUser(c)
			if u == nil {
				return deny(c, http.StatusUnauthorized, "authentication required")
			}
			if !u.HasRole(roles...) {
				return deny(c, http.StatusForbidden, "insufficient role")
			}
			// Otherwise call the next handler in the chain
			return next(c)
		}
	}
}
