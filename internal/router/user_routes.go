package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-user-service/internal/handler"
	"github.com/iliyamo/auth-user-service/internal/middleware"
	"github.com/iliyamo/auth-user-service/internal/model"
)

// UserRouteOptions carries the cache middlewares for the user routes.  A nil
// field leaves the routes uncached.
type UserRouteOptions struct {
	ReadCache  echo.MiddlewareFunc
	Invalidate echo.MiddlewareFunc
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// RegisterUsers registers CRUD endpoints under /api/users.  Anyone may read;
// anonymous callers get redacted users.  Writes require a staff or faculty
// account.
func RegisterUsers(e *echo.Echo, u *handler.UserHandler, gate *middleware.AuthGate, opts UserRouteOptions) {
	if opts.ReadCache == nil {
		opts.ReadCache = passThrough
	}
	if opts.Invalidate == nil {
		opts.Invalidate = passThrough
	}
	g := e.Group("/api/users")

	// ---- Reads ----
	// OptionalAuth runs first so the cache key knows the caller's class.
	read := []echo.MiddlewareFunc{gate.OptionalAuth(), opts.ReadCache}
	g.GET("", u.List, read...)
	g.GET("/:id", u.Get, read...)

	// ---- Writes ----
	write := []echo.MiddlewareFunc{
		gate.RequireAuth(),
		middleware.RequireRole(model.RoleStaff, model.RoleFaculty),
		opts.Invalidate,
	}
	g.POST("", u.Create, write...)
	g.PUT("/:id", u.Update, write...)
	g.DELETE("/:id", u.Delete, write...)
}
