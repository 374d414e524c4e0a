package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/auth-user-service/internal/handler"
	"github.com/iliyamo/auth-user-service/internal/middleware"
)

// RegisterRoutes registers the routes that describe the service itself.
// None of them require authentication.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/", handler.Root)
	// Liveness for load balancers; readiness also checks the database.
	e.GET("/health", handler.Health)
	e.GET("/ready", handler.Ready(db))
	e.GET("/api-docs", handler.Docs)
}

// RegisterAuth registers the Google login flow and the token endpoints under
// /api/auth.  A successful callback may create a user, so it drops cached
// user reads through onWrite.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, gate *middleware.AuthGate, onWrite echo.MiddlewareFunc) {
	if onWrite == nil {
		onWrite = passThrough
	}
	g := e.Group("/api/auth")

	// Browser redirect to Google and the callback it returns to.
	g.GET("/google", a.Google)
	g.GET("/google/callback", a.Callback, onWrite)
	g.GET("/failure", a.Failure)

	// Token checks.  verify takes the token in the body and needs no session.
	g.POST("/verify", a.Verify)
	g.GET("/me", a.Me, gate.RequireAuth())
	g.POST("/logout", a.Logout, gate.RequireAuth())
}
