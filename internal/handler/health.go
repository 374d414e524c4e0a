package handler // declare the package name; contains HTTP handlers

import (
	"context"
	_ "embed"
	"net/http" // net/http provides status codes and response helpers
	"time"

	"github.com/labstack/echo/v4" // echo is the web framework used for this project
)

//go:embed openapi.json
var openAPIDoc []byte

// ServiceName is reported by the health and root endpoints.
const ServiceName = "auth-user-service"

// Health is a liveness endpoint used by load balancers and monitoring
// systems to verify that the service is running.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":    "UP",
		"service":   ServiceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Ready is a readiness endpoint: it answers 503 while the database cannot
// be reached so orchestrators stop routing traffic to this instance.
func Ready(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.Logger().Warnf("readiness: %v", err)
			return c.JSON(http.StatusServiceUnavailable, echo.Map{
				"status":   "DOWN",
				"service":  ServiceName,
				"database": "unreachable",
			})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "UP", "service": ServiceName, "database": "ok"})
	}
}

// Root describes the service and points at its main entry points.
func Root(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"service": ServiceName,
		"message": "User management API with Google OAuth and JWT authentication",
		"endpoints": echo.Map{
			"users":  "/api/users",
			"auth":   "/api/auth/google",
			"health": "/health",
			"docs":   "/api-docs",
		},
	})
}

// Docs serves the OpenAPI document for the API.
func Docs(c echo.Context) error {
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSONCharsetUTF8, openAPIDoc)
}
