package middleware

// identity.go defines helper functions shared across middleware files and
// handlers.  They read the principal that AuthGate stored on the Echo
// context.  When no user is authenticated the helpers return nil, and
// principalClass returns "guest".

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-user-service/internal/model"
	"github.com/iliyamo/auth-user-service/internal/utils"
)

const (
	userKey   = "user"
	claimsKey = "claims"
)

// CurrentUser returns the authenticated user or nil.
func CurrentUser(c echo.Context) *model.User {
	u, _ := c.Get(userKey).(*model.User)
	return u
}

// CurrentClaims returns the verified token claims or nil.
func CurrentClaims(c echo.Context) *utils.Claims {
	cl, _ := c.Get(claimsKey).(*utils.Claims)
	return cl
}

func setPrincipal(c echo.Context, u *model.User, cl *utils.Claims) {
	c.Set(userKey, u)
	c.Set(claimsKey, cl)
}

// principalClass separates anonymous callers, who see redacted users, from
// authenticated ones.
func principalClass(c echo.Context) string {
	if CurrentUser(c) == nil {
		return "guest"
	}
	return "auth"
}

// deny writes the standard error body and stops the chain.
func deny(c echo.Context, status int, message string) error {
	code := "unauthorized"
	switch status {
	case http.StatusForbidden:
		code = "forbidden"
	case http.StatusInternalServerError:
		code = "internal_error"
	}
	return c.JSON(status, echo.Map{"error": code, "message": message})
}
