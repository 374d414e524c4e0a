package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"context"
	"errors"
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/auth-user-service/internal/model"
	"github.com/iliyamo/auth-user-service/internal/repository"
	"github.com/iliyamo/auth-user-service/internal/utils"
)

// TokenVerifier checks a raw bearer token.
type TokenVerifier interface {
	Verify(raw string) (*utils.Claims, error)
}

// UserLookup loads the live user named by a token.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// AuthGate authenticates requests from their bearer token.  The user is
// always reloaded so deleted or deactivated accounts lose access before
// their token expires.
type AuthGate struct {
	tokens TokenVerifier
	users  UserLookup
	log    logrus.FieldLogger
}

func NewAuthGate(tokens TokenVerifier, users UserLookup, log logrus.FieldLogger) *AuthGate {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AuthGate{tokens: tokens, users: users, log: log}
}

// authFailure describes why a request could not be authenticated.
type authFailure struct {
	status  int
	message string
	err     error
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header.  The scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func (g *AuthGate) authenticate(c echo.Context) (*model.User, *utils.Claims, *authFailure) {
	raw, ok := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	if !ok {
		return nil, nil, &authFailure{http.StatusUnauthorized, "missing bearer token", nil}
	}
	claims, err := g.tokens.Verify(raw)
	if err != nil {
		return nil, nil, &authFailure{http.StatusUnauthorized, "invalid or expired token", err}
	}
	u, err := g.users.GetByID(c.Request().Context(), claims.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, nil, &authFailure{http.StatusUnauthorized, "user no longer exists", err}
	}
	if err != nil {
		return nil, nil, &authFailure{http.StatusInternalServerError, "could not load user", err}
	}
	if !u.IsActive() {
		return nil, nil, &authFailure{http.StatusForbidden, "account is " + string(u.Status), nil}
	}
	return u, claims, nil
}

// RequireAuth rejects requests without a valid token for an active user:
// 401 for a missing or invalid token or a deleted user, 403 for an inactive
// one.  On success the user and claims are stored on the context.
func (g *AuthGate) RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, claims, fail := g.authenticate(c)
			if fail != nil {
				if fail.status == http.StatusInternalServerError {
					g.log.WithError(fail.err).WithField("request_id", requestID(c)).Error("auth gate: user lookup failed")
				}
				return deny(c, fail.status, fail.message)
			}
			setPrincipal(c, u, claims)
			return next(c)
		}
	}
}

// OptionalAuth identifies the caller when it can and otherwise lets the
// request through anonymously.  Failures are never reported to the client.
func (g *AuthGate) OptionalAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if u, claims, fail := g.authenticate(c); fail == nil {
				setPrincipal(c, u, claims)
			} else if fail.status == http.StatusInternalServerError {
				g.log.WithError(fail.err).WithField("request_id", requestID(c)).Warn("optional auth: user lookup failed")
			}
			return next(c)
		}
	}
}

func requestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}
