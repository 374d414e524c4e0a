package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/auth-user-service/internal/middleware"
	"github.com/iliyamo/auth-user-service/internal/model"
	"github.com/iliyamo/auth-user-service/internal/oauth"
	"github.com/iliyamo/auth-user-service/internal/service"
	"github.com/iliyamo/auth-user-service/internal/utils"
)

const stateCookie = "oauth_state"

// OAuthProvider is the Google client as seen by the login endpoints.
type OAuthProvider interface {
	AuthCodeURL(state, verifier string) string
	Exchange(ctx context.Context, code, verifier string) (oauth.Profile, error)
}

// IdentityResolver maps a federated identity onto a local user.
type IdentityResolver interface {
	Resolve(ctx context.Context, id service.ExternalIdentity) (*model.User, error)
}

// AuthHandler bundles dependencies for auth endpoints.  Provider may be nil
// when no Google client is configured; the login routes then answer 503.
type AuthHandler struct {
	Provider     OAuthProvider
	States       oauth.StateStore
	Bridge       IdentityResolver
	Tokens       *utils.TokenService
	StateTTL     time.Duration
	SecureCookie bool
	Log          logrus.FieldLogger
	links        linker
}

// AuthOptions carries the settings of an AuthHandler that are not
// collaborators.
type AuthOptions struct {
	StateTTL     time.Duration
	SecureCookie bool
	BaseURL      string
}

func NewAuthHandler(p OAuthProvider, states oauth.StateStore, bridge IdentityResolver, tokens *utils.TokenService, log logrus.FieldLogger, opts AuthOptions) *AuthHandler {
	if opts.StateTTL <= 0 {
		opts.StateTTL = 10 * time.Minute
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AuthHandler{
		Provider:     p,
		States:       states,
		Bridge:       bridge,
		Tokens:       tokens,
		StateTTL:     opts.StateTTL,
		SecureCookie: opts.SecureCookie,
		Log:          log,
		links:        linker{base: strings.TrimRight(opts.BaseURL, "/")},
	}
}

// ----- DTOs -----

type authUser struct {
	ID        int64        `json:"id"`
	Email     string       `json:"email"`
	FirstName string       `json:"firstName"`
	LastName  string       `json:"lastName"`
	Role      model.Role   `json:"role"`
	Status    model.Status `json:"status"`
}

type loginResp struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	ExpiresIn int64     `json:"expiresIn"` // seconds
	User      authUser  `json:"user"`
}

type verifyReq struct {
	Token string `json:"token"`
}

var errGoogleDisabled = &APIError{Status: http.StatusServiceUnavailable, Code: "unavailable", Message: "Google login is not configured"}

// Google: GET /api/auth/google redirects to the consent page.  The state is
// kept both in a cookie bound to this browser and in the state store.
func (h *AuthHandler) Google(c echo.Context) error {
	if h.Provider == nil {
		return errGoogleDisabled
	}
	state, verifier, err := oauth.NewState()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.States.Save(ctx, state, verifier, h.StateTTL); err != nil {
		return err
	}
	c.SetCookie(&http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/api/auth",
		MaxAge:   int(h.StateTTL / time.Second),
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusFound, h.Provider.AuthCodeURL(state, verifier))
}

func (h *AuthHandler) clearStateCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     stateCookie,
		Value:    "",
		Path:     "/api/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) fail(c echo.Context, reason string, err error) error {
	entry := h.Log.WithField("reason", reason)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Warn("google login failed")
	return c.Redirect(http.StatusFound, h.links.base+"/api/auth/failure")
}

// Callback: GET /api/auth/google/callback completes the login and returns a
// bearer token.  Rejected or forged callbacks are sent to /api/auth/failure.
func (h *AuthHandler) Callback(c echo.Context) error {
	if h.Provider == nil {
		return errGoogleDisabled
	}
	h.clearStateCookie(c) // single use, whatever the outcome

	if e := c.QueryParam("error"); e != "" {
		return h.fail(c, "provider error: "+e, nil)
	}
	state := c.QueryParam("state")
	code := c.QueryParam("code")
	if state == "" || code == "" {
		return h.fail(c, "missing code or state", nil)
	}
	cookie, err := c.Cookie(stateCookie)
	if err != nil || cookie.Value != state {
		return h.fail(c, "state cookie mismatch", nil)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	verifier, err := h.States.Consume(ctx, state)
	if err != nil {
		return h.fail(c, "unknown state", err)
	}
	profile, err := h.Provider.Exchange(ctx, code, verifier)
	if err != nil {
		return h.fail(c, "code exchange", err)
	}

	u, err := h.Bridge.Resolve(ctx, service.ExternalIdentity{
		Subject:     profile.Subject,
		Email:       profile.Email,
		GivenName:   profile.GivenName,
		FamilyName:  profile.FamilyName,
		DisplayName: profile.Name,
	})
	if errors.Is(err, service.ErrMissingEmail) {
		return h.fail(c, "no verified email", err)
	}
	if err != nil {
		return err
	}
	if !u.IsActive() {
		return &APIError{Status: http.StatusForbidden, Code: "forbidden", Message: "account is " + string(u.Status)}
	}

	tok, err := h.Tokens.Issue(u)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, loginResp{
		Success:   true,
		Message:   "Authentication successful",
		Token:     tok.Token,
		ExpiresAt: tok.Exp,
		ExpiresIn: int64(h.Tokens.TTL() / time.Second),
		User: authUser{
			ID:        u.ID,
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Role:      u.Role,
			Status:    u.Status,
		},
	})
}

// Failure: GET /api/auth/failure
func (h *AuthHandler) Failure(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{
		"success": false,
		"error":   "unauthorized",
		"message": "Google authentication failed",
	})
}

// Me: GET /api/auth/me (RequireAuth)
func (h *AuthHandler) Me(c echo.Context) error {
	u := middleware.CurrentUser(c)
	if u == nil {
		return &APIError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "authentication required"}
	}
	out := echo.Map{"success": true, "user": h.links.view(u, false)}
	if cl := middleware.CurrentClaims(c); cl != nil && cl.ExpiresAt != nil {
		out["tokenExpiresAt"] = cl.ExpiresAt.Time.UTC()
	}
	return c.JSON(http.StatusOK, out)
}

// Verify: POST /api/auth/verify {token}
func (h *AuthHandler) Verify(c echo.Context) error {
	var req verifyReq
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return validationError("invalid JSON body")
	}
	raw := strings.TrimSpace(req.Token)
	if raw == "" {
		return validationError("token is required")
	}
	claims, err := h.Tokens.Verify(raw)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"success": false,
			"valid":   false,
			"error":   "unauthorized",
			"message": "invalid or expired token",
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "valid": true, "decoded": claims})
}

// Logout: POST /api/auth/logout (RequireAuth).  Tokens are stateless, so
// the client discards its copy; it stays valid until it expires.
func (h *AuthHandler) Logout(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Logged out. Discard the token on the client.",
	})
}
