// Package oauth implements the Google authorization-code flow used for
// login: building the consent URL, exchanging the code and reading the
// user's profile.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/iliyamo/auth-user-service/internal/config"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// ErrExchange is returned when the provider rejects the code or the profile
// request fails.
var ErrExchange = errors.New("oauth exchange failed")

// Profile is the subset of the Google userinfo document the service uses.
// Email is empty unless Google reports it as verified.
type Profile struct {
	Subject    string
	Email      string
	GivenName  string
	FamilyName string
	Name       string
}

// Google drives the authorization-code flow with PKCE.
type Google struct {
	conf        *oauth2.Config
	userInfoURL string
}

// GoogleOption customizes a Google provider.
type GoogleOption func(*Google)

// WithEndpoints points the provider at other authorization, token and
// userinfo URLs.  Tests use it to talk to a local fake.
func WithEndpoints(authURL, tokenURL, userInfoURL string) GoogleOption {
	return func(g *Google) {
		g.conf.Endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams}
		g.userInfoURL = userInfoURL
	}
}

// NewGoogle builds a provider from the client registration in cfg.
func NewGoogle(cfg config.GoogleConfig, opts ...GoogleOption) *Google {
	g := &Google{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     endpoints.Google,
		},
		userInfoURL: googleUserInfoURL,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// AuthCodeURL returns the consent page URL for state.  verifier must be the
// value later passed to Exchange.
func (g *Google) AuthCodeURL(state, verifier string) string {
	return g.conf.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades code for an access token and fetches the profile.
func (g *Google) Exchange(ctx context.Context, code, verifier string) (Profile, error) {
	tok, err := g.conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return Profile{}, fmt.Errorf("%w: token: %v", ErrExchange, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return Profile{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.conf.Client(ctx, tok).Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: userinfo: %v", ErrExchange, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("%w: userinfo status %d", ErrExchange, resp.StatusCode)
	}

	var payload struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		GivenName     string `json:"given_name"`
		FamilyName    string `json:"family_name"`
		Name          string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Profile{}, fmt.Errorf("%w: decode userinfo: %v", ErrExchange, err)
	}
	if payload.Sub == "" {
		return Profile{}, fmt.Errorf("%w: userinfo without subject", ErrExchange)
	}
	p := Profile{
		Subject:    payload.Sub,
		GivenName:  strings.TrimSpace(payload.GivenName),
		FamilyName: strings.TrimSpace(payload.FamilyName),
		Name:       strings.TrimSpace(payload.Name),
	}
	if payload.EmailVerified {
		p.Email = strings.TrimSpace(payload.Email)
	}
	return p, nil
}
