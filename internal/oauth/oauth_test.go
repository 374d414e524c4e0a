package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/auth-user-service/internal/config"
)

// fakeGoogle serves a token endpoint and a userinfo endpoint.  The code
// "good" is accepted; anything else gets a 400.
func fakeGoogle(t *testing.T, profile map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("code") != "good" || r.PostForm.Get("code_verifier") == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(profile)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGoogle(srv *httptest.Server) *Google {
	return NewGoogle(config.GoogleConfig{
		ClientID: "client", ClientSecret: "secret", CallbackURL: "http://localhost:3001/api/auth/google/callback",
	}, WithEndpoints(srv.URL+"/auth", srv.URL+"/token", srv.URL+"/userinfo"))
}

func TestAuthCodeURL(t *testing.T) {
	g := NewGoogle(config.GoogleConfig{ClientID: "client", CallbackURL: "http://cb"})
	raw := g.AuthCodeURL("st4te", "verifier-verifier-verifier-verifier-verifier")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	q := u.Query()
	if u.Host != "accounts.google.com" {
		t.Fatalf("unexpected host %q", u.Host)
	}
	if q.Get("state") != "st4te" || q.Get("client_id") != "client" || q.Get("redirect_uri") != "http://cb" {
		t.Fatalf("unexpected query %v", q)
	}
	if q.Get("code_challenge_method") != "S256" || q.Get("code_challenge") == "" {
		t.Fatalf("expected pkce challenge, got %v", q)
	}
}

func TestExchangeReturnsProfile(t *testing.T) {
	srv := fakeGoogle(t, map[string]any{
		"sub": "1234", "email": "ada@example.edu", "email_verified": true,
		"given_name": "Ada", "family_name": "Lovelace", "name": "Ada Lovelace",
	})
	p, err := newTestGoogle(srv).Exchange(context.Background(), "good", "v")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	want := Profile{Subject: "1234", Email: "ada@example.edu", GivenName: "Ada", FamilyName: "Lovelace", Name: "Ada Lovelace"}
	if p != want {
		t.Fatalf("got %+v, want %+v", p, want)
	}
}

func TestExchangeDropsUnverifiedEmail(t *testing.T) {
	srv := fakeGoogle(t, map[string]any{"sub": "1", "email": "x@example.edu", "email_verified": false})
	p, err := newTestGoogle(srv).Exchange(context.Background(), "good", "v")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if p.Email != "" {
		t.Fatalf("expected unverified email dropped, got %q", p.Email)
	}
}

func TestExchangeRejectsBadCode(t *testing.T) {
	srv := fakeGoogle(t, map[string]any{"sub": "1"})
	if _, err := newTestGoogle(srv).Exchange(context.Background(), "bad", "v"); !errors.Is(err, ErrExchange) {
		t.Fatalf("expected ErrExchange, got %v", err)
	}
}

func TestMemoryStateStoreSingleUse(t *testing.T) {
	s := NewMemoryStateStore()
	ctx := context.Background()
	if err := s.Save(ctx, "abc", "ver", time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	v, err := s.Consume(ctx, "abc")
	if err != nil || v != "ver" {
		t.Fatalf("consume = %q, %v", v, err)
	}
	if _, err := s.Consume(ctx, "abc"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on reuse, got %v", err)
	}
	if _, err := s.Consume(ctx, "never"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for unknown state, got %v", err)
	}
}

func TestMemoryStateStoreExpiry(t *testing.T) {
	s := NewMemoryStateStore()
	now := time.Now()
	s.now = func() time.Time { return now }
	_ = s.Save(context.Background(), "abc", "ver", time.Minute)
	now = now.Add(2 * time.Minute)
	if _, err := s.Consume(context.Background(), "abc"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected expired state rejected, got %v", err)
	}
}

func TestRedisStateStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	s := NewRedisStateStore(rdb)
	ctx := context.Background()
	state, verifier, err := NewState()
	if err != nil {
		t.Fatalf("new state: %v", err)
	}
	if err := s.Save(ctx, state, verifier, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Consume(ctx, state)
	if err != nil || got != verifier {
		t.Fatalf("consume = %q, %v", got, err)
	}
	if _, err := s.Consume(ctx, state); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on reuse, got %v", err)
	}
}
