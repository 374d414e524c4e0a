package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestSystemEndpoints(t *testing.T) {
	e := echo.New()
	e.GET("/", Root)
	e.GET("/health", Health)
	e.GET("/api-docs", Docs)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	var health map[string]any
	decodeInto(t, rec, &health)
	if rec.Code != http.StatusOK || health["status"] != "UP" || health["service"] != ServiceName || health["timestamp"] == "" {
		t.Fatalf("health = %d %v", rec.Code, health)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	var root map[string]any
	decodeInto(t, rec, &root)
	if root["service"] != ServiceName || root["endpoints"] == nil {
		t.Fatalf("root = %v", root)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api-docs", nil))
	var doc struct {
		OpenAPI string                     `json:"openapi"`
		Paths   map[string]json.RawMessage `json:"paths"`
	}
	decodeInto(t, rec, &doc)
	if doc.OpenAPI == "" {
		t.Fatal("docs missing openapi version")
	}
	for _, p := range []string{"/api/users", "/api/users/{id}", "/api/auth/google/callback", "/api/auth/verify", "/health", "/ready"} {
		if _, ok := doc.Paths[p]; !ok {
			t.Errorf("docs missing path %s", p)
		}
	}
}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

func TestReady(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		state  string
	}{
		{"database reachable", nil, http.StatusOK, "UP"},
		{"database down", errors.New("dial tcp: connection refused"), http.StatusServiceUnavailable, "DOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.GET("/ready", Ready(stubPinger{err: tt.err}))
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
			var body map[string]any
			decodeInto(t, rec, &body)
			if rec.Code != tt.status || body["status"] != tt.state {
				t.Fatalf("ready = %d %v", rec.Code, body)
			}
			if tt.err != nil && body["database"] != "unreachable" {
				t.Fatalf("driver error leaked or missing state: %v", body)
			}
		})
	}
}
