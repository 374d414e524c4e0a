package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-user-service/internal/repository"
)

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestToAPIError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{repository.ErrUserNotFound, http.StatusNotFound, "not_found"},
		{fmt.Errorf("wrapped: %w", repository.ErrEmailExists), http.StatusConflict, "email_exists"},
		{repository.ErrGoogleIDTaken, http.StatusConflict, "conflict"},
		{repository.ErrInvalidSort, http.StatusBadRequest, "validation_error"},
		{repository.ErrInvalidFilter, http.StatusBadRequest, "validation_error"},
		{repository.ErrInvalidUser, http.StatusBadRequest, "validation_error"},
		{validationError("bad"), http.StatusBadRequest, "validation_error"},
		{echo.ErrNotFound, http.StatusNotFound, "not_found"},
		{echo.ErrMethodNotAllowed, http.StatusMethodNotAllowed, "method_not_allowed"},
		{echo.NewHTTPError(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge, "validation_error"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		got := toAPIError(tt.err)
		if got.Status != tt.status || got.Code != tt.code {
			t.Errorf("toAPIError(%v) = %d %s, want %d %s", tt.err, got.Status, got.Code, tt.status, tt.code)
		}
	}
}

func TestErrorHandlerHidesInternalErrors(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(quietLog())
	e.GET("/boom", func(echo.Context) error { return errors.New("dsn user:secret@tcp(db)") })
	e.GET("/api/auth/boom", func(echo.Context) error { return repository.ErrUserNotFound })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	var body map[string]any
	decodeInto(t, rec, &body)
	if rec.Code != http.StatusInternalServerError || body["error"] != "internal_error" || body["message"] != "internal server error" {
		t.Fatalf("500 body = %d %v", rec.Code, body)
	}
	if _, ok := body["success"]; ok {
		t.Fatal("success flag outside /api/auth")
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/boom", nil))
	body = nil
	decodeInto(t, rec, &body)
	if rec.Code != http.StatusNotFound || body["success"] != false {
		t.Fatalf("auth error body = %d %v", rec.Code, body)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	body = nil
	decodeInto(t, rec, &body)
	if rec.Code != http.StatusNotFound || body["error"] != "not_found" {
		t.Fatalf("unknown route = %d %v", rec.Code, body)
	}
}
