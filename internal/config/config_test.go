package config

import (
	"testing"
	"time"
)

func TestParseRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := parse(); err == nil {
		t.Fatal("parse succeeded without JWT_SECRET")
	}
}

func TestParseDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	cfg, err := parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Port != "3001" || cfg.DB.Driver != "mysql" || cfg.DB.MaxOpenConns != 10 {
		t.Fatalf("defaults: port=%s driver=%s pool=%d", cfg.Port, cfg.DB.Driver, cfg.DB.MaxOpenConns)
	}
	if cfg.Auth.JWTTTL != 24*time.Hour || cfg.Auth.JWTIssuer != "auth-user-service" {
		t.Fatalf("auth defaults: %+v", cfg.Auth)
	}
	if cfg.Google.Enabled() {
		t.Fatal("google enabled without credentials")
	}
	if cfg.Google.CallbackURL != "http://localhost:3001/api/auth/google/callback" {
		t.Fatalf("callback = %s", cfg.Google.CallbackURL)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Fatalf("cors = %v", cfg.CORSOrigins)
	}
	if !cfg.Cache.AllowsMethod("get") || cfg.Cache.AllowsMethod("POST") {
		t.Fatalf("cache methods = %v", cfg.Cache.Methods)
	}
	if cfg.IsProduction() {
		t.Fatal("dev treated as production")
	}
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("APP_ENV", "production")
	t.Setenv("PUBLIC_BASE_URL", "https://users.example.edu/")
	t.Setenv("CORS_ORIGIN", "https://a.example.edu/, ,https://b.example.edu")
	t.Setenv("AUTH_STAFF_EMAILS", " admin@example.edu ,ops@example.edu")
	t.Setenv("GOOGLE_CLIENT_ID", "id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")
	t.Setenv("DB_DRIVER", " SQLite ")
	t.Setenv("DB_MAX_OPEN_CONNS", "0")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("JWT_TTL", "2h")

	cfg, err := parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !cfg.IsProduction() || cfg.BaseURL() != "https://users.example.edu" {
		t.Fatalf("env=%s base=%s", cfg.Env, cfg.BaseURL())
	}
	if cfg.Google.CallbackURL != "https://users.example.edu/api/auth/google/callback" || !cfg.Google.Enabled() {
		t.Fatalf("google = %+v", cfg.Google)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[0] != "https://a.example.edu" {
		t.Fatalf("cors = %v", cfg.CORSOrigins)
	}
	if len(cfg.Auth.StaffEmails) != 2 || cfg.Auth.StaffEmails[0] != "admin@example.edu" {
		t.Fatalf("staff = %v", cfg.Auth.StaffEmails)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.MaxOpenConns != 10 {
		t.Fatalf("db = %+v", cfg.DB)
	}
	if cfg.Redis.Addr != "cache:6380" {
		t.Fatalf("redis addr = %s", cfg.Redis.Addr)
	}
	if cfg.Auth.JWTTTL != 2*time.Hour {
		t.Fatalf("ttl = %v", cfg.Auth.JWTTTL)
	}
}

func TestParseRejectsMalformedValues(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_TTL", "a day")
	if _, err := parse(); err == nil {
		t.Fatal("malformed duration accepted")
	}
}
