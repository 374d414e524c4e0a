package database

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/auth-user-service/internal/config"
)

func TestMySQLDSNUsesSocketWhenSet(t *testing.T) {
	dsn, err := MySQLDSN(config.DBConfig{
		User: "svc", Password: "pw", Name: "users", Host: "db", Port: "3306",
		SocketPath: "/cloudsql/project:region:instance",
	})
	if err != nil {
		t.Fatalf("dsn: %v", err)
	}
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	if parsed.Net != "unix" || parsed.Addr != "/cloudsql/project:region:instance" {
		t.Fatalf("expected unix socket, got %s(%s)", parsed.Net, parsed.Addr)
	}
	if !parsed.ParseTime {
		t.Fatalf("expected parseTime")
	}
}

func TestMySQLDSNTCPAndTLS(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.DBConfig
		tls  string
	}{
		{"plain", config.DBConfig{Host: "db", Port: "3307"}, ""},
		{"verified", config.DBConfig{Host: "db", Port: "3307", SSL: true}, "true"},
		{"skip verify", config.DBConfig{Host: "db", Port: "3307", SSL: true, SSLSkipVerify: true}, "skip-verify"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dsn, err := MySQLDSN(tc.cfg)
			if err != nil {
				t.Fatalf("dsn: %v", err)
			}
			if !strings.Contains(dsn, "tcp(db:3307)") {
				t.Fatalf("expected tcp address in %q", dsn)
			}
			hasTLS := strings.Contains(dsn, "tls=")
			if tc.tls == "" && hasTLS {
				t.Fatalf("unexpected tls in %q", dsn)
			}
			if tc.tls != "" && !strings.Contains(dsn, "tls="+tc.tls) {
				t.Fatalf("expected tls=%s in %q", tc.tls, dsn)
			}
		})
	}
}

func TestMySQLDSNRejectsMissingCA(t *testing.T) {
	_, err := MySQLDSN(config.DBConfig{Host: "db", Port: "3306", SSL: true, SSLCA: filepath.Join(t.TempDir(), "nope.pem")})
	if err == nil {
		t.Fatal("expected error for unreadable CA bundle")
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := Open(config.DBConfig{Driver: "oracle"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSQLiteSchemaAndCloseOnce(t *testing.T) {
	g, err := Open(config.DBConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "users.db")})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	if g.Dialect() != SQLite {
		t.Fatalf("dialect = %q", g.Dialect())
	}
	for i := 0; i < 2; i++ {
		if err := g.EnsureSchema(ctx); err != nil {
			t.Fatalf("ensure schema (pass %d): %v", i, err)
		}
	}
	var n int
	if err := g.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected empty table, got %d", n)
	}
	if err := g.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := g.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
