package database

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/iliyamo/auth-user-service/internal/config"
)

// Dialect names the SQL flavour behind a Gateway.
type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite"
)

// Gateway owns the process-wide connection pool.  It is opened once at
// startup and passed to every repository.
type Gateway struct {
	db      *sql.DB
	dialect Dialect

	closeOnce sync.Once
	closeErr  error
}

// Exec runs a statement that returns no rows.
func (g *Gateway) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return g.db.ExecContext(ctx, query, args...)
}

// Query runs a statement that returns rows.
func (g *Gateway) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return g.db.QueryContext(ctx, query, args...)
}

// QueryRow runs a statement expected to return at most one row.
func (g *Gateway) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return g.db.QueryRowContext(ctx, query, args...)
}

// Dialect reports which driver backs the pool.
func (g *Gateway) Dialect() Dialect { return g.dialect }

// DB exposes the raw handle for health checks.
func (g *Gateway) DB() *sql.DB { return g.db }

// Close drains and releases the pool.  Only the first call does any work;
// later calls return the first result.
func (g *Gateway) Close() error {
	if g == nil || g.db == nil {
		return nil
	}
	g.closeOnce.Do(func() {
		g.closeErr = g.db.Close()
	})
	return g.closeErr
}

// Open connects to the store selected by cfg.Driver and verifies the
// connection.  A bad host or credential fails here, not on the first request.
func Open(cfg config.DBConfig) (*Gateway, error) {
	switch cfg.Driver {
	case "", string(MySQL):
		return OpenMySQL(cfg)
	case string(SQLite):
		return OpenSQLite(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
}

// OpenMySQL builds a DSN from cfg and pings the server.
func OpenMySQL(cfg config.DBConfig) (*Gateway, error) {
	dsn, err := MySQLDSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	// Pool settings
	maxOpen := cfg.MaxOpenConns
	if maxOpen < 1 {
		maxOpen = 10
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return &Gateway{db: db, dialect: MySQL}, nil
}

// MySQLDSN normalizes the connection settings into a driver DSN.  A socket
// path wins over host/port.  With SSL on, an explicit CA bundle is
// registered as a named TLS profile; otherwise the system roots are used
// unless verification is switched off.
func MySQLDSN(cfg config.DBConfig) (string, error) {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.DBName = cfg.Name
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}

	if cfg.SocketPath != "" {
		mc.Net = "unix"
		mc.Addr = cfg.SocketPath
	} else {
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, cfg.Port)
	}

	if cfg.SSL {
		switch {
		case cfg.SSLCA != "":
			pem, err := os.ReadFile(cfg.SSLCA)
			if err != nil {
				return "", fmt.Errorf("read DB_SSL_CA: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(pem) {
				return "", errors.New("DB_SSL_CA contains no certificates")
			}
			tc := &tls.Config{
				RootCAs:            pool,
				MinVersion:         tls.VersionTLS12,
				InsecureSkipVerify: cfg.SSLSkipVerify,
			}
			if err := mysql.RegisterTLSConfig("user-service", tc); err != nil {
				return "", fmt.Errorf("register tls config: %w", err)
			}
			mc.TLSConfig = "user-service"
		case cfg.SSLSkipVerify:
			mc.TLSConfig = "skip-verify"
		default:
			mc.TLSConfig = "true"
		}
	}
	return mc.FormatDSN(), nil
}

// OpenSQLite opens (creating if needed) a SQLite file on a single-connection
// pool.
func OpenSQLite(path string) (*Gateway, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return &Gateway{db: db, dialect: SQLite}, nil
}
