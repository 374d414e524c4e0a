package config // package config loads application configuration from environment variables

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; nested groups are parsed the same way.  Only
// JWT_SECRET is mandatory, everything else has a default suitable for local
// development.
type Config struct {
	Env           string   `env:"APP_ENV" envDefault:"dev"`                    // application environment (dev/test/production)
	Port          string   `env:"APP_PORT" envDefault:"3001"`                  // HTTP port to listen on
	PublicBaseURL string   `env:"PUBLIC_BASE_URL"`                             // external URL prefix used in hypermedia links
	CORSOrigins   []string `env:"CORS_ORIGIN" envSeparator:"," envDefault:"*"` // allowed CORS origins
	LogLevel      string   `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string   `env:"LOG_FORMAT"` // "json" or "text"; empty picks by environment

	DB        DBConfig
	Auth      AuthConfig
	Google    GoogleConfig
	Redis     RedisConfig
	Cache     CacheConfig
	AMQP      AMQPConfig
	Telemetry TelemetryConfig
}

// DBConfig describes how to reach the relational store.  A socket path takes
// precedence over host/port.  Driver "sqlite" ignores everything except
// SQLitePath and the pool settings.
type DBConfig struct {
	Driver          string        `env:"DB_DRIVER" envDefault:"mysql"`
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            string        `env:"DB_PORT" envDefault:"3306"`
	User            string        `env:"DB_USER" envDefault:"root"`
	Password        string        `env:"DB_PASSWORD"`
	Name            string        `env:"DB_NAME" envDefault:"user_service_db"`
	SocketPath      string        `env:"DB_SOCKET_PATH"`
	SSL             bool          `env:"DB_SSL"`
	SSLCA           string        `env:"DB_SSL_CA"`
	SSLSkipVerify   bool          `env:"DB_SSL_SKIP_VERIFY"`
	SQLitePath      string        `env:"DB_SQLITE_PATH" envDefault:"auth-user-service.db"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	BootstrapSchema bool          `env:"DB_BOOTSTRAP_SCHEMA"`
}

// AuthConfig controls bearer token issuance.
type AuthConfig struct {
	JWTSecret   string        `env:"JWT_SECRET,required,notEmpty"`
	JWTTTL      time.Duration `env:"JWT_TTL" envDefault:"24h"`
	JWTIssuer   string        `env:"JWT_ISSUER" envDefault:"auth-user-service"`
	StaffEmails []string      `env:"AUTH_STAFF_EMAILS" envSeparator:","`
}

// GoogleConfig holds the OAuth client registration.  The login routes answer
// 503 when ClientID or ClientSecret is empty.
type GoogleConfig struct {
	ClientID     string        `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string        `env:"GOOGLE_CLIENT_SECRET"`
	CallbackURL  string        `env:"GOOGLE_CALLBACK_URL" envDefault:"/api/auth/google/callback"`
	StateTTL     time.Duration `env:"GOOGLE_STATE_TTL" envDefault:"10m"`
}

// Enabled reports whether a Google client is configured.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// AMQPConfig points at the broker that receives user lifecycle events.  An
// empty URL disables publishing.
type AMQPConfig struct {
	URL      string `env:"AMQP_URL"`
	Exchange string `env:"AMQP_EXCHANGE" envDefault:"users.events"`
}

// TelemetryConfig enables OTLP trace export when an endpoint is present.
type TelemetryConfig struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"true"`
	Endpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"auth-user-service"`
}

// Load reads an optional .env file, then parses the environment into a
// Config.  A missing JWT_SECRET or a malformed value is returned as an error
// so main can exit before anything is opened.
func Load() (Config, error) {
	_ = godotenv.Load() // .env is optional and never overrides the real environment
	return parse()
}

func parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// IsProduction reports whether secure cookies and JSON logs should be used.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production") || strings.EqualFold(c.Env, "prod")
}

// BaseURL returns the public URL prefix without a trailing slash.
func (c Config) BaseURL() string {
	return strings.TrimRight(c.PublicBaseURL, "/")
}

func (c *Config) normalize() {
	c.CORSOrigins = trimList(c.CORSOrigins)
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
	c.Auth.StaffEmails = trimList(c.Auth.StaffEmails)
	c.DB.Driver = strings.ToLower(strings.TrimSpace(c.DB.Driver))
	if c.DB.MaxOpenConns < 1 {
		c.DB.MaxOpenConns = 10
	}
	if c.Auth.JWTTTL <= 0 {
		c.Auth.JWTTTL = 24 * time.Hour
	}
	// A relative callback is resolved against the public URL, or localhost when unset.
	if strings.HasPrefix(c.Google.CallbackURL, "/") {
		base := c.BaseURL()
		if base == "" {
			base = "http://localhost:" + c.Port
		}
		c.Google.CallbackURL = base + c.Google.CallbackURL
	}
	c.Cache.normalize()
	c.Redis.normalize()
}

func trimList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, strings.TrimRight(v, "/"))
		}
	}
	return out
}
