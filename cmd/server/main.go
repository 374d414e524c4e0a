package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/auth-user-service/internal/config"
	"github.com/iliyamo/auth-user-service/internal/database"
	"github.com/iliyamo/auth-user-service/internal/handler"
	"github.com/iliyamo/auth-user-service/internal/logger"
	"github.com/iliyamo/auth-user-service/internal/middleware"
	"github.com/iliyamo/auth-user-service/internal/oauth"
	"github.com/iliyamo/auth-user-service/internal/queue"
	"github.com/iliyamo/auth-user-service/internal/repository"
	"github.com/iliyamo/auth-user-service/internal/router"
	"github.com/iliyamo/auth-user-service/internal/service"
	"github.com/iliyamo/auth-user-service/internal/telemetry"
	"github.com/iliyamo/auth-user-service/internal/utils"
)

func main() {
	cfg, err := config.Load() // Load environment config
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.IsProduction())
	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(cfg config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		log.WithError(err).Warn("tracing disabled")
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(c); err != nil {
			log.WithError(err).Warn("flush traces")
		}
	}()

	// The pool is opened once here and injected; a bad host or credential
	// stops startup.
	gw, err := database.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer func() {
		if err := gw.Close(); err != nil {
			log.WithError(err).Warn("close database")
		}
	}()
	if cfg.DB.BootstrapSchema {
		if err := gw.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.Warn("redis unavailable: response cache off, oauth state kept in memory")
	} else {
		defer func() { _ = rdb.Close() }()
	}

	events := newPublisher(cfg.AMQP, log)
	defer func() { _ = events.Close() }()

	users := repository.NewUserRepo(gw)
	tokens := utils.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.JWTTTL)
	gate := middleware.NewAuthGate(tokens, users, log)
	bridge := service.NewIdentityBridge(users, events, log, cfg.Auth.StaffEmails)

	var provider handler.OAuthProvider
	if cfg.Google.Enabled() {
		provider = oauth.NewGoogle(cfg.Google)
	} else {
		log.Warn("GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set: google login disabled")
	}
	authH := handler.NewAuthHandler(provider, stateStore(rdb), bridge, tokens, log, handler.AuthOptions{
		StateTTL:     cfg.Google.StateTTL,
		SecureCookie: cfg.IsProduction(),
		BaseURL:      cfg.BaseURL(),
	})
	userH := handler.NewUserHandler(users, events, log, cfg.BaseURL())

	e := newEcho(cfg, log)
	invalidate := middleware.InvalidateCache(cfg.Cache, rdb, log)
	router.RegisterRoutes(e, gw.DB())
	router.RegisterAuth(e, authH, gate, invalidate)
	router.RegisterUsers(e, userH, gate, router.UserRouteOptions{
		ReadCache:  middleware.NewRedisCache(cfg.Cache, rdb),
		Invalidate: invalidate,
	})

	addr := ":" + cfg.Port // Address string with port
	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(sctx)
}

func newEcho(cfg config.Config, log *logrus.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(log)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowCredentials: true,
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType},
	}))
	e.Use(echomw.BodyLimit("1M"))
	return e
}

// newPublisher connects to the broker when one is configured.  Events are
// dropped rather than failing startup when it cannot be reached.
func newPublisher(cfg config.AMQPConfig, log logrus.FieldLogger) queue.Publisher {
	if cfg.URL == "" {
		return queue.Noop{}
	}
	p, err := queue.NewAMQPPublisher(cfg.URL, cfg.Exchange)
	if err != nil {
		log.WithError(err).Warn("rabbitmq unavailable: user events disabled")
		return queue.Noop{}
	}
	return p
}

func stateStore(rdb *redis.Client) oauth.StateStore {
	if rdb == nil {
		return oauth.NewMemoryStateStore()
	}
	return oauth.NewRedisStateStore(rdb)
}
