package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"gorm.io/gorm"

	"mensago/internal/config"
	"mensago/internal/db"
	"mensago/internal/db/mock"
	applog "mensago/internal/log"
	"mensago/internal/server"
)

// serverLifecycle is the slice of *server.Server that main drives, split out
// so run can be exercised with stubs.
type serverLifecycle interface {
	Start() error
	Stop() error
}

var (
	loadConfigFunc      = config.Load
	setLogLevelFunc     = applog.SetLevel
	newMockDatabaseFunc = mock.New
	configureDatabase   = db.Configure
	newServerFunc       = func(cfg server.Config) (serverLifecycle, error) {
		return server.New(cfg)
	}
	subscribeShutdownSig = func() (<-chan os.Signal, func()) {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		return sigCh, func() { signal.Stop(sigCh) }
	}
)

func main() {
	os.Exit(run(context.Background()))
}

func run(ctx context.Context) int {
	cfg, err := loadConfigFunc()
	if err != nil {
		applog.Error(ctx, "failed to load configuration", "error", err)
		return 1
	}

	if err := setLogLevelFunc(cfg.Logging.Level); err != nil {
		applog.Error(ctx, "invalid log level", "level", cfg.Logging.Level, "error", err)
		return 1
	}

	database, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		applog.Error(ctx, "failed to configure database", "error", err)
		return 1
	}

	srv, err := newServerFunc(server.Config{
		Addr: cfg.Server.Addr,
		Session: server.SessionConfig{
			Lifetime:     cfg.Auth.Session.Lifetime,
			CookieName:   cfg.Auth.Session.CookieName,
			CookieDomain: cfg.Auth.Session.CookieDomain,
			CookieSecure: cfg.Auth.Session.CookieSecure,
		},
		Database: database,
		Imports:  cfg.Imports,
		Photos:   cfg.Photos,
	})
	if err != nil {
		applog.Error(ctx, "failed to build server", "error", err)
		return 1
	}

	errCh := make(chan error, 1)
	go func() {
		applog.Info(ctx, "starting http server", "addr", cfg.Server.Addr)
		errCh <- srv.Start()
	}()

	sigCh, unsubscribe := subscribeShutdownSig()
	defer unsubscribe()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Error(ctx, "server encountered an error", "error", err)
			return 1
		}
	case sig := <-sigCh:
		applog.Info(ctx, "shutting down http server", "signal", sig.String())
		if err := srv.Stop(); err != nil {
			applog.Error(ctx, "graceful shutdown failed", "error", err)
			return 1
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Error(ctx, "server encountered an error", "error", err)
			return 1
		}
	}

	return 0
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.UseMock {
		applog.Info(ctx, "using in-memory mock database")
		return newMockDatabaseFunc(ctx)
	}
	return configureDatabase(cfg)
}
