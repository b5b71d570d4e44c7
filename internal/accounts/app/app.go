package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pixelgrove/pixelgrove/internal/accounts/cache"
	httpapi "github.com/pixelgrove/pixelgrove/internal/accounts/http"
	"github.com/pixelgrove/pixelgrove/internal/accounts/service"
	"github.com/pixelgrove/pixelgrove/internal/accounts/store"
	"github.com/pixelgrove/pixelgrove/internal/accounts/store/drivers/sqlite"
	"github.com/pixelgrove/pixelgrove/pkg/cryptox"
	"github.com/pixelgrove/pixelgrove/pkg/jwtx"
	"github.com/pixelgrove/pixelgrove/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the accounts service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	sessions *cache.SessionCache
	codec    *jwtx.Codec

	authService *service.AuthService

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("ACCOUNTS_SECRET_KEY is required")
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "accounts-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(cfg.PepperFile)

	codec, err := jwtx.NewCodec(cfg.SecretKey, cfg.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}
	app.codec = codec

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initCache(); err != nil {
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore(app.cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		db.Close()
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	app.db = db
	return nil
}

func (app *Application) initCache() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sessions, err := cache.New(ctx, cache.Config{
		URL:      app.cfg.RedisURL,
		Password: app.cfg.RedisPassword,
		TTL:      app.cfg.SessionTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to session cache: %w", err)
	}

	app.sessions = sessions
	return nil
}

func (app *Application) initServices() {
	app.authService = &service.AuthService{
		Store:      app.db,
		Sessions:   app.sessions,
		Codec:      app.codec,
		AccessTTL:  app.cfg.AccessTokenTTL,
		RefreshTTL: app.cfg.RefreshTokenTTL,
		EmailTTL:   app.cfg.EmailTokenTTL,
	}
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.cfg.BaseURL, app.db, app.sessions, app.logger)
	router.AuthService = app.authService
	router.EmailSender = service.LogEmailSender{}
	router.ApplyRoutes()

	app.router = router
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("accounts service starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains in-flight requests and releases resources.
func (app *Application) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if err := app.sessions.Close(); err != nil {
		app.logger.Warn("failed to close session cache", "err", err)
	}

	if err := app.db.Close(); err != nil {
		return fmt.Errorf("database close: %w", err)
	}

	app.logger.Info("accounts service stopped")
	return nil
}
