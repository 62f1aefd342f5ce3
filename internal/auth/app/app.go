package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tillhq/till/internal/auth/blacklist"
	httpapi "github.com/tillhq/till/internal/auth/http"
	"github.com/tillhq/till/internal/auth/notify"
	"github.com/tillhq/till/internal/auth/service"
	"github.com/tillhq/till/internal/auth/store"
	"github.com/tillhq/till/internal/auth/store/drivers/sqlite"
	"github.com/tillhq/till/pkg/authtoken"
	"github.com/tillhq/till/pkg/cryptox"
	"github.com/tillhq/till/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db        store.Store
	codec     *authtoken.Codec
	blacklist blacklist.Blacklist
	attempts  blacklist.Attempts
	redis     *redis.Client // nil when running with the in-memory blacklist

	// Services
	sessionService      *service.SessionService
	twoFactorService    *service.TwoFactorService
	verificationService *service.VerificationService
	resetService        *service.ResetService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "till-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	codec, err := authtoken.NewCodec(cfg.SigningSecret, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}
	app.codec = codec

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initBlacklist()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
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

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGrace)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initBlacklist picks Redis when an address is configured, otherwise falls
// back to process-local maps. The in-memory variant does not survive restarts
// and does not share revocations across replicas.
func (app *Application) initBlacklist() {
	if app.cfg.RedisAddr == "" {
		app.logger.Warn("REDIS_ADDR not set, using in-memory revocation store; " +
			"revocations are lost on restart and not shared across replicas")
		app.blacklist = blacklist.NewMemoryBlacklist()
		app.attempts = blacklist.NewMemoryAttempts()
		return
	}

	client := redis.NewClient(&redis.Options{
		Addr:     app.cfg.RedisAddr,
		Password: app.cfg.RedisPassword,
	})
	app.redis = client
	app.blacklist = blacklist.NewRedisBlacklist(client)
	app.attempts = blacklist.NewRedisAttempts(client)
	app.logger.Info("redis revocation store enabled", "addr", app.cfg.RedisAddr)
}

func (app *Application) dispatcher() notify.Dispatcher {
	if app.cfg.SMTPHost == "" {
		app.logger.Warn("SMTP_HOST not set, outbound mail will be logged instead of sent")
		return notify.LogDispatcher{}
	}
	return &notify.SMTPDispatcher{
		Host: app.cfg.SMTPHost,
		Port: app.cfg.SMTPPort,
		User: app.cfg.SMTPUser,
		Pass: app.cfg.SMTPPass,
		From: app.cfg.SMTPFrom,
	}
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	dispatcher := app.dispatcher()

	app.sessionService = &service.SessionService{
		Codec:        app.codec,
		Store:        app.db,
		Blacklist:    app.blacklist,
		AccessTTL:    app.cfg.AccessTokenTTL,
		RefreshTTL:   app.cfg.RefreshTokenTTL,
		ChallengeTTL: app.cfg.ChallengeTTL,
	}

	app.twoFactorService = &service.TwoFactorService{
		Codec:     app.codec,
		Store:     app.db,
		Blacklist: app.blacklist,
		Attempts:  app.attempts,
		Sessions:  app.sessionService,
		Issuer:    "Till",
	}

	app.verificationService = &service.VerificationService{
		Store:          app.db,
		Dispatcher:     dispatcher,
		CodeTTL:        app.cfg.VerificationTTL,
		ResendInterval: app.cfg.ResendInterval,
		MaxAttempts:    app.cfg.VerifyAttempts,
	}

	app.resetService = &service.ResetService{
		Store:      app.db,
		Dispatcher: dispatcher,
		TokenTTL:   app.cfg.ResetTTL,
		ResetURL:   app.cfg.ResetURL,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingRate,
	)
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.codec,
		app.blacklist,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.SessionService = app.sessionService
	router.TwoFactorService = app.twoFactorService
	router.VerificationService = app.verificationService
	router.ResetService = app.resetService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
