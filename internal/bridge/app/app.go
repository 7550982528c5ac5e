package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mcpbridge/mcpbridge/internal/bridge/controlplane"
	httpapi "github.com/mcpbridge/mcpbridge/internal/bridge/http"
	"github.com/mcpbridge/mcpbridge/internal/bridge/metrics"
	"github.com/mcpbridge/mcpbridge/internal/bridge/service"
	"github.com/mcpbridge/mcpbridge/internal/bridge/store"
	"github.com/mcpbridge/mcpbridge/internal/bridge/store/drivers/memory"
	"github.com/mcpbridge/mcpbridge/internal/bridge/store/drivers/sqlite"
	"github.com/mcpbridge/mcpbridge/internal/bridge/stream"
	"github.com/mcpbridge/mcpbridge/pkg/jwtx"
	"github.com/mcpbridge/mcpbridge/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the bridge with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db      store.Store
	signer  *jwtx.HS256
	metrics *metrics.Metrics

	tokenService        *service.TokenService
	authorizeService    *service.AuthorizeService
	housekeepingService *service.HousekeepingService

	streamManager *stream.Manager
	controlPlane  *controlplane.Client

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "mcp-bridge",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initStore(); err != nil {
		return nil, err
	}

	app.signer = jwtx.NewHS256(cfg.JWTSecret, cfg.Issuer)
	app.metrics = metrics.New()

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.housekeepingService.Start()
	defer app.housekeepingService.Stop()

	app.logger.Info("bridge starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"store", app.cfg.StoreDriver,
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return app.shutdownServer()
	})

	err := g.Wait()

	if dbErr := app.db.Close(); dbErr != nil {
		app.logger.Error("error closing store", "error", dbErr)
		if err == nil {
			err = dbErr
		}
	}

	app.logger.Info("bridge stopped")
	return err
}

func (app *Application) shutdownServer() error {
	app.logger.Info("shutting down bridge...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		return app.server.Close()
	}
	return nil
}

// initStore selects a store driver and applies migrations where the driver
// has any.
func (app *Application) initStore() error {
	switch app.cfg.StoreDriver {
	case "sqlite":
		dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", app.cfg.DatabaseFile)
		db, err := sqlite.NewStore(dsn)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := db.ApplyMigrations(); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to apply database migrations: %w", err)
		}
		app.db = db
		app.logger.Info("database migrations applied successfully")

	default:
		app.db = memory.NewStore()
	}

	return nil
}

func (app *Application) initServices() {
	policy := service.ApprovalPolicy{
		ClientID:            app.cfg.OAuthClientID,
		TrustedDomains:      app.cfg.TrustedDomains,
		AllowedRedirectURIs: app.cfg.AllowedRedirectURIs,
	}

	app.tokenService = &service.TokenService{
		Signer:       app.signer,
		Store:        app.db,
		Policy:       policy,
		Issuer:       app.cfg.Issuer,
		AuthProvider: app.cfg.AuthProvider,
		AccessTTL:    app.cfg.AccessTokenTTL,
		RefreshTTL:   app.cfg.RefreshTokenTTL,
	}

	app.authorizeService = &service.AuthorizeService{
		Store:   app.db,
		Policy:  policy,
		CodeTTL: app.cfg.AuthCodeTTL,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)

	app.streamManager = stream.NewManager(
		app.cfg.PublicURL+"/auth/authorize",
		app.metrics,
	)
	if app.cfg.KeepaliveInterval > 0 {
		app.streamManager.KeepaliveInterval = app.cfg.KeepaliveInterval
	}

	app.controlPlane = controlplane.NewClient(app.cfg.RenderAPIURL, app.cfg.RenderAPIKey)
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.signer,
		BuildVersion,
		app.db,
		app.logger,
		app.cfg.DevMode(),
	)

	router.TokenService = app.tokenService
	router.AuthorizeService = app.authorizeService
	router.StreamManager = app.streamManager
	router.ControlPlane = app.controlPlane
	router.Metrics = app.metrics
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
