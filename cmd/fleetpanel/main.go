package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	platformadapter "github.com/routeintel/fleetpanel/internal/adapter/driven/platform"
	sqliteadapter "github.com/routeintel/fleetpanel/internal/adapter/driven/sqlite"
	httphandler "github.com/routeintel/fleetpanel/internal/adapter/driving/http"
	"github.com/routeintel/fleetpanel/internal/application"
	"github.com/routeintel/fleetpanel/internal/config"
	"github.com/routeintel/fleetpanel/internal/domain/model"
	"github.com/routeintel/fleetpanel/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"reconcile_interval", cfg.ReconcileInterval,
		"addin_id", cfg.AddInID,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.Migrate(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire local store adapters.
	credentialStore := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
	auditStore := sqliteadapter.NewAuditRepo(db)
	if cfg.SecretKey == nil {
		slog.Info("FLEETPANEL_SECRET_KEY not set, platform credentials will not be persisted")
	}

	// 6. Resolve platform credentials: stored credentials take priority over
	// env vars.
	creds := model.PlatformCredentials{
		Server:   cfg.PlatformServer,
		Database: cfg.PlatformDatabase,
		Username: cfg.PlatformUsername,
		Password: cfg.PlatformPassword,
	}
	if stored, err := credentialStore.Load(ctx); err == nil && stored != nil {
		creds = *stored
		slog.Info("using stored platform credentials", "server", creds.Server, "username", creds.Username)
	} else if err != nil && !errors.Is(err, driven.ErrEncryptionKeyNotSet) {
		slog.Warn("could not load stored platform credentials", "error", err)
	}

	// 7. Create platform client (absent until credentials are configured).
	var client driven.PlatformClient
	if creds.Complete() {
		client = platformadapter.NewClient(creds, cfg.AddInID)
		slog.Info("platform client created", "server", creds.Server, "database", creds.Database)
	} else {
		slog.Info("no platform credentials configured, reconciliation disabled until credentials are provided via API")
	}
	provider := application.NewPlatformClientProvider(client)

	// 8. Create and start the reconcile loop.
	reconciler := application.NewReconcileService(provider, cfg.ReconcileInterval)
	go reconciler.Start(ctx)

	// 9. Create the credential write service.
	credSvc := application.NewCredentialService(provider, reconciler, auditStore)

	// 10. Create HTTP handler and register routes.
	newClient := func(c model.PlatformCredentials) driven.PlatformClient {
		return platformadapter.NewClient(c, cfg.AddInID)
	}
	apiHandler := httphandler.NewHandler(reconciler, credSvc, provider, credentialStore, auditStore, newClient, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	// 11. Log startup complete.
	slog.Info("fleetpanel started",
		"listen_addr", cfg.ListenAddr,
		"reconcile_interval", cfg.ReconcileInterval,
	)

	// 12. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 13. Graceful shutdown with 10s timeout for HTTP server drain.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
