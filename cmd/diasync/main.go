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

	geminiadapter "github.com/ericfisherdev/diasync/internal/adapter/driven/gemini"
	memoryadapter "github.com/ericfisherdev/diasync/internal/adapter/driven/memory"
	shareadapter "github.com/ericfisherdev/diasync/internal/adapter/driven/share"
	sqliteadapter "github.com/ericfisherdev/diasync/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/diasync/internal/adapter/driving/http"
	"github.com/ericfisherdev/diasync/internal/application"
	"github.com/ericfisherdev/diasync/internal/config"
	"github.com/ericfisherdev/diasync/internal/domain/port/driven"
	"github.com/ericfisherdev/diasync/internal/telemetry"
)

// loginBurst lets one full discovery pass over the built-in candidate set run
// without waiting on the login limiter.
const loginBurst = 12

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (optional .env first, then the environment).
	envFile := os.Getenv("DIASYNC_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := config.LoadEnvFile(envFile); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetLogLoggerLevel(cfg.LogLevel)
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"sync_interval", cfg.SyncInterval,
		"reauth_every_sync", cfg.ReauthEverySync,
		"credentials_persisted", cfg.HasSecretKey(),
		"insights_enabled", cfg.GeminiAPIKey != "",
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
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
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters.
	readingStore := sqliteadapter.NewReadingRepo(db)
	statusStore := sqliteadapter.NewSyncStatusRepo(db)

	var credentialStore driven.CredentialStore
	if cfg.HasSecretKey() {
		credentialStore = sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
	} else {
		credentialStore = memoryadapter.NewCredentialStore()
		slog.Warn("DIASYNC_SECRET_KEY not set, share credentials are kept in memory and lost on restart")
	}

	metrics := telemetry.NewCollector()
	shareClient := shareadapter.NewClient(cfg.RequestTimeout, cfg.LoginsPerMinute, loginBurst)

	candidates := cfg.Candidates
	if candidates == nil {
		candidates = shareadapter.DefaultCandidates()
	}

	// 6. Create the ingestion core.
	discovery := application.NewEndpointDiscovery(shareClient, candidates, metrics)
	sessions := application.NewSessionManager(discovery, application.WithReauthEveryCall(cfg.ReauthEverySync))
	ingestion := application.NewIngestionClient(
		application.NewAccountStore(credentialStore),
		sessions,
		shareClient,
		readingStore,
		statusStore,
		metrics,
		cfg.LookbackMinutes,
		cfg.MaxCount,
	)

	if status, err := statusStore.Get(ctx); err == nil {
		metrics.SetConnected(status.Connected)
	}

	// 7. Optional background sync.
	var poller httphandler.Poller
	if cfg.SyncInterval > 0 {
		pollSvc := application.NewPollService(ingestion, readingStore, cfg.SyncInterval)
		go pollSvc.Start(ctx)
		poller = pollSvc
	} else {
		slog.Info("background sync disabled, set DIASYNC_SYNC_INTERVAL to enable")
	}

	// 7b. Create read-side services.
	glucoseSvc := application.NewGlucoseService(readingStore, cfg.TargetLow, cfg.TargetHigh)
	healthSvc := application.NewHealthService(db, statusStore)

	var generator driven.InsightGenerator
	if cfg.GeminiAPIKey != "" {
		gen, err := geminiadapter.NewGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			slog.Warn("insight generator unavailable", "error", err)
		} else {
			generator = gen
		}
	}
	insightSvc := application.NewInsightService(generator, readingStore)

	// 8. Create HTTP handler and register routes.
	apiHandler := httphandler.NewHandler(ingestion, glucoseSvc, insightSvc, healthSvc, poller, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, metrics.Handler(), slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout*time.Duration(len(candidates)) + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
			stop()
		}
	}()

	slog.Info("diasync started",
		"listen_addr", cfg.ListenAddr,
		"candidates", len(candidates),
	)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 10. Graceful shutdown with 10s timeout for in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
