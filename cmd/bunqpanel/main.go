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

	bunqadapter "github.com/ericfisherdev/bunqpanel/internal/adapter/driven/bunq"
	pdfadapter "github.com/ericfisherdev/bunqpanel/internal/adapter/driven/pdf"
	sqliteadapter "github.com/ericfisherdev/bunqpanel/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/bunqpanel/internal/adapter/driving/http"
	"github.com/ericfisherdev/bunqpanel/internal/application"
	"github.com/ericfisherdev/bunqpanel/internal/config"
	"github.com/ericfisherdev/bunqpanel/internal/vault"
)

const purgeInterval = time.Hour

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"api_url", cfg.APIURL,
		"session_ttl", cfg.SessionTTL,
		"invoice_dir", cfg.InvoiceDir,
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
	logger := slog.Default()
	sessionStore := sqliteadapter.NewSessionRepo(db, cfg.SecretKey, cfg.SessionTTL)
	profileStore := sqliteadapter.NewProfileRepo(db)
	bankClients := bunqadapter.NewFactory(bunqadapter.Options{
		BaseURL:    cfg.APIURL,
		HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
		Logger:     logger,
	})
	renderer := pdfadapter.NewClient(cfg.PDFURL, cfg.HTTPTimeout, logger)
	v := vault.New(vault.WithIterations(cfg.KDFIterations))

	// 6. Create application services.
	sessionSvc := application.NewSessionService(v, bankClients, sessionStore, profileStore, cfg.DeviceDescription, logger)
	bankSvc := application.NewBankService(logger)
	invoiceSvc := application.NewInvoiceService(renderer, sessionStore, profileStore, cfg.InvoiceDir, logger)
	installSvc := application.NewInstallService(v, bunqadapter.RSAKeyGenerator{}, bankClients, profileStore, logger)

	// 7. Purge expired session values and orphaned invoice files in the background.
	go purgeExpired(ctx, sessionStore, invoiceSvc, cfg.SessionTTL)

	// 8. Create HTTP handler.
	apiHandler := httphandler.NewHandler(sessionSvc, bankSvc, invoiceSvc, installSvc, db, logger)
	handler := httphandler.NewServeMux(apiHandler, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.HTTPTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
			stop()
		}
	}()

	slog.Info("bunqpanel started", "listen_addr", cfg.ListenAddr)

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

// purgeExpired deletes expired session store rows, and invoice files older
// than ttl, until ctx is canceled.
func purgeExpired(ctx context.Context, store *sqliteadapter.SessionRepo, invoices *application.InvoiceService, ttl time.Duration) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PurgeExpired(ctx)
			if err != nil {
				slog.Error("session purge failed", "error", err)
			} else if n > 0 {
				slog.Info("expired session values purged", "count", n)
			}

			files, err := invoices.SweepStale(ttl)
			if err != nil {
				slog.Error("invoice sweep failed", "error", err)
			} else if files > 0 {
				slog.Info("stale invoice files removed", "count", files)
			}
		}
	}
}
