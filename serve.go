package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"nimble.viom.tech/site/handlers"
	"nimble.viom.tech/site/internal/checkout"
	"nimble.viom.tech/site/internal/config"
	"nimble.viom.tech/site/internal/email"
	"nimble.viom.tech/site/internal/fulfillment"
	"nimble.viom.tech/site/internal/leads"
	"nimble.viom.tech/site/internal/licensing"
	"nimble.viom.tech/site/internal/logger"
	"nimble.viom.tech/site/internal/ratelimit"
	"nimble.viom.tech/site/internal/version"
	"nimble.viom.tech/site/storage"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func runServer(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger.Configure(os.Stderr, logger.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	err = sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Release:          version.Version,
		TracesSampleRate: 1.0,
	})
	if err != nil {
		return fmt.Errorf("sentry.Init: %w", err)
	}
	defer sentry.Flush(2 * time.Second)

	if missing := cfg.MissingOptional(); len(missing) > 0 {
		logger.Warn("Optional settings missing, related features are degraded", map[string]interface{}{
			"missing": missing,
		})
	}

	store, err := storage.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to open subscriber store: %w", err)
	}
	defer store.Close()

	mailer, err := email.New(cfg)
	if err != nil {
		return err
	}

	deps := wire(cfg, store, mailer, checkout.NewStripeBilling(cfg.StripeSecretKey), fulfillment.NewStripeSubscriptions())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewHttpServer(deps),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("NIMBLE site starting", map[string]interface{}{
			"version":    version.Version,
			"port":       cfg.Port,
			"static_dir": cfg.StaticDir,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

// wire assembles the route dependencies. billing and subscriptions are the
// Stripe adapters outside of tests.
func wire(cfg *config.Config, store storage.SubscriberStore, mailer *email.Mailer, billing checkout.Billing, subscriptions fulfillment.Subscriptions) handlers.Deps {
	cryptlex := licensing.NewClient(cfg.CryptlexAPIURL, cfg.CryptlexToken, cfg.CryptlexTimeout)

	deps := handlers.Deps{
		Config:     cfg,
		Licenses:   licensing.NewGate(cryptlex),
		Checkout:   checkout.NewOrchestrator(billing, cfg.PriceTable()),
		Contact:    leads.NewContact(mailer, cfg.ContactRecipient),
		Newsletter: leads.NewNewsletter(store, mailer, cfg.AdminAddress()),
		Webhook:    fulfillment.NewHandler(cfg.StripeWebhookSecret, fulfillment.NewService(cryptlex, subscriptions)),
		Version:    version.Version,
	}
	if cfg.FormRateLimit > 0 {
		deps.RateLimit = ratelimit.New(cfg.FormRateLimit, cfg.FormRateWindow)
	}
	return deps
}
