package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/atlastravel/backoffice-backend/api/routes"
	"github.com/atlastravel/backoffice-backend/internal/audit"
	"github.com/atlastravel/backoffice-backend/internal/email"
	"github.com/atlastravel/backoffice-backend/internal/export"
	"github.com/atlastravel/backoffice-backend/internal/quotes"
	"github.com/atlastravel/backoffice-backend/internal/tracking"
	"github.com/atlastravel/backoffice-backend/pkg/config"
	"github.com/atlastravel/backoffice-backend/pkg/db"
	"github.com/atlastravel/backoffice-backend/pkg/logger"
	"github.com/atlastravel/backoffice-backend/pkg/metrics"
	"github.com/atlastravel/backoffice-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	quoteMetrics := metrics.NewQuoteMetrics(registry)

	auditor, err := audit.NewRecorder(audit.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit recorder", err)
		os.Exit(1)
	}

	tokens, err := tracking.NewTokenService(cfg.Tracking)
	if err != nil {
		logg.Error(context.Background(), "failed to create token service", err)
		os.Exit(1)
	}

	transport, err := email.NewSendgridTransport(cfg.Sendgrid, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create email transport", err)
		os.Exit(1)
	}
	dispatcher, err := email.NewDispatcher(transport, cfg.Email, quoteMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create email dispatcher", err)
		os.Exit(1)
	}

	quotesRepo := quotes.NewRepository(dbClient.DB())

	quotesService, err := quotes.NewService(quotesRepo, dispatcher, tokens, auditor, logg, cfg.Tracking, cfg.Quotes)
	if err != nil {
		logg.Error(context.Background(), "failed to create quotes service", err)
		os.Exit(1)
	}
	trackingService, err := tracking.NewService(tokens, quotesRepo, auditor, quoteMetrics, logg, cfg.Tracking)
	if err != nil {
		logg.Error(context.Background(), "failed to create tracking service", err)
		os.Exit(1)
	}
	exportService, err := export.NewService(quotesRepo, auditor, cfg.Export)
	if err != nil {
		logg.Error(context.Background(), "failed to create export service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Redis:    redisClient,
			Gatherer: registry,
			Quotes:   quotesService,
			Tracking: trackingService,
			Export:   exportService,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runExpirySweep(shutdownCtx, quotesService, cfg.Quotes, logg)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutdown signal received")
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(drainCtx); err != nil {
		logg.Error(ctx, "graceful shutdown failed", err)
	}

	if err := multierr.Combine(redisClient.Close(), dbClient.Close()); err != nil {
		logg.Error(ctx, "error closing dependencies", err)
	}
}

// runExpirySweep periodically moves stale sent and viewed quotes to expired.
func runExpirySweep(ctx context.Context, svc quotes.Service, cfg config.QuotesConfig, logg *logger.Logger) {
	interval := cfg.ExpirySweep
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := svc.ExpireStale(ctx, time.Now())
			if err != nil {
				logg.Error(ctx, "expiry sweep failed", err)
				continue
			}
			if count > 0 {
				logg.Info(logg.WithField(ctx, "expired", count), "expiry sweep completed")
			}
		}
	}
}
