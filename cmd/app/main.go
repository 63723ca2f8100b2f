// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"track-billing/internal/application"
	"track-billing/internal/config"
	"track-billing/internal/domain/ports/adapter"
	"track-billing/internal/infra/adapters/audit"
	"track-billing/internal/infra/adapters/catalog"
	payAdapters "track-billing/internal/infra/adapters/payment"
	tele "track-billing/internal/infra/adapters/telegram"
	"track-billing/internal/infra/api"
	"track-billing/internal/infra/api/apiv1"
	pg "track-billing/internal/infra/db/postgres"
	"track-billing/internal/infra/logging"
	"track-billing/internal/infra/metrics"
	red "track-billing/internal/infra/redis"
	"track-billing/internal/infra/sched"
	"track-billing/internal/infra/worker"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "run on in-memory stores with the noop gateway when not configured")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Redis (optional in dev) ----
	var (
		cache   red.RedisClient
		limiter *red.RateLimiter
		locker  sched.Locker
	)
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer rc.Close()
		cache = rc
		limiter = red.NewRateLimiter(rc)
		locker = red.NewLocker(rc)
	}

	// ---- Stores ----
	stores, health := buildStores(ctx, cfg, cache, logger)

	// ---- Payment gateway ----
	var gw adapter.PaymentGateway
	switch cfg.Payment.Provider {
	case "razorpay":
		gw, err = payAdapters.NewRazorpayGateway(cfg.Payment.KeyID, cfg.Payment.KeySecret, cfg.Payment.BaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("razorpay gateway")
		}
	default:
		gw = payAdapters.NewNoopPaymentGateway(cfg.Payment.KeySecret)
	}
	logger.Info().Str("provider", gw.Name()).Msg("payment gateway ready")

	// ---- Audit (async, best effort) ----
	pool := worker.NewPool(cfg.Worker.AuditWorkers, cfg.Worker.AuditQueue, logger)
	pool.Start(ctx)
	defer pool.Stop()

	sinks := []adapter.AuditSink{audit.NewLogSink(logger)}
	if len(cfg.Telegram.AdminIDs) > 0 {
		var bot adapter.TelegramBotAdapter
		switch {
		case cfg.Telegram.Token != "":
			tb, err := tele.NewRealTelegramBotAdapter(&cfg.Telegram)
			if err != nil {
				logger.Error().Err(err).Msg("telegram notifier disabled")
			} else {
				bot = tb
			}
		case *devMode:
			bot = tele.NewNoopBotAdapter(logger)
		}
		if bot != nil {
			sinks = append(sinks, audit.NewTelegramSink(bot, cfg.Telegram.AdminIDs))
		}
	}
	auditSink := audit.NewAsyncSink(audit.MultiSink(sinks), pool, logger)

	// ---- Engine ----
	deps := application.Deps{Gateway: gw, Audit: auditSink}
	if limiter != nil {
		deps.Limiter = limiter
	}
	engine := application.NewEngine(stores, deps, cfg, logger)

	// ---- Background jobs ----
	go func() {
		_ = sched.NewExpiryWorker(cfg.Scheduler.ExpiryInterval, engine.Subscriptions, locker, logger).Run(ctx)
	}()
	go func() {
		_ = sched.NewOrphanSweeper(cfg.Scheduler.SweepInterval, engine.Orders, locker, logger).Run(ctx)
	}()

	// ---- HTTP ----
	v1 := apiv1.NewServer(engine.Orders, engine.Payments, engine.Subscriptions, engine.Access, engine.Usage, logger)
	srv := api.NewServer(cfg.HTTP, v1, apiv1.NewAuthenticator(cfg.Auth.JWTSecret), health, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown requested")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}

// buildStores picks Postgres when configured and the memory store otherwise.
func buildStores(ctx context.Context, cfg *config.Config, cache red.RedisClient, logger *zerolog.Logger) (application.Stores, api.HealthFunc) {
	if cfg.Database.URL == "" {
		logger.Warn().Msg("database.url not set; using in-memory stores")
		cat := catalog.Demo()
		if cfg.Catalog.Path != "" {
			loaded, err := catalog.LoadStaticCatalog(cfg.Catalog.Path)
			if err != nil {
				logger.Fatal().Err(err).Msg("catalog")
			}
			cat = loaded
		}
		return application.MemoryStores(cat), nil
	}

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	go func() {
		<-ctx.Done()
		pool.Close()
	}()
	go pg.ReportPoolStats(ctx, pool, 15*time.Second)

	var subs = pg.NewSubscriptionRepo(pool)
	stores := application.Stores{
		Payments:      pg.NewPaymentRepo(pool),
		Subscriptions: subs,
		Usage:         pg.NewUsageRepo(pool),
		Catalog:       pg.NewCatalogRepo(pool),
	}
	if cache != nil {
		stores.Subscriptions = pg.NewSubscriptionRepoCacheDecorator(subs, cache, cfg.Redis.TTL)
	}
	if cfg.Catalog.Path != "" {
		loaded, err := catalog.LoadStaticCatalog(cfg.Catalog.Path)
		if err != nil {
			logger.Fatal().Err(err).Msg("catalog")
		}
		stores.Catalog = loaded
	}
	return stores, func(ctx context.Context) error { return pool.Ping(ctx) }
}
