// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobboard-premium/internal/config"
	"jobboard-premium/internal/infra/api"
	pg "jobboard-premium/internal/infra/db/postgres"
	"jobboard-premium/internal/infra/logging"
	"jobboard-premium/internal/infra/metrics"
	"jobboard-premium/internal/infra/payment"
	red "jobboard-premium/internal/infra/redis"
	"jobboard-premium/internal/infra/sched"
	"jobboard-premium/internal/usecase"
)

// set by -ldflags at build time
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, unredacted references)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	if cfg.Database.Migrate {
		if err := pg.Migrate(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("migrate")
		}
		logger.Info().Msg("schema applied")
	}

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	userRepo := pg.NewUserRepoCacheDecorator(pg.NewPostgresUserRepo(pool), redisClient, cfg.Redis.TTL)
	payRepo := pg.NewPaymentRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Processor ----
	processor := payment.NewStripeProcessor(cfg.Payment.Stripe, logger)

	// ---- Use cases ----
	subUC := usecase.NewSubscriptionUseCase(userRepo, payRepo, txManager, cfg.Subscription.ValidityWindow(), logger)
	payUC := usecase.NewPaymentUseCase(payRepo, processor, subUC, cfg.Payment, logger)
	hookUC := usecase.NewWebhookUseCase(payRepo, processor, subUC, logger)

	// ---- Stale payment sweeper ----
	if cfg.Reconciler.Enabled {
		reconciler := sched.NewPaymentReconciler(payUC, payRepo, cfg.Reconciler, logger)
		reconciler.Start(ctx)
		defer reconciler.Stop()
	}

	// ---- Pool gauges ----
	go func() {
		t := time.NewTicker(15 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				metrics.ObservePool(pool.Stat())
			}
		}
	}()

	// ---- HTTP ----
	auth := api.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	health := func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		return nil
	}
	srv := api.NewServer(payUC, subUC, hookUC, auth, rateLimiter, cfg, health, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Str("version", version).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}
