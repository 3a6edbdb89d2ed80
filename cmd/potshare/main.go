package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"potshare/internal/amqp"
	"potshare/internal/cache"
	"potshare/internal/cli"
	apphttp "potshare/internal/http"
	applog "potshare/internal/log"
	"potshare/internal/metrics"
	"potshare/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentApp)
	logger.Info("Starting potshare", "port", cfg.Port, "driver", cfg.DBDriver)

	repo := cli.InitRepository(logger, cfg)
	defer repo.Close()

	m := metrics.New()

	// Ledger events are optional; without a broker writes are only cached.
	var (
		publisher  services.EventPublisher
		amqpClient *amqp.Client
	)
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, ledger events disabled", applog.FieldError, err)
		} else {
			amqpClient = client
			publisher = client
			logger.Info("AMQP publisher ready", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP_URL not set, ledger events disabled")
	}

	balanceCache := cache.NewLRUCache[services.PotBalances](cfg.BalanceCacheSize, cfg.BalanceCacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(balanceCache)

	balances := services.NewBalanceService(repo, balanceCache, m)
	notifier := services.NewNotifier(publisher, balances, m)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Pots:          services.NewPotService(repo),
		Participants:  services.NewParticipantService(repo, repo, balances),
		Contributions: services.NewContributionService(repo, notifier),
		Expenses:      services.NewExpenseService(repo, notifier),
		Balances:      balances,
	}, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger.WithComponent(applog.ComponentHTTP),
		Metrics:            m,
		Ready:              repo.Ping,
	})

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 15 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", applog.FieldError, err)
			}
		}
	})
	cacheManager.StartCleanup(ctx, time.Minute)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
