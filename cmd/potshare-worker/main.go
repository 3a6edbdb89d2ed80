package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"potshare/internal/amqp"
	"potshare/internal/backend"
	"potshare/internal/cli"
	applog "potshare/internal/log"
	"potshare/internal/metrics"
	"potshare/internal/services"
	"potshare/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentWorker)
	logger.Info("Starting potshare-worker", "export_interval", cfg.ExportInterval)

	repo := cli.InitRepository(logger, cfg)
	defer repo.Close()

	m := metrics.New()

	exporterCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid exporter configuration", applog.FieldError, err)
		os.Exit(1)
	}
	exp, err := backend.NewFactory(logger.Logger).CreateExporter(context.Background(), exporterCfg)
	if err != nil {
		logger.Error("Failed to initialize exporter", applog.FieldError, err, "type", exporterCfg.Type)
		os.Exit(1)
	}
	if exp.Cleanup != nil {
		defer func() { _ = exp.Cleanup() }()
	}

	// The worker reads straight from the store; the API process owns the cache.
	balances := services.NewBalanceService(repo, nil, m)
	exportWorker := worker.NewExportWorker(repo, balances, exp.Exporter, m, 4)

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		amqpClient = client
	}

	var metricsSrv *http.Server
	if cfg.WorkerMetricsPort != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", m.Handler())
		mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("ok"))
		})
		metricsSrv = &http.Server{Addr: ":" + cfg.WorkerMetricsPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server error", applog.FieldError, err)
			}
		}()
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", applog.FieldError, err)
			}
		}
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(ctx)
		}
	})

	// Recover from events missed while the worker was down.
	exportWorker.StartupExport(ctx)

	if amqpClient != nil {
		go func() {
			err := amqpClient.Consume(ctx, exportWorker.HandleLedgerEvent)
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, amqp.ErrClientClosed) {
				logger.Error("Message consumption failed", applog.FieldError, err)
			}
		}()
	} else {
		logger.Info("AMQP_URL not set, relying on periodic export only")
	}

	go exportWorker.RunPeriodic(ctx, cfg.ExportInterval)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
