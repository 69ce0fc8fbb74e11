// Command verifyd consumes verification submissions from Kafka, runs each through the
// pipeline and publishes the outcome. It serves /healthz and /metrics on OPS_ADDR.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"docverify/internal/bootstrap"
	"docverify/internal/platform/config"
	"docverify/internal/platform/httpserver"
	"docverify/internal/platform/kafka"
	"docverify/internal/platform/logger"
	"docverify/internal/platform/metrics"
	httptransport "docverify/internal/transport/http"
	kafkatransport "docverify/internal/transport/kafka"
)

const shutdownGrace = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "verifyd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	app, err := bootstrap.Build(ctx, cfg, log, reg, bootstrap.Options{RequireKafka: true})
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Error("shutdown cleanup failed", "error", err)
		}
	}()

	kcfg := cfg.Kafka()
	client, err := kafka.NewConsumer(kcfg)
	if err != nil {
		return err
	}
	defer client.Close()

	handler := kafkatransport.NewSubmissionHandler(app.Service, app.Producer, kcfg.OutcomesTopic,
		kafkatransport.WithLogger(log),
		kafkatransport.WithMetrics(kafkatransport.NewMetrics(reg)),
	)
	consumer := kafkatransport.NewConsumer(client, handler, kcfg.Concurrency, log)

	opsOpts := []httptransport.Option{
		httptransport.WithLogger(log),
		httptransport.WithRecords(app.Records),
	}
	for name, check := range app.Checks {
		opsOpts = append(opsOpts, httptransport.WithCheck(name, check))
	}
	srv := httpserver.New(cfg.OpsAddr, httptransport.NewRouter(httptransport.NewHandler(reg, opsOpts...)))

	log.Info("verifyd starting",
		"ops_addr", cfg.OpsAddr,
		"storage", cfg.StorageBackend,
		"submissions_topic", kcfg.SubmissionsTopic,
		"outcomes_topic", kcfg.OutcomesTopic,
		"concurrency", kcfg.Concurrency,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, shutdownGrace)
	})
	g.Go(func() error {
		// the consumer stopping for any reason stops the ops server too
		defer cancel()
		return consumer.Run(gctx)
	})
	err = g.Wait()
	if err != nil {
		log.Error("verifyd stopped", "error", err)
		return err
	}
	log.Info("verifyd stopped")
	return nil
}
