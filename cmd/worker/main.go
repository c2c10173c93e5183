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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/caicara-stock/internal/config"
	"github.com/joao-fontenele/caicara-stock/internal/domain"
	"github.com/joao-fontenele/caicara-stock/internal/messaging"
	"github.com/joao-fontenele/caicara-stock/internal/telemetry"
	"github.com/joao-fontenele/caicara-stock/internal/worker"
)

const serviceName = "stock-notifier"

func main() {
	cfg, err := config.Load(serviceName, []string{
		config.KeyKafkaBrokers,
		config.KeyEmailURL,
		config.KeyCatalogURL,
		config.KeyOrdersURL,
	})
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if err := run(cfg, logger); err != nil {
		logger.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	notifier := worker.NewStockNotifier(cfg.EmailURL, cfg.CatalogURL, cfg.OrdersURL, cfg.NotifyEmail, httpClient, logger)

	subscriptions := []struct {
		topic   string
		handler messaging.HandlerFunc
	}{
		{domain.TopicOrderCompleted, notifier.HandleOrderCompleted},
		{domain.TopicProductDisabled, notifier.HandleProductDisabled},
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, sub := range subscriptions {
		consumer := messaging.NewConsumer(cfg.KafkaBrokers, sub.topic, cfg.ConsumerGroup)
		defer func() { _ = consumer.Close() }()

		g.Go(func() error {
			logger.Info("consuming", "topic", consumer.Topic(), "group", cfg.ConsumerGroup)
			return consumer.Consume(ctx, sub.handler)
		})
	}

	logger.Info("starting stock notification worker", "brokers", cfg.KafkaBrokers)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("consumers stopped")
	return nil
}
