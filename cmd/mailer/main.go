package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-marketplace-orders/internal/config"
	kafkax "github.com/ariefcatur/go-marketplace-orders/internal/kafka"
	"github.com/ariefcatur/go-marketplace-orders/internal/logging"
	"github.com/ariefcatur/go-marketplace-orders/internal/mailer"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/redisx"
	"github.com/ariefcatur/go-marketplace-orders/internal/tracing"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	service := cfg.ServiceName + "-mailer"
	log := logging.New(service, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, service, cfg.OTelEndpoint)
	if err != nil {
		log.Error().Err(err).Msg("tracing")
		os.Exit(1)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &mailer.Service{
		Dedup:  redisx.NewDedup(rdb, "mailer", redisx.TTLDedup),
		Sender: mailer.LogSender{Log: log},
		From:   cfg.MailerFrom,
		Log:    log,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.MailerGroup, orders.TopicOrderPlaced, cfg.MailerWorkers, log)
	log.Info().
		Str("group", cfg.MailerGroup).
		Str("topic", orders.TopicOrderPlaced).
		Int("workers", cfg.MailerWorkers).
		Msg("mailer consumer started")

	// Start kembali setelah ctx selesai dan semua worker berhenti
	if err := cons.Start(ctx, svc.HandleOrderPlaced); err != nil {
		log.Error().Err(err).Msg("consumer exit")
		os.Exit(1)
	}
	log.Info().Msg("mailer stopped")
}
