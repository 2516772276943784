package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/food-ordering/saga-go/internal/config"
	"github.com/food-ordering/saga-go/internal/db"
	"github.com/food-ordering/saga-go/internal/messaging"
	"github.com/food-ordering/saga-go/internal/metrics"
	"github.com/food-ordering/saga-go/internal/outbox"
	"github.com/food-ordering/saga-go/internal/payment"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.With().Str("service", "payment-service").Logger()

	log.Info().Msg("Starting payment-service...")

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	postgres, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer postgres.Close()

	if cfg.Postgres.MigrationsPath != "" {
		if err := postgres.ApplyMigrations(cfg.Postgres); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
	}

	pool := postgres.Pool
	transactor := db.NewPgxTransactor(pool)

	responseOutbox := outbox.NewHelper(outbox.NewPostgresStore(pool, "order_outbox", "payment_status"))

	processor := payment.NewProcessor(
		payment.NewDomainService(),
		payment.NewRepository(pool),
		payment.NewCreditEntryRepository(pool),
		payment.NewCreditHistoryRepository(pool),
		responseOutbox,
		transactor,
	)

	kafkaClient := messaging.NewClient(cfg.Kafka.Brokers)
	responsePublisher := messaging.NewEventPublisher(kafkaClient.NewWriter(cfg.Kafka.PaymentResponseTopic))
	defer responsePublisher.Close()

	outboxMetrics := metrics.NewOutboxMetrics("payment")

	responseScheduler := outbox.NewScheduler("order-response", responseOutbox, responsePublisher,
		cfg.Outbox.SchedulerInterval, cfg.Outbox.SchedulerInitialDelay, cfg.Outbox.SchedulerBatchSize, outboxMetrics,
		outbox.SagaStatusProcessing, outbox.SagaStatusCompensated, outbox.SagaStatusFailed)
	responseCleaner := outbox.NewCleaner("order-response", responseOutbox, cfg.Outbox.CleanerInterval,
		outbox.SagaStatusProcessing, outbox.SagaStatusCompensated, outbox.SagaStatusFailed)

	requests := messaging.NewListener(
		kafkaClient.NewReader(cfg.Kafka.PaymentRequestTopic, cfg.Kafka.ConsumerGroup),
		messaging.PaymentRequestHandler(processor))

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	router.Handle("/metrics", metrics.Handler())

	server := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return responseScheduler.Run(ctx) })
	group.Go(func() error { return responseCleaner.Run(ctx) })
	group.Go(func() error { return requests.Run(ctx) })
	group.Go(func() error {
		log.Info().Str("port", cfg.AppPort).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Payment-service stopped with error")
		os.Exit(1)
	}

	log.Info().Msg("Payment-service stopped gracefully.")
}
