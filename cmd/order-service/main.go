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
	"github.com/food-ordering/saga-go/internal/handler"
	"github.com/food-ordering/saga-go/internal/messaging"
	"github.com/food-ordering/saga-go/internal/metrics"
	"github.com/food-ordering/saga-go/internal/order"
	"github.com/food-ordering/saga-go/internal/outbox"
	"github.com/food-ordering/saga-go/internal/saga"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.With().Str("service", "order-service").Logger()

	log.Info().Msg("Starting order-service...")

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

	paymentOutbox := outbox.NewHelper(outbox.NewPostgresStore(pool, "payment_outbox", "order_status"))
	approvalOutbox := outbox.NewHelper(outbox.NewPostgresStore(pool, "restaurant_approval_outbox", "order_status"))

	domainService := order.NewDomainService()
	orders := order.NewRepository(pool)
	customers := order.NewCustomerRepository(pool)
	restaurants := order.NewRestaurantRepository(pool)
	app := order.NewApplicationService(domainService, orders, customers, restaurants, paymentOutbox, transactor)

	paymentSaga := saga.NewPaymentSaga(domainService, orders, paymentOutbox, approvalOutbox, transactor)
	approvalSaga := saga.NewApprovalSaga(domainService, orders, paymentOutbox, approvalOutbox, transactor)

	kafkaClient := messaging.NewClient(cfg.Kafka.Brokers)
	paymentPublisher := messaging.NewEventPublisher(kafkaClient.NewWriter(cfg.Kafka.PaymentRequestTopic))
	defer paymentPublisher.Close()
	approvalPublisher := messaging.NewEventPublisher(kafkaClient.NewWriter(cfg.Kafka.ApprovalRequestTopic))
	defer approvalPublisher.Close()

	outboxMetrics := metrics.NewOutboxMetrics("order")
	sagaMetrics := metrics.NewSagaMetrics("order")

	// the payment flow also re-publishes rows re-armed by a rejected
	// approval, hence COMPENSATING in its pending set
	paymentScheduler := outbox.NewScheduler("payment", paymentOutbox, paymentPublisher,
		cfg.Outbox.SchedulerInterval, cfg.Outbox.SchedulerInitialDelay, cfg.Outbox.SchedulerBatchSize, outboxMetrics,
		outbox.SagaStatusStarted, outbox.SagaStatusCompensating)
	approvalScheduler := outbox.NewScheduler("approval", approvalOutbox, approvalPublisher,
		cfg.Outbox.SchedulerInterval, cfg.Outbox.SchedulerInitialDelay, cfg.Outbox.SchedulerBatchSize, outboxMetrics,
		outbox.SagaStatusProcessing)

	paymentCleaner := outbox.NewCleaner("payment", paymentOutbox, cfg.Outbox.CleanerInterval,
		outbox.SagaStatusSucceeded, outbox.SagaStatusFailed, outbox.SagaStatusCompensated)
	approvalCleaner := outbox.NewCleaner("approval", approvalOutbox, cfg.Outbox.CleanerInterval,
		outbox.SagaStatusSucceeded, outbox.SagaStatusFailed, outbox.SagaStatusCompensated)

	paymentResponses := messaging.NewListener(
		kafkaClient.NewReader(cfg.Kafka.PaymentResponseTopic, cfg.Kafka.ConsumerGroup),
		messaging.PaymentResponseHandler(paymentSaga, sagaMetrics))
	approvalResponses := messaging.NewListener(
		kafkaClient.NewReader(cfg.Kafka.ApprovalResponseTopic, cfg.Kafka.ConsumerGroup),
		messaging.ApprovalResponseHandler(approvalSaga, sagaMetrics))

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	handler.NewOrderHandler(app).RegisterRoutes(router)
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
	group.Go(func() error { return paymentScheduler.Run(ctx) })
	group.Go(func() error { return approvalScheduler.Run(ctx) })
	group.Go(func() error { return paymentCleaner.Run(ctx) })
	group.Go(func() error { return approvalCleaner.Run(ctx) })
	group.Go(func() error { return paymentResponses.Run(ctx) })
	group.Go(func() error { return approvalResponses.Run(ctx) })
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
		log.Error().Err(err).Msg("Order-service stopped with error")
		os.Exit(1)
	}

	log.Info().Msg("Order-service stopped gracefully.")
}
