package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Zhima-Mochi/minishop-payment/internal/application/dispatch"
	appPayment "github.com/Zhima-Mochi/minishop-payment/internal/application/payment"
	"github.com/Zhima-Mochi/minishop-payment/internal/config"
	"github.com/Zhima-Mochi/minishop-payment/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-payment/internal/infrastructure/amqp"
	"github.com/Zhima-Mochi/minishop-payment/internal/infrastructure/collaborator"
	"github.com/Zhima-Mochi/minishop-payment/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-payment/internal/infrastructure/kafka"
	infraobs "github.com/Zhima-Mochi/minishop-payment/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-payment/internal/infrastructure/observability/zaplogger"
	memorybus "github.com/Zhima-Mochi/minishop-payment/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-payment/internal/observability"
	"github.com/Zhima-Mochi/minishop-payment/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/minishop-payment/internal/presentation/http"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	baseLogger := logging.MustNewLogger(logging.Options{
		Service: cfg.ServiceName,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
	})
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	logger := zaplogger.New(baseLogger)
	systemLogger := logger.With(
		observability.F("trace_id", "system"),
		observability.F("span_id", "system"),
	)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	tel := infraobs.NewStack("minishop.payment", logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	publisher, closeBroker := newBroker(ctx, cfg, tel)

	client := collaborator.NewHTTPClient(cfg.ClientTimeout)
	payUseCase := appPayment.NewPayUseCase(appPayment.Deps{
		Users:        collaborator.NewUserClient(client, cfg.UserAddr()),
		Carts:        collaborator.NewCartClient(client, cfg.CartAddr()),
		Gateway:      collaborator.NewGatewayClient(client, cfg.PaymentGateway),
		Publisher:    publisher,
		Sales:        tel.Sales,
		IDs:          id.NewUUIDGenerator(),
		PublishDelay: cfg.PublishDelay(),
	}, tel)

	handler := httppresentation.NewHandler(payUseCase, tel.MetricsHandler(), logger, tel)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		systemLogger.Info("http_server_start",
			observability.F("addr", server.Addr),
			observability.F("mq_backend", cfg.MQBackend),
			observability.F("payment_gateway", cfg.PaymentGateway),
			observability.F("publish_delay_ms", cfg.PaymentDelayMS),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error",
				observability.F("error", err),
			)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error",
			observability.F("error", err),
		)
	} else {
		systemLogger.Info("http_server_stopped")
	}

	if err := closeBroker(shutdownCtx); err != nil {
		systemLogger.Warn("broker_close_error",
			observability.F("mq_backend", cfg.MQBackend),
			observability.F("error", err),
		)
	}
}

// newBroker builds the order publisher for the configured backend and returns its shutdown hook.
func newBroker(ctx context.Context, cfg *config.Config, tel observability.Observability) (outbox.Publisher, func(context.Context) error) {
	logger := tel.Logger()

	switch cfg.MQBackend {
	case config.BackendKafka:
		p := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		return p, closer(p)

	case config.BackendMemory:
		bus := memorybus.NewBus(logger)
		dispatch.New(bus, tel).Start()
		bus.Start(ctx)
		return bus, bus.Stop

	default:
		p := amqp.NewPublisher(
			amqp.URL(cfg.AMQPHost, cfg.AMQPUser, cfg.AMQPPassword),
			amqp.Topology{
				Exchange:   cfg.AMQPExchange,
				Queue:      cfg.AMQPQueue,
				RoutingKey: cfg.AMQPRoutingKey,
			},
			logger,
		)
		// The broker may come up after us; the first publish retries the connection.
		if err := p.Connect(ctx); err != nil {
			logger.Warn("amqp_connect_deferred", observability.F("error", err))
		}
		return p, closer(p)
	}
}

func closer(c io.Closer) func(context.Context) error {
	return func(context.Context) error { return c.Close() }
}
