package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/bookshelf-orders/internal/analytics"
	"github.com/joao-fontenele/bookshelf-orders/internal/auth"
	"github.com/joao-fontenele/bookshelf-orders/internal/cart"
	"github.com/joao-fontenele/bookshelf-orders/internal/config"
	"github.com/joao-fontenele/bookshelf-orders/internal/inventory"
	"github.com/joao-fontenele/bookshelf-orders/internal/messaging"
	"github.com/joao-fontenele/bookshelf-orders/internal/notify"
	"github.com/joao-fontenele/bookshelf-orders/internal/objectstore"
	"github.com/joao-fontenele/bookshelf-orders/internal/orders"
	"github.com/joao-fontenele/bookshelf-orders/internal/store"
	"github.com/joao-fontenele/bookshelf-orders/internal/store/memory"
	"github.com/joao-fontenele/bookshelf-orders/internal/store/postgres"
	"github.com/joao-fontenele/bookshelf-orders/internal/telemetry"
	"github.com/joao-fontenele/bookshelf-orders/internal/users"
)

const serviceName = "bookshelf-api"

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if err := cfg.ValidateAPI(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, serviceName, cfg.ServiceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, cfg.ServiceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err, "driver", cfg.StoreDriver)
		os.Exit(1)
	}
	defer func() { _ = st.Close() }()

	objects, uploadsRoot, err := openObjectStore(cfg)
	if err != nil {
		logger.Error("failed to open object store", "error", err, "kind", cfg.ObjectStore)
		os.Exit(1)
	}

	hub := notify.NewHub(logger)
	publishers := notify.Fanout{hub}

	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() { _ = producer.Close() }()
		publishers = append(publishers, producer)
		logger.Info("publishing changes to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	if cfg.AMQPURL != "" {
		amqpPublisher, err := messaging.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Error("failed to connect to amqp", "error", err)
			os.Exit(1)
		}
		defer func() { _ = amqpPublisher.Close() }()
		publishers = append(publishers, amqpPublisher)
		logger.Info("publishing changes to amqp", "exchange", cfg.AMQPExchange)
	}

	orderMetrics, err := telemetry.NewOrderMetrics()
	if err != nil {
		logger.Error("failed to create order metrics", "error", err)
		os.Exit(1)
	}

	authSvc := auth.NewService(st, cfg.JWTSecret, cfg.SessionTTL)
	if cfg.AdminEmail != "" {
		admin, err := authSvc.EnsureAdmin(ctx, auth.RegisterInput{
			Email:    cfg.AdminEmail,
			Username: "admin",
			Password: cfg.AdminPassword,
		})
		if err != nil {
			logger.Error("failed to bootstrap admin account", "error", err)
			os.Exit(1)
		}
		logger.Info("admin account ready", "user_id", admin.ID)
	}

	orderSvc := orders.NewService(st, objects, publishers, orderMetrics, logger)

	mux := http.NewServeMux()
	registerRoutes(mux, routes{
		auth:       auth.NewHandler(authSvc, logger),
		middleware: auth.NewMiddleware(authSvc, logger),
		orders:     orders.NewHandler(orderSvc, hub, logger),
		inventory:  inventory.NewHandler(inventory.NewService(st, logger), logger),
		cart:       cart.NewHandler(cart.NewService(st, logger), logger),
		analytics:  analytics.NewHandler(analytics.NewService(st, logger), logger),
		users:      users.NewHandler(users.NewService(st, logger), logger),
		metrics:    metricsHandler,
		uploads:    uploadsRoot,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(mux, serviceName, otelhttp.WithSpanNameFormatter(telemetry.SpanName)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting api", "port", cfg.Port, "store", cfg.StoreDriver, "object_store", cfg.ObjectStore)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.StoreDriver == "memory" {
		logger.Warn("using in-memory store, data is lost on exit")
		return memory.New(), nil
	}

	db, err := telemetry.OpenDB(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, err
	}
	return postgres.New(db), nil
}

// openObjectStore returns the configured store and, for local storage, the
// directory served under /uploads/.
func openObjectStore(cfg *config.Config) (objectstore.Store, string, error) {
	if cfg.ObjectStore == "s3" {
		s, err := objectstore.NewS3(cfg.S3Region, cfg.S3Bucket)
		return s, "", err
	}

	local, err := objectstore.NewLocal(cfg.LocalStoragePath, cfg.PublicBaseURL)
	if err != nil {
		return nil, "", err
	}
	return local, local.Root(), nil
}
