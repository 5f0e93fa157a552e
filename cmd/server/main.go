package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/Rubin-11/coffee-tea-shop/config"
	"github.com/Rubin-11/coffee-tea-shop/internal/clients"
	"github.com/Rubin-11/coffee-tea-shop/internal/delivery"
	grpcHandler "github.com/Rubin-11/coffee-tea-shop/internal/delivery/grpc"
	"github.com/Rubin-11/coffee-tea-shop/internal/domain"
	"github.com/Rubin-11/coffee-tea-shop/internal/events"
	"github.com/Rubin-11/coffee-tea-shop/internal/pricing"
	"github.com/Rubin-11/coffee-tea-shop/internal/repository"
	"github.com/Rubin-11/coffee-tea-shop/internal/repository/memory"
	"github.com/Rubin-11/coffee-tea-shop/internal/usecase"
	"github.com/Rubin-11/coffee-tea-shop/pkg/db"
)

const (
	startupTimeout  = 15 * time.Second
	shutdownTimeout = 20 * time.Second
	taskTimeout     = 30 * time.Second
)

func main() {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg := config.LoadConfig(logger)
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
		logger.Warnf("Invalid LOG_LEVEL '%s', using default: %s", cfg.LogLevel, logLevel.String())
	}
	logger.SetLevel(logLevel)
	if logLevel < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	logger.Info("Starting Coffee & Tea Shop service...")

	store, closeStore := openStore(cfg, logger)
	defer closeStore()

	// --- Dependency Injection ---
	engine := pricing.NewEngine(pricing.Policy{
		FreeCourierThreshold: cfg.Pricing.FreeCourierThreshold,
		CourierCost:          cfg.Pricing.CourierCost,
		PostCost:             cfg.Pricing.PostCost,
		DiscountThreshold:    cfg.Pricing.DiscountThreshold,
		DiscountRate:         cfg.Pricing.DiscountRate,
	})

	dispatcher := events.NewDispatcher(cfg.DispatchWorkers, cfg.DispatchQueueSize, taskTimeout, logger)

	var notifier clients.Notifier
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		notifier = clients.NewKafkaNotifier(brokers, cfg.KafkaOrderTopic, logger)
		logger.Infof("Kafka notifier initialized for topic %s", cfg.KafkaOrderTopic)
	} else {
		notifier = clients.NewLogNotifier(logger)
	}
	payments := clients.NewSimulatedPaymentProcessor(cfg.PaymentBaseURL, logger)

	cartUseCase := usecase.NewCartUseCase(store, engine, logger)
	lifecycleUseCase := usecase.NewOrderLifecycleUseCase(store, logger)
	hooks := usecase.NewOrderHooks(dispatcher, notifier, payments, lifecycleUseCase, logger)
	orderUseCase := usecase.NewOrderUseCase(store, engine, cartUseCase, logger,
		usecase.WithNumberAttempts(cfg.OrderNumberMaxAttempts),
		usecase.WithHooks(hooks),
	)
	logger.Info("Use cases initialized.")

	router := delivery.NewRouter(delivery.RouterDeps{
		Carts:      cartUseCase,
		Orders:     orderUseCase,
		Lifecycle:  lifecycleUseCase,
		AdminToken: cfg.AdminToken,
	}, logger)
	if cfg.AdminToken == "" {
		logger.Warn("ADMIN_TOKEN is not set, admin routes will reject every request")
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// --- Start Servers ---
	go func() {
		logger.Infof("HTTP server listening on %s", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to serve HTTP: %v", err)
		}
	}()

	lis, err := net.Listen("tcp", cfg.GrpcPort)
	if err != nil {
		logger.Fatalf("Failed to listen on port %s: %v", cfg.GrpcPort, err)
	}
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcHandler.LoggingInterceptor(logger)))
	grpcHandler.RegisterOrderServiceServer(grpcServer, grpcHandler.NewOrderHandler(orderUseCase, lifecycleUseCase, logger))
	healthServer := health.NewServer()
	healthServer.SetServingStatus(grpcHandler.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	go func() {
		logger.Infof("gRPC server listening on %s", cfg.GrpcPort)
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Fatalf("Failed to serve gRPC: %v", err)
		}
		logger.Info("gRPC server stopped serving.")
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Warn("Shutdown signal received...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	healthServer.Shutdown()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Errorf("HTTP server shutdown: %v", err)
	}
	grpcServer.GracefulStop()
	if err := dispatcher.Close(ctx); err != nil {
		logger.Errorf("Dispatcher did not drain: %v", err)
	}
	if err := notifier.Close(); err != nil {
		logger.Errorf("Notifier close: %v", err)
	}
	logger.Info("Coffee & Tea Shop service shut down gracefully.")
}

func openStore(cfg *config.Config, logger *logrus.Logger) (domain.Store, func()) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		logger.Warn("Using in-memory storage, data is lost on restart")
		return memory.NewStore(), func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("FATAL: Could not connect to database: %v", err)
	}
	logger.Info("Database connection established.")

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, database, logger); err != nil {
			logger.Fatalf("FATAL: Could not apply migrations: %v", err)
		}
	}

	return repository.NewPostgresStore(database, logger), func() {
		if err := database.Close(); err != nil {
			logger.Errorf("Database close: %v", err)
		}
	}
}
