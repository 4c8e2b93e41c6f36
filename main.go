package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-svc/cache"
	"storefront-svc/config"
	"storefront-svc/database"
	"storefront-svc/dispatcher"
	"storefront-svc/grpc"
	"storefront-svc/handlers"
	"storefront-svc/inventory"
	"storefront-svc/kafka"
	"storefront-svc/middleware"
	"storefront-svc/orders"
	"storefront-svc/payment"
	"storefront-svc/repository"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const serviceName = "storefront-service"

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize OpenTelemetry
	shutdownTracing, err := middleware.InitTracing(serviceName, cfg.Tracing.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdownTracing()

	// Initialize database
	db, err := database.InitDB(cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()
	store := repository.NewPostgresStore(db, logger)

	// Initialize Redis
	rdb, err := cache.InitRedis(cfg.Redis, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer rdb.Close()
	productCache := cache.NewProductCache(rdb, 5*time.Minute)

	// Initialize Kafka producer
	producer, err := kafka.InitProducer(cfg.Kafka, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
	}
	defer producer.Close()

	events := dispatcher.New(
		kafka.NewPublisher(producer, cfg.Kafka.Topic, logger),
		dispatcher.Options{
			Workers:   cfg.Dispatcher.Workers,
			QueueSize: cfg.Dispatcher.QueueSize,
			Timeout:   cfg.Dispatcher.Timeout,
		},
		logger,
	)

	machine := orders.NewMachine(store, inventory.NewAdjuster(productCache, logger), events, logger)
	initiator := payment.NewInitiator(store, cfg.Gateway, logger)

	// Setup REST API with Gin
	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	// OpenTelemetry middleware must be first to extract trace context
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	handlers.RegisterRoutes(router, handlers.Handlers{
		Notification: handlers.NewNotificationHandler(machine, cfg.Gateway.Passphrase, logger),
		Checkout:     handlers.NewCheckoutHandler(store, logger),
		Payment:      handlers.NewPaymentHandler(initiator, logger),
		Admin:        handlers.NewAdminHandler(machine, logger),
		Product:      handlers.NewProductHandler(store, productCache, logger),
	}, []byte(cfg.Admin.JWTSecret))

	// Start REST server
	restSrv := &http.Server{
		Addr:              cfg.HTTP.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := restSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start REST server", zap.Error(err))
		}
	}()

	logger.Info("Storefront REST API started", zap.String("addr", cfg.HTTP.Port))

	// Start gRPC health server
	grpcListener, err := net.Listen("tcp", cfg.GRPC.Port)
	if err != nil {
		logger.Fatal("Failed to listen on gRPC port", zap.Error(err))
	}

	grpcServer, healthServer := grpc.NewServer()
	healthCtx, stopHealth := context.WithCancel(context.Background())
	defer stopHealth()
	go grpc.WatchDatabase(healthCtx, healthServer, store, 10*time.Second, logger)

	go func() {
		if err := grpcServer.Serve(grpcListener); err != nil {
			logger.Fatal("Failed to start gRPC server", zap.Error(err))
		}
	}()

	logger.Info("Storefront gRPC health server started", zap.String("addr", cfg.GRPC.Port))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down servers...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := restSrv.Shutdown(ctx); err != nil {
		logger.Error("REST server forced to shutdown", zap.Error(err))
	}

	stopHealth()
	healthServer.Shutdown()
	grpcServer.GracefulStop()

	// Deliver whatever transitions already queued before the producer closes.
	events.Close()

	logger.Info("Servers exited")
}
