package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_storefront/internal/address"
	"github.com/fjod/go_storefront/internal/cache"
	"github.com/fjod/go_storefront/internal/config"
	"github.com/fjod/go_storefront/internal/dataapi"
	"github.com/fjod/go_storefront/internal/health"
	h "github.com/fjod/go_storefront/internal/http"
	"github.com/fjod/go_storefront/internal/poller"
	"github.com/fjod/go_storefront/internal/publisher"
	"github.com/fjod/go_storefront/internal/repository"
	"github.com/fjod/go_storefront/internal/service"
	"github.com/fjod/go_storefront/internal/session"
	"github.com/fjod/go_storefront/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("storefront stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	log.Info("redis ping succeeded", zap.String("addr", cfg.RedisAddr))

	repo, mongoDB, err := cartRepository(ctx, cfg, redisClient, log)
	if err != nil {
		return err
	}
	if mongoDB != nil {
		defer mongoDB.Client().Disconnect(context.Background())
	}

	dataClient, err := dataapi.NewClient(&cfg.DB, log)
	if err != nil {
		return fmt.Errorf("failed to connect to data api: %w", err)
	}
	defer dataClient.Close()
	if err := dataClient.RunMigrations(&cfg.DB); err != nil {
		return err
	}

	methodCache := cache.NewRedisCache(redisClient, cfg.PaymentMethodsTTL)
	checkoutService := service.NewCheckoutService(dataClient, methodCache, dataClient, cfg.CheckoutSubmitTimeout, log)
	registry := session.NewRegistry(repo, checkoutService, log)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outbox := publisher.NewOutboxPoller(dataClient, log, cfg.KafkaBrokers...)
	defer outbox.Close()
	go outbox.Run(runCtx)

	consumer := poller.NewPoller(registry, cfg.KafkaConsumerGroup, log, cfg.KafkaBrokers...)
	defer consumer.Close()
	go consumer.Run(runCtx)

	go registry.RunSweeper(runCtx, time.Minute, cfg.SessionIdleTimeout)

	// gRPC health endpoint
	grpcServer := grpc.NewServer()
	healthServer := grpchealth.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	reporter := health.NewReporter(healthServer, 2*time.Second, log)
	reporter.Register("redis", func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	reporter.Register("postgres", dataClient.Ping)
	if mongoDB != nil {
		reporter.Register("mongodb", func(ctx context.Context) error { return mongoDB.Client().Ping(ctx, nil) })
	}
	go reporter.Run(runCtx, 10*time.Second)

	lis, err := net.Listen("tcp", ":"+cfg.GRPCHealthPort)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	go func() {
		log.Info("grpc health listening", zap.String("port", cfg.GRPCHealthPort))
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("grpc health server stopped", zap.Error(err))
		}
	}()

	router := h.NewRouter(
		h.NewCartHandler(registry, dataClient, cfg.RequestTimeout, cfg.MaxRequestBodySize, log),
		h.NewCheckoutHandler(registry, cfg.RequestTimeout, cfg.MaxRequestBodySize, log),
		h.NewAddressHandler(address.NewClient(cfg.AddressLookupURL, cfg.AddressLookupTimeout, log), cfg.RequestTimeout, log),
		log,
		cfg.RequestTimeout,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("storefront starting", zap.String("port", cfg.HTTPPort), zap.String("cart_storage", cfg.CartStorage))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("shutting down server...")
	reporter.Shutdown()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	grpcServer.GracefulStop()

	log.Info("server exited")
	return nil
}

func cartRepository(ctx context.Context, cfg *config.Config, redisClient *redis.Client, log *zap.Logger) (repository.CartRepository, *mongo.Database, error) {
	switch cfg.CartStorage {
	case config.CartStorageMongo:
		mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		repo := repository.NewMongoCartRepository(mongoDB)
		if err := repo.CreateIndexes(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to create cart indexes: %w", err)
		}
		log.Info("cart storage: mongodb", zap.String("db", cfg.MongoDBName))
		return repo, mongoDB, nil
	case config.CartStorageRedis:
		log.Info("cart storage: redis")
		return repository.NewRedisCartRepository(redisClient), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown CART_STORAGE %q", cfg.CartStorage)
	}
}
