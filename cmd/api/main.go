package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"storefront/internal/attributestore"
	"storefront/internal/cache"
	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/httpserver"
	"storefront/internal/metrics"
	"storefront/internal/migrate"
	"storefront/internal/notify"
	cartrepo "storefront/internal/repository/cart"
	ledgerrepo "storefront/internal/repository/ledger"
	outboxrepo "storefront/internal/repository/outbox"
	tokenrepo "storefront/internal/repository/token"
	userrepo "storefront/internal/repository/user"
	cartsvc "storefront/internal/service/cart"
	catalogsvc "storefront/internal/service/catalog"
	checkoutsvc "storefront/internal/service/checkout"
	ordersvc "storefront/internal/service/order"
	usersvc "storefront/internal/service/user"
	"storefront/internal/telemetry"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, cfg.ServiceName, logger)
	if err != nil {
		logger.Fatalf("init tracing: %v", err)
	}

	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()

	if err := migrate.Apply(ctx, dbpool); err != nil {
		logger.Fatalf("apply migrations: %v", err)
	}

	m := metrics.New("api")

	remote := attributestore.New(cfg.AttributeStoreURL, attributestore.Options{
		Timeout: cfg.AttributeStoreTimeout,
		Logger:  logger,
		Metrics: m,
	})

	readyChecks := map[string]httpserver.Pinger{"attribute_store": remote}
	var productCache cache.ProductCache = cache.Noop{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Printf("redis %s not reachable, product cache disabled: %v", cfg.RedisAddr, err)
		} else {
			redisCache := cache.NewRedisCache(rdb, cfg.ProductCacheTTL)
			productCache = redisCache
			readyChecks["product_cache"] = redisCache
		}
	}

	userRepo := userrepo.NewPostgres(dbpool, logger)
	tokenRepo := tokenrepo.NewPostgres(dbpool)
	cartRepo := cartrepo.NewPostgres(dbpool, logger)
	ledgerRepo := ledgerrepo.NewPostgres(dbpool, logger)
	outboxRepo := outboxrepo.NewPostgres(dbpool, logger)

	userService := usersvc.New(userRepo, tokenRepo)
	catalogService := catalogsvc.New(remote, productCache, logger)
	cartService := cartsvc.New(cartRepo, catalogService, m, logger)
	checkoutService := checkoutsvc.New(remote, catalogService, cartRepo, ledgerRepo, checkoutsvc.Options{
		Metrics: m,
		Logger:  logger,
		Topic:   cfg.OrderEventsTopic,
	})
	orderService := ordersvc.New(remote, catalogService, logger)

	var writer notify.MessageWriter = notify.LogWriter{Logger: logger}
	if len(cfg.KafkaBrokers) > 0 {
		writer = notify.NewKafkaWriter(cfg.KafkaBrokers)
	}
	publisher := notify.NewPublisher(outboxRepo, writer, cfg.OutboxPollEvery, cfg.OutboxBatchSize, m, logger)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		AuthSvc:     userService,
		CatalogSvc:  catalogService,
		CartSvc:     cartService,
		CheckoutSvc: checkoutService,
		OrderSvc:    orderService,
		Metrics:     m,
		CORSOrigins: cfg.CORSOrigins,
		ServiceName: cfg.ServiceName,
		ReadyChecks: readyChecks,
	})
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	var wg sync.WaitGroup
	publishCtx, stopPublisher := context.WithCancel(context.Background())
	wg.Add(1)
	go func() {
		defer wg.Done()
		publisher.Run(publishCtx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Printf("received shutdown signal")
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}

	stopPublisher()
	wg.Wait()
	if err := publisher.Close(); err != nil {
		logger.Printf("close publisher: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Printf("flush traces: %v", err)
	}
}
