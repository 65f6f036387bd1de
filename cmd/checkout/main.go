package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/maxshopweb/checkout/internal/cart"
	"github.com/maxshopweb/checkout/internal/checkout"
	"github.com/maxshopweb/checkout/internal/config"
	h "github.com/maxshopweb/checkout/internal/http"
	"github.com/maxshopweb/checkout/internal/identity"
	"github.com/maxshopweb/checkout/internal/order"
	"github.com/maxshopweb/checkout/internal/shipping"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Cart storage.
	db, err := cart.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoMaxPoolSize, cfg.MongoMinPoolSize)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to MongoDB")
	}
	cartRepo := cart.NewMongoRepository(db)
	if err := cartRepo.CreateIndexes(ctx); err != nil {
		log.WithError(err).Fatal("failed to create cart indexes")
	}
	cartEngine := cart.NewEngine(cartRepo)

	// Session and quote storage.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.WithError(err).Fatal("failed to connect to Redis")
	}
	defer redisClient.Close()

	sessionStore := checkout.NewRedisSessionStore(redisClient)
	checkoutSvc := checkout.NewService(sessionStore, cartEngine)

	// Shipping quote pipeline; its result callback re-enters the checkout
	// service, hence the two-phase wiring.
	rateClient := shipping.NewHTTPRateClient(cfg.RateServiceURL, cfg.QuoteRequestTimeout)
	quoteCache := shipping.NewRedisQuoteCache(redisClient)
	quoter := shipping.NewQuoter(rateClient, quoteCache, shipping.Config{
		ContractCode:   cfg.ShippingContractCode,
		ClientCode:     cfg.ShippingClientCode,
		Debounce:       cfg.QuoteDebounce,
		RequestTimeout: cfg.QuoteRequestTimeout,
	}, checkoutSvc.ApplyQuoteResult)
	checkoutSvc.AttachQuoter(quoter)

	// Identity.
	identityClient := identity.NewHTTPClient(cfg.IdentityServiceURL)
	resolver := identity.NewResolver(identityClient, identityClient, checkoutSvc)

	// Orders.
	creds := &order.Credentials{
		Host:              cfg.PostgresHost,
		Port:              cfg.PostgresPort,
		User:              cfg.PostgresUser,
		Password:          cfg.PostgresPassword,
		DBName:            cfg.PostgresDB,
		MigrationsDirPath: cfg.MigrationsDirPath,
	}
	orderRepo, err := order.NewRepository(creds)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer orderRepo.Close()
	if err := orderRepo.RunMigrations(creds); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	publisher := order.NewKafkaPublisher(cfg.KafkaBrokers...)
	defer publisher.Close()

	coordinator := order.NewCoordinator(checkoutSvc, cartEngine, orderRepo, publisher)

	router := h.NewRouter(h.RouterDeps{
		Carts:     cartEngine,
		Checkout:  checkoutSvc,
		Quotes:    quoter,
		Guests:    resolver,
		Orders:    coordinator,
		OrderRead: orderRepo,
		Addresses: identityClient,
		Timeout:   cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "checkout"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.HTTPPort).Info("checkout service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server exited")
}
