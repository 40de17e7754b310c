package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/marisolvega/campuseats-backend/api/controllers"
	apimiddleware "github.com/marisolvega/campuseats-backend/api/middleware"
	"github.com/marisolvega/campuseats-backend/internal/clientsync"
	"github.com/marisolvega/campuseats-backend/internal/feed"
	"github.com/marisolvega/campuseats-backend/internal/orders"
	"github.com/marisolvega/campuseats-backend/internal/stock"
	"github.com/marisolvega/campuseats-backend/pkg/config"
	"github.com/marisolvega/campuseats-backend/pkg/db"
	"github.com/marisolvega/campuseats-backend/pkg/logger"
	"github.com/marisolvega/campuseats-backend/pkg/migrate"
	"github.com/marisolvega/campuseats-backend/pkg/pubsub"
	"github.com/marisolvega/campuseats-backend/pkg/redis"
)

// The sync gateway hosts the read side of the change feed: one feed bridge
// over the Pub/Sub feed subscription, and an SSE endpoint that mounts a
// client sync agent per connection.
func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "sync-gateway"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "sync-gateway",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "failed to close database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		requireResource(ctx, logg, "dev migrations", err)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "failed to close redis client", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "failed to close pubsub client", err)
		}
	}()

	feedSub := pubsubClient.FeedSubscription()
	if feedSub == nil {
		requireResource(ctx, logg, "feed subscription", errors.New("subscription not configured"))
	}

	bridge, err := feed.NewBridge(
		feedSub,
		orders.NewRepository(dbClient.DB()),
		stock.NewRepository(dbClient.DB()),
		logg,
	)
	requireResource(ctx, logg, "feed bridge", err)

	store, err := clientsync.NewRedisStore(redisClient)
	requireResource(ctx, logg, "client state store", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "sync-gateway",
	})

	go func() {
		if err := bridge.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(runCtx, "feed bridge stopped", err)
		}
	}()

	r := chi.NewRouter()
	r.Use(
		apimiddleware.Recoverer(logg),
		apimiddleware.RequestID(logg),
		apimiddleware.Logging(logg),
	)
	r.Get("/health/live", controllers.HealthLive(cfg))
	r.Get("/health/ready", controllers.HealthReady(cfg, logg, dbClient, redisClient))
	r.Get("/sync/orders/{orderId}/events", orderEvents(bridge, store, logg))

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logg.Info(runCtx, fmt.Sprintf("sync gateway listening on %s", addr))

	server := &http.Server{Addr: addr, Handler: r}
	go func() {
		<-runCtx.Done()
		_ = server.Shutdown(context.Background())
	}()
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(runCtx, "sync gateway stopped unexpectedly", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
