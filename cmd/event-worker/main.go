package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/hivecrm/hivecrm-backend/internal/delivery"
	"github.com/hivecrm/hivecrm-backend/internal/mirror"
	"github.com/hivecrm/hivecrm-backend/internal/notifications"
	"github.com/hivecrm/hivecrm-backend/internal/preferences"
	"github.com/hivecrm/hivecrm-backend/pkg/config"
	"github.com/hivecrm/hivecrm-backend/pkg/db"
	"github.com/hivecrm/hivecrm-backend/pkg/logger"
	"github.com/hivecrm/hivecrm-backend/pkg/migrate"
	"github.com/hivecrm/hivecrm-backend/pkg/pubsub"
	"github.com/hivecrm/hivecrm-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "event-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "event-worker"

	logg = logger.New(logger.Options{
		ServiceName: "event-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	dispatcher, err := notifications.NewDispatcher(notifications.DispatcherParams{
		Repo:   notifications.NewRepository(dbClient.DB()),
		Prefs:  preferences.NewService(preferences.NewRepository(dbClient.DB()), logg),
		Queue:  delivery.NewRepository(dbClient.DB()),
		Logger: logg,
		SMTP:   cfg.SMTP,
		Digest: cfg.Digest,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatcher", err)
		os.Exit(1)
	}

	channelMirror, err := mirror.NewMirror(cfg.Mirror, mirror.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create channel mirror", err)
		os.Exit(1)
	}

	consumer, err := notifications.NewConsumer(notifications.ConsumerParams{
		Dispatcher:   dispatcher,
		Subscription: pubsubClient.NotificationSubscription(),
		Idempotency:  redisClient,
		Mirror:       channelMirror,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create event consumer", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting event worker")

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "event worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "event worker shutting down gracefully")
}
