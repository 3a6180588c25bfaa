package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/moneyflow/internal/config"
	"github.com/congo-pay/moneyflow/internal/events"
	"github.com/congo-pay/moneyflow/internal/infra"
	"github.com/congo-pay/moneyflow/internal/logging"
	"github.com/congo-pay/moneyflow/internal/routes"
	"github.com/congo-pay/moneyflow/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat).With("app", cfg.AppName, "env", cfg.AppEnv)
	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited cleanly")
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx := context.Background()
	deps := routes.Deps{Logger: logger}

	if cfg.DatabaseURL != "" {
		if cfg.MigrateOnStart {
			if err := infra.Migrate(cfg.DatabaseURL, logger); err != nil {
				return err
			}
		}
		db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer db.Close()
		deps.DB = db
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
	}

	if cfg.RedisURL != "" {
		cache, err := infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer closeRedis(cache, logger)
		deps.Cache = cache
	} else {
		logger.Warn("REDIS_URL not set, HTTP idempotency cache disabled")
	}

	if len(cfg.KafkaBrokers) > 0 {
		writer, err := infra.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return err
		}
		publisher := events.NewKafkaPublisher(writer)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("close kafka writer", "error", err)
			}
		}()
		deps.Publisher = publisher
	} else {
		logger.Info("KAFKA_BROKERS not set, events go to the log")
	}

	srv, err := server.New(cfg, deps)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}
	srv.Start()

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func closeRedis(cache *redis.Client, logger *slog.Logger) {
	if err := cache.Close(); err != nil {
		logger.Warn("close redis", "error", err)
	}
}
