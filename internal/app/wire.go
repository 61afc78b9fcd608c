package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/arbeng/triarb/internal/blob/s3"
	"github.com/arbeng/triarb/internal/cache/redis"
	"github.com/arbeng/triarb/internal/config"
	"github.com/arbeng/triarb/internal/domain"
	"github.com/arbeng/triarb/internal/marketdata"
	"github.com/arbeng/triarb/internal/notify"
	"github.com/arbeng/triarb/internal/platform/binance"
	"github.com/arbeng/triarb/internal/store/postgres"
)

// Dependencies bundles everything the modes need: the venue clients, the
// price book, the optional persistence backends, and the notifier. Wire
// constructs it; the returned cleanup tears it down.
type Dependencies struct {
	Venue  *binance.Client
	Stream *binance.WSClient
	Book   *marketdata.Book

	// Optional, nil unless the matching config section is enabled.
	ExecutionStore domain.ExecutionStore
	SignalBus      domain.SignalBus
	BlobWriter     domain.BlobWriter

	Notifier *notify.Notifier
}

// Wire constructs all concrete dependencies from the configuration. Backends
// whose config section is disabled stay nil; the modes treat them as absent
// rather than failing.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Venue:  binance.New(cfg.Binance, cfg.Engine.SizePrecision, logger),
		Stream: binance.NewWSClient(cfg.Binance.WsURL),
		Book:   marketdata.NewBook(),
	}

	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.ExecutionStore = postgres.NewExecutionStore(pgClient)
	}

	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.SignalBus = redis.NewSignalBus(redisClient)
	}

	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, cfg.S3)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.BlobWriter = s3blob.NewWriter(s3Client)
	}

	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
