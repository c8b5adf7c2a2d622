package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/celcat-feed/internal/bootstrap"
	"github.com/yanqian/celcat-feed/internal/domain/events"
	"github.com/yanqian/celcat-feed/internal/domain/feed"
	"github.com/yanqian/celcat-feed/internal/domain/notify"
	"github.com/yanqian/celcat-feed/internal/domain/preferences"
	"github.com/yanqian/celcat-feed/internal/domain/schedule"
	"github.com/yanqian/celcat-feed/internal/infra/celcat"
	"github.com/yanqian/celcat-feed/internal/infra/config"
	"github.com/yanqian/celcat-feed/internal/infra/notifier"
	"github.com/yanqian/celcat-feed/internal/infra/prefrepo"
	"github.com/yanqian/celcat-feed/internal/infra/schedulestore"
	httpiface "github.com/yanqian/celcat-feed/internal/interface/http"
	"github.com/yanqian/celcat-feed/pkg/metrics"
)

func provideLocation(cfg *config.Config) (*time.Location, error) {
	return cfg.Location()
}

func provideCelcatClient(cfg *config.Config, logger *slog.Logger) *celcat.Client {
	return celcat.NewClient(celcat.Config{
		BaseURL:      cfg.Celcat.BaseURL,
		Timeout:      cfg.Celcat.Timeout,
		ResType:      cfg.Celcat.ResType,
		CalView:      cfg.Celcat.CalView,
		ColourScheme: cfg.Celcat.ColourScheme,
	}, logger)
}

// provideValkeyClient returns nil when the shared tier is disabled or
// unreachable at boot; every consumer then falls back to process memory.
func provideValkeyClient(cfg *config.Config, logger *slog.Logger) valkey.Client {
	if !cfg.Cache.Redis.Enabled {
		return nil
	}
	opt, err := buildValkeyOptions(cfg)
	if err != nil {
		logger.Error("invalid valkey configuration, falling back to memory", "error", err)
		return nil
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, falling back to memory", "error", err)
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, falling back to memory", "error", err)
		client.Close()
		return nil
	}
	logger.Info("valkey cache tier enabled", "addr", cfg.Cache.Redis.Addr)
	return client
}

func buildValkeyOptions(cfg *config.Config) (valkey.ClientOption, error) {
	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(cfg.Cache.Redis.Addr, "://") {
		opt, err = valkey.ParseURL(cfg.Cache.Redis.Addr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{cfg.Cache.Redis.Addr}}
	}
	if err != nil {
		return valkey.ClientOption{}, err
	}
	return opt, nil
}

func provideRemoteStore(cfg *config.Config, client valkey.Client) schedule.RemoteStore {
	if client == nil {
		return nil
	}
	return schedulestore.NewValkeyStore(client, cfg.Cache.KeyPrefix)
}

func provideSignatureStore(cfg *config.Config, client valkey.Client) schedule.SignatureStore {
	if client == nil {
		return schedulestore.NewMemoryStore()
	}
	return schedulestore.NewValkeyStore(client, cfg.Cache.KeyPrefix)
}

func provideCache(cfg *config.Config, remote schedule.RemoteStore, logger *slog.Logger) *schedule.Cache {
	return schedule.NewCache(schedule.CacheConfig{
		FreshTTL:         cfg.Cache.FreshTTL,
		StaleTTL:         cfg.Cache.StaleTTL,
		MaxMemoryEntries: cfg.Cache.MemoryMaxEntries,
		Breaker: schedule.BreakerConfig{
			Threshold: cfg.Cache.Breaker.Threshold,
			Cooldown:  cfg.Cache.Breaker.Cooldown,
		},
	}, remote, logger)
}

func provideRequestStats(cfg *config.Config) *metrics.RequestStats {
	return metrics.NewRequestStats(cfg.Fetch.StatsWindow)
}

func provideWebhookSink(cfg *config.Config) *notifier.WebhookSink {
	if strings.TrimSpace(cfg.Notify.WebhookURL) == "" {
		return nil
	}
	return notifier.NewWebhookSink(cfg.Notify.WebhookURL, cfg.Notify.Timeout)
}

func provideOutbox(cfg *config.Config, client valkey.Client, webhook *notifier.WebhookSink, logger *slog.Logger) *notifier.ValkeyOutbox {
	if !cfg.Notify.Queue.Enabled || client == nil || webhook == nil {
		return nil
	}
	return notifier.NewValkeyOutbox(client, cfg.Notify.Queue.Key, webhook, logger)
}

func provideNotifySink(webhook *notifier.WebhookSink, outbox *notifier.ValkeyOutbox, logger *slog.Logger) notify.Sink {
	switch {
	case outbox != nil:
		logger.Info("notifications queued through valkey outbox")
		return outbox
	case webhook != nil:
		return webhook
	default:
		logger.Info("notify webhook not set, notifications disabled")
		return nil
	}
}

func provideBackgroundWorker(outbox *notifier.ValkeyOutbox) bootstrap.Worker {
	if outbox == nil {
		return nil
	}
	return outbox
}

func provideDispatcher(cfg *config.Config, sink notify.Sink, logger *slog.Logger) *notify.Dispatcher {
	return notify.NewDispatcher(sink, cfg.Notify.Timeout, logger)
}

func provideScheduleConfig(cfg *config.Config, loc *time.Location) schedule.Config {
	return schedule.Config{
		RetryDelay:       cfg.Fetch.RetryDelay,
		FetchTimeout:     cfg.Celcat.Timeout * 3,
		PruneProbability: cfg.Cache.PruneProbability,
		Location:         loc,
	}
}

func provideTransformer(cfg *config.Config, loc *time.Location) *events.Transformer {
	return events.NewTransformer(events.Config{
		Location:        loc,
		DefaultType:     cfg.Events.DefaultType,
		Blacklist:       cfg.Events.Blacklist,
		HolidayKeywords: cfg.Events.HolidayKeywords,
		TypeRules:       cfg.Events.TypeRules,
	})
}

func provideFeedConfig(cfg *config.Config) feed.Config {
	return feed.Config{MaxGroups: cfg.Fetch.MaxGroups}
}

func providePreferencesRepository(cfg *config.Config, logger *slog.Logger) preferences.Repository {
	fallback := prefrepo.NewMemoryRepository()
	dsn := strings.TrimSpace(cfg.Preferences.Postgres.DSN)
	if dsn == "" {
		logger.Info("preferences postgres dsn not set, using memory repository")
		return fallback
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using memory repository", "error", err)
		return fallback
	}
	if cfg.Preferences.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Preferences.Postgres.MaxConns
	}
	if cfg.Preferences.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Preferences.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory repository", "error", err)
		return fallback
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory repository", "error", err)
		pool.Close()
		return fallback
	}
	logger.Info("preferences postgres repository enabled")
	return prefrepo.NewPostgresRepository(pool)
}

func provideHandlerConfig(cfg *config.Config) httpiface.HandlerConfig {
	return httpiface.HandlerConfig{
		CalendarName:         cfg.Feed.CalendarName,
		MaxAge:               cfg.Feed.MaxAge,
		StaleWhileRevalidate: cfg.Feed.StaleWhileRevalidate,
		WarmupTopN:           cfg.Warmup.TopN,
		Production:           cfg.App.Production(),
	}
}
