//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/celcat-feed/internal/bootstrap"
	"github.com/yanqian/celcat-feed/internal/domain/events"
	"github.com/yanqian/celcat-feed/internal/domain/feed"
	"github.com/yanqian/celcat-feed/internal/domain/notify"
	"github.com/yanqian/celcat-feed/internal/domain/schedule"
	"github.com/yanqian/celcat-feed/internal/infra/celcat"
	"github.com/yanqian/celcat-feed/internal/infra/config"
	httpiface "github.com/yanqian/celcat-feed/internal/interface/http"
	"github.com/yanqian/celcat-feed/pkg/logger"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		provideLocation,
		provideCelcatClient,
		provideValkeyClient,
		provideRemoteStore,
		provideSignatureStore,
		provideCache,
		provideRequestStats,
		provideWebhookSink,
		provideOutbox,
		provideNotifySink,
		provideBackgroundWorker,
		provideDispatcher,
		provideScheduleConfig,
		provideTransformer,
		provideFeedConfig,
		providePreferencesRepository,
		provideHandlerConfig,
		schedule.NewChangeDetector,
		schedule.NewService,
		feed.NewService,
		wire.Bind(new(schedule.Upstream), new(*celcat.Client)),
		wire.Bind(new(notify.Notifier), new(*notify.Dispatcher)),
		wire.Bind(new(feed.GroupFetcher), new(*schedule.Service)),
		wire.Bind(new(feed.EventTransformer), new(*events.Transformer)),
		wire.Bind(new(httpiface.FeedBuilder), new(*feed.Service)),
		wire.Bind(new(httpiface.Warmer), new(*schedule.Service)),
		wire.Bind(new(httpiface.CacheStatus), new(*schedule.Cache)),
		wire.Bind(new(bootstrap.Warmer), new(*schedule.Service)),
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
