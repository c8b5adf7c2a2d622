package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yanqian/celcat-feed/internal/domain/schedule"
	"github.com/yanqian/celcat-feed/internal/infra/config"
)

// Warmer refreshes the most requested groups.
type Warmer interface {
	Warmup(ctx context.Context, limit int) []schedule.WarmupResult
}

// Worker is a background loop that runs until ctx is cancelled.
type Worker interface {
	Run(ctx context.Context)
}

// App encapsulates the HTTP server lifecycle and the background jobs.
type App struct {
	cfg       *config.Config
	logger    *slog.Logger
	server    *http.Server
	worker    Worker
	scheduler *cron.Cron
}

// NewApp is used by Wire to build the runnable app. worker may be nil.
func NewApp(cfg *config.Config, logger *slog.Logger, server *http.Server, warmer Warmer, worker Worker) (*App, error) {
	log := logger.With("component", "bootstrap")
	scheduler, err := newWarmupScheduler(cfg, warmer, log)
	if err != nil {
		return nil, err
	}
	return &App{cfg: cfg, logger: log, server: server, worker: worker, scheduler: scheduler}, nil
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("http server starting", "address", a.cfg.HTTP.Address)
		if err := a.server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	if a.worker != nil {
		go a.worker.Run(workerCtx)
	}
	if a.scheduler != nil {
		a.scheduler.Start()
		defer func() {
			<-a.scheduler.Stop().Done()
		}()
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.logger.Info("shutdown signal received")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// newWarmupScheduler returns nil when no schedule is configured.
func newWarmupScheduler(cfg *config.Config, warmer Warmer, logger *slog.Logger) (*cron.Cron, error) {
	spec := strings.TrimSpace(cfg.Warmup.Schedule)
	if spec == "" || warmer == nil {
		return nil, nil
	}
	loc, err := cfg.Location()
	if err != nil {
		loc = time.UTC
	}
	scheduler := cron.New(cron.WithLocation(loc))
	if _, err := scheduler.AddFunc(spec, warmupJob(warmer, cfg.Warmup.TopN, logger)); err != nil {
		return nil, fmt.Errorf("invalid warmup.schedule %q: %w", spec, err)
	}
	logger.Info("warmup scheduled", "schedule", spec, "topN", cfg.Warmup.TopN)
	return scheduler, nil
}

func warmupJob(warmer Warmer, limit int, logger *slog.Logger) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		results := warmer.Warmup(ctx, limit)
		failed := 0
		for _, res := range results {
			if res.Error != "" {
				failed++
			}
		}
		logger.Info("scheduled warmup finished", "groups", len(results), "failed", failed)
	}
}
