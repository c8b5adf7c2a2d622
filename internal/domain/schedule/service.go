package schedule

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yanqian/celcat-feed/internal/domain/notify"
	"github.com/yanqian/celcat-feed/pkg/metrics"
	"github.com/yanqian/celcat-feed/pkg/util"
)

// Config holds the coordinator knobs.
type Config struct {
	// RetryDelay is the pause before the single retry of a foreground miss.
	RetryDelay time.Duration
	// FetchTimeout bounds a shared upstream fetch, independent of callers.
	FetchTimeout time.Duration
	// PruneProbability is the fraction of calls that prune the memory cache.
	PruneProbability float64
	// Location interprets the academic year boundaries.
	Location *time.Location
}

// WarmupResult reports the outcome of refreshing one group.
type WarmupResult struct {
	Group  Group  `json:"group"`
	Events int    `json:"events"`
	Error  string `json:"error,omitempty"`
}

// Service coordinates cache lookups, request coalescing and upstream fetches
// for individual groups.
type Service struct {
	cfg      Config
	cache    *Cache
	upstream Upstream
	stats    *metrics.RequestStats
	changes  *ChangeDetector
	notifier notify.Notifier
	logger   *slog.Logger

	flight       singleflight.Group
	mu           sync.Mutex
	revalidating map[string]struct{}

	now    func() time.Time
	random func() float64
}

// NewService wires the fetch coordinator.
func NewService(cfg Config, cache *Cache, upstream Upstream, stats *metrics.RequestStats, changes *ChangeDetector, notifier notify.Notifier, logger *slog.Logger) *Service {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		cfg:          cfg,
		cache:        cache,
		upstream:     upstream,
		stats:        stats,
		changes:      changes,
		notifier:     notifier,
		logger:       logger.With("component", "schedule.service"),
		revalidating: make(map[string]struct{}),
		now:          time.Now,
		random:       rand.Float64,
	}
}

// EventsForGroup returns the raw events of one group. It never fails: invalid
// references and upstream outages both degrade to an empty list.
func (s *Service) EventsForGroup(ctx context.Context, ref GroupRef, forceRefresh bool) []RawEvent {
	group, err := NormalizeGroup(ref)
	if err != nil {
		s.logger.Warn("rejected group reference", "group", ref.Text, "error", err)
		return nil
	}
	s.stats.Record(group.ID, group.Label)
	s.maybePrune()

	if !forceRefresh {
		if hit, ok := s.cache.Get(ctx, group.ID); ok {
			if hit.Stale {
				s.revalidate(group)
			}
			return hit.Events
		}
	}

	events, err := s.fetch(ctx, group, !forceRefresh)
	if err != nil {
		return nil
	}
	return events
}

// Warmup force-refreshes the most requested groups without counting the
// refresh as user traffic.
func (s *Service) Warmup(ctx context.Context, limit int) []WarmupResult {
	top := s.stats.Top(limit)
	results := make([]WarmupResult, 0, len(top))
	for _, stat := range top {
		if ctx.Err() != nil {
			break
		}
		group := Group{ID: stat.Key, Label: stat.Label}
		if group.Label == "" {
			group.Label = group.ID
		}
		result := WarmupResult{Group: group}
		events, err := s.fetch(ctx, group, false)
		if err != nil {
			result.Error = err.Error()
		} else {
			result.Events = len(events)
			if s.notifier != nil {
				s.notifier.Notify(notify.Notification{GroupName: group.Label, EventCount: len(events), Type: notify.TypeRefresh})
			}
		}
		results = append(results, result)
	}
	s.logger.Info("warmup finished", "groups", len(results))
	return results
}

// Cache exposes the tier for health reporting.
func (s *Service) Cache() *Cache {
	return s.cache
}

// fetch joins the in-flight load for the group or starts one. The load runs
// on its own context so one caller giving up does not cancel the others.
func (s *Service) fetch(ctx context.Context, group Group, retry bool) ([]RawEvent, error) {
	ch := s.flight.DoChan(group.ID, func() (any, error) {
		return s.load(group, retry)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		events, _ := res.Val.([]RawEvent)
		return events, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) load(group Group, retry bool) ([]RawEvent, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.FetchTimeout)
	defer cancel()

	start, end := AcademicYear(s.now(), s.cfg.Location)
	events, err := s.upstream.FetchGroup(ctx, group.ID, start, end)
	if err != nil && retry && retryable(err) {
		s.logger.Warn("upstream fetch failed, retrying once", "group", group.ID, "error", err)
		if waitErr := sleep(ctx, s.cfg.RetryDelay); waitErr == nil {
			events, err = s.upstream.FetchGroup(ctx, group.ID, start, end)
		}
	}
	if err != nil {
		s.logger.Warn("upstream fetch failed", "group", group.ID, "error", err)
		return nil, err
	}

	s.cache.Set(ctx, group.ID, events)
	s.logger.Debug("group refreshed", "group", group.ID, "events", len(events))
	if s.changes != nil {
		util.Go(s.logger, "change-detection", func() {
			detectCtx, detectCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer detectCancel()
			if _, err := s.changes.Observe(detectCtx, group, events); err != nil {
				s.logger.Warn("change detection failed", "group", group.ID, "error", err)
			}
		})
	}
	return events, nil
}

// revalidate schedules at most one background refresh per group at a time.
func (s *Service) revalidate(group Group) {
	s.mu.Lock()
	if _, running := s.revalidating[group.ID]; running {
		s.mu.Unlock()
		return
	}
	s.revalidating[group.ID] = struct{}{}
	s.mu.Unlock()

	util.Go(s.logger, "revalidate", func() {
		defer func() {
			s.mu.Lock()
			delete(s.revalidating, group.ID)
			s.mu.Unlock()
		}()
		if _, err := s.fetch(context.Background(), group, false); err != nil {
			s.logger.Warn("background revalidation failed", "group", group.ID, "error", err)
		}
	})
}

func (s *Service) maybePrune() {
	if s.cfg.PruneProbability <= 0 || s.random() >= s.cfg.PruneProbability {
		return
	}
	s.cache.Prune()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
