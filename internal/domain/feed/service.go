package feed

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/yanqian/celcat-feed/internal/domain/events"
	"github.com/yanqian/celcat-feed/internal/domain/preferences"
	"github.com/yanqian/celcat-feed/internal/domain/schedule"
	apperrors "github.com/yanqian/celcat-feed/pkg/errors"
)

// DefaultMaxGroups caps the number of groups merged into one feed.
const DefaultMaxGroups = 10

// Config holds aggregation knobs.
type Config struct {
	MaxGroups int
}

// Request describes one feed build. Token wins over Groups when both are set.
type Request struct {
	Token    string
	Groups   string
	Holidays *bool
}

// Result is the merged, transformed feed.
type Result struct {
	Groups       []schedule.Group
	Events       []events.ProcessedEvent
	RawCount     int
	CourseCount  int
	ShowHolidays bool
}

// GroupFetcher returns the raw events of one group and never fails.
type GroupFetcher interface {
	EventsForGroup(ctx context.Context, ref schedule.GroupRef, forceRefresh bool) []schedule.RawEvent
}

// EventTransformer turns merged raw events into processed events.
type EventTransformer interface {
	Transform(raws []schedule.RawEvent, opts events.Options) []events.ProcessedEvent
}

// Service aggregates groups into one feed.
type Service struct {
	cfg         Config
	fetcher     GroupFetcher
	transformer EventTransformer
	prefs       preferences.Repository
	logger      *slog.Logger
}

// NewService wires the aggregator.
func NewService(cfg Config, fetcher GroupFetcher, transformer EventTransformer, prefs preferences.Repository, logger *slog.Logger) *Service {
	if cfg.MaxGroups <= 0 {
		cfg.MaxGroups = DefaultMaxGroups
	}
	return &Service{
		cfg:         cfg,
		fetcher:     fetcher,
		transformer: transformer,
		prefs:       prefs,
		logger:      logger.With("component", "feed.service"),
	}
}

// Build resolves the request, fetches every group in parallel and runs the
// merged events through the transformer.
func (s *Service) Build(ctx context.Context, req Request) (Result, error) {
	refs, opts, err := s.resolve(ctx, req)
	if err != nil {
		return Result{}, err
	}
	if len(refs) > s.cfg.MaxGroups {
		refs = refs[:s.cfg.MaxGroups]
	}

	groups := make([]schedule.Group, 0, len(refs))
	for _, ref := range refs {
		group, err := schedule.NormalizeGroup(ref)
		if err != nil {
			s.logger.Warn("skipping invalid group", "group", ref.Text, "error", err)
			continue
		}
		groups = append(groups, group)
	}
	if len(groups) == 0 {
		return Result{}, apperrors.Wrap(apperrors.CodeInvalidGroup, "invalid group", nil)
	}

	perGroup := make([][]schedule.RawEvent, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	for i, group := range groups {
		g.Go(func() error {
			perGroup[i] = s.fetcher.EventsForGroup(gctx, schedule.GroupObject(group.ID, group.Label), false)
			return nil
		})
	}
	_ = g.Wait()

	var merged []schedule.RawEvent
	for _, list := range perGroup {
		merged = append(merged, list...)
	}

	processed := s.transformer.Transform(merged, opts)
	courses := 0
	for _, ev := range processed {
		if !ev.IsHoliday {
			courses++
		}
	}
	s.logger.Debug("feed built", "groups", len(groups), "raw", len(merged), "events", len(processed))

	return Result{
		Groups:       groups,
		Events:       processed,
		RawCount:     len(merged),
		CourseCount:  courses,
		ShowHolidays: opts.ShowHolidays,
	}, nil
}

func (s *Service) resolve(ctx context.Context, req Request) ([]schedule.GroupRef, events.Options, error) {
	token := strings.TrimSpace(req.Token)
	if token != "" && s.prefs != nil {
		prefs, found, err := s.prefs.FindByToken(ctx, token)
		if err != nil {
			return nil, events.Options{}, apperrors.Wrap(apperrors.CodeInternal, "failed to load preferences", err)
		}
		if found {
			return prefs.Groups, prefs.Options(), nil
		}
		s.logger.Info("unknown calendar token")
	}

	refs := ParseGroupList(req.Groups)
	if len(refs) == 0 {
		if token != "" {
			return nil, events.Options{}, apperrors.Wrap(apperrors.CodeInvalidInput, "unknown token and no groups supplied", nil)
		}
		return nil, events.Options{}, apperrors.Wrap(apperrors.CodeInvalidInput, "no groups supplied: pass a token or a comma separated groups list", nil)
	}
	opts := events.Options{}
	if req.Holidays != nil {
		opts.ShowHolidays = *req.Holidays
	}
	return refs, opts, nil
}

// ParseGroupList splits a comma separated list, trimming entries and
// dropping empty ones.
func ParseGroupList(raw string) []schedule.GroupRef {
	var refs []schedule.GroupRef
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			refs = append(refs, schedule.GroupText(part))
		}
	}
	return refs
}
