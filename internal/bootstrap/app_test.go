package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/celcat-feed/internal/domain/schedule"
	"github.com/yanqian/celcat-feed/internal/infra/config"
)

type stubWarmer struct {
	limits []int
}

func (s *stubWarmer) Warmup(_ context.Context, limit int) []schedule.WarmupResult {
	s.limits = append(s.limits, limit)
	return []schedule.WarmupResult{{Group: schedule.Group{ID: "G1"}}, {Group: schedule.Group{ID: "G2"}, Error: "boom"}}
}

func TestWarmupSchedulerDisabledWithoutSchedule(t *testing.T) {
	cfg := &config.Config{Events: config.EventsConfig{Timezone: "UTC"}}
	scheduler, err := newWarmupScheduler(cfg, &stubWarmer{}, newTestLogger())
	require.NoError(t, err)
	require.Nil(t, scheduler)
}

func TestWarmupSchedulerRejectsBadSchedule(t *testing.T) {
	cfg := &config.Config{Events: config.EventsConfig{Timezone: "UTC"}, Warmup: config.WarmupConfig{Schedule: "every tuesday"}}
	_, err := newWarmupScheduler(cfg, &stubWarmer{}, newTestLogger())
	require.ErrorContains(t, err, "invalid warmup.schedule")
}

func TestWarmupSchedulerRegistersJob(t *testing.T) {
	cfg := &config.Config{Events: config.EventsConfig{Timezone: "Europe/Paris"}, Warmup: config.WarmupConfig{Schedule: "*/30 6-20 * * 1-5", TopN: 15}}
	scheduler, err := newWarmupScheduler(cfg, &stubWarmer{}, newTestLogger())
	require.NoError(t, err)
	require.Len(t, scheduler.Entries(), 1)
}

func TestWarmupJobUsesTopN(t *testing.T) {
	warmer := &stubWarmer{}
	warmupJob(warmer, 15, newTestLogger())()
	require.Equal(t, []int{15}, warmer.limits)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
