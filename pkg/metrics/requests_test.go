package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRequestStatsWindowReset(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	stats := NewRequestStats(time.Hour)
	stats.now = func() time.Time { return now }

	stats.Record("g1", "Group 1")
	now = now.Add(10 * time.Minute)
	stats.Record("g1", "")

	got, ok := stats.Get("g1")
	require.True(t, ok)
	require.EqualValues(t, 2, got.Count)
	require.Equal(t, "Group 1", got.Label)

	now = now.Add(time.Hour)
	stats.Record("g1", "")
	got, ok = stats.Get("g1")
	require.True(t, ok)
	require.EqualValues(t, 1, got.Count)
	require.Equal(t, now, got.FirstRequest)
}

func TestRequestStatsTop(t *testing.T) {
	stats := NewRequestStats(0)
	for i := 0; i < 3; i++ {
		stats.Record("b", "")
	}
	stats.Record("a", "")
	stats.Record("c", "")
	stats.Record("c", "")

	top := stats.Top(2)
	require.Len(t, top, 2)
	require.Equal(t, "b", top[0].Key)
	require.Equal(t, "c", top[1].Key)
	require.Len(t, stats.Top(0), 3)
}
