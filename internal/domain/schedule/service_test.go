package schedule

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/celcat-feed/internal/domain/notify"
	"github.com/yanqian/celcat-feed/pkg/metrics"
)

func TestEventsForGroupSingleFlight(t *testing.T) {
	release := make(chan struct{})
	upstream := &stubUpstream{
		fetchFn: func(ctx context.Context, groupID string) ([]RawEvent, error) {
			<-release
			return []RawEvent{{ID: "e1"}}, nil
		},
	}
	svc := newServiceUnderTest(upstream, nil)

	const callers = 20
	var wg sync.WaitGroup
	results := make([][]RawEvent, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.EventsForGroup(context.Background(), GroupText("G1"), false)
		}(i)
	}
	require.Eventually(t, func() bool { return upstream.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, 1, upstream.count())
	for _, res := range results {
		require.Len(t, res, 1)
	}
	stat, ok := svc.stats.Get("G1")
	require.True(t, ok)
	require.EqualValues(t, callers, stat.Count)
}

func TestEventsForGroupServesFreshCache(t *testing.T) {
	upstream := &stubUpstream{events: []RawEvent{{ID: "e1"}}}
	svc := newServiceUnderTest(upstream, nil)

	first := svc.EventsForGroup(context.Background(), GroupText("G1"), false)
	second := svc.EventsForGroup(context.Background(), GroupText("G1::Label"), false)

	require.Equal(t, first, second)
	require.Equal(t, 1, upstream.count())
}

func TestEventsForGroupStaleWhileRevalidate(t *testing.T) {
	now := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	upstream := &stubUpstream{events: []RawEvent{{ID: "fresh"}}}
	svc := newServiceUnderTest(upstream, &now)
	svc.cache.Set(context.Background(), "G1", []RawEvent{{ID: "old"}})

	now = now.Add(20 * time.Minute)
	got := svc.EventsForGroup(context.Background(), GroupText("G1"), false)
	require.Equal(t, "old", got[0].ID, "stale entries are served immediately")
	got = svc.EventsForGroup(context.Background(), GroupText("G1"), false)
	require.NotEmpty(t, got)

	require.Eventually(t, func() bool { return upstream.count() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		hit, ok := svc.cache.Get(context.Background(), "G1")
		return ok && !hit.Stale && hit.Events[0].ID == "fresh"
	}, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, upstream.count())
}

func TestEventsForGroupDegradesOnFailure(t *testing.T) {
	upstream := &stubUpstream{err: &UpstreamHTTPError{Status: 404}}
	svc := newServiceUnderTest(upstream, nil)

	got := svc.EventsForGroup(context.Background(), GroupText("G1"), false)
	require.Empty(t, got)
	require.Equal(t, 1, upstream.count(), "client errors are not retried")

	_, ok := svc.cache.Get(context.Background(), "G1")
	require.False(t, ok)
}

func TestEventsForGroupRetriesTransportFailureOnce(t *testing.T) {
	var attempts atomic.Int32
	upstream := &stubUpstream{
		fetchFn: func(ctx context.Context, groupID string) ([]RawEvent, error) {
			if attempts.Add(1) == 1 {
				return nil, &UpstreamTransportError{Err: context.DeadlineExceeded}
			}
			return []RawEvent{{ID: "e1"}}, nil
		},
	}
	svc := newServiceUnderTest(upstream, nil)

	got := svc.EventsForGroup(context.Background(), GroupText("G1"), false)
	require.Len(t, got, 1)
	require.EqualValues(t, 2, attempts.Load())
}

func TestEventsForGroupForceRefreshSkipsCacheWithoutRetry(t *testing.T) {
	upstream := &stubUpstream{events: []RawEvent{{ID: "e1"}}}
	svc := newServiceUnderTest(upstream, nil)
	svc.EventsForGroup(context.Background(), GroupText("G1"), false)

	upstream.setErr(&UpstreamTransportError{Err: errors.New("reset")})
	got := svc.EventsForGroup(context.Background(), GroupText("G1"), true)
	require.Empty(t, got)
	require.Equal(t, 2, upstream.count())

	hit, ok := svc.cache.Get(context.Background(), "G1")
	require.True(t, ok, "failed refresh keeps the previous entry")
	require.Equal(t, "e1", hit.Events[0].ID)
}

func TestEventsForGroupRejectsInvalidReferences(t *testing.T) {
	upstream := &stubUpstream{events: []RawEvent{{ID: "e1"}}}
	svc := newServiceUnderTest(upstream, nil)

	require.Empty(t, svc.EventsForGroup(context.Background(), GroupText("<script>x"), false))
	require.Empty(t, svc.EventsForGroup(context.Background(), GroupText(""), false))
	require.Zero(t, upstream.count())
	require.Empty(t, svc.stats.Top(0))
}

func TestEventsForGroupDetectsScheduleChanges(t *testing.T) {
	upstream := &stubUpstream{events: []RawEvent{{ID: "e1", Start: "2024-01-01T08:00:00"}}}
	notifier := &recordingNotifier{}
	svc := newServiceUnderTest(upstream, nil)
	store := newFakeRemote()
	svc.changes = NewChangeDetector(store, notifier, newTestLogger())

	svc.EventsForGroup(context.Background(), GroupText("G1::Group one"), true)
	require.Eventually(t, func() bool {
		_, found, _ := store.GetSignature(context.Background(), "G1")
		return found
	}, time.Second, 5*time.Millisecond)
	upstream.setEvents([]RawEvent{{ID: "e1", Start: "2024-01-02T08:00:00"}})
	svc.EventsForGroup(context.Background(), GroupText("G1::Group one"), true)

	require.Eventually(t, func() bool { return len(notifier.all()) == 1 }, time.Second, 5*time.Millisecond)
	got := notifier.all()[0]
	require.Equal(t, notify.TypeScheduleChange, got.Type)
	require.Equal(t, "Group one", got.GroupName)
}

func TestWarmupRefreshesTopGroups(t *testing.T) {
	upstream := &stubUpstream{events: []RawEvent{{ID: "e1"}, {ID: "e2"}}}
	notifier := &recordingNotifier{}
	svc := newServiceUnderTest(upstream, nil)
	svc.notifier = notifier
	for i := 0; i < 3; i++ {
		svc.EventsForGroup(context.Background(), GroupText("A::Alpha"), false)
	}
	svc.EventsForGroup(context.Background(), GroupText("B"), false)
	calls := upstream.count()

	results := svc.Warmup(context.Background(), 1)
	require.Len(t, results, 1)
	require.Equal(t, Group{ID: "A", Label: "Alpha"}, results[0].Group)
	require.Equal(t, 2, results[0].Events)
	require.Equal(t, calls+1, upstream.count())

	stat, _ := svc.stats.Get("A")
	require.EqualValues(t, 3, stat.Count, "warmup is not user traffic")
	require.Len(t, notifier.all(), 1)
	require.Equal(t, notify.TypeRefresh, notifier.all()[0].Type)
}

func TestSignatureIsOrderIndependent(t *testing.T) {
	a := RawEvent{ID: "1", Start: "s1", Description: "d1"}
	b := RawEvent{ID: "2", Start: "s2", Description: "d2"}
	require.Equal(t, Signature([]RawEvent{a, b}), Signature([]RawEvent{b, a}))
	require.NotEqual(t, Signature([]RawEvent{a}), Signature([]RawEvent{a, b}))
	require.Equal(t, emptySignature, Signature(nil))
}

func TestChangeDetectorFirstObservationIsNotAChange(t *testing.T) {
	store := newFakeRemote()
	detector := NewChangeDetector(store, nil, newTestLogger())
	group := Group{ID: "G1", Label: "G1"}

	changed, err := detector.Observe(context.Background(), group, nil)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, emptySignature, store.signatures["G1"])

	changed, err = detector.Observe(context.Background(), group, nil)
	require.NoError(t, err)
	require.False(t, changed)

	changed, err = detector.Observe(context.Background(), group, []RawEvent{{ID: "x"}})
	require.NoError(t, err)
	require.True(t, changed)
}

func newServiceUnderTest(upstream Upstream, now *time.Time) *Service {
	clock := now
	if clock == nil {
		t := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
		clock = &t
	}
	cache := newTestCache(nil, clock)
	svc := NewService(Config{RetryDelay: time.Millisecond}, cache, upstream, metrics.NewRequestStats(time.Hour), nil, nil, newTestLogger())
	svc.now = func() time.Time { return *clock }
	return svc
}

type stubUpstream struct {
	mu      sync.Mutex
	calls   int
	events  []RawEvent
	err     error
	fetchFn func(ctx context.Context, groupID string) ([]RawEvent, error)
}

func (s *stubUpstream) FetchGroup(ctx context.Context, groupID string, _, _ time.Time) ([]RawEvent, error) {
	s.mu.Lock()
	s.calls++
	fn, events, err := s.fetchFn, s.events, s.err
	s.mu.Unlock()
	if fn != nil {
		return fn(ctx, groupID)
	}
	return events, err
}

func (s *stubUpstream) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubUpstream) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *stubUpstream) setEvents(events []RawEvent) {
	s.mu.Lock()
	s.events = events
	s.mu.Unlock()
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingNotifier) Notify(n notify.Notification) {
	r.mu.Lock()
	r.sent = append(r.sent, n)
	r.mu.Unlock()
}

func (r *recordingNotifier) all() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.sent...)
}
