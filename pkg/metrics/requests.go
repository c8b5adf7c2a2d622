package metrics

import (
	"sort"
	"sync"
	"time"
)

// RequestStat summarizes how often a key was requested within the current window.
type RequestStat struct {
	Key          string    `json:"key"`
	Label        string    `json:"label"`
	Count        int64     `json:"count"`
	FirstRequest time.Time `json:"firstRequest"`
	LastRequest  time.Time `json:"lastRequest"`
}

// RequestStats keeps windowed per-key counters. A key's counter restarts once
// its window has elapsed since the first request of the window.
type RequestStats struct {
	mu     sync.Mutex
	window time.Duration
	stats  map[string]*RequestStat
	now    func() time.Time
}

// NewRequestStats builds a counter set. A non-positive window disables resets.
func NewRequestStats(window time.Duration) *RequestStats {
	return &RequestStats{
		window: window,
		stats:  make(map[string]*RequestStat),
		now:    time.Now,
	}
}

// Record counts one request for key.
func (s *RequestStats) Record(key, label string) {
	if key == "" {
		return
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	stat, ok := s.stats[key]
	if !ok || s.expired(stat, now) {
		s.stats[key] = &RequestStat{Key: key, Label: label, Count: 1, FirstRequest: now, LastRequest: now}
		return
	}
	stat.Count++
	stat.LastRequest = now
	if label != "" {
		stat.Label = label
	}
}

// Get returns a copy of the counter for key.
func (s *RequestStats) Get(key string) (RequestStat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stat, ok := s.stats[key]
	if !ok || s.expired(stat, s.now()) {
		return RequestStat{}, false
	}
	return *stat, true
}

// Top returns the most requested keys of the live window, highest first.
func (s *RequestStats) Top(limit int) []RequestStat {
	now := s.now()
	s.mu.Lock()
	items := make([]RequestStat, 0, len(s.stats))
	for key, stat := range s.stats {
		if s.expired(stat, now) {
			delete(s.stats, key)
			continue
		}
		items = append(items, *stat)
	}
	s.mu.Unlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].Count == items[j].Count {
			return items[i].Key < items[j].Key
		}
		return items[i].Count > items[j].Count
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func (s *RequestStats) expired(stat *RequestStat, now time.Time) bool {
	if s.window <= 0 {
		return false
	}
	return now.Sub(stat.FirstRequest) >= s.window
}
