package schedule

import (
	"context"
	"time"
)

// RawEvent is a single record returned by the timetable provider. Every field
// is optional and nothing about it is trusted.
type RawEvent struct {
	ID            string   `json:"id"`
	Start         string   `json:"start"`
	End           string   `json:"end"`
	AllDay        bool     `json:"allDay,omitempty"`
	Description   string   `json:"description"`
	EventCategory string   `json:"eventCategory"`
	Modules       []string `json:"modules"`
	Sites         []string `json:"sites"`
}

// CacheEntry is the payload persisted for one group in either cache layer.
type CacheEntry struct {
	GroupKey string     `json:"groupKey"`
	Events   []RawEvent `json:"events"`
	StoredAt time.Time  `json:"storedAt"`
}

// Upstream fetches raw events for one group over a date range.
type Upstream interface {
	FetchGroup(ctx context.Context, groupID string, start, end time.Time) ([]RawEvent, error)
}

// RemoteStore is the shared key-value layer behind the in-process cache.
type RemoteStore interface {
	GetEntry(ctx context.Context, groupKey string) (CacheEntry, bool, error)
	SaveEntry(ctx context.Context, entry CacheEntry, ttl time.Duration) error
}

// SignatureStore keeps the last observed schedule signature per group.
type SignatureStore interface {
	GetSignature(ctx context.Context, groupKey string) (string, bool, error)
	SaveSignature(ctx context.Context, groupKey, signature string) error
}

// AcademicYear returns the Aug 1 - Jul 31 window containing now. The end is
// exclusive (Aug 1 of the following year).
func AcademicYear(now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	year := local.Year()
	if local.Month() < time.August {
		year--
	}
	start := time.Date(year, time.August, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(1, 0, 0)
}
