package schedule

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sort"
	"strings"

	"github.com/yanqian/celcat-feed/internal/domain/notify"
)

// emptySignature marks a group observed with zero events.
const emptySignature = "empty"

// Signature is an order independent digest of the (id, start, description)
// triples of events.
func Signature(events []RawEvent) string {
	if len(events) == 0 {
		return emptySignature
	}
	triples := make([]string, 0, len(events))
	for _, ev := range events {
		triples = append(triples, ev.ID+"\x1f"+ev.Start+"\x1f"+ev.Description)
	}
	sort.Strings(triples)
	sum := sha256.Sum256([]byte(strings.Join(triples, "\x1e")))
	return hex.EncodeToString(sum[:])
}

// ChangeDetector compares each fetched schedule with the previous one and
// notifies when a group's timetable moved.
type ChangeDetector struct {
	store    SignatureStore
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewChangeDetector builds a detector. A nil notifier only records signatures.
func NewChangeDetector(store SignatureStore, notifier notify.Notifier, logger *slog.Logger) *ChangeDetector {
	return &ChangeDetector{store: store, notifier: notifier, logger: logger.With("component", "schedule.changes")}
}

// Observe stores the signature of events for group and reports whether it
// differs from the previously stored one. The first observation is never a
// change.
func (d *ChangeDetector) Observe(ctx context.Context, group Group, events []RawEvent) (bool, error) {
	signature := Signature(events)
	previous, found, err := d.store.GetSignature(ctx, group.ID)
	if err != nil {
		return false, &CacheError{Op: "get signature", Err: err}
	}
	if found && previous == signature {
		return false, nil
	}
	if err := d.store.SaveSignature(ctx, group.ID, signature); err != nil {
		return false, &CacheError{Op: "save signature", Err: err}
	}
	if !found {
		return false, nil
	}
	d.logger.Info("schedule change detected", "group", group.ID, "events", len(events))
	if d.notifier != nil {
		d.notifier.Notify(notify.Notification{
			GroupName:  group.Label,
			EventCount: len(events),
			Type:       notify.TypeScheduleChange,
		})
	}
	return true, nil
}
