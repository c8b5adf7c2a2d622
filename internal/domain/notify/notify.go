package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/yanqian/celcat-feed/pkg/util"
)

// Type classifies a notification.
type Type string

const (
	// TypeDownload is sent after a calendar feed was served.
	TypeDownload Type = "download"
	// TypeRefresh is sent after a warmup refreshed a group.
	TypeRefresh Type = "refresh"
	// TypeScheduleChange is sent when a group's timetable changed upstream.
	TypeScheduleChange Type = "schedule_change"
)

// Notification is the payload handed to a sink.
type Notification struct {
	GroupName  string `json:"groupName"`
	EventCount int    `json:"eventCount"`
	Type       Type   `json:"type"`
}

// Sink delivers a notification somewhere outside the process.
type Sink interface {
	Send(ctx context.Context, n Notification) error
}

// Notifier is the fire-and-forget contract used by the pipeline.
type Notifier interface {
	Notify(n Notification)
}

// Dispatcher hands notifications to a sink on a detached goroutine.
type Dispatcher struct {
	sink    Sink
	timeout time.Duration
	logger  *slog.Logger
}

// NewDispatcher wraps sink. A nil sink drops every notification.
func NewDispatcher(sink Sink, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{sink: sink, timeout: timeout, logger: logger.With("component", "notify.dispatcher")}
}

// Notify never blocks and never reports failure to the caller.
func (d *Dispatcher) Notify(n Notification) {
	if d == nil || d.sink == nil {
		return
	}
	util.Go(d.logger, "notify", func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.sink.Send(ctx, n); err != nil {
			d.logger.Warn("notification delivery failed", "type", n.Type, "group", n.GroupName, "error", err)
		}
	})
}

var _ Notifier = (*Dispatcher)(nil)
