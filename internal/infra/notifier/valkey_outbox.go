package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/celcat-feed/internal/domain/notify"
)

// ValkeyOutbox buffers notifications in a Valkey list and drains them into
// the webhook, so deliveries survive webhook outages and restarts.
type ValkeyOutbox struct {
	client      valkey.Client
	key         string
	webhook     *WebhookSink
	logger      *slog.Logger
	pollTimeout time.Duration
	now         func() time.Time
}

// NewValkeyOutbox constructs a Valkey-backed outbox.
func NewValkeyOutbox(client valkey.Client, key string, webhook *WebhookSink, logger *slog.Logger) *ValkeyOutbox {
	if key == "" {
		key = "celcat:notifications"
	}
	return &ValkeyOutbox{
		client:      client,
		key:         key,
		webhook:     webhook,
		logger:      logger.With("component", "notifier.outbox"),
		pollTimeout: 5 * time.Second,
		now:         time.Now,
	}
}

// Send implements notify.Sink by pushing onto the outbox list.
func (o *ValkeyOutbox) Send(ctx context.Context, n notify.Notification) error {
	encoded, err := json.Marshal(newMessage(n, o.now()))
	if err != nil {
		return err
	}
	return o.client.Do(ctx, o.client.B().Lpush().Key(o.key).Element(string(encoded)).Build()).Error()
}

// Run drains the outbox until ctx is cancelled. A failed delivery is pushed
// back to the tail for a later attempt.
func (o *ValkeyOutbox) Run(ctx context.Context) {
	for ctx.Err() == nil {
		resp := o.client.Do(ctx, o.client.B().Brpop().Key(o.key).Timeout(o.pollTimeout.Seconds()).Build())
		values, err := resp.ToArray()
		if err != nil {
			if !valkey.IsValkeyNil(err) && ctx.Err() == nil {
				o.logger.Warn("outbox pop failed", "error", err)
				sleepCtx(ctx, time.Second)
			}
			continue
		}
		if len(values) < 2 {
			continue
		}
		raw, err := values[1].ToString()
		if err != nil {
			o.logger.Warn("outbox payload decode failed", "error", err)
			continue
		}
		var msg Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			o.logger.Warn("outbox unmarshal failed", "error", err)
			continue
		}
		if err := o.webhook.deliver(ctx, msg); err != nil {
			o.logger.Warn("outbox delivery failed, requeueing", "id", msg.ID, "error", err)
			_ = o.client.Do(context.Background(), o.client.B().Rpush().Key(o.key).Element(raw).Build()).Error()
			sleepCtx(ctx, time.Second)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

var _ notify.Sink = (*ValkeyOutbox)(nil)
