package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/celcat-feed/internal/domain/notify"
)

// Message is the JSON document delivered to the webhook.
type Message struct {
	ID         string      `json:"id"`
	GroupName  string      `json:"groupName"`
	EventCount int         `json:"eventCount"`
	Type       notify.Type `json:"type"`
	SentAt     time.Time   `json:"sentAt"`
}

func newMessage(n notify.Notification, now time.Time) Message {
	return Message{
		ID:         uuid.NewString(),
		GroupName:  n.GroupName,
		EventCount: n.EventCount,
		Type:       n.Type,
		SentAt:     now.UTC(),
	}
}

// WebhookSink posts notifications to an HTTP endpoint.
type WebhookSink struct {
	url        string
	httpClient *http.Client
	now        func() time.Time
}

// NewWebhookSink builds a sink for url.
func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSink{
		url:        strings.TrimSpace(url),
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// Send implements notify.Sink.
func (s *WebhookSink) Send(ctx context.Context, n notify.Notification) error {
	return s.deliver(ctx, newMessage(n, s.now()))
}

func (s *WebhookSink) deliver(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("webhook error: status=%d body=%s", resp.StatusCode, string(body))
	}
	return nil
}

var _ notify.Sink = (*WebhookSink)(nil)
