package celcat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yanqian/celcat-feed/internal/domain/schedule"
)

const (
	calendarDataPath = "/Home/GetCalendarData"
	dateLayout       = "2006-01-02"
	defaultResType   = "103"
	defaultCalView   = "month"
	defaultColour    = "3"
)

// Config describes the CELCAT endpoint and its form parameters.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	ResType      string
	CalView      string
	ColourScheme string
}

// Client fetches group timetables from a CELCAT calendar server.
type Client struct {
	cfg        Config
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds an upstream client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ResType == "" {
		cfg.ResType = defaultResType
	}
	if cfg.CalView == "" {
		cfg.CalView = defaultCalView
	}
	if cfg.ColourScheme == "" {
		cfg.ColourScheme = defaultColour
	}
	return &Client{
		cfg:      cfg,
		endpoint: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/") + calendarDataPath,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.With("component", "celcat.client"),
	}
}

// FetchGroup retrieves the raw events of one group between start and end.
func (c *Client) FetchGroup(ctx context.Context, groupID string, start, end time.Time) ([]schedule.RawEvent, error) {
	form := url.Values{}
	form.Set("start", start.Format(dateLayout))
	form.Set("end", end.Format(dateLayout))
	form.Set("resType", c.cfg.ResType)
	form.Set("calView", c.cfg.CalView)
	form.Set("federationIds[]", groupID)
	form.Set("colourScheme", c.cfg.ColourScheme)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build celcat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &schedule.UpstreamTransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &schedule.UpstreamHTTPError{Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &schedule.UpstreamTransportError{Err: fmt.Errorf("read celcat response: %w", err)}
	}
	events, skipped := decodeEvents(body)
	if skipped > 0 {
		c.logger.Warn("skipped malformed celcat elements", "group", groupID, "skipped", skipped)
	}
	return events, nil
}

type wireEvent struct {
	ID            json.RawMessage `json:"id"`
	Start         *string         `json:"start"`
	End           *string         `json:"end"`
	AllDay        bool            `json:"allDay"`
	Description   *string         `json:"description"`
	EventCategory *string         `json:"eventCategory"`
	Modules       []*string       `json:"modules"`
	Sites         []*string       `json:"sites"`
}

// decodeEvents tolerates a non-array body (no events) and skips elements that
// are not event objects.
func decodeEvents(body []byte) ([]schedule.RawEvent, int) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return []schedule.RawEvent{}, 0
	}
	var elements []json.RawMessage
	if err := json.Unmarshal(trimmed, &elements); err != nil {
		return []schedule.RawEvent{}, 0
	}

	events := make([]schedule.RawEvent, 0, len(elements))
	skipped := 0
	for _, element := range elements {
		element = bytes.TrimSpace(element)
		if len(element) == 0 || element[0] != '{' {
			skipped++
			continue
		}
		var wire wireEvent
		if err := json.Unmarshal(element, &wire); err != nil {
			skipped++
			continue
		}
		events = append(events, schedule.RawEvent{
			ID:            scalar(wire.ID),
			Start:         deref(wire.Start),
			End:           deref(wire.End),
			AllDay:        wire.AllDay,
			Description:   deref(wire.Description),
			EventCategory: deref(wire.EventCategory),
			Modules:       derefAll(wire.Modules),
			Sites:         derefAll(wire.Sites),
		})
	}
	return events, skipped
}

func scalar(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefAll(values []*string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out
}

var _ schedule.Upstream = (*Client)(nil)
