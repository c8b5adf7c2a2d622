package celcat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/celcat-feed/internal/domain/schedule"
)

func TestFetchGroupPostsForm(t *testing.T) {
	var form map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/Home/GetCalendarData", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[
			{"id":"E1","start":"2024-01-15T09:00:00","end":"2024-01-15T11:00:00","description":"CM<br />Maths","eventCategory":"CM","modules":["MAT101"],"sites":["Campus"]},
			{"id":42,"start":"2024-01-16","allDay":true,"description":null,"modules":null},
			"garbage",
			null,
			{"id":"E3","start":5}
		]`)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL + "/"}, newTestLogger())
	start := time.Date(2023, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)

	events, err := client.FetchGroup(context.Background(), "G1", start, end)
	require.NoError(t, err)
	require.Equal(t, []string{"2023-08-01"}, form["start"])
	require.Equal(t, []string{"2024-08-01"}, form["end"])
	require.Equal(t, []string{"G1"}, form["federationIds[]"])
	require.Equal(t, []string{"103"}, form["resType"])
	require.Equal(t, []string{"month"}, form["calView"])

	require.Len(t, events, 2)
	require.Equal(t, schedule.RawEvent{
		ID:            "E1",
		Start:         "2024-01-15T09:00:00",
		End:           "2024-01-15T11:00:00",
		Description:   "CM<br />Maths",
		EventCategory: "CM",
		Modules:       []string{"MAT101"},
		Sites:         []string{"Campus"},
	}, events[0])
	require.Equal(t, "42", events[1].ID)
	require.True(t, events[1].AllDay)
	require.Nil(t, events[1].Modules)
}

func TestFetchGroupHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, newTestLogger())
	_, err := client.FetchGroup(context.Background(), "G1", time.Now(), time.Now())

	var httpErr *schedule.UpstreamHTTPError
	require.True(t, errors.As(err, &httpErr))
	require.Equal(t, http.StatusServiceUnavailable, httpErr.Status)
}

func TestFetchGroupTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	client := NewClient(Config{BaseURL: server.URL}, newTestLogger())
	_, err := client.FetchGroup(context.Background(), "G1", time.Now(), time.Now())

	var transportErr *schedule.UpstreamTransportError
	require.True(t, errors.As(err, &transportErr))
}

func TestDecodeEventsNonArray(t *testing.T) {
	for _, body := range []string{``, `{"error":"x"}`, `null`, `[broken`} {
		events, skipped := decodeEvents([]byte(body))
		require.Empty(t, events, body)
		require.Zero(t, skipped, body)
	}
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
