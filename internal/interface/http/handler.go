package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/celcat-feed/internal/domain/feed"
	"github.com/yanqian/celcat-feed/internal/domain/notify"
	"github.com/yanqian/celcat-feed/internal/domain/schedule"
	apperrors "github.com/yanqian/celcat-feed/pkg/errors"
)

const (
	formatICS  = "ics"
	formatJSON = "json"

	calendarContentType = "text/calendar; charset=utf-8"
)

// FeedBuilder assembles a feed from a request.
type FeedBuilder interface {
	Build(ctx context.Context, req feed.Request) (feed.Result, error)
}

// Warmer refreshes the most requested groups.
type Warmer interface {
	Warmup(ctx context.Context, limit int) []schedule.WarmupResult
}

// CacheStatus reports the cache tier health.
type CacheStatus interface {
	Len() int
	RemoteEnabled() bool
	BreakerState() schedule.BreakerState
}

// HandlerConfig carries the response knobs.
type HandlerConfig struct {
	CalendarName         string
	MaxAge               int
	StaleWhileRevalidate int
	WarmupTopN           int
	Production           bool
}

// Handler wires the HTTP transport to domain services.
type Handler struct {
	cfg      HandlerConfig
	feeds    FeedBuilder
	warmer   Warmer
	cache    CacheStatus
	notifier notify.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandler constructs the root HTTP handler.
func NewHandler(cfg HandlerConfig, feeds FeedBuilder, warmer Warmer, cache CacheStatus, notifier notify.Notifier, logger *slog.Logger) *Handler {
	if cfg.WarmupTopN <= 0 {
		cfg.WarmupTopN = 20
	}
	return &Handler{
		cfg:      cfg,
		feeds:    feeds,
		warmer:   warmer,
		cache:    cache,
		notifier: notifier,
		logger:   logger.With("component", "http.handler"),
		now:      time.Now,
	}
}

// Calendar serves a merged feed for a token or a groups list.
func (h *Handler) Calendar(c *gin.Context) {
	h.serveCalendar(c, c.Query("token"))
}

// CalendarFile serves the subscription URL form /calendar/<token>.ics.
func (h *Handler) CalendarFile(c *gin.Context) {
	token := strings.TrimSuffix(c.Param("file"), ".ics")
	if strings.TrimSpace(token) == "" {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeInvalidInput, "missing token", nil))
		return
	}
	h.serveCalendar(c, token)
}

func (h *Handler) serveCalendar(c *gin.Context, token string) {
	format := strings.ToLower(c.DefaultQuery("format", formatICS))
	if format != formatICS && format != formatJSON {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeInvalidInput, "format must be ics or json", nil))
		return
	}
	req := feed.Request{Token: token, Groups: c.Query("groups")}
	if raw := c.Query("holidays"); raw != "" {
		show, err := strconv.ParseBool(raw)
		if err != nil {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeInvalidInput, "holidays must be a boolean", err))
			return
		}
		req.Holidays = &show
	}

	res, err := h.feeds.Build(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, h.appError(err))
		return
	}

	if format == formatJSON {
		c.JSON(http.StatusOK, gin.H{"events": feed.ToList(res.Events)})
		return
	}

	if res.RawCount == 0 || len(res.Events) == 0 || (res.CourseCount == 0 && !res.ShowHolidays) {
		abortWithError(c, NewHTTPError(http.StatusNotFound, apperrors.CodeNotFound, "no courses found", nil))
		return
	}

	label := feed.CalendarName(res.Groups)
	name := h.cfg.CalendarName
	if name == "" {
		name = label
	} else if label != "" {
		name = name + " - " + label
	}
	body := feed.RenderCalendar(name, res.Events, h.now())

	headers := c.Writer.Header()
	headers.Set("Cache-Control", fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d", h.cfg.MaxAge, h.cfg.StaleWhileRevalidate))
	headers.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", feed.Filename(res.Groups)))
	c.Data(http.StatusOK, calendarContentType, []byte(body))

	if h.notifier != nil {
		h.notifier.Notify(notify.Notification{GroupName: label, EventCount: len(res.Events), Type: notify.TypeDownload})
	}
}

// Warmup refreshes the top groups on demand.
func (h *Handler) Warmup(c *gin.Context) {
	limit := h.cfg.WarmupTopN
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeInvalidInput, "limit must be a positive integer", err))
			return
		}
		limit = parsed
	}
	results := h.warmer.Warmup(c.Request.Context(), limit)
	c.JSON(http.StatusOK, gin.H{"refreshed": results})
}

// Health reports the cache tier state.
func (h *Handler) Health(c *gin.Context) {
	breaker := h.cache.BreakerState()
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"cache": gin.H{
			"memoryEntries": h.cache.Len(),
			"remoteEnabled": h.cache.RemoteEnabled(),
			"breaker": gin.H{
				"open":     breaker.Open,
				"failures": breaker.Failures,
			},
		},
	})
}

func (h *Handler) appError(err error) *HTTPError {
	status := http.StatusInternalServerError
	code := apperrors.CodeInternal
	switch {
	case apperrors.IsCode(err, apperrors.CodeInvalidInput):
		status, code = http.StatusBadRequest, apperrors.CodeInvalidInput
	case apperrors.IsCode(err, apperrors.CodeInvalidGroup):
		status, code = http.StatusBadRequest, apperrors.CodeInvalidGroup
	case apperrors.IsCode(err, apperrors.CodeNotFound):
		status, code = http.StatusNotFound, apperrors.CodeNotFound
	}
	message := apperrors.MessageOf(err)
	if status >= http.StatusInternalServerError {
		message = genericMessage
		if !h.cfg.Production {
			message = err.Error()
		}
	}
	return NewHTTPError(status, code, message, err)
}
