package feed

import (
	"regexp"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/yanqian/celcat-feed/internal/domain/events"
	"github.com/yanqian/celcat-feed/internal/domain/schedule"
)

const (
	productID        = "-//celcat-feed//Calendar Feed//FR"
	maxFilenameRunes = 80
	uidSuffix        = "@celcat-feed"
)

var (
	propertyColor  = ical.ComponentProperty("COLOR")
	propertyXColor = ical.ComponentProperty("X-CELCAT-COLOR")
	unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
)

// ListItem is the structured-list representation of one event.
type ListItem struct {
	ID          string    `json:"id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	EventType   string    `json:"eventType"`
	Color       string    `json:"color,omitempty"`
}

// ToList converts processed events to list items.
func ToList(evs []events.ProcessedEvent) []ListItem {
	items := make([]ListItem, 0, len(evs))
	for _, ev := range evs {
		items = append(items, ListItem{
			ID:          ev.ID,
			Start:       ev.Start,
			End:         ev.End,
			Summary:     ev.Summary,
			Description: ev.Description,
			Location:    ev.Location,
			EventType:   ev.EventType,
			Color:       ev.Color,
		})
	}
	return items
}

// RenderCalendar serializes events into one iCalendar document.
func RenderCalendar(name string, evs []events.ProcessedEvent, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)
	if name != "" {
		cal.SetXWRCalName(name)
	}
	cal.SetXPublishedTTL("PT1H")

	for _, ev := range evs {
		vevent := cal.AddEvent(ev.ID + uidSuffix)
		vevent.SetDtStampTime(stamp)
		if ev.AllDay {
			vevent.SetAllDayStartAt(ev.Start)
			vevent.SetAllDayEndAt(ev.End)
		} else {
			vevent.SetStartAt(ev.Start)
			vevent.SetEndAt(ev.End)
		}
		vevent.SetSummary(ev.Summary)
		if ev.Description != "" {
			vevent.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			vevent.SetLocation(ev.Location)
		}
		vevent.SetProperty(ical.ComponentPropertyCategories, ev.EventType)
		if ev.Color != "" {
			vevent.SetProperty(propertyColor, ev.Color)
			vevent.SetProperty(propertyXColor, ev.Color)
		}
	}
	return cal.Serialize()
}

// CalendarName joins the group labels for display.
func CalendarName(groups []schedule.Group) string {
	labels := make([]string, 0, len(groups))
	for _, g := range groups {
		labels = append(labels, g.Label)
	}
	return strings.Join(labels, ", ")
}

// Filename derives a download name restricted to [A-Za-z0-9_-].
func Filename(groups []schedule.Group) string {
	labels := make([]string, 0, len(groups))
	for _, g := range groups {
		clean := strings.Trim(unsafeFilename.ReplaceAllString(g.Label, "-"), "-")
		if clean != "" {
			labels = append(labels, clean)
		}
	}
	name := strings.Join(labels, "_")
	if len(name) > maxFilenameRunes {
		name = strings.TrimRight(name[:maxFilenameRunes], "-_")
	}
	if name == "" {
		name = "calendar"
	}
	return name + ".ics"
}
