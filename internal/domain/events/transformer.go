package events

import (
	"strings"
	"time"

	"github.com/yanqian/celcat-feed/internal/domain/schedule"
)

// Transformer turns raw upstream records into user facing events. It holds
// only configuration, so one instance is shared by all requests.
type Transformer struct {
	cfg       Config
	blacklist []string
	now       func() time.Time
}

// NewTransformer compiles the keyword tables of cfg.
func NewTransformer(cfg Config) *Transformer {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DefaultType == "" {
		cfg.DefaultType = "Other"
	}
	if cfg.HolidayType == "" {
		cfg.HolidayType = "Holiday"
	}
	blacklist := make([]string, 0, len(cfg.Blacklist))
	for _, item := range cfg.Blacklist {
		if item = strings.TrimSpace(item); item != "" {
			blacklist = append(blacklist, fold(item))
		}
	}
	return &Transformer{cfg: cfg, blacklist: blacklist, now: time.Now}
}

// Transform runs every raw event through the pipeline. Duplicate ids are
// dropped across the whole input, first occurrence wins.
func (t *Transformer) Transform(raws []schedule.RawEvent, opts Options) []ProcessedEvent {
	seen := make(map[string]struct{}, len(raws))
	out := make([]ProcessedEvent, 0, len(raws))
	for _, raw := range raws {
		if ev, ok := t.process(raw, opts, seen); ok {
			out = append(out, ev)
		}
	}
	return out
}

func (t *Transformer) process(raw schedule.RawEvent, opts Options, seen map[string]struct{}) (ProcessedEvent, bool) {
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		return ProcessedEvent{}, false
	}
	if _, dup := seen[id]; dup {
		return ProcessedEvent{}, false
	}
	seen[id] = struct{}{}
	if _, hidden := opts.HiddenEventIDs[id]; hidden {
		return ProcessedEvent{}, false
	}

	start, end, dateOnly, ok := t.parseRange(raw)
	if !ok {
		return ProcessedEvent{}, false
	}
	isHoliday := t.isHoliday(raw)
	allDay := raw.AllDay || isHoliday || dateOnly
	if allDay {
		start, end = allDayRange(start, end)
	}

	if isHoliday {
		if !opts.ShowHolidays || !t.inAcademicYear(start, end) {
			return ProcessedEvent{}, false
		}
	}
	if t.blacklisted(raw) {
		return ProcessedEvent{}, false
	}

	lines := cleanLines(raw.Description)
	ev := ProcessedEvent{
		ID:          id,
		Start:       start,
		End:         end,
		Description: strings.Join(lines, "\n"),
		IsHoliday:   isHoliday,
		AllDay:      allDay,
	}

	var tag string
	if isHoliday {
		ev.EventType = t.cfg.HolidayType
		ev.Summary = holidaySummary(lines, raw.EventCategory, t.cfg.HolidayType)
		ev.Location = collapseLocation(strings.Join(cleanList(raw.Sites), " - "))
	} else {
		tag = t.typeTag(raw.EventCategory, lines)
		ev.EventType = tag
		if tag == "" {
			ev.EventType = t.cfg.DefaultType
		}
		parsed := parseDescription(lines, tag, raw)
		ev.Professor = parsed.professor
		ev.Summary = buildSummary(tag, parsed.course, parsed.professor)
		if ev.Summary == "" {
			ev.Summary = ev.EventType
		}
		ev.Location = buildLocation(raw.Sites, parsed.room)
	}

	if !applyCustomization(&ev, tag, opts) {
		return ProcessedEvent{}, false
	}
	return ev, true
}

func (t *Transformer) parseRange(raw schedule.RawEvent) (time.Time, time.Time, bool, bool) {
	start, dateOnly, ok := parseTime(raw.Start, t.cfg.Location)
	if !ok {
		return time.Time{}, time.Time{}, false, false
	}
	end, _, ok := parseTime(raw.End, t.cfg.Location)
	if !ok || end.Before(start) {
		end = start
	}
	return start, end, dateOnly, true
}

// allDayRange snaps to whole days with an exclusive end.
func allDayRange(start, end time.Time) (time.Time, time.Time) {
	startDay := startOfDay(start)
	endDay := startOfDay(end)
	if end.After(endDay) || !endDay.After(startDay) {
		endDay = endDay.AddDate(0, 0, 1)
	}
	return startDay, endDay
}

func (t *Transformer) isHoliday(raw schedule.RawEvent) bool {
	padded := keywordText(raw.EventCategory + " " + strings.Join(cleanLines(raw.Description), " "))
	for _, kw := range t.cfg.HolidayKeywords {
		if containsKeyword(padded, kw) {
			return true
		}
	}
	return false
}

func (t *Transformer) inAcademicYear(start, end time.Time) bool {
	windowStart, windowEnd := schedule.AcademicYear(t.now(), t.cfg.Location)
	return end.After(windowStart) && start.Before(windowEnd)
}

func (t *Transformer) blacklisted(raw schedule.RawEvent) bool {
	if len(t.blacklist) == 0 {
		return false
	}
	haystack := fold(raw.Description + " " + raw.EventCategory)
	for _, item := range t.blacklist {
		if strings.Contains(haystack, item) {
			return true
		}
	}
	return false
}

// typeTag derives the short type from the category, falling back to a tag
// line at the top of the description.
func (t *Transformer) typeTag(category string, lines []string) string {
	if tag := t.matchType(category); tag != "" {
		return tag
	}
	if len(lines) > 0 {
		return t.matchType(lines[0])
	}
	return ""
}

func (t *Transformer) matchType(text string) string {
	padded := keywordText(text)
	if strings.TrimSpace(padded) == "" {
		return ""
	}
	for _, rule := range t.cfg.TypeRules {
		for _, kw := range rule.Keywords {
			if containsKeyword(padded, kw) {
				return rule.Tag
			}
		}
		if containsKeyword(padded, rule.Tag) {
			return rule.Tag
		}
	}
	return ""
}

type descriptionParts struct {
	course    string
	professor string
	room      string
}

// parseDescription picks the course name, instructor and room out of the
// cleaned description lines. CELCAT lists the type, the course, the staff
// and the room in that order, interleaved with module codes and sites.
func parseDescription(lines []string, tag string, raw schedule.RawEvent) descriptionParts {
	var parts descriptionParts
	modules := foldSet(raw.Modules)
	sites := foldSet(raw.Sites)
	skipped := map[string]struct{}{fold(raw.EventCategory): {}}
	if tag != "" {
		skipped[fold(tag)] = struct{}{}
	}

	for _, line := range lines {
		key := fold(line)
		if _, skip := skipped[key]; skip {
			continue
		}
		if _, isSite := sites[key]; isSite {
			continue
		}
		if isRoom(line) {
			if parts.room == "" {
				parts.room = line
			}
			continue
		}
		if _, isModule := modules[key]; isModule || isCode(line) {
			continue
		}
		switch {
		case parts.course == "":
			parts.course = line
		case parts.professor == "" && looksLikePerson(line):
			parts.professor = line
		}
	}

	if parts.course == "" {
		parts.course = moduleName(raw.Modules)
	}
	return parts
}

// moduleName turns "INF1234 - Algorithmique" into "Algorithmique".
func moduleName(modules []string) string {
	cleaned := cleanList(modules)
	if len(cleaned) == 0 {
		return ""
	}
	if _, name, found := strings.Cut(cleaned[0], " - "); found && strings.TrimSpace(name) != "" {
		return strings.TrimSpace(name)
	}
	return cleaned[0]
}

func buildSummary(tag, course, professor string) string {
	summary := strings.TrimSpace(strings.Join(nonEmpty(tag, course), " "))
	if professor != "" {
		if summary == "" {
			return professor
		}
		summary += " - " + professor
	}
	return summary
}

func holidaySummary(lines []string, category, fallback string) string {
	if len(lines) > 0 {
		return lines[0]
	}
	if c := strings.TrimSpace(category); c != "" {
		return c
	}
	return fallback
}

func buildLocation(sites []string, room string) string {
	parts := cleanList(sites)
	if room != "" {
		foldedRoom := fold(room)
		contained := false
		for _, part := range parts {
			if strings.Contains(fold(part), foldedRoom) {
				contained = true
				break
			}
		}
		if !contained {
			parts = append(parts, room)
		}
	}
	return collapseLocation(strings.Join(parts, " - "))
}

// applyCustomization runs the user rules last. It returns false when a
// hidden rule removes the event.
func applyCustomization(ev *ProcessedEvent, tag string, opts Options) bool {
	for _, rule := range opts.HiddenRules {
		value := strings.TrimSpace(rule.Value)
		if value == "" {
			continue
		}
		switch rule.Type {
		case RuleName:
			if ev.Summary == value {
				return false
			}
		case RuleProfessor:
			if ev.Professor != "" && strings.Contains(fold(ev.Professor), fold(value)) {
				return false
			}
		}
	}

	if name := strings.TrimSpace(opts.CustomNames[ev.ID]); name != "" {
		ev.Summary = name
	} else if renamed := strings.TrimSpace(opts.RenamingRules[ev.Summary]); renamed != "" {
		ev.Summary = renamed
	} else if tag != "" && strings.HasPrefix(ev.Summary, tag) {
		if mapped := strings.TrimSpace(opts.RenamingRules[tag]); mapped != "" {
			ev.Summary = mapped + strings.TrimPrefix(ev.Summary, tag)
		}
	}

	if color := strings.TrimSpace(opts.ColorMap[ev.EventType]); color != "" {
		ev.Color = color
	}
	return true
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		clean := strings.Join(cleanLines(v), " ")
		if clean == "" {
			continue
		}
		key := fold(clean)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, clean)
	}
	return out
}

func foldSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range cleanList(values) {
		set[fold(v)] = struct{}{}
	}
	return set
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
