package events

import "time"

// TypeRule maps category keywords to a short type tag. Rules are tried in
// order and the first match wins.
type TypeRule struct {
	Tag      string   `yaml:"tag"`
	Keywords []string `yaml:"keywords"`
}

// Config holds the locale specific keyword tables of the transformer.
type Config struct {
	Location        *time.Location
	DefaultType     string
	HolidayType     string
	Blacklist       []string
	HolidayKeywords []string
	TypeRules       []TypeRule
}

// DefaultBlacklist lists description markers of events that are never shown.
var DefaultBlacklist = []string{"DSPEG"}

// DefaultHolidayKeywords identify vacation and closure events.
var DefaultHolidayKeywords = []string{"vacances", "congé", "congés", "férié", "fermeture", "holiday"}

// DefaultTypeRules is the French academic vocabulary used by CELCAT.
var DefaultTypeRules = []TypeRule{
	{Tag: "TD Machine", Keywords: []string{"td machine", "tdm", "td info", "td informatique"}},
	{Tag: "CM", Keywords: []string{"cm", "cours magistral", "magistral"}},
	{Tag: "TD", Keywords: []string{"td", "travaux dirigés"}},
	{Tag: "TP", Keywords: []string{"tp", "travaux pratiques"}},
	{Tag: "EXAM", Keywords: []string{"exam", "examen", "examens", "partiel", "contrôle", "evaluation"}},
}

// DefaultConfig returns the built-in tables in UTC.
func DefaultConfig() Config {
	return Config{
		Location:        time.UTC,
		DefaultType:     "Other",
		HolidayType:     "Holiday",
		Blacklist:       append([]string(nil), DefaultBlacklist...),
		HolidayKeywords: append([]string(nil), DefaultHolidayKeywords...),
		TypeRules:       append([]TypeRule(nil), DefaultTypeRules...),
	}
}
