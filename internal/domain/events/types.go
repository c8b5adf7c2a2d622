package events

import "time"

// RuleType selects what a hidden rule matches against.
type RuleType string

const (
	// RuleName hides events whose summary equals the rule value.
	RuleName RuleType = "name"
	// RuleProfessor hides events whose instructor contains the rule value.
	RuleProfessor RuleType = "professor"
)

// HiddenRule is a user supplied rule that removes matching events.
type HiddenRule struct {
	Type  RuleType `json:"ruleType"`
	Value string   `json:"value"`
}

// Options carries the per-request customization. The transformer never
// mutates it.
type Options struct {
	HiddenEventIDs map[string]struct{}
	HiddenRules    []HiddenRule
	CustomNames    map[string]string
	RenamingRules  map[string]string
	ColorMap       map[string]string
	ShowHolidays   bool
}

// HiddenSet builds the lookup set used by Options.HiddenEventIDs.
func HiddenSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

// ProcessedEvent is a cleaned, customized event ready to be serialized.
type ProcessedEvent struct {
	ID          string    `json:"id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	EventType   string    `json:"eventType"`
	Professor   string    `json:"professor,omitempty"`
	Color       string    `json:"color,omitempty"`
	IsHoliday   bool      `json:"isHoliday"`
	AllDay      bool      `json:"allDay"`
}
