package preferences

import (
	"context"

	"github.com/yanqian/celcat-feed/internal/domain/events"
	"github.com/yanqian/celcat-feed/internal/domain/schedule"
)

// Preferences is the stored calendar setup behind a subscription token.
type Preferences struct {
	Token         string              `json:"token"`
	Groups        []schedule.GroupRef `json:"groups"`
	HiddenEvents  []string            `json:"hiddenEvents"`
	ShowHolidays  bool                `json:"showHolidays"`
	ColorMap      map[string]string   `json:"colorMap"`
	CustomNames   map[string]string   `json:"customNames"`
	HiddenRules   []events.HiddenRule `json:"hiddenRules"`
	RenamingRules map[string]string   `json:"renamingRules"`
}

// Options converts stored preferences into transformer options.
func (p Preferences) Options() events.Options {
	return events.Options{
		HiddenEventIDs: events.HiddenSet(p.HiddenEvents),
		HiddenRules:    p.HiddenRules,
		CustomNames:    p.CustomNames,
		RenamingRules:  p.RenamingRules,
		ColorMap:       p.ColorMap,
		ShowHolidays:   p.ShowHolidays,
	}
}

// Repository resolves subscription tokens.
type Repository interface {
	FindByToken(ctx context.Context, token string) (Preferences, bool, error)
}
