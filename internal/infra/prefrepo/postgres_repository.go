package prefrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/celcat-feed/internal/domain/events"
	"github.com/yanqian/celcat-feed/internal/domain/preferences"
	"github.com/yanqian/celcat-feed/internal/domain/schedule"
)

// PostgresRepository reads calendar preferences from Postgres. The list and
// map columns are jsonb.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// FindByToken fetches the preferences bound to a subscription token.
func (r *PostgresRepository) FindByToken(ctx context.Context, token string) (preferences.Preferences, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT token, groups, hidden_events, show_holidays, color_map, custom_names, hidden_rules, renaming_rules
		FROM calendar_preferences
		WHERE token = $1
		LIMIT 1
	`, token)
	prefs, err := scanPreferences(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return preferences.Preferences{}, false, nil
		}
		return preferences.Preferences{}, false, err
	}
	return prefs, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPreferences(row rowScanner) (preferences.Preferences, error) {
	var (
		prefs                         preferences.Preferences
		groups, hidden, colors, names []byte
		rules, renames                []byte
	)
	if err := row.Scan(&prefs.Token, &groups, &hidden, &prefs.ShowHolidays, &colors, &names, &rules, &renames); err != nil {
		return preferences.Preferences{}, err
	}
	var (
		groupRefs   []schedule.GroupRef
		hiddenRules []events.HiddenRule
	)
	columns := []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"groups", groups, &groupRefs},
		{"hidden_events", hidden, &prefs.HiddenEvents},
		{"color_map", colors, &prefs.ColorMap},
		{"custom_names", names, &prefs.CustomNames},
		{"hidden_rules", rules, &hiddenRules},
		{"renaming_rules", renames, &prefs.RenamingRules},
	}
	for _, col := range columns {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dst); err != nil {
			return preferences.Preferences{}, fmt.Errorf("decode %s: %w", col.name, err)
		}
	}
	prefs.Groups = groupRefs
	prefs.HiddenRules = hiddenRules
	return prefs, nil
}

var _ preferences.Repository = (*PostgresRepository)(nil)
