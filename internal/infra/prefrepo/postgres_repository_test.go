package prefrepo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/celcat-feed/internal/domain/events"
	"github.com/yanqian/celcat-feed/internal/domain/preferences"
	"github.com/yanqian/celcat-feed/internal/domain/schedule"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch ptr := d.(type) {
		case *string:
			*ptr = r.values[i].(string)
		case *bool:
			*ptr = r.values[i].(bool)
		case *[]byte:
			if r.values[i] != nil {
				*ptr = []byte(r.values[i].(string))
			}
		}
	}
	return nil
}

func TestScanPreferences(t *testing.T) {
	row := fakeRow{values: []any{
		"tok",
		`["G1::Licence 3", {"id": 42, "name": "M1"}]`,
		`["e2"]`,
		true,
		`{"CM": "#ff0000"}`,
		nil,
		`[{"ruleType": "professor", "value": "Smith"}]`,
		`{"TD": "Travaux"}`,
	}}

	prefs, err := scanPreferences(row)
	require.NoError(t, err)
	require.Equal(t, "tok", prefs.Token)
	require.Equal(t, []schedule.GroupRef{schedule.GroupText("G1::Licence 3"), schedule.GroupObject("42", "M1")}, prefs.Groups)
	require.Equal(t, []string{"e2"}, prefs.HiddenEvents)
	require.True(t, prefs.ShowHolidays)
	require.Equal(t, map[string]string{"CM": "#ff0000"}, prefs.ColorMap)
	require.Nil(t, prefs.CustomNames)
	require.Equal(t, []events.HiddenRule{{Type: events.RuleProfessor, Value: "Smith"}}, prefs.HiddenRules)
	require.Equal(t, map[string]string{"TD": "Travaux"}, prefs.RenamingRules)
}

func TestScanPreferencesBadJSON(t *testing.T) {
	row := fakeRow{values: []any{"tok", `{not json`, nil, false, nil, nil, nil, nil}}
	_, err := scanPreferences(row)
	require.ErrorContains(t, err, "decode groups")
}

func TestScanPreferencesScanError(t *testing.T) {
	_, err := scanPreferences(fakeRow{err: errors.New("boom")})
	require.EqualError(t, err, "boom")
}

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Save(preferences.Preferences{Token: "tok", ShowHolidays: true})

	prefs, ok, err := repo.FindByToken(context.Background(), "tok")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, prefs.ShowHolidays)

	_, ok, err = repo.FindByToken(context.Background(), "other")
	require.NoError(t, err)
	require.False(t, ok)
}
