package schedule

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalizeGroup(t *testing.T) {
	tests := []struct {
		name string
		ref  GroupRef
		want Group
		err  error
	}{
		{"plain id", GroupText(" L3INFO "), Group{ID: "L3INFO", Label: "L3INFO"}, nil},
		{"composite", GroupText("123456::L3 Informatique"), Group{ID: "123456", Label: "L3 Informatique"}, nil},
		{"composite without label", GroupText("123456::"), Group{ID: "123456", Label: "123456"}, nil},
		{"object", GroupObject("987", "M1 Maths"), Group{ID: "987", Label: "M1 Maths"}, nil},
		{"empty", GroupText("   "), Group{}, ErrEmptyGroup},
		{"empty composite id", GroupText("::label"), Group{}, ErrEmptyGroup},
		{"script tag", GroupText("<script>alert(1)</script>"), Group{}, ErrInvalidGroup},
		{"javascript scheme", GroupText("JavaScript:alert(1)"), Group{}, ErrInvalidGroup},
		{"nul byte", GroupText("abc\x00def"), Group{}, ErrInvalidGroup},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeGroup(tc.ref)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestGroupRefUnmarshalJSON(t *testing.T) {
	var refs []GroupRef
	raw := `["A1", "B2::Group B", {"id": "C3", "label": "Group C"}, {"id": 42, "name": "Numeric"}]`
	require.NoError(t, json.Unmarshal([]byte(raw), &refs))
	require.Len(t, refs, 4)

	var groups []Group
	for _, ref := range refs {
		g, err := NormalizeGroup(ref)
		require.NoError(t, err)
		groups = append(groups, g)
	}
	require.Equal(t, []Group{
		{ID: "A1", Label: "A1"},
		{ID: "B2", Label: "Group B"},
		{ID: "C3", Label: "Group C"},
		{ID: "42", Label: "Numeric"},
	}, groups)

	encoded, err := json.Marshal(refs[:3])
	require.NoError(t, err)
	require.JSONEq(t, `["A1","B2::Group B",{"id":"C3","label":"Group C"}]`, string(encoded))
}

func TestAcademicYear(t *testing.T) {
	start, end := AcademicYear(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC), time.UTC)
	require.Equal(t, time.Date(2023, 8, 1, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC), end)

	start, _ = AcademicYear(time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC), time.UTC)
	require.Equal(t, 2024, start.Year())
}
