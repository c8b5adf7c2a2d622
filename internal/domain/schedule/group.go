package schedule

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

const compositeSeparator = "::"

var (
	// ErrEmptyGroup is returned when a group reference carries no id.
	ErrEmptyGroup = errors.New("group id is empty")
	// ErrInvalidGroup is returned for ids that look like an injection attempt.
	ErrInvalidGroup = errors.New("group id contains forbidden content")
)

var forbiddenGroupMarkers = []string{"<script", "</script", "javascript:", "\x00"}

// Group is the canonical form of a timetable group.
type Group struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// String renders the composite "id::label" encoding.
func (g Group) String() string {
	if g.Label == "" || g.Label == g.ID {
		return g.ID
	}
	return g.ID + compositeSeparator + g.Label
}

// GroupRef is a group as it arrives from callers or stored preferences: a
// plain id, an "id::label" composite, or a JSON object.
type GroupRef struct {
	Text  string
	ID    string
	Label string

	structured bool
}

// GroupText wraps a plain or composite string reference.
func GroupText(text string) GroupRef {
	return GroupRef{Text: text}
}

// GroupObject wraps an object-shaped reference.
func GroupObject(id, label string) GroupRef {
	return GroupRef{ID: id, Label: label, structured: true}
}

// UnmarshalJSON accepts either a JSON string or an object.
func (r *GroupRef) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*r = GroupRef{}
		return nil
	}
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*r = GroupText(text)
		return nil
	}
	var obj struct {
		ID    json.RawMessage `json:"id"`
		Label string          `json:"label"`
		Name  string          `json:"name"`
	}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return err
	}
	label := obj.Label
	if label == "" {
		label = obj.Name
	}
	*r = GroupObject(rawScalar(obj.ID), label)
	return nil
}

// MarshalJSON keeps the shape the reference was decoded from.
func (r GroupRef) MarshalJSON() ([]byte, error) {
	if r.structured {
		return json.Marshal(struct {
			ID    string `json:"id"`
			Label string `json:"label,omitempty"`
		}{ID: r.ID, Label: r.Label})
	}
	return json.Marshal(r.Text)
}

// NormalizeGroup converts a reference into its canonical form and rejects
// empty or malicious ids.
func NormalizeGroup(ref GroupRef) (Group, error) {
	var id, label string
	if ref.structured {
		id = strings.TrimSpace(ref.ID)
		label = strings.TrimSpace(ref.Label)
	} else {
		text := strings.TrimSpace(ref.Text)
		if before, after, found := strings.Cut(text, compositeSeparator); found {
			id = strings.TrimSpace(before)
			label = strings.TrimSpace(after)
		} else {
			id = text
		}
	}
	if id == "" {
		return Group{}, ErrEmptyGroup
	}
	if !validGroupID(id) || !validGroupID(label) {
		return Group{}, ErrInvalidGroup
	}
	if label == "" {
		label = id
	}
	return Group{ID: id, Label: label}, nil
}

func validGroupID(value string) bool {
	lowered := strings.ToLower(value)
	for _, marker := range forbiddenGroupMarkers {
		if strings.Contains(lowered, marker) {
			return false
		}
	}
	return true
}

// rawScalar reads a JSON string or number as text.
func rawScalar(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		return text
	}
	return string(trimmed)
}
