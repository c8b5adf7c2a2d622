package events

import (
	"html"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	breakPattern = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</div>`)
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	roomPattern  = regexp.MustCompile(`^[A-Z]{1,2}\d{1,4}[A-Z]?(\s*[/\-].*)?$`)
	codePattern  = regexp.MustCompile(`^[A-Z][A-Z0-9_.\-]*\d[A-Z0-9_.\-]*$`)
)

var roomWords = []string{"salle", "amphi", "batiment", "bat", "room", "labo"}

var timeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// cleanLines strips markup, decodes entities and returns the non-empty lines.
func cleanLines(raw string) []string {
	text := breakPattern.ReplaceAllString(raw, "\n")
	text = tagPattern.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	text = strings.ReplaceAll(text, "\r", "\n")
	parts := strings.Split(text, "\n")
	lines := make([]string, 0, len(parts))
	for _, part := range parts {
		line := strings.Join(strings.Fields(part), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// fold lowercases and removes diacritics.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// keywordText folds s and reduces punctuation to single spaces, padded so
// whole-word matches can use strings.Contains.
func keywordText(s string) string {
	folded := fold(s)
	var b strings.Builder
	b.Grow(len(folded) + 2)
	b.WriteByte(' ')
	lastSpace := true
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	if !lastSpace {
		b.WriteByte(' ')
	}
	return b.String()
}

func containsKeyword(padded, keyword string) bool {
	kw := strings.TrimSpace(keywordText(keyword))
	if kw == "" {
		return false
	}
	return strings.Contains(padded, " "+kw+" ")
}

func isRoom(line string) bool {
	if roomPattern.MatchString(line) {
		return true
	}
	padded := keywordText(line)
	for _, word := range roomWords {
		if strings.Contains(padded, " "+word+" ") {
			return true
		}
	}
	return false
}

func isCode(line string) bool {
	return !strings.Contains(line, " ") && codePattern.MatchString(line)
}

// looksLikePerson accepts one to four alphabetic words that each start with
// an upper case letter, e.g. "Dupont" or "MARTIN Jean-Pierre".
func looksLikePerson(line string) bool {
	words := strings.Fields(line)
	if len(words) == 0 || len(words) > 4 {
		return false
	}
	for _, word := range words {
		first := true
		for _, r := range word {
			if first {
				if !unicode.IsUpper(r) {
					return false
				}
				first = false
				continue
			}
			if !unicode.IsLetter(r) && r != '-' && r != '\'' && r != '.' {
				return false
			}
		}
	}
	return true
}

// collapseLocation joins " - " separated segments and removes a building
// token repeated at the start of the next segment, so
// "Bâtiment A29 - A29/ Salle 105" becomes "Bâtiment A29/ Salle 105".
func collapseLocation(location string) string {
	segments := strings.Split(location, " - ")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		if len(out) == 0 {
			out = append(out, seg)
			continue
		}
		prev := out[len(out)-1]
		if strings.EqualFold(prev, seg) {
			continue
		}
		fields := strings.Fields(prev)
		token := fields[len(fields)-1]
		if hasTokenPrefix(seg, token) {
			out[len(out)-1] = prev + seg[len(token):]
			continue
		}
		out = append(out, seg)
	}
	return strings.Join(out, " - ")
}

func hasTokenPrefix(seg, token string) bool {
	if len(seg) < len(token) || !strings.EqualFold(seg[:len(token)], token) {
		return false
	}
	if len(seg) == len(token) {
		return true
	}
	next := rune(seg[len(token)])
	return !unicode.IsLetter(next) && !unicode.IsDigit(next)
}

// parseTime reads an upstream timestamp. Values without an offset are taken
// in loc. dateOnly reports a bare YYYY-MM-DD value.
func parseTime(value string, loc *time.Location) (t time.Time, dateOnly bool, ok bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false, false
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed.In(loc), false, true
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.ParseInLocation(layout, value, loc); err == nil {
			return parsed, layout == "2006-01-02", true
		}
	}
	return time.Time{}, false, false
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
