package validator

import (
	"strings"
	"time"
)

type dateLayout struct {
	layout   string
	dateOnly bool
}

// defaultLayouts are tried after any caller hints, in order.
var defaultLayouts = []dateLayout{
	{layout: time.RFC3339},
	{layout: "2006-01-02T15:04:05Z0700"},
	{layout: "2006-01-02T15:04:05"},
	{layout: "2006-01-02T15:04"},
	{layout: "2006-01-02 15:04:05"},
	{layout: "2006-01-02 15:04"},
	{layout: "2006-01-02", dateOnly: true},
	{layout: time.RFC1123Z},
	{layout: time.RFC1123},
	{layout: "Monday, January 2, 2006 3:04 PM"},
	{layout: "Monday, January 2, 2006 at 3:04 PM"},
	{layout: "Monday, January 2, 2006", dateOnly: true},
	{layout: "Mon, Jan 2, 2006 3:04 PM"},
	{layout: "Mon, Jan 2, 2006", dateOnly: true},
	{layout: "January 2, 2006 3:04 PM"},
	{layout: "January 2, 2006 3:04PM"},
	{layout: "January 2, 2006 at 3:04 PM"},
	{layout: "January 2, 2006 15:04"},
	{layout: "January 2, 2006", dateOnly: true},
	{layout: "Jan 2, 2006 3:04 PM"},
	{layout: "Jan 2, 2006", dateOnly: true},
	{layout: "2 January 2006 15:04"},
	{layout: "2 January 2006", dateOnly: true},
	{layout: "2 Jan 2006", dateOnly: true},
	{layout: "1/2/2006 3:04 PM"},
	{layout: "1/2/2006 15:04"},
	{layout: "1/2/2006", dateOnly: true},
	{layout: "2006/01/02 15:04"},
	{layout: "2006/01/02", dateOnly: true},
}

// javaTokens maps date-pattern letters to Go reference tokens, longest first.
var javaTokens = []struct {
	pattern string
	layout  string
}{
	{"yyyy", "2006"},
	{"yy", "06"},
	{"MMMM", "January"},
	{"MMM", "Jan"},
	{"MM", "1"},
	{"M", "1"},
	{"dd", "2"},
	{"d", "2"},
	{"EEEE", "Monday"},
	{"EEE", "Mon"},
	{"HH", "15"},
	{"H", "15"},
	{"hh", "3"},
	{"h", "3"},
	{"mm", "04"},
	{"ss", "05"},
	{"SSS", "000"},
	{"a", "PM"},
	{"XXX", "Z07:00"},
	{"Z", "-0700"},
	{"z", "MST"},
}

// convertPattern turns a yyyy/MM/dd style pattern into a Go layout.
// Patterns already written with Go reference tokens are returned unchanged.
// Text inside single quotes is literal.
func convertPattern(pattern string) dateLayout {
	if strings.Contains(pattern, "2006") {
		return dateLayout{layout: pattern, dateOnly: !goLayoutHasTime(pattern)}
	}

	var b strings.Builder
	hasTime := false
	for i := 0; i < len(pattern); {
		if pattern[i] == '\'' {
			end := strings.IndexByte(pattern[i+1:], '\'')
			if end < 0 {
				b.WriteString(pattern[i+1:])
				break
			}
			b.WriteString(pattern[i+1 : i+1+end])
			i += end + 2
			continue
		}

		matched := false
		for _, tok := range javaTokens {
			if strings.HasPrefix(pattern[i:], tok.pattern) {
				b.WriteString(tok.layout)
				i += len(tok.pattern)
				matched = true
				if strings.ContainsAny(tok.pattern[:1], "Hhm") {
					hasTime = true
				}
				break
			}
		}
		if !matched {
			b.WriteByte(pattern[i])
			i++
		}
	}
	return dateLayout{layout: b.String(), dateOnly: !hasTime}
}

func goLayoutHasTime(layout string) bool {
	for _, tok := range []string{"15", "03", "3:04", ":04", "PM", "pm"} {
		if strings.Contains(layout, tok) {
			return true
		}
	}
	return false
}

// parseDate tries each layout in order. Naive values are read in loc.
func parseDate(value string, layouts []dateLayout, loc *time.Location) (time.Time, bool, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false, false
	}
	for _, l := range layouts {
		t, err := time.ParseInLocation(l.layout, value, loc)
		if err == nil {
			return t, l.dateOnly, true
		}
	}
	return time.Time{}, false, false
}

// layoutsFor returns hint layouts followed by the defaults and any extras.
func layoutsFor(hints []string, extras []dateLayout) []dateLayout {
	layouts := make([]dateLayout, 0, len(hints)+len(defaultLayouts)+len(extras))
	for _, hint := range hints {
		if hint = strings.TrimSpace(hint); hint != "" {
			layouts = append(layouts, convertPattern(hint))
		}
	}
	layouts = append(layouts, defaultLayouts...)
	return append(layouts, extras...)
}

// canonicalStart formats a parsed start; date-only values are already at midnight.
func canonicalStart(t time.Time) string {
	return t.Format(time.RFC3339)
}

// canonicalEnd moves a date-only end to the last second of that day.
func canonicalEnd(t time.Time, dateOnly bool) string {
	if dateOnly {
		t = time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
	}
	return t.Format(time.RFC3339)
}
