package validator

import (
	"strings"

	"github.com/aleister1102/eventextract/internal/document"
	"github.com/aleister1102/eventextract/internal/models"
)

// DedupKey identifies a logical event: folded title plus canonical start.
func DedupKey(title, start string) string {
	return strings.ToLower(document.CollapseWhitespace(title)) + "\x00" + start
}

// dedupe keeps one event per key. Higher confidence wins; on a tie the
// structured record wins. The survivor takes the slot of the first occurrence.
func dedupe(events []models.NormalizedEvent) []models.NormalizedEvent {
	index := make(map[string]int, len(events))
	out := make([]models.NormalizedEvent, 0, len(events))
	for _, e := range events {
		key := DedupKey(e.Title, e.StartTime)
		pos, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, e)
			continue
		}
		if beats(e, out[pos]) {
			out[pos] = e
		}
	}
	return out
}

func beats(challenger, incumbent models.NormalizedEvent) bool {
	if challenger.Confidence != incumbent.Confidence {
		return challenger.Confidence > incumbent.Confidence
	}
	return challenger.Method == models.MethodStructured && incumbent.Method != models.MethodStructured
}
