package orchestrator

import (
	"strings"

	"github.com/aleister1102/eventextract/internal/document"
	"github.com/aleister1102/eventextract/internal/models"
)

// mergeKey identifies a logical event across strategies: folded title plus
// the calendar day of its start, or the folded raw start when unparseable.
func (o *Orchestrator) mergeKey(dateHints []string) func(models.CandidateEvent) string {
	return func(c models.CandidateEvent) string {
		title := strings.ToLower(document.CollapseWhitespace(c.Title))
		if day, ok := o.validator.CalendarDay(c.StartTime, dateHints); ok {
			return title + "\x00" + day
		}
		return title + "\x00" + strings.ToLower(document.CollapseWhitespace(c.StartTime))
	}
}

// mergeCandidates appends extra to base, dropping extra records that describe
// an event a structured record in base already covers.
func mergeCandidates(base, extra []models.CandidateEvent, key func(models.CandidateEvent) string) []models.CandidateEvent {
	covered := make(map[string]bool, len(base))
	for _, c := range base {
		if c.ExtractionMethod == models.MethodStructured {
			covered[key(c)] = true
		}
	}
	merged := append([]models.CandidateEvent(nil), base...)
	for _, c := range extra {
		if covered[key(c)] {
			continue
		}
		merged = append(merged, c)
	}
	return merged
}

// methodLabel names the strategies that contributed surviving events.
func methodLabel(events []models.NormalizedEvent) string {
	var structured, assisted bool
	for _, e := range events {
		switch e.Method {
		case models.MethodStructured:
			structured = true
		case models.MethodModelAssisted:
			assisted = true
		}
	}
	switch {
	case structured && assisted:
		return models.ResultMethodMixed
	case structured:
		return models.ResultMethodJSONLD
	case assisted:
		return models.ResultMethodLLM
	}
	return models.ResultMethodNone
}
