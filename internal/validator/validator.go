// Package validator checks candidate events against the caller's schema,
// canonicalizes their dates and removes duplicates.
package validator

import (
	"strings"
	"time"

	"github.com/aleister1102/eventextract/internal/common/errorwrapper"
	"github.com/aleister1102/eventextract/internal/config"
	"github.com/aleister1102/eventextract/internal/models"
)

// Validator is safe for concurrent use; it holds only read-only state.
type Validator struct {
	location      *time.Location
	extraLayouts  []dateLayout
	enableTagging bool
}

// NewValidator builds a validator from the validator config section.
func NewValidator(cfg config.ValidatorConfig) (*Validator, error) {
	tz := cfg.DefaultTimezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, errorwrapper.NewValidationError("default_timezone", tz, "unknown time zone")
	}

	extras := make([]dateLayout, 0, len(cfg.ExtraDateFormats))
	for _, pattern := range cfg.ExtraDateFormats {
		if strings.TrimSpace(pattern) != "" {
			extras = append(extras, convertPattern(strings.TrimSpace(pattern)))
		}
	}

	return &Validator{
		location:      loc,
		extraLayouts:  extras,
		enableTagging: cfg.EnableTagging,
	}, nil
}

// ValidateAndNormalize drops candidates that miss required fields or carry
// unparseable dates, canonicalizes the rest and deduplicates them.
// Output order follows first appearance.
func (v *Validator) ValidateAndNormalize(candidates []models.CandidateEvent, schema models.SchemaRequirements, dateHints []string) []models.NormalizedEvent {
	schema = schema.Normalized()
	if len(schema.RequiredFields) == 0 && len(schema.OptionalFields) == 0 {
		schema = models.DefaultSchemaRequirements()
	}
	layouts := layoutsFor(dateHints, v.extraLayouts)

	events := make([]models.NormalizedEvent, 0, len(candidates))
	for _, candidate := range candidates {
		event, ok := v.normalize(candidate, schema, layouts)
		if !ok {
			continue
		}
		events = append(events, event)
	}

	// Dedup keys use the full title and start, so projection comes after.
	events = dedupe(events)
	for i := range events {
		events[i] = v.finish(events[i], schema)
	}
	return events
}

// CountValid reports how many candidates would survive validation.
func (v *Validator) CountValid(candidates []models.CandidateEvent, schema models.SchemaRequirements, dateHints []string) int {
	return len(v.ValidateAndNormalize(candidates, schema, dateHints))
}

func (v *Validator) normalize(c models.CandidateEvent, schema models.SchemaRequirements, layouts []dateLayout) (models.NormalizedEvent, bool) {
	for _, field := range schema.RequiredFields {
		if strings.TrimSpace(c.Field(field)) == "" {
			return models.NormalizedEvent{}, false
		}
	}

	event := models.NormalizedEvent{
		Title:       strings.TrimSpace(c.Title),
		Description: strings.TrimSpace(c.Description),
		Location:    strings.TrimSpace(c.Location),
		URL:         strings.TrimSpace(c.URL),
		Confidence:  c.Confidence,
		Method:      c.ExtractionMethod,
	}

	if strings.TrimSpace(c.StartTime) != "" {
		start, _, ok := parseDate(c.StartTime, layouts, v.location)
		if !ok {
			return models.NormalizedEvent{}, false
		}
		event.StartTime = canonicalStart(start)
	}

	if strings.TrimSpace(c.EndTime) != "" {
		end, dateOnly, ok := parseDate(c.EndTime, layouts, v.location)
		switch {
		case ok:
			event.EndTime = canonicalEnd(end, dateOnly)
		case schema.Requires(models.FieldEndTime):
			return models.NormalizedEvent{}, false
		}
	}

	return event, true
}

// finish projects e onto the schema and tags it.
func (v *Validator) finish(e models.NormalizedEvent, schema models.SchemaRequirements) models.NormalizedEvent {
	e = project(e, schema)
	if v.enableTagging {
		e.Tags = Tags(e)
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	return e
}

// project clears fields the caller neither required nor requested.
func project(e models.NormalizedEvent, schema models.SchemaRequirements) models.NormalizedEvent {
	if !schema.Allows(models.FieldTitle) {
		e.Title = ""
	}
	if !schema.Allows(models.FieldDescription) {
		e.Description = ""
	}
	if !schema.Allows(models.FieldLocation) {
		e.Location = ""
	}
	if !schema.Allows(models.FieldStartTime) {
		e.StartTime = ""
	}
	if !schema.Allows(models.FieldEndTime) {
		e.EndTime = ""
	}
	if !schema.Allows(models.FieldURL) {
		e.URL = ""
	}
	return e
}

// CalendarDay returns the YYYY-MM-DD day of a raw start value, parsed with the
// same layouts as ValidateAndNormalize.
func (v *Validator) CalendarDay(raw string, dateHints []string) (string, bool) {
	t, _, ok := parseDate(strings.TrimSpace(raw), layoutsFor(dateHints, v.extraLayouts), v.location)
	if !ok {
		return "", false
	}
	return t.Format("2006-01-02"), true
}
