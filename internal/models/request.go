package models

import (
	"slices"
	"strings"
)

// Event field names accepted in schema requirements.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldLocation    = "location"
	FieldStartTime   = "start_time"
	FieldEndTime     = "end_time"
	FieldURL         = "url"
)

// KnownFields lists every event field a caller may require or request.
var KnownFields = []string{FieldTitle, FieldDescription, FieldLocation, FieldStartTime, FieldEndTime, FieldURL}

// ExtractionRequest is the body of POST /extract.
type ExtractionRequest struct {
	URL                string              `json:"url" validate:"required,url,startswith=http"`
	ExtractionHints    *ExtractionHints    `json:"extraction_hints,omitempty"`
	SchemaRequirements *SchemaRequirements `json:"schema_requirements,omitempty"`
	TimeoutSeconds     int                 `json:"timeout_seconds,omitempty" validate:"gte=0"`
}

// ExtractionHints are optional caller hints that steer extraction.
type ExtractionHints struct {
	ExpectedEventCount int      `json:"expected_event_count,omitempty" validate:"gte=0"`
	DateFormats        []string `json:"date_formats,omitempty" validate:"dive,required"`
	ContentSelectors   []string `json:"content_selectors,omitempty" validate:"dive,required"`
}

// SchemaRequirements is the caller's field contract for returned events.
type SchemaRequirements struct {
	RequiredFields []string `json:"required_fields,omitempty"`
	OptionalFields []string `json:"optional_fields,omitempty"`
}

// DefaultSchemaRequirements is used when a request carries none.
func DefaultSchemaRequirements() SchemaRequirements {
	return SchemaRequirements{
		RequiredFields: []string{FieldTitle, FieldStartTime},
		OptionalFields: []string{FieldDescription, FieldLocation, FieldEndTime, FieldURL},
	}
}

// Hints returns the request hints, never nil.
func (r *ExtractionRequest) Hints() ExtractionHints {
	if r.ExtractionHints == nil {
		return ExtractionHints{}
	}
	return *r.ExtractionHints
}

// Schema returns the effective schema requirements.
func (r *ExtractionRequest) Schema() SchemaRequirements {
	if r.SchemaRequirements == nil || len(r.SchemaRequirements.RequiredFields) == 0 && len(r.SchemaRequirements.OptionalFields) == 0 {
		return DefaultSchemaRequirements()
	}
	return r.SchemaRequirements.Normalized()
}

// Normalized lower-cases and trims field names.
func (s SchemaRequirements) Normalized() SchemaRequirements {
	return SchemaRequirements{
		RequiredFields: normalizeFieldNames(s.RequiredFields),
		OptionalFields: normalizeFieldNames(s.OptionalFields),
	}
}

// Allows reports whether field is part of required ∪ optional.
func (s SchemaRequirements) Allows(field string) bool {
	return slices.Contains(s.RequiredFields, field) || slices.Contains(s.OptionalFields, field)
}

// Requires reports whether field is required.
func (s SchemaRequirements) Requires(field string) bool {
	return slices.Contains(s.RequiredFields, field)
}

// Check returns a description of the first contract problem, or "" when the
// requirements are usable.
func (s SchemaRequirements) Check() string {
	n := s.Normalized()
	for _, f := range n.RequiredFields {
		if !slices.Contains(KnownFields, f) {
			return "unknown required field '" + f + "'"
		}
		if slices.Contains(n.OptionalFields, f) {
			return "field '" + f + "' is both required and optional"
		}
	}
	for _, f := range n.OptionalFields {
		if !slices.Contains(KnownFields, f) {
			return "unknown optional field '" + f + "'"
		}
	}
	return ""
}

func normalizeFieldNames(in []string) []string {
	out := make([]string, 0, len(in))
	for _, f := range in {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" && !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}
