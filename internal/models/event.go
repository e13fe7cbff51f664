package models

// ExtractionMethod identifies which extractor produced a candidate.
type ExtractionMethod string

const (
	MethodStructured    ExtractionMethod = "structured"
	MethodModelAssisted ExtractionMethod = "model_assisted"
)

// CandidateEvent is an unvalidated record produced by an extractor.
type CandidateEvent struct {
	Title            string           `json:"title"`
	Description      string           `json:"description,omitempty"`
	Location         string           `json:"location,omitempty"`
	StartTime        string           `json:"start_time"`
	EndTime          string           `json:"end_time,omitempty"`
	URL              string           `json:"url,omitempty"`
	SourceFragment   string           `json:"source_fragment,omitempty"`
	Confidence       float64          `json:"confidence"`
	ExtractionMethod ExtractionMethod `json:"extraction_method"`
}

// Field returns the raw value of a named event field.
func (c CandidateEvent) Field(name string) string {
	switch name {
	case FieldTitle:
		return c.Title
	case FieldDescription:
		return c.Description
	case FieldLocation:
		return c.Location
	case FieldStartTime:
		return c.StartTime
	case FieldEndTime:
		return c.EndTime
	case FieldURL:
		return c.URL
	}
	return ""
}

// NormalizedEvent is a candidate that passed schema and date checks.
type NormalizedEvent struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Location    string   `json:"location,omitempty"`
	StartTime   string   `json:"start_time,omitempty"`
	EndTime     string   `json:"end_time,omitempty"`
	URL         string   `json:"url,omitempty"`
	Tags        []string `json:"tags"`
	Confidence  float64  `json:"confidence"`

	Method ExtractionMethod `json:"-"`
}
