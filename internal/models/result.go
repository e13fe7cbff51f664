package models

// Response-level extraction method labels.
const (
	ResultMethodJSONLD = "jsonld"
	ResultMethodLLM    = "llm"
	ResultMethodMixed  = "jsonld+llm"
	ResultMethodNone   = "none"
)

// Conditions explain an unsuccessful or partial result.
const (
	ConditionNoValidEvents      = "no_valid_events"
	ConditionFetchFailed        = "fetch_failed"
	ConditionBackendUnavailable = "render_backend_unavailable"
	ConditionDeadlineExceeded   = "deadline_exceeded"
)

// ExtractionResult is the response envelope for one extraction call.
type ExtractionResult struct {
	Success  bool              `json:"success"`
	Events   []NormalizedEvent `json:"events"`
	Metadata ResultMetadata    `json:"metadata"`
}

// ResultMetadata describes how a result was produced.
type ResultMetadata struct {
	RequestID                     string          `json:"request_id,omitempty"`
	URL                           string          `json:"url"`
	ExtractionMethod              string          `json:"extraction_method"`
	PageTitle                     string          `json:"page_title,omitempty"`
	TotalCandidates               int             `json:"total_candidates"`
	StrategiesAttempted           []string        `json:"strategies_attempted"`
	PaginationURLs                []string        `json:"pagination_urls"`
	Pagination                    []PageCandidate `json:"pagination"`
	PaginationStrategiesAttempted []string        `json:"pagination_strategies_attempted,omitempty"`
	Condition                     string          `json:"condition,omitempty"`
	Error                         string          `json:"error,omitempty"`
	Partial                       bool            `json:"partial,omitempty"`
	ProcessingTimeSeconds         float64         `json:"processing_time_seconds"`
}

// NewFailedResult builds a result for a request that never reached extraction.
func NewFailedResult(url, condition, detail string) ExtractionResult {
	return ExtractionResult{
		Success: false,
		Events:  []NormalizedEvent{},
		Metadata: ResultMetadata{
			URL:                 url,
			ExtractionMethod:    ResultMethodNone,
			StrategiesAttempted: []string{},
			PaginationURLs:      []string{},
			Pagination:          []PageCandidate{},
			Condition:           condition,
			Error:               detail,
		},
	}
}
