package config

// ExtractionConfig tunes the strategy sequence.
type ExtractionConfig struct {
	// SufficiencyRatio is the share of expected_event_count that structured
	// extraction must reach before the model-assisted extractor is skipped.
	SufficiencyRatio float64 `json:"sufficiency_ratio,omitempty" yaml:"sufficiency_ratio,omitempty" validate:"gt=0,lte=1"`
	// LenientJSONLD re-parses rejected linked-data blocks with a JSON5 parser.
	LenientJSONLD bool `json:"lenient_jsonld" yaml:"lenient_jsonld"`
	// MinContentChars skips the model when the page content is shorter.
	MinContentChars int `json:"min_content_chars" yaml:"min_content_chars" validate:"min=0"`
	// MaxSourceFragmentBytes truncates traceability snippets.
	MaxSourceFragmentBytes int  `json:"max_source_fragment_bytes,omitempty" yaml:"max_source_fragment_bytes,omitempty" validate:"min=64"`
	EnableModelAssisted    bool `json:"enable_model_assisted" yaml:"enable_model_assisted"`
}

// NewDefaultExtractionConfig creates default extraction configuration
func NewDefaultExtractionConfig() ExtractionConfig {
	return ExtractionConfig{
		SufficiencyRatio:       1.0,
		LenientJSONLD:          true,
		MinContentChars:        200,
		MaxSourceFragmentBytes: 2048,
		EnableModelAssisted:    true,
	}
}
