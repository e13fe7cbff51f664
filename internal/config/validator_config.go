package config

// ValidatorConfig configures record validation and normalization.
type ValidatorConfig struct {
	DefaultTimezone string `json:"default_timezone,omitempty" yaml:"default_timezone,omitempty" validate:"required,timezone"`
	EnableTagging   bool   `json:"enable_tagging" yaml:"enable_tagging"`
	// ExtraDateFormats are appended to the built-in defaults.
	ExtraDateFormats []string `json:"extra_date_formats,omitempty" yaml:"extra_date_formats,omitempty" validate:"dive,required"`
}

// NewDefaultValidatorConfig creates default validator configuration
func NewDefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		DefaultTimezone:  "UTC",
		EnableTagging:    true,
		ExtraDateFormats: []string{},
	}
}
