package config

// RetryConfig defines bounded exponential backoff for model calls
type RetryConfig struct {
	// Total attempts including the first call
	MaxAttempts int `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty" validate:"min=1,max=10"`
	// Base delay in milliseconds; attempt n waits base * 2^(n-1)
	BaseDelayMs int `json:"base_delay_ms,omitempty" yaml:"base_delay_ms,omitempty" validate:"min=1,max=60000"`
	// Maximum delay in milliseconds
	MaxDelayMs int `json:"max_delay_ms,omitempty" yaml:"max_delay_ms,omitempty" validate:"min=1,max=300000,gtefield=BaseDelayMs"`
	// Enable jitter to randomize delays slightly
	EnableJitter bool `json:"enable_jitter" yaml:"enable_jitter"`
	// HTTP status codes that should trigger retries
	RetryStatusCodes []int `json:"retry_status_codes,omitempty" yaml:"retry_status_codes,omitempty" validate:"dive,min=100,max=599"`
}

// NewDefaultRetryConfig creates default retry configuration
func NewDefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:      3,
		BaseDelayMs:      1000,
		MaxDelayMs:       8000,
		EnableJitter:     true,
		RetryStatusCodes: []int{408, 409, 429, 500, 502, 503, 504},
	}
}
