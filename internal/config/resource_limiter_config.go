package config

// ResourceLimiterConfig guards the headless render backend.
type ResourceLimiterConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// MaxGoroutines refuses new renders above this count
	MaxGoroutines int `json:"max_goroutines,omitempty" yaml:"max_goroutines,omitempty" validate:"min=1"`
	// SystemMemThreshold refuses new renders above this system memory fraction (0.9 = 90%)
	SystemMemThreshold float64 `json:"system_mem_threshold,omitempty" yaml:"system_mem_threshold,omitempty" validate:"gt=0,lte=1"`
	// CheckIntervalSecs controls how often usage is sampled
	CheckIntervalSecs int `json:"check_interval_secs,omitempty" yaml:"check_interval_secs,omitempty" validate:"min=1"`
}

// NewDefaultResourceLimiterConfig creates default resource limiter configuration
func NewDefaultResourceLimiterConfig() ResourceLimiterConfig {
	return ResourceLimiterConfig{
		Enabled:            true,
		MaxGoroutines:      10000,
		SystemMemThreshold: 0.9,
		CheckIntervalSecs:  15,
	}
}
