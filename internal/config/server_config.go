package config

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr                  string `json:"addr,omitempty" yaml:"addr,omitempty" validate:"required"`
	ReadTimeoutSecs       int    `json:"read_timeout_secs,omitempty" yaml:"read_timeout_secs,omitempty" validate:"min=1"`
	WriteTimeoutSecs      int    `json:"write_timeout_secs,omitempty" yaml:"write_timeout_secs,omitempty" validate:"min=1"`
	IdleTimeoutSecs       int    `json:"idle_timeout_secs,omitempty" yaml:"idle_timeout_secs,omitempty" validate:"min=1"`
	ShutdownTimeoutSecs   int    `json:"shutdown_timeout_secs,omitempty" yaml:"shutdown_timeout_secs,omitempty" validate:"min=1"`
	RequestTimeoutSecs    int    `json:"request_timeout_secs,omitempty" yaml:"request_timeout_secs,omitempty" validate:"min=1"`
	MaxRequestTimeoutSecs int    `json:"max_request_timeout_secs,omitempty" yaml:"max_request_timeout_secs,omitempty" validate:"min=1,gtefield=RequestTimeoutSecs"`
	MaxBodyBytes          int64  `json:"max_body_bytes,omitempty" yaml:"max_body_bytes,omitempty" validate:"min=1024"`
	Version               string `json:"version,omitempty" yaml:"version,omitempty"`
}

// NewDefaultServerConfig creates default server configuration
func NewDefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:                  ":8001",
		ReadTimeoutSecs:       15,
		WriteTimeoutSecs:      190,
		IdleTimeoutSecs:       60,
		ShutdownTimeoutSecs:   20,
		RequestTimeoutSecs:    90,
		MaxRequestTimeoutSecs: 180,
		MaxBodyBytes:          1 << 20,
		Version:               "1.0.0",
	}
}
