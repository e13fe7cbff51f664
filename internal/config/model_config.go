package config

import (
	"os"
	"strings"
)

// ModelConfig configures the generative model client.
type ModelConfig struct {
	APIKey             string      `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	APIKeyEnv          string      `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	BaseURL            string      `json:"base_url,omitempty" yaml:"base_url,omitempty" validate:"omitempty,url"`
	Model              string      `json:"model,omitempty" yaml:"model,omitempty" validate:"required"`
	Temperature        float32     `json:"temperature" yaml:"temperature" validate:"min=0,max=2"`
	MaxTokens          int         `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" validate:"min=1"`
	RequestTimeoutSecs int         `json:"request_timeout_secs,omitempty" yaml:"request_timeout_secs,omitempty" validate:"min=1"`
	DefaultConfidence  float64     `json:"default_confidence,omitempty" yaml:"default_confidence,omitempty" validate:"gt=0,lt=1"`
	MaxInputChars      int         `json:"max_input_chars,omitempty" yaml:"max_input_chars,omitempty" validate:"min=1000"`
	Retry              RetryConfig `json:"retry,omitempty" yaml:"retry,omitempty"`
}

// NewDefaultModelConfig creates default model configuration
func NewDefaultModelConfig() ModelConfig {
	return ModelConfig{
		APIKeyEnv:          "OPENAI_API_KEY",
		Model:              "gpt-4o-mini",
		Temperature:        0,
		MaxTokens:          4096,
		RequestTimeoutSecs: 60,
		DefaultConfidence:  0.6,
		MaxInputChars:      120000,
		Retry:              NewDefaultRetryConfig(),
	}
}

// ResolveAPIKey returns the configured key, falling back to the environment.
func (mc ModelConfig) ResolveAPIKey() string {
	if key := strings.TrimSpace(mc.APIKey); key != "" {
		return key
	}
	if mc.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(mc.APIKeyEnv))
}
