package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/aleister1102/eventextract/internal/common/errorwrapper"
)

// maxConfigFileSize bounds the config file read at startup.
const maxConfigFileSize = 10 * 1024 * 1024

// GlobalConfig contains all configuration sections for the application.
// It is loaded once at startup and treated as read-only afterwards.
type GlobalConfig struct {
	LogConfig             LogConfig             `json:"log_config,omitempty" yaml:"log_config,omitempty"`
	ServerConfig          ServerConfig          `json:"server_config,omitempty" yaml:"server_config,omitempty"`
	RenderConfig          RenderConfig          `json:"render_config,omitempty" yaml:"render_config,omitempty"`
	ResourceLimiterConfig ResourceLimiterConfig `json:"resource_limiter_config,omitempty" yaml:"resource_limiter_config,omitempty"`
	ExtractionConfig      ExtractionConfig      `json:"extraction_config,omitempty" yaml:"extraction_config,omitempty"`
	ModelConfig           ModelConfig           `json:"model_config,omitempty" yaml:"model_config,omitempty"`
	PaginationConfig      PaginationConfig      `json:"pagination_config,omitempty" yaml:"pagination_config,omitempty"`
	ValidatorConfig       ValidatorConfig       `json:"validator_config,omitempty" yaml:"validator_config,omitempty"`
}

// NewDefaultGlobalConfig creates a new GlobalConfig with default values
func NewDefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		LogConfig:             NewDefaultLogConfig(),
		ServerConfig:          NewDefaultServerConfig(),
		RenderConfig:          NewDefaultRenderConfig(),
		ResourceLimiterConfig: NewDefaultResourceLimiterConfig(),
		ExtractionConfig:      NewDefaultExtractionConfig(),
		ModelConfig:           NewDefaultModelConfig(),
		PaginationConfig:      NewDefaultPaginationConfig(),
		ValidatorConfig:       NewDefaultValidatorConfig(),
	}
}

// LoadGlobalConfig loads the configuration from a file or default locations.
// YAML is used for .yaml/.yml files, JSON otherwise. Values missing from the
// file keep their defaults.
func LoadGlobalConfig(providedPath string, logger zerolog.Logger) (*GlobalConfig, error) {
	cfg := NewDefaultGlobalConfig()

	if providedPath != "" && !fileExists(providedPath) {
		return nil, errorwrapper.NewValidationError("config_file", providedPath, "config file does not exist")
	}

	filePath := GetConfigPath(providedPath)
	if filePath == "" {
		logger.Debug().Msg("No config file found, using defaults")
		return cfg, nil
	}

	data, err := readConfigFile(filePath)
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to load config file content")
	}

	if err := parseConfigContent(data, filePath, cfg); err != nil {
		return nil, errorwrapper.WrapError(err, "failed to parse config content")
	}

	logger.Info().Str("path", filePath).Msg("Configuration loaded")
	return cfg, nil
}

func readConfigFile(filePath string) ([]byte, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file '%s' exceeds %d bytes", filePath, maxConfigFileSize)
	}
	return os.ReadFile(filePath)
}

// parseConfigContent parses the config content based on file extension
func parseConfigContent(data []byte, filePath string, cfg *GlobalConfig) error {
	ext := filepath.Ext(filePath)
	if isYAMLFile(ext) {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return errorwrapper.NewError("failed to unmarshal YAML from '%s': %w", filePath, err)
		}
		return nil
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return errorwrapper.NewError("failed to unmarshal JSON from '%s': %w", filePath, err)
	}
	return nil
}

func isYAMLFile(ext string) bool {
	return ext == ".yaml" || ext == ".yml"
}
