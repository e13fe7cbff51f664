package config

// PaginationConfig configures pagination discovery.
type PaginationConfig struct {
	MaxPages             int    `json:"max_pages,omitempty" yaml:"max_pages,omitempty" validate:"min=1,max=500"`
	MaxScriptPages       int    `json:"max_script_pages,omitempty" yaml:"max_script_pages,omitempty" validate:"min=1,max=500"`
	EnableModelAssisted  bool   `json:"enable_model_assisted" yaml:"enable_model_assisted"`
	MaxLinksForModel     int    `json:"max_links_for_model,omitempty" yaml:"max_links_for_model,omitempty" validate:"min=1,max=500"`
	FailureLogFile       string `json:"failure_log_file,omitempty" yaml:"failure_log_file,omitempty"`
	FailureLogMaxSizeMB  int    `json:"failure_log_max_size_mb,omitempty" yaml:"failure_log_max_size_mb,omitempty" validate:"min=0"`
	FailureLogMaxBackups int    `json:"failure_log_max_backups,omitempty" yaml:"failure_log_max_backups,omitempty" validate:"min=0"`
}

// NewDefaultPaginationConfig creates default pagination configuration
func NewDefaultPaginationConfig() PaginationConfig {
	return PaginationConfig{
		MaxPages:             50,
		MaxScriptPages:       50,
		EnableModelAssisted:  true,
		MaxLinksForModel:     50,
		FailureLogFile:       "",
		FailureLogMaxSizeMB:  20,
		FailureLogMaxBackups: 3,
	}
}
