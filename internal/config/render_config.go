package config

// Render modes
const (
	RenderModeHeadless = "headless"
	RenderModeStatic   = "static"
	RenderModeAuto     = "auto"
)

// RenderConfig selects and configures the page render backend.
type RenderConfig struct {
	Mode            string                `json:"mode,omitempty" yaml:"mode,omitempty" validate:"required,oneof=headless static auto"`
	TimeoutSecs     int                   `json:"timeout_secs,omitempty" yaml:"timeout_secs,omitempty" validate:"min=1"`
	UserAgent       string                `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	MaxBodyMB       int                   `json:"max_body_mb,omitempty" yaml:"max_body_mb,omitempty" validate:"min=1"`
	InsecureSkipTLS bool                  `json:"insecure_skip_tls" yaml:"insecure_skip_tls"`
	HeadlessBrowser HeadlessBrowserConfig `json:"headless_browser,omitempty" yaml:"headless_browser,omitempty"`
}

// HeadlessBrowserConfig configures the rod browser pool.
type HeadlessBrowserConfig struct {
	ChromePath          string   `json:"chrome_path,omitempty" yaml:"chrome_path,omitempty"`
	UserDataDir         string   `json:"user_data_dir,omitempty" yaml:"user_data_dir,omitempty"`
	WindowWidth         int      `json:"window_width,omitempty" yaml:"window_width,omitempty" validate:"omitempty,min=100"`
	WindowHeight        int      `json:"window_height,omitempty" yaml:"window_height,omitempty" validate:"omitempty,min=100"`
	PageLoadTimeoutSecs int      `json:"page_load_timeout_secs,omitempty" yaml:"page_load_timeout_secs,omitempty" validate:"omitempty,min=1"`
	WaitAfterLoadMs     int      `json:"wait_after_load_ms,omitempty" yaml:"wait_after_load_ms,omitempty" validate:"omitempty,min=0"`
	AcquireTimeoutSecs  int      `json:"acquire_timeout_secs,omitempty" yaml:"acquire_timeout_secs,omitempty" validate:"omitempty,min=1"`
	DisableImages       bool     `json:"disable_images" yaml:"disable_images"`
	PoolSize            int      `json:"pool_size,omitempty" yaml:"pool_size,omitempty" validate:"omitempty,min=1"`
	BrowserArgs         []string `json:"browser_args,omitempty" yaml:"browser_args,omitempty"`
}

// NewDefaultRenderConfig creates default render configuration
func NewDefaultRenderConfig() RenderConfig {
	return RenderConfig{
		Mode:            RenderModeAuto,
		TimeoutSecs:     30,
		UserAgent:       "Mozilla/5.0 (compatible; EventExtract/1.0)",
		MaxBodyMB:       10,
		InsecureSkipTLS: false,
		HeadlessBrowser: NewDefaultHeadlessBrowserConfig(),
	}
}

// NewDefaultHeadlessBrowserConfig creates default headless browser configuration
func NewDefaultHeadlessBrowserConfig() HeadlessBrowserConfig {
	return HeadlessBrowserConfig{
		WindowWidth:         1920,
		WindowHeight:        1080,
		PageLoadTimeoutSecs: 30,
		WaitAfterLoadMs:     1000,
		AcquireTimeoutSecs:  10,
		DisableImages:       true,
		PoolSize:            2,
		BrowserArgs:         []string{},
	}
}
