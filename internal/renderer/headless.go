package renderer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"github.com/aleister1102/eventextract/internal/common/errorwrapper"
	"github.com/aleister1102/eventextract/internal/config"
	"github.com/aleister1102/eventextract/internal/document"
	"github.com/aleister1102/eventextract/internal/metrics"
	"github.com/aleister1102/eventextract/internal/rslimiter"
)

const headlessBackend = "headless"

// HeadlessRenderer renders pages in a pool of Chrome instances driven by rod.
// The browser is launched on first use.
type HeadlessRenderer struct {
	config      config.HeadlessBrowserConfig
	userAgent   string
	timeout     time.Duration
	guard       *rslimiter.ResourceLimiter
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	browserPool chan *rod.Browser
	launcher    *launcher.Launcher
	mutex       sync.Mutex
	isRunning   bool
	closed      bool
}

// NewHeadlessRenderer creates a HeadlessRenderer. guard may be nil.
func NewHeadlessRenderer(cfg config.RenderConfig, guard *rslimiter.ResourceLimiter, m *metrics.Metrics, logger zerolog.Logger) *HeadlessRenderer {
	browserCfg := cfg.HeadlessBrowser
	defaults := config.NewDefaultHeadlessBrowserConfig()
	if browserCfg.PoolSize <= 0 {
		browserCfg.PoolSize = defaults.PoolSize
	}
	if browserCfg.AcquireTimeoutSecs <= 0 {
		browserCfg.AcquireTimeoutSecs = defaults.AcquireTimeoutSecs
	}
	if browserCfg.PageLoadTimeoutSecs <= 0 {
		browserCfg.PageLoadTimeoutSecs = cfg.TimeoutSecs
	}

	return &HeadlessRenderer{
		config:      browserCfg,
		userAgent:   cfg.UserAgent,
		timeout:     time.Duration(cfg.TimeoutSecs) * time.Second,
		guard:       guard,
		metrics:     m,
		logger:      logger.With().Str("component", "HeadlessRenderer").Logger(),
		browserPool: make(chan *rod.Browser, browserCfg.PoolSize),
	}
}

// Start launches Chrome and fills the browser pool.
func (h *HeadlessRenderer) Start() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.closed {
		return errorwrapper.WrapError(errorwrapper.ErrRenderBackendUnavailable, "headless renderer closed")
	}
	if h.isRunning {
		return nil
	}

	l := launcher.New().Headless(true)
	if h.config.ChromePath != "" {
		l = l.Bin(h.config.ChromePath)
	}
	if h.config.UserDataDir != "" {
		l = l.UserDataDir(h.config.UserDataDir)
	}
	l = l.
		Set("no-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("disable-features", "VizDisplayCompositor").
		Set("no-first-run").
		Set("disable-default-apps").
		Set("disable-sync")
	if h.config.DisableImages {
		l = l.Set("blink-settings", "imagesEnabled=false")
	}
	for _, arg := range h.config.BrowserArgs {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name == "" {
			continue
		}
		if hasValue {
			l = l.Set(flags.Flag(name), value)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}

	controlURL, err := l.Launch()
	if err != nil {
		return errorwrapper.WrapError(errorwrapper.ErrRenderBackendUnavailable, fmt.Sprintf("failed to launch browser: %v", err))
	}
	h.launcher = l

	connected := 0
	for i := 0; i < h.config.PoolSize; i++ {
		browser := rod.New().ControlURL(controlURL)
		if err := browser.Connect(); err != nil {
			h.logger.Error().Err(err).Int("browser_index", i).Msg("Failed to connect browser")
			continue
		}
		h.browserPool <- browser
		connected++
	}
	if connected == 0 {
		l.Kill()
		return errorwrapper.WrapError(errorwrapper.ErrRenderBackendUnavailable, "no browser instance could connect")
	}

	h.isRunning = true
	h.logger.Info().Int("pool_size", connected).Msg("Headless browser pool started")
	return nil
}

// Close shuts down every browser and the launcher.
func (h *HeadlessRenderer) Close() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	if !h.isRunning {
		return nil
	}

	close(h.browserPool)
	for browser := range h.browserPool {
		if browser != nil {
			_ = browser.Close()
		}
	}
	if h.launcher != nil {
		h.launcher.Cleanup()
	}
	h.isRunning = false
	h.logger.Info().Msg("Headless browser pool stopped")
	return nil
}

// Ready reports the resource guard state and whether the renderer is closed.
func (h *HeadlessRenderer) Ready() error {
	h.mutex.Lock()
	closed := h.closed
	h.mutex.Unlock()
	if closed {
		return errorwrapper.WrapError(errorwrapper.ErrRenderBackendUnavailable, "headless renderer closed")
	}
	return h.guard.Ready()
}

// Render navigates to url and returns the rendered DOM.
func (h *HeadlessRenderer) Render(ctx context.Context, url string) (doc *document.Document, err error) {
	started := time.Now()
	defer func() { observe(h.metrics, headlessBackend, started, err) }()

	if err := h.guard.Admit(); err != nil {
		return nil, err
	}
	if err := h.Start(); err != nil {
		return nil, err
	}

	browser, err := h.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer h.release(browser)

	pageCtx, cancel := context.WithTimeout(ctx, time.Duration(h.config.PageLoadTimeoutSecs)*time.Second)
	defer cancel()

	page, err := browser.Context(pageCtx).Page(proto.TargetCreateTarget{})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errorwrapper.WrapError(errorwrapper.ErrRenderBackendUnavailable, fmt.Sprintf("failed to create page: %v", err))
	}
	defer func() { _ = page.Close() }()

	if h.config.WindowWidth > 0 && h.config.WindowHeight > 0 {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:  h.config.WindowWidth,
			Height: h.config.WindowHeight,
		}); err != nil {
			h.logger.Warn().Err(err).Msg("Failed to set viewport")
		}
	}
	if h.userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: h.userAgent}); err != nil {
			h.logger.Warn().Err(err).Msg("Failed to set user agent")
		}
	}

	if err := page.Navigate(url); err != nil {
		return nil, h.navigationFailure(ctx, url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, h.navigationFailure(ctx, url, err)
	}
	if h.config.WaitAfterLoadMs > 0 {
		select {
		case <-time.After(time.Duration(h.config.WaitAfterLoadMs) * time.Millisecond):
		case <-pageCtx.Done():
		}
	}

	html, err := page.HTML()
	if err != nil {
		return nil, h.navigationFailure(ctx, url, err)
	}

	finalURL := url
	if info, err := page.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	doc, err = document.Parse(finalURL, html)
	if err != nil {
		return nil, errorwrapper.NewNetworkError(url, "unparseable page", err)
	}
	h.logger.Debug().Str("url", url).Str("final_url", finalURL).Int("bytes", len(html)).Msg("Page rendered")
	return doc, nil
}

func (h *HeadlessRenderer) acquire(ctx context.Context) (*rod.Browser, error) {
	timer := time.NewTimer(time.Duration(h.config.AcquireTimeoutSecs) * time.Second)
	defer timer.Stop()

	select {
	case browser, ok := <-h.browserPool:
		if !ok {
			return nil, errorwrapper.WrapError(errorwrapper.ErrRenderBackendUnavailable, "headless renderer closed")
		}
		return browser, nil
	case <-timer.C:
		return nil, errorwrapper.WrapError(errorwrapper.ErrRenderBackendUnavailable, "timeout waiting for browser from pool")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *HeadlessRenderer) release(browser *rod.Browser) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if !h.isRunning || h.closed {
		_ = browser.Close()
		return
	}
	select {
	case h.browserPool <- browser:
	default:
		_ = browser.Close()
	}
}

// navigationFailure maps a rod error to a target failure unless the request
// context itself expired.
func (h *HeadlessRenderer) navigationFailure(ctx context.Context, url string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var navErr *rod.NavigationError
	if errors.As(err, &navErr) {
		return errorwrapper.NewNetworkError(url, navErr.Reason, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errorwrapper.NewNetworkError(url, "page load timeout", err)
	}
	return errorwrapper.NewNetworkError(url, "navigation failed", err)
}
