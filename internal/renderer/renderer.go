// Package renderer fetches a target page and returns it as a parsed document.
// Target failures (DNS, connect, HTTP status, navigation) are reported as
// errorwrapper.NetworkError or HTTPError; local backend failures unwrap to
// errorwrapper.ErrRenderBackendUnavailable.
package renderer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aleister1102/eventextract/internal/common/errorwrapper"
	"github.com/aleister1102/eventextract/internal/config"
	"github.com/aleister1102/eventextract/internal/document"
	"github.com/aleister1102/eventextract/internal/metrics"
	"github.com/aleister1102/eventextract/internal/rslimiter"
)

// Renderer is a page render backend.
type Renderer interface {
	Render(ctx context.Context, url string) (*document.Document, error)
	// Ready reports whether the backend can take work now.
	Ready() error
	Close() error
}

// New builds the backend selected by cfg.Mode. guard and m may be nil.
func New(cfg config.RenderConfig, guard *rslimiter.ResourceLimiter, m *metrics.Metrics, logger zerolog.Logger) (Renderer, error) {
	switch cfg.Mode {
	case config.RenderModeStatic:
		return NewStaticRenderer(cfg, m, logger)
	case config.RenderModeHeadless:
		return NewHeadlessRenderer(cfg, guard, m, logger), nil
	case config.RenderModeAuto, "":
		static, err := NewStaticRenderer(cfg, m, logger)
		if err != nil {
			return nil, err
		}
		return NewFallbackRenderer(NewHeadlessRenderer(cfg, guard, m, logger), static, logger), nil
	}
	return nil, errorwrapper.NewValidationError("render_config.mode", cfg.Mode, "unknown render mode")
}

// failureKind labels a render error for metrics.
func failureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errorwrapper.IsTargetFailure(err):
		return "target"
	default:
		return "backend"
	}
}

func observe(m *metrics.Metrics, backend string, started time.Time, err error) {
	m.ObserveRender(backend, failureKind(err), time.Since(started))
}
