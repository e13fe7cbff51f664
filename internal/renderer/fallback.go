package renderer

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/aleister1102/eventextract/internal/common/errorwrapper"
	"github.com/aleister1102/eventextract/internal/document"
)

// FallbackRenderer tries the primary backend and falls back to the secondary
// only when the primary backend itself is unavailable. Target failures are
// returned as-is.
type FallbackRenderer struct {
	primary   Renderer
	secondary Renderer
	logger    zerolog.Logger
}

// NewFallbackRenderer creates a FallbackRenderer.
func NewFallbackRenderer(primary, secondary Renderer, logger zerolog.Logger) *FallbackRenderer {
	return &FallbackRenderer{
		primary:   primary,
		secondary: secondary,
		logger:    logger.With().Str("component", "FallbackRenderer").Logger(),
	}
}

// Render implements Renderer.
func (f *FallbackRenderer) Render(ctx context.Context, url string) (*document.Document, error) {
	doc, err := f.primary.Render(ctx, url)
	if err == nil || !errors.Is(err, errorwrapper.ErrRenderBackendUnavailable) || ctx.Err() != nil {
		return doc, err
	}
	f.logger.Warn().Err(err).Str("url", url).Msg("Primary render backend unavailable, using fallback")
	return f.secondary.Render(ctx, url)
}

// Ready succeeds when either backend is ready.
func (f *FallbackRenderer) Ready() error {
	if err := f.primary.Ready(); err == nil {
		return nil
	}
	return f.secondary.Ready()
}

// Close closes both backends.
func (f *FallbackRenderer) Close() error {
	return errors.Join(f.primary.Close(), f.secondary.Close())
}
