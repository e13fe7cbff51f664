// Package pagination finds further pages of an event listing. Structural and
// script-driven detection run side by side; a model is consulted only when
// both come back empty and the caller expects more events than were found.
package pagination

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aleister1102/eventextract/internal/config"
	"github.com/aleister1102/eventextract/internal/document"
	"github.com/aleister1102/eventextract/internal/llm"
	"github.com/aleister1102/eventextract/internal/models"
	"github.com/aleister1102/eventextract/internal/urlhandler"
)

// Names reported in PageDiscoveryResult.StrategiesAttempted.
const (
	AttemptStructural = "structural"
	AttemptScript     = "script_driven"
	AttemptModel      = "model_assisted"
)

// Options carry per-request inputs to Discover.
type Options struct {
	ExpectedEventCount int
	// FoundEvents reports how many events extraction produced. It may block
	// until extraction finishes and is only called when the model gate needs it.
	FoundEvents func(ctx context.Context) (int, error)
}

// Discoverer runs the pagination strategies for one document at a time.
// It holds only read-only configuration and is safe for concurrent use.
type Discoverer struct {
	config    config.PaginationConfig
	completer llm.Completer
	recorder  *FailureRecorder
	logger    zerolog.Logger
}

// NewDiscoverer creates a discoverer. A nil completer disables the model strategy.
func NewDiscoverer(cfg config.PaginationConfig, completer llm.Completer, logger zerolog.Logger) *Discoverer {
	d := &Discoverer{
		config:    cfg,
		completer: completer,
		logger:    logger.With().Str("component", "PaginationDiscoverer").Logger(),
	}
	if cfg.FailureLogFile != "" {
		d.recorder = NewFailureRecorder(cfg.FailureLogFile, cfg.FailureLogMaxSizeMB, cfg.FailureLogMaxBackups)
	}
	return d
}

// Close releases the failure log.
func (d *Discoverer) Close() error {
	if d.recorder == nil {
		return nil
	}
	return d.recorder.Close()
}

// Discover returns the ordered, deduplicated list of further listing pages.
// baseURL is the URL the caller asked for; it and doc.URL are never returned.
func (d *Discoverer) Discover(ctx context.Context, doc *document.Document, baseURL string, opts Options) models.PageDiscoveryResult {
	result := models.PageDiscoveryResult{
		Pages:               []models.PageCandidate{},
		StrategiesAttempted: []string{AttemptStructural, AttemptScript},
	}

	var structural, script []found
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.guard(gctx, AttemptStructural, func() { structural = detectStructural(doc) })
	})
	g.Go(func() error {
		return d.guard(gctx, AttemptScript, func() { script = detectScript(doc, d.config.MaxScriptPages) })
	})
	_ = g.Wait()

	merged := newPageSet(d.excluded(doc, baseURL), d.config.MaxPages)
	merged.addAll(structural)
	merged.addAll(script)

	if merged.empty() && d.shouldAskModel(ctx, opts) {
		result.StrategiesAttempted = append(result.StrategiesAttempted, AttemptModel)
		links := sampleLinks(doc, d.config.MaxLinksForModel)
		hits, reasoning, err := detectWithModel(ctx, d.completer, doc, links)
		if err != nil {
			d.logger.Warn().Err(err).Str("url", doc.URL.String()).Msg("Model-assisted pagination failed")
		} else {
			d.logger.Debug().Int("hits", len(hits)).Str("reasoning", reasoning).Msg("Model-assisted pagination finished")
			merged.addAll(hits)
		}
	}

	result.Pages = merged.pages
	if merged.empty() {
		d.recordFailure(doc, result.StrategiesAttempted)
	}

	d.logger.Debug().
		Str("url", doc.URL.String()).
		Int("pages", len(result.Pages)).
		Strs("strategies", result.StrategiesAttempted).
		Msg("Pagination discovery finished")
	return result
}

// guard runs fn and turns a panic into a logged, empty strategy result.
func (d *Discoverer) guard(ctx context.Context, name string, fn func()) error {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Str("strategy", name).
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("Pagination strategy panicked")
		}
	}()
	if ctx.Err() != nil {
		return nil
	}
	fn()
	return nil
}

func (d *Discoverer) shouldAskModel(ctx context.Context, opts Options) bool {
	if !d.config.EnableModelAssisted || d.completer == nil {
		return false
	}
	if opts.ExpectedEventCount <= 0 || opts.FoundEvents == nil {
		return false
	}
	foundCount, err := opts.FoundEvents(ctx)
	if err != nil {
		d.logger.Debug().Err(err).Msg("Event count unavailable, skipping model-assisted pagination")
		return false
	}
	return opts.ExpectedEventCount > foundCount
}

func (d *Discoverer) excluded(doc *document.Document, baseURL string) map[string]bool {
	skip := make(map[string]bool, 2)
	for _, raw := range []string{doc.URL.String(), baseURL} {
		if key, err := urlhandler.CanonicalURL(raw); err == nil {
			skip[key] = true
		}
	}
	return skip
}

func (d *Discoverer) recordFailure(doc *document.Document, strategies []string) {
	if d.recorder == nil {
		return
	}
	written, err := d.recorder.Record(doc, strategies)
	if err != nil {
		d.logger.Warn().Err(err).Msg("Failed to write pagination failure record")
		return
	}
	if written {
		d.logger.Debug().Str("url", doc.URL.String()).Msg("Recorded pagination failure")
	}
}

// pageSet unions hits by canonical URL in first-seen order.
type pageSet struct {
	skip  map[string]bool
	index map[string]int
	pages []models.PageCandidate
	limit int
}

func newPageSet(skip map[string]bool, limit int) *pageSet {
	return &pageSet{skip: skip, index: make(map[string]int), pages: []models.PageCandidate{}, limit: limit}
}

func (s *pageSet) empty() bool { return len(s.pages) == 0 }

func (s *pageSet) addAll(hits []found) {
	for _, h := range hits {
		s.add(h)
	}
}

func (s *pageSet) add(h found) {
	key, err := urlhandler.CanonicalURL(h.url)
	if err != nil || s.skip[key] {
		return
	}
	if i, ok := s.index[key]; ok {
		page := &s.pages[i]
		if h.confidence > page.Confidence {
			page.Confidence = h.confidence
		}
		if !page.HasStrategy(h.strategy) {
			page.Strategies = append(page.Strategies, h.strategy)
		}
		return
	}
	if s.limit > 0 && len(s.pages) >= s.limit {
		return
	}
	s.index[key] = len(s.pages)
	s.pages = append(s.pages, models.PageCandidate{
		URL:        key,
		Strategies: []models.PaginationStrategy{h.strategy},
		Confidence: h.confidence,
	})
}
