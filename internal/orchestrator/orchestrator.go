// Package orchestrator sequences the extraction strategies for one page,
// runs pagination discovery alongside them and assembles the result.
package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aleister1102/eventextract/internal/config"
	"github.com/aleister1102/eventextract/internal/document"
	"github.com/aleister1102/eventextract/internal/extractor"
	"github.com/aleister1102/eventextract/internal/metrics"
	"github.com/aleister1102/eventextract/internal/models"
	"github.com/aleister1102/eventextract/internal/pagination"
	"github.com/aleister1102/eventextract/internal/validator"
)

// PageDiscoverer finds further pages of a listing.
type PageDiscoverer interface {
	Discover(ctx context.Context, doc *document.Document, baseURL string, opts pagination.Options) models.PageDiscoveryResult
}

// Orchestrator holds read-only collaborators and is shared across requests.
type Orchestrator struct {
	primary    []extractor.Extractor
	fallback   []extractor.Extractor
	validator  *validator.Validator
	discoverer PageDiscoverer
	config     config.ExtractionConfig
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewOrchestrator wires the strategy lists. Primary extractors always run;
// fallback extractors run only when the primary output is insufficient.
// discoverer and m may be nil.
func NewOrchestrator(
	cfg config.ExtractionConfig,
	primary []extractor.Extractor,
	fallback []extractor.Extractor,
	v *validator.Validator,
	discoverer PageDiscoverer,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		primary:    primary,
		fallback:   fallback,
		validator:  v,
		discoverer: discoverer,
		config:     cfg,
		metrics:    m,
		logger:     logger.With().Str("component", "Orchestrator").Logger(),
	}
}

// Extract runs the strategy sequence on doc. It never returns an error:
// strategy failures become zero candidates and an expired ctx yields a
// partial result built from whatever was collected.
func (o *Orchestrator) Extract(ctx context.Context, req models.ExtractionRequest, doc *document.Document) models.ExtractionResult {
	start := time.Now()
	hints := req.Hints()
	schema := req.Schema()

	count := newEventCount()
	pages := o.startDiscovery(ctx, req, doc, hints, count)

	var candidates []models.CandidateEvent
	attempted := make([]string, 0, len(o.primary)+len(o.fallback))

	for _, ex := range o.primary {
		attempted = append(attempted, ex.Name())
		candidates = append(candidates, o.run(ctx, ex, doc, hints)...)
	}
	total := len(candidates)

	if o.config.EnableModelAssisted && len(o.fallback) > 0 && ctx.Err() == nil {
		valid := o.validator.CountValid(candidates, schema, hints.DateFormats)
		if sufficient(valid, hints.ExpectedEventCount, o.config.SufficiencyRatio) {
			o.logger.Debug().Int("valid", valid).Int("expected", hints.ExpectedEventCount).Msg("Structured extraction sufficient")
		} else {
			for _, ex := range o.fallback {
				if ctx.Err() != nil {
					break
				}
				attempted = append(attempted, ex.Name())
				extra := o.run(ctx, ex, doc, hints)
				total += len(extra)
				candidates = mergeCandidates(candidates, extra, o.mergeKey(hints.DateFormats))
			}
		}
	}

	events := o.validator.ValidateAndNormalize(candidates, schema, hints.DateFormats)
	count.set(len(events))

	discovered, partial := o.awaitDiscovery(ctx, pages)
	if ctx.Err() != nil {
		partial = true
	}

	result := models.ExtractionResult{
		Success: len(events) > 0,
		Events:  events,
		Metadata: models.ResultMetadata{
			URL:                           req.URL,
			ExtractionMethod:              methodLabel(events),
			PageTitle:                     doc.Title,
			TotalCandidates:               total,
			StrategiesAttempted:           attempted,
			PaginationURLs:                discovered.URLs(),
			Pagination:                    discovered.Pages,
			PaginationStrategiesAttempted: discovered.StrategiesAttempted,
			Partial:                       partial,
			ProcessingTimeSeconds:         time.Since(start).Seconds(),
		},
	}
	if !result.Success {
		result.Events = []models.NormalizedEvent{}
		result.Metadata.Condition = models.ConditionNoValidEvents
		if partial {
			result.Metadata.Condition = models.ConditionDeadlineExceeded
		}
	}

	o.logger.Info().
		Str("url", req.URL).
		Int("candidates", total).
		Int("events", len(events)).
		Int("pages", len(discovered.Pages)).
		Str("method", result.Metadata.ExtractionMethod).
		Bool("partial", partial).
		Msg("Extraction finished")
	return result
}

// run executes one strategy, converting errors and panics into zero candidates.
func (o *Orchestrator) run(ctx context.Context, ex extractor.Extractor, doc *document.Document, hints models.ExtractionHints) (candidates []models.CandidateEvent) {
	name := ex.Name()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().
				Str("strategy", name).
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("Extraction strategy panicked")
			o.metrics.ObserveStrategy(name, 0, true)
			candidates = nil
		}
	}()

	if ctx.Err() != nil {
		o.metrics.ObserveStrategy(name, 0, true)
		return nil
	}

	got, err := ex.Extract(ctx, doc, hints)
	if err != nil {
		o.logger.Warn().Err(err).Str("strategy", name).Msg("Extraction strategy failed")
		o.metrics.ObserveStrategy(name, 0, true)
		return nil
	}
	stampMethod(got, ex.Method(), o.logger.With().Str("strategy", name).Logger())
	o.logger.Debug().Str("strategy", name).Int("candidates", len(got)).Msg("Extraction strategy finished")
	o.metrics.ObserveStrategy(name, len(got), false)
	return got
}

// stampMethod sets the strategy's provenance on every candidate. Merge
// precedence and the result's method label both read it.
func stampMethod(candidates []models.CandidateEvent, method models.ExtractionMethod, logger zerolog.Logger) {
	relabelled := 0
	for i := range candidates {
		if candidates[i].ExtractionMethod != method {
			candidates[i].ExtractionMethod = method
			relabelled++
		}
	}
	if relabelled > 0 {
		logger.Warn().Int("count", relabelled).Str("method", string(method)).Msg("Candidates carried a foreign extraction method")
	}
}

func (o *Orchestrator) startDiscovery(ctx context.Context, req models.ExtractionRequest, doc *document.Document, hints models.ExtractionHints, count *eventCount) <-chan models.PageDiscoveryResult {
	out := make(chan models.PageDiscoveryResult, 1)
	if o.discoverer == nil {
		out <- emptyDiscovery()
		return out
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error().Str("panic", fmt.Sprint(r)).Msg("Pagination discovery panicked")
				out <- emptyDiscovery()
			}
		}()
		out <- o.discoverer.Discover(ctx, doc, req.URL, pagination.Options{
			ExpectedEventCount: hints.ExpectedEventCount,
			FoundEvents:        count.wait,
		})
	}()
	return out
}

// awaitDiscovery waits for pagination until ctx expires. The bool reports
// whether the wait was cut short.
func (o *Orchestrator) awaitDiscovery(ctx context.Context, pages <-chan models.PageDiscoveryResult) (models.PageDiscoveryResult, bool) {
	select {
	case r := <-pages:
		return r, false
	case <-ctx.Done():
	}
	select {
	case r := <-pages:
		return r, true
	default:
		o.logger.Debug().Msg("Deadline reached before pagination discovery finished")
		return emptyDiscovery(), true
	}
}

func emptyDiscovery() models.PageDiscoveryResult {
	return models.PageDiscoveryResult{Pages: []models.PageCandidate{}, StrategiesAttempted: []string{}}
}

// eventCount publishes the validated event count once to the pagination goroutine.
type eventCount struct {
	once sync.Once
	done chan struct{}
	n    int
}

func newEventCount() *eventCount {
	return &eventCount{done: make(chan struct{})}
}

func (c *eventCount) set(n int) {
	c.once.Do(func() {
		c.n = n
		close(c.done)
	})
}

func (c *eventCount) wait(ctx context.Context) (int, error) {
	select {
	case <-c.done:
		return c.n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
