package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/aleister1102/eventextract/internal/common/errorwrapper"
	"github.com/aleister1102/eventextract/internal/config"
	"github.com/aleister1102/eventextract/internal/document"
	"github.com/aleister1102/eventextract/internal/logger"
	"github.com/aleister1102/eventextract/internal/metrics"
	"github.com/aleister1102/eventextract/internal/models"
)

// PageRenderer turns a URL into a rendered document.
type PageRenderer interface {
	Render(ctx context.Context, url string) (*document.Document, error)
}

// Pipeline validates a request, renders the page and hands it to the Orchestrator.
type Pipeline struct {
	renderer       PageRenderer
	orchestrator   *Orchestrator
	validate       *validator.Validate
	defaultTimeout time.Duration
	maxTimeout     time.Duration
	metrics        *metrics.Metrics
	logger         zerolog.Logger
}

// NewPipeline creates a pipeline using the request timeouts of the server section.
func NewPipeline(r PageRenderer, o *Orchestrator, serverCfg config.ServerConfig, m *metrics.Metrics, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		renderer:       r,
		orchestrator:   o,
		validate:       validator.New(),
		defaultTimeout: time.Duration(serverCfg.RequestTimeoutSecs) * time.Second,
		maxTimeout:     time.Duration(serverCfg.MaxRequestTimeoutSecs) * time.Second,
		metrics:        m,
		logger:         logger.With().Str("component", "Pipeline").Logger(),
	}
}

// ValidateRequest checks the request shape and its schema contract.
// Failures unwrap to errorwrapper.ErrInvalidInput.
func (p *Pipeline) ValidateRequest(req *models.ExtractionRequest) error {
	if err := p.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return errorwrapper.NewValidationError(fe.Namespace(), fe.Value(), "failed '"+fe.Tag()+"' rule")
		}
		return errorwrapper.WrapError(errorwrapper.ErrInvalidInput, err.Error())
	}
	if req.SchemaRequirements != nil {
		if problem := req.SchemaRequirements.Check(); problem != "" {
			return errorwrapper.NewValidationError("schema_requirements", *req.SchemaRequirements, problem)
		}
	}
	return nil
}

// Timeout returns the effective deadline budget for req.
func (p *Pipeline) Timeout(req *models.ExtractionRequest) time.Duration {
	timeout := p.defaultTimeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}
	if p.maxTimeout > 0 && timeout > p.maxTimeout {
		timeout = p.maxTimeout
	}
	return timeout
}

// Run executes one extraction request. The returned error is non-nil only for
// invalid input and for an unavailable render backend; in the latter case the
// result still describes the failure.
func (p *Pipeline) Run(ctx context.Context, requestID string, req models.ExtractionRequest) (models.ExtractionResult, error) {
	if err := p.ValidateRequest(&req); err != nil {
		return models.ExtractionResult{}, err
	}

	start := time.Now()
	done := p.metrics.RequestStarted()
	defer done()

	log := logger.ForRequest(p.logger, requestID, req.URL)
	timeout := p.Timeout(&req)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log.Info().Dur("timeout", timeout).Msg("Extraction started")

	doc, err := p.renderer.Render(ctx, req.URL)
	if err != nil {
		result, runErr := p.renderFailure(ctx, req.URL, err)
		result.Metadata.RequestID = requestID
		result.Metadata.ProcessingTimeSeconds = time.Since(start).Seconds()
		log.Warn().Err(err).Str("condition", result.Metadata.Condition).Msg("Render failed")
		p.metrics.ObserveRequest(models.ResultMethodNone, result.Metadata.Condition, 0, 0, time.Since(start))
		return result, runErr
	}

	result := p.orchestrator.Extract(ctx, req, doc)
	result.Metadata.RequestID = requestID
	result.Metadata.ProcessingTimeSeconds = time.Since(start).Seconds()

	outcome := "success"
	if !result.Success {
		outcome = result.Metadata.Condition
	}
	p.metrics.ObserveRequest(result.Metadata.ExtractionMethod, outcome, len(result.Events), len(result.Metadata.PaginationURLs), time.Since(start))
	log.Info().
		Bool("success", result.Success).
		Int("events", len(result.Events)).
		Float64("seconds", result.Metadata.ProcessingTimeSeconds).
		Msg("Extraction completed")
	return result, nil
}

func (p *Pipeline) renderFailure(ctx context.Context, url string, err error) (models.ExtractionResult, error) {
	switch {
	case errors.Is(err, errorwrapper.ErrRenderBackendUnavailable):
		return models.NewFailedResult(url, models.ConditionBackendUnavailable, err.Error()), err
	case ctx.Err() != nil && !errorwrapper.IsTargetFailure(err):
		result := models.NewFailedResult(url, models.ConditionDeadlineExceeded, err.Error())
		result.Metadata.Partial = true
		return result, nil
	default:
		return models.NewFailedResult(url, models.ConditionFetchFailed, err.Error()), nil
	}
}
