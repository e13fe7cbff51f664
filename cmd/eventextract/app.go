package main

import (
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/aleister1102/eventextract/internal/common/errorwrapper"
	"github.com/aleister1102/eventextract/internal/config"
	"github.com/aleister1102/eventextract/internal/extractor"
	"github.com/aleister1102/eventextract/internal/httpclient"
	"github.com/aleister1102/eventextract/internal/llm"
	"github.com/aleister1102/eventextract/internal/logger"
	"github.com/aleister1102/eventextract/internal/metrics"
	"github.com/aleister1102/eventextract/internal/orchestrator"
	"github.com/aleister1102/eventextract/internal/pagination"
	"github.com/aleister1102/eventextract/internal/renderer"
	"github.com/aleister1102/eventextract/internal/rslimiter"
	"github.com/aleister1102/eventextract/internal/validator"
)

// app holds the long-lived components shared by every request.
type app struct {
	config     *config.GlobalConfig
	logger     zerolog.Logger
	metrics    *metrics.Metrics
	guard      *rslimiter.ResourceLimiter
	renderer   renderer.Renderer
	discoverer *pagination.Discoverer
	pipeline   *orchestrator.Pipeline
}

func newApp(configPath string) (*app, error) {
	bootstrap := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	cfg, err := config.LoadGlobalConfig(configPath, bootstrap)
	if err != nil {
		return nil, err
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.LogConfig)
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to initialize logger")
	}

	a := &app{config: cfg, logger: log, metrics: metrics.New()}

	a.guard = rslimiter.NewResourceLimiter(cfg.ResourceLimiterConfig, log)
	a.guard.Start()

	a.renderer, err = renderer.New(cfg.RenderConfig, a.guard, a.metrics, log)
	if err != nil {
		a.guard.Stop()
		return nil, err
	}

	completer := a.newCompleter()

	v, err := validator.NewValidator(cfg.ValidatorConfig)
	if err != nil {
		a.Close()
		return nil, err
	}

	primary := []extractor.Extractor{extractor.NewStructuredExtractor(cfg.ExtractionConfig, log)}
	var fallback []extractor.Extractor
	if completer != nil && cfg.ExtractionConfig.EnableModelAssisted {
		fallback = append(fallback, extractor.NewModelAssistedExtractor(completer, cfg.ModelConfig, cfg.ExtractionConfig, log))
	}

	a.discoverer = pagination.NewDiscoverer(cfg.PaginationConfig, completer, log)
	orch := orchestrator.NewOrchestrator(cfg.ExtractionConfig, primary, fallback, v, a.discoverer, a.metrics, log)
	a.pipeline = orchestrator.NewPipeline(a.renderer, orch, cfg.ServerConfig, a.metrics, log)
	return a, nil
}

// newCompleter returns nil when no model is configured.
func (a *app) newCompleter() llm.Completer {
	modelCfg := a.config.ModelConfig
	httpClient, err := httpclient.NewHTTPClientBuilder(a.logger).
		WithTimeout(time.Duration(modelCfg.RequestTimeoutSecs) * time.Second).
		WithHTTP2(true).
		Build()
	if err != nil {
		a.logger.Warn().Err(err).Msg("Failed to build model HTTP client, model strategies disabled")
		return nil
	}

	client, err := llm.NewOpenAIClient(modelCfg, httpClient, a.logger)
	if err != nil {
		if errors.Is(err, errorwrapper.ErrModelUnavailable) {
			a.logger.Warn().Msg("No model configured, model-assisted extraction and pagination disabled")
		} else {
			a.logger.Warn().Err(err).Msg("Failed to create model client, model strategies disabled")
		}
		return nil
	}
	a.logger.Info().Str("model", client.Model()).Msg("Model client ready")
	return client
}

// Close releases the renderer, the failure log and the resource guard.
func (a *app) Close() {
	if a.discoverer != nil {
		if err := a.discoverer.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close pagination failure log")
		}
	}
	if a.renderer != nil {
		if err := a.renderer.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close renderer")
		}
	}
	a.guard.Stop()
}
