package extractor

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/aleister1102/eventextract/internal/common/errorwrapper"
	"github.com/aleister1102/eventextract/internal/config"
	"github.com/aleister1102/eventextract/internal/document"
	"github.com/aleister1102/eventextract/internal/llm"
	"github.com/aleister1102/eventextract/internal/models"
)

type modelEvent struct {
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description"`
	Location    string  `json:"location"`
	StartTime   string  `json:"start_time" validate:"required"`
	EndTime     string  `json:"end_time"`
	URL         string  `json:"url"`
	Confidence  float64 `json:"confidence" validate:"gte=0,lte=1"`
}

type modelEventResponse struct {
	Events []modelEvent `json:"events"`
}

// ModelAssistedExtractor asks a generative model to read events from page content.
type ModelAssistedExtractor struct {
	completer         llm.Completer
	defaultConfidence float64
	maxInputChars     int
	minContentChars   int
	validate          *validator.Validate
	logger            zerolog.Logger
}

// NewModelAssistedExtractor creates the fallback extractor
func NewModelAssistedExtractor(completer llm.Completer, modelCfg config.ModelConfig, extractionCfg config.ExtractionConfig, logger zerolog.Logger) *ModelAssistedExtractor {
	return &ModelAssistedExtractor{
		completer:         completer,
		defaultConfidence: modelCfg.DefaultConfidence,
		maxInputChars:     modelCfg.MaxInputChars,
		minContentChars:   extractionCfg.MinContentChars,
		validate:          validator.New(),
		logger:            logger.With().Str("component", "ModelAssistedExtractor").Logger(),
	}
}

func (e *ModelAssistedExtractor) Name() string { return models.ResultMethodLLM }

func (e *ModelAssistedExtractor) Method() models.ExtractionMethod { return models.MethodModelAssisted }

// Extract returns zero candidates without calling the model when the page
// content is too short.
func (e *ModelAssistedExtractor) Extract(ctx context.Context, doc *document.Document, hints models.ExtractionHints) ([]models.CandidateEvent, error) {
	if e.completer == nil {
		return nil, errorwrapper.ErrModelUnavailable
	}

	content, narrowed := e.modelInput(doc, hints.ContentSelectors)
	if len([]rune(content)) < e.minContentChars {
		e.logger.Debug().Int("chars", len(content)).Msg("Content too short for model extraction")
		return nil, nil
	}

	e.logger.Debug().
		Int("chars", len(content)).
		Bool("narrowed", narrowed).
		Msg("Requesting model extraction")

	var response modelEventResponse
	err := e.completer.CompleteJSON(ctx, llm.JSONRequest{
		SystemPrompt: eventSystemPrompt,
		UserPrompt:   buildEventUserPrompt(doc.URL.String(), hints.ExpectedEventCount, content),
		SchemaName:   eventSchemaName,
		Schema:       eventResponseSchema(),
	}, &response)
	if err != nil {
		return nil, errorwrapper.WrapError(err, "model extraction failed")
	}

	return e.toCandidates(response.Events, doc), nil
}

func (e *ModelAssistedExtractor) modelInput(doc *document.Document, selectors []string) (string, bool) {
	fragment, narrowed := doc.ContentHTML(selectors)
	content, err := document.ToMarkdown(fragment)
	if err != nil {
		e.logger.Debug().Err(err).Msg("Markdown conversion failed, using empty content")
		return "", narrowed
	}
	return truncateRunes(strings.TrimSpace(content), e.maxInputChars), narrowed
}

func (e *ModelAssistedExtractor) toCandidates(items []modelEvent, doc *document.Document) []models.CandidateEvent {
	candidates := make([]models.CandidateEvent, 0, len(items))
	for i, item := range items {
		item = trimModelEvent(item)
		if err := e.validate.Struct(item); err != nil {
			e.logger.Debug().Int("index", i).Err(err).Msg("Rejecting model event")
			continue
		}

		confidence := item.Confidence
		if confidence <= 0 || confidence > 1 {
			confidence = e.defaultConfidence
		}

		eventURL := ""
		if item.URL != "" {
			if resolved, ok := doc.Resolve(item.URL); ok {
				eventURL = resolved
			}
		}

		fragment, _ := json.Marshal(item)
		candidates = append(candidates, models.CandidateEvent{
			Title:            item.Title,
			Description:      item.Description,
			Location:         item.Location,
			StartTime:        item.StartTime,
			EndTime:          item.EndTime,
			URL:              eventURL,
			SourceFragment:   string(fragment),
			Confidence:       confidence,
			ExtractionMethod: models.MethodModelAssisted,
		})
	}

	e.logger.Debug().
		Int("returned", len(items)).
		Int("accepted", len(candidates)).
		Msg("Model extraction completed")
	return candidates
}

func trimModelEvent(item modelEvent) modelEvent {
	item.Title = document.CollapseWhitespace(item.Title)
	item.Description = strings.TrimSpace(item.Description)
	item.Location = document.CollapseWhitespace(item.Location)
	item.StartTime = strings.TrimSpace(item.StartTime)
	item.EndTime = strings.TrimSpace(item.EndTime)
	item.URL = strings.TrimSpace(item.URL)
	return item
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
