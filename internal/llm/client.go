// Package llm wraps the chat-completion API used by the model-assisted
// extraction and pagination strategies. Every call asks for a strict JSON
// schema and decodes the reply into a caller-supplied struct.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/aleister1102/eventextract/internal/common/errorwrapper"
	"github.com/aleister1102/eventextract/internal/config"
	"github.com/aleister1102/eventextract/internal/httpclient"
)

// JSONRequest is one schema-constrained completion.
type JSONRequest struct {
	SystemPrompt string
	UserPrompt   string
	SchemaName   string
	Schema       *jsonschema.Definition
}

// Completer issues a completion and decodes the JSON reply into out.
type Completer interface {
	CompleteJSON(ctx context.Context, req JSONRequest, out any) error
}

// OpenAIClient talks to any OpenAI-compatible chat completion endpoint.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	retry       *httpclient.RetryHandler
	retryable   func(error) bool
	logger      zerolog.Logger
}

// NewOpenAIClient builds a client from the model config section. A nil
// httpClient uses the library default. Without an API key or a custom base
// URL the model is reported unavailable.
func NewOpenAIClient(cfg config.ModelConfig, httpClient *http.Client, logger zerolog.Logger) (*OpenAIClient, error) {
	apiKey := cfg.ResolveAPIKey()
	if apiKey == "" && cfg.BaseURL == "" {
		return nil, errorwrapper.WrapError(errorwrapper.ErrModelUnavailable, "no API key configured")
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if httpClient != nil {
		clientConfig.HTTPClient = httpClient
	}

	retry := httpclient.NewRetryHandler(httpclient.RetryHandlerConfig{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		BaseDelay:    time.Duration(cfg.Retry.BaseDelayMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxDelayMs) * time.Millisecond,
		EnableJitter: cfg.Retry.EnableJitter,
	}, logger)

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     time.Duration(cfg.RequestTimeoutSecs) * time.Second,
		retry:       retry,
		retryable:   NewRetryClassifier(cfg.Retry.RetryStatusCodes),
		logger:      logger.With().Str("component", "OpenAIClient").Str("model", cfg.Model).Logger(),
	}, nil
}

// Model returns the configured model name
func (c *OpenAIClient) Model() string {
	return c.model
}

// CompleteJSON sends the request with retries. Transport failures and
// undecodable replies are retried; HTTP errors only when their status is in
// retry_status_codes.
func (c *OpenAIClient) CompleteJSON(ctx context.Context, req JSONRequest, out any) error {
	chatReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
	}
	if req.Schema != nil {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.SchemaName,
				Schema: req.Schema,
				Strict: true,
			},
		}
	}

	return c.retry.Do(ctx, req.SchemaName, func(ctx context.Context) error {
		return c.attempt(ctx, chatReq, out)
	}, c.retryable)
}

func (c *OpenAIClient) attempt(ctx context.Context, chatReq openai.ChatCompletionRequest, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		switch status := statusCode(err); {
		case errors.Is(err, context.DeadlineExceeded):
			return fmt.Errorf("%w: chat completion: %w", errorwrapper.ErrTimeout, err)
		case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
			return fmt.Errorf("%w: chat completion: %w", errorwrapper.ErrServiceUnavailable, err)
		}
		return errorwrapper.WrapError(err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return errorwrapper.WrapError(errorwrapper.ErrMalformedResponse, "no response choices")
	}

	c.logger.Debug().
		Int("total_tokens", resp.Usage.TotalTokens).
		Dur("latency", time.Since(start)).
		Msg("Chat completion received")

	return DecodeStrict(resp.Choices[0].Message.Content, out)
}

// DecodeStrict strips code fences and decodes content into out, rejecting
// unknown fields and anything after the first JSON value. Failures wrap ErrMalformedResponse.
func DecodeStrict(content string, out any) error {
	cleaned := CleanJSONResponse(content)
	if cleaned == "" {
		return errorwrapper.WrapError(errorwrapper.ErrMalformedResponse, "empty response content")
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return errorwrapper.WrapErrorf(errorwrapper.ErrMalformedResponse, "undecodable response: %v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errorwrapper.WrapError(errorwrapper.ErrMalformedResponse, "trailing data after JSON value")
	}
	return nil
}

// CleanJSONResponse removes markdown code fences around a JSON reply.
func CleanJSONResponse(response string) string {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```JSON")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}

// defaultRetryStatusCodes apply when the config lists none.
var defaultRetryStatusCodes = []int{
	http.StatusRequestTimeout,
	http.StatusConflict,
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// NewRetryClassifier returns a classifier that retries HTTP errors whose
// status is in codes. Errors without a status are retried unless the
// context was canceled. An empty list uses the defaults.
func NewRetryClassifier(codes []int) func(error) bool {
	if len(codes) == 0 {
		codes = defaultRetryStatusCodes
	}
	retryStatus := make(map[int]struct{}, len(codes))
	for _, code := range codes {
		retryStatus[code] = struct{}{}
	}
	return func(err error) bool {
		if err == nil || errors.Is(err, context.Canceled) {
			return false
		}
		if status := statusCode(err); status != 0 {
			_, ok := retryStatus[status]
			return ok
		}
		return true
	}
}

// IsRetryable classifies completion errors against the default status list.
var IsRetryable = NewRetryClassifier(nil)

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
