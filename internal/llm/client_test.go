package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleister1102/eventextract/internal/common/errorwrapper"
	"github.com/aleister1102/eventextract/internal/config"
)

type reply struct {
	Items []string `json:"items"`
}

var replySchema = &jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"items": {Type: jsonschema.Array, Items: &jsonschema.Definition{Type: jsonschema.String}},
	},
	Required:             []string{"items"},
	AdditionalProperties: false,
}

func completionBody(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
	})
	return string(body)
}

// fakeModel serves scripted responses in order; the last one repeats.
func fakeModel(t *testing.T, responses ...func(w http.ResponseWriter)) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		n := int(atomic.AddInt32(&calls, 1)) - 1
		if n >= len(responses) {
			n = len(responses) - 1
		}
		responses[n](w)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func ok(content string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody(content)))
	}
}

func status(code int) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"invalid_request_error"}}`))
	}
}

func newTestClient(t *testing.T, baseURL string, mutate ...func(*config.ModelConfig)) *OpenAIClient {
	t.Helper()
	cfg := config.NewDefaultModelConfig()
	cfg.APIKey = "test-key"
	cfg.BaseURL = baseURL + "/v1"
	cfg.Model = "test-model"
	cfg.Retry.BaseDelayMs = 1
	cfg.Retry.MaxDelayMs = 2
	cfg.Retry.EnableJitter = false
	for _, m := range mutate {
		m(&cfg)
	}
	client, err := NewOpenAIClient(cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	return client
}

func TestCompleteJSON_DecodesFencedReply(t *testing.T) {
	server, calls := fakeModel(t, ok("```json\n{\"items\":[\"a\",\"b\"]}\n```"))
	client := newTestClient(t, server.URL)

	var out reply
	err := client.CompleteJSON(context.Background(), JSONRequest{
		SystemPrompt: "sys", UserPrompt: "user", SchemaName: "reply", Schema: replySchema,
	}, &out)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out.Items)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestCompleteJSON_RetriesMalformedThenSucceeds(t *testing.T) {
	server, calls := fakeModel(t, ok("not json"), ok(`{"items":["x"]}`))
	client := newTestClient(t, server.URL)

	var out reply
	err := client.CompleteJSON(context.Background(), JSONRequest{SchemaName: "reply", Schema: replySchema}, &out)

	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, out.Items)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestCompleteJSON_RetriesServerErrorsUntilExhausted(t *testing.T) {
	server, calls := fakeModel(t, status(http.StatusServiceUnavailable))
	client := newTestClient(t, server.URL)

	var out reply
	err := client.CompleteJSON(context.Background(), JSONRequest{SchemaName: "reply", Schema: replySchema}, &out)

	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestCompleteJSON_NoRetryOnUnauthorized(t *testing.T) {
	server, calls := fakeModel(t, status(http.StatusUnauthorized))
	client := newTestClient(t, server.URL)

	var out reply
	err := client.CompleteJSON(context.Background(), JSONRequest{SchemaName: "reply", Schema: replySchema}, &out)

	require.Error(t, err)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestCompleteJSON_UnknownFieldRejected(t *testing.T) {
	server, calls := fakeModel(t, ok(`{"items":[],"extra":1}`))
	client := newTestClient(t, server.URL)

	var out reply
	err := client.CompleteJSON(context.Background(), JSONRequest{SchemaName: "reply", Schema: replySchema}, &out)

	require.Error(t, err)
	assert.ErrorIs(t, err, errorwrapper.ErrMalformedResponse)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestNewOpenAIClient_NoCredentials(t *testing.T) {
	cfg := config.NewDefaultModelConfig()
	cfg.APIKeyEnv = ""

	_, err := NewOpenAIClient(cfg, nil, zerolog.Nop())

	assert.ErrorIs(t, err, errorwrapper.ErrModelUnavailable)
}

func TestCleanJSONResponse(t *testing.T) {
	assert.Equal(t, `{"a":1}`, CleanJSONResponse("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, CleanJSONResponse("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, CleanJSONResponse(`  {"a":1} `))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(errors.New("connection reset")))
	assert.True(t, IsRetryable(errorwrapper.ErrMalformedResponse))
	assert.True(t, IsRetryable(&openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}))
	assert.False(t, IsRetryable(&openai.APIError{HTTPStatusCode: http.StatusNotFound}))
}

func TestNewRetryClassifier_UsesConfiguredStatuses(t *testing.T) {
	retryable := NewRetryClassifier([]int{http.StatusTooManyRequests})

	assert.True(t, retryable(&openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}))
	assert.False(t, retryable(&openai.APIError{HTTPStatusCode: http.StatusServiceUnavailable}))
	assert.True(t, retryable(errors.New("connection reset")))
	assert.False(t, retryable(context.Canceled))
}

func TestCompleteJSON_RetryStatusCodesFromConfig(t *testing.T) {
	tests := []struct {
		name      string
		codes     []int
		status    int
		wantCalls int32
	}{
		{name: "listed status is retried", codes: []int{http.StatusServiceUnavailable}, status: http.StatusServiceUnavailable, wantCalls: 3},
		{name: "unlisted status fails fast", codes: []int{http.StatusTooManyRequests}, status: http.StatusServiceUnavailable, wantCalls: 1},
		{name: "custom status is retried", codes: []int{http.StatusNotFound}, status: http.StatusNotFound, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, calls := fakeModel(t, status(tt.status))
			client := newTestClient(t, server.URL, func(c *config.ModelConfig) {
				c.Retry.RetryStatusCodes = tt.codes
			})

			var out reply
			err := client.CompleteJSON(context.Background(), JSONRequest{SchemaName: "reply", Schema: replySchema}, &out)

			require.Error(t, err)
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(calls))
		})
	}
}

func TestDecodeStrict(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{name: "single value", content: `{"items":["a"]}`},
		{name: "trailing whitespace", content: "{\"items\":[]}\n  "},
		{name: "trailing junk", content: `{"items":[]} trailing junk`, wantErr: true},
		{name: "second object", content: `{"items":[]}{"items":["b"]}`, wantErr: true},
		{name: "unknown field", content: `{"items":[],"extra":true}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out reply
			err := DecodeStrict(tt.content, &out)
			if tt.wantErr {
				assert.ErrorIs(t, err, errorwrapper.ErrMalformedResponse)
				return
			}
			assert.NoError(t, err)
		})
	}
}
