package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleister1102/eventextract/internal/common/errorwrapper"
	"github.com/aleister1102/eventextract/internal/config"
	"github.com/aleister1102/eventextract/internal/metrics"
	"github.com/aleister1102/eventextract/internal/models"
)

type fakeRunner struct {
	result    models.ExtractionResult
	err       error
	gotID     string
	gotReq    models.ExtractionRequest
	callCount int
}

func (f *fakeRunner) Run(_ context.Context, requestID string, req models.ExtractionRequest) (models.ExtractionResult, error) {
	f.callCount++
	f.gotID = requestID
	f.gotReq = req
	return f.result, f.err
}

type readiness struct{ err error }

func (r readiness) Ready() error { return r.err }

func newTestServer(runner ExtractionRunner, checkers ...ReadinessChecker) *Server {
	s := NewServer(config.NewDefaultServerConfig(), runner, metrics.New(), zerolog.Nop(), checkers...)
	s.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func successResult() models.ExtractionResult {
	result := models.NewFailedResult("https://example.com/events", "", "")
	result.Success = true
	result.Metadata.ExtractionMethod = models.ResultMethodJSONLD
	result.Events = []models.NormalizedEvent{{Title: "Jazz Night", StartTime: "2025-06-10T19:00:00Z"}}
	return result
}

func postExtract(t *testing.T, h http.Handler, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestExtract_Success(t *testing.T) {
	runner := &fakeRunner{result: successResult()}
	h := newTestServer(runner).Handler()

	rec := postExtract(t, h, `{"url":"https://example.com/events","extraction_hints":{"expected_event_count":3}}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var got models.ExtractionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Success)
	assert.Len(t, got.Events, 1)
	assert.Equal(t, "https://example.com/events", runner.gotReq.URL)

	id := rec.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.Equal(t, id, runner.gotID)
}

func TestExtract_ClientRequestIDIsKept(t *testing.T) {
	runner := &fakeRunner{result: successResult()}
	h := newTestServer(runner).Handler()

	rec := postExtract(t, h, `{"url":"https://example.com/events"}`, map[string]string{RequestIDHeader: "abc-123"})

	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, "abc-123", runner.gotID)
}

func TestExtract_StatusMapping(t *testing.T) {
	backendDown := models.NewFailedResult("https://example.com/events", models.ConditionBackendUnavailable, "no browser")
	fetchFailed := models.NewFailedResult("https://example.com/events", models.ConditionFetchFailed, "HTTP 404")

	tests := []struct {
		name       string
		body       string
		result     models.ExtractionResult
		err        error
		wantStatus int
		wantRun    bool
	}{
		{"malformed json", `{"url":`, models.ExtractionResult{}, nil, http.StatusBadRequest, false},
		{"invalid input", `{}`, models.ExtractionResult{}, errorwrapper.NewValidationError("URL", "", "failed 'required' rule"), http.StatusBadRequest, true},
		{"backend unavailable", `{"url":"https://example.com/events"}`, backendDown, errorwrapper.WrapError(errorwrapper.ErrRenderBackendUnavailable, "no browser"), http.StatusServiceUnavailable, true},
		{"target failure is a normal result", `{"url":"https://example.com/events"}`, fetchFailed, nil, http.StatusOK, true},
		{"unexpected error", `{"url":"https://example.com/events"}`, models.ExtractionResult{}, errorwrapper.NewError("boom"), http.StatusInternalServerError, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{result: tt.result, err: tt.err}

			rec := postExtract(t, newTestServer(runner).Handler(), tt.body, nil)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantRun, runner.callCount == 1)
			assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
		})
	}
}

func TestExtract_BackendUnavailableCarriesResult(t *testing.T) {
	runner := &fakeRunner{
		result: models.NewFailedResult("https://example.com/events", models.ConditionBackendUnavailable, "no browser"),
		err:    errorwrapper.WrapError(errorwrapper.ErrRenderBackendUnavailable, "no browser"),
	}

	rec := postExtract(t, newTestServer(runner).Handler(), `{"url":"https://example.com/events"}`, nil)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var got models.ExtractionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.False(t, got.Success)
	assert.Equal(t, models.ConditionBackendUnavailable, got.Metadata.Condition)
}

func TestExtract_BodyTooLarge(t *testing.T) {
	cfg := config.NewDefaultServerConfig()
	cfg.MaxBodyBytes = 1024
	runner := &fakeRunner{}
	s := NewServer(cfg, runner, nil, zerolog.Nop())

	body := `{"url":"https://example.com/` + strings.Repeat("a", 2048) + `"}`
	rec := postExtract(t, s.Handler(), body, nil)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Zero(t, runner.callCount)
}

func TestExtract_WrongMethod(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&fakeRunner{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/extract", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestProbes(t *testing.T) {
	notReady := readiness{err: errorwrapper.WrapError(errorwrapper.ErrRenderBackendUnavailable, "memory high")}

	tests := []struct {
		name       string
		path       string
		checkers   []ReadinessChecker
		wantStatus int
		wantBody   string
	}{
		{"health", "/health", []ReadinessChecker{notReady}, http.StatusOK, "healthy"},
		{"live", "/live", []ReadinessChecker{notReady}, http.StatusOK, "alive"},
		{"ready", "/ready", []ReadinessChecker{readiness{}}, http.StatusOK, "ready"},
		{"not ready", "/ready", []ReadinessChecker{readiness{}, notReady}, http.StatusServiceUnavailable, "not_ready"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newTestServer(&fakeRunner{}, tt.checkers...).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			require.Equal(t, tt.wantStatus, rec.Code)
			var got HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.wantBody, got.Status)
			assert.Equal(t, "2025-06-01T12:00:00Z", got.Timestamp)
			assert.Equal(t, config.NewDefaultServerConfig().Version, got.Version)
		})
	}
}

func TestRootAndMetrics(t *testing.T) {
	h := newTestServer(&fakeRunner{}).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "eventextract")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := newTestServer(&fakeRunner{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, listener) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + listener.Addr().String() + "/live")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}
