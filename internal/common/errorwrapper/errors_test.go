package errorwrapper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil, "context"))

	base := errors.New("boom")
	wrapped := WrapError(base, "rendering page")
	assert.EqualError(t, wrapped, "rendering page: boom")
	assert.ErrorIs(t, wrapped, base)

	formatted := WrapErrorf(base, "attempt %d", 2)
	assert.EqualError(t, formatted, "attempt 2: boom")
}

func TestValidationError_MatchesInvalidInput(t *testing.T) {
	err := NewValidationError("url", "", "url is required")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "url is required")
}

func TestIsTargetFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "network", err: NewNetworkError("http://x", "dial failed", errors.New("refused")), want: true},
		{name: "http status", err: NewHTTPErrorWithURL(404, "not found", "http://x"), want: true},
		{name: "wrapped http status", err: WrapError(NewHTTPErrorWithURL(500, "oops", "http://x"), "static render"), want: true},
		{name: "backend", err: WrapError(ErrRenderBackendUnavailable, "pool exhausted"), want: false},
		{name: "other", err: errors.New("other"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTargetFailure(tt.err))
		})
	}
}

func TestNetworkError_MatchesNetworkFailure(t *testing.T) {
	err := WrapError(NewNetworkError("https://example.com", "timeout", nil), "render")

	assert.ErrorIs(t, err, ErrNetworkFailure)
	assert.NotErrorIs(t, NewHTTPErrorWithURL(404, "Not Found", "https://example.com"), ErrNetworkFailure)
}
