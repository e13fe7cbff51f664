package httpclient

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/aleister1102/eventextract/internal/common/errorwrapper"
)

// RetryHandler runs an operation with bounded exponential backoff
type RetryHandler struct {
	maxAttempts  int
	baseDelay    time.Duration
	maxDelay     time.Duration
	enableJitter bool
	logger       zerolog.Logger
	sleep        func(ctx context.Context, d time.Duration) error
}

// RetryHandlerConfig configuration for retry handler
type RetryHandlerConfig struct {
	MaxAttempts  int           `json:"max_attempts"`
	BaseDelay    time.Duration `json:"base_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	EnableJitter bool          `json:"enable_jitter"`
}

// Classifier reports whether an error is worth another attempt.
type Classifier func(err error) bool

// NewRetryHandler creates a new retry handler
func NewRetryHandler(config RetryHandlerConfig, logger zerolog.Logger) *RetryHandler {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.MaxDelay < config.BaseDelay {
		config.MaxDelay = config.BaseDelay
	}
	return &RetryHandler{
		maxAttempts:  config.MaxAttempts,
		baseDelay:    config.BaseDelay,
		maxDelay:     config.MaxDelay,
		enableJitter: config.EnableJitter,
		logger:       logger.With().Str("component", "RetryHandler").Logger(),
		sleep:        sleepContext,
	}
}

// MaxAttempts returns the total attempt budget
func (rh *RetryHandler) MaxAttempts() int {
	return rh.maxAttempts
}

// CalculateDelay returns the wait after the given zero-based failed attempt:
// baseDelay * 2^attempt, capped at maxDelay.
func (rh *RetryHandler) CalculateDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := time.Duration(float64(rh.baseDelay) * math.Pow(2, float64(attempt)))
	if delay > rh.maxDelay || delay <= 0 {
		delay = rh.maxDelay
	}

	if rh.enableJitter && delay >= 10*time.Millisecond {
		jitter := time.Duration(rand.Int63n(int64(delay / 10)))
		delay += jitter
	}
	return delay
}

// Do runs op until it succeeds, the classifier rejects the error, the
// attempt budget is spent, or ctx ends. The last error is returned wrapped.
func (rh *RetryHandler) Do(ctx context.Context, name string, op func(ctx context.Context) error, retryable Classifier) error {
	var lastErr error
	for attempt := 0; attempt < rh.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return errorwrapper.WrapError(lastErr, "retry aborted")
			}
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
		if attempt == rh.maxAttempts-1 {
			break
		}

		delay := rh.CalculateDelay(attempt)
		rh.logger.Warn().
			Str("operation", name).
			Int("attempt", attempt+1).
			Int("max_attempts", rh.maxAttempts).
			Dur("delay", delay).
			Err(lastErr).
			Msg("Attempt failed, waiting before retry")

		if err := rh.sleep(ctx, delay); err != nil {
			return errorwrapper.WrapError(lastErr, "retry aborted")
		}
	}
	return errorwrapper.WrapErrorf(lastErr, "all %d attempts failed", rh.maxAttempts)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
