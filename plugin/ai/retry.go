package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// RetryPolicy bounds RetryWithBackoff.
type RetryPolicy struct {
	MaxAttempts int
	// BaseDelay is doubled after every failed attempt.
	BaseDelay time.Duration
	// Retryable reports whether a failure is worth another attempt.
	// Nil means IsRetryable.
	Retryable func(error) bool
}

// DefaultRetryPolicy is 3 attempts, 500ms base delay.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond}

// RetryWithBackoff runs operation until it succeeds, fails permanently, runs
// out of attempts, or ctx is done. In the last case the context error is
// returned wrapping the last failure.
func RetryWithBackoff(ctx context.Context, policy RetryPolicy, operation func(ctx context.Context) error) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	retryable := policy.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return contextError(err, lastErr)
		}

		lastErr = operation(ctx)
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return contextError(err, lastErr)
		}
		if !retryable(lastErr) || attempt == policy.MaxAttempts {
			return lastErr
		}

		delay := policy.BaseDelay << (attempt - 1)
		slog.Debug("operation failed, will retry",
			"attempt", attempt,
			"maxAttempts", policy.MaxAttempts,
			"delay", delay,
			"error", lastErr,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return contextError(ctx.Err(), lastErr)
		case <-timer.C:
		}
	}
	return lastErr
}

func contextError(ctxErr, lastErr error) error {
	if lastErr == nil {
		return ctxErr
	}
	return fmt.Errorf("%w (last error: %v)", ctxErr, lastErr)
}

// IsRetryable classifies provider failures. Server errors, rate limiting,
// network errors and per-attempt deadlines are transient. Client errors and
// an exhausted quota are not.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if isQuotaExhausted(apiErr) {
			return false
		}
		return isRetryableStatus(apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return isRetryableStatus(reqErr.HTTPStatusCode)
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func isRetryableStatus(status int) bool {
	switch {
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout:
		return true
	case status >= 500:
		return true
	default:
		return false
	}
}

func isQuotaExhausted(apiErr *openai.APIError) bool {
	if apiErr.HTTPStatusCode != http.StatusTooManyRequests {
		return false
	}
	return apiErr.Type == "insufficient_quota" || fmt.Sprint(apiErr.Code) == "insufficient_quota"
}
