// Package model adapts OpenAI and Anthropic's streaming chat APIs into one
// provider-agnostic Client interface, with a shared retry/backoff policy
// grounded on the status-code taxonomy the harness uses for every provider.
package model

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/codex-web-agent/agent/internal/protocol"
	"github.com/codex-web-agent/agent/internal/sse"
)

// Client streams one model turn given a fully assembled Prompt. Each
// ResponseEvent is pushed to the callback in order; the call returns once
// the stream completes or a non-retryable error occurs.
type Client interface {
	Stream(ctx context.Context, prompt protocol.Prompt, yield func(sse.ResponseEvent) error) error
}

// StreamAttemptError is the tagged union of ways a single streaming attempt
// can fail. RunWithRetry inspects it to decide whether to retry.
type StreamAttemptError interface {
	streamAttemptError()
	Error() string
}

// RetryableHttpError is a provider HTTP error that may succeed on retry
// (429, 401, 408, 409, 5xx).
type RetryableHttpError struct {
	Status     int
	RetryAfter time.Duration
	Cause      error
}

func (RetryableHttpError) streamAttemptError() {}
func (e RetryableHttpError) Error() string {
	return fmt.Sprintf("retryable http error (%d): %v", e.Status, e.Cause)
}

// RetryableTransportError is a network-level failure (connection reset,
// timeout, DNS) distinct from an HTTP status.
type RetryableTransportError struct {
	Cause error
}

func (RetryableTransportError) streamAttemptError() {}
func (e RetryableTransportError) Error() string {
	return fmt.Sprintf("retryable transport error: %v", e.Cause)
}

// Fatal wraps an error that must not be retried (4xx other than 401/408/409/429,
// malformed request, context canceled).
type Fatal struct {
	Cause error
}

func (Fatal) streamAttemptError() {}
func (e Fatal) Error() string {
	return fmt.Sprintf("fatal model error: %v", e.Cause)
}

// ClassifyHTTPStatus maps a status code to the retry taxonomy. Shared by
// every provider adapter so retry behavior stays consistent across
// OpenAI and Anthropic.
func ClassifyHTTPStatus(status int, retryAfter time.Duration, cause error) StreamAttemptError {
	switch {
	case status == http.StatusTooManyRequests:
		return RetryableHttpError{Status: status, RetryAfter: retryAfter, Cause: cause}
	case status == http.StatusUnauthorized:
		// A 401 is retryable once the caller has had a chance to refresh
		// its token (see AuthManager.RefreshToken); classifying it as Fatal
		// would strand every OAuth-authenticated session the moment its
		// access token expires mid-conversation.
		return RetryableHttpError{Status: status, Cause: cause}
	case status == http.StatusRequestTimeout || status == http.StatusConflict:
		return RetryableHttpError{Status: status, Cause: cause}
	case status >= 500:
		return RetryableHttpError{Status: status, Cause: cause}
	default:
		return Fatal{Cause: cause}
	}
}

// RetryPolicy configures RunWithRetry's backoff.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy caps backoff at 30s with a modest retry budget, matching
// the harness's handling of OpenAI/Anthropic rate limits.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 5,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   30 * time.Second,
	}
}

// RunWithRetry calls attempt up to policy.MaxRetries+1 times, backing off
// exponentially with jitter between retryable failures. attempt should
// translate provider errors to a StreamAttemptError via ClassifyHTTPStatus
// (or RetryableTransportError/Fatal directly) and return it unwrapped so
// RunWithRetry can branch on it; any other error is treated as Fatal.
func RunWithRetry(ctx context.Context, policy RetryPolicy, attempt func(ctx context.Context) error) error {
	var lastErr error
	for i := 0; i <= policy.MaxRetries; i++ {
		err := attempt(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		var delay time.Duration
		switch e := err.(type) {
		case RetryableHttpError:
			delay = backoffDelay(policy, i, e.RetryAfter)
		case RetryableTransportError:
			delay = backoffDelay(policy, i, 0)
		case Fatal:
			return e
		default:
			return err
		}

		if i == policy.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

func backoffDelay(policy RetryPolicy, attempt int, serverHint time.Duration) time.Duration {
	if serverHint > 0 {
		return minDuration(serverHint, policy.MaxDelay)
	}
	exp := float64(policy.BaseDelay) * math.Pow(2, float64(attempt))
	jitter := 1 + (rand.Float64()-0.5)*0.2 // +/-10%
	d := time.Duration(exp * jitter)
	return minDuration(d, policy.MaxDelay)
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
