package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithRetry_SucceedsAfterRetryableFailures(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
	attempts := 0

	err := RunWithRetry(context.Background(), policy, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return RetryableHttpError{Status: 429, Cause: errors.New("rate limited")}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRunWithRetry_FatalStopsImmediately(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 5, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
	attempts := 0

	err := RunWithRetry(context.Background(), policy, func(ctx context.Context) error {
		attempts++
		return Fatal{Cause: errors.New("bad request")}
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRunWithRetry_ExhaustsRetries(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
	attempts := 0

	err := RunWithRetry(context.Background(), policy, func(ctx context.Context) error {
		attempts++
		return RetryableTransportError{Cause: errors.New("connection reset")}
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts) // initial + 2 retries
}

func TestClassifyHTTPStatus(t *testing.T) {
	cases := []struct {
		status int
		want   string
	}{
		{429, "retryable"},
		{408, "retryable"},
		{409, "retryable"},
		{500, "retryable"},
		{503, "retryable"},
		{400, "fatal"},
		{404, "fatal"},
	}
	for _, c := range cases {
		got := ClassifyHTTPStatus(c.status, 0, errors.New("x"))
		switch got.(type) {
		case RetryableHttpError:
			assert.Equal(t, "retryable", c.want, "status %d", c.status)
		case Fatal:
			assert.Equal(t, "fatal", c.want, "status %d", c.status)
		}
	}
}

func TestRunWithRetry_ContextCanceledDuringBackoff(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 5, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunWithRetry(ctx, policy, func(ctx context.Context) error {
		return RetryableHttpError{Status: 500, Cause: errors.New("server error")}
	})

	require.Error(t, err)
}
