package fetcher_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmind-br/bomgate/internal/domain"
	"github.com/quantmind-br/bomgate/internal/fetcher"
)

func quickRetrier(maxRetries int) *fetcher.Retrier {
	return fetcher.NewRetrier(fetcher.RetrierOptions{
		MaxRetries:      maxRetries,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      1.5,
	})
}

func TestRetrier_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := quickRetrier(3).Retry(context.Background(), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetrier_RetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := quickRetrier(3).Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &domain.RetryableError{Err: errors.New("busy")}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetrier_StopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := errors.New("bad request")
	err := quickRetrier(3).Retry(context.Background(), func() error {
		calls++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRetrier_ExhaustsRetries(t *testing.T) {
	busy := &domain.RetryableError{Err: errors.New("busy")}
	calls := 0
	err := quickRetrier(2).Retry(context.Background(), func() error {
		calls++
		return fmt.Errorf("op: %w", busy)
	})

	assert.ErrorIs(t, err, busy)
	assert.Equal(t, 3, calls)
}

func TestRetrier_NegativeDisablesRetries(t *testing.T) {
	calls := 0
	err := quickRetrier(-1).Retry(context.Background(), func() error {
		calls++
		return &domain.RetryableError{Err: errors.New("busy")}
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetrier_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := quickRetrier(10).Retry(ctx, func() error {
		calls++
		cancel()
		return &domain.RetryableError{Err: errors.New("busy")}
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetrier_HonorsRetryAfter(t *testing.T) {
	r := fetcher.NewRetrier(fetcher.RetrierOptions{
		MaxRetries:      1,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Second,
	})

	var attempts []time.Time
	err := r.Retry(context.Background(), func() error {
		attempts = append(attempts, time.Now())
		if len(attempts) == 1 {
			return &domain.RetryableError{Err: errors.New("slow down"), RetryAfter: 1}
		}
		return nil
	})

	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.GreaterOrEqual(t, attempts[1].Sub(attempts[0]), 900*time.Millisecond)
}

func TestRetrier_RetryAfterCappedAtMaxInterval(t *testing.T) {
	start := time.Now()
	calls := 0
	err := quickRetrier(1).Retry(context.Background(), func() error {
		calls++
		return &domain.RetryableError{Err: errors.New("slow down"), RetryAfter: 3600}
	})

	assert.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDefaultRetrierOptions(t *testing.T) {
	opts := fetcher.DefaultRetrierOptions()
	assert.Equal(t, 3, opts.MaxRetries)
	assert.Equal(t, time.Second, opts.InitialInterval)
	assert.Equal(t, 30*time.Second, opts.MaxInterval)
	assert.Equal(t, 2.0, opts.Multiplier)
}

func TestShouldRetryStatus(t *testing.T) {
	for _, code := range []int{http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout} {
		assert.True(t, fetcher.ShouldRetryStatus(code), "status %d", code)
	}
	for _, code := range []int{http.StatusOK, http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusInternalServerError} {
		assert.False(t, fetcher.ShouldRetryStatus(code), "status %d", code)
	}
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 120*time.Second, fetcher.ParseRetryAfter("120"))
	assert.Zero(t, fetcher.ParseRetryAfter(""))
	assert.Zero(t, fetcher.ParseRetryAfter("-5"))
	assert.Zero(t, fetcher.ParseRetryAfter("Wed, 21 Oct 2015 07:28:00 GMT"))
}
