package gateway

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig controls backoff for transient persistence failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultRetryConfig returns 3 attempts starting at 200ms, doubling up to 2s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		InitialWait: 200 * time.Millisecond,
		MaxWait:     2 * time.Second,
		Multiplier:  2.0,
	}
}

// RetryGateway is a decorator that retries failed operations with
// exponential backoff and jitter.
type RetryGateway struct {
	inner  Gateway
	config RetryConfig
}

// WithRetry wraps a Gateway with retry logic.
func WithRetry(g Gateway, cfg RetryConfig) Gateway {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &RetryGateway{inner: g, config: cfg}
}

func (r *RetryGateway) Get(ctx context.Context, userID, recordType string) ([]byte, error) {
	var out []byte
	err := r.do(ctx, func() error {
		v, err := r.inner.Get(ctx, userID, recordType)
		out = v
		return err
	})
	return out, err
}

func (r *RetryGateway) Set(ctx context.Context, userID, recordType string, value []byte) error {
	return r.do(ctx, func() error {
		return r.inner.Set(ctx, userID, recordType, value)
	})
}

func (r *RetryGateway) Keys(ctx context.Context, userID, prefix string) ([]string, error) {
	var out []string
	err := r.do(ctx, func() error {
		v, err := r.inner.Keys(ctx, userID, prefix)
		out = v
		return err
	})
	return out, err
}

func (r *RetryGateway) do(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := range r.config.MaxAttempts {
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if !shouldRetry(err) {
			return err
		}
		if attempt == r.config.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.backoff(attempt)):
		}
	}
	return lastErr
}

// shouldRetry reports whether err may succeed on a later attempt.
func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// A missing record stays missing.
	return !errors.Is(err, ErrNotFound)
}

func (r *RetryGateway) backoff(attempt int) time.Duration {
	wait := float64(r.config.InitialWait) * math.Pow(r.config.Multiplier, float64(attempt))
	if wait > float64(r.config.MaxWait) {
		wait = float64(r.config.MaxWait)
	}

	// ±20% jitter.
	wait += wait * 0.2 * (2*rand.Float64() - 1)
	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}
