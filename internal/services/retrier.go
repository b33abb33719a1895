package services

import (
	"context"
	"math/rand"
	"time"

	"market-gateway/internal/repository"
	"market-gateway/pkg/logger"

	"go.uber.org/zap"
)

// Retrier re-runs an operation that failed with a transient persistence
// error, waiting an exponentially growing, jittered delay between attempts.
type Retrier struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Jitter is the fraction of each delay that is randomized.
	Jitter    float64
	Retryable func(error) bool
}

func NewRetrier() *Retrier {
	return &Retrier{
		MaxAttempts:  5,
		InitialDelay: 20 * time.Millisecond,
		MaxDelay:     time.Second,
		Jitter:       0.2,
		Retryable:    repository.IsTransient,
	}
}

// NoRetry runs every operation exactly once.
func NoRetry() *Retrier {
	return &Retrier{MaxAttempts: 1}
}

// Do calls fn until it succeeds, fails with an error that is not retryable,
// the attempts are used up or ctx is done.
func (r *Retrier) Do(ctx context.Context, fn func() error) error {
	if r == nil {
		return fn()
	}
	delay := r.InitialDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if attempt >= r.MaxAttempts || r.Retryable == nil || !r.Retryable(err) {
			return err
		}

		wait := r.withJitter(delay)
		logger.GetGlobalLogger().Warn(ctx, "retrying after transient error",
			zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if r.MaxDelay > 0 && delay > r.MaxDelay {
			delay = r.MaxDelay
		}
	}
}

func (r *Retrier) withJitter(d time.Duration) time.Duration {
	span := int64(float64(d) * r.Jitter)
	if span <= 0 {
		return d
	}
	return d + time.Duration(rand.Int63n(span)-span/2)
}
