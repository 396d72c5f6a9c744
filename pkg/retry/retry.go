// Package retry executes calls against the processing service with
// exponential backoff. Whether a failure is worth retrying is decided by a
// predicate, so the loop stays independent of any particular failure
// taxonomy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	forgeRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forge_retries_total",
		Help: "Total retry attempts after transient failures",
	})

	forgeRetryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "forge_retry_backoff_seconds",
		Help:    "Backoff wait duration before a retry",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	})

	forgeRetryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forge_retry_exhausted_total",
		Help: "Total calls that exhausted the retry budget",
	})
)

// Common errors returned by the retry loop.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during backoff.
	ErrContextCancelled = errors.New("context cancelled")
)

// ExhaustedError reports that a call kept failing until the retry budget ran
// out. It matches ErrRetryExhausted under errors.Is and unwraps to the last
// failure.
type ExhaustedError struct {
	// Attempts is the number of attempts made, including the first.
	Attempts int

	// Err is the failure from the final attempt.
	Err error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry attempts exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrRetryExhausted
}

// Policy holds the configuration for retry behavior.
type Policy struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	MaxAttempts int

	// BaseDelay is the backoff before the first retry. It doubles per
	// subsequent retry.
	BaseDelay time.Duration

	// MaxDelay caps the backoff growth.
	MaxDelay time.Duration

	// Jitter is the backoff randomization fraction; 0.2 spreads waits over
	// ±20%. Zero disables jitter.
	Jitter float64
}

// DefaultPolicy returns the default retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
		Jitter:      0.2,
	}
}

// withDefaults fills unset fields. A zero Jitter stays zero so callers can
// opt out of randomization.
func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	return p
}

// jittered randomizes a backoff duration by ±p.Jitter.
func (p Policy) jittered(d time.Duration) time.Duration {
	if p.Jitter <= 0 {
		return d
	}
	factor := 1 - p.Jitter + rand.Float64()*2*p.Jitter
	return time.Duration(float64(d) * factor)
}

// Do executes fn with exponential backoff until it succeeds, fails with an
// error the predicate rejects, exhausts the attempt budget, or the context is
// cancelled during backoff.
//
// Non-retryable failures are returned unchanged after the first attempt.
// Exhaustion returns an *ExhaustedError wrapping the last failure.
func Do(ctx context.Context, policy Policy, fn func() error, retryable func(error) bool) error {
	policy = policy.withDefaults()

	var lastErr error
	backoff := policy.BaseDelay

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().
					Int("attempt", attempt).
					Msg("Call succeeded after retry")
			}
			return nil
		}

		lastErr = err

		if !retryable(err) {
			// Permanent failure, retrying cannot help.
			return err
		}

		if attempt >= policy.MaxAttempts {
			break
		}

		forgeRetriesTotal.Inc()

		wait := policy.jittered(backoff)
		forgeRetryBackoffSeconds.Observe(wait.Seconds())

		log.Debug().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying call after backoff")

		select {
		case <-ctx.Done():
			log.Warn().
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(wait):
		}

		backoff *= 2
		if backoff > policy.MaxDelay {
			backoff = policy.MaxDelay
		}
	}

	forgeRetryExhaustedTotal.Inc()
	log.Warn().
		Err(lastErr).
		Int("max_attempts", policy.MaxAttempts).
		Msg("Retry attempts exhausted")

	return &ExhaustedError{Attempts: policy.MaxAttempts, Err: lastErr}
}
