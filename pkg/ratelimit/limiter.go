// Package ratelimit throttles outgoing submissions to the processing service.
//
// Throttling is proactive: the limiter spaces requests on the client side so
// the service never has to reject them. A nil *Limiter is valid and disables
// throttling entirely.
package ratelimit

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/conwaychriscosmo/feedbackforge/pkg/logging"
)

var waitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "forge_rate_limit_wait_seconds",
	Help:    "Time spent waiting for a send slot",
	Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
})

// Limiter paces submissions at a fixed rate with a small burst allowance.
type Limiter struct {
	limiter *rate.Limiter
	rps     float64
	logger  zerolog.Logger
}

// New creates a limiter allowing rps submissions per second with the given
// burst. An rps of zero or less returns nil, which disables throttling.
func New(rps float64, burst int) *Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		rps:     rps,
		logger:  logging.NewLogger("ratelimit"),
	}
}

// Wait blocks until a send slot is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}

	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}

	waited := time.Since(start)
	waitSeconds.Observe(waited.Seconds())

	if waited > 100*time.Millisecond {
		l.logger.Debug().
			Dur("waited", waited).
			Float64("rps", l.rps).
			Msg("Submission throttled")
	}

	return nil
}

// Allow reports whether a submission may proceed immediately, consuming a
// slot when it may.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.limiter.Allow()
}

// Limit returns the configured submissions per second, or zero when
// throttling is disabled.
func (l *Limiter) Limit() float64 {
	if l == nil {
		return 0
	}
	return l.rps
}
