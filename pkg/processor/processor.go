// Package processor orchestrates batch document processing over a bounded
// worker pool.
//
// A batch run resolves every document reference to exactly one outcome:
// succeeded, failed, or cancelled. Individual failures never abort the rest
// of the batch.
package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/conwaychriscosmo/feedbackforge/pkg/transport"
)

// Prometheus metrics for batch operations.
var (
	forgeBatchItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forge_batch_items_total",
		Help: "Finished work items by outcome state",
	}, []string{"state"})

	forgeBatchInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forge_batch_in_flight",
		Help: "Work items currently being processed",
	})

	forgeBatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "forge_batch_duration_seconds",
		Help:    "Whole-batch duration in seconds",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 300},
	})

	forgeBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "forge_batch_size",
		Help:    "Number of documents per batch",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
	})
)

// ErrEmptyBatch is returned by ProcessBatch when no references are supplied.
var ErrEmptyBatch = errors.New("batch contains no document references")

// DefaultConcurrency bounds parallel submissions when unconfigured.
const DefaultConcurrency = 5

// State is the terminal state of one work item.
type State string

const (
	// StateSucceeded means the service processed the document.
	StateSucceeded State = "succeeded"

	// StateFailed means the submission failed permanently or exhausted its
	// retry budget.
	StateFailed State = "failed"

	// StateCancelled means the batch was cancelled before the document was
	// dispatched.
	StateCancelled State = "cancelled"
)

// Outcome is the per-document result of a batch run.
type Outcome struct {
	// Reference is the document reference this outcome belongs to.
	Reference string `json:"reference"`

	// State is the terminal state.
	State State `json:"state"`

	// CompletedAt is when the item finished, in completion order.
	CompletedAt time.Time `json:"completed_at"`

	// Payload is the service result; set only when State is succeeded.
	Payload *transport.ProcessResult `json:"payload,omitempty"`

	// FailureReason describes why the item failed or was cancelled.
	FailureReason string `json:"failure_reason,omitempty"`
}

// Succeeded reports whether the document was processed.
func (o Outcome) Succeeded() bool {
	return o.State == StateSucceeded
}

// Summary counts outcomes by state.
type Summary struct {
	Succeeded int
	Failed    int
	Cancelled int
}

// Summarize tallies a result set.
func Summarize(outcomes []Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		switch o.State {
		case StateSucceeded:
			s.Succeeded++
		case StateFailed:
			s.Failed++
		case StateCancelled:
			s.Cancelled++
		}
	}
	return s
}

// ProgressFunc observes batch progress. It is called once per finished item
// with the running completion count and the fixed batch size.
type ProgressFunc func(completed, total int)

// Executor resolves one document reference to a result. *retry.Executor
// implements it.
type Executor interface {
	Execute(ctx context.Context, ref string) (*transport.ProcessResult, error)
}

// Config holds the processor configuration.
type Config struct {
	// Executor performs per-document work. Required.
	Executor Executor

	// Concurrency bounds parallel submissions (default: 5).
	Concurrency int

	// OnProgress is invoked after every finished item. Optional. It runs on
	// the collecting goroutine, so it never races with itself.
	OnProgress ProgressFunc
}

// Processor runs batches of document references through an executor.
type Processor struct {
	executor    Executor
	concurrency int
	onProgress  ProgressFunc
	logger      zerolog.Logger
}

// New creates a processor.
func New(cfg Config) (*Processor, error) {
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	return &Processor{
		executor:    cfg.Executor,
		concurrency: cfg.Concurrency,
		onProgress:  cfg.OnProgress,
		logger:      log.With().Str("component", "processor").Logger(),
	}, nil
}

// ProcessBatch processes every reference and returns one outcome per
// reference, in completion order. The error is non-nil only for invalid
// input (ErrEmptyBatch); per-document failures are reported in the outcomes.
//
// Cancelling ctx stops dispatching: in-flight documents still finish and
// undispatched ones are reported as cancelled, so the result set is always
// complete.
func (p *Processor) ProcessBatch(ctx context.Context, refs []string) ([]Outcome, error) {
	if len(refs) == 0 {
		return nil, ErrEmptyBatch
	}

	total := len(refs)
	start := time.Now()
	forgeBatchSize.Observe(float64(total))

	p.logger.Info().
		Int("batch_size", total).
		Int("concurrency", p.concurrency).
		Msg("Starting batch")

	// Queue every reference up front; workers drain the closed channel.
	work := make(chan string, total)
	for _, ref := range refs {
		work <- ref
	}
	close(work)

	// Buffered to the batch size so workers never block on a slow observer.
	results := make(chan Outcome, total)

	workers := p.concurrency
	if workers > total {
		workers = total
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go p.worker(ctx, work, results, &wg)
	}

	// Close results channel when all workers are done.
	go func() {
		wg.Wait()
		close(results)
	}()

	outcomes := make([]Outcome, 0, total)
	completed := 0
	for outcome := range results {
		outcomes = append(outcomes, outcome)
		completed++

		forgeBatchItemsTotal.WithLabelValues(string(outcome.State)).Inc()

		if p.onProgress != nil {
			p.onProgress(completed, total)
		}

		p.logger.Debug().
			Str("reference", outcome.Reference).
			Str("state", string(outcome.State)).
			Int("completed", completed).
			Int("total", total).
			Msg("Document finished")
	}

	duration := time.Since(start)
	forgeBatchDuration.Observe(duration.Seconds())

	summary := Summarize(outcomes)
	p.logger.Info().
		Int("batch_size", total).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("cancelled", summary.Cancelled).
		Dur("duration", duration).
		Msg("Batch complete")

	return outcomes, nil
}

// worker resolves references until the queue is drained. After cancellation
// it keeps draining, reporting the remaining references as cancelled instead
// of dispatching them.
func (p *Processor) worker(ctx context.Context, work <-chan string, results chan<- Outcome, wg *sync.WaitGroup) {
	defer wg.Done()

	for ref := range work {
		select {
		case <-ctx.Done():
			results <- Outcome{
				Reference:     ref,
				State:         StateCancelled,
				CompletedAt:   time.Now(),
				FailureReason: fmt.Sprintf("batch cancelled: %v", ctx.Err()),
			}
			continue
		default:
		}

		forgeBatchInFlight.Inc()
		result, err := p.executor.Execute(ctx, ref)
		forgeBatchInFlight.Dec()

		if err != nil {
			results <- Outcome{
				Reference:     ref,
				State:         StateFailed,
				CompletedAt:   time.Now(),
				FailureReason: err.Error(),
			}
			continue
		}

		results <- Outcome{
			Reference:   ref,
			State:       StateSucceeded,
			CompletedAt: time.Now(),
			Payload:     result,
		}
	}
}
