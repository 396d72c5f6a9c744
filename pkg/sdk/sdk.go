// Package sdk wires configuration, credentials, transport, retrying
// execution, result caching, and batch orchestration into one client facade.
package sdk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/conwaychriscosmo/feedbackforge/pkg/auth"
	"github.com/conwaychriscosmo/feedbackforge/pkg/cache"
	"github.com/conwaychriscosmo/feedbackforge/pkg/config"
	"github.com/conwaychriscosmo/feedbackforge/pkg/logging"
	"github.com/conwaychriscosmo/feedbackforge/pkg/processor"
	"github.com/conwaychriscosmo/feedbackforge/pkg/ratelimit"
	"github.com/conwaychriscosmo/feedbackforge/pkg/retry"
	"github.com/conwaychriscosmo/feedbackforge/pkg/scheduler"
	"github.com/conwaychriscosmo/feedbackforge/pkg/transport"
)

const (
	redisPingTimeout = 5 * time.Second
	closeTimeout     = 5 * time.Second
)

// SDK is the top-level client. One SDK owns one transport client, one retry
// executor, and one scheduler; batches run through ProcessDocuments.
type SDK struct {
	cfg       config.Config
	logger    zerolog.Logger
	provider  *auth.Provider
	client    *transport.Client
	executor  *retry.Executor
	registrar *scheduler.Registrar
	redis     *redis.Client
}

// New loads configuration from path (or the environment when path is empty
// or missing) and builds the SDK. Configuration problems are fatal here,
// never deferred to the first batch.
func New(configPath string) (*SDK, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(cfg)
}

// NewFromConfig builds the SDK from an already resolved configuration.
func NewFromConfig(cfg *config.Config) (*SDK, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
	})
	logger := logging.NewLogger("sdk")

	client, err := transport.New(transport.Config{
		BaseURL: cfg.APIEndpoint,
		APIKey:  cfg.APIKey,
		Timeout: cfg.RequestTimeout,
		Limiter: buildLimiter(cfg.RateLimitRPS),
	})
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.MaxAttempts
	policy.BaseDelay = cfg.RetryBaseDelay

	execCfg := retry.ExecutorConfig{
		Caller: client,
		Policy: policy,
	}

	s := &SDK{
		cfg:       *cfg,
		logger:    logger,
		provider:  auth.NewProvider(cfg.GCPKeyPath),
		client:    client,
		registrar: scheduler.New(),
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}

		s.redis = rdb
		execCfg.Cache = cache.NewStore(rdb, cfg.CacheTTL)
	}

	executor, err := retry.NewExecutor(execCfg)
	if err != nil {
		return nil, err
	}
	s.executor = executor

	logger.Info().
		Str("endpoint", cfg.APIEndpoint).
		Int("max_workers", cfg.MaxWorkers).
		Int("max_attempts", cfg.MaxAttempts).
		Bool("cache", s.redis != nil).
		Msg("SDK initialized")

	return s, nil
}

// buildLimiter sizes the limiter burst to roughly one second of quota. A
// zero rate yields a nil limiter, which the transport treats as unlimited.
func buildLimiter(rps float64) *ratelimit.Limiter {
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return ratelimit.New(rps, burst)
}

// Config returns a copy of the resolved configuration.
func (s *SDK) Config() config.Config {
	return s.cfg
}

// Authenticate resolves the configured service account credential. It is
// not required for processing; callers use it to fail fast when a
// deployment expects a key file.
func (s *SDK) Authenticate() (*auth.Credential, error) {
	return s.provider.Resolve()
}

// callSettings carries per-batch overrides of the configured defaults.
type callSettings struct {
	concurrency int
	onProgress  processor.ProgressFunc
}

// Option adjusts a single ProcessDocuments call.
type Option func(*callSettings)

// WithConcurrency overrides the configured worker count for one batch.
func WithConcurrency(n int) Option {
	return func(s *callSettings) {
		s.concurrency = n
	}
}

// WithProgress registers a per-item progress callback for one batch.
func WithProgress(fn processor.ProgressFunc) Option {
	return func(s *callSettings) {
		s.onProgress = fn
	}
}

// ProcessDocuments submits every reference through the bounded worker pool
// and returns exactly one outcome per reference. Failed documents appear as
// Failed outcomes; the error return is reserved for an empty batch and for
// infrastructure problems that prevent the batch from running at all.
func (s *SDK) ProcessDocuments(ctx context.Context, refs []string, opts ...Option) ([]processor.Outcome, error) {
	settings := callSettings{concurrency: s.cfg.MaxWorkers}
	for _, opt := range opts {
		opt(&settings)
	}

	proc, err := processor.New(processor.Config{
		Executor:    s.executor,
		Concurrency: settings.concurrency,
		OnProgress:  settings.onProgress,
	})
	if err != nil {
		return nil, err
	}

	return proc.ProcessBatch(ctx, refs)
}

// Schedule registers an in-process job under label. An empty spec falls
// back to scheduler.DefaultSpec.
func (s *SDK) Schedule(label, spec string, job scheduler.Job) error {
	return s.registrar.Register(label, spec, job)
}

// ScheduleProcessing registers a shell command to run on the given cadence,
// for deployments that re-invoke a CLI instead of keeping a process alive.
func (s *SDK) ScheduleProcessing(label, spec, command string) error {
	return s.registrar.Register(label, spec, scheduler.CommandJob(command))
}

// NextRun reports the next fire time of a registered schedule.
func (s *SDK) NextRun(label string) (time.Time, bool) {
	return s.registrar.Next(label)
}

// StartScheduler begins firing registered schedules. Jobs receive ctx.
func (s *SDK) StartScheduler(ctx context.Context) {
	s.registrar.Start(ctx)
}

// StopScheduler stops firing and waits for running jobs, or for ctx.
func (s *SDK) StopScheduler(ctx context.Context) error {
	return s.registrar.Stop(ctx)
}

// Close stops the scheduler and releases the cache connection.
func (s *SDK) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	var errs []error
	if err := s.registrar.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}
