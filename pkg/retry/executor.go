package retry

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/conwaychriscosmo/feedbackforge/pkg/transport"
)

// Caller submits one document and classifies failures. *transport.Client
// implements it.
type Caller interface {
	ProcessDocument(ctx context.Context, ref string) (*transport.ProcessResult, error)
}

// ResultCache short-circuits submissions whose result is already known.
// Lookup returns (nil, nil) on a miss; infrastructure errors are logged and
// treated as misses.
type ResultCache interface {
	Lookup(ctx context.Context, ref string) (*transport.ProcessResult, error)
	Record(ctx context.Context, ref string, result *transport.ProcessResult) error
}

// ExecutorConfig holds the executor configuration.
type ExecutorConfig struct {
	// Caller performs the actual submissions. Required.
	Caller Caller

	// Policy controls backoff; zero fields fall back to DefaultPolicy.
	Policy Policy

	// Cache is consulted before submitting and updated on success. Optional.
	Cache ResultCache
}

// Executor wraps a Caller with the retry policy and an optional result
// cache. One Execute call yields exactly one result or one error, however
// many attempts it takes.
type Executor struct {
	caller Caller
	cache  ResultCache
	policy Policy
	logger zerolog.Logger
}

// NewExecutor creates an executor.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if cfg.Caller == nil {
		return nil, fmt.Errorf("caller is required")
	}

	return &Executor{
		caller: cfg.Caller,
		cache:  cfg.Cache,
		policy: cfg.Policy.withDefaults(),
		logger: log.With().Str("component", "executor").Logger(),
	}, nil
}

// Execute resolves one document reference to a result. Transient failures
// are retried per the policy; permanent failures return immediately. Cached
// results skip the service entirely.
func (e *Executor) Execute(ctx context.Context, ref string) (*transport.ProcessResult, error) {
	if e.cache != nil {
		result, err := e.cache.Lookup(ctx, ref)
		switch {
		case err != nil:
			e.logger.Warn().
				Err(err).
				Str("reference", ref).
				Msg("Cache lookup failed")
		case result != nil:
			e.logger.Debug().
				Str("reference", ref).
				Msg("Cache hit, skipping submission")
			return result, nil
		}
	}

	var result *transport.ProcessResult
	err := Do(ctx, e.policy, func() error {
		res, err := e.caller.ProcessDocument(ctx, ref)
		if err != nil {
			return err
		}
		result = res
		return nil
	}, transport.IsRetryable)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.Record(ctx, ref, result); err != nil {
			e.logger.Warn().
				Err(err).
				Str("reference", ref).
				Msg("Failed to cache result")
		}
	}

	return result, nil
}
