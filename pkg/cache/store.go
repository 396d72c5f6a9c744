package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/conwaychriscosmo/feedbackforge/pkg/logging"
	"github.com/conwaychriscosmo/feedbackforge/pkg/transport"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// DefaultTTL is used when no TTL is configured.
const DefaultTTL = 15 * time.Minute

// Store caches processing results in Redis.
type Store struct {
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewStore creates a result store. Entries live for ttl; zero or negative
// falls back to DefaultTTL.
func NewStore(redisClient *redis.Client, ttl time.Duration) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		redis:  redisClient,
		ttl:    ttl,
		logger: logging.NewLogger("cache"),
	}
}

// Get retrieves a cache entry by key.
// Returns ErrCacheMiss if the key doesn't exist or the entry is expired.
func (s *Store) Get(ctx context.Context, key Key) (*Entry, error) {
	data, err := s.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if err == redis.Nil {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	// Redis TTL normally evicts first; this covers clock drift and entries
	// persisted without one.
	if entry.IsExpired() {
		_ = s.Delete(ctx, key)
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.Inc()
	return &entry, nil
}

// Set stores a cache entry. The Redis TTL matches the entry's remaining
// lifetime; entries without an expiry get the store's TTL.
func (s *Store) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	if entry.CachedAt.IsZero() {
		entry.CachedAt = time.Now()
	}
	if entry.Expires.IsZero() {
		entry.Expires = entry.CachedAt.Add(s.ttl)
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		// Already expired, don't cache.
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := s.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Delete removes a cache entry.
func (s *Store) Delete(ctx context.Context, key Key) error {
	if err := s.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Lookup returns the cached result for a document reference, or (nil, nil)
// on a miss. Corrupted entries are deleted and reported as misses.
func (s *Store) Lookup(ctx context.Context, ref string) (*transport.ProcessResult, error) {
	key := Key{Reference: ref}

	entry, err := s.Get(ctx, key)
	switch {
	case err == nil:
		s.logger.Debug().
			Str("reference", ref).
			Dur("ttl", entry.TTL()).
			Msg("Cache hit")
		return entry.Result, nil
	case errors.Is(err, ErrCacheMiss):
		return nil, nil
	case errors.Is(err, ErrInvalidEntry):
		s.logger.Warn().
			Str("reference", ref).
			Msg("Dropping corrupted cache entry")
		_ = s.Delete(ctx, key)
		return nil, nil
	default:
		return nil, err
	}
}

// Record caches a successful result for a document reference with the
// store's TTL.
func (s *Store) Record(ctx context.Context, ref string, result *transport.ProcessResult) error {
	if result == nil {
		return fmt.Errorf("result cannot be nil")
	}

	now := time.Now()
	entry := &Entry{
		Result:   result,
		CachedAt: now,
		Expires:  now.Add(s.ttl),
	}

	if err := s.Set(ctx, Key{Reference: ref}, entry); err != nil {
		return err
	}

	s.logger.Debug().
		Str("reference", ref).
		Dur("ttl", s.ttl).
		Msg("Cached result")

	return nil
}
