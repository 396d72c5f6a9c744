package cache

import (
	"time"

	"github.com/conwaychriscosmo/feedbackforge/pkg/transport"
)

// Entry is a cached processing result with its lifetime.
type Entry struct {
	// Result is the service's answer for the document.
	Result *transport.ProcessResult `json:"result"`

	// CachedAt is when the entry was stored.
	CachedAt time.Time `json:"cached_at"`

	// Expires is when the entry stops being served.
	Expires time.Time `json:"expires"`
}

// IsExpired reports whether the entry has passed its expiry time.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the remaining lifetime, or zero when already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
