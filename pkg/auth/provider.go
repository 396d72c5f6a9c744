// Package auth resolves service account credentials from a GCP JSON key file.
package auth

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/conwaychriscosmo/feedbackforge/pkg/logging"
)

// Credential is an opaque, validated credential. The key file schema is not
// interpreted beyond being a JSON object.
type Credential struct {
	path   string
	fields map[string]any
}

// Source returns the path of the key file this credential was loaded from.
func (c *Credential) Source() string {
	return c.path
}

// Field returns a raw top-level key file field.
func (c *Credential) Field(name string) (any, bool) {
	v, ok := c.fields[name]
	return v, ok
}

// Provider loads and caches a credential from a key file path. Resolution is
// lazy: the file is read on first use and reused for the provider's lifetime.
type Provider struct {
	path   string
	logger zerolog.Logger

	mu   sync.Mutex
	cred *Credential
}

// NewProvider creates a credential provider for the given key file path.
// An empty path is allowed; Resolve will then fail with a not_found error.
func NewProvider(path string) *Provider {
	return &Provider{
		path:   path,
		logger: logging.NewLogger("auth"),
	}
}

// Resolve reads and parses the key file, returning the cached credential on
// subsequent calls. Failures never panic; they surface as *CredentialError.
func (p *Provider) Resolve() (*Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cred != nil {
		return p.cred, nil
	}

	if p.path == "" {
		return nil, &CredentialError{Kind: KindNotFound}
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &CredentialError{Kind: KindNotFound, Path: p.path, Err: err}
		}
		return nil, &CredentialError{Kind: KindMalformed, Path: p.path, Err: err}
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, &CredentialError{Kind: KindMalformed, Path: p.path, Err: err}
	}

	p.cred = &Credential{path: p.path, fields: fields}
	p.logger.Info().
		Str("path", p.path).
		Int("fields", len(fields)).
		Msg("Credential resolved")

	return p.cred, nil
}
