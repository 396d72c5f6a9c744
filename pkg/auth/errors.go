package auth

import (
	"errors"
	"fmt"
)

// ErrorKind classifies credential resolution failures.
type ErrorKind string

const (
	// KindNotFound means the key file path is unset or the file is absent.
	KindNotFound ErrorKind = "not_found"

	// KindMalformed means the key file exists but cannot be parsed.
	KindMalformed ErrorKind = "malformed"
)

// CredentialError reports a failed credential resolution. It is fatal to the
// resolve step but carries enough context to log and move on.
type CredentialError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *CredentialError) Error() string {
	switch e.Kind {
	case KindNotFound:
		if e.Path == "" {
			return "credential key file not configured"
		}
		return fmt.Sprintf("credential key file not found: %s", e.Path)
	case KindMalformed:
		return fmt.Sprintf("credential key file malformed: %s: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("credential error: %s: %v", e.Path, e.Err)
	}
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a CredentialError with kind not_found.
func IsNotFound(err error) bool {
	var credErr *CredentialError
	return errors.As(err, &credErr) && credErr.Kind == KindNotFound
}

// IsMalformed reports whether err is a CredentialError with kind malformed.
func IsMalformed(err error) bool {
	var credErr *CredentialError
	return errors.As(err, &credErr) && credErr.Kind == KindMalformed
}
