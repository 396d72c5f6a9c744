package transport

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a failed submission. Every error returned by the
// client carries exactly one class.
type ErrorClass string

const (
	// ErrorClassNetwork represents connection, DNS, and timeout errors.
	// The request may never have reached the service.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassClient represents 4xx responses. The request was understood
	// and rejected; sending it again will not help.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassDecode represents success responses whose body could not be
	// decoded.
	ErrorClassDecode ErrorClass = "decode"
)

// TransportError represents a failed document submission with its
// classification.
type TransportError struct {
	Class      ErrorClass
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		if e.Err != nil {
			return fmt.Sprintf("transport %s error (status %d): %s: %v",
				e.Class, e.StatusCode, e.Message, e.Err)
		}
		return fmt.Sprintf("transport %s error (status %d): %s",
			e.Class, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("transport %s error: %s: %v", e.Class, e.Message, e.Err)
	}
	return fmt.Sprintf("transport %s error: %s", e.Class, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Retryable reports whether sending the same request again can succeed.
// Network and server errors are transient; client and decode errors are not.
func (e *TransportError) Retryable() bool {
	switch e.Class {
	case ErrorClassNetwork, ErrorClassServer:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether err is a retryable *TransportError. Errors of
// any other type are never retried.
func IsRetryable(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr) && tErr.Retryable()
}

// classifyStatus maps a non-2xx HTTP status code to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status >= 500:
		return ErrorClassServer
	case status >= 400:
		return ErrorClassClient
	default:
		// 1xx/3xx are unexpected here; treat them as non-retryable.
		return ErrorClassClient
	}
}
