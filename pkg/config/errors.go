package config

import "strings"

// ConfigurationError reports a missing or unusable configuration value.
type ConfigurationError struct {
	// Missing lists required keys that were absent, if any.
	Missing []string

	// Err is the underlying parse or IO error, if any.
	Err error
}

func (e *ConfigurationError) Error() string {
	if len(e.Missing) > 0 {
		return "missing required configuration: " + strings.Join(e.Missing, ", ")
	}
	if e.Err != nil {
		return "invalid configuration: " + e.Err.Error()
	}
	return "invalid configuration"
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
