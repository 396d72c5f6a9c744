package cache

import "strings"

// Key identifies a cached processing result.
type Key struct {
	// Reference is the document reference (URL) that was submitted.
	Reference string
}

// String generates a deterministic Redis key.
// Format: forge:doc:<reference>
//
// Example:
//
//	forge:doc:https://docs.example.com/report.pdf
func (k Key) String() string {
	return "forge:doc:" + strings.TrimSpace(k.Reference)
}
