// Package testutil provides testing utilities for the feedbackforge client.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockBehavior defines how the mock service answers one document reference.
type MockBehavior struct {
	// FailCount makes the first FailCount submissions fail with FailStatus.
	FailCount int

	// AlwaysFail makes every submission fail with FailStatus.
	AlwaysFail bool

	// FailStatus is the HTTP status for injected failures (default: 500).
	FailStatus int

	// Malformed responds 200 with a truncated JSON body.
	Malformed bool

	// Status overrides the reported processing status (default: "completed").
	Status string

	// Metadata is attached to successful responses.
	Metadata map[string]any
}

// MockAPI is a configurable document-processing service for testing. It
// accepts POST /process submissions, tracks per-reference attempts, and
// records the peak number of submissions in flight.
type MockAPI struct {
	server *httptest.Server

	mu        sync.Mutex
	behaviors map[string]MockBehavior
	attempts  map[string]int
	requests  int
	inFlight  int
	peak      int
	lastAuth  string
	delay     time.Duration
}

// NewMockAPI creates a mock processing service. Unconfigured references
// succeed with status "completed".
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		behaviors: make(map[string]MockBehavior),
		attempts:  make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server base URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters, keeping configured behaviors.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = make(map[string]int)
	m.requests = 0
	m.inFlight = 0
	m.peak = 0
	m.lastAuth = ""
}

// SetBehavior configures the response for a document reference.
func (m *MockAPI) SetBehavior(ref string, behavior MockBehavior) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.behaviors[ref] = behavior
}

// FailFirst makes the first n submissions of ref fail with status.
func (m *MockAPI) FailFirst(ref string, n, status int) {
	m.SetBehavior(ref, MockBehavior{FailCount: n, FailStatus: status})
}

// AlwaysFail makes every submission of ref fail with status.
func (m *MockAPI) AlwaysFail(ref string, status int) {
	m.SetBehavior(ref, MockBehavior{AlwaysFail: true, FailStatus: status})
}

// RespondMalformed makes ref succeed with an undecodable body.
func (m *MockAPI) RespondMalformed(ref string) {
	m.SetBehavior(ref, MockBehavior{Malformed: true})
}

// SetDelay makes every submission take at least d.
func (m *MockAPI) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// RequestCount returns the total number of submissions received.
func (m *MockAPI) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

// Attempts returns the number of submissions received for ref.
func (m *MockAPI) Attempts(ref string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts[ref]
}

// PeakInFlight returns the highest number of concurrent submissions seen.
func (m *MockAPI) PeakInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak
}

// LastAuthorization returns the Authorization header of the latest request.
func (m *MockAPI) LastAuthorization() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastAuth
}

func (m *MockAPI) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/process" {
		http.Error(w, `{"error": "not found"}`, http.StatusNotFound)
		return
	}

	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "bad request"}`, http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.requests++
	m.attempts[req.URL]++
	attempt := m.attempts[req.URL]
	m.lastAuth = r.Header.Get("Authorization")
	m.inFlight++
	if m.inFlight > m.peak {
		m.peak = m.inFlight
	}
	behavior, configured := m.behaviors[req.URL]
	delay := m.delay
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if delay > 0 {
		time.Sleep(delay)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	if configured {
		if behavior.AlwaysFail || attempt <= behavior.FailCount {
			status := behavior.FailStatus
			if status == 0 {
				status = http.StatusInternalServerError
			}
			w.WriteHeader(status)
			w.Write([]byte(`{"error": "injected failure"}`))
			return
		}
		if behavior.Malformed {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status": `))
			return
		}
	}

	status := "completed"
	metadata := map[string]any{"source": req.URL}
	if configured {
		if behavior.Status != "" {
			status = behavior.Status
		}
		if behavior.Metadata != nil {
			metadata = behavior.Metadata
		}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"status":   status,
		"metadata": metadata,
	})
}
