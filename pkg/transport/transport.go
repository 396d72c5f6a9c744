// Package transport submits documents to the processing service over HTTP.
//
// The client performs exactly one attempt per call and classifies every
// failure (network, client, server, decode). Retry decisions belong to the
// caller; see pkg/retry.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/conwaychriscosmo/feedbackforge/pkg/ratelimit"
)

// Prometheus metrics for submission operations.
var (
	forgeRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forge_requests_total",
		Help: "Total submissions by HTTP status",
	}, []string{"status"})

	forgeRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "forge_request_duration_seconds",
		Help:    "Submission round-trip duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})

	forgeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forge_errors_total",
		Help: "Total submission failures by class",
	}, []string{"class"})
)

const defaultUserAgent = "feedbackforge/1.0"

// ProcessResult is the service's answer for one document.
type ProcessResult struct {
	// Status reports the processing state; the service defaults it to
	// "completed" when omitted.
	Status string `json:"status"`

	// Metadata carries service-defined details about the processed document.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// processRequest is the wire format of a submission.
type processRequest struct {
	URL string `json:"url"`
}

// Config holds the transport client configuration.
type Config struct {
	// BaseURL of the processing service, without the /process suffix. Required.
	BaseURL string

	// APIKey sent as a bearer token on every request. Required.
	APIKey string

	// UserAgent header (default: feedbackforge/1.0).
	UserAgent string

	// Timeout bounds one submission round trip (default: 30s).
	Timeout time.Duration

	// Limiter paces submissions. Nil disables client-side throttling.
	Limiter *ratelimit.Limiter

	// HTTPClient overrides the underlying HTTP client (for testing).
	HTTPClient *http.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, apiKey string) Config {
	return Config{
		BaseURL:   baseURL,
		APIKey:    apiKey,
		UserAgent: defaultUserAgent,
		Timeout:   30 * time.Second,
	}
}

// Client submits documents to the processing service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	userAgent  string
	limiter    *ratelimit.Limiter
	logger     zerolog.Logger
}

// New creates a new transport client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		userAgent:  cfg.UserAgent,
		limiter:    cfg.Limiter,
		logger:     log.With().Str("component", "transport").Logger(),
	}, nil
}

// ProcessDocument submits one document reference and returns the service's
// result. It performs a single attempt; every failure is a *TransportError
// carrying its classification.
func (c *Client) ProcessDocument(ctx context.Context, ref string) (*ProcessResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{
			Class:   ErrorClassNetwork,
			Message: "rate limit wait aborted",
			Err:     err,
		}
	}

	body, err := json.Marshal(processRequest{URL: ref})
	if err != nil {
		return nil, &TransportError{Class: ErrorClassDecode, Message: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/process", bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Class: ErrorClassClient, Message: "create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", c.userAgent)

	c.logger.Debug().
		Str("reference", ref).
		Msg("Submitting document")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	forgeRequestDuration.Observe(duration.Seconds())

	if err != nil {
		forgeErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		forgeRequestsTotal.WithLabelValues("network_error").Inc()
		c.logger.Warn().
			Err(err).
			Str("reference", ref).
			Msg("Submission failed")
		return nil, &TransportError{Class: ErrorClassNetwork, Message: "submit document", Err: err}
	}
	defer resp.Body.Close()

	forgeRequestsTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		class := classifyStatus(resp.StatusCode)
		forgeErrorsTotal.WithLabelValues(string(class)).Inc()

		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

		c.logger.Warn().
			Str("reference", ref).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Submission rejected")

		return nil, &TransportError{
			Class:      class,
			StatusCode: resp.StatusCode,
			Message:    resp.Status,
		}
	}

	var result ProcessResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		forgeErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		c.logger.Warn().
			Err(err).
			Str("reference", ref).
			Int("status", resp.StatusCode).
			Msg("Response body not decodable")
		return nil, &TransportError{
			Class:      ErrorClassDecode,
			StatusCode: resp.StatusCode,
			Message:    "decode response",
			Err:        err,
		}
	}
	if result.Status == "" {
		result.Status = "completed"
	}

	c.logger.Debug().
		Str("reference", ref).
		Str("status", result.Status).
		Dur("duration", duration).
		Msg("Document processed")

	return &result, nil
}
