// Package httputil provides shared HTTP client construction utilities.
// It centralizes timeout defaults and client creation so that every
// module uses consistent configuration.
package httputil

import (
	"net/http"
	"time"
)

// Standard timeout defaults used across the project.
const (
	// DefaultLLMTimeout is the HTTP timeout for outbound LLM provider
	// calls. Provider requests can involve large payloads and long
	// inference times, so they use a longer timeout.
	DefaultLLMTimeout = 60 * time.Second

	// DefaultAPITimeout is the HTTP timeout for ordinary short-lived API
	// requests.
	DefaultAPITimeout = 30 * time.Second
)

// NewHTTPClient returns an *http.Client configured with the given timeout.
// Pass one of the Default*Timeout constants, or a custom duration.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
