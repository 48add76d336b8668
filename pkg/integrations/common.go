// Package integrations holds the shared HTTP client used by registry
// API clients: request plumbing, response caching, retry, and the
// sentinel errors callers match on.
package integrations

import (
	"errors"
	"net/http"
	"time"

	"github.com/cratepack/cratepack/pkg/httputil"
)

const httpTimeout = 10 * time.Second

var (
	// ErrNotFound is returned when the registry has no such resource.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures: timeouts, connection
	// errors, and 5xx responses.
	ErrNetwork = errors.New("network error")
)

// NewHTTPClient creates an HTTP client with the standard registry
// request timeout.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// NewCache creates a file-based response cache in the default cache
// directory with the given TTL.
func NewCache(ttl time.Duration) (*httputil.Cache, error) {
	return httputil.NewCache("", ttl)
}
