package llm

import (
	"errors"
	"fmt"
)

// Common errors returned by the client and providers.
var (
	// ErrEmptyAPIKey indicates a required API key was not provided.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")

	// ErrEmptyResponse indicates the provider returned no content.
	ErrEmptyResponse = errors.New("empty response from API")

	// ErrNoResponseChoice indicates the provider response contained no
	// choices.
	ErrNoResponseChoice = errors.New("no response choices returned")
)

// ErrorKind classifies provider failures for retry decisions: rate-limit
// and server errors are worth retrying, authentication and bad-request
// errors are not.
type ErrorKind int

const (
	// KindUnknown is an unclassified failure.
	KindUnknown ErrorKind = iota
	// KindAuth is an authentication or authorization failure.
	KindAuth
	// KindRateLimit means the provider's rate limit was exceeded.
	KindRateLimit
	// KindBadRequest is a malformed request or invalid parameters.
	KindBadRequest
	// KindServer is a failure on the provider's side.
	KindServer
	// KindTimeout means the request hit a deadline.
	KindTimeout
)

// ProviderError normalizes provider-specific failures into one shape the
// retry middleware and callers can inspect.
type ProviderError struct {
	// Provider names the provider that failed.
	Provider string

	// Kind classifies the failure.
	Kind ErrorKind

	// StatusCode is the HTTP status, when applicable.
	StatusCode int

	// Err is the original provider error.
	Err error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (HTTP %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s error: %v", e.Provider, e.Err)
}

// Unwrap returns the original error.
func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable reports whether retrying the request could succeed.
func (e *ProviderError) Retryable() bool {
	return e.Kind == KindRateLimit || e.Kind == KindServer || e.Kind == KindTimeout
}

// classifyStatus maps an HTTP status to an ErrorKind.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return KindAuth
	case status == 429:
		return KindRateLimit
	case status >= 500:
		return KindServer
	case status >= 400:
		return KindBadRequest
	default:
		return KindUnknown
	}
}

func newProviderError(provider string, status int, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: classifyStatus(status), StatusCode: status, Err: err}
}
