package inference

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNoAPIKey            = errors.New("inference: API key required")
	ErrNoModel             = errors.New("inference: model required")
	ErrProviderUnavailable = errors.New("inference: provider unavailable")
	ErrVisionNotSupported  = errors.New("inference: vision not supported by provider")
	ErrEmptyResponse       = errors.New("inference: empty response")

	// Status classes an *APIError unwraps to.
	ErrRateLimited  = errors.New("inference: rate limited")
	ErrUnauthorized = errors.New("inference: unauthorized")
	ErrServer       = errors.New("inference: server error")
)

// APIError is a non-2xx response from a provider API.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Provider   string
}

func (e *APIError) Error() string {
	status := fmt.Sprint(e.StatusCode)
	if e.Code != "" {
		status += " (" + e.Code + ")"
	}
	return fmt.Sprintf("inference [%s]: API error %s: %s", e.Provider, status, e.Message)
}

// Unwrap maps the status code to ErrRateLimited, ErrUnauthorized or ErrServer.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case e.StatusCode >= 500 && e.StatusCode < 600:
		return ErrServer
	}
	return nil
}

func (e *APIError) IsUnauthorized() bool { return errors.Is(e, ErrUnauthorized) }

// IsRetryable reports whether a later attempt may succeed.
func (e *APIError) IsRetryable() bool {
	return errors.Is(e, ErrRateLimited) || errors.Is(e, ErrServer)
}

// ProviderError tags an error with the provider that produced it.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("inference [%s]: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// WrapError tags err with provider; nil stays nil.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}

// ChainError collects the failures of every member a Chain tried.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	if len(e.Errors) == 0 {
		return "inference chain: no providers tried"
	}
	last := e.Errors[len(e.Errors)-1]
	if len(e.Errors) == 1 {
		return fmt.Sprintf("inference chain: %v", last)
	}
	return fmt.Sprintf("inference chain: %d providers failed, last: %v", len(e.Errors), last)
}

func (e *ChainError) Unwrap() []error { return e.Errors }
