package summary

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when no record matches the requested id.
var ErrNotFound = errors.New("summary not found")

// ErrInvalidTransition is returned by status writes when the record exists but
// its current status does not permit the requested one.
var ErrInvalidTransition = errors.New("summary status transition not allowed")

// ErrQueueClosed is returned by Dequeue once the queue has been closed and drained.
var ErrQueueClosed = errors.New("queue closed")

// FetchError reports that a page could not be retrieved or yielded too little text.
type FetchError struct {
	URL string
	Msg string
	Err error
}

// NewFetchError wraps err as a FetchError for url.
func NewFetchError(url, msg string, err error) *FetchError {
	return &FetchError{URL: url, Msg: msg, Err: err}
}

func (e *FetchError) Error() string {
	if e.Err != nil && e.Msg == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// ProviderError reports that the summarization backend failed or returned nothing usable.
type ProviderError struct {
	Provider string
	Msg      string
	Err      error
}

// NewProviderError wraps err as a ProviderError for the named provider.
func NewProviderError(provider, msg string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Msg: msg, Err: err}
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ConfigError reports invalid or missing configuration detected at construction time.
type ConfigError struct {
	Key string
	Msg string
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Key, e.Msg)
}

// IsExpected reports whether err is one of the failure kinds a task records as a failed summary.
func IsExpected(err error) bool {
	var fetchErr *FetchError
	var providerErr *ProviderError
	return errors.As(err, &fetchErr) || errors.As(err, &providerErr)
}
