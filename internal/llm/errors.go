package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies a BackendError.
type ErrorKind string

const (
	ErrUnavailable ErrorKind = "unavailable" // connection refused, DNS, missing credentials
	ErrTimeout     ErrorKind = "timeout"
	ErrHTTPStatus  ErrorKind = "http_status"
	ErrMalformed   ErrorKind = "malformed" // undecodable body or empty completion
	ErrUnsupported ErrorKind = "unsupported"
	ErrCanceled    ErrorKind = "canceled"
)

// BackendError is returned by adapters for every failed generate or list call.
type BackendError struct {
	Kind       ErrorKind
	Backend    string
	Model      string
	StatusCode int
	Err        error
}

func (e *BackendError) Error() string {
	target := e.Backend
	if e.Model != "" {
		target = e.Backend + "/" + e.Model
	}
	if e.Kind == ErrHTTPStatus {
		return fmt.Sprintf("%s error (status %d): %v", target, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", target, e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another backend could reasonably succeed where
// this one failed. Caller cancellation is never retryable.
func (e *BackendError) Retryable() bool {
	return e.Kind != ErrCanceled
}

// AsBackendError extracts a *BackendError from err.
func AsBackendError(err error) (*BackendError, bool) {
	var be *BackendError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

func newBackendError(kind ErrorKind, backend, model string, err error) *BackendError {
	return &BackendError{Kind: kind, Backend: backend, Model: model, Err: err}
}

// classifyTransportError maps an error from http.Client.Do to an ErrorKind.
// The request context decides between timeout and cancellation.
func classifyTransportError(ctx context.Context, backend, model string, err error) *BackendError {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return newBackendError(ErrTimeout, backend, model, err)
	case errors.Is(ctx.Err(), context.Canceled):
		return newBackendError(ErrCanceled, backend, model, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newBackendError(ErrTimeout, backend, model, err)
	}
	return newBackendError(ErrUnavailable, backend, model, err)
}
