// Package upstream classifies failures of the external services the
// chatbot depends on (Ollama and the vector database) into a small closed
// taxonomy, so callers can react to the failure kind without inspecting
// error message text.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Service identifies which external dependency produced a failure.
type Service string

const (
	ServiceOllama   Service = "ollama"
	ServiceVectorDB Service = "vectordb"
)

// Kind is the failure category.
type Kind string

const (
	// KindUnavailable means the service could not be reached at all
	// (connection refused, DNS failure, broken transport).
	KindUnavailable Kind = "unavailable"
	// KindFailed means the service was reached but returned a
	// non-success response.
	KindFailed Kind = "failed"
	// KindTimeout means the call exceeded its deadline.
	KindTimeout Kind = "timeout"
)

// Error is a classified upstream failure. It wraps the underlying cause.
type Error struct {
	Service Service
	Kind    Kind
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Service, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Unavailable wraps a transport-level failure.
func Unavailable(svc Service, err error) *Error {
	return &Error{Service: svc, Kind: KindUnavailable, Err: err}
}

// Failed wraps a non-success response from a reachable service.
func Failed(svc Service, err error) *Error {
	return &Error{Service: svc, Kind: KindFailed, Err: err}
}

// Classify wraps err as an upstream failure for svc, picking the kind
// from the error's shape: deadline errors become KindTimeout, network
// errors become KindUnavailable, everything else KindFailed. Already
// classified errors are returned unchanged.
func Classify(svc Service, err error) *Error {
	var ue *Error
	if errors.As(err, &ue) {
		return ue
	}

	kind := KindFailed
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	case errors.As(err, new(*net.OpError)):
		kind = KindUnavailable
	}
	return &Error{Service: svc, Kind: kind, Err: err}
}

// ErrValidation marks malformed local input (mismatched chunk/embedding
// counts, empty document content). It is not an upstream failure.
var ErrValidation = errors.New("validation error")
