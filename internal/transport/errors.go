// Package transport defines the error types shared by all vendor transports.
// The retry layer classifies these to pick a backoff profile.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// StatusError is an HTTP-level rejection: the request reached the server and
// came back with a non-2xx status.
type StatusError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http status %d", e.StatusCode)
	}
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Message)
}

// ConnError is a connection-category failure: the request never reached the
// server (DNS, TCP, timeout).
type ConnError struct {
	Cause error
}

// Error implements the error interface.
func (e *ConnError) Error() string {
	return fmt.Sprintf("connection failed: %v", e.Cause)
}

// Unwrap exposes the underlying cause.
func (e *ConnError) Unwrap() error { return e.Cause }

// IsConnectionError reports whether err belongs to the connection failure
// category regardless of which layer produced it.
func IsConnectionError(err error) bool {
	var ce *ConnError
	if errors.As(err, &ce) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
