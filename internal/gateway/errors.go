package gateway

import (
	"errors"
	"fmt"
)

// BackendError is returned when the remote store answers with a non-2xx
// status.
type BackendError struct {
	Op      string
	Path    string
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Op, e.Path, e.Status, e.Message)
}

// TransportError is returned when the remote store cannot be reached or the
// response cannot be read.
type TransportError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsBackendError reports whether err wraps a BackendError.
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}

// IsTransportError reports whether err wraps a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// StatusCode returns the backend status carried by err, or 0.
func StatusCode(err error) int {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Status
	}
	return 0
}
