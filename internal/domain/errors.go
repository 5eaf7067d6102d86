package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransport signals a network, timeout or non-2xx failure talking to the index.
	ErrTransport = errors.New("transport error")
	// ErrBackendStatus signals a parsed response whose status is not "success".
	ErrBackendStatus = errors.New("backend status error")
	// ErrNormalization signals a backend result missing a required identifier.
	ErrNormalization = errors.New("normalization error")
	// ErrInvalidQuery signals a search query that cannot be issued.
	ErrInvalidQuery = errors.New("invalid query")
)

// TransportError wraps ErrTransport with the endpoint and failure class.
type TransportError struct {
	Endpoint   string
	StatusCode int // 0 when no response was received
	Timeout    bool
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: request error: %d %s", e.Endpoint, e.StatusCode, http.StatusText(e.StatusCode))
	case e.Timeout:
		return e.Endpoint + ": request timeout"
	case e.Err != nil:
		return e.Endpoint + ": network request failed: " + e.Err.Error()
	default:
		return e.Endpoint + ": network request failed"
	}
}

func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransport}
	}
	return []error{ErrTransport, e.Err}
}

// BackendStatusError wraps ErrBackendStatus with the backend-supplied message.
type BackendStatusError struct {
	Endpoint string
	Status   string
	Message  string
}

func (e *BackendStatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "request processing failed"
	}
	return fmt.Sprintf("%s: status %q: %s", e.Endpoint, e.Status, msg)
}

func (e *BackendStatusError) Unwrap() error { return ErrBackendStatus }

// NormalizationError wraps ErrNormalization with the offending field.
type NormalizationError struct {
	Field  string
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("%s: field %q %s", ErrNormalization.Error(), e.Field, e.Reason)
}

func (e *NormalizationError) Unwrap() error { return ErrNormalization }

// NewNormalizationError creates a normalization error for a field.
func NewNormalizationError(field, reason string) error {
	return &NormalizationError{Field: field, Reason: reason}
}

// Message returns the human-readable text surfaced to callers in failure envelopes.
// BackendStatusError keeps the backend's own text when it sent one.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var bse *BackendStatusError
	if errors.As(err, &bse) && bse.Message != "" {
		return bse.Message
	}
	return err.Error()
}
