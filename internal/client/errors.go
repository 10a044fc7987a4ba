package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind is the classification of a failed call used by the state slices.
type Kind string

const (
	KindTransport    Kind = "transport"
	KindValidation   Kind = "validation"
	KindUnauthorized Kind = "unauthorized"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindServer       Kind = "server"
	KindUnknown      Kind = "unknown"
)

// APIError is a server error response decoded from the
// {status, message, errors?} envelope.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
	Errors     map[string]string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error (%d)", e.StatusCode)
	}
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

// TransportError wraps a failure that happened before a response was read.
type TransportError struct {
	Kind string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error (%s): %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// classifyTransportError categorizes an HTTP client error.
func classifyTransportError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var urlTimeout interface{ Timeout() bool }
	if errors.As(err, &urlTimeout) && urlTimeout.Timeout() {
		return "timeout"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns"
	}
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		if netErr.Op == "dial" {
			return "connection_refused"
		}
		return "network"
	}
	return "other"
}

// Classify maps any error returned by the client onto the failure taxonomy
// the slices understand.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	var te *TransportError
	if errors.As(err, &te) {
		return KindTransport
	}
	var ae *APIError
	if !errors.As(err, &ae) {
		return KindUnknown
	}
	switch {
	case ae.StatusCode == http.StatusUnauthorized, ae.StatusCode == http.StatusForbidden:
		return KindUnauthorized
	case ae.StatusCode == http.StatusNotFound:
		return KindNotFound
	case ae.StatusCode == http.StatusConflict:
		return KindConflict
	case ae.StatusCode == http.StatusBadRequest, ae.StatusCode == http.StatusUnprocessableEntity:
		if len(ae.Errors) > 0 {
			return KindValidation
		}
		return KindServer
	case ae.StatusCode >= 500:
		return KindServer
	}
	return KindUnknown
}

// IsSessionInvalid reports whether err signals that the stored token is no
// longer accepted by the backend.
func IsSessionInvalid(err error) bool {
	if Classify(err) == KindUnauthorized {
		return true
	}
	var ae *APIError
	return errors.As(err, &ae) && strings.EqualFold(ae.Status, "error") && ae.StatusCode < 500
}

// FieldErrors returns the per-field validation messages carried by err, if any.
func FieldErrors(err error) map[string]string {
	var ae *APIError
	if !errors.As(err, &ae) || len(ae.Errors) == 0 {
		return nil
	}
	out := make(map[string]string, len(ae.Errors))
	for k, v := range ae.Errors {
		out[k] = v
	}
	return out
}

// Message returns the user-facing message for err, or fallback when err has
// none. Transport failures always yield fallback.
func Message(err error, fallback string) string {
	var ae *APIError
	if errors.As(err, &ae) {
		if ae.Message != "" {
			return ae.Message
		}
		return fallback
	}
	var te *TransportError
	if err == nil || errors.As(err, &te) {
		return fallback
	}
	return err.Error()
}
