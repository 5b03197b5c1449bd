package airtable

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for the fixed status classes.
var (
	ErrInvalidConfig = errors.New("invalid airtable configuration")
	ErrUnauthorized  = errors.New("unauthorized: check the airtable token")
	ErrNotFound      = errors.New("record not found")
	ErrRateLimited   = errors.New("rate limited: please wait")
)

// NetworkError wraps a transport failure: DNS, timeout, reset, cancelled wait.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DecodeError reports a 2xx response whose body did not have the expected shape.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// APIError is any other non-2xx response.
// Message comes from the {error:{message}} envelope, or is "HTTP <code>" without one.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("api error (%s): %s", e.Type, e.Message)
	}
	return "api error: " + e.Message
}

// IsSchemaRejection reports whether err means the base does not accept one of the
// written fields: an HTTP 422, or a message naming an unknown field.
func IsSchemaRejection(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == http.StatusUnprocessableEntity {
		return true
	}
	return strings.Contains(strings.ToLower(apiErr.Message), "unknown field")
}
