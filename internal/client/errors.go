package client

import (
	"errors"
	"fmt"
)

var (
	// ErrConflictingBody is returned when a request sets more than one of Body, JSON and Form.
	ErrConflictingBody = errors.New("request body: raw bytes, JSON value and form are mutually exclusive")

	// ErrNoData is returned by DoJSON when a successful JSON response has an
	// empty or unparseable body.
	ErrNoData = errors.New("response carried no usable JSON")
)

// StatusError is returned by DoJSON for a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// ContentTypeError is returned by DoJSON when a successful response is not JSON.
type ContentTypeError struct {
	ContentType string
}

func (e *ContentTypeError) Error() string {
	return fmt.Sprintf("unexpected content type %q, want application/json", e.ContentType)
}
