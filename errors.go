package main

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel error kinds a worker can terminate with. statusForError maps each
// kind to at most one HTTP status line; ErrUpstreamTimeout and ErrClientGone
// map to none.
var (
	ErrMalformedRequest    = errors.New("malformed request")
	ErrUnsupportedMethod   = errors.New("unsupported method")
	ErrUpstreamUnreachable = errors.New("upstream unreachable")
	ErrUpstreamTimeout     = errors.New("upstream timeout")
	ErrResourceExhausted   = errors.New("resource exhausted")
	ErrNotFound            = errors.New("not found")
	ErrClientGone          = errors.New("client gone")
)

// statusForError maps a sentinel error kind to the HTTP status line the
// synthesizer should emit. ErrUpstreamTimeout and ErrClientGone are not
// mapped: per spec, a timeout mid-stream closes the connection with no
// injected status, and a client-gone condition terminates silently.
func statusForError(err error) (int, bool) {
	switch {
	case errors.Is(err, ErrMalformedRequest):
		return http.StatusBadRequest, true
	case errors.Is(err, ErrUnsupportedMethod):
		return http.StatusMethodNotAllowed, true
	case errors.Is(err, ErrUpstreamUnreachable):
		return http.StatusBadGateway, true
	case errors.Is(err, ErrResourceExhausted):
		return http.StatusInternalServerError, true
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, true
	default:
		return 0, false
	}
}

// wrapErr attaches additional context to a sentinel error kind while keeping
// it matchable with errors.Is.
func wrapErr(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}
