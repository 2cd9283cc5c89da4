// Package apperr defines the error kinds surfaced by the roast pipeline and
// the HTTP status each kind maps to.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindInvalidInput        Kind = "INVALID_INPUT"
	KindRateLimited         Kind = "RATE_LIMITED"
	KindUpstreamError       Kind = "UPSTREAM_ERROR"
	KindUpstreamUnavailable Kind = "UPSTREAM_UNAVAILABLE"
	KindSynthesis           Kind = "SYNTHESIS_ERROR"
	KindTranscription       Kind = "TRANSCRIPTION_ERROR"
	KindUpload              Kind = "UPLOAD_ERROR"
	KindRender              Kind = "RENDER_ERROR"
	KindBusy                Kind = "SERVER_BUSY"
	KindInternal            Kind = "INTERNAL"
)

var statusByKind = map[Kind]int{
	KindInvalidInput:        http.StatusBadRequest,
	KindRateLimited:         http.StatusTooManyRequests,
	KindUpstreamError:       http.StatusBadGateway,
	KindUpstreamUnavailable: http.StatusServiceUnavailable,
	KindSynthesis:           http.StatusBadGateway,
	KindTranscription:       http.StatusBadGateway,
	KindUpload:              http.StatusBadGateway,
	KindRender:              http.StatusInternalServerError,
	KindBusy:                http.StatusServiceUnavailable,
	KindInternal:            http.StatusInternalServerError,
}

// Error is the typed error returned by every pipeline component.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	Context    map[string]any
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithCause attaches the underlying error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// With adds a context field.
func (e *Error) With(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New builds an error of the given kind with the kind's default status code.
func New(kind Kind, message string) *Error {
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &Error{
		Kind:       kind,
		Message:    message,
		StatusCode: status,
	}
}

func InvalidInput(message string) *Error {
	return New(KindInvalidInput, message)
}

func RateLimited(message string) *Error {
	return New(KindRateLimited, message)
}

// Upstream reports a non-success response from an external API. The upstream
// status and body are kept in Context.
func Upstream(service string, status int, body string) *Error {
	return New(KindUpstreamError, fmt.Sprintf("%s request failed with status %d: %s", service, status, body)).
		With("service", service).
		With("upstream_status", status).
		With("body", body)
}

func Unavailable(service string, cause error) *Error {
	return New(KindUpstreamUnavailable, fmt.Sprintf("%s is unreachable", service)).
		With("service", service).
		WithCause(cause)
}

func Synthesis(message string) *Error {
	return New(KindSynthesis, message)
}

func Transcription(message string) *Error {
	return New(KindTranscription, message)
}

func Upload(message string) *Error {
	return New(KindUpload, message)
}

func Render(message string) *Error {
	return New(KindRender, message)
}

// Busy reports that the service has no capacity left for the request.
func Busy(message string) *Error {
	return New(KindBusy, message)
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// StatusOf returns the HTTP status for err.
func StatusOf(err error) int {
	if appErr, ok := As(err); ok && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
