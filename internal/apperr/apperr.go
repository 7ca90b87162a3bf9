// Package apperr defines the typed errors returned by the store and the
// handlers. Only the HTTP error stage turns them into status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// Kind classifies an error for translation at the HTTP boundary.
type Kind int

const (
	InternalKind Kind = iota
	InvalidInputKind
	NotFoundKind
	DuplicateEmailKind
	RouteNotFoundKind
	PayloadTooLargeKind
	TooManyRequestsKind
)

func (k Kind) String() string {
	switch k {
	case InvalidInputKind:
		return "invalid_input"
	case NotFoundKind:
		return "not_found"
	case DuplicateEmailKind:
		return "duplicate_email"
	case RouteNotFoundKind:
		return "route_not_found"
	case PayloadTooLargeKind:
		return "payload_too_large"
	case TooManyRequestsKind:
		return "too_many_requests"
	default:
		return "internal"
	}
}

// Status returns the HTTP status code a kind is rendered with.
// DuplicateEmail is deliberately left at 500.
func (k Kind) Status() int {
	switch k {
	case InvalidInputKind:
		return http.StatusBadRequest
	case NotFoundKind, RouteNotFoundKind:
		return http.StatusNotFound
	case PayloadTooLargeKind:
		return http.StatusRequestEntityTooLarge
	case TooManyRequestsKind:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a kinded error with the call stack captured at construction.
type Error struct {
	Kind    Kind
	Message string
	Err     error

	stack []uintptr
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Stack renders "Error: <message>" followed by one
// "\n    at function (file:line)" line per captured frame.
func (e *Error) Stack() string {
	if len(e.stack) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(e.Error())
	frames := runtime.CallersFrames(e.stack)
	for {
		f, more := frames.Next()
		fmt.Fprintf(&b, "\n    at %s (%s:%d)", f.Function, f.File, f.Line)
		if !more {
			break
		}
	}
	return b.String()
}

func newError(kind Kind, msg string, err error) *Error {
	pcs := make([]uintptr, 32)
	// skip runtime.Callers, newError and the exported constructor
	n := runtime.Callers(3, pcs)
	return &Error{Kind: kind, Message: msg, Err: err, stack: pcs[:n]}
}

// InvalidInput reports a missing or malformed request field (400).
func InvalidInput(msg string) *Error { return newError(InvalidInputKind, msg, nil) }

// NotFound reports a missing resource (404).
func NotFound(msg string) *Error { return newError(NotFoundKind, msg, nil) }

// DuplicateEmail reports an email already used by another user (500).
func DuplicateEmail(msg string) *Error { return newError(DuplicateEmailKind, msg, nil) }

// RouteNotFound reports a request that matched no route (404).
func RouteNotFound(msg string) *Error { return newError(RouteNotFoundKind, msg, nil) }

// PayloadTooLarge reports a request body above the configured cap (413).
func PayloadTooLarge(msg string) *Error { return newError(PayloadTooLargeKind, msg, nil) }

// TooManyRequests reports a client over its rate limit (429).
func TooManyRequests(msg string) *Error { return newError(TooManyRequestsKind, msg, nil) }

// Wrap attaches a kind to an existing error, keeping it reachable through errors.Is/As.
func Wrap(kind Kind, err error, msg string) *Error { return newError(kind, msg, err) }

// KindOf reports the kind of err, InternalKind when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return InternalKind
}

// StatusOf reports the HTTP status err should be rendered with.
func StatusOf(err error) int {
	return KindOf(err).Status()
}

// StackOf returns the captured stack of err, or a stack taken now when err is untyped.
func StackOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Stack()
	}
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return "Error: " + err.Error() + "\n" + string(buf[:n])
}
