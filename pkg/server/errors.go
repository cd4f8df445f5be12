package server

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/avairebot/metricsd/pkg/httputil"
)

// Error codes used in error response bodies.
const (
	ErrCodeNotFound = "not_found"
	ErrCodeInternal = "internal_error"
)

// ErrMsgInternal is the only message clients see for unexpected failures.
const ErrMsgInternal = "internal server error"

var (
	// ErrNotFound is wrapped by the error returned for unrouted requests.
	ErrNotFound = errors.New("no route")

	// ErrAlreadyStarted is returned when Start is called more than once.
	ErrAlreadyStarted = errors.New("server already started")

	// ErrBind is returned when the listener cannot be bound.
	ErrBind = errors.New("bind listener")

	// errPanic wraps values recovered from a panicking filter or handler.
	errPanic = errors.New("panic")
)

// StatusError is an expected failure with a fixed status and error code.
// Filters and handlers return it to choose the response; anything else
// becomes a 500.
type StatusError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Code, e.Err)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

func (e *StatusError) Unwrap() error { return e.Err }

func notFound(r *http.Request) error {
	return &StatusError{
		Status:  http.StatusNotFound,
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path),
		Err:     ErrNotFound,
	}
}

// writeError maps err to a response and logs it. Unexpected errors are
// logged in full server-side; the client only gets a generic message.
func (s *Server) writeError(w *statusWriter, r *http.Request, err error) {
	id := RequestID(r.Context())
	resp := httputil.ErrorResponse{
		Error:     ErrCodeInternal,
		Message:   ErrMsgInternal,
		RequestID: id,
	}
	status := http.StatusInternalServerError

	var se *StatusError
	if errors.As(err, &se) {
		status = se.Status
		resp.Error = se.Code
		resp.Message = se.Message
	}

	args := []any{"method", r.Method, "path", r.URL.Path, "status", status, "request_id", id, "error", err}
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", args...)
	} else {
		s.log.Debug("request rejected", args...)
	}

	if w.written {
		// Headers are gone; the client sees whatever the handler managed to send.
		return
	}
	httputil.WriteErrorResponse(w, status, resp)
}

// recovered converts a recovered panic value into an error carrying the stack.
func recovered(v any) error {
	if err, ok := v.(error); ok {
		return fmt.Errorf("%w: %w\n%s", errPanic, err, debug.Stack())
	}
	return fmt.Errorf("%w: %v\n%s", errPanic, v, debug.Stack())
}
