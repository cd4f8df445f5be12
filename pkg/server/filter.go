package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avairebot/metricsd/pkg/ratelimit"
)

// Filter runs before routing. It may inspect the request but never writes
// the response; returning an error hands the request to the error mapper.
type Filter func(r *http.Request) error

type requestIDKey struct{}

// RequestIDHeader carries the request id on every response.
const RequestIDHeader = "X-Request-Id"

// RequestID returns the id assigned to the request, or "" outside a request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// AccessLog returns a filter that logs every request at debug level.
func AccessLog(log *slog.Logger) Filter {
	return func(r *http.Request) error {
		log.Debug("request received",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"request_id", RequestID(r.Context()),
		)
		return nil
	}
}

// ErrCodeRateLimited is the error code of throttled requests.
const ErrCodeRateLimited = "rate_limited"

// ErrRateLimited is wrapped by the error of a throttled request. Its text
// carries the bucket state for the rejection log.
var ErrRateLimited = errors.New("scrape rate limit exceeded")

// RateLimit returns a filter that rejects requests with 429 once b is empty.
func RateLimit(b *ratelimit.Bucket) Filter {
	return func(r *http.Request) error {
		if b.Allow() {
			return nil
		}
		st := b.Stats()
		return &StatusError{
			Status:  http.StatusTooManyRequests,
			Code:    ErrCodeRateLimited,
			Message: fmt.Sprintf("too many requests, retry in %s", b.RetryAfter().Round(time.Millisecond)),
			Err:     fmt.Errorf("%w: %.2f of %g tokens left at %g/s", ErrRateLimited, st.Available, st.Max, st.Rate),
		}
	}
}
