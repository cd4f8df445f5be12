package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/avairebot/metricsd/pkg/metrics"
)

// Telemetry metric names.
const (
	RequestsName        = "metricsd_http_requests_total"
	RequestDurationName = "metricsd_http_request_duration_seconds"
)

// routeUnmatched labels requests no route accepted, so arbitrary paths
// cannot grow the series set.
const routeUnmatched = "unmatched"

// Telemetry records how the server itself is doing.
type Telemetry struct {
	requests *metrics.Counter
	duration *metrics.Histogram
}

// NewTelemetry registers the server's own metrics in reg.
func NewTelemetry(reg metrics.Registerer) (*Telemetry, error) {
	requests, err := reg.NewCounter(RequestsName,
		"Total HTTP requests served by the metrics endpoint", "route", "status")
	if err != nil {
		return nil, err
	}
	duration, err := reg.NewHistogram(RequestDurationName,
		"HTTP request duration of the metrics endpoint in seconds", nil, "route")
	if err != nil {
		return nil, err
	}
	return &Telemetry{requests: requests, duration: duration}, nil
}

func (t *Telemetry) observe(route string, status int, took time.Duration) {
	if t == nil {
		return
	}
	if s, err := t.requests.WithLabels(route, strconv.Itoa(status)); err == nil {
		s.Inc()
	}
	if s, err := t.duration.WithLabels(route); err == nil {
		s.Observe(took.Seconds())
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w, status: http.StatusOK}
}

// WriteHeader captures the status code and writes it to the underlying ResponseWriter.
func (w *statusWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// Write writes data to the underlying ResponseWriter.
func (w *statusWriter) Write(b []byte) (int, error) {
	w.written = true
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
