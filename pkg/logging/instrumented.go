package logging

import (
	"context"
	"log/slog"

	"github.com/avairebot/metricsd/pkg/metrics"
)

// LogEventsName is the counter InstrumentedHandler increments. It keeps the
// name the bot has always exported.
const LogEventsName = "logback_appender_total"

// levelNames are the values of the level label, lowest first.
var levelNames = [...]string{"debug", "info", "warn", "error"}

// InstrumentedHandler counts every record it hands to the wrapped handler,
// labeled by level.
type InstrumentedHandler struct {
	next   slog.Handler
	series [len(levelNames)]*metrics.CounterSeries
}

// RegisterLogEvents registers the log event counter in reg.
func RegisterLogEvents(reg metrics.Registerer) (*metrics.Counter, error) {
	return reg.NewCounter(LogEventsName, "Log statements at various log levels", "level")
}

// NewInstrumentedHandler wraps next. events must have exactly one label.
// Every level series is created up front so scrapes show zeros.
func NewInstrumentedHandler(next slog.Handler, events *metrics.Counter) (*InstrumentedHandler, error) {
	h := &InstrumentedHandler{next: next}
	for i, name := range levelNames {
		s, err := events.WithLabels(name)
		if err != nil {
			return nil, err
		}
		h.series[i] = s
	}
	return h, nil
}

// Enabled defers to the wrapped handler.
func (h *InstrumentedHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle counts the record, then passes it on.
func (h *InstrumentedHandler) Handle(ctx context.Context, r slog.Record) error {
	h.series[levelIndex(r.Level)].Inc()
	return h.next.Handle(ctx, r)
}

// WithAttrs returns a new InstrumentedHandler sharing the same counters.
func (h *InstrumentedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &InstrumentedHandler{next: h.next.WithAttrs(attrs), series: h.series}
}

// WithGroup returns a new InstrumentedHandler sharing the same counters.
func (h *InstrumentedHandler) WithGroup(name string) slog.Handler {
	return &InstrumentedHandler{next: h.next.WithGroup(name), series: h.series}
}

// levelIndex buckets custom levels into the nearest standard level below them.
func levelIndex(l slog.Level) int {
	switch {
	case l < LevelInfo:
		return 0
	case l < LevelWarn:
		return 1
	case l < LevelError:
		return 2
	default:
		return 3
	}
}
