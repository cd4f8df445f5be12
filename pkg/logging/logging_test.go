package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avairebot/metricsd/pkg/metrics"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		// Lowercase
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},

		// Uppercase
		{"DEBUG", LevelDebug},
		{"INFO", LevelInfo},
		{"WARN", LevelWarn},
		{"WARNING", LevelWarn},
		{"ERROR", LevelError},

		// Mixed case
		{"Debug", LevelDebug},
		{"Warning", LevelWarn},
		{"dEbUg", LevelDebug},

		// Empty string defaults to Info
		{"", LevelInfo},

		// Unrecognized defaults to Info
		{"trace", LevelInfo},
		{"fatal", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ParseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestValidLevel(t *testing.T) {
	for _, s := range []string{"", "debug", "INFO", "Warning", "error"} {
		if !ValidLevel(s) {
			t.Errorf("ValidLevel(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"trace", "fatal", "verbose"} {
		if ValidLevel(s) {
			t.Errorf("ValidLevel(%q) = true, want false", s)
		}
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected Format
	}{
		{"json", FormatJSON},
		{"JSON", FormatJSON},
		{"Json", FormatJSON},
		{"text", FormatText},
		{"TEXT", FormatText},
		{"", FormatText},
		{"yaml", FormatText}, // unrecognized defaults to text
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ParseFormat(tt.input)
			if result != tt.expected {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}

	if ValidFormat("yaml") {
		t.Error("ValidFormat(yaml) = true, want false")
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: LevelWarn, Format: FormatJSON, Output: &buf})

	log.Info("dropped")
	log.Warn("kept", "port", 1256)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.EqualValues(t, 1256, entry["port"])
}

func TestNop(t *testing.T) {
	log := Nop()
	assert.False(t, log.Enabled(context.Background(), LevelError))
	log.Error("nothing happens")
}

func newInstrumented(t *testing.T, level Level) (*metrics.Registry, *slog.Logger, *bytes.Buffer) {
	t.Helper()
	reg := metrics.NewRegistry()
	events, err := RegisterLogEvents(reg)
	require.NoError(t, err)

	var buf bytes.Buffer
	h, err := NewInstrumentedHandler(NewHandler(Config{Level: level, Output: &buf}), events)
	require.NoError(t, err)
	return reg, slog.New(h), &buf
}

func TestInstrumentedHandler_CountsByLevel(t *testing.T) {
	reg, log, buf := newInstrumented(t, LevelInfo)

	log.Debug("filtered out")
	log.Info("one")
	log.Info("two")
	log.With("component", "server").Warn("three")
	log.WithGroup("req").Error("four", "id", "abc")
	log.Log(context.Background(), LevelError+4, "custom")

	f, ok := reg.Snapshot().Family(LogEventsName)
	require.True(t, ok)
	assert.Equal(t, 0.0, f.Value("debug"))
	assert.Equal(t, 2.0, f.Value("info"))
	assert.Equal(t, 1.0, f.Value("warn"))
	assert.Equal(t, 2.0, f.Value("error"))

	assert.Contains(t, buf.String(), "component=server")
	assert.Contains(t, buf.String(), "req.id=abc")
	assert.NotContains(t, buf.String(), "filtered out")
}

func TestInstrumentedHandler_ZeroSeriesUpFront(t *testing.T) {
	reg, _, _ := newInstrumented(t, LevelInfo)

	f, ok := reg.Snapshot().Family("logback_appender_total")
	require.True(t, ok)
	require.Len(t, f.Series, 4)
	for _, name := range levelNames {
		_, ok := f.Lookup(name)
		assert.True(t, ok, name)
	}
}

func TestInstrumentedHandler_WrongLabels(t *testing.T) {
	reg := metrics.NewRegistry()
	events, err := reg.NewCounter("bad_events_total", "", "level", "component")
	require.NoError(t, err)

	_, err = NewInstrumentedHandler(slog.DiscardHandler, events)
	assert.True(t, errors.Is(err, metrics.ErrLabelCountMismatch), "got %v", err)
}

func TestMultiHandler(t *testing.T) {
	var text, js bytes.Buffer
	h := NewMultiHandler(
		NewHandler(Config{Level: LevelInfo, Output: &text}),
		NewHandler(Config{Level: LevelError, Format: FormatJSON, Output: &js}),
	)
	log := slog.New(h)

	assert.False(t, h.Enabled(context.Background(), LevelDebug))
	log.Info("text only")
	log.With("k", "v").Error("both")

	assert.Contains(t, text.String(), "text only")
	assert.Contains(t, text.String(), "both")
	assert.NotContains(t, js.String(), "text only")
	assert.Contains(t, js.String(), `"k":"v"`)
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("disk full") }

func TestMultiHandler_KeepsGoingOnError(t *testing.T) {
	var out bytes.Buffer
	h := NewMultiHandler(
		failingHandler{NewHandler(Config{Output: &out})},
		nil,
		NewHandler(Config{Output: &out}),
	)

	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), LevelInfo, "still written", 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, out.String(), "still written")
}
