// Package setup wires the metrics subsystem together exactly once per process.
//
// Setup runs four independent steps, each usable on its own:
//
//   - InstrumentLogger counts log events by level
//   - RegisterDomainMetrics declares the bot metrics
//   - AttachRuntimeStats publishes Go runtime and process stats
//   - StartHTTP binds the scrape endpoint
//
// The first successful Setup moves the Bootstrap to Ready; every later call
// returns ErrAlreadySetup and leaves the running endpoint alone.
package setup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avairebot/metricsd/pkg/botmetrics"
	"github.com/avairebot/metricsd/pkg/config"
	"github.com/avairebot/metricsd/pkg/logging"
	"github.com/avairebot/metricsd/pkg/metrics"
	"github.com/avairebot/metricsd/pkg/ratelimit"
	"github.com/avairebot/metricsd/pkg/server"
)

// ErrAlreadySetup is returned by every Setup call after the first success.
var ErrAlreadySetup = errors.New("metrics have already been set up")

// ErrInvalidInterval is returned by AttachRuntimeStats for a non-positive interval.
var ErrInvalidInterval = errors.New("runtime stats interval must be positive")

// State is the lifecycle state of a Bootstrap.
type State int32

const (
	StateUninitialized State = iota
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Bootstrap guards a single setup.
type Bootstrap struct {
	mu      sync.Mutex
	state   State
	runtime *Runtime
}

// NewBootstrap returns a Bootstrap in StateUninitialized.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// State returns the current state.
func (b *Bootstrap) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Runtime returns the runtime created by the successful Setup, or nil.
func (b *Bootstrap) Runtime() *Runtime {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.runtime
}

// Setup builds a registry, registers every metric and starts the endpoint.
// A nil cfg means config.Default(). On failure nothing keeps running and the
// Bootstrap stays uninitialized, so Setup may be retried.
func (b *Bootstrap) Setup(cfg *config.Config, log *slog.Logger) (*Runtime, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateReady {
		return nil, ErrAlreadySetup
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logging.Nop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reg := metrics.NewRegistry()

	log, err := InstrumentLogger(reg, log)
	if err != nil {
		return nil, fmt.Errorf("instrument logger: %w", err)
	}

	m, err := RegisterDomainMetrics(reg, cfg)
	if err != nil {
		return nil, fmt.Errorf("register bot metrics: %w", err)
	}

	stop, err := AttachRuntimeStats(reg, cfg.RuntimeInterval)
	if err != nil {
		return nil, fmt.Errorf("attach runtime stats: %w", err)
	}

	topCommands := cfg.TopCommands
	summarize := func(snap metrics.Snapshot) any {
		return botmetrics.Summarize(snap, topCommands)
	}
	srv, err := StartHTTP(cfg, reg, summarize, log)
	if err != nil {
		stop()
		return nil, err
	}

	b.runtime = &Runtime{
		Registry:    reg,
		Metrics:     m,
		Logger:      log,
		server:      srv,
		stopRuntime: stop,
	}
	b.state = StateReady
	log.Info("metrics set up", "addr", srv.Addr(), "runtimeInterval", cfg.RuntimeInterval)
	return b.runtime, nil
}

// RegisterDomainMetrics declares the bot metrics in reg.
func RegisterDomainMetrics(reg metrics.Registerer, cfg *config.Config) (*botmetrics.Metrics, error) {
	return botmetrics.Register(reg, cfg.ExecutionBuckets)
}

// AttachRuntimeStats registers the runtime and process collector and starts
// refreshing it every interval. The returned stop function is idempotent.
func AttachRuntimeStats(reg metrics.Registerer, interval time.Duration) (func(), error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidInterval, interval)
	}
	rc, err := metrics.NewRuntimeCollector(reg)
	if err != nil {
		return nil, err
	}
	return rc.StartCollector(interval), nil
}

// InstrumentLogger returns a logger that also counts its records in
// logback_appender_total{level}.
func InstrumentLogger(reg metrics.Registerer, log *slog.Logger) (*slog.Logger, error) {
	events, err := logging.RegisterLogEvents(reg)
	if err != nil {
		return nil, err
	}
	h, err := logging.NewInstrumentedHandler(log.Handler(), events)
	if err != nil {
		return nil, err
	}
	return slog.New(h), nil
}

// StartHTTP binds cfg.Addr() and serves reg. A bind failure is returned as is.
func StartHTTP(cfg *config.Config, reg *metrics.Registry, summarize server.StatsFunc, log *slog.Logger) (*server.Server, error) {
	opts := []server.Option{
		server.WithLogger(log),
		server.WithTimeouts(cfg.ReadTimeout, cfg.WriteTimeout, cfg.ReadHeaderTimeout),
		server.WithMaxConnections(cfg.MaxConnections),
	}
	if cfg.ScrapeRateLimit > 0 {
		opts = append(opts, server.WithFilters(server.RateLimit(ratelimit.NewBucket(cfg.ScrapeRateLimit, cfg.ScrapeBurst))))
	}
	if cfg.ServerTelemetry {
		tel, err := server.NewTelemetry(reg)
		if err != nil {
			return nil, fmt.Errorf("server telemetry: %w", err)
		}
		opts = append(opts, server.WithTelemetry(tel))
	}

	srv := server.New(reg, summarize, opts...)
	if err := srv.Start(cfg.Addr()); err != nil {
		return nil, err
	}
	return srv, nil
}

// Runtime is the result of a successful Setup.
type Runtime struct {
	Registry *metrics.Registry
	Metrics  *botmetrics.Metrics
	// Logger counts its own records; use it instead of the one passed to Setup.
	Logger *slog.Logger

	server      *server.Server
	stopRuntime func()
}

// Addr returns the address the endpoint is bound to.
func (rt *Runtime) Addr() string {
	return rt.server.Addr()
}

// Close stops the endpoint and the runtime collector. The Bootstrap stays
// ready; metrics are set up once per process.
func (rt *Runtime) Close(ctx context.Context) error {
	rt.stopRuntime()
	return rt.server.Shutdown(ctx)
}

var process = NewBootstrap()

// Setup runs the process-wide Bootstrap. Only the first successful call in
// a process does anything.
func Setup(cfg *config.Config, log *slog.Logger) (*Runtime, error) {
	return process.Setup(cfg, log)
}
