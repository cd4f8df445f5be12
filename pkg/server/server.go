package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/netutil"

	"github.com/avairebot/metricsd/pkg/logging"
)

// Default timeouts.
const (
	DefaultReadTimeout       = 10 * time.Second
	DefaultWriteTimeout      = 30 * time.Second
	DefaultReadHeaderTimeout = 5 * time.Second
)

// Server serves snapshots of a registry over HTTP.
type Server struct {
	source    Snapshotter
	stats     StatsFunc
	log       *slog.Logger
	filters   []Filter
	telemetry *Telemetry
	router    map[routeKey]HandlerFunc

	readTimeout       time.Duration
	writeTimeout      time.Duration
	readHeaderTimeout time.Duration
	maxConnections    int

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	done       chan struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for request and lifecycle logs.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithFilters appends filters that run after the access log, in order.
func WithFilters(filters ...Filter) Option {
	return func(s *Server) {
		s.filters = append(s.filters, filters...)
	}
}

// WithTimeouts sets the http.Server timeouts. Zero keeps the default.
func WithTimeouts(read, write, readHeader time.Duration) Option {
	return func(s *Server) {
		if read > 0 {
			s.readTimeout = read
		}
		if write > 0 {
			s.writeTimeout = write
		}
		if readHeader > 0 {
			s.readHeaderTimeout = readHeader
		}
	}
}

// WithMaxConnections caps concurrently accepted connections. Zero means no cap.
func WithMaxConnections(n int) Option {
	return func(s *Server) {
		s.maxConnections = n
	}
}

// WithTelemetry records request counts and durations.
func WithTelemetry(t *Telemetry) Option {
	return func(s *Server) {
		s.telemetry = t
	}
}

// New creates a server reading from source. stats may be nil, in which case
// /stats answers 404.
func New(source Snapshotter, stats StatsFunc, opts ...Option) *Server {
	s := &Server{
		source:            source,
		stats:             stats,
		log:               logging.Nop(),
		readTimeout:       DefaultReadTimeout,
		writeTimeout:      DefaultWriteTimeout,
		readHeaderTimeout: DefaultReadHeaderTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.filters = append([]Filter{AccessLog(s.log)}, s.filters...)
	s.router = s.routes()
	return s
}

// ServeHTTP runs a request through filters, router, handler and error mapper.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := uuid.NewString()
	r = r.WithContext(withRequestID(r.Context(), id))
	w.Header().Set(RequestIDHeader, id)

	sw := newStatusWriter(w)
	route := routeUnmatched

	defer func() {
		if v := recover(); v != nil {
			if v == http.ErrAbortHandler {
				panic(v)
			}
			s.writeError(sw, r, recovered(v))
		}
		s.telemetry.observe(route, sw.status, time.Since(start))
	}()

	if err := s.serve(sw, r, &route); err != nil {
		s.writeError(sw, r, err)
	}
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request, route *string) error {
	for _, f := range s.filters {
		if err := f(r); err != nil {
			return fmt.Errorf("filter: %w", err)
		}
	}
	name, h := s.route(r)
	*route = name
	if h == nil {
		return notFound(r)
	}
	return h(w, r)
}

// Start binds addr and serves in the background. A bind failure is returned
// immediately and never retried.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		return ErrAlreadyStarted
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrBind, addr, err)
	}
	if s.maxConnections > 0 {
		ln = netutil.LimitListener(ln, s.maxConnections)
	}

	s.httpServer = &http.Server{
		Handler:           s,
		ReadTimeout:       s.readTimeout,
		WriteTimeout:      s.writeTimeout,
		ReadHeaderTimeout: s.readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(s.log.Handler(), slog.LevelWarn),
	}
	s.listener = ln
	s.done = make(chan struct{})

	srv, done := s.httpServer, s.done
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("metrics server error", "addr", ln.Addr().String(), "error", err)
		}
	}()

	s.log.Info("metrics endpoint listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx is done. It is a no-op before Start.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.httpServer, s.done
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	<-done
	return nil
}
