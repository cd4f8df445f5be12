package server

import (
	"fmt"
	"net/http"

	"github.com/avairebot/metricsd/pkg/exposition"
	"github.com/avairebot/metricsd/pkg/httputil"
	"github.com/avairebot/metricsd/pkg/metrics"
)

// Route paths.
const (
	PathMetrics = "/metrics"
	PathStats   = "/stats"
)

// Snapshotter is the read side of a registry.
type Snapshotter interface {
	Snapshot() metrics.Snapshot
}

// StatsFunc projects a snapshot into the JSON document served on /stats.
type StatsFunc func(snap metrics.Snapshot) any

// HandlerFunc handles a routed request. A returned error is written by the
// error mapper, so handlers must not write a response when they fail.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

type routeKey struct {
	method string
	path   string
}

func (s *Server) routes() map[routeKey]HandlerFunc {
	return map[routeKey]HandlerFunc{
		{http.MethodGet, PathMetrics}: s.handleMetrics,
		{http.MethodGet, PathStats}:   s.handleStats,
	}
}

// route matches method and path exactly. Any other combination, including
// another method on a known path, has no handler.
func (s *Server) route(r *http.Request) (string, HandlerFunc) {
	h, ok := s.router[routeKey{r.Method, r.URL.Path}]
	if !ok {
		return routeUnmatched, nil
	}
	return r.URL.Path, h
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) error {
	body, err := exposition.RenderText(s.source.Snapshot())
	if err != nil {
		return fmt.Errorf("render metrics: %w", err)
	}
	httputil.WriteBody(w, http.StatusOK, exposition.ContentType, body)
	return nil
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) error {
	if s.stats == nil {
		return notFound(r)
	}
	body, err := httputil.EncodeJSON(s.stats(s.source.Snapshot()))
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	httputil.WriteBody(w, http.StatusOK, httputil.ContentTypeJSON, body)
	return nil
}
