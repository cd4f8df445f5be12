package metrics

import (
	"fmt"
	"slices"
	"sync"
)

// Registry holds all registered metrics.
// Registration order is kept and drives exposition order.
type Registry struct {
	mu      sync.RWMutex
	metrics []Metric
	names   map[string]struct{} // guards against duplicate registrations
}

// NewRegistry creates a new metric registry.
func NewRegistry() *Registry {
	return &Registry{
		metrics: make([]Metric, 0),
		names:   make(map[string]struct{}),
	}
}

// NewCounter creates and registers a new counter.
func (r *Registry) NewCounter(name, help string, labelNames ...string) (*Counter, error) {
	d, err := newDesc(name, help, labelNames, MetricTypeCounter)
	if err != nil {
		return nil, err
	}
	c := newCounter(d)
	if err := r.register(c); err != nil {
		return nil, err
	}
	return c, nil
}

// NewGauge creates and registers a new gauge.
func (r *Registry) NewGauge(name, help string, labelNames ...string) (*Gauge, error) {
	d, err := newDesc(name, help, labelNames, MetricTypeGauge)
	if err != nil {
		return nil, err
	}
	g := newGauge(d)
	if err := r.register(g); err != nil {
		return nil, err
	}
	return g, nil
}

// NewHistogram creates and registers a new histogram with the given buckets.
// Empty buckets select DefaultBuckets.
func (r *Registry) NewHistogram(name, help string, buckets []float64, labelNames ...string) (*Histogram, error) {
	d, err := newDesc(name, help, labelNames, MetricTypeHistogram)
	if err != nil {
		return nil, err
	}
	h, err := newHistogram(d, buckets)
	if err != nil {
		return nil, fmt.Errorf("histogram %s: %w", name, err)
	}
	if err := r.register(h); err != nil {
		return nil, err
	}
	return h, nil
}

// register adds a metric to the registry.
// A name is rejected if already taken, whatever the kind or labels,
// since duplicate metric names produce invalid Prometheus output.
func (r *Registry) register(m Metric) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.names[m.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateMetric, m.Name())
	}
	r.names[m.Name()] = struct{}{}
	r.metrics = append(r.metrics, m)
	return nil
}

// Metrics returns the registered metrics in registration order.
func (r *Registry) Metrics() []Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.metrics)
}

// Snapshot captures the current value of every series.
// The registry lock is only held while copying the metric list; series are
// read one by one afterwards so producers are never stalled by a scrape.
func (r *Registry) Snapshot() Snapshot {
	ms := r.Metrics()
	snap := Snapshot{Families: make([]Family, 0, len(ms))}
	for _, m := range ms {
		snap.Families = append(snap.Families, m.collect())
	}
	return snap
}
