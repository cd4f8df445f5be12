package metrics

import "slices"

// Gauge is a metric that can arbitrarily go up and down.
type Gauge struct {
	desc
	series seriesSet[*GaugeSeries]
}

// GaugeSeries is a single label combination of a Gauge.
type GaugeSeries struct {
	labelValues []string
	value       atomicFloat64
}

func newGauge(d desc) *Gauge {
	g := &Gauge{desc: d}
	if len(d.labelNames) == 0 {
		_, _ = g.WithLabels()
	}
	return g
}

// Type returns the metric type.
func (g *Gauge) Type() MetricType { return MetricTypeGauge }

// WithLabels returns the series for the given label values, creating it on first use.
// Returns an error if the label count doesn't match.
func (g *Gauge) WithLabels(values ...string) (*GaugeSeries, error) {
	if err := g.checkLabelValues(MetricTypeGauge, values); err != nil {
		return nil, err
	}
	return g.series.getOrCreate(values, func(lv []string) *GaugeSeries {
		return &GaugeSeries{labelValues: lv}
	}), nil
}

// Set sets the gauge to the given value (for gauges without labels).
func (g *Gauge) Set(value float64) error {
	s, err := g.WithLabels()
	if err != nil {
		return err
	}
	s.Set(value)
	return nil
}

// Inc increments the gauge by 1 (for gauges without labels).
func (g *Gauge) Inc() error {
	return g.Add(1)
}

// Dec decrements the gauge by 1 (for gauges without labels).
func (g *Gauge) Dec() error {
	return g.Add(-1)
}

// Add adds the given value to the gauge (for gauges without labels).
func (g *Gauge) Add(delta float64) error {
	s, err := g.WithLabels()
	if err != nil {
		return err
	}
	s.Add(delta)
	return nil
}

func (g *Gauge) collect() Family {
	f := g.family(MetricTypeGauge)
	for _, s := range g.series.list() {
		f.Series = append(f.Series, Series{
			LabelValues: slices.Clone(s.labelValues),
			Value:       s.value.Load(),
		})
	}
	return f
}

// Set sets the series to the given value.
func (s *GaugeSeries) Set(value float64) {
	s.value.Store(value)
}

// Inc increments the series by 1.
func (s *GaugeSeries) Inc() {
	s.Add(1)
}

// Dec decrements the series by 1.
func (s *GaugeSeries) Dec() {
	s.Add(-1)
}

// Add adds the given value to the series.
func (s *GaugeSeries) Add(delta float64) {
	s.value.Add(delta)
}

// Sub subtracts the given value from the series.
func (s *GaugeSeries) Sub(delta float64) {
	s.value.Add(-delta)
}

// Value returns the current value.
func (s *GaugeSeries) Value() float64 { return s.value.Load() }
