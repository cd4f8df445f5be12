package metrics

import (
	"fmt"
	"math"
	"slices"
)

// Counter is a monotonically increasing metric.
// It can only increase; there is no reset.
type Counter struct {
	desc
	series seriesSet[*CounterSeries]
}

// CounterSeries is a single label combination of a Counter.
type CounterSeries struct {
	metric      string
	labelValues []string
	value       atomicFloat64
}

func newCounter(d desc) *Counter {
	c := &Counter{desc: d}
	if len(d.labelNames) == 0 {
		_, _ = c.WithLabels()
	}
	return c
}

// Type returns the metric type.
func (c *Counter) Type() MetricType { return MetricTypeCounter }

// WithLabels returns the series for the given label values, creating it on first use.
// Returns an error if the label count doesn't match.
func (c *Counter) WithLabels(values ...string) (*CounterSeries, error) {
	if err := c.checkLabelValues(MetricTypeCounter, values); err != nil {
		return nil, err
	}
	return c.series.getOrCreate(values, func(lv []string) *CounterSeries {
		return &CounterSeries{metric: c.name, labelValues: lv}
	}), nil
}

// Inc increments the counter by 1 (for counters without labels).
func (c *Counter) Inc() error {
	return c.Add(1)
}

// Add adds the given value to the counter (for counters without labels).
// Returns an error if delta is negative.
func (c *Counter) Add(delta float64) error {
	s, err := c.WithLabels()
	if err != nil {
		return err
	}
	return s.Add(delta)
}

func (c *Counter) collect() Family {
	f := c.family(MetricTypeCounter)
	for _, s := range c.series.list() {
		f.Series = append(f.Series, Series{
			LabelValues: slices.Clone(s.labelValues),
			Value:       s.value.Load(),
		})
	}
	return f
}

// Inc increments the series by 1.
func (s *CounterSeries) Inc() {
	s.value.Add(1)
}

// Add adds the given value to the series.
// Returns an error if delta is negative or NaN.
func (s *CounterSeries) Add(delta float64) error {
	if delta < 0 || math.IsNaN(delta) {
		return fmt.Errorf("%w: counter %s got %g", ErrNegativeCounterValue, s.metric, delta)
	}
	s.value.Add(delta)
	return nil
}

// Value returns the current value.
func (s *CounterSeries) Value() float64 { return s.value.Load() }
