package metrics

import (
	"math"
	"slices"
	"sort"
	"sync"
)

// Histogram tracks the distribution of observed values.
// It provides cumulative buckets plus sum/count aggregations.
type Histogram struct {
	desc
	upperBounds []float64 // ascending, last is +Inf
	series      seriesSet[*HistogramSeries]
}

// HistogramSeries is a single label combination of a Histogram.
// Buckets, sum and count are guarded together so a reader never sees
// a count that disagrees with the buckets.
type HistogramSeries struct {
	labelValues []string
	upperBounds []float64

	mu     sync.Mutex
	counts []uint64 // per bucket, not cumulative
	sum    float64
	count  uint64
}

func newHistogram(d desc, buckets []float64) (*Histogram, error) {
	if len(buckets) == 0 {
		buckets = DefaultBuckets
	}
	if err := ValidateBuckets(buckets); err != nil {
		return nil, err
	}
	bounds := slices.Clone(buckets)
	// Add +Inf bucket if not present
	if !math.IsInf(bounds[len(bounds)-1], 1) {
		bounds = append(bounds, math.Inf(1))
	}

	h := &Histogram{desc: d, upperBounds: bounds}
	if len(d.labelNames) == 0 {
		_, _ = h.WithLabels()
	}
	return h, nil
}

// Type returns the metric type.
func (h *Histogram) Type() MetricType { return MetricTypeHistogram }

// Buckets returns the upper bounds, including the final +Inf.
func (h *Histogram) Buckets() []float64 { return slices.Clone(h.upperBounds) }

// WithLabels returns the series for the given label values, creating it on first use.
// Returns an error if the label count doesn't match.
func (h *Histogram) WithLabels(values ...string) (*HistogramSeries, error) {
	if err := h.checkLabelValues(MetricTypeHistogram, values); err != nil {
		return nil, err
	}
	return h.series.getOrCreate(values, func(lv []string) *HistogramSeries {
		return &HistogramSeries{
			labelValues: lv,
			upperBounds: h.upperBounds,
			counts:      make([]uint64, len(h.upperBounds)),
		}
	}), nil
}

// Observe records a value in the histogram (for histograms without labels).
func (h *Histogram) Observe(value float64) error {
	s, err := h.WithLabels()
	if err != nil {
		return err
	}
	s.Observe(value)
	return nil
}

func (h *Histogram) collect() Family {
	f := h.family(MetricTypeHistogram)
	f.Buckets = slices.Clone(h.upperBounds)
	for _, s := range h.series.list() {
		hv := s.read()
		f.Series = append(f.Series, Series{
			LabelValues: slices.Clone(s.labelValues),
			Value:       float64(hv.Count),
			Histogram:   &hv,
		})
	}
	return f
}

// Observe records a value. Every bucket whose upper bound is >= value
// counts it once the snapshot is taken.
func (s *HistogramSeries) Observe(value float64) {
	// First bound >= value. NaN compares false everywhere and lands in +Inf.
	i := sort.SearchFloat64s(s.upperBounds, value)
	if i == len(s.upperBounds) {
		i--
	}
	s.mu.Lock()
	s.counts[i]++
	s.sum += value
	s.count++
	s.mu.Unlock()
}

// read returns a consistent copy with cumulative bucket counts.
func (s *HistogramSeries) read() HistogramValue {
	s.mu.Lock()
	counts := slices.Clone(s.counts)
	sum := s.sum
	count := s.count
	s.mu.Unlock()

	var cumulative uint64
	for i, c := range counts {
		cumulative += c
		counts[i] = cumulative
	}
	return HistogramValue{Counts: counts, Sum: sum, Count: count}
}

// Value returns a consistent copy of the series state.
func (s *HistogramSeries) Value() HistogramValue { return s.read() }
