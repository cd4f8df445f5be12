package metrics

import "slices"

// Snapshot is a point-in-time copy of every registered metric.
// It shares no memory with the registry and is never modified after
// Registry.Snapshot returns it.
type Snapshot struct {
	// Families are in registration order.
	Families []Family
}

// Family is the captured state of one metric and all of its series.
type Family struct {
	Name       string
	Help       string
	Type       MetricType
	LabelNames []string
	// Buckets holds the histogram upper bounds, including +Inf. Nil for other types.
	Buckets []float64
	// Series are in first-seen order.
	Series []Series
}

// Series is the captured state of one label combination.
type Series struct {
	LabelValues []string
	// Value is the counter or gauge value. For histograms it is the observation count.
	Value float64
	// Histogram is set for histogram series only.
	Histogram *HistogramValue
}

// HistogramValue is the captured state of a histogram series.
type HistogramValue struct {
	// Counts are cumulative and aligned with Family.Buckets.
	Counts []uint64
	Sum    float64
	Count  uint64
}

// Family returns the family with the given name.
func (s Snapshot) Family(name string) (Family, bool) {
	for _, f := range s.Families {
		if f.Name == name {
			return f, true
		}
	}
	return Family{}, false
}

// Lookup returns the series with exactly the given label values.
func (f Family) Lookup(labelValues ...string) (Series, bool) {
	for _, s := range f.Series {
		if slices.Equal(s.LabelValues, labelValues) {
			return s, true
		}
	}
	return Series{}, false
}

// Value returns the value of the series with the given label values, or 0
// if that series has never been touched.
func (f Family) Value(labelValues ...string) float64 {
	s, _ := f.Lookup(labelValues...)
	return s.Value
}

// Sum returns the sum of Value over all series.
func (f Family) Sum() float64 {
	var total float64
	for _, s := range f.Series {
		total += s.Value
	}
	return total
}

// Label returns the value of the named label on s, or "" when f has no such label.
func (f Family) Label(s Series, name string) string {
	i := slices.Index(f.LabelNames, name)
	if i < 0 || i >= len(s.LabelValues) {
		return ""
	}
	return s.LabelValues[i]
}
