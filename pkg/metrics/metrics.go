package metrics

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/common/model"
)

// ErrLabelCountMismatch is returned when the number of label values doesn't match the defined labels.
var ErrLabelCountMismatch = errors.New("label count mismatch")

// ErrInvalidLabelValue is returned for label values that are not valid UTF-8.
var ErrInvalidLabelValue = errors.New("invalid label value")

// ErrNegativeCounterValue is returned when attempting to add a negative value to a counter.
var ErrNegativeCounterValue = errors.New("counter cannot be decreased")

// ErrDuplicateMetric is returned when registering a metric with a name that is already registered.
var ErrDuplicateMetric = errors.New("duplicate metric name")

// ErrInvalidName is returned for malformed metric or label names.
var ErrInvalidName = errors.New("invalid metric or label name")

// ErrInvalidBuckets is returned for histogram bucket lists that are not strictly ascending.
var ErrInvalidBuckets = errors.New("invalid histogram buckets")

// MetricType represents the type of a metric.
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
)

// Metric is the interface implemented by all metric types.
type Metric interface {
	// Name returns the metric name.
	Name() string
	// Help returns the help text.
	Help() string
	// Type returns the metric type.
	Type() MetricType
	// LabelNames returns the declared label names in order.
	LabelNames() []string

	collect() Family
}

// Registerer creates and registers metrics. *Registry implements it; setup
// steps accept it so they can run against a throwaway registry in tests.
type Registerer interface {
	NewCounter(name, help string, labelNames ...string) (*Counter, error)
	NewGauge(name, help string, labelNames ...string) (*Gauge, error)
	NewHistogram(name, help string, buckets []float64, labelNames ...string) (*Histogram, error)
}

// DefaultBuckets are the default histogram buckets for durations (in seconds).
var DefaultBuckets = []float64{
	0.001, // 1ms
	0.005, // 5ms
	0.01,  // 10ms
	0.025, // 25ms
	0.05,  // 50ms
	0.1,   // 100ms
	0.25,  // 250ms
	0.5,   // 500ms
	1,     // 1s
	2.5,   // 2.5s
	5,     // 5s
	10,    // 10s
}

// desc holds the immutable part of a metric shared by all its series.
type desc struct {
	name       string
	help       string
	labelNames []string
}

func newDesc(name, help string, labelNames []string, typ MetricType) (desc, error) {
	if !model.MetricNameRE.MatchString(name) {
		return desc{}, fmt.Errorf("%w: metric %q", ErrInvalidName, name)
	}
	seen := make(map[string]struct{}, len(labelNames))
	for _, l := range labelNames {
		if !model.LabelNameRE.MatchString(l) || strings.HasPrefix(l, model.ReservedLabelPrefix) {
			return desc{}, fmt.Errorf("%w: label %q on %s", ErrInvalidName, l, name)
		}
		if typ == MetricTypeHistogram && l == model.BucketLabel {
			return desc{}, fmt.Errorf("%w: label %q is reserved for histogram buckets on %s", ErrInvalidName, l, name)
		}
		if _, dup := seen[l]; dup {
			return desc{}, fmt.Errorf("%w: label %q repeated on %s", ErrInvalidName, l, name)
		}
		seen[l] = struct{}{}
	}
	return desc{name: name, help: help, labelNames: slices.Clone(labelNames)}, nil
}

// Name returns the metric name.
func (d *desc) Name() string { return d.name }

// Help returns the help text.
func (d *desc) Help() string { return d.help }

// LabelNames returns a copy of the declared label names.
func (d *desc) LabelNames() []string { return slices.Clone(d.labelNames) }

func (d *desc) checkLabelValues(kind MetricType, values []string) error {
	if len(values) != len(d.labelNames) {
		return fmt.Errorf("%w: %s %s expected %d labels, got %d", ErrLabelCountMismatch, kind, d.name, len(d.labelNames), len(values))
	}
	for i, v := range values {
		if !model.LabelValue(v).IsValid() {
			return fmt.Errorf("%w: %s=%q on %s", ErrInvalidLabelValue, d.labelNames[i], v, d.name)
		}
	}
	return nil
}

func (d *desc) family(typ MetricType) Family {
	return Family{
		Name:       d.name,
		Help:       d.help,
		Type:       typ,
		LabelNames: slices.Clone(d.labelNames),
	}
}

// seriesSet is the lazily grown mapping from label values to series state.
// Entries are never evicted; order keeps first-seen order for exposition.
type seriesSet[S any] struct {
	mu    sync.RWMutex
	byKey map[string]S
	order []S
}

func (s *seriesSet[S]) getOrCreate(values []string, create func(labelValues []string) S) S {
	key := labelsKey(values)
	s.mu.RLock()
	v, ok := s.byKey[key]
	s.mu.RUnlock()
	if ok {
		return v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Double-check after acquiring write lock
	if v, ok := s.byKey[key]; ok {
		return v
	}
	if s.byKey == nil {
		s.byKey = make(map[string]S)
	}
	v = create(slices.Clone(values))
	s.byKey[key] = v
	s.order = append(s.order, v)
	return v
}

func (s *seriesSet[S]) list() []S {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

// labelsKey generates a unique key for a set of label values.
// Values are length-prefixed so no separator can collide with label content.
func labelsKey(values []string) string {
	var b strings.Builder
	for _, v := range values {
		b.WriteString(strconv.Itoa(len(v)))
		b.WriteByte(':')
		b.WriteString(v)
	}
	return b.String()
}

// ValidateBuckets reports whether buckets can be used as histogram upper bounds.
// Bounds must be strictly ascending and not NaN. A trailing +Inf is allowed.
func ValidateBuckets(buckets []float64) error {
	for i, b := range buckets {
		if math.IsNaN(b) {
			return fmt.Errorf("%w: bucket %d is NaN", ErrInvalidBuckets, i)
		}
		if i > 0 && b <= buckets[i-1] {
			return fmt.Errorf("%w: bucket %d (%g) is not greater than %g", ErrInvalidBuckets, i, b, buckets[i-1])
		}
	}
	return nil
}
