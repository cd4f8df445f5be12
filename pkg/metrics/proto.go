package metrics

import (
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/protobuf/proto"
)

func (t MetricType) protoType() dto.MetricType {
	switch t {
	case MetricTypeCounter:
		return dto.MetricType_COUNTER
	case MetricTypeGauge:
		return dto.MetricType_GAUGE
	case MetricTypeHistogram:
		return dto.MetricType_HISTOGRAM
	default:
		return dto.MetricType_UNTYPED
	}
}

// Proto converts the family to the Prometheus client_model representation.
// Labels keep their declared order.
func (f Family) Proto() *dto.MetricFamily {
	mf := &dto.MetricFamily{
		Name:   proto.String(f.Name),
		Type:   f.Type.protoType().Enum(),
		Metric: make([]*dto.Metric, 0, len(f.Series)),
	}
	if f.Help != "" {
		mf.Help = proto.String(f.Help)
	}

	for _, s := range f.Series {
		m := &dto.Metric{Label: make([]*dto.LabelPair, 0, len(f.LabelNames))}
		for i, name := range f.LabelNames {
			m.Label = append(m.Label, &dto.LabelPair{
				Name:  proto.String(name),
				Value: proto.String(s.LabelValues[i]),
			})
		}

		switch f.Type {
		case MetricTypeCounter:
			m.Counter = &dto.Counter{Value: proto.Float64(s.Value)}
		case MetricTypeGauge:
			m.Gauge = &dto.Gauge{Value: proto.Float64(s.Value)}
		case MetricTypeHistogram:
			hv := s.Histogram
			if hv == nil {
				hv = &HistogramValue{Counts: make([]uint64, len(f.Buckets))}
			}
			h := &dto.Histogram{
				SampleCount: proto.Uint64(hv.Count),
				SampleSum:   proto.Float64(hv.Sum),
				Bucket:      make([]*dto.Bucket, 0, len(f.Buckets)),
			}
			for i, bound := range f.Buckets {
				h.Bucket = append(h.Bucket, &dto.Bucket{
					UpperBound:      proto.Float64(bound),
					CumulativeCount: proto.Uint64(hv.Counts[i]),
				})
			}
			m.Histogram = h
		}
		mf.Metric = append(mf.Metric, m)
	}
	return mf
}

// Gather returns the current state of the registry as client_model families,
// in registration order.
func (r *Registry) Gather() []*dto.MetricFamily {
	snap := r.Snapshot()
	out := make([]*dto.MetricFamily, 0, len(snap.Families))
	for _, f := range snap.Families {
		out = append(out, f.Proto())
	}
	return out
}
