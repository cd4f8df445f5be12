package metrics

import (
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
)

func TestCounter(t *testing.T) {
	t.Run("without labels", func(t *testing.T) {
		r := NewRegistry()
		c, err := r.NewCounter("test_counter", "A test counter")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		_ = c.Inc()
		_ = c.Inc()
		_ = c.Add(3)

		f := c.collect()
		if len(f.Series) != 1 {
			t.Fatalf("expected 1 series, got %d", len(f.Series))
		}
		if f.Series[0].Value != 5 {
			t.Errorf("expected value 5, got %f", f.Series[0].Value)
		}
	})

	t.Run("with labels", func(t *testing.T) {
		r := NewRegistry()
		c, _ := r.NewCounter("http_requests", "Total HTTP requests", "method", "status")

		vec, err := c.WithLabels("GET", "200")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		vec.Inc()
		vec, _ = c.WithLabels("GET", "200")
		vec.Inc()
		vec, _ = c.WithLabels("POST", "201")
		_ = vec.Add(5)

		f := c.collect()
		if len(f.Series) != 2 {
			t.Fatalf("expected 2 series, got %d", len(f.Series))
		}
		if got := f.Value("GET", "200"); got != 2 {
			t.Errorf("expected GET/200=2, got %f", got)
		}
		if got := f.Value("POST", "201"); got != 5 {
			t.Errorf("expected POST/201=5, got %f", got)
		}
	})

	t.Run("labeled counter starts with no series", func(t *testing.T) {
		r := NewRegistry()
		c, _ := r.NewCounter("lazy_total", "Lazy", "class")
		if n := len(c.collect().Series); n != 0 {
			t.Errorf("expected no series before first use, got %d", n)
		}
	})

	t.Run("same label values return same series", func(t *testing.T) {
		r := NewRegistry()
		c, _ := r.NewCounter("cached_total", "Cached", "class")
		a, _ := c.WithLabels("PlayCommand")
		b, _ := c.WithLabels("PlayCommand")
		if a != b {
			t.Error("expected the cached series to be returned")
		}
	})

	t.Run("wrong label count returns error", func(t *testing.T) {
		r := NewRegistry()
		c, _ := r.NewCounter("test", "test", "label1", "label2")
		_, err := c.WithLabels("only_one")
		if !errors.Is(err, ErrLabelCountMismatch) {
			t.Errorf("expected ErrLabelCountMismatch, got %v", err)
		}
		if err := c.Inc(); !errors.Is(err, ErrLabelCountMismatch) {
			t.Errorf("expected ErrLabelCountMismatch from unlabeled Inc, got %v", err)
		}
	})

	t.Run("invalid utf-8 label value returns error", func(t *testing.T) {
		r := NewRegistry()
		c, _ := r.NewCounter("test", "test", "channel")
		if _, err := c.WithLabels("\xff"); !errors.Is(err, ErrInvalidLabelValue) {
			t.Errorf("expected ErrInvalidLabelValue, got %v", err)
		}
		g, _ := r.NewGauge("test_gauge", "test", "region")
		if err := g.Set(1); !errors.Is(err, ErrLabelCountMismatch) {
			t.Errorf("expected ErrLabelCountMismatch, got %v", err)
		}
		if _, err := g.WithLabels("eu\xc3"); !errors.Is(err, ErrInvalidLabelValue) {
			t.Errorf("expected ErrInvalidLabelValue from gauge, got %v", err)
		}
		h, _ := r.NewHistogram("test_hist", "test", nil, "class")
		if _, err := h.WithLabels("\xff\xfe"); !errors.Is(err, ErrInvalidLabelValue) {
			t.Errorf("expected ErrInvalidLabelValue from histogram, got %v", err)
		}

		f, ok := r.Snapshot().Family("test")
		if !ok || len(f.Series) != 0 {
			t.Errorf("rejected label value must not create a series, got %+v", f.Series)
		}
		if _, err := c.WithLabels("général"); err != nil {
			t.Errorf("valid utf-8 must be accepted, got %v", err)
		}
	})

	t.Run("negative add returns error", func(t *testing.T) {
		r := NewRegistry()
		c, _ := r.NewCounter("test", "test")
		if err := c.Add(-1); !errors.Is(err, ErrNegativeCounterValue) {
			t.Errorf("expected ErrNegativeCounterValue, got %v", err)
		}
		if err := c.Add(math.NaN()); !errors.Is(err, ErrNegativeCounterValue) {
			t.Errorf("expected ErrNegativeCounterValue for NaN, got %v", err)
		}
		if got := c.collect().Series[0].Value; got != 0 {
			t.Errorf("rejected delta must not change the value, got %f", got)
		}
	})

	t.Run("zero delta is allowed", func(t *testing.T) {
		r := NewRegistry()
		c, _ := r.NewCounter("test", "test")
		if err := c.Add(0); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestGauge(t *testing.T) {
	t.Run("without labels", func(t *testing.T) {
		r := NewRegistry()
		g, _ := r.NewGauge("test_gauge", "A test gauge")

		_ = g.Set(10)
		if v := g.collect().Series[0].Value; v != 10 {
			t.Errorf("expected value 10, got %f", v)
		}

		_ = g.Inc()
		if v := g.collect().Series[0].Value; v != 11 {
			t.Errorf("expected value 11, got %f", v)
		}

		_ = g.Dec()
		_ = g.Dec()
		if v := g.collect().Series[0].Value; v != 9 {
			t.Errorf("expected value 9, got %f", v)
		}

		_ = g.Add(-5)
		if v := g.collect().Series[0].Value; v != 4 {
			t.Errorf("expected value 4, got %f", v)
		}
	})

	t.Run("with labels", func(t *testing.T) {
		r := NewRegistry()
		g, _ := r.NewGauge("geo_tracker", "Guilds by region", "region")

		vec, err := g.WithLabels("eu-west")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		vec.Set(100)
		vec, _ = g.WithLabels("us-east")
		vec.Set(50)
		vec.Sub(20)
		vec, _ = g.WithLabels("eu-west")
		vec.Inc()

		f := g.collect()
		if len(f.Series) != 2 {
			t.Fatalf("expected 2 series, got %d", len(f.Series))
		}
		if got := f.Value("eu-west"); got != 101 {
			t.Errorf("expected eu-west=101, got %f", got)
		}
		if got := f.Value("us-east"); got != 30 {
			t.Errorf("expected us-east=30, got %f", got)
		}
	})

	t.Run("may go negative", func(t *testing.T) {
		r := NewRegistry()
		g, _ := r.NewGauge("signed", "Signed")
		_ = g.Dec()
		if v := g.collect().Series[0].Value; v != -1 {
			t.Errorf("expected -1, got %f", v)
		}
	})
}

func TestHistogram(t *testing.T) {
	t.Run("basic histogram", func(t *testing.T) {
		r := NewRegistry()
		h, err := r.NewHistogram("request_duration", "Request duration", []float64{0.1, 0.5, 1.0})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		_ = h.Observe(0.05) // 0.1 and up
		_ = h.Observe(0.3)  // 0.5 and up
		_ = h.Observe(0.8)  // 1.0 and up
		_ = h.Observe(2.0)  // +Inf only

		f := h.collect()
		if len(f.Buckets) != 4 || !math.IsInf(f.Buckets[3], 1) {
			t.Fatalf("expected 3 buckets plus +Inf, got %v", f.Buckets)
		}

		hv := f.Series[0].Histogram
		want := []uint64{1, 2, 3, 4}
		for i, c := range want {
			if hv.Counts[i] != c {
				t.Errorf("bucket le=%g: expected %d, got %d", f.Buckets[i], c, hv.Counts[i])
			}
		}

		expectedSum := 0.05 + 0.3 + 0.8 + 2.0
		if math.Abs(hv.Sum-expectedSum) > 1e-9 {
			t.Errorf("expected sum=%f, got %f", expectedSum, hv.Sum)
		}
		if hv.Count != 4 {
			t.Errorf("expected count=4, got %d", hv.Count)
		}
	})

	t.Run("value equal to bound lands in that bucket", func(t *testing.T) {
		r := NewRegistry()
		h, _ := r.NewHistogram("edge", "Edge", []float64{1, 2})
		_ = h.Observe(1)

		hv := h.collect().Series[0].Histogram
		if hv.Counts[0] != 1 || hv.Counts[1] != 1 || hv.Counts[2] != 1 {
			t.Errorf("expected all buckets to count the observation, got %v", hv.Counts)
		}
	})

	t.Run("every bound >= v counts, none below", func(t *testing.T) {
		bounds := []float64{0.01, 0.1, 1, 10, 100}
		r := NewRegistry()
		h, _ := r.NewHistogram("law", "Law", bounds)
		s, _ := h.WithLabels()

		rng := rand.New(rand.NewPCG(1, 2))
		var observed []float64
		for range 500 {
			v := rng.Float64() * 200
			observed = append(observed, v)
			s.Observe(v)
		}

		hv := s.Value()
		all := append(bounds, math.Inf(1))
		for i, bound := range all {
			var want uint64
			for _, v := range observed {
				if v <= bound {
					want++
				}
			}
			if hv.Counts[i] != want {
				t.Errorf("bucket le=%g: expected %d, got %d", bound, want, hv.Counts[i])
			}
		}
		if hv.Count != uint64(len(observed)) {
			t.Errorf("expected count %d, got %d", len(observed), hv.Count)
		}
	})

	t.Run("with labels", func(t *testing.T) {
		r := NewRegistry()
		h, _ := r.NewHistogram("exec_duration", "Execution duration", []float64{0.1, 1.0}, "class")

		vec, err := h.WithLabels("PlayCommand")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		vec.Observe(0.05)
		vec, _ = h.WithLabels("DanceCommand")
		vec.Observe(0.5)

		f := h.collect()
		if len(f.Series) != 2 {
			t.Fatalf("expected 2 series, got %d", len(f.Series))
		}
		if f.Series[0].LabelValues[0] != "PlayCommand" {
			t.Errorf("expected first-seen order, got %v", f.Series[0].LabelValues)
		}
	})

	t.Run("default buckets", func(t *testing.T) {
		r := NewRegistry()
		h, _ := r.NewHistogram("defaults", "Defaults", nil)
		if got := len(h.Buckets()); got != len(DefaultBuckets)+1 {
			t.Errorf("expected %d bounds, got %d", len(DefaultBuckets)+1, got)
		}
	})

	t.Run("trailing +Inf is not duplicated", func(t *testing.T) {
		r := NewRegistry()
		h, err := r.NewHistogram("inf", "Inf", []float64{1, math.Inf(1)})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := len(h.Buckets()); got != 2 {
			t.Errorf("expected 2 bounds, got %d", got)
		}
	})

	t.Run("malformed buckets are rejected", func(t *testing.T) {
		for name, buckets := range map[string][]float64{
			"descending": {1, 0.5},
			"duplicate":  {1, 1},
			"nan":        {0.1, math.NaN()},
		} {
			r := NewRegistry()
			if _, err := r.NewHistogram("bad", "Bad", buckets); !errors.Is(err, ErrInvalidBuckets) {
				t.Errorf("%s: expected ErrInvalidBuckets, got %v", name, err)
			}
		}
	})
}

func TestRegistry_Register(t *testing.T) {
	t.Run("duplicate name is rejected regardless of kind", func(t *testing.T) {
		r := NewRegistry()
		if _, err := r.NewCounter("dup_total", "first", "class"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := r.NewCounter("dup_total", "first", "class"); !errors.Is(err, ErrDuplicateMetric) {
			t.Errorf("same definition: expected ErrDuplicateMetric, got %v", err)
		}
		if _, err := r.NewGauge("dup_total", "other"); !errors.Is(err, ErrDuplicateMetric) {
			t.Errorf("other kind: expected ErrDuplicateMetric, got %v", err)
		}
		if _, err := r.NewHistogram("dup_total", "other", nil, "region"); !errors.Is(err, ErrDuplicateMetric) {
			t.Errorf("other labels: expected ErrDuplicateMetric, got %v", err)
		}
		if n := len(r.Metrics()); n != 1 {
			t.Errorf("expected 1 registered metric, got %d", n)
		}
	})

	t.Run("invalid names are rejected", func(t *testing.T) {
		r := NewRegistry()
		cases := []struct {
			name   string
			labels []string
		}{
			{"1starts_with_digit", nil},
			{"has-dash", nil},
			{"ok_name", []string{"bad-label"}},
			{"ok_name", []string{"__reserved"}},
			{"ok_name", []string{"class", "class"}},
		}
		for _, tc := range cases {
			if _, err := r.NewCounter(tc.name, "help", tc.labels...); !errors.Is(err, ErrInvalidName) {
				t.Errorf("NewCounter(%q, %v): expected ErrInvalidName, got %v", tc.name, tc.labels, err)
			}
		}
		if _, err := r.NewHistogram("h", "help", nil, "le"); !errors.Is(err, ErrInvalidName) {
			t.Errorf("histogram le label: expected ErrInvalidName, got %v", err)
		}
		if _, err := r.NewCounter("le_counter", "help", "le"); err != nil {
			t.Errorf("le is only reserved on histograms: %v", err)
		}
	})

	t.Run("registered label names are copied", func(t *testing.T) {
		r := NewRegistry()
		labels := []string{"class"}
		c, _ := r.NewCounter("copied_total", "Copied", labels...)
		labels[0] = "mutated"
		if got := c.LabelNames()[0]; got != "class" {
			t.Errorf("expected class, got %s", got)
		}
	})
}

func TestRegistry_Snapshot(t *testing.T) {
	t.Run("registration order and zero values", func(t *testing.T) {
		r := NewRegistry()
		_, _ = r.NewGauge("b_gauge", "B")
		_, _ = r.NewCounter("a_counter", "A")
		_, _ = r.NewHistogram("c_hist", "C", []float64{1}, "class")

		snap := r.Snapshot()
		want := []string{"b_gauge", "a_counter", "c_hist"}
		if len(snap.Families) != len(want) {
			t.Fatalf("expected %d families, got %d", len(want), len(snap.Families))
		}
		for i, name := range want {
			if snap.Families[i].Name != name {
				t.Errorf("family %d: expected %s, got %s", i, name, snap.Families[i].Name)
			}
		}
		if v := snap.Families[0].Series[0].Value; v != 0 {
			t.Errorf("expected zero gauge, got %f", v)
		}
		if n := len(snap.Families[2].Series); n != 0 {
			t.Errorf("expected no histogram series yet, got %d", n)
		}
	})

	t.Run("independent of later mutations", func(t *testing.T) {
		r := NewRegistry()
		c, _ := r.NewCounter("events_total", "Events", "class")
		s, _ := c.WithLabels("MessageReceivedEvent")
		s.Inc()

		before := r.Snapshot()
		s.Inc()
		_, _ = c.WithLabels("GuildJoinEvent")
		after := r.Snapshot()

		fb, _ := before.Family("events_total")
		fa, _ := after.Family("events_total")
		if fb.Value("MessageReceivedEvent") != 1 {
			t.Errorf("expected snapshot to keep 1, got %f", fb.Value("MessageReceivedEvent"))
		}
		if len(fb.Series) != 1 {
			t.Errorf("expected snapshot to keep 1 series, got %d", len(fb.Series))
		}
		if fa.Value("MessageReceivedEvent") != 2 || len(fa.Series) != 2 {
			t.Errorf("expected new snapshot to see both mutations, got %+v", fa.Series)
		}
	})

	t.Run("mutating a snapshot does not reach the registry", func(t *testing.T) {
		r := NewRegistry()
		c, _ := r.NewCounter("events_total", "Events", "class")
		_, _ = c.WithLabels("ReadyEvent")

		snap := r.Snapshot()
		snap.Families[0].Series[0].LabelValues[0] = "tampered"
		snap.Families[0].LabelNames[0] = "tampered"

		again := r.Snapshot()
		if again.Families[0].Series[0].LabelValues[0] != "ReadyEvent" {
			t.Error("snapshot shares label values with the registry")
		}
		if again.Families[0].LabelNames[0] != "class" {
			t.Error("snapshot shares label names with the registry")
		}
	})

	t.Run("family helpers", func(t *testing.T) {
		r := NewRegistry()
		g, _ := r.NewGauge("geo", "Geo", "region")
		for region, n := range map[string]float64{"eu": 3, "us": 4} {
			s, _ := g.WithLabels(region)
			s.Set(n)
		}
		f, ok := r.Snapshot().Family("geo")
		if !ok {
			t.Fatal("expected family geo")
		}
		if f.Sum() != 7 {
			t.Errorf("expected sum 7, got %f", f.Sum())
		}
		if f.Value("asia") != 0 {
			t.Error("expected 0 for an unseen series")
		}
		s, _ := f.Lookup("eu")
		if f.Label(s, "region") != "eu" || f.Label(s, "missing") != "" {
			t.Error("unexpected Label result")
		}
		if _, ok := r.Snapshot().Family("missing"); ok {
			t.Error("expected no family named missing")
		}
	})
}

func TestConcurrency(t *testing.T) {
	r := NewRegistry()
	c, _ := r.NewCounter("concurrent_counter", "Test counter", "worker")
	g, _ := r.NewGauge("concurrent_gauge", "Test gauge")
	h, _ := r.NewHistogram("concurrent_histogram", "Test histogram", []float64{1, 10, 100})

	var wg sync.WaitGroup
	var expectedSum atomic.Int64
	workers := 100
	iterations := 1000

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(uint64(id), 7))
			label := []string{"a", "b", "c"}[id%3]
			for j := 0; j < iterations; j++ {
				delta := rng.IntN(5)
				vec, _ := c.WithLabels(label)
				if err := vec.Add(float64(delta)); err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				expectedSum.Add(int64(delta))
				_ = g.Inc()
				_ = h.Observe(float64(j % 50))
			}
		}(i)
	}

	// Scrape while writers are running; every read must be internally consistent.
	stop := make(chan struct{})
	scraped := make(chan struct{})
	go func() {
		defer close(scraped)
		for {
			select {
			case <-stop:
				return
			default:
			}
			f, _ := r.Snapshot().Family("concurrent_histogram")
			for _, s := range f.Series {
				hv := s.Histogram
				if hv.Counts[len(hv.Counts)-1] != hv.Count {
					t.Errorf("torn histogram read: +Inf=%d count=%d", hv.Counts[len(hv.Counts)-1], hv.Count)
					return
				}
			}
		}
	}()

	wg.Wait()
	close(stop)
	<-scraped

	snap := r.Snapshot()

	cf, _ := snap.Family("concurrent_counter")
	if got, want := cf.Sum(), float64(expectedSum.Load()); got != want {
		t.Errorf("expected counter total %f, got %f", want, got)
	}

	expected := float64(workers * iterations)
	gf, _ := snap.Family("concurrent_gauge")
	if gf.Series[0].Value != expected {
		t.Errorf("expected gauge value %f, got %f", expected, gf.Series[0].Value)
	}

	hf, _ := snap.Family("concurrent_histogram")
	if hf.Series[0].Histogram.Count != uint64(expected) {
		t.Errorf("expected histogram count %f, got %d", expected, hf.Series[0].Histogram.Count)
	}
}

func TestConcurrentSeriesCreation(t *testing.T) {
	r := NewRegistry()
	c, _ := r.NewCounter("created_total", "Created", "class")

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, _ := c.WithLabels("SameCommand")
			s.Inc()
		}()
	}
	wg.Wait()

	f := c.collect()
	if len(f.Series) != 1 {
		t.Fatalf("expected 1 series, got %d", len(f.Series))
	}
	if f.Series[0].Value != 64 {
		t.Errorf("expected 64, got %f", f.Series[0].Value)
	}
}

func TestLabelsKey(t *testing.T) {
	if labelsKey([]string{"a\x00b", "c"}) == labelsKey([]string{"a", "b\x00c"}) {
		t.Error("label keys must not collide on embedded separators")
	}
	if labelsKey([]string{"ab", ""}) == labelsKey([]string{"a", "b"}) {
		t.Error("label keys must not collide on split points")
	}
}

func BenchmarkCounterInc(b *testing.B) {
	r := NewRegistry()
	c, _ := r.NewCounter("bench_counter", "Benchmark counter")
	s, _ := c.WithLabels()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			s.Inc()
		}
	})
}

func BenchmarkCounterWithLabels(b *testing.B) {
	r := NewRegistry()
	c, _ := r.NewCounter("bench_counter", "Benchmark counter", "method", "status")

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			vec, _ := c.WithLabels("GET", "200")
			vec.Inc()
		}
	})
}

func BenchmarkHistogramObserve(b *testing.B) {
	r := NewRegistry()
	h, _ := r.NewHistogram("bench_histogram", "Benchmark histogram", DefaultBuckets)
	s, _ := h.WithLabels()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			s.Observe(float64(i%1000) / 1000.0)
			i++
		}
	})
}
