package metrics

import (
	"os"
	"runtime"
	"runtime/pprof"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// RuntimeCollector collects Go runtime and process metrics into a registry.
type RuntimeCollector struct {
	// Go runtime gauges
	goroutines    *Gauge
	threads       *Gauge
	heapAlloc     *Gauge
	heapSys       *Gauge
	heapIdle      *Gauge
	heapInuse     *Gauge
	heapObjects   *Gauge
	stackInuse    *Gauge
	gcPauseNs     *Gauge
	gcLastPauseNs *Gauge
	numGC         *Gauge
	goInfo        *Gauge

	// Process gauges
	cpuSeconds    *Gauge
	residentBytes *Gauge
	virtualBytes  *Gauge
	openFDs       *Gauge
	startTime     *Gauge
	uptime        *Gauge

	// nil when the platform does not expose the current process
	proc    *process.Process
	started time.Time
}

// NewRuntimeCollector creates a new runtime metrics collector and registers its metrics.
func NewRuntimeCollector(r Registerer) (*RuntimeCollector, error) {
	rc := &RuntimeCollector{started: time.Now()}

	gauges := []struct {
		dst    **Gauge
		name   string
		help   string
		labels []string
	}{
		{&rc.goroutines, "go_goroutines", "Number of goroutines that currently exist", nil},
		{&rc.threads, "go_threads", "Number of OS threads created", nil},
		{&rc.heapAlloc, "go_memstats_heap_alloc_bytes", "Number of heap bytes allocated and still in use", nil},
		{&rc.heapSys, "go_memstats_heap_sys_bytes", "Number of heap bytes obtained from system", nil},
		{&rc.heapIdle, "go_memstats_heap_idle_bytes", "Number of heap bytes waiting to be used", nil},
		{&rc.heapInuse, "go_memstats_heap_inuse_bytes", "Number of heap bytes that are in use", nil},
		{&rc.heapObjects, "go_memstats_heap_objects", "Number of allocated heap objects", nil},
		{&rc.stackInuse, "go_memstats_stack_inuse_bytes", "Number of bytes in use by the stack allocator", nil},
		{&rc.gcPauseNs, "go_gc_duration_seconds", "Total GC pause duration in seconds", nil},
		{&rc.gcLastPauseNs, "go_gc_last_pause_seconds", "Duration of the last GC pause in seconds", nil},
		{&rc.numGC, "go_gc_cycles_total", "Total number of completed GC cycles", nil},
		{&rc.goInfo, "go_info", "Information about the Go environment", []string{"version"}},
		{&rc.cpuSeconds, "process_cpu_seconds_total", "Total user and system CPU time spent in seconds", nil},
		{&rc.residentBytes, "process_resident_memory_bytes", "Resident memory size in bytes", nil},
		{&rc.virtualBytes, "process_virtual_memory_bytes", "Virtual memory size in bytes", nil},
		{&rc.openFDs, "process_open_fds", "Number of open file descriptors", nil},
		{&rc.startTime, "process_start_time_seconds", "Start time of the process since unix epoch in seconds", nil},
		{&rc.uptime, "metricsd_uptime_seconds", "Time since the metrics subsystem was set up in seconds", nil},
	}
	for _, g := range gauges {
		gauge, err := r.NewGauge(g.name, g.help, g.labels...)
		if err != nil {
			return nil, err
		}
		*g.dst = gauge
	}

	// Set static info
	if vec, err := rc.goInfo.WithLabels(runtime.Version()); err == nil {
		vec.Set(1)
	}

	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		rc.proc = p
		if ms, err := p.CreateTime(); err == nil {
			_ = rc.startTime.Set(float64(ms) / 1e3)
		}
	}

	return rc, nil
}

// Collect updates all runtime metrics with current values.
// Call this periodically (e.g., every few seconds) to keep metrics current.
func (rc *RuntimeCollector) Collect() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	_ = rc.uptime.Set(time.Since(rc.started).Seconds())

	_ = rc.goroutines.Set(float64(runtime.NumGoroutine()))
	if numThreads, ok := getNumThreads(); ok {
		_ = rc.threads.Set(float64(numThreads))
	}

	_ = rc.heapAlloc.Set(float64(mem.HeapAlloc))
	_ = rc.heapSys.Set(float64(mem.HeapSys))
	_ = rc.heapIdle.Set(float64(mem.HeapIdle))
	_ = rc.heapInuse.Set(float64(mem.HeapInuse))
	_ = rc.heapObjects.Set(float64(mem.HeapObjects))
	_ = rc.stackInuse.Set(float64(mem.StackInuse))

	// PauseTotalNs is cumulative; the PauseNs ring buffer wraps after 256 entries.
	_ = rc.gcPauseNs.Set(float64(mem.PauseTotalNs) / 1e9)
	if mem.NumGC > 0 {
		lastPause := mem.PauseNs[(mem.NumGC-1)%256]
		_ = rc.gcLastPauseNs.Set(float64(lastPause) / 1e9)
	}
	_ = rc.numGC.Set(float64(mem.NumGC))

	rc.collectProcess()
}

// collectProcess reads OS-level stats. Anything the platform can't report is skipped.
func (rc *RuntimeCollector) collectProcess() {
	if rc.proc == nil {
		return
	}
	if times, err := rc.proc.Times(); err == nil {
		_ = rc.cpuSeconds.Set(times.User + times.System)
	}
	if mi, err := rc.proc.MemoryInfo(); err == nil {
		_ = rc.residentBytes.Set(float64(mi.RSS))
		_ = rc.virtualBytes.Set(float64(mi.VMS))
	}
	if fds, err := rc.proc.NumFDs(); err == nil {
		_ = rc.openFDs.Set(float64(fds))
	}
}

// getNumThreads returns the number of OS threads via the pprof
// "threadcreate" profile, which tracks threads created by the runtime.
func getNumThreads() (int, bool) {
	p := pprof.Lookup("threadcreate")
	if p == nil {
		return 0, false
	}
	return p.Count(), true
}

// StartCollector starts a goroutine that periodically collects runtime metrics.
// interval must be positive. Returns a stop function to cancel the collection;
// calling it more than once is safe.
func (rc *RuntimeCollector) StartCollector(interval time.Duration) func() {
	done := make(chan struct{})
	exited := make(chan struct{})

	go func() {
		defer close(exited)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		// Collect immediately
		rc.Collect()

		for {
			select {
			case <-ticker.C:
				rc.Collect()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-exited
		})
	}
}
