// Package metrics provides the in-memory metrics registry scraped by Prometheus.
//
// Supported metric types:
//   - Counter: monotonically increasing value (e.g., commands executed)
//   - Gauge: value that can go up or down (e.g., guilds the bot is in)
//   - Histogram: distribution of values with cumulative buckets (e.g., command latency)
//
// A metric is registered once, during setup, with a fixed list of label
// names. Every concrete combination of label values is a series, created on
// first use by WithLabels and kept for the lifetime of the registry.
//
// # Concurrency
//
// Each series carries its own synchronization: counters and gauges are
// atomic, histograms use a short per-series mutex. Producers updating
// unrelated series never contend with each other.
//
// Snapshot copies the list of metrics and then reads every series on its
// own. Each series value in a Snapshot is a state that existed at or after
// the call began; two series are not guaranteed to come from the same
// instant.
//
// # Usage
//
//	registry := metrics.NewRegistry()
//
//	executed, err := registry.NewCounter("commands_executed_total", "Total executed commands", "class")
//	if err != nil {
//	    return err
//	}
//
//	series, err := executed.WithLabels("PlayCommand")
//	if err != nil {
//	    return err
//	}
//	series.Inc()
//
//	snap := registry.Snapshot()
//
// Rendering a Snapshot in the text exposition format lives in package
// exposition.
package metrics
