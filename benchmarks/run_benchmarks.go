// Package main runs the hot-path benchmarks and outputs results to JSON/Markdown.
// Run with: go run benchmarks/run_benchmarks.go
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// BenchmarkResults holds all benchmark data
type BenchmarkResults struct {
	Timestamp   string             `json:"timestamp"`
	Environment Environment        `json:"environment"`
	Packages    map[string]Package `json:"packages"`
	Summary     Summary            `json:"summary"`
}

type Environment struct {
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	CPU       string `json:"cpu"`
	NumCPU    int    `json:"num_cpu"`
	GoVersion string `json:"go_version"`
}

type Package struct {
	Path       string      `json:"path"`
	Benchmarks []Benchmark `json:"benchmarks"`
}

type Benchmark struct {
	Name        string  `json:"name"`
	NsPerOp     float64 `json:"ns_per_op"`
	OpsPerSec   float64 `json:"ops_per_sec"`
	BytesPerOp  int64   `json:"bytes_per_op"`
	AllocsPerOp int64   `json:"allocs_per_op"`
}

// Summary holds the numbers a scrape depends on.
type Summary struct {
	CounterIncNs     float64 `json:"counter_inc_ns"`
	HistogramObserve float64 `json:"histogram_observe_ns"`
	RenderNs         float64 `json:"render_ns"`
	ScrapeNs         float64 `json:"scrape_ns"`
}

// suites maps a report section to the package it benchmarks.
var suites = map[string]string{
	"metrics":    "./pkg/metrics/",
	"exposition": "./pkg/exposition/",
	"server":     "./pkg/server/",
}

func main() {
	fmt.Println("==========================================")
	fmt.Println("   METRICSD BENCHMARK SUITE")
	fmt.Println("==========================================")
	fmt.Println()

	results := BenchmarkResults{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Environment: Environment{
			OS:        runtime.GOOS,
			Arch:      runtime.GOARCH,
			CPU:       getCPUInfo(),
			NumCPU:    runtime.NumCPU(),
			GoVersion: runtime.Version(),
		},
		Packages: make(map[string]Package),
	}

	for _, name := range sortedKeys(suites) {
		fmt.Printf("Running %s benchmarks...\n", name)
		results.Packages[name] = Package{Path: suites[name], Benchmarks: runBenchmarks(suites[name])}
	}

	results.Summary = calculateSummary(results.Packages)

	if err := os.MkdirAll("benchmarks/results", 0755); err != nil {
		fmt.Printf("Error creating results directory: %v\n", err)
		os.Exit(1)
	}

	jsonPath := filepath.Join("benchmarks", "results", "latest.json")
	if err := writeJSON(results, jsonPath); err != nil {
		fmt.Printf("Error writing JSON: %v\n", err)
	} else {
		fmt.Printf("\nJSON results: %s\n", jsonPath)
	}

	mdPath := filepath.Join("benchmarks", "results", "LATEST.md")
	if err := writeMarkdown(results, mdPath); err != nil {
		fmt.Printf("Error writing Markdown: %v\n", err)
	} else {
		fmt.Printf("Markdown results: %s\n", mdPath)
	}

	printSummary(results)
}

func getCPUInfo() string {
	if runtime.GOOS == "linux" {
		data, err := os.ReadFile("/proc/cpuinfo")
		if err == nil {
			for _, line := range strings.Split(string(data), "\n") {
				if strings.HasPrefix(line, "model name") {
					parts := strings.SplitN(line, ":", 2)
					if len(parts) == 2 {
						return strings.TrimSpace(parts[1])
					}
				}
			}
		}
	}
	return "unknown"
}

func runBenchmarks(pkg string) []Benchmark {
	cmd := exec.Command("go", "test", "-run=^$", "-bench=.", "-benchtime=2s", "-benchmem", pkg)
	output, _ := cmd.CombinedOutput()

	return parseBenchmarkOutput(string(output))
}

var benchLine = regexp.MustCompile(`(Benchmark[\w/]+)-\d+\s+(\d+)\s+([\d.]+)\s+ns/op\s+(\d+)\s+B/op\s+(\d+)\s+allocs/op`)

func parseBenchmarkOutput(output string) []Benchmark {
	var benchmarks []Benchmark

	for _, match := range benchLine.FindAllStringSubmatch(output, -1) {
		nsPerOp, _ := strconv.ParseFloat(match[3], 64)
		bytesPerOp, _ := strconv.ParseInt(match[4], 10, 64)
		allocsPerOp, _ := strconv.ParseInt(match[5], 10, 64)

		opsPerSec := 0.0
		if nsPerOp > 0 {
			opsPerSec = 1e9 / nsPerOp
		}

		benchmarks = append(benchmarks, Benchmark{
			Name:        match[1],
			NsPerOp:     nsPerOp,
			OpsPerSec:   opsPerSec,
			BytesPerOp:  bytesPerOp,
			AllocsPerOp: allocsPerOp,
		})
	}

	return benchmarks
}

func calculateSummary(packages map[string]Package) Summary {
	var summary Summary
	for _, pkg := range packages {
		for _, b := range pkg.Benchmarks {
			switch b.Name {
			case "BenchmarkCounterInc":
				summary.CounterIncNs = b.NsPerOp
			case "BenchmarkHistogramObserve":
				summary.HistogramObserve = b.NsPerOp
			case "BenchmarkRenderText":
				summary.RenderNs = b.NsPerOp
			case "BenchmarkServer_Metrics":
				summary.ScrapeNs = b.NsPerOp
			}
		}
	}
	return summary
}

func writeJSON(results BenchmarkResults, path string) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func writeMarkdown(results BenchmarkResults, path string) error {
	var sb strings.Builder
	title := cases.Title(language.English)

	sb.WriteString("# metricsd Benchmark Results\n\n")
	fmt.Fprintf(&sb, "**Generated**: %s\n\n", results.Timestamp)
	sb.WriteString("## Environment\n\n")
	fmt.Fprintf(&sb, "- **OS**: %s/%s\n", results.Environment.OS, results.Environment.Arch)
	fmt.Fprintf(&sb, "- **CPU**: %s (%d cores)\n", results.Environment.CPU, results.Environment.NumCPU)
	fmt.Fprintf(&sb, "- **Go**: %s\n\n", results.Environment.GoVersion)

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Operation | ns/op |\n")
	sb.WriteString("|-----------|-------|\n")
	fmt.Fprintf(&sb, "| Counter increment | %.1f |\n", results.Summary.CounterIncNs)
	fmt.Fprintf(&sb, "| Histogram observe | %.1f |\n", results.Summary.HistogramObserve)
	fmt.Fprintf(&sb, "| Render text | %.0f |\n", results.Summary.RenderNs)
	fmt.Fprintf(&sb, "| Scrape /metrics | %.0f |\n\n", results.Summary.ScrapeNs)

	for _, name := range sortedKeys(results.Packages) {
		pkg := results.Packages[name]
		fmt.Fprintf(&sb, "## %s\n\n", title.String(name))
		sb.WriteString("| Benchmark | ops/sec | ns/op | B/op | allocs/op |\n")
		sb.WriteString("|-----------|---------|-------|------|----------|\n")
		for _, b := range pkg.Benchmarks {
			fmt.Fprintf(&sb, "| %s | %.0f | %.0f | %d | %d |\n",
				b.Name, b.OpsPerSec, b.NsPerOp, b.BytesPerOp, b.AllocsPerOp)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Reproducing\n\n")
	sb.WriteString("```bash\n")
	sb.WriteString("go run benchmarks/run_benchmarks.go\n")
	sb.WriteString("# Or a single package:\n")
	for _, name := range sortedKeys(suites) {
		fmt.Fprintf(&sb, "go test -run='^$' -bench=. -benchmem %s\n", suites[name])
	}
	sb.WriteString("```\n")

	return os.WriteFile(path, []byte(sb.String()), 0644)
}

func printSummary(results BenchmarkResults) {
	fmt.Println()
	fmt.Println("==========================================")
	fmt.Println("              SUMMARY")
	fmt.Println("==========================================")
	fmt.Printf("Counter:   %.1fns per increment\n", results.Summary.CounterIncNs)
	fmt.Printf("Histogram: %.1fns per observation\n", results.Summary.HistogramObserve)
	fmt.Printf("Render:    %.2fμs per snapshot\n", results.Summary.RenderNs/1000)
	fmt.Printf("Scrape:    %.2fμs per request\n", results.Summary.ScrapeNs/1000)
	fmt.Println("==========================================")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
