package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Environment variable names
const (
	EnvConfig            = "METRICSD_CONFIG"
	EnvHost              = "METRICSD_HOST"
	EnvPort              = "METRICSD_PORT"
	EnvLogLevel          = "METRICSD_LOG_LEVEL"
	EnvLogFormat         = "METRICSD_LOG_FORMAT"
	EnvLogFile           = "METRICSD_LOG_FILE"
	EnvRuntimeInterval   = "METRICSD_RUNTIME_INTERVAL"
	EnvReadTimeout       = "METRICSD_READ_TIMEOUT"
	EnvWriteTimeout      = "METRICSD_WRITE_TIMEOUT"
	EnvReadHeaderTimeout = "METRICSD_READ_HEADER_TIMEOUT"
	EnvShutdownTimeout   = "METRICSD_SHUTDOWN_TIMEOUT"
	EnvMaxConnections    = "METRICSD_MAX_CONNECTIONS"
	EnvScrapeRateLimit   = "METRICSD_SCRAPE_RATE_LIMIT"
	EnvScrapeBurst       = "METRICSD_SCRAPE_BURST"
	EnvServerTelemetry   = "METRICSD_SERVER_TELEMETRY"
	EnvTopCommands       = "METRICSD_TOP_COMMANDS"
	EnvExecutionBuckets  = "METRICSD_EXECUTION_BUCKETS"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

type envBinding struct {
	env   string
	key   string
	apply func(c *Config, v string) error
}

var envBindings = []envBinding{
	{EnvHost, "host", func(c *Config, v string) error { c.Host = v; return nil }},
	{EnvPort, "port", intField(func(c *Config) *int { return &c.Port })},
	{EnvLogLevel, "logLevel", func(c *Config, v string) error { c.LogLevel = v; return nil }},
	{EnvLogFormat, "logFormat", func(c *Config, v string) error { c.LogFormat = v; return nil }},
	{EnvLogFile, "logFile", func(c *Config, v string) error { c.LogFile = v; return nil }},
	{EnvRuntimeInterval, "runtimeInterval", durationField(func(c *Config) *time.Duration { return &c.RuntimeInterval })},
	{EnvReadTimeout, "readTimeout", durationField(func(c *Config) *time.Duration { return &c.ReadTimeout })},
	{EnvWriteTimeout, "writeTimeout", durationField(func(c *Config) *time.Duration { return &c.WriteTimeout })},
	{EnvReadHeaderTimeout, "readHeaderTimeout", durationField(func(c *Config) *time.Duration { return &c.ReadHeaderTimeout })},
	{EnvShutdownTimeout, "shutdownTimeout", durationField(func(c *Config) *time.Duration { return &c.ShutdownTimeout })},
	{EnvMaxConnections, "maxConnections", intField(func(c *Config) *int { return &c.MaxConnections })},
	{EnvScrapeRateLimit, "scrapeRateLimit", func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		c.ScrapeRateLimit = f
		return nil
	}},
	{EnvScrapeBurst, "scrapeBurst", intField(func(c *Config) *int { return &c.ScrapeBurst })},
	{EnvServerTelemetry, "serverTelemetry", func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		c.ServerTelemetry = b
		return nil
	}},
	{EnvTopCommands, "topCommands", intField(func(c *Config) *int { return &c.TopCommands })},
	{EnvExecutionBuckets, "executionBuckets", func(c *Config, v string) error {
		buckets, err := ParseBuckets(v)
		if err != nil {
			return err
		}
		c.ExecutionBuckets = buckets
		return nil
	}},
}

// ApplyEnv overrides c with every METRICSD_* variable lookup finds. Empty
// values are ignored. A value that does not parse is an error naming the variable.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	for _, b := range envBindings {
		v, ok := lookup(b.env)
		if !ok || v == "" {
			continue
		}
		if err := b.apply(c, strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("%w %s=%q: %w", ErrInvalidEnv, b.env, v, err)
		}
		c.Set(b.key, SourceEnv)
	}
	return nil
}

// ParseBuckets parses a comma separated list of bucket bounds.
func ParseBuckets(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func intField(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func durationField(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}
