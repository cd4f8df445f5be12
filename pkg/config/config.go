package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/avairebot/metricsd/pkg/logging"
	"github.com/avairebot/metricsd/pkg/metrics"
)

// DefaultPort is the port the metrics endpoint listens on unless configured.
const DefaultPort = 1256

// Configuration sources.
const (
	SourceDefault = "default"
	SourceFile    = "file"
	SourceEnv     = "env"
	SourceFlag    = "flag"
)

// Common errors for configuration loading.
var (
	ErrFileNotFound  = errors.New("configuration file not found")
	ErrEmptyFile     = errors.New("configuration file is empty")
	ErrInvalidYAML   = errors.New("invalid YAML")
	ErrInvalidEnv    = errors.New("invalid environment variable")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config is the complete metricsd configuration.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
	// LogFile, when set, receives a JSON copy of every log record.
	LogFile string `yaml:"logFile,omitempty"`

	// RuntimeInterval is how often Go runtime and process stats are refreshed.
	RuntimeInterval time.Duration `yaml:"runtimeInterval"`

	ReadTimeout       time.Duration `yaml:"readTimeout"`
	WriteTimeout      time.Duration `yaml:"writeTimeout"`
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`
	// MaxConnections caps concurrent scrape connections. 0 disables the cap.
	MaxConnections int `yaml:"maxConnections"`

	// ScrapeRateLimit caps requests per second across all clients. 0 disables it.
	ScrapeRateLimit float64 `yaml:"scrapeRateLimit"`
	// ScrapeBurst is how many requests may arrive at once under the limit.
	ScrapeBurst int `yaml:"scrapeBurst"`

	// ServerTelemetry publishes request counts and durations of the endpoint itself.
	ServerTelemetry bool `yaml:"serverTelemetry"`

	// TopCommands limits the command list in /stats.
	TopCommands int `yaml:"topCommands"`
	// ExecutionBuckets are the command execution histogram bounds in seconds.
	// Empty selects botmetrics.DefaultExecutionBuckets.
	ExecutionBuckets []float64 `yaml:"executionBuckets,flow,omitempty"`

	// Sources maps YAML keys to the layer that last set them.
	Sources map[string]string `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:              DefaultPort,
		LogLevel:          "info",
		LogFormat:         string(logging.FormatText),
		RuntimeInterval:   15 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		MaxConnections:    64,
		ServerTelemetry:   true,
		TopCommands:       10,
		Sources:           make(map[string]string),
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Set records that key was set by source.
func (c *Config) Set(key, source string) {
	if c.Sources == nil {
		c.Sources = make(map[string]string)
	}
	c.Sources[key] = source
}

// Source returns the layer that set key.
func (c *Config) Source(key string) string {
	if s, ok := c.Sources[key]; ok {
		return s
	}
	return SourceDefault
}

// LoadFile merges the YAML file at path into c. Keys missing from the file
// keep their current value; unknown keys are an error.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}
	return c.parseYAML(path, data)
}

func (c *Config) parseYAML(path string, data []byte) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w in %s: %w", ErrInvalidYAML, path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w in %s: %w", ErrInvalidYAML, path, err)
	}

	// Record which top-level keys the file set.
	if len(doc.Content) == 1 && doc.Content[0].Kind == yaml.MappingNode {
		m := doc.Content[0]
		for i := 0; i+1 < len(m.Content); i += 2 {
			c.Set(m.Content[i].Value, SourceFile)
		}
	}
	return nil
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Port < 0 || c.Port > 65535 {
		add("port %d out of range 0-65535", c.Port)
	}
	if !logging.ValidLevel(c.LogLevel) {
		add("unknown logLevel %q", c.LogLevel)
	}
	if !logging.ValidFormat(c.LogFormat) {
		add("unknown logFormat %q", c.LogFormat)
	}
	if c.RuntimeInterval <= 0 {
		add("runtimeInterval must be positive, got %s", c.RuntimeInterval)
	}
	for _, d := range []struct {
		key string
		val time.Duration
	}{
		{"readTimeout", c.ReadTimeout},
		{"writeTimeout", c.WriteTimeout},
		{"readHeaderTimeout", c.ReadHeaderTimeout},
		{"shutdownTimeout", c.ShutdownTimeout},
	} {
		if d.val < 0 {
			add("%s must not be negative, got %s", d.key, d.val)
		}
	}
	if c.MaxConnections < 0 {
		add("maxConnections must not be negative, got %d", c.MaxConnections)
	}
	if c.ScrapeRateLimit < 0 || math.IsNaN(c.ScrapeRateLimit) || math.IsInf(c.ScrapeRateLimit, 0) {
		add("scrapeRateLimit must be a finite non-negative number, got %v", c.ScrapeRateLimit)
	}
	if c.ScrapeBurst < 0 {
		add("scrapeBurst must not be negative, got %d", c.ScrapeBurst)
	}
	if c.TopCommands < 0 {
		add("topCommands must not be negative, got %d", c.TopCommands)
	}
	if len(c.ExecutionBuckets) > 0 {
		if err := metrics.ValidateBuckets(c.ExecutionBuckets); err != nil {
			add("executionBuckets: %v", err)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// LoggingConfig converts the log settings for pkg/logging.
func (c *Config) LoggingConfig(out io.Writer) logging.Config {
	return logging.Config{
		Level:  logging.ParseLevel(c.LogLevel),
		Format: logging.ParseFormat(c.LogFormat),
		Output: out,
	}
}

// YAML renders the resolved configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
