package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/tristan-jl/replay-memory/errors"
)

// Config represents the complete replay-memory configuration
type Config struct {
	Version string        `json:"version,omitempty"`
	Buffer  BufferConfig  `json:"buffer"`
	NATS    NATSConfig    `json:"nats"`
	Service ServiceConfig `json:"service"`
	Metrics MetricsConfig `json:"metrics"`
	Log     LogConfig     `json:"log"`
	Demo    DemoConfig    `json:"demo"`
}

// BufferConfig sizes the replay buffer
type BufferConfig struct {
	Capacity int    `json:"capacity"`
	Name     string `json:"name,omitempty"` // Type name used when rendering
	Seed     uint64 `json:"seed,omitempty"` // 0 = non-deterministic sampling
}

// NATSConfig defines NATS connection settings
type NATSConfig struct {
	URLs           []string        `json:"urls,omitempty"`
	Name           string          `json:"name,omitempty"`
	MaxReconnects  int             `json:"max_reconnects,omitempty"`
	ReconnectWait  time.Duration   `json:"reconnect_wait,omitempty"`
	ConnectTimeout time.Duration   `json:"connect_timeout,omitempty"`
	Username       string          `json:"username,omitempty"`
	Password       string          `json:"password,omitempty"`
	Token          string          `json:"token,omitempty"`
	TLS            ClientTLSConfig `json:"tls"`
}

// ClientTLSConfig configures TLS towards NATS. The system CA bundle is always
// trusted; CAFiles are additional roots.
type ClientTLSConfig struct {
	Enabled            bool     `json:"enabled"`
	CAFiles            []string `json:"ca_files,omitempty"`
	CertFile           string   `json:"cert_file,omitempty"` // Client certificate for mTLS
	KeyFile            string   `json:"key_file,omitempty"`
	InsecureSkipVerify bool     `json:"insecure_skip_verify,omitempty"` // DEV/TEST ONLY
	MinVersion         string   `json:"min_version,omitempty"`          // "1.2" (default) or "1.3"
}

// ServerTLSConfig configures TLS for the metrics endpoint
type ServerTLSConfig struct {
	Enabled    bool   `json:"enabled"`
	CertFile   string `json:"cert_file,omitempty"`
	KeyFile    string `json:"key_file,omitempty"`
	MinVersion string `json:"min_version,omitempty"`
}

// ServiceConfig defines the replay service subjects and sampling limits
type ServiceConfig struct {
	IngestSubject string        `json:"ingest_subject"`
	SampleSubject string        `json:"sample_subject"`
	BatchSubject  string        `json:"batch_subject,omitempty"` // Empty disables batch publishing
	BatchSize     int           `json:"batch_size"`
	BatchInterval time.Duration `json:"batch_interval,omitempty"`
	MinFill       int           `json:"min_fill,omitempty"`
	MaxSampleSize int           `json:"max_sample_size"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool            `json:"enabled"`
	Port    int             `json:"port"`
	Path    string          `json:"path"`
	TLS     ServerTLSConfig `json:"tls"`
}

// LogConfig controls slog output
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// DemoConfig drives the self-contained producer/sampler loop
type DemoConfig struct {
	Enabled        bool          `json:"enabled"`
	Rate           float64       `json:"rate"` // Observations per second
	Burst          int           `json:"burst"`
	SampleInterval time.Duration `json:"sample_interval"`
	SampleSize     int           `json:"sample_size"`
	Duration       time.Duration `json:"duration,omitempty"` // 0 = run until signalled
}

// Default returns the built-in configuration every load starts from
func Default() *Config {
	return &Config{
		Buffer: BufferConfig{
			Capacity: 10000,
			Name:     "ReplayMemory",
		},
		NATS: NATSConfig{
			URLs:           []string{"nats://localhost:4222"},
			Name:           "replay-memory",
			MaxReconnects:  -1,
			ReconnectWait:  2 * time.Second,
			ConnectTimeout: 5 * time.Second,
		},
		Service: ServiceConfig{
			IngestSubject: "replay.ingest",
			SampleSubject: "replay.sample",
			BatchSize:     32,
			BatchInterval: time.Second,
			MaxSampleSize: 1024,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Demo: DemoConfig{
			Rate:           100,
			Burst:          10,
			SampleInterval: time.Second,
			SampleSize:     8,
		},
	}
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if c.Buffer.Capacity < 0 {
		return invalid("buffer.capacity must not be negative, got %d", c.Buffer.Capacity)
	}

	if len(c.NATS.URLs) == 0 && !c.Demo.Enabled {
		return invalid("nats.urls is required unless demo mode is enabled")
	}

	if err := validateSubject("service.ingest_subject", c.Service.IngestSubject, true); err != nil {
		return err
	}
	if err := validateSubject("service.sample_subject", c.Service.SampleSubject, false); err != nil {
		return err
	}
	if subjectMatches(c.Service.IngestSubject, c.Service.SampleSubject) {
		return invalid("service.sample_subject %q is covered by ingest_subject %q",
			c.Service.SampleSubject, c.Service.IngestSubject)
	}
	if c.Service.BatchSubject != "" {
		if err := validateSubject("service.batch_subject", c.Service.BatchSubject, false); err != nil {
			return err
		}
		// published batches would be ingested again as new observations
		if subjectMatches(c.Service.IngestSubject, c.Service.BatchSubject) {
			return invalid("service.batch_subject %q is covered by ingest_subject %q",
				c.Service.BatchSubject, c.Service.IngestSubject)
		}
		if c.Service.BatchInterval <= 0 {
			return invalid("service.batch_interval must be positive when batch_subject is set")
		}
	}
	if c.Service.BatchSize <= 0 {
		return invalid("service.batch_size must be positive, got %d", c.Service.BatchSize)
	}
	if c.Service.MaxSampleSize < c.Service.BatchSize {
		return invalid("service.max_sample_size (%d) must be at least batch_size (%d)",
			c.Service.MaxSampleSize, c.Service.BatchSize)
	}
	if c.Service.MinFill < 0 {
		return invalid("service.min_fill must not be negative, got %d", c.Service.MinFill)
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return invalid("metrics.port out of range: %d", c.Metrics.Port)
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return invalid("metrics.path must start with '/', got %q", c.Metrics.Path)
		}
		if c.Metrics.TLS.Enabled && (c.Metrics.TLS.CertFile == "" || c.Metrics.TLS.KeyFile == "") {
			return invalid("metrics.tls requires cert_file and key_file")
		}
		if err := validateTLSVersion("metrics.tls.min_version", c.Metrics.TLS.MinVersion); err != nil {
			return err
		}
	}

	if c.NATS.TLS.Enabled {
		if (c.NATS.TLS.CertFile == "") != (c.NATS.TLS.KeyFile == "") {
			return invalid("nats.tls cert_file and key_file must be set together")
		}
		if err := validateTLSVersion("nats.tls.min_version", c.NATS.TLS.MinVersion); err != nil {
			return err
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return invalid("log.format must be json or text, got %q", c.Log.Format)
	}

	if c.Demo.Enabled {
		if c.Demo.Rate <= 0 {
			return invalid("demo.rate must be positive, got %v", c.Demo.Rate)
		}
		if c.Demo.SampleInterval <= 0 {
			return invalid("demo.sample_interval must be positive")
		}
	}

	return nil
}

func validateTLSVersion(field, version string) error {
	switch version {
	case "", "1.2", "1.3":
		return nil
	default:
		return invalid("%s must be 1.2 or 1.3, got %q", field, version)
	}
}

func invalid(format string, args ...any) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: %s", errors.ErrInvalidConfig, fmt.Sprintf(format, args...)),
		"Config", "Validate", "config check")
}

// validateSubject checks a NATS subject. Wildcards are only meaningful for
// subscriptions, so they are rejected for subjects the service publishes or
// answers on.
func validateSubject(field, subject string, allowWildcards bool) error {
	if subject == "" {
		return invalid("%s is required", field)
	}

	tokens := strings.Split(subject, ".")
	for i, token := range tokens {
		if token == "" {
			return invalid("%s %q has an empty token", field, subject)
		}
		if token == "*" || token == ">" {
			if !allowWildcards {
				return invalid("%s %q must not contain wildcards", field, subject)
			}
			if token == ">" && i != len(tokens)-1 {
				return invalid("%s %q: '>' must be the last token", field, subject)
			}
			continue
		}
		for _, r := range token {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
				return invalid("%s %q contains invalid character %q", field, subject, r)
			}
		}
	}
	return nil
}

// subjectMatches reports whether NATS would deliver a message on the literal
// subject to a subscription on pattern.
func subjectMatches(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")
	for i, tok := range pt {
		if tok == ">" {
			return len(st) > i
		}
		if i >= len(st) || (tok != "*" && tok != st[i]) {
			return false
		}
	}
	return len(pt) == len(st)
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return Default()
	}

	clone := *c
	clone.NATS.URLs = append([]string(nil), c.NATS.URLs...)
	clone.NATS.TLS.CAFiles = append([]string(nil), c.NATS.TLS.CAFiles...)
	return &clone
}

// String returns a JSON representation of the config with credentials masked
func (c *Config) String() string {
	masked := c.Clone()
	if masked.NATS.Password != "" {
		masked.NATS.Password = "****"
	}
	if masked.NATS.Token != "" {
		masked.NATS.Token = "****"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}
