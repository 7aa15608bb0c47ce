package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tristan-jl/replay-memory/errors"
)

// DefaultEnvPrefix prefixes every environment override
const DefaultEnvPrefix = "REPLAY"

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: false,
		envPrefix:  DefaultEnvPrefix,
	}
}

// AddLayer adds a configuration file layer. Later layers override earlier ones.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// SetEnvPrefix changes the environment variable prefix
func (l *Loader) SetEnvPrefix(prefix string) {
	l.envPrefix = prefix
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	for _, path := range l.layers {
		raw, err := l.loadRaw(path)
		if err != nil {
			return nil, err
		}
		cfg, err = mergeFromMap(cfg, raw)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", "merge "+path)
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// loadRaw reads a JSON or YAML file into a generic map
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "Load", "read config")
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrParsingFailed, err),
				"Loader", "Load", "parse YAML "+path)
		}
	default:
		if err := validateJSONDepth(data); err != nil {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrParsingFailed, err),
				"Loader", "Load", "parse JSON "+path)
		}
		if err := decodeJSON(data, &raw); err != nil {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrParsingFailed, err),
				"Loader", "Load", "parse JSON "+path)
		}
	}

	if err := parseDurations(raw); err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "Load", "parse durations in "+path)
	}
	return raw, nil
}

// durationSuffixes marks keys whose string values are Go durations
var durationSuffixes = []string{"_wait", "_interval", "_timeout", "duration"}

func isDurationKey(key string) bool {
	for _, suffix := range durationSuffixes {
		if strings.HasSuffix(key, suffix) {
			return true
		}
	}
	return false
}

// parseDurations converts duration strings to nanoseconds for json unmarshaling
func parseDurations(data map[string]any) error {
	for k, v := range data {
		switch val := v.(type) {
		case map[string]any:
			if err := parseDurations(val); err != nil {
				return err
			}
		case string:
			if !isDurationKey(k) {
				continue
			}
			d, err := time.ParseDuration(val)
			if err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			data[k] = d.Nanoseconds()
		}
	}
	return nil
}

// decodeJSON keeps numbers as json.Number so large seeds survive the merge
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// mergeFromMap merges configuration from a raw map, only overriding fields present in the map
func mergeFromMap(base *Config, override map[string]any) (*Config, error) {
	if override == nil {
		return base, nil
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}

	var baseMap map[string]any
	if err := decodeJSON(baseJSON, &baseMap); err != nil {
		return nil, err
	}

	mergedJSON, err := json.Marshal(deepMergeMaps(baseMap, override))
	if err != nil {
		return nil, err
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}

		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}

		result[k] = v
	}

	return result
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	env := func(name string) (string, bool, error) {
		key := l.envPrefix + "_" + name
		val := os.Getenv(key)
		if err := validateEnvVar(key, val); err != nil {
			return "", false, errors.WrapInvalid(err, "Loader", "applyEnvOverrides", key)
		}
		return val, val != "", nil
	}
	envInt := func(name string, dst *int) error {
		val, ok, err := env(name)
		if err != nil || !ok {
			return err
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err),
				"Loader", "applyEnvOverrides", l.envPrefix+"_"+name)
		}
		*dst = n
		return nil
	}
	envString := func(name string, dst *string) error {
		val, ok, err := env(name)
		if err != nil || !ok {
			return err
		}
		*dst = val
		return nil
	}

	if err := envInt("BUFFER_CAPACITY", &cfg.Buffer.Capacity); err != nil {
		return err
	}
	if err := envInt("SERVICE_BATCH_SIZE", &cfg.Service.BatchSize); err != nil {
		return err
	}
	if err := envInt("METRICS_PORT", &cfg.Metrics.Port); err != nil {
		return err
	}

	if val, ok, err := env("NATS_URLS"); err != nil {
		return err
	} else if ok {
		cfg.NATS.URLs = strings.Split(val, ",")
	}

	for name, dst := range map[string]*string{
		"NATS_USERNAME":          &cfg.NATS.Username,
		"NATS_PASSWORD":          &cfg.NATS.Password,
		"NATS_TOKEN":             &cfg.NATS.Token,
		"SERVICE_INGEST_SUBJECT": &cfg.Service.IngestSubject,
		"SERVICE_SAMPLE_SUBJECT": &cfg.Service.SampleSubject,
		"SERVICE_BATCH_SUBJECT":  &cfg.Service.BatchSubject,
	} {
		if err := envString(name, dst); err != nil {
			return err
		}
	}

	if val, ok, err := env("DEMO_ENABLED"); err != nil {
		return err
	} else if ok {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err),
				"Loader", "applyEnvOverrides", l.envPrefix+"_DEMO_ENABLED")
		}
		cfg.Demo.Enabled = enabled
	}

	return nil
}
