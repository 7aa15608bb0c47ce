package main

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestParseFlags_Defaults(t *testing.T) {
	cfg, err := parseFlags(newFlagSet(), nil)
	require.NoError(t, err)

	assert.Empty(t, cfg.ConfigPath)
	assert.Empty(t, cfg.LogLevel)
	assert.False(t, cfg.Demo)
	assert.Equal(t, 0, cfg.SampleSize)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestParseFlags_Values(t *testing.T) {
	cfg, err := parseFlags(newFlagSet(), []string{
		"-c", "replay.yaml",
		"--log-format=text",
		"--debug",
		"--sample=16",
		"--shutdown-timeout=3s",
	})
	require.NoError(t, err)

	assert.Equal(t, "replay.yaml", cfg.ConfigPath)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel, "--debug forces debug level")
	assert.Equal(t, 16, cfg.SampleSize)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
}

func TestParseFlags_EnvFallback(t *testing.T) {
	t.Setenv("REPLAY_CONFIG", "/etc/replay.json")
	t.Setenv("REPLAY_LOG_LEVEL", "warn")
	t.Setenv("REPLAY_DEMO", "true")
	t.Setenv("REPLAY_SHUTDOWN_TIMEOUT", "not-a-duration")

	cfg, err := parseFlags(newFlagSet(), nil)
	require.NoError(t, err)

	assert.Equal(t, "/etc/replay.json", cfg.ConfigPath)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.Demo)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout, "unparseable env falls back to default")
}

func TestParseFlags_Unknown(t *testing.T) {
	_, err := parseFlags(newFlagSet(), []string{"--no-such-flag"})
	assert.Error(t, err)
}

func TestValidateFlags(t *testing.T) {
	existing := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(existing, []byte(`{}`), 0o600))

	valid := func() *CLIConfig {
		return &CLIConfig{ShutdownTimeout: time.Second}
	}

	tests := []struct {
		name    string
		modify  func(*CLIConfig)
		wantErr string
	}{
		{"defaults", func(*CLIConfig) {}, ""},
		{"existing config", func(c *CLIConfig) { c.ConfigPath = existing }, ""},
		{"missing config", func(c *CLIConfig) { c.ConfigPath = existing + ".missing" }, "config file not found"},
		{"bad level", func(c *CLIConfig) { c.LogLevel = "trace" }, "invalid log level"},
		{"bad format", func(c *CLIConfig) { c.LogFormat = "xml" }, "invalid log format"},
		{"negative sample", func(c *CLIConfig) { c.SampleSize = -1 }, "invalid sample size"},
		{"demo and sample", func(c *CLIConfig) { c.Demo = true; c.SampleSize = 4 }, "mutually exclusive"},
		{"zero shutdown", func(c *CLIConfig) { c.ShutdownTimeout = 0 }, "invalid shutdown timeout"},
		{"version skips checks", func(c *CLIConfig) { c.ShowVersion = true; c.LogLevel = "trace" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			err := validateFlags(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("REPLAY_TEST_STRING", "value")
	t.Setenv("REPLAY_TEST_BOOL", "yes")
	t.Setenv("REPLAY_TEST_DURATION", "250ms")

	assert.Equal(t, "value", getEnv("REPLAY_TEST_STRING", "default"))
	assert.Equal(t, "default", getEnv("REPLAY_TEST_UNSET", "default"))
	assert.True(t, getEnvBool("REPLAY_TEST_BOOL_UNSET", true))
	assert.False(t, getEnvBool("REPLAY_TEST_BOOL", false), "unparseable bool keeps default")
	assert.Equal(t, 250*time.Millisecond, getEnvDuration("REPLAY_TEST_DURATION", time.Second))
}
