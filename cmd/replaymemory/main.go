// Package main implements the replay-memory binary. It serves a shared replay
// buffer over NATS, runs a self-contained demo, or queries a running service
// for a sample.
package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tristan-jl/replay-memory/config"
	"github.com/tristan-jl/replay-memory/errors"
	"github.com/tristan-jl/replay-memory/health"
	"github.com/tristan-jl/replay-memory/metric"
	"github.com/tristan-jl/replay-memory/natsclient"
	"github.com/tristan-jl/replay-memory/pkg/buffer"
	"github.com/tristan-jl/replay-memory/pkg/tlsutil"
	"github.com/tristan-jl/replay-memory/replay"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "replay-memory"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:], os.Stdout); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	cliCfg, err := parseFlags(fs, args)
	if err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("invalid flags: %w", err)
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		_, _ = fmt.Fprintf(stdout, "%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		fs.SetOutput(stdout)
		printDetailedHelp(fs)
		return nil
	}

	cfg, err := loadConfig(cliCfg)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		_, _ = fmt.Fprintln(stdout, cfg.String())
		return nil
	}

	logger := setupLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cliCfg.SampleSize > 0 {
		return runSampleQuery(ctx, cfg, cliCfg.SampleSize, stdout, logger)
	}

	logger.Info("Starting replay memory",
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath,
		"capacity", cfg.Buffer.Capacity,
		"demo", cfg.Demo.Enabled)

	registry := metric.NewMetricsRegistry()
	buf, err := newBuffer(cfg.Buffer, registry)
	if err != nil {
		return err
	}

	monitor := health.NewMonitor()
	g, gctx := errgroup.WithContext(ctx)

	var metricsServer *metric.Server
	if cfg.Metrics.Enabled {
		metricsServer = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
		serverTLS, err := tlsutil.LoadServerTLSConfig(cfg.Metrics.TLS)
		if err != nil {
			return fmt.Errorf("metrics TLS: %w", err)
		}
		metricsServer.SetTLSConfig(serverTLS)
		metricsServer.SetHealthCheck(func() health.Status {
			return monitor.AggregateHealth(appName)
		})
		g.Go(func() error {
			logger.Info("Metrics server listening", "address", metricsServer.Address())
			return metricsServer.Start()
		})
	}

	g.Go(func() error {
		defer stopMetrics(metricsServer, cliCfg.ShutdownTimeout, logger)

		if cfg.Demo.Enabled {
			d := newDemo(cfg.Demo, buf, logger)
			monitor.Register("demo", d.health)
			return d.run(gctx)
		}
		return serve(gctx, cfg, buf, registry, monitor, cliCfg.ShutdownTimeout, logger)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Replay memory shutdown complete")
	return nil
}

// loadConfig layers the optional config file over defaults, then applies
// environment and flag overrides.
func loadConfig(cliCfg *CLIConfig) (*config.Config, error) {
	loader := config.NewLoader()
	if cliCfg.ConfigPath != "" {
		loader.AddLayer(cliCfg.ConfigPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cliCfg.LogLevel != "" {
		cfg.Log.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Log.Format = cliCfg.LogFormat
	}
	if cliCfg.Demo {
		cfg.Demo.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newBuffer(cfg config.BufferConfig, registry *metric.MetricsRegistry) (*buffer.Synchronized[replay.Observation], error) {
	opts := []buffer.Option[replay.Observation]{
		buffer.WithName[replay.Observation](cfg.Name),
		buffer.WithMetrics[replay.Observation](registry, "replay_buffer"),
	}
	if cfg.Seed != 0 {
		opts = append(opts, buffer.WithSeed[replay.Observation](cfg.Seed))
	}

	buf, err := buffer.NewSynchronizedBuffer(cfg.Capacity, opts...)
	if err != nil {
		return nil, fmt.Errorf("create buffer: %w", err)
	}
	return buf, nil
}

func newNATSClient(cfg config.NATSConfig, metrics *metric.Metrics, logger *slog.Logger) (*natsclient.Client, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithLogger(logger),
		natsclient.WithName(cfg.Name),
		natsclient.WithReconnect(cfg.MaxReconnects, cfg.ReconnectWait),
		natsclient.WithTimeouts(natsclient.Timeouts{Connect: cfg.ConnectTimeout}),
		natsclient.WithAuth(natsclient.Auth{
			Username: cfg.Username,
			Password: cfg.Password,
			Token:    cfg.Token,
		}),
	}
	if metrics != nil {
		opts = append(opts, natsclient.WithMetrics(metrics))
	}

	tlsConfig, err := tlsutil.LoadClientTLSConfig(cfg.TLS)
	if err != nil {
		return nil, fmt.Errorf("NATS TLS: %w", err)
	}
	if tlsConfig != nil {
		opts = append(opts, natsclient.WithTLSConfig(tlsConfig))
	}

	client, err := natsclient.NewClient(strings.Join(cfg.URLs, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}
	return client, nil
}

// connectToNATS retries transient connection failures with backoff, then
// waits for the connection to be ready.
func connectToNATS(ctx context.Context, client *natsclient.Client, timeout time.Duration, logger *slog.Logger) error {
	logger.Info("Connecting to NATS", "url", client.URL())

	retry := errors.DefaultRetryConfig()
	if err := retry.Retry(ctx, client.Connect); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.WaitForConnection(connCtx); err != nil {
		return fmt.Errorf("NATS connection timeout: %w", err)
	}
	return nil
}

// serve runs the replay service until ctx is cancelled.
func serve(
	ctx context.Context,
	cfg *config.Config,
	buf *buffer.Synchronized[replay.Observation],
	registry *metric.MetricsRegistry,
	monitor *health.Monitor,
	shutdownTimeout time.Duration,
	logger *slog.Logger,
) error {
	client, err := newNATSClient(cfg.NATS, registry.CoreMetrics(), logger)
	if err != nil {
		return err
	}
	monitor.Register("nats", func() health.Status {
		if client.IsHealthy() {
			return health.NewHealthy("nats", "connected")
		}
		return health.NewUnhealthy("nats", client.Status().String())
	})
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := client.Close(closeCtx); err != nil {
			logger.Warn("NATS close failed", "error", err)
		}
	}()

	if err := connectToNATS(ctx, client, 10*time.Second, logger); err != nil {
		return err
	}

	svc, err := replay.NewService(cfg.Service, buf, client,
		replay.WithLogger(logger),
		replay.WithMetrics(registry))
	if err != nil {
		return fmt.Errorf("create replay service: %w", err)
	}
	monitor.Register(replay.ServiceName, svc.Health)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start replay service: %w", err)
	}
	logger.Info("Replay memory started")

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	if err := svc.Stop(shutdownTimeout); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// runSampleQuery asks a running service for n observations and prints the reply.
func runSampleQuery(
	ctx context.Context,
	cfg *config.Config,
	n int,
	stdout io.Writer,
	logger *slog.Logger,
) error {
	client, err := newNATSClient(cfg.NATS, nil, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close(context.Background())
	}()

	timeout := cfg.NATS.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if err := connectToNATS(ctx, client, timeout, logger); err != nil {
		return err
	}

	resp, err := replay.NewSampleClient(client, cfg.Service.SampleSubject).Sample(ctx, n)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func stopMetrics(server *metric.Server, timeout time.Duration, logger *slog.Logger) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Warn("Metrics server shutdown failed", "error", err)
	}
}
