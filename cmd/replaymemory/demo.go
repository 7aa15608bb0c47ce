package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tristan-jl/replay-memory/config"
	"github.com/tristan-jl/replay-memory/errors"
	"github.com/tristan-jl/replay-memory/health"
	"github.com/tristan-jl/replay-memory/pkg/buffer"
	"github.com/tristan-jl/replay-memory/replay"
)

// demo fills a buffer with synthetic observations at a fixed rate and
// periodically logs a sample drawn from it.
type demo struct {
	cfg    config.DemoConfig
	buf    *buffer.Synchronized[replay.Observation]
	logger *slog.Logger

	produced atomic.Int64
	samples  atomic.Int64
}

func newDemo(cfg config.DemoConfig, buf *buffer.Synchronized[replay.Observation], logger *slog.Logger) *demo {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.SampleSize < 1 {
		cfg.SampleSize = 1
	}
	return &demo{cfg: cfg, buf: buf, logger: logger}
}

// run blocks until ctx is done or the configured duration elapses.
func (d *demo) run(ctx context.Context) error {
	if d.cfg.Rate <= 0 || d.cfg.SampleInterval <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "demo", "run", "rate check")
	}

	if d.cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Duration)
		defer cancel()
	}

	d.logger.Info("Demo started",
		"rate", d.cfg.Rate,
		"sample_interval", d.cfg.SampleInterval,
		"capacity", d.buf.Capacity())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.produce(gctx) })
	g.Go(func() error { return d.sampleLoop(gctx) })

	err := g.Wait()
	if err != nil && !stderrors.Is(err, context.Canceled) && !stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}

	stats := d.buf.Stats()
	d.logger.Info("Demo finished",
		"produced", d.produced.Load(),
		"samples", d.samples.Load(),
		"evictions", stats.Evictions(),
		"len", d.buf.Len())
	return nil
}

func (d *demo) health() health.Status {
	if d.buf.IsEmpty() {
		return health.NewDegraded("demo", "no observations produced yet")
	}
	return health.NewHealthy("demo", "producing").WithMetrics(&health.Metrics{
		MessagesProcessed: d.produced.Load(),
	})
}

func (d *demo) produce(ctx context.Context) error {
	limiter := rate.NewLimiter(rate.Limit(d.cfg.Rate), d.cfg.Burst)

	for step := 0; ; step++ {
		if err := limiter.Wait(ctx); err != nil {
			// Wait fails early when the deadline would pass before the next token
			if ctx.Err() == nil {
				<-ctx.Done()
			}
			return ctx.Err()
		}

		payload, err := json.Marshal(map[string]any{
			"step":   step,
			"reward": rand.Float64(),
		})
		if err != nil {
			return errors.Wrap(err, "demo", "produce", "encode payload")
		}

		d.buf.Push(replay.Observation{
			ID:        uuid.NewString(),
			Source:    "demo",
			Timestamp: time.Now(),
			Payload:   payload,
		})
		d.produced.Add(1)
	}
}

func (d *demo) sampleLoop(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			batch := d.buf.Sample(d.cfg.SampleSize)
			d.samples.Add(1)

			ids := make([]string, len(batch))
			for i, obs := range batch {
				ids[i] = obs.ID
			}
			d.logger.Info("Sampled batch",
				"size", len(batch),
				"len", d.buf.Len(),
				"full", d.buf.IsFull(),
				"ids", ids)
		}
	}
}
