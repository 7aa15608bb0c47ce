package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tristan-jl/replay-memory/config"
	"github.com/tristan-jl/replay-memory/errors"
	"github.com/tristan-jl/replay-memory/health"
	"github.com/tristan-jl/replay-memory/metric"
	"github.com/tristan-jl/replay-memory/pkg/buffer"
)

// ServiceName identifies the service in logs and metrics
const ServiceName = "replay"

// Status represents the current status of the service
type Status int

// Possible service statuses
const (
	StatusStopped Status = iota
	StatusStarting
	StatusRunning
	StatusStopping
)

// String returns the string representation of Status
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Info holds runtime information for the service
type Info struct {
	Name             string              `json:"name"`
	Status           string              `json:"status"`
	Uptime           time.Duration       `json:"uptime"`
	StartTime        time.Time           `json:"start_time"`
	Observations     int64               `json:"observations"`
	DecodeErrors     int64               `json:"decode_errors"`
	SampleRequests   int64               `json:"sample_requests"`
	BatchesPublished int64               `json:"batches_published"`
	LastActivity     time.Time           `json:"last_activity"`
	Buffer           buffer.StatsSummary `json:"buffer"`
}

// SampleRequest is the body of a sample request. A missing n means batch_size.
type SampleRequest struct {
	N *int `json:"n,omitempty"`
}

// SampleResponse is the reply to a sample request and the body of published batches.
type SampleResponse struct {
	Items    []Observation `json:"items"`
	Len      int           `json:"len"`
	Capacity int           `json:"capacity"`
	Full     bool          `json:"full"`
	Error    string        `json:"error,omitempty"`
}

// Option is a functional option for configuring Service
type Option func(*Service)

// WithLogger sets a custom logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records service metrics into the registry's core metrics
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(s *Service) {
		if registry != nil {
			s.metrics = registry.CoreMetrics()
		}
	}
}

// WithClock replaces time.Now for timestamps assigned on ingest
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service feeds a shared replay buffer from NATS and serves random samples.
//
// Observations published on the ingest subject are appended to the buffer.
// Requests on the sample subject are answered with a uniform sample. When a
// batch subject is configured, a sample of batch_size is published every
// batch_interval once min_fill items are stored.
type Service struct {
	cfg       config.ServiceConfig
	buffer    *buffer.Synchronized[Observation]
	transport Transport
	logger    *slog.Logger
	metrics   *metric.Metrics
	now       func() time.Time

	status    atomic.Value // Status
	startTime atomic.Value // time.Time

	observations     atomic.Int64
	decodeErrors     atomic.Int64
	sampleRequests   atomic.Int64
	batchesPublished atomic.Int64
	lastActivity     atomic.Value // time.Time

	mu               sync.Mutex
	ingestSubscribed bool
	sampleSubscribed bool
	cancel           context.CancelFunc
	group            *errgroup.Group
	draining         <-chan struct{} // closed once a timed-out Stop's work ends
}

// NewService creates the replay service. Zero batch_size and max_sample_size
// fall back to 32 and 1024.
func NewService(
	cfg config.ServiceConfig,
	buf *buffer.Synchronized[Observation],
	transport Transport,
	opts ...Option,
) (*Service, error) {
	if buf == nil {
		return nil, errors.WrapInvalid(errors.ErrNilBuffer, "Service", "NewService", "buffer check")
	}
	if transport == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: transport", errors.ErrMissingConfig), "Service", "NewService", "transport check")
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.MaxSampleSize <= 0 {
		cfg.MaxSampleSize = 1024
	}
	if cfg.IngestSubject == "" {
		cfg.IngestSubject = "replay.ingest"
	}
	if cfg.SampleSubject == "" {
		cfg.SampleSubject = "replay.sample"
	}

	s := &Service{
		cfg:       cfg,
		buffer:    buf,
		transport: transport,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("service", ServiceName)

	s.status.Store(StatusStopped)
	s.startTime.Store(time.Time{})
	s.lastActivity.Store(time.Time{})
	if s.metrics != nil {
		s.metrics.RecordServiceStatus(ServiceName, false)
	}

	return s, nil
}

// Status returns the current service status
func (s *Service) Status() Status {
	return s.status.Load().(Status)
}

// IsRunning reports whether the service accepts traffic
func (s *Service) IsRunning() bool {
	return s.Status() == StatusRunning
}

// Buffer returns the shared buffer
func (s *Service) Buffer() *buffer.Synchronized[Observation] {
	return s.buffer
}

// Start subscribes to the ingest and sample subjects and launches the batch
// publisher. Cancelling ctx stops the publisher.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status() != StatusStopped {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Service", "Start", "status check")
	}
	if err := s.awaitDrain(ctx); err != nil {
		return err
	}
	s.status.Store(StatusStarting)

	// Subscriptions outlive Stop; handlers drop traffic while not running,
	// so a restart reuses them. Each is made at most once.
	if !s.ingestSubscribed {
		if err := s.transport.Subscribe(ctx, s.cfg.IngestSubject, s.handleIngest); err != nil {
			s.status.Store(StatusStopped)
			return errors.Wrap(err, "Service", "Start", "subscribe "+s.cfg.IngestSubject)
		}
		s.ingestSubscribed = true
	}
	if !s.sampleSubscribed {
		if err := s.transport.HandleRequest(ctx, s.cfg.SampleSubject, s.handleSample); err != nil {
			s.status.Store(StatusStopped)
			return errors.Wrap(err, "Service", "Start", "serve "+s.cfg.SampleSubject)
		}
		s.sampleSubscribed = true
	}

	runCtx, cancel := context.WithCancel(ctx)

	group, groupCtx := errgroup.WithContext(runCtx)
	if s.cfg.BatchSubject != "" && s.cfg.BatchInterval > 0 {
		group.Go(func() error {
			return s.runBatchPublisher(groupCtx)
		})
	}

	s.cancel = cancel
	s.group = group
	s.startTime.Store(time.Now())
	s.status.Store(StatusRunning)
	if s.metrics != nil {
		s.metrics.RecordServiceStatus(ServiceName, true)
	}

	s.logger.Info("Replay service started",
		"ingest_subject", s.cfg.IngestSubject,
		"sample_subject", s.cfg.SampleSubject,
		"batch_subject", s.cfg.BatchSubject,
		"capacity", s.buffer.Capacity())
	return nil
}

// Stop halts background work and waits up to timeout for it to finish.
// Messages arriving after Stop are dropped.
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status() != StatusRunning {
		return errors.WrapInvalid(errors.ErrNotStarted, "Service", "Stop", "status check")
	}
	s.status.Store(StatusStopping)

	s.cancel()
	drained := make(chan struct{})
	var waitErr error
	go func(group *errgroup.Group) {
		waitErr = group.Wait()
		close(drained)
	}(s.group)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var err error
	select {
	case <-drained:
		err = waitErr
	case <-timer.C:
		s.draining = drained
		err = errors.WrapTransient(
			fmt.Errorf("%w: background work still running after %v", errors.ErrConnectionTimeout, timeout),
			"Service", "Stop", "wait")
	}

	s.status.Store(StatusStopped)
	if s.metrics != nil {
		s.metrics.RecordServiceStatus(ServiceName, false)
	}
	s.logger.Info("Replay service stopped", "observations", s.observations.Load())
	return err
}

// awaitDrain blocks until background work left over from a timed-out Stop
// has finished, so at most one batch publisher ever runs.
func (s *Service) awaitDrain(ctx context.Context) error {
	if s.draining == nil {
		return nil
	}
	select {
	case <-s.draining:
		s.draining = nil
		return nil
	case <-ctx.Done():
		return errors.WrapTransient(ctx.Err(), "Service", "Start", "wait for previous run to drain")
	}
}

// Info returns runtime information
func (s *Service) Info() Info {
	start := s.startTime.Load().(time.Time)
	var uptime time.Duration
	if !start.IsZero() && s.IsRunning() {
		uptime = time.Since(start)
	}

	return Info{
		Name:             ServiceName,
		Status:           s.Status().String(),
		Uptime:           uptime,
		StartTime:        start,
		Observations:     s.observations.Load(),
		DecodeErrors:     s.decodeErrors.Load(),
		SampleRequests:   s.sampleRequests.Load(),
		BatchesPublished: s.batchesPublished.Load(),
		LastActivity:     s.lastActivity.Load().(time.Time),
		Buffer:           s.buffer.Stats().Summary(),
	}
}

// Health reports the service as unhealthy unless running, and degraded while
// the buffer holds fewer than min_fill items.
func (s *Service) Health() health.Status {
	info := s.Info()
	metrics := &health.Metrics{
		Uptime:            info.Uptime,
		ErrorCount:        info.DecodeErrors,
		MessagesProcessed: info.Observations,
		LastActivity:      info.LastActivity,
	}

	var status health.Status
	switch {
	case !s.IsRunning():
		status = health.NewUnhealthy(ServiceName, "service "+info.Status)
	case s.buffer.Len() < max(s.cfg.MinFill, 1):
		status = health.NewDegraded(ServiceName,
			fmt.Sprintf("buffer holds %d of min_fill %d", s.buffer.Len(), max(s.cfg.MinFill, 1)))
	default:
		status = health.NewHealthy(ServiceName,
			fmt.Sprintf("buffer holds %d of %d", s.buffer.Len(), s.buffer.Capacity()))
	}
	return status.WithMetrics(metrics)
}

// Ingest decodes data and appends the observations to the buffer.
func (s *Service) Ingest(data []byte) (int, error) {
	obs, err := DecodeObservations(data, s.now)
	if err != nil {
		s.decodeErrors.Add(1)
		if s.metrics != nil {
			s.metrics.RecordDecodeError(s.cfg.IngestSubject)
		}
		return 0, err
	}

	s.buffer.PushItems(obs...)
	s.observations.Add(int64(len(obs)))
	s.lastActivity.Store(time.Now())
	if s.metrics != nil {
		s.metrics.RecordObservations(s.cfg.IngestSubject, len(obs))
	}
	return len(obs), nil
}

func (s *Service) handleIngest(_ context.Context, data []byte) {
	if !s.IsRunning() {
		return
	}
	n, err := s.Ingest(data)
	if err != nil {
		s.logger.Warn("Dropped undecodable observation", "subject", s.cfg.IngestSubject, "error", err)
		return
	}
	s.logger.Debug("Ingested observations", "count", n, "len", s.buffer.Len())
}

// Sample draws n observations. n above max_sample_size is rejected.
func (s *Service) Sample(n int) (*SampleResponse, error) {
	if n > s.cfg.MaxSampleSize {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %d > %d", errors.ErrSampleTooLarge, n, s.cfg.MaxSampleSize),
			"Service", "Sample", "size check")
	}

	resp := &SampleResponse{}
	s.buffer.Snapshot(func(buf *buffer.CircularBuffer[Observation]) {
		resp.Items = buf.Sample(n)
		resp.Len = buf.Len()
		resp.Capacity = buf.Capacity()
		resp.Full = buf.IsFull()
	})
	return resp, nil
}

func (s *Service) handleSample(_ context.Context, data []byte) ([]byte, error) {
	if !s.IsRunning() {
		return nil, errors.WrapTransient(errors.ErrNotStarted, "Service", "handleSample", "status check")
	}

	start := time.Now()
	s.sampleRequests.Add(1)

	resp, err := s.sample(data)
	status := "ok"
	if err != nil {
		status = "invalid"
		resp = &SampleResponse{Items: []Observation{}, Error: err.Error()}
		s.logger.Debug("Rejected sample request", "error", err)
	}
	if s.metrics != nil {
		s.metrics.RecordSample(status, time.Since(start))
	}

	out, err := json.Marshal(resp)
	if err != nil {
		return nil, errors.Wrap(err, "Service", "handleSample", "encode response")
	}
	return out, nil
}

func (s *Service) sample(data []byte) (*SampleResponse, error) {
	n := s.cfg.BatchSize
	if len(bytes.TrimSpace(data)) > 0 {
		var req SampleRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrParsingFailed, err),
				"Service", "Sample", "decode request")
		}
		if req.N != nil {
			n = *req.N
		}
	}
	return s.Sample(n)
}

func (s *Service) runBatchPublisher(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.BatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.PublishBatch(ctx); err != nil {
				s.logger.Warn("Batch publish failed", "subject", s.cfg.BatchSubject, "error", err)
			}
		}
	}
}

// PublishBatch publishes one sample of batch_size to the batch subject.
// It is a no-op until the buffer holds at least min_fill items (and at least one).
func (s *Service) PublishBatch(ctx context.Context) error {
	if s.buffer.Len() < max(s.cfg.MinFill, 1) {
		return nil
	}

	resp, err := s.Sample(s.cfg.BatchSize)
	if err != nil {
		return err
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return errors.Wrap(err, "Service", "PublishBatch", "encode batch")
	}
	if err := s.transport.Publish(ctx, s.cfg.BatchSubject, data); err != nil {
		return errors.Wrap(err, "Service", "PublishBatch", "publish "+s.cfg.BatchSubject)
	}

	s.batchesPublished.Add(1)
	if s.metrics != nil {
		s.metrics.RecordBatchPublished()
	}
	return nil
}
