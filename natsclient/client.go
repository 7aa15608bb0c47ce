package natsclient

import (
	"context"
	"crypto/tls"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/tristan-jl/replay-memory/errors"
	"github.com/tristan-jl/replay-memory/metric"
)

// ConnectionStatus is the client's view of its NATS connection
type ConnectionStatus int32

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusCircuitOpen
)

var statusNames = [...]string{
	StatusDisconnected: "disconnected",
	StatusConnecting:   "connecting",
	StatusConnected:    "connected",
	StatusReconnecting: "reconnecting",
	StatusCircuitOpen:  "circuit_open",
}

func (s ConnectionStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

var (
	ErrNotConnected = fmt.Errorf("not connected to NATS: %w", errors.ErrNoConnection)
	ErrCircuitOpen  = stderrors.New("circuit breaker is open")
)

// Status is a point-in-time view of the client
type Status struct {
	Status          ConnectionStatus
	FailureCount    int32
	LastFailureTime time.Time
	RTT             time.Duration
}

// MessageHandler processes one message delivered on a subscription
type MessageHandler func(ctx context.Context, data []byte)

// RequestHandler answers one request. A returned error is sent back to the
// requester as {"error": "..."}.
type RequestHandler func(ctx context.Context, data []byte) ([]byte, error)

// Client wraps a NATS connection with a circuit breaker, handler timeouts
// and connection metrics.
type Client struct {
	url     string
	status  atomic.Int32
	breaker *breaker
	logger  *slog.Logger
	metrics *metric.Metrics

	maxReconnects  int
	reconnectWait  time.Duration
	pingInterval   time.Duration
	timeout        time.Duration
	drainTimeout   time.Duration
	handlerTimeout time.Duration

	// cleared on Close
	username string
	password string
	token    string

	clientName string
	tlsConfig  *tls.Config

	onDisconnect   func(error)
	onReconnect    func()
	onHealthChange func(bool)

	mu   sync.RWMutex // guards conn, subs and callbacks
	conn *nats.Conn
	subs []*nats.Subscription

	closeMu sync.Mutex
	closed  atomic.Bool
}

// NewClient creates a disconnected client. url may list several servers
// separated by commas.
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:            url,
		breaker:        newBreaker(),
		logger:         slog.Default(),
		maxReconnects:  -1,
		reconnectWait:  2 * time.Second,
		pingInterval:   30 * time.Second,
		timeout:        5 * time.Second,
		drainTimeout:   30 * time.Second,
		handlerTimeout: 30 * time.Second,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}
	c.logger = c.logger.With("component", "natsclient")

	return c, nil
}

func (c *Client) URL() string { return c.url }

func (c *Client) Status() ConnectionStatus { return ConnectionStatus(c.status.Load()) }

// IsHealthy reports whether the connection is up
func (c *Client) IsHealthy() bool { return c.Status() == StatusConnected }

// Failures is the number of connect failures since the last success
func (c *Client) Failures() int32 {
	n, _, _ := c.breaker.snapshot()
	return n
}

// Backoff is how long the circuit will stay open on its next trip
func (c *Client) Backoff() time.Duration {
	_, d, _ := c.breaker.snapshot()
	return d
}

// GetStatus returns a snapshot including the server round trip when connected
func (c *Client) GetStatus() *Status {
	failures, _, last := c.breaker.snapshot()
	s := &Status{
		Status:          c.Status(),
		FailureCount:    failures,
		LastFailureTime: last,
	}
	if rtt, err := c.RTT(); err == nil {
		s.RTT = rtt
	}
	return s
}

func (c *Client) setStatus(s ConnectionStatus) {
	c.status.Store(int32(s))
	c.recordStatus(s)
}

func (c *Client) swapStatus(from, to ConnectionStatus) bool {
	if !c.status.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	c.recordStatus(to)
	return true
}

func (c *Client) recordStatus(s ConnectionStatus) {
	if c.metrics != nil {
		c.metrics.RecordNATSStatus(s == StatusConnected)
	}
}

func (c *Client) recordFailure() {
	open, tripped := c.breaker.fail(time.Now())
	if !tripped {
		return
	}

	for {
		cur := c.Status()
		if cur == StatusCircuitOpen {
			c.logger.Warn("Circuit breaker still open", "next_backoff", c.Backoff())
			return
		}
		if c.swapStatus(cur, StatusCircuitOpen) {
			c.logger.Warn("Circuit breaker opened", "open_for", open)
			time.AfterFunc(open, c.testCircuit)
			return
		}
	}
}

func (c *Client) resetCircuit() {
	c.breaker.reset()
	c.swapStatus(StatusCircuitOpen, StatusDisconnected)
}

// testCircuit half-opens the circuit so the next Connect may try again
func (c *Client) testCircuit() {
	if c.swapStatus(StatusCircuitOpen, StatusDisconnected) {
		c.logger.Debug("Circuit breaker half-open")
	}
}

// WaitForConnection polls until the client is connected or ctx is done
func (c *Client) WaitForConnection(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for !c.IsHealthy() {
		select {
		case <-ctx.Done():
			return errors.WrapTransient(
				fmt.Errorf("%w: %w", errors.ErrConnectionTimeout, ctx.Err()),
				"Client", "WaitForConnection", "wait")
		case <-ticker.C:
		}
	}
	return nil
}

// ConnectionOptions returns the options Connect passes to nats.Connect
func (c *Client) ConnectionOptions() []nats.Option {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.buildConnectionOptions()
}

func (c *Client) buildConnectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.PingInterval(c.pingInterval),
		nats.Timeout(c.timeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(c.handleDisconnect),
		nats.ReconnectHandler(c.handleReconnect),
		nats.ClosedHandler(c.handleClosed),
		nats.ErrorHandler(c.handleError),
	}

	if c.username != "" && c.password != "" {
		opts = append(opts, nats.UserInfo(c.username, c.password))
	}
	if c.token != "" {
		opts = append(opts, nats.Token(c.token))
	}
	if c.clientName != "" {
		opts = append(opts, nats.Name(c.clientName))
	}
	if c.tlsConfig != nil {
		opts = append(opts, nats.Secure(c.tlsConfig))
	}
	return opts
}

// Connect dials the configured servers. While the circuit is open it fails
// fast with ErrCircuitOpen.
func (c *Client) Connect(ctx context.Context) error {
	switch {
	case c.closed.Load():
		return errors.WrapFatal(ErrNotConnected, "Client", "Connect", "client closed")
	case c.Status() == StatusCircuitOpen:
		return errors.WrapTransient(ErrCircuitOpen, "Client", "Connect", "circuit check")
	}

	c.setStatus(StatusConnecting)
	c.logger.Info("Connecting to NATS", "url", c.url)

	opts := c.ConnectionOptions()
	type result struct {
		conn *nats.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := nats.Connect(c.url, opts...)
		done <- result{conn, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		// close a connection that lands after we gave up on it
		go func() {
			if late := <-done; late.conn != nil {
				late.conn.Close()
			}
		}()
		return c.connectFailed(ctx.Err(), "connection cancelled")
	}
	if res.err != nil {
		return c.connectFailed(res.err, "establish connection")
	}

	c.mu.Lock()
	c.conn = res.conn
	c.mu.Unlock()

	c.setStatus(StatusConnected)
	c.resetCircuit()
	c.logger.Info("Connected to NATS", "url", c.url)
	c.notifyHealth(true, false)
	return nil
}

func (c *Client) connectFailed(err error, action string) error {
	c.recordFailure()
	if c.Status() == StatusCircuitOpen {
		return errors.WrapTransient(fmt.Errorf("%w: %w", ErrCircuitOpen, err), "Client", "Connect", action)
	}
	c.setStatus(StatusDisconnected)
	return errors.WrapTransient(fmt.Errorf("%w: %w", errors.ErrNoConnection, err), "Client", "Connect", action)
}

// Close unsubscribes, drains and closes the connection and forgets the
// credentials. Safe to call more than once.
func (c *Client) Close(ctx context.Context) error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed.Swap(true) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, sub := range c.subs {
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, errors.Wrap(err, "Client", "Close", "unsubscribe "+sub.Subject))
		}
	}
	c.subs = nil

	if c.conn != nil {
		if err := c.drain(ctx, c.conn); err != nil {
			errs = append(errs, err)
		}
		c.conn.Close()
		c.conn = nil
	}

	c.username, c.password, c.token = "", "", ""
	c.setStatus(StatusDisconnected)

	for _, err := range errs {
		c.logger.Error("NATS cleanup failed", "error", err)
	}
	return stderrors.Join(errs...)
}

// drain waits for conn.Drain bounded by the drain timeout and ctx
func (c *Client) drain(ctx context.Context, conn *nats.Conn) error {
	timeout := c.drainTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left > 0 && left < timeout {
			timeout = left
		}
	}

	done := make(chan error, 1)
	go func() { done <- conn.Drain() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return errors.Wrap(err, "Client", "Close", "drain connection")
	case <-timer.C:
		return errors.WrapTransient(fmt.Errorf("drain timeout after %v", timeout), "Client", "Close", "drain")
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "Client", "Close", "drain")
	}
}

func (c *Client) connected() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil || !c.conn.IsConnected() {
		return nil
	}
	return c.conn
}

// RTT returns the round trip time to the server
func (c *Client) RTT() (time.Duration, error) {
	conn := c.connected()
	if conn == nil {
		return 0, ErrNotConnected
	}
	return conn.RTT()
}

// Subscribe delivers each message on subject to handler with a context
// derived from ctx and bounded by the handler timeout.
func (c *Client) Subscribe(ctx context.Context, subject string, handler MessageHandler) error {
	return c.subscribe(subject, func(msg *nats.Msg) {
		msgCtx, cancel := context.WithTimeout(ctx, c.handlerTimeout)
		defer cancel()
		handler(msgCtx, msg.Data)
	})
}

// HandleRequest answers requests on subject with the handler's response
func (c *Client) HandleRequest(ctx context.Context, subject string, handler RequestHandler) error {
	return c.subscribe(subject, func(msg *nats.Msg) {
		msgCtx, cancel := context.WithTimeout(ctx, c.handlerTimeout)
		defer cancel()

		resp, err := handler(msgCtx, msg.Data)
		if msg.Reply == "" {
			return
		}
		if err != nil {
			resp, _ = json.Marshal(map[string]string{"error": err.Error()})
		}
		if err := msg.Respond(resp); err != nil {
			c.logger.Warn("Failed to respond", "subject", subject, "error", err)
		}
	})
}

func (c *Client) subscribe(subject string, cb nats.MsgHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || !c.conn.IsConnected() {
		return errors.WrapTransient(ErrNotConnected, "Client", "Subscribe", "subscribe "+subject)
	}

	sub, err := c.conn.Subscribe(subject, cb)
	if err != nil {
		return errors.WrapTransient(fmt.Errorf("%w: %w", errors.ErrSubscriptionFailed, err),
			"Client", "Subscribe", "subscribe "+subject)
	}
	c.subs = append(c.subs, sub)
	c.logger.Debug("Subscribed", "subject", subject)
	return nil
}

// Publish sends data to subject without waiting for an acknowledgement
func (c *Client) Publish(_ context.Context, subject string, data []byte) error {
	conn := c.connected()
	if conn == nil {
		return errors.WrapTransient(ErrNotConnected, "Client", "Publish", "publish "+subject)
	}
	return conn.Publish(subject, data)
}

// Request sends data to subject and waits for one reply or ctx
func (c *Client) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	conn := c.connected()
	if conn == nil {
		return nil, errors.WrapTransient(ErrNotConnected, "Client", "Request", "request "+subject)
	}

	msg, err := conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "Request", "request "+subject)
	}
	return msg.Data, nil
}

// OnHealthChange replaces the health change callback
func (c *Client) OnHealthChange(fn func(bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onHealthChange = fn
}

// notifyHealth runs the health callback, in its own goroutine when async is
// set because nats.go handlers must not block.
func (c *Client) notifyHealth(healthy, async bool) {
	c.mu.RLock()
	fn := c.onHealthChange
	c.mu.RUnlock()

	switch {
	case fn == nil:
	case async:
		go fn(healthy)
	default:
		fn(healthy)
	}
}

func (c *Client) handleDisconnect(_ *nats.Conn, err error) {
	if c.closed.Load() {
		return
	}
	c.setStatus(StatusReconnecting)
	c.logger.Warn("Disconnected from NATS", "error", err)

	c.mu.RLock()
	fn := c.onDisconnect
	c.mu.RUnlock()
	if fn != nil {
		go fn(err)
	}
	c.notifyHealth(false, true)
}

func (c *Client) handleReconnect(_ *nats.Conn) {
	c.setStatus(StatusConnected)
	c.resetCircuit()
	c.logger.Info("Reconnected to NATS")
	if c.metrics != nil {
		c.metrics.RecordNATSReconnect()
	}

	c.mu.RLock()
	fn := c.onReconnect
	c.mu.RUnlock()
	if fn != nil {
		go fn()
	}
	c.notifyHealth(true, true)
}

func (c *Client) handleClosed(_ *nats.Conn) {
	c.setStatus(StatusDisconnected)
	c.notifyHealth(false, true)
}

func (c *Client) handleError(_ *nats.Conn, sub *nats.Subscription, err error) {
	var subject string
	if sub != nil {
		subject = sub.Subject
	}
	c.logger.Error("NATS error", "subject", subject, "error", err)
}
