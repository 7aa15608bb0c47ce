package natsclient

import (
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/tristan-jl/replay-memory/metric"
)

// ClientOption configures a Client in NewClient
type ClientOption func(*Client) error

// Timeouts groups the client's time limits. Zero fields keep the defaults:
// 5s connect, 30s drain, 30s handler, 30s ping.
type Timeouts struct {
	Connect time.Duration
	Drain   time.Duration
	Handler time.Duration // per delivered message or request
	Ping    time.Duration
}

// Auth holds credentials. User/password and token are independent; empty
// values are not sent.
type Auth struct {
	Username string
	Password string
	Token    string
}

// EventHandlers are called on connection state changes. Disconnect, reconnect
// and close events run them in their own goroutines.
type EventHandlers struct {
	OnDisconnect   func(error)
	OnReconnect    func()
	OnHealthChange func(healthy bool)
}

// WithLogger replaces slog.Default(). nil is ignored.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WithMetrics reports connection state and reconnects to the core metrics
func WithMetrics(metrics *metric.Metrics) ClientOption {
	return func(c *Client) error {
		c.metrics = metrics
		return nil
	}
}

// WithName identifies the connection to the server
func WithName(name string) ClientOption {
	return func(c *Client) error {
		c.clientName = name
		return nil
	}
}

// WithReconnect sets how many reconnects nats.go attempts (-1 forever) and
// the wait between them. A non-positive wait keeps the 2s default.
func WithReconnect(max int, wait time.Duration) ClientOption {
	return func(c *Client) error {
		c.maxReconnects = max
		if wait > 0 {
			c.reconnectWait = wait
		}
		return nil
	}
}

func WithTimeouts(t Timeouts) ClientOption {
	return func(c *Client) error {
		for _, f := range []struct {
			dst *time.Duration
			v   time.Duration
		}{
			{&c.timeout, t.Connect},
			{&c.drainTimeout, t.Drain},
			{&c.handlerTimeout, t.Handler},
			{&c.pingInterval, t.Ping},
		} {
			if f.v > 0 {
				*f.dst = f.v
			}
		}
		return nil
	}
}

// WithCircuitBreaker opens the circuit after threshold consecutive connect
// failures and caps the open period at maxBackoff. threshold < 1 keeps the
// default of 5; maxBackoff under a second keeps the one minute default.
func WithCircuitBreaker(threshold int32, maxBackoff time.Duration) ClientOption {
	return func(c *Client) error {
		if threshold >= 1 {
			c.breaker.threshold = threshold
		}
		if maxBackoff >= time.Second {
			c.breaker.maxBackoff = maxBackoff
		}
		return nil
	}
}

// WithAuth sets the credentials sent on connect. They are cleared by Close.
func WithAuth(a Auth) ClientOption {
	return func(c *Client) error {
		c.username, c.password, c.token = a.Username, a.Password, a.Token
		return nil
	}
}

// WithTLSConfig enables TLS. nil leaves it off.
func WithTLSConfig(cfg *tls.Config) ClientOption {
	return func(c *Client) error {
		c.tlsConfig = cfg
		return nil
	}
}

func WithEventHandlers(h EventHandlers) ClientOption {
	return func(c *Client) error {
		c.onDisconnect = h.OnDisconnect
		c.onReconnect = h.OnReconnect
		c.onHealthChange = h.OnHealthChange
		return nil
	}
}
