package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tristan-jl/replay-memory/errors"
	"github.com/tristan-jl/replay-memory/natsclient"
)

// MockNATSClient is an in-memory stand-in for natsclient.Client. Publish
// delivers synchronously to handlers subscribed to the exact subject, and
// Request calls the registered responder directly. Safe for concurrent use.
type MockNATSClient struct {
	mu         sync.RWMutex
	published  map[string][][]byte
	handlers   map[string][]natsclient.MessageHandler
	responders map[string]natsclient.RequestHandler
	publishErr error
	closed     bool
}

func NewMockNATSClient() *MockNATSClient {
	return &MockNATSClient{
		published:  make(map[string][][]byte),
		handlers:   make(map[string][]natsclient.MessageHandler),
		responders: make(map[string]natsclient.RequestHandler),
	}
}

func notConnected(method, action string) error {
	return errors.WrapTransient(natsclient.ErrNotConnected, "MockNATSClient", method, action)
}

// Publish records data and then runs the subject's handlers outside the lock
func (c *MockNATSClient) Publish(ctx context.Context, subject string, data []byte) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return notConnected("Publish", "publish "+subject)
	case c.publishErr != nil:
		err := c.publishErr
		c.mu.Unlock()
		return err
	}
	c.published[subject] = append(c.published[subject], data)
	handlers := append([]natsclient.MessageHandler(nil), c.handlers[subject]...)
	c.mu.Unlock()

	for _, h := range handlers {
		h(ctx, data)
	}
	return nil
}

func (c *MockNATSClient) Subscribe(ctx context.Context, subject string, handler natsclient.MessageHandler) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return notConnected("Subscribe", "subscribe "+subject)
	}
	c.handlers[subject] = append(c.handlers[subject], handler)
	return nil
}

// HandleRequest installs the responder for subject, replacing any earlier one
func (c *MockNATSClient) HandleRequest(ctx context.Context, subject string, handler natsclient.RequestHandler) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return notConnected("HandleRequest", "subscribe "+subject)
	}
	c.responders[subject] = handler
	return nil
}

// Request calls the responder for subject. Responder errors come back as
// {"error": "..."} bodies, as they do over a real connection.
func (c *MockNATSClient) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	c.mu.RLock()
	respond, ok := c.responders[subject]
	closed := c.closed
	c.mu.RUnlock()

	if closed {
		return nil, notConnected("Request", "request "+subject)
	}
	if !ok {
		return nil, errors.WrapTransient(fmt.Errorf("no responders for %s", subject),
			"MockNATSClient", "Request", "request "+subject)
	}

	resp, err := respond(ctx, data)
	if err != nil {
		return json.Marshal(map[string]string{"error": err.Error()})
	}
	return resp, nil
}

// SetPublishError makes every following Publish fail with err. nil clears it.
func (c *MockNATSClient) SetPublishError(err error) {
	c.mu.Lock()
	c.publishErr = err
	c.mu.Unlock()
}

// SubscriberCount counts message handlers plus the responder on subject
func (c *MockNATSClient) SubscriberCount(subject string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := len(c.handlers[subject])
	if _, ok := c.responders[subject]; ok {
		n++
	}
	return n
}

// GetMessages returns a copy of everything published on subject
func (c *MockNATSClient) GetMessages(subject string) [][]byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.published[subject] == nil {
		return nil
	}
	return append([][]byte(nil), c.published[subject]...)
}

func (c *MockNATSClient) GetMessageCount(subject string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.published[subject])
}

// Close makes every later call fail with natsclient.ErrNotConnected
func (c *MockNATSClient) Close(context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// WaitForMessageCount fails the test unless subject sees at least count
// messages within timeout.
func WaitForMessageCount(t *testing.T, client *MockNATSClient, subject string, count int, timeout time.Duration) {
	t.Helper()
	require.Eventuallyf(t, func() bool {
		return client.GetMessageCount(subject) >= count
	}, timeout, 5*time.Millisecond, "waiting for %d messages on %s", count, subject)
}

// AssertNoMessages fails the test if anything was published on subject
func AssertNoMessages(t *testing.T, client *MockNATSClient, subject string) {
	t.Helper()
	require.Zerof(t, client.GetMessageCount(subject), "unexpected messages on %s", subject)
}
