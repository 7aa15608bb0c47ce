package replay

import (
	"context"

	"github.com/tristan-jl/replay-memory/natsclient"
)

// Transport is the messaging surface the service needs. natsclient.Client
// implements it against a NATS server.
type Transport interface {
	Subscribe(ctx context.Context, subject string, handler natsclient.MessageHandler) error
	HandleRequest(ctx context.Context, subject string, handler natsclient.RequestHandler) error
	Publish(ctx context.Context, subject string, data []byte) error
}

// Requester sends a request and waits for the reply.
type Requester interface {
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
}

var _ Transport = (*natsclient.Client)(nil)
var _ Requester = (*natsclient.Client)(nil)
