// Package natsclient wraps the NATS Go client with a circuit breaker,
// reconnect handling and context-aware subscribe, request/reply and publish
// helpers.
//
// Connection lifecycle: Disconnected → Connecting → Connected →
// Reconnecting → Connected. After a threshold of consecutive connect
// failures (default 5) the circuit opens and Connect fails fast until the
// backoff elapses; the backoff doubles each round up to the maximum.
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithName("replay-memory"),
//	    natsclient.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
//	err = client.HandleRequest(ctx, "replay.sample", func(ctx context.Context, req []byte) ([]byte, error) {
//	    return []byte(`{"items":[]}`), nil
//	})
//
// TLS is enabled with WithTLSConfig, typically fed from
// tlsutil.LoadClientTLSConfig.
//
// Every error returned while disconnected is classified transient, so
// callers can hand Connect to errors.RetryConfig.Retry.
package natsclient
