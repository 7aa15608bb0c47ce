// Package errors provides standardized error handling for replay-memory components.
//
// # Overview
//
// Errors are sorted into three classes: Transient (temporary, retryable),
// Invalid (bad input, do not retry) and Fatal (stop processing). Components wrap
// failures with the class that fits so callers can decide what to do without
// matching on error strings.
//
// # Error Wrapping Pattern
//
// All wrapping follows the format:
//
//	"component.method: action failed: %w"
//
// Three wrappers set the class while preserving the chain for errors.Is/As:
//
//	errors.WrapTransient(err, "Client", "Connect", "dial")
//	errors.WrapInvalid(err, "CircularBuffer", "Get", "index lookup")
//	errors.WrapFatal(err, "Service", "Start", "subscribe ingest subject")
//
// # Buffer Errors
//
// The circular buffer has exactly one failure: indexed reads past the stored
// length. Get returns an Invalid error matching ErrOutOfRange:
//
//	item, err := buf.Get(7)
//	if errors.Is(err, errors.ErrOutOfRange) {
//	    // index >= Len()
//	}
//
// # Retry
//
// RetryConfig drives exponential backoff for transient failures such as the
// initial NATS connection:
//
//	err := errors.DefaultRetryConfig().Retry(ctx, client.Connect)
//	if errors.IsFatal(err) {
//	    // attempts exhausted
//	}
package errors
