package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorClass tells a caller whether to retry, reject or stop
type ErrorClass int

const (
	// ErrorTransient is temporary; the operation may succeed if retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid is bad input or configuration; retrying will not help
	ErrorInvalid
	// ErrorFatal stops processing
	ErrorFatal
)

func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Buffer and sampling
var (
	ErrOutOfRange     = errors.New("index is out of range")
	ErrSampleTooLarge = errors.New("sample size exceeds limit")
	ErrNilBuffer      = errors.New("buffer not provided")
)

// Service lifecycle
var (
	ErrAlreadyStarted = errors.New("service already started")
	ErrNotStarted     = errors.New("service not started")
)

// Transport
var (
	ErrNoConnection       = errors.New("no connection available")
	ErrConnectionLost     = errors.New("connection lost")
	ErrConnectionTimeout  = errors.New("connection timeout")
	ErrSubscriptionFailed = errors.New("subscription failed")
)

// Payloads and configuration
var (
	ErrInvalidData        = errors.New("invalid data format")
	ErrParsingFailed      = errors.New("parsing failed")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrMissingConfig      = errors.New("missing required configuration")
	ErrConfigNotFound     = errors.New("configuration not found")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

// Unclassified errors fall back to these sentinels, then to message fragments.
var (
	classSentinels = map[ErrorClass][]error{
		ErrorTransient: {
			ErrConnectionTimeout, ErrConnectionLost, ErrNoConnection,
			context.DeadlineExceeded, context.Canceled,
		},
		ErrorInvalid: {ErrOutOfRange, ErrSampleTooLarge, ErrInvalidData, ErrParsingFailed},
		ErrorFatal:   {ErrInvalidConfig, ErrMissingConfig, ErrMaxRetriesExceeded},
	}
	classPatterns = map[ErrorClass][]string{
		ErrorTransient: {"timeout", "connection", "network", "temporary", "unavailable"},
		ErrorFatal:     {"fatal", "panic", "out of memory"},
	}
)

// ClassifiedError carries a class and the component/operation that failed
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

func (ce *ClassifiedError) Error() string {
	if ce.Message == "" {
		return ce.Err.Error()
	}
	return ce.Message
}

func (ce *ClassifiedError) Unwrap() error { return ce.Err }

// hasClass reports whether err belongs to class. An explicit classification
// anywhere in the chain wins over sentinels and message matching.
func hasClass(err error, class ErrorClass) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == class
	}

	for _, sentinel := range classSentinels[class] {
		if errors.Is(err, sentinel) {
			return true
		}
	}

	patterns := classPatterns[class]
	if len(patterns) == 0 {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransient reports whether err is worth retrying
func IsTransient(err error) bool { return hasClass(err, ErrorTransient) }

// IsInvalid reports whether err was caused by bad input
func IsInvalid(err error) bool { return hasClass(err, ErrorInvalid) }

// IsFatal reports whether err should stop processing
func IsFatal(err error) bool { return hasClass(err, ErrorFatal) }

// Classify returns the class of err. Errors that match nothing are treated
// as transient.
func Classify(err error) ErrorClass {
	for _, class := range []ErrorClass{ErrorTransient, ErrorFatal, ErrorInvalid} {
		if hasClass(err, class) {
			return class
		}
	}
	return ErrorTransient
}

// Wrap adds context in the form "component.method: action failed: err"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps err with context and marks it transient
func WrapTransient(err error, component, method, action string) error {
	return wrapAs(ErrorTransient, err, component, method, action)
}

// WrapInvalid wraps err with context and marks it invalid
func WrapInvalid(err error, component, method, action string) error {
	return wrapAs(ErrorInvalid, err, component, method, action)
}

// WrapFatal wraps err with context and marks it fatal
func WrapFatal(err error, component, method, action string) error {
	return wrapAs(ErrorFatal, err, component, method, action)
}

func wrapAs(class ErrorClass, err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return &ClassifiedError{
		Class:     class,
		Err:       wrapped,
		Message:   wrapped.Error(),
		Component: component,
		Operation: method,
	}
}
