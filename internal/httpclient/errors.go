package httpclient

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Kind classifies a failed call
type Kind int

const (
	KindTransport Kind = iota + 1
	KindTimeout
	KindPoolExhausted
	KindPayloadTooLarge
	KindRemote
	KindDecode
)

var (
	// ErrTransport is returned when the connection fails
	ErrTransport = errors.New("transport error")

	// ErrTimeout is returned when a connect, read or write deadline is exceeded
	ErrTimeout = errors.New("timeout")

	// ErrPoolExhausted is returned when the pool and its pending queue are saturated
	ErrPoolExhausted = errors.New("connection pool exhausted")

	// ErrPayloadTooLarge is returned when a body exceeds the in-memory cap
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrRemote is returned for 4xx and 5xx responses
	ErrRemote = errors.New("remote error")

	// ErrDecode is returned when a success body cannot be decoded
	ErrDecode = errors.New("decode error")
)

func (k Kind) sentinel() error {
	switch k {
	case KindTransport:
		return ErrTransport
	case KindTimeout:
		return ErrTimeout
	case KindPoolExhausted:
		return ErrPoolExhausted
	case KindPayloadTooLarge:
		return ErrPayloadTooLarge
	case KindRemote:
		return ErrRemote
	case KindDecode:
		return ErrDecode
	}
	return nil
}

func (k Kind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the uniform error returned by Get
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int    // set for KindRemote
	Body       string // set for KindRemote, verbatim
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindRemote:
		return fmt.Sprintf("%s: GET %s: status %d: %s", e.Kind, e.URL, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s: GET %s: %v", e.Kind, e.URL, e.Err)
	default:
		return fmt.Sprintf("%s: GET %s", e.Kind, e.URL)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for e.Kind
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// classify maps an error from the transport into a Kind
func classify(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) || isTimeout(err) {
		return KindTimeout
	}
	return KindTransport
}

// isTimeout walks the whole chain. *url.Error answers Timeout() only for its
// direct cause, so stopping at the first net.Error misses wrapped deadlines.
func isTimeout(err error) bool {
	for err != nil {
		if t, ok := err.(interface{ Timeout() bool }); ok && t.Timeout() {
			return true
		}
		if multi, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range multi.Unwrap() {
				if isTimeout(e) {
					return true
				}
			}
			return false
		}
		err = errors.Unwrap(err)
	}
	return false
}
