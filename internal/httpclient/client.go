package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/greatstep93/client-app/internal/logger"
)

// Client issues GET requests through a shared, bounded connection pool
type Client struct {
	cfg       Config
	pool      *pool
	transport *http.Transport
	http      *http.Client
	log       *slog.Logger
}

// New builds the client and its connection pool
func New(cfg Config, log *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}
	if cfg.Name == "" {
		cfg.Name = DefaultPoolName
	}
	if log == nil {
		log = logger.Discard()
	}

	// The read timeout starts once the request is written: headers through
	// ResponseHeaderTimeout, body through stallReader. Idle keep-alive
	// connections carry no read deadline.
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer(cfg),
		MaxIdleConns:          cfg.MaxConnections,
		MaxIdleConnsPerHost:   cfg.MaxConnections,
		MaxConnsPerHost:       cfg.MaxConnections,
		IdleConnTimeout:       IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		ForceAttemptHTTP2:     true,
	}

	return &Client{
		cfg:       cfg,
		pool:      newPool(cfg),
		transport: transport,
		http:      &http.Client{Transport: transport},
		log:       log.With("pool", cfg.Name),
	}, nil
}

// Config returns the configuration the client was built with
func (c *Client) Config() Config {
	return c.cfg
}

// Stats returns a snapshot of the connection pool
func (c *Client) Stats() PoolStats {
	return c.pool.stats()
}

// Close releases idle pooled connections
func (c *Client) Close() {
	c.transport.CloseIdleConnections()
}

// Fetch performs a GET on baseURL with params attached and returns the raw
// body of a success response. Error statuses come back as a KindRemote *Error
// carrying the body text; the body is never handed to a decoder.
func (c *Client) Fetch(ctx context.Context, baseURL string, params map[string]any) ([]byte, error) {
	target := AddParams(baseURL, params)

	release, exhausted, err := c.pool.acquire(ctx)
	if err != nil {
		kind := classify(err)
		if exhausted {
			kind = KindPoolExhausted
		}
		return nil, &Error{Kind: kind, URL: target, Err: err}
	}
	defer release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &Error{Kind: KindTransport, URL: target, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Kind: classify(err), URL: target, Err: err}
	}
	defer resp.Body.Close()

	body, err := c.readBody(resp, cancel)
	if err != nil {
		return nil, &Error{Kind: classifyRead(err), URL: target, Err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &Error{
			Kind:       KindRemote,
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}
	return body, nil
}

type tooLargeError struct {
	limit int64
}

func (e *tooLargeError) Error() string {
	return fmt.Sprintf("response body exceeds %d bytes", e.limit)
}

func classifyRead(err error) Kind {
	var tl *tooLargeError
	if errors.As(err, &tl) {
		return KindPayloadTooLarge
	}
	return classify(err)
}

// readBody buffers at most MaxInMemorySize bytes of the body. cancel aborts
// the request when the body stalls past ReadTimeout.
func (c *Client) readBody(resp *http.Response, cancel context.CancelFunc) ([]byte, error) {
	limit := c.cfg.MaxInMemorySize
	if resp.ContentLength > limit {
		return nil, &tooLargeError{limit: limit}
	}

	var r io.Reader = resp.Body
	if c.cfg.ReadTimeout > 0 {
		sr := newStallReader(resp.Body, c.cfg.ReadTimeout, cancel)
		defer sr.stop()
		r = sr
	}

	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, &tooLargeError{limit: limit}
	}
	return body, nil
}

type readTimeoutError struct {
	timeout time.Duration
}

func (e *readTimeoutError) Error() string {
	return fmt.Sprintf("no response data within read timeout %s", e.timeout)
}

func (e *readTimeoutError) Timeout() bool { return true }

// stallReader cancels the request when a single Read waits longer than timeout
type stallReader struct {
	r       io.Reader
	timeout time.Duration
	timer   *time.Timer
	stalled atomic.Bool
}

func newStallReader(r io.Reader, timeout time.Duration, cancel context.CancelFunc) *stallReader {
	s := &stallReader{r: r, timeout: timeout}
	s.timer = time.AfterFunc(timeout, func() {
		s.stalled.Store(true)
		cancel()
	})
	return s
}

func (s *stallReader) Read(p []byte) (int, error) {
	s.timer.Reset(s.timeout)
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF && s.stalled.Load() {
		return n, &readTimeoutError{timeout: s.timeout}
	}
	return n, err
}

func (s *stallReader) stop() {
	s.timer.Stop()
}

// Get performs Fetch and decodes a success body with decode. A decoded
// response is logged at trace level.
func Get[T any](ctx context.Context, c *Client, baseURL string, params map[string]any, decode func([]byte) (T, error)) (T, error) {
	var zero T

	body, err := c.Fetch(ctx, baseURL, params)
	if err != nil {
		return zero, err
	}

	v, err := decode(body)
	if err != nil {
		return zero, &Error{Kind: KindDecode, URL: AddParams(baseURL, params), Err: err}
	}

	logger.Trace(ctx, c.log, "Successfully received response", "response", v)
	return v, nil
}

// Text decodes the body as a plain string
func Text(body []byte) (string, error) {
	return string(body), nil
}

// JSON returns a decoder that unmarshals the body into T
func JSON[T any]() func([]byte) (T, error) {
	return func(body []byte) (T, error) {
		var v T
		if err := json.Unmarshal(body, &v); err != nil {
			return v, err
		}
		return v, nil
	}
}
