package httpclient

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// PoolStats is a point-in-time snapshot of the connection pool
type PoolStats struct {
	Name           string
	MaxConnections int
	MaxPending     int
	Active         int // slots currently held by in-flight calls
	Pending        int // callers waiting for a slot
}

// pool hands out connection slots. A slot is held from before the request is
// written until the response body has been read.
type pool struct {
	name           string
	slots          *semaphore.Weighted
	maxConns       int64
	maxPending     int64
	pendingTimeout time.Duration
	active         atomic.Int64
	pending        atomic.Int64
}

func newPool(cfg Config) *pool {
	return &pool{
		name:           cfg.Name,
		slots:          semaphore.NewWeighted(int64(cfg.MaxConnections)),
		maxConns:       int64(cfg.MaxConnections),
		maxPending:     int64(cfg.PendingAcquireMaxCount),
		pendingTimeout: cfg.PendingAcquireTimeout,
	}
}

// acquire reserves one slot. exhausted is true when the failure is the pool's
// own (queue full or pending timeout) rather than the caller's context.
func (p *pool) acquire(ctx context.Context) (release func(), exhausted bool, err error) {
	if p.slots.TryAcquire(1) {
		p.active.Add(1)
		return p.release, false, nil
	}

	if p.pending.Add(1) > p.maxPending {
		p.pending.Add(-1)
		return nil, true, fmt.Errorf("pool %q: pending acquire queue full (%d)", p.name, p.maxPending)
	}
	defer p.pending.Add(-1)

	waitCtx := ctx
	if p.pendingTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.pendingTimeout)
		defer cancel()
	}

	if err := p.slots.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("pool %q: no connection within pending acquire timeout %s", p.name, p.pendingTimeout)
	}
	p.active.Add(1)
	return p.release, false, nil
}

func (p *pool) release() {
	p.active.Add(-1)
	p.slots.Release(1)
}

func (p *pool) stats() PoolStats {
	return PoolStats{
		Name:           p.name,
		MaxConnections: int(p.maxConns),
		MaxPending:     int(p.maxPending),
		Active:         int(p.active.Load()),
		Pending:        int(p.pending.Load()),
	}
}

// writeDeadlineConn arms the write deadline before every Write, so the
// timeout bounds a stalled send rather than the whole request. Reads carry no
// deadline here: an idle keep-alive connection must not age toward one.
type writeDeadlineConn struct {
	net.Conn
	writeTimeout time.Duration
}

func (c *writeDeadlineConn) Write(b []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(b)
}

func dialer(cfg Config) func(ctx context.Context, network, addr string) (net.Conn, error) {
	d := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: TCPKeepAliveInterval,
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		if cfg.WriteTimeout == 0 {
			return conn, nil
		}
		return &writeDeadlineConn{Conn: conn, writeTimeout: cfg.WriteTimeout}, nil
	}
}
