package transport

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/WhileEndless/go-rawfetch/pkg/target"
	"github.com/WhileEndless/go-rawfetch/pkg/timing"
)

// Pool keeps at most one connection per host:port. Requests to the same key
// are serialized: Acquire blocks until the previous holder calls Release or
// Evict. Requests to different keys run in parallel.
type Pool struct {
	dialer Dialer
	logger *zap.Logger

	mu    sync.Mutex
	conns map[string]*Conn
}

// NewPool creates an empty pool.
func NewPool(dialer Dialer, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		dialer: dialer,
		logger: logger.Named("pool"),
		conns:  make(map[string]*Conn),
	}
}

// Acquire returns exclusive use of the connection for t's host:port. A live
// pooled connection is reused; a destroyed one is evicted and replaced.
func (p *Pool) Acquire(ctx context.Context, t target.Target, timer *timing.Timer) (*Conn, error) {
	key := t.Authority()

	for {
		p.mu.Lock()
		conn, ok := p.conns[key]
		if ok && conn.Destroyed() && !p.busy(conn) {
			p.logger.Debug("evicting destroyed connection", zap.String("key", key))
			delete(p.conns, key)
			_ = conn.Close()
			ok = false
		}

		if !ok {
			conn = newConn(key, p.logger)
			conn.sem <- struct{}{}
			p.conns[key] = conn
			p.mu.Unlock()

			return p.dial(ctx, conn, t, timer)
		}
		p.mu.Unlock()

		if err := conn.acquire(ctx); err != nil {
			return nil, err
		}
		conn.probe()
		if conn.Destroyed() {
			p.Evict(conn)
			continue
		}

		conn.reused = true
		p.logger.Debug("reusing connection", zap.String("key", key))
		return conn, nil
	}
}

func (p *Pool) dial(ctx context.Context, conn *Conn, t target.Target, timer *timing.Timer) (*Conn, error) {
	netConn, meta, err := p.dialer.Dial(ctx, t, timer)
	if err != nil {
		p.Evict(conn)
		return nil, err
	}

	conn.attach(netConn, meta)
	p.logger.Debug("connected",
		zap.String("key", conn.key),
		zap.String("tls_version", meta.TLSVersion),
		zap.String("remote_ip", meta.ConnectedIP),
	)

	return conn, nil
}

// busy reports whether conn is checked out. Caller holds p.mu.
func (p *Pool) busy(conn *Conn) bool {
	return len(conn.sem) > 0
}

// Release hands conn back to the pool.
func (p *Pool) Release(conn *Conn) {
	conn.release()
}

// Evict removes conn from the pool, closes it and releases it. Use instead of
// Release when the stream position is unknown.
func (p *Pool) Evict(conn *Conn) {
	p.mu.Lock()
	if p.conns[conn.key] == conn {
		delete(p.conns, conn.key)
	}
	p.mu.Unlock()

	_ = conn.Close()
	conn.release()
}

// Len returns the number of pooled connections.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Close closes and forgets every pooled connection. Connections checked out
// at the time fail their next I/O.
func (p *Pool) Close() error {
	p.mu.Lock()
	conns := p.conns
	p.conns = make(map[string]*Conn)
	p.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
	return nil
}
