package transport

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/indigo-web/utils/unreader"
	"go.uber.org/zap"

	"github.com/WhileEndless/go-rawfetch/pkg/constants"
)

// aLongTimeAgo is a deadline in the past used to interrupt blocked I/O.
var aLongTimeAgo = time.Unix(1, 0)

// probeTimeout bounds the liveness read done before a pooled connection is
// handed out again.
const probeTimeout = time.Millisecond

// Conn is a pooled connection. Exactly one request uses it at a time; the
// pool hands it out and takes it back.
type Conn struct {
	key      string
	conn     net.Conn
	meta     Metadata
	logger   *zap.Logger
	unreader *unreader.Unreader
	buff     []byte

	// sem holds a token while the connection is checked out
	sem chan struct{}

	reused    bool
	pending   bool
	destroyed atomic.Bool
	aborting  atomic.Bool
	closeOnce sync.Once
}

func newConn(key string, logger *zap.Logger) *Conn {
	return &Conn{
		key:      key,
		logger:   logger.With(zap.String("key", key)),
		unreader: new(unreader.Unreader),
		sem:      make(chan struct{}, 1),
	}
}

// attach binds the dialed stream.
func (c *Conn) attach(conn net.Conn, meta Metadata) {
	c.conn = conn
	c.meta = meta
	c.buff = make([]byte, constants.ReadBufferSize)
}

// Read returns bytes pushed back by Unread first, otherwise the next bytes
// from the socket. The returned slice is only valid until the next Read.
func (c *Conn) Read() ([]byte, error) {
	c.pending = false
	return c.unreader.PendingOr(func() ([]byte, error) {
		n, err := c.conn.Read(c.buff)
		if err != nil {
			c.observe(err)
		}

		return c.buff[:n], err
	})
}

// Unread queues b to be returned by the next Read.
func (c *Conn) Unread(b []byte) {
	c.pending = len(b) > 0
	c.unreader.Unread(b)
}

// probe notices a peer that hung up while the connection sat idle in the
// pool. Bytes that arrive unasked are kept for the next Read.
func (c *Conn) probe() {
	if c.pending || c.Destroyed() {
		return
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(probeTimeout)); err != nil {
		c.observe(err)
		return
	}
	n, err := c.conn.Read(c.buff)
	if n > 0 {
		c.Unread(append([]byte(nil), c.buff[:n]...))
	}
	if err != nil && !stderrors.Is(err, os.ErrDeadlineExceeded) {
		c.observe(err)
		return
	}
	_ = c.conn.SetReadDeadline(time.Time{})
}

// Write writes all of b.
func (c *Conn) Write(b []byte) error {
	for written := 0; written < len(b); {
		n, err := c.conn.Write(b[written:])
		if err != nil {
			c.observe(err)
			return err
		}
		written += n
	}

	return nil
}

// SetDeadline sets read and write deadlines on the underlying stream.
func (c *Conn) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}

// SetReadDeadline sets the read deadline on the underlying stream.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// SetWriteDeadline sets the write deadline on the underlying stream.
func (c *Conn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

// Abort interrupts blocked I/O. The resulting errors are not logged.
func (c *Conn) Abort() {
	c.aborting.Store(true)
	_ = c.conn.SetDeadline(aLongTimeAgo)
}

// Destroyed reports whether the stream failed, ended or was closed.
func (c *Conn) Destroyed() bool {
	return c.destroyed.Load()
}

// Reused reports whether the connection served an earlier request.
func (c *Conn) Reused() bool {
	return c.reused
}

// Metadata returns details captured when the connection was dialed.
func (c *Conn) Metadata() Metadata {
	return c.meta
}

// Key returns the host:port the connection is pooled under.
func (c *Conn) Key() string {
	return c.key
}

// Close destroys the connection. It is idempotent.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.destroyed.Store(true)
		c.unreader.Reset()
		if c.conn != nil {
			err = c.conn.Close()
		}
		c.logger.Debug("closed")
	})
	return err
}

// observe marks the connection destroyed and logs the failure. Aborts are
// not logged.
func (c *Conn) observe(err error) {
	c.destroyed.Store(true)

	switch {
	case c.isAbort(err):
	case stderrors.Is(err, io.EOF):
		c.logger.Debug("disconnected")
	case stderrors.Is(err, os.ErrDeadlineExceeded):
		c.logger.Warn("i/o timeout", zap.Error(err))
	default:
		c.logger.Error("connection error", zap.Error(err))
	}
}

func (c *Conn) isAbort(err error) bool {
	return c.aborting.Load() ||
		stderrors.Is(err, net.ErrClosed) ||
		stderrors.Is(err, context.Canceled)
}

// acquire takes the token, waiting until the holder releases it.
func (c *Conn) acquire(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// release returns the token and clears per-request state.
func (c *Conn) release() {
	c.aborting.Store(false)
	if c.conn != nil && !c.Destroyed() {
		_ = c.conn.SetDeadline(time.Time{})
	}
	<-c.sem
}
