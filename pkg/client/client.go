// Package client provides the main HTTP client API.
package client

import (
	"context"
	stderrors "errors"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/WhileEndless/go-rawfetch/pkg/decoder"
	"github.com/WhileEndless/go-rawfetch/pkg/errors"
	"github.com/WhileEndless/go-rawfetch/pkg/parser"
	"github.com/WhileEndless/go-rawfetch/pkg/target"
	"github.com/WhileEndless/go-rawfetch/pkg/timing"
	"github.com/WhileEndless/go-rawfetch/pkg/transport"
)

// Response represents a parsed HTTP response.
type Response struct {
	Status  parser.Status
	Headers parser.Headers
	// Body is the decoded body. For status codes of 400 and above it holds
	// the reason phrase and no body bytes are read.
	Body decoder.Body

	URL       string // Final URL after redirects, with explicit port
	Redirects int    // Number of 301 responses followed
	Timings   timing.Metrics

	// Connection metadata
	ConnectedIP        string // Actual IP address connected to (after DNS resolution)
	ConnectedPort      int    // Actual port connected to
	NegotiatedProtocol string // ALPN result, or HTTP/1.1
	TLSVersion         string // TLS version used (e.g., "TLS 1.3"), empty for plaintext
	TLSCipherSuite     string // TLS cipher suite used
	TLSServerName      string // TLS Server Name (SNI)
	ConnectionReused   bool   // Whether the connection was reused from pool
}

// Client implements raw HTTP/1.1 over pooled connections.
type Client struct {
	opts     Options
	pool     *transport.Pool
	decoders *decoder.Registry
	logger   *zap.Logger
}

// New returns a Client. Zero durations and a zero MaxRedirects take the
// library defaults.
func New(opts Options) *Client {
	defaults := DefaultOptions()
	if opts.ConnTimeout <= 0 {
		opts.ConnTimeout = defaults.ConnTimeout
	}
	if opts.DNSTimeout <= 0 {
		opts.DNSTimeout = defaults.DNSTimeout
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaults.ReadTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaults.WriteTimeout
	}
	if opts.MaxRedirects == 0 {
		opts.MaxRedirects = defaults.MaxRedirects
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dialer := opts.Dialer
	if dialer == nil {
		dialer = transport.NewDialer(opts.transportConfig())
	}

	decoders := opts.Decoders
	if decoders == nil {
		decoders = decoder.NewRegistry()
	}

	return &Client{
		opts:     opts,
		pool:     transport.NewPool(dialer, logger),
		decoders: decoders,
		logger:   logger.Named("client"),
	}
}

// Get is Do with the GET method.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return c.Do(ctx, Request{URL: url, Method: "GET", Headers: headers})
}

// Do sends the request and returns the final response. 301 responses with a
// Location header are followed with the same method and headers, up to
// Options.MaxRedirects hops; a negative MaxRedirects fails on the first 301.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = "GET"
	}
	headers := req.Headers
	if headers == nil {
		headers = map[string]string{}
	}

	t, err := target.Parse(req.URL)
	if err != nil {
		return nil, err
	}

	timer := timing.NewTimer()
	for redirects := 0; ; redirects++ {
		resp, location, err := c.roundTrip(ctx, method, t, headers, timer)
		if err != nil {
			return nil, err
		}

		if location == "" {
			resp.URL = t.String()
			resp.Redirects = redirects
			resp.Timings = timer.GetMetrics()
			return resp, nil
		}

		if redirects >= c.opts.MaxRedirects {
			return nil, errors.NewTooManyRedirectsError(t.String(), redirects)
		}

		next, err := t.Resolve(location)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("following redirect",
			zap.String("from", t.String()),
			zap.String("to", next.String()),
		)
		t = next
		timer.ResetConnection()
	}
}

// roundTrip performs one hop. A non-empty location means the response was a
// redirect and has been abandoned.
func (c *Client) roundTrip(ctx context.Context, method string, t target.Target, headers map[string]string, timer *timing.Timer) (*Response, string, error) {
	wire, err := EncodeRequest(method, t, headers)
	if err != nil {
		return nil, "", err
	}

	conn, err := c.pool.Acquire(ctx, t, timer)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", ctxErr
		}
		return nil, "", err
	}

	// The connection goes back to the pool only when exactly one response
	// was consumed from it.
	keep := false
	stop := context.AfterFunc(ctx, conn.Abort)
	defer func() {
		if !stop() {
			keep = false
		}
		if keep {
			c.pool.Release(conn)
		} else {
			c.pool.Evict(conn)
		}
	}()

	now := time.Now()
	_ = conn.SetWriteDeadline(now.Add(c.opts.WriteTimeout))
	_ = conn.SetReadDeadline(now.Add(c.opts.ReadTimeout))

	if err := conn.Write(wire); err != nil {
		return nil, "", c.streamError(ctx, t, "writing request", c.opts.WriteTimeout, err)
	}

	timer.StartTTFB()
	p := parser.New()
	for {
		data, readErr := conn.Read()
		if len(data) > 0 {
			timer.EndTTFB()

			outcome, err := p.Feed(data)
			if err != nil {
				return nil, "", err
			}

			switch outcome {
			case parser.Redirect:
				return nil, p.Location(), nil
			case parser.ErrorStatus:
				status := p.Status()
				c.logger.Warn("error status",
					zap.Int("code", status.Code),
					zap.String("reason", status.Reason),
					zap.String("url", t.String()),
				)
				body := decoder.Body{Kind: decoder.KindText, Raw: []byte(status.Reason), Text: status.Reason}
				return newResponse(p, conn, body), "", nil
			case parser.Complete:
				if excess := p.Excess(); len(excess) > 0 {
					conn.Unread(excess)
				}
				keep = true

				body, err := c.decodeBody(p)
				if err != nil {
					return nil, "", err
				}
				return newResponse(p, conn, body), "", nil
			}
		}

		if readErr != nil {
			err := c.streamError(ctx, t, "reading response", c.opts.ReadTimeout, readErr)
			p.Abort(err)
			return nil, "", err
		}
	}
}

func (c *Client) decodeBody(p *parser.Parser) (decoder.Body, error) {
	raw := p.Body()
	headers := p.Headers()

	if decoder.IsGzip(headers.Get("Content-Encoding")) {
		plain, err := decoder.Gunzip(raw)
		if err != nil {
			return decoder.Body{}, err
		}
		raw = plain
	}

	return c.decoders.Decode(headers.Get("Content-Type"), raw)
}

// streamError maps an I/O failure to the error returned to the caller. A
// finished context wins over whatever the socket reported.
func (c *Client) streamError(ctx context.Context, t target.Target, op string, timeout time.Duration, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if stderrors.Is(err, os.ErrDeadlineExceeded) {
		return errors.NewTimeoutError(op, timeout)
	}
	return errors.NewTransportError(t.Host, t.Port, err)
}

func newResponse(p *parser.Parser, conn *transport.Conn, body decoder.Body) *Response {
	meta := conn.Metadata()
	return &Response{
		Status:             p.Status(),
		Headers:            p.Headers(),
		Body:               body,
		ConnectedIP:        meta.ConnectedIP,
		ConnectedPort:      meta.ConnectedPort,
		NegotiatedProtocol: meta.NegotiatedProtocol,
		TLSVersion:         meta.TLSVersion,
		TLSCipherSuite:     meta.TLSCipherSuite,
		TLSServerName:      meta.TLSServerName,
		ConnectionReused:   conn.Reused(),
	}
}

// PoolSize returns the number of pooled connections.
func (c *Client) PoolSize() int {
	return c.pool.Len()
}

// Close closes every pooled connection.
func (c *Client) Close() error {
	return c.pool.Close()
}
