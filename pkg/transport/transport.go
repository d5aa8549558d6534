// Package transport provides the low-level connection handling: dialing
// (DNS, TCP, TLS) and a pool keeping one live connection per host:port.
package transport

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"time"

	"github.com/WhileEndless/go-rawfetch/pkg/constants"
	"github.com/WhileEndless/go-rawfetch/pkg/errors"
	"github.com/WhileEndless/go-rawfetch/pkg/target"
	"github.com/WhileEndless/go-rawfetch/pkg/timing"
	"github.com/WhileEndless/go-rawfetch/pkg/tlsconfig"
)

// Config holds dialer configuration.
type Config struct {
	// ConnectIP skips DNS and dials this address instead of the host.
	ConnectIP   string
	ConnTimeout time.Duration
	DNSTimeout  time.Duration
	// PlaintextHTTP dials http targets without TLS. By default every
	// connection is encrypted regardless of scheme.
	PlaintextHTTP bool
	TLS           tlsconfig.Options
}

// Metadata describes an established connection.
type Metadata struct {
	ConnectedIP        string
	ConnectedPort      int
	NegotiatedProtocol string
	TLSVersion         string
	TLSCipherSuite     string
	TLSServerName      string
}

// Dialer opens the byte stream for a target.
type Dialer interface {
	Dial(ctx context.Context, t target.Target, timer *timing.Timer) (net.Conn, Metadata, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, t target.Target, timer *timing.Timer) (net.Conn, Metadata, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, t target.Target, timer *timing.Timer) (net.Conn, Metadata, error) {
	return f(ctx, t, timer)
}

// NetDialer dials real sockets.
type NetDialer struct {
	config   Config
	resolver *net.Resolver
}

// NewDialer creates a NetDialer using the default resolver.
func NewDialer(config Config) *NetDialer {
	return &NetDialer{
		config:   config,
		resolver: net.DefaultResolver,
	}
}

// NewDialerWithResolver creates a NetDialer with a custom resolver.
func NewDialerWithResolver(config Config, resolver *net.Resolver) *NetDialer {
	return &NetDialer{
		config:   config,
		resolver: resolver,
	}
}

// Dial resolves, connects and, unless plaintext was requested for an http
// target, performs the TLS handshake.
func (d *NetDialer) Dial(ctx context.Context, t target.Target, timer *timing.Timer) (net.Conn, Metadata, error) {
	if err := validateTarget(t); err != nil {
		return nil, Metadata{}, err
	}

	connTimeout := d.config.ConnTimeout
	if connTimeout <= 0 {
		connTimeout = constants.DefaultConnTimeout
	}

	dialAddr, err := d.resolveAddress(ctx, t, timer)
	if err != nil {
		return nil, Metadata{}, err
	}

	conn, err := d.connectTCP(ctx, dialAddr, connTimeout, timer)
	if err != nil {
		return nil, Metadata{}, errors.NewConnectionError(t.Host, t.Port, err)
	}

	meta := Metadata{
		NegotiatedProtocol: constants.HTTPVersion,
	}
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		meta.ConnectedIP = addr.IP.String()
		meta.ConnectedPort = addr.Port
	}

	if d.config.PlaintextHTTP && !t.IsTLS() {
		return conn, meta, nil
	}

	tlsConn, err := d.upgradeTLS(ctx, conn, t, connTimeout, timer)
	if err != nil {
		conn.Close()
		return nil, Metadata{}, err
	}

	state := tlsConn.ConnectionState()
	meta.TLSVersion = tlsconfig.GetVersionName(state.Version)
	meta.TLSCipherSuite = tls.CipherSuiteName(state.CipherSuite)
	meta.TLSServerName = state.ServerName
	if state.NegotiatedProtocol != "" {
		meta.NegotiatedProtocol = state.NegotiatedProtocol
	}

	return tlsConn, meta, nil
}

func validateTarget(t target.Target) error {
	if t.Host == "" {
		return errors.NewValidationError("host cannot be empty")
	}
	if t.Port <= 0 || t.Port > 65535 {
		return errors.NewValidationError("port must be between 1 and 65535")
	}
	return nil
}

func (d *NetDialer) resolveAddress(ctx context.Context, t target.Target, timer *timing.Timer) (string, error) {
	// If ConnectIP is specified, use it directly
	if d.config.ConnectIP != "" {
		return net.JoinHostPort(d.config.ConnectIP, strconv.Itoa(t.Port)), nil
	}

	// Literal addresses need no lookup
	if ip := net.ParseIP(t.Host); ip != nil {
		return net.JoinHostPort(ip.String(), strconv.Itoa(t.Port)), nil
	}

	timer.StartDNS()
	defer timer.EndDNS()

	dnsTimeout := d.config.DNSTimeout
	if dnsTimeout <= 0 {
		dnsTimeout = constants.DefaultDNSTimeout
	}

	ctxLookup, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()

	addrs, err := d.resolver.LookupIPAddr(ctxLookup, t.Host)
	if err != nil {
		return "", errors.NewDNSError(t.Host, err)
	}

	if len(addrs) == 0 {
		return "", errors.NewDNSError(t.Host, errors.NewValidationError("no IP addresses found"))
	}

	// Use the first address
	return net.JoinHostPort(addrs[0].IP.String(), strconv.Itoa(t.Port)), nil
}

func (d *NetDialer) connectTCP(ctx context.Context, dialAddr string, timeout time.Duration, timer *timing.Timer) (net.Conn, error) {
	timer.StartTCP()
	defer timer.EndTCP()

	dialer := &net.Dialer{Timeout: timeout}
	return dialer.DialContext(ctx, "tcp", dialAddr)
}

func (d *NetDialer) upgradeTLS(ctx context.Context, conn net.Conn, t target.Target, timeout time.Duration, timer *timing.Timer) (*tls.Conn, error) {
	timer.StartTLS()
	defer timer.EndTLS()

	config, err := tlsconfig.Build(t.Host, d.config.TLS)
	if err != nil {
		return nil, err
	}

	tlsCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tlsConn := tls.Client(conn, config)
	if err := tlsConn.HandshakeContext(tlsCtx); err != nil {
		return nil, errors.NewTLSError(t.Host, t.Port, err)
	}

	return tlsConn, nil
}
