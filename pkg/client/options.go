package client

import (
	"crypto/tls"
	"time"

	"go.uber.org/zap"

	"github.com/WhileEndless/go-rawfetch/pkg/constants"
	"github.com/WhileEndless/go-rawfetch/pkg/decoder"
	"github.com/WhileEndless/go-rawfetch/pkg/tlsconfig"
	"github.com/WhileEndless/go-rawfetch/pkg/transport"
)

// Options controls how the Client establishes connections and reads responses.
type Options struct {
	ConnectIP    string
	SNI          string
	InsecureTLS  bool
	ConnTimeout  time.Duration
	DNSTimeout   time.Duration // DNS resolution timeout (0 = constants.DefaultDNSTimeout)
	ReadTimeout  time.Duration // Per hop, covers waiting for the whole response
	WriteTimeout time.Duration

	// PlaintextHTTP sends http:// URLs over plain TCP. By default every
	// connection is TLS, whatever the scheme.
	PlaintextHTTP bool

	// MaxRedirects caps how many 301 responses are followed. A negative
	// value fails on the first 301.
	MaxRedirects int

	// Custom TLS configuration
	CustomCACerts [][]byte // Custom root CA certificates in PEM format

	// TLSConfig allows direct passthrough of crypto/tls.Config for full TLS control.
	// If nil, the configuration is built from InsecureTLS, SNI and CustomCACerts.
	TLSConfig *tls.Config `json:"-" yaml:"-"`

	// Logger receives connection and response diagnostics. Nil means no logging.
	Logger *zap.Logger `json:"-" yaml:"-"`

	// Dialer replaces the network dialer, mostly for tests.
	Dialer transport.Dialer `json:"-" yaml:"-"`

	// Decoders replaces the default text/JSON body decoders.
	Decoders *decoder.Registry `json:"-" yaml:"-"`
}

// DefaultOptions returns options with the library defaults filled in.
func DefaultOptions() Options {
	return Options{
		ConnTimeout:  constants.DefaultConnTimeout,
		DNSTimeout:   constants.DefaultDNSTimeout,
		ReadTimeout:  constants.DefaultReadTimeout,
		WriteTimeout: constants.DefaultWriteTimeout,
		MaxRedirects: constants.DefaultMaxRedirects,
	}
}

func (o Options) transportConfig() transport.Config {
	return transport.Config{
		ConnectIP:     o.ConnectIP,
		ConnTimeout:   o.ConnTimeout,
		DNSTimeout:    o.DNSTimeout,
		PlaintextHTTP: o.PlaintextHTTP,
		TLS: tlsconfig.Options{
			ServerName:         o.SNI,
			InsecureSkipVerify: o.InsecureTLS,
			CustomCACerts:      o.CustomCACerts,
			Base:               o.TLSConfig,
		},
	}
}
