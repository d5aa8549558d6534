// Package rawfetch is a small HTTP/1.1 client that writes requests and parses
// responses directly on pooled TLS connections, without net/http.
package rawfetch

import (
	"context"
	"sync"

	"github.com/WhileEndless/go-rawfetch/pkg/client"
	"github.com/WhileEndless/go-rawfetch/pkg/decoder"
	"github.com/WhileEndless/go-rawfetch/pkg/errors"
	"github.com/WhileEndless/go-rawfetch/pkg/parser"
	"github.com/WhileEndless/go-rawfetch/pkg/timing"
)

// Version is the current version of the rawfetch library
const Version = "0.1.0"

// GetVersion returns the current version of the library
func GetVersion() string {
	return Version
}

// Re-export key types for easier usage
type (
	// Options controls how the Client establishes connections and reads responses.
	Options = client.Options

	// Client sends requests over pooled connections.
	Client = client.Client

	// Request describes one call.
	Request = client.Request

	// Response represents a parsed HTTP response.
	Response = client.Response

	// Status is the parsed status line.
	Status = parser.Status

	// Headers maps header names, as received, to values.
	Headers = parser.Headers

	// Body is a decoded response body.
	Body = decoder.Body

	// Metrics captures detailed timing information for a request.
	Metrics = timing.Metrics

	// Error represents a structured error with context information.
	Error = errors.Error
)

// Re-export error types for convenience
const (
	ErrorTypeDNS              = errors.ErrorTypeDNS
	ErrorTypeConnection       = errors.ErrorTypeConnection
	ErrorTypeTLS              = errors.ErrorTypeTLS
	ErrorTypeTimeout          = errors.ErrorTypeTimeout
	ErrorTypeProtocol         = errors.ErrorTypeProtocol
	ErrorTypeIO               = errors.ErrorTypeIO
	ErrorTypeValidation       = errors.ErrorTypeValidation
	ErrorTypeTransport        = errors.ErrorTypeTransport
	ErrorTypeDecode           = errors.ErrorTypeDecode
	ErrorTypeMalformedURL     = errors.ErrorTypeMalformedURL
	ErrorTypeTooManyRedirects = errors.ErrorTypeTooManyRedirects
)

// DefaultOptions returns options with the library defaults filled in.
func DefaultOptions() Options {
	return client.DefaultOptions()
}

// NewClient returns a Client with its own connection pool.
func NewClient(opts Options) *Client {
	return client.New(opts)
}

var (
	defaultOnce   sync.Once
	defaultClient *Client
)

// Default returns the process-wide Client used by Fetch.
func Default() *Client {
	defaultOnce.Do(func() {
		defaultClient = client.New(client.DefaultOptions())
	})
	return defaultClient
}

// Fetch sends a request with the default Client. An empty method means GET
// and nil headers mean none.
func Fetch(ctx context.Context, url, method string, headers map[string]string) (*Response, error) {
	return Default().Do(ctx, Request{URL: url, Method: method, Headers: headers})
}

// IsTimeoutError checks if an error is a timeout error.
func IsTimeoutError(err error) bool {
	return errors.IsTimeoutError(err)
}

// GetErrorType returns the type of a structured error, or "" for other errors.
func GetErrorType(err error) errors.ErrorType {
	return errors.GetErrorType(err)
}
