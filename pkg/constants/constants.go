// Package constants defines magic numbers and default values used throughout go-rawfetch
package constants

import "time"

// Connection timeouts
const (
	DefaultConnTimeout  = 10 * time.Second
	DefaultDNSTimeout   = 5 * time.Second
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 10 * time.Second
)

// Default ports by scheme
const (
	DefaultHTTPSPort = 443
	DefaultHTTPPort  = 80
)

// HTTP limits
const (
	MaxHeaderBytes      = 64 * 1024
	MaxContentLength    = 1024 * 1024 * 1024 // 1GB, the whole body is held in memory
	DefaultMaxRedirects = 10
)

// Socket read buffer size per pooled connection
const ReadBufferSize = 32 * 1024

// HTTPVersion is the only protocol version this client speaks.
const HTTPVersion = "HTTP/1.1"
