// Package target splits request URLs into the parts the client dials and writes.
package target

import (
	"strconv"
	"strings"

	"github.com/WhileEndless/go-rawfetch/pkg/constants"
	"github.com/WhileEndless/go-rawfetch/pkg/errors"
)

// Target is a parsed request URL.
type Target struct {
	Scheme string
	Host   string
	Port   int
	// Path holds everything after the authority verbatim, query included.
	// It is never empty and always starts with "/".
	Path string
}

// Parse splits a URL of the form scheme://host[:port][/path...].
//
// Supported URL formats:
//   - https://example.com              - port 443, path "/"
//   - http://example.com/a?b=c         - port 80, path "/a?b=c"
//   - https://example.com:8443/x       - explicit port
//
// Host syntax, IPv6 literals, userinfo and percent-encoding are not
// validated; the authority is split on its first ':'.
func Parse(raw string) (Target, error) {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return Target{}, errors.NewMalformedURLError(raw, "missing scheme separator")
	}
	if scheme == "" {
		return Target{}, errors.NewMalformedURLError(raw, "empty scheme")
	}

	if !strings.Contains(rest, "/") {
		rest += "/"
	}
	pathIdx := strings.IndexByte(rest, '/')
	address, path := rest[:pathIdx], rest[pathIdx:]

	host, portStr, hasPort := strings.Cut(address, ":")
	if host == "" {
		return Target{}, errors.NewMalformedURLError(raw, "empty host")
	}

	port := DefaultPort(scheme)
	if hasPort {
		p, err := strconv.Atoi(portStr)
		if err != nil || p <= 0 || p > 65535 {
			return Target{}, errors.NewMalformedURLError(raw, "port must be a number between 1 and 65535")
		}
		port = p
	}

	return Target{
		Scheme: scheme,
		Host:   host,
		Port:   port,
		Path:   path,
	}, nil
}

// DefaultPort returns 443 for https and 80 for every other scheme.
func DefaultPort(scheme string) int {
	if strings.EqualFold(scheme, "https") {
		return constants.DefaultHTTPSPort
	}
	return constants.DefaultHTTPPort
}

// Resolve returns the target a Location header points to. Path-absolute
// locations keep the scheme, host and port of t.
func (t Target) Resolve(location string) (Target, error) {
	if strings.HasPrefix(location, "/") && !strings.HasPrefix(location, "//") {
		next := t
		next.Path = location
		return next, nil
	}
	return Parse(location)
}

// IsTLS reports whether the scheme asks for an encrypted stream.
func (t Target) IsTLS() bool {
	return strings.EqualFold(t.Scheme, "https")
}

// Authority returns host:port as written into the Host header.
func (t Target) Authority() string {
	return t.Host + ":" + strconv.Itoa(t.Port)
}

// String rebuilds the URL with an explicit port.
func (t Target) String() string {
	return t.Scheme + "://" + t.Authority() + t.Path
}
