package client

import (
	"sort"
	"strings"

	"github.com/WhileEndless/go-rawfetch/pkg/constants"
	"github.com/WhileEndless/go-rawfetch/pkg/errors"
	"github.com/WhileEndless/go-rawfetch/pkg/target"
)

// Request describes one call. Requests carry no body.
type Request struct {
	URL    string
	Method string // Defaults to GET
	// Headers are written after Host in name order. Nil means none.
	Headers map[string]string
}

// EncodeRequest renders the request line and header block:
//
//	METHOD SP path SP HTTP/1.1 CRLF
//	Host: host:port CRLF
//	Name: value CRLF        (one per extra header)
//	CRLF
//
// No Content-Length, User-Agent or other header is added.
func EncodeRequest(method string, t target.Target, headers map[string]string) ([]byte, error) {
	if err := validateMethod(method); err != nil {
		return nil, err
	}
	if strings.ContainsAny(t.Path, "\r\n") {
		return nil, errors.NewValidationError("path contains CR or LF")
	}

	names := make([]string, 0, len(headers))
	for name, value := range headers {
		if strings.ContainsAny(name, "\r\n:") || name == "" || strings.ContainsAny(value, "\r\n") {
			return nil, errors.NewValidationError("header " + name + " contains forbidden characters")
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.Grow(64 + len(t.Path) + 32*len(names))

	sb.WriteString(method)
	sb.WriteByte(' ')
	sb.WriteString(t.Path)
	sb.WriteByte(' ')
	sb.WriteString(constants.HTTPVersion)
	sb.WriteString("\r\nHost: ")
	sb.WriteString(t.Authority())
	sb.WriteString("\r\n")

	for _, name := range names {
		sb.WriteString(name)
		sb.WriteString(": ")
		sb.WriteString(headers[name])
		sb.WriteString("\r\n")
	}
	sb.WriteString("\r\n")

	return []byte(sb.String()), nil
}

func validateMethod(method string) error {
	if method == "" || strings.ContainsAny(method, " \r\n") {
		return errors.NewValidationError("invalid method " + method)
	}
	return nil
}
