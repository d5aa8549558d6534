package parser

import (
	"strconv"

	"github.com/indigo-web/utils/strcomp"
)

// State is the parser's position in a response.
type State uint8

const (
	AwaitingHeaders State = iota
	HeadersParsed
	BodyComplete
	Aborted
)

func (s State) String() string {
	switch s {
	case AwaitingHeaders:
		return "awaiting_headers"
	case HeadersParsed:
		return "headers_parsed"
	case BodyComplete:
		return "body_complete"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Outcome tells the caller what to do after a Feed call.
type Outcome uint8

const (
	// NeedMore means the response is incomplete; read more bytes.
	NeedMore Outcome = iota
	// Redirect means a 301 with a Location header was received. The response
	// is abandoned and no body is read.
	Redirect
	// ErrorStatus means the status code is 400 or above. No body is read.
	ErrorStatus
	// Complete means the whole body is buffered.
	Complete
)

// Status is the parsed status line.
type Status struct {
	Version string
	Code    int
	Reason  string
}

// String returns the status line without CRLF.
func (s Status) String() string {
	line := s.Version + " " + strconv.Itoa(s.Code)
	if s.Reason != "" {
		line += " " + s.Reason
	}
	return line
}

// Headers maps header names, exactly as received, to their values. When a
// name repeats the last value wins.
type Headers map[string]string

// Get returns the value stored under name. An exact match is preferred; other
// spellings of the name are matched case-insensitively.
func (h Headers) Get(name string) string {
	if v, ok := h[name]; ok {
		return v
	}
	for k, v := range h {
		if strcomp.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Has reports whether name is present, compared case-insensitively.
func (h Headers) Has(name string) bool {
	if _, ok := h[name]; ok {
		return true
	}
	for k := range h {
		if strcomp.EqualFold(k, name) {
			return true
		}
	}
	return false
}
