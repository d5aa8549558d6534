// Package parser implements the incremental HTTP/1.1 response parser.
//
// A Parser is fed raw bytes exactly as they come off the connection. It
// buffers until the header block is terminated, parses the status line and
// header fields, and then waits until Content-Length body bytes are buffered.
// Nothing is surfaced for a partially received body.
package parser

import (
	"bytes"
	stderrors "errors"
	"strconv"
	"strings"

	"github.com/indigo-web/utils/uf"
	"golang.org/x/net/http/httpguts"

	"github.com/WhileEndless/go-rawfetch/pkg/constants"
	"github.com/WhileEndless/go-rawfetch/pkg/errors"
)

var headerTerminator = []byte("\r\n\r\n")

// ErrAborted is returned by Feed once the parser was aborted without a cause,
// which happens when a redirect response is abandoned.
var ErrAborted = stderrors.New("parser: response abandoned")

// ErrComplete is returned by Feed after the response has been completed.
var ErrComplete = stderrors.New("parser: response already complete")

// Parser is a single-use response parser. It is not safe for concurrent use.
type Parser struct {
	state     State
	buf       []byte
	status    Status
	headers   Headers
	bodyStart int
	expected  int
	err       error
}

// New returns a parser waiting for the header block.
func New() *Parser {
	return &Parser{state: AwaitingHeaders}
}

// Feed appends chunk to the buffer and advances the state machine.
func (p *Parser) Feed(chunk []byte) (Outcome, error) {
	switch p.state {
	case Aborted:
		if p.err != nil {
			return NeedMore, p.err
		}
		return NeedMore, ErrAborted
	case BodyComplete:
		return NeedMore, ErrComplete
	}

	p.buf = append(p.buf, chunk...)

	if p.state == AwaitingHeaders {
		headerEnd := bytes.Index(p.buf, headerTerminator)
		if headerEnd == -1 {
			if len(p.buf) > constants.MaxHeaderBytes {
				return p.fail(errors.NewProtocolError("headers exceed maximum size", nil))
			}
			return NeedMore, nil
		}
		if headerEnd > constants.MaxHeaderBytes {
			return p.fail(errors.NewProtocolError("headers exceed maximum size", nil))
		}

		if err := p.parseHeaderBlock(p.buf[:headerEnd]); err != nil {
			return p.fail(err)
		}
		p.state = HeadersParsed

		switch {
		case p.status.Code == 301 && p.Location() != "":
			p.state = Aborted
			return Redirect, nil
		case p.status.Code >= 400:
			p.state = BodyComplete
			return ErrorStatus, nil
		}

		length, err := contentLength(p.headers)
		if err != nil {
			return p.fail(err)
		}
		p.bodyStart = headerEnd + len(headerTerminator)
		p.expected = length
	}

	if len(p.buf) >= p.bodyStart+p.expected {
		p.state = BodyComplete
		return Complete, nil
	}

	return NeedMore, nil
}

// Abort moves the parser to Aborted. Subsequent Feed calls return err.
func (p *Parser) Abort(err error) {
	if p.state == BodyComplete {
		return
	}
	p.state = Aborted
	p.err = err
}

// State returns the current state.
func (p *Parser) State() State {
	return p.state
}

// Status returns the parsed status line. Zero until headers are parsed.
func (p *Parser) Status() Status {
	return p.status
}

// Headers returns the parsed header fields. Nil until headers are parsed.
func (p *Parser) Headers() Headers {
	return p.headers
}

// Location returns the redirect target, if any.
func (p *Parser) Location() string {
	return p.headers.Get("Location")
}

// ExpectedLength returns the Content-Length the body is framed by.
func (p *Parser) ExpectedLength() int {
	return p.expected
}

// Body returns exactly the body region once Feed reported Complete.
func (p *Parser) Body() []byte {
	if !p.hasBody() {
		return nil
	}
	return p.buf[p.bodyStart : p.bodyStart+p.expected]
}

// Excess returns the bytes buffered past the end of the body. They belong to
// the next response on the same connection.
func (p *Parser) Excess() []byte {
	if !p.hasBody() {
		return nil
	}
	end := p.bodyStart + p.expected
	if len(p.buf) <= end {
		return nil
	}
	return p.buf[end:]
}

// Reset prepares the parser for another response. Header values handed out
// earlier stay valid.
func (p *Parser) Reset() {
	*p = Parser{state: AwaitingHeaders}
}

func (p *Parser) hasBody() bool {
	return p.state == BodyComplete && p.bodyStart > 0
}

func (p *Parser) fail(err error) (Outcome, error) {
	p.state = Aborted
	p.err = err
	return NeedMore, err
}

// parseHeaderBlock parses the status line and header fields. The block is
// treated as ASCII; strings alias the parser buffer, which is append-only.
func (p *Parser) parseHeaderBlock(block []byte) error {
	lines := strings.Split(uf.B2S(block), "\r\n")

	status, err := parseStatusLine(lines[0])
	if err != nil {
		return err
	}

	headers := make(Headers, len(lines)-1)
	for _, line := range lines[1:] {
		name, value, ok := strings.Cut(line, ": ")
		if !ok || !httpguts.ValidHeaderFieldName(name) {
			continue
		}
		headers[name] = value
	}

	p.status = status
	p.headers = headers
	return nil
}

func parseStatusLine(line string) (Status, error) {
	version, rest, ok := strings.Cut(line, " ")
	if !ok || !strings.HasPrefix(version, "HTTP/") {
		return Status{}, errors.NewProtocolError("invalid status line format", nil)
	}

	codeStr, reason, _ := strings.Cut(rest, " ")
	code, err := strconv.Atoi(codeStr)
	if err != nil || code < 100 || code > 999 {
		return Status{}, errors.NewProtocolError("invalid status code", err)
	}

	return Status{
		Version: version,
		Code:    code,
		Reason:  reason,
	}, nil
}

// contentLength reads the body length. Absent, unparseable or negative values
// count as zero.
func contentLength(headers Headers) (int, error) {
	raw := headers.Get("Content-Length")
	if raw == "" {
		return 0, nil
	}

	length, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || length < 0 {
		return 0, nil
	}
	if length > constants.MaxContentLength {
		return 0, errors.NewProtocolError("content-length too large", nil)
	}

	return int(length), nil
}
