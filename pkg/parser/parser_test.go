package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/dchest/uniuri"
	"github.com/stretchr/testify/require"

	"github.com/WhileEndless/go-rawfetch/pkg/errors"
)

func feedAll(t *testing.T, p *Parser, pieces ...[]byte) Outcome {
	t.Helper()
	var outcome Outcome
	for i, piece := range pieces {
		var err error
		outcome, err = p.Feed(piece)
		require.NoError(t, err)
		if outcome != NeedMore {
			require.Equal(t, len(pieces)-1, i, "parser finished before the last piece")
		}
	}
	return outcome
}

func scatter(b []byte, step int) (pieces [][]byte) {
	for i := 0; i < len(b); i += step {
		pieces = append(pieces, b[i:min(i+step, len(b))])
	}

	return pieces
}

func TestParser(t *testing.T) {
	t.Run("simple response", func(t *testing.T) {
		p := New()
		outcome := feedAll(t, p, []byte("HTTP/1.1 200 OK\r\nContent-Length: 5\r\nContent-Type: text/plain\r\n\r\nhello"))
		require.Equal(t, Complete, outcome)
		require.Equal(t, BodyComplete, p.State())
		require.Equal(t, Status{Version: "HTTP/1.1", Code: 200, Reason: "OK"}, p.Status())
		require.Equal(t, Headers{"Content-Length": "5", "Content-Type": "text/plain"}, p.Headers())
		require.Equal(t, "hello", string(p.Body()))
		require.Empty(t, p.Excess())
	})

	t.Run("reason phrase with spaces", func(t *testing.T) {
		p := New()
		outcome := feedAll(t, p, []byte("HTTP/1.1 200 Very Much OK\r\n\r\n"))
		require.Equal(t, Complete, outcome)
		require.Equal(t, "Very Much OK", p.Status().Reason)
		require.Equal(t, "HTTP/1.1 200 Very Much OK", p.Status().String())
	})

	t.Run("empty reason phrase", func(t *testing.T) {
		p := New()
		outcome := feedAll(t, p, []byte("HTTP/1.1 204\r\n\r\n"))
		require.Equal(t, Complete, outcome)
		require.Equal(t, Status{Version: "HTTP/1.1", Code: 204}, p.Status())
		require.Empty(t, p.Body())
	})

	t.Run("missing content-length is zero", func(t *testing.T) {
		p := New()
		outcome := feedAll(t, p, []byte("HTTP/1.1 200 OK\r\nServer: x\r\n\r\n"))
		require.Equal(t, Complete, outcome)
		require.Equal(t, 0, p.ExpectedLength())
		require.Empty(t, p.Body())
	})

	t.Run("unparseable content-length is zero", func(t *testing.T) {
		p := New()
		outcome := feedAll(t, p, []byte("HTTP/1.1 200 OK\r\nContent-Length: many\r\n\r\nabc"))
		require.Equal(t, Complete, outcome)
		require.Empty(t, p.Body())
		require.Equal(t, "abc", string(p.Excess()))
	})

	t.Run("waits for the whole body", func(t *testing.T) {
		p := New()
		outcome, err := p.Feed([]byte("HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\n12345"))
		require.NoError(t, err)
		require.Equal(t, NeedMore, outcome)
		require.Equal(t, HeadersParsed, p.State())
		require.Nil(t, p.Body())

		outcome, err = p.Feed([]byte("67890"))
		require.NoError(t, err)
		require.Equal(t, Complete, outcome)
		require.Equal(t, "1234567890", string(p.Body()))
	})

	t.Run("malformed header lines are dropped", func(t *testing.T) {
		p := New()
		data := "HTTP/1.1 200 OK\r\n" +
			"Good: yes\r\n" +
			"no separator here\r\n" +
			"Tight:no-space\r\n" +
			"Bad Name: x\r\n" +
			": empty name\r\n" +
			"Content-Length: 2\r\n\r\nok"
		outcome := feedAll(t, p, []byte(data))
		require.Equal(t, Complete, outcome)
		require.Equal(t, Headers{"Good": "yes", "Content-Length": "2"}, p.Headers())
		require.Equal(t, "ok", string(p.Body()))
	})

	t.Run("value keeps everything after the first separator", func(t *testing.T) {
		p := New()
		feedAll(t, p, []byte("HTTP/1.1 200 OK\r\nLink: <a>: rel=x\r\n\r\n"))
		require.Equal(t, "<a>: rel=x", p.Headers()["Link"])
	})

	t.Run("header names keep their case", func(t *testing.T) {
		p := New()
		feedAll(t, p, []byte("HTTP/1.1 200 OK\r\ncontent-length: 3\r\nX-MiXeD: v\r\n\r\nabc"))
		_, ok := p.Headers()["Content-Length"]
		require.False(t, ok)
		require.Equal(t, "3", p.Headers()["content-length"])
		require.Equal(t, "v", p.Headers().Get("x-mixed"))
		require.Equal(t, "abc", string(p.Body()))
	})

	t.Run("random headers", func(t *testing.T) {
		want := Headers{}
		var sb strings.Builder
		sb.WriteString("HTTP/1.1 200 OK\r\n")
		for i := 0; i < 50; i++ {
			key, value := uniuri.NewLen(16), uniuri.New()
			want[key] = value
			fmt.Fprintf(&sb, "%s: %s\r\n", key, value)
		}
		sb.WriteString("\r\n")

		p := New()
		outcome := feedAll(t, p, scatter([]byte(sb.String()), 7)...)
		require.Equal(t, Complete, outcome)
		require.Equal(t, want, p.Headers())
	})
}

func TestParserChunkBoundaries(t *testing.T) {
	response := []byte("HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nContent-Length: 17\r\n\r\n{\"hello\":\"world\"}")

	whole := New()
	require.Equal(t, Complete, feedAll(t, whole, response))

	for _, step := range []int{1, 2, 3, 5, 13, 64} {
		t.Run(fmt.Sprintf("step %d", step), func(t *testing.T) {
			p := New()
			outcome := feedAll(t, p, scatter(response, step)...)
			require.Equal(t, Complete, outcome)
			require.Equal(t, whole.Status(), p.Status())
			require.Equal(t, whole.Headers(), p.Headers())
			require.Equal(t, whole.Body(), p.Body())
		})
	}

	t.Run("terminator split across chunks", func(t *testing.T) {
		p := New()
		outcome := feedAll(t, p,
			[]byte("HTTP/1.1 200 OK\r\nContent-Length: 1\r"),
			[]byte("\n\r"),
			[]byte("\nx"),
		)
		require.Equal(t, Complete, outcome)
		require.Equal(t, "x", string(p.Body()))
	})
}

func TestParserExcess(t *testing.T) {
	first := "HTTP/1.1 200 OK\r\nContent-Length: 3\r\n\r\none"
	second := "HTTP/1.1 200 OK\r\nContent-Length: 3\r\n\r\ntwo"

	p := New()
	outcome := feedAll(t, p, []byte(first+second[:10]))
	require.Equal(t, Complete, outcome)
	require.Equal(t, "one", string(p.Body()))
	require.Equal(t, second[:10], string(p.Excess()))

	next := New()
	outcome = feedAll(t, next, p.Excess(), []byte(second[10:]))
	require.Equal(t, Complete, outcome)
	require.Equal(t, "two", string(next.Body()))
	require.Empty(t, next.Excess())
}

func TestParserRedirect(t *testing.T) {
	p := New()
	outcome := feedAll(t, p, []byte("HTTP/1.1 301 Moved Permanently\r\nLocation: https://example.com/new\r\nContent-Length: 4\r\n\r\n"))
	require.Equal(t, Redirect, outcome)
	require.Equal(t, Aborted, p.State())
	require.Equal(t, "https://example.com/new", p.Location())
	require.Nil(t, p.Body())

	_, err := p.Feed([]byte("more"))
	require.ErrorIs(t, err, ErrAborted)

	t.Run("301 without location is a plain response", func(t *testing.T) {
		p := New()
		outcome := feedAll(t, p, []byte("HTTP/1.1 301 Moved Permanently\r\nContent-Length: 4\r\n\r\ngone"))
		require.Equal(t, Complete, outcome)
		require.Equal(t, "gone", string(p.Body()))
	})

	t.Run("302 is not followed", func(t *testing.T) {
		p := New()
		outcome := feedAll(t, p, []byte("HTTP/1.1 302 Found\r\nLocation: /x\r\n\r\n"))
		require.Equal(t, Complete, outcome)
	})
}

func TestParserErrorStatus(t *testing.T) {
	p := New()
	outcome := feedAll(t, p, []byte("HTTP/1.1 404 Not Found\r\nContent-Length: 9\r\n\r\n"))
	require.Equal(t, ErrorStatus, outcome)
	require.Equal(t, BodyComplete, p.State())
	require.Equal(t, 404, p.Status().Code)
	require.Equal(t, "Not Found", p.Status().Reason)
	require.Nil(t, p.Body())
	require.Nil(t, p.Excess())

	_, err := p.Feed([]byte("Not Found"))
	require.ErrorIs(t, err, ErrComplete)
}

func TestParserProtocolErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not http", "SSH-2.0-OpenSSH\r\n\r\n"},
		{"no status code", "HTTP/1.1\r\n\r\n"},
		{"non-numeric status code", "HTTP/1.1 abc OK\r\n\r\n"},
		{"huge content-length", "HTTP/1.1 200 OK\r\nContent-Length: 99999999999999\r\n\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New()
			_, err := p.Feed([]byte(tt.data))
			require.Error(t, err)
			require.Equal(t, errors.ErrorTypeProtocol, errors.GetErrorType(err))
			require.Equal(t, Aborted, p.State())

			_, again := p.Feed([]byte("x"))
			require.Equal(t, err, again)
		})
	}

	t.Run("header block too large", func(t *testing.T) {
		p := New()
		_, err := p.Feed([]byte("HTTP/1.1 200 OK\r\nX: " + strings.Repeat("a", 70*1024)))
		require.Error(t, err)
		require.Equal(t, errors.ErrorTypeProtocol, errors.GetErrorType(err))
	})
}

func TestParserAbort(t *testing.T) {
	p := New()
	outcome, err := p.Feed([]byte("HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\nabc"))
	require.NoError(t, err)
	require.Equal(t, NeedMore, outcome)

	cause := errors.NewTransportError("h", 1, fmt.Errorf("reset"))
	p.Abort(cause)
	require.Equal(t, Aborted, p.State())
	require.Nil(t, p.Body())

	_, err = p.Feed([]byte("defghij"))
	require.Equal(t, cause, err)

	p.Reset()
	require.Equal(t, AwaitingHeaders, p.State())
	require.Equal(t, Complete, feedAll(t, p, []byte("HTTP/1.1 200 OK\r\n\r\n")))
}

func TestHeadersGet(t *testing.T) {
	h := Headers{"Content-Type": "text/plain", "content-type": "application/json"}
	require.Equal(t, "text/plain", h.Get("Content-Type"))
	require.Equal(t, "application/json", h.Get("content-type"))
	require.True(t, h.Has("CONTENT-TYPE"))
	require.False(t, h.Has("Location"))
	require.Equal(t, "", Headers(nil).Get("Location"))
}
