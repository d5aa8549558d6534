package target

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/WhileEndless/go-rawfetch/pkg/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Target
	}{
		{"https default port", "https://example.com/index.html", Target{"https", "example.com", 443, "/index.html"}},
		{"http default port", "http://example.com/a", Target{"http", "example.com", 80, "/a"}},
		{"other scheme defaults to 80", "ws://example.com/", Target{"ws", "example.com", 80, "/"}},
		{"uppercase https", "HTTPS://example.com", Target{"HTTPS", "example.com", 443, "/"}},
		{"explicit port", "https://localhost:8888/x", Target{"https", "localhost", 8888, "/x"}},
		{"implicit root path", "https://example.com", Target{"https", "example.com", 443, "/"}},
		{"implicit root path with port", "http://h:1", Target{"http", "h", 1, "/"}},
		{"query kept verbatim", "https://h/search?q=a%20b#frag", Target{"https", "h", 443, "/search?q=a%20b#frag"}},
		{"path with colon", "https://h/a:b", Target{"https", "h", 443, "/a:b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseDefaultsAreProperties(t *testing.T) {
	hosts := []string{"a", "example.com", "127.0.0.1", "x.y.z"}
	for _, host := range hosts {
		for _, scheme := range []string{"https", "http", "ftp"} {
			got, err := Parse(scheme + "://" + host)
			require.NoError(t, err)
			require.Equal(t, "/", got.Path)
			if scheme == "https" {
				require.Equal(t, 443, got.Port)
			} else {
				require.Equal(t, 80, got.Port)
			}
		}
	}
}

func TestParseMalformed(t *testing.T) {
	for _, raw := range []string{
		"example.com/path",
		"://example.com",
		"https://",
		"https://:443/",
		"https://h:abc/",
		"https://h:0/",
		"https://h:70000/",
		"https://h:1:2/",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := Parse(raw)
			require.Error(t, err)
			require.Equal(t, errors.ErrorTypeMalformedURL, errors.GetErrorType(err))
		})
	}
}

func TestResolve(t *testing.T) {
	base, err := Parse("https://example.com:8443/old")
	require.NoError(t, err)

	next, err := base.Resolve("/new?x=1")
	require.NoError(t, err)
	require.Equal(t, Target{"https", "example.com", 8443, "/new?x=1"}, next)

	next, err = base.Resolve("http://other.org/landing")
	require.NoError(t, err)
	require.Equal(t, Target{"http", "other.org", 80, "/landing"}, next)

	_, err = base.Resolve("//other.org/landing")
	require.Error(t, err)
}

func TestAuthorityAndString(t *testing.T) {
	tg := Target{Scheme: "https", Host: "h", Port: 1, Path: "/x"}
	require.Equal(t, "h:1", tg.Authority())
	require.Equal(t, "https://h:1/x", tg.String())
	require.True(t, tg.IsTLS())
	require.False(t, Target{Scheme: "http"}.IsTLS())
}
