package decoder

import (
	"bytes"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/WhileEndless/go-rawfetch/pkg/errors"
)

func gzipped(text string) []byte {
	buff := bytes.NewBuffer(nil)
	c := gzip.NewWriter(buff)
	_, err := c.Write([]byte(text))
	if err != nil {
		panic("unexpected error during gzipping")
	}
	if c.Close() != nil {
		panic("unexpected error during closing gzip writer")
	}

	return buff.Bytes()
}

func TestDecode(t *testing.T) {
	registry := NewRegistry()

	t.Run("text/plain", func(t *testing.T) {
		body, err := registry.Decode("text/plain", []byte("Hello, world!"))
		require.NoError(t, err)
		require.Equal(t, KindText, body.Kind)
		require.Equal(t, "Hello, world!", body.String())
		require.Nil(t, body.Value)
	})

	t.Run("json", func(t *testing.T) {
		body, err := registry.Decode("application/json", []byte(`{"name":"rawfetch","tags":["a","b"],"n":3}`))
		require.NoError(t, err)
		require.Equal(t, KindJSON, body.Kind)
		require.Equal(t, map[string]any{
			"name": "rawfetch",
			"tags": []any{"a", "b"},
			"n":    float64(3),
		}, body.Value)

		var typed struct {
			Name string   `json:"name"`
			Tags []string `json:"tags"`
		}
		require.NoError(t, body.Unmarshal(&typed))
		require.Equal(t, "rawfetch", typed.Name)
		require.Equal(t, []string{"a", "b"}, typed.Tags)
	})

	t.Run("json with charset parameter", func(t *testing.T) {
		body, err := registry.Decode("Application/JSON; charset=utf-8", []byte(`[1,2]`))
		require.NoError(t, err)
		require.Equal(t, KindJSON, body.Kind)
		require.Equal(t, []any{float64(1), float64(2)}, body.Value)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := registry.Decode("application/json", []byte(`{"unterminated":`))
		require.Error(t, err)
		require.Equal(t, errors.ErrorTypeDecode, errors.GetErrorType(err))
	})

	t.Run("unknown and absent types decode as text", func(t *testing.T) {
		for _, ct := range []string{"", "text/html", "application/octet-stream"} {
			body, err := registry.Decode(ct, []byte("<p>hi</p>"))
			require.NoError(t, err)
			require.Equal(t, KindText, body.Kind)
			require.Equal(t, "<p>hi</p>", body.Text)
		}
	})

	t.Run("invalid utf-8 is replaced", func(t *testing.T) {
		body, err := registry.Decode("text/plain", []byte("a\xffb"))
		require.NoError(t, err)
		require.Equal(t, "a�b", body.Text)
		require.Equal(t, []byte("a\xffb"), body.Raw)
	})

	t.Run("custom decoder", func(t *testing.T) {
		r := NewRegistry()
		r.Register("text/csv", func(raw []byte) (Body, error) {
			return Body{Kind: KindText, Raw: raw, Text: strings.ToUpper(string(raw))}, nil
		})
		body, err := r.Decode("text/csv; header=present", []byte("a,b"))
		require.NoError(t, err)
		require.Equal(t, "A,B", body.Text)
	})
}

func TestGunzip(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		text, err := Gunzip(gzipped("Hello, world!"))
		require.NoError(t, err)
		require.Equal(t, "Hello, world!", string(text))
	})

	t.Run("large", func(t *testing.T) {
		text := strings.Repeat("Hello, world! Lorem ipsum! ", 1000)
		plain, err := Gunzip(gzipped(text))
		require.NoError(t, err)
		require.Equal(t, text, string(plain))
	})

	t.Run("reused readers", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			plain, err := Gunzip(gzipped(strings.Repeat("x", i)))
			require.NoError(t, err)
			require.Equal(t, strings.Repeat("x", i), string(plain))
		}
	})

	t.Run("not gzip", func(t *testing.T) {
		_, err := Gunzip([]byte("plain text"))
		require.Error(t, err)
		require.Equal(t, errors.ErrorTypeDecode, errors.GetErrorType(err))
	})

	t.Run("truncated", func(t *testing.T) {
		data := gzipped(strings.Repeat("abc", 100))
		_, err := Gunzip(data[:len(data)/2])
		require.Error(t, err)
	})
}

func TestHelpers(t *testing.T) {
	require.Equal(t, "text/plain", MediaType(" Text/Plain ; charset=utf-8"))
	require.Equal(t, "", MediaType(""))
	require.True(t, IsGzip("gzip"))
	require.True(t, IsGzip(" GZIP "))
	require.False(t, IsGzip("br"))
	require.False(t, IsGzip(""))
}
