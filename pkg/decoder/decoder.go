// Package decoder turns raw response bodies into text or structured values.
package decoder

import (
	"bytes"
	"io"
	"strings"
	"sync"

	"github.com/indigo-web/utils/strcomp"
	json "github.com/json-iterator/go"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/encoding/unicode"

	"github.com/WhileEndless/go-rawfetch/pkg/errors"
)

// Media types with built-in decoders.
const (
	MIMEText = "text/plain"
	MIMEJSON = "application/json"
)

// Kind tells which fields of a Body are populated.
type Kind uint8

const (
	KindText Kind = iota
	KindJSON
)

// Body is a decoded response body. Text is always set; Value is set for JSON.
type Body struct {
	Kind  Kind
	Raw   []byte
	Text  string
	Value any
}

// String returns the body text.
func (b Body) String() string {
	return b.Text
}

// Unmarshal decodes the body text as JSON into v.
func (b Body) Unmarshal(v any) error {
	if err := json.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(b.Text, v); err != nil {
		return errors.NewDecodeError("invalid JSON body", err)
	}
	return nil
}

// Func decodes a body of one media type.
type Func func(raw []byte) (Body, error)

// Registry maps media types to decoders. Unknown types decode as text.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Func
}

// NewRegistry returns a registry with text/plain and application/json.
func NewRegistry() *Registry {
	r := &Registry{decoders: make(map[string]Func)}
	r.Register(MIMEText, DecodeText)
	r.Register(MIMEJSON, DecodeJSON)
	return r
}

// Register installs fn for mediaType, replacing any previous decoder.
func (r *Registry) Register(mediaType string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[strings.ToLower(mediaType)] = fn
}

// Decode picks the decoder by the media type of contentType. Parameters such
// as charset are ignored; the body is always treated as UTF-8.
func (r *Registry) Decode(contentType string, raw []byte) (Body, error) {
	mediaType := MediaType(contentType)

	r.mu.RLock()
	fn, ok := r.decoders[mediaType]
	r.mu.RUnlock()

	if !ok {
		return DecodeText(raw)
	}
	return fn(raw)
}

// MediaType strips parameters and surrounding space and lowercases the rest.
func MediaType(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// IsGzip reports whether a Content-Encoding value asks for gunzip.
func IsGzip(contentEncoding string) bool {
	return strcomp.EqualFold(strings.TrimSpace(contentEncoding), "gzip")
}

// DecodeText decodes raw as UTF-8. Invalid sequences become U+FFFD.
func DecodeText(raw []byte) (Body, error) {
	text, err := unicode.UTF8.NewDecoder().Bytes(raw)
	if err != nil {
		return Body{}, errors.NewDecodeError("invalid UTF-8 body", err)
	}

	return Body{
		Kind: KindText,
		Raw:  raw,
		Text: string(text),
	}, nil
}

// DecodeJSON decodes raw as UTF-8 text and parses it as JSON.
func DecodeJSON(raw []byte) (Body, error) {
	body, err := DecodeText(raw)
	if err != nil {
		return Body{}, err
	}

	var value any
	if err := body.Unmarshal(&value); err != nil {
		return Body{}, err
	}

	body.Kind = KindJSON
	body.Value = value
	return body, nil
}

var gzipReaders = sync.Pool{
	New: func() any { return new(gzip.Reader) },
}

// Gunzip decompresses a complete gzip stream.
func Gunzip(compressed []byte) ([]byte, error) {
	reader := gzipReaders.Get().(*gzip.Reader)
	defer gzipReaders.Put(reader)

	if err := reader.Reset(bytes.NewReader(compressed)); err != nil {
		return nil, errors.NewDecodeError("invalid gzip body", err)
	}
	defer reader.Close()

	plain, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.NewDecodeError("invalid gzip body", err)
	}

	return plain, nil
}
