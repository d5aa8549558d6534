// Package config loads client settings from a YAML file.
package config

import (
	"bytes"
	stderrors "errors"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/WhileEndless/go-rawfetch/pkg/client"
	"github.com/WhileEndless/go-rawfetch/pkg/errors"
)

// File is the on-disk layout. Unset fields keep the library defaults.
type File struct {
	ConnectIP     string        `yaml:"connect_ip"`
	SNI           string        `yaml:"sni"`
	InsecureTLS   bool          `yaml:"insecure_tls"`
	PlaintextHTTP bool          `yaml:"plaintext_http"`
	ConnTimeout   time.Duration `yaml:"conn_timeout"`
	DNSTimeout    time.Duration `yaml:"dns_timeout"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	MaxRedirects  *int          `yaml:"max_redirects"`

	// CACertFiles are PEM files to trust. When set, the system roots are
	// not consulted.
	CACertFiles []string `yaml:"ca_cert_files"`

	// Headers are sent with every request unless overridden per call.
	Headers map[string]string `yaml:"headers"`
}

// Load reads and parses the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIOError("reading config "+path, err)
	}

	return Parse(data)
}

// Parse decodes YAML bytes. Unknown keys are rejected and an empty document
// yields a zero File.
func Parse(data []byte) (*File, error) {
	var file File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, errors.NewValidationError("invalid config: " + err.Error())
	}

	return &file, nil
}

// Options merges the file over client.DefaultOptions. CA files are read here.
func (f *File) Options() (client.Options, error) {
	opts := client.DefaultOptions()
	opts.ConnectIP = f.ConnectIP
	opts.SNI = f.SNI
	opts.InsecureTLS = f.InsecureTLS
	opts.PlaintextHTTP = f.PlaintextHTTP

	setDuration(&opts.ConnTimeout, f.ConnTimeout)
	setDuration(&opts.DNSTimeout, f.DNSTimeout)
	setDuration(&opts.ReadTimeout, f.ReadTimeout)
	setDuration(&opts.WriteTimeout, f.WriteTimeout)

	if f.MaxRedirects != nil {
		opts.MaxRedirects = *f.MaxRedirects
		if opts.MaxRedirects == 0 {
			// zero would be replaced by the default
			opts.MaxRedirects = -1
		}
	}

	for _, path := range f.CACertFiles {
		pem, err := os.ReadFile(path)
		if err != nil {
			return client.Options{}, errors.NewIOError("reading CA file "+path, err)
		}
		opts.CustomCACerts = append(opts.CustomCACerts, pem)
	}

	return opts, nil
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}
