// Package tlsconfig builds the crypto/tls configuration used for pooled
// connections and names negotiated parameters for logs and responses.
package tlsconfig

import (
	"crypto/tls"
	"crypto/x509"

	"github.com/WhileEndless/go-rawfetch/pkg/errors"
)

// Recommended SSL/TLS Version Profiles
type VersionProfile struct {
	Min         uint16
	Max         uint16
	Description string
}

var (
	// Modern - TLS 1.3 only (most secure, may not work with all servers)
	ProfileModern = VersionProfile{
		Min:         tls.VersionTLS13,
		Max:         tls.VersionTLS13,
		Description: "TLS 1.3 only - maximum security, modern servers only",
	}

	// Secure - TLS 1.2 and 1.3 (recommended for production)
	ProfileSecure = VersionProfile{
		Min:         tls.VersionTLS12,
		Max:         tls.VersionTLS13,
		Description: "TLS 1.2+ - secure and widely compatible",
	}
)

// Options selects how a connection is secured.
type Options struct {
	// ServerName overrides SNI and the verified name. Defaults to the host.
	ServerName string
	// InsecureSkipVerify disables certificate verification. Development only.
	InsecureSkipVerify bool
	// CustomCACerts are PEM encoded roots that replace the system pool.
	CustomCACerts [][]byte
	// Profile defaults to ProfileSecure.
	Profile *VersionProfile
	// Base, when set, is cloned and used as is apart from ServerName.
	Base *tls.Config
}

// Build returns the client configuration for host.
func Build(host string, opts Options) (*tls.Config, error) {
	if opts.Base != nil {
		config := opts.Base.Clone()
		if config.ServerName == "" {
			config.ServerName = serverName(host, opts)
		}
		return config, nil
	}

	profile := ProfileSecure
	if opts.Profile != nil {
		profile = *opts.Profile
	}

	config := &tls.Config{
		ServerName:         serverName(host, opts),
		InsecureSkipVerify: opts.InsecureSkipVerify,
		NextProtos:         []string{"http/1.1"},
	}
	ApplyVersionProfile(config, profile)

	if len(opts.CustomCACerts) > 0 {
		pool := x509.NewCertPool()
		for _, pem := range opts.CustomCACerts {
			if !pool.AppendCertsFromPEM(pem) {
				return nil, errors.NewValidationError("custom CA certificate is not valid PEM")
			}
		}
		config.RootCAs = pool
	}

	return config, nil
}

func serverName(host string, opts Options) string {
	if opts.ServerName != "" {
		return opts.ServerName
	}
	return host
}

// ApplyVersionProfile applies a pre-configured version profile to tls.Config
func ApplyVersionProfile(config *tls.Config, profile VersionProfile) {
	config.MinVersion = profile.Min
	config.MaxVersion = profile.Max
}

// GetVersionName returns human-readable name for SSL/TLS version
func GetVersionName(version uint16) string {
	switch version {
	case tls.VersionTLS10:
		return "TLS 1.0"
	case tls.VersionTLS11:
		return "TLS 1.1"
	case tls.VersionTLS12:
		return "TLS 1.2"
	case tls.VersionTLS13:
		return "TLS 1.3"
	default:
		return "Unknown"
	}
}
