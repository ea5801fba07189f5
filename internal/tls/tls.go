// Package tls builds the TLS settings of the status server.
package tls

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	certName = "tls.crt"
	keyName  = "tls.key"
)

// Options selects a certificate either by explicit files or by a directory
// holding tls.crt/tls.key, optionally generated on first use.
type Options struct {
	Enabled      bool
	CertFile     string
	KeyFile      string
	Dir          string
	AutoGenerate bool
	MinVersion   string
	// Hosts are the DNS names and IPs put in a generated certificate.
	Hosts []string
}

// ParseVersion maps "1.2"/"1.3" (also "tls1.2" etc.) to crypto/tls
// constants. Empty selects TLS 1.3.
func ParseVersion(v string) (uint16, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(v)), "tls") {
	case "", "1.3":
		return tls.VersionTLS13, nil
	case "1.2":
		return tls.VersionTLS12, nil
	default:
		return 0, fmt.Errorf("unsupported TLS version %q", v)
	}
}

// Setup returns nil when TLS is disabled.
func Setup(o Options) (*tls.Config, error) {
	if !o.Enabled {
		return nil, nil
	}
	minVer, err := ParseVersion(o.MinVersion)
	if err != nil {
		return nil, err
	}

	certPath, keyPath := o.CertFile, o.KeyFile
	switch {
	case certPath != "" && keyPath != "":
	case o.Dir != "":
		certPath = filepath.Join(o.Dir, certName)
		keyPath = filepath.Join(o.Dir, keyName)
		if o.AutoGenerate && !exists(certPath, keyPath) {
			if err := os.MkdirAll(o.Dir, 0o750); err != nil {
				return nil, fmt.Errorf("create certificate dir: %w", err)
			}
			if err := GenerateSelfSigned(certPath, keyPath, o.Hosts); err != nil {
				return nil, fmt.Errorf("certificate generation failed: %w", err)
			}
		}
	default:
		return nil, errors.New("tls enabled but neither cert_file/key_file nor dir is set")
	}

	// fail at startup rather than on the first handshake
	if _, err := tls.LoadX509KeyPair(certPath, keyPath); err != nil {
		return nil, fmt.Errorf("load certificate: %w", err)
	}
	// #nosec G402
	return &tls.Config{
		MinVersion:     minVer,
		GetCertificate: reloading(certPath, keyPath),
	}, nil
}

// reloading reads the key pair on every handshake so renewed certificates
// are picked up without a restart.
func reloading(certPath, keyPath string) func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
		cert, err := tls.LoadX509KeyPair(filepath.Clean(certPath), filepath.Clean(keyPath))
		if err != nil {
			return nil, err
		}
		return &cert, nil
	}
}

func exists(paths ...string) bool {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}
