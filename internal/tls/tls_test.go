package tls

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupDisabled(t *testing.T) {
	cfg, err := Setup(Options{})
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestSetupAutoGenerate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "certs")
	cfg, err := Setup(Options{Enabled: true, Dir: dir, AutoGenerate: true, Hosts: []string{"pve.lan", "192.168.1.10"}})
	require.NoError(t, err)
	assert.Equal(t, uint16(tls.VersionTLS13), cfg.MinVersion)

	cert, err := cfg.GetCertificate(&tls.ClientHelloInfo{})
	require.NoError(t, err)
	require.NotNil(t, cert)

	b, err := os.ReadFile(filepath.Join(dir, certName))
	require.NoError(t, err)
	block, _ := pem.Decode(b)
	require.NotNil(t, block)
	parsed, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	assert.Equal(t, []string{"pve.lan"}, parsed.DNSNames)
	require.Len(t, parsed.IPAddresses, 1)
	assert.Equal(t, "192.168.1.10", parsed.IPAddresses[0].String())

	st, err := os.Stat(filepath.Join(dir, keyName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), st.Mode().Perm())

	// a second setup reuses the existing pair
	_, err = Setup(Options{Enabled: true, Dir: dir, AutoGenerate: true})
	require.NoError(t, err)
	b2, err := os.ReadFile(filepath.Join(dir, certName))
	require.NoError(t, err)
	assert.Equal(t, b, b2, "existing certificate was regenerated")
}

func TestSetupExplicitFiles(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := filepath.Join(dir, "a.crt"), filepath.Join(dir, "a.key")
	require.NoError(t, GenerateSelfSigned(certPath, keyPath, nil))

	cfg, err := Setup(Options{Enabled: true, CertFile: certPath, KeyFile: keyPath, MinVersion: "1.2"})
	require.NoError(t, err)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
}

func TestSetupErrors(t *testing.T) {
	_, err := Setup(Options{Enabled: true})
	assert.Error(t, err, "no certificate source")

	_, err = Setup(Options{Enabled: true, Dir: t.TempDir()})
	assert.Error(t, err, "missing certificate without auto-generate")

	_, err = Setup(Options{Enabled: true, Dir: t.TempDir(), AutoGenerate: true, MinVersion: "1.0"})
	assert.Error(t, err, "unsupported version")
}

func TestParseVersion(t *testing.T) {
	tests := map[string]uint16{
		"":         tls.VersionTLS13,
		"1.3":      tls.VersionTLS13,
		"TLS1.2":   tls.VersionTLS12,
		" tls1.2 ": tls.VersionTLS12,
	}
	for in, want := range tests {
		got, err := ParseVersion(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
