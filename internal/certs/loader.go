package certs

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
)

// ErrInvalidKeyPair indicates the certificate chain and private key cannot be used together
var ErrInvalidKeyPair = errors.New("invalid certificate/key pair")

// Certificates holds certificate data in memory
type Certificates struct {
	CertChain  []byte
	PrivateKey []byte
}

// Config for loading certificates
type Config struct {
	CertPath string
	KeyPath  string
}

// Load reads the PEM encoded certificate chain and private key from disk and
// validates that they belong together.
func Load(cfg Config) (*Certificates, error) {
	certs := &Certificates{}

	chain, err := os.ReadFile(cfg.CertPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate chain: %w", err)
	}
	certs.CertChain = chain

	key, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	certs.PrivateKey = key

	if err := certs.Validate(); err != nil {
		return nil, err
	}

	return certs, nil
}

// TLSConfig creates the server tls.Config. Only TLS 1.3 is negotiated,
// session tickets are off and ALPN only offers HTTP/1.1.
func (c *Certificates) TLSConfig() (*tls.Config, error) {
	serverCert, err := tls.X509KeyPair(c.CertChain, c.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeyPair, err)
	}

	return &tls.Config{
		Certificates:           []tls.Certificate{serverCert},
		MinVersion:             tls.VersionTLS13,
		MaxVersion:             tls.VersionTLS13,
		SessionTicketsDisabled: true,
		CurvePreferences:       []tls.CurveID{tls.X25519, tls.CurveP256, tls.CurveP384},
		NextProtos:             []string{"http/1.1"},
	}, nil
}

// Validate checks the chain and key are valid PEM and that the key matches
// the leaf certificate.
func (c *Certificates) Validate() error {
	if _, err := tls.X509KeyPair(c.CertChain, c.PrivateKey); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidKeyPair, err)
	}
	return nil
}
