// Package creds builds gRPC transport credentials from certificate
// material given as file paths or in-memory PEM blobs.
package creds

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// Credentials names the certificate material for a TLS connection. Each
// item may be given as a file path or as in-memory PEM bytes; the bytes
// win when both are set. A nil *Credentials (or an empty one) means an
// insecure, plaintext connection.
type Credentials struct {
	// CACert is the path to a PEM bundle of trusted roots. Empty means the
	// system root pool.
	CACert    string `yaml:"cacert"`
	CACertPEM []byte `yaml:"-"`

	// Cert and Key are paths to the client certificate pair. Both empty
	// means no client authentication.
	Cert    string `yaml:"cert"`
	CertPEM []byte `yaml:"-"`
	Key     string `yaml:"key"`
	KeyPEM  []byte `yaml:"-"`

	// TargetNameOverride overrides the server name checked against the
	// peer certificate. Intended for test setups only.
	TargetNameOverride string `yaml:"target_name_override"`
}

// IsSecure reports whether the credentials name any TLS material.
func (c *Credentials) IsSecure() bool {
	return c != nil && (c.CACert != "" || len(c.CACertPEM) > 0 ||
		c.Cert != "" || len(c.CertPEM) > 0 ||
		c.Key != "" || len(c.KeyPEM) > 0 ||
		c.TargetNameOverride != "")
}

// material resolves one credential item, preferring in-memory bytes
// over a file path. Both empty yields nil with no error.
func material(pem []byte, path string) ([]byte, error) {
	if len(pem) > 0 {
		return pem, nil
	}
	if path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}

// Transport builds the gRPC transport credentials described by c.
func (c *Credentials) Transport() (credentials.TransportCredentials, error) {
	if !c.IsSecure() {
		return insecure.NewCredentials(), nil
	}

	cfg := &tls.Config{
		ServerName: c.TargetNameOverride,
	}

	ca, err := material(c.CACertPEM, c.CACert)
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}
	if ca != nil {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(ca) {
			return nil, fmt.Errorf("no certificates found in CA bundle")
		}
		cfg.RootCAs = pool
	}

	cert, err := material(c.CertPEM, c.Cert)
	if err != nil {
		return nil, fmt.Errorf("read client certificate: %w", err)
	}
	key, err := material(c.KeyPEM, c.Key)
	if err != nil {
		return nil, fmt.Errorf("read client key: %w", err)
	}
	if cert != nil || key != nil {
		pair, err := tls.X509KeyPair(cert, key)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{pair}
	}

	return credentials.NewTLS(cfg), nil
}
