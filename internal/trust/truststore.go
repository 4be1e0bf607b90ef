// Package trust loads the CA certificate, this node's certificate chain,
// and its private key, and exposes the two mTLS configurations every other
// component in this repo is built on: a server configuration that demands
// and verifies a client certificate, and a client configuration that
// presents this node's own identity and verifies the remote server against
// the same CA. There is no certificate pinning beyond "chains to the known
// CA" — a peer's claimed node_id is never cross-checked against the
// certificate subject.
package trust

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// Store holds the loaded mTLS material for one node.
type Store struct {
	cert   tls.Certificate
	caPool *x509.CertPool
}

// Load reads the CA certificate, node certificate chain, and node key from
// disk. Any failure here is fatal at startup.
func Load(certPath, keyPath, caPath string) (*Store, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load node keypair: %w", err)
	}

	caPEM, err := os.ReadFile(caPath)
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("no valid certificates found in %s", caPath)
	}

	return &Store{cert: cert, caPool: pool}, nil
}

// ServerTLSConfig returns a tls.Config that terminates inbound connections,
// requiring and verifying a client certificate chaining to the CA. A
// handshake from a client presenting no certificate, or one not signed by
// the CA, is rejected by the TLS layer before any handler runs.
func (s *Store) ServerTLSConfig() *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{s.cert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    s.caPool,
		MinVersion:   tls.VersionTLS12,
	}
}

// ClientTLSConfig returns a tls.Config for outbound connections: this
// node's certificate is presented, and the remote server's certificate is
// verified against the CA.
func (s *Store) ClientTLSConfig() *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{s.cert},
		RootCAs:      s.caPool,
		MinVersion:   tls.VersionTLS12,
	}
}
