package server

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"golang.org/x/crypto/pkcs12"
)

// loadTLSConfig decodes the PFX bundle named by path/pass into a
// tls.Config suitable for both TCP acceptor pipelines. Failure here is
// fatal at startup, per spec.md §7.
func loadTLSConfig(path, pass string) (*tls.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server: reading pfx bundle: %w", err)
	}

	key, cert, err := pkcs12.Decode(raw, pass)
	if err != nil {
		return nil, fmt.Errorf("server: decoding pfx bundle: %w", err)
	}

	tlsCert := tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  key,
		Leaf:        cert,
	}

	pool := x509.NewCertPool()
	pool.AddCert(cert)

	return &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		RootCAs:      pool,
	}, nil
}
