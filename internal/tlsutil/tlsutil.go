// Package tlsutil loads TLS certificate material and builds the ALPN
// protocol list used to negotiate HTTP/2 versus HTTP/1.1 on one port. This
// is a thin wrapper over crypto/tls: the standard library already owns PEM
// parsing and certificate validation, so there is no ecosystem library in
// the retrieval pack that does this job better.
package tlsutil

import "crypto/tls"

// LoadConfig builds a *tls.Config from a cert/key PEM pair, advertising h2
// then http/1.1 via ALPN when http2Enabled is set, and http/1.1 alone
// otherwise.
func LoadConfig(certPath, keyPath string, http2Enabled bool) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, err
	}

	protos := []string{"http/1.1"}
	if http2Enabled {
		protos = []string{"h2", "http/1.1"}
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   protos,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
