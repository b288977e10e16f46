package ldap

import (
	"crypto/x509"
	"fmt"
	"os"
)

// buildCertPool returns the system roots extended with the CA certificates
// read from caFile and caPEM. Either may be empty.
func buildCertPool(caFile, caPEM string) (*x509.CertPool, error) {
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}

	if caFile != "" {
		data, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate file %s: %w", caFile, err)
		}
		if !pool.AppendCertsFromPEM(data) {
			return nil, fmt.Errorf("invalid PEM format in CA certificate file %s", caFile)
		}
	}

	if caPEM != "" {
		if !pool.AppendCertsFromPEM([]byte(caPEM)) {
			return nil, fmt.Errorf("invalid PEM format in CA certificate")
		}
	}

	return pool, nil
}
