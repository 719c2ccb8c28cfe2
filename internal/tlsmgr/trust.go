package tlsmgr

import (
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
)

// LoadLocalCARoots appends the local CA certificate to pool, starting
// from the system roots when pool is nil. A missing CA file is not an
// error, so clients of servers with real certificates still verify
// against the system roots.
func LoadLocalCARoots(dir string, pool *x509.CertPool) (*x509.CertPool, error) {
	if pool == nil {
		system, err := x509.SystemCertPool()
		if err != nil || system == nil {
			pool = x509.NewCertPool()
		} else {
			pool = system
		}
	}
	data, err := os.ReadFile(filepath.Join(dir, caCertFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return pool, nil
		}
		return nil, err
	}
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("failed to parse ca cert in %s", dir)
	}
	return pool, nil
}
