package tlsmgr

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pkt.systems/pslog"
)

const (
	caCertFilename     = "ca.pem"
	caKeyFilename      = "ca.key"
	serverCertFilename = "server.pem"
	serverKeyFilename  = "server.key"

	caValidity     = 10 * 365 * 24 * time.Hour
	serverValidity = 2 * 365 * 24 * time.Hour
)

// EnsureLocalServerCert loads the server certificate if present and
// otherwise generates the CA and server certificate under dir.
func EnsureLocalServerCert(dir, hostname string, logger pslog.Logger) (tls.Certificate, error) {
	logger = ensureLogger(logger)

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return tls.Certificate{}, err
	}
	exists, err := filesExist(filepath.Join(dir, serverCertFilename), filepath.Join(dir, serverKeyFilename))
	if err != nil {
		return tls.Certificate{}, err
	}
	if !exists {
		if err := ensureCA(dir, logger); err != nil {
			return tls.Certificate{}, err
		}
		if err := generateServerCert(dir, hostname, logger); err != nil {
			return tls.Certificate{}, err
		}
	}
	return LoadLocalServerCert(dir)
}

// GenerateAll creates a fresh CA and server certificate, failing if
// either already exists.
func GenerateAll(dir, hostname string, logger pslog.Logger) error {
	logger = ensureLogger(logger)

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	if exists, err := caExists(dir); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("ca already exists in %s", dir)
	}
	if exists, err := serverCertExists(dir); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("server cert already exists in %s", dir)
	}
	if err := generateCA(dir, logger); err != nil {
		return err
	}
	return generateServerCert(dir, hostname, logger)
}

// GenerateCA creates a new CA, failing if one already exists.
func GenerateCA(dir string, logger pslog.Logger) error {
	logger = ensureLogger(logger)

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	if exists, err := caExists(dir); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("ca already exists in %s", dir)
	}
	return generateCA(dir, logger)
}

// GenerateServerCert creates a new server certificate signed by the
// existing CA.
func GenerateServerCert(dir, hostname string, logger pslog.Logger) error {
	logger = ensureLogger(logger)

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	if exists, err := serverCertExists(dir); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("server cert already exists in %s", dir)
	}
	if exists, err := caExists(dir); err != nil {
		return err
	} else if !exists {
		return fmt.Errorf("ca is missing; generate it first with 'veonim tls new ca'")
	}
	return generateServerCert(dir, hostname, logger)
}

// LoadLocalServerCert loads the server certificate from dir.
func LoadLocalServerCert(dir string) (tls.Certificate, error) {
	return tls.LoadX509KeyPair(
		filepath.Join(dir, serverCertFilename),
		filepath.Join(dir, serverKeyFilename),
	)
}

// LoadCA reads the PEM-encoded CA certificate from dir.
func LoadCA(dir string) ([]byte, error) {
	return os.ReadFile(filepath.Join(dir, caCertFilename))
}

// ExportCA writes the CA certificate to output, for distribution to
// machines that attach to this server.
func ExportCA(dir string, output *os.File) error {
	data, err := LoadCA(dir)
	if err != nil {
		return wrapMissing(err, "ca cert not found")
	}
	_, err = output.Write(data)
	return err
}

func ensureCA(dir string, logger pslog.Logger) error {
	exists, err := caExists(dir)
	if err != nil || exists {
		return err
	}
	return generateCA(dir, logger)
}

func generateCA(dir string, logger pslog.Logger) error {
	serial, err := randSerial()
	if err != nil {
		return err
	}
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return err
	}
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: "Veonim Local CA",
		},
		NotBefore:             time.Now().Add(-1 * time.Hour),
		NotAfter:              time.Now().Add(caValidity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLenZero:        true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return err
	}
	if err := writePEMFile(filepath.Join(dir, caCertFilename), "CERTIFICATE", der); err != nil {
		return err
	}
	keyBytes, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return err
	}
	if err := writePEMFile(filepath.Join(dir, caKeyFilename), "PRIVATE KEY", keyBytes); err != nil {
		return err
	}

	logger.Info("generated ca", "cert", filepath.Join(dir, caCertFilename))
	return nil
}

func generateServerCert(dir, hostname string, logger pslog.Logger) error {
	caCert, caKey, err := loadCAKeypair(dir)
	if err != nil {
		return err
	}
	serial, err := randSerial()
	if err != nil {
		return err
	}
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return err
	}

	dnsNames, ipAddresses := sanForHostname(hostname)
	commonName := hostname
	if commonName == "" {
		commonName = "localhost"
	}
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: commonName,
		},
		NotBefore:   time.Now().Add(-1 * time.Hour),
		NotAfter:    time.Now().Add(serverValidity),
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:    dnsNames,
		IPAddresses: ipAddresses,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, caCert, &key.PublicKey, caKey)
	if err != nil {
		return err
	}
	if err := writePEMFile(filepath.Join(dir, serverCertFilename), "CERTIFICATE", der); err != nil {
		return err
	}
	keyBytes, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return err
	}
	if err := writePEMFile(filepath.Join(dir, serverKeyFilename), "PRIVATE KEY", keyBytes); err != nil {
		return err
	}

	logger.Info("generated server cert", "cert", filepath.Join(dir, serverCertFilename), "hostname", commonName)
	return nil
}

func loadCAKeypair(dir string) (*x509.Certificate, crypto.Signer, error) {
	certBytes, err := os.ReadFile(filepath.Join(dir, caCertFilename))
	if err != nil {
		return nil, nil, wrapMissing(err, "ca cert not found")
	}
	keyBytes, err := os.ReadFile(filepath.Join(dir, caKeyFilename))
	if err != nil {
		return nil, nil, wrapMissing(err, "ca key not found")
	}

	certBlock, _ := pem.Decode(certBytes)
	if certBlock == nil || certBlock.Type != "CERTIFICATE" {
		return nil, nil, fmt.Errorf("invalid ca cert PEM")
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, nil, err
	}

	keyBlock, _ := pem.Decode(keyBytes)
	if keyBlock == nil {
		return nil, nil, fmt.Errorf("invalid ca key PEM")
	}
	key, err := parseCAKey(keyBlock)
	if err != nil {
		return nil, nil, err
	}
	return cert, key, nil
}

// parseCAKey accepts PKCS#8 keys as written by generateCA plus the
// legacy EC and RSA encodings for externally provisioned CAs.
func parseCAKey(block *pem.Block) (crypto.Signer, error) {
	switch block.Type {
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("ca key does not support signing")
		}
		return signer, nil
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	default:
		return nil, fmt.Errorf("unsupported ca key type: %s", block.Type)
	}
}

func sanForHostname(hostname string) ([]string, []net.IP) {
	trimmed := strings.TrimSpace(hostname)
	if trimmed == "" {
		return []string{"localhost"}, []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")}
	}
	if ip := net.ParseIP(trimmed); ip != nil {
		return nil, []net.IP{ip}
	}
	return []string{trimmed}, nil
}

func randSerial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	return rand.Int(rand.Reader, limit)
}

func writePEMFile(path, pemType string, der []byte) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := pem.Encode(file, &pem.Block{Type: pemType, Bytes: der}); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func caExists(dir string) (bool, error) {
	return filesExist(filepath.Join(dir, caCertFilename), filepath.Join(dir, caKeyFilename))
}

func serverCertExists(dir string) (bool, error) {
	return filesExist(filepath.Join(dir, serverCertFilename), filepath.Join(dir, serverKeyFilename))
}

func filesExist(paths ...string) (bool, error) {
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}
			return false, err
		}
		if info.IsDir() {
			return false, fmt.Errorf("%s is a directory", p)
		}
	}
	return true, nil
}
