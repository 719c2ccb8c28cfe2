package tlsmgr

import (
	"bytes"
	"crypto/tls"
	"encoding/pem"
	"fmt"
	"os"
)

// LoadBundle collects certificates and the first private key from one
// or more PEM files. Chain and key may live in a single bundle or in
// separate files.
func LoadBundle(files []string) (tls.Certificate, error) {
	var chain bytes.Buffer
	var keyPEM []byte

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return tls.Certificate{}, err
		}
		for {
			var block *pem.Block
			block, data = pem.Decode(data)
			if block == nil {
				break
			}
			switch block.Type {
			case "CERTIFICATE":
				if err := pem.Encode(&chain, block); err != nil {
					return tls.Certificate{}, err
				}
			case "PRIVATE KEY", "RSA PRIVATE KEY", "EC PRIVATE KEY":
				if keyPEM == nil {
					keyPEM = pem.EncodeToMemory(block)
				}
			}
		}
	}

	if chain.Len() == 0 {
		return tls.Certificate{}, fmt.Errorf("no certificates found in tls bundle")
	}
	if keyPEM == nil {
		return tls.Certificate{}, fmt.Errorf("no private key found in tls bundle")
	}
	return tls.X509KeyPair(chain.Bytes(), keyPEM)
}
