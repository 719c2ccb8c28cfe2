package tlsmgr

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGenerateAllCreatesTLSAssets(t *testing.T) {
	dir := t.TempDir()
	if err := GenerateAll(dir, "", nil); err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}

	paths := []string{
		filepath.Join(dir, caCertFilename),
		filepath.Join(dir, caKeyFilename),
		filepath.Join(dir, serverCertFilename),
		filepath.Join(dir, serverKeyFilename),
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to exist: %v", path, err)
		}
	}

	cert, err := LoadLocalServerCert(dir)
	if err != nil {
		t.Fatalf("LoadLocalServerCert: %v", err)
	}
	if len(cert.Certificate) == 0 {
		t.Fatalf("expected certificate data")
	}
}

func TestGenerateServerCertRequiresCA(t *testing.T) {
	if err := GenerateServerCert(t.TempDir(), "", nil); err == nil {
		t.Fatalf("expected error when CA is missing")
	}
}

func TestGenerateCAThenServerCert(t *testing.T) {
	dir := t.TempDir()
	if err := GenerateCA(dir, nil); err != nil {
		t.Fatalf("GenerateCA: %v", err)
	}
	if err := GenerateServerCert(dir, "example.test", nil); err != nil {
		t.Fatalf("GenerateServerCert: %v", err)
	}
}

func TestGenerateAllFailsIfExists(t *testing.T) {
	dir := t.TempDir()
	if err := GenerateAll(dir, "", nil); err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}
	if err := GenerateAll(dir, "", nil); err == nil {
		t.Fatalf("expected error when TLS assets already exist")
	}
}

func TestEnsureLocalServerCertIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	if _, err := EnsureLocalServerCert(dir, "", nil); err != nil {
		t.Fatalf("EnsureLocalServerCert: %v", err)
	}
	first, err := os.ReadFile(filepath.Join(dir, serverCertFilename))
	if err != nil {
		t.Fatalf("read server cert: %v", err)
	}
	if _, err := EnsureLocalServerCert(dir, "", nil); err != nil {
		t.Fatalf("EnsureLocalServerCert second run: %v", err)
	}
	second, err := os.ReadFile(filepath.Join(dir, serverCertFilename))
	if err != nil {
		t.Fatalf("read server cert: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("expected the existing server cert to be reused")
	}
}
