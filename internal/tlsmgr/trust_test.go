package tlsmgr

import "testing"

func TestLoadLocalCARootsMissingDirIsNotAnError(t *testing.T) {
	pool, err := LoadLocalCARoots(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("LoadLocalCARoots: %v", err)
	}
	if pool == nil {
		t.Fatalf("expected cert pool")
	}
}

func TestLoadLocalCARootsAppendsGeneratedCA(t *testing.T) {
	dir := t.TempDir()
	if err := GenerateCA(dir, nil); err != nil {
		t.Fatalf("GenerateCA: %v", err)
	}
	pool, err := LoadLocalCARoots(dir, nil)
	if err != nil {
		t.Fatalf("LoadLocalCARoots: %v", err)
	}
	if pool == nil {
		t.Fatalf("expected cert pool")
	}
}
