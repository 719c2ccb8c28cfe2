package tlsmgr

import "testing"

func TestBuildServerTLSConfigOffReturnsNil(t *testing.T) {
	cfg, err := BuildServerTLSConfig(Config{Mode: ModeOff}, nil)
	if err != nil {
		t.Fatalf("BuildServerTLSConfig: %v", err)
	}
	if cfg != nil {
		t.Fatalf("expected nil config for off mode")
	}
}

func TestBuildServerTLSConfigBundleRequiresFiles(t *testing.T) {
	if _, err := BuildServerTLSConfig(Config{Mode: ModeBundle}, nil); err == nil {
		t.Fatalf("expected error for empty bundle")
	}
}

func TestBuildServerTLSConfigACMERequiresHostname(t *testing.T) {
	if _, err := BuildServerTLSConfig(Config{Mode: ModeACME, CacheDir: t.TempDir()}, nil); err == nil {
		t.Fatalf("expected error for missing hostname")
	}
}

func TestBuildServerTLSConfigAutoGenerates(t *testing.T) {
	dir := t.TempDir()
	cfg, err := BuildServerTLSConfig(Config{Mode: ModeAuto, Dir: dir}, nil)
	if err != nil {
		t.Fatalf("BuildServerTLSConfig: %v", err)
	}
	if cfg == nil || len(cfg.Certificates) == 0 {
		t.Fatalf("expected TLS config with certificate")
	}
}

func TestResolveModeDefaults(t *testing.T) {
	if mode := ResolveMode(Config{}); mode != ModeAuto {
		t.Fatalf("empty config resolved to %s, want %s", mode, ModeAuto)
	}
	if mode := ResolveMode(Config{BundleFiles: []string{"chain.pem"}}); mode != ModeBundle {
		t.Fatalf("bundle files resolved to %s, want %s", mode, ModeBundle)
	}
	if mode := ResolveMode(Config{Mode: ModeOff, BundleFiles: []string{"chain.pem"}}); mode != ModeOff {
		t.Fatalf("explicit mode resolved to %s, want %s", mode, ModeOff)
	}
}
