// Package tlsmgr provisions TLS material for the serve command. The
// default mode keeps a private CA under the config directory and signs
// a server certificate with it, so a fresh install serves wss without
// any setup. Bundle and ACME modes cover deployments with real
// certificates, and off disables TLS for reverse-proxy setups.
package tlsmgr

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/acme"
	"golang.org/x/crypto/acme/autocert"
	"pkt.systems/pslog"
)

// Mode selects how the server certificate is obtained.
type Mode string

const (
	// ModeOff disables TLS entirely.
	ModeOff Mode = "off"
	// ModeAuto loads or generates local TLS assets under Dir.
	ModeAuto Mode = "auto"
	// ModeBundle loads the certificate chain and key from PEM files.
	ModeBundle Mode = "bundle"
	// ModeACME obtains certificates via ACME (TLS-ALPN-01).
	ModeACME Mode = "acme"
)

// Config configures TLS provisioning.
type Config struct {
	Mode        Mode
	BundleFiles []string
	Hostname    string
	Dir         string
	CacheDir    string
}

// ResolveMode picks a mode when the config leaves it empty: bundle if
// bundle files are given, auto otherwise.
func ResolveMode(cfg Config) Mode {
	if cfg.Mode != "" {
		return cfg.Mode
	}
	if len(cfg.BundleFiles) > 0 {
		return ModeBundle
	}
	return ModeAuto
}

// BuildServerTLSConfig turns the settings into a *tls.Config for the
// HTTP server. ModeOff returns nil with no error.
func BuildServerTLSConfig(cfg Config, logger pslog.Logger) (*tls.Config, error) {
	switch mode := ResolveMode(cfg); mode {
	case ModeOff:
		return nil, nil
	case ModeBundle:
		if len(cfg.BundleFiles) == 0 {
			return nil, fmt.Errorf("tls bundle mode requires at least one bundle file")
		}
		cert, err := LoadBundle(cfg.BundleFiles)
		if err != nil {
			return nil, err
		}
		return &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
		}, nil
	case ModeACME:
		if cfg.Hostname == "" {
			return nil, fmt.Errorf("acme mode requires a tls hostname")
		}
		if cfg.CacheDir == "" {
			return nil, fmt.Errorf("acme mode requires a tls cache dir")
		}
		if err := os.MkdirAll(cfg.CacheDir, 0o700); err != nil {
			return nil, err
		}
		manager := autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			Cache:      autocert.DirCache(cfg.CacheDir),
			HostPolicy: autocert.HostWhitelist(cfg.Hostname),
		}
		if logger != nil {
			logger.Info("acme tls enabled", "hostname", cfg.Hostname, "cache_dir", cfg.CacheDir)
		}
		return &tls.Config{
			MinVersion:     tls.VersionTLS12,
			GetCertificate: manager.GetCertificate,
			NextProtos:     []string{acme.ALPNProto, "h2", "http/1.1"},
		}, nil
	case ModeAuto:
		if cfg.Dir == "" {
			return nil, fmt.Errorf("auto tls mode requires a tls dir")
		}
		cert, err := EnsureLocalServerCert(cfg.Dir, cfg.Hostname, logger)
		if err != nil {
			return nil, err
		}
		return &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported tls mode: %s", mode)
	}
}

func ensureLogger(logger pslog.Logger) pslog.Logger {
	if logger != nil {
		return logger
	}
	return pslog.LoggerFromEnv()
}

func wrapMissing(err error, hint string) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", hint, err)
	}
	return err
}
