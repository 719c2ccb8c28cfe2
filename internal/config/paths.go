package config

import (
	"os"
	"path/filepath"
)

// DefaultConfigDir returns the default veonim config directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return DefaultConfigDirName
	}
	return filepath.Join(home, DefaultConfigDirName)
}

// DefaultConfigPath returns the default veonim config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), DefaultConfigFileName)
}

// DefaultLogPath returns the default veonim log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultConfigDir(), DefaultLogFileName)
}

// DefaultTLSDir returns the default TLS directory.
func DefaultTLSDir() string {
	return filepath.Join(DefaultConfigDir(), DefaultTLSDirName)
}

// DefaultTLSCacheDir returns the default TLS cache directory.
func DefaultTLSCacheDir() string {
	return filepath.Join(DefaultTLSDir(), DefaultTLSCacheDirName)
}

// DefaultSharesPath returns the default saved-shares file path.
func DefaultSharesPath() string {
	return filepath.Join(DefaultConfigDir(), DefaultSharesFileName)
}

// DefaultSessionID derives a session id from the host name.
func DefaultSessionID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "veonim"
	}
	return "veonim-" + host
}
