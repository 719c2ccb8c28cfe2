package veonim

import "github.com/damianesteban/veonim/internal/config"

// Config mirrors the veonim configuration.
type Config = config.Config

// EditorConfig configures the embedded editor.
type EditorConfig = config.EditorConfig

// ServeConfig configures the relay listener.
type ServeConfig = config.ServeConfig

// AttachConfig configures viewer defaults.
type AttachConfig = config.AttachConfig

// TLSConfig configures TLS for the relay listener.
type TLSConfig = config.TLSConfig

// Loader wraps configuration loading via Viper.
type Loader = config.Loader

const (
	// DefaultConfigDirName is the directory name under the home directory.
	DefaultConfigDirName = config.DefaultConfigDirName
	// DefaultConfigFileName is the default config file name.
	DefaultConfigFileName = config.DefaultConfigFileName
	// DefaultTLSDirName is the TLS directory name under the config directory.
	DefaultTLSDirName = config.DefaultTLSDirName
	// DefaultTLSCacheDirName is the ACME cache directory name under the TLS directory.
	DefaultTLSCacheDirName = config.DefaultTLSCacheDirName
	// DefaultLogFileName is the default log file name.
	DefaultLogFileName = config.DefaultLogFileName
	// DefaultSharesFileName is the saved-shares file name.
	DefaultSharesFileName = config.DefaultSharesFileName

	// DefaultListenAddr is the default serve listen address.
	DefaultListenAddr = config.DefaultListenAddr
	// DefaultBasePath is the default HTTP base path.
	DefaultBasePath = config.DefaultBasePath
	// DefaultTLSMode is the default TLS mode.
	DefaultTLSMode = config.DefaultTLSMode

	// DefaultEditorCommand is the editor binary started when none is
	// configured.
	DefaultEditorCommand = config.DefaultEditorCommand
	// DefaultGridCols is the default UI grid width.
	DefaultGridCols = config.DefaultGridCols
	// DefaultGridRows is the default UI grid height.
	DefaultGridRows = config.DefaultGridRows
	// DefaultBufferBatches is the default redraw backlog size.
	DefaultBufferBatches = config.DefaultBufferBatches
)

// NewLoader returns a config loader with defaults wired.
func NewLoader() *config.Loader {
	return config.NewLoader()
}

// DefaultConfig returns the default veonim configuration.
func DefaultConfig() Config {
	return config.DefaultConfig()
}

// DefaultConfigDir returns the default config directory.
func DefaultConfigDir() string {
	return config.DefaultConfigDir()
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return config.DefaultConfigPath()
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return config.DefaultLogPath()
}

// DefaultTLSDir returns the default TLS directory.
func DefaultTLSDir() string {
	return config.DefaultTLSDir()
}

// DefaultTLSCacheDir returns the default TLS cache directory.
func DefaultTLSCacheDir() string {
	return config.DefaultTLSCacheDir()
}

// DefaultSharesPath returns the default saved-shares file path.
func DefaultSharesPath() string {
	return config.DefaultSharesPath()
}

// DefaultSessionID derives a session id from the host name.
func DefaultSessionID() string {
	return config.DefaultSessionID()
}
