package config

const (
	// DefaultConfigDirName is the directory name under the home directory.
	DefaultConfigDirName = ".veonim"
	// DefaultConfigFileName is the default config file name.
	DefaultConfigFileName = "config.yaml"
	// DefaultTLSDirName is the TLS directory name under the config directory.
	DefaultTLSDirName = "tls"
	// DefaultTLSCacheDirName is the ACME cache directory name under the TLS directory.
	DefaultTLSCacheDirName = "cache"
	// DefaultLogFileName is the default log file name.
	DefaultLogFileName = "veonim.log"
	// DefaultSharesFileName is the saved-shares file name under the
	// config directory.
	DefaultSharesFileName = "shares.json"

	// DefaultListenAddr is the default serve listen address.
	DefaultListenAddr = "127.0.0.1:12846"
	// DefaultBasePath is the default HTTP base path. Empty serves at the root.
	DefaultBasePath = ""
	// DefaultTLSMode is the default TLS mode for the serve listener.
	DefaultTLSMode = "auto"

	// DefaultEditorCommand is the editor binary started when none is
	// configured.
	DefaultEditorCommand = "nvim"
	// DefaultGridCols is the UI grid width used when the terminal size
	// is unknown.
	DefaultGridCols = 80
	// DefaultGridRows is the UI grid height used when the terminal size
	// is unknown.
	DefaultGridRows = 24
	// DefaultBufferBatches is the redraw backlog kept while the relay
	// is unreachable.
	DefaultBufferBatches = 512
)
