package config

// DefaultConfig returns the default configuration values.
func DefaultConfig() Config {
	return Config{
		Editor: EditorConfig{
			Command: DefaultEditorCommand,
		},
		Serve: ServeConfig{
			Listen:        DefaultListenAddr,
			BasePath:      DefaultBasePath,
			BufferBatches: DefaultBufferBatches,
			TLS: TLSConfig{
				Mode:     DefaultTLSMode,
				Dir:      DefaultTLSDir(),
				CacheDir: DefaultTLSCacheDir(),
			},
		},
		LogFile: DefaultLogPath(),
	}
}
