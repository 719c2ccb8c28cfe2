package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/damianesteban/veonim"
	"pkt.systems/pslog"
)

// openClientLogger opens the client log file. Fullscreen commands own
// the terminal, so their logs must never reach stdout.
func openClientLogger(path string) (pslog.Logger, io.Closer, error) {
	if path == "" {
		path = veonim.DefaultLogPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, err
	}
	logger := pslog.LoggerFromEnv(pslog.WithEnvWriter(file))
	return logger, file, nil
}
