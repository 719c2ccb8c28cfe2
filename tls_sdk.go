package veonim

import (
	"os"

	"pkt.systems/pslog"

	"github.com/damianesteban/veonim/internal/tlsmgr"
)

// TLSNew creates a new CA and server certificate under dir.
func TLSNew(dir, hostname string, logger pslog.Logger) error {
	return tlsmgr.GenerateAll(dir, hostname, logger)
}

// TLSNewCA creates a new CA under dir.
func TLSNewCA(dir string, logger pslog.Logger) error {
	return tlsmgr.GenerateCA(dir, logger)
}

// TLSNewServer creates a new server certificate signed by the existing
// CA.
func TLSNewServer(dir, hostname string, logger pslog.Logger) error {
	return tlsmgr.GenerateServerCert(dir, hostname, logger)
}

// TLSExportCA writes the CA certificate to output, for distribution to
// machines that attach to this server.
func TLSExportCA(dir string, output *os.File) error {
	return tlsmgr.ExportCA(dir, output)
}
