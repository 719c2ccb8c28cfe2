package veonim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"pkt.systems/pslog"

	"github.com/damianesteban/veonim/internal/config"
	"github.com/damianesteban/veonim/internal/relay"
	"github.com/damianesteban/veonim/internal/server"
	"github.com/damianesteban/veonim/internal/session"
	"github.com/damianesteban/veonim/internal/tlsmgr"
)

// ServeOptions configures a served session: an in-process relay that
// viewers attach to, plus an embedded editor session publishing into
// it.
type ServeOptions struct {
	Config Config
	Files  []string

	// Headless runs the relay without an embedded editor; a host
	// publishes into it from elsewhere.
	Headless bool

	// ShareTTL bounds the generated share tokens. Zero keeps them
	// valid for the lifetime of the process.
	ShareTTL time.Duration

	// NoQR suppresses the QR code printed next to the view URL.
	NoQR bool

	Logger pslog.Logger
	Stdout *os.File
}

// Serve starts the relay, prints the share URLs, and unless headless
// runs an editor session in the current terminal that publishes into
// the relay over loopback.
func Serve(ctx context.Context, opts ServeOptions) error {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = pslog.LoggerFromEnv()
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	base, err := server.NormalizeBasePath(cfg.Serve.BasePath)
	if err != nil {
		return err
	}
	tlsCfg, err := tlsmgr.BuildServerTLSConfig(tlsmgr.Config{
		Mode:        tlsmgr.Mode(strings.ToLower(cfg.Serve.TLS.Mode)),
		BundleFiles: cfg.Serve.TLS.Bundle,
		Hostname:    cfg.Serve.TLS.Hostname,
		Dir:         cfg.Serve.TLS.Dir,
		CacheDir:    cfg.Serve.TLS.CacheDir,
	}, logger.With("component", "tls"))
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	control, err := relay.NewShareToken(relay.ScopeControl, opts.ShareTTL, now)
	if err != nil {
		return err
	}
	view, err := relay.NewShareToken(relay.ScopeView, opts.ShareTTL, now)
	if err != nil {
		return err
	}

	hub := relay.NewHub(logger.With("component", "relay-hub"))
	relayServer := relay.NewServer(hub, []relay.ShareToken{control, view}, logger.With("component", "relay"))

	handler := server.WrapBasePath(base, relayServer.Handler())
	handler = server.AccessLog(logger.With("component", "access"), handler)
	srv := server.New(server.Config{
		ListenAddr:        cfg.Serve.Listen,
		BasePath:          base,
		TLSConfig:         tlsCfg,
		Logger:            logger.With("component", "http"),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}, handler)

	endpoint, err := shareEndpoint(cfg.Serve.Listen, base, tlsCfg != nil, cfg.Serve.TLS.Hostname)
	if err != nil {
		return err
	}

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		if tlsCfg != nil {
			serverErr <- srv.ListenAndServeTLS("", "")
			return
		}
		serverErr <- srv.ListenAndServe()
	}()
	go func() {
		<-serveCtx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("relay listening", "listen", cfg.Serve.Listen, "base", base, "tls", tlsCfg != nil)
	printShareInfo(stdout, endpoint, control, view, !opts.NoQR)

	if opts.Headless {
		return filterServerClosed(<-serverErr)
	}

	loopback, err := loopbackEndpoint(cfg.Serve.Listen, base, tlsCfg != nil)
	if err != nil {
		cancel()
		<-serverErr
		return err
	}
	title := strings.Join(opts.Files, " ")
	sessionErr := make(chan error, 1)
	go func() {
		sessionErr <- session.New(session.Options{
			EditorCommand: cfg.Editor.Command,
			EditorArgs:    cfg.Editor.Args,
			Files:         opts.Files,
			Cols:          cfg.Editor.Cols,
			Rows:          cfg.Editor.Rows,
			Endpoint:      loopback,
			Token:         control.Token,
			SessionID:     config.DefaultSessionID(),
			Title:         title,
			BufferBatches: cfg.Serve.BufferBatches,
			// The relay certificate covers the public hostname, not
			// necessarily 127.0.0.1, so the loopback hop skips
			// verification.
			Insecure: true,
			Logger:   logger.With("component", "session"),
		}).Run(serveCtx)
	}()

	select {
	case err := <-sessionErr:
		cancel()
		serr := <-serverErr
		if err != nil {
			return err
		}
		return filterServerClosed(serr)
	case err := <-serverErr:
		cancel()
		<-sessionErr
		return filterServerClosed(err)
	}
}

// shareEndpoint builds the URL viewers dial from other machines.
func shareEndpoint(listen, base string, tlsEnabled bool, tlsHostname string) (string, error) {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "", fmt.Errorf("invalid listen address %q: %w", listen, err)
	}
	switch {
	case tlsHostname != "":
		host = tlsHostname
	case host == "" || host == "0.0.0.0" || host == "::":
		if name, herr := os.Hostname(); herr == nil && name != "" {
			host = name
		} else {
			host = "127.0.0.1"
		}
	}
	scheme := "ws"
	if tlsEnabled {
		scheme = "wss"
	}
	return scheme + "://" + net.JoinHostPort(host, port) + base, nil
}

// loopbackEndpoint builds the URL the embedded session publishes to.
func loopbackEndpoint(listen, base string, tlsEnabled bool) (string, error) {
	_, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "", fmt.Errorf("invalid listen address %q: %w", listen, err)
	}
	scheme := "ws"
	if tlsEnabled {
		scheme = "wss"
	}
	return scheme + "://" + net.JoinHostPort("127.0.0.1", port) + base, nil
}

func printShareInfo(w io.Writer, endpoint string, control, view relay.ShareToken, withQR bool) {
	controlURL := ShareURL(endpoint, control.Token)
	viewURL := ShareURL(endpoint, view.Token)
	fmt.Fprintf(w, "\nShare this session:\n\n")
	fmt.Fprintf(w, "  control  %s\n", controlURL)
	fmt.Fprintf(w, "  view     %s\n\n", viewURL)
	fmt.Fprintf(w, "Attach with: veonim attach <url>\n\n")
	if withQR {
		fmt.Fprintf(w, "View-only QR:\n")
		PrintShareQR(w, viewURL)
		fmt.Fprintln(w)
	}
}

func filterServerClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
