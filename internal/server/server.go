// Package server carries the HTTP plumbing for the serve command: the
// listener wrapper, base-path mounting, access logging, and client IP
// recovery behind proxies.
package server

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"pkt.systems/pslog"
)

// Config configures the relay's HTTP listener.
//
// There are deliberately no read or write timeout fields: a shared
// editor session is one long-lived websocket request, and a global
// deadline would cut it off mid-stream.
type Config struct {
	ListenAddr string
	BasePath   string
	TLSConfig  *tls.Config
	Logger     pslog.Logger

	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
}

// Server is the serve command's HTTP front.
type Server interface {
	ListenAndServe() error
	ListenAndServeTLS(certFile, keyFile string) error
	Shutdown(ctx context.Context) error
}

type stdServer struct {
	srv *http.Server
}

// New constructs a Server around the provided handler. The configured
// logger becomes the base request-context logger, so handlers can
// recover it with pslog.Ctx.
func New(cfg Config, handler http.Handler) Server {
	logger := cfg.Logger
	if logger == nil {
		logger = pslog.LoggerFromEnv()
	}
	baseCtx := pslog.ContextWithLogger(context.Background(), logger)
	return &stdServer{
		srv: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           handler,
			TLSConfig:         cfg.TLSConfig,
			ErrorLog:          pslog.LogLogger(logger),
			BaseContext:       func(net.Listener) context.Context { return baseCtx },
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			MaxHeaderBytes:    cfg.MaxHeaderBytes,
		},
	}
}

func (s *stdServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *stdServer) ListenAndServeTLS(certFile, keyFile string) error {
	return s.srv.ListenAndServeTLS(certFile, keyFile)
}

func (s *stdServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
