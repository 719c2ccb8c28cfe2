package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"

	"pkt.systems/pslog"

	"github.com/damianesteban/veonim/internal/protocol"
)

const (
	wsReadLimit    = 1 << 20
	wsPingInterval = 30 * time.Second
	wsPongTimeout  = 60 * time.Second
)

// Server exposes the session's HTTP and websocket endpoints: /health,
// /ws/host for the publishing editor, /ws/view for viewers.
type Server struct {
	Hub    *Hub
	Shares []ShareToken
	Logger pslog.Logger
}

// NewServer constructs a relay Server.
func NewServer(hub *Hub, shares []ShareToken, logger pslog.Logger) *Server {
	if logger == nil {
		logger = pslog.LoggerFromEnv()
	}
	if hub == nil {
		hub = NewHub(logger)
	}
	return &Server{Hub: hub, Shares: shares, Logger: logger}
}

// Handler returns the HTTP handler for all relay endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws/host", s.handleWSHost)
	mux.HandleFunc("/ws/view", s.handleWSView)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWSHost(w http.ResponseWriter, r *http.Request) {
	scope, err := s.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if scope != ScopeControl {
		writeError(w, http.StatusForbidden, "host requires a control token")
		return
	}
	logger := s.loggerWithContext(r.Context()).With("role", "host")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: false,
	})
	if err != nil {
		return
	}
	ctx := r.Context()
	ws := newWSConn(newConnID(), RoleHost, ScopeControl, conn, logger)
	defer func() {
		_ = ws.Close(ctx, "closing")
		s.Hub.Unregister(ws)
	}()

	env, err := readWSEnvelope(ctx, conn, wsReadLimit)
	if err != nil {
		logger.Debug("failed to read hello", "err", err)
		return
	}
	var hello protocol.HelloPayload
	if env.Type != protocol.MessageHello || env.DecodePayload(&hello) != nil {
		_ = ws.Send(ctx, errorEnvelope("missing hello"))
		return
	}
	s.Hub.RegisterHost(ws, hello.Cols, hello.Rows, hello.Title)
	logger.Info("host connected", "cols", hello.Cols, "rows", hello.Rows)

	s.serveWSLoop(ctx, ws)
}

func (s *Server) handleWSView(w http.ResponseWriter, r *http.Request) {
	scope, err := s.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	logger := s.loggerWithContext(r.Context()).With("role", "viewer")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: false,
	})
	if err != nil {
		return
	}
	ctx := r.Context()
	ws := newWSConn(newConnID(), RoleViewer, scope, conn, logger)
	defer func() {
		_ = ws.Close(ctx, "closing")
		s.Hub.Unregister(ws)
	}()

	env, err := readWSEnvelope(ctx, conn, wsReadLimit)
	if err != nil {
		logger.Debug("failed to read hello", "err", err)
		return
	}
	var hello protocol.HelloPayload
	if env.Type != protocol.MessageHello || env.DecodePayload(&hello) != nil {
		_ = ws.Send(ctx, errorEnvelope("missing hello"))
		return
	}

	granted, holder, cols, rows, title := s.Hub.RegisterViewer(ws, hello.ClientID, hello.WantsControl)
	if !s.Hub.HasHost() {
		_ = ws.Send(ctx, errorEnvelope("no host connected"))
		return
	}
	_ = ws.Send(ctx, welcomeEnvelope(granted, cols, rows, title))
	if granted {
		s.Hub.BroadcastControl(ctx)
	} else {
		_ = ws.Send(ctx, controlEnvelope(holder))
	}
	// A joiner needs the full grid, not the stream tail.
	resync, _ := protocol.NewEnvelope(protocol.MessageResync, "", 0, nil)
	_ = s.Hub.HandleViewerEnvelope(ctx, ws, resync)
	logger.Info("viewer connected", "client", hello.ClientID, "control", granted)

	s.serveWSLoop(ctx, ws)
}

func (s *Server) serveWSLoop(ctx context.Context, ws *wsConn) {
	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.pingLoop(pingCtx, ws)

	for {
		env, err := readWSEnvelope(ctx, ws.conn, wsReadLimit)
		if err != nil {
			return
		}

		switch ws.role {
		case RoleHost:
			if err := s.Hub.HandleHostEnvelope(ctx, ws, env); err != nil {
				_ = ws.Send(ctx, errorEnvelope(err.Error()))
			}
		case RoleViewer:
			if err := s.Hub.HandleViewerEnvelope(ctx, ws, env); err != nil {
				_ = ws.Send(ctx, errorEnvelope(err.Error()))
			}
		}
	}
}

func (s *Server) pingLoop(ctx context.Context, conn *wsConn) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, wsPongTimeout)
			if err := conn.Ping(pingCtx); err != nil {
				conn.logger.Debug("websocket ping failed", "err", err)
			}
			cancel()
		}
	}
}

// authenticate resolves the share token from the query string or a
// bearer header to its scope.
func (s *Server) authenticate(r *http.Request) (Scope, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			return "", errors.New("missing share token")
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return "", errors.New("invalid authorization")
		}
		token = strings.TrimSpace(parts[1])
	}
	now := time.Now().UTC()
	for _, share := range s.Shares {
		if share.Token == token && !share.IsExpired(now) {
			return share.Scope, nil
		}
	}
	return "", errors.New("invalid share token")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) loggerWithContext(ctx context.Context) pslog.Logger {
	if ctx == nil {
		return s.Logger
	}
	if logger := pslog.Ctx(ctx); logger != nil {
		return logger
	}
	return s.Logger
}
