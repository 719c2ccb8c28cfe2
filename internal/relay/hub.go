package relay

import (
	"context"
	"fmt"
	"sync"

	"pkt.systems/pslog"

	"github.com/damianesteban/veonim/internal/protocol"
)

// Role identifies a connection role.
type Role string

// Connection roles for hub routing.
const (
	RoleHost   Role = "host"
	RoleViewer Role = "viewer"
)

type connection interface {
	ID() string
	Role() Role
	Scope() Scope
	Send(ctx context.Context, env protocol.Envelope) error
	Close(ctx context.Context, reason string) error
}

// Hub routes envelopes between the session host and its viewers. One
// hub carries one session; a veonim server embeds a single editor.
//
// Redraw sequence numbers pass through unchanged. The host is the only
// ordering authority, so a viewer detects drops anywhere on the path
// and asks for a resync end to end.
type Hub struct {
	mu         sync.Mutex
	host       connection
	viewers    map[string]connection
	clientIDs  map[string]string
	controller string
	cols       int
	rows       int
	title      string
	lastSeq    uint64
	logger     pslog.Logger
}

// NewHub constructs a Hub.
func NewHub(logger pslog.Logger) *Hub {
	if logger == nil {
		logger = pslog.LoggerFromEnv()
	}
	return &Hub{
		viewers:   make(map[string]connection),
		clientIDs: make(map[string]string),
		logger:    logger,
	}
}

// RegisterHost installs the host connection and the session geometry.
// A previous host is closed.
func (h *Hub) RegisterHost(conn connection, cols, rows int, title string) {
	h.mu.Lock()
	old := h.host
	h.host = conn
	h.cols = cols
	h.rows = rows
	h.title = title
	h.mu.Unlock()
	if old != nil {
		_ = old.Close(context.Background(), "replaced by new host")
	}
}

// RegisterViewer adds a viewer and returns its welcome data: whether
// control was granted, the current holder, and the session geometry.
func (h *Hub) RegisterViewer(conn connection, clientID string, wantsControl bool) (granted bool, holder string, cols, rows int, title string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.viewers[conn.ID()] = conn
	if clientID == "" {
		clientID = conn.ID()
	}
	h.clientIDs[conn.ID()] = clientID
	if wantsControl && conn.Scope() == ScopeControl {
		h.controller = conn.ID()
		granted = true
	}
	return granted, h.holderLocked(), h.cols, h.rows, h.title
}

// Unregister removes a connection. When the host leaves, every viewer
// is told and closed. When the controlling viewer leaves, the seat
// returns to the host.
func (h *Hub) Unregister(conn connection) {
	var closing []connection
	seatReturned := false

	h.mu.Lock()
	if conn.Role() == RoleHost {
		if h.host != nil && h.host.ID() == conn.ID() {
			h.host = nil
			h.controller = ""
			closing = make([]connection, 0, len(h.viewers))
			for _, viewer := range h.viewers {
				closing = append(closing, viewer)
			}
			h.viewers = make(map[string]connection)
			h.clientIDs = make(map[string]string)
		}
	} else {
		delete(h.viewers, conn.ID())
		delete(h.clientIDs, conn.ID())
		if h.controller == conn.ID() {
			h.controller = ""
			seatReturned = true
		}
	}
	h.mu.Unlock()

	if len(closing) > 0 {
		env := errorEnvelope("host disconnected")
		for _, viewer := range closing {
			_ = viewer.Send(context.Background(), env)
			_ = viewer.Close(context.Background(), "host disconnected")
		}
		return
	}
	if seatReturned {
		h.BroadcastControl(context.Background())
	}
}

// HandleHostEnvelope fans a host envelope out to every viewer. Resize
// announcements update the geometry handed to late joiners and are not
// forwarded; grid changes reach viewers inside redraw batches.
func (h *Hub) HandleHostEnvelope(ctx context.Context, conn connection, env protocol.Envelope) error {
	h.mu.Lock()
	if h.host == nil || h.host.ID() != conn.ID() {
		h.mu.Unlock()
		return fmt.Errorf("not the session host")
	}
	if env.Type == protocol.MessageResize {
		var rs protocol.ResizePayload
		if err := env.DecodePayload(&rs); err == nil && rs.Cols > 0 && rs.Rows > 0 {
			h.cols, h.rows = rs.Cols, rs.Rows
		}
		h.mu.Unlock()
		return nil
	}
	if env.Type == protocol.MessageRedraw && env.Seq != 0 {
		h.lastSeq = env.Seq
	}
	viewers := make([]connection, 0, len(h.viewers))
	for _, viewer := range h.viewers {
		viewers = append(viewers, viewer)
	}
	h.mu.Unlock()

	for _, viewer := range viewers {
		if err := viewer.Send(ctx, env); err != nil {
			h.logger.Debug("failed to send to viewer", "err", err)
		}
	}
	return nil
}

// HandleViewerEnvelope forwards a viewer envelope to the host. Input
// and resize from a control-scope viewer take the seat; resolve and
// resync pass through regardless.
func (h *Hub) HandleViewerEnvelope(ctx context.Context, conn connection, env protocol.Envelope) error {
	takesSeat := env.Type == protocol.MessageInput || env.Type == protocol.MessageResize

	h.mu.Lock()
	host := h.host
	if host == nil {
		h.mu.Unlock()
		return fmt.Errorf("no host connected")
	}
	if takesSeat && conn.Scope() != ScopeControl {
		h.mu.Unlock()
		return fmt.Errorf("control not permitted")
	}
	controlChanged := false
	if takesSeat && h.controller != conn.ID() {
		h.controller = conn.ID()
		controlChanged = true
	}
	holder := h.holderLocked()
	viewers := make([]connection, 0, len(h.viewers))
	for _, viewer := range h.viewers {
		viewers = append(viewers, viewer)
	}
	h.mu.Unlock()

	if controlChanged {
		ctrl := controlEnvelope(holder)
		for _, viewer := range viewers {
			_ = viewer.Send(ctx, ctrl)
		}
		_ = host.Send(ctx, ctrl)
	}
	return host.Send(ctx, env)
}

// BroadcastControl announces the current seat holder to the host and
// every viewer.
func (h *Hub) BroadcastControl(ctx context.Context) {
	h.mu.Lock()
	holder := h.holderLocked()
	host := h.host
	viewers := make([]connection, 0, len(h.viewers))
	for _, viewer := range h.viewers {
		viewers = append(viewers, viewer)
	}
	h.mu.Unlock()

	ctrl := controlEnvelope(holder)
	for _, viewer := range viewers {
		_ = viewer.Send(ctx, ctrl)
	}
	if host != nil {
		_ = host.Send(ctx, ctrl)
	}
}

// HolderID returns the client id currently holding the input seat.
func (h *Hub) HolderID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.holderLocked()
}

// HasHost reports whether a host is connected.
func (h *Hub) HasHost() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.host != nil
}

// Geometry returns the session grid size.
func (h *Hub) Geometry() (cols, rows int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cols, h.rows
}

// LastSeq returns the highest redraw sequence seen from the host.
func (h *Hub) LastSeq() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastSeq
}

func (h *Hub) holderLocked() string {
	if h.controller == "" {
		return protocol.HostClientID
	}
	if id := h.clientIDs[h.controller]; id != "" {
		return id
	}
	return h.controller
}

func errorEnvelope(message string) protocol.Envelope {
	env, _ := protocol.NewEnvelope(protocol.MessageError, "", 0, protocol.ErrorPayload{Message: message})
	return env
}

func welcomeEnvelope(granted bool, cols, rows int, title string) protocol.Envelope {
	env, _ := protocol.NewEnvelope(protocol.MessageWelcome, "", 0, protocol.WelcomePayload{
		GrantedControl: granted,
		Cols:           cols,
		Rows:           rows,
		Title:          title,
	})
	return env
}

func controlEnvelope(holder string) protocol.Envelope {
	env, _ := protocol.NewEnvelope(protocol.MessageControl, "", 0, protocol.ControlPayload{HolderClientID: holder})
	return env
}
