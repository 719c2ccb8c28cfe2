package relay

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/coder/websocket"

	"pkt.systems/pslog"

	"github.com/damianesteban/veonim/internal/protocol"
)

type wsConn struct {
	id     string
	role   Role
	scope  Scope
	conn   *websocket.Conn
	logger pslog.Logger

	sendMu sync.Mutex
}

func newWSConn(id string, role Role, scope Scope, conn *websocket.Conn, logger pslog.Logger) *wsConn {
	if logger == nil {
		logger = pslog.LoggerFromEnv()
	}
	return &wsConn{id: id, role: role, scope: scope, conn: conn, logger: logger}
}

func (c *wsConn) ID() string   { return c.id }
func (c *wsConn) Role() Role   { return c.role }
func (c *wsConn) Scope() Scope { return c.scope }

func (c *wsConn) Send(ctx context.Context, env protocol.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Close(ctx context.Context, reason string) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.conn.Close(websocket.StatusNormalClosure, reason)
}

func (c *wsConn) Ping(ctx context.Context) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.conn.Ping(ctx)
}

func readWSEnvelope(ctx context.Context, conn *websocket.Conn, readLimit int64) (protocol.Envelope, error) {
	var env protocol.Envelope
	conn.SetReadLimit(readLimit)
	msgType, data, err := conn.Read(ctx)
	if err != nil {
		return env, err
	}
	if msgType != websocket.MessageText {
		return env, fmt.Errorf("expected text websocket frame")
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, err
	}
	return env, nil
}

const connIDBytes = 12

func newConnID() string {
	buf := make([]byte, connIDBytes)
	_, _ = rand.Read(buf)
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf)
}
