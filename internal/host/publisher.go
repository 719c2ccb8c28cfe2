package host

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"pkt.systems/pslog"

	"github.com/damianesteban/veonim/internal/config"
	"github.com/damianesteban/veonim/internal/protocol"
	"github.com/damianesteban/veonim/internal/screen"
	"github.com/damianesteban/veonim/internal/tlsmgr"
)

// PublishOptions configures relay publishing.
type PublishOptions struct {
	Endpoint      string
	Token         string
	SessionID     string
	Title         string
	Cols          int
	Rows          int
	BufferBatches int
	Insecure      bool
	Logger        pslog.Logger
}

// Publisher streams redraw envelopes to the relay and receives remote
// input, resize, and resolve requests. Callback fields run on the
// publisher's read goroutine.
type Publisher struct {
	opts PublishOptions

	Logger    pslog.Logger
	OnInput   func(keys string)
	OnResize  func(cols, rows int)
	OnResync  func()
	OnResolve func(id int)
	OnControl func(holderID string)

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	seq       uint64
	buffer    []protocol.Envelope
	overflow  bool
	holderID  string

	writeMu sync.Mutex
}

// NewPublisher constructs a Publisher.
func NewPublisher(opts PublishOptions) *Publisher {
	if opts.Logger == nil {
		opts.Logger = pslog.LoggerFromEnv()
	}
	if opts.BufferBatches <= 0 {
		opts.BufferBatches = config.DefaultBufferBatches
	}
	return &Publisher{
		opts:   opts,
		Logger: opts.Logger,
	}
}

// Run connects to the relay and streams until context cancellation,
// reconnecting with backoff on failure.
func (p *Publisher) Run(ctx context.Context) error {
	if p.opts.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if p.opts.Token == "" {
		return fmt.Errorf("share token is required")
	}
	if p.opts.SessionID == "" {
		return fmt.Errorf("session id is required")
	}

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		connected, err := p.connectAndServe(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			p.Logger.Debug("publisher disconnected", "err", err)
		}
		if connected {
			backoff = time.Second
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}

// PublishBatch queues one redraw batch for every viewer. While the
// relay is unreachable, batches buffer up to the configured cap; an
// overflow drops the backlog and forces a repaint after reconnect.
func (p *Publisher) PublishBatch(batch []any) {
	raw, err := protocol.EncodeBatch(batch)
	if err != nil {
		p.Logger.Warn("failed to encode redraw batch", "err", err)
		return
	}
	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	env, err := protocol.NewEnvelope(protocol.MessageRedraw, p.opts.SessionID, seq,
		protocol.RedrawPayload{Batch: raw})
	if err != nil {
		p.Logger.Warn("failed to build redraw envelope", "err", err)
		return
	}
	if !p.sendEnvelope(env) {
		p.enqueue(env)
	}
}

// PublishResize announces a new grid geometry to viewers.
func (p *Publisher) PublishResize(cols, rows int) {
	p.mu.Lock()
	p.opts.Cols = cols
	p.opts.Rows = rows
	p.mu.Unlock()

	env, err := protocol.NewEnvelope(protocol.MessageResize, p.opts.SessionID, 0,
		protocol.ResizePayload{Cols: cols, Rows: rows})
	if err != nil {
		return
	}
	if !p.sendEnvelope(env) {
		p.enqueue(env)
	}
}

// PublishColor answers a viewer's resolve request. Colors are dropped
// rather than buffered; a reconnected viewer resolves again.
func (p *Publisher) PublishColor(id int, hl screen.Highlight) {
	env, err := protocol.NewEnvelope(protocol.MessageColor, p.opts.SessionID, 0,
		protocol.ColorPayload{
			ID:         id,
			Foreground: int(hl.Foreground),
			Background: int(hl.Background),
		})
	if err != nil {
		return
	}
	p.sendEnvelope(env)
}

func (p *Publisher) connectAndServe(ctx context.Context) (bool, error) {
	wsBase, err := normalizeEndpoint(p.opts.Endpoint)
	if err != nil {
		return false, err
	}
	tlsCfg, err := clientTLSConfig(p.opts.Insecure)
	if err != nil {
		return false, err
	}
	httpClient := &http.Client{
		Transport: &http.Transport{TLSClientConfig: tlsCfg},
	}
	ws, _, err := websocket.Dial(ctx, wsBase+"/ws/host", &websocket.DialOptions{
		HTTPHeader: map[string][]string{"Authorization": {"Bearer " + p.opts.Token}},
		HTTPClient: httpClient,
	})
	if err != nil {
		return false, err
	}
	defer func() {
		_ = ws.Close(websocket.StatusNormalClosure, "closing")
	}()

	p.mu.Lock()
	cols, rows := p.opts.Cols, p.opts.Rows
	p.mu.Unlock()
	hello, err := protocol.NewEnvelope(protocol.MessageHello, p.opts.SessionID, 0,
		protocol.HelloPayload{ClientID: protocol.HostClientID, Token: p.opts.Token, Cols: cols, Rows: rows, Title: p.opts.Title})
	if err != nil {
		return false, err
	}
	if err := writeEnvelope(ctx, ws, hello); err != nil {
		return false, err
	}

	p.setConn(ws)
	defer p.clearConn()

	if err := p.flushBuffer(ctx, ws); err != nil {
		return true, err
	}

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.readWS(readCtx, ws)
		cancel()
	}()

	wg.Wait()
	return true, nil
}

func (p *Publisher) setConn(ws *websocket.Conn) {
	p.mu.Lock()
	p.conn = ws
	p.connected = true
	p.mu.Unlock()
}

func (p *Publisher) clearConn() {
	p.mu.Lock()
	p.conn = nil
	p.connected = false
	p.mu.Unlock()
}

func (p *Publisher) readWS(ctx context.Context, ws *websocket.Conn) {
	for {
		env, err := readEnvelope(ctx, ws)
		if err != nil {
			return
		}
		switch env.Type {
		case protocol.MessageInput:
			var in protocol.InputPayload
			if err := env.DecodePayload(&in); err == nil && p.OnInput != nil {
				p.OnInput(in.Keys)
			}
		case protocol.MessageResize:
			var rs protocol.ResizePayload
			if err := env.DecodePayload(&rs); err == nil && p.OnResize != nil {
				p.OnResize(rs.Cols, rs.Rows)
			}
		case protocol.MessageResync:
			if p.OnResync != nil {
				p.OnResync()
			}
		case protocol.MessageResolve:
			var rq protocol.ResolvePayload
			if err := env.DecodePayload(&rq); err == nil && p.OnResolve != nil {
				p.OnResolve(rq.ID)
			}
		case protocol.MessageControl:
			var ctrl protocol.ControlPayload
			if err := env.DecodePayload(&ctrl); err == nil {
				p.setHolder(ctrl.HolderClientID)
			}
		case protocol.MessageError:
			var msg protocol.ErrorPayload
			_ = env.DecodePayload(&msg)
			p.Logger.Warn("relay error", "message", msg.Message)
			return
		}
	}
}

func (p *Publisher) setHolder(id string) {
	p.mu.Lock()
	p.holderID = id
	p.mu.Unlock()
	if p.OnControl != nil {
		p.OnControl(id)
	}
}

// Holder returns the client currently granted control.
func (p *Publisher) Holder() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.holderID
}

func (p *Publisher) sendEnvelope(env protocol.Envelope) bool {
	p.mu.Lock()
	ws := p.conn
	p.mu.Unlock()
	if ws == nil {
		return false
	}
	p.writeMu.Lock()
	err := writeEnvelope(context.Background(), ws, env)
	p.writeMu.Unlock()
	if err != nil {
		p.clearConn()
		return false
	}
	return true
}

func (p *Publisher) enqueue(env protocol.Envelope) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buffer) >= p.opts.BufferBatches {
		p.buffer = p.buffer[:0]
		p.overflow = true
	}
	p.buffer = append(p.buffer, env)
}

func (p *Publisher) flushBuffer(ctx context.Context, ws *websocket.Conn) error {
	p.mu.Lock()
	pending := p.buffer
	p.buffer = nil
	overflow := p.overflow
	p.overflow = false
	p.mu.Unlock()

	if overflow {
		// The backlog is incomplete; a full repaint replaces it.
		pending = nil
		if p.OnResync != nil {
			p.OnResync()
		}
	}
	for _, env := range pending {
		p.writeMu.Lock()
		err := writeEnvelope(ctx, ws, env)
		p.writeMu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

func writeEnvelope(ctx context.Context, ws *websocket.Conn, env protocol.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}

func readEnvelope(ctx context.Context, ws *websocket.Conn) (protocol.Envelope, error) {
	var env protocol.Envelope
	_, data, err := ws.Read(ctx)
	if err != nil {
		return env, err
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, err
	}
	return env, nil
}

// clientTLSConfig trusts the locally provisioned CA alongside the
// system roots, so publishing to a self-hosted relay verifies without
// extra flags.
func clientTLSConfig(insecure bool) (*tls.Config, error) {
	if insecure {
		return &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: true}, nil
	}
	pool, err := tlsmgr.LoadLocalCARoots(config.DefaultTLSDir(), nil)
	if err != nil {
		return nil, err
	}
	return &tls.Config{MinVersion: tls.VersionTLS12, RootCAs: pool}, nil
}

func normalizeEndpoint(endpoint string) (string, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	if parsed.Scheme == "" {
		return "", fmt.Errorf("endpoint must include scheme")
	}
	wsURL := *parsed
	switch strings.ToLower(parsed.Scheme) {
	case "https":
		wsURL.Scheme = "wss"
	case "http":
		wsURL.Scheme = "ws"
	case "wss", "ws":
	default:
		return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	return strings.TrimRight(wsURL.String(), "/"), nil
}
