// Package attach connects to a shared veonim session as a viewer and
// mirrors the host grid onto the local terminal.
package attach

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/term"

	"pkt.systems/pslog"

	"github.com/damianesteban/veonim/internal/config"
	"github.com/damianesteban/veonim/internal/keys"
	"github.com/damianesteban/veonim/internal/protocol"
	"github.com/damianesteban/veonim/internal/redraw"
	"github.com/damianesteban/veonim/internal/render"
	"github.com/damianesteban/veonim/internal/screen"
	"github.com/damianesteban/veonim/internal/tlsmgr"
)

// Client attaches to a remote veonim session. The grid geometry
// follows the host; when the local terminal is smaller the view is
// clipped until this client gains control and resizes the session.
type Client struct {
	Endpoint       string
	Token          string
	RequestControl bool
	ClientID       string
	Insecure       bool
	Stdin          io.Reader
	Stdout         io.Writer
	TermSize       func() (int, int)

	Logger pslog.Logger

	holderID string

	mu              sync.RWMutex
	lastSeq         uint64
	resyncRequested bool
	pending         map[int][]func(screen.Highlight)

	renderMu sync.Mutex
	term     *render.Term
	screen   *screen.Screen
	router   *redraw.Router

	writeMu     sync.Mutex
	stdin       io.Reader
	stdout      io.Writer
	stdinCloser io.Closer
	errOnce     sync.Once
	runErr      error
	controlCh   chan struct{}
	ws          *websocket.Conn
}

// Run attaches to a session and mirrors it until the connection closes
// or the context is canceled.
func (c *Client) Run(ctx context.Context) error {
	if c.Logger == nil {
		c.Logger = pslog.LoggerFromEnv()
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}

	wsURL, err := normalizeEndpoint(c.Endpoint)
	if err != nil {
		return err
	}

	if c.ClientID == "" {
		c.ClientID = newClientID()
	}

	c.stdin = c.stdinReader()
	c.stdout = c.stdoutWriter()
	if closer, ok := c.stdin.(io.Closer); ok {
		c.stdinCloser = closer
	}

	cols, rows := c.terminalSize()
	if cols == 0 || rows == 0 {
		cols, rows = config.DefaultGridCols, config.DefaultGridRows
	}

	tlsCfg, err := clientTLSConfig(c.Insecure)
	if err != nil {
		return err
	}
	dialOptions := &websocket.DialOptions{
		HTTPClient: &http.Client{
			Transport: &http.Transport{TLSClientConfig: tlsCfg},
		},
	}
	target := wsURL + "/ws/view"
	if c.Token != "" {
		target += "?token=" + url.QueryEscape(c.Token)
	}

	ws, _, err := websocket.Dial(ctx, target, dialOptions)
	if err != nil {
		return err
	}
	c.ws = ws
	if c.controlCh == nil {
		c.controlCh = make(chan struct{}, 1)
	}
	defer func() {
		_ = ws.Close(websocket.StatusNormalClosure, "closing")
	}()

	if err := c.sendHello(ctx, ws, cols, rows); err != nil {
		return err
	}

	if stdinFile, ok := c.stdin.(*os.File); ok && term.IsTerminal(int(stdinFile.Fd())) {
		stdinState, err := term.MakeRaw(int(stdinFile.Fd()))
		if err != nil {
			return err
		}
		defer func() {
			_ = term.Restore(int(stdinFile.Fd()), stdinState)
		}()
	}

	c.term = render.NewTerm(c.stdout, cols, rows)
	c.term.SetViewport(cols, rows)
	c.screen = screen.New(c.term, c.resolveHighlight)
	c.router = redraw.NewRouter(c.screen, c.Logger)
	if err := c.term.Open(); err != nil {
		return err
	}
	defer func() {
		_ = c.term.Close()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wsDone := make(chan struct{})
	inputDone := make(chan struct{})
	go func() {
		defer close(wsDone)
		c.readWS(ctx, ws)
		cancel()
	}()
	go func() {
		defer close(inputDone)
		c.readInput(ctx, ws)
	}()

	go func() {
		c.handleResize(ctx, ws)
	}()

	if c.shouldWaitForSignals() {
		waitForSignals(ctx, cancel)
	} else {
		<-ctx.Done()
	}
	if c.stdinCloser != nil && !c.shouldWaitForSignals() {
		_ = c.stdinCloser.Close()
	}
	<-wsDone
	if c.shouldWaitForSignals() {
		select {
		case <-inputDone:
		case <-time.After(200 * time.Millisecond):
		}
	} else {
		<-inputDone
	}
	return c.error()
}

func (c *Client) readWS(ctx context.Context, ws *websocket.Conn) {
	for {
		env, err := readEnvelope(ctx, ws)
		if err != nil {
			return
		}
		switch env.Type {
		case protocol.MessageWelcome:
			var welcome protocol.WelcomePayload
			if err := env.DecodePayload(&welcome); err != nil {
				c.Logger.Warn("bad welcome payload", "err", err)
				continue
			}
			c.handleWelcome(welcome)
		case protocol.MessageRedraw:
			if c.acceptSeq(env.Seq) {
				_ = c.requestResync(ctx, ws)
			}
			var payload protocol.RedrawPayload
			if err := env.DecodePayload(&payload); err != nil {
				c.Logger.Warn("bad redraw payload", "err", err)
				continue
			}
			batch, err := protocol.DecodeBatch(payload.Batch)
			if err != nil {
				c.Logger.Warn("bad redraw batch", "err", err)
				continue
			}
			c.renderMu.Lock()
			c.router.Apply(batch)
			c.renderMu.Unlock()
		case protocol.MessageColor:
			var answer protocol.ColorPayload
			if err := env.DecodePayload(&answer); err != nil {
				continue
			}
			c.completeResolve(answer)
		case protocol.MessageControl:
			var ctrl protocol.ControlPayload
			if err := env.DecodePayload(&ctrl); err != nil {
				continue
			}
			c.handleControl(ctrl.HolderClientID)
		case protocol.MessageError:
			var errMsg protocol.ErrorPayload
			_ = env.DecodePayload(&errMsg)
			c.setError(fmt.Errorf("server error: %s", errMsg.Message))
			return
		}
	}
}

func (c *Client) handleWelcome(welcome protocol.WelcomePayload) {
	if welcome.Cols > 0 && welcome.Rows > 0 {
		c.renderMu.Lock()
		c.screen.Resize(welcome.Cols, welcome.Rows)
		if welcome.Title != "" {
			c.screen.SetTitle(welcome.Title)
		}
		_ = c.term.Flush()
		c.renderMu.Unlock()
	}
	if welcome.GrantedControl {
		c.handleControl(c.ClientID)
	}
}

func (c *Client) handleControl(holder string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if holder == c.holderID {
		return
	}
	c.holderID = holder
	if c.controlCh == nil {
		return
	}
	select {
	case c.controlCh <- struct{}{}:
	default:
	}
}

func (c *Client) isController() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.holderID != "" && c.holderID == c.ClientID
}

// acceptSeq records a redraw sequence number and reports whether a
// resync should be requested. Batches after a gap still paint; the
// full repaint that answers the resync overwrites anything stale.
func (c *Client) acceptSeq(seq uint64) bool {
	if seq == 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	gap := c.lastSeq != 0 && seq != c.lastSeq+1
	request := false
	if gap {
		if !c.resyncRequested {
			c.resyncRequested = true
			request = true
		}
	} else {
		c.resyncRequested = false
	}
	c.lastSeq = seq
	return request
}

func (c *Client) requestResync(ctx context.Context, ws *websocket.Conn) error {
	env, err := protocol.NewEnvelope(protocol.MessageResync, "", 0, nil)
	if err != nil {
		return err
	}
	return c.writeEnvelope(ctx, ws, env)
}

// resolveHighlight forwards a highlight-group lookup to the host and
// parks the callback until the color answer arrives. Repeat lookups
// for an id already in flight piggyback on the first request.
func (c *Client) resolveHighlight(id int, done func(screen.Highlight)) {
	c.mu.Lock()
	if c.pending == nil {
		c.pending = make(map[int][]func(screen.Highlight))
	}
	first := len(c.pending[id]) == 0
	c.pending[id] = append(c.pending[id], done)
	ws := c.ws
	c.mu.Unlock()
	if !first || ws == nil {
		return
	}
	env, err := protocol.NewEnvelope(protocol.MessageResolve, "", 0, protocol.ResolvePayload{ID: id})
	if err != nil {
		return
	}
	_ = c.writeEnvelope(context.Background(), ws, env)
}

func (c *Client) completeResolve(answer protocol.ColorPayload) {
	c.mu.Lock()
	dones := c.pending[answer.ID]
	delete(c.pending, answer.ID)
	c.mu.Unlock()
	if len(dones) == 0 {
		return
	}
	hl := screen.Highlight{
		Foreground: colorOrNone(answer.Foreground),
		Background: colorOrNone(answer.Background),
	}
	c.renderMu.Lock()
	for _, done := range dones {
		done(hl)
	}
	c.renderMu.Unlock()
}

func colorOrNone(n int) screen.RGB {
	if n < 0 || n > 0xffffff {
		return screen.NoColor
	}
	return screen.RGB(n)
}

func (c *Client) setError(err error) {
	if err == nil {
		return
	}
	c.errOnce.Do(func() {
		c.runErr = err
	})
}

func (c *Client) error() error {
	return c.runErr
}

func (c *Client) sendHello(ctx context.Context, ws *websocket.Conn, cols, rows int) error {
	c.mu.RLock()
	lastSeq := c.lastSeq
	c.mu.RUnlock()
	hello := protocol.HelloPayload{
		ClientID:     c.ClientID,
		Token:        c.Token,
		Cols:         cols,
		Rows:         rows,
		WantsControl: c.RequestControl,
		LastSeq:      lastSeq,
	}
	env, err := protocol.NewEnvelope(protocol.MessageHello, "", 0, hello)
	if err != nil {
		return err
	}
	return c.writeEnvelope(ctx, ws, env)
}

func newClientID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("viewer-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

func (c *Client) writeEnvelope(ctx context.Context, ws *websocket.Conn, env protocol.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
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

func (c *Client) readInput(ctx context.Context, ws *websocket.Conn) {
	reader := bufio.NewReader(c.stdinReader())
	buf := make([]byte, 1024)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := reader.Read(buf)
		if err != nil {
			if err != io.EOF {
				c.Logger.Debug("stdin read error", "err", err)
			}
			return
		}
		notation := keys.Translate(buf[:n])
		if notation == "" {
			continue
		}
		env, err := protocol.NewEnvelope(protocol.MessageInput, "", 0, protocol.InputPayload{Keys: notation})
		if err != nil {
			continue
		}
		if err := c.writeEnvelope(ctx, ws, env); err != nil {
			c.Logger.Debug("ws write error", "err", err)
			c.setError(err)
			return
		}
	}
}

func (c *Client) handleResize(ctx context.Context, ws *websocket.Conn) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGWINCH)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			cols, rows := c.terminalSize()
			c.renderMu.Lock()
			if c.term != nil {
				// The terminal may drop its contents on resize.
				c.term.SetViewport(cols, rows)
				_ = c.term.Flush()
			}
			c.renderMu.Unlock()
			if c.isController() {
				c.sendResize(ctx, ws, cols, rows)
			}
		case <-c.controlCh:
			if !c.isController() || ws == nil {
				continue
			}
			cols, rows := c.terminalSize()
			c.sendResize(ctx, ws, cols, rows)
		}
	}
}

func (c *Client) sendResize(ctx context.Context, ws *websocket.Conn, cols, rows int) {
	if cols == 0 || rows == 0 {
		return
	}
	env, err := protocol.NewEnvelope(protocol.MessageResize, "", 0, protocol.ResizePayload{Cols: cols, Rows: rows})
	if err != nil {
		return
	}
	_ = c.writeEnvelope(ctx, ws, env)
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

// clientTLSConfig trusts the locally provisioned CA alongside the
// system roots, covering relays that serve with self-generated certs.
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

func waitForSignals(ctx context.Context, cancel func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(ch)
	select {
	case <-ctx.Done():
		return
	case <-ch:
		cancel()
	}
}

func (c *Client) stdinReader() io.Reader {
	if c.stdin != nil {
		return c.stdin
	}
	if c.Stdin != nil {
		return c.Stdin
	}
	return os.Stdin
}

func (c *Client) stdoutWriter() io.Writer {
	if c.stdout != nil {
		return c.stdout
	}
	if c.Stdout != nil {
		return c.Stdout
	}
	return os.Stdout
}

func (c *Client) terminalSize() (int, int) {
	if c.TermSize != nil {
		return c.TermSize()
	}
	if outFile, ok := c.stdoutWriter().(*os.File); ok && term.IsTerminal(int(outFile.Fd())) {
		cols, rows, err := term.GetSize(int(outFile.Fd()))
		if err == nil {
			return cols, rows
		}
	}
	return 0, 0
}

func (c *Client) shouldWaitForSignals() bool {
	if inFile, ok := c.stdinReader().(*os.File); ok && term.IsTerminal(int(inFile.Fd())) {
		return true
	}
	return false
}
