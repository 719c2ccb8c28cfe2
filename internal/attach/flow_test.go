package attach

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/damianesteban/veonim/internal/host"
	"github.com/damianesteban/veonim/internal/relay"
	"github.com/damianesteban/veonim/internal/server"
	"github.com/damianesteban/veonim/internal/tlsmgr"
)

type sizeProvider struct {
	mu   sync.RWMutex
	cols int
	rows int
}

func (s *sizeProvider) Size() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cols, s.rows
}

func (s *sizeProvider) Set(cols, rows int) {
	s.mu.Lock()
	s.cols, s.rows = cols, rows
	s.mu.Unlock()
}

// textCollector gathers bytes from any goroutine. It doubles as a
// viewer Stdout and as a sink for host input callbacks.
type textCollector struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *textCollector) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

func (c *textCollector) Append(s string) {
	c.mu.Lock()
	_, _ = c.buf.WriteString(s)
	c.mu.Unlock()
}

func (c *textCollector) Contains(sub string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Contains(c.buf.String(), sub)
}

type geomFlag struct {
	mu   sync.Mutex
	cols int
	rows int
}

func (g *geomFlag) Set(cols, rows int) {
	g.mu.Lock()
	g.cols, g.rows = cols, rows
	g.mu.Unlock()
}

func (g *geomFlag) Is(cols, rows int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cols == cols && g.rows == rows
}

func TestEndToEndHostAttachFlow(t *testing.T) {
	endpoint, hub, control, _ := startFlowRelay(t)

	hostInput := &textCollector{}
	var geom geomFlag

	pub := host.NewPublisher(host.PublishOptions{
		Endpoint:  endpoint,
		Token:     control.Token,
		SessionID: "session_test",
		Title:     "flow",
		Cols:      80,
		Rows:      24,
	})
	pub.OnResync = func() {
		publishRepaint(pub, 80, 24, "ONE")
	}
	pub.OnInput = func(keys string) {
		hostInput.Append(keys)
		if hostInput.Contains("TWO") {
			publishRepaint(pub, 80, 24, "ONE", "TWO")
		}
	}
	pub.OnResize = func(cols, rows int) {
		geom.Set(cols, rows)
		publishRepaint(pub, cols, rows, "ONE", "TWO")
	}

	hostCtx, hostCancel := context.WithCancel(context.Background())
	t.Cleanup(hostCancel)
	hostErr := make(chan error, 1)
	go func() {
		hostErr <- pub.Run(hostCtx)
	}()

	waitUntil(t, 5*time.Second, func() bool {
		return hub.HasHost()
	}, hostErr)

	in1, w1 := io.Pipe()
	defer w1.Close()
	out1 := &textCollector{}
	size1 := &sizeProvider{cols: 80, rows: 24}
	c1 := &Client{
		Endpoint:       endpoint,
		Token:          control.Token,
		RequestControl: true,
		ClientID:       "client1",
		Stdin:          in1,
		Stdout:         out1,
		TermSize:       size1.Size,
	}
	ctx1, cancel1 := context.WithCancel(context.Background())
	t.Cleanup(cancel1)
	c1Err := make(chan error, 1)
	go func() {
		c1Err <- c1.Run(ctx1)
	}()

	waitUntil(t, 5*time.Second, func() bool {
		c1.mu.RLock()
		defer c1.mu.RUnlock()
		return c1.holderID == "client1"
	}, hostErr, c1Err)

	waitUntil(t, 5*time.Second, func() bool {
		return out1.Contains("ONE")
	}, hostErr, c1Err)

	in2, w2 := io.Pipe()
	defer w2.Close()
	size2 := &sizeProvider{cols: 80, rows: 24}
	c2 := &Client{
		Endpoint:       endpoint,
		Token:          control.Token,
		RequestControl: false,
		ClientID:       "client2",
		Stdin:          in2,
		Stdout:         io.Discard,
		TermSize:       size2.Size,
	}
	ctx2, cancel2 := context.WithCancel(context.Background())
	t.Cleanup(cancel2)
	c2Err := make(chan error, 1)
	go func() {
		c2Err <- c2.Run(ctx2)
	}()

	waitUntil(t, 5*time.Second, func() bool {
		c2.mu.RLock()
		defer c2.mu.RUnlock()
		return c2.holderID != ""
	}, hostErr, c1Err, c2Err)

	// Typing from the second viewer takes the seat from the first.
	_, _ = w2.Write([]byte("TWO\r"))

	waitUntil(t, 5*time.Second, func() bool {
		c1.mu.RLock()
		defer c1.mu.RUnlock()
		return c1.holderID == "client2"
	}, hostErr, c1Err, c2Err)

	waitUntil(t, 5*time.Second, func() bool {
		return hostInput.Contains("TWO<CR>")
	}, hostErr, c1Err, c2Err)

	waitUntil(t, 5*time.Second, func() bool {
		return out1.Contains("TWO")
	}, hostErr, c1Err, c2Err)

	if holder := pub.Holder(); holder != "client2" {
		t.Fatalf("host sees holder %q, want client2", holder)
	}

	size2.Set(100, 30)
	waitUntil(t, 5*time.Second, func() bool {
		if geom.Is(100, 30) {
			return true
		}
		_ = syscall.Kill(os.Getpid(), syscall.SIGWINCH)
		return false
	}, hostErr, c1Err, c2Err)

	waitUntil(t, 5*time.Second, func() bool {
		c1.renderMu.Lock()
		defer c1.renderMu.Unlock()
		cols, rows := c1.screen.Size()
		return cols == 100 && rows == 30
	}, hostErr, c1Err, c2Err)
}

// startFlowRelay provisions TLS under a scratch HOME, mints one token
// per scope, and serves the relay over httptest TLS.
func startFlowRelay(t *testing.T) (string, *relay.Hub, relay.ShareToken, relay.ShareToken) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)

	tlsDir := filepath.Join(home, ".veonim", "tls")
	if err := tlsmgr.GenerateAll(tlsDir, "", nil); err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}
	cert, err := tlsmgr.LoadLocalServerCert(tlsDir)
	if err != nil {
		t.Fatalf("LoadLocalServerCert: %v", err)
	}

	now := time.Now().UTC()
	control, err := relay.NewShareToken(relay.ScopeControl, 0, now)
	if err != nil {
		t.Fatalf("NewShareToken control: %v", err)
	}
	view, err := relay.NewShareToken(relay.ScopeView, 0, now)
	if err != nil {
		t.Fatalf("NewShareToken view: %v", err)
	}

	hub := relay.NewHub(nil)
	relaySrv := relay.NewServer(hub, []relay.ShareToken{control, view}, nil)
	handler := server.WrapBasePath("/v1", relaySrv.Handler())
	srv := httptest.NewUnstartedServer(handler)
	srv.TLS = &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}
	srv.StartTLS()
	t.Cleanup(srv.Close)

	return srv.URL + "/v1", hub, control, view
}

// publishRepaint sends a full-grid redraw batch: resize, clear, then
// one line of text per row starting at the top.
func publishRepaint(pub *host.Publisher, cols, rows int, lines ...string) {
	batch := []any{
		[]any{"resize", []any{cols, rows}},
		[]any{"clear"},
	}
	for i, line := range lines {
		batch = append(batch, []any{"cursor_goto", []any{i, 0}})
		put := []any{"put"}
		for _, r := range line {
			put = append(put, []any{string(r)})
		}
		batch = append(batch, put)
	}
	pub.PublishBatch(batch)
}

func waitUntil(t *testing.T, timeout time.Duration, fn func() bool, errs ...<-chan error) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, ch := range errs {
			select {
			case err := <-ch:
				if err == nil {
					t.Fatalf("unexpected early exit")
				}
				t.Fatalf("unexpected error: %v", err)
			default:
			}
		}
		if fn() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("condition not met before timeout")
}
