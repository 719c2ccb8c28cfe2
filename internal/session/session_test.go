package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/damianesteban/veonim/internal/screen"
)

func TestRunnerAppliesBatchesInOrder(t *testing.T) {
	transport := newFakeTransport()
	surf := newRecordingSurface(20, 5)
	runner := New(Options{
		Transport: transport,
		Surface:   surf,
		Stdin:     devNullFile(t),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	runDone := make(chan error, 1)
	go func() {
		runDone <- runner.Run(ctx)
	}()

	transport.batches <- []any{
		[]any{"cursor_goto", []any{0, 0}},
		[]any{"put", []any{"h"}, []any{"i"}},
	}
	transport.batches <- []any{
		[]any{"cursor_goto", []any{1, 0}},
		[]any{"put", []any{"y"}, []any{"o"}},
	}

	waitUntil(t, 2*time.Second, func() bool {
		return strings.Join(surf.textRuns(), ",") == "hi,yo"
	}, "both runs painted in order")

	close(transport.release)
	if err := <-runDone; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRunnerStopsWhenEditorExits(t *testing.T) {
	transport := newFakeTransport()
	transport.runErr = errors.New("rpc stream broke")
	close(transport.release)

	runner := New(Options{
		Transport: transport,
		Surface:   newRecordingSurface(10, 4),
		Stdin:     devNullFile(t),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := runner.Run(ctx)
	if err == nil {
		t.Fatalf("expected error after editor exit")
	}
	if !strings.Contains(err.Error(), "editor stopped") {
		t.Fatalf("err = %v", err)
	}
}

func TestRunnerResolvesModeColors(t *testing.T) {
	transport := newFakeTransport()
	transport.colors[7] = screen.Highlight{Foreground: screen.NoColor, Background: screen.RGB(0x112233)}
	surf := newRecordingSurface(20, 5)
	runner := New(Options{
		Transport: transport,
		Surface:   surf,
		Stdin:     devNullFile(t),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	runDone := make(chan error, 1)
	go func() {
		runDone <- runner.Run(ctx)
	}()

	transport.batches <- []any{
		[]any{"mode_info_set", []any{true, []any{
			map[string]any{"name": "normal", "cursor_shape": "block", "attr_id": 7},
			map[string]any{"name": "insert", "cursor_shape": "vertical", "cell_percentage": 25},
		}}},
	}
	transport.batches <- []any{
		[]any{"mode_change", []any{"normal"}},
	}

	waitUntil(t, 2*time.Second, func() bool {
		shape, color := surf.cursorShape()
		return shape == screen.ShapeBlock && color == screen.RGB(0x112233)
	}, "mode color resolved onto the cursor")

	close(transport.release)
	if err := <-runDone; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRunnerForwardsTranslatedInput(t *testing.T) {
	transport := newFakeTransport()
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	runner := New(Options{
		Transport: transport,
		Surface:   newRecordingSurface(10, 4),
		Stdin:     stdinR,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	runDone := make(chan error, 1)
	go func() {
		runDone <- runner.Run(ctx)
	}()

	if _, err := stdinW.Write([]byte("i\rx")); err != nil {
		t.Fatalf("write stdin: %v", err)
	}
	waitUntil(t, 2*time.Second, func() bool {
		return strings.Join(transport.sentInput(), "") == "i<CR>x"
	}, "translated input forwarded")

	// Local input ending ends a local session.
	_ = stdinW.Close()
	if err := <-runDone; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRunnerRequestsResizeOnSigwinch(t *testing.T) {
	transport := newFakeTransport()
	runner := New(Options{
		Transport: transport,
		Surface:   newRecordingSurface(80, 24),
		Stdin:     devNullFile(t),
		TermSize: func() (int, int) {
			return 100, 40
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	runDone := make(chan error, 1)
	go func() {
		runDone <- runner.Run(ctx)
	}()

	// The runner installs its handler during startup; retry until the
	// signal lands.
	waitUntil(t, 2*time.Second, func() bool {
		_ = syscall.Kill(os.Getpid(), syscall.SIGWINCH)
		time.Sleep(10 * time.Millisecond)
		for _, size := range transport.sentResizes() {
			if size[0] == 100 && size[1] == 40 {
				return true
			}
		}
		return false
	}, "resize request reached the transport")

	close(transport.release)
	if err := <-runDone; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

type fakeTransport struct {
	batches chan []any
	release chan struct{}
	runErr  error

	mu       sync.Mutex
	inputs   []string
	resizes  [][2]int
	repaints int
	colors   map[int]screen.Highlight
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		batches: make(chan []any, 16),
		release: make(chan struct{}),
		colors:  make(map[int]screen.Highlight),
	}
}

func (f *fakeTransport) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.release:
		return f.runErr
	}
}

func (f *fakeTransport) Batches() <-chan []any { return f.batches }

func (f *fakeTransport) SendInput(keys string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, keys)
	return nil
}

func (f *fakeTransport) TryResize(cols, rows int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resizes = append(f.resizes, [2]int{cols, rows})
	return nil
}

func (f *fakeTransport) ResolveHighlight(id int) (screen.Highlight, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if hl, ok := f.colors[id]; ok {
		return hl, nil
	}
	return screen.Highlight{Foreground: screen.NoColor, Background: screen.NoColor},
		fmt.Errorf("unknown highlight %d", id)
}

func (f *fakeTransport) RequestRepaint() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repaints++
	return nil
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) sentInput() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.inputs...)
}

func (f *fakeTransport) sentResizes() [][2]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][2]int(nil), f.resizes...)
}

type recordingSurface struct {
	mu    sync.Mutex
	cols  int
	rows  int
	runs  []string
	shape screen.Shape
	color screen.RGB
}

func newRecordingSurface(cols, rows int) *recordingSurface {
	return &recordingSurface{cols: cols, rows: rows}
}

func (s *recordingSurface) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cols, s.rows
}

func (s *recordingSurface) Resize(cols, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cols, s.rows = cols, rows
}

func (s *recordingSurface) FillRect(r screen.Rect, bg screen.RGB) {}

func (s *recordingSurface) PutText(col, row int, cells []string, attr screen.Attr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, strings.Join(cells, ""))
}

func (s *recordingSurface) CopyRegion(r screen.Rect) screen.Patch     { return nil }
func (s *recordingSurface) PasteRegion(p screen.Patch, col, row int)  {}
func (s *recordingSurface) SetCursor(col, row int)                    {}
func (s *recordingSurface) SetCursorVisible(visible bool)             {}
func (s *recordingSurface) SetTitle(title string)                     {}
func (s *recordingSurface) SetIcon(icon string)                       {}
func (s *recordingSurface) Bell()                                     {}
func (s *recordingSurface) VisualBell()                               {}
func (s *recordingSurface) Flush() error                              { return nil }

func (s *recordingSurface) SetCursorShape(shape screen.Shape, cellPercent int, color screen.RGB) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shape = shape
	s.color = color
}

func (s *recordingSurface) textRuns() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.runs...)
}

func (s *recordingSurface) cursorShape() (screen.Shape, screen.RGB) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shape, s.color
}

func devNullFile(t *testing.T) *os.File {
	t.Helper()
	f, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatalf("open %s: %v", os.DevNull, err)
	}
	t.Cleanup(func() {
		_ = f.Close()
	})
	return f
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
