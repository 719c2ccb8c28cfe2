package session

import (
	"context"
	"fmt"
	"sync"

	"pkt.systems/pslog"

	"github.com/damianesteban/veonim/internal/host"
	"github.com/damianesteban/veonim/internal/screen"
)

// Transport is the session's connection to a live editor. It carries
// input and geometry upstream and yields ordered redraw batches
// downstream. Run blocks until the editor is gone; that exit ends the
// session.
type Transport interface {
	// Run attaches to the editor and blocks until it exits or ctx is
	// canceled. Batches stop flowing once Run returns.
	Run(ctx context.Context) error
	// Batches yields decoded redraw batches in arrival order. The
	// channel is never closed; Run's return marks the end of the
	// stream.
	Batches() <-chan []any
	// SendInput forwards keys in editor notation.
	SendInput(keys string) error
	// TryResize asks for a new grid geometry. The editor answers with
	// a resize event on the redraw stream.
	TryResize(cols, rows int) error
	// ResolveHighlight blocks on a highlight color lookup. Callers run
	// it off the session loop.
	ResolveHighlight(id int) (screen.Highlight, error)
	// RequestRepaint asks the editor to replay the full grid.
	RequestRepaint() error
	// Close shuts the editor down.
	Close() error
}

// EditorTransportOptions configures the embedded editor transport.
type EditorTransportOptions struct {
	Command string
	Args    []string
	Files   []string
	Cols    int
	Rows    int
	Logger  pslog.Logger
}

// EditorTransport runs an embedded editor process and adapts it to the
// Transport interface.
type EditorTransport struct {
	opts    EditorTransportOptions
	batches chan []any

	mu     sync.Mutex
	editor *host.Editor
}

// NewEditorTransport constructs the transport. The editor process
// starts when Run is called.
func NewEditorTransport(opts EditorTransportOptions) *EditorTransport {
	return &EditorTransport{
		opts:    opts,
		batches: make(chan []any, 16),
	}
}

// Run starts the editor, attaches the UI, and blocks until the editor
// exits or ctx is canceled.
func (t *EditorTransport) Run(ctx context.Context) error {
	editor, err := host.StartEditor(ctx, host.EditorOptions{
		Command:  t.opts.Command,
		Args:     t.opts.Args,
		Files:    t.opts.Files,
		Cols:     t.opts.Cols,
		Rows:     t.opts.Rows,
		Logger:   t.opts.Logger,
		OnRedraw: t.enqueue,
	})
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.editor = editor
	t.mu.Unlock()

	select {
	case <-ctx.Done():
		_ = editor.Close()
		<-editor.Done()
		return ctx.Err()
	case <-editor.Done():
		return nil
	}
}

// enqueue runs on the RPC goroutine. A full channel blocks it, which
// pauses the msgpack stream instead of dropping batches.
func (t *EditorTransport) enqueue(batch []any) {
	t.batches <- batch
}

// Batches yields decoded redraw batches in arrival order.
func (t *EditorTransport) Batches() <-chan []any {
	return t.batches
}

// SendInput forwards keys in editor notation.
func (t *EditorTransport) SendInput(keys string) error {
	editor := t.getEditor()
	if editor == nil {
		return fmt.Errorf("editor not running")
	}
	return editor.Input(keys)
}

// TryResize asks the editor for a new grid geometry.
func (t *EditorTransport) TryResize(cols, rows int) error {
	editor := t.getEditor()
	if editor == nil {
		return fmt.Errorf("editor not running")
	}
	return editor.ResizeUI(cols, rows)
}

// ResolveHighlight blocks on a highlight color lookup.
func (t *EditorTransport) ResolveHighlight(id int) (screen.Highlight, error) {
	editor := t.getEditor()
	if editor == nil {
		return screen.Highlight{Foreground: screen.NoColor, Background: screen.NoColor},
			fmt.Errorf("editor not running")
	}
	return editor.ResolveHighlight(id)
}

// RequestRepaint asks the editor to replay the full grid.
func (t *EditorTransport) RequestRepaint() error {
	editor := t.getEditor()
	if editor == nil {
		return fmt.Errorf("editor not running")
	}
	return editor.RequestRepaint()
}

// Close shuts the editor down.
func (t *EditorTransport) Close() error {
	editor := t.getEditor()
	if editor == nil {
		return nil
	}
	return editor.Close()
}

func (t *EditorTransport) getEditor() *host.Editor {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.editor
}
