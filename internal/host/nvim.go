// Package host owns the editor side of a session: it embeds the nvim
// child process, surfaces its redraw stream, and can publish that
// stream to a relay for remote viewers.
package host

import (
	"context"
	"fmt"
	"sync"

	"github.com/neovim/go-client/nvim"
	"pkt.systems/pslog"

	"github.com/damianesteban/veonim/internal/config"
	"github.com/damianesteban/veonim/internal/screen"
)

// EditorOptions configures the embedded editor process.
type EditorOptions struct {
	// Command is the editor binary; empty selects the configured
	// default.
	Command string
	// Args are passed after --embed.
	Args []string
	// Files are opened at startup.
	Files []string

	Cols int
	Rows int

	Logger pslog.Logger

	// OnRedraw receives each decoded redraw batch. It is called from
	// the RPC goroutine; implementations hand the batch to their own
	// loop.
	OnRedraw func(batch []any)
	// OnExit is called once when the editor process ends, with the
	// serve loop's error if any.
	OnExit func(err error)
}

// Editor is a running embedded editor attached as a cell-grid UI.
type Editor struct {
	nv     *nvim.Nvim
	logger pslog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// StartEditor launches the editor, registers the redraw handler, and
// attaches the UI at the given geometry.
func StartEditor(ctx context.Context, opts EditorOptions) (*Editor, error) {
	logger := opts.Logger
	if logger == nil {
		logger = pslog.LoggerFromEnv()
	}
	command := opts.Command
	if command == "" {
		command = config.DefaultEditorCommand
	}
	cols := opts.Cols
	if cols <= 0 {
		cols = config.DefaultGridCols
	}
	rows := opts.Rows
	if rows <= 0 {
		rows = config.DefaultGridRows
	}

	args := []string{"--embed"}
	args = append(args, opts.Args...)
	args = append(args, opts.Files...)

	nv, err := nvim.NewChildProcess(
		nvim.ChildProcessCommand(command),
		nvim.ChildProcessArgs(args...),
		nvim.ChildProcessContext(ctx),
		nvim.ChildProcessServe(false),
	)
	if err != nil {
		return nil, fmt.Errorf("start editor %q: %w", command, err)
	}

	e := &Editor{
		nv:     nv,
		logger: logger,
		done:   make(chan struct{}),
	}

	if opts.OnRedraw != nil {
		onRedraw := opts.OnRedraw
		if err := nv.RegisterHandler("redraw", func(updates ...[]interface{}) {
			batch := make([]any, len(updates))
			for i, update := range updates {
				batch[i] = any(update)
			}
			onRedraw(batch)
		}); err != nil {
			_ = nv.Close()
			return nil, fmt.Errorf("register redraw handler: %w", err)
		}
	}

	go func() {
		err := nv.Serve()
		close(e.done)
		if opts.OnExit != nil {
			opts.OnExit(err)
		}
	}()

	if err := nv.AttachUI(cols, rows, attachOptions()); err != nil {
		_ = nv.Close()
		return nil, fmt.Errorf("attach ui: %w", err)
	}
	logger.Debug("editor attached", "command", command, "cols", cols, "rows", rows)
	return e, nil
}

// attachOptions selects the cell-based protocol: no linegrid, no
// externalized components.
func attachOptions() map[string]interface{} {
	return map[string]interface{}{
		"rgb":           true,
		"ext_linegrid":  false,
		"ext_popupmenu": false,
		"ext_tabline":   false,
		"ext_cmdline":   false,
	}
}

// Input forwards keys in editor notation.
func (e *Editor) Input(keys string) error {
	if _, err := e.nv.Input(keys); err != nil {
		return fmt.Errorf("send input: %w", err)
	}
	return nil
}

// ResizeUI asks the editor for a new grid geometry. The editor answers
// with a resize event on the redraw stream.
func (e *Editor) ResizeUI(cols, rows int) error {
	return e.nv.TryResizeUI(cols, rows)
}

// ResolveHighlight looks up the colors of a highlight group. Blocks on
// the RPC round trip; call it off the session loop.
func (e *Editor) ResolveHighlight(id int) (screen.Highlight, error) {
	none := screen.Highlight{Foreground: screen.NoColor, Background: screen.NoColor}
	attrs, err := e.nv.HLByID(id, true)
	if err != nil {
		return none, fmt.Errorf("resolve highlight %d: %w", id, err)
	}
	if attrs == nil {
		return none, nil
	}
	return screen.Highlight{
		Foreground: colorFromRPC(int(attrs.Foreground)),
		Background: colorFromRPC(int(attrs.Background)),
	}, nil
}

// colorFromRPC maps the RPC color encoding onto ours. Zero means the
// group does not set the color; true black never survives the wire.
func colorFromRPC(n int) screen.RGB {
	if n <= 0 {
		return screen.NoColor
	}
	return screen.RGB(n)
}

// Command runs an ex command.
func (e *Editor) Command(cmd string) error {
	return e.nv.Command(cmd)
}

// RequestRepaint forces the editor to repaint everything, replaying
// the full grid over the redraw stream.
func (e *Editor) RequestRepaint() error {
	return e.nv.Command("redraw!")
}

// Done closes when the editor process has ended.
func (e *Editor) Done() <-chan struct{} {
	return e.done
}

// Close detaches the UI and shuts the editor down.
func (e *Editor) Close() error {
	var err error
	e.closeOnce.Do(func() {
		_ = e.nv.DetachUI()
		err = e.nv.Close()
	})
	return err
}
