// Package session runs an interactive editor session: it owns the
// screen state machine, applies the editor's redraw batches to a
// surface, forwards local input, and can publish the stream to a
// relay for remote viewers.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"

	"pkt.systems/pslog"

	"github.com/damianesteban/veonim/internal/config"
	"github.com/damianesteban/veonim/internal/host"
	"github.com/damianesteban/veonim/internal/keys"
	"github.com/damianesteban/veonim/internal/redraw"
	"github.com/damianesteban/veonim/internal/render"
	"github.com/damianesteban/veonim/internal/screen"
)

// Options configures a local interactive session.
type Options struct {
	EditorCommand string
	EditorArgs    []string
	Files         []string

	Cols int
	Rows int

	// Publishing. A non-empty Endpoint enables it.
	Endpoint      string
	Token         string
	SessionID     string
	Title         string
	BufferBatches int
	Insecure      bool

	Stdin      *os.File
	Stdout     *os.File
	DisableRaw bool
	Logger     pslog.Logger

	// Surface overrides the terminal renderer.
	Surface screen.Surface
	// Transport overrides the embedded editor.
	Transport Transport
	// TermSize overrides terminal size detection.
	TermSize func() (cols, rows int)
	// OnBatch observes every applied batch.
	OnBatch func(batch []any)
}

// Runner executes an interactive session with optional relay
// publishing. The Run goroutine is the session loop: it is the only
// one that touches the screen, the router, and the surface.
type Runner struct {
	opts   Options
	logger pslog.Logger

	transport Transport
	publisher *host.Publisher

	screen *screen.Screen
	router *redraw.Router
	term   *render.Term

	events   chan func()
	loopDone chan struct{}

	errOnce sync.Once
	runErr  error
}

// New constructs a Runner.
func New(opts Options) *Runner {
	return &Runner{
		opts:     opts,
		events:   make(chan func(), 16),
		loopDone: make(chan struct{}),
	}
}

// Run starts the session and blocks until the editor exits, the
// context is canceled, or a termination signal arrives.
func (r *Runner) Run(ctx context.Context) error {
	if r.opts.Logger == nil {
		r.opts.Logger = pslog.LoggerFromEnv()
	}
	r.logger = r.opts.Logger

	publish := r.opts.Endpoint != ""
	if publish && r.opts.Token == "" {
		return fmt.Errorf("share token is required when publishing")
	}
	if publish && r.opts.SessionID == "" {
		r.opts.SessionID = config.DefaultSessionID()
	}

	stdin := r.stdin()
	stdout := r.stdout()

	cols, rows := r.opts.Cols, r.opts.Rows
	if cols <= 0 || rows <= 0 {
		if c, w := r.terminalSize(stdout); c > 0 && w > 0 {
			cols, rows = c, w
		}
	}
	if cols <= 0 {
		cols = config.DefaultGridCols
	}
	if rows <= 0 {
		rows = config.DefaultGridRows
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	transport := r.opts.Transport
	if transport == nil {
		transport = NewEditorTransport(EditorTransportOptions{
			Command: r.opts.EditorCommand,
			Args:    r.opts.EditorArgs,
			Files:   r.opts.Files,
			Cols:    cols,
			Rows:    rows,
			Logger:  r.logger.With("component", "editor"),
		})
	}
	r.transport = transport

	surf := r.opts.Surface
	if surf == nil {
		if !r.opts.DisableRaw && stdin != nil && term.IsTerminal(int(stdin.Fd())) {
			oldState, err := term.MakeRaw(int(stdin.Fd()))
			if err != nil {
				return fmt.Errorf("set raw mode: %w", err)
			}
			defer func() {
				_ = term.Restore(int(stdin.Fd()), oldState)
			}()
		}
		t := render.NewTerm(stdout, cols, rows)
		if err := t.Open(); err != nil {
			return fmt.Errorf("open terminal: %w", err)
		}
		defer func() {
			_ = t.Close()
		}()
		r.term = t
		surf = t
	}

	r.screen = screen.New(surf, r.resolveHighlight)
	r.router = redraw.NewRouter(r.screen, r.logger.With("component", "redraw"))

	sigCtx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	sigwinch := make(chan os.Signal, 1)
	signal.Notify(sigwinch, syscall.SIGWINCH)
	defer signal.Stop(sigwinch)

	transportDone := make(chan struct{})
	go func() {
		if err := transport.Run(sigCtx); err != nil && !errors.Is(err, context.Canceled) {
			r.setError("editor stopped: %v", err)
		}
		close(transportDone)
	}()
	defer func() {
		_ = transport.Close()
	}()

	if publish {
		r.publisher = r.newPublisher(transport, cols, rows)
		go func() {
			if err := r.publisher.Run(sigCtx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Warn("publisher stopped", "err", err)
			}
		}()
	}

	if r.opts.Stdin != nil {
		go func() {
			<-sigCtx.Done()
			_ = stdin.Close()
		}()
	}
	inputDone := make(chan struct{})
	go func() {
		defer close(inputDone)
		r.readInput(stdin, transport, publish, cancel)
	}()

	go r.watchResize(sigCtx, sigwinch, stdout, transport)

	r.loop(sigCtx, transportDone)
	close(r.loopDone)
	cancel()

	select {
	case <-inputDone:
	case <-time.After(200 * time.Millisecond):
	}
	<-transportDone
	return r.error()
}

// loop is the session loop: batches from the transport and posted
// closures apply here, one at a time, in arrival order.
func (r *Runner) loop(ctx context.Context, transportDone <-chan struct{}) {
	lastCols, lastRows := r.screen.Size()
	for {
		select {
		case <-ctx.Done():
			return
		case <-transportDone:
			return
		case batch := <-r.transport.Batches():
			r.router.Apply(batch)
			if r.publisher != nil {
				r.publisher.PublishBatch(batch)
				if c, w := r.screen.Size(); c != lastCols || w != lastRows {
					lastCols, lastRows = c, w
					r.publisher.PublishResize(c, w)
				}
			}
			if r.opts.OnBatch != nil {
				r.opts.OnBatch(batch)
			}
		case fn := <-r.events:
			fn()
		}
	}
}

// post hands a closure to the session loop. Posting after the loop
// has exited is a no-op.
func (r *Runner) post(fn func()) {
	select {
	case r.events <- fn:
	case <-r.loopDone:
	}
}

// resolveHighlight runs the blocking color lookup off the loop and
// posts the completion back onto it.
func (r *Runner) resolveHighlight(id int, done func(screen.Highlight)) {
	transport := r.transport
	go func() {
		hl, err := transport.ResolveHighlight(id)
		if err != nil {
			r.logger.Debug("highlight resolution failed", "id", id, "err", err)
			return
		}
		r.post(func() {
			done(hl)
		})
	}()
}

func (r *Runner) newPublisher(transport Transport, cols, rows int) *host.Publisher {
	pub := host.NewPublisher(host.PublishOptions{
		Endpoint:      r.opts.Endpoint,
		Token:         r.opts.Token,
		SessionID:     r.opts.SessionID,
		Title:         r.opts.Title,
		Cols:          cols,
		Rows:          rows,
		BufferBatches: r.opts.BufferBatches,
		Insecure:      r.opts.Insecure,
		Logger:        r.logger.With("component", "publish"),
	})
	pub.OnInput = func(notation string) {
		if notation == "" {
			return
		}
		if err := transport.SendInput(notation); err != nil {
			r.logger.Debug("remote input failed", "err", err)
		}
	}
	pub.OnResize = func(cols, rows int) {
		if cols <= 0 || rows <= 0 {
			return
		}
		if err := transport.TryResize(cols, rows); err != nil {
			r.logger.Debug("remote resize failed", "err", err)
		}
	}
	pub.OnResync = func() {
		if err := transport.RequestRepaint(); err != nil {
			r.logger.Debug("repaint request failed", "err", err)
		}
	}
	pub.OnResolve = func(id int) {
		go func() {
			hl, err := transport.ResolveHighlight(id)
			if err != nil {
				r.logger.Debug("highlight resolution failed", "id", id, "err", err)
				return
			}
			pub.PublishColor(id, hl)
		}()
	}
	return pub
}

// readInput translates raw terminal bytes to editor notation and
// forwards them. When not publishing, the end of local input ends the
// session.
func (r *Runner) readInput(stdin *os.File, transport Transport, publish bool, cancel context.CancelFunc) {
	if stdin == nil {
		return
	}
	reader := bufio.NewReader(stdin)
	buf := make([]byte, 1024)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			notation := keys.Translate(buf[:n])
			if notation != "" {
				if err := transport.SendInput(notation); err != nil {
					r.logger.Debug("input send failed", "err", err)
					return
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				r.logger.Debug("stdin read error", "err", err)
			}
			if !publish {
				cancel()
			}
			return
		}
	}
}

// watchResize reacts to terminal size changes. The editor answers the
// resize request with a resize event on the redraw stream; the local
// repaint covers terminals that drop their contents on resize.
func (r *Runner) watchResize(ctx context.Context, sigwinch <-chan os.Signal, stdout *os.File, transport Transport) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigwinch:
			cols, rows := r.terminalSize(stdout)
			if cols <= 0 || rows <= 0 {
				continue
			}
			r.post(func() {
				if r.term != nil {
					r.term.Repaint()
				}
			})
			if err := transport.TryResize(cols, rows); err != nil {
				r.logger.Debug("resize request failed", "err", err)
			}
		}
	}
}

func (r *Runner) terminalSize(stdout *os.File) (int, int) {
	if r.opts.TermSize != nil {
		return r.opts.TermSize()
	}
	if stdout == nil {
		return 0, 0
	}
	cols, rows, err := term.GetSize(int(stdout.Fd()))
	if err != nil {
		return 0, 0
	}
	return cols, rows
}

func (r *Runner) stdin() *os.File {
	if r.opts.Stdin != nil {
		return r.opts.Stdin
	}
	return os.Stdin
}

func (r *Runner) stdout() *os.File {
	if r.opts.Stdout != nil {
		return r.opts.Stdout
	}
	return os.Stdout
}

func (r *Runner) setError(format string, args ...any) {
	r.errOnce.Do(func() {
		r.runErr = fmt.Errorf(format, args...)
	})
}

func (r *Runner) error() error {
	r.errOnce.Do(func() {})
	return r.runErr
}
