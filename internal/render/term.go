// Package render paints the screen onto output devices. Term is the
// ANSI terminal surface; the pix subpackage rasterizes into a pixel
// framebuffer.
package render

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/damianesteban/veonim/internal/screen"
)

const (
	ansiClearScreen = "\x1b[2J"
	ansiHome        = "\x1b[H"
	ansiHideCursor  = "\x1b[?25l"
	ansiShowCursor  = "\x1b[?25h"
	ansiReset       = "\x1b[0m"
	ansiEnterAlt    = "\x1b[?1049h"
	ansiLeaveAlt    = "\x1b[?1049l"
	ansiFlash       = "\x1b[?5h\x1b[?5l"
)

type cell struct {
	ch   string
	attr screen.Attr
}

type cursorState struct {
	col     int
	row     int
	visible bool
	shape   screen.Shape
	percent int
	color   screen.RGB
}

// Term is a screen.Surface writing ANSI escape sequences to a
// terminal. Paint accumulates in a cell buffer and goes out on Flush
// as a repaint of the dirty row range, with attribute runs diffed so
// unchanged styling costs nothing. Not safe for concurrent use.
type Term struct {
	out  *bufio.Writer
	cols int
	rows int

	vpCols int
	vpRows int

	cells []cell

	dirtyTop    int
	dirtyBottom int
	allDirty    bool

	want      cursorState
	sent      cursorState
	sentValid bool

	pending []string
}

// NewTerm returns a terminal surface of the given cell geometry
// writing to w.
func NewTerm(w io.Writer, cols, rows int) *Term {
	t := &Term{
		out:  bufio.NewWriterSize(w, 32*1024),
		want: cursorState{visible: true},
	}
	t.Resize(cols, rows)
	return t
}

// Open switches the terminal to the alternate screen, disables
// autowrap, and schedules a full repaint. The caller owns raw mode.
func (t *Term) Open() error {
	if _, err := t.out.WriteString(ansiEnterAlt + "\x1b[?7l" + ansiReset + ansiClearScreen + ansiHome); err != nil {
		return err
	}
	t.allDirty = true
	t.sentValid = false
	return t.out.Flush()
}

// Close restores the terminal: attributes, autowrap, cursor shape and
// color, visibility, and the main screen.
func (t *Term) Close() error {
	if _, err := t.out.WriteString(ansiReset + "\x1b[0 q\x1b]112\x07" + ansiShowCursor + "\x1b[?7h" + ansiLeaveAlt); err != nil {
		return err
	}
	return t.out.Flush()
}

// Size returns the cell geometry.
func (t *Term) Size() (int, int) { return t.cols, t.rows }

// Resize reshapes the buffer, keeping the overlapping region, and
// schedules a full repaint.
func (t *Term) Resize(cols, rows int) {
	if cols <= 0 || rows <= 0 {
		return
	}
	next := make([]cell, cols*rows)
	minCols := min(cols, t.cols)
	minRows := min(rows, t.rows)
	for row := 0; row < minRows; row++ {
		copy(next[row*cols:row*cols+minCols], t.cells[row*t.cols:row*t.cols+minCols])
	}
	t.cols, t.rows, t.cells = cols, rows, next
	t.allDirty = true
}

// SetViewport limits output to the top-left cols by rows cells when
// the real terminal is smaller than the grid. Zero lifts the limit.
// The buffer keeps the full grid, so growing the viewport repaints the
// newly exposed cells.
func (t *Term) SetViewport(cols, rows int) {
	if cols < 0 {
		cols = 0
	}
	if rows < 0 {
		rows = 0
	}
	t.vpCols, t.vpRows = cols, rows
	t.allDirty = true
	t.sentValid = false
}

// Repaint schedules a full repaint on the next Flush, for terminals
// that dropped their contents on resize.
func (t *Term) Repaint() {
	t.allDirty = true
	t.sentValid = false
}

func (t *Term) viewCols() int {
	if t.vpCols > 0 && t.vpCols < t.cols {
		return t.vpCols
	}
	return t.cols
}

func (t *Term) viewRows() int {
	if t.vpRows > 0 && t.vpRows < t.rows {
		return t.vpRows
	}
	return t.rows
}

// FillRect paints r with bg, erasing glyphs.
func (t *Term) FillRect(r screen.Rect, bg screen.RGB) {
	r = t.clip(r)
	if r.Cols == 0 || r.Rows == 0 {
		return
	}
	attr := screen.Attr{Foreground: screen.NoColor, Background: bg, Special: screen.NoColor}
	for row := r.Row; row < r.Row+r.Rows; row++ {
		for col := r.Col; col < r.Col+r.Cols; col++ {
			t.cells[row*t.cols+col] = cell{attr: attr}
		}
	}
	t.markDirty(r.Row, r.Row+r.Rows-1)
}

// PutText paints one row of glyphs. An empty glyph is the continuation
// cell of a preceding double-width character and renders as nothing.
func (t *Term) PutText(col, row int, cells []string, attr screen.Attr) {
	if row < 0 || row >= t.rows {
		return
	}
	for i, ch := range cells {
		c := col + i
		if c < 0 || c >= t.cols {
			continue
		}
		t.cells[row*t.cols+c] = cell{ch: ch, attr: attr}
	}
	t.markDirty(row, row)
}

type termPatch struct {
	r     screen.Rect
	cells []cell
}

// CopyRegion captures the clipped region r.
func (t *Term) CopyRegion(r screen.Rect) screen.Patch {
	r = t.clip(r)
	p := &termPatch{r: r, cells: make([]cell, r.Cols*r.Rows)}
	for row := 0; row < r.Rows; row++ {
		copy(p.cells[row*r.Cols:(row+1)*r.Cols], t.cells[(r.Row+row)*t.cols+r.Col:])
	}
	return p
}

// PasteRegion blits a captured patch with its top-left at (col, row).
func (t *Term) PasteRegion(p screen.Patch, col, row int) {
	patch, ok := p.(*termPatch)
	if !ok {
		return
	}
	top, bottom := t.rows, -1
	for pr := 0; pr < patch.r.Rows; pr++ {
		dst := row + pr
		if dst < 0 || dst >= t.rows {
			continue
		}
		for pc := 0; pc < patch.r.Cols; pc++ {
			dc := col + pc
			if dc < 0 || dc >= t.cols {
				continue
			}
			t.cells[dst*t.cols+dc] = patch.cells[pr*patch.r.Cols+pc]
		}
		if dst < top {
			top = dst
		}
		if dst > bottom {
			bottom = dst
		}
	}
	if bottom >= 0 {
		t.markDirty(top, bottom)
	}
}

// SetCursor records the cursor cell for the next Flush.
func (t *Term) SetCursor(col, row int) {
	t.want.col, t.want.row = col, row
}

// SetCursorShape records shape and color for the next Flush. Partial
// cell heights have no DECSCUSR encoding; the percentage is dropped.
func (t *Term) SetCursorShape(shape screen.Shape, cellPercent int, color screen.RGB) {
	t.want.shape = shape
	t.want.percent = cellPercent
	t.want.color = color
}

// SetCursorVisible records cursor visibility for the next Flush.
func (t *Term) SetCursorVisible(visible bool) {
	t.want.visible = visible
}

// SetTitle queues an OSC title update.
func (t *Term) SetTitle(title string) {
	t.pending = append(t.pending, fmt.Sprintf("\x1b]0;%s\x07", sanitizeTitle(title)))
}

// SetIcon queues an OSC icon-name update.
func (t *Term) SetIcon(icon string) {
	t.pending = append(t.pending, fmt.Sprintf("\x1b]1;%s\x07", sanitizeTitle(icon)))
}

// Bell queues an audible bell.
func (t *Term) Bell() {
	t.pending = append(t.pending, "\a")
}

// VisualBell queues a reverse-video flash.
func (t *Term) VisualBell() {
	t.pending = append(t.pending, ansiFlash)
}

// Flush writes all accumulated paint, then the cursor state, and
// flushes the underlying writer.
func (t *Term) Flush() error {
	for _, seq := range t.pending {
		if _, err := t.out.WriteString(seq); err != nil {
			return err
		}
	}
	t.pending = t.pending[:0]

	painted := false
	if t.allDirty || t.dirtyBottom >= t.dirtyTop {
		top, bottom := t.dirtyTop, t.dirtyBottom
		if t.allDirty {
			top, bottom = 0, t.rows-1
			if _, err := t.out.WriteString(ansiClearScreen); err != nil {
				return err
			}
		}
		if bottom > t.viewRows()-1 {
			bottom = t.viewRows() - 1
		}
		if top <= bottom {
			if err := t.paintRows(top, bottom); err != nil {
				return err
			}
			painted = true
		}
	}
	t.allDirty = false
	t.dirtyTop, t.dirtyBottom = t.rows, -1

	if err := t.syncCursor(painted); err != nil {
		return err
	}
	return t.out.Flush()
}

func (t *Term) paintRows(top, bottom int) error {
	if _, err := t.out.WriteString(ansiReset); err != nil {
		return err
	}
	current := screen.Attr{Foreground: screen.NoColor, Background: screen.NoColor, Special: screen.NoColor}
	viewCols := t.viewCols()
	for row := top; row <= bottom; row++ {
		var b strings.Builder
		fmt.Fprintf(&b, "\x1b[%d;1H", row+1)
		skipNext := false
		for col := 0; col < viewCols; col++ {
			c := t.cells[row*t.cols+col]
			if skipNext {
				// Covered by the wide glyph just written.
				skipNext = false
				continue
			}
			if c.attr != current {
				b.WriteString(sgr(c.attr))
				current = c.attr
			}
			width := runewidth.StringWidth(c.ch)
			if c.ch == "" || width < 1 || (width >= 2 && col == viewCols-1) {
				b.WriteByte(' ')
				continue
			}
			b.WriteString(c.ch)
			skipNext = width >= 2
		}
		if _, err := t.out.WriteString(b.String()); err != nil {
			return err
		}
	}
	return nil
}

func (t *Term) syncCursor(painted bool) error {
	want := t.want
	if want.row >= t.viewRows() || want.col >= t.viewCols() {
		// Cursor is outside the visible viewport.
		want.visible = false
		want.col, want.row = 0, 0
	}
	if painted || !t.sentValid || want.col != t.sent.col || want.row != t.sent.row {
		if _, err := fmt.Fprintf(t.out, "\x1b[%d;%dH", want.row+1, want.col+1); err != nil {
			return err
		}
	}
	if !t.sentValid || want.shape != t.sent.shape {
		if _, err := t.out.WriteString(decscusr(want.shape)); err != nil {
			return err
		}
	}
	if !t.sentValid || want.color != t.sent.color {
		if want.color.Valid() {
			r, g, b := want.color.Components()
			if _, err := fmt.Fprintf(t.out, "\x1b]12;#%02x%02x%02x\x07", r, g, b); err != nil {
				return err
			}
		}
	}
	if !t.sentValid || want.visible != t.sent.visible {
		seq := ansiShowCursor
		if !want.visible {
			seq = ansiHideCursor
		}
		if _, err := t.out.WriteString(seq); err != nil {
			return err
		}
	}
	t.sent = want
	t.sentValid = true
	return nil
}

func (t *Term) markDirty(top, bottom int) {
	if t.dirtyBottom < t.dirtyTop {
		t.dirtyTop, t.dirtyBottom = top, bottom
		return
	}
	if top < t.dirtyTop {
		t.dirtyTop = top
	}
	if bottom > t.dirtyBottom {
		t.dirtyBottom = bottom
	}
}

func (t *Term) clip(r screen.Rect) screen.Rect {
	if r.Col < 0 {
		r.Cols += r.Col
		r.Col = 0
	}
	if r.Row < 0 {
		r.Rows += r.Row
		r.Row = 0
	}
	if r.Col+r.Cols > t.cols {
		r.Cols = t.cols - r.Col
	}
	if r.Row+r.Rows > t.rows {
		r.Rows = t.rows - r.Row
	}
	if r.Cols < 0 {
		r.Cols = 0
	}
	if r.Rows < 0 {
		r.Rows = 0
	}
	return r
}

func decscusr(shape screen.Shape) string {
	switch shape {
	case screen.ShapeUnderline:
		return "\x1b[4 q"
	case screen.ShapeBar:
		return "\x1b[6 q"
	default:
		return "\x1b[2 q"
	}
}

func sgr(attr screen.Attr) string {
	codes := []string{"0"}
	if attr.Bold {
		codes = append(codes, "1")
	}
	if attr.Italic {
		codes = append(codes, "3")
	}
	if attr.Underline || attr.Undercurl {
		codes = append(codes, "4")
	}
	codes = append(codes, colorCode(true, attr.Foreground)...)
	codes = append(codes, colorCode(false, attr.Background)...)
	if (attr.Underline || attr.Undercurl) && attr.Special.Valid() {
		r, g, b := attr.Special.Components()
		codes = append(codes, "58", "2",
			strconv.Itoa(int(r)), strconv.Itoa(int(g)), strconv.Itoa(int(b)))
	}
	return "\x1b[" + strings.Join(codes, ";") + "m"
}

func colorCode(fg bool, c screen.RGB) []string {
	if !c.Valid() {
		if fg {
			return []string{"39"}
		}
		return []string{"49"}
	}
	r, g, b := c.Components()
	prefix := "48"
	if fg {
		prefix = "38"
	}
	return []string{prefix, "2",
		strconv.Itoa(int(r)), strconv.Itoa(int(g)), strconv.Itoa(int(b))}
}

func sanitizeTitle(title string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\x07', '\x1b':
			return -1
		default:
			return r
		}
	}, title)
}
