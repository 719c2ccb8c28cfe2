package redraw

import (
	"testing"

	"github.com/damianesteban/veonim/internal/screen"
)

func TestBatchEndToEnd(t *testing.T) {
	r, surf := newTestRouter(10, 5)

	r.Apply([]any{
		[]any{"update_fg", []any{float64(0x00ff00)}},
		[]any{"cursor_goto", []any{int64(2), int64(3)}},
		[]any{"put", []any{"a"}, []any{"b"}, []any{"c"}},
	})

	if got := surf.text(2); got != "   abc    " {
		t.Fatalf("row 2: got %q want %q", got, "   abc    ")
	}
	if surf.cursorRow != 2 || surf.cursorCol != 6 {
		t.Fatalf("committed cursor: got (%d,%d) want (2,6)", surf.cursorRow, surf.cursorCol)
	}
	if surf.flushes != 1 {
		t.Fatalf("flushes: got %d want 1", surf.flushes)
	}
	if got := surf.fg(2, 3); got != 0x00ff00 {
		t.Fatalf("painted fg: got %06x want 00ff00", got)
	}
}

func TestPutTuplesMergeIntoOneRun(t *testing.T) {
	r, surf := newTestRouter(10, 5)

	r.Apply([]any{
		[]any{"put", []any{"x"}, []any{"y"}, []any{"z"}},
	})

	if surf.putCalls != 1 {
		t.Fatalf("put calls: got %d want 1", surf.putCalls)
	}
	if got := surf.text(0); got != "xyz       " {
		t.Fatalf("row 0: got %q", got)
	}
}

func TestMalformedEntryDoesNotPoisonBatch(t *testing.T) {
	r, surf := newTestRouter(10, 5)

	r.Apply([]any{
		[]any{"cursor_goto", []any{"not-a-number", int64(0)}},
		42,
		[]any{"put", []any{"k"}},
	})

	if got := surf.text(0); got != "k         " {
		t.Fatalf("row 0: got %q, later entries must still apply", got)
	}
	if surf.flushes != 1 {
		t.Fatalf("flushes: got %d want 1", surf.flushes)
	}
}

func TestUnknownEventIgnored(t *testing.T) {
	r, surf := newTestRouter(10, 5)

	r.Apply([]any{
		[]any{"win_viewport", []any{int64(1), int64(2)}},
		[]any{"put", []any{"q"}},
	})

	if got := surf.text(0); got != "q         " {
		t.Fatalf("row 0: got %q", got)
	}
}

func TestHighlightSetFromJSONShapes(t *testing.T) {
	r, surf := newTestRouter(10, 5)

	r.Apply([]any{
		[]any{"highlight_set", []any{map[string]any{
			"foreground": float64(0x112233),
			"reverse":    true,
		}}},
		[]any{"put", []any{"w"}},
	})

	// Reverse swaps the resolved pair, so the explicit foreground
	// lands on the background side.
	if got := surf.bg(0, 0); got != 0x112233 {
		t.Fatalf("bg: got %06x want 112233", got)
	}
	if got := surf.fg(0, 0); got != screen.DefaultBackground {
		t.Fatalf("fg: got %06x want %06x", got, screen.DefaultBackground)
	}
}

func TestModeEventsFromMsgpackShapes(t *testing.T) {
	r, surf := newTestRouter(10, 5)

	r.Apply([]any{
		[]any{"mode_info_set", []any{true, []any{
			map[any]any{"name": "normal", "cursor_shape": "block"},
			map[any]any{"name": "insert", "cursor_shape": "vertical", "cell_percentage": int64(25)},
		}}},
		[]any{"mode_change", []any{"insert", int64(1)}},
	})

	if surf.shape != screen.ShapeBar || surf.shapePercent != 25 {
		t.Fatalf("shape: got %v/%d want bar/25", surf.shape, surf.shapePercent)
	}
}

func TestScrollRegionWithinBatch(t *testing.T) {
	r, surf := newTestRouter(6, 4)

	r.Apply([]any{
		[]any{"cursor_goto", []any{int64(0), int64(0)}},
		[]any{"put", []any{"a"}, []any{"a"}, []any{"a"}, []any{"a"}, []any{"a"}, []any{"a"}},
		[]any{"cursor_goto", []any{int64(1), int64(0)}},
		[]any{"put", []any{"b"}, []any{"b"}, []any{"b"}, []any{"b"}, []any{"b"}, []any{"b"}},
		[]any{"set_scroll_region", []any{int64(0), int64(1), int64(0), int64(5)}},
		[]any{"scroll", []any{int64(1)}},
	})

	if got := surf.text(0); got != "bbbbbb" {
		t.Fatalf("row 0: got %q want %q", got, "bbbbbb")
	}
	if got := surf.text(1); got != "      " {
		t.Fatalf("row 1: got %q want cleared", got)
	}
}

func TestResizeAndClearEvents(t *testing.T) {
	r, surf := newTestRouter(6, 4)

	r.Apply([]any{
		[]any{"put", []any{"m"}},
		[]any{"resize", []any{int64(8), int64(6)}},
		[]any{"clear", []any{}},
	})

	if surf.cols != 8 || surf.rows != 6 {
		t.Fatalf("geometry: got %dx%d want 8x6", surf.cols, surf.rows)
	}
	if got := surf.text(0); got != "        " {
		t.Fatalf("row 0 after clear: got %q", got)
	}
}

func TestIntCoercions(t *testing.T) {
	for _, v := range []any{int(7), int64(7), uint64(7), float64(7)} {
		n, ok := asInt(v)
		if !ok || n != 7 {
			t.Fatalf("asInt(%T): got %d,%v", v, n, ok)
		}
	}
	if _, ok := asInt("7"); ok {
		t.Fatalf("asInt should reject strings")
	}
	if asColor(int64(-1)) != screen.NoColor {
		t.Fatalf("negative colors must map to the sentinel")
	}
}

func newTestRouter(cols, rows int) (*Router, *recSurface) {
	surf := &recSurface{}
	surf.Resize(cols, rows)
	return NewRouter(screen.New(surf, nil), nil), surf
}

// recSurface is a minimal in-memory Surface for router tests.
type recSurface struct {
	cols, rows int
	cells      []recCell

	putCalls int
	flushes  int

	cursorCol    int
	cursorRow    int
	shape        screen.Shape
	shapePercent int
}

type recCell struct {
	ch string
	fg screen.RGB
	bg screen.RGB
}

type recPatch struct {
	r     screen.Rect
	cells []recCell
}

func (s *recSurface) Size() (int, int) { return s.cols, s.rows }

func (s *recSurface) Resize(cols, rows int) {
	s.cols, s.rows = cols, rows
	s.cells = make([]recCell, cols*rows)
}

func (s *recSurface) FillRect(r screen.Rect, bg screen.RGB) {
	for row := max(r.Row, 0); row < min(r.Row+r.Rows, s.rows); row++ {
		for col := max(r.Col, 0); col < min(r.Col+r.Cols, s.cols); col++ {
			s.cells[row*s.cols+col] = recCell{bg: bg}
		}
	}
}

func (s *recSurface) PutText(col, row int, cells []string, attr screen.Attr) {
	s.putCalls++
	if row < 0 || row >= s.rows {
		return
	}
	for i, ch := range cells {
		c := col + i
		if c < 0 || c >= s.cols {
			continue
		}
		s.cells[row*s.cols+c] = recCell{ch: ch, fg: attr.Foreground, bg: attr.Background}
	}
}

func (s *recSurface) CopyRegion(r screen.Rect) screen.Patch {
	p := &recPatch{r: r, cells: make([]recCell, r.Cols*r.Rows)}
	for row := 0; row < r.Rows; row++ {
		copy(p.cells[row*r.Cols:(row+1)*r.Cols], s.cells[(r.Row+row)*s.cols+r.Col:])
	}
	return p
}

func (s *recSurface) PasteRegion(p screen.Patch, col, row int) {
	patch := p.(*recPatch)
	for pr := 0; pr < patch.r.Rows; pr++ {
		for pc := 0; pc < patch.r.Cols; pc++ {
			dr, dc := row+pr, col+pc
			if dr < 0 || dr >= s.rows || dc < 0 || dc >= s.cols {
				continue
			}
			s.cells[dr*s.cols+dc] = patch.cells[pr*patch.r.Cols+pc]
		}
	}
}

func (s *recSurface) SetCursor(col, row int) { s.cursorCol, s.cursorRow = col, row }

func (s *recSurface) SetCursorShape(shape screen.Shape, cellPercent int, color screen.RGB) {
	s.shape, s.shapePercent = shape, cellPercent
}

func (s *recSurface) SetCursorVisible(bool) {}
func (s *recSurface) SetTitle(string)       {}
func (s *recSurface) SetIcon(string)        {}
func (s *recSurface) Bell()                 {}
func (s *recSurface) VisualBell()           {}
func (s *recSurface) Flush() error          { s.flushes++; return nil }

func (s *recSurface) text(row int) string {
	out := ""
	for col := 0; col < s.cols; col++ {
		ch := s.cells[row*s.cols+col].ch
		if ch == "" {
			ch = " "
		}
		out += ch
	}
	return out
}

func (s *recSurface) fg(row, col int) screen.RGB { return s.cells[row*s.cols+col].fg }
func (s *recSurface) bg(row, col int) screen.RGB { return s.cells[row*s.cols+col].bg }
