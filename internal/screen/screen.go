// Package screen holds the grid-rendering state machine for the
// editor's cell-based redraw protocol: theme palette, cursor modes,
// logical cursor, and the one-shot scroll region, painted onto a
// Surface.
package screen

// Region is an inclusive scroll region in cell coordinates.
type Region struct {
	Top    int
	Bottom int
	Left   int
	Right  int
}

// ResolveFunc requests the colors of a highlight group. The done
// callback must be invoked exactly once, on the session loop, when the
// lookup completes; it may run after the caller has returned.
type ResolveFunc func(id int, done func(Highlight))

// Screen interprets redraw operations against a Surface. It is not
// safe for concurrent use; a single session loop owns it.
type Screen struct {
	surf Surface

	cols int
	rows int

	palette *Palette
	modes   *ModeSet

	cursorRow int
	cursorCol int

	activeMode *Mode
	wantMode   string

	region *Region

	busy  bool
	mouse bool
	title string

	resolve ResolveFunc
}

// New returns a screen painting onto surf. resolve may be nil when no
// highlight resolution is available; modes then register without
// colors.
func New(surf Surface, resolve ResolveFunc) *Screen {
	cols, rows := surf.Size()
	return &Screen{
		surf:    surf,
		cols:    cols,
		rows:    rows,
		palette: NewPalette(),
		modes:   newModeSet(),
		resolve: resolve,
	}
}

// Size returns the current grid geometry.
func (s *Screen) Size() (cols, rows int) {
	return s.cols, s.rows
}

// Cursor returns the logical cursor position.
func (s *Screen) Cursor() (row, col int) {
	return s.cursorRow, s.cursorCol
}

// SetDefaultForeground applies an update_fg command.
func (s *Screen) SetDefaultForeground(c RGB) {
	s.palette.SetForeground(c)
}

// SetDefaultBackground applies an update_bg command.
func (s *Screen) SetDefaultBackground(c RGB) {
	s.palette.SetBackground(c)
}

// SetDefaultSpecial applies an update_sp command.
func (s *Screen) SetDefaultSpecial(c RGB) {
	s.palette.SetSpecial(c)
}

// SetHighlight applies a highlight_set command.
func (s *Screen) SetHighlight(args HighlightArgs) {
	s.palette.SetHighlight(args)
}

// ModeInfoSet registers cursor mode descriptors. Modes referencing a
// highlight group stay unactivatable until their color resolution
// completes.
func (s *Screen) ModeInfoSet(infos []ModeInfo) {
	resolve := s.resolve
	if resolve != nil {
		resolve = func(id int, done func(Highlight)) {
			s.resolve(id, func(hl Highlight) {
				hl.Background = hl.Background.Or(s.palette.Foreground())
				done(hl)
				s.refreshActiveMode()
			})
		}
	}
	s.modes.update(infos, resolve)
}

// ModeChange selects the cursor mode by name. An unknown name, or one
// whose resolution is still pending, keeps the previous mode active.
func (s *Screen) ModeChange(name string) {
	s.wantMode = name
	if mode, ok := s.modes.lookup(name); ok {
		s.activeMode = mode
	}
}

// refreshActiveMode re-checks the wanted mode after a resolution
// completes, so a mode_change that raced the lookup takes effect.
func (s *Screen) refreshActiveMode() {
	mode, ok := s.modes.lookup(s.wantMode)
	if !ok || mode == s.activeMode {
		return
	}
	s.activeMode = mode
	s.commitCursorShape()
	_ = s.surf.Flush()
}

// GotoCursor applies a cursor_goto command. The position is taken as
// sent; the editor owns its validity.
func (s *Screen) GotoCursor(row, col int) {
	s.cursorRow = row
	s.cursorCol = col
}

// PutText paints one merged run of cells at the cursor, consuming the
// pending attribute set. The cursor advances one column per cell and
// wraps to the next row past the right edge; wrapping never scrolls.
func (s *Screen) PutText(cells []string) {
	attr := s.palette.TakePending()
	if len(cells) == 0 {
		return
	}
	s.surf.FillRect(Rect{Col: s.cursorCol, Row: s.cursorRow, Cols: len(cells), Rows: 1}, attr.Background)

	start := 0
	segCol := s.cursorCol
	for i := range cells {
		if s.cursorCol >= s.cols {
			if i > start {
				s.surf.PutText(segCol, s.cursorRow, cells[start:i], attr)
			}
			s.cursorCol = 0
			s.cursorRow++
			start = i
			segCol = 0
		}
		s.cursorCol++
	}
	if start < len(cells) {
		s.surf.PutText(segCol, s.cursorRow, cells[start:], attr)
	}
}

// SetScrollRegion saves the region for the next scroll command.
func (s *Screen) SetScrollRegion(top, bottom, left, right int) {
	s.region = &Region{Top: top, Bottom: bottom, Left: left, Right: right}
}

// Scroll shifts the saved region, or the whole grid when none is
// saved, by amount rows. Positive amounts move content up. The saved
// region is consumed either way.
func (s *Screen) Scroll(amount int) {
	region := s.region
	s.region = nil
	if region == nil {
		region = &Region{Top: 0, Bottom: s.rows - 1, Left: 0, Right: s.cols - 1}
	}
	if amount == 0 {
		return
	}

	width := region.Right - region.Left + 1
	height := region.Bottom - region.Top + 1
	if width <= 0 || height <= 0 {
		return
	}
	bg := s.palette.Background()

	n := amount
	if n < 0 {
		n = -n
	}
	if n >= height {
		s.surf.FillRect(Rect{Col: region.Left, Row: region.Top, Cols: width, Rows: height}, bg)
		return
	}

	if amount > 0 {
		patch := s.surf.CopyRegion(Rect{Col: region.Left, Row: region.Top + n, Cols: width, Rows: height - n})
		s.surf.PasteRegion(patch, region.Left, region.Top)
		s.surf.FillRect(Rect{Col: region.Left, Row: region.Bottom - n + 1, Cols: width, Rows: n}, bg)
	} else {
		patch := s.surf.CopyRegion(Rect{Col: region.Left, Row: region.Top, Cols: width, Rows: height - n})
		s.surf.PasteRegion(patch, region.Left, region.Top+n)
		s.surf.FillRect(Rect{Col: region.Left, Row: region.Top, Cols: width, Rows: n}, bg)
	}
}

// Clear fills the whole grid with the theme background.
func (s *Screen) Clear() {
	s.surf.FillRect(Rect{Col: 0, Row: 0, Cols: s.cols, Rows: s.rows}, s.palette.Background())
}

// EOLClear fills from the cursor to the end of its row with the theme
// background.
func (s *Screen) EOLClear() {
	if s.cursorCol >= s.cols {
		return
	}
	s.surf.FillRect(Rect{Col: s.cursorCol, Row: s.cursorRow, Cols: s.cols - s.cursorCol, Rows: 1}, s.palette.Background())
}

// Resize reshapes the grid and clamps the cursor into bounds. Any
// saved scroll region is dropped.
func (s *Screen) Resize(cols, rows int) {
	if cols <= 0 || rows <= 0 {
		return
	}
	s.cols = cols
	s.rows = rows
	s.region = nil
	s.surf.Resize(cols, rows)
	if s.cursorCol >= cols {
		s.cursorCol = cols - 1
	}
	if s.cursorCol < 0 {
		s.cursorCol = 0
	}
	if s.cursorRow >= rows {
		s.cursorRow = rows - 1
	}
	if s.cursorRow < 0 {
		s.cursorRow = 0
	}
}

// BusyStart hides the cursor visual.
func (s *Screen) BusyStart() {
	s.busy = true
	s.surf.SetCursorVisible(false)
}

// BusyStop restores the cursor visual.
func (s *Screen) BusyStop() {
	s.busy = false
	s.surf.SetCursorVisible(true)
}

// MouseOn records that the editor wants mouse events.
func (s *Screen) MouseOn() { s.mouse = true }

// MouseOff records that the editor stopped wanting mouse events.
func (s *Screen) MouseOff() { s.mouse = false }

// MouseEnabled reports the editor's mouse preference.
func (s *Screen) MouseEnabled() bool { return s.mouse }

// SetTitle forwards a set_title command.
func (s *Screen) SetTitle(title string) {
	s.title = title
	s.surf.SetTitle(title)
}

// SetIcon forwards a set_icon command.
func (s *Screen) SetIcon(icon string) {
	s.surf.SetIcon(icon)
}

// Bell forwards a bell command.
func (s *Screen) Bell() { s.surf.Bell() }

// VisualBell forwards a visual_bell command.
func (s *Screen) VisualBell() { s.surf.VisualBell() }

// EndBatch runs the post-batch step: drop any unconsumed scroll
// region, commit the cursor visual once, and flush the surface.
func (s *Screen) EndBatch() {
	s.region = nil
	s.commitCursor()
	_ = s.surf.Flush()
}

func (s *Screen) commitCursor() {
	s.surf.SetCursor(s.cursorCol, s.cursorRow)
	s.commitCursorShape()
}

func (s *Screen) commitCursorShape() {
	shape := ShapeBlock
	percent := 0
	color := NoColor
	if s.activeMode != nil {
		shape = s.activeMode.Shape
		percent = s.activeMode.CellPercent
		color = s.activeMode.Color
	}
	s.surf.SetCursorShape(shape, percent, color.Or(s.palette.Foreground()))
}
