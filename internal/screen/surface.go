package screen

// Rect is a cell-addressed rectangle on a surface.
type Rect struct {
	Col  int
	Row  int
	Cols int
	Rows int
}

// Patch is an opaque region captured by CopyRegion; its concrete type
// belongs to the surface that produced it.
type Patch any

// Surface is the raster area the screen paints onto. Implementations
// clip every operation to their own bounds; the screen does not
// pre-clip. Paint calls accumulate until Flush.
type Surface interface {
	// Size returns the logical cell geometry of the surface.
	Size() (cols, rows int)
	// Resize reshapes the surface to the given cell geometry.
	Resize(cols, rows int)

	// FillRect paints r with the given background color.
	FillRect(r Rect, bg RGB)
	// PutText paints per-cell glyphs starting at (col, row) on a
	// single row. Empty cells are double-width continuations.
	PutText(col, row int, cells []string, attr Attr)
	// CopyRegion captures r; PasteRegion blits a captured patch with
	// its top-left at (col, row).
	CopyRegion(r Rect) Patch
	PasteRegion(p Patch, col, row int)

	SetCursor(col, row int)
	SetCursorShape(shape Shape, cellPercent int, color RGB)
	SetCursorVisible(visible bool)

	SetTitle(title string)
	SetIcon(icon string)
	Bell()
	VisualBell()

	// Flush commits all paint performed since the previous Flush.
	Flush() error
}
