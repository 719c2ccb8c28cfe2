// Package pix rasterizes the screen into an RGBA framebuffer. It
// serves headless screenshots and plain-pixel embedders; glyphs are
// drawn with golang.org/x/image/font faces.
package pix

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/damianesteban/veonim/internal/screen"
)

// Options configures a Canvas. The zero value renders with the
// built-in 7x13 bitmap face and no margin.
type Options struct {
	// Face renders regular text. Nil selects basicfont.Face7x13.
	Face font.Face
	// BoldFace and ItalicFace render styled text; nil falls back to
	// Face.
	BoldFace   font.Face
	ItalicFace font.Face
	// Margin is the pixel border around the cell grid.
	Margin int
}

// LoadFace parses TTF or OTF bytes into a face at the given point size
// and DPI.
func LoadFace(data []byte, size, dpi float64) (font.Face, error) {
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     dpi,
		Hinting: font.HintingFull,
	})
}

// Canvas is a screen.Surface backed by an in-memory pixel buffer.
// Paint operations may run on the session loop while Frame or WritePNG
// run elsewhere; a mutex keeps the buffer consistent.
type Canvas struct {
	mu sync.Mutex

	cols int
	rows int

	cellW  int
	cellH  int
	ascent int
	margin int

	face       font.Face
	boldFace   font.Face
	italicFace font.Face

	img *image.RGBA

	cursorCol     int
	cursorRow     int
	cursorVisible bool
	shape         screen.Shape
	shapePercent  int
	cursorColor   screen.RGB

	title string
	icon  string
	bells int

	generation uint64
}

// NewCanvas returns a canvas of the given cell geometry.
func NewCanvas(cols, rows int, opts Options) *Canvas {
	face := opts.Face
	if face == nil {
		face = basicfont.Face7x13
	}
	bold := opts.BoldFace
	if bold == nil {
		bold = face
	}
	italic := opts.ItalicFace
	if italic == nil {
		italic = face
	}

	c := &Canvas{
		face:          face,
		boldFace:      bold,
		italicFace:    italic,
		margin:        opts.Margin,
		cursorVisible: true,
		cursorColor:   screen.NoColor,
	}
	c.cellW, c.cellH, c.ascent = faceCell(face)
	c.resize(cols, rows)
	return c
}

func faceCell(face font.Face) (w, h, ascent int) {
	m := face.Metrics()
	adv, ok := face.GlyphAdvance('M')
	if !ok || adv <= 0 {
		adv = m.Height
	}
	w = adv.Ceil()
	h = (m.Ascent + m.Descent).Ceil()
	ascent = m.Ascent.Ceil()
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h, ascent
}

// Size returns the cell geometry.
func (c *Canvas) Size() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cols, c.rows
}

// PixelSize returns the framebuffer dimensions in pixels.
func (c *Canvas) PixelSize() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.img.Bounds()
	return b.Dx(), b.Dy()
}

// Resize reshapes the framebuffer, keeping the overlapping region.
func (c *Canvas) Resize(cols, rows int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resize(cols, rows)
}

func (c *Canvas) resize(cols, rows int) {
	if cols <= 0 || rows <= 0 {
		return
	}
	next := image.NewRGBA(image.Rect(0, 0,
		cols*c.cellW+2*c.margin, rows*c.cellH+2*c.margin))
	draw.Draw(next, next.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	if c.img != nil {
		draw.Draw(next, c.img.Bounds(), c.img, image.Point{}, draw.Src)
	}
	c.cols, c.rows, c.img = cols, rows, next
}

func (c *Canvas) cellRect(col, row, cols, rows int) image.Rectangle {
	return image.Rect(
		c.margin+col*c.cellW,
		c.margin+row*c.cellH,
		c.margin+(col+cols)*c.cellW,
		c.margin+(row+rows)*c.cellH,
	).Intersect(c.img.Bounds())
}

// FillRect paints r with bg.
func (c *Canvas) FillRect(r screen.Rect, bg screen.RGB) {
	c.mu.Lock()
	defer c.mu.Unlock()
	draw.Draw(c.img, c.cellRect(r.Col, r.Row, r.Cols, r.Rows),
		image.NewUniform(rgba(bg)), image.Point{}, draw.Src)
}

// PutText paints one row of glyphs, background first. Empty glyphs are
// wide-character continuations already covered by their predecessor.
func (c *Canvas) PutText(col, row int, cells []string, attr screen.Attr) {
	c.mu.Lock()
	defer c.mu.Unlock()

	draw.Draw(c.img, c.cellRect(col, row, len(cells), 1),
		image.NewUniform(rgba(attr.Background)), image.Point{}, draw.Src)

	face := c.face
	if attr.Bold {
		face = c.boldFace
	} else if attr.Italic {
		face = c.italicFace
	}
	fg := image.NewUniform(rgba(attr.Foreground))

	d := font.Drawer{Dst: c.img, Src: fg, Face: face}
	baseline := c.margin + row*c.cellH + c.ascent
	for i, ch := range cells {
		if ch == "" {
			continue
		}
		d.Dot = fixed.P(c.margin+(col+i)*c.cellW, baseline)
		d.DrawString(ch)
	}

	if attr.Underline || attr.Undercurl {
		lineColor := attr.Special
		if !lineColor.Valid() {
			lineColor = attr.Foreground
		}
		y := c.margin + (row+1)*c.cellH - 2
		draw.Draw(c.img,
			image.Rect(c.margin+col*c.cellW, y, c.margin+(col+len(cells))*c.cellW, y+1).Intersect(c.img.Bounds()),
			image.NewUniform(rgba(lineColor)), image.Point{}, draw.Src)
	}
}

type pixPatch struct {
	img *image.RGBA
}

// CopyRegion captures the pixels under r.
func (c *Canvas) CopyRegion(r screen.Rect) screen.Patch {
	c.mu.Lock()
	defer c.mu.Unlock()
	src := c.cellRect(r.Col, r.Row, r.Cols, r.Rows)
	dup := image.NewRGBA(image.Rect(0, 0, src.Dx(), src.Dy()))
	draw.Draw(dup, dup.Bounds(), c.img, src.Min, draw.Src)
	return &pixPatch{img: dup}
}

// PasteRegion blits a captured patch with its top-left at (col, row).
func (c *Canvas) PasteRegion(p screen.Patch, col, row int) {
	patch, ok := p.(*pixPatch)
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	at := image.Pt(c.margin+col*c.cellW, c.margin+row*c.cellH)
	dst := image.Rectangle{Min: at, Max: at.Add(patch.img.Bounds().Size())}.Intersect(c.img.Bounds())
	draw.Draw(c.img, dst, patch.img, image.Point{}, draw.Src)
}

// SetCursor records the cursor cell.
func (c *Canvas) SetCursor(col, row int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursorCol, c.cursorRow = col, row
}

// SetCursorShape records the cursor shape, fill extent, and color.
func (c *Canvas) SetCursorShape(shape screen.Shape, cellPercent int, col screen.RGB) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shape, c.shapePercent, c.cursorColor = shape, cellPercent, col
}

// SetCursorVisible records cursor visibility.
func (c *Canvas) SetCursorVisible(visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursorVisible = visible
}

// SetTitle records the window title for embedders.
func (c *Canvas) SetTitle(title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.title = title
}

// SetIcon records the icon name for embedders.
func (c *Canvas) SetIcon(icon string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.icon = icon
}

// Title returns the last recorded title.
func (c *Canvas) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.title
}

// Bell counts audible bells; pixel output has nowhere to ring them.
func (c *Canvas) Bell() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bells++
}

// VisualBell counts as Bell.
func (c *Canvas) VisualBell() { c.Bell() }

// Flush bumps the frame generation so pollers know new paint landed.
func (c *Canvas) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	return nil
}

// Generation returns the number of completed flushes.
func (c *Canvas) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Frame returns a copy of the framebuffer with the cursor overlay
// drawn in.
func (c *Canvas) Frame() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := image.NewRGBA(c.img.Bounds())
	draw.Draw(out, out.Bounds(), c.img, image.Point{}, draw.Src)
	if !c.cursorVisible {
		return out
	}

	cell := c.cellRect(c.cursorCol, c.cursorRow, 1, 1)
	if cell.Empty() {
		return out
	}
	overlay := cell
	switch c.shape {
	case screen.ShapeUnderline:
		h := c.extent(c.cellH, 20)
		overlay.Min.Y = overlay.Max.Y - h
	case screen.ShapeBar:
		w := c.extent(c.cellW, 25)
		overlay.Max.X = overlay.Min.X + w
	}

	cur := rgba(c.cursorColor.Or(screen.DefaultForeground))
	cur.A = 0xb0
	draw.Draw(out, overlay, image.NewUniform(cur), image.Point{}, draw.Over)
	return out
}

// extent converts a cell percentage into pixels, at least one.
func (c *Canvas) extent(span, fallback int) int {
	percent := c.shapePercent
	if percent <= 0 || percent > 100 {
		percent = fallback
	}
	px := span * percent / 100
	if px < 1 {
		px = 1
	}
	return px
}

// WritePNG encodes the current frame, cursor included, as PNG.
func (c *Canvas) WritePNG(w io.Writer) error {
	return png.Encode(w, c.Frame())
}

func rgba(c screen.RGB) color.NRGBA {
	if !c.Valid() {
		return color.NRGBA{A: 0xff}
	}
	r, g, b := c.Components()
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}
}
