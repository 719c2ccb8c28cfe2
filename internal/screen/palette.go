package screen

// Attr is one resolved attribute set, ready for painting. Reverse has
// already been applied by swapping foreground and background.
type Attr struct {
	Foreground RGB
	Background RGB
	Special    RGB
	Bold       bool
	Italic     bool
	Underline  bool
	Undercurl  bool
}

// HighlightArgs carries the raw fields of a highlight_set command.
// Color fields are NoColor when the command omits them.
type HighlightArgs struct {
	Foreground RGB
	Background RGB
	Special    RGB
	Reverse    bool
	Bold       bool
	Italic     bool
	Underline  bool
	Undercurl  bool
}

// Palette tracks the theme default colors and the single pending
// attribute set. The pending set is consumed by the next text run and
// then discarded.
type Palette struct {
	fg RGB
	bg RGB
	sp RGB

	pending *Attr
}

// NewPalette returns a palette with the built-in theme defaults.
func NewPalette() *Palette {
	return &Palette{
		fg: DefaultForeground,
		bg: DefaultBackground,
		sp: DefaultSpecial,
	}
}

// SetForeground updates the theme foreground unless c is the no-change
// sentinel.
func (p *Palette) SetForeground(c RGB) {
	if c.Valid() {
		p.fg = c
	}
}

// SetBackground updates the theme background unless c is the no-change
// sentinel.
func (p *Palette) SetBackground(c RGB) {
	if c.Valid() {
		p.bg = c
	}
}

// SetSpecial updates the theme special color unless c is the no-change
// sentinel.
func (p *Palette) SetSpecial(c RGB) {
	if c.Valid() {
		p.sp = c
	}
}

// Foreground returns the current theme foreground.
func (p *Palette) Foreground() RGB { return p.fg }

// Background returns the current theme background.
func (p *Palette) Background() RGB { return p.bg }

// Special returns the current theme special color.
func (p *Palette) Special() RGB { return p.sp }

// SetHighlight resolves args against the theme defaults and stores the
// result as the pending attribute set. An explicit color wins over the
// theme default; reverse swaps the two resolved colors.
func (p *Palette) SetHighlight(args HighlightArgs) {
	attr := Attr{
		Foreground: args.Foreground.Or(p.fg),
		Background: args.Background.Or(p.bg),
		Special:    args.Special,
		Bold:       args.Bold,
		Italic:     args.Italic,
		Underline:  args.Underline,
		Undercurl:  args.Undercurl,
	}
	if args.Reverse {
		attr.Foreground, attr.Background = attr.Background, attr.Foreground
	}
	p.pending = &attr
}

// TakePending returns the pending attribute set, or the plain theme
// attributes when none is pending, and clears it either way.
func (p *Palette) TakePending() Attr {
	if p.pending != nil {
		attr := *p.pending
		p.pending = nil
		return attr
	}
	return Attr{Foreground: p.fg, Background: p.bg, Special: NoColor}
}
