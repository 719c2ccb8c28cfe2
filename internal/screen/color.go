package screen

// RGB is a 24-bit packed color as carried by the redraw protocol.
// Negative values mean "no color"; the protocol uses -1 as the
// explicit no-change sentinel.
type RGB int32

// NoColor is the protocol sentinel for an absent or unchanged color.
const NoColor RGB = -1

// Default theme colors used until the editor announces its own.
const (
	DefaultForeground RGB = 0xffffff
	DefaultBackground RGB = 0x000000
	DefaultSpecial    RGB = 0xff0000
)

// Valid reports whether c carries an actual color value.
func (c RGB) Valid() bool {
	return c >= 0
}

// Components splits c into 8-bit red, green and blue values.
func (c RGB) Components() (r, g, b uint8) {
	v := uint32(c) & 0xffffff
	return uint8(v >> 16), uint8(v >> 8), uint8(v)
}

// Or returns c when valid, otherwise fallback.
func (c RGB) Or(fallback RGB) RGB {
	if c.Valid() {
		return c
	}
	return fallback
}

// Highlight is the fg/bg pair a highlight-group resolution yields.
// Either side may be NoColor when the group does not define it.
type Highlight struct {
	Foreground RGB
	Background RGB
}
