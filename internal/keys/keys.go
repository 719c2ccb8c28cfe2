// Package keys translates raw terminal input bytes into the key
// notation the editor's input API expects ("<CR>", "<C-w>", "<Up>").
//
// The translation is lossy in one direction only: escape sequences the
// package does not recognize are dropped rather than forwarded, so a
// misdetected sequence can never leak half-parsed bytes into the
// editor as literal text.
package keys

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Translate converts a chunk of raw terminal bytes into editor key
// notation. A chunk is assumed to hold whole key presses; a lone
// trailing ESC is treated as the Escape key rather than held back.
func Translate(data []byte) string {
	var b strings.Builder
	for i := 0; i < len(data); {
		n := translateOne(&b, data[i:])
		i += n
	}
	return b.String()
}

// translateOne consumes one key press from data and returns the number
// of bytes consumed, always at least 1.
func translateOne(b *strings.Builder, data []byte) int {
	c := data[0]
	switch {
	case c == 0x1b:
		return translateEscape(b, data)
	case c == '<':
		b.WriteString("<lt>")
		return 1
	case c == 0x0d:
		b.WriteString("<CR>")
		return 1
	case c == 0x0a:
		b.WriteString("<NL>")
		return 1
	case c == 0x09:
		b.WriteString("<Tab>")
		return 1
	case c == 0x08, c == 0x7f:
		b.WriteString("<BS>")
		return 1
	case c == 0x00:
		b.WriteString("<Nul>")
		return 1
	case c < 0x1b:
		b.WriteString("<C-")
		b.WriteByte('a' + c - 1)
		b.WriteString(">")
		return 1
	case c == 0x1c:
		b.WriteString("<C-Bslash>")
		return 1
	case c == 0x1d:
		b.WriteString("<C-]>")
		return 1
	case c == 0x1e:
		b.WriteString("<C-^>")
		return 1
	case c == 0x1f:
		b.WriteString("<C-_>")
		return 1
	default:
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			return 1
		}
		b.WriteRune(r)
		return size
	}
}

// translateEscape consumes an ESC-introduced sequence. data[0] is ESC.
func translateEscape(b *strings.Builder, data []byte) int {
	if len(data) == 1 {
		b.WriteString("<Esc>")
		return 1
	}
	switch data[1] {
	case '[':
		return translateCSI(b, data)
	case 'O':
		return translateSS3(b, data)
	case 0x1b:
		b.WriteString("<Esc>")
		return 1
	default:
		// Alt sends ESC before the key in most terminals.
		if data[1] >= 0x20 && data[1] < 0x7f {
			b.WriteString("<M-")
			if data[1] == '<' {
				b.WriteString("lt")
			} else {
				b.WriteByte(data[1])
			}
			b.WriteString(">")
			return 2
		}
		b.WriteString("<Esc>")
		return 1
	}
}

// translateCSI consumes "ESC [ params final". Unknown finals are
// swallowed so stray reports (cursor position, focus events) vanish
// instead of typing themselves into the buffer.
func translateCSI(b *strings.Builder, data []byte) int {
	i := 2
	start := i
	for i < len(data) && !isCSIFinal(data[i]) {
		i++
	}
	if i >= len(data) {
		// Truncated sequence at the end of the chunk.
		return len(data)
	}
	final := data[i]
	params := parseParams(string(data[start:i]))

	name := ""
	switch final {
	case 'A':
		name = "Up"
	case 'B':
		name = "Down"
	case 'C':
		name = "Right"
	case 'D':
		name = "Left"
	case 'H':
		name = "Home"
	case 'F':
		name = "End"
	case 'Z':
		b.WriteString("<S-Tab>")
		return i + 1
	case '~':
		name = tildeKey(paramAt(params, 0))
	}
	if name == "" {
		return i + 1
	}
	b.WriteString("<")
	b.WriteString(modifierPrefix(paramAt(params, 1)))
	b.WriteString(name)
	b.WriteString(">")
	return i + 1
}

// translateSS3 consumes "ESC O x", the application-mode variant of
// cursor and function keys.
func translateSS3(b *strings.Builder, data []byte) int {
	if len(data) < 3 {
		return len(data)
	}
	name := ""
	switch data[2] {
	case 'A':
		name = "Up"
	case 'B':
		name = "Down"
	case 'C':
		name = "Right"
	case 'D':
		name = "Left"
	case 'H':
		name = "Home"
	case 'F':
		name = "End"
	case 'P':
		name = "F1"
	case 'Q':
		name = "F2"
	case 'R':
		name = "F3"
	case 'S':
		name = "F4"
	}
	if name != "" {
		b.WriteString("<")
		b.WriteString(name)
		b.WriteString(">")
	}
	return 3
}

// tildeKey maps the numeric code of a "CSI n ~" sequence to a key name.
func tildeKey(n int) string {
	switch n {
	case 1, 7:
		return "Home"
	case 2:
		return "Insert"
	case 3:
		return "Del"
	case 4, 8:
		return "End"
	case 5:
		return "PageUp"
	case 6:
		return "PageDown"
	case 11, 12, 13, 14, 15:
		return "F" + strconv.Itoa(n-10)
	case 17, 18, 19, 20, 21:
		return "F" + strconv.Itoa(n-11)
	case 23, 24:
		return "F" + strconv.Itoa(n-12)
	}
	return ""
}

// modifierPrefix renders the xterm modifier parameter (value-1 is a
// bitmask of shift=1, alt=2, ctrl=4) as notation prefixes.
func modifierPrefix(m int) string {
	if m < 2 {
		return ""
	}
	mask := m - 1
	var p strings.Builder
	if mask&4 != 0 {
		p.WriteString("C-")
	}
	if mask&2 != 0 {
		p.WriteString("M-")
	}
	if mask&1 != 0 {
		p.WriteString("S-")
	}
	return p.String()
}

func parseParams(s string) []int {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			n = 0
		}
		out = append(out, n)
	}
	return out
}

func paramAt(params []int, i int) int {
	if i < len(params) {
		return params[i]
	}
	return 0
}

func isCSIFinal(c byte) bool {
	return c >= 0x40 && c <= 0x7e
}
