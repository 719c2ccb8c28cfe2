package screen

// Shape is a cursor shape.
type Shape int

// Cursor shapes in mode descriptors.
const (
	ShapeBlock Shape = iota
	ShapeUnderline
	ShapeBar
)

// String returns the wire name of the shape.
func (s Shape) String() string {
	switch s {
	case ShapeUnderline:
		return "horizontal"
	case ShapeBar:
		return "vertical"
	default:
		return "block"
	}
}

func shapeFromName(name string) Shape {
	switch name {
	case "horizontal":
		return ShapeUnderline
	case "vertical":
		return ShapeBar
	default:
		return ShapeBlock
	}
}

// ModeInfo is one descriptor from a mode_info_set command.
type ModeInfo struct {
	Name        string
	CursorShape string
	CellPercent int
	// AttrID references the highlight group whose background colors
	// the cursor in this mode. Zero means no group.
	AttrID int
}

// Mode is a registered editor mode. A mode becomes activatable once its
// color resolution has completed; until then mode_change keeps the
// previously active mode.
type Mode struct {
	Name        string
	Shape       Shape
	CellPercent int
	Color       RGB

	resolved bool
}

// Resolved reports whether the mode's color lookup has completed.
func (m *Mode) Resolved() bool { return m.resolved }

// ModeSet stores cursor mode definitions keyed by name.
type ModeSet struct {
	modes map[string]*Mode
}

func newModeSet() *ModeSet {
	return &ModeSet{modes: make(map[string]*Mode)}
}

// update registers or replaces the given descriptors. For each
// descriptor referencing a highlight group, resolve is invoked with the
// group id and a completion callback; the callback may run at any later
// point and marks the entry resolved. Descriptors without a group
// resolve immediately with no color.
func (ms *ModeSet) update(infos []ModeInfo, resolve func(id int, done func(Highlight))) {
	for _, info := range infos {
		if info.Name == "" {
			continue
		}
		mode := &Mode{
			Name:        info.Name,
			Shape:       shapeFromName(info.CursorShape),
			CellPercent: info.CellPercent,
			Color:       NoColor,
		}
		ms.modes[info.Name] = mode
		if info.AttrID == 0 || resolve == nil {
			mode.resolved = true
			continue
		}
		resolve(info.AttrID, func(hl Highlight) {
			mode.Color = hl.Background
			mode.resolved = true
		})
	}
}

// lookup returns the named mode only once it is resolved.
func (ms *ModeSet) lookup(name string) (*Mode, bool) {
	mode, ok := ms.modes[name]
	if !ok || !mode.resolved {
		return nil, false
	}
	return mode, true
}
