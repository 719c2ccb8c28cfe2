package redraw

import (
	"fmt"

	"pkt.systems/pslog"

	"github.com/damianesteban/veonim/internal/screen"
)

// Router applies decoded redraw batches to a screen. It is not safe
// for concurrent use; the session loop owns it.
type Router struct {
	screen  *screen.Screen
	logger  pslog.Logger
	unknown map[string]struct{}
}

// NewRouter returns a router driving s.
func NewRouter(s *screen.Screen, logger pslog.Logger) *Router {
	if logger == nil {
		logger = pslog.LoggerFromEnv()
	}
	return &Router{
		screen:  s,
		logger:  logger,
		unknown: make(map[string]struct{}),
	}
}

// Apply interprets one redraw batch. Every entry is a list whose first
// element names the event and whose remaining elements are argument
// tuples. A malformed entry is logged and skipped without disturbing
// the rest of the batch. The batch always ends with the deferred
// cursor commit and a surface flush.
func (r *Router) Apply(batch []any) {
	for _, entry := range batch {
		name, err := r.applyEntry(entry)
		if err != nil {
			r.logger.Warn("redraw entry skipped", "event", name, "err", err)
		}
	}
	r.screen.EndBatch()
}

func (r *Router) applyEntry(entry any) (string, error) {
	tuple, ok := asList(entry)
	if !ok {
		return "", fmt.Errorf("entry is %T, not a list", entry)
	}
	if len(tuple) == 0 {
		return "", fmt.Errorf("entry is empty")
	}
	name, ok := asString(tuple[0])
	if !ok {
		return "", fmt.Errorf("event name is %T, not a string", tuple[0])
	}
	return name, r.dispatch(name, tuple[1:])
}

func (r *Router) dispatch(name string, args []any) error {
	switch name {
	case "put":
		return r.put(args)
	case "cursor_goto":
		return r.eachTuple(args, r.cursorGoto)
	case "highlight_set":
		return r.eachTuple(args, r.highlightSet)
	case "update_fg":
		return r.eachTuple(args, func(tuple []any) error {
			n, err := intArg(tuple, 0)
			if err != nil {
				return err
			}
			r.screen.SetDefaultForeground(clampColor(n))
			return nil
		})
	case "update_bg":
		return r.eachTuple(args, func(tuple []any) error {
			n, err := intArg(tuple, 0)
			if err != nil {
				return err
			}
			r.screen.SetDefaultBackground(clampColor(n))
			return nil
		})
	case "update_sp":
		return r.eachTuple(args, func(tuple []any) error {
			n, err := intArg(tuple, 0)
			if err != nil {
				return err
			}
			r.screen.SetDefaultSpecial(clampColor(n))
			return nil
		})
	case "mode_info_set":
		return r.eachTuple(args, r.modeInfoSet)
	case "mode_change":
		return r.eachTuple(args, func(tuple []any) error {
			mode, err := stringArg(tuple, 0)
			if err != nil {
				return err
			}
			r.screen.ModeChange(mode)
			return nil
		})
	case "set_scroll_region":
		return r.eachTuple(args, r.setScrollRegion)
	case "scroll":
		return r.eachTuple(args, func(tuple []any) error {
			amount, err := intArg(tuple, 0)
			if err != nil {
				return err
			}
			r.screen.Scroll(amount)
			return nil
		})
	case "resize":
		return r.eachTuple(args, func(tuple []any) error {
			cols, err := intArg(tuple, 0)
			if err != nil {
				return err
			}
			rows, err := intArg(tuple, 1)
			if err != nil {
				return err
			}
			r.screen.Resize(cols, rows)
			return nil
		})
	case "set_title":
		return r.eachTuple(args, func(tuple []any) error {
			title, err := stringArg(tuple, 0)
			if err != nil {
				return err
			}
			r.screen.SetTitle(title)
			return nil
		})
	case "set_icon":
		return r.eachTuple(args, func(tuple []any) error {
			icon, err := stringArg(tuple, 0)
			if err != nil {
				return err
			}
			r.screen.SetIcon(icon)
			return nil
		})
	case "clear":
		r.screen.Clear()
	case "eol_clear":
		r.screen.EOLClear()
	case "busy_start":
		r.screen.BusyStart()
	case "busy_stop":
		r.screen.BusyStop()
	case "mouse_on":
		r.screen.MouseOn()
	case "mouse_off":
		r.screen.MouseOff()
	case "bell":
		r.screen.Bell()
	case "visual_bell":
		r.screen.VisualBell()
	default:
		if _, seen := r.unknown[name]; !seen {
			r.unknown[name] = struct{}{}
			r.logger.Debug("ignoring redraw event", "event", name)
		}
	}
	return nil
}

func (r *Router) eachTuple(args []any, apply func(tuple []any) error) error {
	for i, arg := range args {
		tuple, ok := asList(arg)
		if !ok {
			return fmt.Errorf("tuple %d is %T, not a list", i, arg)
		}
		if err := apply(tuple); err != nil {
			return fmt.Errorf("tuple %d: %w", i, err)
		}
	}
	return nil
}

// put merges every argument tuple of one entry into a single run of
// cells before painting, so a line of text costs one paint.
func (r *Router) put(args []any) error {
	cells := make([]string, 0, len(args))
	for i, arg := range args {
		tuple, ok := asList(arg)
		if !ok {
			return fmt.Errorf("tuple %d is %T, not a list", i, arg)
		}
		if len(tuple) == 0 {
			cells = append(cells, "")
			continue
		}
		ch, ok := asString(tuple[0])
		if !ok {
			return fmt.Errorf("tuple %d cell is %T, not a string", i, tuple[0])
		}
		cells = append(cells, ch)
	}
	r.screen.PutText(cells)
	return nil
}

func (r *Router) cursorGoto(tuple []any) error {
	row, err := intArg(tuple, 0)
	if err != nil {
		return err
	}
	col, err := intArg(tuple, 1)
	if err != nil {
		return err
	}
	r.screen.GotoCursor(row, col)
	return nil
}

func (r *Router) highlightSet(tuple []any) error {
	if len(tuple) == 0 {
		return fmt.Errorf("missing attribute map")
	}
	m, ok := asMap(tuple[0])
	if !ok {
		return fmt.Errorf("attribute map is %T, not a map", tuple[0])
	}
	r.screen.SetHighlight(screen.HighlightArgs{
		Foreground: mapColor(m, "foreground"),
		Background: mapColor(m, "background"),
		Special:    mapColor(m, "special"),
		Reverse:    mapBool(m, "reverse"),
		Bold:       mapBool(m, "bold"),
		Italic:     mapBool(m, "italic"),
		Underline:  mapBool(m, "underline"),
		Undercurl:  mapBool(m, "undercurl"),
	})
	return nil
}

func (r *Router) modeInfoSet(tuple []any) error {
	if len(tuple) < 2 {
		return fmt.Errorf("want [enabled, modes], got %d arguments", len(tuple))
	}
	list, ok := asList(tuple[1])
	if !ok {
		return fmt.Errorf("mode list is %T, not a list", tuple[1])
	}
	infos := make([]screen.ModeInfo, 0, len(list))
	for i, item := range list {
		m, ok := asMap(item)
		if !ok {
			return fmt.Errorf("mode %d is %T, not a map", i, item)
		}
		infos = append(infos, screen.ModeInfo{
			Name:        mapString(m, "name"),
			CursorShape: mapString(m, "cursor_shape"),
			CellPercent: mapInt(m, "cell_percentage"),
			AttrID:      mapInt(m, "attr_id"),
		})
	}
	r.screen.ModeInfoSet(infos)
	return nil
}

func (r *Router) setScrollRegion(tuple []any) error {
	top, err := intArg(tuple, 0)
	if err != nil {
		return err
	}
	bottom, err := intArg(tuple, 1)
	if err != nil {
		return err
	}
	left, err := intArg(tuple, 2)
	if err != nil {
		return err
	}
	right, err := intArg(tuple, 3)
	if err != nil {
		return err
	}
	r.screen.SetScrollRegion(top, bottom, left, right)
	return nil
}

// clampColor maps the editor's -1 no-change sentinel, and any other
// negative value, onto NoColor.
func clampColor(n int) screen.RGB {
	if n < 0 {
		return screen.NoColor
	}
	return screen.RGB(n)
}
