package screen

import (
	"testing"
)

func TestModeSetImmediateResolution(t *testing.T) {
	ms := newModeSet()

	ms.update([]ModeInfo{
		{Name: "normal", CursorShape: "block"},
		{Name: "insert", CursorShape: "vertical", CellPercent: 25},
	}, nil)

	mode, ok := ms.lookup("insert")
	if !ok {
		t.Fatalf("insert should resolve immediately without an attr id")
	}
	if mode.Shape != ShapeBar || mode.CellPercent != 25 {
		t.Fatalf("insert: got %v/%d want bar/25", mode.Shape, mode.CellPercent)
	}
	if mode.Color != NoColor {
		t.Fatalf("insert color: got %06x want none", mode.Color)
	}
}

func TestModeSetDeferredResolution(t *testing.T) {
	ms := newModeSet()

	var done func(Highlight)
	ms.update([]ModeInfo{
		{Name: "visual", CursorShape: "horizontal", CellPercent: 30, AttrID: 12},
	}, func(id int, d func(Highlight)) {
		if id != 12 {
			t.Fatalf("resolve id: got %d want 12", id)
		}
		done = d
	})

	if _, ok := ms.lookup("visual"); ok {
		t.Fatalf("visual should stay unavailable until resolution completes")
	}

	done(Highlight{Foreground: NoColor, Background: 0x335577})

	mode, ok := ms.lookup("visual")
	if !ok {
		t.Fatalf("visual should resolve after completion")
	}
	if mode.Color != 0x335577 {
		t.Fatalf("visual color: got %06x want 335577", mode.Color)
	}
	if mode.Shape != ShapeUnderline {
		t.Fatalf("visual shape: got %v want underline", mode.Shape)
	}
}

func TestModeSetReplacesEntries(t *testing.T) {
	ms := newModeSet()

	ms.update([]ModeInfo{{Name: "normal", CursorShape: "block"}}, nil)
	ms.update([]ModeInfo{{Name: "normal", CursorShape: "vertical", CellPercent: 10}}, nil)

	mode, ok := ms.lookup("normal")
	if !ok || mode.Shape != ShapeBar || mode.CellPercent != 10 {
		t.Fatalf("replacement lost: ok=%v mode=%+v", ok, mode)
	}
}

func TestShapeNames(t *testing.T) {
	if shapeFromName("horizontal") != ShapeUnderline {
		t.Fatalf("horizontal should map to the underline shape")
	}
	if shapeFromName("vertical") != ShapeBar {
		t.Fatalf("vertical should map to the bar shape")
	}
	if shapeFromName("block") != ShapeBlock || shapeFromName("") != ShapeBlock {
		t.Fatalf("block and unknown names should map to the block shape")
	}
	if ShapeUnderline.String() != "horizontal" || ShapeBar.String() != "vertical" || ShapeBlock.String() != "block" {
		t.Fatalf("wire names mismatch")
	}
}
