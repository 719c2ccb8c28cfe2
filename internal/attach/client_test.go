package attach

import (
	"bytes"
	"testing"

	"github.com/damianesteban/veonim/internal/protocol"
	"github.com/damianesteban/veonim/internal/redraw"
	"github.com/damianesteban/veonim/internal/render"
	"github.com/damianesteban/veonim/internal/screen"
)

func TestAcceptSeqDetectsGaps(t *testing.T) {
	c := &Client{}
	if c.acceptSeq(1) {
		t.Fatalf("first seq should not request a resync")
	}
	if c.acceptSeq(2) {
		t.Fatalf("contiguous seq should not request a resync")
	}
	if !c.acceptSeq(5) {
		t.Fatalf("gap should request a resync")
	}
	if c.acceptSeq(6) {
		t.Fatalf("stream resumed, no new request expected")
	}
	if !c.acceptSeq(9) {
		t.Fatalf("second gap should request a new resync")
	}
}

func TestAcceptSeqRequestsOncePerGapEpisode(t *testing.T) {
	c := &Client{}
	c.acceptSeq(1)
	if !c.acceptSeq(3) {
		t.Fatalf("gap should request a resync")
	}
	if c.acceptSeq(7) {
		t.Fatalf("back-to-back gaps should share one request")
	}
	if c.acceptSeq(8) {
		t.Fatalf("contiguous seq should clear the episode quietly")
	}
	if !c.acceptSeq(12) {
		t.Fatalf("a gap after recovery should request again")
	}
}

func TestAcceptSeqZeroPassesThrough(t *testing.T) {
	c := &Client{}
	c.acceptSeq(4)
	if c.acceptSeq(0) {
		t.Fatalf("unsequenced envelope should never request a resync")
	}
	if c.lastSeq != 4 {
		t.Fatalf("unsequenced envelope must not move lastSeq, got %d", c.lastSeq)
	}
}

func TestResolveParksCallbacksUntilColorAnswer(t *testing.T) {
	c := &Client{}
	var got []screen.Highlight
	c.resolveHighlight(5, func(hl screen.Highlight) { got = append(got, hl) })
	c.resolveHighlight(5, func(hl screen.Highlight) { got = append(got, hl) })
	if len(got) != 0 {
		t.Fatalf("callbacks ran before the answer arrived")
	}

	c.completeResolve(protocol.ColorPayload{ID: 5, Foreground: 0x112233, Background: -1})
	if len(got) != 2 {
		t.Fatalf("expected both callbacks to run, got %d", len(got))
	}
	for _, hl := range got {
		if hl.Foreground != screen.RGB(0x112233) {
			t.Fatalf("foreground = %v, want 0x112233", hl.Foreground)
		}
		if hl.Background != screen.NoColor {
			t.Fatalf("background = %v, want none", hl.Background)
		}
	}

	got = got[:0]
	c.completeResolve(protocol.ColorPayload{ID: 5, Foreground: 1, Background: 2})
	if len(got) != 0 {
		t.Fatalf("answered id should not fire again")
	}
}

func TestCompleteResolveIgnoresUnknownID(t *testing.T) {
	c := &Client{}
	c.completeResolve(protocol.ColorPayload{ID: 9, Foreground: 1, Background: 2})
}

func TestHandleControlTracksHolder(t *testing.T) {
	c := &Client{ClientID: "viewer1", controlCh: make(chan struct{}, 1)}
	c.handleControl("viewer2")
	if c.isController() {
		t.Fatalf("someone else holds control")
	}
	select {
	case <-c.controlCh:
	default:
		t.Fatalf("holder change should notify")
	}

	c.handleControl("viewer2")
	select {
	case <-c.controlCh:
		t.Fatalf("unchanged holder should not notify")
	default:
	}

	c.handleControl("viewer1")
	if !c.isController() {
		t.Fatalf("control granted to this client")
	}
}

func TestWelcomeAdoptsHostGeometry(t *testing.T) {
	var out bytes.Buffer
	c := &Client{ClientID: "viewer1"}
	c.term = render.NewTerm(&out, 10, 4)
	c.screen = screen.New(c.term, c.resolveHighlight)
	c.router = redraw.NewRouter(c.screen, nil)

	c.handleWelcome(protocol.WelcomePayload{GrantedControl: true, Cols: 20, Rows: 6})

	cols, rows := c.screen.Size()
	if cols != 20 || rows != 6 {
		t.Fatalf("grid = %dx%d, want 20x6", cols, rows)
	}
	if !c.isController() {
		t.Fatalf("granted control should mark this client controller")
	}
}

func TestColorOrNone(t *testing.T) {
	if colorOrNone(-1) != screen.NoColor {
		t.Fatalf("-1 should map to no color")
	}
	if colorOrNone(0x1000000) != screen.NoColor {
		t.Fatalf("out-of-range value should map to no color")
	}
	if colorOrNone(0x00ff00) != screen.RGB(0x00ff00) {
		t.Fatalf("in-range value should pass through")
	}
}
