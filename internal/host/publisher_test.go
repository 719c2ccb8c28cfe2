package host

import (
	"testing"

	"github.com/damianesteban/veonim/internal/protocol"
	"github.com/damianesteban/veonim/internal/screen"
)

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		want     string
		wantErr  bool
	}{
		{
			name:     "https",
			endpoint: "https://localhost:12843/v1",
			want:     "wss://localhost:12843/v1",
		},
		{
			name:     "http",
			endpoint: "http://localhost:8080",
			want:     "ws://localhost:8080",
		},
		{
			name:     "wss",
			endpoint: "wss://relay.example/v1",
			want:     "wss://relay.example/v1",
		},
		{
			name:     "missing scheme",
			endpoint: "localhost:8080",
			wantErr:  true,
		},
		{
			name:     "unsupported scheme",
			endpoint: "ftp://example.com",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeEndpoint(tt.endpoint)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("normalizeEndpoint() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPublisherBuffersWhileDisconnected(t *testing.T) {
	p := NewPublisher(PublishOptions{
		SessionID:     "session",
		BufferBatches: 8,
	})

	p.PublishBatch([]any{[]any{"clear"}})
	p.PublishBatch([]any{[]any{"put", []any{"a"}}})

	if len(p.buffer) != 2 {
		t.Fatalf("buffer size = %d, want 2", len(p.buffer))
	}
	if p.buffer[0].Type != protocol.MessageRedraw {
		t.Fatalf("buffered type = %q, want redraw", p.buffer[0].Type)
	}
	if p.buffer[0].Seq != 1 || p.buffer[1].Seq != 2 {
		t.Fatalf("sequence numbers = %d,%d want 1,2", p.buffer[0].Seq, p.buffer[1].Seq)
	}
}

func TestPublisherBufferOverflowDropsBacklog(t *testing.T) {
	p := NewPublisher(PublishOptions{
		SessionID:     "session",
		BufferBatches: 2,
	})

	p.PublishBatch([]any{[]any{"clear"}})
	p.PublishBatch([]any{[]any{"bell"}})
	p.PublishBatch([]any{[]any{"put", []any{"x"}}})

	if len(p.buffer) != 1 {
		t.Fatalf("buffer size = %d, want 1 after overflow reset", len(p.buffer))
	}
	if !p.overflow {
		t.Fatalf("overflow must be recorded so reconnect forces a repaint")
	}
	if p.buffer[0].Seq != 3 {
		t.Fatalf("kept envelope seq = %d, want 3", p.buffer[0].Seq)
	}
}

func TestPublisherColorNeverBuffers(t *testing.T) {
	p := NewPublisher(PublishOptions{
		SessionID:     "session",
		BufferBatches: 8,
	})

	p.PublishColor(7, screen.Highlight{Foreground: 0x112233, Background: screen.NoColor})

	if len(p.buffer) != 0 {
		t.Fatalf("color answers must not buffer, got %d", len(p.buffer))
	}
}

func TestColorFromRPCTreatsZeroAsUnset(t *testing.T) {
	if colorFromRPC(0) != screen.NoColor {
		t.Fatalf("zero must mean unset")
	}
	if colorFromRPC(-1) != screen.NoColor {
		t.Fatalf("negative must mean unset")
	}
	if colorFromRPC(0x123456) != screen.RGB(0x123456) {
		t.Fatalf("positive colors must pass through")
	}
}
