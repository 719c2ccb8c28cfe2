package sharestore

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSaveLoadState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shares.json")
	now := time.Now().UTC()

	state := State{}
	state.Put(Entry{
		Endpoint:  "wss://relay.example:12846",
		Token:     "tok-control",
		Scope:     "control",
		SavedAt:   now,
		ExpiresAt: now.Add(24 * time.Hour),
	})

	if err := Save(path, state); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	entry, ok := loaded.Lookup("wss://relay.example:12846/")
	if !ok {
		t.Fatalf("expected entry for endpoint")
	}
	if entry.Token != "tok-control" {
		t.Fatalf("Token = %q, want %q", entry.Token, "tok-control")
	}
	if entry.Scope != "control" {
		t.Fatalf("Scope = %q, want %q", entry.Scope, "control")
	}
	if !entry.ExpiresAt.Equal(now.Add(24 * time.Hour)) {
		t.Fatalf("ExpiresAt mismatch")
	}
}

func TestLoadMissingFileYieldsEmptyState(t *testing.T) {
	state, err := Load(filepath.Join(t.TempDir(), "shares.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(state.Entries) != 0 {
		t.Fatalf("expected empty state, got %d entries", len(state.Entries))
	}
}

func TestPutReplacesByEndpoint(t *testing.T) {
	state := State{}
	state.Put(Entry{Endpoint: "wss://relay.example", Token: "old"})
	state.Put(Entry{Endpoint: "WSS://relay.example/", Token: "new"})

	if len(state.Entries) != 1 {
		t.Fatalf("expected a single entry, got %d", len(state.Entries))
	}
	entry, ok := state.Lookup("wss://relay.example")
	if !ok || entry.Token != "new" {
		t.Fatalf("expected replacement token, got %+v ok=%v", entry, ok)
	}
}

func TestRemove(t *testing.T) {
	state := State{}
	state.Put(Entry{Endpoint: "wss://a.example", Token: "a"})
	state.Put(Entry{Endpoint: "wss://b.example", Token: "b"})

	if !state.Remove("wss://a.example/") {
		t.Fatalf("expected removal to succeed")
	}
	if state.Remove("wss://a.example") {
		t.Fatalf("expected second removal to report missing")
	}
	if _, ok := state.Lookup("wss://b.example"); !ok {
		t.Fatalf("unrelated entry disappeared")
	}
}

func TestEntryValidity(t *testing.T) {
	now := time.Now().UTC()

	expiring := Entry{Token: "tok", ExpiresAt: now.Add(time.Minute)}
	if !expiring.ValidAt(now) {
		t.Fatalf("entry should be valid before expiry")
	}
	if expiring.ValidAt(now.Add(2 * time.Minute)) {
		t.Fatalf("entry should be expired")
	}

	forever := Entry{Token: "tok"}
	if !forever.ValidAt(now.Add(1000 * time.Hour)) {
		t.Fatalf("entry without expiry should stay valid")
	}

	empty := Entry{}
	if empty.ValidAt(now) {
		t.Fatalf("entry without token should be invalid")
	}
}
