// Package sharestore persists attach credentials, so a viewer can
// reconnect to a known relay without pasting the share token again.
package sharestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Entry is a saved share token for one relay endpoint.
type Entry struct {
	Endpoint  string    `json:"endpoint"`
	Token     string    `json:"token"`
	Scope     string    `json:"scope,omitempty"`
	SavedAt   time.Time `json:"saved_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// ValidAt reports whether the entry is usable at the given time. A
// zero ExpiresAt never expires.
func (e Entry) ValidAt(t time.Time) bool {
	if e.Token == "" {
		return false
	}
	if e.ExpiresAt.IsZero() {
		return true
	}
	return t.Before(e.ExpiresAt)
}

// State holds every saved entry, keyed by endpoint.
type State struct {
	Entries []Entry `json:"entries"`
}

// Lookup returns the entry for endpoint. Endpoints compare
// case-insensitively with trailing slashes ignored.
func (s State) Lookup(endpoint string) (Entry, bool) {
	want := canonicalEndpoint(endpoint)
	for _, e := range s.Entries {
		if canonicalEndpoint(e.Endpoint) == want {
			return e, true
		}
	}
	return Entry{}, false
}

// Put inserts entry, replacing any existing entry for the same
// endpoint.
func (s *State) Put(entry Entry) {
	want := canonicalEndpoint(entry.Endpoint)
	for i, e := range s.Entries {
		if canonicalEndpoint(e.Endpoint) == want {
			s.Entries[i] = entry
			return
		}
	}
	s.Entries = append(s.Entries, entry)
}

// Remove deletes the entry for endpoint and reports whether one
// existed.
func (s *State) Remove(endpoint string) bool {
	want := canonicalEndpoint(endpoint)
	for i, e := range s.Entries {
		if canonicalEndpoint(e.Endpoint) == want {
			s.Entries = append(s.Entries[:i], s.Entries[i+1:]...)
			return true
		}
	}
	return false
}

// Load reads the store from disk. A missing file yields an empty
// state.
func Load(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		return State{}, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, err
	}
	return state, nil
}

// Save writes the store to disk, creating the parent directory when
// needed.
func Save(path string, state State) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func canonicalEndpoint(endpoint string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(endpoint), "/"))
}
