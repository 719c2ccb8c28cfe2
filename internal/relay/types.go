// Package relay shares one live editor session over websockets: a
// single host publishes ordered redraw envelopes, any number of
// viewers mirror them, and at most one connection holds the input
// seat at a time.
package relay

import "time"

// Scope defines what a share token permits.
type Scope string

// Share scope values.
const (
	ScopeView    Scope = "view"
	ScopeControl Scope = "control"
)

// ShareToken grants access to the shared session.
type ShareToken struct {
	Token     string     `json:"token"`
	Scope     Scope      `json:"scope"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// IsExpired reports whether the token has lapsed.
func (t ShareToken) IsExpired(now time.Time) bool {
	if t.ExpiresAt == nil {
		return false
	}
	return now.After(*t.ExpiresAt)
}

// AllowsControl reports whether the token permits taking the input
// seat.
func (t ShareToken) AllowsControl() bool {
	return t.Scope == ScopeControl
}
