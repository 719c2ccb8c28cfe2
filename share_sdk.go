package veonim

import (
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/mdp/qrterminal/v3"

	"github.com/damianesteban/veonim/internal/config"
	"github.com/damianesteban/veonim/internal/relay"
	"github.com/damianesteban/veonim/internal/sharestore"
)

// ShareScope defines what a share grants.
type ShareScope = relay.Scope

// Share scope values.
const (
	ShareScopeView    = relay.ScopeView
	ShareScopeControl = relay.ScopeControl
)

// ShareEntry is a saved share credential.
type ShareEntry = sharestore.Entry

// ShareURL combines a relay endpoint and token into the URL handed to
// viewers. veonim attach accepts it directly.
func ShareURL(endpoint, token string) string {
	endpoint = strings.TrimRight(endpoint, "/")
	if token == "" {
		return endpoint
	}
	return endpoint + "?token=" + url.QueryEscape(token)
}

// SplitShareURL splits a share URL back into endpoint and token. A URL
// without a token query returns the endpoint unchanged and an empty
// token.
func SplitShareURL(raw string) (endpoint, token string, err error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", err
	}
	query := parsed.Query()
	token = query.Get("token")
	query.Del("token")
	parsed.RawQuery = query.Encode()
	return strings.TrimRight(parsed.String(), "/"), token, nil
}

// PrintShareQR renders a share URL as a terminal QR code.
func PrintShareQR(w io.Writer, shareURL string) {
	if strings.TrimSpace(shareURL) == "" {
		return
	}
	qrterminal.GenerateHalfBlock(shareURL, qrterminal.L, w)
}

// SaveShare persists a share credential for later attach runs. A zero
// expiresAt never expires.
func SaveShare(endpoint, token string, scope ShareScope, expiresAt time.Time) error {
	path := config.DefaultSharesPath()
	state, err := sharestore.Load(path)
	if err != nil {
		return err
	}
	state.Put(sharestore.Entry{
		Endpoint:  endpoint,
		Token:     token,
		Scope:     string(scope),
		SavedAt:   time.Now().UTC(),
		ExpiresAt: expiresAt,
	})
	return sharestore.Save(path, state)
}

// SavedShares lists the persisted share credentials.
func SavedShares() ([]ShareEntry, error) {
	state, err := sharestore.Load(config.DefaultSharesPath())
	if err != nil {
		return nil, err
	}
	return state.Entries, nil
}

// LookupShare finds a usable saved share for endpoint.
func LookupShare(endpoint string, now time.Time) (ShareEntry, bool) {
	state, err := sharestore.Load(config.DefaultSharesPath())
	if err != nil {
		return ShareEntry{}, false
	}
	entry, ok := state.Lookup(endpoint)
	if !ok || !entry.ValidAt(now) {
		return ShareEntry{}, false
	}
	return entry, true
}

// ForgetShare removes the saved share for endpoint and reports whether
// one existed.
func ForgetShare(endpoint string) (bool, error) {
	path := config.DefaultSharesPath()
	state, err := sharestore.Load(path)
	if err != nil {
		return false, err
	}
	if !state.Remove(endpoint) {
		return false, nil
	}
	return true, sharestore.Save(path, state)
}
