package relay

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"time"
)

const defaultTokenBytes = 32

// NewShareToken generates a share token. A zero ttl never expires.
func NewShareToken(scope Scope, ttl time.Duration, now time.Time) (ShareToken, error) {
	if scope != ScopeView && scope != ScopeControl {
		return ShareToken{}, fmt.Errorf("invalid scope %q", scope)
	}
	value, err := randomToken(defaultTokenBytes)
	if err != nil {
		return ShareToken{}, err
	}
	var expires *time.Time
	if ttl > 0 {
		exp := now.Add(ttl)
		expires = &exp
	}
	return ShareToken{
		Token:     value,
		Scope:     scope,
		CreatedAt: now,
		ExpiresAt: expires,
	}, nil
}

func randomToken(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	return enc.EncodeToString(buf), nil
}
