package relay

import (
	"testing"
	"time"
)

func TestShareTokenLifecycle(t *testing.T) {
	now := time.Now().UTC()
	share, err := NewShareToken(ScopeView, time.Hour, now)
	if err != nil {
		t.Fatalf("NewShareToken: %v", err)
	}
	if share.Token == "" {
		t.Fatalf("expected token")
	}
	if share.AllowsControl() {
		t.Fatalf("view token must not allow control")
	}
	if share.IsExpired(now) {
		t.Fatalf("token should not be expired")
	}
	if !share.IsExpired(now.Add(2 * time.Hour)) {
		t.Fatalf("token should be expired")
	}
}

func TestShareTokenWithoutTTLNeverExpires(t *testing.T) {
	now := time.Now().UTC()
	share, err := NewShareToken(ScopeControl, 0, now)
	if err != nil {
		t.Fatalf("NewShareToken: %v", err)
	}
	if !share.AllowsControl() {
		t.Fatalf("control token must allow control")
	}
	if share.IsExpired(now.Add(1000 * time.Hour)) {
		t.Fatalf("token without ttl must not expire")
	}
}

func TestShareTokenRejectsUnknownScope(t *testing.T) {
	if _, err := NewShareToken(Scope("admin"), time.Hour, time.Now()); err == nil {
		t.Fatalf("expected error for unknown scope")
	}
}

func TestShareTokensAreUnique(t *testing.T) {
	now := time.Now().UTC()
	seen := make(map[string]bool)
	for i := 0; i < 8; i++ {
		share, err := NewShareToken(ScopeView, 0, now)
		if err != nil {
			t.Fatalf("NewShareToken: %v", err)
		}
		if seen[share.Token] {
			t.Fatalf("duplicate token generated")
		}
		seen[share.Token] = true
	}
}
