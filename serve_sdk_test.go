package veonim

import (
	"strings"
	"testing"
)

func TestShareEndpointUsesTLSHostname(t *testing.T) {
	endpoint, err := shareEndpoint("0.0.0.0:12846", "/veonim", true, "relay.example")
	if err != nil {
		t.Fatalf("shareEndpoint: %v", err)
	}
	if endpoint != "wss://relay.example:12846/veonim" {
		t.Fatalf("endpoint = %q", endpoint)
	}
}

func TestShareEndpointWildcardFallsBackToHostname(t *testing.T) {
	endpoint, err := shareEndpoint("0.0.0.0:12846", "", false, "")
	if err != nil {
		t.Fatalf("shareEndpoint: %v", err)
	}
	if !strings.HasPrefix(endpoint, "ws://") {
		t.Fatalf("endpoint = %q, want ws scheme", endpoint)
	}
	if strings.Contains(endpoint, "0.0.0.0") {
		t.Fatalf("endpoint = %q, wildcard host must not leak into the share URL", endpoint)
	}
}

func TestShareEndpointRejectsBareAddress(t *testing.T) {
	if _, err := shareEndpoint("12846", "", false, ""); err == nil {
		t.Fatalf("expected error for address without port")
	}
}

func TestLoopbackEndpointKeepsPortAndBase(t *testing.T) {
	endpoint, err := loopbackEndpoint("relay.example:12846", "/veonim", true)
	if err != nil {
		t.Fatalf("loopbackEndpoint: %v", err)
	}
	if endpoint != "wss://127.0.0.1:12846/veonim" {
		t.Fatalf("endpoint = %q", endpoint)
	}
}
