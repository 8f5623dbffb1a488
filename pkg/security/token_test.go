package security_test

import (
	"encoding/base64"
	"testing"

	"github.com/benchlot/benchlot-backend/pkg/security"
)

func TestNewOpaqueTokenIsRandomAndURLSafe(t *testing.T) {
	first, err := security.NewOpaqueToken(32)
	if err != nil {
		t.Fatalf("NewOpaqueToken returned error: %v", err)
	}
	second, err := security.NewOpaqueToken(32)
	if err != nil {
		t.Fatalf("NewOpaqueToken returned error: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct tokens")
	}
	raw, err := base64.RawURLEncoding.DecodeString(first)
	if err != nil {
		t.Fatalf("token is not raw url base64: %v", err)
	}
	if len(raw) != 32 {
		t.Fatalf("expected 32 bytes of entropy, got %d", len(raw))
	}
}

func TestNewOpaqueTokenRejectsShortLength(t *testing.T) {
	if _, err := security.NewOpaqueToken(security.MinTokenBytes - 1); err == nil {
		t.Fatal("expected error for short token")
	}
}

func TestDigestTokenMatches(t *testing.T) {
	digest := security.DigestToken("onboard-me")
	if len(digest) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(digest))
	}
	if !security.TokenMatches("onboard-me", digest) {
		t.Fatal("expected digest to match its token")
	}
	if security.TokenMatches("onboard-you", digest) {
		t.Fatal("expected digest mismatch for another token")
	}
}
