package security

import (
	"testing"
	"time"
)

func TestIssueAndValidateAccess(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}

	token, expiresAt, err := p.IssueAccess("u1", "dev-a")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if token == "" {
		t.Fatal("token should not be empty")
	}
	if !expiresAt.After(time.Now()) {
		t.Errorf("expiresAt = %v, should be in the future", expiresAt)
	}

	userID, deviceID, err := p.ValidateAccess(token)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if userID != "u1" {
		t.Errorf("userID = %q, want %q", userID, "u1")
	}
	if deviceID != "dev-a" {
		t.Errorf("deviceID = %q, want %q", deviceID, "dev-a")
	}
}

func TestValidateAccess_Malformed(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, _, err := p.ValidateAccess(tok); err == nil {
			t.Errorf("ValidateAccess(%q) should fail", tok)
		}
	}
}

func TestValidateAccess_WrongIssuerOrAudience(t *testing.T) {
	issuerA, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	token, _, err := issuerA.IssueAccess("u1", "dev-a")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	// Same key material, different expectations.
	other := NewTokenProvider(issuerA.privateKey, issuerA.publicKey, "other-issuer", "test-audience", time.Minute)
	if _, _, err := other.ValidateAccess(token); err == nil {
		t.Error("token with wrong issuer should be rejected")
	}
	other = NewTokenProvider(issuerA.privateKey, issuerA.publicKey, "test-issuer", "other-audience", time.Minute)
	if _, _, err := other.ValidateAccess(token); err == nil {
		t.Error("token with wrong audience should be rejected")
	}
}

func TestValidateAccess_WrongKey(t *testing.T) {
	a, _ := NewTestTokenProvider()
	b, _ := NewTestTokenProvider()

	token, _, err := a.IssueAccess("u1", "dev-a")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, _, err := b.ValidateAccess(token); err == nil {
		t.Error("token signed with a different key should be rejected")
	}
}

func TestIssueAccess_NoPrivateKey(t *testing.T) {
	ref, _ := NewTestTokenProvider()
	p := NewTokenProvider(nil, ref.publicKey, "test-issuer", "test-audience", time.Minute)
	if _, _, err := p.IssueAccess("u1", "dev-a"); err == nil {
		t.Error("IssueAccess without a private key should fail")
	}
}
