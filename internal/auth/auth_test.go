package auth

import (
	"errors"
	"testing"
	"time"
)

const testSecret = "test-signing-secret"

func TestMintAndVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	verifier, err := NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewVerifier returned error: %v", err)
	}

	token, err := Mint("user-1", testSecret, false, time.Hour)
	if err != nil {
		t.Fatalf("Mint returned error: %v", err)
	}

	principal, err := verifier.Principal(token)
	if err != nil {
		t.Fatalf("Principal returned error: %v", err)
	}
	if principal.ID != "user-1" {
		t.Fatalf("expected principal user-1, got %q", principal.ID)
	}
	if principal.Admin {
		t.Fatal("expected non-admin principal")
	}
}

func TestMintCarriesAdminFlag(t *testing.T) {
	t.Parallel()

	verifier, err := NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewVerifier returned error: %v", err)
	}

	token, err := Mint("mod-1", testSecret, true, time.Hour)
	if err != nil {
		t.Fatalf("Mint returned error: %v", err)
	}

	principal, err := verifier.Principal(token)
	if err != nil {
		t.Fatalf("Principal returned error: %v", err)
	}
	if !principal.Admin {
		t.Fatal("expected admin principal")
	}
}

func TestVerifierRejectsExpiredTokens(t *testing.T) {
	t.Parallel()

	verifier, err := NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewVerifier returned error: %v", err)
	}

	token, err := Mint("user-1", testSecret, false, -time.Minute)
	if err != nil {
		t.Fatalf("Mint returned error: %v", err)
	}

	if _, err := verifier.Principal(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token returned %v, expected ErrInvalidToken", err)
	}
}

func TestVerifierRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	verifier, err := NewVerifier("other-secret")
	if err != nil {
		t.Fatalf("NewVerifier returned error: %v", err)
	}

	token, err := Mint("user-1", testSecret, false, time.Hour)
	if err != nil {
		t.Fatalf("Mint returned error: %v", err)
	}

	if _, err := verifier.Principal(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token signed with wrong secret returned %v, expected ErrInvalidToken", err)
	}
}

func TestVerifierRejectsGarbage(t *testing.T) {
	t.Parallel()

	verifier, err := NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewVerifier returned error: %v", err)
	}

	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := verifier.Principal(raw); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Principal(%q) returned %v, expected ErrInvalidToken", raw, err)
		}
	}
}

func TestConfigurationGuards(t *testing.T) {
	t.Parallel()

	if _, err := NewVerifier("  "); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("NewVerifier with blank secret returned %v, expected ErrNoSecret", err)
	}
	if _, err := Mint("user-1", "", false, time.Hour); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("Mint without secret returned %v, expected ErrNoSecret", err)
	}
	if _, err := Mint("  ", testSecret, false, time.Hour); err == nil {
		t.Fatal("Mint with blank principal succeeded, expected error")
	}
}
