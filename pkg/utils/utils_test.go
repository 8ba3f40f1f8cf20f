package utils

import (
	"strings"
	"testing"
	"time"
)

func TestTokenCipherRoundTrip(t *testing.T) {
	t.Parallel()

	c, err := NewTokenCipher("short-secret")
	if err != nil {
		t.Fatalf("NewTokenCipher: %v", err)
	}

	sealed, err := c.Encrypt("access-token-123")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if strings.Contains(sealed, "access-token-123") {
		t.Fatal("ciphertext leaks plaintext")
	}

	got, err := c.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != "access-token-123" {
		t.Fatalf("Decrypt = %q, want %q", got, "access-token-123")
	}
}

func TestTokenCipherRejectsForeignKey(t *testing.T) {
	t.Parallel()

	a, _ := NewTokenCipher("secret-a")
	b, _ := NewTokenCipher("secret-b")

	sealed, err := a.Encrypt("token")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := b.Decrypt(sealed); err == nil {
		t.Fatal("expected decrypt with a different key to fail")
	}
	if _, err := a.Decrypt("AAAA"); err == nil {
		t.Fatal("expected short ciphertext to fail")
	}
}

func TestNewTokenCipherEmptySecret(t *testing.T) {
	t.Parallel()
	if _, err := NewTokenCipher(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestSessionToken(t *testing.T) {
	t.Parallel()

	token, err := GenerateToken("session-secret", "42", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ValidateToken("session-secret", token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != "42" {
		t.Fatalf("UserID = %q, want 42", claims.UserID)
	}

	if _, err := ValidateToken("other-secret", token); err == nil {
		t.Fatal("expected validation with wrong secret to fail")
	}

	expired, err := GenerateToken("session-secret", "42", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ValidateToken("session-secret", expired); err == nil {
		t.Fatal("expected expired token to fail")
	}
}
