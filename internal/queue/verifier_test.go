package queue

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testCallback = "https://app.example.com/api/dispatch"

func signBody(t *testing.T, key string, body []byte, mutate func(*signatureClaims)) string {
	t.Helper()
	sum := sha256.Sum256(body)
	now := time.Now()
	claims := signatureClaims{
		Body: base64.URLEncoding.EncodeToString(sum[:]),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "Upstash",
			Subject:   testCallback,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-time.Second)),
			ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
		},
	}
	if mutate != nil {
		mutate(&claims)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestVerifierAcceptsCurrentAndNextKey(t *testing.T) {
	v := NewVerifier("current-key", "next-key", testCallback)
	body := []byte(`{"post_id":1,"platform":"twitter","schedule_id":2}`)

	for _, key := range []string{"current-key", "next-key"} {
		if err := v.Verify(signBody(t, key, body, nil), body); err != nil {
			t.Errorf("key %s: %v", key, err)
		}
	}
}

func TestVerifierRejects(t *testing.T) {
	v := NewVerifier("current-key", "", testCallback)
	body := []byte(`{"post_id":1,"platform":"twitter","schedule_id":2}`)

	tests := []struct {
		name string
		sig  string
		body []byte
	}{
		{"tampered body", signBody(t, "current-key", body, nil), []byte(`{"post_id":9,"platform":"twitter","schedule_id":2}`)},
		{"expired", signBody(t, "current-key", body, func(c *signatureClaims) {
			c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		}), body},
		{"not yet valid", signBody(t, "current-key", body, func(c *signatureClaims) {
			c.NotBefore = jwt.NewNumericDate(time.Now().Add(time.Hour))
		}), body},
		{"wrong issuer", signBody(t, "current-key", body, func(c *signatureClaims) {
			c.Issuer = "Mallory"
		}), body},
		{"wrong subject", signBody(t, "current-key", body, func(c *signatureClaims) {
			c.Subject = "https://evil.example/hook"
		}), body},
		{"no expiry", signBody(t, "current-key", body, func(c *signatureClaims) {
			c.ExpiresAt = nil
		}), body},
		{"unknown key", signBody(t, "some-other-key", body, nil), body},
		{"garbage", "not-a-jwt", body},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Verify(tt.sig, tt.body)
			if !errors.Is(err, ErrInvalidSignature) {
				t.Fatalf("err = %v, want ErrInvalidSignature", err)
			}
		})
	}
}

func TestVerifierRejectsOtherAlgorithms(t *testing.T) {
	v := NewVerifier("current-key", "", "")
	body := []byte(`{}`)
	sum := sha256.Sum256(body)
	claims := signatureClaims{
		Body: base64.RawURLEncoding.EncodeToString(sum[:]),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "Upstash",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("current-key"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := v.Verify(token, body); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
}

func TestVerifierMissingSignature(t *testing.T) {
	v := NewVerifier("current-key", "", "")
	if err := v.Verify("", []byte("{}")); !errors.Is(err, ErrMissingSignature) {
		t.Fatalf("err = %v, want ErrMissingSignature", err)
	}
}

func TestVerifierEnabled(t *testing.T) {
	if NewVerifier("", "", "").Enabled() {
		t.Fatal("verifier without keys reports enabled")
	}
	if !NewVerifier("", "next", "").Enabled() {
		t.Fatal("verifier with next key reports disabled")
	}
	var nilVerifier *Verifier
	if nilVerifier.Enabled() {
		t.Fatal("nil verifier reports enabled")
	}
}
