package queue

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	SignatureHeader = "Upstash-Signature"
	signatureIssuer = "Upstash"
)

var (
	ErrMissingSignature = errors.New("missing signature")
	ErrInvalidSignature = errors.New("invalid signature")
)

type signatureClaims struct {
	Body string `json:"body"`
	jwt.RegisteredClaims
}

// Verifier checks QStash request signatures. Up to two signing keys are
// accepted so keys can be rotated without dropping deliveries.
type Verifier struct {
	keys        []string
	callbackURL string
	leeway      time.Duration
	now         func() time.Time
}

func NewVerifier(currentKey, nextKey, callbackURL string) *Verifier {
	v := &Verifier{
		callbackURL: callbackURL,
		now:         time.Now,
	}
	for _, k := range []string{currentKey, nextKey} {
		if k != "" {
			v.keys = append(v.keys, k)
		}
	}
	return v
}

// Enabled reports whether any signing key is configured. Without keys the
// webhook accepts unsigned requests.
func (v *Verifier) Enabled() bool {
	return v != nil && len(v.keys) > 0
}

// Verify validates the signature token against body.
func (v *Verifier) Verify(signature string, body []byte) error {
	if signature == "" {
		return ErrMissingSignature
	}

	var lastErr error
	for _, key := range v.keys {
		err := v.verifyWithKey(key, signature, body)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %v", ErrInvalidSignature, lastErr)
}

func (v *Verifier) verifyWithKey(key, signature string, body []byte) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(signatureIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	}
	if v.callbackURL != "" {
		opts = append(opts, jwt.WithSubject(v.callbackURL))
	}

	var claims signatureClaims
	_, err := jwt.ParseWithClaims(signature, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(key), nil
	}, opts...)
	if err != nil {
		return err
	}

	sum := sha256.Sum256(body)
	want := base64.RawURLEncoding.EncodeToString(sum[:])
	got := strings.TrimRight(claims.Body, "=")
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		return errors.New("body hash mismatch")
	}
	return nil
}
