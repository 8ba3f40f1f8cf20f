// Package platform publishes plain-text posts to the supported social
// networks. The set of platforms is closed: every value of Platform has a
// field on Registry, so adding one is a compile-time change.
package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type Platform string

const (
	Twitter   Platform = "twitter"
	LinkedIn  Platform = "linkedin"
	Facebook  Platform = "facebook"
	Instagram Platform = "instagram"
)

// All lists the supported platforms in display order.
var All = []Platform{Twitter, LinkedIn, Facebook, Instagram}

var (
	ErrUnknownPlatform = errors.New("unknown platform")
	ErrRequiresMedia   = errors.New("Instagram requires media")
	ErrTextTooLong     = errors.New("text exceeds platform limit")
)

func Parse(raw string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(raw)))
	switch p {
	case Twitter, LinkedIn, Facebook, Instagram:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, raw)
}

func (p Platform) String() string { return string(p) }

// Credential is the decrypted token plus the account it publishes as.
type Credential struct {
	AccessToken string
	AccountID   string
}

// Publication is what gets posted: sanitized plain text and public media URLs.
type Publication struct {
	Text      string
	MediaURLs []string
}

type Result struct {
	PostID string
}

type Adapter interface {
	Platform() Platform
	Publish(ctx context.Context, cred Credential, pub Publication) (*Result, error)
}

// APIError is a non-success answer from a platform API.
type APIError struct {
	Platform   Platform
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.Platform, e.Message, e.StatusCode)
}

// Registry maps each platform to its adapter.
type Registry struct {
	Twitter   Adapter
	LinkedIn  Adapter
	Facebook  Adapter
	Instagram Adapter
}

func (r *Registry) Adapter(p Platform) (Adapter, error) {
	var a Adapter
	switch p {
	case Twitter:
		a = r.Twitter
	case LinkedIn:
		a = r.LinkedIn
	case Facebook:
		a = r.Facebook
	case Instagram:
		a = r.Instagram
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, p)
	}
	if a == nil {
		return nil, fmt.Errorf("no adapter configured for %s", p)
	}
	return a, nil
}
