package utils

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

const DefaultHTTPTimeout = 30 * time.Second

// ErrUpstreamTimeout marks a call to a queue or platform API that did not
// answer in time. Callers treat it as retryable.
var ErrUpstreamTimeout = errors.New("upstream timeout")

func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

// IsTimeout reports whether err came from a deadline rather than a refusal.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUpstreamTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
