package platform

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/maheshrc27/postflow/pkg/logger"
	"github.com/maheshrc27/postflow/pkg/ratelimit"
	"github.com/maheshrc27/postflow/pkg/utils"
	"github.com/rs/zerolog"
)

const maxResponseBody = 1 << 20

const (
	DefaultTwitterBaseURL   = "https://api.twitter.com"
	DefaultLinkedInBaseURL  = "https://api.linkedin.com"
	DefaultFacebookBaseURL  = "https://graph.facebook.com/v21.0"
	DefaultInstagramBaseURL = "https://graph.instagram.com/v21.0"
)

type Options struct {
	Timeout          time.Duration
	Limiter          *ratelimit.MultiLimiter
	TwitterBaseURL   string
	LinkedInBaseURL  string
	FacebookBaseURL  string
	InstagramBaseURL string
}

// NewRegistry builds every adapter against the same limiter and timeout.
func NewRegistry(opts Options) *Registry {
	httpClient := utils.NewHTTPClient(opts.Timeout)

	return &Registry{
		Twitter:   newTwitterAdapter(newAPIClient(Twitter, ratelimit.LimiterTwitter, httpClient, opts.Limiter), orDefault(opts.TwitterBaseURL, DefaultTwitterBaseURL)),
		LinkedIn:  newLinkedInAdapter(newAPIClient(LinkedIn, ratelimit.LimiterLinkedIn, httpClient, opts.Limiter), orDefault(opts.LinkedInBaseURL, DefaultLinkedInBaseURL)),
		Facebook:  newFacebookAdapter(newAPIClient(Facebook, ratelimit.LimiterFacebook, httpClient, opts.Limiter), orDefault(opts.FacebookBaseURL, DefaultFacebookBaseURL)),
		Instagram: newInstagramAdapter(newAPIClient(Instagram, ratelimit.LimiterInstagram, httpClient, opts.Limiter), orDefault(opts.InstagramBaseURL, DefaultInstagramBaseURL)),
	}
}

// apiClient is the rate-limited HTTP transport shared by the adapters.
type apiClient struct {
	platform    Platform
	limiterName string
	http        *http.Client
	limiter     *ratelimit.MultiLimiter
	log         zerolog.Logger
}

func newAPIClient(p Platform, limiterName string, httpClient *http.Client, limiter *ratelimit.MultiLimiter) *apiClient {
	return &apiClient{
		platform:    p,
		limiterName: limiterName,
		http:        httpClient,
		limiter:     limiter,
		log:         logger.Component(string(p)),
	}
}

// do sends req and returns the response with its body already read.
func (c *apiClient) do(req *http.Request) (*http.Response, []byte, error) {
	if err := c.limiter.Wait(req.Context(), c.limiterName); err != nil {
		return nil, nil, c.classify(err)
	}

	c.log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Msg("platform API request")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, c.classify(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, nil, c.classify(err)
	}

	c.log.Debug().
		Int("status", resp.StatusCode).
		Msg("platform API response")

	return resp, body, nil
}

func (c *apiClient) classify(err error) error {
	if utils.IsTimeout(err) {
		return fmt.Errorf("%w: %s: %v", utils.ErrUpstreamTimeout, c.platform, err)
	}
	return fmt.Errorf("%s request failed: %w", c.platform, err)
}

func (c *apiClient) apiError(status int, message string, body []byte) *APIError {
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &APIError{Platform: c.platform, StatusCode: status, Message: message}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return strings.TrimRight(v, "/")
}
