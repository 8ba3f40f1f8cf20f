package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/pkg/utils"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	TwitterTokenURL  = "https://api.twitter.com/2/oauth2/token"
	LinkedInTokenURL = "https://www.linkedin.com/oauth/v2/accessToken"
)

// ErrRefreshNotSupported is returned by Refresh for platforms whose tokens
// cannot be refreshed here.
var ErrRefreshNotSupported = errors.New("token refresh not implemented")

type OAuthClient struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
}

type TokenService interface {
	// EnsureFresh decrypts the credential, refreshing it first when the
	// access token has expired.
	EnsureFresh(ctx context.Context, cp *models.ConnectedPlatform) (platform.Credential, error)
	// Refresh exchanges the stored refresh token and persists the result.
	Refresh(ctx context.Context, cp *models.ConnectedPlatform) error
}

type tokenService struct {
	cr         repository.ConnectedPlatformRepository
	cipher     *utils.TokenCipher
	configs    map[string]*oauth2.Config
	httpClient *http.Client
	now        func() time.Time
}

// NewTokenService wires refresh for Twitter and LinkedIn. Other entries in
// clients are ignored.
func NewTokenService(
	cr repository.ConnectedPlatformRepository,
	cipher *utils.TokenCipher,
	clients map[platform.Platform]OAuthClient,
	httpClient *http.Client) TokenService {
	defaults := map[platform.Platform]string{
		platform.Twitter:  TwitterTokenURL,
		platform.LinkedIn: LinkedInTokenURL,
	}

	configs := make(map[string]*oauth2.Config, len(defaults))
	for p, tokenURL := range defaults {
		client, ok := clients[p]
		if !ok || client.ClientID == "" {
			continue
		}
		if client.TokenURL != "" {
			tokenURL = client.TokenURL
		}
		configs[p.String()] = &oauth2.Config{
			ClientID:     client.ClientID,
			ClientSecret: client.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
		}
	}

	if httpClient == nil {
		httpClient = utils.NewHTTPClient(utils.DefaultHTTPTimeout)
	}

	return &tokenService{
		cr:         cr,
		cipher:     cipher,
		configs:    configs,
		httpClient: httpClient,
		now:        time.Now,
	}
}

func (s *tokenService) EnsureFresh(ctx context.Context, cp *models.ConnectedPlatform) (platform.Credential, error) {
	logger := log.With().Int64("user_id", cp.UserID).Str("platform", cp.Platform).Logger()

	accessToken, err := s.cipher.Decrypt(cp.AccessToken)
	if err != nil {
		s.setStatus(ctx, cp, models.CredentialStatusError)
		return platform.Credential{}, fmt.Errorf("%s access token unreadable: %w", cp.Platform, ErrCredentialExpired)
	}
	cred := platform.Credential{AccessToken: accessToken, AccountID: cp.AccountID}

	if !cp.Expired(s.now()) {
		return cred, nil
	}

	if cp.RefreshToken == "" {
		s.setStatus(ctx, cp, models.CredentialStatusExpired)
		return platform.Credential{}, fmt.Errorf("%s token expired and no refresh token is stored: %w", cp.Platform, ErrCredentialExpired)
	}

	if _, ok := s.configs[cp.Platform]; !ok {
		logger.Warn().Msg("token refresh not implemented, using stored token")
		return cred, nil
	}

	token, err := s.refresh(ctx, cp)
	if err != nil {
		return platform.Credential{}, err
	}

	logger.Info().Time("expires_at", token.Expiry).Msg("token refreshed")
	return platform.Credential{AccessToken: token.AccessToken, AccountID: cp.AccountID}, nil
}

func (s *tokenService) Refresh(ctx context.Context, cp *models.ConnectedPlatform) error {
	if _, ok := s.configs[cp.Platform]; !ok {
		return fmt.Errorf("%s: %w", cp.Platform, ErrRefreshNotSupported)
	}
	_, err := s.refresh(ctx, cp)
	return err
}

func (s *tokenService) refresh(ctx context.Context, cp *models.ConnectedPlatform) (*oauth2.Token, error) {
	conf := s.configs[cp.Platform]

	refreshToken, err := s.cipher.Decrypt(cp.RefreshToken)
	if err != nil {
		s.setStatus(ctx, cp, models.CredentialStatusError)
		return nil, fmt.Errorf("%s refresh token unreadable: %w", cp.Platform, ErrCredentialExpired)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	tokenSource := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	token, err := tokenSource.Token()
	if err != nil {
		if utils.IsTimeout(err) {
			return nil, fmt.Errorf("refreshing %s token: %w", cp.Platform, ErrUpstreamTimeout)
		}
		log.Warn().Err(err).Int64("credential_id", cp.ID).Str("platform", cp.Platform).Msg("token refresh failed")
		s.setStatus(ctx, cp, models.CredentialStatusExpired)
		return nil, fmt.Errorf("refreshing %s token: %v: %w", cp.Platform, err, ErrCredentialExpired)
	}

	updated := &models.ConnectedPlatform{}
	updated.AccessToken, err = s.cipher.Encrypt(token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("error encrypting access token: %w", err)
	}
	if token.RefreshToken != "" {
		updated.RefreshToken, err = s.cipher.Encrypt(token.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("error encrypting refresh token: %w", err)
		}
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		updated.TokenExpiresAt = &expiry
	}

	if err := s.cr.SetToken(ctx, cp.ID, updated); err != nil {
		return nil, fmt.Errorf("error saving refreshed token: %w", err)
	}

	cp.AccessToken = updated.AccessToken
	if updated.RefreshToken != "" {
		cp.RefreshToken = updated.RefreshToken
	}
	if updated.TokenExpiresAt != nil {
		cp.TokenExpiresAt = updated.TokenExpiresAt
	}
	cp.Status = models.CredentialStatusConnected

	return token, nil
}

func (s *tokenService) setStatus(ctx context.Context, cp *models.ConnectedPlatform, status string) {
	if err := s.cr.UpdateStatus(ctx, cp.ID, status); err != nil {
		log.Error().Err(err).Int64("credential_id", cp.ID).Str("status", status).Msg("could not update credential status")
		return
	}
	cp.Status = status
}
