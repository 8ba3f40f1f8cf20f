package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/rs/zerolog/log"
)

const (
	refreshLookahead = 30 * time.Minute
	refreshLimit     = 10
)

// TokenRefreshJob refreshes credentials shortly before they expire so that
// dispatch rarely has to refresh inline.
type TokenRefreshJob struct {
	cr     repository.ConnectedPlatformRepository
	tokens service.TokenService
	now    func() time.Time
}

func NewTokenRefreshJob(cr repository.ConnectedPlatformRepository, tokens service.TokenService) *TokenRefreshJob {
	return &TokenRefreshJob{
		cr:     cr,
		tokens: tokens,
		now:    time.Now,
	}
}

// RefreshTokens is the cron entry point.
func (j *TokenRefreshJob) RefreshTokens() {
	j.Run(context.Background())
}

// Run refreshes every credential expiring within the lookahead and returns
// how many were refreshed.
func (j *TokenRefreshJob) Run(ctx context.Context) int {
	accounts, err := j.cr.ListExpiring(ctx, j.now().Add(refreshLookahead))
	if err != nil {
		log.Error().Err(err).Msg("could not list expiring credentials")
		return 0
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		refreshed int
	)
	semaphore := make(chan struct{}, refreshLimit)

	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.ConnectedPlatform) {
			defer wg.Done()
			defer func() { <-semaphore }()

			err := j.tokens.Refresh(ctx, acc)
			switch {
			case err == nil:
				mu.Lock()
				refreshed++
				mu.Unlock()
			case errors.Is(err, service.ErrRefreshNotSupported):
				log.Debug().Str("platform", acc.Platform).Int64("credential_id", acc.ID).Msg("skipping token refresh")
			default:
				log.Warn().Err(err).Str("platform", acc.Platform).Int64("credential_id", acc.ID).Msg("unable to refresh token")
			}
		}(acc)
	}

	wg.Wait()

	if len(accounts) > 0 {
		log.Info().Int("expiring", len(accounts)).Int("refreshed", refreshed).Msg("token refresh finished")
	}
	return refreshed
}
