package service

import (
	"context"
	"fmt"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/rs/zerolog/log"
)

type PlatformService interface {
	List(ctx context.Context, userID int64) ([]*models.ConnectedPlatform, error)
	Revoke(ctx context.Context, userID, accountID int64) error
}

type platformService struct {
	cr repository.ConnectedPlatformRepository
}

func NewPlatformService(cr repository.ConnectedPlatformRepository) PlatformService {
	return &platformService{cr: cr}
}

func (s *platformService) List(ctx context.Context, userID int64) ([]*models.ConnectedPlatform, error) {
	accounts, err := s.cr.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting connected platforms: %w", err)
	}
	return accounts, nil
}

// Revoke disconnects a credential. Pending dispatches for that platform
// will fail with "not connected".
func (s *platformService) Revoke(ctx context.Context, userID, accountID int64) error {
	if accountID <= 0 {
		return invalid("id", "is not valid")
	}

	account, err := s.cr.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("error getting connected platform: %w", err)
	}
	if account == nil || account.UserID != userID {
		return fmt.Errorf("connected platform %d: %w", accountID, ErrNotFound)
	}

	if err := s.cr.UpdateStatus(ctx, account.ID, models.CredentialStatusRevoked); err != nil {
		return fmt.Errorf("error revoking platform: %w", err)
	}

	log.Info().Int64("user_id", userID).Str("platform", account.Platform).Msg("platform revoked")
	return nil
}
