package service

import (
	"context"
	"fmt"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
)

type UserService interface {
	GetUserInfo(ctx context.Context, id int64) (*models.User, error)
	UpdateTimezone(ctx context.Context, id int64, timezone string) error
}

type userService struct {
	u repository.UserRepository
}

func NewUserService(u repository.UserRepository) UserService {
	return &userService{
		u: u,
	}
}

func (s *userService) GetUserInfo(ctx context.Context, id int64) (*models.User, error) {
	user, isExist, err := s.u.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting user info: %w", err)
	}
	if !isExist {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return user, nil
}

func (s *userService) UpdateTimezone(ctx context.Context, id int64, timezone string) error {
	if _, err := time.LoadLocation(timezone); err != nil {
		return invalid("timezone", "unknown timezone %q", timezone)
	}
	if err := s.u.UpdateTimezone(ctx, id, timezone); err != nil {
		return fmt.Errorf("error updating timezone: %w", err)
	}
	return nil
}
