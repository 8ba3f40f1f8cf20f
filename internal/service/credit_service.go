package service

import (
	"context"
	"fmt"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/rs/zerolog/log"
)

// CostTable is the static per-platform price of scheduling a post.
type CostTable struct {
	Twitter int
	Default int
}

func (t CostTable) Cost(platforms []string) int {
	total := 0
	for _, p := range platforms {
		if p == platform.Twitter.String() {
			total += t.Twitter
		} else {
			total += t.Default
		}
	}
	return total
}

type CreditService interface {
	Cost(platforms []string) int
	Balance(ctx context.Context, userID int64) (*models.UserCredits, error)
	// Charge deducts cost with a compare-and-swap against the balance it read.
	Charge(ctx context.Context, userID int64, cost int) (int, error)
	Refund(ctx context.Context, userID int64, amount int) error
	MonthlyAllotment() int
}

type creditService struct {
	cr        repository.CreditRepository
	costs     CostTable
	allotment int
	now       func() time.Time
}

func NewCreditService(cr repository.CreditRepository, costs CostTable, monthlyAllotment int) CreditService {
	return &creditService{
		cr:        cr,
		costs:     costs,
		allotment: monthlyAllotment,
		now:       time.Now,
	}
}

func (s *creditService) Cost(platforms []string) int {
	return s.costs.Cost(platforms)
}

func (s *creditService) MonthlyAllotment() int {
	return s.allotment
}

// monthStart is the first day of the current calendar month on the server
// clock, in UTC.
func (s *creditService) monthStart() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func (s *creditService) load(ctx context.Context, userID int64) (*models.UserCredits, error) {
	credits, err := s.cr.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error reading credits: %w", err)
	}
	if credits != nil {
		return credits, nil
	}

	if err := s.cr.Init(ctx, userID, s.allotment, s.monthStart()); err != nil {
		return nil, fmt.Errorf("error creating credit ledger: %w", err)
	}
	credits, err = s.cr.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error reading credits: %w", err)
	}
	if credits == nil {
		return nil, fmt.Errorf("credit ledger for user %d: %w", userID, ErrNotFound)
	}
	return credits, nil
}

// effective applies the lazy monthly reset to a stored row without writing it.
func (s *creditService) effective(c *models.UserCredits) (int, time.Time) {
	start := s.monthStart()
	if c.LastResetDate.Before(start) {
		return s.allotment, start
	}
	return c.Balance, c.LastResetDate
}

func (s *creditService) Balance(ctx context.Context, userID int64) (*models.UserCredits, error) {
	credits, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	balance, resetDate := s.effective(credits)
	if resetDate.Equal(credits.LastResetDate) {
		return credits, nil
	}

	swapped, err := s.cr.CompareAndSwap(ctx, userID, credits, balance, resetDate)
	if err != nil {
		return nil, fmt.Errorf("error resetting credits: %w", err)
	}
	if !swapped {
		// Someone else wrote first; their row already carries the reset.
		return s.load(ctx, userID)
	}

	log.Info().Int64("user_id", userID).Int("balance", balance).Msg("monthly credits reset")
	return &models.UserCredits{UserID: userID, Balance: balance, LastResetDate: resetDate, UpdatedAt: s.now()}, nil
}

func (s *creditService) Charge(ctx context.Context, userID int64, cost int) (int, error) {
	if cost < 0 {
		return 0, invalid("cost", "must not be negative")
	}

	credits, err := s.load(ctx, userID)
	if err != nil {
		return 0, err
	}

	balance, resetDate := s.effective(credits)
	if balance < cost {
		return balance, fmt.Errorf("need %d credits, have %d: %w", cost, balance, ErrInsufficientCredits)
	}

	swapped, err := s.cr.CompareAndSwap(ctx, userID, credits, balance-cost, resetDate)
	if err != nil {
		return 0, fmt.Errorf("error charging credits: %w", err)
	}
	if !swapped {
		log.Warn().Int64("user_id", userID).Int("cost", cost).Msg("credit compare-and-swap missed")
		return 0, ErrTransactionConflict
	}

	return balance - cost, nil
}

func (s *creditService) Refund(ctx context.Context, userID int64, amount int) error {
	if amount <= 0 {
		return nil
	}
	if err := s.cr.Add(ctx, userID, amount); err != nil {
		return fmt.Errorf("error refunding %d credits: %w", amount, err)
	}
	log.Info().Int64("user_id", userID).Int("amount", amount).Msg("credits refunded")
	return nil
}
