package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/scheduling"
	"github.com/maheshrc27/postflow/internal/transfer"
)

const defaultTimezone = "UTC"

type RuleService interface {
	Create(ctx context.Context, userID int64, req *transfer.RuleRequest) (int64, error)
	List(ctx context.Context, userID int64) ([]*models.ScheduleRule, error)
	Get(ctx context.Context, userID, ruleID int64) (*models.ScheduleRule, error)
	Update(ctx context.Context, userID, ruleID int64, req *transfer.RuleRequest) error
	SetActive(ctx context.Context, userID, ruleID int64, active bool) error
	Remove(ctx context.Context, userID, ruleID int64) error
}

type ruleService struct {
	rr repository.ScheduleRuleRepository
}

func NewRuleService(rr repository.ScheduleRuleRepository) RuleService {
	return &ruleService{rr: rr}
}

func (s *ruleService) Create(ctx context.Context, userID int64, req *transfer.RuleRequest) (int64, error) {
	rule, err := ruleFromRequest(req)
	if err != nil {
		return 0, err
	}
	rule.UserID = userID

	id, err := s.rr.Create(ctx, rule)
	if err != nil {
		return 0, fmt.Errorf("error creating schedule rule: %w", err)
	}
	return id, nil
}

func (s *ruleService) List(ctx context.Context, userID int64) ([]*models.ScheduleRule, error) {
	rules, err := s.rr.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing schedule rules: %w", err)
	}
	return rules, nil
}

func (s *ruleService) Get(ctx context.Context, userID, ruleID int64) (*models.ScheduleRule, error) {
	return ownedRule(ctx, s.rr, userID, ruleID)
}

func (s *ruleService) Update(ctx context.Context, userID, ruleID int64, req *transfer.RuleRequest) error {
	existing, err := ownedRule(ctx, s.rr, userID, ruleID)
	if err != nil {
		return err
	}

	rule, err := ruleFromRequest(req)
	if err != nil {
		return err
	}
	rule.ID = existing.ID
	rule.UserID = existing.UserID
	if req.Active == nil {
		rule.Active = existing.Active
	}

	if err := s.rr.Update(ctx, rule); err != nil {
		return fmt.Errorf("error updating schedule rule: %w", err)
	}
	return nil
}

func (s *ruleService) SetActive(ctx context.Context, userID, ruleID int64, active bool) error {
	if _, err := ownedRule(ctx, s.rr, userID, ruleID); err != nil {
		return err
	}
	if err := s.rr.SetActive(ctx, ruleID, active); err != nil {
		return fmt.Errorf("error toggling schedule rule: %w", err)
	}
	return nil
}

func (s *ruleService) Remove(ctx context.Context, userID, ruleID int64) error {
	if _, err := ownedRule(ctx, s.rr, userID, ruleID); err != nil {
		return err
	}
	if err := s.rr.Remove(ctx, ruleID); err != nil {
		return fmt.Errorf("error removing schedule rule: %w", err)
	}
	return nil
}

func ownedRule(ctx context.Context, rr repository.ScheduleRuleRepository, userID, ruleID int64) (*models.ScheduleRule, error) {
	rule, err := rr.GetByID(ctx, ruleID)
	if err != nil {
		return nil, fmt.Errorf("error getting schedule rule: %w", err)
	}
	if rule == nil || rule.UserID != userID {
		return nil, fmt.Errorf("schedule rule %d: %w", ruleID, ErrNotFound)
	}
	return rule, nil
}

func ruleFromRequest(req *transfer.RuleRequest) (*models.ScheduleRule, error) {
	tz := req.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, invalid("timezone", "unknown timezone %q", tz)
	}

	days := make([]int64, 0, len(req.Days))
	for _, d := range req.Days {
		days = append(days, int64(d))
	}

	rule := &models.ScheduleRule{
		Name:     req.Name,
		Type:     req.Type,
		Time:     req.Time,
		Days:     days,
		Timezone: tz,
		Active:   true,
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}
	if req.Type != string(scheduling.CadenceCustom) {
		rule.Days = []int64{}
	}

	if err := cadenceError(cadenceFromRule(rule).Validate()); err != nil {
		return nil, err
	}
	return rule, nil
}

func cadenceFromRule(rule *models.ScheduleRule) scheduling.Cadence {
	return scheduling.Cadence{
		Type: scheduling.CadenceType(rule.Type),
		Time: rule.Time,
		Days: scheduling.WeekdaysFromInts(rule.Days),
	}
}

func cadenceFromInput(in *transfer.RuleInput) scheduling.Cadence {
	days := make([]int64, 0, len(in.Days))
	for _, d := range in.Days {
		days = append(days, int64(d))
	}
	return scheduling.Cadence{
		Type: scheduling.CadenceType(in.Type),
		Time: in.Time,
		Days: scheduling.WeekdaysFromInts(days),
	}
}

// cadenceError turns cadence failures into validation errors.
func cadenceError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, scheduling.ErrNoDaysSelected), errors.Is(err, scheduling.ErrInvalidWeekday):
		return invalid("days", "%s", err.Error())
	case errors.Is(err, scheduling.ErrInvalidTimeOfDay):
		return invalid("time", "%s", err.Error())
	case errors.Is(err, scheduling.ErrUnknownCadence):
		return invalid("type", "%s", err.Error())
	case errors.Is(err, scheduling.ErrNoSlotAvailable):
		return invalid("rule", "%s", err.Error())
	}
	return err
}
