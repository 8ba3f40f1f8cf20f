package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maheshrc27/postflow/internal/events"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/scheduling"
	"github.com/maheshrc27/postflow/internal/transfer"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBulkHorizon       = 365 * 24 * time.Hour
	DefaultRescheduleHorizon = 7 * 24 * time.Hour
)

// Horizons bound how far ahead each flow may schedule. Bulk scheduling and
// single-post rescheduling use different limits.
type Horizons struct {
	Bulk       time.Duration
	Reschedule time.Duration
}

type ScheduleResult struct {
	PostID      int64     `json:"post_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Attempts    []Attempt `json:"attempts"`
	Error       string    `json:"error,omitempty"`
}

// Scheduled reports whether at least one platform was registered.
func (r *ScheduleResult) Scheduled() bool {
	for _, a := range r.Attempts {
		if a.Succeeded() {
			return true
		}
	}
	return false
}

type BulkScheduleResult struct {
	Items   []*ScheduleResult `json:"items"`
	Charged int               `json:"charged"`
	Balance int               `json:"balance"`
}

type ScheduleService interface {
	Schedule(ctx context.Context, userID, postID int64, req *transfer.ScheduleRequest) (*ScheduleResult, error)
	BulkSchedule(ctx context.Context, userID int64, req *transfer.BulkScheduleRequest) (*BulkScheduleResult, error)
	Preview(ctx context.Context, req *transfer.PreviewRequest) ([]time.Time, error)
	Cancel(ctx context.Context, userID, postID int64) error
	List(ctx context.Context, userID, postID int64) ([]*models.PostSchedule, error)
}

type scheduleService struct {
	pr       repository.PostRepository
	sr       repository.ScheduleRepository
	rr       repository.ScheduleRuleRepository
	credits  CreditService
	queue    queue.Publisher
	stagger  *scheduling.StaggerPlanner
	events   events.Publisher
	horizons Horizons
	now      func() time.Time
}

func NewScheduleService(
	pr repository.PostRepository,
	sr repository.ScheduleRepository,
	rr repository.ScheduleRuleRepository,
	credits CreditService,
	publisher queue.Publisher,
	stagger *scheduling.StaggerPlanner,
	bus events.Publisher,
	horizons Horizons) ScheduleService {
	if horizons.Bulk <= 0 {
		horizons.Bulk = DefaultBulkHorizon
	}
	if horizons.Reschedule <= 0 {
		horizons.Reschedule = DefaultRescheduleHorizon
	}
	if bus == nil {
		bus = events.Discard{}
	}
	return &scheduleService{
		pr:       pr,
		sr:       sr,
		rr:       rr,
		credits:  credits,
		queue:    publisher,
		stagger:  stagger,
		events:   bus,
		horizons: horizons,
		now:      time.Now,
	}
}

func (s *scheduleService) Schedule(ctx context.Context, userID, postID int64, req *transfer.ScheduleRequest) (*ScheduleResult, error) {
	post, err := ownedPost(ctx, s.pr, userID, postID)
	if err != nil {
		return nil, err
	}
	if err := schedulable(post); err != nil {
		return nil, err
	}

	platforms, err := parsePlatforms(req.Platforms)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := checkInstant(req.ScheduledAt, now, s.horizons.Reschedule); err != nil {
		return nil, err
	}

	cost := s.credits.Cost(platforms)
	if _, err := s.credits.Charge(ctx, userID, cost); err != nil {
		return nil, err
	}

	result := s.register(ctx, post, platforms, req.ScheduledAt, nil)
	if !result.Scheduled() {
		s.refund(ctx, userID, cost)
		batchErr := &BatchError{PostID: post.ID, Attempts: result.Attempts}
		s.abandon(ctx, post, batchErr)
		return nil, batchErr
	}

	if err := s.markScheduled(ctx, post, platforms, req.ScheduledAt); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *scheduleService) BulkSchedule(ctx context.Context, userID int64, req *transfer.BulkScheduleRequest) (*BulkScheduleResult, error) {
	cadence, ruleID, tz, err := s.resolveCadence(ctx, userID, req.RuleID, req.Rule, req.Timezone)
	if err != nil {
		return nil, err
	}

	now := s.now()
	start, err := startDate(req.StartDate, tz, now)
	if err != nil {
		return nil, err
	}

	posts := make([]*models.Post, 0, len(req.PostIDs))
	targets := make(map[int64][]string, len(req.PostIDs))
	for _, id := range req.PostIDs {
		post, err := ownedPost(ctx, s.pr, userID, id)
		if err != nil {
			return nil, err
		}
		if err := schedulable(post); err != nil {
			return nil, err
		}

		raw := req.Platforms
		if len(raw) == 0 {
			raw = post.Platforms
		}
		platforms, err := parsePlatforms(raw)
		if err != nil {
			return nil, fmt.Errorf("post %d: %w", post.ID, err)
		}

		posts = append(posts, post)
		targets[post.ID] = platforms
	}

	assignments, err := scheduling.AssignSlots(posts, cadence, start, now)
	if err != nil {
		return nil, cadenceError(err)
	}

	// Every slot must pass the horizon before anything is charged.
	total := 0
	for _, a := range assignments {
		if err := checkInstant(a.At, now, s.horizons.Bulk); err != nil {
			return nil, fmt.Errorf("post %d: %w", a.Item.ID, err)
		}
		total += s.credits.Cost(targets[a.Item.ID])
	}

	balance, err := s.credits.Charge(ctx, userID, total)
	if err != nil {
		return nil, err
	}

	out := &BulkScheduleResult{Items: make([]*ScheduleResult, 0, len(assignments)), Charged: total}
	for _, a := range assignments {
		post, platforms := a.Item, targets[a.Item.ID]

		result := s.register(ctx, post, platforms, a.At, ruleID)
		if !result.Scheduled() {
			cost := s.credits.Cost(platforms)
			if s.refund(ctx, userID, cost) {
				out.Charged -= cost
				balance += cost
			}
			batchErr := &BatchError{PostID: post.ID, Attempts: result.Attempts}
			s.abandon(ctx, post, batchErr)
			result.Error = batchErr.Error()
		} else if err := s.markScheduled(ctx, post, platforms, a.At); err != nil {
			result.Error = err.Error()
		}
		out.Items = append(out.Items, result)
	}
	out.Balance = balance

	log.Info().
		Int64("user_id", userID).
		Int("posts", len(assignments)).
		Int("charged", out.Charged).
		Msg("bulk schedule completed")
	return out, nil
}

func (s *scheduleService) Preview(ctx context.Context, req *transfer.PreviewRequest) ([]time.Time, error) {
	cadence := cadenceFromInput(&req.Rule)
	if err := cadenceError(cadence.Validate()); err != nil {
		return nil, err
	}

	tz := req.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	now := s.now()
	start, err := startDate(req.StartDate, tz, now)
	if err != nil {
		return nil, err
	}

	slots, err := scheduling.PreviewSlots(req.Count, cadence, start, now)
	if err != nil {
		return nil, cadenceError(err)
	}
	return slots, nil
}

func (s *scheduleService) Cancel(ctx context.Context, userID, postID int64) error {
	post, err := ownedPost(ctx, s.pr, userID, postID)
	if err != nil {
		return err
	}
	if post.Status == models.PostStatusPosting || post.Status == models.PostStatusPosted {
		return invalid("post", "a %s post cannot be cancelled", post.Status)
	}

	if err := s.cancelActive(ctx, post.ID, ""); err != nil {
		return err
	}
	if err := s.pr.UpdateStatus(ctx, post.ID, models.PostStatusDraft, nil); err != nil {
		return fmt.Errorf("error resetting post status: %w", err)
	}

	s.events.Publish(events.PostEvent{Type: events.EventUpdate, UserID: userID, PostID: post.ID, Status: models.PostStatusDraft, Time: s.now()})
	return nil
}

func (s *scheduleService) List(ctx context.Context, userID, postID int64) ([]*models.PostSchedule, error) {
	if _, err := ownedPost(ctx, s.pr, userID, postID); err != nil {
		return nil, err
	}
	schedules, err := s.sr.ListByPostID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error listing schedules: %w", err)
	}
	return schedules, nil
}

// register inserts and enqueues one schedule row per platform, in order.
// A failing platform is recorded and does not stop the others.
func (s *scheduleService) register(ctx context.Context, post *models.Post, platforms []string, at time.Time, ruleID *int64) *ScheduleResult {
	result := &ScheduleResult{PostID: post.ID, ScheduledAt: at}

	for _, p := range platforms {
		logger := log.With().Int64("post_id", post.ID).Str("platform", p).Logger()

		if err := s.cancelActive(ctx, post.ID, p); err != nil {
			result.Attempts = append(result.Attempts, Attempt{Platform: p, Stage: StagePersist, Error: err.Error()})
			continue
		}

		from, to := s.stagger.Range(at)
		existing, err := s.sr.ListActiveTimes(ctx, post.UserID, p, from, to)
		if err != nil {
			logger.Warn().Err(err).Msg("stagger lookup failed, dispatching without jitter")
			existing = nil
		}

		scheduleID, err := s.sr.Create(ctx, nil, &models.PostSchedule{
			PostID:      post.ID,
			UserID:      post.UserID,
			RuleID:      ruleID,
			Platform:    p,
			ScheduledAt: at,
			Status:      models.ScheduleStatusScheduled,
		})
		if err != nil {
			result.Attempts = append(result.Attempts, Attempt{Platform: p, Stage: StagePersist, Error: err.Error()})
			continue
		}

		delay := at.Sub(s.now()) + s.stagger.Delay(at, existing)
		messageID, err := s.publish(ctx, queue.DispatchMessage{PostID: post.ID, Platform: p, ScheduleID: scheduleID}, delay)
		if err != nil {
			stage := StageQueueRejected
			if errors.Is(err, queue.ErrQueueNotConfigured) {
				stage = StageQueueNotConfigured
			}
			msg := fmt.Sprintf("%s: %v", stage, err)
			if uerr := s.sr.UpdateStatus(ctx, scheduleID, models.ScheduleStatusFailed, &msg); uerr != nil {
				logger.Error().Err(uerr).Int64("schedule_id", scheduleID).Msg("could not mark schedule failed")
			}
			logger.Warn().Err(err).Str("stage", stage).Int64("schedule_id", scheduleID).Msg("queue registration failed")
			result.Attempts = append(result.Attempts, Attempt{Platform: p, ScheduleID: scheduleID, Stage: stage, Error: err.Error()})
			continue
		}

		if err := s.sr.SetMessageID(ctx, scheduleID, messageID); err != nil {
			logger.Error().Err(err).Int64("schedule_id", scheduleID).Msg("could not store queue message id")
		}

		logger.Info().
			Int64("schedule_id", scheduleID).
			Str("message_id", messageID).
			Dur("delay", delay).
			Msg("dispatch registered")
		result.Attempts = append(result.Attempts, Attempt{Platform: p, ScheduleID: scheduleID, MessageID: messageID})
	}

	if result.Scheduled() {
		s.dropPlatforms(ctx, post.ID, platforms)
	}
	return result
}

// dropPlatforms cancels pending rows for platforms the post no longer targets.
func (s *scheduleService) dropPlatforms(ctx context.Context, postID int64, platforms []string) {
	keep := make(map[string]bool, len(platforms))
	for _, p := range platforms {
		keep[p] = true
	}

	schedules, err := s.sr.ListByPostID(ctx, postID)
	if err != nil {
		log.Error().Err(err).Int64("post_id", postID).Msg("could not list schedules for dropped platforms")
		return
	}
	for _, sc := range schedules {
		if sc.Terminal() || keep[sc.Platform] {
			continue
		}
		keep[sc.Platform] = true
		if err := s.cancelActive(ctx, postID, sc.Platform); err != nil {
			log.Error().Err(err).Int64("post_id", postID).Str("platform", sc.Platform).Msg("could not cancel dropped platform")
		}
	}
}

// abandon fails a scheduled post that a rejected reschedule left without any
// pending dispatch.
func (s *scheduleService) abandon(ctx context.Context, post *models.Post, cause error) {
	if post.Status != models.PostStatusScheduled {
		return
	}

	schedules, err := s.sr.ListByPostID(ctx, post.ID)
	if err != nil {
		log.Error().Err(err).Int64("post_id", post.ID).Msg("could not list schedules after failed registration")
		return
	}
	for _, sc := range schedules {
		if !sc.Terminal() {
			return
		}
	}

	msg := cause.Error()
	if err := s.pr.UpdateStatus(ctx, post.ID, models.PostStatusFailed, &msg); err != nil {
		log.Error().Err(err).Int64("post_id", post.ID).Msg("could not mark post failed")
		return
	}
	s.events.Publish(events.PostEvent{Type: events.EventUpdate, UserID: post.UserID, PostID: post.ID, Status: models.PostStatusFailed, Time: s.now()})
}

func (s *scheduleService) publish(ctx context.Context, msg queue.DispatchMessage, delay time.Duration) (string, error) {
	if s.queue == nil {
		return "", queue.ErrQueueNotConfigured
	}
	return s.queue.Publish(ctx, msg, delay)
}

// cancelActive cancels pending rows and retracts their queue messages. A
// message that cannot be retracted is left to the idempotency guard.
func (s *scheduleService) cancelActive(ctx context.Context, postID int64, platform string) error {
	cancelled, err := s.sr.CancelActive(ctx, postID, platform)
	if err != nil {
		return fmt.Errorf("error cancelling active schedules: %w", err)
	}
	retract(ctx, s.queue, cancelled)
	return nil
}

func (s *scheduleService) markScheduled(ctx context.Context, post *models.Post, platforms []string, at time.Time) error {
	if err := s.pr.MarkScheduled(ctx, post.ID, platforms, at); err != nil {
		return fmt.Errorf("error marking post scheduled: %w", err)
	}
	s.events.Publish(events.PostEvent{Type: events.EventUpsert, UserID: post.UserID, PostID: post.ID, Status: models.PostStatusScheduled, Time: s.now()})
	return nil
}

func (s *scheduleService) refund(ctx context.Context, userID int64, amount int) bool {
	if err := s.credits.Refund(ctx, userID, amount); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Int("amount", amount).Msg("refund failed")
		return false
	}
	return true
}

func (s *scheduleService) resolveCadence(ctx context.Context, userID int64, ruleID *int64, input *transfer.RuleInput, tz string) (scheduling.Cadence, *int64, string, error) {
	var cadence scheduling.Cadence
	switch {
	case ruleID != nil:
		rule, err := ownedRule(ctx, s.rr, userID, *ruleID)
		if err != nil {
			return cadence, nil, "", err
		}
		if !rule.Active {
			return cadence, nil, "", invalid("rule_id", "schedule rule %d is inactive", rule.ID)
		}
		cadence = cadenceFromRule(rule)
		if tz == "" {
			tz = rule.Timezone
		}
	case input != nil:
		cadence = cadenceFromInput(input)
	default:
		return cadence, nil, "", invalid("rule", "a rule or rule_id is required")
	}

	if err := cadenceError(cadence.Validate()); err != nil {
		return cadence, nil, "", err
	}
	if tz == "" {
		tz = defaultTimezone
	}
	return cadence, ruleID, tz, nil
}

// retract pulls queue messages for cancelled rows, best effort.
func retract(ctx context.Context, publisher queue.Publisher, cancelled []*models.PostSchedule) {
	if publisher == nil {
		return
	}
	for _, sc := range cancelled {
		if sc.MessageID == nil || *sc.MessageID == "" {
			continue
		}
		if err := publisher.Cancel(ctx, *sc.MessageID); err != nil {
			log.Warn().Err(err).
				Int64("schedule_id", sc.ID).
				Str("message_id", *sc.MessageID).
				Msg("could not retract queue message")
		}
	}
}

func checkInstant(at, now time.Time, horizon time.Duration) error {
	delay := at.Sub(now)
	if delay <= 0 {
		return invalid("scheduled_at", "must be in the future")
	}
	if delay > horizon {
		return invalid("scheduled_at", "must be within %s from now", horizon)
	}
	return nil
}

func schedulable(post *models.Post) error {
	switch post.Status {
	case models.PostStatusPosting, models.PostStatusPosted:
		return invalid("post", "post %d is already %s", post.ID, post.Status)
	}
	return nil
}

func parsePlatforms(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, invalid("platforms", "at least one platform is required")
	}
	seen := make(map[platform.Platform]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		p, err := platform.Parse(r)
		if err != nil {
			return nil, invalid("platforms", "%s", err.Error())
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p.String())
	}
	return out, nil
}

func startDate(raw, tz string, now time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, invalid("timezone", "unknown timezone %q", tz)
	}
	if raw == "" {
		return now.In(loc), nil
	}
	start, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return time.Time{}, invalid("start_date", "must be YYYY-MM-DD")
	}
	return start, nil
}
