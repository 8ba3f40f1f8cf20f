package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/maheshrc27/postflow/internal/content"
	"github.com/maheshrc27/postflow/internal/events"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Audit log statuses.
const (
	LogStatusPosted   = "posted"
	LogStatusFailed   = "failed"
	LogStatusRetrying = "retrying"
)

type DispatchOptions struct {
	// MonthlyQuota caps publishes per user, platform and calendar month.
	// Zero disables the cap.
	MonthlyQuota int
	// MaxRetries bounds redeliveries after upstream timeouts.
	MaxRetries int
}

type DispatchService interface {
	queue.Dispatcher
}

type dispatchService struct {
	pr       repository.PostRepository
	sr       repository.ScheduleRepository
	cr       repository.ConnectedPlatformRepository
	ur       repository.UsageRepository
	lr       repository.PostLogRepository
	ma       repository.MediaAssetRepository
	tokens   TokenService
	adapters *platform.Registry
	content  *content.Validator
	events   events.Publisher
	opts     DispatchOptions
	now      func() time.Time
}

func NewDispatchService(
	pr repository.PostRepository,
	sr repository.ScheduleRepository,
	cr repository.ConnectedPlatformRepository,
	ur repository.UsageRepository,
	lr repository.PostLogRepository,
	ma repository.MediaAssetRepository,
	tokens TokenService,
	adapters *platform.Registry,
	validator *content.Validator,
	bus events.Publisher,
	opts DispatchOptions) DispatchService {
	if validator == nil {
		validator = content.NewValidator(content.DefaultMaxLength)
	}
	if bus == nil {
		bus = events.Discard{}
	}
	return &dispatchService{
		pr:       pr,
		sr:       sr,
		cr:       cr,
		ur:       ur,
		lr:       lr,
		ma:       ma,
		tokens:   tokens,
		adapters: adapters,
		content:  validator,
		events:   bus,
		opts:     opts,
		now:      time.Now,
	}
}

// dispatchRun is the state of one delivery once the post is in posting.
type dispatchRun struct {
	attemptID string
	post      *models.Post
	schedule  *models.PostSchedule
	platform  platform.Platform
	log       zerolog.Logger
	settled   bool
}

func (s *dispatchService) Dispatch(ctx context.Context, msg queue.DispatchMessage) (err error) {
	attemptID := uuid.NewString()
	logger := log.With().
		Str("attempt_id", attemptID).
		Int64("post_id", msg.PostID).
		Int64("schedule_id", msg.ScheduleID).
		Str("platform", msg.Platform).
		Logger()

	p, err := platform.Parse(msg.Platform)
	if err != nil {
		return invalid("platform", "%s", err.Error())
	}

	var schedule *models.PostSchedule
	if msg.ScheduleID != 0 {
		schedule, err = s.sr.GetByID(ctx, msg.ScheduleID)
		if err != nil {
			return fmt.Errorf("error loading schedule: %w", err)
		}
		if schedule == nil {
			logger.Warn().Msg("schedule no longer exists")
			return fmt.Errorf("schedule %d: %w", msg.ScheduleID, ErrNotFound)
		}
		if schedule.PostID != msg.PostID || schedule.Platform != p.String() {
			return invalid("schedule_id", "schedule %d does not belong to post %d on %s", schedule.ID, msg.PostID, p)
		}
		// Queues deliver at least once; a settled row means this is a redelivery.
		if schedule.Terminal() {
			logger.Info().Str("status", schedule.Status).Msg("schedule already settled, skipping redelivery")
			return nil
		}
	}

	post, err := s.pr.GetByID(ctx, msg.PostID)
	if err != nil {
		return fmt.Errorf("error loading post: %w", err)
	}
	if post == nil {
		logger.Warn().Msg("post no longer exists")
		return fmt.Errorf("post %d: %w", msg.PostID, ErrNotFound)
	}
	if schedule == nil && post.Status == models.PostStatusPosted {
		logger.Info().Msg("post already published, skipping redelivery")
		return nil
	}

	if err := s.pr.UpdateStatus(ctx, post.ID, models.PostStatusPosting, nil); err != nil {
		return fmt.Errorf("error marking post posting: %w", err)
	}
	post.Status = models.PostStatusPosting
	s.publishEvent(post, models.PostStatusPosting)

	run := &dispatchRun{
		attemptID: attemptID,
		post:      post,
		schedule:  schedule,
		platform:  p,
		log:       logger.With().Int64("user_id", post.UserID).Logger(),
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch panicked: %v", r)
			run.log.Error().Str("panic", fmt.Sprint(r)).Msg("dispatch panicked")
		}
		if !run.settled {
			cause := err
			if cause == nil {
				cause = errors.New("dispatch ended without a result")
			}
			s.fail(ctx, run, cause)
		}
	}()

	return s.publish(ctx, run)
}

func (s *dispatchService) publish(ctx context.Context, run *dispatchRun) error {
	post := run.post

	cp, err := s.cr.GetConnected(ctx, post.UserID, run.platform.String())
	if err != nil {
		return fmt.Errorf("error loading credential: %w", err)
	}
	if cp == nil {
		return s.fail(ctx, run, fmt.Errorf("%s %w", run.platform, ErrPlatformNotConnected))
	}

	cred, err := s.tokens.EnsureFresh(ctx, cp)
	if err != nil {
		if errors.Is(err, ErrUpstreamTimeout) {
			return s.retry(ctx, run, err)
		}
		return s.fail(ctx, run, err)
	}

	text, err := s.content.Sanitize(post.Content)
	if err != nil {
		return s.fail(ctx, run, fmt.Errorf("%w: %v", ErrContentRejected, err))
	}

	month := s.now().UTC().Format("2006-01")
	if s.opts.MonthlyQuota > 0 {
		used, err := s.ur.Get(ctx, post.UserID, run.platform.String(), month)
		if err != nil {
			return fmt.Errorf("error reading usage: %w", err)
		}
		if used >= s.opts.MonthlyQuota {
			return s.fail(ctx, run, fmt.Errorf("%w: %d of %d %s posts used this month", ErrQuotaExceeded, used, s.opts.MonthlyQuota, run.platform))
		}
	}

	assets, err := s.ma.ListByPostID(ctx, post.ID)
	if err != nil {
		return fmt.Errorf("error loading media: %w", err)
	}
	mediaURLs := make([]string, 0, len(assets))
	for _, a := range assets {
		mediaURLs = append(mediaURLs, a.FileURL)
	}

	adapter, err := s.adapters.Adapter(run.platform)
	if err != nil {
		return s.fail(ctx, run, err)
	}

	result, err := adapter.Publish(ctx, cred, platform.Publication{Text: text, MediaURLs: mediaURLs})
	if err != nil {
		if errors.Is(err, ErrUpstreamTimeout) {
			return s.retry(ctx, run, err)
		}
		return s.fail(ctx, run, err)
	}

	s.succeed(ctx, run, result, month)
	return nil
}

func (s *dispatchService) succeed(ctx context.Context, run *dispatchRun, result *platform.Result, month string) {
	ctx = context.WithoutCancel(ctx)
	run.settled = true
	post := run.post

	if _, err := s.ur.Increment(ctx, post.UserID, run.platform.String(), month); err != nil {
		run.log.Error().Err(err).Msg("could not record platform usage")
	}
	if err := s.pr.MarkPosted(ctx, post.ID, s.now()); err != nil {
		run.log.Error().Err(err).Msg("could not mark post posted")
	}
	if run.schedule != nil {
		if err := s.sr.UpdateStatus(ctx, run.schedule.ID, models.ScheduleStatusExecuted, nil); err != nil {
			run.log.Error().Err(err).Msg("could not mark schedule executed")
		}
	}

	s.audit(ctx, run, LogStatusPosted, fmt.Sprintf("published as %s", result.PostID))
	s.publishEvent(post, models.PostStatusPosted)
	run.log.Info().Str("platform_post_id", result.PostID).Msg("post published")
}

// fail records cause as the terminal state of the run and returns it.
func (s *dispatchService) fail(ctx context.Context, run *dispatchRun, cause error) error {
	ctx = context.WithoutCancel(ctx)
	run.settled = true
	msg := cause.Error()

	if err := s.pr.UpdateStatus(ctx, run.post.ID, models.PostStatusFailed, &msg); err != nil {
		run.log.Error().Err(err).Msg("could not mark post failed")
	}
	if run.schedule != nil {
		if err := s.sr.UpdateStatus(ctx, run.schedule.ID, models.ScheduleStatusFailed, &msg); err != nil {
			run.log.Error().Err(err).Msg("could not mark schedule failed")
		}
	}

	s.audit(ctx, run, LogStatusFailed, msg)
	s.publishEvent(run.post, models.PostStatusFailed)
	run.log.Warn().Err(cause).Msg("dispatch failed")
	return cause
}

// retry puts the post back to scheduled so the queue can redeliver, until
// the schedule has used up its retries.
func (s *dispatchService) retry(ctx context.Context, run *dispatchRun, cause error) error {
	if run.schedule == nil || run.schedule.RetryCount >= s.opts.MaxRetries {
		s.fail(ctx, run, cause)
		return fmt.Errorf("giving up after %d retries: %v", s.opts.MaxRetries, cause)
	}

	ctx = context.WithoutCancel(ctx)
	count, err := s.sr.IncrementRetry(ctx, run.schedule.ID)
	if err != nil {
		return s.fail(ctx, run, cause)
	}

	run.settled = true
	msg := cause.Error()
	if err := s.pr.UpdateStatus(ctx, run.post.ID, models.PostStatusScheduled, &msg); err != nil {
		run.log.Error().Err(err).Msg("could not return post to scheduled")
	}

	s.audit(ctx, run, LogStatusRetrying, fmt.Sprintf("attempt %d of %d: %s", count, s.opts.MaxRetries, msg))
	s.publishEvent(run.post, models.PostStatusScheduled)
	run.log.Warn().Err(cause).Int("retry", count).Msg("upstream timeout, awaiting redelivery")
	return fmt.Errorf("retry %d: %w", count, cause)
}

func (s *dispatchService) audit(ctx context.Context, run *dispatchRun, status, message string) {
	entry := &models.PostLog{
		PostID:    run.post.ID,
		UserID:    run.post.UserID,
		Platform:  run.platform.String(),
		AttemptID: run.attemptID,
		Status:    status,
		Message:   message,
	}
	if run.schedule != nil {
		id := run.schedule.ID
		entry.ScheduleID = &id
	}
	if _, err := s.lr.Create(ctx, entry); err != nil {
		run.log.Error().Err(err).Msg("could not write post log")
	}
}

func (s *dispatchService) publishEvent(post *models.Post, status string) {
	s.events.Publish(events.PostEvent{
		Type:   events.EventUpdate,
		UserID: post.UserID,
		PostID: post.ID,
		Status: status,
		Time:   s.now(),
	})
}
