package job

import (
	"context"
	"time"

	"github.com/maheshrc27/postflow/internal/events"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/rs/zerolog/log"
)

const (
	StaleScheduleMessage = "dispatch timed out: no callback received"
	StuckPostingMessage  = "dispatch timed out while posting"
)

// ReconcileJob fails work the queue never called back for. It does not retry.
type ReconcileJob struct {
	pr     repository.PostRepository
	sr     repository.ScheduleRepository
	events events.Publisher
	grace  time.Duration
	now    func() time.Time
}

func NewReconcileJob(pr repository.PostRepository, sr repository.ScheduleRepository, bus events.Publisher, grace time.Duration) *ReconcileJob {
	if bus == nil {
		bus = events.Discard{}
	}
	return &ReconcileJob{
		pr:     pr,
		sr:     sr,
		events: bus,
		grace:  grace,
		now:    time.Now,
	}
}

// Reconcile is the cron entry point.
func (j *ReconcileJob) Reconcile() {
	j.Run(context.Background())
}

type ReconcileResult struct {
	Schedules int
	Posts     int
}

func (j *ReconcileJob) Run(ctx context.Context) ReconcileResult {
	var res ReconcileResult
	cutoff := j.now().Add(-j.grace)

	stale, err := j.sr.FailStale(ctx, cutoff, StaleScheduleMessage)
	if err != nil {
		log.Error().Err(err).Msg("could not fail stale schedules")
	}
	res.Schedules = len(stale)

	failedPosts := make(map[int64]bool)
	for _, sc := range stale {
		if failedPosts[sc.PostID] {
			continue
		}
		post, err := j.pr.GetByID(ctx, sc.PostID)
		if err != nil || post == nil || post.Status != models.PostStatusScheduled {
			continue
		}
		msg := StaleScheduleMessage
		if err := j.pr.UpdateStatus(ctx, post.ID, models.PostStatusFailed, &msg); err != nil {
			log.Error().Err(err).Int64("post_id", post.ID).Msg("could not fail stale post")
			continue
		}
		failedPosts[post.ID] = true
		j.publish(post.UserID, post.ID)
	}

	stuck, err := j.pr.FailStuckPosting(ctx, cutoff, StuckPostingMessage)
	if err != nil {
		log.Error().Err(err).Msg("could not fail stuck posts")
	}
	for _, post := range stuck {
		failedPosts[post.ID] = true
		j.publish(post.UserID, post.ID)
	}
	res.Posts = len(failedPosts)

	if res.Schedules > 0 || res.Posts > 0 {
		log.Warn().Int("schedules", res.Schedules).Int("posts", res.Posts).Msg("reconciled stale dispatches")
	}
	return res
}

func (j *ReconcileJob) publish(userID, postID int64) {
	j.events.Publish(events.PostEvent{
		Type:   events.EventUpdate,
		UserID: userID,
		PostID: postID,
		Status: models.PostStatusFailed,
		Time:   j.now(),
	})
}
