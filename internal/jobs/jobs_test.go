package job

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maheshrc27/postflow/internal/events"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/service"
)

var noon = time.Date(2024, time.June, 3, 12, 0, 0, 0, time.UTC)

type postRepo struct {
	repository.PostRepository
	mu    sync.Mutex
	posts map[int64]*models.Post
}

func (r *postRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *postRepo) UpdateStatus(ctx context.Context, id int64, status string, msg *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts[id].Status = status
	r.posts[id].ErrorMessage = msg
	return nil
}

func (r *postRepo) FailStuckPosting(ctx context.Context, before time.Time, msg string) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		if p.Status == models.PostStatusPosting && p.UpdatedAt.Before(before) {
			p.Status = models.PostStatusFailed
			p.ErrorMessage = &msg
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

type scheduleRepo struct {
	repository.ScheduleRepository
	schedules []*models.PostSchedule
}

func (r *scheduleRepo) FailStale(ctx context.Context, before time.Time, msg string) ([]*models.PostSchedule, error) {
	var out []*models.PostSchedule
	for _, s := range r.schedules {
		if s.Status == models.ScheduleStatusScheduled && s.ScheduledAt.Before(before) {
			s.Status = models.ScheduleStatusFailed
			s.ErrorMessage = &msg
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

type collector struct {
	mu     sync.Mutex
	events []events.PostEvent
}

func (c *collector) Publish(e events.PostEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func TestReconcileFailsStaleWork(t *testing.T) {
	t.Parallel()

	posts := &postRepo{posts: map[int64]*models.Post{
		1: {ID: 1, UserID: 7, Status: models.PostStatusScheduled},
		2: {ID: 2, UserID: 7, Status: models.PostStatusScheduled},
		3: {ID: 3, UserID: 8, Status: models.PostStatusPosting, UpdatedAt: noon.Add(-3 * time.Hour)},
		4: {ID: 4, UserID: 8, Status: models.PostStatusPosting, UpdatedAt: noon.Add(-10 * time.Minute)},
	}}
	schedules := &scheduleRepo{schedules: []*models.PostSchedule{
		{ID: 10, PostID: 1, Platform: "twitter", Status: models.ScheduleStatusScheduled, ScheduledAt: noon.Add(-2 * time.Hour)},
		{ID: 11, PostID: 1, Platform: "linkedin", Status: models.ScheduleStatusScheduled, ScheduledAt: noon.Add(-2 * time.Hour)},
		{ID: 12, PostID: 2, Platform: "twitter", Status: models.ScheduleStatusScheduled, ScheduledAt: noon.Add(-30 * time.Minute)},
		{ID: 13, PostID: 2, Platform: "linkedin", Status: models.ScheduleStatusExecuted, ScheduledAt: noon.Add(-5 * time.Hour)},
	}}
	bus := &collector{}

	job := NewReconcileJob(posts, schedules, bus, time.Hour)
	job.now = func() time.Time { return noon }

	res := job.Run(context.Background())
	if res.Schedules != 2 || res.Posts != 2 {
		t.Fatalf("result = %+v, want 2 schedules and 2 posts", res)
	}

	for _, s := range schedules.schedules {
		want := models.ScheduleStatusScheduled
		switch s.ID {
		case 10, 11:
			want = models.ScheduleStatusFailed
		case 13:
			want = models.ScheduleStatusExecuted
		}
		if s.Status != want {
			t.Errorf("schedule %d status = %q, want %q", s.ID, s.Status, want)
		}
	}

	p1, _ := posts.GetByID(context.Background(), 1)
	if p1.Status != models.PostStatusFailed || p1.ErrorMessage == nil || *p1.ErrorMessage != StaleScheduleMessage {
		t.Errorf("post 1 = %+v, want failed with timeout reason", p1)
	}
	if p2, _ := posts.GetByID(context.Background(), 2); p2.Status != models.PostStatusScheduled {
		t.Errorf("post 2 status = %q, want scheduled", p2.Status)
	}
	if p3, _ := posts.GetByID(context.Background(), 3); p3.Status != models.PostStatusFailed {
		t.Errorf("post 3 status = %q, want failed", p3.Status)
	}
	if p4, _ := posts.GetByID(context.Background(), 4); p4.Status != models.PostStatusPosting {
		t.Errorf("post 4 status = %q, want posting", p4.Status)
	}

	if len(bus.events) != 2 {
		t.Errorf("events = %d, want 2", len(bus.events))
	}

	if res := job.Run(context.Background()); res.Schedules != 0 || res.Posts != 0 {
		t.Errorf("second run = %+v, want nothing to do", res)
	}
}

type connectedRepo struct {
	repository.ConnectedPlatformRepository
	accounts []*models.ConnectedPlatform
	err      error
	before   time.Time
}

func (r *connectedRepo) ListExpiring(ctx context.Context, before time.Time) ([]*models.ConnectedPlatform, error) {
	r.before = before
	return r.accounts, r.err
}

type refresher struct {
	calls atomic.Int32
	errs  map[string]error
}

func (r *refresher) EnsureFresh(ctx context.Context, cp *models.ConnectedPlatform) (platform.Credential, error) {
	return platform.Credential{}, nil
}

func (r *refresher) Refresh(ctx context.Context, cp *models.ConnectedPlatform) error {
	r.calls.Add(1)
	return r.errs[cp.Platform]
}

func TestTokenRefreshJob(t *testing.T) {
	t.Parallel()

	repo := &connectedRepo{accounts: []*models.ConnectedPlatform{
		{ID: 1, Platform: "twitter"},
		{ID: 2, Platform: "linkedin"},
		{ID: 3, Platform: "facebook"},
		{ID: 4, Platform: "twitter"},
	}}
	tokens := &refresher{errs: map[string]error{
		"facebook": service.ErrRefreshNotSupported,
		"linkedin": service.ErrCredentialExpired,
	}}

	job := NewTokenRefreshJob(repo, tokens)
	job.now = func() time.Time { return noon }

	if got := job.Run(context.Background()); got != 2 {
		t.Errorf("refreshed = %d, want 2", got)
	}
	if tokens.calls.Load() != 4 {
		t.Errorf("refresh calls = %d, want 4", tokens.calls.Load())
	}
	if !repo.before.Equal(noon.Add(30 * time.Minute)) {
		t.Errorf("lookahead cutoff = %v", repo.before)
	}
}

func TestTokenRefreshJobListError(t *testing.T) {
	t.Parallel()

	tokens := &refresher{}
	job := NewTokenRefreshJob(&connectedRepo{err: errors.New("db down")}, tokens)

	if got := job.Run(context.Background()); got != 0 {
		t.Errorf("refreshed = %d, want 0", got)
	}
	if tokens.calls.Load() != 0 {
		t.Error("refresh called despite list error")
	}
}
