package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/repository"
)

// postRepoStub keeps posts in memory.
type postRepoStub struct {
	mu     sync.Mutex
	nextID int64
	posts  map[int64]*models.Post
}

func newPostRepoStub(posts ...*models.Post) *postRepoStub {
	r := &postRepoStub{posts: map[int64]*models.Post{}}
	for _, p := range posts {
		if p.ID > r.nextID {
			r.nextID = p.ID
		}
		cp := *p
		r.posts[p.ID] = &cp
	}
	return r
}

func (r *postRepoStub) get(id int64) *models.Post {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func (r *postRepoStub) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	post.ID = r.nextID
	if post.Status == "" {
		post.Status = models.PostStatusDraft
	}
	post.OrderIndex = len(r.posts)
	cp := *post
	r.posts[post.ID] = &cp
	return post.ID, nil
}

func (r *postRepoStub) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	return r.get(id), nil
}

func (r *postRepoStub) ListByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (r *postRepoStub) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	p := r.get(postID)
	return p != nil && p.UserID == userID, nil
}

func (r *postRepoStub) Update(ctx context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.posts[post.ID]
	p.Content = post.Content
	p.Platforms = post.Platforms
	return nil
}

func (r *postRepoStub) UpdateStatus(ctx context.Context, postID int64, status string, errorMessage *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[postID]
	if !ok {
		return nil
	}
	p.Status = status
	p.ErrorMessage = errorMessage
	return nil
}

func (r *postRepoStub) MarkScheduled(ctx context.Context, postID int64, platforms []string, scheduledAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.posts[postID]
	p.Status = models.PostStatusScheduled
	p.Platforms = platforms
	p.ScheduledAt = &scheduledAt
	p.ErrorMessage = nil
	return nil
}

func (r *postRepoStub) MarkPosted(ctx context.Context, postID int64, postedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.posts[postID]
	p.Status = models.PostStatusPosted
	p.PostedAt = &postedAt
	p.ErrorMessage = nil
	return nil
}

func (r *postRepoStub) Reorder(ctx context.Context, userID int64, postIDs []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range postIDs {
		if p, ok := r.posts[id]; !ok || p.UserID != userID {
			return repository.ErrNoRowsAffected
		}
	}
	for i, id := range postIDs {
		r.posts[id].OrderIndex = i
	}
	return nil
}

func (r *postRepoStub) FailStuckPosting(ctx context.Context, before time.Time, message string) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		if p.Status == models.PostStatusPosting && p.UpdatedAt.Before(before) {
			p.Status = models.PostStatusFailed
			msg := message
			p.ErrorMessage = &msg
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *postRepoStub) Remove(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.posts, id)
	return nil
}

// scheduleRepoStub enforces one active row per (post, platform) like the
// partial unique index does.
type scheduleRepoStub struct {
	mu        sync.Mutex
	nextID    int64
	schedules map[int64]*models.PostSchedule
}

func newScheduleRepoStub(schedules ...*models.PostSchedule) *scheduleRepoStub {
	r := &scheduleRepoStub{schedules: map[int64]*models.PostSchedule{}}
	for _, s := range schedules {
		if s.ID > r.nextID {
			r.nextID = s.ID
		}
		cp := *s
		r.schedules[s.ID] = &cp
	}
	return r
}

func (r *scheduleRepoStub) get(id int64) *models.PostSchedule {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

func (r *scheduleRepoStub) byStatus(status string) []*models.PostSchedule {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PostSchedule
	for _, s := range r.schedules {
		if s.Status == status {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *scheduleRepoStub) Create(ctx context.Context, tx *sql.Tx, s *models.PostSchedule) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.schedules {
		if existing.PostID == s.PostID && existing.Platform == s.Platform && existing.Status == models.ScheduleStatusScheduled {
			return 0, errors.New("duplicate key value violates unique constraint")
		}
	}
	r.nextID++
	s.ID = r.nextID
	cp := *s
	r.schedules[s.ID] = &cp
	return s.ID, nil
}

func (r *scheduleRepoStub) GetByID(ctx context.Context, id int64) (*models.PostSchedule, error) {
	return r.get(id), nil
}

func (r *scheduleRepoStub) ListByPostID(ctx context.Context, postID int64) ([]*models.PostSchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PostSchedule
	for _, s := range r.schedules {
		if s.PostID == postID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *scheduleRepoStub) ListActiveTimes(ctx context.Context, userID int64, platform string, from, to time.Time) ([]time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []time.Time
	for _, s := range r.schedules {
		if s.UserID == userID && s.Platform == platform && s.Status == models.ScheduleStatusScheduled &&
			!s.ScheduledAt.Before(from) && !s.ScheduledAt.After(to) {
			out = append(out, s.ScheduledAt)
		}
	}
	return out, nil
}

func (r *scheduleRepoStub) SetMessageID(ctx context.Context, id int64, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schedules[id].MessageID = &messageID
	return nil
}

func (r *scheduleRepoStub) UpdateStatus(ctx context.Context, id int64, status string, errorMessage *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok {
		return nil
	}
	s.Status = status
	s.ErrorMessage = errorMessage
	return nil
}

func (r *scheduleRepoStub) IncrementRetry(ctx context.Context, id int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schedules[id].RetryCount++
	return r.schedules[id].RetryCount, nil
}

func (r *scheduleRepoStub) CancelActive(ctx context.Context, postID int64, platform string) ([]*models.PostSchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PostSchedule
	for _, s := range r.schedules {
		if s.PostID == postID && s.Status == models.ScheduleStatusScheduled && (platform == "" || s.Platform == platform) {
			s.Status = models.ScheduleStatusCancelled
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *scheduleRepoStub) FailStale(ctx context.Context, before time.Time, message string) ([]*models.PostSchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PostSchedule
	for _, s := range r.schedules {
		if s.Status == models.ScheduleStatusScheduled && s.ScheduledAt.Before(before) {
			s.Status = models.ScheduleStatusFailed
			msg := message
			s.ErrorMessage = &msg
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

type ruleRepoStub struct {
	mu     sync.Mutex
	nextID int64
	rules  map[int64]*models.ScheduleRule
}

func newRuleRepoStub(rules ...*models.ScheduleRule) *ruleRepoStub {
	r := &ruleRepoStub{rules: map[int64]*models.ScheduleRule{}}
	for _, rule := range rules {
		if rule.ID > r.nextID {
			r.nextID = rule.ID
		}
		cp := *rule
		r.rules[rule.ID] = &cp
	}
	return r
}

func (r *ruleRepoStub) Create(ctx context.Context, rule *models.ScheduleRule) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	rule.ID = r.nextID
	cp := *rule
	r.rules[rule.ID] = &cp
	return rule.ID, nil
}

func (r *ruleRepoStub) GetByID(ctx context.Context, id int64) (*models.ScheduleRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[id]
	if !ok {
		return nil, nil
	}
	cp := *rule
	return &cp, nil
}

func (r *ruleRepoStub) ListByUserID(ctx context.Context, userID int64) ([]*models.ScheduleRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ScheduleRule
	for _, rule := range r.rules {
		if rule.UserID == userID {
			cp := *rule
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *ruleRepoStub) Update(ctx context.Context, rule *models.ScheduleRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rule
	r.rules[rule.ID] = &cp
	return nil
}

func (r *ruleRepoStub) SetActive(ctx context.Context, id int64, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[id].Active = active
	return nil
}

func (r *ruleRepoStub) Remove(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rules, id)
	return nil
}

// creditRepoStub implements the conditional update the SQL does.
type creditRepoStub struct {
	mu      sync.Mutex
	credits map[int64]models.UserCredits
	casMiss bool
}

func newCreditRepoStub() *creditRepoStub {
	return &creditRepoStub{credits: map[int64]models.UserCredits{}}
}

func (r *creditRepoStub) set(userID int64, balance int, resetDate time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.credits[userID] = models.UserCredits{UserID: userID, Balance: balance, LastResetDate: resetDate}
}

func (r *creditRepoStub) balance(userID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.credits[userID].Balance
}

func (r *creditRepoStub) Get(ctx context.Context, userID int64) (*models.UserCredits, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.credits[userID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *creditRepoStub) Init(ctx context.Context, userID int64, balance int, resetDate time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.credits[userID]; !ok {
		r.credits[userID] = models.UserCredits{UserID: userID, Balance: balance, LastResetDate: resetDate}
	}
	return nil
}

func (r *creditRepoStub) CompareAndSwap(ctx context.Context, userID int64, expected *models.UserCredits, newBalance int, newResetDate time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.casMiss {
		return false, nil
	}
	c, ok := r.credits[userID]
	if !ok || c.Balance != expected.Balance || !c.LastResetDate.Equal(expected.LastResetDate) {
		return false, nil
	}
	c.Balance = newBalance
	c.LastResetDate = newResetDate
	r.credits[userID] = c
	return true, nil
}

func (r *creditRepoStub) Add(ctx context.Context, userID int64, amount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.credits[userID]
	if !ok {
		return repository.ErrNoRowsAffected
	}
	c.Balance += amount
	r.credits[userID] = c
	return nil
}

type connectedRepoStub struct {
	mu       sync.Mutex
	accounts map[int64]*models.ConnectedPlatform
}

func newConnectedRepoStub(accounts ...*models.ConnectedPlatform) *connectedRepoStub {
	r := &connectedRepoStub{accounts: map[int64]*models.ConnectedPlatform{}}
	for _, a := range accounts {
		cp := *a
		r.accounts[a.ID] = &cp
	}
	return r
}

func (r *connectedRepoStub) get(id int64) *models.ConnectedPlatform {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

func (r *connectedRepoStub) GetByID(ctx context.Context, id int64) (*models.ConnectedPlatform, error) {
	return r.get(id), nil
}

func (r *connectedRepoStub) GetConnected(ctx context.Context, userID int64, platform string) (*models.ConnectedPlatform, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.UserID == userID && a.Platform == platform && a.Status == models.CredentialStatusConnected {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *connectedRepoStub) ListByUserID(ctx context.Context, userID int64) ([]*models.ConnectedPlatform, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ConnectedPlatform
	for _, a := range r.accounts {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *connectedRepoStub) ListExpiring(ctx context.Context, before time.Time) ([]*models.ConnectedPlatform, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ConnectedPlatform
	for _, a := range r.accounts {
		if a.Status == models.CredentialStatusConnected && a.RefreshToken != "" && a.TokenExpiresAt != nil && a.TokenExpiresAt.Before(before) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *connectedRepoStub) SetToken(ctx context.Context, id int64, cp *models.ConnectedPlatform) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return repository.ErrNoRowsAffected
	}
	if cp.AccessToken != "" {
		a.AccessToken = cp.AccessToken
	}
	if cp.RefreshToken != "" {
		a.RefreshToken = cp.RefreshToken
	}
	if cp.TokenExpiresAt != nil {
		a.TokenExpiresAt = cp.TokenExpiresAt
	}
	a.Status = models.CredentialStatusConnected
	return nil
}

func (r *connectedRepoStub) UpdateStatus(ctx context.Context, id int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[id]; ok {
		a.Status = status
	}
	return nil
}

type usageRepoStub struct {
	mu     sync.Mutex
	counts map[string]int
}

func newUsageRepoStub() *usageRepoStub {
	return &usageRepoStub{counts: map[string]int{}}
}

func usageKey(userID int64, platform, month string) string {
	return fmt.Sprintf("%d/%s/%s", userID, platform, month)
}

func (r *usageRepoStub) Get(ctx context.Context, userID int64, platform, month string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[usageKey(userID, platform, month)], nil
}

func (r *usageRepoStub) Increment(ctx context.Context, userID int64, platform, month string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := usageKey(userID, platform, month)
	r.counts[k]++
	return r.counts[k], nil
}

type postLogRepoStub struct {
	mu   sync.Mutex
	logs []*models.PostLog
}

func (r *postLogRepoStub) Create(ctx context.Context, pl *models.PostLog) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *pl
	cp.ID = int64(len(r.logs) + 1)
	r.logs = append(r.logs, &cp)
	return cp.ID, nil
}

func (r *postLogRepoStub) ListByPostID(ctx context.Context, postID int64) ([]*models.PostLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PostLog
	for _, l := range r.logs {
		if l.PostID == postID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *postLogRepoStub) all() []*models.PostLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.PostLog(nil), r.logs...)
}

type mediaRepoStub struct {
	byPost map[int64][]*models.MediaAsset
}

func (r *mediaRepoStub) Create(ctx context.Context, tx *sql.Tx, ma *models.MediaAsset) (int64, error) {
	return 0, errors.New("not supported")
}

func (r *mediaRepoStub) GetByID(ctx context.Context, id int64) (*models.MediaAsset, error) {
	return nil, nil
}

func (r *mediaRepoStub) ListByPostID(ctx context.Context, postID int64) ([]*models.MediaAsset, error) {
	if r == nil || r.byPost == nil {
		return nil, nil
	}
	return r.byPost[postID], nil
}

// publisherStub records queue traffic; failures are keyed by platform.
type publisherStub struct {
	mu        sync.Mutex
	failures  map[string]error
	published []queue.DispatchMessage
	delays    []time.Duration
	cancelled []string
}

func (p *publisherStub) Publish(ctx context.Context, msg queue.DispatchMessage, delay time.Duration) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failures[msg.Platform]; err != nil {
		return "", err
	}
	p.published = append(p.published, msg)
	p.delays = append(p.delays, delay)
	return fmt.Sprintf("msg_%s_%d", msg.Platform, len(p.published)), nil
}

func (p *publisherStub) Cancel(ctx context.Context, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, messageID)
	return nil
}

func (p *publisherStub) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

// adapterSpy counts publishes and answers with a canned result.
type adapterSpy struct {
	mu       sync.Mutex
	platform platform.Platform
	calls    int
	last     platform.Publication
	err      error
	panicMsg string
}

func (a *adapterSpy) Platform() platform.Platform { return a.platform }

func (a *adapterSpy) Publish(ctx context.Context, cred platform.Credential, pub platform.Publication) (*platform.Result, error) {
	a.mu.Lock()
	a.calls++
	a.last = pub
	a.mu.Unlock()
	if a.panicMsg != "" {
		panic(a.panicMsg)
	}
	if a.err != nil {
		return nil, a.err
	}
	return &platform.Result{PostID: "remote-1"}, nil
}

func (a *adapterSpy) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type tokenStub struct {
	cred platform.Credential
	err  error
}

func (t *tokenStub) EnsureFresh(ctx context.Context, cp *models.ConnectedPlatform) (platform.Credential, error) {
	if t.err != nil {
		return platform.Credential{}, t.err
	}
	return t.cred, nil
}

func (t *tokenStub) Refresh(ctx context.Context, cp *models.ConnectedPlatform) error {
	return t.err
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
