package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/maheshrc27/postflow/internal/events"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/transfer"
)

func newPostFixture(t *testing.T) (*postService, *postRepoStub, *scheduleRepoStub, *publisherStub, *events.Bus) {
	t.Helper()
	posts := newPostRepoStub()
	schedules := newScheduleRepoStub()
	publisher := &publisherStub{}
	bus := events.NewBus()
	svc := NewPostService(nil, posts, schedules, &mediaRepoStub{}, nil, &postLogRepoStub{}, nil, publisher, nil, bus).(*postService)
	svc.now = fixedClock(saturdayMorning)
	return svc, posts, schedules, publisher, bus
}

func TestPostCreateAndUpdate(t *testing.T) {
	t.Parallel()
	svc, _, _, _, bus := newPostFixture(t)
	ctx := context.Background()
	ch, unsubscribe := bus.Subscribe(7, 4)
	defer unsubscribe()

	post, err := svc.Create(ctx, 7, &transfer.PostCreation{Content: "<p>draft</p>", Platforms: []string{"twitter", "twitter", "linkedin"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if post.Status != models.PostStatusDraft || len(post.Platforms) != 2 {
		t.Errorf("post = %+v, want draft with deduplicated platforms", post)
	}

	select {
	case e := <-ch:
		if e.Type != events.EventUpsert || e.PostID != post.ID {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no upsert event")
	}

	content := "edited"
	updated, err := svc.Update(ctx, 7, post.ID, &transfer.PostUpdate{Content: &content})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Content != "edited" {
		t.Errorf("content = %q", updated.Content)
	}

	if _, err := svc.Update(ctx, 8, post.ID, &transfer.PostUpdate{Content: &content}); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign Update err = %v, want ErrNotFound", err)
	}
}

func TestPostCreateRejectsDangerousContent(t *testing.T) {
	t.Parallel()
	svc, _, _, _, _ := newPostFixture(t)

	_, err := svc.Create(context.Background(), 7, &transfer.PostCreation{Content: `<iframe src="x"></iframe>`})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
}

func TestPostUpdateRejectsPublished(t *testing.T) {
	t.Parallel()
	svc, posts, _, _, _ := newPostFixture(t)
	posts.posts[1] = &models.Post{ID: 1, UserID: 7, Content: "done", Status: models.PostStatusPosted}

	content := "again"
	_, err := svc.Update(context.Background(), 7, 1, &transfer.PostUpdate{Content: &content})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
}

func TestPostRemoveCancelsSchedules(t *testing.T) {
	t.Parallel()
	svc, posts, schedules, publisher, _ := newPostFixture(t)
	posts.posts[1] = &models.Post{ID: 1, UserID: 7, Content: "soon", Status: models.PostStatusScheduled}
	msgID := "msg_1"
	schedules.schedules[1] = &models.PostSchedule{ID: 1, PostID: 1, UserID: 7, Platform: "twitter", Status: models.ScheduleStatusScheduled, MessageID: &msgID}

	if err := svc.Remove(context.Background(), 7, 1); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if posts.get(1) != nil {
		t.Error("post still exists")
	}
	if got := schedules.get(1).Status; got != models.ScheduleStatusCancelled {
		t.Errorf("schedule status = %q, want cancelled", got)
	}
	if len(publisher.cancelled) != 1 || publisher.cancelled[0] != msgID {
		t.Errorf("retracted = %v", publisher.cancelled)
	}
}

func TestPostReorder(t *testing.T) {
	t.Parallel()
	svc, posts, _, _, _ := newPostFixture(t)
	posts.posts[1] = &models.Post{ID: 1, UserID: 7, OrderIndex: 0}
	posts.posts[2] = &models.Post{ID: 2, UserID: 7, OrderIndex: 1}
	posts.posts[3] = &models.Post{ID: 3, UserID: 8, OrderIndex: 0}
	ctx := context.Background()

	if err := svc.Reorder(ctx, 7, &transfer.PostReorder{PostIDs: []int64{2, 1}}); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if posts.get(2).OrderIndex != 0 || posts.get(1).OrderIndex != 1 {
		t.Error("order not applied")
	}

	if err := svc.Reorder(ctx, 7, &transfer.PostReorder{PostIDs: []int64{3}}); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign Reorder err = %v, want ErrNotFound", err)
	}
}
