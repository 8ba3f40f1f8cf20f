package events

import (
	"testing"
)

func TestBusDeliversToOwnerOnly(t *testing.T) {
	t.Parallel()
	b := NewBus()

	mine, unsubMine := b.Subscribe(1, 4)
	defer unsubMine()
	theirs, unsubTheirs := b.Subscribe(2, 4)
	defer unsubTheirs()

	b.Publish(PostEvent{Type: EventUpdate, UserID: 1, PostID: 10, Status: "scheduled"})

	select {
	case e := <-mine:
		if e.PostID != 10 || e.Type != EventUpdate || e.Time.IsZero() {
			t.Fatalf("event = %+v", e)
		}
	default:
		t.Fatal("owner did not receive event")
	}

	select {
	case e := <-theirs:
		t.Fatalf("other user received %+v", e)
	default:
	}
}

func TestBusPublishDoesNotBlockOnFullBuffer(t *testing.T) {
	t.Parallel()
	b := NewBus()
	ch, unsub := b.Subscribe(1, 1)
	defer unsub()

	for i := 0; i < 5; i++ {
		b.Publish(PostEvent{Type: EventUpsert, UserID: 1, PostID: int64(i)})
	}

	if got := len(ch); got != 1 {
		t.Fatalf("buffered = %d, want 1", got)
	}
	if e := <-ch; e.PostID != 0 {
		t.Fatalf("first kept event = %d, want 0", e.PostID)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	t.Parallel()
	b := NewBus()
	ch, unsub := b.Subscribe(1, 1)

	unsub()
	unsub()

	if _, ok := <-ch; ok {
		t.Fatal("channel still open after unsubscribe")
	}
	if n := b.Subscribers(); n != 0 {
		t.Fatalf("subscribers = %d", n)
	}
	b.Publish(PostEvent{Type: EventDelete, UserID: 1})
}
