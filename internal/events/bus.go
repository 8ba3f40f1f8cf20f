// Package events carries post mutations to whoever is watching a user's
// posts, such as an open dashboard streaming /api/events.
package events

import (
	"sync"
	"time"
)

type EventType string

const (
	EventUpsert  EventType = "upsert"
	EventUpdate  EventType = "update"
	EventDelete  EventType = "delete"
	EventRefetch EventType = "refetch"
)

type PostEvent struct {
	Type   EventType `json:"type"`
	UserID int64     `json:"user_id"`
	PostID int64     `json:"post_id,omitempty"`
	Status string    `json:"status,omitempty"`
	Time   time.Time `json:"time"`
}

// Publisher is the write side handed to services.
type Publisher interface {
	Publish(e PostEvent)
}

// Bus fans post events out to per-user subscribers. Publish never blocks; a
// subscriber whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]subscription
}

type subscription struct {
	userID int64
	ch     chan PostEvent
}

func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]subscription)}
}

func (b *Bus) Publish(e PostEvent) {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, s := range b.subs {
		if s.userID != e.UserID {
			continue
		}
		select {
		case s.ch <- e:
		default:
		}
	}
}

// Subscribe returns a channel of userID's events and a func that closes it.
func (b *Bus) Subscribe(userID int64, buffer int) (<-chan PostEvent, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan PostEvent, buffer)

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = subscription{userID: userID, ch: ch}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}

// Subscribers returns the number of open subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(PostEvent) {}
