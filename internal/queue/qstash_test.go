package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestQStashPublish(t *testing.T) {
	var (
		mu      sync.Mutex
		gotPath string
		gotHdr  http.Header
		gotMsg  DispatchMessage
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotPath = r.URL.Path
		gotHdr = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&gotMsg); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"messageId":"msg_123"}`)
	}))
	defer srv.Close()

	p := NewQStashPublisher(QStashOptions{
		BaseURL:     srv.URL,
		Token:       "qstash-token",
		CallbackURL: "https://app.example.com/api/dispatch",
		Retries:     3,
	})

	msg := DispatchMessage{PostID: 7, Platform: "linkedin", ScheduleID: 11}
	id, err := p.Publish(context.Background(), msg, 90*time.Second+300*time.Millisecond)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if id != "msg_123" {
		t.Fatalf("id = %q", id)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotPath != "/v2/publish/https://app.example.com/api/dispatch" {
		t.Errorf("path = %q", gotPath)
	}
	if gotHdr.Get("Authorization") != "Bearer qstash-token" {
		t.Errorf("Authorization = %q", gotHdr.Get("Authorization"))
	}
	if gotHdr.Get("Upstash-Delay") != "91s" {
		t.Errorf("Upstash-Delay = %q", gotHdr.Get("Upstash-Delay"))
	}
	if gotHdr.Get("Upstash-Retries") != "3" {
		t.Errorf("Upstash-Retries = %q", gotHdr.Get("Upstash-Retries"))
	}
	if gotMsg != msg {
		t.Errorf("payload = %+v", gotMsg)
	}
}

func TestQStashNotConfigured(t *testing.T) {
	p := NewQStashPublisher(QStashOptions{Token: "t"})
	_, err := p.Publish(context.Background(), DispatchMessage{PostID: 1}, time.Minute)
	if !errors.Is(err, ErrQueueNotConfigured) {
		t.Fatalf("err = %v, want ErrQueueNotConfigured", err)
	}
}

func TestQStashRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":"invalid destination url"}`)
	}))
	defer srv.Close()

	p := NewQStashPublisher(QStashOptions{BaseURL: srv.URL, Token: "t", CallbackURL: "https://x"})
	_, err := p.Publish(context.Background(), DispatchMessage{PostID: 1}, time.Minute)
	if err == nil || err.Error() != "qstash rejected publish (status 400): invalid destination url" {
		t.Fatalf("err = %v", err)
	}
}

func TestQStashCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		switch r.URL.Path {
		case "/v2/messages/msg_live":
			w.WriteHeader(http.StatusOK)
		case "/v2/messages/msg_gone":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	p := NewQStashPublisher(QStashOptions{BaseURL: srv.URL, Token: "t", CallbackURL: "https://x"})
	ctx := context.Background()
	if err := p.Cancel(ctx, "msg_live"); err != nil {
		t.Errorf("cancel live: %v", err)
	}
	if err := p.Cancel(ctx, "msg_gone"); err != nil {
		t.Errorf("cancel delivered: %v", err)
	}
	if err := p.Cancel(ctx, "msg_other"); err == nil {
		t.Error("cancel with 500 returned nil")
	}
	if err := p.Cancel(ctx, ""); err != nil {
		t.Errorf("cancel empty id: %v", err)
	}
}

func TestDelaySeconds(t *testing.T) {
	tests := map[time.Duration]int64{
		-time.Second:           0,
		0:                      0,
		time.Millisecond:       1,
		10 * time.Second:       10,
		10*time.Second + 1:     11,
	}
	for in, want := range tests {
		if got := delaySeconds(in); got != want {
			t.Errorf("delaySeconds(%v) = %d, want %d", in, got, want)
		}
	}
}
