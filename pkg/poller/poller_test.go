package poller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// scriptedServer serves a sequence of snapshots, advancing one step per poll
// and repeating the last one forever.
type scriptedServer struct {
	mu        sync.Mutex
	snapshots []Snapshot
	polls     int
	generates int
	authFail  bool
}

func (s *scriptedServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/paintings/generate", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.generates++
		s.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"paintings":[]}`))
	})
	mux.HandleFunc("GET /api/paintings/{titleId}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		if s.authFail {
			s.mu.Unlock()
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		i := s.polls
		if i >= len(s.snapshots) {
			i = len(s.snapshots) - 1
		}
		snap := s.snapshots[i]
		s.polls++
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snap)
	})
	return mux
}

func waitState(t *testing.T, c *Client, want State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", c.State(), want)
}

func snapshot(statuses ...string) Snapshot {
	snap := Snapshot{ReferenceDataMap: map[string]string{}}
	for i, status := range statuses {
		snap.Paintings = append(snap.Paintings, Painting{
			ID:     "p" + string(rune('0'+i)),
			Status: status,
		})
	}
	return snap
}

func TestSubmitPollsUntilSettled(t *testing.T) {
	server := &scriptedServer{snapshots: []Snapshot{
		snapshot("creating_prompt", "creating_prompt"),
		snapshot("processing", "creating_prompt"),
		snapshot("completed", "failed"),
	}}
	ts := httptest.NewServer(server.handler())
	defer ts.Close()

	var updates int
	var settled Snapshot
	done := make(chan struct{})

	c := New(Config{
		BaseURL:  ts.URL,
		Token:    "tok",
		Interval: 5 * time.Millisecond,
		OnUpdate: func(s *Snapshot) { updates++ },
		OnSettled: func(s *Snapshot, err error) {
			if err != nil {
				t.Errorf("settled with error: %v", err)
			}
			settled = *s
			close(done)
		},
	})

	err := c.Submit(context.Background(), "title-1", 2)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got := c.State(); got != StatePolling {
		t.Errorf("state after submit = %v", got)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("session never settled")
	}
	waitState(t, c, StateSettled)

	if len(settled.Paintings) != 2 {
		t.Errorf("settled with %d paintings", len(settled.Paintings))
	}
	if updates != 3 {
		t.Errorf("updates = %d, want 3 distinct snapshots", updates)
	}

	server.mu.Lock()
	generates := server.generates
	server.mu.Unlock()
	if generates != 1 {
		t.Errorf("generate calls = %d", generates)
	}
}

func TestOnUpdateSkipsIdenticalSnapshots(t *testing.T) {
	server := &scriptedServer{snapshots: []Snapshot{
		snapshot("processing"),
		snapshot("processing"), // unchanged, must not fire OnUpdate
		snapshot("completed"),
	}}
	ts := httptest.NewServer(server.handler())
	defer ts.Close()

	var mu sync.Mutex
	updates := 0
	c := New(Config{
		BaseURL:  ts.URL,
		Interval: 5 * time.Millisecond,
		OnUpdate: func(s *Snapshot) {
			mu.Lock()
			updates++
			mu.Unlock()
		},
	})

	if err := c.Poll(context.Background(), "title-1"); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	waitState(t, c, StateSettled)

	mu.Lock()
	defer mu.Unlock()
	if updates != 2 {
		t.Errorf("updates = %d, want 2 (identical snapshot coalesced)", updates)
	}
}

func TestAuthFailureStopsPolling(t *testing.T) {
	server := &scriptedServer{authFail: true}
	ts := httptest.NewServer(server.handler())
	defer ts.Close()

	done := make(chan error, 1)
	c := New(Config{
		BaseURL:   ts.URL,
		Interval:  5 * time.Millisecond,
		OnSettled: func(s *Snapshot, err error) { done <- err },
	})

	if err := c.Poll(context.Background(), "title-1"); err != nil {
		t.Fatalf("Poll: %v", err)
	}

	select {
	case err := <-done:
		if err == nil {
			t.Errorf("settled without the auth error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("polling never stopped on auth failure")
	}
}

func TestSetVisiblePausesPolling(t *testing.T) {
	server := &scriptedServer{snapshots: []Snapshot{snapshot("processing")}}
	ts := httptest.NewServer(server.handler())
	defer ts.Close()

	c := New(Config{BaseURL: ts.URL, Interval: 5 * time.Millisecond})
	if err := c.Poll(context.Background(), "title-1"); err != nil {
		t.Fatalf("Poll: %v", err)
	}

	// Let the first poll land, then hide the UI.
	time.Sleep(20 * time.Millisecond)
	c.SetVisible(false)
	time.Sleep(20 * time.Millisecond)

	server.mu.Lock()
	pollsWhenHidden := server.polls
	server.mu.Unlock()

	time.Sleep(50 * time.Millisecond)

	server.mu.Lock()
	pollsAfter := server.polls
	server.mu.Unlock()

	if pollsAfter != pollsWhenHidden {
		t.Errorf("polled %d times while hidden", pollsAfter-pollsWhenHidden)
	}

	c.Stop()
}

func TestStopIsIdempotent(t *testing.T) {
	server := &scriptedServer{snapshots: []Snapshot{snapshot("processing")}}
	ts := httptest.NewServer(server.handler())
	defer ts.Close()

	c := New(Config{BaseURL: ts.URL, Interval: 5 * time.Millisecond})
	if err := c.Poll(context.Background(), "title-1"); err != nil {
		t.Fatalf("Poll: %v", err)
	}

	c.Stop()
	c.Stop()

	if got := c.State(); got != StateIdle {
		t.Errorf("state after stop = %v, want idle", got)
	}

	// A stopped client accepts a new session.
	if err := c.Poll(context.Background(), "title-1"); err != nil {
		t.Fatalf("Poll after Stop: %v", err)
	}
	c.Stop()
}

func TestSubmitRejectsConcurrentSessions(t *testing.T) {
	server := &scriptedServer{snapshots: []Snapshot{snapshot("processing")}}
	ts := httptest.NewServer(server.handler())
	defer ts.Close()

	c := New(Config{BaseURL: ts.URL, Interval: time.Hour})
	if err := c.Poll(context.Background(), "title-1"); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	defer c.Stop()

	if err := c.Submit(context.Background(), "title-1", 1); err == nil {
		t.Error("second session accepted while one is running")
	}
}
