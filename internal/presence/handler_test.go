package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/five82/playpresence/internal/discord"
	"github.com/five82/playpresence/internal/features"
)

type fakeTransport struct {
	mu         sync.Mutex
	appID      string
	connected  bool
	connectErr error
	connects   int
	sets       []*discord.Activity
	clears     int
	closed     bool
}

func (f *fakeTransport) ApplicationID() string { return f.appID }

func (f *fakeTransport) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeTransport) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) SetActivity(a *discord.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets = append(f.sets, a.Clone())
	return nil
}

func (f *fakeTransport) ClearActivity() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.connected = false
	return nil
}

func (f *fakeTransport) setCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sets)
}

type transportFactory struct {
	mu         sync.Mutex
	made       []*fakeTransport
	connectErr error
}

func (tf *transportFactory) new(appID string) Transport {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	t := &fakeTransport{appID: appID, connectErr: tf.connectErr}
	tf.made = append(tf.made, t)
	return t
}

func (tf *transportFactory) all() []*fakeTransport {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	return append([]*fakeTransport(nil), tf.made...)
}

func newTestHandler(feats *features.Set, tf *transportFactory) *Handler {
	return NewHandler(HandlerOptions{
		ApplicationID: "default-app",
		NewTransport:  tf.new,
		Features:      feats,
		Refresh:       time.Hour,
	})
}

func TestHandler_SetPresenceSkipsIdentical(t *testing.T) {
	tf := &transportFactory{}
	h := newTestHandler(features.New(true), tf)
	ctx := context.Background()

	a := &discord.Activity{Details: "Arknights"}
	if !h.SetPresence(ctx, "Arknights", a, "") {
		t.Fatal("first SetPresence returned false")
	}
	if h.SetPresence(ctx, "Arknights", &discord.Activity{Details: "Arknights"}, "") {
		t.Fatal("identical SetPresence returned true")
	}

	made := tf.all()
	if len(made) != 1 || made[0].appID != "default-app" {
		t.Fatalf("transports = %d, want 1 for default-app", len(made))
	}
	if made[0].setCount() != 1 {
		t.Fatalf("sets = %d, want 1", made[0].setCount())
	}
	if !h.Connected() || h.Err() != nil {
		t.Fatalf("Connected=%v Err=%v", h.Connected(), h.Err())
	}

	// The handler keeps its own copy.
	a.Details = "mutated"
	if got := h.Current(); got == nil || got.Details != "Arknights" {
		t.Fatalf("Current = %#v", got)
	}
}

func TestHandler_SwitchesApplicationID(t *testing.T) {
	tf := &transportFactory{}
	h := newTestHandler(features.New(true), tf)
	ctx := context.Background()

	h.SetPresence(ctx, "Generic", &discord.Activity{Details: "Generic"}, "")
	h.SetPresence(ctx, "Official", &discord.Activity{Details: "Official"}, "official-app")

	made := tf.all()
	if len(made) != 2 {
		t.Fatalf("transports = %d, want 2", len(made))
	}
	if !made[0].closed || made[0].clears != 1 {
		t.Fatalf("old transport closed=%v clears=%d, want closed after clear", made[0].closed, made[0].clears)
	}
	if made[1].appID != "official-app" || made[1].setCount() != 1 {
		t.Fatalf("new transport = %s with %d sets", made[1].appID, made[1].setCount())
	}
}

func TestHandler_DisabledDoesNothing(t *testing.T) {
	tf := &transportFactory{}
	h := newTestHandler(features.New(false), tf)

	if h.SetPresence(context.Background(), "Arknights", &discord.Activity{Details: "Arknights"}, "") {
		t.Fatal("SetPresence returned true while disabled")
	}
	if len(tf.all()) != 0 {
		t.Fatal("transport created while disabled")
	}
}

func TestHandler_Clear(t *testing.T) {
	tf := &transportFactory{}
	h := newTestHandler(features.New(true), tf)

	h.SetPresence(context.Background(), "Arknights", &discord.Activity{Details: "Arknights"}, "")
	h.Clear("Arknights")

	if h.Current() != nil {
		t.Fatal("Current should be nil after Clear")
	}
	if got := tf.all()[0].clears; got != 1 {
		t.Fatalf("clears = %d, want 1", got)
	}
	// Clearing twice must not panic and re-sends the clear.
	h.Clear("")
}

func TestHandler_ConnectFailureBacksOff(t *testing.T) {
	tf := &transportFactory{connectErr: errors.New("no discord")}
	h := newTestHandler(features.New(true), tf)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }
	ctx := context.Background()

	h.SetPresence(ctx, "A", &discord.Activity{Details: "A"}, "")
	if h.Err() == nil {
		t.Fatal("Err() = nil after connect failure")
	}
	h.SetPresence(ctx, "B", &discord.Activity{Details: "B"}, "")

	tr := tf.all()[0]
	if tr.connects != 1 {
		t.Fatalf("connects = %d, want 1 while backing off", tr.connects)
	}

	now = now.Add(maxBackoff)
	h.SetPresence(ctx, "C", &discord.Activity{Details: "C"}, "")
	if tr.connects != 2 {
		t.Fatalf("connects = %d, want 2 after backoff elapsed", tr.connects)
	}
}

func TestHandler_RunRefreshesAndShutsDown(t *testing.T) {
	tf := &transportFactory{}
	h := NewHandler(HandlerOptions{
		NewTransport: tf.new,
		Features:     features.New(true),
		Refresh:      10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	h.SetPresence(ctx, "Arknights", &discord.Activity{Details: "Arknights"}, "")
	tr := tf.all()[0]
	if tr.ApplicationID() != DefaultApplicationID {
		t.Fatalf("transport application id = %q, want %q", tr.ApplicationID(), DefaultApplicationID)
	}

	deadline := time.Now().Add(2 * time.Second)
	for tr.setCount() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("sets = %d, want refreshes", tr.setCount())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	tr.mu.Lock()
	closed := tr.closed
	tr.mu.Unlock()
	if !closed {
		t.Fatal("transport not closed on shutdown")
	}
}
