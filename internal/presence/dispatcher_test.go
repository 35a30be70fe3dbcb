package presence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/five82/playpresence/internal/discord"
	"github.com/five82/playpresence/internal/features"
	"github.com/five82/playpresence/internal/logtail"
	"github.com/five82/playpresence/internal/lookup"
	"github.com/five82/playpresence/internal/session"
	"github.com/five82/playpresence/internal/state"
)

type sinkCall struct {
	kind     string
	title    string
	activity *discord.Activity
	appID    string
}

type fakeSink struct {
	calls chan sinkCall
}

func (s *fakeSink) SetPresence(_ context.Context, title string, a *discord.Activity, appID string) bool {
	s.calls <- sinkCall{kind: "set", title: title, activity: a.Clone(), appID: appID}
	return true
}

func (s *fakeSink) Clear(title string) {
	s.calls <- sinkCall{kind: "clear", title: title}
}

type fakeLookup struct {
	mu    sync.Mutex
	infos map[string]lookup.Info
	gates map[string]chan struct{}
}

func (f *fakeLookup) Lookup(ctx context.Context, pkg string) (lookup.Info, error) {
	f.mu.Lock()
	gate := f.gates[pkg]
	info, ok := f.infos[pkg]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return lookup.Info{}, ctx.Err()
		}
	}
	if !ok {
		return lookup.Info{}, lookup.ErrNotFound
	}
	return info, nil
}

type fakeAppIDs map[string]string

func (f fakeAppIDs) ApplicationID(_ context.Context, name string) (string, bool) {
	id, ok := f[name]
	return id, ok
}

type dispatchHarness struct {
	d     *Dispatcher
	sink  *fakeSink
	feats *features.Set
	store *state.Store
}

func startDispatcher(t *testing.T, lk *fakeLookup, ids fakeAppIDs) *dispatchHarness {
	t.Helper()
	h := &dispatchHarness{
		sink:  &fakeSink{calls: make(chan sinkCall, 32)},
		feats: features.New(true),
		store: &state.Store{},
	}
	opts := DispatcherOptions{
		Sink:     h.sink,
		Features: h.feats,
		Store:    h.store,
	}
	if lk != nil {
		opts.Lookup = lk
	}
	if ids != nil {
		opts.AppIDs = ids
	}
	h.d = NewDispatcher(opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = h.d.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func (h *dispatchHarness) next(t *testing.T) sinkCall {
	t.Helper()
	select {
	case c := <-h.sink.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sink call")
		return sinkCall{}
	}
}

func (h *dispatchHarness) expectQuiet(t *testing.T) {
	t.Helper()
	select {
	case c := <-h.sink.calls:
		t.Fatalf("unexpected sink call %+v", c)
	case <-time.After(100 * time.Millisecond):
	}
}

func event(pkg, title string, st session.State, started time.Time) logtail.Event {
	return logtail.Event{
		Record: session.Record{PackageName: pkg, Title: title, State: st, StartTime: started},
		Source: "release",
	}
}

var arknightsStart = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func TestDispatcher_RunningPublishesEnrichedActivity(t *testing.T) {
	lk := &fakeLookup{infos: map[string]lookup.Info{
		"com.YoStarEN.Arknights": {IconURL: "https://play-lh.example/ark.png", Title: "Arknights"},
	}}
	h := startDispatcher(t, lk, fakeAppIDs{"Arknights": "official-ark"})

	h.d.Handle(event("com.YoStarEN.Arknights", "ARKNIGHTS", session.StateRunning, arknightsStart))

	c := h.next(t)
	if c.kind != "set" || c.title != "Arknights" || c.appID != "official-ark" {
		t.Fatalf("call = %+v", c)
	}
	want := &discord.Activity{
		Details:    "Arknights",
		Timestamps: &discord.Timestamps{Start: arknightsStart.Unix()},
		Assets:     &discord.Assets{LargeImage: "https://play-lh.example/ark.png"},
	}
	if !c.activity.Equal(want) {
		t.Fatalf("activity = %#v, want %#v", c.activity, want)
	}

	snap := h.store.Snapshot()
	if !snap.HasSession || snap.Session.Title != "Arknights" || snap.SessionSource != "release" {
		t.Fatalf("store session = %#v from %q", snap.Session, snap.SessionSource)
	}
	if !snap.Presence.Active || !snap.Presence.Official {
		t.Fatalf("store presence = %#v", snap.Presence)
	}
}

func TestDispatcher_StartingShowsPlaceholder(t *testing.T) {
	h := startDispatcher(t, nil, nil)

	h.d.Handle(event("com.krafton.defensederby", "Defense Derby", session.StateStarting, time.Time{}))

	c := h.next(t)
	if c.kind != "set" || c.appID != "" {
		t.Fatalf("call = %+v", c)
	}
	if c.activity.Assets == nil || c.activity.Assets.LargeText != "Starting up..." || c.activity.Timestamps != nil {
		t.Fatalf("activity = %#v", c.activity)
	}
}

func TestDispatcher_IgnoresRepeatedAndNoneStates(t *testing.T) {
	h := startDispatcher(t, nil, nil)

	h.d.Handle(event("com.a", "A", session.StateRunning, arknightsStart))
	if c := h.next(t); c.kind != "set" {
		t.Fatalf("call = %+v, want set", c)
	}

	h.d.Handle(event("com.a", "A", session.StateRunning, arknightsStart))
	h.d.Handle(event("com.a", "A", session.StateNone, time.Time{}))
	h.expectQuiet(t)

	h.d.Handle(event("com.a", "A", session.StateStopping, time.Time{}))
	if c := h.next(t); c.kind != "clear" || c.title != "A" {
		t.Fatalf("call = %+v, want clear for A", c)
	}
	h.d.Handle(event("com.a", "A", session.StateStopped, time.Time{}))
	if c := h.next(t); c.kind != "clear" {
		t.Fatalf("call = %+v, want clear", c)
	}
	if h.store.Snapshot().Presence.Active {
		t.Fatal("presence still active after stop")
	}
}

func TestDispatcher_DropsStaleEnrichment(t *testing.T) {
	gate := make(chan struct{})
	lk := &fakeLookup{
		infos: map[string]lookup.Info{"com.slow": {IconURL: "https://example/slow.png", Title: "Slow"}},
		gates: map[string]chan struct{}{"com.slow": gate},
	}
	h := startDispatcher(t, lk, nil)

	h.d.Handle(event("com.slow", "Slow", session.StateRunning, arknightsStart))
	h.d.Handle(event("com.slow", "Slow", session.StateStopped, time.Time{}))
	if c := h.next(t); c.kind != "clear" {
		t.Fatalf("call = %+v, want clear", c)
	}

	close(gate)
	h.expectQuiet(t)
}

func TestDispatcher_FeatureToggle(t *testing.T) {
	h := startDispatcher(t, nil, nil)

	h.d.Handle(event("com.a", "A", session.StateRunning, arknightsStart))
	first := h.next(t)

	h.feats.SetRichPresenceEnabled(false)
	if c := h.next(t); c.kind != "clear" || c.title != "A" {
		t.Fatalf("call = %+v, want clear on disable", c)
	}

	h.feats.SetRichPresenceEnabled(true)
	c := h.next(t)
	if c.kind != "set" || !c.activity.Equal(first.activity) {
		t.Fatalf("call = %+v, want the previous activity re-applied", c)
	}
}

func TestDispatcher_DisabledSkipsSink(t *testing.T) {
	h := startDispatcher(t, nil, nil)

	h.d.Handle(event("com.a", "A", session.StateRunning, arknightsStart))
	if c := h.next(t); c.kind != "set" {
		t.Fatalf("call = %+v, want set", c)
	}
	h.feats.SetRichPresenceEnabled(false)
	if c := h.next(t); c.kind != "clear" {
		t.Fatalf("call = %+v, want clear on disable", c)
	}

	h.d.Handle(event("com.b", "B", session.StateStarting, time.Time{}))
	h.expectQuiet(t)

	snap := h.store.Snapshot()
	if snap.Session.PackageName != "com.b" {
		t.Fatalf("store session = %#v, want com.b recorded while disabled", snap.Session)
	}
	if snap.Presence.Active || snap.Presence.Enabled {
		t.Fatalf("store presence = %#v, want inactive and disabled", snap.Presence)
	}
}

func TestBuildActivity(t *testing.T) {
	tests := []struct {
		name string
		rec  session.Record
		info lookup.Info
		want *discord.Activity
	}{
		{
			name: "running without icon",
			rec:  session.Record{Title: "A", State: session.StateRunning, StartTime: arknightsStart},
			want: &discord.Activity{Details: "A", Timestamps: &discord.Timestamps{Start: arknightsStart.Unix()}},
		},
		{
			name: "running zero start",
			rec:  session.Record{Title: "A", State: session.StateRunning},
			want: &discord.Activity{Details: "A"},
		},
		{
			name: "starting with icon",
			rec:  session.Record{Title: "B", State: session.StateStarting},
			info: lookup.Info{IconURL: "https://example/b.png"},
			want: &discord.Activity{Details: "B", Assets: &discord.Assets{LargeText: "Starting up...", LargeImage: "https://example/b.png"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildActivity(tt.rec, tt.info); !got.Equal(tt.want) {
				t.Fatalf("BuildActivity = %#v, want %#v", got, tt.want)
			}
		})
	}
}
