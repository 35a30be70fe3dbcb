// Package presence turns session events into published rich presence.
//
// The Dispatcher consumes events from every reader, keeps only real state
// transitions, enriches them with store metadata and hands the resulting
// activity to a Sink. The Handler is the Sink backed by the IPC transport.
package presence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/playpresence/internal/discord"
	"github.com/five82/playpresence/internal/features"
	"github.com/five82/playpresence/internal/logtail"
	"github.com/five82/playpresence/internal/lookup"
	"github.com/five82/playpresence/internal/session"
	"github.com/five82/playpresence/internal/state"
)

const (
	startingText         = "Starting up..."
	defaultEnrichTimeout = 30 * time.Second
	eventBuffer          = 64
)

// Sink publishes or clears an activity.
type Sink interface {
	SetPresence(ctx context.Context, title string, a *discord.Activity, appID string) bool
	Clear(title string)
}

var _ Sink = (*Handler)(nil)

// AppIDs resolves an official application id for a title.
type AppIDs interface {
	ApplicationID(ctx context.Context, name string) (string, bool)
}

// DispatcherOptions configure a Dispatcher. Lookup and AppIDs are optional.
type DispatcherOptions struct {
	Sink          Sink
	Lookup        lookup.Resolver
	AppIDs        AppIDs
	Features      *features.Set
	Store         *state.Store
	EnrichTimeout time.Duration
	Logger        zerolog.Logger
}

type enrichment struct {
	gen    uint64
	rec    session.Record
	source string
	info   lookup.Info
	appID  string
}

type applied struct {
	title    string
	activity *discord.Activity
	appID    string
}

// Dispatcher applies session transitions from any number of readers.
type Dispatcher struct {
	sink          Sink
	lookup        lookup.Resolver
	appIDs        AppIDs
	features      *features.Set
	store         *state.Store
	enrichTimeout time.Duration
	logger        zerolog.Logger

	events  chan logtail.Event
	results chan enrichment
	toggles chan bool
	done    chan struct{}
	wg      sync.WaitGroup

	// Owned by Run.
	lastState session.State
	gen       uint64
	last      *applied
}

// NewDispatcher builds a Dispatcher. Call Run to start it.
func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	feats := opts.Features
	if feats == nil {
		feats = features.New(true)
	}
	store := opts.Store
	if store == nil {
		store = &state.Store{}
	}
	timeout := opts.EnrichTimeout
	if timeout <= 0 {
		timeout = defaultEnrichTimeout
	}
	return &Dispatcher{
		sink:          opts.Sink,
		lookup:        opts.Lookup,
		appIDs:        opts.AppIDs,
		features:      feats,
		store:         store,
		enrichTimeout: timeout,
		logger:        opts.Logger.With().Str("component", "dispatcher").Logger(),
		events:        make(chan logtail.Event, eventBuffer),
		results:       make(chan enrichment, 1),
		toggles:       make(chan bool, 4),
		done:          make(chan struct{}),
	}
}

// Handle queues ev. It is safe to call from several readers at once and
// returns without queueing once Run has exited.
func (d *Dispatcher) Handle(ev logtail.Event) {
	select {
	case d.events <- ev:
	case <-d.done:
	}
}

// Run applies events until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.wg.Wait()
	defer close(d.done)

	unsubscribe := d.features.OnRichPresenceChanged(func(enabled bool) {
		select {
		case d.toggles <- enabled:
		case <-d.done:
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-d.events:
			d.apply(ctx, ev)
		case res := <-d.results:
			d.finish(ctx, res)
		case enabled := <-d.toggles:
			d.toggle(ctx, enabled)
		}
	}
}

func (d *Dispatcher) apply(ctx context.Context, ev logtail.Event) {
	rec := ev.Record
	if rec.State == session.StateNone {
		return
	}
	if rec.State == d.lastState {
		d.logger.Trace().Str("state", rec.State.String()).Str("package", rec.PackageName).Msg("state unchanged")
		return
	}

	d.logger.Info().
		Str("from", d.lastState.String()).
		Str("to", rec.State.String()).
		Str("title", rec.Title).
		Time("started", rec.StartTime).
		Str("source", ev.Source).
		Bool("catch_up", ev.CatchUp).
		Msg("app state changed")
	d.lastState = rec.State
	d.gen++
	d.store.SetSession(rec, ev.Source)

	switch rec.State {
	case session.StateStarting, session.StateRunning:
		d.last = nil
		d.enrich(ctx, d.gen, rec, ev.Source)
	case session.StateStopping, session.StateStopped:
		d.clear(rec.Title)
	}
}

// enrich resolves icon, title and application id off the dispatch goroutine.
func (d *Dispatcher) enrich(ctx context.Context, gen uint64, rec session.Record, source string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ectx, cancel := context.WithTimeout(ctx, d.enrichTimeout)
		defer cancel()

		res := enrichment{gen: gen, rec: rec, source: source}
		if d.lookup != nil {
			info, err := d.lookup.Lookup(ectx, rec.PackageName)
			switch {
			case err == nil:
				res.info = info
				res.rec = rec.WithTitle(info.Title)
			case errors.Is(err, lookup.ErrNotFound):
				d.logger.Debug().Str("package", rec.PackageName).Msg("no store listing")
			default:
				d.logger.Warn().Err(err).Str("package", rec.PackageName).Msg("store lookup failed")
			}
		}
		if d.appIDs != nil {
			if id, ok := d.appIDs.ApplicationID(ectx, res.rec.Title); ok {
				res.appID = id
			}
		}
		select {
		case d.results <- res:
		case <-d.done:
		}
	}()
}

func (d *Dispatcher) finish(ctx context.Context, res enrichment) {
	if res.gen != d.gen {
		d.logger.Debug().Str("package", res.rec.PackageName).Msg("dropping stale enrichment")
		return
	}
	d.store.SetSession(res.rec, res.source)
	d.last = &applied{
		title:    res.rec.Title,
		activity: BuildActivity(res.rec, res.info),
		appID:    res.appID,
	}
	d.publish(ctx)
}

func (d *Dispatcher) publish(ctx context.Context) {
	if d.last == nil || d.sink == nil {
		return
	}
	enabled := d.features.RichPresenceEnabled()
	d.store.SetPresence(state.Presence{
		Enabled:       enabled,
		Active:        enabled,
		Title:         d.last.title,
		ApplicationID: d.last.appID,
		Official:      d.last.appID != "",
		Since:         time.Now(),
	})
	if enabled {
		d.sink.SetPresence(ctx, d.last.title, d.last.activity, d.last.appID)
	}
}

func (d *Dispatcher) clear(title string) {
	d.last = nil
	d.store.SetPresence(state.Presence{Enabled: d.features.RichPresenceEnabled(), Since: time.Now()})
	if d.sink != nil {
		d.sink.Clear(title)
	}
}

func (d *Dispatcher) toggle(ctx context.Context, enabled bool) {
	d.logger.Info().Bool("enabled", enabled).Msg("rich presence toggled")
	if enabled {
		if d.last != nil {
			d.publish(ctx)
			return
		}
		d.store.SetPresence(state.Presence{Enabled: true, Since: time.Now()})
		return
	}
	title := ""
	if d.last != nil {
		title = d.last.title
	}
	snap := d.store.Snapshot().Presence
	snap.Enabled = false
	snap.Active = false
	d.store.SetPresence(snap)
	if d.sink != nil {
		d.sink.Clear(title)
	}
}

// BuildActivity maps a record and its store metadata to an activity.
// Starting shows a placeholder caption; Running shows elapsed time.
func BuildActivity(rec session.Record, info lookup.Info) *discord.Activity {
	a := &discord.Activity{Details: rec.Title}
	switch rec.State {
	case session.StateStarting:
		a.Assets = &discord.Assets{LargeText: startingText}
	case session.StateRunning:
		if !rec.StartTime.IsZero() {
			a.Timestamps = &discord.Timestamps{Start: rec.StartTime.Unix()}
		}
	}
	if info.IconURL != "" {
		if a.Assets == nil {
			a.Assets = &discord.Assets{}
		}
		a.Assets.LargeImage = info.IconURL
	}
	return a
}
