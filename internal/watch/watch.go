// Package watch raises a level-triggered signal when a single file changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Mode reports how the watch was established.
type Mode int

const (
	// ModeImmediate watches a directory that existed at Start.
	ModeImmediate Mode = iota
	// ModeDeferred polls for the directory before watching it.
	ModeDeferred
)

func (m Mode) String() string {
	if m == ModeDeferred {
		return "deferred"
	}
	return "immediate"
}

const defaultPollInterval = time.Minute

// Options configure a Notifier.
type Options struct {
	Path string
	// PollInterval is how often a deferred notifier checks for the directory.
	PollInterval time.Duration
	// OnReady runs once, after the watch is in place and before any signal
	// can be delivered.
	OnReady func()
	Logger  zerolog.Logger
}

// Notifier watches the parent directory of a file and signals writes to it.
// Signals coalesce: a burst of writes may produce a single Changed value.
type Notifier struct {
	path    string
	dir     string
	name    string
	poll    time.Duration
	onReady func()
	logger  zerolog.Logger

	changed chan struct{}
	errs    chan error
	enabled atomic.Bool
	ready   atomic.Bool

	mu      sync.Mutex
	mode    Mode
	started bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New returns a Notifier for path. Call Start to begin watching.
func New(opts Options) *Notifier {
	path := filepath.Clean(opts.Path)
	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &Notifier{
		path:    path,
		dir:     filepath.Dir(path),
		name:    filepath.Base(path),
		poll:    poll,
		onReady: opts.OnReady,
		logger:  opts.Logger.With().Str("component", "watch").Str("path", path).Logger(),
		changed: make(chan struct{}, 1),
		errs:    make(chan error, 4),
		done:    make(chan struct{}),
	}
}

// Changed delivers a value after the file is written.
func (n *Notifier) Changed() <-chan struct{} { return n.changed }

// Errors delivers failures of the underlying watch.
func (n *Notifier) Errors() <-chan error { return n.errs }

// Enable starts delivering Changed signals. Writes observed before Enable
// are dropped.
func (n *Notifier) Enable() { n.enabled.Store(true) }

// Ready reports whether the watch is in place.
func (n *Notifier) Ready() bool { return n.ready.Load() }

// Mode reports how the watch was started.
func (n *Notifier) Mode() Mode {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.mode
}

// Start watches the directory now when it exists, otherwise polls for it in
// the background.
func (n *Notifier) Start(ctx context.Context) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return errors.New("notifier closed")
	}
	if n.started {
		n.mu.Unlock()
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)

	if !dirExists(n.dir) {
		n.mode = ModeDeferred
		n.started = true
		n.cancel = cancel
		n.mu.Unlock()
		n.logger.Debug().Dur("poll", n.poll).Msg("directory missing, waiting for it")
		go n.waitForDir(ctx)
		return nil
	}

	w, err := n.establish()
	if err != nil {
		n.mu.Unlock()
		cancel()
		return err
	}
	n.mode = ModeImmediate
	n.started = true
	n.cancel = cancel
	n.mu.Unlock()

	n.markReady()
	go n.loop(ctx, w)
	return nil
}

// Close stops the watch and releases the OS handle. It is safe to call more
// than once.
func (n *Notifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	started := n.started
	cancel := n.cancel
	n.mu.Unlock()

	n.enabled.Store(false)
	if !started {
		return nil
	}
	cancel()
	<-n.done
	return nil
}

func (n *Notifier) establish() (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(n.dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", n.dir, err)
	}
	return w, nil
}

func (n *Notifier) markReady() {
	n.ready.Store(true)
	if n.onReady != nil {
		n.onReady()
	}
	n.logger.Debug().Msg("watch established")
}

func (n *Notifier) waitForDir(ctx context.Context) {
	ticker := time.NewTicker(n.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(n.done)
			return
		case <-ticker.C:
		}
		if !dirExists(n.dir) {
			continue
		}
		w, err := n.establish()
		if err != nil {
			n.report(err)
			continue
		}
		n.markReady()
		n.loop(ctx, w)
		return
	}
}

func (n *Notifier) loop(ctx context.Context, w *fsnotify.Watcher) {
	defer close(n.done)
	defer func() { _ = w.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != n.name {
				continue
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
				n.signal()
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				n.logger.Debug().Str("op", event.Op.String()).Msg("log file moved away")
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			n.report(err)
		}
	}
}

func (n *Notifier) signal() {
	if !n.enabled.Load() {
		return
	}
	select {
	case n.changed <- struct{}{}:
	default:
	}
}

func (n *Notifier) report(err error) {
	n.logger.Error().Err(err).Msg("file watcher error")
	select {
	case n.errs <- err:
	default:
	}
}

func dirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}
