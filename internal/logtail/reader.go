package logtail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/playpresence/internal/logfile"
	"github.com/five82/playpresence/internal/session"
	"github.com/five82/playpresence/internal/watch"
)

// Phase is the reader's position in its lifecycle.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseCatchingUp
	PhaseWatching
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCatchingUp:
		return "catching up"
	case PhaseWatching:
		return "watching"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

const (
	defaultWaitInterval   = 5 * time.Second
	defaultSettleAttempts = 3
	slowCatchUp           = 2 * time.Second
	defaultWatchRetry     = 30 * time.Second
)

// Event is a session record published by a Reader.
type Event struct {
	Record session.Record
	// CatchUp is set for the single record emitted by a historical scan.
	CatchUp bool
	Source  string
}

// Handler receives events in file order. It is never called concurrently
// by the same Reader.
type Handler func(Event)

// Options configure a Reader.
type Options struct {
	// Name labels events and status, for example "release".
	Name    string
	Path    string
	Handler Handler
	Logger  zerolog.Logger

	// WaitInterval is how often Run checks for a missing log file.
	WaitInterval time.Duration
	// DirPollInterval is how often the notifier checks for a missing directory.
	DirPollInterval time.Duration
	// RecheckInterval schedules a pass without a change signal. Zero disables it.
	RecheckInterval time.Duration
	// SettleDelay overrides the per-dialect wait for an unfinished block.
	SettleDelay    time.Duration
	SettleAttempts int
	Opener         logfile.Opener
}

// changeNotifier is the part of *watch.Notifier a Reader drives.
type changeNotifier interface {
	Start(ctx context.Context) error
	Enable()
	Changed() <-chan struct{}
	Errors() <-chan error
	Close() error
}

// Status is a point-in-time view of a Reader.
type Status struct {
	Name        string
	Path        string
	Phase       Phase
	Offset      int64
	Events      int
	LastEvent   time.Time
	LastPackage string
	LastState   session.State
	LastError   error
}

// Reader follows one service log and publishes a session event for every
// block it can build into a record.
type Reader struct {
	name    string
	path    string
	handler Handler
	logger  zerolog.Logger

	waitInterval   time.Duration
	dirPoll        time.Duration
	recheck        time.Duration
	settleDelay    time.Duration
	settleAttempts int
	opener         logfile.Opener
	newNotifier    func(watch.Options) changeNotifier

	offset   atomic.Int64
	phase    atomic.Int32
	inFlight atomic.Bool
	wg       sync.WaitGroup

	// info identifies the file the offset belongs to. Only the active pass
	// touches it.
	info os.FileInfo

	mu     sync.Mutex
	status Status
}

// New returns a Reader for opts.Path. Call Run to start it.
func New(opts Options) *Reader {
	wait := opts.WaitInterval
	if wait <= 0 {
		wait = defaultWaitInterval
	}
	attempts := opts.SettleAttempts
	if attempts <= 0 {
		attempts = defaultSettleAttempts
	}
	handler := opts.Handler
	if handler == nil {
		handler = func(Event) {}
	}
	return &Reader{
		name:           opts.Name,
		path:           opts.Path,
		handler:        handler,
		logger:         opts.Logger.With().Str("component", "reader").Str("source", opts.Name).Logger(),
		waitInterval:   wait,
		dirPoll:        opts.DirPollInterval,
		recheck:        opts.RecheckInterval,
		settleDelay:    opts.SettleDelay,
		settleAttempts: attempts,
		opener:         opts.Opener,
		newNotifier:    func(o watch.Options) changeNotifier { return watch.New(o) },
		status:         Status{Name: opts.Name, Path: opts.Path},
	}
}

// Run waits for the log file, catches up on its history and then follows it
// until ctx is cancelled. A pass already in flight at cancellation is waited
// for before Run returns. A file watch that cannot be established is
// retried on the recheck cadence while passes keep running.
func (r *Reader) Run(ctx context.Context) error {
	defer r.setPhase(PhaseStopped)
	defer r.wg.Wait()

	notifier := r.startWatch(ctx)
	defer func() {
		if notifier != nil {
			_ = notifier.Close()
		}
	}()

	if err := r.waitForFile(ctx); err != nil {
		return nil
	}

	if err := r.catchUp(ctx); err != nil && ctx.Err() == nil {
		r.fail(err, "catch-up failed")
	}
	if ctx.Err() != nil {
		return nil
	}

	var (
		changed <-chan struct{}
		errs    <-chan error
	)
	if notifier != nil {
		notifier.Enable()
		changed, errs = notifier.Changed(), notifier.Errors()
	}
	r.setPhase(PhaseWatching)
	// Anything written between the end of catch-up and Enable.
	r.schedule(ctx)

	interval := r.recheck
	if notifier == nil && interval <= 0 {
		interval = defaultWatchRetry
	}
	var recheck <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		recheck = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			r.schedule(ctx)
		case <-recheck:
			if notifier == nil {
				if notifier = r.startWatch(ctx); notifier != nil {
					notifier.Enable()
					changed, errs = notifier.Changed(), notifier.Errors()
				}
			}
			r.schedule(ctx)
		case err := <-errs:
			r.recordError(err)
		}
	}
}

// startWatch returns nil when the watch cannot be established; the failure
// is recorded in Status.
func (r *Reader) startWatch(ctx context.Context) changeNotifier {
	n := r.newNotifier(watch.Options{
		Path:         r.path,
		PollInterval: r.dirPoll,
		Logger:       r.logger,
		// A deferred watch usually comes up after catch-up has finished.
		OnReady: func() {
			if Phase(r.phase.Load()) == PhaseWatching {
				r.schedule(ctx)
			}
		},
	})
	if err := n.Start(ctx); err != nil {
		r.fail(fmt.Errorf("watch %s: %w", r.path, err), "file watch unavailable")
		return nil
	}
	return n
}

// ReadAll scans the whole file and returns every record it contains, oldest
// first. It does not move the reader's offset.
func (r *Reader) ReadAll(ctx context.Context) ([]session.Record, error) {
	h, err := r.opener.Open(ctx, r.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = h.Close() }()

	var records []session.Record
	if _, err := r.scan(ctx, h, 0, false, func(rec session.Record) {
		records = append(records, rec)
	}); err != nil {
		return nil, err
	}
	return records, nil
}

// Offset returns the byte offset the next pass resumes from.
func (r *Reader) Offset() int64 { return r.offset.Load() }

// Status returns a snapshot of the reader's progress.
func (r *Reader) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.status
	st.Phase = Phase(r.phase.Load())
	st.Offset = r.offset.Load()
	return st
}

func (r *Reader) setPhase(p Phase) {
	r.phase.Store(int32(p))
}

func (r *Reader) waitForFile(ctx context.Context) error {
	for !logfile.Exists(r.path) {
		r.logger.Debug().Str("path", r.path).Dur("retry", r.waitInterval).Msg("log file not found, waiting")
		if err := sleepCtx(ctx, r.waitInterval); err != nil {
			return err
		}
	}
	return nil
}

// schedule starts a pass unless one is already running, in which case the
// signal is dropped. The running pass or the next signal picks up the data.
func (r *Reader) schedule(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if !r.inFlight.CompareAndSwap(false, true) {
		r.logger.Trace().Msg("pass in flight, dropping signal")
		return false
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.inFlight.Store(false)
		r.pass(ctx)
	}()
	return true
}

func (r *Reader) pass(ctx context.Context) {
	h, err := r.opener.Open(ctx, r.path)
	if err != nil {
		if ctx.Err() == nil {
			r.fail(err, "open log")
		}
		return
	}
	defer func() { _ = h.Close() }()

	info, err := h.Stat()
	if err != nil {
		r.fail(err, "stat log")
		return
	}

	offset := r.offset.Load()
	switch {
	case r.info == nil:
		err = r.catchUpFrom(ctx, h, info)
	case info.Size() < offset:
		r.logger.Info().Int64("offset", offset).Int64("size", info.Size()).Msg("log truncated, catching up")
		err = r.catchUpFrom(ctx, h, info)
	case !os.SameFile(r.info, info):
		r.logger.Info().Msg("log replaced, catching up")
		err = r.catchUpFrom(ctx, h, info)
	default:
		_, err = r.scan(ctx, h, offset, true, func(rec session.Record) {
			r.deliver(Event{Record: rec})
		})
	}
	if err != nil && ctx.Err() == nil {
		r.fail(err, "read pass aborted")
	}
}

func (r *Reader) catchUp(ctx context.Context) error {
	h, err := r.opener.Open(ctx, r.path)
	if err != nil {
		return err
	}
	defer func() { _ = h.Close() }()

	info, err := h.Stat()
	if err != nil {
		return fmt.Errorf("stat log: %w", err)
	}
	return r.catchUpFrom(ctx, h, info)
}

// catchUpFrom scans the file from the start and emits the last record only
// when that session is still running.
func (r *Reader) catchUpFrom(ctx context.Context, h *logfile.Handle, info os.FileInfo) error {
	prev := Phase(r.phase.Load())
	r.setPhase(PhaseCatchingUp)
	defer func() {
		if prev == PhaseWatching {
			r.setPhase(PhaseWatching)
		}
	}()

	started := time.Now()
	var (
		count int
		last  session.Record
	)
	offset, err := r.scan(ctx, h, 0, false, func(rec session.Record) {
		count++
		last = rec
	})
	if err != nil {
		return err
	}
	r.offset.Store(offset)
	r.info = info

	if elapsed := time.Since(started); elapsed > slowCatchUp {
		r.logger.Warn().Dur("elapsed", elapsed).Msg("catch-up took unusually long")
	}
	r.logger.Debug().Int("records", count).Int64("offset", offset).Int64("size", info.Size()).Msg("caught up")

	if count > 0 && last.State == session.StateRunning {
		r.logger.Info().Str("package", last.PackageName).Msg("session already running")
		r.deliver(Event{Record: last, CatchUp: true})
	}
	return nil
}

// scan walks complete lines from offset, handing every built record to emit.
// While tailing, the stored offset advances after each consumed line or block
// and an unfinished block is given time to settle before it is left for the
// next pass. During catch-up an unfinished block is still parsed, but the
// returned offset points at its start so it is read again in full.
func (r *Reader) scan(ctx context.Context, h io.ReadSeeker, from int64, tailing bool, emit func(session.Record)) (int64, error) {
	cur, err := newLineCursor(h, from)
	if err != nil {
		return from, err
	}

	offset := from
	advance := func(to int64) {
		offset = to
		if tailing {
			r.offset.Store(to)
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return offset, err
		}
		ln, err := cur.next()
		if errors.Is(err, io.EOF) {
			if cur.partial > 0 {
				r.logger.Trace().Int("bytes", cur.partial).Msg("partial line left for next pass")
			}
			return offset, nil
		}
		if err != nil {
			return offset, fmt.Errorf("read log: %w", err)
		}

		dialect, ok := session.DetectTrigger(ln.text)
		if !ok {
			advance(ln.end)
			continue
		}

		blk, err := r.extract(ctx, cur, ln, dialect, tailing)
		if err != nil {
			return offset, err
		}
		switch blk.ending {
		case blockInterrupted:
			r.logger.Debug().Int64("offset", blk.start).Stringer("dialect", dialect).Msg("discarding interrupted block")
			advance(blk.end)
		case blockTruncated:
			if tailing {
				r.logger.Debug().Int64("offset", blk.start).Msg("block still being written, retrying on next change")
				return offset, nil
			}
			r.build(blk, emit)
			return offset, nil
		default:
			r.build(blk, emit)
			advance(blk.end)
		}
	}
}

func (r *Reader) extract(ctx context.Context, cur *lineCursor, trigger line, dialect session.Dialect, tailing bool) (block, error) {
	delay := r.settleDelay
	if delay <= 0 {
		delay = dialect.SettleDelay()
	}
	for attempt := 0; ; attempt++ {
		blk, err := extractBlock(cur, trigger, dialect)
		if err != nil || blk.ending != blockTruncated || !tailing || attempt >= r.settleAttempts {
			return blk, err
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return blk, err
		}
		if err := cur.reset(trigger.end); err != nil {
			return blk, err
		}
	}
}

func (r *Reader) build(blk block, emit func(session.Record)) {
	rec, err := session.Parse(blk.dialect, blk.text)
	switch {
	case err == nil:
		emit(rec)
	case errors.Is(err, session.ErrUnparsable):
		r.logger.Warn().Err(err).Stringer("dialect", blk.dialect).Int64("offset", blk.start).Msg("failed to parse session block")
	case errors.Is(err, session.ErrSystemPackage):
		r.logger.Trace().Err(err).Msg("skipping system level application")
	default:
		r.logger.Debug().Err(err).Stringer("dialect", blk.dialect).Int64("offset", blk.start).Msg("skipping malformed block")
	}
}

func (r *Reader) deliver(ev Event) {
	ev.Source = r.name
	r.mu.Lock()
	r.status.Events++
	r.status.LastEvent = time.Now()
	r.status.LastPackage = ev.Record.PackageName
	r.status.LastState = ev.Record.State
	r.mu.Unlock()

	r.logger.Debug().
		Str("package", ev.Record.PackageName).
		Stringer("state", ev.Record.State).
		Bool("catch_up", ev.CatchUp).
		Msg("session event")
	r.handler(ev)
}

func (r *Reader) fail(err error, msg string) {
	r.logger.Error().Err(err).Msg(msg)
	r.recordError(err)
}

func (r *Reader) recordError(err error) {
	r.mu.Lock()
	r.status.LastError = err
	r.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
