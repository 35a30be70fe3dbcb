package presence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/playpresence/internal/discord"
	"github.com/five82/playpresence/internal/features"
)

// DefaultApplicationID is the generic application used when no official
// presence exists for a title.
const DefaultApplicationID = "1204167311922167860"

const defaultRefresh = 5 * time.Second

var errBackingOff = errors.New("waiting before reconnect")

// Transport publishes activities for one application id.
type Transport interface {
	ApplicationID() string
	Connect(ctx context.Context) error
	Connected() bool
	SetActivity(a *discord.Activity) error
	ClearActivity() error
	Close() error
}

var _ Transport = (*discord.Client)(nil)

// HandlerOptions configure a Handler.
type HandlerOptions struct {
	// ApplicationID is used when SetPresence is not given an official id.
	ApplicationID string
	NewTransport  func(applicationID string) Transport
	Features      *features.Set
	// Refresh is how often the current activity is re-sent.
	Refresh time.Duration
	Logger  zerolog.Logger
}

// Handler owns the transport and the currently published activity.
type Handler struct {
	sessionAppID string
	newTransport func(string) Transport
	features     *features.Set
	refresh      time.Duration
	logger       zerolog.Logger
	now          func() time.Time

	mu          sync.Mutex
	transport   Transport
	current     *discord.Activity
	title       string
	failures    int
	nextConnect time.Time
	lastErr     error
}

// NewHandler builds a Handler. Nothing is dialed until the first activity.
func NewHandler(opts HandlerOptions) *Handler {
	appID := opts.ApplicationID
	if appID == "" {
		appID = DefaultApplicationID
	}
	refresh := opts.Refresh
	if refresh <= 0 {
		refresh = defaultRefresh
	}
	feats := opts.Features
	if feats == nil {
		feats = features.New(true)
	}
	newTransport := opts.NewTransport
	logger := opts.Logger.With().Str("component", "presence").Logger()
	if newTransport == nil {
		newTransport = func(id string) Transport {
			return discord.NewClient(discord.Options{ApplicationID: id, Logger: opts.Logger})
		}
	}
	return &Handler{
		sessionAppID: appID,
		newTransport: newTransport,
		features:     feats,
		refresh:      refresh,
		logger:       logger,
		now:          time.Now,
	}
}

// SetPresence publishes a for title under appID (empty selects the session
// id). It reports false when presence is disabled or a is already published.
func (h *Handler) SetPresence(ctx context.Context, title string, a *discord.Activity, appID string) bool {
	if a == nil {
		h.Clear(title)
		return true
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.features.RichPresenceEnabled() {
		h.logger.Debug().Str("title", title).Msg("rich presence is disabled")
		return false
	}
	if appID == "" {
		appID = h.sessionAppID
	}
	if h.transport != nil && h.transport.ApplicationID() == appID && h.current.Equal(a) {
		return false
	}
	if h.transport == nil || h.transport.ApplicationID() != appID {
		h.replaceTransportLocked(appID)
	}

	if appID == h.sessionAppID {
		h.logger.Info().Str("title", title).Msg("setting rich presence")
	} else {
		h.logger.Info().Str("title", title).Str("application_id", appID).Msg("setting official rich presence")
	}
	h.current = a.Clone()
	h.title = title
	h.sendLocked(ctx)
	return true
}

// Clear removes the published activity. The transport stays open.
func (h *Handler) Clear(title string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current != nil {
		if title == "" {
			title = h.title
		}
		h.logger.Info().Str("title", title).Msg("clearing rich presence")
	}
	h.current = nil
	h.title = ""
	if h.transport != nil && h.transport.Connected() {
		if err := h.transport.ClearActivity(); err != nil {
			h.recordLocked(err)
		}
	}
}

// Current returns a copy of the published activity, or nil.
func (h *Handler) Current() *discord.Activity {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current.Clone()
}

// Connected reports whether the transport is connected.
func (h *Handler) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.transport != nil && h.transport.Connected()
}

// Err returns the last transport error, cleared by the next successful send.
func (h *Handler) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

// Run re-sends the current activity every refresh interval while presence is
// enabled, then clears and closes the transport when ctx ends.
func (h *Handler) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.refresh)
	defer ticker.Stop()
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.tick(ctx)
		}
	}
}

func (h *Handler) tick(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil || !h.features.RichPresenceEnabled() {
		return
	}
	h.sendLocked(ctx)
}

func (h *Handler) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closeTransportLocked()
	h.current = nil
}

func (h *Handler) replaceTransportLocked(appID string) {
	h.closeTransportLocked()
	h.logger.Debug().Str("application_id", appID).Msg("initializing ipc client")
	h.transport = h.newTransport(appID)
	h.failures = 0
	h.nextConnect = time.Time{}
}

func (h *Handler) closeTransportLocked() {
	if h.transport == nil {
		return
	}
	if h.transport.Connected() {
		_ = h.transport.ClearActivity()
	}
	if err := h.transport.Close(); err != nil {
		h.logger.Debug().Err(err).Msg("close ipc client")
	}
	h.transport = nil
}

func (h *Handler) sendLocked(ctx context.Context) {
	if err := h.connectLocked(ctx); err != nil {
		if !errors.Is(err, errBackingOff) {
			h.recordLocked(err)
		}
		return
	}
	var err error
	if h.current == nil {
		err = h.transport.ClearActivity()
	} else {
		err = h.transport.SetActivity(h.current)
	}
	if err != nil {
		h.recordLocked(err)
		return
	}
	h.lastErr = nil
}

func (h *Handler) connectLocked(ctx context.Context) error {
	if h.transport == nil {
		h.replaceTransportLocked(h.sessionAppID)
	}
	if h.transport.Connected() {
		return nil
	}
	now := h.now()
	if now.Before(h.nextConnect) {
		return errBackingOff
	}
	if err := h.transport.Connect(ctx); err != nil {
		h.failures++
		h.nextConnect = now.Add(calculateBackoff(h.failures, h.refresh))
		return fmt.Errorf("connect: %w", err)
	}
	h.failures = 0
	h.nextConnect = time.Time{}
	return nil
}

func (h *Handler) recordLocked(err error) {
	h.lastErr = err
	h.logger.Warn().Err(err).Int("failures", h.failures).Msg("rich presence update failed")
}
