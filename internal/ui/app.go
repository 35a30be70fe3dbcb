package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/five82/playpresence/internal/features"
	"github.com/five82/playpresence/internal/prefs"
	"github.com/five82/playpresence/internal/state"
)

// Options configures the UI.
type Options struct {
	Context  context.Context
	Store    *state.Store
	Features *features.Set
	// LogPath is the application log shown in the log pane.
	LogPath   string
	PrefsPath string
	Prefs     prefs.Prefs
	PollTick  time.Duration
	Logger    zerolog.Logger
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	store     *state.Store
	features  *features.Set
	logPath   string
	prefsPath string
	prefs     prefs.Prefs
	pollTick  time.Duration
	keys      keyMap
	logger    zerolog.Logger

	// UI state
	theme    Theme
	width    int
	height   int
	ready    bool
	showHelp bool
	errorMsg string

	// Data state
	snapshot    state.Snapshot
	lastUpdated time.Time

	// Log state
	logViewport viewport.Model
	logLines    []string
	follow      bool
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = DefaultUIInterval
	}

	p := opts.Prefs
	if p.Theme == "" {
		p.Theme = prefs.Default().Theme
	}

	return Model{
		ctx:         ctx,
		store:       opts.Store,
		features:    opts.Features,
		logPath:     opts.LogPath,
		prefsPath:   opts.PrefsPath,
		prefs:       p,
		pollTick:    pollTick,
		keys:        DefaultKeyMap(),
		logger:      opts.Logger.With().Str("component", "ui").Logger(),
		theme:       GetTheme(p.Theme),
		logViewport: viewport.New(0, 0),
		follow:      true,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.pollTick), readLogCmd(m.logPath)}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resize()
		return m, nil

	case tickMsg:
		return m.handleTick()

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		m.lastUpdated = time.Now()
		if m.ready {
			m.resize()
		}
		return m, nil

	case logLinesMsg:
		m.handleLogLines(msg)
		return m, nil

	case logErrorMsg:
		m.errorMsg = "log: " + msg.err.Error()
		return m, nil

	case contextDoneMsg:
		return m, tea.Quit
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	b.WriteString(m.renderSessionPanel())
	b.WriteString("\n")
	b.WriteString(m.renderLogs())
	return b.String()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.prefs.Theme = m.theme.Name
		m.savePrefs()
		m.updateLogViewport()

	case key.Matches(msg, m.keys.TogglePresence):
		if m.features == nil {
			return m, nil
		}
		m.prefs.RichPresenceEnabled = m.features.ToggleRichPresence()
		m.savePrefs()
		if m.store != nil {
			return m, fetchSnapshotCmd(m.store)
		}

	case key.Matches(msg, m.keys.ToggleFollow):
		m.follow = !m.follow
		if m.follow {
			m.logViewport.GotoBottom()
		}

	case key.Matches(msg, m.keys.Up):
		m.follow = false
		m.logViewport.ScrollUp(1)
	case key.Matches(msg, m.keys.Down):
		m.logViewport.ScrollDown(1)
	case key.Matches(msg, m.keys.PageUp):
		m.follow = false
		m.logViewport.PageUp()
	case key.Matches(msg, m.keys.PageDown):
		m.logViewport.PageDown()
	case key.Matches(msg, m.keys.HalfPageUp):
		m.follow = false
		m.logViewport.HalfPageUp()
	case key.Matches(msg, m.keys.HalfPageDown):
		m.logViewport.HalfPageDown()
	case key.Matches(msg, m.keys.Top):
		m.follow = false
		m.logViewport.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		m.follow = true
		m.logViewport.GotoBottom()
	}

	return m, nil
}

// handleTick processes the polling tick.
func (m Model) handleTick() (tea.Model, tea.Cmd) {
	if m.ctx.Err() != nil {
		return m, tea.Quit
	}
	var cmds []tea.Cmd
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	if m.follow {
		if cmd := readLogCmd(m.logPath); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	cmds = append(cmds, tickCmd(m.pollTick))
	return m, tea.Batch(cmds...)
}

// resize fits the log viewport into the rows left under the session panel.
func (m *Model) resize() {
	used := chromeRows + lipgloss.Height(m.renderSessionPanel()) + logBoxRows + logStatusRows
	m.logViewport.Width = max(m.width-2, 0)
	m.logViewport.Height = max(m.height-used, minLogRows)
	m.updateLogViewport()
}

func (m Model) presenceEnabled() bool {
	if m.features != nil {
		return m.features.RichPresenceEnabled()
	}
	return m.snapshot.Presence.Enabled
}

func (m *Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
		m.errorMsg = "prefs: " + err.Error()
		m.logger.Warn().Err(err).Str("path", m.prefsPath).Msg("save preferences failed")
	}
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type contextDoneMsg struct{}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

// Run starts the Bubble Tea program and blocks until the user quits or the
// context is cancelled.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))

	stop := context.AfterFunc(m.ctx, func() { p.Send(contextDoneMsg{}) })
	defer stop()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}
