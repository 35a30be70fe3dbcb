package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/five82/playpresence/internal/config"
	"github.com/five82/playpresence/internal/discord"
	"github.com/five82/playpresence/internal/features"
	"github.com/five82/playpresence/internal/logging"
	"github.com/five82/playpresence/internal/logtail"
	"github.com/five82/playpresence/internal/lookup"
	"github.com/five82/playpresence/internal/prefs"
	"github.com/five82/playpresence/internal/presence"
	"github.com/five82/playpresence/internal/state"
	"github.com/five82/playpresence/internal/ui"
)

// Options configure the playpresence application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/playpresence/prefs.toml

	// Headless skips the status screen and logs to stderr instead.
	Headless bool
	// PresenceDisabledOnStart starts with rich presence off regardless of
	// the saved preference.
	PresenceDisabledOnStart bool

	// Overrides for the config file; empty keeps the configured value.
	ApplicationID string
	LogLevel      string
	NoFileLogging bool
}

// Run boots the readers, the presence pipeline and the status screen and
// blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyOverrides(&cfg, opts)

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	userPrefs, prefsErr := prefs.Load(prefsPath)

	logFile := ""
	if cfg.FileLogging {
		logFile = cfg.LogFile
	}
	var console io.Writer
	if opts.Headless {
		console = os.Stderr
	}
	logger, closer, err := logging.New(logging.Options{
		Level:    cfg.LogLevel,
		FilePath: logFile,
		Console:  console,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = closer.Close() }()

	if prefsErr != nil {
		logger.Warn().Err(prefsErr).Str("path", prefsPath).Msg("preferences unreadable, using defaults")
	}

	feats := features.New(userPrefs.RichPresenceEnabled && !opts.PresenceDisabledOnStart)

	cache, err := lookup.NewCache(cfg.LookupCacheSize)
	if err != nil {
		return err
	}
	resolver, err := lookup.NewClient(lookup.Options{
		BaseURL: cfg.LookupBaseURL,
		Cache:   cache,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("init store lookup: %w", err)
	}

	detectables := discord.NewDetectables(discord.DetectableOptions{
		URL:    cfg.DetectableURL,
		Logger: logger,
	})

	store := &state.Store{}
	handler := presence.NewHandler(presence.HandlerOptions{
		ApplicationID: cfg.ApplicationID,
		Features:      feats,
		Refresh:       cfg.PresenceRefresh,
		Logger:        logger,
	})
	dispatcher := presence.NewDispatcher(presence.DispatcherOptions{
		Sink:     handler,
		Lookup:   resolver,
		AppIDs:   detectables,
		Features: feats,
		Store:    store,
		Logger:   logger,
	})

	readers := []*logtail.Reader{
		newReader("release", cfg.LogPath, cfg, dispatcher, logger),
		newReader("developer", cfg.DevLogPath, cfg, dispatcher, logger),
	}
	sources := make([]StatusSource, 0, len(readers))
	for _, r := range readers {
		sources = append(sources, r)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	detectables.Start(gctx)
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return handler.Run(gctx) })
	for _, r := range readers {
		g.Go(func() error { return r.Run(gctx) })
	}
	g.Go(func() error {
		RunPoller(gctx, store, sources, handler, defaultPollInterval)
		return nil
	})

	logger.Info().
		Str("release_log", cfg.LogPath).
		Str("developer_log", cfg.DevLogPath).
		Bool("rich_presence", feats.RichPresenceEnabled()).
		Bool("headless", opts.Headless).
		Msg("playpresence started")

	var runErr error
	if opts.Headless {
		<-gctx.Done()
	} else {
		runErr = ui.Run(ui.Options{
			Context:   gctx,
			Store:     store,
			Features:  feats,
			LogPath:   logFile,
			PrefsPath: prefsPath,
			Prefs:     userPrefs,
			PollTick:  defaultPollInterval,
			Logger:    logger,
		})
	}

	cancel()
	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	logger.Info().Msg("playpresence stopped")
	return runErr
}

func newReader(name, path string, cfg config.Config, dispatcher *presence.Dispatcher, logger zerolog.Logger) *logtail.Reader {
	return logtail.New(logtail.Options{
		Name:            name,
		Path:            path,
		Handler:         dispatcher.Handle,
		Logger:          logger,
		WaitInterval:    cfg.WaitForFile,
		DirPollInterval: cfg.DirectoryPoll,
		RecheckInterval: cfg.Recheck,
	})
}

func applyOverrides(cfg *config.Config, opts Options) {
	if id := strings.TrimSpace(opts.ApplicationID); id != "" {
		cfg.ApplicationID = id
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.LogLevel = level
	}
	if opts.NoFileLogging {
		cfg.FileLogging = false
	}
}
