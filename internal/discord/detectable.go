package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultDetectableURL lists the applications Discord ships official rich
// presence for.
const DefaultDetectableURL = "https://discord.com/api/v9/games/detectable"

const (
	detectableRetries = 3
	detectableDelay   = time.Second
)

// DetectableApp is one entry of the detectable application list.
type DetectableApp struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DetectableOptions configures a Detectables registry.
type DetectableOptions struct {
	URL        string
	HTTPClient *http.Client
	Retries    int
	Delay      time.Duration
	Logger     zerolog.Logger
}

// Detectables fetches the detectable application list once and answers
// name lookups against it. A failed fetch leaves the list empty.
type Detectables struct {
	url     string
	http    *http.Client
	retries int
	delay   time.Duration
	logger  zerolog.Logger

	once   sync.Once
	ready  chan struct{}
	byName map[string]string
}

// NewDetectables builds an unloaded registry.
func NewDetectables(opts DetectableOptions) *Detectables {
	u := opts.URL
	if u == "" {
		u = DefaultDetectableURL
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	retries := opts.Retries
	if retries <= 0 {
		retries = detectableRetries
	}
	delay := opts.Delay
	if delay < 0 {
		delay = 0
	} else if delay == 0 {
		delay = detectableDelay
	}
	return &Detectables{
		url:     u,
		http:    client,
		retries: retries,
		delay:   delay,
		logger:  opts.Logger.With().Str("component", "detectables").Logger(),
		ready:   make(chan struct{}),
	}
}

// Start begins the fetch in the background. Later calls are no-ops.
func (d *Detectables) Start(ctx context.Context) {
	d.once.Do(func() {
		go func() {
			defer close(d.ready)
			apps, err := d.fetchWithRetry(ctx)
			if err != nil {
				d.logger.Error().Err(err).Msg("failed to load detectable applications")
				return
			}
			byName := make(map[string]string, len(apps))
			for _, app := range apps {
				if app.Name == "" || app.ID == "" {
					continue
				}
				if _, dup := byName[app.Name]; !dup {
					byName[app.Name] = app.ID
				}
			}
			d.byName = byName
			d.logger.Debug().Int("count", len(byName)).Msg("loaded detectable applications")
		}()
	})
}

// ApplicationID returns the official application id registered under name.
// It waits for the list to load (starting the fetch if needed) or for ctx.
func (d *Detectables) ApplicationID(ctx context.Context, name string) (string, bool) {
	if name == "" {
		return "", false
	}
	d.Start(context.WithoutCancel(ctx))
	select {
	case <-d.ready:
	case <-ctx.Done():
		return "", false
	}
	id, ok := d.byName[name]
	if ok {
		d.logger.Debug().Str("title", name).Str("application_id", id).Msg("found official presence")
	}
	return id, ok
}

func (d *Detectables) fetchWithRetry(ctx context.Context) ([]DetectableApp, error) {
	var lastErr error
	for attempt := 0; attempt <= d.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(d.delay):
			}
		}
		apps, err := d.fetch(ctx)
		if err == nil {
			return apps, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (d *Detectables) fetch(ctx context.Context) ([]DetectableApp, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("detectable list returned status %d", resp.StatusCode)
	}
	var apps []DetectableApp
	if err := json.NewDecoder(resp.Body).Decode(&apps); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return apps, nil
}
