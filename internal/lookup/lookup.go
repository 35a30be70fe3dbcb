// Package lookup resolves Android package names to store listing metadata
// (icon artwork and display title) so presence updates can show real artwork.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"
	"golang.org/x/sync/singleflight"
)

// ErrNotFound reports that the store has no usable listing for a package.
var ErrNotFound = errors.New("listing not found")

const (
	// DefaultBaseURL is the public store host.
	DefaultBaseURL   = "https://play.google.com"
	defaultUserAgent = "playpresence/0.1"
	defaultRetries   = 3
	defaultCacheSize = 256
	requestTimeout   = 10 * time.Second
	titleSuffix      = " - Apps on Google Play"
	maxPageBytes     = 4 << 20
)

// Info is the metadata scraped from a store listing.
type Info struct {
	IconURL string
	Title   string
}

// Resolver is implemented by *Client.
type Resolver interface {
	Lookup(ctx context.Context, pkg string) (Info, error)
}

var _ Resolver = (*Client)(nil)

// Options configures a Client. Zero values select defaults.
type Options struct {
	BaseURL    string
	Cache      *lru.Cache[string, Info]
	HTTPClient *http.Client
	Retries    int
	Backoff    func(attempt int) time.Duration
	Logger     zerolog.Logger
}

// Client fetches store listings and caches successful lookups.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	cache     *lru.Cache[string, Info]
	retries   int
	backoff   func(int) time.Duration
	userAgent string
	logger    zerolog.Logger
	group     singleflight.Group
}

// NewCache builds an LRU cache for listing metadata.
func NewCache(size int) (*lru.Cache[string, Info], error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, Info](size)
	if err != nil {
		return nil, fmt.Errorf("create lookup cache: %w", err)
	}
	return cache, nil
}

// NewClient builds a Client from opts.
func NewClient(opts Options) (*Client, error) {
	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	cache := opts.Cache
	if cache == nil {
		if cache, err = NewCache(defaultCacheSize); err != nil {
			return nil, err
		}
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	retries := opts.Retries
	if retries <= 0 {
		retries = defaultRetries
	}
	backoff := opts.Backoff
	if backoff == nil {
		backoff = ExponentialBackoff
	}
	return &Client{
		baseURL:   base,
		http:      httpClient,
		cache:     cache,
		retries:   retries,
		backoff:   backoff,
		userAgent: defaultUserAgent,
		logger:    opts.Logger.With().Str("component", "lookup").Logger(),
	}, nil
}

// ExponentialBackoff waits 2^attempt-1 seconds before retry number attempt.
func ExponentialBackoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return time.Duration((1<<attempt)-1) * time.Second
}

// Lookup returns the listing metadata for pkg. Only successful lookups are
// cached; failures are retried on the next call.
func (c *Client) Lookup(ctx context.Context, pkg string) (Info, error) {
	if c == nil {
		return Info{}, fmt.Errorf("client is nil")
	}
	pkg = strings.TrimSpace(pkg)
	if pkg == "" {
		return Info{}, fmt.Errorf("package name required")
	}
	if info, ok := c.cache.Get(pkg); ok {
		return info, nil
	}

	v, err, _ := c.group.Do(pkg, func() (any, error) {
		info, err := c.fetchWithRetry(ctx, pkg)
		if err != nil {
			return Info{}, err
		}
		c.cache.Add(pkg, info)
		return info, nil
	})
	if err != nil {
		return Info{}, err
	}
	return v.(Info), nil
}


func (c *Client) fetchWithRetry(ctx context.Context, pkg string) (Info, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			wait := c.backoff(attempt)
			c.logger.Debug().Str("package", pkg).Int("attempt", attempt).Dur("wait", wait).Err(lastErr).Msg("retrying listing lookup")
			select {
			case <-ctx.Done():
				return Info{}, ctx.Err()
			case <-time.After(wait):
			}
		}
		info, err := c.fetch(ctx, pkg)
		if err == nil {
			return info, nil
		}
		if errors.Is(err, ErrNotFound) || ctx.Err() != nil {
			return Info{}, err
		}
		lastErr = err
	}
	return Info{}, fmt.Errorf("lookup %s: %w", pkg, lastErr)
}

func (c *Client) fetch(ctx context.Context, pkg string) (Info, error) {
	values := url.Values{}
	values.Set("id", pkg)
	values.Set("hl", "en")
	rel := &url.URL{Path: "/store/apps/details", RawQuery: values.Encode()}
	reqURL := c.baseURL.ResolveReference(rel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return Info{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return Info{}, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return Info{}, fmt.Errorf("%s: %w", pkg, ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		return Info{}, fmt.Errorf("store %s returned status %d", rel.String(), resp.StatusCode)
	}

	info, err := parseListing(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Info{}, fmt.Errorf("parse listing: %w", err)
	}
	if info.IconURL == "" {
		c.logger.Warn().Str("package", pkg).Msg("listing has no icon")
		return Info{}, fmt.Errorf("%s: %w", pkg, ErrNotFound)
	}
	return info, nil
}

// parseListing extracts og:image and og:title from a listing page.
func parseListing(r io.Reader) (Info, error) {
	var info Info
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return info, nil
			}
			return info, z.Err()
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data == "body" {
				return info, nil
			}
			if tok.Data != "meta" {
				continue
			}
			prop, content := metaAttrs(tok)
			switch prop {
			case "og:image":
				if info.IconURL == "" {
					info.IconURL = content
				}
			case "og:title":
				if info.Title == "" {
					info.Title = strings.TrimSpace(strings.TrimSuffix(content, titleSuffix))
				}
			}
		}
	}
}

func metaAttrs(tok html.Token) (prop, content string) {
	for _, a := range tok.Attr {
		switch a.Key {
		case "property":
			prop = a.Val
		case "content":
			content = strings.TrimSpace(a.Val)
		}
	}
	return prop, content
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse lookup base url %q: %w", raw, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
