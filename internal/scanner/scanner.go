package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"CommunityInsights/internal/domain"
	"CommunityInsights/internal/ports"
)

var (
	// ErrNotOpened is returned by Collect before a feed has been opened.
	ErrNotOpened = errors.New("no community feed is open")
	// ErrFeedUnavailable marks navigation or render failures of a feed.
	ErrFeedUnavailable = errors.New("community feed unavailable")
)

var timestampSuffix = regexp.MustCompile(`\s*•.*$`)

const defaultFeedPollInterval = 250 * time.Millisecond

// Credentials are submitted on the platform login form.
type Credentials struct {
	Email    string
	Password string
}

// Page is the browser surface the crawler drives.
type Page interface {
	// Login submits credentials and returns the URL the session settled on.
	Login(ctx context.Context, loginURL string, creds Credentials) (string, error)
	Navigate(ctx context.Context, pageURL string) error
	ScrollToBottom(ctx context.Context) error
	ScrollHeight(ctx context.Context) (int64, error)
	WaitNetworkIdle(ctx context.Context, idle, timeout time.Duration) error
	Screenshot(ctx context.Context, path string) error
	Close() error
}

// Element is an opaque handle to a rendered post, owned by the extractor.
type Element any

// RawFields are the unprocessed values read from one post element.
type RawFields struct {
	Href      string
	Author    string
	Timestamp string
	Content   string
}

// PageExtractor isolates the markup strategy from the crawl loop.
type PageExtractor interface {
	FindPosts(ctx context.Context) ([]Element, error)
	ExtractFields(el Element) (RawFields, error)
}

// Options tune authentication, feed waits and scroll pacing.
type Options struct {
	LoginURL         string
	Credentials      Credentials
	FeedTimeout      time.Duration
	FeedPollInterval time.Duration
	NetworkIdle      time.Duration
	IdleTimeout      time.Duration
	FallbackDelay    time.Duration
	SettleDelay      time.Duration
	DiagnosticsDir   string
}

// Crawler collects unique posts from an infinitely scrolling community feed.
type Crawler struct {
	page      Page
	extractor PageExtractor
	opts      Options
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error

	community string

	closeOnce sync.Once
	closeErr  error
}

var _ ports.FeedCrawler = (*Crawler)(nil)

// New wires a crawler over a browser page and a markup extractor.
func New(page Page, extractor PageExtractor, opts Options, logger *slog.Logger) *Crawler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.FeedPollInterval <= 0 {
		opts.FeedPollInterval = defaultFeedPollInterval
	}
	return &Crawler{
		page:      page,
		extractor: extractor,
		opts:      opts,
		logger:    logger,
		sleep:     sleepContext,
	}
}

// Authenticate logs in once; any failure is reported as false.
func (c *Crawler) Authenticate(ctx context.Context) bool {
	finalURL, err := c.page.Login(ctx, c.opts.LoginURL, c.opts.Credentials)
	if err != nil {
		c.logger.Error("login failed", "error", err)
		return false
	}
	if finalURL == "" || onLoginPage(finalURL, c.opts.LoginURL) {
		c.logger.Warn("login did not leave the login page", "url", finalURL)
		return false
	}
	c.logger.Info("logged in", "url", finalURL)
	return true
}

// OpenFeed navigates to a community and waits for the first post to render.
func (c *Crawler) OpenFeed(ctx context.Context, communityURL string) error {
	c.community = ""

	if err := c.page.Navigate(ctx, communityURL); err != nil {
		c.captureDiagnostics(ctx, communityURL)
		return fmt.Errorf("%w: navigate %s: %w", ErrFeedUnavailable, communityURL, err)
	}
	if err := c.waitForPosts(ctx); err != nil {
		c.captureDiagnostics(ctx, communityURL)
		return fmt.Errorf("%w: %s: %w", ErrFeedUnavailable, communityURL, err)
	}

	c.community = communityURL
	c.logger.Debug("feed opened", "community", communityURL)
	return nil
}

func (c *Crawler) waitForPosts(ctx context.Context) error {
	deadline := time.Now().Add(c.opts.FeedTimeout)
	for {
		elements, err := c.extractor.FindPosts(ctx)
		if err == nil && len(elements) > 0 {
			return nil
		}
		if time.Now().After(deadline) {
			if err != nil {
				return fmt.Errorf("no post rendered within %s: %w", c.opts.FeedTimeout, err)
			}
			return fmt.Errorf("no post rendered within %s", c.opts.FeedTimeout)
		}
		if err := c.sleep(ctx, c.opts.FeedPollInterval); err != nil {
			return err
		}
	}
}

// Collect reads, scrolls and re-reads the open feed until limit unique posts
// are held or a scroll neither adds posts nor grows the page.
func (c *Crawler) Collect(ctx context.Context, limit int) ([]domain.CommunityPost, error) {
	if c.community == "" {
		return nil, ErrNotOpened
	}
	if limit <= 0 {
		return nil, nil
	}

	communityURL := c.community
	posts := make([]domain.CommunityPost, 0, limit)
	seen := make(map[string]struct{}, limit)

	lastHeight, err := c.page.ScrollHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("measure feed height: %w", err)
	}

	for cycle := 1; ; cycle++ {
		elements, err := c.extractor.FindPosts(ctx)
		if err != nil {
			return nil, fmt.Errorf("find posts: %w", err)
		}

		added := 0
		for _, el := range elements {
			fields, err := c.extractor.ExtractFields(el)
			if err != nil {
				c.logger.Warn("skip post element", "community", communityURL, "error", err)
				continue
			}

			id := canonicalID(communityURL, fields.Href)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			posts = append(posts, newPost(id, communityURL, fields))
			added++

			if len(posts) >= limit {
				c.logger.Debug("post limit reached", "community", communityURL, "limit", limit, "cycles", cycle)
				return posts, nil
			}
		}

		c.logger.Debug("scroll cycle", "community", communityURL, "cycle", cycle,
			"elements", len(elements), "added", added, "total", len(posts))

		if err := c.page.ScrollToBottom(ctx); err != nil {
			return nil, fmt.Errorf("scroll feed: %w", err)
		}
		if err := c.page.WaitNetworkIdle(ctx, c.opts.NetworkIdle, c.opts.IdleTimeout); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Debug("network idle wait timed out, using fixed delay", "error", err)
			if err := c.sleep(ctx, c.opts.FallbackDelay); err != nil {
				return nil, err
			}
		}

		height, err := c.page.ScrollHeight(ctx)
		if err != nil {
			return nil, fmt.Errorf("measure feed height: %w", err)
		}
		if added == 0 && height == lastHeight {
			c.logger.Info("feed exhausted", "community", communityURL, "collected", len(posts))
			return posts, nil
		}
		lastHeight = height

		if err := c.sleep(ctx, c.opts.SettleDelay); err != nil {
			return nil, err
		}
	}
}

// Close releases the browser session; later calls return the first result.
func (c *Crawler) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.page.Close()
	})
	return c.closeErr
}

func (c *Crawler) captureDiagnostics(ctx context.Context, communityURL string) {
	if c.opts.DiagnosticsDir == "" {
		return
	}
	if err := os.MkdirAll(c.opts.DiagnosticsDir, 0o755); err != nil {
		c.logger.Warn("create diagnostics dir", "error", err)
		return
	}

	name := fmt.Sprintf("feed-%s-%s.png", domain.SheetName(communityURL), time.Now().UTC().Format("20060102-150405"))
	path := filepath.Join(c.opts.DiagnosticsDir, name)
	if err := c.page.Screenshot(ctx, path); err != nil {
		c.logger.Warn("capture feed screenshot", "community", communityURL, "error", err)
		return
	}
	c.logger.Info("feed screenshot saved", "community", communityURL, "path", path)
}

func newPost(id, communityURL string, fields RawFields) domain.CommunityPost {
	author := strings.TrimSpace(fields.Author)
	if author == "" {
		author = domain.UnknownAuthor
	}
	timestamp := strings.TrimSpace(timestampSuffix.ReplaceAllString(fields.Timestamp, ""))
	if timestamp == "" {
		timestamp = domain.UnknownTime
	}

	return domain.CommunityPost{
		ID:           id,
		Author:       author,
		Timestamp:    timestamp,
		Content:      strings.TrimSpace(fields.Content),
		URL:          id,
		CommunityURL: communityURL,
	}
}

// canonicalID resolves a permalink against the community URL. Links that do
// not point below the community path yield "".
func canonicalID(communityURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	base, err := url.Parse(communityURL)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}

	abs := base.ResolveReference(ref)
	prefix := strings.TrimRight(base.Path, "/") + "/"
	if !strings.HasPrefix(abs.Path, prefix) || len(abs.Path) <= len(prefix) {
		return ""
	}
	abs.Fragment = ""
	return abs.String()
}

func onLoginPage(current, loginURL string) bool {
	loginPath := "/login"
	if parsed, err := url.Parse(loginURL); err == nil && parsed.Path != "" {
		loginPath = strings.TrimRight(parsed.Path, "/")
	}

	parsed, err := url.Parse(current)
	if err != nil {
		return strings.Contains(current, loginPath)
	}
	return strings.HasPrefix(strings.TrimRight(parsed.Path, "/"), loginPath)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
