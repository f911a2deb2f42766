package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"CommunityInsights/internal/infrastructure/parser"
	"CommunityInsights/internal/scanner"
	"CommunityInsights/pkg/logger"
)

const (
	emailSelector    = `input[type="email"]`
	passwordSelector = `input[type="password"]`
	submitSelector   = `button[type="submit"]`

	pollInterval      = 250 * time.Millisecond
	idlePollInterval  = 100 * time.Millisecond
	screenshotTimeout = 30 * time.Second
	screenshotQuality = 90
)

// ErrNetworkBusy is returned when requests keep flowing past the idle timeout.
var ErrNetworkBusy = errors.New("network did not become idle")

// Options configure the headless Chrome instance.
type Options struct {
	Headless          bool
	ExecPath          string
	UserAgent         string
	WindowWidth       int
	WindowHeight      int
	NavigationTimeout time.Duration
}

// Session is one headless Chrome tab driven over the DevTools protocol.
type Session struct {
	tab         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	opts        Options
	logger      *slog.Logger
	requests    *requestTracker

	closeOnce sync.Once
	closeErr  error
}

var (
	_ scanner.Page      = (*Session)(nil)
	_ parser.HTMLSource = (*Session)(nil)
)

// NewSession launches Chrome and opens a tab with network tracking enabled.
func NewSession(ctx context.Context, opts Options, log *slog.Logger) (*Session, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.NoSandbox,
		chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tab, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Printf(log, slog.LevelDebug)),
		chromedp.WithErrorf(logger.Printf(log, slog.LevelWarn)),
	)

	s := &Session{
		tab:         tab,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		opts:        opts,
		logger:      log,
		requests:    newRequestTracker(time.Now),
	}
	chromedp.ListenTarget(tab, s.onEvent)

	if err := s.start(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	log.Info("browser started", "headless", opts.Headless, "window", fmt.Sprintf("%dx%d", opts.WindowWidth, opts.WindowHeight))
	return s, nil
}

func (s *Session) onEvent(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		s.requests.started(string(e.RequestID))
	case *network.EventLoadingFinished:
		s.requests.finished(string(e.RequestID))
	case *network.EventLoadingFailed:
		s.requests.finished(string(e.RequestID))
	}
}

// start performs the first Run on the bare tab context. chromedp allocates the
// browser process with the context of that first Run, so it must outlive the
// call; a cancelled ctx during start-up tears the tab down instead.
func (s *Session) start(ctx context.Context) error {
	stop := context.AfterFunc(ctx, s.cancelTab)
	err := chromedp.Run(s.tab, network.Enable())
	if !stop() {
		return fmt.Errorf("browser start interrupted: %w", ctx.Err())
	}
	return err
}

// run executes actions on the tab bounded by timeout and by the caller's ctx.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// Login fills the credential form and waits for the page to move away from it.
func (s *Session) Login(ctx context.Context, loginURL string, creds scanner.Credentials) (string, error) {
	var before string
	err := s.run(ctx, s.opts.NavigationTimeout,
		chromedp.Navigate(loginURL),
		chromedp.WaitVisible(emailSelector, chromedp.ByQuery),
		chromedp.SendKeys(emailSelector, creds.Email, chromedp.ByQuery),
		chromedp.SendKeys(passwordSelector, creds.Password, chromedp.ByQuery),
		chromedp.Location(&before),
		chromedp.Click(submitSelector, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("submit login form: %w", err)
	}

	deadline := time.Now().Add(s.opts.NavigationTimeout)
	current := before
	for time.Now().Before(deadline) {
		if err := sleep(ctx, pollInterval); err != nil {
			return current, err
		}
		if err := s.run(ctx, s.opts.NavigationTimeout, chromedp.Location(&current)); err != nil {
			return "", fmt.Errorf("read location: %w", err)
		}
		if current != before {
			break
		}
	}

	s.logger.Debug("login navigation settled", "url", current)
	return current, nil
}

// Navigate loads pageURL within the navigation timeout.
func (s *Session) Navigate(ctx context.Context, pageURL string) error {
	if err := s.run(ctx, s.opts.NavigationTimeout, chromedp.Navigate(pageURL)); err != nil {
		return fmt.Errorf("navigate %s: %w", pageURL, err)
	}
	return nil
}

// ScrollToBottom scrolls the window to the current end of the document.
func (s *Session) ScrollToBottom(ctx context.Context) error {
	var height int64
	script := `window.scrollTo(0, document.body.scrollHeight); document.body.scrollHeight`
	if err := s.run(ctx, s.opts.NavigationTimeout, chromedp.Evaluate(script, &height)); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}

// ScrollHeight reports document.body.scrollHeight.
func (s *Session) ScrollHeight(ctx context.Context) (int64, error) {
	var height int64
	if err := s.run(ctx, s.opts.NavigationTimeout, chromedp.Evaluate(`document.body.scrollHeight`, &height)); err != nil {
		return 0, fmt.Errorf("read scroll height: %w", err)
	}
	return height, nil
}

// WaitNetworkIdle blocks until no request has been in flight for idle, or
// returns ErrNetworkBusy once timeout elapses.
func (s *Session) WaitNetworkIdle(ctx context.Context, idle, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if s.requests.idleFor() >= idle {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w after %s (%d in flight)", ErrNetworkBusy, timeout, s.requests.inFlight())
		}
		if err := sleep(ctx, idlePollInterval); err != nil {
			return err
		}
	}
}

// HTML returns the outer HTML of the whole document.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var markup string
	if err := s.run(ctx, s.opts.NavigationTimeout, chromedp.OuterHTML("html", &markup, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read outer html: %w", err)
	}
	return markup, nil
}

// Screenshot writes a full-page PNG to path.
func (s *Session) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := s.run(ctx, screenshotTimeout, chromedp.FullScreenshot(&buf, screenshotQuality)); err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write screenshot: %w", err)
	}
	return nil
}

// Close shuts the browser down; it is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if err := chromedp.Cancel(s.tab); err != nil && !errors.Is(err, context.Canceled) {
			s.closeErr = fmt.Errorf("close browser: %w", err)
		}
		s.cancelTab()
		s.cancelAlloc()
		s.logger.Debug("browser closed")
	})
	return s.closeErr
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
