// Package browser renders JavaScript-driven pages with headless Chrome.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// Renderer fetches pages through a headless Chrome instance started on first use.
// It implements the same PageFetcher contract as the plain HTTP client.
type Renderer struct {
	logger    arbor.ILogger
	userAgent string
	headers   network.Headers
	wait      time.Duration
	timeout   time.Duration

	mu              sync.Mutex
	browserCtx      context.Context
	allocatorCancel context.CancelFunc
	browserCancel   context.CancelFunc
}

// NewRenderer creates a renderer. wait is how long scripts get to run after navigation.
func NewRenderer(logger arbor.ILogger, userAgent string, wait, timeout time.Duration) *Renderer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Renderer{
		logger:    logger,
		userAgent: userAgent,
		headers:   network.Headers{},
		wait:      wait,
		timeout:   timeout,
	}
}

// WithAcceptLanguage sends an Accept-Language header on every navigation
func (r *Renderer) WithAcceptLanguage(value string) *Renderer {
	if value != "" {
		r.headers["Accept-Language"] = value
	}
	return r
}

// FetchPage navigates to pageURL and returns the rendered document
func (r *Renderer) FetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.start(); err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(r.browserCtx)
	defer tabCancel()
	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, r.timeout)
	defer timeoutCancel()

	// Stop the tab when the caller gives up
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	started := time.Now()
	var html string
	err := chromedp.Run(tabCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(r.headers),
		chromedp.Navigate(pageURL),
		chromedp.Sleep(r.wait),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("render %s: %w", pageURL, ctx.Err())
		}
		if r.dropDeadBrowser() {
			r.logger.Warn().Err(err).Str("url", pageURL).Msg("Headless browser exited, relaunching on next fetch")
		}
		return nil, fmt.Errorf("chromedp navigation failed for %s: %w", pageURL, err)
	}
	if html == "" {
		return nil, errors.New("empty HTML content returned")
	}

	r.logger.Debug().
		Str("url", pageURL).
		Int("bytes", len(html)).
		Str("elapsed", time.Since(started).String()).
		Msg("Rendered page")

	return []byte(html), nil
}

// start launches the browser when none is running; callers hold r.mu
func (r *Renderer) start() error {
	r.dropDeadBrowser()
	if r.browserCtx != nil {
		return nil
	}

	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if r.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(r.userAgent))
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	// Run with no actions starts the browser so launch failures surface here
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		return fmt.Errorf("failed to start headless browser: %w", err)
	}

	r.logger.Info().Msg("Headless browser started")
	r.browserCtx = browserCtx
	r.allocatorCancel = allocatorCancel
	r.browserCancel = browserCancel
	return nil
}

// Close shuts the browser down if it was started
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browserCtx == nil {
		return nil
	}
	r.release()
	r.logger.Debug().Msg("Headless browser stopped")
	return nil
}

// dropDeadBrowser releases a browser whose context has ended, e.g. after Chrome crashed.
// It reports whether one was dropped; callers hold r.mu.
func (r *Renderer) dropDeadBrowser() bool {
	if r.browserCtx == nil || r.browserCtx.Err() == nil {
		return false
	}
	r.release()
	return true
}

func (r *Renderer) release() {
	r.browserCancel()
	r.allocatorCancel()
	r.browserCtx = nil
	r.browserCancel = nil
	r.allocatorCancel = nil
}
