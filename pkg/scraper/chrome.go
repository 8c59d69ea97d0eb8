package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// contentSelector matches the dynamic parts of listing and detail pages.
const contentSelector = ".station, .nutrition-table-row"

// settleFallback is waited for when the content never shows up, pages of closed
// courts are still read afterwards.
const settleFallback = 1500 * time.Millisecond

// ChromeBrowser is one headless Chrome process shared by all sessions.
// Every session is a separate tab of that browser.
type ChromeBrowser struct {
	parent  context.Context
	timeout time.Duration

	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

func NewChromeBrowser(parent context.Context, timeout time.Duration) *ChromeBrowser {
	return &ChromeBrowser{
		parent:  parent,
		timeout: timeout,
	}
}

// start launches the browser on first use. A browser that died is started again.
func (b *ChromeBrowser) start() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctx != nil && b.ctx.Err() == nil {
		return b.ctx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(userAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(b.parent, opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	// the first run starts the process, a broken installation fails here
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("could not start chrome: %w", err)
	}

	b.ctx, b.cancel, b.allocCancel = ctx, cancel, allocCancel
	return ctx, nil
}

// Session opens a new tab. It matches SessionFactory.
func (b *ChromeBrowser) Session() (Renderer, error) {
	browserCtx, err := b.start()
	if err != nil {
		return nil, err
	}

	ctx, cancel := chromedp.NewContext(browserCtx)
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("could not open tab: %w", err)
	}

	return &ChromeTab{
		ctx:      ctx,
		cancel:   cancel,
		timeout:  b.timeout,
		settle:   15 * time.Second,
		fallback: settleFallback,
	}, nil
}

// Close stops the browser process.
func (b *ChromeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctx == nil {
		return nil
	}
	b.cancel()
	b.allocCancel()
	b.ctx = nil
	return nil
}

// ChromeSessions returns a factory of tabs of one shared browser.
func ChromeSessions(parent context.Context, timeout time.Duration) SessionFactory {
	return NewChromeBrowser(parent, timeout).Session
}

// ChromeTab renders pages in one tab, so scripts on the page run before the markup is read.
type ChromeTab struct {
	ctx      context.Context
	cancel   context.CancelFunc
	timeout  time.Duration
	settle   time.Duration
	fallback time.Duration
}

func (r *ChromeTab) Render(ctx context.Context, url string) (string, error) {
	runCtx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("could not navigate to %s: %w", url, err)
	}

	// content is loaded by scripts, a closed court never shows it
	waitCtx, waitCancel := context.WithTimeout(runCtx, r.settle)
	waitErr := chromedp.Run(waitCtx, chromedp.WaitVisible(contentSelector, chromedp.ByQuery))
	waitCancel()
	if waitErr != nil {
		if err := sleep(runCtx, r.fallback); err != nil {
			return "", fmt.Errorf("could not render %s: %w", url, err)
		}
	}

	var markup string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &markup, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("could not read markup of %s: %w", url, err)
	}

	return markup, nil
}

// Close closes the tab, the browser keeps running.
func (r *ChromeTab) Close() error {
	r.cancel()
	return nil
}

// sleep waits for d or until ctx is done.
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
