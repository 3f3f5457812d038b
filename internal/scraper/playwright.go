package scraper

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/krishisahay/krishisahay-go/internal/logger"
)

// BrowserConfig configures the playwright renderer.
type BrowserConfig struct {
	URL               string
	Headless          bool
	NavigationTimeout time.Duration
	SettleTime        time.Duration
	// Pagination selects the element containing the page number controls
	Pagination string
}

// BrowserRenderer renders pages in a shared Chromium instance started on first use.
// Each Render call uses its own page.
type BrowserRenderer struct {
	cfg BrowserConfig

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
}

// NewBrowserRenderer creates a renderer. The browser is not started until the first Render.
func NewBrowserRenderer(cfg BrowserConfig) *BrowserRenderer {
	return &BrowserRenderer{cfg: cfg}
}

// Render loads the listing and moves to page when page > 1.
func (r *BrowserRenderer) Render(ctx context.Context, page int) (string, bool, error) {
	browser, err := r.ensureBrowser()
	if err != nil {
		return "", false, err
	}

	tab, err := browser.NewPage()
	if err != nil {
		return "", false, fmt.Errorf("%w: could not create page: %w", ErrBrowserUnavailable, err)
	}
	defer func() {
		if err := tab.Close(); err != nil {
			GetLogger().Debug("failed to close browser page", logger.Error(err))
		}
	}()

	log := GetLogger().With(logger.Int("page", page))

	if _, err := tab.Goto(r.cfg.URL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(millis(r.cfg.NavigationTimeout)),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		log.Warn("scheme listing navigation failed", logger.Error(err))
		return "", false, nil
	}
	if !r.settle(ctx, tab) {
		return "", false, nil
	}

	if page > 1 {
		control := tab.Locator(r.cfg.Pagination).GetByText(strconv.Itoa(page), playwright.LocatorGetByTextOptions{
			Exact: playwright.Bool(true),
		})
		count, err := control.Count()
		if err != nil || count == 0 {
			log.Info("pagination control not found", logger.Int("matches", count))
			return "", false, nil
		}
		if err := control.First().Click(playwright.LocatorClickOptions{
			Timeout: playwright.Float(millis(r.cfg.NavigationTimeout)),
		}); err != nil {
			log.Warn("pagination click failed", logger.Error(err))
			return "", false, nil
		}
		if !r.settle(ctx, tab) {
			return "", false, nil
		}
	}

	content, err := tab.Content()
	if err != nil {
		log.Warn("failed to read rendered page", logger.Error(err))
		return "", false, nil
	}
	return content, true, nil
}

// settle waits for client-side rendering. It reports false when ctx ended first.
func (r *BrowserRenderer) settle(ctx context.Context, tab playwright.Page) bool {
	if ctx.Err() != nil {
		return false
	}
	if r.cfg.SettleTime > 0 {
		tab.WaitForTimeout(millis(r.cfg.SettleTime))
	}
	return ctx.Err() == nil
}

func (r *BrowserRenderer) ensureBrowser() (playwright.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil && r.browser.IsConnected() {
		return r.browser, nil
	}
	if err := r.shutdownLocked(); err != nil {
		GetLogger().Debug("failed to shut down disconnected browser", logger.Error(err))
	}

	start := time.Now()
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("%w: could not start playwright: %w", ErrBrowserUnavailable, err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(r.cfg.Headless),
	})
	if err != nil {
		if stopErr := pw.Stop(); stopErr != nil {
			GetLogger().Debug("failed to stop playwright", logger.Error(stopErr))
		}
		return nil, fmt.Errorf("%w: could not launch chromium: %w", ErrBrowserUnavailable, err)
	}

	r.pw, r.browser = pw, browser
	GetLogger().Info("headless browser started",
		logger.Bool("headless", r.cfg.Headless),
		logger.Duration("startup_time", time.Since(start)))
	return browser, nil
}

// Close stops the browser and the playwright driver.
func (r *BrowserRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shutdownLocked()
}

func (r *BrowserRenderer) shutdownLocked() error {
	var firstErr error
	if r.browser != nil {
		if err := r.browser.Close(); err != nil {
			firstErr = err
		}
		r.browser = nil
	}
	if r.pw != nil {
		if err := r.pw.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.pw = nil
	}
	return firstErr
}

func millis(d time.Duration) float64 {
	return float64(d.Milliseconds())
}
