package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/yuchenq/mpharvest/internal/config"
	"github.com/yuchenq/mpharvest/internal/types"
)

// BrowserFetcher renders article pages in a headless browser. Some
// accounts gate their pages behind script checks that the plain
// session cannot pass; browser mode is the fallback for those.
type BrowserFetcher struct {
	browser  *rod.Browser
	cfg      *config.BrowserConfig
	apiCfg   *config.APIConfig
	logger   *slog.Logger
	mu       sync.Mutex
	pagePool chan *rod.Page
}

// NewBrowserFetcher launches a headless Chromium and connects to it.
func NewBrowserFetcher(cfg *config.Config, logger *slog.Logger) (*BrowserFetcher, error) {
	bf := &BrowserFetcher{
		cfg:    &cfg.Browser,
		apiCfg: &cfg.API,
		logger: logger.With("component", "browser_fetcher"),
	}

	launchURL, err := bf.launchBrowser()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	bf.browser = browser
	bf.pagePool = make(chan *rod.Page, 2)

	bf.logger.Info("browser fetcher ready", "stealth", bf.cfg.Stealth)
	return bf, nil
}

// launchBrowser starts a Chromium instance with appropriate flags.
func (bf *BrowserFetcher) launchBrowser() (string, error) {
	l := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	if bf.cfg.UserDataDir != "" {
		l = l.UserDataDir(bf.cfg.UserDataDir)
	}
	if bf.cfg.WindowSize != "" {
		l = l.Set("window-size", bf.cfg.WindowSize)
	}

	return l.Launch()
}

// FetchHTML navigates to an article URL and returns the rendered DOM.
func (bf *BrowserFetcher) FetchHTML(ctx context.Context, rawURL string) (string, error) {
	page, err := bf.getPage()
	if err != nil {
		return "", &types.FetchError{URL: rawURL, Err: err, Retryable: true}
	}
	defer bf.putPage(page)

	if bf.cfg.Stealth {
		sp, err := stealth.Page(bf.browser)
		if err != nil {
			return "", &types.FetchError{URL: rawURL, Err: fmt.Errorf("stealth page: %w", err), Retryable: true}
		}
		defer sp.Close()
		page = sp
	}

	if ua := bf.apiCfg.UserAgent; ua != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			bf.logger.Warn("failed to set user agent", "error", err)
		}
	}

	timeout := bf.apiCfg.RequestTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout = until
		}
	}

	if err := page.Timeout(timeout).Navigate(rawURL); err != nil {
		return "", &types.FetchError{URL: rawURL, Err: err, Retryable: true}
	}

	if err := page.Timeout(timeout).WaitStable(300 * time.Millisecond); err != nil {
		bf.logger.Warn("page stability timeout, continuing", "url", rawURL, "error", err)
	}

	html, err := page.HTML()
	if err != nil {
		return "", &types.FetchError{URL: rawURL, Err: err, Retryable: true}
	}

	bf.logger.Debug("browser fetch complete", "url", rawURL, "size", len(html))
	return html, nil
}

// Close shuts down the browser and releases resources.
func (bf *BrowserFetcher) Close() error {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	close(bf.pagePool)
	for page := range bf.pagePool {
		_ = page.Close()
	}
	if bf.browser != nil {
		return bf.browser.Close()
	}
	return nil
}

// getPage retrieves a page from the pool or creates a new one.
func (bf *BrowserFetcher) getPage() (*rod.Page, error) {
	select {
	case page := <-bf.pagePool:
		return page, nil
	default:
		return bf.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
}

// putPage returns a page to the pool.
func (bf *BrowserFetcher) putPage(page *rod.Page) {
	// Navigate to blank to free memory from the last page
	_ = page.Navigate("about:blank")

	select {
	case bf.pagePool <- page:
	default:
		_ = page.Close() // Pool full, close the page
	}
}
