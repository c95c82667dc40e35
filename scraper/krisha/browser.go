package krisha

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"

	"krisha-pipeline/config"
	"krisha-pipeline/scraper"
	"krisha-pipeline/utils"
)

// listingMarkers is what the page must render before cards are read.
const listingMarkers = "article.a-card, div.a-card__inc, div[data-id]"

// cardsJS returns the outer HTML of every card, trying the selectors in order
// and stopping at the first one that matches anything.
const cardsJS = `
(function() {
	var selectors = ['article.a-card', 'div.a-card__inc', 'div[data-id]'];
	for (var i = 0; i < selectors.length; i++) {
		var cards = document.querySelectorAll(selectors[i]);
		if (cards.length > 0) {
			var out = [];
			for (var j = 0; j < cards.length; j++) {
				out.push(cards[j].outerHTML);
			}
			return out;
		}
	}
	return [];
})()
`

// Browser is a chromedp-backed scraper.PageFetcher for krisha.kz rental pages.
// One browser process serves every page of a run; Close tears it down.
type Browser struct {
	baseURL     string
	cityID      string
	pageWait    time.Duration
	scrollPause time.Duration
	logger      *utils.Logger

	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

// NewBrowser starts a Chrome process configured from cfg.
func NewBrowser(cfg *config.Config, logger *utils.Logger) (*Browser, error) {
	chromeBin := cfg.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	logger.Info("[krisha] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	// Run with no actions launches the browser so startup failures surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("krisha: start browser: %w", err)
	}

	return &Browser{
		baseURL:       cfg.BaseURL,
		cityID:        cfg.CityID,
		pageWait:      cfg.PageWaitTimeout,
		scrollPause:   cfg.ScrollPause,
		logger:        logger,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
	}, nil
}

// PageURL builds the search URL for a page number.
func PageURL(baseURL, cityID string, page int) string {
	return fmt.Sprintf("%s/%s/?page=%d", baseURL, cityID, page)
}

// FetchPage navigates to the page, scrolls to trigger lazy cards, waits for the
// listing markers, and returns each card's outer HTML. It returns
// scraper.ErrNoListings when the markers do not show up within the wait bound.
// A page that has started loading runs to completion even if ctx is cancelled;
// the collector checks ctx before starting the next one.
func (b *Browser) FetchPage(ctx context.Context, page int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pageURL := PageURL(b.baseURL, b.cityID, page)
	b.logger.Info("[krisha] Loading page %d: %s", page, pageURL)

	// Each page gets its own tab; cancelling it closes the tab, not the browser.
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()

	if err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(b.scrollPause),
	); err != nil {
		return nil, fmt.Errorf("krisha: load page %d: %w", page, err)
	}

	waitCtx, cancelWait := context.WithTimeout(tabCtx, b.pageWait)
	defer cancelWait()
	if err := chromedp.Run(waitCtx, chromedp.WaitReady(listingMarkers, chromedp.ByQuery)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("krisha: page %d after %v: %w", page, b.pageWait, scraper.ErrNoListings)
		}
		return nil, fmt.Errorf("krisha: wait for listings on page %d: %w", page, err)
	}

	var cards []string
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(cardsJS, &cards)); err != nil {
		return nil, fmt.Errorf("krisha: extract cards on page %d: %w", page, err)
	}
	b.logger.Info("[krisha] Found %d cards on page %d", len(cards), page)

	if len(cards) == 0 {
		return nil, scraper.ErrNoListings
	}
	return cards, nil
}

// Close shuts down the browser process.
func (b *Browser) Close() error {
	b.cancelBrowser()
	b.cancelAlloc()
	return nil
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
