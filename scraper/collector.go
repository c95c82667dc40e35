package scraper

import (
	"context"
	"errors"
	"fmt"

	"krisha-pipeline/models"
	"krisha-pipeline/monitoring"
	"krisha-pipeline/utils"
)

// ErrNoListings is returned by a PageFetcher when no listing markers appear on
// a page within its wait bound. The collector skips such pages.
var ErrNoListings = errors.New("no listings found on page")

// PageFetcher loads one search result page and returns the outer HTML of every
// listing card on it, in page order.
type PageFetcher interface {
	FetchPage(ctx context.Context, page int) ([]string, error)
	Close() error
}

// Options configures a Collector.
type Options struct {
	MaxPages    int
	BaseURL     string // used to resolve relative card links
	RateLimitMs int
}

// Collector walks the page range sequentially and turns cards into RawListings.
type Collector struct {
	fetcher  PageFetcher
	opts     Options
	logger   *utils.Logger
	metrics  *monitoring.Metrics
	throttle *utils.Throttle
}

// NewCollector creates a Collector. metrics may be nil.
func NewCollector(fetcher PageFetcher, opts Options, logger *utils.Logger, metrics *monitoring.Metrics) *Collector {
	return &Collector{
		fetcher:  fetcher,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
		throttle: utils.NewThrottle(opts.RateLimitMs),
	}
}

// Collect visits pages 1..MaxPages and returns one RawListing per card in
// page-then-card order. Page and card failures are logged and skipped. The
// fetcher is closed before Collect returns. A cancelled ctx stops the run
// before the next page; listings gathered so far are returned with ctx.Err().
func (c *Collector) Collect(ctx context.Context) (listings []*models.RawListing, err error) {
	defer func() {
		if cerr := c.fetcher.Close(); cerr != nil {
			c.logger.Warn("[collector] Closing browser session: %v", cerr)
		}
	}()

	listings = make([]*models.RawListing, 0)

	for page := 1; page <= c.opts.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			c.logger.Warn("[collector] Stopping before page %d: %v", page, err)
			return listings, err
		}
		if err := c.throttle.Wait(ctx); err != nil {
			return listings, err
		}

		pageListings := c.collectPage(ctx, page)
		listings = append(listings, pageListings...)
		c.logger.Info("[collector] Page %d done, %d listings so far", page, len(listings))
	}

	c.logger.Info("[collector] Collected %d raw listings from %d pages", len(listings), c.opts.MaxPages)
	return listings, nil
}

func (c *Collector) collectPage(ctx context.Context, page int) []*models.RawListing {
	cards, err := c.fetcher.FetchPage(ctx, page)
	if err != nil {
		c.metrics.IncPages("skipped")
		if errors.Is(err, ErrNoListings) {
			c.logger.Warn("[collector] No listings on page %d, skipping", page)
		} else {
			c.logger.Warn("[collector] Page %d failed, skipping: %v", page, err)
		}
		return nil
	}
	c.metrics.IncPages("fetched")
	c.logger.Debug("[collector] Page %d: %d cards", page, len(cards))

	out := make([]*models.RawListing, 0, len(cards))
	for i, html := range cards {
		raw, err := c.parseCard(html)
		if err != nil {
			c.metrics.IncCards("failed")
			c.logger.Warn("[collector] Page %d card %d skipped: %v", page, i+1, err)
			continue
		}
		c.metrics.IncCards("collected")
		out = append(out, raw)
	}
	return out
}

// parseCard shields the run from a panic inside a single card.
func (c *Collector) parseCard(html string) (raw *models.RawListing, err error) {
	defer func() {
		if r := recover(); r != nil {
			raw, err = nil, fmt.Errorf("card panic: %v", r)
		}
	}()
	return ParseCard(html, c.opts.BaseURL)
}
