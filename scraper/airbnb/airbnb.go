package airbnb

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"

	"estate-listings/config"
	"estate-listings/models"
	"estate-listings/utils"
)

const platform = "airbnb"

// Fetcher returns the rendered HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// Submitter hands scraped payloads to ingestion.
type Submitter interface {
	IngestBatch(ctx context.Context, payloads []models.RawListing) (*models.BatchReceipt, error)
}

// Scraper walks Airbnb search result pages and collects raw listings.
type Scraper struct {
	cfg        config.ScraperConfig
	logger     *utils.Logger
	fetcher    Fetcher
	visitedURL *utils.URLSet
	retry      *utils.RetryConfig
	pause      time.Duration
}

// New creates a Scraper. fetcher is usually a *BrowserFetcher.
func New(cfg config.ScraperConfig, fetcher Fetcher, logger *utils.Logger) *Scraper {
	return &Scraper{
		cfg:        cfg,
		logger:     logger,
		fetcher:    fetcher,
		visitedURL: utils.NewURLSet(),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		pause: time.Duration(cfg.RateLimitMs) * time.Millisecond,
	}
}

// Scrape follows pagination from the configured start url and returns every
// distinct listing found. A failing page ends the walk but keeps what was collected.
func (s *Scraper) Scrape(ctx context.Context) ([]models.RawListing, error) {
	s.logger.Info("[airbnb] Starting scrape: %d pages, %d listings/page from %s",
		s.cfg.PagesToScrape, s.cfg.ListingsPerPage, s.cfg.StartURL)

	var (
		listings   []models.RawListing
		currentURL = s.cfg.StartURL
		lastErr    error
	)
	for page := 1; page <= s.cfg.PagesToScrape && currentURL != ""; page++ {
		s.logger.Info("[airbnb] Scraping page %d: %s", page, currentURL)

		result, err := s.scrapePage(ctx, currentURL, page)
		if err != nil {
			s.logger.Error("[airbnb] Page %d failed: %v", page, err)
			lastErr = err
			break
		}
		if len(result.Listings) == 0 {
			s.logger.Warn("[airbnb] Page %d returned 0 listings, stopping", page)
			break
		}

		for _, l := range result.Listings {
			if !s.visitedURL.Add(l.URL()) {
				s.logger.Debug("[airbnb] Skipping duplicate: %s", l.URL())
				continue
			}
			listings = append(listings, l)
		}
		s.logger.Info("[airbnb] Page %d done, collected %d listings so far", page, len(listings))

		currentURL = result.NextURL
		if currentURL != "" && page < s.cfg.PagesToScrape {
			select {
			case <-ctx.Done():
				return listings, ctx.Err()
			case <-time.After(s.pause):
			}
		}
	}

	s.logger.Info("[airbnb] Scrape complete, %d unique listings", len(listings))
	if len(listings) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return listings, nil
}

func (s *Scraper) scrapePage(ctx context.Context, pageURL string, pageNum int) (*SearchPage, error) {
	var page *SearchPage
	err := s.retry.DoContext(ctx, fmt.Sprintf("scrape-page-%d", pageNum), func(ctx context.Context) error {
		html, err := s.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			return err
		}
		page, err = ParseSearchPage(html, pageURL, s.cfg.ListingsPerPage)
		return err
	})
	return page, err
}

// Run scrapes and submits everything found as one ingestion batch.
func (s *Scraper) Run(ctx context.Context, submit Submitter) (*models.BatchReceipt, error) {
	listings, err := s.Scrape(ctx)
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return &models.BatchReceipt{TaskIDs: []string{}}, nil
	}
	return submit.IngestBatch(ctx, listings)
}

// BrowserFetcher renders pages in a headless Chrome via chromedp.
type BrowserFetcher struct {
	browser context.Context
	cancel  func()
}

// NewBrowserFetcher starts a headless browser. Close it when done.
func NewBrowserFetcher(ctx context.Context, chromeBin string, logger *utils.Logger) *BrowserFetcher {
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	logger.Info("[airbnb] Using browser binary: %q", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	// Suppress chromedp log noise
	browser, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	return &BrowserFetcher{
		browser: browser,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
	}
}

// Fetch loads pageURL in a fresh tab, scrolls to trigger lazy cards and returns the DOM.
func (b *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	tab, cancel := chromedp.NewContext(b.browser)
	defer cancel()

	tab, cancelTimeout := context.WithTimeout(tab, 90*time.Second)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	var html string
	err := chromedp.Run(tab,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(6*time.Second),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight / 2)`, nil),
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("chromedp fetch %s: %w", pageURL, err)
	}
	return html, nil
}

// Close shuts the browser down.
func (b *BrowserFetcher) Close() {
	b.cancel()
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
