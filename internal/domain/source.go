package domain

import "time"

// FetchStrategy selects how a source is crawled.
type FetchStrategy string

const (
	StrategyFeed FetchStrategy = "feed"
	StrategyPage FetchStrategy = "page"
)

// PageSelectors configures the locators used by the page strategy.
// Link is required; the rest refine extraction on the article page.
type PageSelectors struct {
	Link    string
	Title   string
	Content string
	Date    string
	Author  string
}

// Source is an external origin of news items. The ingestion coordinator is
// the sole writer of LastCrawledAt; everything else is immutable
// configuration imported at process start.
type Source struct {
	ID            string
	Name          string
	URL           string
	FeedURL       string
	Strategy      FetchStrategy
	Selectors     PageSelectors
	CrawlInterval time.Duration
	Reliability   float64
	LastCrawledAt time.Time
}

// Due reports whether the crawl interval has elapsed since the last crawl.
// A never-crawled source is always due.
func (s Source) Due(now time.Time) bool {
	if s.LastCrawledAt.IsZero() {
		return true
	}
	return now.Sub(s.LastCrawledAt) >= s.CrawlInterval
}
