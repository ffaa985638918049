// Package ingest coordinates the crawl job: it fans fetch calls out across
// due sources on a bounded worker pool, normalizes and de-duplicates the
// results, and persists survivors as article drafts.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"heartofnews/internal/domain"
	"heartofnews/internal/fetch"
	"heartofnews/internal/normalize"
	"heartofnews/internal/ports"
)

const (
	defaultWorkers        = 4
	defaultPerSourceLimit = 20
	defaultDedupWindow    = 24 * time.Hour
)

// Deps wires the coordinator's collaborators and tuning knobs.
type Deps struct {
	Sources  ports.SourceStore
	Articles ports.ArticleStore
	Fetchers *fetch.Selector
	Logger   *slog.Logger

	Workers        int
	PerSourceLimit int
	DedupWindow    time.Duration
}

// Coordinator runs one crawl cycle at a time. A failing source never
// aborts the batch; its outcome is recorded per source and rolled up into
// the job report.
type Coordinator struct {
	sources  ports.SourceStore
	articles ports.ArticleStore
	fetchers *fetch.Selector
	logger   *slog.Logger

	workers     int
	limit       int
	dedupWindow time.Duration
}

// New constructs the coordinator, applying defaults for unset knobs.
func New(deps Deps) *Coordinator {
	c := &Coordinator{
		sources:     deps.Sources,
		articles:    deps.Articles,
		fetchers:    deps.Fetchers,
		logger:      deps.Logger,
		workers:     deps.Workers,
		limit:       deps.PerSourceLimit,
		dedupWindow: deps.DedupWindow,
	}
	if c.workers <= 0 {
		c.workers = defaultWorkers
	}
	if c.limit <= 0 {
		c.limit = defaultPerSourceLimit
	}
	if c.dedupWindow <= 0 {
		c.dedupWindow = defaultDedupWindow
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// sourceResult is one source's crawl outcome.
type sourceResult struct {
	sourceID string
	fetched  int
	inserted int
	dupes    int
	err      error
}

// Run crawls every due source and returns the aggregated job report.
// Source fetches run on a fixed pool of workers so a slow source cannot
// serialize the batch nor exhaust outbound connections.
func (c *Coordinator) Run(ctx context.Context) (domain.JobReport, error) {
	now := time.Now().UTC()

	due, err := c.sources.Due(ctx, now)
	if err != nil {
		return domain.JobReport{}, fmt.Errorf("select due sources: %w", err)
	}
	if len(due) == 0 {
		c.logger.Debug("no sources due")
		return domain.JobReport{}, nil
	}

	work := make(chan domain.Source)
	results := make(chan sourceResult, len(due))

	workers := c.workers
	if workers > len(due) {
		workers = len(due)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for src := range work {
				results <- c.crawlSource(ctx, src)
			}
		}()
	}

	for _, src := range due {
		work <- src
	}
	close(work)
	wg.Wait()
	close(results)

	report := domain.JobReport{Attempted: len(due)}
	collected := make([]sourceResult, 0, len(due))
	for res := range results {
		collected = append(collected, res)
	}
	sort.Slice(collected, func(i, j int) bool { return collected[i].sourceID < collected[j].sourceID })

	for _, res := range collected {
		if res.err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("source %s: %v", res.sourceID, res.err))
			continue
		}
		report.Succeeded++
	}

	c.logger.Info("crawl finished",
		"sources", len(due),
		"failed", report.Failed,
		"outcome", report.Outcome())

	return report, nil
}

// crawlSource fetches, normalizes, de-duplicates, and persists one source's
// items. The last-crawled timestamp is updated whether or not the fetch
// succeeded, so a broken source waits a full interval before being retried.
func (c *Coordinator) crawlSource(ctx context.Context, src domain.Source) sourceResult {
	res := sourceResult{sourceID: src.ID}

	fetcher, err := c.fetchers.ForSource(src)
	if err != nil {
		res.err = err
		return res
	}

	items, fetchErr := fetcher.Fetch(ctx, src, c.limit)

	if markErr := c.sources.MarkCrawled(ctx, src.ID, time.Now().UTC()); markErr != nil {
		c.logger.Warn("mark crawled failed", "source", src.ID, "error", markErr)
	}

	if fetchErr != nil {
		if fetch.IsNoItems(fetchErr) {
			c.logger.Debug("source had no items", "source", src.ID)
			return res
		}
		res.err = fetchErr
		return res
	}

	res.fetched = len(items)

	// Items are normalized and persisted in discovery order within the
	// source; ordering across sources is not guaranteed.
	batch := make([]domain.Article, 0, len(items))
	seen := map[string]struct{}{}
	for _, item := range items {
		article := normalize.Normalize(item, src, time.Now().UTC())

		if _, inBatch := seen[article.URL]; inBatch {
			res.dupes++
			continue
		}
		if _, inBatch := seen[article.Fingerprint]; inBatch {
			res.dupes++
			continue
		}

		dup, dErr := c.isDuplicate(ctx, article)
		if dErr != nil {
			res.err = fmt.Errorf("dedup check: %w", dErr)
			return res
		}
		if dup {
			res.dupes++
			continue
		}
		seen[article.URL] = struct{}{}
		seen[article.Fingerprint] = struct{}{}
		batch = append(batch, article)
	}

	if len(batch) > 0 {
		ids, iErr := c.articles.InsertDrafts(ctx, batch)
		if iErr != nil {
			res.err = fmt.Errorf("insert drafts: %w", iErr)
			return res
		}
		res.inserted = len(ids)
	}

	c.logger.Debug("source crawled",
		"source", src.ID,
		"fetched", res.fetched,
		"inserted", res.inserted,
		"duplicates", res.dupes)

	return res
}

func (c *Coordinator) isDuplicate(ctx context.Context, article domain.Article) (bool, error) {
	existing, err := c.articles.GetByURL(ctx, article.URL)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return true, nil
	}

	existing, err = c.articles.GetByFingerprint(ctx, article.Fingerprint, c.dedupWindow)
	if err != nil {
		return false, err
	}
	return existing != nil, nil
}
